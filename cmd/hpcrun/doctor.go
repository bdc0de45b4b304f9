package main

import (
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mkravchenko/hpcchat/internal/cluster"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Print local diagnostic information for troubleshooting",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()

			exe, _ := os.Executable()
			fmt.Fprintf(out, "hpcrun_executable=%s\n", strings.TrimSpace(exe))

			if ssh, err := exec.LookPath("ssh"); err == nil {
				fmt.Fprintf(out, "ssh=%s\n", ssh)
			} else {
				fmt.Fprintln(out, "ssh=MISSING (install an OpenSSH client)")
			}

			path, err := cluster.ConfigPath()
			if err != nil {
				fmt.Fprintf(out, "config_error=%s\n", err.Error())
				return nil
			}
			fmt.Fprintf(out, "config_path=%s\n", path)

			data, err := os.ReadFile(path)
			if err != nil {
				fmt.Fprintln(out, "config_present=false")
				return nil
			}
			fmt.Fprintln(out, "config_present=true")

			var cfg struct {
				Clusters map[string]struct {
					Host string `yaml:"host"`
					User string `yaml:"user"`
				} `yaml:"clusters"`
			}
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				fmt.Fprintf(out, "config_error=%s\n", err.Error())
				return nil
			}
			names := make([]string, 0, len(cfg.Clusters))
			for name := range cfg.Clusters {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				c := cfg.Clusters[name]
				fmt.Fprintf(out, "cluster=%s endpoint=%s@%s\n", name, c.User, c.Host)
			}
			return nil
		},
	}
}
