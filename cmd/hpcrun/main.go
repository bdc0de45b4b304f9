// Command hpcrun relays commands to an HPC cluster: it loads a cluster
// profile, composes a Slurm allocation, and executes it on the login node
// over ssh. Without a profile it runs the command locally with the same
// exit-code contract.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mkravchenko/hpcchat/internal/cluster"
	"github.com/mkravchenko/hpcchat/internal/remote"
	"github.com/mkravchenko/hpcchat/internal/shellq"
	"github.com/mkravchenko/hpcchat/internal/slurm"
)

// Exit codes, kept stable for scripting:
//
//	0    success
//	1    configuration or profile problems
//	2    usage errors (conflicting modes, missing command, bad override)
//	127  required executable missing (ssh, or the local command)
//
// A remote command's own exit code passes through unchanged.
const (
	exitConfig  = 1
	exitUsage   = 2
	exitMissing = 127
)

type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

type runFlags struct {
	cluster string

	interactive    bool
	interactiveApp bool
	submitApp      bool

	overrides slurm.Overrides

	port    int
	model   string
	app     string
	workdir string
}

func main() {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			if ee.msg != "" {
				fmt.Fprintln(os.Stderr, "hpcrun:", ee.msg)
			}
			os.Exit(ee.code)
		}
		fmt.Fprintln(os.Stderr, "hpcrun:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &runFlags{}
	cmd := &cobra.Command{
		Use:   "hpcrun [flags] [-- command ...]",
		Short: "Run commands and model services on an HPC cluster via ssh and Slurm",
		Long: `hpcrun resolves a cluster profile from clusters.yml and relays work to it:
a one-shot command under srun, an interactive shell on a compute node, or
a model-serving bootstrap (interactive or detached sbatch submission).
Without --cluster the command runs locally.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return dispatch(cmd.Context(), flags, args)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&flags.cluster, "cluster", "c", "", "cluster profile name from clusters.yml (empty = run locally)")
	f.BoolVarP(&flags.interactive, "interactive", "i", false, "allocate an interactive shell on a compute node")
	f.BoolVar(&flags.interactiveApp, "interactive-app", false, "bootstrap the model service interactively (blocks, prints tunnel command)")
	f.BoolVar(&flags.submitApp, "submit-app", false, "submit the model service as a detached batch job")

	f.StringVar(&flags.overrides.Partition, "partition", "", "override the profile partition")
	f.StringVar(&flags.overrides.Tasks, "ntasks", "", "override the task count")
	f.StringVar(&flags.overrides.CpusPerTask, "cpus-per-task", "", "override cpus per task")
	f.StringVar(&flags.overrides.Time, "time", "", "override the time limit (e.g. 01:00:00)")
	f.StringVar(&flags.overrides.Account, "account", "", "override the accounting project")
	f.StringVar(&flags.overrides.Memory, "mem", "", "override the memory request (e.g. 16G)")
	f.StringVar(&flags.overrides.GPUs, "gpus", "", "override the GPU request (e.g. 1 or gpu:2)")

	f.IntVar(&flags.port, "port", 8501, "app port on the compute node (bootstrap modes)")
	f.StringVar(&flags.model, "model", "gpt-oss:20b", "model to ensure on the compute node (bootstrap modes)")
	f.StringVar(&flags.app, "app", "main.py", "app entry file to launch (bootstrap modes)")
	f.StringVar(&flags.workdir, "workdir", "", "remote working directory (overrides the profile workdir)")

	cmd.AddCommand(newDoctorCmd())
	return cmd
}

// dispatch validates the flag combination, then routes to the matching
// execution shape. All usage validation happens before any profile load or
// network activity, so conflicting invocations fail fast and cheap.
func dispatch(ctx context.Context, flags *runFlags, args []string) error {
	modes := 0
	for _, on := range []bool{flags.interactive, flags.interactiveApp, flags.submitApp} {
		if on {
			modes++
		}
	}
	if modes > 1 {
		return &exitError{exitUsage, "choose one of --interactive, --interactive-app, --submit-app"}
	}
	if modes == 1 && len(args) > 0 {
		return &exitError{exitUsage, fmt.Sprintf("a mode flag and a trailing command conflict (got %q)", args)}
	}
	if modes == 0 && len(args) == 0 {
		return &exitError{exitUsage, "no command specified (pass one after --, or pick a mode flag)"}
	}

	runner := remote.NewRunner()

	if flags.cluster == "" {
		if modes != 0 {
			return &exitError{exitUsage, "interactive and bootstrap modes require --cluster"}
		}
		return report(runner.RunLocal(ctx, args))
	}

	p, err := cluster.Load(flags.cluster)
	if err != nil {
		return &exitError{exitConfig, err.Error()}
	}

	inv, err := buildInvocation(p, flags, args)
	if err != nil {
		var invalid *slurm.InvalidOverrideError
		if errors.As(err, &invalid) {
			return &exitError{exitUsage, err.Error()}
		}
		return &exitError{exitConfig, err.Error()}
	}

	return report(runner.Run(ctx, p, inv))
}

func buildInvocation(p *cluster.Profile, flags *runFlags, args []string) (remote.Invocation, error) {
	workdir := flags.workdir
	if workdir == "" {
		workdir = p.Workdir
	}
	switch {
	case flags.interactive:
		return remote.InteractiveShell(p, flags.overrides)
	case flags.interactiveApp:
		return remote.ServiceBootstrap(p, flags.overrides, bootstrapOptions(flags, workdir))
	case flags.submitApp:
		return remote.SubmitBootstrap(p, flags.overrides, bootstrapOptions(flags, workdir))
	default:
		return remote.PlainCommand(p, flags.overrides, workdir, shellq.Join(args))
	}
}

func bootstrapOptions(flags *runFlags, workdir string) remote.BootstrapOptions {
	return remote.BootstrapOptions{
		Port:    flags.port,
		Model:   flags.model,
		App:     flags.app,
		Workdir: workdir,
	}
}

// report converts a (code, err) pair from the runner into the process exit
// status, passing remote exit codes through untouched.
func report(code int, err error) error {
	if err != nil {
		if errors.Is(err, remote.ErrTransportUnavailable) {
			return &exitError{exitMissing, err.Error()}
		}
		return &exitError{code, err.Error()}
	}
	if code != 0 {
		return &exitError{code, ""}
	}
	return nil
}
