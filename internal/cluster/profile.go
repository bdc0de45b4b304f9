// Package cluster loads named cluster profiles from a clusters.yml file.
// A profile describes one remote execution target: the SSH endpoint plus
// the Slurm defaults used when composing allocation commands.
package cluster

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath overrides the clusters.yml location when set.
const EnvConfigPath = "HPCRUN_CLUSTERS"

// ConfigFileName is looked up in the working directory and next to the
// executable when EnvConfigPath is unset.
const ConfigFileName = "clusters.yml"

var (
	// ErrConfigNotFound means no clusters.yml could be located.
	ErrConfigNotFound = errors.New("clusters config not found")
	// ErrProfileNotFound means the file exists but the requested name does not.
	ErrProfileNotFound = errors.New("cluster profile not found")
)

// InvalidProfileError reports a profile that loaded but failed validation.
type InvalidProfileError struct {
	Name   string
	Reason string
}

func (e *InvalidProfileError) Error() string {
	return fmt.Sprintf("cluster %q: %s", e.Name, e.Reason)
}

// Profile is one remote execution target. It is built once per invocation
// and never mutated afterwards. Values are kept as loaded; shell quoting is
// the composer's job, not the loader's.
type Profile struct {
	Name string

	Host               string
	User               string
	IdentityFile       string
	DefaultPartition   string
	DefaultTasks       int
	DefaultCpusPerTask int
	Account            string
	DefaultTime        string
	Memory             string
	GPUs               string
	PreCommands        []string
	Workdir            string
}

// scalar accepts any YAML scalar and keeps its literal text, so quoted and
// bare values ("4" and 4, gpu:1 and "gpu:1") load identically. Numeric
// interpretation is deferred to validation.
type scalar string

func (s *scalar) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("expected a scalar, got %s", value.Tag)
	}
	*s = scalar(value.Value)
	return nil
}

type rawProfile struct {
	Host             scalar   `yaml:"host"`
	User             scalar   `yaml:"user"`
	SSHKey           scalar   `yaml:"ssh_key"`
	DefaultPartition scalar   `yaml:"default_partition"`
	DefaultTasks     scalar   `yaml:"default_ntasks"`
	DefaultCpus      scalar   `yaml:"default_cpus_per_task"`
	Account          scalar   `yaml:"account"`
	DefaultTime      scalar   `yaml:"default_time"`
	Memory           scalar   `yaml:"mem"`
	GPUs             scalar   `yaml:"gpus"`
	PreCommands      []string `yaml:"pre_commands"`
	Workdir          scalar   `yaml:"workdir"`
}

type configFile struct {
	Clusters map[string]*rawProfile `yaml:"clusters"`
}

// Load reads the clusters config, picks the named profile, expands
// environment variables and ~ in every string field (element-wise for
// pre_commands), and validates the mandatory fields.
func Load(name string) (*Profile, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s (set %s or add %s to the working directory)",
			ErrConfigNotFound, path, EnvConfigPath, ConfigFileName)
	}
	if err != nil {
		return nil, err
	}

	var cfg configFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	raw, ok := cfg.Clusters[name]
	if !ok || raw == nil {
		return nil, fmt.Errorf("%w: %q in %s", ErrProfileNotFound, name, path)
	}

	p := &Profile{
		Name:             name,
		Host:             expand(string(raw.Host)),
		User:             expand(string(raw.User)),
		IdentityFile:     expand(string(raw.SSHKey)),
		DefaultPartition: expand(string(raw.DefaultPartition)),
		Account:          expand(string(raw.Account)),
		DefaultTime:      expand(string(raw.DefaultTime)),
		Memory:           expand(string(raw.Memory)),
		GPUs:             expand(string(raw.GPUs)),
		Workdir:          expand(string(raw.Workdir)),
	}
	for _, pre := range raw.PreCommands {
		p.PreCommands = append(p.PreCommands, expand(pre))
	}

	missing := []string{}
	if p.Host == "" {
		missing = append(missing, "host")
	}
	if p.User == "" {
		missing = append(missing, "user")
	}
	if p.DefaultPartition == "" {
		missing = append(missing, "default_partition")
	}
	if strings.TrimSpace(string(raw.DefaultTasks)) == "" {
		missing = append(missing, "default_ntasks")
	}
	if strings.TrimSpace(string(raw.DefaultCpus)) == "" {
		missing = append(missing, "default_cpus_per_task")
	}
	if len(missing) > 0 {
		return nil, &InvalidProfileError{Name: name, Reason: "missing required keys: " + strings.Join(missing, ", ")}
	}

	if p.DefaultTasks, err = positiveInt(name, "default_ntasks", string(raw.DefaultTasks)); err != nil {
		return nil, err
	}
	if p.DefaultCpusPerTask, err = positiveInt(name, "default_cpus_per_task", string(raw.DefaultCpus)); err != nil {
		return nil, err
	}
	return p, nil
}

// ConfigPath resolves the clusters.yml location: explicit env path, then the
// working directory, then the directory holding the executable. The first
// rule wins even when the file it names does not exist, so a bad env value
// surfaces as ErrConfigNotFound instead of silently falling through.
func ConfigPath() (string, error) {
	if v := strings.TrimSpace(os.Getenv(EnvConfigPath)); v != "" {
		return expand(v), nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	local := filepath.Join(cwd, ConfigFileName)
	if _, err := os.Stat(local); err == nil {
		return local, nil
	}
	exe, err := os.Executable()
	if err != nil {
		return local, nil
	}
	return filepath.Join(filepath.Dir(exe), ConfigFileName), nil
}

// expand applies ~ and $VAR expansion, matching what an operator would
// expect a path or command in clusters.yml to mean.
func expand(s string) string {
	s = strings.TrimSpace(s)
	if s == "~" {
		if h, err := os.UserHomeDir(); err == nil && h != "" {
			return h
		}
		return s
	}
	if strings.HasPrefix(s, "~/") {
		if h, err := os.UserHomeDir(); err == nil && h != "" {
			s = filepath.Join(h, strings.TrimPrefix(s, "~/"))
		}
	}
	return os.ExpandEnv(s)
}

func positiveInt(name, key, v string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n <= 0 {
		return 0, &InvalidProfileError{Name: name, Reason: fmt.Sprintf("key %q must be a positive integer, got %q", key, v)}
	}
	return n, nil
}
