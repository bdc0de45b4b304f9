// Package slurm composes srun allocation commands and sbatch directive
// blocks from a cluster profile plus per-invocation overrides.
package slurm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mkravchenko/hpcchat/internal/cluster"
	"github.com/mkravchenko/hpcchat/internal/shellq"
)

// Mode selects between a blocking allocation with a pseudo-terminal and a
// plain batch-style invocation.
type Mode int

const (
	Batch Mode = iota
	Interactive
)

// Overrides carries per-invocation replacements for the profile defaults.
// Every field is optional; empty means "fall through to the profile". The
// count fields stay strings so that validation happens here, at the one
// place that interprets them, rather than in the flag layer.
type Overrides struct {
	Partition   string
	Tasks       string
	CpusPerTask string
	Time        string
	Account     string
	Memory      string
	GPUs        string
}

// InvalidOverrideError reports an override that claims to be numeric but
// does not parse as a positive integer.
type InvalidOverrideError struct {
	Field string
	Value string
}

func (e *InvalidOverrideError) Error() string {
	return fmt.Sprintf("override %s=%q must be a positive integer", e.Field, e.Value)
}

// resolved holds the per-field outcome of override-over-profile precedence.
// Empty string fields are omitted from the composed command entirely.
type resolved struct {
	partition string
	tasks     int
	cpus      int
	account   string
	timeLimit string
	memory    string
	gpus      string
}

func resolve(p *cluster.Profile, ov Overrides) (resolved, error) {
	r := resolved{
		partition: pick(ov.Partition, p.DefaultPartition),
		account:   pick(ov.Account, p.Account),
		timeLimit: pick(ov.Time, p.DefaultTime),
		memory:    pick(ov.Memory, p.Memory),
		gpus:      pick(ov.GPUs, p.GPUs),
	}
	var err error
	if r.tasks, err = pickCount("ntasks", ov.Tasks, p.DefaultTasks); err != nil {
		return resolved{}, err
	}
	if r.cpus, err = pickCount("cpus-per-task", ov.CpusPerTask, p.DefaultCpusPerTask); err != nil {
		return resolved{}, err
	}
	return r, nil
}

// Compose builds the srun command, flags in fixed order. Text-valued fields
// are shell-quoted individually; validated integers are formatted directly.
func Compose(p *cluster.Profile, ov Overrides, mode Mode) (string, error) {
	r, err := resolve(p, ov)
	if err != nil {
		return "", err
	}
	parts := []string{"srun"}
	if mode == Interactive {
		parts = append(parts, "--pty")
	}
	parts = append(parts,
		"-p", shellq.Quote(r.partition),
		fmt.Sprintf("--ntasks=%d", r.tasks),
		fmt.Sprintf("--cpus-per-task=%d", r.cpus),
	)
	if r.account != "" {
		parts = append(parts, "--account", shellq.Quote(r.account))
	}
	if r.timeLimit != "" {
		parts = append(parts, "--time", shellq.Quote(r.timeLimit))
	}
	if r.memory != "" {
		parts = append(parts, "--mem", shellq.Quote(r.memory))
	}
	if r.gpus != "" {
		parts = append(parts, "--gpus", shellq.Quote(r.gpus))
	}
	return strings.Join(parts, " "), nil
}

// BatchDirectives builds the #SBATCH header block for detached submission:
// one directive per resolved field, same order and precedence as Compose.
func BatchDirectives(p *cluster.Profile, ov Overrides) ([]string, error) {
	r, err := resolve(p, ov)
	if err != nil {
		return nil, err
	}
	lines := []string{
		"#SBATCH -p " + shellq.Quote(r.partition),
		fmt.Sprintf("#SBATCH --ntasks=%d", r.tasks),
		fmt.Sprintf("#SBATCH --cpus-per-task=%d", r.cpus),
	}
	if r.account != "" {
		lines = append(lines, "#SBATCH --account="+shellq.Quote(r.account))
	}
	if r.timeLimit != "" {
		lines = append(lines, "#SBATCH --time="+shellq.Quote(r.timeLimit))
	}
	if r.memory != "" {
		lines = append(lines, "#SBATCH --mem="+shellq.Quote(r.memory))
	}
	if r.gpus != "" {
		lines = append(lines, "#SBATCH --gpus="+shellq.Quote(r.gpus))
	}
	return lines, nil
}

func pick(override, fallback string) string {
	if strings.TrimSpace(override) != "" {
		return strings.TrimSpace(override)
	}
	return strings.TrimSpace(fallback)
}

func pickCount(field, override string, fallback int) (int, error) {
	v := strings.TrimSpace(override)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, &InvalidOverrideError{Field: field, Value: override}
	}
	return n, nil
}
