package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mkravchenko/hpcchat/internal/cluster"
	"github.com/mkravchenko/hpcchat/internal/slurm"
)

func exitCode(t *testing.T, err error) int {
	t.Helper()
	if err == nil {
		return 0
	}
	var ee *exitError
	if !errors.As(err, &ee) {
		t.Fatalf("err = %v, want *exitError", err)
	}
	return ee.code
}

func TestDispatchModeConflict(t *testing.T) {
	// Conflicts must be rejected before any profile load, so no config is
	// written for this test on purpose.
	err := dispatch(context.Background(), &runFlags{
		cluster:     "ghost",
		interactive: true,
		submitApp:   true,
	}, nil)
	if exitCode(t, err) != exitUsage {
		t.Fatalf("err = %v", err)
	}
}

func TestDispatchModeWithTrailingCommand(t *testing.T) {
	err := dispatch(context.Background(), &runFlags{interactive: true, cluster: "ghost"}, []string{"ls"})
	if exitCode(t, err) != exitUsage {
		t.Fatalf("err = %v", err)
	}
}

func TestDispatchNoCommand(t *testing.T) {
	err := dispatch(context.Background(), &runFlags{}, nil)
	if exitCode(t, err) != exitUsage {
		t.Fatalf("err = %v", err)
	}
}

func TestDispatchInteractiveRequiresCluster(t *testing.T) {
	err := dispatch(context.Background(), &runFlags{interactive: true}, nil)
	if exitCode(t, err) != exitUsage {
		t.Fatalf("err = %v", err)
	}
}

func TestDispatchLocalPassthrough(t *testing.T) {
	if err := dispatch(context.Background(), &runFlags{}, []string{"true"}); err != nil {
		t.Fatalf("err = %v", err)
	}

	err := dispatch(context.Background(), &runFlags{}, []string{"sh", "-c", "exit 5"})
	if exitCode(t, err) != 5 {
		t.Fatalf("err = %v", err)
	}
}

func TestDispatchLocalMissingExecutable(t *testing.T) {
	err := dispatch(context.Background(), &runFlags{}, []string{"no-such-binary-zzz"})
	if exitCode(t, err) != exitMissing {
		t.Fatalf("err = %v", err)
	}
}

func TestDispatchUnknownProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clusters.yml")
	if err := os.WriteFile(path, []byte("clusters: {}\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(cluster.EnvConfigPath, path)

	err := dispatch(context.Background(), &runFlags{cluster: "ghost"}, []string{"true"})
	if exitCode(t, err) != exitConfig {
		t.Fatalf("err = %v", err)
	}
}

func TestDispatchBadOverrideIsUsageError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clusters.yml")
	body := `
clusters:
  c:
    host: h
    user: u
    default_partition: p
    default_ntasks: 1
    default_cpus_per_task: 1
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(cluster.EnvConfigPath, path)

	err := dispatch(context.Background(), &runFlags{
		cluster:   "c",
		overrides: slurm.Overrides{Tasks: "many"},
	}, []string{"true"})
	if exitCode(t, err) != exitUsage {
		t.Fatalf("err = %v", err)
	}
}
