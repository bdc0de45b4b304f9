package remote

import (
	"strings"
	"testing"

	"github.com/mkravchenko/hpcchat/internal/cluster"
	"github.com/mkravchenko/hpcchat/internal/shellq"
	"github.com/mkravchenko/hpcchat/internal/slurm"
)

func testProfile() *cluster.Profile {
	return &cluster.Profile{
		Name:               "rosa",
		Host:               "hpc.example.org",
		User:               "alice",
		DefaultPartition:   "cpu",
		DefaultTasks:       1,
		DefaultCpusPerTask: 2,
	}
}

func TestPlainCommandShape(t *testing.T) {
	payload := shellq.Join([]string{"echo", "hi"})
	inv, err := PlainCommand(testProfile(), slurm.Overrides{}, "", payload)
	if err != nil {
		t.Fatal(err)
	}
	want := "srun -p 'cpu' --ntasks=1 --cpus-per-task=2 'echo' 'hi'"
	if inv.Command != want {
		t.Fatalf("got %q, want %q", inv.Command, want)
	}
	if inv.PTY {
		t.Fatal("plain command must not request a pty")
	}
}

func TestPlainCommandWorkdirAndPreCommands(t *testing.T) {
	p := testProfile()
	p.PreCommands = []string{"module load slurm", "module load cuda"}
	inv, err := PlainCommand(p, slurm.Overrides{}, "/scratch/alice", "'ls'")
	if err != nil {
		t.Fatal(err)
	}
	cdIdx := strings.Index(inv.Command, "cd '/scratch/alice'")
	preIdx := strings.Index(inv.Command, "module load slurm && module load cuda && ")
	srunIdx := strings.Index(inv.Command, "srun ")
	if cdIdx < 0 || preIdx < 0 || srunIdx < 0 {
		t.Fatalf("missing step: %q", inv.Command)
	}
	if !(cdIdx < preIdx && preIdx < srunIdx) {
		t.Fatalf("steps out of order: %q", inv.Command)
	}
	if !strings.Contains(inv.Command, "exit 2") {
		t.Fatalf("workdir failure path must exit 2: %q", inv.Command)
	}
}

func TestPlainCommandNoEmptyJoins(t *testing.T) {
	inv, err := PlainCommand(testProfile(), slurm.Overrides{}, "", "'true'")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(inv.Command, "&&  ") || strings.HasPrefix(inv.Command, " ") {
		t.Fatalf("empty step left residue: %q", inv.Command)
	}
	if !strings.HasPrefix(inv.Command, "srun ") {
		t.Fatalf("expected bare srun prefix: %q", inv.Command)
	}
}

func TestInteractiveShellRequestsPty(t *testing.T) {
	inv, err := InteractiveShell(testProfile(), slurm.Overrides{})
	if err != nil {
		t.Fatal(err)
	}
	if !inv.PTY {
		t.Fatal("interactive shell must request a pty")
	}
	if !strings.Contains(inv.Command, "srun --pty ") || !strings.HasSuffix(inv.Command, " bash") {
		t.Fatalf("got %q", inv.Command)
	}
}

func TestServiceBootstrapScript(t *testing.T) {
	p := testProfile()
	p.PreCommands = []string{"module load cuda"}
	inv, err := ServiceBootstrap(p, slurm.Overrides{GPUs: "1"}, BootstrapOptions{
		Port:    8501,
		Model:   "gpt-oss:20b",
		App:     "main.py",
		Workdir: "/home/alice/chat",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !inv.PTY {
		t.Fatal("bootstrap must request a pty")
	}
	for _, frag := range []string{
		"srun --pty ",
		"--gpus '1'",
		"ssh -L 8501:$NODE:8501",
		"'alice@hpc.example.org'",
		"tmux has-session -t ollama",
		"nohup sh -c 'ollama serve'",
		"export OLLAMA_HOST=http://127.0.0.1:11434",
		"MODEL='gpt-oss:20b'",
		"ollama pull \"$MODEL\"",
		"cd '/home/alice/chat'",
		"module load cuda",
		"if [ ! -f 'main.py' ]",
		"streamlit run 'main.py' --server.port 8501 --server.address 0.0.0.0 --server.headless true",
		"exec bash",
	} {
		if !strings.Contains(inv.Command, frag) {
			t.Fatalf("missing %q in:\n%s", frag, inv.Command)
		}
	}
	// The allocation carries the script as a single bash -lc argument.
	if !strings.Contains(inv.Command, " bash -lc '") {
		t.Fatalf("script not wrapped for the allocation shell:\n%s", inv.Command)
	}
}

func TestServiceBootstrapMissingWorkdirDiagnosedBeforeLaunch(t *testing.T) {
	inv, err := ServiceBootstrap(testProfile(), slurm.Overrides{}, BootstrapOptions{
		Port: 8501, App: "main.py", Workdir: "/nope",
	})
	if err != nil {
		t.Fatal(err)
	}
	cdIdx := strings.Index(inv.Command, "cd '/nope'")
	launchIdx := strings.Index(inv.Command, "streamlit run")
	if cdIdx < 0 || launchIdx < 0 || cdIdx > launchIdx {
		t.Fatalf("workdir check must precede launch:\n%s", inv.Command)
	}
	if !strings.Contains(inv.Command, "ls -la") {
		t.Fatalf("failure path should list the directory:\n%s", inv.Command)
	}
}

func TestSubmitBootstrapDirectivesAndSubmission(t *testing.T) {
	p := testProfile()
	p.Account = "proj42"
	inv, err := SubmitBootstrap(p, slurm.Overrides{Time: "04:00:00"}, BootstrapOptions{
		Port: 8501, Model: "gpt-oss:20b", App: "main.py", Workdir: "~/chat",
	})
	if err != nil {
		t.Fatal(err)
	}
	if inv.PTY {
		t.Fatal("submission must not request a pty")
	}
	for _, frag := range []string{
		"#!/bin/bash",
		"#SBATCH -p 'cpu'",
		"#SBATCH --account='proj42'",
		"#SBATCH --time='04:00:00'",
		"cat <<'HPCRUN_EOF'",
		"sbatch --parsable",
		"squeue -j $jid",
		"ssh -L 8501:<node>:8501",
	} {
		if !strings.Contains(inv.Command, frag) {
			t.Fatalf("missing %q in:\n%s", frag, inv.Command)
		}
	}
}

func TestSubmitBootstrapScriptNamesAreUnique(t *testing.T) {
	opts := BootstrapOptions{Port: 8501, App: "main.py"}
	a, err := SubmitBootstrap(testProfile(), slurm.Overrides{}, opts)
	if err != nil {
		t.Fatal(err)
	}
	b, err := SubmitBootstrap(testProfile(), slurm.Overrides{}, opts)
	if err != nil {
		t.Fatal(err)
	}
	if tempName(t, a.Command) == tempName(t, b.Command) {
		t.Fatalf("two submissions share a script name: %q", tempName(t, a.Command))
	}
}

func tempName(t *testing.T, cmd string) string {
	t.Helper()
	for _, line := range strings.Split(cmd, "\n") {
		if strings.HasPrefix(line, "JOBFILE=$(mktemp ") {
			return line
		}
	}
	t.Fatalf("no mktemp line in:\n%s", cmd)
	return ""
}
