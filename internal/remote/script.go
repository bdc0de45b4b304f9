package remote

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/mkravchenko/hpcchat/internal/cluster"
	"github.com/mkravchenko/hpcchat/internal/shellq"
	"github.com/mkravchenko/hpcchat/internal/slurm"
)

// BootstrapOptions parameterize the service-bootstrap shapes: which model
// to ensure on the compute node, which app file to launch, where, and on
// which port the tunnel should land.
type BootstrapOptions struct {
	Port    int
	Model   string
	App     string
	Workdir string
}

// ollamaHost is exported into the bootstrap environment so the app and the
// CLI tools talk to the daemon started on the compute node.
const ollamaHost = "http://127.0.0.1:11434"

// PlainCommand composes: cd (fail loud) → pre-commands → srun → payload.
// The payload arrives already quoted per-argument by the caller; quoting to
// survive the ssh boundary happens once, in the Runner.
func PlainCommand(p *cluster.Profile, ov slurm.Overrides, workdir, payload string) (Invocation, error) {
	srun, err := slurm.Compose(p, ov, slurm.Batch)
	if err != nil {
		return Invocation{}, err
	}
	return Invocation{
		Command: cdOrFail(workdir) + preamble(p.PreCommands) + srun + " " + payload,
		PTY:     false,
	}, nil
}

// InteractiveShell composes an allocation that drops the operator into a
// shell on the compute node.
func InteractiveShell(p *cluster.Profile, ov slurm.Overrides) (Invocation, error) {
	srun, err := slurm.Compose(p, ov, slurm.Interactive)
	if err != nil {
		return Invocation{}, err
	}
	return Invocation{
		Command: preamble(p.PreCommands) + srun + " bash",
		PTY:     true,
	}, nil
}

// ServiceBootstrap composes an interactive allocation whose payload is a
// generated script that, on the compute node:
//   - prints the allocated node and the exact local tunnel command,
//   - idempotently starts the inference daemon (tmux session when tmux is
//     available, else a detached nohup with a log file),
//   - optionally ensures the model is present (a failing probe means
//     "absent, pull it" and is never fatal),
//   - moves into the working directory (loud failure, exit 2),
//   - runs the app in the foreground on the requested port,
//   - drops into a shell afterwards so the operator can inspect logs.
func ServiceBootstrap(p *cluster.Profile, ov slurm.Overrides, opts BootstrapOptions) (Invocation, error) {
	srun, err := slurm.Compose(p, ov, slurm.Interactive)
	if err != nil {
		return Invocation{}, err
	}

	var b bytes.Buffer
	b.WriteString("set -e\n")
	b.WriteString("echo \"srun allocation successful.\"\n")
	b.WriteString("NODE=$(hostname -s || hostname)\n")
	b.WriteString("echo \"Allocated node: $NODE\"\n")
	b.WriteString("echo\n")
	b.WriteString("echo \">>> On your LOCAL machine, open another terminal and run this tunnel command:\"\n")
	fmt.Fprintf(&b, "echo \"ssh -L %d:$NODE:%d \"%s\n", opts.Port, opts.Port, shellq.Quote(p.User+"@"+p.Host))
	b.WriteString("echo\n")

	b.WriteString("if command -v tmux >/dev/null 2>&1; then\n")
	b.WriteString("  if tmux has-session -t ollama 2>/dev/null; then\n")
	b.WriteString("    echo \"[bootstrap] tmux session 'ollama' already exists.\"\n")
	b.WriteString("  else\n")
	b.WriteString("    echo \"[bootstrap] starting 'ollama serve' in tmux session 'ollama'...\"\n")
	b.WriteString("    tmux new -d -s ollama 'ollama serve'\n")
	b.WriteString("    sleep 1\n")
	b.WriteString("  fi\n")
	b.WriteString("else\n")
	b.WriteString("  echo \"[bootstrap] tmux not found; starting 'ollama serve' in background via nohup...\"\n")
	b.WriteString("  nohup sh -c 'ollama serve' > ~/ollama_server.log 2>&1 &\n")
	b.WriteString("  sleep 1\n")
	b.WriteString("fi\n")
	b.WriteString("export OLLAMA_HOST=" + ollamaHost + "\n")

	fmt.Fprintf(&b, "MODEL=%s\n", shellq.Quote(opts.Model))
	b.WriteString("if [ -n \"$MODEL\" ]; then\n")
	b.WriteString("  echo \"[bootstrap] ensuring model '$MODEL' is available (pull if missing)...\"\n")
	b.WriteString("  if ! ollama show \"$MODEL\" >/dev/null 2>&1; then\n")
	b.WriteString("    ollama pull \"$MODEL\"\n")
	b.WriteString("  fi\n")
	b.WriteString("fi\n")

	b.WriteString(cdOrFail(opts.Workdir))
	b.WriteString(preamble(p.PreCommands))
	b.WriteString("echo \"[bootstrap] CWD: $(pwd)\"\n")
	fmt.Fprintf(&b, "if [ ! -f %s ]; then\n", shellq.Quote(opts.App))
	fmt.Fprintf(&b, "  echo \"[bootstrap] ERROR: app file not found:\" %s >&2\n", shellq.Quote(opts.App))
	b.WriteString("  ls -la\n")
	b.WriteString("  exit 2\n")
	b.WriteString("fi\n")

	fmt.Fprintf(&b, "echo \"[bootstrap] launching app:\" %s \"on port %d\"\n", shellq.Quote(opts.App), opts.Port)
	b.WriteString("echo \"           (Press Ctrl+C to stop. Your tunnel should point to localhost:" +
		fmt.Sprintf("%d", opts.Port) + ")\"\n")
	b.WriteString(appLaunchLine(opts) + "\n")
	b.WriteString("exec bash\n")

	cmd := preamble(p.PreCommands) + srun + " bash -lc " + shellq.Quote(b.String())
	return Invocation{Command: cmd, PTY: true}, nil
}

// SubmitBootstrap composes the detached variant: the same bootstrap work as
// an sbatch script, written to a collision-resistant temp file on the remote
// host, submitted, and reported. Returns immediately; no pseudo-terminal.
func SubmitBootstrap(p *cluster.Profile, ov slurm.Overrides, opts BootstrapOptions) (Invocation, error) {
	directives, err := slurm.BatchDirectives(p, ov)
	if err != nil {
		return Invocation{}, err
	}

	var s bytes.Buffer
	s.WriteString("#!/bin/bash\n")
	s.WriteString(strings.Join(directives, "\n") + "\n")
	s.WriteString("set -e\n")
	for _, pre := range p.PreCommands {
		s.WriteString(pre + "\n")
	}
	s.WriteString(cdOrFail(opts.Workdir))
	if opts.Workdir != "" {
		s.WriteString("\n")
	}
	s.WriteString("export OLLAMA_HOST=" + ollamaHost + "\n")
	s.WriteString("ollama serve &\n")
	s.WriteString("sleep 2\n")
	if opts.Model != "" {
		fmt.Fprintf(&s, "if ! ollama show %s >/dev/null 2>&1; then\n", shellq.Quote(opts.Model))
		fmt.Fprintf(&s, "  ollama pull %s\n", shellq.Quote(opts.Model))
		s.WriteString("fi\n")
	}
	s.WriteString(appLaunchLine(opts) + "\n")

	// Random suffix keeps concurrent submissions from distinct operators
	// (or retries) from racing on the same file; mktemp adds its own
	// per-host entropy on top.
	jobTag := "hpcrun-job." + uuid.NewString()[:8]

	var b bytes.Buffer
	b.WriteString("set -e\n")
	fmt.Fprintf(&b, "JOBFILE=$(mktemp %q)\n", jobTag+".XXXXXX.sh")
	b.WriteString("cat <<'HPCRUN_EOF' > \"$JOBFILE\"\n")
	b.WriteString(s.String())
	b.WriteString("HPCRUN_EOF\n")
	b.WriteString("jid=$(sbatch --parsable \"$JOBFILE\")\n")
	b.WriteString("echo \"Submitted job $jid\"\n")
	b.WriteString("echo \"Check status with: squeue -j $jid\"\n")
	b.WriteString("echo \"Once RUNNING, find node with: squeue -h -j $jid -o %R\"\n")
	fmt.Fprintf(&b, "echo \"Then tunnel locally: ssh -L %d:<node>:%d \"%s\n", opts.Port, opts.Port, shellq.Quote(p.User+"@"+p.Host))

	return Invocation{Command: b.String(), PTY: false}, nil
}

// appLaunchLine starts the chat front-end app in the foreground, bound to
// the requested port on all interfaces so the tunnel can reach it.
func appLaunchLine(opts BootstrapOptions) string {
	return fmt.Sprintf("streamlit run %s --server.port %d --server.address 0.0.0.0 --server.headless true",
		shellq.Quote(opts.App), opts.Port)
}

// preamble joins pre-commands with an all-must-succeed conjunction. With no
// pre-commands the step disappears entirely rather than becoming an empty
// join.
func preamble(pre []string) string {
	if len(pre) == 0 {
		return ""
	}
	return strings.Join(pre, " && ") + " && "
}

// cdOrFail emits a working-directory change that fails loudly: descriptive
// message on stderr, a directory listing for orientation, exit code 2.
// An empty workdir elides the step and leaves the login directory in place.
func cdOrFail(workdir string) string {
	if workdir == "" {
		return ""
	}
	return fmt.Sprintf(`cd %s || { echo "[bootstrap] ERROR: workdir not found:" %s >&2; pwd; ls -la; exit 2; }; `,
		shellq.Quote(workdir), shellq.Quote(workdir))
}
