package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/mkravchenko/hpcchat/internal/cluster"
	"github.com/mkravchenko/hpcchat/internal/shellq"
)

// ErrTransportUnavailable means the ssh client binary is not installed or
// not on PATH. Callers map it to their "missing tool" exit code.
var ErrTransportUnavailable = errors.New(`transport "ssh" not found in PATH`)

// Runner executes composed invocations through the local ssh client,
// streaming the child's stdio verbatim. The zero value is unusable; call
// NewRunner for one bound to the process streams.
type Runner struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

func NewRunner() *Runner {
	return &Runner{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}
}

// SSHArgs assembles the argument vector for the ssh client. Authentication
// mode is decided here: a configured key that actually exists on disk
// selects strict batch mode, anything else falls back to interactive
// authentication so the operator can type a password or OTP.
func SSHArgs(p *cluster.Profile, inv Invocation) []string {
	args := []string{"-o", "StrictHostKeyChecking=accept-new"}
	if p.IdentityFile != "" && fileExists(p.IdentityFile) {
		args = append(args, "-i", p.IdentityFile, "-o", "BatchMode=yes")
	} else {
		args = append(args,
			"-o", "BatchMode=no",
			"-o", "PreferredAuthentications=publickey,keyboard-interactive,password",
		)
	}
	if inv.PTY {
		args = append(args, "-tt")
	}
	args = append(args, p.User+"@"+p.Host, "bash -lc "+shellq.Quote(inv.Command))
	return args
}

// Run executes the invocation on the profile's login node and returns the
// remote exit code unmodified. A missing ssh binary yields 127 and
// ErrTransportUnavailable before anything touches the network.
func (r *Runner) Run(ctx context.Context, p *cluster.Profile, inv Invocation) (int, error) {
	if _, err := exec.LookPath("ssh"); err != nil {
		return 127, ErrTransportUnavailable
	}
	cmd := exec.CommandContext(ctx, "ssh", SSHArgs(p, inv)...)
	return r.stream(cmd)
}

// RunLocal executes argv on this machine with the same streaming and
// exit-code contract as Run. Used when no cluster profile is selected.
func (r *Runner) RunLocal(ctx context.Context, argv []string) (int, error) {
	if len(argv) == 0 {
		return 2, errors.New("no command specified")
	}
	if _, err := exec.LookPath(argv[0]); err != nil {
		return 127, fmt.Errorf("executable not found: %s", argv[0])
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	return r.stream(cmd)
}

// stream runs the child attached to the Runner's stdio, forwarding SIGINT
// and SIGTERM so an operator interrupt reaches the remote process group
// through the pty instead of killing only the local client. The child's
// exit code passes through untouched.
func (r *Runner) stream(cmd *exec.Cmd) (int, error) {
	cmd.Stdin = r.Stdin
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr

	if err := cmd.Start(); err != nil {
		return 1, err
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case s := <-sigc:
				_ = cmd.Process.Signal(s)
			case <-done:
				return
			}
		}
	}()

	err := cmd.Wait()
	close(done)
	signal.Stop(sigc)

	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return 1, err
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
