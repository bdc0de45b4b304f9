package chat

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	stateDirName  = ".hpcchat"
	stateFileName = "model_active"
)

// Tracker persists whether a model session is believed active, as a
// sentinel file under the state directory. The file content is the model
// name, so a later process can report what it found. The belief can go
// stale (crash, daemon killed remotely), which is why sessions reconcile
// at open instead of trusting the sentinel blindly.
type Tracker struct {
	path string
}

// NewTracker places the sentinel under ~/.hpcchat, creating the directory
// on first use. HPCCHAT_STATE_DIR overrides the location.
func NewTracker() (*Tracker, error) {
	dir := os.Getenv("HPCCHAT_STATE_DIR")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(home, stateDirName)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return &Tracker{path: filepath.Join(dir, stateFileName)}, nil
}

// Model returns the recorded model name and whether a session is marked
// active.
func (t *Tracker) Model() (string, bool) {
	b, err := os.ReadFile(t.path)
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(b)), true
}

// Activate marks a session active. Re-activating overwrites the model
// name and is not an error.
func (t *Tracker) Activate(model string) error {
	return os.WriteFile(t.path, []byte(model+"\n"), 0o600)
}

// Deactivate clears the sentinel. Clearing an already-clear state is a
// no-op, so shutdown paths can call it unconditionally.
func (t *Tracker) Deactivate() error {
	err := os.Remove(t.path)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}
