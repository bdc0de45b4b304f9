package llm

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "http://127.0.0.1:11434"
	DefaultModel   = "gpt-oss:20b"
)

type Config struct {
	BaseURL string
	Model   string

	// Effort is the reasoning-effort knob: "low", "medium" or "high".
	// Sampling() folds it together with Temperature into the final
	// sampling parameters.
	Effort      string
	Temperature float64

	SystemPrompt string

	Timeout time.Duration
}

// FromEnv builds a Config from the environment. OLLAMA_HOST matches what
// the daemon itself honors, so a tunnel exported for the remote bootstrap
// works for the local CLI unchanged.
func FromEnv() Config {
	return Config{
		BaseURL:      normalizeBaseURL(defaultEnv("OLLAMA_HOST", DefaultBaseURL)),
		Model:        defaultEnv("HPCCHAT_MODEL", DefaultModel),
		Effort:       strings.ToLower(defaultEnv("HPCCHAT_EFFORT", "medium")),
		Temperature:  parseFloatEnv("HPCCHAT_TEMPERATURE", 0.7),
		SystemPrompt: os.Getenv("HPCCHAT_SYSTEM"),
		Timeout:      parseDurationSecondsEnv("HPCCHAT_TIMEOUT_S", 300),
	}
}

// Sampling maps the effort knob onto (temperature, top_p). Low effort
// narrows sampling toward terse, direct answers; high effort widens it.
func (c Config) Sampling() (temperature, topP float64) {
	t := c.Temperature
	switch strings.ToLower(strings.TrimSpace(c.Effort)) {
	case "low":
		return max(0.1, t*0.6), 0.9
	case "high":
		return min(2.0, t*1.2), 1.0
	default:
		return t, 0.95
	}
}

// normalizeBaseURL accepts the host:port forms OLLAMA_HOST commonly carries
// and returns a full URL with scheme and no trailing slash.
func normalizeBaseURL(v string) string {
	v = strings.TrimRight(strings.TrimSpace(v), "/")
	if v == "" {
		return DefaultBaseURL
	}
	if !strings.Contains(v, "://") {
		v = "http://" + v
	}
	return v
}

func defaultEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func parseFloatEnv(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return fallback
	}
	return f
}

func parseDurationSecondsEnv(key string, fallbackSeconds int) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return time.Duration(fallbackSeconds) * time.Second
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return time.Duration(fallbackSeconds) * time.Second
	}
	return time.Duration(n) * time.Second
}
