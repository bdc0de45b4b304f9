// Package shellq is the single quoting primitive for every string that
// crosses into a remote shell. All command composition in this repo goes
// through Quote or Join; call sites must not hand-escape.
package shellq

import "strings"

// Quote wraps s in single quotes so a POSIX shell reads it back as one
// literal word. Embedded single quotes are closed, escaped, and reopened.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

// Join quotes each argument individually and joins them with spaces,
// preserving argv boundaries across the ssh word-splitting pass.
func Join(args []string) string {
	quoted := make([]string, 0, len(args))
	for _, a := range args {
		quoted = append(quoted, Quote(a))
	}
	return strings.Join(quoted, " ")
}
