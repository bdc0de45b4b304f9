// Package remote builds the command strings handed to a remote shell and
// runs them over the ssh transport. Script builders produce an Invocation;
// the Runner consumes it. Nothing here keeps state between calls.
package remote

// Invocation is a fully composed remote command plus the transport mode it
// requires. It is a plain value: building one has no side effects.
type Invocation struct {
	Command string
	PTY     bool
}
