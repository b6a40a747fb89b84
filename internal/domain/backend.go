package domain

import "fmt"

// Backend selects which completion provider answers a prompt.
type Backend string

const (
	BackendLocal  Backend = "local"
	BackendRemote Backend = "remote"
)

// DefaultMaxTokens bounds every generated reply.
const DefaultMaxTokens = 50

func ParseBackend(s string) (Backend, error) {
	switch Backend(s) {
	case BackendLocal, BackendRemote:
		return Backend(s), nil
	default:
		return "", fmt.Errorf("unknown generator backend %q (want %q or %q)", s, BackendLocal, BackendRemote)
	}
}
