package types

import (
	"fmt"
	"strings"
	"time"
)

// Profile represents a Keeper Secrets Manager connection profile
type Profile struct {
	Name      string            `json:"name"`
	Config    map[string]string `json:"config"` // Encrypted KSM config
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// ProfileMetadata represents metadata about a profile
type ProfileMetadata struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Protocol selects the session type and the filter heuristic applied
// during resolution.
type Protocol string

const (
	ProtocolRDP Protocol = "rdp"
	ProtocolSSH Protocol = "ssh"
)

// ParseProtocol validates a protocol selector supplied on the command line.
func ParseProtocol(s string) (Protocol, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rdp":
		return ProtocolRDP, nil
	case "ssh":
		return ProtocolSSH, nil
	default:
		return "", fmt.Errorf("unknown protocol %q (expected rdp or ssh)", s)
	}
}

// SecretSummary represents basic information about a credential record
// returned by a backend search. Backend fields not listed here are dropped
// at the boundary.
type SecretSummary struct {
	UID      string `json:"uid"`
	Title    string `json:"title"`
	Username string `json:"username"`
}

// Credential is a resolved username/secret pair. It exists only between a
// successful fetch and the session launch that consumes it; it is never
// written to disk or to the audit log.
type Credential struct {
	Username string `json:"username"`
	Secret   string `json:"-"`
}

// String renders the credential with the secret redacted so it cannot leak
// through fmt verbs.
func (c Credential) String() string {
	return c.Username + ":****"
}

// GoString matches String so %#v stays redacted too.
func (c Credential) GoString() string {
	return c.String()
}

// Resolution is the outcome of narrowing a search term down to candidate
// records. Matches preserves backend return order.
type Resolution struct {
	Matches []SecretSummary `json:"matches"`
	// Fallback is set when the unfiltered retry, not the first filtered
	// pass, produced the matches.
	Fallback bool `json:"fallback,omitempty"`
}

// None reports whether resolution produced no candidates.
func (r Resolution) None() bool {
	return len(r.Matches) == 0
}

// Single returns the sole candidate when exactly one record matched.
func (r Resolution) Single() (SecretSummary, bool) {
	if len(r.Matches) == 1 {
		return r.Matches[0], true
	}
	return SecretSummary{}, false
}

// SessionRequest carries everything the dispatcher needs to launch one
// session. It is consumed exactly once.
type SessionRequest struct {
	Host       string
	Protocol   Protocol
	Credential Credential
}
