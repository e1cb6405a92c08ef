// Package resolver narrows a fuzzy host identifier down to vault
// secrets usable for an interactive session. Candidates come back from
// a free-text backend search and pass through a protocol-aware filter;
// the default RDP path retries unfiltered when the filter keeps
// nothing, so a host with no dedicated domain-admin record can still
// resolve to a general device credential.
package resolver

import (
	"fmt"
	"strings"

	"github.com/keeper-security/ksm-connect/pkg/types"
)

// SecretSearcher is the slice of the vault client resolution needs.
type SecretSearcher interface {
	Search(term string) ([]types.SecretSummary, error)
	Lookup(uid string) (types.SecretSummary, error)
}

// Request carries the resolution inputs for one host. Requests are
// built fresh per host and never reused.
type Request struct {
	Host      string
	Protocol  types.Protocol
	Term      string // search term; Host is searched when empty
	SecretUID string // explicit record UID; skips searching entirely
	ShowAll   bool   // disable the domain-admin title filter
}

// Resolver runs the staged search strategy against a vault backend.
type Resolver struct {
	searcher SecretSearcher
}

// New creates a resolver over the given backend.
func New(searcher SecretSearcher) *Resolver {
	return &Resolver{searcher: searcher}
}

// stage is one pass of the strategy: a backend query followed by a
// candidate filter. A nil filter keeps every candidate.
type stage struct {
	name   string
	filter func(types.SecretSummary) bool
}

// stagesFor returns the stages attempted for a protocol, in order. A
// later stage runs only when the earlier ones kept nothing.
func stagesFor(protocol types.Protocol, showAll bool) []stage {
	switch {
	case protocol == types.ProtocolSSH:
		// No unfiltered retry for SSH. An empty filtered set is a
		// final no-match.
		return []stage{
			{name: "ssh-user", filter: matchesSSHUser},
		}
	case showAll:
		return []stage{
			{name: "unfiltered"},
		}
	default:
		return []stage{
			{name: "domain-admin", filter: matchesDomainAdmin},
			{name: "unfiltered"},
		}
	}
}

// Resolve turns one request into the candidate set for that host.
//
// An explicit SecretUID is looked up directly and never searched. A
// backend failure returns a zero-candidate resolution with the error;
// callers are expected to warn and move on rather than abort the run.
func (r *Resolver) Resolve(req Request) (types.Resolution, error) {
	if req.SecretUID != "" {
		summary, err := r.searcher.Lookup(req.SecretUID)
		if err != nil {
			return types.Resolution{}, fmt.Errorf("lookup %s: %w", req.SecretUID, err)
		}
		return types.Resolution{Matches: []types.SecretSummary{summary}}, nil
	}

	term := req.Term
	if term == "" {
		term = req.Host
	}

	for i, st := range stagesFor(req.Protocol, req.ShowAll) {
		candidates, err := r.searcher.Search(term)
		if err != nil {
			return types.Resolution{}, fmt.Errorf("%s search for %q: %w", st.name, term, err)
		}

		if kept := applyFilter(candidates, st.filter); len(kept) > 0 {
			return types.Resolution{Matches: kept, Fallback: i > 0}, nil
		}
	}

	return types.Resolution{}, nil
}

// domainAdminExclusions are title words that follow the domain-admin
// naming convention but belong to records unusable for an interactive
// desktop session (network gear and restore credentials).
var domainAdminExclusions = []string{"firewall", "switch", "vpn", "restore"}

// matchesDomainAdmin retains domain administrator records by title.
func matchesDomainAdmin(s types.SecretSummary) bool {
	title := strings.ToLower(s.Title)
	if !strings.Contains(title, "domain") || !strings.Contains(title, "admin") {
		return false
	}
	for _, word := range domainAdminExclusions {
		if strings.Contains(title, word) {
			return false
		}
	}
	return true
}

// matchesSSHUser retains unix-flavored records: the stored username
// must contain "root" or "linux".
func matchesSSHUser(s types.SecretSummary) bool {
	username := strings.ToLower(s.Username)
	return strings.Contains(username, "root") || strings.Contains(username, "linux")
}

// applyFilter keeps candidates passing the filter, preserving backend
// order.
func applyFilter(candidates []types.SecretSummary, filter func(types.SecretSummary) bool) []types.SecretSummary {
	if filter == nil {
		return candidates
	}

	var kept []types.SecretSummary
	for _, c := range candidates {
		if filter(c) {
			kept = append(kept, c)
		}
	}
	return kept
}
