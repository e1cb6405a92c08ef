// Package connect drives the per-host connection pipeline: resolve a
// fuzzy identifier to one vault secret, collapse ambiguity through the
// operator, fetch the credential, dispatch the session. Hosts are
// processed strictly one at a time; a failed host is warned about and
// never stops the rest of the batch.
package connect

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/keeper-security/ksm-connect/internal/audit"
	"github.com/keeper-security/ksm-connect/internal/ksm"
	"github.com/keeper-security/ksm-connect/internal/resolver"
	"github.com/keeper-security/ksm-connect/pkg/types"
)

// Options fixes the run-wide inputs shared by every host in a batch.
type Options struct {
	Protocol  types.Protocol
	Term      string // optional search term; each host is its own term when empty
	SecretUID string // optional explicit record UID
	ShowAll   bool
	Profile   string    // profile name, for audit context
	Out       io.Writer // operator messages; defaults to os.Stdout
}

// Summary counts per-host outcomes of one run.
type Summary struct {
	Launched int
	Failed   int
}

// Connector wires the pipeline stages together.
type Connector struct {
	resolver Resolver
	picker   Picker
	creds    CredentialSource
	launcher SessionLauncher
	logger   *audit.Logger
	opts     Options
	out      io.Writer
}

// NewConnector creates a connector over the given stages.
func NewConnector(res Resolver, picker Picker, creds CredentialSource, launcher SessionLauncher, logger *audit.Logger, opts Options) *Connector {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	return &Connector{
		resolver: res,
		picker:   picker,
		creds:    creds,
		launcher: launcher,
		logger:   logger,
		opts:     opts,
		out:      out,
	}
}

// ConnectAll runs the pipeline for each host in input order. Every
// failure is reported as a warning for that host alone; the returned
// summary tells the caller how the batch went.
func (c *Connector) ConnectAll(ctx context.Context, hosts []string) Summary {
	var summary Summary

	for _, host := range hosts {
		select {
		case <-ctx.Done():
			return summary
		default:
		}

		if err := c.connectHost(ctx, host); err != nil {
			summary.Failed++
			fmt.Fprintf(c.out, "⚠️  %s: %v\n", host, err)
			continue
		}
		summary.Launched++
	}

	return summary
}

// connectHost walks one host through resolve, pick, fetch, dispatch.
// The returned error is the operator-facing diagnostic for the host.
func (c *Connector) connectHost(ctx context.Context, host string) error {
	correlationID := uuid.NewString()

	req := resolver.Request{
		Host:      host,
		Protocol:  c.opts.Protocol,
		Term:      c.opts.Term,
		SecretUID: c.opts.SecretUID,
		ShowAll:   c.opts.ShowAll,
	}

	term := c.opts.Term
	if term == "" {
		term = host
	}
	if c.opts.SecretUID != "" {
		term = c.opts.SecretUID
	}

	res, err := c.resolver.Resolve(req)
	c.logResolution(term, len(res.Matches), res.Fallback, correlationID)
	if err != nil {
		return fmt.Errorf("no credential found (%v)", err)
	}
	if res.None() {
		return fmt.Errorf("no credential found for %q", term)
	}

	chosen, single := res.Single()
	uid := chosen.UID
	if !single {
		picked, err := c.picker.Pick(ctx, res.Matches)
		c.logSelection(picked, len(res.Matches), err == nil, correlationID)
		if err != nil {
			return fmt.Errorf("selection failed: %v", err)
		}
		uid = picked
	}

	cred, err := c.creds.GetCredential(uid)
	c.logSecretAccess(uid, err == nil, correlationID, err)
	if err != nil {
		switch {
		case errors.Is(err, ksm.ErrSecretNotFound):
			return fmt.Errorf("credential not found: %v", err)
		case errors.Is(err, ksm.ErrAccessDenied), errors.Is(err, ksm.ErrMalformedSecret):
			return fmt.Errorf("credential found but inaccessible: %v", err)
		default:
			return fmt.Errorf("credential fetch failed: %v", err)
		}
	}

	launchErr := c.launcher.Dispatch(ctx, types.SessionRequest{
		Host:       host,
		Protocol:   c.opts.Protocol,
		Credential: cred,
	})
	c.logLaunch(host, launchErr == nil, correlationID, launchErr)
	if launchErr != nil {
		return fmt.Errorf("launcher failed: %v", launchErr)
	}

	fmt.Fprintf(c.out, "✅ %s: %s session launched as %s\n", host, c.opts.Protocol, cred.Username)
	return nil
}

// Audit helpers tolerate a nil logger so tests and dry wiring can skip
// the trail.

func (c *Connector) logResolution(term string, matches int, fallback bool, correlationID string) {
	if c.logger != nil {
		c.logger.LogResolution(c.opts.Profile, term, string(c.opts.Protocol), matches, fallback, correlationID)
	}
}

func (c *Connector) logSelection(uid string, candidates int, accepted bool, correlationID string) {
	if c.logger != nil {
		c.logger.LogSelection(c.opts.Profile, uid, candidates, accepted, correlationID)
	}
}

func (c *Connector) logSecretAccess(uid string, allowed bool, correlationID string, err error) {
	if c.logger != nil {
		c.logger.LogSecretAccess(uid, c.opts.Profile, allowed, err, correlationID)
	}
}

func (c *Connector) logLaunch(host string, success bool, correlationID string, err error) {
	if c.logger != nil {
		c.logger.LogSessionLaunch(host, string(c.opts.Protocol), c.opts.Profile, success, err, correlationID)
	}
}
