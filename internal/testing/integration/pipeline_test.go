package integration

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/keeper-security/ksm-connect/internal/connect"
	"github.com/keeper-security/ksm-connect/internal/resolver"
	"github.com/keeper-security/ksm-connect/internal/testing/mock"
	"github.com/keeper-security/ksm-connect/internal/ui"
	"github.com/keeper-security/ksm-connect/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureLauncher records dispatch requests instead of spawning clients.
type captureLauncher struct {
	requests []types.SessionRequest
	err      error
}

func (c *captureLauncher) Dispatch(_ context.Context, req types.SessionRequest) error {
	c.requests = append(c.requests, req)
	return c.err
}

// pipeline wires the real resolver, selector and connector over the mock
// vault, scripting operator input and capturing operator output.
type pipeline struct {
	client    *mock.Client
	launcher  *captureLauncher
	connector *connect.Connector
	out       *bytes.Buffer
	prompts   *bytes.Buffer
}

func newPipeline(vault *mock.Vault, input string, opts connect.Options) *pipeline {
	p := &pipeline{
		client:   mock.NewClient(vault),
		launcher: &captureLauncher{},
		out:      &bytes.Buffer{},
		prompts:  &bytes.Buffer{},
	}

	opts.Out = p.out
	selector := ui.NewSelector(ui.Options{
		In:  strings.NewReader(input),
		Out: p.prompts,
	})

	p.connector = connect.NewConnector(resolver.New(p.client), selector, p.client, p.launcher, nil, opts)
	return p
}

func TestPipelineResolvesSingleAdminRecord(t *testing.T) {
	p := newPipeline(mock.NewVault(), "", connect.Options{Protocol: types.ProtocolRDP})

	summary := p.connector.ConnectAll(context.Background(), []string{"appserver02"})

	assert.Equal(t, connect.Summary{Launched: 1}, summary)
	assert.Empty(t, p.prompts.String(), "a single match must not prompt")

	require.Len(t, p.launcher.requests, 1)
	req := p.launcher.requests[0]
	assert.Equal(t, "appserver02", req.Host)
	assert.Equal(t, types.ProtocolRDP, req.Protocol)
	assert.Equal(t, "CORP\\admin", req.Credential.Username)
	assert.Equal(t, "Adm1n-App02!", req.Credential.Secret)
}

func TestPipelinePromptsOnAmbiguity(t *testing.T) {
	p := newPipeline(mock.NewVault(), "2\n", connect.Options{Protocol: types.ProtocolRDP})

	summary := p.connector.ConnectAll(context.Background(), []string{"webserver01"})

	assert.Equal(t, connect.Summary{Launched: 1}, summary)

	// The prompt lists only the qualifying admin records, in vault order
	promptText := p.prompts.String()
	assert.Contains(t, promptText, "Domain Admin - webserver01")
	assert.Contains(t, promptText, "webserver01 domain administrator (backup)")
	assert.NotContains(t, promptText, "Firewall", "firewall records are filtered out")
	assert.NotContains(t, promptText, "restore", "restore records are filtered out")

	require.Len(t, p.launcher.requests, 1)
	assert.Equal(t, "CORP\\backup-admin", p.launcher.requests[0].Credential.Username)
}

func TestPipelineAutoSelectsRootForSSH(t *testing.T) {
	p := newPipeline(mock.NewVault(), "", connect.Options{Protocol: types.ProtocolSSH})

	summary := p.connector.ConnectAll(context.Background(), []string{"db1"})

	assert.Equal(t, connect.Summary{Launched: 1}, summary)
	assert.Empty(t, p.prompts.String(), "the application account is filtered, leaving one root record")

	require.Len(t, p.launcher.requests, 1)
	req := p.launcher.requests[0]
	assert.Equal(t, types.ProtocolSSH, req.Protocol)
	assert.Equal(t, "root", req.Credential.Username)
	assert.Equal(t, "R00t-Db1!", req.Credential.Secret)
}

func TestPipelineFallsBackWhenFilterEmpties(t *testing.T) {
	p := newPipeline(mock.NewVault(), "", connect.Options{Protocol: types.ProtocolRDP})

	summary := p.connector.ConnectAll(context.Background(), []string{"jumpbox01"})

	assert.Equal(t, connect.Summary{Launched: 1}, summary,
		"a host without admin records still resolves through the unfiltered retry")

	require.Len(t, p.launcher.requests, 1)
	assert.Equal(t, "linux-deploy", p.launcher.requests[0].Credential.Username)
}

func TestPipelineShowAllPresentsEverything(t *testing.T) {
	p := newPipeline(mock.NewVault(), "3\n", connect.Options{Protocol: types.ProtocolRDP, ShowAll: true})

	summary := p.connector.ConnectAll(context.Background(), []string{"webserver01"})

	assert.Equal(t, connect.Summary{Launched: 1}, summary)
	assert.Contains(t, p.prompts.String(), "Firewall", "show-all skips the admin filter")

	require.Len(t, p.launcher.requests, 1)
	assert.Equal(t, "fw-admin", p.launcher.requests[0].Credential.Username)
}

func TestPipelineExplicitUIDBypassesSearch(t *testing.T) {
	p := newPipeline(mock.NewVault(), "", connect.Options{
		Protocol:  types.ProtocolSSH,
		SecretUID: "UIDDB1ROOT0000006",
	})

	summary := p.connector.ConnectAll(context.Background(), []string{"10.20.30.40"})

	assert.Equal(t, connect.Summary{Launched: 1}, summary,
		"an explicit UID connects hosts the search would never match")

	require.Len(t, p.launcher.requests, 1)
	assert.Equal(t, "10.20.30.40", p.launcher.requests[0].Host)
	assert.Equal(t, "root", p.launcher.requests[0].Credential.Username)
}

func TestPipelineRestrictedRecordSkipsHostOnly(t *testing.T) {
	p := newPipeline(mock.NewVault(), "", connect.Options{Protocol: types.ProtocolRDP})

	summary := p.connector.ConnectAll(context.Background(), []string{"vault99", "appserver02"})

	assert.Equal(t, connect.Summary{Launched: 1, Failed: 1}, summary)
	assert.Contains(t, p.out.String(), "credential found but inaccessible")

	require.Len(t, p.launcher.requests, 1)
	assert.Equal(t, "appserver02", p.launcher.requests[0].Host)
}

func TestPipelineMalformedRecordWarns(t *testing.T) {
	p := newPipeline(mock.NewVault(), "", connect.Options{Protocol: types.ProtocolRDP})

	summary := p.connector.ConnectAll(context.Background(), []string{"legacy01"})

	assert.Equal(t, connect.Summary{Failed: 1}, summary)
	assert.Contains(t, p.out.String(), "credential found but inaccessible")
	assert.Empty(t, p.launcher.requests)
}

func TestPipelineUnknownHostWarns(t *testing.T) {
	p := newPipeline(mock.NewVault(), "", connect.Options{Protocol: types.ProtocolRDP})

	summary := p.connector.ConnectAll(context.Background(), []string{"ghost99"})

	assert.Equal(t, connect.Summary{Failed: 1}, summary)
	assert.Contains(t, p.out.String(), `no credential found for "ghost99"`)
	assert.Empty(t, p.launcher.requests)
}

func TestPipelineBackendOutageDegrades(t *testing.T) {
	p := newPipeline(mock.NewVault(), "", connect.Options{Protocol: types.ProtocolRDP})
	p.client.SearchErr = errors.New("vault unreachable")

	summary := p.connector.ConnectAll(context.Background(), []string{"webserver01"})

	assert.Equal(t, connect.Summary{Failed: 1}, summary)
	assert.Contains(t, p.out.String(), "no credential found")
	assert.Contains(t, p.out.String(), "vault unreachable")
	assert.Empty(t, p.launcher.requests)
}

func TestPipelineInvalidSelectionFailsWithoutRetry(t *testing.T) {
	p := newPipeline(mock.NewVault(), "9\n", connect.Options{Protocol: types.ProtocolRDP})

	summary := p.connector.ConnectAll(context.Background(), []string{"webserver01"})

	assert.Equal(t, connect.Summary{Failed: 1}, summary)
	assert.Contains(t, p.out.String(), "selection failed")
	assert.Empty(t, p.launcher.requests)
}

func TestPipelineSecretsNeverReachOperatorOutput(t *testing.T) {
	p := newPipeline(mock.NewVault(), "1\n", connect.Options{Protocol: types.ProtocolRDP})

	p.connector.ConnectAll(context.Background(), []string{"webserver01", "appserver02", "vault99"})

	combined := p.out.String() + p.prompts.String()
	for _, secret := range []string{"Adm1n-Web01!", "B4ckup-Web01!", "Adm1n-App02!"} {
		assert.NotContains(t, combined, secret)
	}
}
