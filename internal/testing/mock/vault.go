// Package mock provides an in-memory vault for exercising the resolution
// pipeline without a Keeper connection.
package mock

import (
	"fmt"
	"strings"
	"sync"

	"github.com/keeper-security/ksm-connect/internal/ksm"
	"github.com/keeper-security/ksm-connect/pkg/types"
)

// accessDeniedPassword is the password value the backend places in records
// the application is not allowed to read.
const accessDeniedPassword = "ACCESS_DENIED"

// Record is a simplified vault record for testing
type Record struct {
	UID      string
	Title    string
	Username string
	Password string
	URL      string
	Notes    string
}

// Vault holds records in insertion order so searches are deterministic.
type Vault struct {
	mu      sync.RWMutex
	records map[string]*Record
	order   []string
}

// NewVault creates a vault seeded with a small corporate estate: domain
// admin records with the usual firewall and restore noise, root accounts,
// a restricted record and a malformed one.
func NewVault() *Vault {
	v := &Vault{records: make(map[string]*Record)}

	for _, rec := range []Record{
		{UID: "UIDWEB01ADMIN0001", Title: "Domain Admin - webserver01", Username: "CORP\\admin", Password: "Adm1n-Web01!"},
		{UID: "UIDWEB01BACKUP002", Title: "webserver01 domain administrator (backup)", Username: "CORP\\backup-admin", Password: "B4ckup-Web01!"},
		{UID: "UIDWEB01FW0000003", Title: "Firewall admin - webserver01 domain", Username: "fw-admin", Password: "Fw-Web01!"},
		{UID: "UIDWEB01RESTORE04", Title: "Domain Admin restore - webserver01", Username: "CORP\\restore", Password: "Rst-Web01!"},
		{UID: "UIDAPP02ADMIN0005", Title: "Domain Admin - appserver02", Username: "CORP\\admin", Password: "Adm1n-App02!"},
		{UID: "UIDDB1ROOT0000006", Title: "db1 maintenance", Username: "root", Password: "R00t-Db1!"},
		{UID: "UIDDB1APP00000007", Title: "db1 application account", Username: "appsvc", Password: "App-Db1!"},
		{UID: "UIDJUMP01SVC00008", Title: "jumpbox01 deploy", Username: "linux-deploy", Password: "Jmp-01!"},
		{UID: "UIDVAULT99LOCK009", Title: "Domain Admin - vault99", Username: "CORP\\admin", Password: accessDeniedPassword},
		{UID: "UIDLEGACY01BAD010", Title: "Domain Admin - legacy01", Username: "", Password: "Leg4cy-01!"},
	} {
		v.Add(rec)
	}

	return v
}

// Add inserts or replaces a record.
func (v *Vault) Add(rec Record) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, exists := v.records[rec.UID]; !exists {
		v.order = append(v.order, rec.UID)
	}
	stored := rec
	v.records[rec.UID] = &stored
}

// Get returns a record by UID.
func (v *Vault) Get(uid string) (*Record, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	rec, ok := v.records[uid]
	return rec, ok
}

// Search returns records whose title, notes, username or URL contain the
// term, case-insensitively, in insertion order.
func (v *Vault) Search(term string) []*Record {
	v.mu.RLock()
	defer v.mu.RUnlock()

	termLower := strings.ToLower(term)
	var results []*Record
	for _, uid := range v.order {
		rec := v.records[uid]
		for _, field := range []string{rec.Title, rec.Notes, rec.Username, rec.URL} {
			if field != "" && strings.Contains(strings.ToLower(field), termLower) {
				results = append(results, rec)
				break
			}
		}
	}
	return results
}

// Client adapts a Vault to the search and credential interfaces the
// pipeline consumes, with the same error taxonomy as the real KSM client.
type Client struct {
	vault *Vault

	// SearchErr makes every search fail, for backend outage scenarios.
	SearchErr error
}

// NewClient creates a client over the vault.
func NewClient(vault *Vault) *Client {
	return &Client{vault: vault}
}

// Search returns summaries of records matching the term.
func (c *Client) Search(term string) ([]types.SecretSummary, error) {
	if c.SearchErr != nil {
		return nil, c.SearchErr
	}

	var summaries []types.SecretSummary
	for _, rec := range c.vault.Search(term) {
		summaries = append(summaries, types.SecretSummary{
			UID:      rec.UID,
			Title:    rec.Title,
			Username: rec.Username,
		})
	}
	return summaries, nil
}

// Lookup returns the summary of one record by UID.
func (c *Client) Lookup(uid string) (types.SecretSummary, error) {
	rec, ok := c.vault.Get(uid)
	if !ok {
		return types.SecretSummary{}, fmt.Errorf("secret %s: %w", uid, ksm.ErrSecretNotFound)
	}
	return types.SecretSummary{UID: rec.UID, Title: rec.Title, Username: rec.Username}, nil
}

// GetCredential returns the credential stored in a record, classified the
// way the real client classifies fetch failures.
func (c *Client) GetCredential(uid string) (types.Credential, error) {
	rec, ok := c.vault.Get(uid)
	if !ok {
		return types.Credential{}, fmt.Errorf("secret %s: %w", uid, ksm.ErrSecretNotFound)
	}
	if rec.Password == accessDeniedPassword {
		return types.Credential{}, fmt.Errorf("secret %s: %w", uid, ksm.ErrAccessDenied)
	}
	if rec.Username == "" || rec.Password == "" {
		return types.Credential{}, fmt.Errorf("secret %s: %w", uid, ksm.ErrMalformedSecret)
	}
	return types.Credential{Username: rec.Username, Secret: rec.Password}, nil
}
