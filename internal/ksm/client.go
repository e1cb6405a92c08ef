// Package ksm adapts the Keeper Secrets Manager SDK to connection
// resolution: free-text search over vault records, summary lookup by
// UID, and credential retrieval with classified outcomes.
package ksm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/keeper-security/ksm-connect/internal/audit"
	"github.com/keeper-security/ksm-connect/internal/validation"
	"github.com/keeper-security/ksm-connect/pkg/types"
	sm "github.com/keeper-security/secrets-manager-go/core"
)

// Fetch outcomes. Callers test these with errors.Is; all three mean
// "give up on this record", never "give up on the run".
var (
	ErrSecretNotFound  = errors.New("secret not found")
	ErrAccessDenied    = errors.New("access to secret denied")
	ErrMalformedSecret = errors.New("secret is missing username or password")
)

// accessDeniedValue is the placeholder the vault stores in place of a
// password the caller may list but not read.
const accessDeniedValue = "ACCESS_DENIED"

// Client wraps the KSM SDK client
type Client struct {
	sm        *sm.SecretsManager
	profile   string
	validator *validation.Validator
	logger    *audit.Logger
}

// NewClient creates a new KSM client with the provided configuration
func NewClient(profile *types.Profile, logger *audit.Logger) (*Client, error) {
	if profile == nil {
		return nil, errors.New("profile cannot be nil")
	}

	// Create memory storage from profile config
	storage := sm.NewMemoryKeyValueStorage(profile.Config)

	// Create client options
	options := &sm.ClientOptions{
		Config: storage,
	}

	// Create secrets manager client
	smClient := sm.NewSecretsManager(options)
	if smClient == nil {
		return nil, errors.New("failed to create secrets manager client")
	}

	return &Client{
		sm:        smClient,
		profile:   profile.Name,
		validator: validation.NewValidator(),
		logger:    logger,
	}, nil
}

// InitializeWithToken initializes a new KSM configuration with a one-time token
func InitializeWithToken(token string) (map[string]string, error) {
	validator := validation.NewValidator()
	if err := validator.ValidateToken(token); err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	// Initialize with one-time token
	storage := sm.NewMemoryKeyValueStorage()
	options := &sm.ClientOptions{
		Token:  token,
		Config: storage,
	}

	client := sm.NewSecretsManager(options)
	if client == nil {
		return nil, errors.New("failed to create secrets manager client")
	}

	// Initialize client to exchange token for config
	if _, err := client.GetSecrets([]string{}); err != nil {
		return nil, fmt.Errorf("failed to initialize with token: %w", err)
	}

	// Extract configuration
	config := make(map[string]string)
	keys := []string{"clientId", "privateKey", "appKey", "hostname"}

	// Get storage data and extract fields
	storageData := storage.ReadStorage()
	for _, key := range keys {
		if value, exists := storageData[key]; exists {
			if strValue, ok := value.(string); ok {
				config[key] = strValue
			}
		}
	}

	if len(config) == 0 {
		return nil, errors.New("failed to retrieve configuration from token")
	}

	return config, nil
}

// InitializeWithConfig validates an existing KSM configuration
func InitializeWithConfig(configData []byte) (map[string]string, error) {
	var config map[string]string
	if err := json.Unmarshal(configData, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Validate required fields
	requiredFields := []string{"clientId", "privateKey", "appKey"}
	for _, field := range requiredFields {
		if _, exists := config[field]; !exists {
			return nil, fmt.Errorf("missing required field: %s", field)
		}
	}

	// Test configuration by creating a client
	storage := sm.NewMemoryKeyValueStorage(config)
	options := &sm.ClientOptions{
		Config: storage,
	}

	testClient := sm.NewSecretsManager(options)
	if testClient == nil {
		return nil, errors.New("failed to create client with provided config")
	}

	return config, nil
}

// Search returns a summary for every record whose title, notes, login
// or address-like field contains term (case-insensitive). The backend
// exposes no server-side text search, so all records visible to the
// profile are fetched and matched here.
func (c *Client) Search(term string) ([]types.SecretSummary, error) {
	if err := c.validator.ValidateSearchQuery(term); err != nil {
		return nil, fmt.Errorf("invalid search term: %w", err)
	}

	records, err := c.sm.GetSecrets([]string{})
	if err != nil {
		c.logError("ksm", err, map[string]interface{}{
			"operation": "search",
		})
		return nil, fmt.Errorf("failed to search secrets: %w", err)
	}

	termLower := strings.ToLower(term)
	var results []types.SecretSummary
	for _, record := range records {
		if recordMatches(record, termLower) {
			results = append(results, c.summarize(record))
		}
	}

	return results, nil
}

// recordMatches reports whether any searchable part of the record
// contains the lowercased term.
func recordMatches(record *sm.Record, termLower string) bool {
	if strings.Contains(strings.ToLower(record.Title()), termLower) {
		return true
	}

	if notes := record.Notes(); notes != "" {
		if strings.Contains(strings.ToLower(notes), termLower) {
			return true
		}
	}

	fieldTypes := []string{"login", "url", "hostname", "address"}
	for _, fieldType := range fieldTypes {
		if value := record.GetFieldValueByType(fieldType); value != "" {
			if strings.Contains(strings.ToLower(value), termLower) {
				return true
			}
		}
	}

	return false
}

// Lookup fetches the summary of a single record by UID.
func (c *Client) Lookup(uid string) (types.SecretSummary, error) {
	if err := c.validator.ValidateUID(uid); err != nil {
		return types.SecretSummary{}, fmt.Errorf("invalid UID: %w", err)
	}

	records, err := c.sm.GetSecrets([]string{uid})
	if err != nil {
		c.logError("ksm", err, map[string]interface{}{
			"operation": "lookup",
			"uid":       uid,
		})
		return types.SecretSummary{}, fmt.Errorf("failed to look up secret: %w", err)
	}
	if len(records) == 0 {
		return types.SecretSummary{}, fmt.Errorf("secret %s: %w", uid, ErrSecretNotFound)
	}

	// Shared records can come back more than once; every copy is the
	// same record, so use the first.
	return c.summarize(records[0]), nil
}

// GetCredential retrieves the username and password stored in a record
// and classifies the outcome. The returned credential must not outlive
// the connection attempt it was fetched for.
func (c *Client) GetCredential(uid string) (types.Credential, error) {
	if err := c.validator.ValidateUID(uid); err != nil {
		return types.Credential{}, fmt.Errorf("invalid UID: %w", err)
	}

	records, err := c.sm.GetSecrets([]string{uid})
	if err != nil {
		c.logError("ksm", err, map[string]interface{}{
			"operation": "get_credential",
			"uid":       uid,
		})
		return types.Credential{}, fmt.Errorf("failed to get secret: %w", err)
	}
	if len(records) == 0 {
		return types.Credential{}, fmt.Errorf("secret %s: %w", uid, ErrSecretNotFound)
	}

	record := records[0]
	login := record.GetFieldValueByType("login")

	// Password() covers login-type records; other record types keep
	// the password in a typed field value.
	secret := record.Password()
	if secret == "" {
		if values := record.GetFieldValuesByType("password"); len(values) > 0 {
			secret = values[0]
		}
	}

	return credentialFromValues(uid, login, secret)
}

// credentialFromValues classifies the raw login and password values of
// a record into a usable credential or a fetch error.
func credentialFromValues(uid, login, secret string) (types.Credential, error) {
	if secret == accessDeniedValue {
		return types.Credential{}, fmt.Errorf("secret %s: %w", uid, ErrAccessDenied)
	}
	if login == "" || secret == "" {
		return types.Credential{}, fmt.Errorf("secret %s: %w", uid, ErrMalformedSecret)
	}

	return types.Credential{Username: login, Secret: secret}, nil
}

// summarize maps an SDK record onto the fields resolution cares about.
// Anything else the record carries is dropped at this boundary. Titles
// and logins are vault data headed for the operator's terminal, so
// control characters are stripped here.
func (c *Client) summarize(record *sm.Record) types.SecretSummary {
	return types.SecretSummary{
		UID:      record.Uid,
		Title:    c.validator.SanitizeString(record.Title()),
		Username: c.validator.SanitizeString(record.GetFieldValueByType("login")),
	}
}

// TestConnection tests the KSM connection
func (c *Client) TestConnection() error {
	// Try to get secrets to test connection
	_, err := c.sm.GetSecrets([]string{})
	if err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}

	return nil
}

// logError handles the nil logger case for clients built without audit
func (c *Client) logError(source string, err error, details map[string]interface{}) {
	if c.logger != nil {
		c.logger.LogError(source, err, details)
	}
}
