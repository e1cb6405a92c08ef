package ksm

import (
	"errors"
	"testing"
	"time"

	"github.com/keeper-security/ksm-connect/internal/audit"
	"github.com/keeper-security/ksm-connect/internal/validation"
	"github.com/keeper-security/ksm-connect/pkg/types"
)

func TestCredentialFromValues(t *testing.T) {
	tests := []struct {
		name    string
		login   string
		secret  string
		wantErr error
	}{
		{"valid credential", "admin", "hunter2", nil},
		{"access denied placeholder", "admin", accessDeniedValue, ErrAccessDenied},
		{"missing login", "", "hunter2", ErrMalformedSecret},
		{"missing password", "admin", "", ErrMalformedSecret},
		{"missing both", "", "", ErrMalformedSecret},
		// The placeholder is an exact agreed value; anything else in
		// the password field is treated as a real password.
		{"lowercase lookalike", "admin", "access_denied", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cred, err := credentialFromValues("uid-123", tt.login, tt.secret)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Expected %v, got %v", tt.wantErr, err)
				}
				if cred.Secret != "" {
					t.Error("Failed classification must not return a secret")
				}
				return
			}

			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if cred.Username != tt.login || cred.Secret != tt.secret {
				t.Errorf("Credential mismatch: got %s", cred)
			}
		})
	}
}

func TestFetchErrorsAreDistinct(t *testing.T) {
	fetchErrors := []error{ErrSecretNotFound, ErrAccessDenied, ErrMalformedSecret}
	for i, err := range fetchErrors {
		for j, other := range fetchErrors {
			if i != j && errors.Is(err, other) {
				t.Errorf("%v should not match %v", err, other)
			}
		}
	}
}

func TestInitializeWithToken(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{"valid US token", "US:abcdef123456789012345678901234567890", false},
		{"valid EU token", "EU:abcdef123456789012345678901234567890", false},
		{"invalid token", "invalid", true},
		{"empty token", "", true},
		{"no region", "abcdef123456789012345678901234567890", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Note: This test will fail without a real KSM backend
			// In production, we'd use a mock or test server
			config, err := InitializeWithToken(tt.token)

			if tt.wantErr {
				if err == nil {
					t.Error("Expected error but got none")
				}
			} else {
				// Skip success case as it requires real KSM
				t.Skip("Requires real KSM connection")
			}

			_ = config // Suppress unused variable warning
		})
	}
}

func TestInitializeWithConfig(t *testing.T) {
	tests := []struct {
		name       string
		configJSON string
		wantErr    bool
	}{
		{
			"valid config",
			`{"clientId": "test123", "privateKey": "key123", "appKey": "app123"}`,
			false,
		},
		{
			"missing clientId",
			`{"privateKey": "key123", "appKey": "app123"}`,
			true,
		},
		{
			"invalid json",
			`{invalid json}`,
			true,
		},
		{
			"empty config",
			`{}`,
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config, err := InitializeWithConfig([]byte(tt.configJSON))

			if tt.wantErr {
				if err == nil {
					t.Error("Expected error but got none")
				}
			} else {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
				}
				if config == nil {
					t.Error("Expected config but got nil")
				}
			}
		})
	}
}

func TestNewClient(t *testing.T) {
	// Create test logger
	logConfig := audit.Config{
		FilePath: t.TempDir() + "/test.log",
		MaxSize:  1024,
		MaxAge:   time.Hour,
	}
	logger, err := audit.NewLogger(logConfig)
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Close()

	tests := []struct {
		name    string
		profile *types.Profile
		wantErr bool
	}{
		{
			"valid profile",
			&types.Profile{
				Name: "test",
				Config: map[string]string{
					"clientId":   "test123",
					"privateKey": "key123",
					"appKey":     "app123",
				},
			},
			false,
		},
		{
			"nil profile",
			nil,
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.profile, logger)

			if tt.wantErr {
				if err == nil {
					t.Error("Expected error but got none")
				}
			} else {
				// Skip success case as it may fail without real KSM
				if err != nil {
					t.Logf("Client creation failed (expected without real KSM): %v", err)
				}
				if client != nil && client.profile != tt.profile.Name {
					t.Errorf("Expected profile name %s, got %s", tt.profile.Name, client.profile)
				}
			}
		})
	}
}

// Validation failures return before the SDK is touched, so a client
// with no backend is enough for these.
func TestSearchRejectsInvalidTerm(t *testing.T) {
	client := &Client{validator: validation.NewValidator()}

	tests := []struct {
		name string
		term string
	}{
		{"empty term", ""},
		{"term with null byte", "web\x00server"},
		{"term with newline", "web\nserver"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := client.Search(tt.term); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestLookupRejectsInvalidUID(t *testing.T) {
	client := &Client{validator: validation.NewValidator()}

	if _, err := client.Lookup("not a uid"); err == nil {
		t.Error("Expected validation error")
	}
	if _, err := client.GetCredential("short"); err == nil {
		t.Error("Expected validation error")
	}
}
