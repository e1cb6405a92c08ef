package storage

import (
	"testing"
	"time"
)

const testPassword = "secure-password-123"

func TestNewProfileStore(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"valid password", "secure-password-123", false},
		{"minimum length", "12characters", false},
		{"too short", "short", true},
		{"empty password", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := NewProfileStore(t.TempDir(), tt.password)

			if tt.wantErr {
				if err == nil {
					t.Error("Expected error for invalid password")
				}
				return
			}

			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			defer store.Close()

			if profiles := store.ListProfiles(); len(profiles) != 0 {
				t.Errorf("Expected 0 profiles, got %d", len(profiles))
			}
		})
	}
}

func TestCreateProfile(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	config := map[string]string{
		"clientId": "test-client-id-123456789",
		"appKey":   "test-app-key",
	}

	// Test successful creation
	if err := store.CreateProfile("test-profile", config); err != nil {
		t.Fatalf("Failed to create profile: %v", err)
	}

	if !store.ProfileExists("test-profile") {
		t.Error("Profile was not created")
	}

	// Test duplicate creation
	if err := store.CreateProfile("test-profile", config); err == nil {
		t.Error("Expected error for duplicate profile")
	}

	// Test empty name
	if err := store.CreateProfile("", config); err == nil {
		t.Error("Expected error for empty profile name")
	}

	// Test invalid config
	if err := store.CreateProfile("invalid-profile", map[string]string{"invalid": "config"}); err == nil {
		t.Error("Expected error for invalid config")
	}
}

func TestGetProfile(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	config := map[string]string{
		"clientId": "test-client-id-123456789",
		"appKey":   "test-app-key",
	}

	if err := store.CreateProfile("test-profile", config); err != nil {
		t.Fatalf("Failed to create profile: %v", err)
	}

	profile, err := store.GetProfile("test-profile")
	if err != nil {
		t.Fatalf("Failed to get profile: %v", err)
	}

	if profile.Name != "test-profile" {
		t.Errorf("Expected name 'test-profile', got '%s'", profile.Name)
	}
	if profile.Config["clientId"] != config["clientId"] {
		t.Error("Profile config does not match")
	}

	if _, err := store.GetProfile("non-existent"); err == nil {
		t.Error("Expected error for non-existent profile")
	}

	if _, err := store.GetProfile(""); err == nil {
		t.Error("Expected error for empty profile name")
	}
}

func TestUpdateProfile(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	originalConfig := map[string]string{
		"clientId": "test-client-id-123456789",
		"appKey":   "original-app-key",
	}

	if err := store.CreateProfile("test-profile", originalConfig); err != nil {
		t.Fatalf("Failed to create profile: %v", err)
	}

	originalProfile, _ := store.GetProfile("test-profile")
	originalUpdatedAt := originalProfile.UpdatedAt

	time.Sleep(time.Millisecond)

	newConfig := map[string]string{
		"clientId": "test-client-id-123456789",
		"appKey":   "updated-app-key",
	}

	if err := store.UpdateProfile("test-profile", newConfig); err != nil {
		t.Fatalf("Failed to update profile: %v", err)
	}

	updatedProfile, err := store.GetProfile("test-profile")
	if err != nil {
		t.Fatalf("Failed to get updated profile: %v", err)
	}

	if updatedProfile.Config["appKey"] != "updated-app-key" {
		t.Error("Profile was not updated")
	}

	if !updatedProfile.UpdatedAt.After(originalUpdatedAt) {
		t.Error("UpdatedAt timestamp was not updated")
	}

	if err := store.UpdateProfile("non-existent", newConfig); err == nil {
		t.Error("Expected error for non-existent profile")
	}
}

func TestDeleteProfile(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	config := map[string]string{
		"clientId": "test-client-id-123456789",
		"appKey":   "test-app-key",
	}

	if err := store.CreateProfile("test-profile", config); err != nil {
		t.Fatalf("Failed to create profile: %v", err)
	}

	if err := store.DeleteProfile("test-profile"); err != nil {
		t.Fatalf("Failed to delete profile: %v", err)
	}

	if store.ProfileExists("test-profile") {
		t.Error("Profile was not deleted")
	}

	if err := store.DeleteProfile("non-existent"); err == nil {
		t.Error("Expected error for non-existent profile")
	}

	if err := store.DeleteProfile(""); err == nil {
		t.Error("Expected error for empty profile name")
	}
}

func TestListProfiles(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	config := map[string]string{
		"clientId": "test-client-id-123456789",
		"appKey":   "test-app-key",
	}

	if profiles := store.ListProfiles(); len(profiles) != 0 {
		t.Errorf("Expected 0 profiles, got %d", len(profiles))
	}

	profileNames := []string{"profile1", "profile2", "profile3"}
	for _, name := range profileNames {
		if err := store.CreateProfile(name, config); err != nil {
			t.Fatalf("Failed to create profile %s: %v", name, err)
		}
	}

	profiles := store.ListProfiles()
	if len(profiles) != len(profileNames) {
		t.Errorf("Expected %d profiles, got %d", len(profileNames), len(profiles))
	}

	profileMap := make(map[string]bool)
	for _, name := range profiles {
		profileMap[name] = true
	}
	for _, expectedName := range profileNames {
		if !profileMap[expectedName] {
			t.Errorf("Profile '%s' not found in list", expectedName)
		}
	}
}

func TestGetProfileMetadata(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	config := map[string]string{
		"clientId": "test-client-id-123456789",
		"appKey":   "test-app-key",
	}

	if err := store.CreateProfile("test-profile", config); err != nil {
		t.Fatalf("Failed to create profile: %v", err)
	}

	metadata := store.GetProfileMetadata()
	if len(metadata) != 1 {
		t.Errorf("Expected 1 profile metadata, got %d", len(metadata))
	}

	profileMeta, exists := metadata["test-profile"]
	if !exists {
		t.Fatal("Profile metadata not found")
	}

	if profileMeta.Name != "test-profile" {
		t.Errorf("Expected name 'test-profile', got '%s'", profileMeta.Name)
	}
	if profileMeta.CreatedAt.IsZero() {
		t.Error("CreatedAt should not be zero")
	}
	if profileMeta.UpdatedAt.IsZero() {
		t.Error("UpdatedAt should not be zero")
	}
}

func TestPersistence(t *testing.T) {
	tempDir := t.TempDir()

	config := map[string]string{
		"clientId": "test-client-id-123456789",
		"appKey":   "test-app-key",
	}

	store1, err := NewProfileStore(tempDir, testPassword)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	if err := store1.CreateProfile("persistent-profile", config); err != nil {
		t.Fatalf("Failed to create profile: %v", err)
	}
	store1.Close()

	// A second store with the same password loads the persisted profile
	store2, err := NewProfileStore(tempDir, testPassword)
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	defer store2.Close()

	if !store2.ProfileExists("persistent-profile") {
		t.Fatal("Profile was not persisted")
	}

	profile, err := store2.GetProfile("persistent-profile")
	if err != nil {
		t.Fatalf("Failed to get persisted profile: %v", err)
	}
	if profile.Config["clientId"] != config["clientId"] {
		t.Error("Persisted profile config does not match")
	}
}

func TestWrongPasswordSkipsProfiles(t *testing.T) {
	tempDir := t.TempDir()

	config := map[string]string{
		"clientId": "test-client-id-123456789",
	}

	store1, err := NewProfileStore(tempDir, testPassword)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	if err := store1.CreateProfile("locked-profile", config); err != nil {
		t.Fatalf("Failed to create profile: %v", err)
	}
	store1.Close()

	// Opening with a different password must not expose the profile
	store2, err := NewProfileStore(tempDir, "another-password-456")
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	defer store2.Close()

	if store2.ProfileExists("locked-profile") {
		t.Error("Profile decrypted with wrong password")
	}
}

func TestValidateKSMConfig(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	tests := []struct {
		name    string
		config  map[string]string
		wantErr bool
	}{
		{
			"valid config",
			map[string]string{
				"clientId": "test-client-id-123456789",
				"appKey":   "test-app-key",
			},
			false,
		},
		{
			"missing clientId",
			map[string]string{
				"appKey": "test-app-key",
			},
			true,
		},
		{
			"short clientId",
			map[string]string{
				"clientId": "short",
			},
			true,
		},
		{"nil config", nil, true},
		{"empty config", map[string]string{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.validateKSMConfig(tt.config)

			if tt.wantErr && err == nil {
				t.Error("Expected validation to fail")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Unexpected validation error: %v", err)
			}
		})
	}
}

func TestProfileCopy(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	config := map[string]string{
		"clientId": "test-client-id-123456789",
		"appKey":   "test-app-key",
	}

	if err := store.CreateProfile("test-profile", config); err != nil {
		t.Fatalf("Failed to create profile: %v", err)
	}

	profile1, err := store.GetProfile("test-profile")
	if err != nil {
		t.Fatalf("Failed to get profile: %v", err)
	}
	profile2, err := store.GetProfile("test-profile")
	if err != nil {
		t.Fatalf("Failed to get profile: %v", err)
	}

	// Modify one copy
	profile1.Config["appKey"] = "modified"

	if profile2.Config["appKey"] == "modified" {
		t.Error("Profile modification affected other copy")
	}

	originalProfile, _ := store.GetProfile("test-profile")
	if originalProfile.Config["appKey"] == "modified" {
		t.Error("Profile modification affected stored copy")
	}
}

// setupTestStore creates a test profile store in a temporary directory
func setupTestStore(t *testing.T) *ProfileStore {
	store, err := NewProfileStore(t.TempDir(), testPassword)
	if err != nil {
		t.Fatalf("Failed to create test store: %v", err)
	}
	return store
}
