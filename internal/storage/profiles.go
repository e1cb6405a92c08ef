package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/keeper-security/ksm-connect/internal/crypto"
	"github.com/keeper-security/ksm-connect/pkg/types"
)

// Ensure ProfileStore implements ProfileStoreInterface
var _ ProfileStoreInterface = (*ProfileStore)(nil)

// ProfilesFileName is the filename for the profiles database
const ProfilesFileName = "profiles.json"

// ProfileStore manages encrypted connection profile storage. Profiles hold
// KSM application config, never target credentials.
type ProfileStore struct {
	configDir string
	encryptor *crypto.Encryptor
	profiles  map[string]*types.Profile
}

// SealedProfile represents a profile entry stored on disk
type SealedProfile struct {
	Name      string    `json:"name"`
	Sealed    string    `json:"sealed"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Checksum  string    `json:"checksum"`
}

// ProfilesDatabase represents the on-disk storage format
type ProfilesDatabase struct {
	Version   int                       `json:"version"`
	Profiles  map[string]*SealedProfile `json:"profiles"`
	UpdatedAt time.Time                 `json:"updated_at"`
}

// NewProfileStore creates a profile store unlocked with the given protection
// password and loads any existing profiles.
func NewProfileStore(configDir, password string) (*ProfileStore, error) {
	if err := crypto.ValidatePassword(password); err != nil {
		return nil, fmt.Errorf("invalid protection password: %w", err)
	}

	store := &ProfileStore{
		configDir: configDir,
		encryptor: crypto.NewEncryptor(password),
		profiles:  make(map[string]*types.Profile),
	}

	if err := store.loadProfiles(); err != nil {
		return nil, fmt.Errorf("failed to load profiles: %w", err)
	}

	return store, nil
}

// CreateProfile creates a new profile with the given configuration
func (ps *ProfileStore) CreateProfile(name string, config map[string]string) error {
	if name == "" {
		return fmt.Errorf("profile name cannot be empty")
	}

	if _, exists := ps.profiles[name]; exists {
		return fmt.Errorf("profile '%s' already exists", name)
	}

	if err := ps.validateKSMConfig(config); err != nil {
		return fmt.Errorf("invalid KSM configuration: %w", err)
	}

	// Copy so the caller cannot mutate the stored config afterwards
	configCopy := make(map[string]string, len(config))
	for k, v := range config {
		configCopy[k] = v
	}

	profile := &types.Profile{
		Name:      name,
		Config:    configCopy,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	ps.profiles[name] = profile

	return ps.saveProfiles()
}

// GetProfile retrieves a profile by name
func (ps *ProfileStore) GetProfile(name string) (*types.Profile, error) {
	if name == "" {
		return nil, fmt.Errorf("profile name cannot be empty")
	}

	profile, exists := ps.profiles[name]
	if !exists {
		return nil, fmt.Errorf("profile '%s' not found", name)
	}

	// Return a copy to prevent modification
	return ps.copyProfile(profile), nil
}

// ListProfiles returns a list of all profile names
func (ps *ProfileStore) ListProfiles() []string {
	names := make([]string, 0, len(ps.profiles))
	for name := range ps.profiles {
		names = append(names, name)
	}
	return names
}

// UpdateProfile updates an existing profile
func (ps *ProfileStore) UpdateProfile(name string, config map[string]string) error {
	if name == "" {
		return fmt.Errorf("profile name cannot be empty")
	}

	profile, exists := ps.profiles[name]
	if !exists {
		return fmt.Errorf("profile '%s' not found", name)
	}

	if err := ps.validateKSMConfig(config); err != nil {
		return fmt.Errorf("invalid KSM configuration: %w", err)
	}

	profile.Config = config
	profile.UpdatedAt = time.Now()

	return ps.saveProfiles()
}

// DeleteProfile deletes a profile
func (ps *ProfileStore) DeleteProfile(name string) error {
	if name == "" {
		return fmt.Errorf("profile name cannot be empty")
	}

	if _, exists := ps.profiles[name]; !exists {
		return fmt.Errorf("profile '%s' not found", name)
	}

	delete(ps.profiles, name)

	return ps.saveProfiles()
}

// ProfileExists checks if a profile exists
func (ps *ProfileStore) ProfileExists(name string) bool {
	_, exists := ps.profiles[name]
	return exists
}

// GetProfileMetadata returns metadata about all profiles
func (ps *ProfileStore) GetProfileMetadata() map[string]types.ProfileMetadata {
	metadata := make(map[string]types.ProfileMetadata)
	for name, profile := range ps.profiles {
		metadata[name] = types.ProfileMetadata{
			Name:      profile.Name,
			CreatedAt: profile.CreatedAt,
			UpdatedAt: profile.UpdatedAt,
		}
	}
	return metadata
}

// saveProfiles seals and saves all profiles to disk
func (ps *ProfileStore) saveProfiles() error {
	db := &ProfilesDatabase{
		Version:   1,
		Profiles:  make(map[string]*SealedProfile),
		UpdatedAt: time.Now(),
	}

	for name, profile := range ps.profiles {
		profileData, err := json.Marshal(profile)
		if err != nil {
			return fmt.Errorf("failed to serialize profile '%s': %w", name, err)
		}

		sealed, err := ps.encryptor.Seal(profileData)
		if err != nil {
			return fmt.Errorf("failed to encrypt profile '%s': %w", name, err)
		}

		db.Profiles[name] = &SealedProfile{
			Name:      name,
			Sealed:    sealed,
			CreatedAt: profile.CreatedAt,
			UpdatedAt: profile.UpdatedAt,
			Checksum:  ps.calculateChecksum(profile.Config),
		}
	}

	dbData, err := json.MarshalIndent(db, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize profiles database: %w", err)
	}

	// Write to file with atomic operation
	profilesPath := filepath.Join(ps.configDir, ProfilesFileName)
	tempPath := profilesPath + ".tmp"

	if err := os.WriteFile(tempPath, dbData, 0600); err != nil {
		return fmt.Errorf("failed to write profiles to temp file: %w", err)
	}

	if err := os.Rename(tempPath, profilesPath); err != nil {
		_ = os.Remove(tempPath) // Clean up temp file, ignore error
		return fmt.Errorf("failed to atomically update profiles file: %w", err)
	}

	return nil
}

// loadProfiles loads and decrypts profiles from disk
func (ps *ProfileStore) loadProfiles() error {
	profilesPath := filepath.Join(ps.configDir, ProfilesFileName)

	if _, err := os.Stat(profilesPath); os.IsNotExist(err) {
		// No profiles file exists yet, start with empty profiles
		ps.profiles = make(map[string]*types.Profile)
		return nil
	}

	data, err := os.ReadFile(profilesPath) // #nosec G304 - path constructed from validated configDir
	if err != nil {
		return fmt.Errorf("failed to read profiles file: %w", err)
	}

	var db ProfilesDatabase
	if err := json.Unmarshal(data, &db); err != nil {
		return fmt.Errorf("failed to parse profiles database: %w", err)
	}

	// A corrupt or foreign entry skips with a warning rather than failing
	// the whole load.
	loaded := make(map[string]*types.Profile)
	for name, entry := range db.Profiles {
		plaintext, err := ps.encryptor.Open(entry.Sealed)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to decrypt profile '%s', skipping: %v\n", name, err)
			continue
		}

		var profile types.Profile
		if err := json.Unmarshal(plaintext, &profile); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to deserialize profile '%s', skipping: %v\n", name, err)
			continue
		}

		if entry.Checksum != ps.calculateChecksum(profile.Config) {
			fmt.Fprintf(os.Stderr, "Warning: profile '%s' has invalid checksum, data may be corrupted, skipping.\n", name)
			continue
		}

		loaded[name] = &profile
	}
	ps.profiles = loaded

	return nil
}

// validateKSMConfig validates KSM configuration
func (ps *ProfileStore) validateKSMConfig(config map[string]string) error {
	if config == nil {
		return fmt.Errorf("configuration cannot be nil")
	}

	requiredFields := []string{"clientId"}
	for _, field := range requiredFields {
		if _, exists := config[field]; !exists {
			return fmt.Errorf("required field '%s' is missing", field)
		}
	}

	if len(config["clientId"]) < 10 {
		return fmt.Errorf("clientId appears to be invalid")
	}

	return nil
}

// calculateChecksum calculates a checksum for configuration integrity
func (ps *ProfileStore) calculateChecksum(config map[string]string) string {
	data, _ := json.Marshal(config)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// copyProfile creates a deep copy of a profile
func (ps *ProfileStore) copyProfile(profile *types.Profile) *types.Profile {
	configCopy := make(map[string]string, len(profile.Config))
	for k, v := range profile.Config {
		configCopy[k] = v
	}

	return &types.Profile{
		Name:      profile.Name,
		Config:    configCopy,
		CreatedAt: profile.CreatedAt,
		UpdatedAt: profile.UpdatedAt,
	}
}

// Close clears decrypted profile material from memory
func (ps *ProfileStore) Close() error {
	for name, profile := range ps.profiles {
		for key := range profile.Config {
			profile.Config[key] = ""
		}
		delete(ps.profiles, name)
	}

	return nil
}
