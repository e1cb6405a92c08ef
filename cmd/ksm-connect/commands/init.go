package commands

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/keeper-security/ksm-connect/internal/audit"
	"github.com/keeper-security/ksm-connect/internal/config"
	"github.com/keeper-security/ksm-connect/internal/crypto"
	"github.com/keeper-security/ksm-connect/internal/ksm"
	"github.com/keeper-security/ksm-connect/internal/storage"
	"github.com/keeper-security/ksm-connect/internal/validation"
	"github.com/keeper-security/ksm-connect/pkg/types"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	initProfile string
	initToken   string
	initConfig  string
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new KSM profile",
	Long: `Initialize a new Keeper Secrets Manager profile with either a one-time token or existing config file.

Examples:
  # Initialize with one-time token
  ksm-connect init --profile myprofile --token US:TOKEN_HERE

  # Initialize from existing KSM config file
  ksm-connect init --profile myprofile --config ~/path/to/config.json

  # Initialize with base64-encoded config
  ksm-connect init --profile myprofile --config "BASE64_ENCODED_CONFIG"

  # Initialize from environment variable
  export KSM_CONFIG="BASE64_ENCODED_CONFIG"
  ksm-connect init --profile myprofile`,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().StringVar(&initProfile, "profile", "", "profile name (required)")
	initCmd.Flags().StringVar(&initToken, "token", "", "one-time token (US:TOKEN_HERE)")
	initCmd.Flags().StringVar(&initConfig, "config", "", "path to KSM config file or base64-encoded config")
	_ = initCmd.MarkFlagRequired("profile")
}

func runInit(cmd *cobra.Command, args []string) error {
	// Check for KSM_CONFIG_BASE64 or KSM_CONFIG environment variable if no flags provided
	if initToken == "" && initConfig == "" {
		if envConfig := os.Getenv("KSM_CONFIG_BASE64"); envConfig != "" {
			initConfig = envConfig
		} else if envConfig := os.Getenv("KSM_CONFIG"); envConfig != "" {
			initConfig = envConfig
		}
	}

	if initToken == "" && initConfig == "" {
		return fmt.Errorf("either --token, --config, KSM_CONFIG_BASE64 or KSM_CONFIG environment variable must be provided")
	}

	// Validate only one config source is provided
	if initToken != "" && initConfig != "" {
		return fmt.Errorf("cannot specify both --token and --config")
	}

	// Validate profile name
	validator := validation.NewValidator()
	if err := validator.ValidateProfileName(initProfile); err != nil {
		return fmt.Errorf("invalid profile name: %w", err)
	}

	if err := config.EnsureConfigDir(); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Load or create config
	cfg, err := config.LoadOrCreate(configPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := audit.NewLogger(auditConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to create audit logger: %w", err)
	}
	defer logger.Close()

	// Open the profile store, creating the protection password on first use
	var store *storage.ProfileStore
	if cfg.Security.ProtectionPasswordHash != "" {
		store, err = openProfileStore(cfg, logger)
		if err != nil {
			return err
		}
	} else {
		fmt.Fprintln(os.Stderr, "First time setup - please create a protection password for local profile encryption.")
		fmt.Fprintln(os.Stderr, "This password will be used to encrypt all stored profiles.")
		fmt.Fprint(os.Stderr, "Enter protection password: ")
		password, err := readPassword()
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}

		fmt.Fprint(os.Stderr, "Confirm protection password: ")
		confirm, err := readPassword()
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}

		if password != confirm {
			return fmt.Errorf("passwords do not match")
		}

		if err := validator.ValidatePasswordStrength(password); err != nil {
			return fmt.Errorf("protection password too weak: %w", err)
		}

		store, err = storage.NewProfileStore(config.GetConfigDir(), password)
		if err != nil {
			return fmt.Errorf("failed to create profile store: %w", err)
		}

		// Save the protection password hash so later runs can verify it
		hash, err := crypto.HashPassword(password)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}
		cfg.Security.ProtectionPasswordHash = hash
		if err := cfg.Save(configPath()); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
	}
	defer store.Close()

	// Check if profile already exists
	if store.ProfileExists(initProfile) {
		return fmt.Errorf("profile '%s' already exists", initProfile)
	}

	fmt.Fprintf(os.Stderr, "Initializing profile '%s'...\n", initProfile)

	var ksmConfig map[string]string

	if initToken != "" {
		// Validate token
		if err := validator.ValidateToken(initToken); err != nil {
			return fmt.Errorf("invalid token: %w", err)
		}

		// Initialize with one-time token
		verboseLog("Initializing KSM with token")
		ksmConfig, err = ksm.InitializeWithToken(initToken)
		if err != nil {
			return fmt.Errorf("failed to initialize with token: %w", err)
		}
		fmt.Fprintln(os.Stderr, "✓ Successfully initialized KSM configuration")
	} else {
		// Determine if config is a file path or base64
		var configData []byte

		// Check if it's a file path (contains / or \ or starts with ~ or .)
		if strings.ContainsAny(initConfig, "/\\") || strings.HasPrefix(initConfig, "~") || strings.HasPrefix(initConfig, ".") {
			// Load from file
			verboseLog("Loading KSM config from file: %s", initConfig)
			configFilePath := initConfig
			if strings.HasPrefix(configFilePath, "~") {
				home, err := os.UserHomeDir()
				if err != nil {
					return fmt.Errorf("failed to get home directory: %w", err)
				}
				configFilePath = filepath.Join(home, configFilePath[1:])
			}

			cleanPath := filepath.Clean(configFilePath)
			configData, err = os.ReadFile(cleanPath) // #nosec G304 - user-provided path for config
			if err != nil {
				return fmt.Errorf("failed to read config file: %w", err)
			}
			fmt.Fprintln(os.Stderr, "✓ Successfully loaded KSM configuration from file")
		} else {
			// Assume it's base64-encoded
			verboseLog("Loading base64-encoded KSM config")
			configData, err = base64.StdEncoding.DecodeString(initConfig)
			if err != nil {
				return fmt.Errorf("failed to decode base64 config: %w", err)
			}
			fmt.Fprintln(os.Stderr, "✓ Successfully loaded KSM configuration from base64")
		}

		ksmConfig, err = ksm.InitializeWithConfig(configData)
		if err != nil {
			return fmt.Errorf("failed to initialize with config: %w", err)
		}
	}

	// Test the connection
	fmt.Fprint(os.Stderr, "Testing connection to Keeper Secrets Manager... ")
	client, err := ksm.NewClient(&types.Profile{
		Name:   initProfile,
		Config: ksmConfig,
	}, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "✗")
		return fmt.Errorf("failed to create client: %w", err)
	}

	if err := client.TestConnection(); err != nil {
		fmt.Fprintln(os.Stderr, "✗")
		return fmt.Errorf("failed to test KSM connection: %w", err)
	}
	fmt.Fprintln(os.Stderr, "✓")

	// Create and save profile
	if err := store.CreateProfile(initProfile, ksmConfig); err != nil {
		logger.LogProfileOperation(audit.EventProfileCreate, initProfile, false)
		return fmt.Errorf("failed to save profile: %w", err)
	}
	logger.LogProfileOperation(audit.EventProfileCreate, initProfile, true)

	// Make this the default profile when none is usable yet
	if cfg.Profiles.Default == "" || !store.ProfileExists(cfg.Profiles.Default) {
		cfg.Profiles.Default = initProfile
		if err := cfg.Save(configPath()); err != nil {
			return fmt.Errorf("failed to update default profile: %w", err)
		}
		fmt.Fprintf(os.Stderr, "✓ Set '%s' as default profile\n", initProfile)
	}

	fmt.Fprintf(os.Stderr, "\nProfile '%s' initialized successfully!\n", initProfile)
	fmt.Fprintln(os.Stderr, "\nTo connect to a host, run:")
	fmt.Fprintf(os.Stderr, "  ksm-connect connect <host> --profile %s\n", initProfile)

	return nil
}

// readPassword reads a password from stdin without echoing
func readPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		password, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(password)), nil
	}

	// Piped input: read a single line
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// openProfileStore prompts for the protection password, verifies it against
// the stored hash and opens the profile store. A nil logger skips the
// audit trail for commands that run before logging is configured.
func openProfileStore(cfg *config.Config, logger *audit.Logger) (*storage.ProfileStore, error) {
	fmt.Fprint(os.Stderr, "Enter protection password: ")
	password, err := readPassword()
	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}

	if cfg.Security.ProtectionPasswordHash != "" && !crypto.CheckPassword(cfg.Security.ProtectionPasswordHash, password) {
		if logger != nil {
			logger.LogAuth(false, "", nil)
		}
		return nil, fmt.Errorf("protection password does not match")
	}

	store, err := storage.NewProfileStore(config.GetConfigDir(), password)
	if err != nil {
		return nil, fmt.Errorf("failed to unlock profile store: %w", err)
	}
	if logger != nil {
		logger.LogAuth(true, "", nil)
	}
	return store, nil
}
