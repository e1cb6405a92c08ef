package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// ErrConfigNotFound is returned when the config file is not found by Load.
var ErrConfigNotFound = errors.New("configuration file not found")

// Config represents the application configuration
type Config struct {
	Connect  ConnectConfig  `mapstructure:"connect"`
	Security SecurityConfig `mapstructure:"security"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Profiles ProfilesConfig `mapstructure:"profiles"`
}

// ConnectConfig represents session dispatch settings
type ConnectConfig struct {
	DefaultProtocol string        `mapstructure:"default_protocol"`
	SelectTimeout   time.Duration `mapstructure:"select_timeout"`
	RDP             RDPConfig     `mapstructure:"rdp"`
	SSH             SSHConfig     `mapstructure:"ssh"`
}

// RDPConfig represents the remote desktop launcher settings
type RDPConfig struct {
	// Client is the remote desktop binary invoked per session.
	Client string `mapstructure:"client"`
	// Registrar is the binary that stores the credential in the OS
	// credential cache before the client starts.
	Registrar  string `mapstructure:"registrar"`
	Fullscreen bool   `mapstructure:"fullscreen"`
}

// SSHConfig represents the terminal launcher settings
type SSHConfig struct {
	Client string `mapstructure:"client"`
}

// SecurityConfig represents security settings
type SecurityConfig struct {
	ProtectionPasswordHash string `mapstructure:"protection_password_hash"`
}

// LoggingConfig represents audit logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// ProfilesConfig represents profile settings
type ProfilesConfig struct {
	Default string `mapstructure:"default"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Connect: ConnectConfig{
			DefaultProtocol: "rdp",
			SelectTimeout:   0, // wait for the operator indefinitely
			RDP: RDPConfig{
				Client:     "mstsc",
				Registrar:  "cmdkey",
				Fullscreen: true,
			},
			SSH: SSHConfig{
				Client: "putty",
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			File:       "",
			MaxSizeMB:  10,
			MaxAgeDays: 90,
		},
		Profiles: ProfilesConfig{
			Default: "default",
		},
	}
}

// Load loads configuration from file
func Load(configFile string) (*Config, error) {
	config := DefaultConfig()

	v := viper.New()
	v.SetConfigName("config") // Default name if configFile is a directory
	v.SetConfigType("yaml")

	configDir := getConfigDir()
	resolvedConfigFile := configFile

	if configFile == "" || configFile == filepath.Join(configDir, "config.yaml") {
		// Loading the default config file; let viper search its paths.
		v.AddConfigPath(configDir)
		v.AddConfigPath(".")
		if configFile == "" {
			resolvedConfigFile = filepath.Join(configDir, "config.yaml")
		}
	} else {
		v.SetConfigFile(configFile)
		resolvedConfigFile = configFile
	}

	// Stat first so a missing file maps to our distinct error rather than
	// whatever viper reports.
	if _, err := os.Stat(resolvedConfigFile); os.IsNotExist(err) {
		return nil, ErrConfigNotFound
	}

	// Environment variable overrides
	v.SetEnvPrefix("KSM_CONNECT")
	v.AutomaticEnv()

	_ = v.BindEnv("connect.default_protocol", "KSM_CONNECT_PROTOCOL")
	_ = v.BindEnv("logging.level", "KSM_CONNECT_LOG_LEVEL")
	_ = v.BindEnv("profiles.default", "KSM_CONNECT_PROFILE")

	if err := v.ReadInConfig(); err != nil {
		// Existence was checked above, but ReadInConfig can still fail on
		// permissions or parse errors.
		var vfnfError viper.ConfigFileNotFoundError
		if errors.As(err, &vfnfError) {
			return nil, ErrConfigNotFound
		}
		return nil, fmt.Errorf("failed to read config file content: %w", err)
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Set default log file if not specified
	if config.Logging.File == "" {
		config.Logging.File = filepath.Join(configDir, "audit.log")
	}

	return config, nil
}

// Save saves configuration to file
func (c *Config) Save(configFile string) error {
	if configFile == "" {
		configFile = filepath.Join(getConfigDir(), "config.yaml")
	}

	// Ensure config directory exists
	if err := os.MkdirAll(filepath.Dir(configFile), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(configFile)

	v.Set("connect.default_protocol", c.Connect.DefaultProtocol)
	v.Set("connect.select_timeout", c.Connect.SelectTimeout)
	v.Set("connect.rdp.client", c.Connect.RDP.Client)
	v.Set("connect.rdp.registrar", c.Connect.RDP.Registrar)
	v.Set("connect.rdp.fullscreen", c.Connect.RDP.Fullscreen)
	v.Set("connect.ssh.client", c.Connect.SSH.Client)
	v.Set("security.protection_password_hash", c.Security.ProtectionPasswordHash)
	v.Set("logging.level", c.Logging.Level)
	v.Set("logging.file", c.Logging.File)
	v.Set("logging.max_size_mb", c.Logging.MaxSizeMB)
	v.Set("logging.max_age_days", c.Logging.MaxAgeDays)
	v.Set("profiles.default", c.Profiles.Default)

	return v.WriteConfig()
}

// SaveDefault saves configuration to the default location
func (c *Config) SaveDefault() error {
	return c.Save("")
}

// getConfigDir returns the configuration directory
func getConfigDir() string {
	if configDir := os.Getenv("KSM_CONNECT_CONFIG_DIR"); configDir != "" {
		return configDir
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		// Fall back to current directory with absolute path
		cwd, _ := os.Getwd()
		return filepath.Join(cwd, ".keeper", "ksm-connect")
	}

	return filepath.Join(homeDir, ".keeper", "ksm-connect")
}

// GetConfigDir returns the configuration directory (exported)
func GetConfigDir() string {
	return getConfigDir()
}

// EnsureConfigDir ensures the configuration directory exists
func EnsureConfigDir() error {
	configDir := getConfigDir()
	return os.MkdirAll(configDir, 0700)
}

// LoadOrCreate loads existing config or creates a new one
func LoadOrCreate(configFile string) (*Config, error) {
	cfg, err := Load(configFile)
	if err == nil {
		return cfg, nil
	}

	if errors.Is(err, ErrConfigNotFound) {
		cfg = DefaultConfig()

		finalConfigFile := configFile
		if finalConfigFile == "" || finalConfigFile == "config.yaml" {
			finalConfigFile = filepath.Join(getConfigDir(), "config.yaml")
		}

		if errSave := cfg.Save(finalConfigFile); errSave != nil {
			return nil, fmt.Errorf("failed to save default config to %s: %w", finalConfigFile, errSave)
		}
		return cfg, nil
	}

	return nil, err
}
