package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/keeper-security/ksm-connect/internal/audit"
	"github.com/keeper-security/ksm-connect/internal/config"
	"github.com/keeper-security/ksm-connect/internal/connect"
	"github.com/keeper-security/ksm-connect/internal/ksm"
	"github.com/keeper-security/ksm-connect/internal/resolver"
	"github.com/keeper-security/ksm-connect/internal/session"
	"github.com/keeper-security/ksm-connect/internal/storage"
	"github.com/keeper-security/ksm-connect/internal/ui"
	"github.com/keeper-security/ksm-connect/internal/validation"
	"github.com/keeper-security/ksm-connect/pkg/types"
	"github.com/spf13/cobra"
)

var (
	connectProtocol  string
	connectTerm      string
	connectSecretUID string
	connectShowAll   bool
)

// connectCmd represents the connect command
var connectCmd = &cobra.Command{
	Use:   "connect [hosts...]",
	Short: "Launch credentialed sessions to one or more hosts",
	Long: `Launch an RDP or SSH session to each named host, resolving the credential
for every host from Keeper Secrets Manager.

By default the host name is the search term. RDP searches prefer domain
administrator records and fall back to every match when none qualify; SSH
searches keep records whose username looks like a root or service account.
When several records remain you pick one by number or UID.

Hosts are connected strictly in order. A host that cannot be resolved or
launched is reported and skipped; the rest of the batch continues.

Examples:
  # RDP to one host with the default profile
  ksm-connect connect webserver01

  # SSH to several hosts in sequence
  ksm-connect connect db1 db2 db3 --protocol ssh

  # Search with a different term than the host name
  ksm-connect connect 10.1.2.3 --term webserver01

  # Skip the search and use a specific record
  ksm-connect connect webserver01 --secret-uid hXg7dEaWGkKxlvviGlUFsw

  # Present every matching record, not just admin ones
  ksm-connect connect webserver01 --show-all`,
	Args: cobra.MinimumNArgs(1),
	RunE: runConnect,
}

func init() {
	rootCmd.AddCommand(connectCmd)

	connectCmd.Flags().StringVar(&connectProtocol, "protocol", "", "session protocol: rdp or ssh (default from config)")
	connectCmd.Flags().StringVar(&connectTerm, "term", "", "search term to use instead of the host name")
	connectCmd.Flags().StringVar(&connectSecretUID, "secret-uid", "", "record UID to use directly, skipping the search")
	connectCmd.Flags().BoolVar(&connectShowAll, "show-all", false, "present every match instead of filtering to admin credentials")
}

func runConnect(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadOrCreate(configPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Usage errors abort before any host is attempted.
	protocol, err := resolveProtocol(connectProtocol, cfg)
	if err != nil {
		return err
	}

	validator := validation.NewValidator()
	for _, host := range args {
		if err := validator.ValidateHostTarget(host); err != nil {
			return fmt.Errorf("invalid host %q: %w", host, err)
		}
	}

	logger, err := audit.NewLogger(auditConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to create audit logger: %w", err)
	}
	defer logger.Close()

	store, err := openProfileStore(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	profileName, err := selectProfile(store, profile, cfg.Profiles.Default)
	if err != nil {
		return err
	}
	verboseLog("Using profile: %s", profileName)

	prof, err := store.GetProfile(profileName)
	if err != nil {
		return fmt.Errorf("failed to load profile: %w", err)
	}

	client, err := ksm.NewClient(prof, logger)
	if err != nil {
		return fmt.Errorf("failed to create KSM client: %w", err)
	}

	connector := connect.NewConnector(
		resolver.New(client),
		ui.NewSelector(ui.Options{Timeout: cfg.Connect.SelectTimeout}),
		client,
		session.NewDispatcher(dispatcherOptions(cfg)),
		logger,
		connect.Options{
			Protocol:  protocol,
			Term:      connectTerm,
			SecretUID: connectSecretUID,
			ShowAll:   connectShowAll,
			Profile:   profileName,
		},
	)

	// Interrupt finishes the current host, then stops the batch.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		<-sigChan
		cancel()
	}()

	summary := connector.ConnectAll(ctx, args)

	if summary.Failed > 0 {
		fmt.Printf("\nLaunched %d of %d session(s); %d failed.\n", summary.Launched, len(args), summary.Failed)
	} else {
		fmt.Printf("\nLaunched %d session(s).\n", summary.Launched)
	}

	// Per-host failures are reported above but do not fail the command.
	return nil
}

// resolveProtocol applies the flag over the configured default.
func resolveProtocol(flagValue string, cfg *config.Config) (types.Protocol, error) {
	value := flagValue
	if value == "" {
		value = cfg.Connect.DefaultProtocol
	}
	if value == "" {
		return "", fmt.Errorf("no protocol specified and no default protocol configured")
	}
	return types.ParseProtocol(value)
}

// selectProfile applies the flag over the configured default and verifies
// the chosen profile exists.
func selectProfile(store storage.ProfileStoreInterface, flagValue, configDefault string) (string, error) {
	name := flagValue
	if name == "" {
		name = configDefault
	}
	if name == "" {
		return "", fmt.Errorf("no profile specified and no default profile configured")
	}
	if !store.ProfileExists(name) {
		return "", fmt.Errorf("profile '%s' does not exist", name)
	}
	return name, nil
}

// dispatcherOptions maps launcher settings onto the session dispatcher.
func dispatcherOptions(cfg *config.Config) session.Options {
	return session.Options{
		RDPClient:    cfg.Connect.RDP.Client,
		RDPRegistrar: cfg.Connect.RDP.Registrar,
		Fullscreen:   cfg.Connect.RDP.Fullscreen,
		SSHClient:    cfg.Connect.SSH.Client,
	}
}

// auditConfig maps logging settings onto the audit logger.
func auditConfig(cfg *config.Config) audit.Config {
	logPath := cfg.Logging.File
	if logPath == "" {
		logPath = filepath.Join(config.GetConfigDir(), "audit.log")
	}

	return audit.Config{
		FilePath: logPath,
		MaxSize:  int64(cfg.Logging.MaxSizeMB) * 1024 * 1024,
		MaxAge:   time.Duration(cfg.Logging.MaxAgeDays) * 24 * time.Hour,
	}
}
