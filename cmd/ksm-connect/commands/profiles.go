package commands

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/keeper-security/ksm-connect/internal/audit"
	"github.com/keeper-security/ksm-connect/internal/config"
	"github.com/spf13/cobra"
)

// profilesCmd represents the profiles command
var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "Manage KSM profiles",
	Long: `List, delete, and manage Keeper Secrets Manager profiles.

Profiles store encrypted KSM configurations that can be used to connect
to different Keeper accounts or vaults.`,
}

// profilesListCmd represents the profiles list command
var profilesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all profiles",
	Long:  `List all configured KSM profiles with their metadata.`,
	RunE:  runProfilesList,
}

// profilesDeleteCmd represents the profiles delete command
var profilesDeleteCmd = &cobra.Command{
	Use:   "delete [profile]",
	Short: "Delete a profile",
	Long:  `Delete a KSM profile. This action cannot be undone.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runProfilesDelete,
}

// profilesSetDefaultCmd represents the profiles set-default command
var profilesSetDefaultCmd = &cobra.Command{
	Use:   "set-default [profile]",
	Short: "Set default profile",
	Long:  `Set the default profile to use when no --profile flag is specified.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runProfilesSetDefault,
}

// profilesShowCmd represents the profiles show command
var profilesShowCmd = &cobra.Command{
	Use:   "show [profile]",
	Short: "Show profile details",
	Long:  `Show detailed information about a specific profile.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runProfilesShow,
}

func init() {
	rootCmd.AddCommand(profilesCmd)
	profilesCmd.AddCommand(profilesListCmd)
	profilesCmd.AddCommand(profilesDeleteCmd)
	profilesCmd.AddCommand(profilesSetDefaultCmd)
	profilesCmd.AddCommand(profilesShowCmd)
}

func runProfilesList(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	store, err := openProfileStore(cfg, nil)
	if err != nil {
		return err
	}
	defer store.Close()

	profileNames := store.ListProfiles()

	if len(profileNames) == 0 {
		fmt.Println("No profiles configured.")
		fmt.Println("\nTo create a profile, run:")
		fmt.Println("  ksm-connect init --profile <name> --token <token>")
		return nil
	}

	metadata := store.GetProfileMetadata()

	// Display profiles in a table
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PROFILE\tCREATED\tDEFAULT")
	fmt.Fprintln(w, "-------\t-------\t-------")

	for _, name := range profileNames {
		isDefault := ""
		if name == cfg.Profiles.Default {
			isDefault = "✓"
		}

		created := ""
		if meta, ok := metadata[name]; ok && !meta.CreatedAt.IsZero() {
			created = meta.CreatedAt.Format("2006-01-02")
		}

		fmt.Fprintf(w, "%s\t%s\t%s\n", name, created, isDefault)
	}
	w.Flush()

	return nil
}

func runProfilesDelete(cmd *cobra.Command, args []string) error {
	profileName := args[0]

	cfg, err := config.Load(configPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
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

	// Confirm deletion
	fmt.Printf("Are you sure you want to delete profile '%s'? This action cannot be undone.\n", profileName)
	fmt.Print("Type 'yes' to confirm: ")

	var confirm string
	fmt.Scanln(&confirm)
	if strings.ToLower(strings.TrimSpace(confirm)) != "yes" {
		fmt.Println("Deletion cancelled.")
		return nil
	}

	// Delete profile
	if err := store.DeleteProfile(profileName); err != nil {
		logger.LogProfileOperation(audit.EventProfileDelete, profileName, false)
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	logger.LogProfileOperation(audit.EventProfileDelete, profileName, true)

	// If this was the default profile, clear it
	if cfg.Profiles.Default == profileName {
		cfg.Profiles.Default = ""
		if err := cfg.Save(configPath()); err != nil {
			return fmt.Errorf("failed to update config: %w", err)
		}
		fmt.Println("⚠️  Default profile cleared")
	}

	fmt.Printf("✓ Profile '%s' deleted successfully\n", profileName)
	return nil
}

func runProfilesSetDefault(cmd *cobra.Command, args []string) error {
	profileName := args[0]

	cfg, err := config.Load(configPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	store, err := openProfileStore(cfg, nil)
	if err != nil {
		return err
	}
	defer store.Close()

	// Check if profile exists
	if !store.ProfileExists(profileName) {
		return fmt.Errorf("profile '%s' does not exist", profileName)
	}

	// Update default profile
	cfg.Profiles.Default = profileName
	if err := cfg.Save(configPath()); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Printf("✓ Default profile set to '%s'\n", profileName)
	return nil
}

func runProfilesShow(cmd *cobra.Command, args []string) error {
	profileName := args[0]

	cfg, err := config.Load(configPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	store, err := openProfileStore(cfg, nil)
	if err != nil {
		return err
	}
	defer store.Close()

	// Get profile
	prof, err := store.GetProfile(profileName)
	if err != nil {
		return fmt.Errorf("profile '%s' not found", profileName)
	}

	// Display profile information
	fmt.Printf("Profile: %s\n", prof.Name)
	fmt.Printf("Default: %v\n", prof.Name == cfg.Profiles.Default)

	if !prof.CreatedAt.IsZero() {
		fmt.Printf("Created: %s\n", prof.CreatedAt.Format(time.RFC3339))
	}

	if !prof.UpdatedAt.IsZero() {
		fmt.Printf("Updated: %s\n", prof.UpdatedAt.Format(time.RFC3339))
	}

	// Show KSM config details (without sensitive data)
	if len(prof.Config) > 0 {
		fmt.Println("\nKSM Configuration:")
		if clientID, ok := prof.Config["clientId"]; ok {
			fmt.Printf("  Client ID: %s\n", maskSensitive(clientID))
		}
		if hostname, ok := prof.Config["hostname"]; ok && hostname != "" {
			fmt.Printf("  Hostname: %s\n", hostname)
		}
		if privateKey, ok := prof.Config["privateKey"]; ok {
			fmt.Printf("  Private Key: %s\n", maskSensitive(privateKey))
		}
		if appKey, ok := prof.Config["appKey"]; ok {
			fmt.Printf("  App Key: %s\n", maskSensitive(appKey))
		}
	}

	return nil
}

func maskSensitive(value string) string {
	if len(value) <= 8 {
		return "********"
	}
	return value[:4] + "..." + value[len(value)-4:]
}
