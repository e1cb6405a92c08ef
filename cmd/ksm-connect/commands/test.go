package commands

import (
	"fmt"
	"os/exec"

	"github.com/keeper-security/ksm-connect/internal/config"
	"github.com/keeper-security/ksm-connect/internal/ksm"
	"github.com/spf13/cobra"
)

// testCmd represents the test command
var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Test the KSM connection and session clients",
	Long: `Test the connection to Keeper Secrets Manager and check that the
configured session clients are installed.

This command verifies that:
- The profile configuration is valid
- Authentication with KSM succeeds
- The RDP and SSH client binaries are on PATH

Examples:
  # Test the default profile
  ksm-connect test

  # Test a specific profile
  ksm-connect test --profile production`,
	RunE: runTest,
}

func init() {
	rootCmd.AddCommand(testCmd)
}

func runTest(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	store, err := openProfileStore(cfg, nil)
	if err != nil {
		return err
	}
	defer store.Close()

	profileName, err := selectProfile(store, profile, cfg.Profiles.Default)
	if err != nil {
		return err
	}

	fmt.Printf("Testing profile: %s\n\n", profileName)

	// Get profile
	fmt.Print("1. Loading profile... ")
	prof, err := store.GetProfile(profileName)
	if err != nil {
		fmt.Println("✗")
		return fmt.Errorf("failed to load profile: %w", err)
	}
	fmt.Println("✓")

	// Create KSM client
	fmt.Print("2. Creating KSM client... ")
	client, err := ksm.NewClient(prof, nil)
	if err != nil {
		fmt.Println("✗")
		return fmt.Errorf("failed to create client: %w", err)
	}
	fmt.Println("✓")

	// Test the connection
	fmt.Print("3. Testing KSM connection... ")
	if err := client.TestConnection(); err != nil {
		fmt.Println("✗")
		return fmt.Errorf("failed to test KSM connection: %w", err)
	}
	fmt.Println("✓")

	// Check session client binaries. A missing client is reported but does
	// not fail the test: the operator may only ever use the other protocol.
	fmt.Println("4. Checking session clients...")
	checkClientBinary("RDP client", cfg.Connect.RDP.Client)
	checkClientBinary("RDP registrar", cfg.Connect.RDP.Registrar)
	checkClientBinary("SSH client", cfg.Connect.SSH.Client)

	fmt.Printf("\n✓ Connection successful!\n")

	// Show configuration details
	if verbose {
		fmt.Println("\nConfiguration Details:")
		fmt.Printf("  Config Directory: %s\n", config.GetConfigDir())
		fmt.Printf("  Profile: %s\n", profileName)
		if prof.Config != nil {
			if hostname, ok := prof.Config["hostname"]; ok && hostname != "" {
				fmt.Printf("  Hostname: %s\n", hostname)
			}
		}
	}

	return nil
}

func checkClientBinary(label, binary string) {
	if binary == "" {
		fmt.Printf("   %s: not configured\n", label)
		return
	}
	if _, err := exec.LookPath(binary); err != nil {
		fmt.Printf("   %s: ⚠️  %s not found in PATH\n", label, binary)
		return
	}
	fmt.Printf("   %s: ✓ %s\n", label, binary)
}
