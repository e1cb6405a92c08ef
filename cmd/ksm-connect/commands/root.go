package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/keeper-security/ksm-connect/internal/config"
	"github.com/spf13/cobra"
)

var (
	version    = "dev"
	configFile string
	profile    string
	verbose    bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "ksm-connect",
	Short: "Keeper-backed remote session launcher",
	Long: `Launch RDP and SSH sessions using credentials resolved from Keeper Secrets Manager (KSM).

ksm-connect looks up the right credential for each host in your Keeper vault,
lets you pick one when several match, and hands it straight to the session
client. Credentials never touch the command history or the clipboard.`,
	Version: version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is ~/.keeper/ksm-connect/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&profile, "profile", "", "profile to use (overrides config default)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "verbose output")
}

// SetVersion sets the version for the CLI
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// configPath resolves the config file honoring the --config flag.
func configPath() string {
	if configFile != "" {
		return configFile
	}
	return filepath.Join(config.GetConfigDir(), "config.yaml")
}

// verboseLog prints a message only if verbose mode is enabled
func verboseLog(format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(os.Stderr, "[DEBUG] "+format+"\n", args...)
	}
}
