package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/keeper-security/ksm-connect/internal/config"
	"github.com/keeper-security/ksm-connect/internal/ksm"
	"github.com/spf13/cobra"
)

// searchCmd represents the search command
var searchCmd = &cobra.Command{
	Use:   "search <term>",
	Short: "Search vault records without connecting",
	Long: `Search Keeper Secrets Manager for records matching a term and list the
candidates, exactly as the connect command would see them before any
protocol filtering.

Useful for checking why a host resolves to unexpected credentials, or to
find the UID for --secret-uid. Secret values are never shown.

Examples:
  ksm-connect search webserver01
  ksm-connect search "domain admin" --profile production`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	term := args[0]

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

	prof, err := store.GetProfile(profileName)
	if err != nil {
		return fmt.Errorf("failed to load profile: %w", err)
	}

	client, err := ksm.NewClient(prof, nil)
	if err != nil {
		return fmt.Errorf("failed to create KSM client: %w", err)
	}

	results, err := client.Search(term)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if len(results) == 0 {
		fmt.Printf("No records match %q.\n", term)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "UID\tTITLE\tUSERNAME")
	fmt.Fprintln(w, "---\t-----\t--------")
	for _, result := range results {
		fmt.Fprintf(w, "%s\t%s\t%s\n", result.UID, result.Title, result.Username)
	}
	w.Flush()

	fmt.Printf("\n%d record(s) found\n", len(results))
	return nil
}
