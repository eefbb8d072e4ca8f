package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	outputFmt string
	actor     string
)

var rootCmd = &cobra.Command{
	Use:   "registryctl",
	Short: "CLI for the asset registry server",
	Long: `registryctl manages versioned assets in the registry: models,
datasets, pipelines, policies, and test suites.

Assets are addressed by ULID or by name@version. All commands talk to the
registry server's REST API.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Registry server URL")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table", "Output format: table, json, yaml")
	rootCmd.PersistentFlags().StringVar(&actor, "actor", "", "Acting principal recorded on audit events (default: REGISTRY_ACTOR env)")

	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(versionsCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(deprecateCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(healthCmd)
}

// resolvedActor returns the effective actor.
// Priority: --actor flag > REGISTRY_ACTOR env var > empty (server default).
func resolvedActor() string {
	if actor != "" {
		return actor
	}
	return os.Getenv("REGISTRY_ACTOR")
}
