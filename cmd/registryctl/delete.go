package main

import (
	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <id | name@version>",
	Short: "Delete an asset version",
	Long: `Delete removes an asset from the registry.

Assets that other assets depend on cannot be deleted; remove the
dependents first.`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func runDelete(cmd *cobra.Command, args []string) error {
	client := newClient()
	id, err := resolveID(client, args[0])
	if err != nil {
		return err
	}
	if err := client.delete("/api/v1/assets/" + id); err != nil {
		return err
	}
	cmd.Printf("deleted %s\n", args[0])
	return nil
}
