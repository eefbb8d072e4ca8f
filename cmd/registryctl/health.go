package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check server health",
	RunE:  runHealth,
}

type healthResult struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func runHealth(cmd *cobra.Command, args []string) error {
	var result healthResult
	if err := newClient().getJSON("/healthz", &result); err != nil {
		return fmt.Errorf("server unreachable: %w", err)
	}

	if outputFmt != "table" {
		return printOutput(result)
	}
	rows := [][]string{{"server", result.Status}}
	for name, status := range result.Checks {
		rows = append(rows, []string{name, status})
	}
	printTable([]string{"Check", "Status"}, rows)
	return nil
}
