package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/modelpark/registry/pkg/asset"
	"github.com/modelpark/registry/pkg/registration"
)

var registerFile string

var registerCmd = &cobra.Command{
	Use:   "register -f request.json",
	Short: "Register a new asset version",
	Long: `Register reads a registration request from a JSON file and submits it.

The file carries the asset's name, version, type, storage location,
checksum, and optional dependencies, matching the POST /api/v1/assets
body.`,
	RunE: runRegister,
}

func init() {
	registerCmd.Flags().StringVarP(&registerFile, "file", "f", "", "Path to the registration request JSON file")
	_ = registerCmd.MarkFlagRequired("file")
}

func runRegister(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(registerFile)
	if err != nil {
		return fmt.Errorf("read request file: %w", err)
	}
	var req registration.RegisterRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("parse request file: %w", err)
	}
	if req.Actor == "" {
		req.Actor = resolvedActor()
	}

	var resp registration.RegisterResponse
	if err := newClient().postJSON("/api/v1/assets", req, &resp); err != nil {
		return err
	}

	if outputFmt != "table" {
		return printOutput(resp)
	}
	printAssetTable([]*asset.Asset{resp.Asset})
	for _, w := range resp.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s: %s\n", w.Field, w.Message)
	}
	return nil
}
