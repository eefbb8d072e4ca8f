package main

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/modelpark/registry/pkg/asset"
)

var getCmd = &cobra.Command{
	Use:   "get <id | name@version>",
	Short: "Fetch one asset",
	Args:  cobra.ExactArgs(1),
	RunE:  runGet,
}

// assetPath resolves an id or name@version argument to its API path.
func assetPath(arg string) (string, error) {
	if name, version, ok := strings.Cut(arg, "@"); ok {
		if name == "" || version == "" {
			return "", fmt.Errorf("expected name@version, got %q", arg)
		}
		return "/api/v1/versions/" + url.PathEscape(name) + "/" + url.PathEscape(version), nil
	}
	if _, err := asset.ParseID(arg); err != nil {
		return "", fmt.Errorf("not an asset id or name@version: %q", arg)
	}
	return "/api/v1/assets/" + arg, nil
}

// resolveID returns the ULID for an id or name@version argument, looking
// the asset up when needed.
func resolveID(client *registryClient, arg string) (string, error) {
	if _, err := asset.ParseID(arg); err == nil {
		return arg, nil
	}
	path, err := assetPath(arg)
	if err != nil {
		return "", err
	}
	var a asset.Asset
	if err := client.getJSON(path, &a); err != nil {
		return "", err
	}
	return a.ID.String(), nil
}

func runGet(cmd *cobra.Command, args []string) error {
	path, err := assetPath(args[0])
	if err != nil {
		return err
	}
	var a asset.Asset
	if err := newClient().getJSON(path, &a); err != nil {
		return err
	}

	if outputFmt != "table" {
		return printOutput(&a)
	}
	printAssetTable([]*asset.Asset{&a})
	return nil
}
