package main

import (
	"net/url"

	"github.com/spf13/cobra"

	"github.com/modelpark/registry/pkg/asset"
)

var (
	versionsConstraint string
	versionsLatest     bool
	versionsDeprecated bool
)

var versionsCmd = &cobra.Command{
	Use:   "versions <name>",
	Short: "List the registered versions of an asset name",
	Args:  cobra.ExactArgs(1),
	RunE:  runVersions,
}

func init() {
	versionsCmd.Flags().StringVar(&versionsConstraint, "constraint", "", "Semver constraint, e.g. '^1.0' or '>=2.0.0, <3.0.0'")
	versionsCmd.Flags().BoolVar(&versionsLatest, "latest", false, "Show only the latest active version")
	versionsCmd.Flags().BoolVar(&versionsDeprecated, "include-deprecated", false, "Include deprecated versions")
}

type versionsResult struct {
	Name     string         `json:"name"`
	Versions []*asset.Asset `json:"versions"`
	Total    int            `json:"total"`
}

func runVersions(cmd *cobra.Command, args []string) error {
	client := newClient()
	base := "/api/v1/versions/" + url.PathEscape(args[0])

	if versionsLatest {
		var a asset.Asset
		if err := client.getJSON(base+"?latest=true", &a); err != nil {
			return err
		}
		if outputFmt != "table" {
			return printOutput(&a)
		}
		printAssetTable([]*asset.Asset{&a})
		return nil
	}

	values := url.Values{}
	if versionsConstraint != "" {
		values.Set("constraint", versionsConstraint)
	}
	if versionsDeprecated {
		values.Set("include_deprecated", "true")
	}
	path := base
	if len(values) > 0 {
		path += "?" + values.Encode()
	}

	var result versionsResult
	if err := client.getJSON(path, &result); err != nil {
		return err
	}
	if outputFmt != "table" {
		return printOutput(result)
	}
	printAssetTable(result.Versions)
	return nil
}
