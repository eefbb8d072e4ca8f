package main

import (
	"github.com/spf13/cobra"

	"github.com/modelpark/registry/pkg/asset"
)

var (
	deprecateReason      string
	deprecateAlternative string
)

var deprecateCmd = &cobra.Command{
	Use:   "deprecate <id | name@version>",
	Short: "Mark an asset version as deprecated",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeprecate,
}

func init() {
	deprecateCmd.Flags().StringVar(&deprecateReason, "reason", "", "Why the version is deprecated")
	deprecateCmd.Flags().StringVar(&deprecateAlternative, "alternative", "", "Version to use instead")
}

func runDeprecate(cmd *cobra.Command, args []string) error {
	client := newClient()
	id, err := resolveID(client, args[0])
	if err != nil {
		return err
	}

	body := map[string]string{}
	if deprecateReason != "" {
		body["reason"] = deprecateReason
	}
	if deprecateAlternative != "" {
		body["alternative_version"] = deprecateAlternative
	}

	var a asset.Asset
	if err := client.postJSON("/api/v1/assets/"+id+"/deprecate", body, &a); err != nil {
		return err
	}

	if outputFmt != "table" {
		return printOutput(&a)
	}
	printAssetTable([]*asset.Asset{&a})
	return nil
}
