package main

import (
	"encoding/base64"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	verifyAlgorithm string
	verifyValue     string
	verifyFile      string
)

var verifyCmd = &cobra.Command{
	Use:   "verify <id | name@version>",
	Short: "Verify an asset's checksum",
	Long: `Verify compares a digest against the checksum stored for an asset.

Pass either a precomputed digest (--algorithm and --value) or a local file
(--file) to hash server side with the asset's stored algorithm.`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().StringVar(&verifyAlgorithm, "algorithm", "sha256", "Digest algorithm: sha256, sha3-256, blake3")
	verifyCmd.Flags().StringVar(&verifyValue, "value", "", "Precomputed hex digest")
	verifyCmd.Flags().StringVarP(&verifyFile, "file", "f", "", "Local artifact file to verify")
}

type verifyResult struct {
	AssetID  string `json:"asset_id"`
	Verified bool   `json:"verified"`
	Expected struct {
		Algorithm string `json:"algorithm"`
		Value     string `json:"value"`
	} `json:"expected"`
	Actual struct {
		Algorithm string `json:"algorithm"`
		Value     string `json:"value"`
	} `json:"actual"`
}

func runVerify(cmd *cobra.Command, args []string) error {
	client := newClient()
	id, err := resolveID(client, args[0])
	if err != nil {
		return err
	}

	body := map[string]string{}
	switch {
	case verifyFile != "":
		data, err := os.ReadFile(verifyFile)
		if err != nil {
			return fmt.Errorf("read artifact: %w", err)
		}
		body["data"] = base64.StdEncoding.EncodeToString(data)
	case verifyValue != "":
		body["algorithm"] = verifyAlgorithm
		body["value"] = verifyValue
	default:
		return fmt.Errorf("either --value or --file is required")
	}

	var result verifyResult
	if err := client.postJSON("/api/v1/assets/"+id+"/verify", body, &result); err != nil {
		return err
	}

	if outputFmt != "table" {
		return printOutput(result)
	}
	printTable([]string{"Asset", "Verified", "Expected", "Actual"}, [][]string{{
		result.AssetID,
		fmt.Sprintf("%t", result.Verified),
		result.Expected.Algorithm + ":" + result.Expected.Value,
		result.Actual.Algorithm + ":" + result.Actual.Value,
	}})
	if !result.Verified {
		return fmt.Errorf("checksum mismatch")
	}
	return nil
}
