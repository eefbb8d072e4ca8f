package main

import (
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/modelpark/registry/pkg/asset"
)

var (
	searchText       string
	searchTypes      []string
	searchTags       []string
	searchAuthor     string
	searchDeprecated bool
	searchLimit      int
	searchOffset     int
	searchSortBy     string
	searchOrder      string
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search the asset catalog",
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().StringVarP(&searchText, "query", "q", "", "Substring of the name or description")
	searchCmd.Flags().StringSliceVar(&searchTypes, "type", nil, "Asset types to include")
	searchCmd.Flags().StringSliceVar(&searchTags, "tag", nil, "Tags the assets must carry (all of them)")
	searchCmd.Flags().StringVar(&searchAuthor, "author", "", "Provenance author")
	searchCmd.Flags().BoolVar(&searchDeprecated, "include-deprecated", false, "Include deprecated assets")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 0, "Page size (server default 50)")
	searchCmd.Flags().IntVar(&searchOffset, "offset", 0, "Page offset")
	searchCmd.Flags().StringVar(&searchSortBy, "sort-by", "", "Sort field: created_at, updated_at, name, version, size_bytes")
	searchCmd.Flags().StringVar(&searchOrder, "sort-order", "", "Sort order: asc or desc")
}

type searchResult struct {
	Assets  []*asset.Asset `json:"assets"`
	Total   int64          `json:"total"`
	Limit   int            `json:"limit"`
	Offset  int            `json:"offset"`
	HasMore bool           `json:"has_more"`
}

func runSearch(cmd *cobra.Command, args []string) error {
	values := url.Values{}
	if searchText != "" {
		values.Set("q", searchText)
	}
	for _, t := range searchTypes {
		values.Add("type", t)
	}
	for _, tag := range searchTags {
		values.Add("tag", tag)
	}
	if searchAuthor != "" {
		values.Set("author", searchAuthor)
	}
	if searchDeprecated {
		values.Set("include_deprecated", "true")
	}
	if searchLimit > 0 {
		values.Set("limit", strconv.Itoa(searchLimit))
	}
	if searchOffset > 0 {
		values.Set("offset", strconv.Itoa(searchOffset))
	}
	if searchSortBy != "" {
		values.Set("sort_by", searchSortBy)
	}
	if searchOrder != "" {
		values.Set("sort_order", searchOrder)
	}

	path := "/api/v1/assets"
	if len(values) > 0 {
		path += "?" + values.Encode()
	}

	var result searchResult
	if err := newClient().getJSON(path, &result); err != nil {
		return err
	}

	if outputFmt != "table" {
		return printOutput(result)
	}
	printAssetTable(result.Assets)
	if result.HasMore {
		cmd.Printf("showing %d of %d, use --offset %d for the next page\n",
			len(result.Assets), result.Total, result.Offset+len(result.Assets))
	}
	return nil
}
