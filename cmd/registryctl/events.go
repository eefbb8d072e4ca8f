package main

import (
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
)

var (
	eventsLimit int
	eventsName  string
)

var eventsCmd = &cobra.Command{
	Use:   "events <id | name@version>",
	Short: "Show an asset's audit trail, newest first",
	Args:  cobra.ExactArgs(1),
	RunE:  runEvents,
}

func init() {
	eventsCmd.Flags().IntVar(&eventsLimit, "limit", 0, "Page size (server default 100)")
	eventsCmd.Flags().StringVar(&eventsName, "name", "", "Filter by event name, e.g. asset_registered")
}

type eventEntry struct {
	Name          string          `json:"event"`
	Timestamp     string          `json:"timestamp"`
	Actor         string          `json:"actor"`
	Source        string          `json:"source"`
	CorrelationID string          `json:"correlation_id"`
	Payload       json.RawMessage `json:"payload"`
}

type eventsResult struct {
	Events []eventEntry `json:"events"`
	Total  int64        `json:"total"`
}

func runEvents(cmd *cobra.Command, args []string) error {
	client := newClient()
	id, err := resolveID(client, args[0])
	if err != nil {
		return err
	}

	values := url.Values{}
	if eventsLimit > 0 {
		values.Set("limit", strconv.Itoa(eventsLimit))
	}
	if eventsName != "" {
		values.Set("name", eventsName)
	}
	path := "/api/v1/assets/" + id + "/events"
	if len(values) > 0 {
		path += "?" + values.Encode()
	}

	var result eventsResult
	if err := client.getJSON(path, &result); err != nil {
		return err
	}

	if outputFmt != "table" {
		return printOutput(result)
	}
	rows := make([][]string, 0, len(result.Events))
	for _, ev := range result.Events {
		rows = append(rows, []string{ev.Timestamp, ev.Name, ev.Actor, ev.Source})
	}
	printTable([]string{"Timestamp", "Event", "Actor", "Source"}, rows)
	return nil
}
