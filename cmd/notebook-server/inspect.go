package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/leapsql/internal/notebook"
	"github.com/spf13/cobra"
)

// newInspectCmd prints a running server's current notebook state as a
// table, for local debugging without a browser. Grounded on the teacher's
// internal/cli/commands/query_render.go renderTable helper.
func newInspectCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print the current notebook state as a table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			nb, err := fetchNotebook(addr)
			if err != nil {
				return err
			}
			renderNotebook(cmd.OutOrStdout(), nb)
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "http://localhost:8080", "server address to inspect")
	return cmd
}

func fetchNotebook(addr string) (*notebook.Notebook, error) {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(strings.TrimRight(addr, "/") + "/notebook")
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET /notebook: unexpected status %s", resp.Status)
	}

	var nb notebook.Notebook
	if err := json.NewDecoder(resp.Body).Decode(&nb); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &nb, nil
}

func renderNotebook(w io.Writer, nb *notebook.Notebook) {
	dsn := "(none)"
	if nb.Settings.DSN != nil && *nb.Settings.DSN != "" {
		dsn = *nb.Settings.DSN
	}
	fmt.Fprintf(w, "DSN: %s\n", dsn)

	if len(nb.Cells) == 0 {
		fmt.Fprintln(w, "(no cells)")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Order", "ID", "Type", "Status", "Defs", "Refs", "Error"})

	for _, c := range nb.Cells {
		errStr := ""
		if c.Error != nil {
			errStr = *c.Error
		}
		t.AppendRow(table.Row{
			c.Order,
			c.ID,
			c.Type,
			c.Status,
			strings.Join(c.Defs, ", "),
			strings.Join(c.Refs, ", "),
			errStr,
		})
	}
	t.Render()
	fmt.Fprintf(w, "(%d cells)\n", len(nb.Cells))
}
