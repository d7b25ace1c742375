package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/catbits/pkg/store"
)

// runsCommand creates the runs command.
func (c *CLI) runsCommand() *cobra.Command {
	var (
		limit    int
		storeURL string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recently recorded batches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("store") {
				cfg.Store.URL = storeURL
			}
			ctx := cmd.Context()

			s := c.newStore(ctx, cfg.Store)
			defer s.Close()

			runs, err := s.ListRuns(ctx, limit)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(runs)
			}
			if len(runs) == 0 {
				printInfo("No runs recorded yet")
				printNextStep("Start one", "catbits run")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), runsTable(runs))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", store.DefaultListLimit, "number of runs to show")
	cmd.Flags().StringVar(&storeURL, "store", "", "run history: sqlite path, mongodb:// URL")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print runs as JSON")

	return cmd
}

func runsTable(runs []store.Run) string {
	rows := make([][]string, len(runs))
	for i, r := range runs {
		status := iconSuccess
		if r.Error != "" {
			status = iconError
		}
		id := r.ID
		if len(id) > 8 {
			id = id[:8]
		}
		rows[i] = []string{
			status,
			id,
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			r.Source,
			formatCount(int64(r.Images)),
			strconv.Itoa(r.Skipped),
			formatBytes(r.Bytes),
			fmt.Sprintf("%.4f", r.Entropy),
			r.Duration().Round(time.Millisecond).String(),
		}
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Run", "Started", "Source", "Images", "Skipped", "Bytes", "Entropy", "Took").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			base := lipgloss.NewStyle().Padding(0, 1)
			switch {
			case row == -1:
				return headerStyle.Padding(0, 1)
			case col == 0 && row < len(runs) && runs[row].Error != "":
				return base.Foreground(colorRed)
			case col == 0:
				return base.Foreground(colorGreen)
			case col == 5 && row < len(runs) && runs[row].Skipped > 0:
				return base.Foreground(colorYellow)
			}
			return base
		}).
		String()
}
