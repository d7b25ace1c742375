package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/catbits/pkg/analysis"
	pkgio "github.com/matzehuels/catbits/pkg/io"
)

// analyzeCommand creates the analyze command.
func (c *CLI) analyzeCommand() *cobra.Command {
	var (
		format    string
		asJSON    bool
		histogram bool
	)

	cmd := &cobra.Command{
		Use:   "analyze [artifact]",
		Short: "Report byte statistics of a bitstream artifact",
		Long: `Report byte statistics of a bitstream artifact.

Prints the Shannon entropy (8 bits per byte is ideal), the chi-square
statistic against a uniform distribution, the mean, serial correlation,
share of set bits and zstd compressibility. With --histogram the 256 byte
counts are shown as a 16x16 table (rows are the high nibble).

Text artifacts ('0'/'1' characters) are detected automatically.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			} else {
				cfg, err := c.loadConfig()
				if err != nil {
					return err
				}
				path = cfg.Output.Path
			}
			f := pkgio.Format(format)
			if f != "" && !pkgio.ValidFormats[f] {
				return fmt.Errorf("invalid format: %s (must be 'bin' or 'text')", format)
			}

			spinner := newSpinnerWithContext(cmd.Context(), "Analyzing "+path+"...")
			spinner.Start()
			report, err := analysis.AnalyzeFile(path, f)
			spinner.Stop()
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			printReport(report)
			if histogram {
				fmt.Println()
				fmt.Println(histogramTable(report.Histogram))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "artifact encoding: bin, text (default: detect)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	cmd.Flags().BoolVar(&histogram, "histogram", false, "print the byte histogram")

	return cmd
}

func printReport(r *analysis.Report) {
	s := r.Summary
	fmt.Println(StyleTitle.Render(r.Path) + StyleDim.Render(" ("+string(r.Format)+")"))
	printKeyValue("Bytes", formatCount(int64(s.Bytes)))
	printKeyValue("Entropy", fmt.Sprintf("%.6f bits/byte", s.Entropy))
	printKeyValue("Chi-square", fmt.Sprintf("%.2f (255 dof)", s.ChiSquare))
	printKeyValue("Mean", fmt.Sprintf("%.4f", s.Mean))
	printKeyValue("Serial corr.", fmt.Sprintf("%.6f", s.SerialCorrelation))
	printKeyValue("Ones ratio", fmt.Sprintf("%.6f", s.BitOnesRatio))
	printKeyValue("Compression", fmt.Sprintf("%.4f", s.CompressionRatio))
	printKeyValue("Bin counts", fmt.Sprintf("mean %.2f · sd %.2f · median %.0f · min %.0f · max %.0f",
		s.BinMean, s.BinStdDev, s.BinMedian, s.BinMin, s.BinMax))
}

// histogramTable renders the 256 counts as a 16x16 table. Empty bins are
// highlighted.
func histogramTable(hist [256]uint64) string {
	headers := make([]string, 17)
	headers[0] = ""
	for col := 0; col < 16; col++ {
		headers[col+1] = fmt.Sprintf("_%X", col)
	}

	rows := make([][]string, 16)
	for row := 0; row < 16; row++ {
		cells := make([]string, 17)
		cells[0] = fmt.Sprintf("%X_", row)
		for col := 0; col < 16; col++ {
			cells[col+1] = strconv.FormatUint(hist[row*16+col], 10)
		}
		rows[row] = cells
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			base := lipgloss.NewStyle().Padding(0, 1).Align(lipgloss.Right)
			switch {
			case row == -1, col == 0:
				return headerStyle.Padding(0, 1)
			case row >= 0 && row < 16 && col > 0 && hist[row*16+col-1] == 0:
				return base.Foreground(colorRed)
			}
			return base
		}).
		String()
}
