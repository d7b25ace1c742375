package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"
	"github.com/spf13/cobra"

	"github.com/matzehuels/catbits/pkg/pipeline"
)

const (
	stagesText = "text"
	stagesDOT  = "dot"
	stagesSVG  = "svg"
)

// stagesCommand creates the stages command.
func (c *CLI) stagesCommand() *cobra.Command {
	var (
		format    string
		output    string
		noPermute bool
	)

	cmd := &cobra.Command{
		Use:   "stages",
		Short: "Show the configured stage chain",
		Long: `Show the configured stage chain with its parameters.

The chain reflects the config file and CATBITS_* variables. Use --format dot
for Graphviz source or --format svg for a rendered diagram.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			opts := cfg.Pipeline
			if cmd.Flags().Changed("no-permute") {
				opts.NoPermute = noPermute
			}
			plan, err := pipeline.Plan(opts)
			if err != nil {
				return err
			}

			w := io.Writer(os.Stdout)
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create %s: %w", output, err)
				}
				defer f.Close()
				w = f
			}

			switch format {
			case stagesText:
				return writeStagesText(w, plan)
			case stagesDOT:
				return renderStages(cmd.Context(), w, plan, graphviz.XDOT)
			case stagesSVG:
				return renderStages(cmd.Context(), w, plan, graphviz.SVG)
			default:
				return fmt.Errorf("invalid format: %s (must be 'text', 'dot' or 'svg')", format)
			}
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", stagesText, "output format: text, dot, svg")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	cmd.Flags().BoolVar(&noPermute, "no-permute", false, "show the chain without the cat map")

	return cmd
}

func writeStagesText(w io.Writer, plan []pipeline.StageInfo) error {
	for i, st := range plan {
		arrow := "  "
		if i > 0 {
			arrow = iconArrow + " "
		}
		if _, err := fmt.Fprintf(w, "%s%-10s %s\n", StyleDim.Render(arrow), StyleTitle.Render(st.Name), StyleDim.Render(st.Detail)); err != nil {
			return err
		}
	}
	return nil
}

// renderStages lays the chain out left to right with Graphviz.
func renderStages(ctx context.Context, w io.Writer, plan []pipeline.StageInfo, format graphviz.Format) error {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return fmt.Errorf("graphviz: %w", err)
	}
	defer gv.Close()

	graph, err := gv.Graph()
	if err != nil {
		return fmt.Errorf("graphviz: %w", err)
	}
	defer graph.Close()
	graph.SetRankDir(cgraph.LRRank)

	var (
		prev     *cgraph.Node
		prevName string
	)
	for _, st := range plan {
		n, err := graph.CreateNodeByName(st.Name)
		if err != nil {
			return fmt.Errorf("stage node %s: %w", st.Name, err)
		}
		n.SetShape(cgraph.BoxShape)
		n.SetLabel(st.Name + "\n" + st.Detail)
		if prev != nil {
			if _, err := graph.CreateEdgeByName(prevName+"->"+st.Name, prev, n); err != nil {
				return fmt.Errorf("stage edge %s: %w", st.Name, err)
			}
		}
		prev, prevName = n, st.Name
	}

	return gv.Render(ctx, graph, format, w)
}
