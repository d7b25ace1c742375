package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/catbits/pkg/pipeline"
	"github.com/matzehuels/catbits/pkg/source"
)

const (
	progressBarWidth = 40
	progressLogLines = 6
)

var (
	barFullStyle  = lipgloss.NewStyle().Foreground(colorCyan)
	barEmptyStyle = lipgloss.NewStyle().Foreground(colorDim)
)

// imageDoneMsg is sent for every processed or skipped image.
type imageDoneMsg pipeline.ImageReport

// batchDoneMsg is sent once when the batch returns.
type batchDoneMsg struct {
	res *pipeline.BatchResult
	err error
}

// =============================================================================
// BatchModel - live batch progress
// =============================================================================

// BatchModel is the bubbletea model behind `run --progress`.
type BatchModel struct {
	Total    int
	Done     int
	Skipped  int
	Bytes    int64
	Recent   []pipeline.ImageReport
	Result   *pipeline.BatchResult
	Err      error
	Finished bool

	// Stopping is set once the user asked to cancel.
	Stopping bool

	cancel context.CancelFunc
	start  time.Time
}

// NewBatchModel creates a model for a batch of total images. cancel is
// called when the user presses q or ctrl+c.
func NewBatchModel(total int, cancel context.CancelFunc) BatchModel {
	return BatchModel{Total: total, cancel: cancel, start: time.Now()}
}

func (m BatchModel) Init() tea.Cmd {
	return nil
}

func (m BatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if !m.Stopping && m.cancel != nil {
				m.cancel()
			}
			m.Stopping = true
		}
	case imageDoneMsg:
		r := pipeline.ImageReport(msg)
		m.Done++
		if r.Skipped() {
			m.Skipped++
		}
		m.Bytes += int64(r.Bytes)
		if r.Total > 0 {
			m.Total = r.Total
		}
		m.Recent = append(m.Recent, r)
		if len(m.Recent) > progressLogLines {
			m.Recent = m.Recent[len(m.Recent)-progressLogLines:]
		}
	case batchDoneMsg:
		m.Finished = true
		m.Result = msg.res
		m.Err = msg.err
		return m, tea.Quit
	}
	return m, nil
}

func (m BatchModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("catbits"))
	b.WriteString(StyleDim.Render(fmt.Sprintf("  %s elapsed", time.Since(m.start).Round(time.Second))))
	b.WriteString("\n\n")
	b.WriteString(progressBar(m.Done, m.Total, progressBarWidth))
	b.WriteString(fmt.Sprintf("  %s/%s", StyleNumber.Render(formatCount(int64(m.Done))), formatCount(int64(m.Total))))
	b.WriteString(StyleDim.Render(fmt.Sprintf("  %s written", formatBytes(m.Bytes))))
	if m.Skipped > 0 {
		b.WriteString("  " + StyleWarning.Render(fmt.Sprintf("%d skipped", m.Skipped)))
	}
	b.WriteString("\n\n")

	for _, r := range m.Recent {
		b.WriteString(imageLine(r))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	switch {
	case m.Finished:
	case m.Stopping:
		b.WriteString(StyleWarning.Render("stopping after the current image..."))
	default:
		b.WriteString(StyleDim.Render("q quit"))
	}
	b.WriteString("\n")
	return b.String()
}

// progressBar renders done/total as a fixed-width bar.
func progressBar(done, total, width int) string {
	filled := 0
	if total > 0 {
		filled = min(width, done*width/total)
	}
	return barFullStyle.Render(strings.Repeat("█", filled)) +
		barEmptyStyle.Render(strings.Repeat("░", width-filled))
}

// batchWithProgress runs the batch while a BatchModel renders progress on
// stderr.
func batchWithProgress(ctx context.Context, runner *pipeline.Runner, src source.Source,
	sinks pipeline.Sinks, opts pipeline.Options) (*pipeline.BatchResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewBatchModel(src.Len(), cancel), tea.WithOutput(os.Stderr))
	go func() {
		res, err := runner.Batch(ctx, src, sinks, opts, func(r pipeline.ImageReport) {
			p.Send(imageDoneMsg(r))
		})
		p.Send(batchDoneMsg{res: res, err: err})
	}()

	final, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("progress view: %w", err)
	}
	m := final.(BatchModel)
	return m.Result, m.Err
}
