package pipeline

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/disintegration/imaging"

	"github.com/matzehuels/catbits/pkg/core/grid"
)

// debugExporter writes intermediate grids as PNG files for inspection.
// Failures are logged and never affect the pipeline.
type debugExporter struct {
	dir    string
	base   string
	logger *log.Logger
}

func newDebugExporter(dir, name string, logger *log.Logger) *debugExporter {
	if dir == "" {
		return nil
	}
	return &debugExporter{dir: dir, base: debugBase(name), logger: logger}
}

// export saves g if stage is one worth looking at.
func (d *debugExporter) export(stage string, g *grid.Grid) {
	if d == nil || g == nil {
		return
	}
	switch stage {
	case StageCrop, StageDither, StagePermute:
	default:
		return
	}

	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		d.logger.Warn("debug export failed", "err", err)
		return
	}
	path := filepath.Join(d.dir, d.base+"."+stage+".png")
	if err := imaging.Save(g.Image(), path); err != nil {
		d.logger.Warn("debug export failed", "path", path, "err", err)
		return
	}
	d.logger.Debug("wrote debug image", "path", path)
}

// debugBase turns an image name (a file name or URL) into a safe file stem.
func debugBase(name string) string {
	name = strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		}
		return '_'
	}, name)
	if name == "" || name == "." {
		return "image"
	}
	return name
}
