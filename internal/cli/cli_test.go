package cli

import (
	"bytes"
	"encoding/json"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matzehuels/catbits/pkg/config"
	"github.com/matzehuels/catbits/pkg/core/grid"
	"github.com/matzehuels/catbits/pkg/store"
)

// isolate points every XDG directory at a temp dir.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(dir, "cache"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	c := New(io.Discard, LogInfo)
	root := c.RootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writePNG(t *testing.T, path string) {
	t.Helper()
	g := grid.Filled(8, 8, grid.White)
	g.Set(1, 2, grid.Black)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, g.Image()); err != nil {
		t.Fatal(err)
	}
}

func TestRunAndRuns(t *testing.T) {
	dir := isolate(t)
	a := filepath.Join(dir, "a.png")
	b := filepath.Join(dir, "b.png")
	writePNG(t, a)
	writePNG(t, b)
	out := filepath.Join(dir, "out.bin")
	db := filepath.Join(dir, "runs.db")

	_, err := execute(t, "run",
		"--cache", "none", "--store", db,
		"--width", "8", "--height", "8", "--iterations", "1",
		"-o", out, a, b)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, []byte{0x40, 0x40}) {
		t.Errorf("artifact = %x, want 4040", got)
	}

	listing, err := execute(t, "runs", "--json", "--store", db)
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	var runs []store.Run
	if err := json.Unmarshal([]byte(listing), &runs); err != nil {
		t.Fatalf("decode runs: %v\n%s", err, listing)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(runs))
	}
	if runs[0].Images != 2 || runs[0].Bytes != 2 || runs[0].Output != out {
		t.Errorf("run = %+v", runs[0])
	}
}

func TestRunTextFormat(t *testing.T) {
	dir := isolate(t)
	img := filepath.Join(dir, "a.png")
	writePNG(t, img)
	out := filepath.Join(dir, "out.txt")

	_, err := execute(t, "run", "--cache", "none", "--store", "none",
		"--width", "8", "--height", "8", "--no-permute", "--format", "text",
		"-o", out, img)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "10000000" {
		t.Errorf("artifact = %q, want %q", got, "10000000")
	}
}

func TestRunRejectsBadFlags(t *testing.T) {
	isolate(t)
	if _, err := execute(t, "run", "--store", "none", "--threshold", "300", "x.png"); err == nil {
		t.Error("threshold 300 accepted")
	}
	if _, err := execute(t, "run", "--store", "none", "a.png", "https://example.com/b.png"); err == nil {
		t.Error("mixed files and URLs accepted")
	}
}

func TestConfigInit(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "catbits.toml")

	if _, err := execute(t, "config", "init", path); err != nil {
		t.Fatalf("init: %v", err)
	}
	if _, err := execute(t, "config", "init", path); err == nil {
		t.Error("second init overwrote without --force")
	}
	if _, err := execute(t, "config", "init", "--force", path); err != nil {
		t.Errorf("init --force: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load written config: %v", err)
	}
	if cfg.Output.Path != config.DefaultOutput {
		t.Errorf("output = %q, want %q", cfg.Output.Path, config.DefaultOutput)
	}
}

func TestConfigShowAndPath(t *testing.T) {
	dir := isolate(t)
	t.Setenv("CATBITS_ITERATIONS", "3")

	out, err := execute(t, "config", "show")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	for _, want := range []string{"[pipeline]", "iterations = 3", "[output]"} {
		if !strings.Contains(out, want) {
			t.Errorf("config show missing %q:\n%s", want, out)
		}
	}

	out, err = execute(t, "config", "path")
	if err != nil {
		t.Fatalf("path: %v", err)
	}
	want := filepath.Join(dir, "config", "catbits", "config.toml")
	if strings.TrimSpace(out) != want {
		t.Errorf("config path = %q, want %q", strings.TrimSpace(out), want)
	}
}

func TestRunsEmpty(t *testing.T) {
	dir := isolate(t)
	out, err := execute(t, "runs", "--json", "--store", filepath.Join(dir, "runs.db"))
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if strings.TrimSpace(out) != "[]" && strings.TrimSpace(out) != "null" {
		t.Errorf("runs = %q, want empty list", out)
	}
}

func TestRunsTable(t *testing.T) {
	table := runsTable([]store.Run{
		{ID: "0123456789abcdef", Source: "src", Images: 3, Bytes: 1536},
		{ID: "short", Source: "2 URLs", Skipped: 1, Error: "boom"},
	})
	for _, want := range []string{"01234567", "short", "src", "2 URLs", "Entropy"} {
		if !strings.Contains(table, want) {
			t.Errorf("table missing %q:\n%s", want, table)
		}
	}
	if strings.Contains(table, "0123456789") {
		t.Error("run ID not shortened")
	}
}
