// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/leapstack-labs/eqviz/internal/cli/output"
	itestutil "github.com/leapstack-labs/eqviz/internal/testutil"
)

// Project is a temporary working directory with an eqviz.yaml pointing at a
// fake analytics service.
type Project struct {
	Dir       string
	StatePath string
	ReportDir string
	Service   *itestutil.FakeService
}

// SetupTestProject starts a fake service and writes a config file for it
// into a fresh temporary directory, plus a sample CSV named plant.csv.
func SetupTestProject(t *testing.T) *Project {
	t.Helper()

	svc := itestutil.NewFakeService(t)
	dir := t.TempDir()
	p := &Project{
		Dir:       dir,
		StatePath: filepath.Join(dir, ".eqviz", "state.db"),
		ReportDir: filepath.Join(dir, "reports"),
		Service:   svc,
	}

	cfg := fmt.Sprintf(`base_url: %s
state_path: %s
report_dir: %s
timeout: 5s
`, svc.BaseURL(), p.StatePath, p.ReportDir)
	if err := os.WriteFile(filepath.Join(dir, "eqviz.yaml"), []byte(cfg), 0644); err != nil {
		t.Fatalf("failed to write eqviz.yaml: %v", err)
	}
	p.WriteFile(t, "plant.csv", itestutil.SampleCSV)
	return p
}

// WriteFile writes content to name inside the project and returns its path.
func (p *Project) WriteFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(p.Dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

// TestRenderer wraps a Renderer for testing with captured output buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a new test renderer with the specified mode and TTY state.
// Output is captured in buffers for inspection.
func NewTestRenderer(mode output.Mode, isTTY bool) *TestRenderer {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRendererWithTTY(out, errOut, isTTY, mode),
		Out:      out,
		ErrOut:   errOut,
	}
}

// NewTestRendererText creates a new test renderer in text mode (simulated TTY).
func NewTestRendererText() *TestRenderer {
	return NewTestRenderer(output.ModeText, true)
}

// NewTestRendererMarkdown creates a new test renderer in markdown mode.
func NewTestRendererMarkdown() *TestRenderer {
	return NewTestRenderer(output.ModeMarkdown, false)
}

// NewTestRendererJSON creates a new test renderer in JSON mode.
func NewTestRendererJSON() *TestRenderer {
	return NewTestRenderer(output.ModeJSON, false)
}

// Output returns the stdout output as a string.
func (tr *TestRenderer) Output() string {
	return tr.Out.String()
}

// ErrorOutput returns the stderr output as a string.
func (tr *TestRenderer) ErrorOutput() string {
	return tr.ErrOut.String()
}

// Reset clears both output buffers.
func (tr *TestRenderer) Reset() {
	tr.Out.Reset()
	tr.ErrOut.Reset()
}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}

// AssertValidMarkdown checks for unclosed code fences and empty headers.
func AssertValidMarkdown(t *testing.T, md string) {
	t.Helper()

	if n := strings.Count(md, "```"); n%2 != 0 {
		t.Errorf("unbalanced code fences in markdown: found %d occurrences", n)
	}
	for i, line := range strings.Split(md, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") && strings.TrimLeft(trimmed, "# ") == "" {
			t.Errorf("empty header at line %d: %q", i+1, line)
		}
	}
}
