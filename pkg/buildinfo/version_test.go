package buildinfo

import (
	"strings"
	"testing"
)

func TestTemplate(t *testing.T) {
	oldVersion, oldCommit := Version, Commit
	t.Cleanup(func() { Version, Commit = oldVersion, oldCommit })

	Version, Commit = "v1.2.3", "abc123"

	tmpl := Template()
	if !strings.Contains(tmpl, "{{.Name}} version v1.2.3") {
		t.Errorf("Template() = %q, missing version line", tmpl)
	}
	if !strings.Contains(String(), "commit: abc123") {
		t.Errorf("String() = %q, missing commit", String())
	}
}
