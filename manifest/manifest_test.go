package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "shapes"
version = "0.1.0"

[source]
dirs = ["units", "shared"]

[output]
artifact = "out/shapes.mkart"

[interop]
boolean-types = ["Boolean", "Flag"]

[log]
verbosity = 2
file = "memberkit.log"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Project.Name != "shapes" {
		t.Errorf("project name = %q, want shapes", m.Project.Name)
	}
	if m.Project.Version != "0.1.0" {
		t.Errorf("project version = %q, want 0.1.0", m.Project.Version)
	}
	if len(m.Source.Dirs) != 2 {
		t.Errorf("source dirs count = %d, want 2", len(m.Source.Dirs))
	}
	if m.Output.Artifact != "out/shapes.mkart" {
		t.Errorf("artifact = %q", m.Output.Artifact)
	}
	if len(m.Interop.BooleanTypes) != 2 || m.Interop.BooleanTypes[1] != "Flag" {
		t.Errorf("boolean-types = %v", m.Interop.BooleanTypes)
	}
	if m.Log.Verbosity != 2 || m.Log.File != "memberkit.log" {
		t.Errorf("log = %+v", m.Log)
	}
	if want := filepath.Join(m.Dir, "out", "shapes.mkart"); m.ArtifactPath() != want {
		t.Errorf("ArtifactPath = %q, want %q", m.ArtifactPath(), want)
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "minimal"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(m.Source.Dirs) != 1 || m.Source.Dirs[0] != "units" {
		t.Errorf("default source dirs = %v, want [units]", m.Source.Dirs)
	}
	if m.Output.Artifact != filepath.Join("build", "minimal.mkart") {
		t.Errorf("default artifact = %q", m.Output.Artifact)
	}
	if len(m.Interop.BooleanTypes) != 0 {
		t.Errorf("boolean-types should default to empty, got %v", m.Interop.BooleanTypes)
	}
}

func TestLoadManifestRejectsUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "typo"

[sources]
dirs = ["x"]
`)
	if _, err := Load(dir); err == nil {
		t.Error("Load should reject unknown sections")
	}
}

func TestLoadManifestMissing(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Error("Load should fail without a manifest")
	}
}

func TestFindAndLoad(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "[project]\nname = \"root\"\n")
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	m, err := FindAndLoad(nested)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil || m.Project.Name != "root" {
		t.Fatalf("FindAndLoad = %+v", m)
	}
	abs, _ := filepath.Abs(root)
	if m.Dir != abs {
		t.Errorf("Dir = %q, want %q", m.Dir, abs)
	}
}

func TestUnitPaths(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "[source]\ndirs = [\"units\", \"missing\"]\n")
	files := []string{
		"units/b.yaml",
		"units/a.yml",
		"units/sub/c.YAML",
		"units/notes.txt",
	}
	for _, f := range files {
		path := filepath.Join(dir, f)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, nil, 0644); err != nil {
			t.Fatal(err)
		}
	}

	m, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	paths, err := m.UnitPaths()
	if err != nil {
		t.Fatalf("UnitPaths failed: %v", err)
	}
	units := filepath.Join(m.Dir, "units")
	want := []string{
		filepath.Join(units, "a.yml"),
		filepath.Join(units, "b.yaml"),
		filepath.Join(units, "sub", "c.YAML"),
	}
	if len(paths) != len(want) {
		t.Fatalf("UnitPaths = %v, want %v", paths, want)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("UnitPaths[%d] = %q, want %q", i, paths[i], want[i])
		}
	}
}
