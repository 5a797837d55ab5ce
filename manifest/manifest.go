// Package manifest handles memberkit.toml project configuration.
package manifest

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// FileName is the manifest file looked up by Load and FindAndLoad.
const FileName = "memberkit.toml"

// Manifest represents a memberkit.toml project configuration.
type Manifest struct {
	Project Project `toml:"project"`
	Source  Source  `toml:"source"`
	Output  Output  `toml:"output"`
	Interop Interop `toml:"interop"`
	Log     Log     `toml:"log"`

	// Dir is the directory containing the memberkit.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Source configures where declaration units live.
type Source struct {
	Dirs       []string `toml:"dirs"`
	Extensions []string `toml:"extensions"`
}

// Output configures artifact output.
type Output struct {
	Artifact string `toml:"artifact"`
}

// Interop configures accessor name projection.
type Interop struct {
	BooleanTypes []string `toml:"boolean-types"`
}

// Log configures logging for the command-line tools.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Load parses a memberkit.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	md, err := toml.Decode(string(data), &m)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%s: unknown key %s", path, undecoded[0])
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	// Defaults
	if len(m.Source.Dirs) == 0 {
		m.Source.Dirs = []string{"units"}
	}
	if len(m.Source.Extensions) == 0 {
		m.Source.Extensions = []string{".yaml", ".yml"}
	}
	if m.Output.Artifact == "" {
		name := m.Project.Name
		if name == "" {
			name = filepath.Base(m.Dir)
		}
		m.Output.Artifact = filepath.Join("build", name+".mkart")
	}

	return &m, nil
}

// FindAndLoad walks up from startDir to find a memberkit.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// SourceDirPaths returns absolute paths for the configured source directories.
func (m *Manifest) SourceDirPaths() []string {
	var paths []string
	for _, d := range m.Source.Dirs {
		paths = append(paths, filepath.Join(m.Dir, d))
	}
	return paths
}

// ArtifactPath returns the absolute artifact output path.
func (m *Manifest) ArtifactPath() string {
	if filepath.IsAbs(m.Output.Artifact) {
		return m.Output.Artifact
	}
	return filepath.Join(m.Dir, m.Output.Artifact)
}

// UnitPaths lists the declaration units under the source directories,
// sorted. Missing source directories are skipped.
func (m *Manifest) UnitPaths() ([]string, error) {
	var paths []string
	for _, dir := range m.SourceDirPaths() {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if path == dir && os.IsNotExist(err) {
					return filepath.SkipDir
				}
				return err
			}
			if !d.IsDir() && m.isUnit(path) {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", dir, err)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func (m *Manifest) isUnit(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range m.Source.Extensions {
		if ext == e {
			return true
		}
	}
	return false
}
