// memberc compiles declaration units: it synthesizes members, reports
// declaration errors and writes a content-hashed artifact per unit.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/memberkit/artifact"
	"github.com/chazu/memberkit/driver"
	"github.com/chazu/memberkit/lsp"
	"github.com/chazu/memberkit/manifest"
	"github.com/chazu/memberkit/unit"

	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("memberkit.memberc")

func main() {
	verbosity := flag.Int("v", -1, "Log verbosity (0 = errors only; defaults to the manifest setting)")
	logFile := flag.String("log", "", "Log file (default stderr)")
	output := flag.String("o", "", "Artifact output path (single unit only)")
	check := flag.Bool("check", false, "Report diagnostics without writing artifacts")
	list := flag.Bool("list", false, "Print synthesized members and interop names")
	inspect := flag.String("inspect", "", "Print the contents of an artifact and exit")
	lspMode := flag.Bool("lsp", false, "Start the language server on stdio")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: memberc [options] [units...]\n\n")
		fmt.Fprintf(os.Stderr, "Compiles declaration units. Without arguments, compiles the units under\n")
		fmt.Fprintf(os.Stderr, "the source directories of the nearest %s.\n\n", manifest.FileName)
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  memberc                       # Compile the project\n")
		fmt.Fprintf(os.Stderr, "  memberc -list shapes.yaml     # Show members of one unit\n")
		fmt.Fprintf(os.Stderr, "  memberc -inspect build/x.mkart\n")
		fmt.Fprintf(os.Stderr, "  memberc -lsp                  # Serve editors over stdio\n")
	}
	flag.Parse()

	m, err := manifest.FindAndLoad(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading manifest: %v\n", err)
		os.Exit(1)
	}

	configureLogging(m, *verbosity, *logFile)

	opts := driver.Options{}
	if m != nil {
		opts.BooleanTypes = m.Interop.BooleanTypes
	}

	if *lspMode {
		if err := lsp.New(opts).Run(); err != nil {
			fmt.Fprintf(os.Stderr, "LSP error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *inspect != "" {
		if err := inspectArtifact(*inspect); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	paths := flag.Args()
	if len(paths) == 0 {
		if m == nil {
			fmt.Fprintf(os.Stderr, "Error: no units given and no %s found\n", manifest.FileName)
			os.Exit(1)
		}
		if paths, err = m.UnitPaths(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if len(paths) == 0 {
			fmt.Fprintf(os.Stderr, "No units found under %s\n", strings.Join(m.SourceDirPaths(), ", "))
			os.Exit(1)
		}
	}
	if *output != "" && len(paths) > 1 {
		fmt.Fprintln(os.Stderr, "Error: -o requires a single unit")
		os.Exit(1)
	}

	failed := 0
	for _, path := range paths {
		res, err := compileUnit(path, opts)
		if err != nil {
			failed++
			continue
		}
		if *list {
			printMembers(res)
		}
		if *check {
			continue
		}
		out := artifactPath(m, path, *output, len(paths))
		if err := writeArtifact(res, out); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			failed++
		}
	}
	if failed > 0 {
		fmt.Fprintf(os.Stderr, "%d of %d units failed\n", failed, len(paths))
		os.Exit(1)
	}
}

func configureLogging(m *manifest.Manifest, verbosity int, logFile string) {
	if verbosity < 0 {
		verbosity = 0
		if m != nil {
			verbosity = m.Log.Verbosity
		}
	}
	if logFile == "" && m != nil && m.Log.File != "" {
		logFile = filepath.Join(m.Dir, m.Log.File)
	}
	if logFile == "" {
		commonlog.Configure(verbosity, nil)
	} else {
		commonlog.Configure(verbosity, &logFile)
	}
}

// compileUnit prints every diagnostic as path:line: message.
func compileUnit(path string, opts driver.Options) (*driver.Result, error) {
	u, err := unit.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s:%d: %v\n", path, unit.LineOf(err), err)
		return nil, err
	}
	res, err := driver.Compile(u, opts)
	if err != nil {
		for _, d := range driver.Diagnostics(err) {
			fmt.Fprintf(os.Stderr, "%s:%d: %v\n", path, d.Line, d.Err)
		}
		return nil, err
	}
	log.Infof("%s: %d classes", path, len(res.Classes))
	return res, nil
}

// artifactPath picks the output for a unit: the -o flag, the manifest's
// artifact for a single unit, or one file per unit beside it.
func artifactPath(m *manifest.Manifest, unitPath, output string, units int) string {
	if output != "" {
		return output
	}
	stem := strings.TrimSuffix(filepath.Base(unitPath), filepath.Ext(unitPath))
	if m == nil {
		return strings.TrimSuffix(unitPath, filepath.Ext(unitPath)) + ".mkart"
	}
	if units == 1 {
		return m.ArtifactPath()
	}
	return filepath.Join(filepath.Dir(m.ArtifactPath()), stem+".mkart")
}

func writeArtifact(res *driver.Result, path string) error {
	a, err := artifact.Build(res)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := artifact.WriteFile(path, a); err != nil {
		return err
	}
	fmt.Printf("Wrote %s (%x)\n", path, a.Hash[:6])
	return nil
}

func printMembers(res *driver.Result) {
	for _, c := range res.Classes {
		ms := c.Members
		fmt.Printf("%s (%s, %d slots)\n", ms.Class(), ms.Kind(), ms.NumSlots())
		for i, p := range ms.Properties() {
			storage := "stored"
			if !p.HasBackingField() {
				storage = "computed"
			}
			names := c.Names[i].Names
			accessors := names.Getter
			if names.Setter != "" {
				accessors += ", " + names.Setter
			}
			fmt.Printf("  %s %s: %s [%s, %s] %s\n", p.Mutability, p.Name, p.Type, storage, p.Origin, accessors)
		}
		for _, meth := range ms.Methods() {
			fmt.Printf("  fun %s\n", meth.Name)
		}
	}
	for _, ext := range res.Extensions.All() {
		fmt.Printf("extension %s %s%s\n", ext.Kind, ext.QualifiedName(), ext.Signature())
	}
}

func inspectArtifact(path string) error {
	a, err := artifact.ReadFile(path)
	if err != nil {
		return err
	}
	fmt.Printf("artifact %s v%d hash %x\n", a.ID, a.Version, a.Hash)
	for _, c := range a.Payload.Classes {
		fmt.Printf("%s (%s, %d slots)\n", c.Name, c.Kind, c.Slots)
		for _, p := range c.Properties {
			fmt.Printf("  %s: %s slot=%d %s %s\n", p.Name, p.Type, p.Slot, p.Getter, p.Setter)
		}
	}
	for _, e := range a.Payload.Extensions {
		fmt.Printf("extension %s %s.%s%s\n", e.Kind, e.Receiver, e.Name, e.Signature)
	}
	return nil
}
