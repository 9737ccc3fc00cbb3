package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/fatih/color"

	"github.com/daimatz/jremap/pkg/hierarchy"
	"github.com/daimatz/jremap/pkg/mapping"
	"github.com/daimatz/jremap/pkg/remap"
)

var (
	colorName    = color.New(color.Bold, color.FgHiBlue).SprintFunc()
	colorChanged = color.New(color.FgHiGreen).SprintFunc()
	colorMissing = color.New(color.FgYellow).SprintFunc()
	colorFaint   = color.New(color.Faint).SprintfFunc()
)

func verboseFlag(fs *flag.FlagSet) *bool {
	return fs.Bool("v", false, "debug logging")
}

func setupLog(verbose bool) {
	log.SetHandler(cli.Default)
	if verbose {
		log.SetLevel(log.DebugLevel)
	}
}

// tables holds the mapping tables of one remap operation.
type tables struct {
	srg   *mapping.Table
	names *mapping.Names
	ids   *mapping.IDs
}

// loadTables reads a structural table and, when csvDir is set, the
// identifier-substitution tables.
func loadTables(srgPath, csvDir string) (*tables, error) {
	t := &tables{srg: mapping.NewTable(), ids: mapping.NewIDs()}
	if err := mapping.LoadSRGFile(srgPath, t.srg); err != nil {
		return nil, err
	}
	if csvDir != "" {
		names, err := mapping.LoadNamesDir(csvDir, t.ids)
		if err != nil {
			return nil, err
		}
		t.names = names
	}
	log.WithFields(log.Fields{"srg": srgPath, "classes": t.srg.Len()}).Info("loaded mappings")
	return t, nil
}

// remapper returns a Remapper running the structural pass and, when
// identifier tables were loaded, the substitution pass after it.
func (t *tables) remapper() *remap.Remapper {
	passes := []remap.Pass{remap.StructuralPass{}}
	if t.names != nil {
		passes = append(passes, remap.NewSubstitutionPass(t.names, t.ids))
	}
	return remap.New(t.srg, remap.WithPasses(passes...))
}

func writeGraph(t *mapping.Table, prefix, path string) error {
	dot := hierarchy.DOT(t, prefix)
	if path == "" || path == "-" {
		_, err := fmt.Print(dot)
		return err
	}
	if err := os.WriteFile(path, []byte(dot), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	log.WithField("path", path).Info("wrote hierarchy")
	return nil
}

func printSummary(out string, res *remap.Result) {
	fmt.Fprintf(os.Stderr, "%s: %s classes, %s rewritten, %s other entries\n",
		colorName(out),
		colorFaint("%d", len(res.Classes)),
		colorChanged(res.Changed),
		colorFaint("%d", res.Passthrough))
	listClasses("unresolved classes (left untouched)", res.Missing)
	listClasses("undecodable classes (copied as is)", res.Malformed)
}

func listClasses(what string, names []string) {
	if len(names) == 0 {
		return
	}
	fmt.Fprintf(os.Stderr, "%s %s:\n", colorMissing(len(names)), what)
	for _, name := range names {
		fmt.Fprintf(os.Stderr, "  %s\n", colorMissing(name))
	}
}
