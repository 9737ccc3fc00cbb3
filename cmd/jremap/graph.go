package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/daimatz/jremap/pkg/archive"
)

func cmdGraph(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("graph", flag.ExitOnError)
	srgPath := fs.String("srg", "", "structural mapping table")
	reference := fs.String("reference", "", "archive whose hierarchy to include")
	in := fs.String("in", "", "archive whose private classes to discover (not written)")
	prefix := fs.String("prefix", "", "only include classes whose name starts with this")
	out := fs.String("out", "", "output DOT file (default stdout)")
	verbose := verboseFlag(fs)

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *srgPath == "" {
		return fmt.Errorf("-srg is required")
	}
	setupLog(*verbose)

	t, err := loadTables(*srgPath, "")
	if err != nil {
		return err
	}
	r := t.remapper()
	if *reference != "" {
		if err := r.LoadReference(ctx, *reference); err != nil {
			return err
		}
	}
	if *in != "" {
		src, err := archive.Open(ctx, *in)
		if err != nil {
			return err
		}
		defer src.Close()
		if _, err := r.RemapClasses(src.Classes); err != nil {
			return err
		}
	}
	return writeGraph(r.Table(), *prefix, *out)
}
