package main

import (
	"context"
	"flag"
	"fmt"
)

func cmdRemap(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("remap", flag.ExitOnError)
	srgPath := fs.String("srg", "", "structural mapping table")
	csvDir := fs.String("csv", "", "directory with identifier-substitution tables")
	reference := fs.String("reference", "", "archive whose hierarchy seeds resolution")
	in := fs.String("in", "", "input archive")
	out := fs.String("out", "", "output archive")
	graph := fs.String("graph", "", "write the class hierarchy as DOT to this file")
	verbose := verboseFlag(fs)

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *srgPath == "" {
		return fmt.Errorf("-srg is required")
	}
	if *in == "" || *out == "" {
		return fmt.Errorf("-in and -out are required")
	}
	setupLog(*verbose)

	t, err := loadTables(*srgPath, *csvDir)
	if err != nil {
		return err
	}
	r := t.remapper()
	if *reference != "" {
		if err := r.LoadReference(ctx, *reference); err != nil {
			return err
		}
	}
	res, err := r.RemapFile(ctx, *in, *out)
	if err != nil {
		return err
	}
	printSummary(*out, res)

	if *graph != "" {
		return writeGraph(r.Table(), "", *graph)
	}
	return nil
}
