package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/apex/log"

	"github.com/daimatz/jremap/pkg/config"
	"github.com/daimatz/jremap/pkg/decompile"
)

func cmdDeobf(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("deobf", flag.ExitOnError)
	cfgPath := fs.String("config", "jremap.properties", "run configuration (.properties or .yaml)")
	noDecompile := fs.Bool("no-decompile", false, "skip decompilation even when configured")
	verbose := verboseFlag(fs)

	if err := fs.Parse(args); err != nil {
		return err
	}
	setupLog(*verbose)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return err
	}

	// The platform archive is deobfuscated once and kept for decompiling
	// against.
	if _, err := os.Stat(cfg.ReferenceOutput); errors.Is(err, os.ErrNotExist) {
		log.WithField("version", cfg.Version).Info("deobfuscating platform archive")
		t, err := loadTables(cfg.SRGPath(), cfg.Mappings)
		if err != nil {
			return err
		}
		res, err := t.remapper().RemapFile(ctx, cfg.Reference, cfg.ReferenceOutput)
		if err != nil {
			return fmt.Errorf("deobfuscating %s: %w", cfg.Reference, err)
		}
		printSummary(cfg.ReferenceOutput, res)
	} else if err != nil {
		return err
	}

	t, err := loadTables(cfg.SRGPath(), cfg.Mappings)
	if err != nil {
		return err
	}
	r := t.remapper()
	if err := r.LoadReference(ctx, cfg.Reference); err != nil {
		return err
	}
	res, err := r.RemapFile(ctx, cfg.Input, cfg.Output)
	if err != nil {
		return fmt.Errorf("remapping %s: %w", cfg.Input, err)
	}
	printSummary(cfg.Output, res)

	if cfg.Graph != "" {
		if err := writeGraph(r.Table(), "", cfg.Graph); err != nil {
			return err
		}
	}

	if cfg.Decompile && !*noDecompile {
		d := &decompile.CFR{Java: cfg.Java, Jar: cfg.DecompilerJar}
		if err := d.Decompile(ctx, cfg.Output, cfg.ReferenceOutput, cfg.DecompileDir); err != nil {
			log.WithError(err).Warn("decompilation failed; remapped archive is complete")
		}
	}
	return nil
}
