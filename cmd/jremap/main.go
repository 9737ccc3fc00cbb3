package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var err error
	switch os.Args[1] {
	case "deobf":
		err = cmdDeobf(ctx, os.Args[2:])
	case "remap":
		err = cmdRemap(ctx, os.Args[2:])
	case "graph":
		err = cmdGraph(ctx, os.Args[2:])
	case "help", "-h", "--help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `jremap: rename obfuscated identifiers in jar archives

Usage:
  jremap deobf -config <file>                          Deobfuscate the platform jar if needed, remap a mod, optionally decompile
  jremap remap -srg <file> -in <jar> -out <jar>        Remap one archive
  jremap graph -srg <file> [-reference <jar>] [-in <jar>]  Print the class hierarchy as DOT

Flags:
  -srg <file>         Structural mapping table (PK:/CL:/FD:/MD:)
  -csv <dir>          Directory with methods.csv, fields.csv and optional params.csv
  -reference <jar>    Archive whose class hierarchy seeds resolution
  -v                  Debug logging
`)
}
