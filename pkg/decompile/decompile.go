// Package decompile turns a remapped archive into Java source by running an
// external decompiler.
package decompile

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/apex/log"
)

// Decompiler writes the sources of input into outDir. reference, when not
// empty, is an archive the input is compiled against; it is used for type
// information only.
type Decompiler interface {
	Decompile(ctx context.Context, input, reference, outDir string) error
}

// CFR runs the CFR decompiler jar.
type CFR struct {
	Java string // java executable; "java" when empty
	Jar  string
	Log  log.Interface
}

// Command returns the process Decompile would run.
func (c *CFR) Command(ctx context.Context, input, reference, outDir string) *exec.Cmd {
	java := c.Java
	if java == "" {
		java = "java"
	}
	args := []string{"-jar", c.Jar, input, "--outputdir", outDir}
	if reference != "" {
		args = append(args, "--extraclasspath", reference)
	}
	return exec.CommandContext(ctx, java, args...)
}

func (c *CFR) Decompile(ctx context.Context, input, reference, outDir string) error {
	l := c.Log
	if l == nil {
		l = log.Log
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("decompile: %w", err)
	}

	cmd := c.Command(ctx, input, reference, outDir)
	out := &lineLogger{log: l.WithField("decompiler", "cfr")}
	cmd.Stdout = out
	cmd.Stderr = out
	l.WithFields(log.Fields{"input": input, "output": outDir}).Info("decompiling")
	err := cmd.Run()
	out.flush()
	if err != nil {
		return fmt.Errorf("decompile: %s: %w", input, err)
	}

	n, err := countSources(outDir)
	if err != nil {
		return fmt.Errorf("decompile: %w", err)
	}
	l.WithField("sources", n).Info("decompiled")
	return nil
}

func countSources(dir string) (int, error) {
	n := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, ".java") {
			n++
		}
		return nil
	})
	return n, err
}

// lineLogger forwards process output to the log one line at a time.
type lineLogger struct {
	log log.Interface

	mu  sync.Mutex
	buf bytes.Buffer
}

func (w *lineLogger) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf.Write(p)
	for {
		i := bytes.IndexByte(w.buf.Bytes(), '\n')
		if i < 0 {
			break
		}
		line := strings.TrimRight(string(w.buf.Next(i+1)), "\r\n")
		if line != "" {
			w.log.Debug(line)
		}
	}
	return len(p), nil
}

func (w *lineLogger) flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if rest := strings.TrimSpace(w.buf.String()); rest != "" {
		w.log.Debug(rest)
	}
	w.buf.Reset()
}
