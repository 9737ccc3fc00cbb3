package decompile

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/apex/log"
	"github.com/apex/log/handlers/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommand(t *testing.T) {
	c := &CFR{Jar: "cfr.jar"}
	cmd := c.Command(context.Background(), "mod.deobf.jar", "1.12.2.deobf.jar", "decompile")
	assert.Equal(t, []string{"java", "-jar", "cfr.jar", "mod.deobf.jar", "--outputdir", "decompile", "--extraclasspath", "1.12.2.deobf.jar"}, cmd.Args)

	c = &CFR{Java: "/opt/jdk/bin/java", Jar: "cfr.jar"}
	cmd = c.Command(context.Background(), "mod.jar", "", "out")
	assert.Equal(t, []string{"/opt/jdk/bin/java", "-jar", "cfr.jar", "mod.jar", "--outputdir", "out"}, cmd.Args)
}

func TestDecompileFailure(t *testing.T) {
	c := &CFR{Java: filepath.Join(t.TempDir(), "no-such-java"), Jar: "cfr.jar"}
	err := c.Decompile(context.Background(), "mod.jar", "", filepath.Join(t.TempDir(), "out"))
	assert.Error(t, err)
}

func TestLineLogger(t *testing.T) {
	h := memory.New()
	w := &lineLogger{log: &log.Logger{Handler: h, Level: log.DebugLevel}}

	_, err := w.Write([]byte("Processing a\nProcess"))
	require.NoError(t, err)
	_, err = w.Write([]byte("ing b\r\n\npartial"))
	require.NoError(t, err)
	w.flush()

	var got []string
	for _, e := range h.Entries {
		got = append(got, e.Message)
	}
	assert.Equal(t, []string{"Processing a", "Processing b", "partial"}, got)
}
