package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadProperties(t *testing.T) {
	path := write(t, "jremap.properties", `# mod to remap
input = Biosphere-Mod-1.6.2.zip
version: 1.12.2
side=server
decompile=true
decompiler.jar=cfr-0.152.jar
! hierarchy export
graph = hierarchy.dot
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	want := &Config{
		Input:           "Biosphere-Mod-1.6.2.zip",
		Output:          "Biosphere-Mod-1.6.2.deobf.jar",
		Version:         "1.12.2",
		Side:            "server",
		Mappings:        filepath.Join("mappings", "1.12.2"),
		Reference:       "1.12.2.jar",
		ReferenceOutput: "1.12.2.deobf.jar",
		Decompile:       true,
		DecompilerJar:   "cfr-0.152.jar",
		DecompileDir:    "decompile",
		Java:            "java",
		Graph:           "hierarchy.dot",
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, filepath.Join("mappings", "1.12.2", "server.srg"), cfg.SRGPath())
}

func TestLoadYAML(t *testing.T) {
	path := write(t, "jremap.yaml", `input: mod.jar
output: out/mod.jar
version: 1.12.2
mappings: /srv/mcp
reference: client.jar
reference.output: client.deobf.jar
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "out/mod.jar", cfg.Output)
	assert.Equal(t, "client", cfg.Side)
	assert.Equal(t, "/srv/mcp", cfg.Mappings)
	assert.Equal(t, "client.jar", cfg.Reference)
	assert.Equal(t, "client.deobf.jar", cfg.ReferenceOutput)
	assert.False(t, cfg.Decompile)
}

func TestLoadYAMLUnknownKey(t *testing.T) {
	path := write(t, "jremap.yml", "input: mod.jar\nversion: 1.12.2\nverison: typo\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadValidation(t *testing.T) {
	_, err := Load(write(t, "a.properties", "version=1.12.2\n"))
	assert.ErrorIs(t, err, ErrNoInput)

	_, err = Load(write(t, "b.properties", "input=mod.jar\n"))
	assert.ErrorIs(t, err, ErrNoVersion)

	_, err = Load(write(t, "c.properties", "input=mod.jar\nversion=1.12.2\ndecompile=true\n"))
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.properties"))
	assert.Error(t, err)
}
