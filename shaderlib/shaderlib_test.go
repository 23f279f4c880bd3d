package shaderlib

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/gogpu/gfxcore/device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, text string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(text), 0o600))
}

func TestParseFileName(t *testing.T) {
	tests := []struct {
		file  string
		name  string
		stage device.Stage
		ok    bool
	}{
		{"basic.vert.wgsl", "basic", device.StageVertex, true},
		{"/tmp/x/lit.skin.frag.wgsl", "lit.skin", device.StageFragment, true},
		{"fur.geom.wgsl", "fur", device.StageGeometry, true},
		{"basic.comp.wgsl", "", 0, false},
		{".vert.wgsl", "", 0, false},
		{"basic.wgsl", "", 0, false},
		{"basic.vert.glsl", "", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			name, st, ok := ParseFileName(tt.file)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.name, name)
			if ok {
				assert.Equal(t, tt.stage, st)
				assert.Equal(t, filepath.Base(tt.file), FileName(name, st))
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "basic.vert.wgsl", "vs")
	writeFile(t, dir, "basic.frag.wgsl", "fs")
	writeFile(t, dir, "post.frag.wgsl", "post")
	writeFile(t, dir, "README.md", "ignored")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "old.vert.wgsl"), 0o700))

	lib, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"basic", "post"}, lib.Names())
	assert.Equal(t, device.ShaderSource{Vertex: "vs", Fragment: "fs"}, lib["basic"])
	assert.Equal(t, device.ShaderSource{Fragment: "post"}, lib["post"])

	_, err = Load(filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestLoadShader(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "basic.vert.wgsl", "vs")

	src, err := LoadShader(dir, "basic")
	require.NoError(t, err)
	assert.Equal(t, "vs", src.Vertex)
	assert.Empty(t, src.Fragment)

	_, err = LoadShader(dir, "none")
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestWatchDebouncesChanges(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "basic.vert.wgsl", "vs")
	writeFile(t, dir, "basic.frag.wgsl", "fs")

	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan struct{})
	got := make(chan device.ShaderSource, 16)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, dir, func(name string, src device.ShaderSource) {
			if name == "basic" {
				got <- src
			}
		}, WithDebounce(50*time.Millisecond), WithReady(func() { close(ready) }))
	}()
	<-ready

	writeFile(t, dir, "basic.frag.wgsl", "fs2")
	writeFile(t, dir, "basic.vert.wgsl", "vs2")
	writeFile(t, dir, "notes.txt", "ignored")

	select {
	case src := <-got:
		assert.Equal(t, device.ShaderSource{Vertex: "vs2", Fragment: "fs2"}, src)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload delivered")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not return")
	}
}

func TestWatchMissingDir(t *testing.T) {
	err := Watch(context.Background(), filepath.Join(t.TempDir(), "nope"), func(string, device.ShaderSource) {})
	assert.Error(t, err)
}

func TestLoadFS(t *testing.T) {
	fsys := fstest.MapFS{
		"sky.vert.wgsl": {Data: []byte("vs")},
		"sky.frag.wgsl": {Data: []byte("fs")},
	}
	lib, err := LoadFS(fsys)
	require.NoError(t, err)
	assert.Equal(t, device.ShaderSource{Vertex: "vs", Fragment: "fs"}, lib["sky"])
}
