// Package shaderlib loads WGSL shader stages from a directory and watches
// it for changes.
//
// A shader called name is stored as up to three files:
//
//	name.vert.wgsl
//	name.frag.wgsl
//	name.geom.wgsl
package shaderlib

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gogpu/gfxcore/device"
)

const ext = ".wgsl"

var stageExt = map[string]device.Stage{
	"vert": device.StageVertex,
	"frag": device.StageFragment,
	"geom": device.StageGeometry,
}

// Library maps shader names to their sources.
type Library map[string]device.ShaderSource

// Names returns the shader names in lexical order.
func (l Library) Names() []string {
	names := make([]string, 0, len(l))
	for name := range l {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseFileName splits "name.stage.wgsl" into its shader name and stage.
func ParseFileName(file string) (string, device.Stage, bool) {
	base, ok := strings.CutSuffix(filepath.Base(file), ext)
	if !ok {
		return "", 0, false
	}
	i := strings.LastIndexByte(base, '.')
	if i <= 0 {
		return "", 0, false
	}
	st, ok := stageExt[base[i+1:]]
	if !ok {
		return "", 0, false
	}
	return base[:i], st, true
}

// FileName returns the file holding stage st of the shader called name.
func FileName(name string, st device.Stage) string {
	for e, s := range stageExt {
		if s == st {
			return name + "." + e + ext
		}
	}
	return ""
}

func setStage(src *device.ShaderSource, st device.Stage, text string) {
	switch st {
	case device.StageVertex:
		src.Vertex = text
	case device.StageFragment:
		src.Fragment = text
	case device.StageGeometry:
		src.Geometry = text
	}
}

// Load reads every shader in dir. Files that do not follow the naming
// scheme are ignored.
func Load(dir string) (Library, error) {
	return LoadFS(os.DirFS(dir))
}

// LoadFS reads every shader at the root of fsys.
func LoadFS(fsys fs.FS) (Library, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("shaderlib: %w", err)
	}
	lib := make(Library)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name, st, ok := ParseFileName(e.Name())
		if !ok {
			continue
		}
		data, err := fs.ReadFile(fsys, e.Name())
		if err != nil {
			return nil, fmt.Errorf("shaderlib: %w", err)
		}
		src := lib[name]
		setStage(&src, st, string(data))
		lib[name] = src
	}
	return lib, nil
}

// LoadShader reads the stages of one shader. It fails with fs.ErrNotExist
// when dir holds no stage of name.
func LoadShader(dir, name string) (device.ShaderSource, error) {
	var src device.ShaderSource
	found := false
	for _, st := range []device.Stage{device.StageVertex, device.StageFragment, device.StageGeometry} {
		data, err := os.ReadFile(filepath.Join(dir, FileName(name, st)))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return src, fmt.Errorf("shaderlib: %w", err)
		}
		setStage(&src, st, string(data))
		found = true
	}
	if !found {
		return src, fmt.Errorf("shaderlib: shader %q: %w", name, fs.ErrNotExist)
	}
	return src, nil
}
