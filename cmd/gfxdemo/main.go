// Command gfxdemo renders a spinning cube headless through the gfxcore
// pipeline and reports the frame counters.
package main

import (
	"context"
	"embed"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"math"
	"os"
	"os/signal"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gfxcore"
	"github.com/gogpu/gfxcore/cmdqueue"
	"github.com/gogpu/gfxcore/device"
	"github.com/gogpu/gfxcore/driver"
	"github.com/gogpu/gfxcore/renderer"
	"github.com/gogpu/gfxcore/shaderlib"
	"github.com/gogpu/gfxcore/textureio"
	"github.com/gogpu/gpucontext"
	_ "github.com/gogpu/wgpu/hal/allbackends"
	"github.com/schollz/progressbar/v3"
)

//go:embed shaders/*.wgsl
var builtinShaders embed.FS

func main() {
	var (
		configPath = flag.String("config", "", "config file (.yaml or .toml)")
		backend    = flag.String("backend", "", "override the config backend")
		frames     = flag.Int("frames", 240, "frames to render, 0 runs until interrupted")
		quiet      = flag.Bool("quiet", false, "hide the progress bar")
	)
	flag.Parse()

	cfg := gfxcore.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = gfxcore.LoadConfig(*configPath); err != nil {
			log.Fatalf("gfxdemo: %v", err)
		}
	}
	if *backend != "" {
		cfg.Backend = *backend
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, cfg, *frames, !*quiet); err != nil {
		log.Fatalf("gfxdemo: %v", err)
	}
}

func run(ctx context.Context, cfg gfxcore.Config, frames int, progress bool) error {
	level, err := gfxcore.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	gfxcore.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	driver.Default().RegisterHAL()
	provider, err := driver.Open(cfg.Backend)
	if err != nil {
		return err
	}
	defer provider.Close()

	rc := gfxcore.NewRenderContext(cfg, nil,
		gfxcore.WithWindow(gpucontext.NullWindowProvider{W: int(cfg.Width), H: int(cfg.Height)}))
	dev, err := device.Open(rc, provider)
	if err != nil {
		return err
	}
	defer dev.Destroy()

	r, err := renderer.New(rc, dev)
	if err != nil {
		return err
	}
	defer r.Close()

	if err := loadShaders(r, cfg.ShaderDir); err != nil {
		return err
	}
	if cfg.TextureDir != "" {
		descs, err := textureio.LoadDir(cfg.TextureDir)
		if err != nil {
			return err
		}
		for _, d := range descs {
			dev.CreateTexture(d)
		}
	}
	if cfg.WatchShaders && cfg.ShaderDir != "" {
		go func() {
			if err := shaderlib.Watch(ctx, cfg.ShaderDir, r.ReloadShader); err != nil {
				gfxcore.Logger().Error("shader watch stopped", "error", err)
			}
		}()
	}
	if err := r.Setup(ctx); err != nil {
		return err
	}

	cube := cubeMesh("cube")
	material := &renderer.Material{Name: "lit", Shader: "basic"}
	view, proj := camera(rc.BackbufferSize())

	var bar *progressbar.ProgressBar
	if progress && frames > 0 {
		bar = progressbar.Default(int64(frames), "rendering")
	}
	for n := 0; frames <= 0 || n < frames; n++ {
		if ctx.Err() != nil {
			break
		}
		t := float32(n) / 60
		model := mgl32.HomogRotate3DY(t).Mul4(mgl32.HomogRotate3DX(t * 0.5))
		err := r.Commit(renderer.Submission{
			BatchID:  "cube",
			Matrices: cmdqueue.MatrixBuffer{Model: model, View: view, Projection: proj},
			Meshes:   []renderer.MeshEntry{{Mesh: cube, Material: material}},
		})
		if err != nil {
			return err
		}
		pulse := 0.75 + 0.25*float32(math.Sin(float64(t)*2))
		r.SetFrameVariable("tint", device.ParamFloat4, pulse, pulse, pulse, 1)
		if err := r.RenderFrame(ctx); err != nil {
			return err
		}
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}

	s := rc.Counters.Snapshot()
	fmt.Printf("backend %s: %d frames, %d draws (%d skipped), pipelines %d hit / %d miss, %d dropped commands\n",
		provider.Backend(), s.Frames, s.Draws, s.SkippedDraws, s.PipelineHits, s.PipelineMisses, s.DroppedCommands)
	return nil
}

// loadShaders registers the shaders in dir, or the built-in ones when dir
// is empty.
func loadShaders(r *renderer.Renderer, dir string) error {
	var lib shaderlib.Library
	var err error
	if dir != "" {
		lib, err = shaderlib.Load(dir)
	} else {
		sub, _ := fs.Sub(builtinShaders, "shaders")
		lib, err = shaderlib.LoadFS(sub)
	}
	if err != nil {
		return err
	}
	for _, name := range lib.Names() {
		if sh := r.RegisterShader(name, lib[name]); !sh.IsCompiled() {
			return fmt.Errorf("shader %s: %w", name, sh.Err())
		}
	}
	return nil
}
