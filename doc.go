// Package gfxcore is a render-backend command pipeline built on the
// gogpu WebGPU HAL.
//
// # Overview
//
// Scene code submits draw requests; gfxcore turns them into an ordered,
// replayable sequence of GPU operations. Submission and execution are
// decoupled by a command queue, and every GPU object lives in a
// slot registry addressed by small integer handles.
//
// # Architecture
//
// The module is organized leaf to root:
//   - registry: slot pools with free-list reuse and optional name lookup
//   - device: the GraphicsDevice (buffers, textures, shaders, vertex arrays,
//     fixed state, draws) over hal.Device and hal.Queue
//   - cmdqueue: the closed set of render commands and the FIFO queue
//   - frame: passes, the pass pipeline and the frame executor
//   - renderer: commit glue that turns scene submissions into resources
//     and commands
//
// This package holds the pieces shared by all of them: the RenderContext
// passed to every component, the GraphicsContext platform contract,
// configuration, counters and the package logger.
//
// # Quick Start
//
//	cfg := gfxcore.DefaultConfig()
//	rc := gfxcore.NewRenderContext(cfg, nil) // headless
//
//	prov, err := driver.Open("noop")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	dev, err := device.Open(rc, prov)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	r, err := renderer.New(rc, dev)
//	...
//	err = r.RenderFrame(ctx)
//
// # Threading
//
// The device, the registries and the executor belong to one render
// goroutine. Only the command queue's enqueue path and the counters are
// safe to use from other goroutines.
package gfxcore

// Version is the current version of the module.
const Version = "0.1.0"
