// Package device is the graphics device wrapper of the render core.
//
// A GraphicsDevice owns every GPU resource the core creates (buffers,
// vertex arrays, shaders, textures and shader parameters) in slot
// registries addressed by registry.Handle, and translates resource-level
// operations into calls on a WebGPU HAL device:
//
//	GraphicsDevice
//	  +-- registries (buffers, vertex arrays, shaders, textures, parameters)
//	  +-- primitive group arena (indexed by PrimitiveIndex)
//	  +-- bind state (active shader, current VAO, bound textures, FixedState)
//	  +-- render pipeline cache keyed by shader, layout, topology and state
//	  +-- per-frame state (command encoder, render pass, uniform ring)
//
// Shaders are WGSL, one source per stage. Each stage is compiled with naga
// to SPIR-V and reflected to discover vertex attributes, uniform members
// and texture bindings, so callers address uniforms by name the same way
// regardless of the backend.
//
// Failures on user data are logged and reported through bool, nil or error
// results; nothing in this package panics on bad input. The device is not
// safe for concurrent use: one render goroutine owns it.
package device
