// Package frame runs the per-frame loop of the render core.
//
// A Pipeline holds the passes of a frame in execution order. The Executor
// walks them through a fixed state machine:
//
//	Idle -> PreFrame -> PerPass -> PostFrame -> Idle
//
// PreFrame activates the graphics context and starts the device frame with
// the clear state of the first pass. PerPass visits every pass that has
// commands queued for its ID, applies its fixed state, matrices and
// viewport, and drains its commands into the device. Passes without
// commands are skipped. PostFrame unbinds the shader and vertex array,
// submits, presents, and clears the command queue.
//
// Errors inside a pass are logged and rendering continues with the next
// command. Only failures that prevent a frame from starting or being
// submitted are returned.
package frame
