// Package renderer is the scene-facing side of gfxcore. It owns the
// resources behind committed meshes and materials, and replays every
// committed batch through the command queue and the frame executor.
//
// A typical loop registers shaders, commits batches once, and then calls
// RenderFrame per frame, updating geometry or frame variables in between:
//
//	r, err := renderer.New(rc, dev)
//	if err != nil {
//		return err
//	}
//	r.RegisterShader("basic", src)
//	err = r.Commit(renderer.Submission{
//		BatchID:  "floor",
//		Matrices: cmdqueue.NewMatrixBuffer(model),
//		Meshes:   []renderer.MeshEntry{{Mesh: floor, Material: mat}},
//	})
//	...
//	for ctx.Err() == nil {
//		r.SetFrameVariable("time", device.ParamFloat, float32(t))
//		if err := r.RenderFrame(ctx); err != nil {
//			return err
//		}
//	}
package renderer
