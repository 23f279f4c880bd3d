// Package cmdqueue buffers render commands between the scene and the frame
// executor.
//
// Producers enqueue typed commands, each tagged with the pipeline pass it
// belongs to. Once per frame the executor drains the commands of every
// pass, in enqueue order, through a Dispatcher. Commands are transient and
// are cleared after the frame. Matrix buffers, keyed by batch id, are
// sticky: a draw always sees the last buffer set for its batch.
//
//	q := cmdqueue.New(rc)
//	q.SetMatrixBuffer("crate", cmdqueue.NewMatrixBuffer(model))
//	q.Enqueue(&cmdqueue.SetMaterial{Shader: sh})
//	q.Enqueue(&cmdqueue.DrawPrimitives{BatchID: "crate", VertexArray: vao, Groups: groups})
//	q.Drain(0, dispatcher)
//	q.Clear()
package cmdqueue
