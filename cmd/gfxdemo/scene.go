package main

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gfxcore/device"
	"github.com/gogpu/gfxcore/renderer"
	"github.com/gogpu/gputypes"
)

type vertex struct {
	pos, normal, color mgl32.Vec3
}

// cubeFaces holds the outward normal and color of each face.
var cubeFaces = [6]struct{ normal, color mgl32.Vec3 }{
	{mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0.9, 0.3, 0.3}},
	{mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0.3, 0.9, 0.3}},
	{mgl32.Vec3{0, 1, 0}, mgl32.Vec3{0.3, 0.3, 0.9}},
	{mgl32.Vec3{0, -1, 0}, mgl32.Vec3{0.9, 0.9, 0.3}},
	{mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0.3, 0.9, 0.9}},
	{mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0.9, 0.3, 0.9}},
}

// cubeMesh builds a unit cube with four vertices and two triangles per
// face, in device.ColorVertex layout.
func cubeMesh(id string) *renderer.Mesh {
	var verts []vertex
	var indices []uint16
	for _, f := range cubeFaces {
		n := f.normal
		// Two axes spanning the face.
		u := mgl32.Vec3{n[1], n[2], n[0]}
		v := n.Cross(u)
		base := uint16(len(verts)) // #nosec G115 -- 24 vertices
		for _, c := range [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}} {
			p := n.Add(u.Mul(c[0])).Add(v.Mul(c[1])).Mul(0.5)
			verts = append(verts, vertex{pos: p, normal: n, color: f.color})
		}
		indices = append(indices, base, base+1, base+2, base, base+2, base+3)
	}

	vb := make([]byte, 0, len(verts)*int(device.ColorVertex.Stride))
	for _, vt := range verts {
		for _, vec := range []mgl32.Vec3{vt.pos, vt.normal, vt.color} {
			for _, x := range vec {
				vb = binary.LittleEndian.AppendUint32(vb, math.Float32bits(x))
			}
		}
	}
	ib := make([]byte, 0, len(indices)*2)
	for _, i := range indices {
		ib = binary.LittleEndian.AppendUint16(ib, i)
	}
	return &renderer.Mesh{
		ID:          id,
		Layout:      device.ColorVertex,
		Vertices:    vb,
		Indices:     ib,
		IndexFormat: gputypes.IndexFormatUint16,
	}
}

// camera returns the view and projection for a w by h backbuffer.
func camera(w, h uint32) (view, proj mgl32.Mat4) {
	aspect := float32(1)
	if h > 0 {
		aspect = float32(w) / float32(h)
	}
	view = mgl32.LookAtV(mgl32.Vec3{2.5, 2, 3}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})
	proj = mgl32.Perspective(mgl32.DegToRad(45), aspect, 0.1, 100)
	return view, proj
}
