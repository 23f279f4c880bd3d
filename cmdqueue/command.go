package cmdqueue

import "github.com/gogpu/gfxcore/device"

// PassID identifies the pipeline pass a command is recorded for.
type PassID uint32

// Kind identifies the type of a command.
type Kind uint8

const (
	KindSetMaterial Kind = iota
	KindDrawPrimitives
	KindDrawPrimitivesInstanced
	KindSetRenderTarget
	KindSetParameter
)

var kindNames = [...]string{
	KindSetMaterial:             "SetMaterial",
	KindDrawPrimitives:          "DrawPrimitives",
	KindDrawPrimitivesInstanced: "DrawPrimitivesInstanced",
	KindSetRenderTarget:         "SetRenderTarget",
	KindSetParameter:            "SetParameter",
}

// String returns the command name.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Unknown"
}

// Command is a render command. The set of commands is closed: only the
// types in this package implement it. Commands must not be modified after
// they are enqueued.
type Command interface {
	// Kind returns the command type.
	Kind() Kind
	// Pass returns the pass the command is drained in.
	Pass() PassID

	sealed()
}

// SetMaterial binds a shader, its textures and its material parameters.
// Textures go to units in slice order; nil entries leave the unit unbound.
type SetMaterial struct {
	PassID     PassID
	Shader     *device.Shader
	Textures   []*device.Texture
	Parameters []*device.Parameter
}

// DrawPrimitives draws primitive groups of a vertex array with the
// matrices of a batch.
type DrawPrimitives struct {
	PassID      PassID
	BatchID     string
	VertexArray *device.VertexArray
	Groups      []device.PrimitiveIndex
}

// DrawPrimitivesInstanced is DrawPrimitives repeated Instances times.
type DrawPrimitivesInstanced struct {
	PassID      PassID
	BatchID     string
	VertexArray *device.VertexArray
	Groups      []device.PrimitiveIndex
	Instances   uint32
}

// SetRenderTarget switches the rest of the pass to Target, or back to the
// target of the pass when Target is nil.
type SetRenderTarget struct {
	PassID     PassID
	Target     *device.Texture
	Clear      device.ClearState
	ClearColor [4]float64
}

// SetParameter stages a named shader parameter into the bound shader.
type SetParameter struct {
	PassID    PassID
	Parameter *device.Parameter
}

func (*SetMaterial) Kind() Kind             { return KindSetMaterial }
func (*DrawPrimitives) Kind() Kind          { return KindDrawPrimitives }
func (*DrawPrimitivesInstanced) Kind() Kind { return KindDrawPrimitivesInstanced }
func (*SetRenderTarget) Kind() Kind         { return KindSetRenderTarget }
func (*SetParameter) Kind() Kind            { return KindSetParameter }

func (c *SetMaterial) Pass() PassID             { return c.PassID }
func (c *DrawPrimitives) Pass() PassID          { return c.PassID }
func (c *DrawPrimitivesInstanced) Pass() PassID { return c.PassID }
func (c *SetRenderTarget) Pass() PassID         { return c.PassID }
func (c *SetParameter) Pass() PassID            { return c.PassID }

func (*SetMaterial) sealed()             {}
func (*DrawPrimitives) sealed()          {}
func (*DrawPrimitivesInstanced) sealed() {}
func (*SetRenderTarget) sealed()         {}
func (*SetParameter) sealed()            {}

// validate reports why cmd cannot be enqueued.
func validate(cmd Command) error {
	switch c := cmd.(type) {
	case nil:
		return ErrNilCommand
	case *SetMaterial:
		if c == nil {
			return ErrNilCommand
		}
		if c.Shader == nil {
			return payloadError(c, "shader")
		}
	case *DrawPrimitives:
		if c == nil {
			return ErrNilCommand
		}
		if c.VertexArray == nil {
			return payloadError(c, "vertex array")
		}
		if c.Groups == nil {
			return payloadError(c, "primitive groups")
		}
	case *DrawPrimitivesInstanced:
		if c == nil {
			return ErrNilCommand
		}
		if c.VertexArray == nil {
			return payloadError(c, "vertex array")
		}
		if c.Groups == nil {
			return payloadError(c, "primitive groups")
		}
		if c.Instances == 0 {
			return payloadError(c, "instance count")
		}
	case *SetRenderTarget:
		if c == nil {
			return ErrNilCommand
		}
	case *SetParameter:
		if c == nil {
			return ErrNilCommand
		}
		if c.Parameter == nil {
			return payloadError(c, "parameter")
		}
	}
	return nil
}
