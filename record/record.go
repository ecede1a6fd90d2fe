// Package record defines the flat per-type records an export run produces
// and the manifest that lists them.
package record

import (
	vec3d "github.com/flywave/go3d/float64/vec3"
	"github.com/pkg/errors"

	mxs "github.com/flywave/go-mxs"
	"github.com/flywave/go-mxs/transform"
)

// Field binds a manifest key to a pointer into a record. A record's field
// table is the only way its content reaches or leaves the manifest.
type Field struct {
	Key   string
	Value interface{}
}

type Record interface {
	Type() mxs.ExportType
	Header() *Common
	Fields() []Field
}

// Stored is implemented by records whose payload lives in a binary
// container next to the manifest.
type Stored interface {
	Record
	Container() (mxs.Kind, string)
}

// Common holds what every record carries. Parent is empty for records at
// the top of the hierarchy.
type Common struct {
	Name     string
	Parent   string
	Base     mxs.Base
	Pivot    mxs.Base
	Location vec3d.T
	Rotation vec3d.T
	Scale    vec3d.T
	Hide     bool
	Props    mxs.Properties
}

func (c *Common) Header() *Common { return c }

// SetTransform copies an encoded transform into c.
func (c *Common) SetTransform(t transform.Transform) {
	c.Base, c.Pivot = t.Base, t.Pivot
	c.Location, c.Rotation, c.Scale = t.Location, t.Rotation, t.Scale
}

// Transform returns the encoded transform of c.
func (c *Common) Transform() transform.Transform {
	return transform.Transform{
		Base:     c.Base,
		Pivot:    c.Pivot,
		Location: c.Location,
		Rotation: c.Rotation,
		Scale:    c.Scale,
	}
}

func (c *Common) fields(extra ...Field) []Field {
	fs := []Field{
		{"name", &c.Name},
		{"parent", &c.Parent},
		{"base", &c.Base},
		{"pivot", &c.Pivot},
		{"location", &c.Location},
		{"rotation", &c.Rotation},
		{"scale", &c.Scale},
		{"hide", &c.Hide},
	}
	fs = append(fs, extra...)
	return append(fs, Field{"props", &c.Props})
}

// New returns an empty record of type t.
func New(t mxs.ExportType) (Record, error) {
	switch t {
	case mxs.EMPTY:
		return &Empty{}, nil
	case mxs.MESH:
		return &Mesh{}, nil
	case mxs.BASE_INSTANCE:
		return &Mesh{Source: true}, nil
	case mxs.INSTANCE:
		return &Instance{}, nil
	case mxs.CAMERA:
		return &Camera{}, nil
	case mxs.SUN:
		return &Sun{}, nil
	case mxs.REFERENCE:
		return &Reference{}, nil
	case mxs.VOLUMETRICS:
		return &Volumetrics{}, nil
	case mxs.SEA:
		return &Sea{}, nil
	case mxs.PARTICLES:
		return &Particles{}, nil
	case mxs.HAIR:
		return &Hair{}, nil
	case mxs.CLONER:
		return &Cloner{}, nil
	case mxs.SCATTER:
		return &Scatter{}, nil
	case mxs.GRASS:
		return &Grass{}, nil
	case mxs.SUBDIVISION:
		return &Subdivision{}, nil
	case mxs.WIREFRAME:
		return &Wireframe{}, nil
	}
	return nil, errors.Errorf("no record for type %s", t)
}

// Keys lists the field keys of r in order.
func Keys(r Record) []string {
	fs := r.Fields()
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = f.Key
	}
	return out
}
