package mxs

import (
	vec3d "github.com/flywave/go3d/float64/vec3"
)

// Base is an origin followed by three axes.
type Base [4]vec3d.T

// IdentityBase is the canonical identity base used for every pivot.
var IdentityBase = Base{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {0, 0, 1}}

// Wire is one 33 double record of a BINWIRE container.
type Wire struct {
	Base     Base
	Pivot    Base
	Location vec3d.T
	Rotation vec3d.T
	Scale    vec3d.T
}

func (w *Wire) flatten() []float64 {
	out := make([]float64, 0, WIRE_RECORD_SIZE)
	for _, v := range w.Base {
		out = append(out, v[:]...)
	}
	for _, v := range w.Pivot {
		out = append(out, v[:]...)
	}
	out = append(out, w.Location[:]...)
	out = append(out, w.Rotation[:]...)
	return append(out, w.Scale[:]...)
}

func wireFrom(fs []float64) Wire {
	var w Wire
	vs := unflattenVec3(fs)
	copy(w.Base[:], vs[0:4])
	copy(w.Pivot[:], vs[4:8])
	w.Location, w.Rotation, w.Scale = vs[8], vs[9], vs[10]
	return w
}

// BinWire is the content of a BINWIRE container.
type BinWire struct {
	Wires []Wire
}

func (b *BinWire) Kind() Kind { return KindWire }

func (b *BinWire) marshal(w *writer) bool {
	if w.count(len(b.Wires)) {
		return true
	}
	data := make([]float64, 0, WIRE_RECORD_SIZE*len(b.Wires))
	for i := range b.Wires {
		data = append(data, b.Wires[i].flatten()...)
	}
	return w.float64s(data)
}

func (b *BinWire) unmarshal(r *reader) bool {
	var n int
	if r.count(&n, 8*WIRE_RECORD_SIZE) {
		return true
	}
	data, failed := r.float64s(WIRE_RECORD_SIZE * n)
	if failed {
		return true
	}
	b.Wires = make([]Wire, n)
	for i := range b.Wires {
		b.Wires[i] = wireFrom(data[WIRE_RECORD_SIZE*i : WIRE_RECORD_SIZE*(i+1)])
	}
	return false
}

func BinWireReadFrom(path string) (*BinWire, error) {
	b := &BinWire{}
	if err := ReadFrom(path, b); err != nil {
		return nil, err
	}
	return b, nil
}

func BinWireWriteTo(path string, b *BinWire) error {
	return WriteTo(path, b)
}
