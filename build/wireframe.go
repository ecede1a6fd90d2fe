package build

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	mxs "github.com/flywave/go-mxs"
	"github.com/flywave/go-mxs/classify"
	"github.com/flywave/go-mxs/record"
	"github.com/flywave/go-mxs/transform"
)

// edgeMatrix places a cylinder of the given radius along the Z axis from a
// to b. It returns false for zero length edges.
func edgeMatrix(a, b mgl64.Vec3, radius float64) (mgl64.Mat4, bool) {
	d := b.Sub(a)
	l := d.Len()
	if l == 0 {
		return mgl64.Mat4{}, false
	}
	z := d.Mul(1 / l)
	helper := mgl64.Vec3{1, 0, 0}
	if math.Abs(z[0]) > 0.9 {
		helper = mgl64.Vec3{0, 1, 0}
	}
	x := helper.Cross(z).Normalize()
	y := z.Cross(x)
	return mgl64.Mat4FromCols(
		x.Mul(radius).Vec4(0),
		y.Mul(radius).Vec4(0),
		z.Mul(l).Vec4(0),
		a.Vec4(1),
	), true
}

// wires returns one wire per unique edge of the exported geometry.
func (b *Builder) wires(radius float64) []mxs.Wire {
	if b.result == nil {
		return nil
	}
	var out []mxs.Wire
	for _, n := range b.result.Nodes {
		em := n.Mesh
		if n.Type == mxs.INSTANCE && n.Base != nil {
			em = n.Base.Mesh
		}
		if em == nil || len(em.Positions) == 0 {
			continue
		}
		tmp := &mxs.BinMesh{Triangles: make([]mxs.Triangle, len(em.Triangles))}
		for i, t := range em.Triangles {
			tmp.Triangles[i].Vertex = t.Vertex
		}
		ps := em.Positions[0]
		for _, e := range tmp.Edges() {
			pa, pb := ps[e[0]], ps[e[1]]
			a := n.Matrix.Mul4x1(mgl64.Vec4{pa[0], pa[1], pa[2], 1}).Vec3()
			c := n.Matrix.Mul4x1(mgl64.Vec4{pb[0], pb[1], pb[2], 1}).Vec3()
			m, ok := edgeMatrix(a, c, radius)
			if !ok {
				continue
			}
			out = append(out, transform.Encode(m, nil).Wire())
		}
	}
	return out
}

func (b *Builder) wireframe(n *classify.Node) (record.Record, error) {
	radius := b.opts.Wireframe.Radius
	if radius <= 0 {
		radius = 0.01
	}
	ws := b.wires(radius)
	if len(ws) == 0 {
		b.logger(n).Warn("no edges to export")
		return nil, nil
	}
	r := &record.Wireframe{
		Common:   b.attached(n, nil),
		Count:    len(ws),
		Radius:   radius,
		Material: b.opts.Wireframe.Material,
	}
	var err error
	if r.File, err = b.write(r.Name, &mxs.BinWire{Wires: ws}); err != nil {
		return nil, err
	}
	return r, nil
}
