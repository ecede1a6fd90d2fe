package build

import (
	vec3d "github.com/flywave/go3d/float64/vec3"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"

	mxs "github.com/flywave/go-mxs"
	"github.com/flywave/go-mxs/classify"
	"github.com/flywave/go-mxs/record"
	"github.com/flywave/go-mxs/scene"
	"github.com/flywave/go-mxs/transform"
)

// local maps world points into the converted space of the owner.
type local struct {
	inv mgl64.Mat4
}

func newLocal(owner mgl64.Mat4) local { return local{inv: owner.Inv()} }

func (l local) point(p [3]float64) vec3d.T {
	v := l.inv.Mul4x1(mgl64.Vec4{p[0], p[1], p[2], 1})
	return transform.Convert(vec3d.T{v[0], v[1], v[2]})
}

func (l local) vector(p [3]float64) vec3d.T {
	v := l.inv.Mul4x1(mgl64.Vec4{p[0], p[1], p[2], 0})
	return transform.Convert(vec3d.T{v[0], v[1], v[2]})
}

// binParticles collects the alive particles of ps. A system without alive
// particles is rejected before anything is written.
func (b *Builder) binParticles(n *classify.Node, name string) (*mxs.BinParticles, error) {
	ps := n.ParticleSystem
	all, err := b.opts.Particles.Particles(n.Object, ps)
	if err != nil {
		return nil, errors.Wrapf(err, "particles of %s", name)
	}
	alive := 0
	for _, p := range all {
		if p.Alive == scene.ALIVE {
			alive++
		}
	}
	if alive == 0 {
		return nil, mxs.Invalid(name, "particle system %q has no alive particles out of %d", ps.Name, len(all))
	}
	mult := ps.RadiusMultiplier
	if mult == 0 {
		mult = 1
	}
	l := newLocal(owner(n).Matrix)
	bp := &mxs.BinParticles{
		Positions: make([]float64, 0, 3*alive),
		Speeds:    make([]float64, 0, 3*alive),
		Radii:     make([]float64, 0, alive),
		Normals:   make([]float64, 3*alive),
		IDs:       make([]int32, 0, alive),
	}
	for i, p := range all {
		if p.Alive != scene.ALIVE {
			continue
		}
		pos, speed := l.point(p.Location), l.vector(p.Velocity)
		bp.Positions = append(bp.Positions, pos[:]...)
		bp.Speeds = append(bp.Speeds, speed[:]...)
		bp.Radii = append(bp.Radii, p.Size*mult)
		bp.IDs = append(bp.IDs, int32(i))
	}
	return bp, nil
}

func (b *Builder) particles(n *classify.Node) (record.Record, error) {
	ps := n.ParticleSystem
	r := &record.Particles{
		Common:   b.attached(n, ps.Props),
		Material: ps.Material,
	}
	bp, err := b.binParticles(n, r.Name)
	if err != nil {
		return nil, err
	}
	r.Count = bp.Len()
	if r.File, err = b.write(r.Name, bp); err != nil {
		return nil, err
	}
	return r, nil
}

func (b *Builder) hair(n *classify.Node) (record.Record, error) {
	ps := n.ParticleSystem
	r := &record.Hair{
		Common:     b.attached(n, ps.Props),
		RootRadius: ps.RootRadius,
		TipRadius:  ps.TipRadius,
		Material:   ps.Material,
	}
	strands, err := b.opts.Particles.Strands(n.Object, ps)
	if err != nil {
		return nil, errors.Wrapf(err, "strands of %s", r.Name)
	}
	l := newLocal(owner(n).Matrix)
	h := &mxs.BinHair{}
	for _, s := range strands {
		if len(s) == 0 {
			continue
		}
		for _, p := range s {
			v := l.point(p)
			h.Data = append(h.Data, v[:]...)
		}
		r.Points = append(r.Points, int32(len(s)))
	}
	if len(r.Points) == 0 {
		return nil, mxs.Invalid(r.Name, "hair system %q has no strands", ps.Name)
	}
	if r.File, err = b.write(r.Name, h); err != nil {
		return nil, err
	}
	return r, nil
}

// cloner distributes another object over the alive particles of the system.
func (b *Builder) cloner(n *classify.Node) (record.Record, error) {
	ps := n.ParticleSystem
	r := &record.Cloner{Common: b.attached(n, ps.Props)}
	src := b.scene.Object(ps.CloneObject)
	if ps.CloneObject == "" || src == nil {
		return nil, mxs.Invalid(r.Name, "cloned object %q does not exist", ps.CloneObject)
	}
	bp, err := b.binParticles(n, r.Name)
	if err != nil {
		return nil, err
	}
	r.Object = b.registry.Resolve(src.ID, src.Name)
	r.Count = bp.Len()
	if r.File, err = b.write(r.Name, bp); err != nil {
		return nil, err
	}
	return r, nil
}
