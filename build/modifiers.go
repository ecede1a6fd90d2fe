package build

import (
	mxs "github.com/flywave/go-mxs"
	"github.com/flywave/go-mxs/classify"
	"github.com/flywave/go-mxs/record"
	"github.com/flywave/go-mxs/scene"
)

// merge adds the entries of src missing from dst.
func merge(dst, src mxs.Properties) mxs.Properties {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(mxs.Properties, len(src))
	}
	for _, k := range src.Keys() {
		if _, ok := dst[k]; !ok {
			dst[k] = src[k]
		}
	}
	return dst.Clone()
}

func (b *Builder) scatter(n *classify.Node) (record.Record, error) {
	m := n.Modifier
	r := &record.Scatter{
		Common:   b.attached(n, m.Props),
		Density:  m.Density,
		Seed:     m.Seed,
		Material: m.Material,
	}
	src := b.scene.Object(m.Object)
	if src == nil {
		return nil, mxs.Invalid(r.Name, "scattered object %q does not exist", m.Object)
	}
	r.Object = b.registry.Resolve(src.ID, src.Name)
	return r, nil
}

func (b *Builder) grass(n *classify.Node) record.Record {
	m := n.Modifier
	return &record.Grass{
		Common:   b.attached(n, m.Props),
		Density:  m.Density,
		Seed:     m.Seed,
		Material: m.Material,
	}
}

// subdivision skips Catmull-Clark on a mesh that is not manifold.
func (b *Builder) subdivision(n *classify.Node) record.Record {
	m := n.Modifier
	scheme := m.Scheme
	if scheme == "" {
		scheme = scene.SCHEME_CATMULL_CLARK
	}
	if scheme == scene.SCHEME_CATMULL_CLARK {
		o := owner(n)
		em := o.Mesh
		if em == nil && o.Base != nil {
			em = o.Base.Mesh
		}
		if em != nil && !em.Manifold {
			b.logger(o).Warn("mesh is not manifold, subdivision disabled")
			return nil
		}
	}
	return &record.Subdivision{
		Common: b.attached(n, m.Props),
		Level:  m.Level,
		Scheme: string(scheme),
	}
}
