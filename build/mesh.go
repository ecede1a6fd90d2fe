package build

import (
	vec3d "github.com/flywave/go3d/float64/vec3"
	"github.com/pkg/errors"

	mxs "github.com/flywave/go-mxs"
	"github.com/flywave/go-mxs/classify"
	"github.com/flywave/go-mxs/record"
	"github.com/flywave/go-mxs/scene"
	"github.com/flywave/go-mxs/transform"
)

// catmullClark reports whether o is subdivided with a scheme that needs quad
// pairs.
func catmullClark(o *scene.Object) bool {
	sub := o.Subdivision()
	return sub != nil && sub.Scheme != scene.SCHEME_LOOP
}

// materials resolves the material slots of o. Empty slots and an object
// without slots get the checker placeholder.
func (b *Builder) materials(n *classify.Node) []string {
	o := n.Object
	if len(o.Materials) == 0 {
		b.logger(n).Warn("no material assigned, using checker")
		return []string{CHECKER_MATERIAL}
	}
	out := make([]string, len(o.Materials))
	for i, m := range o.Materials {
		if m == "" {
			b.logger(n).WithField("slot", i).Warn("empty material slot, using checker")
			m = CHECKER_MATERIAL
		}
		out[i] = m
	}
	return out
}

// backface returns the backface material of o, or nothing when its file is
// missing.
func (b *Builder) backface(n *classify.Node) string {
	m := n.Object.BackfaceMaterial
	if m == "" {
		return ""
	}
	path := b.asset(m)
	if !exists(path) {
		b.logger(n).WithField("material", m).Warn("backface material not found, omitted")
		return ""
	}
	return path
}

// binMesh converts an evaluated mesh into renderer coordinates. Smooth
// triangles use the vertex normals, flat ones their own triangle normal.
func (b *Builder) binMesh(n *classify.Node, name string, em *scene.EvaluatedMesh, materials []string) *mxs.BinMesh {
	if len(name) > mxs.MESH_NAME_SIZE {
		name = name[:mxs.MESH_NAME_SIZE]
	}
	bm := &mxs.BinMesh{Name: name}
	nv := 0
	for _, ps := range em.Positions {
		out := make([]vec3d.T, len(ps))
		for i, p := range ps {
			out[i] = transform.Convert(p)
		}
		bm.Positions = append(bm.Positions, out)
		nv = len(ps)
	}

	checker := -1
	bm.Triangles = make([]mxs.Triangle, len(em.Triangles))
	bm.TriangleMaterials = make([][2]int32, len(em.Triangles))
	for i, t := range em.Triangles {
		tri := mxs.Triangle{Vertex: t.Vertex}
		if t.Smooth {
			tri.Normal = t.Vertex
		} else {
			f := int32(nv + i)
			tri.Normal = [3]int32{f, f, f}
		}
		bm.Triangles[i] = tri

		mat := t.Material
		if mat < 0 || int(mat) >= len(materials) {
			if checker < 0 {
				b.logger(n).WithField("index", mat).Warn("material index without slot, using checker")
				checker = len(materials)
				materials = append(materials, CHECKER_MATERIAL)
			}
			mat = int32(checker)
		}
		bm.TriangleMaterials[i] = [2]int32{int32(i), mat}
	}
	bm.NumMaterials = int32(len(materials))
	bm.ReComputeNormal()
	if len(em.Normals) == nv && nv > 0 {
		for i, v := range em.Normals {
			bm.Normals[0][i] = transform.Convert(v)
		}
	}

	for _, ch := range em.UVs {
		uvs := make([]mxs.TriangleUV, len(ch))
		for i, corners := range ch {
			for k, c := range corners {
				uvs[i][k] = vec3d.T{c[0], c[1], 0}
			}
		}
		bm.UVChannels = append(bm.UVChannels, uvs)
	}
	return bm
}

func (b *Builder) mesh(n *classify.Node) (record.Record, error) {
	if n.Mesh == nil {
		return nil, errors.Errorf("mesh %q was not evaluated", n.Name)
	}
	r := &record.Mesh{
		Common:           b.common(n),
		Source:           n.Type == mxs.BASE_INSTANCE,
		Steps:            len(n.Mesh.Positions),
		BackfaceMaterial: b.backface(n),
	}
	materials := b.materials(n)
	bm := b.binMesh(n, r.Name, n.Mesh, materials)
	r.Materials = materials
	if int(bm.NumMaterials) > len(materials) {
		r.Materials = append(r.Materials, CHECKER_MATERIAL)
	}
	if catmullClark(n.Object) && n.Mesh.Manifold {
		r.QuadPairs = n.Mesh.QuadPairs
	}
	file, err := b.write(r.Name, bm)
	if err != nil {
		return nil, err
	}
	r.File = file
	b.geometry[r.Name] = bm
	return r, nil
}

func (b *Builder) instance(n *classify.Node) (record.Record, error) {
	if n.Base == nil {
		return nil, errors.Errorf("instance %q has no base", n.Name)
	}
	r := &record.Instance{
		Common:           b.common(n),
		Instanced:        b.name(n.Base),
		Materials:        b.materials(n),
		BackfaceMaterial: b.backface(n),
	}
	if n.Dupli {
		r.Props = n.Object.Props.Clone()
	}
	return r, nil
}
