package scene

import (
	vec3d "github.com/flywave/go3d/float64/vec3"
	"github.com/pkg/errors"
)

// EvalTriangle is one triangle of an evaluated mesh.
type EvalTriangle struct {
	Vertex   [3]int32
	Smooth   bool
	Material int32
	// Polygon is the index of the source polygon.
	Polygon int
}

// EvaluatedMesh is triangulated geometry with consistent winding.
type EvaluatedMesh struct {
	// Positions holds one array per motion step.
	Positions [][]vec3d.T
	// Normals holds the authored vertex normals of the first step, or nil.
	Normals   []vec3d.T
	Triangles []EvalTriangle
	// UVs holds per channel one set of corner coordinates per triangle.
	UVs [][][3][2]float64
	// QuadPairs lists triangle pairs that came from the same quad. It is
	// only filled when requested.
	QuadPairs [][2]int32
	Manifold  bool
}

// PolygonCount returns the number of source polygons.
func (m *EvaluatedMesh) PolygonCount() int {
	n := 0
	last := -1
	for _, t := range m.Triangles {
		if t.Polygon != last {
			n++
			last = t.Polygon
		}
	}
	return n
}

// MeshEvaluator triangulates the geometry of an object. When quads is set
// the result carries the quad pairing needed for Catmull-Clark subdivision.
type MeshEvaluator interface {
	Evaluate(o *Object, data *MeshData, quads bool) (*EvaluatedMesh, error)
}

// FanEvaluator triangulates every polygon as a fan around its first vertex.
type FanEvaluator struct{}

func toVec(v [3]float64) vec3d.T { return vec3d.T{v[0], v[1], v[2]} }

func (FanEvaluator) Evaluate(o *Object, data *MeshData, quads bool) (*EvaluatedMesh, error) {
	if data == nil {
		return &EvaluatedMesh{Manifold: true}, nil
	}
	nv := len(data.Vertices)
	m := &EvaluatedMesh{}
	steps := append([][][3]float64{data.Vertices}, data.Steps...)
	for i, st := range steps {
		if len(st) != nv {
			return nil, errors.Errorf("mesh %q step %d has %d vertices, want %d", data.Name, i, len(st), nv)
		}
		ps := make([]vec3d.T, nv)
		for j, v := range st {
			ps[j] = toVec(v)
		}
		m.Positions = append(m.Positions, ps)
	}
	if len(data.Normals) == nv && nv > 0 {
		m.Normals = make([]vec3d.T, nv)
		for j, n := range data.Normals {
			m.Normals[j] = toVec(n)
		}
	}

	m.UVs = make([][][3][2]float64, len(data.UVLayers))
	for pi, p := range data.Polygons {
		if len(p.Vertices) < 3 {
			continue
		}
		for _, v := range p.Vertices {
			if v < 0 || v >= nv {
				return nil, errors.Errorf("mesh %q polygon %d refers to vertex %d of %d", data.Name, pi, v, nv)
			}
		}
		first := int32(len(m.Triangles))
		for k := 1; k+1 < len(p.Vertices); k++ {
			m.Triangles = append(m.Triangles, EvalTriangle{
				Vertex:   [3]int32{int32(p.Vertices[0]), int32(p.Vertices[k]), int32(p.Vertices[k+1])},
				Smooth:   p.Smooth,
				Material: int32(p.Material),
				Polygon:  pi,
			})
			for c := range data.UVLayers {
				var uv [3][2]float64
				if c < len(p.UVs) && len(p.UVs[c]) == len(p.Vertices) {
					uv = [3][2]float64{p.UVs[c][0], p.UVs[c][k], p.UVs[c][k+1]}
				}
				m.UVs[c] = append(m.UVs[c], uv)
			}
		}
		if quads && len(p.Vertices) == 4 {
			m.QuadPairs = append(m.QuadPairs, [2]int32{first, first + 1})
		}
	}
	m.Manifold = manifold(data)
	return m, nil
}

// manifold reports whether every edge is shared by at most two polygons
// that traverse it in opposite directions.
func manifold(data *MeshData) bool {
	directed := make(map[[2]int]int)
	for _, p := range data.Polygons {
		if len(p.Vertices) < 3 {
			continue
		}
		for i := range p.Vertices {
			e := [2]int{p.Vertices[i], p.Vertices[(i+1)%len(p.Vertices)]}
			directed[e]++
			if directed[e] > 1 {
				return false
			}
		}
	}
	return true
}
