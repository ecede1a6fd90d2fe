package mxs

import (
	"sort"

	vec3d "github.com/flywave/go3d/float64/vec3"
)

// ReComputeNormal rebuilds the vertex normals of every step from the
// area weighted normals of the triangles sharing each vertex, and the
// triangle normals from the triangle winding.
func (m *BinMesh) ReComputeNormal() {
	m.Normals = make([][]vec3d.T, len(m.Positions))
	m.TriangleNormals = make([][]vec3d.T, len(m.Positions))
	for s, vs := range m.Positions {
		normals := make([]vec3d.T, len(vs))
		faces := make([]vec3d.T, len(m.Triangles))
		for i, t := range m.Triangles {
			pt1 := vs[t.Vertex[0]]
			pt2 := vs[t.Vertex[1]]
			pt3 := vs[t.Vertex[2]]

			sub1 := vec3d.Sub(&pt2, &pt1)
			sub2 := vec3d.Sub(&pt3, &pt1)

			cro := vec3d.Cross(&sub1, &sub2)
			l := cro.Length()
			if l == 0 {
				continue
			}
			faces[i] = cro
			faces[i].Scale(1 / l)

			normals[t.Vertex[0]].Add(&cro)
			normals[t.Vertex[1]].Add(&cro)
			normals[t.Vertex[2]].Add(&cro)
		}
		for i := range normals {
			if normals[i].Length() > 0 {
				normals[i].Normalize()
			}
		}
		m.Normals[s] = normals
		m.TriangleNormals[s] = faces
	}
}

// GetBoundbox returns min x, y, z followed by max x, y, z of the first step.
func (m *BinMesh) GetBoundbox() *[6]float64 {
	bbox := m.ComputeBBox()
	return &[6]float64{bbox.Min[0], bbox.Min[1], bbox.Min[2], bbox.Max[0], bbox.Max[1], bbox.Max[2]}
}

func (m *BinMesh) ComputeBBox() vec3d.Box {
	if m.VertexCount() == 0 {
		return vec3d.Box{}
	}
	bbox := vec3d.MinBox
	for _, v := range m.Positions[0] {
		pt := vec3d.Box{Min: v, Max: v}
		bbox.Join(&pt)
	}
	return bbox
}

// Edges returns every undirected triangle edge once, ordered by vertex
// indices.
func (m *BinMesh) Edges() [][2]int32 {
	seen := make(map[[2]int32]struct{})
	var edges [][2]int32
	for _, t := range m.Triangles {
		for j := 0; j < 3; j++ {
			a, b := t.Vertex[j], t.Vertex[(j+1)%3]
			if a > b {
				a, b = b, a
			}
			e := [2]int32{a, b}
			if _, ok := seen[e]; ok {
				continue
			}
			seen[e] = struct{}{}
			edges = append(edges, e)
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i][0] != edges[j][0] {
			return edges[i][0] < edges[j][0]
		}
		return edges[i][1] < edges[j][1]
	})
	return edges
}

// Transform applies f to every position and g to every normal.
func (m *BinMesh) Transform(f, g func(vec3d.T) vec3d.T) {
	for s := range m.Positions {
		for i := range m.Positions[s] {
			m.Positions[s][i] = f(m.Positions[s][i])
		}
	}
	for _, set := range [][][]vec3d.T{m.Normals, m.TriangleNormals} {
		for s := range set {
			for i := range set[s] {
				set[s][i] = g(set[s][i])
			}
		}
	}
}
