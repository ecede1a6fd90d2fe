package mxs

import (
	"bytes"
	"strings"
	"unicode/utf8"

	vec3d "github.com/flywave/go3d/float64/vec3"
	"github.com/pkg/errors"
)

// Triangle holds three vertex indices and three indices into the combined
// normal array (vertex normals followed by triangle normals).
type Triangle struct {
	Vertex [3]int32
	Normal [3]int32
}

// TriangleUV holds (u, v, w) for the three corners of a triangle.
type TriangleUV [3]vec3d.T

// BinMesh is the content of a BINMESH container.
type BinMesh struct {
	Name string
	// Positions and Normals hold one array per motion step.
	Positions       [][]vec3d.T
	Normals         [][]vec3d.T
	TriangleNormals [][]vec3d.T
	Triangles       []Triangle
	// UVChannels holds one array per channel with one entry per triangle.
	UVChannels        [][]TriangleUV
	NumMaterials      int32
	TriangleMaterials [][2]int32
}

func (m *BinMesh) Kind() Kind { return KindMesh }

func (m *BinMesh) Steps() int { return len(m.Positions) }

func (m *BinMesh) VertexCount() int {
	if len(m.Positions) == 0 {
		return 0
	}
	return len(m.Positions[0])
}

func (m *BinMesh) TriangleNormalCount() int {
	if len(m.TriangleNormals) == 0 {
		return 0
	}
	return len(m.TriangleNormals[0])
}

// Validate checks that every array agrees with the counts stored in the
// container.
func (m *BinMesh) Validate() error {
	if len(m.Name) > MESH_NAME_SIZE {
		return errors.Wrapf(ErrInconsistent, "name is %d bytes, limit %d", len(m.Name), MESH_NAME_SIZE)
	}
	if !utf8.ValidString(m.Name) {
		return errors.Wrap(ErrInconsistent, "name is not valid UTF-8")
	}
	if strings.IndexByte(m.Name, 0) >= 0 {
		return errors.Wrap(ErrInconsistent, "name contains a NUL byte")
	}
	steps := m.Steps()
	if steps == 0 {
		return errors.Wrap(ErrInconsistent, "no steps")
	}
	if len(m.Normals) != steps {
		return errors.Wrapf(ErrInconsistent, "%d normal steps for %d position steps", len(m.Normals), steps)
	}
	if len(m.TriangleNormals) != steps {
		return errors.Wrapf(ErrInconsistent, "%d triangle normal steps for %d steps", len(m.TriangleNormals), steps)
	}
	nv, ntn := m.VertexCount(), m.TriangleNormalCount()
	for i := 0; i < steps; i++ {
		if len(m.Positions[i]) != nv || len(m.Normals[i]) != nv {
			return errors.Wrapf(ErrInconsistent, "step %d vertex arrays differ from %d", i, nv)
		}
		if len(m.TriangleNormals[i]) != ntn {
			return errors.Wrapf(ErrInconsistent, "step %d has %d triangle normals, want %d", i, len(m.TriangleNormals[i]), ntn)
		}
	}
	nt := len(m.Triangles)
	for i, t := range m.Triangles {
		for j := 0; j < 3; j++ {
			if t.Vertex[j] < 0 || int(t.Vertex[j]) >= nv {
				return errors.Wrapf(ErrInconsistent, "triangle %d vertex index %d out of range", i, t.Vertex[j])
			}
			if t.Normal[j] < 0 || int(t.Normal[j]) >= nv+ntn {
				return errors.Wrapf(ErrInconsistent, "triangle %d normal index %d out of range", i, t.Normal[j])
			}
		}
	}
	for i, ch := range m.UVChannels {
		if len(ch) != nt {
			return errors.Wrapf(ErrInconsistent, "uv channel %d has %d triangles, want %d", i, len(ch), nt)
		}
	}
	if len(m.TriangleMaterials) != nt {
		return errors.Wrapf(ErrInconsistent, "%d triangle materials for %d triangles", len(m.TriangleMaterials), nt)
	}
	for i, tm := range m.TriangleMaterials {
		if tm[1] < 0 || (m.NumMaterials > 0 && tm[1] >= m.NumMaterials) {
			return errors.Wrapf(ErrInconsistent, "triangle %d material %d out of range", i, tm[1])
		}
	}
	return nil
}

func flattenVec3(vs []vec3d.T) []float64 {
	out := make([]float64, 0, 3*len(vs))
	for _, v := range vs {
		out = append(out, v[0], v[1], v[2])
	}
	return out
}

func unflattenVec3(fs []float64) []vec3d.T {
	out := make([]vec3d.T, len(fs)/3)
	for i := range out {
		out[i] = vec3d.T{fs[3*i], fs[3*i+1], fs[3*i+2]}
	}
	return out
}

func (m *BinMesh) marshal(w *writer) bool {
	if err := m.Validate(); err != nil {
		return w.fail(err)
	}
	var name [MESH_NAME_SIZE]byte
	copy(name[:], m.Name)
	if w.fw.Bytes(name[:]) {
		return true
	}
	if w.count(m.Steps()) || w.count(m.VertexCount()) {
		return true
	}
	for i := range m.Positions {
		if w.float64s(flattenVec3(m.Positions[i])) || w.float64s(flattenVec3(m.Normals[i])) {
			return true
		}
	}
	if w.count(m.TriangleNormalCount()) {
		return true
	}
	for i := range m.TriangleNormals {
		if w.float64s(flattenVec3(m.TriangleNormals[i])) {
			return true
		}
	}
	if w.count(len(m.Triangles)) {
		return true
	}
	tris := make([]int32, 0, 6*len(m.Triangles))
	for _, t := range m.Triangles {
		tris = append(tris, t.Vertex[0], t.Vertex[1], t.Vertex[2], t.Normal[0], t.Normal[1], t.Normal[2])
	}
	if w.int32s(tris) {
		return true
	}
	if w.count(len(m.UVChannels)) {
		return true
	}
	for _, ch := range m.UVChannels {
		uvs := make([]float64, 0, 9*len(ch))
		for _, t := range ch {
			for _, c := range t {
				uvs = append(uvs, c[0], c[1], c[2])
			}
		}
		if w.float64s(uvs) {
			return true
		}
	}
	if w.int32(m.NumMaterials) {
		return true
	}
	mats := make([]int32, 0, 2*len(m.TriangleMaterials))
	for _, tm := range m.TriangleMaterials {
		mats = append(mats, tm[0], tm[1])
	}
	return w.int32s(mats)
}

func (m *BinMesh) unmarshal(r *reader) bool {
	var name [MESH_NAME_SIZE]byte
	if r.fr.Bytes(name[:]) {
		return true
	}
	if i := bytes.IndexByte(name[:], 0); i >= 0 {
		m.Name = string(name[:i])
	} else {
		m.Name = string(name[:])
	}

	var steps, nv int
	if r.count(&steps, 0) || r.count(&nv, 0) {
		return true
	}
	if int64(steps)*int64(nv)*48 > r.remaining() {
		return r.fail(errors.Wrapf(ErrTruncated, "%d steps of %d vertices", steps, nv))
	}
	m.Positions = make([][]vec3d.T, steps)
	m.Normals = make([][]vec3d.T, steps)
	for i := 0; i < steps; i++ {
		ps, failed := r.float64s(3 * nv)
		if failed {
			return true
		}
		ns, failed := r.float64s(3 * nv)
		if failed {
			return true
		}
		m.Positions[i] = unflattenVec3(ps)
		m.Normals[i] = unflattenVec3(ns)
	}

	var ntn int
	if r.count(&ntn, 24*int64(steps)) {
		return true
	}
	m.TriangleNormals = make([][]vec3d.T, steps)
	for i := 0; i < steps; i++ {
		ns, failed := r.float64s(3 * ntn)
		if failed {
			return true
		}
		m.TriangleNormals[i] = unflattenVec3(ns)
	}

	var nt int
	if r.count(&nt, 24) {
		return true
	}
	tris, failed := r.int32s(6 * nt)
	if failed {
		return true
	}
	m.Triangles = make([]Triangle, nt)
	for i := range m.Triangles {
		t := tris[6*i:]
		m.Triangles[i] = Triangle{
			Vertex: [3]int32{t[0], t[1], t[2]},
			Normal: [3]int32{t[3], t[4], t[5]},
		}
	}

	var nch int
	if r.count(&nch, 72*int64(nt)) {
		return true
	}
	m.UVChannels = make([][]TriangleUV, nch)
	for c := range m.UVChannels {
		uvs, failed := r.float64s(9 * nt)
		if failed {
			return true
		}
		ch := make([]TriangleUV, nt)
		for i := range ch {
			u := uvs[9*i:]
			ch[i] = TriangleUV{{u[0], u[1], u[2]}, {u[3], u[4], u[5]}, {u[6], u[7], u[8]}}
		}
		m.UVChannels[c] = ch
	}

	if r.int32(&m.NumMaterials) {
		return true
	}
	mats, failed := r.int32s(2 * nt)
	if failed {
		return true
	}
	m.TriangleMaterials = make([][2]int32, nt)
	for i := range m.TriangleMaterials {
		m.TriangleMaterials[i] = [2]int32{mats[2*i], mats[2*i+1]}
	}
	return false
}

func BinMeshReadFrom(path string) (*BinMesh, error) {
	m := &BinMesh{}
	if err := ReadFrom(path, m); err != nil {
		return nil, err
	}
	return m, nil
}

func BinMeshWriteTo(path string, m *BinMesh) error {
	return WriteTo(path, m)
}
