package scene

import (
	"encoding/binary"
	"fmt"
	"math"
	"path/filepath"
	"strings"

	vec3d "github.com/flywave/go3d/float64/vec3"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"

	"github.com/flywave/go-mxs/transform"
)

func isGLTF(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".gltf" || ext == ".glb"
}

// LoadGLTF builds a scene from a glTF or GLB file. Nodes become objects,
// nodes that share a glTF mesh share its mesh data. Coordinates are mapped
// from the Y up glTF frame to the Z up authoring frame.
func LoadGLTF(path string) (*Scene, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", filepath.Base(path))
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	g := &gltfLoader{
		doc:     doc,
		s:       &Scene{Name: name, Meshes: make(map[string]*MeshData)},
		objects: make(map[string]bool),
		data:    make(map[string]bool),
		meshes:  make(map[uint32]*gltfMesh),
	}
	for _, root := range g.roots() {
		if err := g.node(root, mgl64.Ident4(), "", 0); err != nil {
			return nil, errors.Wrapf(err, "gltf %s", filepath.Base(path))
		}
	}
	if err := g.s.Prepare(); err != nil {
		return nil, errors.Wrapf(err, "gltf %s", filepath.Base(path))
	}
	return g.s, nil
}

type gltfMesh struct {
	data      string
	materials []string
}

type gltfLoader struct {
	doc     *gltf.Document
	s       *Scene
	objects map[string]bool
	data    map[string]bool
	meshes  map[uint32]*gltfMesh
}

// unique returns name, or name with the lowest free .NNN suffix.
func unique(name string, used map[string]bool) string {
	out := name
	for i := 1; used[out]; i++ {
		out = fmt.Sprintf("%s.%03d", name, i)
	}
	used[out] = true
	return out
}

func (g *gltfLoader) roots() []uint32 {
	if g.doc.Scene != nil && int(*g.doc.Scene) < len(g.doc.Scenes) {
		return g.doc.Scenes[*g.doc.Scene].Nodes
	}
	child := make(map[uint32]bool)
	for _, nd := range g.doc.Nodes {
		for _, c := range nd.Children {
			child[c] = true
		}
	}
	var out []uint32
	for i := range g.doc.Nodes {
		if !child[uint32(i)] {
			out = append(out, uint32(i))
		}
	}
	return out
}

func nodeMatrix(nd *gltf.Node) mgl64.Mat4 {
	var m mgl64.Mat4
	for i, v := range nd.Matrix {
		m[i] = float64(v)
	}
	if m != (mgl64.Mat4{}) && m != mgl64.Ident4() {
		return m
	}
	t := mgl64.Translate3D(float64(nd.Translation[0]), float64(nd.Translation[1]), float64(nd.Translation[2]))
	r := mgl64.Ident4()
	if q := nd.Rotation; q != [4]float32{} {
		r = mgl64.Quat{W: float64(q[3]), V: mgl64.Vec3{float64(q[0]), float64(q[1]), float64(q[2])}}.Normalize().Mat4()
	}
	s := mgl64.Ident4()
	if sc := nd.Scale; sc != [3]float32{} {
		s = mgl64.Scale3D(float64(sc[0]), float64(sc[1]), float64(sc[2]))
	}
	return t.Mul4(r).Mul4(s)
}

func (g *gltfLoader) node(i uint32, parentWorld mgl64.Mat4, parent string, depth int) error {
	if int(i) >= len(g.doc.Nodes) {
		return errors.Errorf("node index %d out of range", i)
	}
	if depth > len(g.doc.Nodes) {
		return errors.Errorf("node %d: cycle in node children", i)
	}
	nd := g.doc.Nodes[i]
	name := nd.Name
	if name == "" {
		name = fmt.Sprintf("node%d", i)
	}
	world := parentWorld.Mul4(nodeMatrix(nd))
	axis := transform.Axis.Mat4()
	o := &Object{
		Name:   unique(name, g.objects),
		Type:   OBJECT_EMPTY,
		Parent: parent,
		Matrix: FromMat4(axis.Inv().Mul4(world).Mul4(axis)),
	}
	if nd.Mesh != nil {
		m, err := g.mesh(*nd.Mesh)
		if err != nil {
			return errors.Wrapf(err, "node %s", o.Name)
		}
		o.Type = OBJECT_MESH
		o.Data = m.data
		o.Materials = append([]string(nil), m.materials...)
	}
	g.s.Objects = append(g.s.Objects, o)
	for _, c := range nd.Children {
		if err := g.node(c, world, o.Name, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func (g *gltfLoader) mesh(i uint32) (*gltfMesh, error) {
	if m, ok := g.meshes[i]; ok {
		return m, nil
	}
	if int(i) >= len(g.doc.Meshes) {
		return nil, errors.Errorf("mesh index %d out of range", i)
	}
	src := g.doc.Meshes[i]
	name := src.Name
	if name == "" {
		name = fmt.Sprintf("mesh%d", i)
	}
	out := &gltfMesh{data: unique(name, g.data)}
	data := &MeshData{Name: out.data}

	type attrs struct {
		base, count int
		smooth      bool
		uvs         [][]float64
	}
	shared := make(map[uint32]*attrs)
	slots := make(map[int64]int)
	for pi, p := range src.Primitives {
		if p.Mode != gltf.PrimitiveTriangles {
			return nil, errors.Errorf("mesh %s primitive %d: only triangles are supported", name, pi)
		}
		posIdx, ok := p.Attributes["POSITION"]
		if !ok {
			return nil, errors.Errorf("mesh %s primitive %d: no POSITION attribute", name, pi)
		}
		a, ok := shared[posIdx]
		if !ok {
			pos, err := readAccessor(g.doc, posIdx)
			if err != nil {
				return nil, errors.Wrapf(err, "mesh %s positions", name)
			}
			a = &attrs{base: len(data.Vertices), count: len(pos)}
			for _, v := range pos {
				data.Vertices = append(data.Vertices, revert(v))
			}
			if ni, ok := p.Attributes["NORMAL"]; ok {
				nrm, err := readAccessor(g.doc, ni)
				if err != nil {
					return nil, errors.Wrapf(err, "mesh %s normals", name)
				}
				if len(nrm) != len(pos) {
					return nil, errors.Errorf("mesh %s: %d normals for %d positions", name, len(nrm), len(pos))
				}
				if len(data.Normals) < a.base {
					data.Normals = append(data.Normals, make([][3]float64, a.base-len(data.Normals))...)
				}
				for _, n := range nrm {
					data.Normals = append(data.Normals, revert(n))
				}
				a.smooth = true
			}
			if ti, ok := p.Attributes["TEXCOORD_0"]; ok {
				uv, err := readAccessor(g.doc, ti)
				if err != nil {
					return nil, errors.Wrapf(err, "mesh %s uvs", name)
				}
				if len(uv) != len(pos) {
					return nil, errors.Errorf("mesh %s: %d uvs for %d positions", name, len(uv), len(pos))
				}
				a.uvs = uv
				data.UVLayers = []string{"uv0"}
			}
			shared[posIdx] = a
		}

		key := int64(-1)
		if p.Material != nil {
			key = int64(*p.Material)
		}
		slot, ok := slots[key]
		if !ok {
			slot = len(out.materials)
			slots[key] = slot
			out.materials = append(out.materials, materialName(g.doc, p.Material))
		}

		var indices []int
		if p.Indices != nil {
			idx, err := readAccessor(g.doc, *p.Indices)
			if err != nil {
				return nil, errors.Wrapf(err, "mesh %s indices", name)
			}
			for _, e := range idx {
				indices = append(indices, int(e[0]))
			}
		} else {
			for k := 0; k < a.count; k++ {
				indices = append(indices, k)
			}
		}
		if len(indices)%3 != 0 {
			return nil, errors.Errorf("mesh %s primitive %d: %d indices is not a triangle list", name, pi, len(indices))
		}
		for t := 0; t+2 < len(indices); t += 3 {
			poly := Polygon{Material: slot, Smooth: a.smooth}
			var corners [][2]float64
			for _, k := range indices[t : t+3] {
				if k >= a.count {
					return nil, errors.Errorf("mesh %s: index %d out of range", name, k)
				}
				poly.Vertices = append(poly.Vertices, a.base+k)
				if a.uvs != nil {
					corners = append(corners, [2]float64{a.uvs[k][0], 1 - a.uvs[k][1]})
				}
			}
			if corners != nil {
				poly.UVs = [][][2]float64{corners}
			}
			data.Polygons = append(data.Polygons, poly)
		}
	}
	if len(data.Normals) > 0 && len(data.Normals) < len(data.Vertices) {
		data.Normals = append(data.Normals, make([][3]float64, len(data.Vertices)-len(data.Normals))...)
	}
	if data.UVLayers != nil {
		// primitives without texture coordinates get zeros in the layer
		for i := range data.Polygons {
			if data.Polygons[i].UVs == nil {
				data.Polygons[i].UVs = [][][2]float64{make([][2]float64, len(data.Polygons[i].Vertices))}
			}
		}
	}
	g.s.Meshes[out.data] = data
	g.meshes[i] = out
	return out, nil
}

func materialName(doc *gltf.Document, i *uint32) string {
	if i == nil || int(*i) >= len(doc.Materials) {
		return ""
	}
	if n := doc.Materials[*i].Name; n != "" {
		return n
	}
	return fmt.Sprintf("material%d", *i)
}

func revert(v []float64) [3]float64 {
	r := transform.Revert(vec3d.T{v[0], v[1], v[2]})
	return [3]float64{r[0], r[1], r[2]}
}

func componentSize(c gltf.ComponentType) int {
	switch c {
	case gltf.ComponentByte, gltf.ComponentUbyte:
		return 1
	case gltf.ComponentShort, gltf.ComponentUshort:
		return 2
	}
	return 4
}

func componentCount(t gltf.AccessorType) int {
	switch t {
	case gltf.AccessorScalar:
		return 1
	case gltf.AccessorVec2:
		return 2
	case gltf.AccessorVec3:
		return 3
	case gltf.AccessorVec4:
		return 4
	}
	return 0
}

// readAccessor returns the elements of accessor i widened to float64.
func readAccessor(doc *gltf.Document, i uint32) ([][]float64, error) {
	if int(i) >= len(doc.Accessors) {
		return nil, errors.Errorf("accessor %d out of range", i)
	}
	acc := doc.Accessors[i]
	n := componentCount(acc.Type)
	if n == 0 {
		return nil, errors.Errorf("accessor %d: unsupported type %v", i, acc.Type)
	}
	if acc.BufferView == nil {
		return nil, errors.Errorf("accessor %d: sparse or empty accessors are not supported", i)
	}
	if int(*acc.BufferView) >= len(doc.BufferViews) {
		return nil, errors.Errorf("accessor %d: buffer view %d out of range", i, *acc.BufferView)
	}
	view := doc.BufferViews[*acc.BufferView]
	if int(view.Buffer) >= len(doc.Buffers) {
		return nil, errors.Errorf("buffer view %d: buffer %d out of range", *acc.BufferView, view.Buffer)
	}
	data := doc.Buffers[view.Buffer].Data
	size := componentSize(acc.ComponentType)
	stride := int(view.ByteStride)
	if stride == 0 {
		stride = size * n
	}
	start := int64(view.ByteOffset) + int64(acc.ByteOffset)
	// the last element bounds every other one
	if acc.Count > 0 && start+int64(acc.Count-1)*int64(stride)+int64(size*n) > int64(len(data)) {
		return nil, errors.Errorf("accessor %d: %d elements past end of buffer", i, acc.Count)
	}
	out := make([][]float64, acc.Count)
	for e := range out {
		off := int(start) + e*stride
		v := make([]float64, n)
		for k := range v {
			b := data[off+k*size:]
			switch acc.ComponentType {
			case gltf.ComponentFloat:
				v[k] = float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
			case gltf.ComponentUint:
				v[k] = float64(binary.LittleEndian.Uint32(b))
			case gltf.ComponentUshort:
				v[k] = float64(binary.LittleEndian.Uint16(b))
			case gltf.ComponentShort:
				v[k] = float64(int16(binary.LittleEndian.Uint16(b)))
			case gltf.ComponentUbyte:
				v[k] = float64(b[0])
			case gltf.ComponentByte:
				v[k] = float64(int8(b[0]))
			}
		}
		out[e] = v
	}
	return out, nil
}
