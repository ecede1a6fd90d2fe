package mxs

import (
	"bytes"
	"encoding/binary"
	"math"
	"sort"

	"github.com/qmuntal/gltf"
)

const GLTF_VERSION = "2.0"

const PADDING_CHAR = 0x20

func CreateDoc() *gltf.Document {
	doc := &gltf.Document{}
	doc.Asset.Version = GLTF_VERSION
	doc.Asset.Generator = "go-mxs"
	srcIndex := uint32(0)
	doc.Scene = &srcIndex
	doc.Scenes = append(doc.Scenes, &gltf.Scene{})
	doc.Buffers = append(doc.Buffers, &gltf.Buffer{})
	return doc
}

func calcPadding(offset, paddingUnit int) int {
	padding := offset % paddingUnit
	if padding != 0 {
		padding = paddingUnit - padding
	}
	return padding
}

// GetGltfBinary encodes doc as GLB, padded with spaces to a multiple of
// paddingUnit.
func GetGltfBinary(doc *gltf.Document, paddingUnit int) ([]byte, error) {
	buf := &bytes.Buffer{}
	enc := gltf.NewEncoder(buf)
	enc.AsBinary = true
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	if padding := calcPadding(buf.Len(), paddingUnit); padding > 0 {
		buf.Write(bytes.Repeat([]byte{PADDING_CHAR}, padding))
	}
	return buf.Bytes(), nil
}

func uint32Ptr(v uint32) *uint32 { return &v }

// Preview accumulates exported meshes and their instances in a glTF
// document. Meshes are added once and shared by every node that refers to
// them.
type Preview struct {
	doc    *gltf.Document
	meshes map[string]uint32
}

func NewPreview() *Preview {
	return &Preview{doc: CreateDoc(), meshes: make(map[string]uint32)}
}

func (p *Preview) Document() *gltf.Document { return p.doc }

// Mesh returns the index of the mesh previously added under name.
func (p *Preview) Mesh(name string) (uint32, bool) {
	i, ok := p.meshes[name]
	return i, ok
}

func (p *Preview) appendView(data []byte, target gltf.Target) uint32 {
	buffer := p.doc.Buffers[0]
	if pad := calcPadding(len(buffer.Data), 4); pad > 0 {
		buffer.Data = append(buffer.Data, make([]byte, pad)...)
	}
	view := &gltf.BufferView{
		Buffer:     0,
		ByteOffset: uint32(len(buffer.Data)),
		ByteLength: uint32(len(data)),
		Target:     target,
	}
	buffer.Data = append(buffer.Data, data...)
	buffer.ByteLength = uint32(len(buffer.Data))
	p.doc.BufferViews = append(p.doc.BufferViews, view)
	return uint32(len(p.doc.BufferViews) - 1)
}

func (p *Preview) appendAccessor(a *gltf.Accessor) uint32 {
	p.doc.Accessors = append(p.doc.Accessors, a)
	return uint32(len(p.doc.Accessors) - 1)
}

// AddMesh converts the first step of m into a glTF mesh with one primitive
// per material index. Vertices are expanded per triangle corner because
// the container indexes normals separately from positions.
func (p *Preview) AddMesh(name string, m *BinMesh) uint32 {
	if i, ok := p.meshes[name]; ok {
		return i
	}
	nv := m.VertexCount()
	positions := make([][3]float32, 0, 3*len(m.Triangles))
	normals := make([][3]float32, 0, 3*len(m.Triangles))
	var uvs [][2]float32
	min := [3]float32{math.MaxFloat32, math.MaxFloat32, math.MaxFloat32}
	max := [3]float32{-math.MaxFloat32, -math.MaxFloat32, -math.MaxFloat32}

	groups := make(map[int32][]uint32)
	for i, t := range m.Triangles {
		mat := int32(0)
		if i < len(m.TriangleMaterials) {
			mat = m.TriangleMaterials[i][1]
		}
		for j := 0; j < 3; j++ {
			v := m.Positions[0][t.Vertex[j]]
			pos := [3]float32{float32(v[0]), float32(v[1]), float32(v[2])}
			for k := 0; k < 3; k++ {
				min[k] = float32(math.Min(float64(min[k]), float64(pos[k])))
				max[k] = float32(math.Max(float64(max[k]), float64(pos[k])))
			}
			var n [3]float32
			if ni := int(t.Normal[j]); ni < nv {
				nn := m.Normals[0][ni]
				n = [3]float32{float32(nn[0]), float32(nn[1]), float32(nn[2])}
			} else {
				nn := m.TriangleNormals[0][ni-nv]
				n = [3]float32{float32(nn[0]), float32(nn[1]), float32(nn[2])}
			}
			groups[mat] = append(groups[mat], uint32(len(positions)))
			positions = append(positions, pos)
			normals = append(normals, n)
			if len(m.UVChannels) > 0 {
				uv := m.UVChannels[0][i][j]
				uvs = append(uvs, [2]float32{float32(uv[0]), float32(1 - uv[1])})
			}
		}
	}

	buf := &bytes.Buffer{}
	binary.Write(buf, binary.LittleEndian, positions)
	posAcc := p.appendAccessor(&gltf.Accessor{
		BufferView:    uint32Ptr(p.appendView(buf.Bytes(), gltf.TargetArrayBuffer)),
		ComponentType: gltf.ComponentFloat,
		Type:          gltf.AccessorVec3,
		Count:         uint32(len(positions)),
		Min:           min[:],
		Max:           max[:],
	})
	buf.Reset()
	binary.Write(buf, binary.LittleEndian, normals)
	normAcc := p.appendAccessor(&gltf.Accessor{
		BufferView:    uint32Ptr(p.appendView(buf.Bytes(), gltf.TargetArrayBuffer)),
		ComponentType: gltf.ComponentFloat,
		Type:          gltf.AccessorVec3,
		Count:         uint32(len(normals)),
	})
	attributes := gltf.Attribute{"POSITION": posAcc, "NORMAL": normAcc}
	if len(uvs) > 0 {
		buf.Reset()
		binary.Write(buf, binary.LittleEndian, uvs)
		attributes["TEXCOORD_0"] = p.appendAccessor(&gltf.Accessor{
			BufferView:    uint32Ptr(p.appendView(buf.Bytes(), gltf.TargetArrayBuffer)),
			ComponentType: gltf.ComponentFloat,
			Type:          gltf.AccessorVec2,
			Count:         uint32(len(uvs)),
		})
	}

	mats := make([]int32, 0, len(groups))
	for mat := range groups {
		mats = append(mats, mat)
	}
	sort.Slice(mats, func(i, j int) bool { return mats[i] < mats[j] })

	mesh := &gltf.Mesh{Name: name}
	for _, mat := range mats {
		indices := groups[mat]
		buf.Reset()
		binary.Write(buf, binary.LittleEndian, indices)
		idx := p.appendAccessor(&gltf.Accessor{
			BufferView:    uint32Ptr(p.appendView(buf.Bytes(), gltf.TargetElementArrayBuffer)),
			ComponentType: gltf.ComponentUint,
			Type:          gltf.AccessorScalar,
			Count:         uint32(len(indices)),
		})
		mesh.Primitives = append(mesh.Primitives, &gltf.Primitive{
			Attributes: attributes,
			Indices:    uint32Ptr(idx),
			Mode:       gltf.PrimitiveTriangles,
		})
	}
	p.doc.Meshes = append(p.doc.Meshes, mesh)
	i := uint32(len(p.doc.Meshes) - 1)
	p.meshes[name] = i
	return i
}

// AddNode appends a node with a column major matrix. A nil parent makes it
// a scene root.
func (p *Preview) AddNode(name string, mesh *uint32, matrix [16]float64, parent *uint32) uint32 {
	nd := &gltf.Node{Name: name, Mesh: mesh}
	for i := range matrix {
		nd.Matrix[i] = float32(matrix[i])
	}
	p.doc.Nodes = append(p.doc.Nodes, nd)
	i := uint32(len(p.doc.Nodes) - 1)
	if parent == nil {
		p.doc.Scenes[0].Nodes = append(p.doc.Scenes[0].Nodes, i)
	} else {
		pn := p.doc.Nodes[*parent]
		pn.Children = append(pn.Children, i)
	}
	return i
}
