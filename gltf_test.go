package mxs

import (
	"bytes"
	"testing"

	"github.com/qmuntal/gltf"
)

func TestCreateDoc(t *testing.T) {
	doc := CreateDoc()

	if doc == nil {
		t.Fatal("CreateDoc() returned nil")
	}

	if doc.Asset.Version != GLTF_VERSION {
		t.Errorf("Expected GLTF version %s, got %s", GLTF_VERSION, doc.Asset.Version)
	}

	if len(doc.Scenes) != 1 {
		t.Errorf("Expected 1 scene, got %d", len(doc.Scenes))
	}

	if doc.Scene == nil {
		t.Error("Scene index should not be nil")
	} else if *doc.Scene != 0 {
		t.Errorf("Expected scene index 0, got %d", *doc.Scene)
	}

	if len(doc.Buffers) != 1 || doc.Buffers[0] == nil {
		t.Errorf("Expected 1 buffer, got %d", len(doc.Buffers))
	}

	if doc.Asset.Generator != "go-mxs" {
		t.Errorf("Unexpected generator %q", doc.Asset.Generator)
	}
}

func TestCalcPadding(t *testing.T) {
	tests := []struct {
		offset   int
		unit     int
		expected int
	}{
		{0, 4, 0},
		{1, 4, 3},
		{2, 4, 2},
		{3, 4, 1},
		{4, 4, 0},
		{5, 4, 3},
		{7, 8, 1},
		{8, 8, 0},
		{13, 16, 3},
	}

	for _, test := range tests {
		result := calcPadding(test.offset, test.unit)
		if result != test.expected {
			t.Errorf("calcPadding(%d, %d) = %d, expected %d", test.offset, test.unit, result, test.expected)
		}
	}
}

func TestGetGltfBinary(t *testing.T) {
	doc := CreateDoc()

	doc.Buffers[0].Data = []byte{1, 2, 3, 4, 5, 6, 7, 8}
	doc.Buffers[0].ByteLength = 8

	for _, unit := range []int{4, 64} {
		glb, err := GetGltfBinary(doc, unit)
		if err != nil {
			t.Fatalf("GetGltfBinary(%d) failed: %v", unit, err)
		}
		if !bytes.HasPrefix(glb, []byte("glTF")) {
			t.Errorf("Missing GLB magic: %q", glb[:4])
		}
		if len(glb)%unit != 0 {
			t.Errorf("Binary length %d is not a multiple of %d", len(glb), unit)
		}
	}
}

func TestPreviewMesh(t *testing.T) {
	m := sampleMesh()
	p := NewPreview()

	i := p.AddMesh("Plane", m)
	if again := p.AddMesh("Plane", m); again != i {
		t.Errorf("AddMesh should reuse mesh %d, got %d", i, again)
	}
	if j, ok := p.Mesh("Plane"); !ok || j != i {
		t.Errorf("Mesh(Plane) = %d, %v", j, ok)
	}

	doc := p.Document()
	if len(doc.Meshes) != 1 {
		t.Fatalf("Expected 1 mesh, got %d", len(doc.Meshes))
	}
	// one primitive per material index
	prims := doc.Meshes[0].Primitives
	if len(prims) != 2 {
		t.Fatalf("Expected 2 primitives, got %d", len(prims))
	}
	for _, attr := range []string{"POSITION", "NORMAL", "TEXCOORD_0"} {
		if _, ok := prims[0].Attributes[attr]; !ok {
			t.Errorf("Missing attribute %s", attr)
		}
	}
	pos := doc.Accessors[prims[0].Attributes["POSITION"]]
	if pos.Count != 6 {
		t.Errorf("Expected 6 expanded vertices, got %d", pos.Count)
	}
	if pos.Max[0] != 1 || pos.Min[2] != -1 {
		t.Errorf("Unexpected bounds %v %v", pos.Min, pos.Max)
	}
	for _, v := range doc.BufferViews {
		if v.ByteOffset%4 != 0 {
			t.Errorf("Buffer view offset %d is not aligned", v.ByteOffset)
		}
	}
}

func TestPreviewNodes(t *testing.T) {
	p := NewPreview()
	mesh := p.AddMesh("Plane", sampleMesh())
	root := p.AddNode("Root", nil, [16]float64{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}, nil)
	child := p.AddNode("Child", &mesh, [16]float64{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 5, 0, 0, 1}, &root)

	doc := p.Document()
	if got := doc.Scenes[0].Nodes; len(got) != 1 || got[0] != root {
		t.Errorf("Scene roots = %v, want [%d]", got, root)
	}
	if got := doc.Nodes[root].Children; len(got) != 1 || got[0] != child {
		t.Errorf("Root children = %v, want [%d]", got, child)
	}
	if doc.Nodes[child].Matrix[12] != 5 {
		t.Errorf("Child translation = %v", doc.Nodes[child].Matrix[12])
	}

	data, err := GetGltfBinary(doc, 4)
	if err != nil {
		t.Fatalf("GetGltfBinary failed: %v", err)
	}
	back := &gltf.Document{}
	if err := gltf.NewDecoder(bytes.NewReader(data)).Decode(back); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(back.Nodes) != 2 || back.Nodes[1].Name != "Child" {
		t.Errorf("Unexpected nodes after decode: %d", len(back.Nodes))
	}
}
