package classify

import (
	"io"
	"math/rand"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mxs "github.com/flywave/go-mxs"
	"github.com/flywave/go-mxs/runlog"
	"github.com/flywave/go-mxs/scene"
)

func quad(name string) *scene.MeshData {
	return &scene.MeshData{
		Name:     name,
		Vertices: [][3]float64{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}},
		Polygons: []scene.Polygon{{Vertices: []int{0, 1, 2, 3}}},
	}
}

func newScene(objects ...*scene.Object) *scene.Scene {
	return &scene.Scene{
		Name:    "test",
		Objects: objects,
		Meshes: map[string]*scene.MeshData{
			"Quad":  quad("Quad"),
			"Other": quad("Other"),
			"Empty": {Name: "Empty"},
			"Broken": {
				Name:     "Broken",
				Vertices: [][3]float64{{0, 0, 0}},
				Polygons: []scene.Polygon{{Vertices: []int{0, 1, 2}}},
			},
		},
	}
}

func mesh(name, data string) *scene.Object {
	return &scene.Object{Name: name, Type: scene.OBJECT_MESH, Data: data}
}

func hidden(o *scene.Object) *scene.Object {
	o.HideRender = true
	return o
}

func child(o *scene.Object, parent string) *scene.Object {
	o.Parent = parent
	return o
}

func classify(t *testing.T, s *scene.Scene, opts Options) (*Result, *runlog.Log) {
	t.Helper()
	l := runlog.New(logrus.InfoLevel)
	opts.Log = runlog.Attach(l, io.Discard, logrus.InfoLevel)
	r, err := Classify(s, opts)
	require.NoError(t, err)
	return r, l
}

func typeOf(t *testing.T, r *Result, name string) mxs.ExportType {
	t.Helper()
	n := r.Find(name)
	require.NotNil(t, n, name)
	return n.Type
}

func TestCaseFoldedBase(t *testing.T) {
	s := newScene(mesh("CUBE.001", "Quad"), mesh("cube", "Quad"), mesh("Cube", "Quad"))
	r, _ := classify(t, s, Options{Instancing: true})

	base := r.Find("Cube")
	require.NotNil(t, base)
	assert.Equal(t, mxs.BASE_INSTANCE, base.Type)
	assert.NotNil(t, base.Mesh)
	for _, name := range []string{"cube", "CUBE.001"} {
		n := r.Find(name)
		assert.Equal(t, mxs.INSTANCE, n.Type, name)
		assert.Same(t, base, n.Base, name)
		assert.Nil(t, n.Mesh, name)
	}
	assert.Len(t, r.Nodes, 3)
}

func TestInstancingDisabled(t *testing.T) {
	s := newScene(mesh("A", "Quad"), mesh("B", "Quad"))
	r, _ := classify(t, s, Options{})
	assert.Len(t, r.ByType(mxs.MESH), 2)
	assert.Empty(t, r.ByType(mxs.INSTANCE))
}

func TestBaseIndependentOfOrder(t *testing.T) {
	names := []string{"b", "A", "a", "C.002", "c.001", "B"}
	rnd := rand.New(rand.NewSource(7))
	for i := 0; i < 10; i++ {
		rnd.Shuffle(len(names), func(i, j int) { names[i], names[j] = names[j], names[i] })
		var objs []*scene.Object
		for _, n := range names {
			objs = append(objs, mesh(n, "Quad"))
		}
		r, _ := classify(t, newScene(objs...), Options{Instancing: true})
		bases := r.ByType(mxs.BASE_INSTANCE)
		require.Len(t, bases, 1)
		assert.Equal(t, "A", bases[0].Name)
		assert.Len(t, r.ByType(mxs.INSTANCE), 5)
	}
}

func TestPromotionAndPruning(t *testing.T) {
	s := newScene(
		hidden(&scene.Object{Name: "Root", Type: scene.OBJECT_EMPTY}),
		hidden(child(mesh("HiddenLeaf", "Other"), "Root")),
		hidden(child(mesh("Child", "Quad"), "Root")),
		child(mesh("Grandchild", "Quad"), "Child"),
		&scene.Object{Name: "Lonely", Type: scene.OBJECT_EMPTY},
	)
	r, _ := classify(t, s, Options{Instancing: true})

	root := r.Find("Root")
	assert.True(t, root.Export)
	assert.True(t, root.Promoted)
	assert.Equal(t, mxs.EMPTY, root.Type)

	c := r.Find("Child")
	assert.True(t, c.Export)
	assert.True(t, c.Promoted)
	assert.Equal(t, mxs.EMPTY, c.Type)

	assert.False(t, r.Find("HiddenLeaf").Export)

	g := r.Find("Grandchild")
	assert.True(t, g.Export)
	// Child was the base of the shared data before it turned into an empty
	assert.Equal(t, mxs.MESH, g.Type)
	assert.NotNil(t, g.Mesh)
	assert.Same(t, c, g.ExportParent())
	assert.Same(t, root, c.ExportParent())

	assert.False(t, r.Find("Lonely").Export, "empty without geometry below is pruned")

	var exported []string
	for _, n := range r.Nodes {
		exported = append(exported, n.Name)
	}
	assert.Equal(t, []string{"Root", "Child", "Grandchild"}, exported)
}

func TestOrphanRepair(t *testing.T) {
	s := newScene(hidden(mesh("A", "Quad")), mesh("C", "Quad"), mesh("b", "Quad"))
	r, _ := classify(t, s, Options{Instancing: true})

	b := r.Find("b")
	assert.Equal(t, mxs.BASE_INSTANCE, b.Type)
	assert.NotNil(t, b.Mesh)
	c := r.Find("C")
	assert.Equal(t, mxs.INSTANCE, c.Type)
	assert.Same(t, b, c.Base)
	assert.False(t, r.Find("A").Export)
}

func TestOrphanRepairEvaluatesPromoted(t *testing.T) {
	b := mesh("b", "Quad")
	b.Modifiers = []scene.Modifier{{Name: "Subsurf", Type: scene.MODIFIER_SUBDIVISION, Level: 2, Scheme: scene.SCHEME_CATMULL_CLARK}}
	s := newScene(hidden(mesh("A", "Quad")), mesh("C", "Quad"), b)
	r, _ := classify(t, s, Options{Instancing: true})

	nb := r.Find("b")
	require.Equal(t, mxs.BASE_INSTANCE, nb.Type)
	require.NotNil(t, nb.Mesh)
	assert.NotEmpty(t, nb.Mesh.QuadPairs, "evaluated with its own subdivision")
	assert.Equal(t, "Quad", nb.Data)
	assert.Equal(t, nb.Data, r.Find("C").Data)
}

func TestOverrideInstancing(t *testing.T) {
	o := mesh("B", "Quad")
	o.OverrideInstancing = true
	s := newScene(mesh("A", "Quad"), o)
	r, _ := classify(t, s, Options{Instancing: true})

	assert.Equal(t, mxs.MESH, typeOf(t, r, "A"), "base without instances")
	b := r.Find("B")
	assert.Equal(t, mxs.MESH, b.Type)
	assert.Nil(t, b.Base)
	assert.NotNil(t, b.Mesh)
}

func TestDupliMerge(t *testing.T) {
	emitter := mesh("Emitter", "Other")
	emitter.DupliType = scene.DUPLI_VERTS
	emitter.Duplis = []scene.Dupli{
		{Object: "Leaf", Matrix: scene.Matrix{{1, 0, 0, 1}, {0, 1, 0, 0}, {0, 0, 1, 0}, {0, 0, 0, 1}}},
		{Object: "Leaf", Matrix: scene.Matrix{{1, 0, 0, 2}, {0, 1, 0, 0}, {0, 0, 1, 0}, {0, 0, 0, 1}}},
		{Object: "Lamp"},
	}
	leaf := mesh("Leaf", "Quad")
	leaf.ID = 5
	s := newScene(emitter, leaf, &scene.Object{Name: "Lamp", Type: scene.OBJECT_LAMP, Lamp: scene.LAMP_POINT})
	r, l := classify(t, s, Options{Instancing: true})

	e := r.Find("Emitter")
	require.Len(t, e.Children, 2)
	base := r.Find("Leaf")
	assert.Equal(t, mxs.BASE_INSTANCE, base.Type)
	for i, n := range e.Children {
		assert.True(t, n.Dupli)
		assert.Equal(t, mxs.INSTANCE, n.Type)
		assert.Same(t, base, n.Base)
		assert.Equal(t, float64(i+1), n.Matrix.At(0, 3))
		assert.Equal(t, uint64(8+i), uint64(n.ID))
	}
	assert.Equal(t, 1, l.Count(runlog.Warning), "dupli of a lamp")
}

func TestDupliOfHiddenSource(t *testing.T) {
	emitter := &scene.Object{Name: "Emitter", Type: scene.OBJECT_EMPTY, DupliType: scene.DUPLI_GROUP}
	emitter.Duplis = []scene.Dupli{{Object: "Leaf"}, {Object: "Leaf"}}
	s := newScene(emitter, hidden(mesh("Leaf", "Quad")))
	r, _ := classify(t, s, Options{Instancing: true})

	e := r.Find("Emitter")
	assert.True(t, e.Export)
	require.Len(t, e.Children, 2)
	first, second := e.Children[0], e.Children[1]
	assert.Equal(t, mxs.BASE_INSTANCE, first.Type)
	assert.NotNil(t, first.Mesh)
	assert.Equal(t, mxs.INSTANCE, second.Type)
	assert.Same(t, first, second.Base)
}

func TestDegenerateAndBrokenMeshes(t *testing.T) {
	curve := &scene.Object{Name: "Curve", Type: scene.OBJECT_CURVE, Data: "Empty"}
	s := newScene(mesh("Flat", "Empty"), curve, mesh("Broken", "Broken"), mesh("Good", "Quad"))
	r, l := classify(t, s, Options{Instancing: true})

	assert.Equal(t, mxs.OTHER, typeOf(t, r, "Flat"))
	assert.Equal(t, mxs.OTHER, typeOf(t, r, "Curve"))
	assert.Equal(t, mxs.OTHER, typeOf(t, r, "Broken"))
	assert.Equal(t, mxs.MESH, typeOf(t, r, "Good"))
	assert.Equal(t, 0, l.Count(runlog.Warning))
	assert.Equal(t, 1, l.Count(runlog.Error))
}

func TestSingleSun(t *testing.T) {
	sun := func(name string) *scene.Object {
		return &scene.Object{Name: name, Type: scene.OBJECT_LAMP, Lamp: scene.LAMP_SUN}
	}
	s := newScene(sun("sun.001"), sun("Sun"), &scene.Object{Name: "Point", Type: scene.OBJECT_LAMP, Lamp: scene.LAMP_POINT})
	r, l := classify(t, s, Options{})

	suns := r.ByType(mxs.SUN)
	require.Len(t, suns, 1)
	assert.Equal(t, "Sun", suns[0].Name)
	assert.Equal(t, mxs.OTHER, typeOf(t, r, "Point"))
	assert.Equal(t, 1, l.Count(runlog.Warning))
}

func TestCameras(t *testing.T) {
	s := newScene(
		hidden(&scene.Object{Name: "Main", Type: scene.OBJECT_CAMERA}),
		hidden(&scene.Object{Name: "Side", Type: scene.OBJECT_CAMERA}),
	)
	s.Camera = "Main"
	r, _ := classify(t, s, Options{})
	main := r.Find("Main")
	assert.True(t, main.Export)
	assert.True(t, main.ActiveCamera)
	assert.False(t, r.Find("Side").Export)
}

func TestEmptyExtensions(t *testing.T) {
	s := newScene(
		&scene.Object{Name: "Ref", Type: scene.OBJECT_EMPTY, Reference: &scene.Reference{Path: "tree.mxs"}},
		&scene.Object{Name: "Fog", Type: scene.OBJECT_EMPTY, Volumetrics: &scene.Volumetrics{Density: 1}},
		&scene.Object{Name: "Ocean", Type: scene.OBJECT_EMPTY, Sea: &scene.Sea{Size: 100}},
	)
	r, _ := classify(t, s, Options{})
	assert.Equal(t, mxs.REFERENCE, typeOf(t, r, "Ref"))
	assert.Equal(t, mxs.VOLUMETRICS, typeOf(t, r, "Fog"))
	assert.Equal(t, mxs.SEA, typeOf(t, r, "Ocean"))
	assert.Len(t, r.Nodes, 3)
}

func TestSyntheticChildren(t *testing.T) {
	o := mesh("Ground", "Quad")
	o.ID = 3
	o.Modifiers = []scene.Modifier{
		{Name: "Subsurf", Type: scene.MODIFIER_SUBDIVISION, Level: 2},
		{Type: scene.MODIFIER_GRASS},
	}
	o.ParticleSystems = []scene.ParticleSystem{{Name: "Fur", Kind: scene.PARTICLE_HAIR}}
	rock := child(mesh("Rock", "Other"), "Ground")
	rock.ID = 1
	s := newScene(o, rock)
	r, _ := classify(t, s, Options{Wireframe: true})

	g := r.Find("Ground")
	require.Len(t, g.Children, 4)
	assert.Equal(t, "Rock", g.Children[0].Name)
	sub := g.Children[1]
	assert.Equal(t, "Ground-Subsurf", sub.Name)
	assert.Equal(t, mxs.SUBDIVISION, sub.Type)
	assert.Equal(t, "Ground-GRASS1", g.Children[2].Name)
	assert.Equal(t, mxs.GRASS, g.Children[2].Type)
	hair := g.Children[3]
	assert.Equal(t, mxs.HAIR, hair.Type)
	assert.Same(t, &o.ParticleSystems[0], hair.ParticleSystem)
	for _, n := range g.Children[1:] {
		assert.True(t, n.Synthetic())
		assert.Equal(t, g.Matrix, n.Matrix)
	}
	assert.Equal(t, []uint64{4, 5, 6}, []uint64{uint64(sub.ID), uint64(g.Children[2].ID), uint64(hair.ID)})

	wires := r.ByType(mxs.WIREFRAME)
	require.Len(t, wires, 1)
	assert.Nil(t, wires[0].Parent)
}

func TestIdempotent(t *testing.T) {
	build := func() *scene.Scene {
		d := mesh("Emitter", "Other")
		d.DupliType = scene.DUPLI_FACES
		d.Duplis = []scene.Dupli{{Object: "b"}}
		return newScene(
			hidden(&scene.Object{Name: "Root", Type: scene.OBJECT_EMPTY}),
			child(mesh("b", "Quad"), "Root"),
			child(mesh("a", "Quad"), "Root"),
			d,
		)
	}
	type row struct {
		ID     uint64
		Name   string
		Type   mxs.ExportType
		Export bool
		Parent string
		Base   string
	}
	snapshot := func(r *Result) []row {
		var out []row
		for _, n := range r.All {
			rw := row{ID: uint64(n.ID), Name: n.Name, Type: n.Type, Export: n.Export}
			if p := n.ExportParent(); p != nil {
				rw.Parent = p.Name
			}
			if n.Base != nil {
				rw.Base = n.Base.Name
			}
			out = append(out, rw)
		}
		return out
	}
	s := build()
	r1, _ := classify(t, s, Options{Instancing: true})
	r2, _ := classify(t, s, Options{Instancing: true})
	r3, _ := classify(t, build(), Options{Instancing: true})
	assert.Equal(t, snapshot(r1), snapshot(r2))
	assert.Equal(t, snapshot(r1), snapshot(r3))
}

func TestInvalidScene(t *testing.T) {
	s := newScene(child(mesh("A", "Quad"), "Missing"))
	_, err := Classify(s, Options{})
	assert.Error(t, err)
}
