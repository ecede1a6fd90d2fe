package build

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	vec3d "github.com/flywave/go3d/float64/vec3"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mxs "github.com/flywave/go-mxs"
	"github.com/flywave/go-mxs/classify"
	"github.com/flywave/go-mxs/config"
	"github.com/flywave/go-mxs/names"
	"github.com/flywave/go-mxs/record"
	"github.com/flywave/go-mxs/runlog"
	"github.com/flywave/go-mxs/scene"
	"github.com/flywave/go-mxs/transform"
)

func quad() *scene.MeshData {
	return &scene.MeshData{
		Name:     "Quad",
		Vertices: [][3]float64{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}},
		Polygons: []scene.Polygon{{Vertices: []int{0, 1, 2, 3}, Smooth: true}},
	}
}

// open is a quad with a flipped neighbour, so an edge runs twice the same
// way.
func open() *scene.MeshData {
	return &scene.MeshData{
		Name:     "Open",
		Vertices: [][3]float64{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}, {2, 0, 0}},
		Polygons: []scene.Polygon{
			{Vertices: []int{0, 1, 2, 3}},
			{Vertices: []int{1, 2, 4}},
		},
	}
}

func mesh(name, data string) *scene.Object {
	return &scene.Object{Name: name, Type: scene.OBJECT_MESH, Data: data, Materials: []string{"Default"}}
}

func translate(x, y, z float64) scene.Matrix {
	return scene.FromMat4(mgl64.Translate3D(x, y, z))
}

type fixture struct {
	dir     string
	log     *runlog.Log
	builder *Builder
	result  *classify.Result
	records map[string]record.Record
	errs    map[string]error
}

func run(t *testing.T, s *scene.Scene, copts classify.Options, bopts Options) *fixture {
	t.Helper()
	if s.Meshes == nil {
		s.Meshes = map[string]*scene.MeshData{"Quad": quad(), "Open": open()}
	}
	f := &fixture{
		dir:     t.TempDir(),
		log:     runlog.New(logrus.InfoLevel),
		records: make(map[string]record.Record),
		errs:    make(map[string]error),
	}
	logger := runlog.Attach(f.log, io.Discard, logrus.InfoLevel)
	copts.Log = logger
	res, err := classify.Classify(s, copts)
	require.NoError(t, err)
	f.result = res

	bopts.Dir = f.dir
	bopts.Log = logger
	f.builder = New(s, res, names.New(), bopts)
	for _, n := range res.Nodes {
		r, err := f.builder.Build(n)
		if err != nil {
			f.errs[n.Name] = err
			continue
		}
		if r != nil {
			f.records[r.Header().Name] = r
		}
	}
	return f
}

func (f *fixture) files(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(f.dir)
	require.NoError(t, err)
	var out []string
	for _, e := range entries {
		out = append(out, e.Name())
	}
	return out
}

func assertVec(t *testing.T, want, got vec3d.T) {
	t.Helper()
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-9, "component %d of %v", i, got)
	}
}

func TestCaseFoldedNames(t *testing.T) {
	s := &scene.Scene{Objects: []*scene.Object{
		mesh("CUBE.001", "Quad"), mesh("cube", "Quad"), mesh("Cube", "Quad"),
	}}
	f := run(t, s, classify.Options{Instancing: true}, Options{})
	require.Empty(t, f.errs)

	base, ok := f.records["Cube"].(*record.Mesh)
	require.True(t, ok)
	assert.Equal(t, mxs.BASE_INSTANCE, base.Type())
	for _, name := range []string{"cube-1", "CUBE_001"} {
		inst, ok := f.records[name].(*record.Instance)
		require.True(t, ok, name)
		assert.Equal(t, "Cube", inst.Instanced)
	}
	assert.Equal(t, []string{"Cube.binmesh"}, f.files(t))

	bm, err := mxs.BinMeshReadFrom(filepath.Join(f.dir, base.File))
	require.NoError(t, err)
	assert.Equal(t, "Cube", bm.Name)
	assertVec(t, vec3d.T{0, 0, -1}, bm.Positions[0][3])
	assert.NotNil(t, f.builder.Geometry("Cube"))
	assert.Nil(t, f.builder.Geometry("cube-1"))

	require.Len(t, f.builder.Files(), 1)
	assert.NoError(t, f.builder.Files()[0].Verify(f.dir))
}

func TestMeshNormalsAndMaterials(t *testing.T) {
	data := quad()
	data.Polygons = []scene.Polygon{
		{Vertices: []int{0, 1, 2}, Smooth: true, Material: 0},
		{Vertices: []int{0, 2, 3}, Material: 3},
	}
	data.UVLayers = []string{"uv"}
	data.Polygons[0].UVs = [][][2]float64{{{0, 0}, {1, 0}, {1, 1}}}
	o := mesh("Plane", "Plane")
	o.Materials = []string{"Metal", ""}
	o.BackfaceMaterial = "missing.mxm"
	s := &scene.Scene{Objects: []*scene.Object{o}, Meshes: map[string]*scene.MeshData{"Plane": data}}
	f := run(t, s, classify.Options{}, Options{AssetDir: t.TempDir()})

	r := f.records["Plane"].(*record.Mesh)
	assert.Equal(t, []string{"Metal", CHECKER_MATERIAL, CHECKER_MATERIAL}, r.Materials)
	assert.Empty(t, r.BackfaceMaterial)
	assert.Equal(t, 3, f.log.Count(runlog.Warning))

	bm := f.builder.Geometry("Plane")
	require.NoError(t, bm.Validate())
	assert.Equal(t, [3]int32{0, 1, 2}, bm.Triangles[0].Normal)
	assert.Equal(t, [3]int32{5, 5, 5}, bm.Triangles[1].Normal)
	assert.Equal(t, [][2]int32{{0, 0}, {1, 2}}, bm.TriangleMaterials)
	assert.Equal(t, int32(3), bm.NumMaterials)
	// the plane faces +Z, which is +Y for the renderer
	assertVec(t, vec3d.T{0, 1, 0}, bm.TriangleNormals[0][1])
	require.Len(t, bm.UVChannels, 1)
	assert.Equal(t, mxs.TriangleUV{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}}, bm.UVChannels[0][0])
}

func TestBackfaceMaterial(t *testing.T) {
	assets := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(assets, "back.mxm"), []byte("mxm"), 0o644))
	o := mesh("Plane", "Quad")
	o.BackfaceMaterial = "back.mxm"
	f := run(t, &scene.Scene{Objects: []*scene.Object{o}}, classify.Options{}, Options{AssetDir: assets})
	r := f.records["Plane"].(*record.Mesh)
	assert.Equal(t, filepath.Join(assets, "back.mxm"), r.BackfaceMaterial)
	assert.Equal(t, 0, f.log.Count(runlog.Warning))
}

func TestParentRelativeTransform(t *testing.T) {
	parent := mesh("Parent", "Quad")
	parent.Matrix = translate(1, 0, 0)
	c := mesh("Child", "Open")
	c.Parent = "Parent"
	c.Matrix = translate(1, 2, 3)
	f := run(t, &scene.Scene{Objects: []*scene.Object{parent, c}}, classify.Options{}, Options{})

	r := f.records["Child"].Header()
	assert.Equal(t, "Parent", r.Parent)
	local := transform.Decode(r.Base, r.Pivot)
	assert.True(t, local.ApproxEqualThreshold(mgl64.Translate3D(0, 2, 3), 1e-9), "%v", local)
	assert.Equal(t, mxs.IdentityBase, r.Pivot)
}

func TestParticlesWithoutAliveParticles(t *testing.T) {
	ps := scene.ParticleSystem{Name: "Dust", Kind: scene.PARTICLE_EMITTER}
	for i := 0; i < 10; i++ {
		ps.Particles = append(ps.Particles, scene.Particle{Location: [3]float64{float64(i), 0, 0}, Size: 1, Alive: "DEAD"})
	}
	o := mesh("Emitter", "Quad")
	o.ParticleSystems = []scene.ParticleSystem{ps}
	f := run(t, &scene.Scene{Objects: []*scene.Object{o}}, classify.Options{}, Options{})

	err := f.errs["Emitter-Dust"]
	require.Error(t, err)
	assert.True(t, mxs.IsValidation(err))
	assert.NotContains(t, f.files(t), "Emitter-Dust.binpart")
	for _, file := range f.builder.Files() {
		assert.NotEqual(t, "Emitter-Dust.binpart", file.Path)
	}
}

func TestParticlesInOwnerSpace(t *testing.T) {
	o := mesh("Emitter", "Quad")
	o.Matrix = translate(10, 0, 0)
	o.ParticleSystems = []scene.ParticleSystem{{
		Name:             "Dust",
		Kind:             scene.PARTICLE_EMITTER,
		RadiusMultiplier: 2,
		Particles: []scene.Particle{
			{Location: [3]float64{11, 0, 0}, Velocity: [3]float64{0, 1, 0}, Size: 0.5, Alive: scene.ALIVE},
			{Location: [3]float64{99, 0, 0}, Size: 1, Alive: "UNBORN"},
			{Location: [3]float64{10, 2, 0}, Size: 0.25, Alive: scene.ALIVE},
		},
	}}
	f := run(t, &scene.Scene{Objects: []*scene.Object{o}}, classify.Options{}, Options{})
	require.Empty(t, f.errs)

	r := f.records["Emitter-Dust"].(*record.Particles)
	assert.Equal(t, "Emitter", r.Parent)
	assert.Equal(t, mxs.IdentityBase, r.Base)
	assert.Equal(t, 2, r.Count)

	bp, err := mxs.BinParticlesReadFrom(filepath.Join(f.dir, r.File))
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 0, 0, 0, 0, -2}, bp.Positions, 1e-9)
	assert.InDeltaSlice(t, []float64{0, 0, -1, 0, 0, 0}, bp.Speeds, 1e-9)
	assert.Equal(t, []float64{1, 0.5}, bp.Radii)
	assert.Equal(t, []int32{0, 2}, bp.IDs)
}

func TestHair(t *testing.T) {
	o := mesh("Head", "Quad")
	o.ParticleSystems = []scene.ParticleSystem{{
		Name: "Fur",
		Kind: scene.PARTICLE_HAIR,
		Strands: [][][3]float64{
			{{0, 0, 0}, {0, 0, 1}},
			{},
			{{1, 0, 0}, {1, 0, 1}, {1, 0, 2}},
		},
	}}
	f := run(t, &scene.Scene{Objects: []*scene.Object{o}}, classify.Options{}, Options{})
	r := f.records["Head-Fur"].(*record.Hair)
	assert.Equal(t, []int32{2, 3}, r.Points)
	h, err := mxs.BinHairReadFrom(filepath.Join(f.dir, r.File))
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0, 0, 0, 0, 1, 0, 1, 0, 0, 1, 1, 0, 1, 2, 0}, h.Data, 1e-9)
}

func TestCloner(t *testing.T) {
	alive := []scene.Particle{{Size: 1, Alive: scene.ALIVE}}
	o := mesh("Field", "Quad")
	o.ParticleSystems = []scene.ParticleSystem{
		{Name: "Trees", Kind: scene.PARTICLE_CLONER, CloneObject: "Tree.001", Particles: alive},
		{Name: "Ghosts", Kind: scene.PARTICLE_CLONER, CloneObject: "Nowhere", Particles: alive},
	}
	tree := mesh("Tree.001", "Open")
	f := run(t, &scene.Scene{Objects: []*scene.Object{o, tree}}, classify.Options{}, Options{})

	r := f.records["Field-Trees"].(*record.Cloner)
	assert.Equal(t, "Tree_001", r.Object)
	assert.Equal(t, 1, r.Count)
	assert.True(t, mxs.IsValidation(f.errs["Field-Ghosts"]))
}

func TestModifiers(t *testing.T) {
	good := mesh("Good", "Quad")
	good.Modifiers = []scene.Modifier{
		{Name: "Subsurf", Type: scene.MODIFIER_SUBDIVISION, Level: 2},
		{Name: "Rocks", Type: scene.MODIFIER_SCATTER, Object: "Bad", Density: 3},
		{Name: "Lawn", Type: scene.MODIFIER_GRASS, Density: 100},
	}
	bad := mesh("Bad", "Open")
	bad.Modifiers = []scene.Modifier{{Name: "Subsurf", Type: scene.MODIFIER_SUBDIVISION, Level: 1}}
	f := run(t, &scene.Scene{Objects: []*scene.Object{good, bad}}, classify.Options{}, Options{})
	require.Empty(t, f.errs)

	assert.Equal(t, [][2]int32{{0, 1}}, f.records["Good"].(*record.Mesh).QuadPairs)
	sub := f.records["Good-Subsurf"].(*record.Subdivision)
	assert.Equal(t, 2, sub.Level)
	assert.Equal(t, "CATMULL_CLARK", sub.Scheme)
	assert.Equal(t, "Good", sub.Parent)
	assert.Equal(t, "Bad", f.records["Good-Rocks"].(*record.Scatter).Object)
	assert.Equal(t, 100.0, f.records["Good-Lawn"].(*record.Grass).Density)

	assert.Nil(t, f.records["Bad"].(*record.Mesh).QuadPairs)
	assert.NotContains(t, f.records, "Bad-Subsurf")
	assert.Equal(t, 1, f.log.Count(runlog.Warning))
}

func TestCameraAndSun(t *testing.T) {
	cam := &scene.Object{Name: "Camera", Type: scene.OBJECT_CAMERA, Camera: &scene.Camera{Lens: 50, SensorWidth: 36, FocusDistance: 4}}
	cam.Matrix = translate(0, 0, 5)
	sun := &scene.Object{Name: "Sun", Type: scene.OBJECT_LAMP, Lamp: scene.LAMP_SUN}
	s := &scene.Scene{Objects: []*scene.Object{cam, sun}, Camera: "Camera", Resolution: [2]int{800, 600}}
	f := run(t, s, classify.Options{}, Options{})

	c := f.records["Camera"].(*record.Camera)
	assert.True(t, c.Active)
	assertVec(t, vec3d.T{0, 5, 0}, c.Origin)
	assertVec(t, vec3d.T{0, 1, 0}, c.FocalPoint)
	assertVec(t, vec3d.T{0, 0, -1}, c.Up)
	assert.Equal(t, 50.0, c.Lens)
	assert.Equal(t, 27.0, c.FilmHeight)
	assert.Equal(t, 1.0, c.PixelAspect)
	assert.Equal(t, [2]int{800, 600}, c.Resolution)

	sr := f.records["Sun"].(*record.Sun)
	assertVec(t, vec3d.T{0, 1, 0}, sr.Direction)
	assert.Equal(t, "PHYSICAL", sr.SunType)
}

func TestReference(t *testing.T) {
	assets := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(assets, "tree.mxs"), []byte("mxs"), 0o644))
	s := &scene.Scene{Objects: []*scene.Object{
		{Name: "Tree", Type: scene.OBJECT_EMPTY, Reference: &scene.Reference{Path: "tree.mxs"}},
		{Name: "Gone", Type: scene.OBJECT_EMPTY, Reference: &scene.Reference{Path: "gone.mxs"}},
	}}
	f := run(t, s, classify.Options{}, Options{AssetDir: assets})
	assert.Equal(t, filepath.Join(assets, "tree.mxs"), f.records["Tree"].(*record.Reference).Path)
	assert.NotContains(t, f.records, "Gone")
	assert.Equal(t, 1, f.log.Count(runlog.Warning))
}

func TestWireframe(t *testing.T) {
	o := mesh("Plane", "Quad")
	o.Matrix = translate(0, 0, 1)
	f := run(t, &scene.Scene{Objects: []*scene.Object{o}},
		classify.Options{Wireframe: true},
		Options{Wireframe: config.Wireframe{Enabled: true, Radius: 0.05, Material: "wire.mxm"}})

	r := f.records["wireframe"].(*record.Wireframe)
	assert.Equal(t, 5, r.Count)
	assert.Equal(t, "wire.mxm", r.Material)
	bw, err := mxs.BinWireReadFrom(filepath.Join(f.dir, r.File))
	require.NoError(t, err)
	require.Len(t, bw.Wires, 5)

	// the first edge runs from vertex 0 to vertex 1
	w := bw.Wires[0]
	m := transform.Decode(w.Base, w.Pivot)
	origin, axis := m.Col(3).Vec3(), m.Col(2).Vec3()
	assert.InDeltaSlice(t, []float64{0, 0, 1}, origin[:], 1e-9)
	assert.InDeltaSlice(t, []float64{1, 0, 0}, axis[:], 1e-9)
	assert.InDelta(t, 0.05, m.Col(0).Vec3().Len(), 1e-9)
}

func TestEdgeMatrix(t *testing.T) {
	_, ok := edgeMatrix(mgl64.Vec3{1, 1, 1}, mgl64.Vec3{1, 1, 1}, 0.1)
	assert.False(t, ok)

	m, ok := edgeMatrix(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{3, 0, 0}, 0.1)
	require.True(t, ok)
	assert.InDelta(t, 3*0.1*0.1, m.Mat3().Det(), 1e-12)
}
