package importer

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mxs "github.com/flywave/go-mxs"
	"github.com/flywave/go-mxs/config"
	"github.com/flywave/go-mxs/export"
	"github.com/flywave/go-mxs/record"
	"github.com/flywave/go-mxs/scene"
)

func quad() *scene.MeshData {
	return &scene.MeshData{
		Name:     "Quad",
		Vertices: [][3]float64{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}},
		UVLayers: []string{"UVMap"},
		Polygons: []scene.Polygon{{
			Vertices: []int{0, 1, 2, 3},
			UVs:      [][][2]float64{{{0, 0}, {1, 0}, {1, 1}, {0, 1}}},
		}},
	}
}

func logger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// roundTrip exports s and imports the result.
func roundTrip(t *testing.T, s *scene.Scene) (*scene.Scene, string) {
	t.Helper()
	if s.Meshes == nil {
		s.Meshes = map[string]*scene.MeshData{"Quad": quad()}
	}
	opts := export.Options{Options: config.Defaults(), Log: logger()}
	opts.OutputDir = filepath.Join(t.TempDir(), "out")
	_, err := export.Run(context.Background(), s, opts)
	require.NoError(t, err)
	out, err := Import(opts.OutputDir, Options{Verify: true, Log: logger()})
	require.NoError(t, err)
	return out, opts.OutputDir
}

func assertMatrix(t *testing.T, want, got mgl64.Mat4) {
	t.Helper()
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-9, "element %d\nwant %v\ngot  %v", i, want, got)
	}
}

func TestNestedNonUniformScale(t *testing.T) {
	root := mgl64.Translate3D(1, 2, 3).
		Mul4(mgl64.HomogRotate3DZ(0.7)).
		Mul4(mgl64.Scale3D(1, 2, 3))
	mid := root.
		Mul4(mgl64.Translate3D(-2, 0.5, 4)).
		Mul4(mgl64.HomogRotate3DX(1.1)).
		Mul4(mgl64.Scale3D(2, 1, 0.5))
	leaf := mid.
		Mul4(mgl64.Translate3D(0, 3, -1)).
		Mul4(mgl64.HomogRotate3DY(-0.4)).
		Mul4(mgl64.Scale3D(0.25, 4, 1))

	s := &scene.Scene{Name: "nested", Objects: []*scene.Object{
		{Name: "Root", Type: scene.OBJECT_EMPTY, Matrix: scene.FromMat4(root)},
		{Name: "Mid", Type: scene.OBJECT_EMPTY, Parent: "Root", Matrix: scene.FromMat4(mid)},
		{Name: "Leaf", Type: scene.OBJECT_MESH, Parent: "Mid", Data: "Quad", Materials: []string{"M"}, Matrix: scene.FromMat4(leaf)},
	}}
	out, _ := roundTrip(t, s)

	require.Len(t, out.Objects, 3)
	for name, want := range map[string]mgl64.Mat4{"Root": root, "Mid": mid, "Leaf": leaf} {
		o := out.Object(name)
		require.NotNil(t, o, name)
		assertMatrix(t, want, o.Matrix.Mat4())
	}
	assert.Equal(t, "Root", out.Object("Mid").Parent)
	assert.Equal(t, "Mid", out.Object("Leaf").Parent)
	assert.Equal(t, "nested", out.Name)
}

func TestMeshDataRestored(t *testing.T) {
	leaf := &scene.Object{
		Name:      "Leaf",
		Type:      scene.OBJECT_MESH,
		Data:      "Quad",
		Materials: []string{"M"},
		Modifiers: []scene.Modifier{{Name: "Subsurf", Type: scene.MODIFIER_SUBDIVISION, Level: 2}},
	}
	out, _ := roundTrip(t, &scene.Scene{Objects: []*scene.Object{leaf}})

	o := out.Object("Leaf")
	require.NotNil(t, o)
	assert.Equal(t, []string{"M"}, o.Materials)
	data := out.Mesh(o)
	require.NotNil(t, data)
	want := quad()
	for i, v := range want.Vertices {
		for k := range v {
			assert.InDelta(t, v[k], data.Vertices[i][k], 1e-12)
		}
	}
	require.Len(t, data.Polygons, 1)
	assert.Equal(t, []int{0, 1, 2, 3}, data.Polygons[0].Vertices)
	assert.Equal(t, want.Polygons[0].UVs, data.Polygons[0].UVs)

	require.Len(t, o.Modifiers, 1)
	assert.Equal(t, "Subsurf", o.Modifiers[0].Name)
	assert.Equal(t, 2, o.Modifiers[0].Level)
	assert.Equal(t, scene.SCHEME_CATMULL_CLARK, o.Modifiers[0].Scheme)
}

func TestInstancesShareData(t *testing.T) {
	s := &scene.Scene{Objects: []*scene.Object{
		{Name: "Cube", Type: scene.OBJECT_MESH, Data: "Quad", Materials: []string{"M"}},
		{Name: "cube", Type: scene.OBJECT_MESH, Data: "Quad", Materials: []string{"M"},
			Matrix: scene.FromMat4(mgl64.Translate3D(2, 0, 0))},
	}}
	out, _ := roundTrip(t, s)
	base, inst := out.Object("Cube"), out.Object("cube-1")
	require.NotNil(t, base)
	require.NotNil(t, inst)
	assert.Equal(t, base.Data, inst.Data)
	assert.Len(t, out.Meshes, 1)
	assert.InDelta(t, 2, inst.Matrix.Mat4().At(0, 3), 1e-9)
}

func TestParticlesInWorldSpace(t *testing.T) {
	emitter := &scene.Object{
		Name: "Emitter", Type: scene.OBJECT_MESH, Data: "Quad", Materials: []string{"M"},
		Matrix: scene.FromMat4(mgl64.Translate3D(5, 0, 0).Mul4(mgl64.HomogRotate3DZ(0.5))),
		ParticleSystems: []scene.ParticleSystem{{
			Name: "Dust",
			Kind: scene.PARTICLE_EMITTER,
			Particles: []scene.Particle{
				{Location: [3]float64{1, 2, 3}, Velocity: [3]float64{0, 0, 1}, Size: 0.5, Alive: scene.ALIVE},
				{Location: [3]float64{9, 9, 9}, Size: 0.5, Alive: "DEAD"},
			},
		}},
	}
	out, _ := roundTrip(t, &scene.Scene{Objects: []*scene.Object{emitter}})
	o := out.Object("Emitter")
	require.NotNil(t, o)
	require.Len(t, o.ParticleSystems, 1)
	ps := o.ParticleSystems[0]
	assert.Equal(t, "Dust", ps.Name)
	require.Len(t, ps.Particles, 1)
	p := ps.Particles[0]
	for k, v := range [3]float64{1, 2, 3} {
		assert.InDelta(t, v, p.Location[k], 1e-9)
	}
	assert.InDelta(t, 1, p.Velocity[2], 1e-9)
	assert.Equal(t, 0.5, p.Size)
}

func TestCameraAndSun(t *testing.T) {
	s := &scene.Scene{
		Camera:     "Cam",
		Resolution: [2]int{800, 600},
		Objects: []*scene.Object{
			{Name: "Cam", Type: scene.OBJECT_CAMERA, Camera: &scene.Camera{Lens: 50, SensorWidth: 36, FStop: 2.8},
				Matrix: scene.FromMat4(mgl64.Translate3D(0, -5, 1))},
			{Name: "Light", Type: scene.OBJECT_LAMP, Lamp: scene.LAMP_SUN, Sun: &scene.Sun{Type: "PHYSICAL", Power: 3}},
		},
	}
	out, _ := roundTrip(t, s)
	assert.Equal(t, "Cam", out.Camera)
	assert.Equal(t, [2]int{800, 600}, out.Resolution)
	cam := out.Object("Cam")
	require.NotNil(t, cam)
	assert.Equal(t, 50.0, cam.Camera.Lens)
	assert.Equal(t, 2.8, cam.Camera.FStop)
	assert.InDelta(t, -5, cam.Matrix.Mat4().At(1, 3), 1e-9)
	sun := out.Object("Light")
	require.NotNil(t, sun)
	assert.Equal(t, scene.LAMP_SUN, sun.Lamp)
	assert.Equal(t, 3.0, sun.Sun.Power)
}

func TestChecksumMismatch(t *testing.T) {
	s := &scene.Scene{Objects: []*scene.Object{{Name: "Cube", Type: scene.OBJECT_MESH, Data: "Quad", Materials: []string{"M"}}}}
	_, dir := roundTrip(t, s)

	path := filepath.Join(dir, "Cube"+mxs.MESH_EXT)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[len(data)-9] ^= 0xff
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err = Import(dir, Options{Verify: true, Log: logger()})
	assert.ErrorIs(t, err, record.ErrChecksum)
}

func TestHierarchyFallback(t *testing.T) {
	s := &scene.Scene{Objects: []*scene.Object{
		{Name: "Root", Type: scene.OBJECT_EMPTY, Matrix: scene.FromMat4(mgl64.Translate3D(0, 0, 2))},
		{Name: "Box", Type: scene.OBJECT_MESH, Parent: "Root", Data: "Quad", Materials: []string{"M"},
			Matrix: scene.FromMat4(mgl64.Translate3D(1, 0, 2))},
	}}
	_, dir := roundTrip(t, s)
	require.NoError(t, os.Remove(filepath.Join(dir, "hierarchy.json")))

	out, err := Import(dir, Options{Log: logger()})
	require.NoError(t, err)
	box := out.Object("Box")
	require.NotNil(t, box)
	assert.Equal(t, "Root", box.Parent)
	assert.InDelta(t, 1, box.Matrix.Mat4().At(0, 3), 1e-9)
	assert.InDelta(t, 2, box.Matrix.Mat4().At(2, 3), 1e-9)
}
