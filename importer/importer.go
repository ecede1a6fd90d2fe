// Package importer rebuilds a scene snapshot from an export directory.
package importer

import (
	"fmt"
	"os"
	"path/filepath"

	vec3d "github.com/flywave/go3d/float64/vec3"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	mxs "github.com/flywave/go-mxs"
	"github.com/flywave/go-mxs/record"
	"github.com/flywave/go-mxs/scene"
	"github.com/flywave/go-mxs/transform"
)

type Options struct {
	// Verify checks every container against its manifest checksum.
	Verify bool
	Log    logrus.FieldLogger
}

type importer struct {
	dir      string
	opts     Options
	log      logrus.FieldLogger
	manifest *record.Manifest
	scene    *scene.Scene
	// local holds the parent relative matrix of every created object.
	local map[string]mgl64.Mat4
	// instances maps instance objects to the record they share data with.
	instances map[string]string
	// attached lists records that become part of their owner.
	attached []record.Record
}

// Import reads the manifest in dir and the containers it lists. Objects are
// created with their parent relative matrix first, then parented top down so
// that every world matrix is its parent's world times its own local matrix.
func Import(dir string, opts Options) (*scene.Scene, error) {
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	m, err := record.ReadFile(filepath.Join(dir, "manifest.json"))
	if err != nil {
		return nil, err
	}
	h, err := hierarchy(dir, m)
	if err != nil {
		return nil, err
	}
	if opts.Verify {
		var errs mxs.Errors
		for _, f := range m.Files {
			errs = errs.Append(f.Verify(dir))
		}
		if err := errs.Return(); err != nil {
			return nil, err
		}
	}

	im := &importer{
		dir:       dir,
		opts:      opts,
		log:       log,
		manifest:  m,
		scene:     &scene.Scene{Name: m.Scene, Meshes: make(map[string]*scene.MeshData)},
		local:     make(map[string]mgl64.Mat4),
		instances: make(map[string]string),
	}
	for _, r := range m.Records {
		if err := im.create(r); err != nil {
			return nil, errors.Wrapf(err, "record %s", r.Header().Name)
		}
	}
	if err := im.share(); err != nil {
		return nil, err
	}
	if err := im.parent(h); err != nil {
		return nil, err
	}
	for _, r := range im.attached {
		if err := im.attach(r); err != nil {
			return nil, errors.Wrapf(err, "record %s", r.Header().Name)
		}
	}
	if err := im.scene.Prepare(); err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{"scene": m.Scene, "objects": len(im.scene.Objects)}).Info("import finished")
	return im.scene, nil
}

// hierarchy returns the parent links, from hierarchy.json when present.
func hierarchy(dir string, m *record.Manifest) (record.Hierarchy, error) {
	h, err := record.ReadHierarchy(filepath.Join(dir, "hierarchy.json"))
	if os.IsNotExist(errors.Cause(err)) {
		h, err = record.HierarchyOf(m), nil
	}
	if err != nil {
		return nil, err
	}
	return h, h.Check()
}

func (im *importer) path(rel string) string {
	return filepath.Join(im.dir, filepath.FromSlash(rel))
}

func (im *importer) object(c *record.Common, t scene.ObjectType) *scene.Object {
	o := &scene.Object{
		Name:  c.Name,
		Type:  t,
		Hide:  c.Hide,
		Props: c.Props.Clone(),
	}
	im.local[c.Name] = transform.Decode(c.Base, c.Pivot)
	im.scene.Add(o)
	return o
}

func (im *importer) create(r record.Record) error {
	c := r.Header()
	switch v := r.(type) {
	case *record.Empty:
		im.object(c, scene.OBJECT_EMPTY)
	case *record.Mesh:
		o := im.object(c, scene.OBJECT_MESH)
		o.Materials = v.Materials
		o.BackfaceMaterial = v.BackfaceMaterial
		data, err := im.mesh(v)
		if err != nil {
			return err
		}
		o.Data = data.Name
		im.scene.Meshes[data.Name] = data
	case *record.Instance:
		o := im.object(c, scene.OBJECT_MESH)
		o.Materials = v.Materials
		o.BackfaceMaterial = v.BackfaceMaterial
		im.instances[c.Name] = v.Instanced
	case *record.Camera:
		o := im.object(c, scene.OBJECT_CAMERA)
		o.Camera = &scene.Camera{
			Lens:          v.Lens,
			SensorWidth:   v.FilmWidth,
			SensorHeight:  v.FilmHeight,
			FStop:         v.FStop,
			Shutter:       v.Shutter,
			ISO:           v.ISO,
			FocusDistance: v.FocusDistance,
			ShiftX:        v.ShiftX,
			ShiftY:        v.ShiftY,
			ZClip:         v.ZClip,
			ClipStart:     v.ClipNear,
			ClipEnd:       v.ClipFar,
		}
		if v.Active {
			im.scene.Camera = c.Name
			im.scene.Resolution = v.Resolution
			im.scene.PixelAspect = v.PixelAspect
		}
	case *record.Sun:
		o := im.object(c, scene.OBJECT_LAMP)
		o.Lamp = scene.LAMP_SUN
		o.Sun = &scene.Sun{Type: v.SunType, Power: v.Strength, Temperature: v.Temperature, Color: v.Color}
	case *record.Reference:
		o := im.object(c, scene.OBJECT_EMPTY)
		o.Reference = &scene.Reference{Path: v.Path}
	case *record.Volumetrics:
		o := im.object(c, scene.OBJECT_EMPTY)
		o.Volumetrics = &scene.Volumetrics{Type: v.VolumeType, Density: v.Density, Seed: v.Seed, Material: v.Material}
	case *record.Sea:
		o := im.object(c, scene.OBJECT_EMPTY)
		o.Sea = &scene.Sea{Resolution: v.Resolution, Size: v.Size, Seed: v.Seed, WindSpeed: v.WindSpeed, Material: v.Material}
	case *record.Wireframe:
		im.log.WithField("object", c.Name).Info("wireframe is generated on export, not imported")
	default:
		im.attached = append(im.attached, r)
	}
	return nil
}

func revert(vs []vec3d.T) [][3]float64 {
	out := make([][3]float64, len(vs))
	for i, v := range vs {
		out[i] = transform.Revert(v)
	}
	return out
}

// mesh reads the container of r back into source coordinates. Triangle
// pairs recorded as quads are joined again.
func (im *importer) mesh(r *record.Mesh) (*scene.MeshData, error) {
	bm := &mxs.BinMesh{}
	if err := mxs.ReadFrom(im.path(r.File), bm); err != nil {
		return nil, err
	}
	if bm.Steps() == 0 {
		return nil, errors.Errorf("mesh %s has no positions", r.File)
	}
	data := &scene.MeshData{
		Name:     r.Name,
		Vertices: revert(bm.Positions[0]),
	}
	for _, ps := range bm.Positions[1:] {
		data.Steps = append(data.Steps, revert(ps))
	}
	nv := bm.VertexCount()
	smooth := false
	for _, t := range bm.Triangles {
		if int(t.Normal[0]) < nv {
			smooth = true
		}
	}
	if smooth && len(bm.Normals) > 0 {
		data.Normals = revert(bm.Normals[0])
	}
	for i := range bm.UVChannels {
		data.UVLayers = append(data.UVLayers, fmt.Sprintf("uv%d", i))
	}

	joined := make(map[int32]int32, len(r.QuadPairs))
	for _, p := range r.QuadPairs {
		if p[0] < 0 || p[1] < 0 || int(p[0]) >= len(bm.Triangles) || int(p[1]) >= len(bm.Triangles) {
			return nil, errors.Errorf("mesh %s: quad pair %v out of range", r.File, p)
		}
		a, b := bm.Triangles[p[0]].Vertex, bm.Triangles[p[1]].Vertex
		if a[0] == b[0] && a[2] == b[1] {
			joined[p[0]] = p[1]
			joined[p[1]] = -1
		}
	}
	for i, t := range bm.Triangles {
		second, ok := joined[int32(i)]
		if ok && second < 0 {
			continue
		}
		p := scene.Polygon{
			Vertices: []int{int(t.Vertex[0]), int(t.Vertex[1]), int(t.Vertex[2])},
			Smooth:   int(t.Normal[0]) < nv,
		}
		if i < len(bm.TriangleMaterials) {
			p.Material = int(bm.TriangleMaterials[i][1])
		}
		if ok {
			p.Vertices = append(p.Vertices, int(bm.Triangles[second].Vertex[2]))
		}
		for _, ch := range bm.UVChannels {
			uv := make([][2]float64, 0, len(p.Vertices))
			for _, c := range ch[i] {
				uv = append(uv, [2]float64{c[0], c[1]})
			}
			if ok {
				c := ch[second][2]
				uv = append(uv, [2]float64{c[0], c[1]})
			}
			p.UVs = append(p.UVs, uv)
		}
		data.Polygons = append(data.Polygons, p)
	}
	return data, nil
}

// share points every instance at the data of the record it instances.
func (im *importer) share() error {
	for name, base := range im.instances {
		src := im.scene.Object(base)
		if src == nil || src.Data == "" {
			return errors.Errorf("instance %s refers to unknown mesh %q", name, base)
		}
		im.scene.Object(name).Data = src.Data
	}
	return nil
}

// parent sets world matrices in hierarchy order. Parents precede their
// children, so a parent's world matrix is final when a child reads it.
func (im *importer) parent(h record.Hierarchy) error {
	world := make(map[string]mgl64.Mat4, len(h))
	for _, l := range h {
		o := im.scene.Object(l.Name)
		if o == nil {
			continue
		}
		m := im.local[l.Name]
		if l.Parent != "" {
			pw, ok := world[l.Parent]
			if !ok {
				return errors.Errorf("%s has unknown parent %q", l.Name, l.Parent)
			}
			m = pw.Mul4(m)
			o.Parent = l.Parent
		}
		world[l.Name] = m
		o.Matrix = scene.FromMat4(m)
	}
	return nil
}

func (im *importer) owner(c *record.Common) (*scene.Object, error) {
	o := im.scene.Object(c.Parent)
	if o == nil {
		return nil, errors.Errorf("owner %q not found", c.Parent)
	}
	return o, nil
}

// world maps points of the owner's converted space back to world space.
type world struct{ m mgl64.Mat4 }

func (w world) point(v vec3d.T) [3]float64 {
	p := transform.Revert(v)
	return w.m.Mul4x1(mgl64.Vec4{p[0], p[1], p[2], 1}).Vec3()
}

func (w world) vector(v vec3d.T) [3]float64 {
	p := transform.Revert(v)
	return w.m.Mul4x1(mgl64.Vec4{p[0], p[1], p[2], 0}).Vec3()
}

func (im *importer) particles(file string, w world) ([]scene.Particle, error) {
	bp := &mxs.BinParticles{}
	if err := mxs.ReadFrom(im.path(file), bp); err != nil {
		return nil, err
	}
	out := make([]scene.Particle, bp.Len())
	for i := range out {
		k := 3 * i
		out[i] = scene.Particle{
			Location: w.point(vec3d.T{bp.Positions[k], bp.Positions[k+1], bp.Positions[k+2]}),
			Velocity: w.vector(vec3d.T{bp.Speeds[k], bp.Speeds[k+1], bp.Speeds[k+2]}),
			Size:     bp.Radii[i],
			Alive:    scene.ALIVE,
		}
	}
	return out, nil
}

// attach turns particle and modifier records into parts of their owner.
// Their names lose the owner prefix added on export.
func (im *importer) attach(r record.Record) error {
	c := r.Header()
	o, err := im.owner(c)
	if err != nil {
		return err
	}
	w := world{m: o.Matrix.Mat4()}
	short := c.Name
	if p := o.Name + "-"; len(short) > len(p) && short[:len(p)] == p {
		short = short[len(p):]
	}
	switch v := r.(type) {
	case *record.Particles:
		ps, err := im.particles(v.File, w)
		if err != nil {
			return err
		}
		o.ParticleSystems = append(o.ParticleSystems, scene.ParticleSystem{
			Name: short, Kind: scene.PARTICLE_EMITTER, Particles: ps, Material: v.Material, Props: c.Props.Clone(),
		})
	case *record.Cloner:
		ps, err := im.particles(v.File, w)
		if err != nil {
			return err
		}
		o.ParticleSystems = append(o.ParticleSystems, scene.ParticleSystem{
			Name: short, Kind: scene.PARTICLE_CLONER, Particles: ps, CloneObject: v.Object, Props: c.Props.Clone(),
		})
	case *record.Hair:
		h := &mxs.BinHair{}
		if err := mxs.ReadFrom(im.path(v.File), h); err != nil {
			return err
		}
		ps := scene.ParticleSystem{
			Name: short, Kind: scene.PARTICLE_HAIR, RootRadius: v.RootRadius, TipRadius: v.TipRadius,
			Material: v.Material, Props: c.Props.Clone(),
		}
		k := 0
		for _, n := range v.Points {
			if k+3*int(n) > len(h.Data) {
				return errors.Errorf("hair %s holds fewer points than listed", v.File)
			}
			strand := make([][3]float64, n)
			for j := range strand {
				strand[j] = w.point(vec3d.T{h.Data[k], h.Data[k+1], h.Data[k+2]})
				k += 3
			}
			ps.Strands = append(ps.Strands, strand)
		}
		o.ParticleSystems = append(o.ParticleSystems, ps)
	case *record.Scatter:
		o.Modifiers = append(o.Modifiers, scene.Modifier{
			Name: short, Type: scene.MODIFIER_SCATTER, Object: v.Object, Density: v.Density,
			Seed: v.Seed, Material: v.Material, Props: c.Props.Clone(),
		})
	case *record.Grass:
		o.Modifiers = append(o.Modifiers, scene.Modifier{
			Name: short, Type: scene.MODIFIER_GRASS, Density: v.Density, Seed: v.Seed,
			Material: v.Material, Props: c.Props.Clone(),
		})
	case *record.Subdivision:
		o.Modifiers = append(o.Modifiers, scene.Modifier{
			Name: short, Type: scene.MODIFIER_SUBDIVISION, Level: v.Level,
			Scheme: scene.SubdivisionScheme(v.Scheme), Props: c.Props.Clone(),
		})
	default:
		return errors.Errorf("unexpected %s record", r.Type())
	}
	return nil
}
