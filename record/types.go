package record

import (
	vec3d "github.com/flywave/go3d/float64/vec3"

	mxs "github.com/flywave/go-mxs"
)

type Empty struct {
	Common
}

func (r *Empty) Type() mxs.ExportType { return mxs.EMPTY }
func (r *Empty) Fields() []Field      { return r.fields() }

// Mesh is a MESH record, or a BASE_INSTANCE record when Source is set.
type Mesh struct {
	Common
	Source bool
	// File is the BINMESH container, relative to the manifest.
	File             string
	Steps            int
	Materials        []string
	BackfaceMaterial string
	// QuadPairs lists the triangle pairs a Catmull-Clark subdivision
	// treats as quads.
	QuadPairs [][2]int32
}

func (r *Mesh) Type() mxs.ExportType {
	if r.Source {
		return mxs.BASE_INSTANCE
	}
	return mxs.MESH
}

func (r *Mesh) Container() (mxs.Kind, string) { return mxs.KindMesh, r.File }

func (r *Mesh) Fields() []Field {
	return r.fields(
		Field{"file", &r.File},
		Field{"steps", &r.Steps},
		Field{"materials", &r.Materials},
		Field{"backface_material", &r.BackfaceMaterial},
		Field{"quad_pairs", &r.QuadPairs},
	)
}

type Instance struct {
	Common
	// Instanced is the name of the BASE_INSTANCE record.
	Instanced        string
	Materials        []string
	BackfaceMaterial string
}

func (r *Instance) Type() mxs.ExportType { return mxs.INSTANCE }

func (r *Instance) Fields() []Field {
	return r.fields(
		Field{"instanced", &r.Instanced},
		Field{"materials", &r.Materials},
		Field{"backface_material", &r.BackfaceMaterial},
	)
}

// Camera positions are in renderer coordinates.
type Camera struct {
	Common
	Origin        vec3d.T
	FocalPoint    vec3d.T
	Up            vec3d.T
	Lens          float64
	FilmWidth     float64
	FilmHeight    float64
	FStop         float64
	Shutter       float64
	ISO           float64
	Resolution    [2]int
	PixelAspect   float64
	ShiftX        float64
	ShiftY        float64
	ZClip         bool
	ClipNear      float64
	ClipFar       float64
	FocusDistance float64
	Active        bool
}

func (r *Camera) Type() mxs.ExportType { return mxs.CAMERA }

func (r *Camera) Fields() []Field {
	return r.fields(
		Field{"origin", &r.Origin},
		Field{"focal_point", &r.FocalPoint},
		Field{"up", &r.Up},
		Field{"lens", &r.Lens},
		Field{"film_width", &r.FilmWidth},
		Field{"film_height", &r.FilmHeight},
		Field{"fstop", &r.FStop},
		Field{"shutter", &r.Shutter},
		Field{"iso", &r.ISO},
		Field{"resolution", &r.Resolution},
		Field{"pixel_aspect", &r.PixelAspect},
		Field{"shift_x", &r.ShiftX},
		Field{"shift_y", &r.ShiftY},
		Field{"zclip", &r.ZClip},
		Field{"clip_near", &r.ClipNear},
		Field{"clip_far", &r.ClipFar},
		Field{"focus_distance", &r.FocusDistance},
		Field{"active", &r.Active},
	)
}

type Sun struct {
	Common
	SunType     string
	Direction   vec3d.T
	Strength    float64
	Temperature float64
	Color       [3]float64
}

func (r *Sun) Type() mxs.ExportType { return mxs.SUN }

func (r *Sun) Fields() []Field {
	return r.fields(
		Field{"sun_type", &r.SunType},
		Field{"direction", &r.Direction},
		Field{"strength", &r.Strength},
		Field{"temperature", &r.Temperature},
		Field{"color", &r.Color},
	)
}

type Reference struct {
	Common
	Path string
}

func (r *Reference) Type() mxs.ExportType { return mxs.REFERENCE }
func (r *Reference) Fields() []Field      { return r.fields(Field{"path", &r.Path}) }

type Volumetrics struct {
	Common
	VolumeType string
	Density    float64
	Seed       int64
	Material   string
}

func (r *Volumetrics) Type() mxs.ExportType { return mxs.VOLUMETRICS }

func (r *Volumetrics) Fields() []Field {
	return r.fields(
		Field{"volume_type", &r.VolumeType},
		Field{"density", &r.Density},
		Field{"seed", &r.Seed},
		Field{"material", &r.Material},
	)
}

type Sea struct {
	Common
	Resolution int
	Size       float64
	Seed       int64
	WindSpeed  float64
	Material   string
}

func (r *Sea) Type() mxs.ExportType { return mxs.SEA }

func (r *Sea) Fields() []Field {
	return r.fields(
		Field{"resolution", &r.Resolution},
		Field{"size", &r.Size},
		Field{"seed", &r.Seed},
		Field{"wind_speed", &r.WindSpeed},
		Field{"material", &r.Material},
	)
}

type Particles struct {
	Common
	File     string
	Count    int
	Material string
}

func (r *Particles) Type() mxs.ExportType          { return mxs.PARTICLES }
func (r *Particles) Container() (mxs.Kind, string) { return mxs.KindParticles, r.File }

func (r *Particles) Fields() []Field {
	return r.fields(
		Field{"file", &r.File},
		Field{"count", &r.Count},
		Field{"material", &r.Material},
	)
}

// Hair points are laid out strand after strand; Points gives the number of
// points of each strand.
type Hair struct {
	Common
	File       string
	Points     []int32
	RootRadius float64
	TipRadius  float64
	Material   string
}

func (r *Hair) Type() mxs.ExportType          { return mxs.HAIR }
func (r *Hair) Container() (mxs.Kind, string) { return mxs.KindHair, r.File }

func (r *Hair) Fields() []Field {
	return r.fields(
		Field{"file", &r.File},
		Field{"points", &r.Points},
		Field{"root_radius", &r.RootRadius},
		Field{"tip_radius", &r.TipRadius},
		Field{"material", &r.Material},
	)
}

// Cloner distributes Object over the particles stored in File.
type Cloner struct {
	Common
	File   string
	Object string
	Count  int
}

func (r *Cloner) Type() mxs.ExportType          { return mxs.CLONER }
func (r *Cloner) Container() (mxs.Kind, string) { return mxs.KindParticles, r.File }

func (r *Cloner) Fields() []Field {
	return r.fields(
		Field{"file", &r.File},
		Field{"object", &r.Object},
		Field{"count", &r.Count},
	)
}

type Scatter struct {
	Common
	Object   string
	Density  float64
	Seed     int64
	Material string
}

func (r *Scatter) Type() mxs.ExportType { return mxs.SCATTER }

func (r *Scatter) Fields() []Field {
	return r.fields(
		Field{"object", &r.Object},
		Field{"density", &r.Density},
		Field{"seed", &r.Seed},
		Field{"material", &r.Material},
	)
}

type Grass struct {
	Common
	Density  float64
	Seed     int64
	Material string
}

func (r *Grass) Type() mxs.ExportType { return mxs.GRASS }

func (r *Grass) Fields() []Field {
	return r.fields(
		Field{"density", &r.Density},
		Field{"seed", &r.Seed},
		Field{"material", &r.Material},
	)
}

type Subdivision struct {
	Common
	Level  int
	Scheme string
}

func (r *Subdivision) Type() mxs.ExportType { return mxs.SUBDIVISION }

func (r *Subdivision) Fields() []Field {
	return r.fields(
		Field{"level", &r.Level},
		Field{"scheme", &r.Scheme},
	)
}

type Wireframe struct {
	Common
	File     string
	Count    int
	Radius   float64
	Material string
}

func (r *Wireframe) Type() mxs.ExportType          { return mxs.WIREFRAME }
func (r *Wireframe) Container() (mxs.Kind, string) { return mxs.KindWire, r.File }

func (r *Wireframe) Fields() []Field {
	return r.fields(
		Field{"file", &r.File},
		Field{"count", &r.Count},
		Field{"radius", &r.Radius},
		Field{"material", &r.Material},
	)
}
