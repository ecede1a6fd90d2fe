// Package scene holds the snapshot of an authoring tool scene that an export
// run reads, and that an import run produces.
package scene

import (
	"sort"
	"strings"

	"github.com/pkg/errors"

	mxs "github.com/flywave/go-mxs"
	"github.com/flywave/go-mxs/names"
)

// LAYER_COUNT is the number of scene layers.
const LAYER_COUNT = 20

type ObjectType string

const (
	OBJECT_MESH     ObjectType = "MESH"
	OBJECT_EMPTY    ObjectType = "EMPTY"
	OBJECT_CAMERA   ObjectType = "CAMERA"
	OBJECT_LAMP     ObjectType = "LAMP"
	OBJECT_CURVE    ObjectType = "CURVE"
	OBJECT_SURFACE  ObjectType = "SURFACE"
	OBJECT_FONT     ObjectType = "FONT"
	OBJECT_META     ObjectType = "META"
	OBJECT_ARMATURE ObjectType = "ARMATURE"
	OBJECT_LATTICE  ObjectType = "LATTICE"
	OBJECT_SPEAKER  ObjectType = "SPEAKER"
)

// Convertible reports whether objects of this type become meshes when their
// geometry converts to at least one polygon.
func (t ObjectType) Convertible() bool {
	switch t {
	case OBJECT_CURVE, OBJECT_SURFACE, OBJECT_FONT:
		return true
	}
	return false
}

type LampType string

const (
	LAMP_SUN   LampType = "SUN"
	LAMP_POINT LampType = "POINT"
	LAMP_SPOT  LampType = "SPOT"
	LAMP_HEMI  LampType = "HEMI"
	LAMP_AREA  LampType = "AREA"
)

type DupliType string

const (
	DUPLI_NONE  DupliType = ""
	DUPLI_FACES DupliType = "FACES"
	DUPLI_VERTS DupliType = "VERTS"
	DUPLI_GROUP DupliType = "GROUP"
)

type ModifierType string

const (
	MODIFIER_SUBDIVISION ModifierType = "SUBDIVISION"
	MODIFIER_SCATTER     ModifierType = "SCATTER"
	MODIFIER_GRASS       ModifierType = "GRASS"
)

type SubdivisionScheme string

const (
	SCHEME_CATMULL_CLARK SubdivisionScheme = "CATMULL_CLARK"
	SCHEME_LOOP          SubdivisionScheme = "LOOP"
)

type ParticleKind string

const (
	PARTICLE_EMITTER ParticleKind = "PARTICLES"
	PARTICLE_HAIR    ParticleKind = "HAIR"
	PARTICLE_CLONER  ParticleKind = "CLONER"
)

const ALIVE = "ALIVE"

type Camera struct {
	Lens          float64 `yaml:"lens" json:"lens"`
	SensorWidth   float64 `yaml:"sensor_width" json:"sensor_width"`
	SensorHeight  float64 `yaml:"sensor_height" json:"sensor_height"`
	FStop         float64 `yaml:"fstop" json:"fstop"`
	Shutter       float64 `yaml:"shutter" json:"shutter"`
	ISO           float64 `yaml:"iso" json:"iso"`
	FocusDistance float64 `yaml:"focus_distance" json:"focus_distance"`
	ShiftX        float64 `yaml:"shift_x" json:"shift_x"`
	ShiftY        float64 `yaml:"shift_y" json:"shift_y"`
	ZClip         bool    `yaml:"zclip" json:"zclip"`
	ClipStart     float64 `yaml:"clip_start" json:"clip_start"`
	ClipEnd       float64 `yaml:"clip_end" json:"clip_end"`
}

type Sun struct {
	Type        string     `yaml:"type" json:"type"`
	Power       float64    `yaml:"power" json:"power"`
	Temperature float64    `yaml:"temperature" json:"temperature"`
	Color       [3]float64 `yaml:"color" json:"color"`
}

type Reference struct {
	Path  string         `yaml:"path" json:"path"`
	Props mxs.Properties `yaml:"props,omitempty" json:"props,omitempty"`
}

type Volumetrics struct {
	Type     string         `yaml:"type" json:"type"`
	Density  float64        `yaml:"density" json:"density"`
	Seed     int64          `yaml:"seed" json:"seed"`
	Material string         `yaml:"material,omitempty" json:"material,omitempty"`
	Props    mxs.Properties `yaml:"props,omitempty" json:"props,omitempty"`
}

type Sea struct {
	Resolution int            `yaml:"resolution" json:"resolution"`
	Size       float64        `yaml:"size" json:"size"`
	Seed       int64          `yaml:"seed" json:"seed"`
	WindSpeed  float64        `yaml:"wind_speed" json:"wind_speed"`
	Material   string         `yaml:"material,omitempty" json:"material,omitempty"`
	Props      mxs.Properties `yaml:"props,omitempty" json:"props,omitempty"`
}

type Modifier struct {
	Name   string            `yaml:"name" json:"name"`
	Type   ModifierType      `yaml:"type" json:"type"`
	Level  int               `yaml:"level,omitempty" json:"level,omitempty"`
	Scheme SubdivisionScheme `yaml:"scheme,omitempty" json:"scheme,omitempty"`
	// Object names the scattered object.
	Object   string         `yaml:"object,omitempty" json:"object,omitempty"`
	Density  float64        `yaml:"density,omitempty" json:"density,omitempty"`
	Seed     int64          `yaml:"seed,omitempty" json:"seed,omitempty"`
	Material string         `yaml:"material,omitempty" json:"material,omitempty"`
	Props    mxs.Properties `yaml:"props,omitempty" json:"props,omitempty"`
}

type Particle struct {
	Location [3]float64 `yaml:"location" json:"location"`
	Velocity [3]float64 `yaml:"velocity" json:"velocity"`
	Size     float64    `yaml:"size" json:"size"`
	Alive    string     `yaml:"alive" json:"alive"`
}

type ParticleSystem struct {
	Name      string       `yaml:"name" json:"name"`
	Kind      ParticleKind `yaml:"kind" json:"kind"`
	Particles []Particle   `yaml:"particles,omitempty" json:"particles,omitempty"`
	// Strands holds hair strand points in world space.
	Strands          [][][3]float64 `yaml:"strands,omitempty" json:"strands,omitempty"`
	RadiusMultiplier float64        `yaml:"radius_multiplier,omitempty" json:"radius_multiplier,omitempty"`
	RootRadius       float64        `yaml:"root_radius,omitempty" json:"root_radius,omitempty"`
	TipRadius        float64        `yaml:"tip_radius,omitempty" json:"tip_radius,omitempty"`
	Material         string         `yaml:"material,omitempty" json:"material,omitempty"`
	// CloneObject names the object a cloner distributes.
	CloneObject string         `yaml:"clone_object,omitempty" json:"clone_object,omitempty"`
	Props       mxs.Properties `yaml:"props,omitempty" json:"props,omitempty"`
}

// Dupli is one generated duplicate of another object.
type Dupli struct {
	Object string `yaml:"object" json:"object"`
	Matrix Matrix `yaml:"matrix" json:"matrix"`
}

type Object struct {
	ID         names.ID   `yaml:"id,omitempty" json:"id,omitempty"`
	Name       string     `yaml:"name" json:"name"`
	Type       ObjectType `yaml:"type" json:"type"`
	Lamp       LampType   `yaml:"lamp,omitempty" json:"lamp,omitempty"`
	Parent     string     `yaml:"parent,omitempty" json:"parent,omitempty"`
	Matrix     Matrix     `yaml:"matrix" json:"matrix"`
	Data       string     `yaml:"data,omitempty" json:"data,omitempty"`
	HideRender bool       `yaml:"hide_render,omitempty" json:"hide_render,omitempty"`
	Hide       bool       `yaml:"hide,omitempty" json:"hide,omitempty"`
	// Layers defaults to the first layer only.
	Layers             []bool           `yaml:"layers,omitempty" json:"layers,omitempty"`
	Materials          []string         `yaml:"materials,omitempty" json:"materials,omitempty"`
	BackfaceMaterial   string           `yaml:"backface_material,omitempty" json:"backface_material,omitempty"`
	OverrideInstancing bool             `yaml:"override_instancing,omitempty" json:"override_instancing,omitempty"`
	Props              mxs.Properties   `yaml:"props,omitempty" json:"props,omitempty"`
	Camera             *Camera          `yaml:"camera,omitempty" json:"camera,omitempty"`
	Sun                *Sun             `yaml:"sun,omitempty" json:"sun,omitempty"`
	Reference          *Reference       `yaml:"reference,omitempty" json:"reference,omitempty"`
	Volumetrics        *Volumetrics     `yaml:"volumetrics,omitempty" json:"volumetrics,omitempty"`
	Sea                *Sea             `yaml:"sea,omitempty" json:"sea,omitempty"`
	Modifiers          []Modifier       `yaml:"modifiers,omitempty" json:"modifiers,omitempty"`
	ParticleSystems    []ParticleSystem `yaml:"particle_systems,omitempty" json:"particle_systems,omitempty"`
	DupliType          DupliType        `yaml:"dupli_type,omitempty" json:"dupli_type,omitempty"`
	Duplis             []Dupli          `yaml:"duplis,omitempty" json:"duplis,omitempty"`
}

// Layer reports whether the object sits on layer i.
func (o *Object) Layer(i int) bool {
	if o.Layers == nil {
		return i == 0
	}
	return i < len(o.Layers) && o.Layers[i]
}

// Subdivision returns the first subdivision modifier, if any.
func (o *Object) Subdivision() *Modifier {
	for i := range o.Modifiers {
		if o.Modifiers[i].Type == MODIFIER_SUBDIVISION {
			return &o.Modifiers[i]
		}
	}
	return nil
}

type Polygon struct {
	Vertices []int `yaml:"vertices" json:"vertices"`
	Smooth   bool  `yaml:"smooth,omitempty" json:"smooth,omitempty"`
	Material int   `yaml:"material,omitempty" json:"material,omitempty"`
	// UVs holds per layer one coordinate per polygon corner.
	UVs [][][2]float64 `yaml:"uvs,omitempty" json:"uvs,omitempty"`
}

// MeshData is a geometry data-block. Curves, surfaces and text carry their
// converted geometry here too.
type MeshData struct {
	Name     string       `yaml:"name" json:"name"`
	Vertices [][3]float64 `yaml:"vertices" json:"vertices"`
	// Normals are optional per vertex normals.
	Normals  [][3]float64 `yaml:"normals,omitempty" json:"normals,omitempty"`
	Polygons []Polygon    `yaml:"polygons" json:"polygons"`
	UVLayers []string     `yaml:"uv_layers,omitempty" json:"uv_layers,omitempty"`
	// Steps holds vertex positions for additional motion blur steps.
	Steps [][][3]float64 `yaml:"steps,omitempty" json:"steps,omitempty"`
}

type Scene struct {
	Name    string               `yaml:"name" json:"name"`
	Objects []*Object            `yaml:"objects" json:"objects"`
	Meshes  map[string]*MeshData `yaml:"meshes,omitempty" json:"meshes,omitempty"`
	// ActiveLayers and RenderLayers default to every layer.
	ActiveLayers []bool  `yaml:"active_layers,omitempty" json:"active_layers,omitempty"`
	RenderLayers []bool  `yaml:"render_layers,omitempty" json:"render_layers,omitempty"`
	Camera       string  `yaml:"camera,omitempty" json:"camera,omitempty"`
	Resolution   [2]int  `yaml:"resolution" json:"resolution"`
	PixelAspect  float64 `yaml:"pixel_aspect,omitempty" json:"pixel_aspect,omitempty"`

	byName   map[string]*Object
	children map[string][]*Object
}

func layer(ls []bool, i int) bool {
	if ls == nil {
		return true
	}
	return i < len(ls) && ls[i]
}

// Visible reports whether o is rendered: not hidden from render and on a
// layer that is both active and rendered.
func (s *Scene) Visible(o *Object) bool {
	if o.HideRender {
		return false
	}
	for i := 0; i < LAYER_COUNT; i++ {
		if o.Layer(i) && layer(s.ActiveLayers, i) && layer(s.RenderLayers, i) {
			return true
		}
	}
	return false
}

// SortKey orders names without regard to case, falling back to byte order.
func SortKey(a, b string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	if la != lb {
		return la < lb
	}
	return a < b
}

// Prepare assigns identities to objects that have none, indexes the scene
// and checks that the parent links form a forest.
func (s *Scene) Prepare() error {
	var max names.ID
	ids := make(map[names.ID]string)
	seen := make(map[string]bool, len(s.Objects))
	for _, o := range s.Objects {
		if o.Name == "" {
			return errors.New("object without a name")
		}
		if seen[o.Name] {
			return errors.Errorf("duplicate object %q", o.Name)
		}
		seen[o.Name] = true
		if o.ID != 0 {
			if prev, dup := ids[o.ID]; dup {
				return errors.Errorf("objects %q and %q share id %d", prev, o.Name, o.ID)
			}
			ids[o.ID] = o.Name
			if o.ID > max {
				max = o.ID
			}
		}
	}
	for _, o := range s.Objects {
		if o.ID == 0 {
			max++
			o.ID = max
		}
		if o.Parent != "" && !seen[o.Parent] {
			return errors.Errorf("object %q has unknown parent %q", o.Name, o.Parent)
		}
	}
	s.rebuild()
	for _, o := range s.Objects {
		visited := map[string]bool{o.Name: true}
		for p := o.Parent; p != ""; p = s.byName[p].Parent {
			if visited[p] {
				return errors.Errorf("parent cycle through %q", o.Name)
			}
			visited[p] = true
		}
	}
	return nil
}

func (s *Scene) rebuild() {
	s.byName = make(map[string]*Object, len(s.Objects))
	s.children = make(map[string][]*Object)
	for _, o := range s.Objects {
		s.byName[o.Name] = o
	}
	for _, o := range s.Objects {
		s.children[o.Parent] = append(s.children[o.Parent], o)
	}
	for _, cs := range s.children {
		sort.Slice(cs, func(i, j int) bool { return SortKey(cs[i].Name, cs[j].Name) })
	}
}

func (s *Scene) index() {
	if s.byName == nil {
		s.rebuild()
	}
}

// Object returns the object named name.
func (s *Scene) Object(name string) *Object {
	s.index()
	return s.byName[name]
}

// Roots returns the objects without a parent in sorted order.
func (s *Scene) Roots() []*Object {
	return s.Children("")
}

// Children returns the children of the named object in sorted order.
func (s *Scene) Children(name string) []*Object {
	s.index()
	return s.children[name]
}

// MaxID returns the largest object identity.
func (s *Scene) MaxID() names.ID {
	var max names.ID
	for _, o := range s.Objects {
		if o.ID > max {
			max = o.ID
		}
	}
	return max
}

// Mesh returns the data-block of o, if any.
func (s *Scene) Mesh(o *Object) *MeshData {
	if o.Data == "" || s.Meshes == nil {
		return nil
	}
	return s.Meshes[o.Data]
}

// Add appends o and invalidates the index.
func (s *Scene) Add(o *Object) {
	s.Objects = append(s.Objects, o)
	s.byName = nil
	s.children = nil
}
