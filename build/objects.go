package build

import (
	vec3d "github.com/flywave/go3d/float64/vec3"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/flywave/go-mxs/classify"
	"github.com/flywave/go-mxs/record"
	"github.com/flywave/go-mxs/scene"
	"github.com/flywave/go-mxs/transform"
)

func toVec(v mgl64.Vec3) vec3d.T { return vec3d.T{v[0], v[1], v[2]} }

// point converts a world space point of the matrix m.
func point(m mgl64.Mat4, p mgl64.Vec3) vec3d.T {
	return transform.Convert(toVec(m.Mul4x1(p.Vec4(1)).Vec3()))
}

// direction converts the normalized world direction of a local axis.
func direction(m mgl64.Mat4, d mgl64.Vec3) vec3d.T {
	w := m.Mul4x1(d.Vec4(0)).Vec3()
	if w.Len() > 0 {
		w = w.Normalize()
	}
	return transform.Convert(toVec(w))
}

var defaultCamera = scene.Camera{
	Lens:         35,
	SensorWidth:  36,
	SensorHeight: 24,
	FStop:        8,
	Shutter:      1.0 / 250,
	ISO:          100,
	ClipStart:    0.1,
	ClipEnd:      100,
}

func (b *Builder) camera(n *classify.Node) record.Record {
	cam := defaultCamera
	if n.Object.Camera != nil {
		cam = *n.Object.Camera
	}
	m := n.Matrix
	focus := cam.FocusDistance
	if focus <= 0 {
		focus = 1
	}
	r := &record.Camera{
		Common:        b.common(n),
		Origin:        point(m, mgl64.Vec3{}),
		FocalPoint:    point(m, mgl64.Vec3{0, 0, -focus}),
		Up:            direction(m, mgl64.Vec3{0, 1, 0}),
		Lens:          cam.Lens,
		FilmWidth:     cam.SensorWidth,
		FilmHeight:    cam.SensorHeight,
		FStop:         cam.FStop,
		Shutter:       cam.Shutter,
		ISO:           cam.ISO,
		Resolution:    b.scene.Resolution,
		PixelAspect:   b.scene.PixelAspect,
		ShiftX:        cam.ShiftX,
		ShiftY:        cam.ShiftY,
		ZClip:         cam.ZClip,
		ClipNear:      cam.ClipStart,
		ClipFar:       cam.ClipEnd,
		FocusDistance: cam.FocusDistance,
		Active:        n.ActiveCamera,
	}
	if r.PixelAspect == 0 {
		r.PixelAspect = 1
	}
	if r.FilmHeight == 0 && r.Resolution[0] > 0 {
		r.FilmHeight = r.FilmWidth * float64(r.Resolution[1]) / float64(r.Resolution[0])
	}
	return r
}

// sun points from the scene towards the light, which shines along the local
// -Z axis of the lamp.
func (b *Builder) sun(n *classify.Node) record.Record {
	s := scene.Sun{Type: "PHYSICAL", Power: 1, Temperature: 5777, Color: [3]float64{1, 1, 1}}
	if n.Object.Sun != nil {
		s = *n.Object.Sun
	}
	return &record.Sun{
		Common:      b.common(n),
		SunType:     s.Type,
		Direction:   direction(n.Matrix, mgl64.Vec3{0, 0, 1}),
		Strength:    s.Power,
		Temperature: s.Temperature,
		Color:       s.Color,
	}
}

func (b *Builder) reference(n *classify.Node) record.Record {
	ref := n.Object.Reference
	path := b.asset(ref.Path)
	if ref.Path == "" || !exists(path) {
		b.logger(n).WithField("path", ref.Path).Warn("referenced scene not found, skipped")
		return nil
	}
	r := &record.Reference{Common: b.common(n), Path: path}
	r.Props = merge(r.Props, ref.Props)
	return r
}

func (b *Builder) volumetrics(n *classify.Node) record.Record {
	v := n.Object.Volumetrics
	r := &record.Volumetrics{
		Common:     b.common(n),
		VolumeType: v.Type,
		Density:    v.Density,
		Seed:       v.Seed,
		Material:   v.Material,
	}
	r.Props = merge(r.Props, v.Props)
	return r
}

// sea records are placed at the top level with their world transform.
func (b *Builder) sea(n *classify.Node) record.Record {
	s := n.Object.Sea
	r := &record.Sea{
		Common:     b.common(n),
		Resolution: s.Resolution,
		Size:       s.Size,
		Seed:       s.Seed,
		WindSpeed:  s.WindSpeed,
		Material:   s.Material,
	}
	r.Props = merge(r.Props, s.Props)
	return r
}
