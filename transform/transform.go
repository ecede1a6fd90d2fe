// Package transform converts between source world matrices and the
// renderer's base and pivot encoding.
package transform

import (
	"math"

	vec3d "github.com/flywave/go3d/float64/vec3"
	"github.com/go-gl/mathgl/mgl64"

	mxs "github.com/flywave/go-mxs"
)

// Axis maps Z up source coordinates to the renderer's Y up coordinates.
// Rows are (1,0,0), (0,0,1), (0,-1,0).
var Axis = mgl64.Mat3{
	1, 0, 0,
	0, 0, -1,
	0, 1, 0,
}

// AxisInv is the inverse (and transpose) of Axis.
var AxisInv = Axis.Transpose()

// RotateX90 is the quarter turn about X applied to every parent relative
// matrix before it is encoded.
var RotateX90 = mgl64.Mat4{
	1, 0, 0, 0,
	0, 0, 1, 0,
	0, -1, 0, 0,
	0, 0, 0, 1,
}

// RotateX90Inv is the inverse of RotateX90.
var RotateX90Inv = RotateX90.Transpose()

// Transform is the encoded form of a matrix. Location, Rotation (XYZ Euler
// degrees) and Scale duplicate what Base already holds.
type Transform struct {
	Base     mxs.Base
	Pivot    mxs.Base
	Location vec3d.T
	Rotation vec3d.T
	Scale    vec3d.T
}

func toVec3d(v mgl64.Vec3) vec3d.T { return vec3d.T{v[0], v[1], v[2]} }

func toMgl(v vec3d.T) mgl64.Vec3 { return mgl64.Vec3{v[0], v[1], v[2]} }

// Decompose splits the affine matrix m into translation, rotation and scale.
// A negative determinant is carried by the X scale.
func Decompose(m mgl64.Mat4) (mgl64.Vec3, mgl64.Mat3, mgl64.Vec3) {
	l := m.Mat3()
	t := m.Col(3).Vec3()
	s := mgl64.Vec3{l.Col(0).Len(), l.Col(1).Len(), l.Col(2).Len()}
	if l.Det() < 0 {
		s[0] = -s[0]
	}
	var cols [3]mgl64.Vec3
	for i := 0; i < 3; i++ {
		if s[i] == 0 {
			cols[i] = mgl64.Vec3{}
			continue
		}
		cols[i] = l.Col(i).Mul(1 / s[i])
	}
	return t, mgl64.Mat3FromCols(cols[0], cols[1], cols[2]), s
}

// Euler returns the XYZ Euler angles in radians of the rotation r, where
// r = Rz * Ry * Rx.
func Euler(r mgl64.Mat3) mgl64.Vec3 {
	sy := -r.At(2, 0)
	if sy > 1 {
		sy = 1
	} else if sy < -1 {
		sy = -1
	}
	y := math.Asin(sy)
	if math.Abs(math.Cos(y)) > 1e-9 {
		return mgl64.Vec3{
			math.Atan2(r.At(2, 1), r.At(2, 2)),
			y,
			math.Atan2(r.At(1, 0), r.At(0, 0)),
		}
	}
	return mgl64.Vec3{math.Atan2(-r.At(1, 2), r.At(1, 1)), y, 0}
}

// FromEuler builds Rz * Ry * Rx from XYZ Euler angles in radians.
func FromEuler(e mgl64.Vec3) mgl64.Mat3 {
	return mgl64.Rotate3DZ(e[2]).Mul3(mgl64.Rotate3DY(e[1])).Mul3(mgl64.Rotate3DX(e[0]))
}

// ToBasePivot encodes m. The base origin is Axis * translation, its axes are
// the columns of Axis * R * S and the pivot is always the identity base.
func ToBasePivot(m mgl64.Mat4) Transform {
	t, r, s := Decompose(m)
	lin := Axis.Mul3(m.Mat3())
	rot := Axis.Mul3(r)
	e := Euler(rot)
	return Transform{
		Base: mxs.Base{
			toVec3d(Axis.Mul3x1(t)),
			toVec3d(lin.Col(0)),
			toVec3d(lin.Col(1)),
			toVec3d(lin.Col(2)),
		},
		Pivot:    mxs.IdentityBase,
		Location: toVec3d(Axis.Mul3x1(t)),
		Rotation: vec3d.T{mgl64.RadToDeg(e[0]), mgl64.RadToDeg(e[1]), mgl64.RadToDeg(e[2])},
		Scale:    toVec3d(s),
	}
}

// BaseMatrix builds the 4x4 matrix whose columns are the axes and origin of b.
func BaseMatrix(b mxs.Base) mgl64.Mat4 {
	o, x, y, z := toMgl(b[0]), toMgl(b[1]), toMgl(b[2]), toMgl(b[3])
	return mgl64.Mat4FromCols(x.Vec4(0), y.Vec4(0), z.Vec4(0), o.Vec4(1))
}

// FromBasePivot reconstructs AxisInv * base * pivot.
func FromBasePivot(base, pivot mxs.Base) mgl64.Mat4 {
	return AxisInv.Mat4().Mul4(BaseMatrix(base)).Mul4(BaseMatrix(pivot))
}

// Local makes world relative to parent, when given, and applies the quarter
// turn. The result is what ToBasePivot expects.
func Local(world mgl64.Mat4, parent *mgl64.Mat4) mgl64.Mat4 {
	m := world
	if parent != nil {
		m = parent.Inv().Mul4(world)
	}
	return m.Mul4(RotateX90)
}

// Unwrap removes the quarter turn applied by Local.
func Unwrap(local mgl64.Mat4) mgl64.Mat4 {
	return local.Mul4(RotateX90Inv)
}

// Encode is ToBasePivot(Local(world, parent)).
func Encode(world mgl64.Mat4, parent *mgl64.Mat4) Transform {
	return ToBasePivot(Local(world, parent))
}

// Decode returns the parent relative matrix encoded in base and pivot.
func Decode(base, pivot mxs.Base) mgl64.Mat4 {
	return Unwrap(FromBasePivot(base, pivot))
}

// Convert maps a source point or direction into renderer coordinates.
func Convert(v vec3d.T) vec3d.T {
	return toVec3d(Axis.Mul3x1(toMgl(v)))
}

// Revert maps a renderer point or direction back into source coordinates.
func Revert(v vec3d.T) vec3d.T {
	return toVec3d(AxisInv.Mul3x1(toMgl(v)))
}

// Wire returns the wire record of the encoded transform t.
func (t Transform) Wire() mxs.Wire {
	return mxs.Wire{
		Base:     t.Base,
		Pivot:    t.Pivot,
		Location: t.Location,
		Rotation: t.Rotation,
		Scale:    t.Scale,
	}
}
