package scene

import (
	"github.com/go-gl/mathgl/mgl64"
)

// Matrix is a 4x4 matrix stored by rows, as the authoring tool prints it.
// The zero Matrix reads as identity.
type Matrix [4][4]float64

func Identity() Matrix {
	return Matrix{{1, 0, 0, 0}, {0, 1, 0, 0}, {0, 0, 1, 0}, {0, 0, 0, 1}}
}

func (m Matrix) IsZero() bool {
	return m == Matrix{}
}

// Mat4 converts m into a column major matrix.
func (m Matrix) Mat4() mgl64.Mat4 {
	if m.IsZero() {
		return mgl64.Ident4()
	}
	var out mgl64.Mat4
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			out.Set(r, c, m[r][c])
		}
	}
	return out
}

func FromMat4(m mgl64.Mat4) Matrix {
	var out Matrix
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			out[r][c] = m.At(r, c)
		}
	}
	return out
}
