package mxs

import (
	"github.com/pkg/errors"
)

// BinParticles is the content of a BINPART container. The particle count is
// implied by the array lengths.
type BinParticles struct {
	Positions []float64
	Speeds    []float64
	Radii     []float64
	Normals   []float64
	IDs       []int32
}

func (p *BinParticles) Kind() Kind { return KindParticles }

// Len returns the number of particles.
func (p *BinParticles) Len() int { return len(p.Radii) }

func (p *BinParticles) Validate() error {
	n := p.Len()
	switch {
	case len(p.Positions) != 3*n:
		return errors.Wrapf(ErrInconsistent, "%d position values for %d particles", len(p.Positions), n)
	case len(p.Speeds) != 3*n:
		return errors.Wrapf(ErrInconsistent, "%d speed values for %d particles", len(p.Speeds), n)
	case len(p.Normals) != 3*n:
		return errors.Wrapf(ErrInconsistent, "%d normal values for %d particles", len(p.Normals), n)
	case len(p.IDs) != n:
		return errors.Wrapf(ErrInconsistent, "%d ids for %d particles", len(p.IDs), n)
	}
	return nil
}

func (p *BinParticles) marshal(w *writer) bool {
	if err := p.Validate(); err != nil {
		return w.fail(err)
	}
	for _, a := range [][]float64{p.Positions, p.Speeds, p.Radii, p.Normals} {
		if w.count(len(a)) || w.float64s(a) {
			return true
		}
	}
	return w.count(len(p.IDs)) || w.int32s(p.IDs)
}

func (p *BinParticles) unmarshal(r *reader) bool {
	for _, a := range []*[]float64{&p.Positions, &p.Speeds, &p.Radii, &p.Normals} {
		var n int
		if r.count(&n, 8) {
			return true
		}
		vs, failed := r.float64s(n)
		if failed {
			return true
		}
		*a = vs
	}
	var n int
	if r.count(&n, 4) {
		return true
	}
	ids, failed := r.int32s(n)
	if failed {
		return true
	}
	p.IDs = ids
	return false
}

func BinParticlesReadFrom(path string) (*BinParticles, error) {
	p := &BinParticles{}
	if err := ReadFrom(path, p); err != nil {
		return nil, err
	}
	return p, nil
}

func BinParticlesWriteTo(path string, p *BinParticles) error {
	return WriteTo(path, p)
}
