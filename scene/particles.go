package scene

import (
	vec3d "github.com/flywave/go3d/float64/vec3"
)

// ParticleSource enumerates the particles and hair strands of a particle
// system in world space.
type ParticleSource interface {
	Particles(o *Object, ps *ParticleSystem) ([]Particle, error)
	Strands(o *Object, ps *ParticleSystem) ([][]vec3d.T, error)
}

// SnapshotParticles serves the particle data stored in the snapshot.
type SnapshotParticles struct{}

func (SnapshotParticles) Particles(o *Object, ps *ParticleSystem) ([]Particle, error) {
	return ps.Particles, nil
}

func (SnapshotParticles) Strands(o *Object, ps *ParticleSystem) ([][]vec3d.T, error) {
	out := make([][]vec3d.T, len(ps.Strands))
	for i, s := range ps.Strands {
		pts := make([]vec3d.T, len(s))
		for j, p := range s {
			pts[j] = toVec(p)
		}
		out[i] = pts
	}
	return out, nil
}

// Alive returns the particles whose state is ALIVE.
func Alive(ps []Particle) []Particle {
	var out []Particle
	for _, p := range ps {
		if p.Alive == ALIVE {
			out = append(out, p)
		}
	}
	return out
}
