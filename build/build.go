// Package build turns classified nodes into records and writes the binary
// containers those records refer to.
package build

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	mxs "github.com/flywave/go-mxs"
	"github.com/flywave/go-mxs/classify"
	"github.com/flywave/go-mxs/config"
	"github.com/flywave/go-mxs/names"
	"github.com/flywave/go-mxs/record"
	"github.com/flywave/go-mxs/scene"
	"github.com/flywave/go-mxs/transform"
)

// CHECKER_MATERIAL stands in for unassigned material slots. The renderer
// shows it as a checker pattern.
const CHECKER_MATERIAL = "__checker__"

type Options struct {
	// Dir receives the containers.
	Dir string
	// AssetDir resolves relative reference and material paths.
	AssetDir  string
	Wireframe config.Wireframe
	Particles scene.ParticleSource
	Log       logrus.FieldLogger
}

// Builder builds the records of one run. Names are resolved through the
// run's registry in the order nodes are built.
type Builder struct {
	opts     Options
	scene    *scene.Scene
	result   *classify.Result
	registry *names.Registry
	log      logrus.FieldLogger

	files    []record.File
	geometry map[string]*mxs.BinMesh
}

func New(s *scene.Scene, res *classify.Result, reg *names.Registry, opts Options) *Builder {
	if opts.Particles == nil {
		opts.Particles = scene.SnapshotParticles{}
	}
	b := &Builder{
		opts:     opts,
		scene:    s,
		result:   res,
		registry: reg,
		log:      opts.Log,
		geometry: make(map[string]*mxs.BinMesh),
	}
	if b.log == nil {
		b.log = logrus.StandardLogger()
	}
	return b
}

// Files lists the containers written so far.
func (b *Builder) Files() []record.File { return b.files }

// Geometry returns the mesh written for the named MESH or BASE_INSTANCE
// record.
func (b *Builder) Geometry(name string) *mxs.BinMesh { return b.geometry[name] }

// Build returns the record of n. A nil record without error means the node
// was skipped with a warning.
func (b *Builder) Build(n *classify.Node) (record.Record, error) {
	switch n.Type {
	case mxs.EMPTY:
		return b.empty(n), nil
	case mxs.MESH, mxs.BASE_INSTANCE:
		return b.mesh(n)
	case mxs.INSTANCE:
		return b.instance(n)
	case mxs.CAMERA:
		return b.camera(n), nil
	case mxs.SUN:
		return b.sun(n), nil
	case mxs.REFERENCE:
		return b.reference(n), nil
	case mxs.VOLUMETRICS:
		return b.volumetrics(n), nil
	case mxs.SEA:
		return b.sea(n), nil
	case mxs.PARTICLES:
		return b.particles(n)
	case mxs.HAIR:
		return b.hair(n)
	case mxs.CLONER:
		return b.cloner(n)
	case mxs.SCATTER:
		return b.scatter(n)
	case mxs.GRASS:
		return b.grass(n), nil
	case mxs.SUBDIVISION:
		return b.subdivision(n), nil
	case mxs.WIREFRAME:
		return b.wireframe(n)
	}
	return nil, errors.Errorf("node %q has no record type %s", n.Name, n.Type)
}

func (b *Builder) name(n *classify.Node) string {
	return b.registry.Resolve(n.ID, n.Name)
}

func (b *Builder) logger(n *classify.Node) logrus.FieldLogger {
	return b.log.WithFields(logrus.Fields{"object": n.Name, "type": n.Type})
}

// common fills the shared part of a record. The transform is relative to the
// exported parent.
func (b *Builder) common(n *classify.Node) record.Common {
	c := record.Common{Name: b.name(n)}
	var parent *mgl64.Mat4
	if p := n.ExportParent(); p != nil {
		c.Parent = b.name(p)
		m := p.Matrix
		parent = &m
	}
	c.SetTransform(transform.Encode(n.Matrix, parent))
	if n.Object != nil && !n.Synthetic() {
		c.Hide = n.Object.Hide || n.Promoted
		c.Props = n.Object.Props.Clone()
	}
	return c
}

// attached fills the shared part of a record that lives in the space of its
// owner, such as particles and modifiers.
func (b *Builder) attached(n *classify.Node, props mxs.Properties) record.Common {
	c := record.Common{
		Name:  b.name(n),
		Base:  mxs.IdentityBase,
		Pivot: mxs.IdentityBase,
		Scale: [3]float64{1, 1, 1},
		Props: props.Clone(),
	}
	if p := n.ExportParent(); p != nil {
		c.Parent = b.name(p)
	}
	return c
}

// owner returns the object a synthetic node belongs to.
func owner(n *classify.Node) *classify.Node {
	if n.Parent != nil {
		return n.Parent
	}
	return n
}

func (b *Builder) asset(path string) string {
	if path == "" || filepath.IsAbs(path) || b.opts.AssetDir == "" {
		return path
	}
	return filepath.Join(b.opts.AssetDir, path)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// write stores c as name plus the container extension and records its
// checksum.
func (b *Builder) write(name string, c mxs.Container) (string, error) {
	rel := name + c.Kind().Ext()
	buf := &bytes.Buffer{}
	if err := mxs.Marshal(buf, c); err != nil {
		return "", errors.Wrapf(err, "encode %s", rel)
	}
	if err := mxs.WriteFileAtomic(filepath.Join(b.opts.Dir, rel), buf.Bytes()); err != nil {
		return "", err
	}
	b.files = append(b.files, record.File{
		Path:     rel,
		Kind:     c.Kind().Magic(),
		Size:     int64(buf.Len()),
		Checksum: record.Sum(buf.Bytes()),
	})
	return rel, nil
}

func (b *Builder) empty(n *classify.Node) record.Record {
	return &record.Empty{Common: b.common(n)}
}
