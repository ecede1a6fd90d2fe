// Package export runs a complete export: classification, record building,
// the manifest and the optional renderer side step.
package export

import (
	"context"
	"os"
	"path/filepath"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	mxs "github.com/flywave/go-mxs"
	"github.com/flywave/go-mxs/build"
	"github.com/flywave/go-mxs/classify"
	"github.com/flywave/go-mxs/config"
	"github.com/flywave/go-mxs/extproc"
	"github.com/flywave/go-mxs/names"
	"github.com/flywave/go-mxs/record"
	"github.com/flywave/go-mxs/scene"
	"github.com/flywave/go-mxs/transform"
)

const (
	MANIFEST_FILE  = "manifest.json"
	HIERARCHY_FILE = "hierarchy.json"
	PREVIEW_FILE   = "preview.glb"
)

type Options struct {
	config.Options

	// AssetDir resolves relative reference paths, defaults to the
	// directory of the scene file when the caller knows it.
	AssetDir  string
	Evaluator scene.MeshEvaluator
	Particles scene.ParticleSource
	Log       logrus.FieldLogger
	// Progress is called after every node.
	Progress func(done, total int)
}

// Report summarizes a finished run.
type Report struct {
	Dir      string
	Manifest *record.Manifest
	// Skipped names the objects dropped with a validation error.
	Skipped  []string
	External *extproc.Result
}

type run struct {
	opts     Options
	log      logrus.FieldLogger
	registry *names.Registry
	builder  *build.Builder
	manifest *record.Manifest
	recorded map[*classify.Node]record.Record
	report   *Report
}

// Run exports s into opts.OutputDir. Validation errors of single objects are
// logged and the object is skipped. Any other error aborts the run.
func Run(ctx context.Context, s *scene.Scene, opts Options) (*Report, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	dir := opts.OutputDir
	if _, err := os.Stat(dir); err == nil && !opts.Overwrite {
		return nil, mxs.Invalid("", "output directory %s exists and overwrite is disabled", dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	res, err := classify.Classify(s, classify.Options{
		Instancing: opts.Instancing,
		Wireframe:  opts.Wireframe.Enabled,
		Evaluator:  opts.Evaluator,
		Log:        log,
	})
	if err != nil {
		return nil, errors.Wrap(err, "classify")
	}

	r := &run{
		opts:     opts,
		log:      log,
		registry: names.New(),
		manifest: record.NewManifest(s.Name),
		recorded: make(map[*classify.Node]record.Record),
		report:   &Report{Dir: dir},
	}
	r.report.Manifest = r.manifest
	r.builder = build.New(s, res, r.registry, build.Options{
		Dir:       dir,
		AssetDir:  opts.AssetDir,
		Wireframe: opts.Wireframe,
		Particles: opts.Particles,
		Log:       log,
	})
	log.WithFields(logrus.Fields{"scene": s.Name, "nodes": len(res.Nodes), "run": r.manifest.RunID}).Info("export started")

	for i, n := range res.Nodes {
		if err := ctx.Err(); err != nil {
			return r.report, err
		}
		if err := r.build(n); err != nil {
			return r.report, err
		}
		if opts.Progress != nil {
			opts.Progress(i+1, len(res.Nodes))
		}
	}

	if err := r.write(); err != nil {
		return r.report, err
	}
	if opts.Preview {
		if err := r.preview(); err != nil {
			return r.report, errors.Wrap(err, "preview")
		}
	}
	if opts.External.Enabled() {
		if err := r.external(ctx); err != nil {
			return r.report, err
		}
	}
	log.WithFields(logrus.Fields{"records": len(r.manifest.Records), "skipped": len(r.report.Skipped)}).Info("export finished")
	return r.report, nil
}

func (r *run) build(n *classify.Node) error {
	rec, err := r.builder.Build(n)
	switch {
	case mxs.IsValidation(err):
		r.log.WithError(err).WithField("object", n.Name).Error("object skipped")
		r.report.Skipped = append(r.report.Skipped, n.Name)
		return nil
	case err != nil:
		return errors.Wrapf(err, "build %s", n.Name)
	case rec == nil:
		return nil
	}
	if !r.reparent(n, rec) {
		r.log.WithField("object", n.Name).Warn("owner was skipped, object dropped")
		r.report.Skipped = append(r.report.Skipped, n.Name)
		return nil
	}
	r.manifest.Add(rec)
	r.recorded[n] = rec
	return nil
}

// attachedTypes live in the space of their owner and cannot move to another
// parent.
var attachedTypes = map[mxs.ExportType]bool{
	mxs.PARTICLES:   true,
	mxs.HAIR:        true,
	mxs.CLONER:      true,
	mxs.SCATTER:     true,
	mxs.GRASS:       true,
	mxs.SUBDIVISION: true,
}

// reparent moves rec below its closest recorded ancestor when its exported
// parent produced no record. It returns false when rec cannot be kept.
func (r *run) reparent(n *classify.Node, rec record.Record) bool {
	p := n.ExportParent()
	if p == nil {
		return true
	}
	if _, ok := r.recorded[p]; ok {
		return true
	}
	if attachedTypes[rec.Type()] {
		return false
	}
	for p != nil {
		if _, ok := r.recorded[p]; ok {
			break
		}
		p = p.ExportParent()
	}
	c := rec.Header()
	if p == nil {
		c.Parent = ""
		c.SetTransform(transform.Encode(n.Matrix, nil))
		return true
	}
	c.Parent = r.registry.Resolve(p.ID, p.Name)
	m := p.Matrix
	c.SetTransform(transform.Encode(n.Matrix, &m))
	return true
}

func (r *run) write() error {
	r.manifest.Files = r.builder.Files()
	h := record.HierarchyOf(r.manifest)
	if err := h.Check(); err != nil {
		return errors.Wrap(err, "hierarchy")
	}
	if err := r.manifest.WriteFile(filepath.Join(r.report.Dir, MANIFEST_FILE)); err != nil {
		return errors.Wrap(err, "write manifest")
	}
	return errors.Wrap(h.WriteFile(filepath.Join(r.report.Dir, HIERARCHY_FILE)), "write hierarchy")
}

func (r *run) preview() error {
	data, err := Preview(r.manifest, r.builder.Geometry)
	if err != nil {
		return err
	}
	return mxs.WriteFileAtomic(filepath.Join(r.report.Dir, PREVIEW_FILE), data)
}

// Preview encodes every record of m as a glTF node and returns the GLB
// bytes. geometry returns the mesh written for a mesh record, instances
// share the mesh of the record they instance.
func Preview(m *record.Manifest, geometry func(name string) *mxs.BinMesh) ([]byte, error) {
	p := mxs.NewPreview()
	index := make(map[string]uint32, len(m.Records))
	for _, rec := range m.Records {
		c := rec.Header()
		var mesh *uint32
		switch v := rec.(type) {
		case *record.Mesh:
			if g := geometry(c.Name); g != nil {
				i := p.AddMesh(c.Name, g)
				mesh = &i
			}
		case *record.Instance:
			if i, ok := p.Mesh(v.Instanced); ok {
				mesh = &i
			} else if g := geometry(v.Instanced); g != nil {
				i := p.AddMesh(v.Instanced, g)
				mesh = &i
			}
		}
		mat := mgl64.Ident4()
		if c.Base != (mxs.Base{}) {
			mat = transform.BaseMatrix(c.Base).Mul4(transform.BaseMatrix(c.Pivot))
		}
		var parent *uint32
		if i, ok := index[c.Parent]; ok {
			parent = &i
		}
		index[c.Name] = p.AddNode(c.Name, mesh, [16]float64(mat), parent)
	}
	return mxs.GetGltfBinary(p.Document(), 4)
}

func (r *run) external(ctx context.Context) error {
	ext := r.opts.External
	runner := &extproc.Runner{Command: ext.Command, Timeout: ext.TimeoutDuration(), Log: r.log}
	res, err := runner.Run(ctx, extproc.Job{
		Script:   ext.Script,
		Manifest: filepath.Join(r.report.Dir, MANIFEST_FILE),
		Output:   ext.Output,
		Flags: map[string]bool{
			"instancing": r.opts.Instancing,
			"wireframe":  r.opts.Wireframe.Enabled,
		},
	})
	if err != nil {
		return errors.Wrap(err, "external process")
	}
	r.report.External = &res
	if err := res.Err(); err != nil {
		r.log.WithFields(logrus.Fields{"status": res.Status, "exit_code": res.ExitCode}).Error("external process failed")
		return err
	}
	r.log.WithFields(logrus.Fields{"output": ext.Output, "duration": res.Duration}).Info("scene written")
	if !r.opts.KeepIntermediates {
		r.clean()
	}
	return nil
}

// clean removes the containers and the manifest once the renderer side step
// has consumed them.
func (r *run) clean() {
	paths := []string{MANIFEST_FILE, HIERARCHY_FILE}
	for _, f := range r.manifest.Files {
		paths = append(paths, filepath.FromSlash(f.Path))
	}
	for _, p := range paths {
		if err := os.Remove(filepath.Join(r.report.Dir, p)); err != nil && !os.IsNotExist(err) {
			r.log.WithError(err).Warn("could not remove intermediate file")
		}
	}
}
