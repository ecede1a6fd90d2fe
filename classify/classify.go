package classify

import (
	"fmt"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/sirupsen/logrus"

	mxs "github.com/flywave/go-mxs"
	"github.com/flywave/go-mxs/names"
	"github.com/flywave/go-mxs/scene"
)

type Options struct {
	Instancing bool
	Wireframe  bool
	Evaluator  scene.MeshEvaluator
	Log        logrus.FieldLogger
}

type classifier struct {
	opts   Options
	scene  *scene.Scene
	log    logrus.FieldLogger
	nextID names.ID
	nodes  map[string]*Node
	roots  []*Node
}

// Classify builds the export tree of s. It does not modify s beyond
// preparing its index, so running it twice yields the same result.
func Classify(s *scene.Scene, opts Options) (*Result, error) {
	if err := s.Prepare(); err != nil {
		return nil, err
	}
	if opts.Evaluator == nil {
		opts.Evaluator = scene.FanEvaluator{}
	}
	c := &classifier{
		opts:   opts,
		scene:  s,
		log:    opts.Log,
		nextID: s.MaxID() + 1,
		nodes:  make(map[string]*Node),
	}
	if c.log == nil {
		c.log = logrus.StandardLogger()
	}
	for _, o := range s.Roots() {
		c.roots = append(c.roots, c.build(o))
	}
	if opts.Instancing {
		c.partition()
	}
	for _, root := range c.roots {
		promote(root)
	}
	for _, root := range c.roots {
		prune(root)
	}
	c.mergeDuplis()
	c.repairOrphans()
	c.applyOverrides()
	c.singleSun()
	c.attachSynthetic()

	r := &Result{Roots: c.roots}
	r.index()
	return r, nil
}

func (c *classifier) allocID() names.ID {
	id := c.nextID
	c.nextID++
	return id
}

func (c *classifier) walk(fn func(*Node)) {
	for _, root := range c.roots {
		root.Walk(fn)
	}
}

// build creates the node of o and its descendants and performs the type
// dispatch.
func (c *classifier) build(o *scene.Object) *Node {
	n := &Node{
		ID:      o.ID,
		Name:    o.Name,
		Object:  o,
		Matrix:  o.Matrix.Mat4(),
		Visible: c.scene.Visible(o),
	}
	n.Type = c.dispatch(n)
	n.Export = n.Visible && n.Type != mxs.OTHER
	if n.Type == mxs.CAMERA && o.Name == c.scene.Camera {
		n.ActiveCamera = true
		n.Export = true
	}
	c.nodes[o.Name] = n
	for _, child := range c.scene.Children(o.Name) {
		n.addChild(c.build(child))
	}
	return n
}

func (c *classifier) dispatch(n *Node) mxs.ExportType {
	o := n.Object
	switch {
	case o.Type == scene.OBJECT_MESH || o.Type.Convertible():
		return c.evaluate(n)
	case o.Type == scene.OBJECT_EMPTY:
		switch {
		case o.Reference != nil:
			return mxs.REFERENCE
		case o.Volumetrics != nil:
			return mxs.VOLUMETRICS
		case o.Sea != nil:
			return mxs.SEA
		}
		return mxs.EMPTY
	case o.Type == scene.OBJECT_CAMERA:
		return mxs.CAMERA
	case o.Type == scene.OBJECT_LAMP && o.Lamp == scene.LAMP_SUN:
		return mxs.SUN
	}
	return mxs.OTHER
}

// evaluate triangulates the geometry of a mesh candidate. Objects without
// polygons are excluded without notice.
func (c *classifier) evaluate(n *Node) mxs.ExportType {
	o := n.Object
	data := c.scene.Mesh(o)
	if data == nil {
		return mxs.OTHER
	}
	quads := false
	if sub := o.Subdivision(); sub != nil && sub.Scheme != scene.SCHEME_LOOP {
		quads = true
	}
	m, err := c.opts.Evaluator.Evaluate(o, data, quads)
	if err != nil {
		c.log.WithField("object", o.Name).WithError(err).Error("mesh evaluation failed")
		return mxs.OTHER
	}
	if m.PolygonCount() == 0 {
		return mxs.OTHER
	}
	n.Mesh = m
	n.Data = o.Data
	return mxs.MESH
}

// partition groups mesh nodes by data-block. The smallest name of each group
// becomes the base.
func (c *classifier) partition() {
	groups := make(map[string][]*Node)
	var keys []string
	c.walk(func(n *Node) {
		if n.Type != mxs.MESH || n.Data == "" {
			return
		}
		if _, ok := groups[n.Data]; !ok {
			keys = append(keys, n.Data)
		}
		groups[n.Data] = append(groups[n.Data], n)
	})
	for _, k := range keys {
		g := groups[k]
		if len(g) < 2 {
			continue
		}
		sortNodes(g)
		base := g[0]
		base.Type = mxs.BASE_INSTANCE
		for _, n := range g[1:] {
			n.Type = mxs.INSTANCE
			n.Base = base
			n.Mesh = nil
		}
	}
}

func sortNodes(ns []*Node) {
	sort.SliceStable(ns, func(i, j int) bool { return scene.SortKey(ns[i].Name, ns[j].Name) })
}

// promote marks ineligible nodes with an eligible descendant as exported
// empties so the hierarchy stays connected.
func promote(n *Node) bool {
	found := false
	for _, c := range n.Children {
		if promote(c) {
			found = true
		}
	}
	if !n.Export && found {
		n.Type = mxs.EMPTY
		n.Export = true
		n.Promoted = true
		n.Base = nil
	}
	return n.Export
}

// prune drops exported empties whose subtree holds no exported appendable
// node.
func prune(n *Node) {
	for _, c := range n.Children {
		prune(c)
	}
	if n.Export && n.Type == mxs.EMPTY {
		if !n.hasDescendant(func(d *Node) bool { return d.Export && d.Type.Appendable() }) {
			n.Export = false
		}
	}
}

// mergeDuplis adds one instance per generated duplicate below its
// duplicator.
func (c *classifier) mergeDuplis() {
	var duplicators []*Node
	c.walk(func(n *Node) {
		if n.Object != nil && n.Visible && n.Object.DupliType != scene.DUPLI_NONE && len(n.Object.Duplis) > 0 {
			duplicators = append(duplicators, n)
		}
	})
	for _, d := range duplicators {
		added := 0
		for i, dp := range d.Object.Duplis {
			target := c.nodes[dp.Object]
			log := c.log.WithFields(logrus.Fields{"object": d.Name, "dupli": dp.Object})
			if target == nil {
				log.Warn("dupli refers to an unknown object")
				continue
			}
			base := target
			switch target.Type {
			case mxs.MESH:
				target.Type = mxs.BASE_INSTANCE
			case mxs.BASE_INSTANCE:
			case mxs.INSTANCE:
				base = target.Base
			default:
				log.WithField("type", target.Type).Warn("dupli of a non mesh object skipped")
				continue
			}
			inst := &Node{
				ID:      c.allocID(),
				Name:    fmt.Sprintf("%s-%s-%d", d.Name, dp.Object, i),
				Type:    mxs.INSTANCE,
				Export:  true,
				Visible: true,
				Object:  target.Object,
				Matrix:  dp.Matrix.Mat4(),
				Data:    base.Data,
				Base:    base,
				Dupli:   true,
			}
			d.addChild(inst)
			added++
		}
		if added > 0 {
			for p := d; p != nil; p = p.Parent {
				if p.Export {
					continue
				}
				if p.Type != mxs.EMPTY {
					p.Type = mxs.EMPTY
					p.Promoted = true
					p.Base = nil
				}
				p.Export = true
			}
		}
	}
}

// repairOrphans promotes the smallest exported instance of every group
// whose base is not exported.
func (c *classifier) repairOrphans() {
	groups := make(map[*Node][]*Node)
	var bases []*Node
	c.walk(func(n *Node) {
		if n.Type != mxs.INSTANCE || !n.Export {
			return
		}
		if _, ok := groups[n.Base]; !ok {
			bases = append(bases, n.Base)
		}
		groups[n.Base] = append(groups[n.Base], n)
	})
	for _, base := range bases {
		if base.Export && base.Type == mxs.BASE_INSTANCE {
			continue
		}
		g := groups[base]
		sortNodes(g)
		nb := g[0]
		nb.Type = mxs.BASE_INSTANCE
		nb.Base = nil
		// the promoted node carries its own subdivision settings
		nb.Mesh = c.meshOf(nb)
		if nb.Mesh == nil {
			nb.Mesh = c.meshOf(base)
		}
		c.log.WithFields(logrus.Fields{"object": nb.Name, "base": base.Name}).
			Info("instance promoted to base")
		for _, n := range g[1:] {
			n.Base = nb
		}
	}
}

// meshOf returns the evaluated geometry of n, evaluating it when n gave it
// up as an instance.
func (c *classifier) meshOf(n *Node) *scene.EvaluatedMesh {
	if n.Mesh != nil {
		return n.Mesh
	}
	o := n.Object
	data := c.scene.Mesh(o)
	if data == nil {
		return nil
	}
	quads := false
	if sub := o.Subdivision(); sub != nil && sub.Scheme != scene.SCHEME_LOOP {
		quads = true
	}
	m, err := c.opts.Evaluator.Evaluate(o, data, quads)
	if err != nil {
		c.log.WithField("object", o.Name).WithError(err).Error("mesh evaluation failed")
		return nil
	}
	return m
}

// applyOverrides demotes instances that request their own geometry, and
// bases left without instances.
func (c *classifier) applyOverrides() {
	used := make(map[*Node]bool)
	c.walk(func(n *Node) {
		if n.Type != mxs.INSTANCE {
			return
		}
		if !n.Dupli && n.Object.OverrideInstancing {
			n.Type = mxs.MESH
			n.Mesh = c.meshOf(n)
			n.Base = nil
			return
		}
		if n.Export {
			used[n.Base] = true
		}
	})
	c.walk(func(n *Node) {
		if n.Type == mxs.BASE_INSTANCE && !used[n] {
			n.Type = mxs.MESH
		}
	})
}

// singleSun keeps the first exported sun by name.
func (c *classifier) singleSun() {
	var suns []*Node
	c.walk(func(n *Node) {
		if n.Type == mxs.SUN && n.Export {
			suns = append(suns, n)
		}
	})
	sortNodes(suns)
	for _, n := range suns[min(1, len(suns)):] {
		n.Export = false
		c.log.WithFields(logrus.Fields{"object": n.Name, "sun": suns[0].Name}).
			Warn("more than one sun, only the first is exported")
	}
}

// attachSynthetic adds modifier, particle and wireframe nodes below their
// owners.
func (c *classifier) attachSynthetic() {
	var owners []*Node
	var geometry []*Node
	c.walk(func(n *Node) {
		if n.Synthetic() || !n.Export {
			return
		}
		switch n.Type {
		case mxs.MESH, mxs.BASE_INSTANCE, mxs.INSTANCE:
			owners = append(owners, n)
			geometry = append(geometry, n)
		}
	})
	for _, n := range owners {
		o := n.Object
		for i := range o.Modifiers {
			m := &o.Modifiers[i]
			var t mxs.ExportType
			switch m.Type {
			case scene.MODIFIER_SUBDIVISION:
				t = mxs.SUBDIVISION
			case scene.MODIFIER_SCATTER:
				t = mxs.SCATTER
			case scene.MODIFIER_GRASS:
				t = mxs.GRASS
			default:
				c.log.WithFields(logrus.Fields{"object": n.Name, "modifier": m.Name}).
					Warn("unsupported modifier skipped")
				continue
			}
			n.addChild(&Node{
				ID:       c.allocID(),
				Name:     fmt.Sprintf("%s-%s", n.Name, modifierName(m, i)),
				Type:     t,
				Export:   true,
				Visible:  true,
				Object:   o,
				Matrix:   n.Matrix,
				Modifier: m,
			})
		}
		for i := range o.ParticleSystems {
			ps := &o.ParticleSystems[i]
			var t mxs.ExportType
			switch ps.Kind {
			case scene.PARTICLE_EMITTER:
				t = mxs.PARTICLES
			case scene.PARTICLE_HAIR:
				t = mxs.HAIR
			case scene.PARTICLE_CLONER:
				t = mxs.CLONER
			default:
				c.log.WithFields(logrus.Fields{"object": n.Name, "system": ps.Name}).
					Warn("unsupported particle system skipped")
				continue
			}
			name := ps.Name
			if name == "" {
				name = fmt.Sprintf("particles%d", i)
			}
			n.addChild(&Node{
				ID:             c.allocID(),
				Name:           fmt.Sprintf("%s-%s", n.Name, name),
				Type:           t,
				Export:         true,
				Visible:        true,
				Object:         o,
				Matrix:         n.Matrix,
				ParticleSystem: ps,
			})
		}
	}
	if c.opts.Wireframe && len(geometry) > 0 {
		c.roots = append(c.roots, &Node{
			ID:      c.allocID(),
			Name:    "wireframe",
			Type:    mxs.WIREFRAME,
			Export:  true,
			Visible: true,
			Matrix:  mgl64.Ident4(),
		})
	}
}

func modifierName(m *scene.Modifier, i int) string {
	if m.Name != "" {
		return m.Name
	}
	return fmt.Sprintf("%s%d", m.Type, i)
}
