package builder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/vk/kernforge/internal/artifact"
	"github.com/vk/kernforge/internal/boot"
	"github.com/vk/kernforge/internal/cache"
	"github.com/vk/kernforge/internal/config"
	"github.com/vk/kernforge/internal/ctxlog"
	"github.com/vk/kernforge/internal/dag"
	"github.com/vk/kernforge/internal/fsutil"
	"github.com/vk/kernforge/internal/iso"
	"github.com/vk/kernforge/internal/libbuild"
	"github.com/vk/kernforge/internal/link"
	"github.com/vk/kernforge/internal/nodeid"
	"github.com/vk/kernforge/internal/toolchain"
)

// Target names accepted on the command line.
const (
	TargetKernel = "kernel"
	TargetLink   = "link"
	TargetISO    = "iso"
	TargetRun    = "run"
	TargetDebug  = "debug"
)

// Well-known node addresses.
var (
	LibraryNode = nodeid.New(nodeid.KindLibrary, "kernel")
	BinaryNode  = nodeid.New(nodeid.KindBinary, "kernel")
)

// StampDir is where stamps live, relative to the build directory.
const StampDir = ".kernforge/stamps"

// Project is a model together with its artifact graph.
type Project struct {
	Model  *config.Model
	Graph  *dag.Graph
	Stamps *cache.Store
	image  nodeid.Address
}

// Build constructs a complete, validated artifact graph from a model.
func Build(ctx context.Context, m *config.Model, tc *toolchain.Environment) (*Project, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Build: Starting graph construction.")

	if err := m.Validate(); err != nil {
		return nil, err
	}
	layout := link.FromConfig(m.Link)
	if err := layout.Validate(); err != nil {
		var lerr *link.LayoutError
		if errors.As(err, &lerr) {
			return nil, &config.Error{Path: m.File, Problems: prefixed("link: ", lerr.Problems)}
		}
		return nil, err
	}

	p := &Project{
		Model:  m,
		Graph:  dag.New(),
		Stamps: cache.NewStore(m.BuildPath(StampDir)),
		image:  nodeid.New(nodeid.KindImage, m.Image.Name),
	}
	if _, err := nodeid.Parse(p.image.String()); err != nil {
		return nil, &config.Error{Path: m.File, Problems: []string{fmt.Sprintf("image: name %q is not a valid identifier", m.Image.Name)}}
	}

	objects, err := p.addObjects(tc)
	if err != nil {
		return nil, err
	}
	logger.Debug("Build: Object nodes created.", "count", len(objects))

	lib, err := p.addLibrary(tc)
	if err != nil {
		return nil, err
	}
	bin, err := p.addBinary(tc, layout, objects, lib)
	if err != nil {
		return nil, err
	}
	if err := p.addImage(tc, bin); err != nil {
		return nil, err
	}

	if err := p.Graph.Link(); err != nil {
		return nil, fmt.Errorf("error linking artifact graph: %w", err)
	}
	if err := p.Graph.DetectCycles(); err != nil {
		return nil, fmt.Errorf("error validating artifact graph: %w", err)
	}

	logger.Debug("Build: Graph construction successful.", "nodes", p.Graph.Len())
	return p, nil
}

// Resolve maps a command-line target to the node that satisfies it.
func (p *Project) Resolve(name string) (string, error) {
	switch name {
	case TargetKernel:
		return LibraryNode.String(), nil
	case TargetLink:
		return BinaryNode.String(), nil
	case "", TargetISO, TargetRun, TargetDebug:
		return p.image.String(), nil
	}
	if _, ok := p.Graph.Node(name); ok {
		return name, nil
	}
	return "", config.Errorf("unknown target %q", name)
}

// ImageNode is the address of the disc image node.
func (p *Project) ImageNode() nodeid.Address {
	return p.image
}

func (p *Project) add(n *artifact.Node) error {
	if err := p.Graph.AddNode(n); err != nil {
		return &config.Error{Path: p.Model.File, Problems: []string{err.Error()}}
	}
	return nil
}

// trampolineSources lists the assembly sources in link order.
func (p *Project) trampolineSources() ([]string, error) {
	m := p.Model
	dir := m.Path(m.Trampoline.Dir)

	var sources []string
	if len(m.Trampoline.Sources) == 0 {
		found, err := fsutil.FindFiles(dir, []string{".asm"})
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, &config.Error{Path: m.File, Problems: []string{fmt.Sprintf("trampoline: directory %s does not exist", dir)}}
			}
			return nil, err
		}
		sources = found
	} else {
		for _, s := range m.Trampoline.Sources {
			path := filepath.Join(dir, s)
			if ok, err := fsutil.Exists(path); err != nil {
				return nil, err
			} else if !ok {
				return nil, &config.Error{Path: m.File, Problems: []string{fmt.Sprintf("trampoline: source %s does not exist", path)}}
			}
			sources = append(sources, path)
		}
	}
	if len(sources) == 0 {
		return nil, &config.Error{Path: m.File, Problems: []string{fmt.Sprintf("trampoline: no .asm sources in %s", dir)}}
	}
	return boot.LinkOrder(sources), nil
}

func (p *Project) addObjects(tc *toolchain.Environment) ([]*artifact.Node, error) {
	m := p.Model
	sources, err := p.trampolineSources()
	if err != nil {
		return nil, err
	}

	nodes := make([]*artifact.Node, 0, len(sources))
	for _, src := range sources {
		stem := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
		addr := nodeid.New(nodeid.KindObject, stem)
		if _, err := nodeid.Parse(addr.String()); err != nil {
			return nil, &config.Error{Path: m.File, Problems: []string{fmt.Sprintf("trampoline: source %s: %v", src, err)}}
		}

		action := &boot.AssembleAction{
			Source: src,
			Output: m.BuildPath("boot", stem+".o"),
			Format: m.Target.NASMFormat(),
		}
		n := artifact.New(addr, artifact.Object)
		n.Sources = []string{src}
		n.Outputs = []string{action.Output}
		n.Target = &m.Target
		n.Fingerprint = slices.Concat(tc.Fingerprint(toolchain.ToolAssembler), action.Args())
		n.Action = action
		if err := p.add(n); err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func (p *Project) addLibrary(tc *toolchain.Environment) (*artifact.Node, error) {
	m := p.Model
	dir := m.Path(m.Kernel.Dir)

	skip := []string{filepath.Base(m.Path(m.BuildDir)), "target", ".git"}
	sources, err := fsutil.FindFiles(dir, m.Kernel.Extensions, skip...)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &config.Error{Path: m.File, Problems: []string{fmt.Sprintf("kernel: directory %s does not exist", dir)}}
		}
		return nil, err
	}
	if len(sources) == 0 {
		return nil, &config.Error{Path: m.File, Problems: []string{fmt.Sprintf("kernel: no sources in %s", dir)}}
	}

	action := &libbuild.Action{
		Dir:       dir,
		Crate:     m.Kernel.Crate,
		Target:    m.Target,
		SpecDir:   m.BuildPath("target"),
		TargetDir: m.BuildPath("cargo"),
		Profile:   m.Kernel.Profile,
		Features:  m.Kernel.Features,
		Format:    m.Kernel.Format,
		Lint:      m.Kernel.Lint,
		Output:    m.BuildPath("kernel", "lib"+m.Kernel.Crate+".a"),
	}
	n := artifact.New(LibraryNode, artifact.StaticLibrary)
	n.Sources = sources
	n.Outputs = []string{action.Output}
	n.Target = &m.Target
	n.Fingerprint = tc.Fingerprint(toolchain.ToolKernel)
	for _, step := range action.Steps() {
		n.Fingerprint = append(n.Fingerprint, strings.Join(step, " "))
	}
	n.Action = action
	return n, p.add(n)
}

func (p *Project) addBinary(tc *toolchain.Environment, layout link.Layout, objects []*artifact.Node, lib *artifact.Node) (*artifact.Node, error) {
	m := p.Model

	action := &link.Action{
		Layout:      layout,
		GCSections:  m.Link.GCSections,
		Target:      m.Target,
		KernelEntry: m.Trampoline.Entry,
		Library:     lib.Outputs[0],
		Script:      m.BuildPath("linker.ld"),
		Output:      m.BuildPath("kernel.bin"),
	}
	n := artifact.New(BinaryNode, artifact.LinkedBinary)
	for _, obj := range objects {
		action.Objects = append(action.Objects, obj.Outputs[0])
		n.Deps = append(n.Deps, obj.Address())
	}
	n.Deps = append(n.Deps, lib.Address())

	n.Outputs = []string{action.Output}
	n.Target = &m.Target
	n.Fingerprint = slices.Concat(tc.Fingerprint(toolchain.ToolLinker), []string{link.RenderScript(layout), m.Trampoline.Entry}, action.Args())
	n.Action = action
	return n, p.add(n)
}

func (p *Project) addImage(tc *toolchain.Environment, bin *artifact.Node) error {
	m := p.Model
	action := &iso.Action{
		Kernel:  bin.Outputs[0],
		Name:    m.Name,
		Timeout: m.Image.Timeout,
		Scratch: m.BuildPath("iso"),
		Output:  m.ImagePath(),
	}
	n := artifact.New(p.image, artifact.DiscImage)
	n.Deps = []nodeid.Address{bin.Address()}
	n.Outputs = []string{action.Output}
	n.AlwaysRun = true
	n.Atomic = true
	n.Fingerprint = append(tc.Fingerprint(toolchain.ToolRescue), iso.Menu(m.Name, m.Image.Timeout))
	n.Action = action
	return p.add(n)
}

func prefixed(prefix string, in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = prefix + s
	}
	return out
}
