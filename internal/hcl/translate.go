package hcl

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/vk/kernforge/internal/config"
	"github.com/vk/kernforge/internal/ctxlog"
	"github.com/vk/kernforge/internal/target"
)

// translate copies every value set in root over the defaults in m.
func (l *Loader) translate(ctx context.Context, root *fileRoot, m *config.Model) error {
	logger := ctxlog.FromContext(ctx)

	set(&m.Name, root.Name)
	set(&m.BuildDir, root.BuildDir)

	if t := root.Target; t != nil {
		if t.Arch != nil {
			desc, ok := target.Default(*t.Arch)
			if !ok {
				return config.Errorf("target: unknown architecture %q", *t.Arch)
			}
			m.Target = desc
		}
		set(&m.Target.LLVMTarget, t.LLVMTarget)
		set(&m.Target.DataLayout, t.DataLayout)
		set(&m.Target.CodeModel, t.CodeModel)
		set(&m.Target.Features, t.Features)
		set(&m.Target.DisableRedZone, t.DisableRedZone)
	}

	if t := root.Trampoline; t != nil {
		set(&m.Trampoline.Dir, t.Dir)
		set(&m.Trampoline.Entry, t.Entry)
		set(&m.Trampoline.Marker, t.Marker)
		if t.Sources != nil {
			m.Trampoline.Sources = t.Sources
		}
	}

	if k := root.Kernel; k != nil {
		set(&m.Kernel.Dir, k.Dir)
		set(&m.Kernel.Crate, k.Crate)
		set(&m.Kernel.Profile, k.Profile)
		set(&m.Kernel.Format, k.Format)
		set(&m.Kernel.Lint, k.Lint)
		if k.Extensions != nil {
			m.Kernel.Extensions = k.Extensions
		}
		if k.Features != nil {
			m.Kernel.Features = k.Features
		}
	}

	if lk := root.Link; lk != nil {
		set(&m.Link.Entry, lk.Entry)
		set(&m.Link.GCSections, lk.GCSections)
		if len(lk.Sections) > 0 {
			sections, err := translateSections(lk.Sections, l.evalContext())
			if err != nil {
				return err
			}
			m.Link.Sections = sections
			logger.Debug("Using declared link layout.", "sections", len(sections))
		}
	}

	if img := root.Image; img != nil {
		set(&m.Image.Name, img.Name)
		set(&m.Image.Output, img.Output)
		if img.Name != nil && img.Output == nil {
			m.Image.Output = *img.Name + ".iso"
		}
		set(&m.Image.Timeout, img.Timeout)
	}

	if e := root.Emulator; e != nil {
		set(&m.Emulator.Binary, e.Binary)
		set(&m.Emulator.Memory, e.Memory)
		set(&m.Emulator.GDBPort, e.GDBPort)
		set(&m.Emulator.QMPSocket, e.QMPSocket)
		if e.Args != nil {
			m.Emulator.Args = e.Args
		}
	}
	return nil
}

func translateSections(blocks []sectionBlock, evalCtx *hcl.EvalContext) ([]config.Section, error) {
	out := make([]config.Section, 0, len(blocks))
	for _, b := range blocks {
		addr, err := evalSize(b.Address, evalCtx)
		if err != nil {
			return nil, config.Errorf("section %q: address: %v", b.Name, err)
		}
		align, err := evalSize(b.Align, evalCtx)
		if err != nil {
			return nil, config.Errorf("section %q: align: %v", b.Name, err)
		}
		s := config.Section{
			Name:    b.Name,
			Address: addr,
			Align:   align,
			Inputs:  b.Inputs,
		}
		set(&s.Keep, b.Keep)
		if len(s.Inputs) == 0 {
			s.Inputs = []string{b.Name, b.Name + ".*"}
		}
		out = append(out, s)
	}
	return out, nil
}

// evalSize evaluates a number, or a string holding a number in any Go base
// with an optional K or M suffix. A missing attribute yields zero.
func evalSize(expr hcl.Expression, evalCtx *hcl.EvalContext) (uint64, error) {
	if expr == nil {
		return 0, nil
	}
	val, diags := expr.Value(evalCtx)
	if diags.HasErrors() {
		return 0, diags
	}
	if val.IsNull() {
		return 0, nil
	}
	switch val.Type() {
	case cty.Number:
		var n uint64
		if err := gocty.FromCtyValue(val, &n); err != nil {
			return 0, err
		}
		return n, nil
	case cty.String:
		return ParseSize(val.AsString())
	default:
		return 0, fmt.Errorf("expected number or string, got %s", val.Type().FriendlyName())
	}
}

// ParseSize parses "1M", "4K", "0x100000" or "4096".
func ParseSize(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	mult := uint64(1)
	switch {
	case strings.HasSuffix(s, "M"):
		mult, s = 1<<20, strings.TrimSuffix(s, "M")
	case strings.HasSuffix(s, "K"):
		mult, s = 1<<10, strings.TrimSuffix(s, "K")
	}
	n, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	if n > math.MaxUint64/mult {
		return 0, fmt.Errorf("size %q overflows", s)
	}
	return n * mult, nil
}

// set overwrites *dst when src is non-nil.
func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
