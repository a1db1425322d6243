package link

import (
	"fmt"
	"strings"

	"github.com/vk/kernforge/internal/config"
)

// Section is one output section, placed in declaration order.
type Section struct {
	Name string
	// Address is the load address; zero follows the previous section.
	Address uint64
	Align   uint64
	Inputs  []string
	Keep    bool
}

// Layout is the explicit description of the kernel image's sections.
type Layout struct {
	// Entry is the ELF entry symbol.
	Entry    string
	Sections []Section
	// BootAddress is where the first section must be loaded.
	BootAddress uint64
}

// LayoutError reports a layout that cannot produce a bootable image.
type LayoutError struct {
	Problems []string
}

func (e *LayoutError) Error() string {
	return "invalid link layout: " + strings.Join(e.Problems, "; ")
}

// FromConfig converts the project's link block.
func FromConfig(l config.Link) Layout {
	sections := make([]Section, 0, len(l.Sections))
	for _, s := range l.Sections {
		sections = append(sections, Section{
			Name:    s.Name,
			Address: s.Address,
			Align:   s.Align,
			Inputs:  append([]string(nil), s.Inputs...),
			Keep:    s.Keep,
		})
	}
	return Layout{Entry: l.Entry, Sections: sections, BootAddress: config.BootLoadAddress}
}

// Validate checks the layout before any process runs.
func (l Layout) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if l.Entry == "" {
		add("entry symbol must not be empty")
	}
	if len(l.Sections) == 0 {
		add("at least one section is required")
		return &LayoutError{Problems: problems}
	}

	first := l.Sections[0]
	if first.Address != l.BootAddress {
		add("first section %s must be loaded at %#x, got %#x", first.Name, l.BootAddress, first.Address)
	}
	if !first.Keep {
		add("first section %s holds the boot header and must be kept", first.Name)
	}

	seen := make(map[string]bool)
	var last uint64
	for i, s := range l.Sections {
		if s.Name == "" {
			add("section %d has no name", i)
		} else if seen[s.Name] {
			add("duplicate section %s", s.Name)
		}
		seen[s.Name] = true

		if s.Align != 0 && s.Align&(s.Align-1) != 0 {
			add("section %s: alignment %d is not a power of two", s.Name, s.Align)
		}
		if len(s.Inputs) == 0 {
			add("section %s has no inputs", s.Name)
		}
		if s.Address != 0 {
			if i > 0 && s.Address <= last {
				add("section %s: address %#x does not follow %#x", s.Name, s.Address, last)
			}
			last = s.Address
		}
	}

	if len(problems) > 0 {
		return &LayoutError{Problems: problems}
	}
	return nil
}

// BootSection is the name of the section that must hold the boot header.
func (l Layout) BootSection() string {
	if len(l.Sections) == 0 {
		return ""
	}
	return l.Sections[0].Name
}
