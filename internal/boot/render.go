package boot

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"github.com/vk/kernforge/internal/fsutil"
)

//go:embed templates/*.asm.tmpl
var templateFS embed.FS

var templates = template.Must(template.New("boot").Funcs(template.FuncMap{
	"hex32": func(v uint32) string { return fmt.Sprintf("%#x", v) },
	"hex64": func(v uint64) string { return fmt.Sprintf("%#x", v) },
}).ParseFS(templateFS, "templates/*.asm.tmpl"))

// Source file names, in the order they are linked.
const (
	HeaderSource   = "multiboot_header.asm"
	BootSource     = "boot.asm"
	LongModeSource = "long_mode_start.asm"
)

// Params fills the trampoline templates.
type Params struct {
	Entry     string
	Marker    string
	StackSize int
}

type templateData struct {
	Params
	HeaderMagic     uint32
	BootloaderMagic uint32
	Arch            uint32
	MarkerQword     uint64
	VGABuffer       uint64
	Contract        Contract
}

// Sources renders the trampoline sources, keyed by file name.
func Sources(p Params) (map[string][]byte, error) {
	if p.Entry == "" {
		return nil, errors.New("boot: entry symbol must not be empty")
	}
	if p.StackSize == 0 {
		p.StackSize = 16 * 1024
	}
	marker, err := MarkerQword(p.Marker)
	if err != nil {
		return nil, fmt.Errorf("boot: %w", err)
	}
	data := templateData{
		Params:          p,
		HeaderMagic:     HeaderMagic,
		BootloaderMagic: BootloaderMagic,
		Arch:            ArchI386,
		MarkerQword:     marker,
		VGABuffer:       VGABuffer,
		Contract:        HandoffContract(p.Entry),
	}

	out := make(map[string][]byte)
	for _, name := range []string{HeaderSource, BootSource, LongModeSource} {
		var buf bytes.Buffer
		if err := templates.ExecuteTemplate(&buf, name+".tmpl", data); err != nil {
			return nil, fmt.Errorf("boot: render %s: %w", name, err)
		}
		out[name] = buf.Bytes()
	}
	return out, nil
}

// Render writes the trampoline sources into dir. Existing files are left
// alone; the names of the files actually written are returned sorted.
func Render(dir string, p Params) ([]string, error) {
	sources, err := Sources(p)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	var written []string
	for name, data := range sources {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			continue
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		if err := fsutil.WriteFileAtomic(path, data, 0o644); err != nil {
			return nil, err
		}
		written = append(written, name)
	}
	sort.Strings(written)
	return written, nil
}

// LinkOrder sorts trampoline sources so the header comes first, then the
// 32-bit entry, then everything else by name.
func LinkOrder(sources []string) []string {
	rank := func(s string) int {
		switch strings.ToLower(filepath.Base(s)) {
		case HeaderSource:
			return 0
		case BootSource:
			return 1
		default:
			return 2
		}
	}
	out := append([]string(nil), sources...)
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := rank(out[i]), rank(out[j])
		if ri != rj {
			return ri < rj
		}
		return out[i] < out[j]
	})
	return out
}
