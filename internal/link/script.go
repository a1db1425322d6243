package link

import (
	"fmt"
	"strings"
)

// RenderScript renders l as a GNU ld linker script.
func RenderScript(l Layout) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ENTRY(%s)\n\nSECTIONS {\n", l.Entry)
	for i, s := range l.Sections {
		if i > 0 {
			b.WriteString("\n")
		}
		if s.Address != 0 {
			fmt.Fprintf(&b, "    . = %#x;\n\n", s.Address)
		}
		head := "    " + s.Name + " :"
		if s.Align > 1 {
			head += fmt.Sprintf(" ALIGN(%#x)", s.Align)
		}
		b.WriteString(head + "\n    {\n")
		patterns := "*(" + strings.Join(s.Inputs, " ") + ")"
		if s.Keep {
			patterns = "KEEP(" + patterns + ")"
		}
		fmt.Fprintf(&b, "        %s\n    }\n", patterns)
	}
	b.WriteString("}\n")
	return b.String()
}
