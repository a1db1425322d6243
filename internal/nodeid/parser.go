package nodeid

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	kindRegex = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)
	nameRegex = regexp.MustCompile(`^[a-zA-Z0-9_][a-zA-Z0-9_.-]*$`)
)

// Parse creates an Address by parsing its canonical string representation.
func Parse(rawID string) (Address, error) {
	if rawID == "" {
		return Address{}, fmt.Errorf("identifier cannot be empty")
	}

	kind, name, ok := strings.Cut(rawID, ".")
	if !ok {
		return Address{}, fmt.Errorf("identifier %q has no name segment", rawID)
	}
	if !kindRegex.MatchString(kind) {
		return Address{}, fmt.Errorf("invalid kind segment: %q", kind)
	}
	if !nameRegex.MatchString(name) || strings.HasSuffix(name, ".") || strings.Contains(name, "..") {
		return Address{}, fmt.Errorf("invalid name segment: %q", name)
	}

	return Address{Kind: kind, Name: name}, nil
}

// MustParse is like Parse but panics on error. Intended for constants and tests.
func MustParse(rawID string) Address {
	addr, err := Parse(rawID)
	if err != nil {
		panic(err)
	}
	return addr
}
