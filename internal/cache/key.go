package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
)

// KeyInput is everything that determines a node's key.
type KeyInput struct {
	Kind        string
	TargetHash  string
	Fingerprint []string
	// Sources maps source path to content digest.
	Sources map[string]string
	// Deps maps dependency ID to that dependency's key.
	Deps map[string]string
}

// Key returns the hex sha256 over in. Map entries are written in sorted
// order and every field is length-prefixed, so the result depends only on
// content.
func Key(in KeyInput) string {
	h := sha256.New()
	field := func(tag, v string) {
		fmt.Fprintf(h, "%s:%d:", tag, len(v))
		io.WriteString(h, v)
	}

	field("kind", in.Kind)
	field("target", in.TargetHash)
	for _, fp := range in.Fingerprint {
		field("fp", fp)
	}
	for _, p := range sortedKeys(in.Sources) {
		field("src", p)
		field("sum", in.Sources[p])
	}
	for _, id := range sortedKeys(in.Deps) {
		field("dep", id)
		field("key", in.Deps[id])
	}
	return hex.EncodeToString(h.Sum(nil))
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
