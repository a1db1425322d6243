package cache

import (
	"errors"
	"fmt"
	"os"
	"sort"
)

// Reason explains why a node is stale.
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonAlwaysRun       Reason = "always rebuilt"
	ReasonMissingStamp    Reason = "never built"
	ReasonKeyChanged      Reason = "inputs changed"
	ReasonOutputMissing   Reason = "output missing"
	ReasonOutputModified  Reason = "output modified"
	ReasonDependencyStale Reason = "dependency stale"
)

// Check compares a stamp against a freshly computed key and the outputs on
// disk. It returns ReasonNone when the node is fresh.
func Check(st *Stamp, key string, outputs []string) (Reason, error) {
	if st == nil {
		return ReasonMissingStamp, nil
	}
	if st.Key != key {
		return ReasonKeyChanged, nil
	}
	for _, out := range outputs {
		want, ok := st.Outputs[out]
		if !ok {
			return ReasonKeyChanged, nil
		}
		got, err := HashFile(out)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return ReasonOutputMissing, nil
			}
			return ReasonNone, err
		}
		if got != want {
			return ReasonOutputModified, nil
		}
	}
	return ReasonNone, nil
}

// Record hashes outputs and returns the stamp for a successful build.
func Record(id, key, targetHash string, outputs []string) (*Stamp, error) {
	st := &Stamp{Node: id, Key: key, Target: targetHash, Outputs: make(map[string]string, len(outputs))}
	sorted := append([]string(nil), outputs...)
	sort.Strings(sorted)
	for _, out := range sorted {
		sum, err := HashFile(out)
		if err != nil {
			return nil, fmt.Errorf("declared output %s not produced: %w", out, err)
		}
		st.Outputs[out] = sum
	}
	return st, nil
}
