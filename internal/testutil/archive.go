package testutil

import (
	"bytes"
	"fmt"
	"time"

	"github.com/blakesmith/ar"
)

// Archive returns a static library holding members in order, named m0.o,
// m1.o and so on. Odd-sized members are padded with a newline.
func Archive(members ...[]byte) []byte {
	var buf bytes.Buffer
	w := ar.NewWriter(&buf)
	_ = w.WriteGlobalHeader()
	for i, m := range members {
		if len(m)%2 == 1 {
			m = append(append([]byte(nil), m...), '\n')
		}
		_ = w.WriteHeader(&ar.Header{
			Name:    fmt.Sprintf("m%d.o", i),
			ModTime: time.Unix(0, 0),
			Mode:    0o644,
			Size:    int64(len(m)),
		})
		_, _ = w.Write(m)
	}
	return buf.Bytes()
}
