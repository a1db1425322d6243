package nodeid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	testCases := []struct {
		name         string
		rawID        string
		expectErr    bool
		expectedAddr Address
	}{
		{
			name:         "simple address",
			rawID:        "object.boot",
			expectedAddr: Address{Kind: "object", Name: "boot"},
		},
		{
			name:         "name with dots",
			rawID:        "object.long_mode_start.asm",
			expectedAddr: Address{Kind: "object", Name: "long_mode_start.asm"},
		},
		{
			name:         "name with hyphen",
			rawID:        "image.os-x86_64",
			expectedAddr: Address{Kind: "image", Name: "os-x86_64"},
		},
		{
			name:      "error - empty string",
			rawID:     "",
			expectErr: true,
		},
		{
			name:      "error - no name",
			rawID:     "library",
			expectErr: true,
		},
		{
			name:      "error - empty name",
			rawID:     "library.",
			expectErr: true,
		},
		{
			name:      "error - uppercase kind",
			rawID:     "Library.kernel",
			expectErr: true,
		},
		{
			name:      "error - empty inner segment",
			rawID:     "object.a..b",
			expectErr: true,
		},
		{
			name:      "error - trailing dot",
			rawID:     "object.boot.",
			expectErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			addr, err := Parse(tc.rawID)
			if tc.expectErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expectedAddr, addr)
		})
	}
}

func TestMustParse(t *testing.T) {
	assert.Equal(t, New(KindBinary, "kernel"), MustParse("binary.kernel"))
	assert.Panics(t, func() { MustParse("nope") })
}
