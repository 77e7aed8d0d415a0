package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBytes(t *testing.T) {
	cases := map[string]int64{
		"":        0,
		"512":     512,
		"4MB":     4 * 1024 * 1024,
		"500kb":   500 * 1024,
		"1.5 K":   1536,
		"2G":      2 * 1024 * 1024 * 1024,
		" 1tb ":   1024 * 1024 * 1024 * 1024,
		"1.5MiB":  1536 * 1024,
		"2M/s":    2 * 1024 * 1024,
		"100 b/s": 100,
	}
	for in, want := range cases {
		got, err := ParseBytes(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, in := range []string{"abc", "10XB", "-5MB", "10ib", "5/s/s", "KB"} {
		_, err := ParseBytes(in)
		assert.Error(t, err, in)
	}
}

func TestHumanBytes(t *testing.T) {
	assert.Equal(t, "512.00B", HumanBytes(512))
	assert.Equal(t, "1.50KB", HumanBytes(1536))
	assert.Equal(t, "4.00MB/s", HumanRate(4*1024*1024))
}

func TestIsMagnet(t *testing.T) {
	assert.True(t, IsMagnet("magnet:?xt=urn:btih:abc"))
	assert.True(t, IsMagnet("  MAGNET:?xt=urn:btih:abc"))
	assert.False(t, IsMagnet("https://example.com/file.torrent"))
}
