package msgcodec

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressDecompressRoundTrip(t *testing.T) {
	inputs := []string{
		"hello",
		"",
		strings.Repeat("Lorem ipsum dolor sit amet, consectetur adipiscing elit. ", 20),
	}
	for _, input := range inputs {
		data := []byte(input)
		out, err := Decompress(Compress(data), Zstd)
		require.NoError(t, err)
		assert.Equal(t, len(data), len(out))
		assert.Equal(t, input, string(out))
	}
}

func TestEncode_BelowThresholdIsRaw(t *testing.T) {
	data := []byte(strings.Repeat("a", 100))
	out, c := Encode(data, 256)
	assert.Equal(t, None, c)
	assert.Equal(t, data, out)
}

func TestEncode_CompressesLargeRepetitive(t *testing.T) {
	data := []byte(strings.Repeat("tether ", 200))
	out, c := Encode(data, DefaultThreshold)
	assert.Equal(t, Zstd, c)
	assert.Less(t, len(out), len(data))

	back, err := Decompress(out, c)
	require.NoError(t, err)
	assert.Equal(t, data, back)
}

func TestEncode_KeepsIncompressibleRaw(t *testing.T) {
	// A short high-entropy payload does not shrink under zstd framing.
	data := []byte("q8Zt3vLx0Rw1Yp7Nk2Jm5Hs9Gd4Fc6Ba")
	out, c := Encode(data, 0)
	assert.Equal(t, None, c)
	assert.Equal(t, data, out)
}

func TestDecompressUnsupported(t *testing.T) {
	_, err := Decompress([]byte("x"), Compression(7))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported compression")
}

func TestCompressionString(t *testing.T) {
	assert.Equal(t, "none", None.String())
	assert.Equal(t, "zstd", Zstd.String())
	assert.Equal(t, "compression(9)", Compression(9).String())
}
