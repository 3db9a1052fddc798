package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// ZstdExt is appended to compressed output file names
const ZstdExt = ".zst"

// CompressLevel maps 1..4 to zstd encoder levels (fastest to best)
func CompressLevel(level int) zstd.EncoderLevel {
	switch level {
	case 1:
		return zstd.SpeedFastest
	case 3:
		return zstd.SpeedBetterCompression
	case 4:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}

// NewZstdWriter wraps w in a zstd stream. Close flushes the frame but
// does not close w.
func NewZstdWriter(w io.Writer, level int) (io.WriteCloser, error) {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(CompressLevel(level)))
	if err != nil {
		return nil, fmt.Errorf("failed to create encoder: %w", err)
	}
	return enc, nil
}

// NewZstdReader decodes a zstd stream from r
func NewZstdReader(r io.Reader) (io.ReadCloser, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	return dec.IOReadCloser(), nil
}

// IsCompressed reports whether path names a zstd file
func IsCompressed(path string) bool {
	return strings.HasSuffix(path, ZstdExt)
}
