// Package compress frames blob content with LZ4.
package compress

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
)

// DefaultLevel is the highest LZ4 compression level. LZ4 decompression
// speed does not depend on the level, so stored content pays for ratio only
// once at write time.
const DefaultLevel = 9

// Compressor compresses whole blobs into single LZ4 frames at a fixed
// level. A Compressor reuses its output buffer and is not safe for
// concurrent use.
type Compressor struct {
	level lz4.CompressionLevel
	buf   bytes.Buffer
}

// NewCompressor returns a Compressor for level 0 (fast) through 9.
func NewCompressor(level int) (*Compressor, error) {
	lvl, err := compressionLevel(level)
	if err != nil {
		return nil, err
	}
	return &Compressor{level: lvl}, nil
}

// Compress returns data as one LZ4 frame. The returned slice is owned by
// the caller.
func (c *Compressor) Compress(data []byte) ([]byte, error) {
	c.buf.Reset()
	w := lz4.NewWriter(&c.buf)
	if err := w.Apply(lz4.CompressionLevelOption(c.level), lz4.ChecksumOption(true)); err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	out := make([]byte, c.buf.Len())
	copy(out, c.buf.Bytes())
	return out, nil
}

// Decompress decodes one LZ4 frame.
func Decompress(data []byte) ([]byte, error) {
	out, err := io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
	if err != nil {
		return nil, fmt.Errorf("lz4 decompress: %w", err)
	}
	return out, nil
}

func compressionLevel(level int) (lz4.CompressionLevel, error) {
	switch level {
	case 0:
		return lz4.Fast, nil
	case 1:
		return lz4.Level1, nil
	case 2:
		return lz4.Level2, nil
	case 3:
		return lz4.Level3, nil
	case 4:
		return lz4.Level4, nil
	case 5:
		return lz4.Level5, nil
	case 6:
		return lz4.Level6, nil
	case 7:
		return lz4.Level7, nil
	case 8:
		return lz4.Level8, nil
	case 9:
		return lz4.Level9, nil
	default:
		return lz4.Fast, fmt.Errorf("lz4 level %d out of range 0..9", level)
	}
}
