package volume

import (
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// ErrUnknownCodec is returned for a codec name that is not supported.
var ErrUnknownCodec = errors.New("unknown volume codec")

// Codec names the compression applied to a volume payload.
type Codec string

const (
	None Codec = "none"
	Zstd Codec = "zstd"
	S2   Codec = "s2"
	LZ4  Codec = "lz4"
)

// Codecs lists every supported codec.
func Codecs() []Codec {
	return []Codec{None, Zstd, S2, LZ4}
}

// ParseCodec resolves a codec name; the empty string selects Zstd.
func ParseCodec(name string) (Codec, error) {
	if name == "" {
		return Zstd, nil
	}
	for _, c := range Codecs() {
		if string(c) == name {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCodec, name)
}

var zstdDecoderPool = sync.Pool{
	New: func() any {
		decoder, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		if err != nil {
			panic(fmt.Sprintf("failed to create zstd decoder for pool: %v", err))
		}
		return decoder
	},
}

var zstdEncoderPool = sync.Pool{
	New: func() any {
		encoder, err := zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.SpeedDefault),
			zstd.WithEncoderCRC(false), // the header checksum covers the payload
		)
		if err != nil {
			panic(fmt.Sprintf("failed to create zstd encoder for pool: %v", err))
		}
		return encoder
	},
}

var lz4CompressorPool = sync.Pool{
	New: func() any {
		return &lz4.Compressor{}
	},
}

func (c Codec) compress(raw []byte) ([]byte, error) {
	switch c {
	case None:
		return raw, nil
	case Zstd:
		encoder := zstdEncoderPool.Get().(*zstd.Encoder)
		defer zstdEncoderPool.Put(encoder)
		return encoder.EncodeAll(raw, nil), nil
	case S2:
		return s2.Encode(nil, raw), nil
	case LZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(raw)))
		lc := lz4CompressorPool.Get().(*lz4.Compressor)
		defer lz4CompressorPool.Put(lc)
		n, err := lc.CompressBlock(raw, dst)
		if err != nil {
			return nil, fmt.Errorf("lz4 compression failed: %w", err)
		}
		return dst[:n], nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, string(c))
}

// decompress restores a payload whose uncompressed length is known from the
// header.
func (c Codec) decompress(data []byte, size int) ([]byte, error) {
	var (
		raw []byte
		err error
	)
	switch c {
	case None:
		raw = data
	case Zstd:
		decoder := zstdDecoderPool.Get().(*zstd.Decoder)
		defer zstdDecoderPool.Put(decoder)
		raw, err = decoder.DecodeAll(data, make([]byte, 0, size))
		if err != nil {
			return nil, fmt.Errorf("zstd decompression failed: %w", err)
		}
	case S2:
		raw, err = s2.Decode(nil, data)
		if err != nil {
			return nil, fmt.Errorf("s2 decompression failed: %w", err)
		}
	case LZ4:
		raw = make([]byte, size)
		n, err := lz4.UncompressBlock(data, raw)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompression failed: %w", err)
		}
		raw = raw[:n]
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, string(c))
	}
	if len(raw) != size {
		return nil, fmt.Errorf("%w: payload is %d bytes, header declares %d", ErrFormat, len(raw), size)
	}
	return raw, nil
}
