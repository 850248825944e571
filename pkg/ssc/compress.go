// compress.go wires an optional compression layer ahead of framing,
// since chunking may be preceded by a general-purpose compression
// pass. klauspost/compress's zstd is used rather than stdlib
// compress/flate/gzip: it is the compression library this module's
// retrieval pack actually depends on, and its streaming
// encoder/decoder pool avoids re-initializing a dictionary per file.
package ssc

import (
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/shamirnfs/shamirnfs/pkg/ferr"
)

var (
	encoderOnce sync.Once
	encoder     *zstd.Encoder
	encoderErr  error

	decoderOnce sync.Once
	decoder     *zstd.Decoder
	decoderErr  error
)

func getEncoder() (*zstd.Encoder, error) {
	encoderOnce.Do(func() {
		encoder, encoderErr = zstd.NewWriter(nil)
	})
	return encoder, encoderErr
}

func getDecoder() (*zstd.Decoder, error) {
	decoderOnce.Do(func() {
		decoder, decoderErr = zstd.NewReader(nil)
	})
	return decoder, decoderErr
}

func compress(data []byte) ([]byte, error) {
	enc, err := getEncoder()
	if err != nil {
		return nil, ferr.Wrap(ferr.IOError, "init zstd encoder", err)
	}
	return enc.EncodeAll(data, make([]byte, 0, len(data))), nil
}

func decompress(data []byte) ([]byte, error) {
	dec, err := getDecoder()
	if err != nil {
		return nil, ferr.Wrap(ferr.IOError, "init zstd decoder", err)
	}
	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, ferr.Wrap(ferr.CorruptShares, "decompress shares", err)
	}
	return out, nil
}
