package featurecache

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/OneOfOne/xxhash"
	"github.com/xaionaro-go/avsync/pkg/features"
)

const keyPrefix = "features/v1/"

// Key identifies the features of given samples extracted with a given
// configuration.
type Key uint64

func (k Key) String() string {
	return fmt.Sprintf("%016x", uint64(k))
}

func (k Key) bytes() []byte {
	b := make([]byte, len(keyPrefix)+8)
	copy(b, keyPrefix)
	binary.BigEndian.PutUint64(b[len(keyPrefix):], uint64(k))
	return b
}

func KeyFor(samples []float32, sampleRate int, cfg features.Config) Key {
	h := xxhash.New64()
	buf := make([]byte, 8)
	writeUint64 := func(v uint64) {
		binary.LittleEndian.PutUint64(buf, v)
		_, _ = h.Write(buf)
	}

	writeUint64(uint64(sampleRate))
	writeUint64(uint64(cfg.FrameSize))
	writeUint64(uint64(cfg.HopSize))
	writeUint64(uint64(cfg.MaxDuration))
	writeUint64(uint64(cfg.MFCCStride))
	writeUint64(uint64(cfg.NumMFCC))
	writeUint64(uint64(cfg.NumMelFilters))
	writeUint64(math.Float64bits(cfg.MinMelFreq))
	writeUint64(math.Float64bits(cfg.OnsetThreshold))
	writeUint64(math.Float64bits(cfg.OnsetRatio))
	writeUint64(uint64(len(samples)))

	chunk := make([]byte, 0, 4*4096)
	for _, v := range samples {
		chunk = binary.LittleEndian.AppendUint32(chunk, math.Float32bits(v))
		if len(chunk) == cap(chunk) {
			_, _ = h.Write(chunk)
			chunk = chunk[:0]
		}
	}
	_, _ = h.Write(chunk)
	return Key(h.Sum64())
}
