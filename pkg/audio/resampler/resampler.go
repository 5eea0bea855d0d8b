// Package resampler converts interleaved PCM between sample formats,
// channel layouts and sample rates.
//
// The rate conversion is a nearest-sample one: it is good enough to bring
// decoded tracks to a common analysis rate, it is not meant for
// high-fidelity playback.
package resampler

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/xaionaro-go/avsync/pkg/audio/types"
)

const (
	distanceStep = 10000
)

type Format struct {
	Channels   types.Channel
	SampleRate types.SampleRate
	PCMFormat  types.PCMFormat
}

func (f Format) FrameSize() uint {
	return uint(f.Channels) * f.PCMFormat.Size()
}

func (f Format) Validate() error {
	if f.Channels == 0 {
		return fmt.Errorf("the amount of channels is zero")
	}
	if f.SampleRate == 0 {
		return fmt.Errorf("the sample rate is zero")
	}
	if f.PCMFormat.Size() == 0 {
		return fmt.Errorf("unsupported PCM format: %v", f.PCMFormat)
	}
	return nil
}

type precalculated struct {
	inSampleSize    uint
	outSampleSize   uint
	inNumAvg        uint
	outNumRepeat    uint
	outDistanceStep uint64
}

type Resampler struct {
	inReader    io.Reader
	inFormat    Format
	outFormat   Format
	inDistance  uint64
	outDistance uint64
	locker      sync.Mutex
	buffer      []byte
	precalculated
}

var _ io.Reader = (*Resampler)(nil)

func NewResampler(
	inFormat Format,
	inReader io.Reader,
	outFormat Format,
) (*Resampler, error) {
	r := &Resampler{
		inReader:  inReader,
		inFormat:  inFormat,
		outFormat: outFormat,
	}
	err := r.init()
	if err != nil {
		return nil, fmt.Errorf("unable to initialize a resampler from %#+v to %#+v: %w", inFormat, outFormat, err)
	}
	return r, nil
}

func (r *Resampler) init() error {
	if err := r.inFormat.Validate(); err != nil {
		return fmt.Errorf("invalid input format: %w", err)
	}
	if err := r.outFormat.Validate(); err != nil {
		return fmt.Errorf("invalid output format: %w", err)
	}

	r.inSampleSize = r.inFormat.PCMFormat.Size()
	r.outSampleSize = r.outFormat.PCMFormat.Size()

	r.inNumAvg = 1
	r.outNumRepeat = 1
	if r.inFormat.Channels != r.outFormat.Channels {
		switch {
		case r.inFormat.Channels == 1:
			r.outNumRepeat = uint(r.outFormat.Channels)
		case r.outFormat.Channels == 1:
			r.inNumAvg = uint(r.inFormat.Channels)
		default:
			return fmt.Errorf("do not know how to convert %d channels to %d", r.inFormat.Channels, r.outFormat.Channels)
		}
	}

	sampleRateAdjust := float64(r.outFormat.SampleRate) / float64(r.inFormat.SampleRate)
	r.outDistanceStep = uint64(float64(distanceStep) / sampleRateAdjust)
	r.inDistance = 0
	r.outDistance = 0
	return nil
}

func (r *Resampler) Read(p []byte) (int, error) {
	r.locker.Lock()
	defer r.locker.Unlock()

	outFrameSize := uint64(r.outSampleSize) * uint64(r.outNumRepeat)
	inFrameSize := uint64(r.inSampleSize) * uint64(r.inNumAvg)

	maxOutFrames := uint64(len(p)) / outFrameSize
	if maxOutFrames == 0 {
		return 0, nil
	}

	framesToRead := uint64(float64(maxOutFrames) * float64(r.inFormat.SampleRate) / float64(r.outFormat.SampleRate))
	if framesToRead == 0 {
		framesToRead = 1
	}
	bytesToRead := framesToRead * inFrameSize
	if uint64(cap(r.buffer)) < bytesToRead {
		r.buffer = make([]byte, bytesToRead)
	}
	r.buffer = r.buffer[:bytesToRead]

	n, err := io.ReadFull(r.inReader, r.buffer)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = nil
	}
	r.buffer = r.buffer[:n]
	if n%int(inFrameSize) != 0 {
		return 0, fmt.Errorf("read a number of bytes (%d) that is not a multiple of %d", n, inFrameSize)
	}
	framesRead := uint64(n) / inFrameSize

	dstIdx := uint64(0)
	srcIdx := uint64(0)
	for srcIdx < framesRead && dstIdx < maxOutFrames {
		for r.inDistance < r.outDistance && srcIdx < framesRead {
			srcIdx++
			r.inDistance += distanceStep
		}
		if srcIdx >= framesRead {
			break
		}

		srcOffset := srcIdx * inFrameSize
		var sum float64
		for ch := uint64(0); ch < uint64(r.inNumAvg); ch++ {
			sum += decodeSample(r.inFormat.PCMFormat, r.buffer[srcOffset+ch*uint64(r.inSampleSize):])
		}
		v := sum / float64(r.inNumAvg)

		for dstIdx < maxOutFrames && r.outDistance <= r.inDistance {
			for rep := uint64(0); rep < uint64(r.outNumRepeat); rep++ {
				dstOffset := dstIdx*outFrameSize + rep*uint64(r.outSampleSize)
				encodeSample(r.outFormat.PCMFormat, p[dstOffset:], v)
			}
			dstIdx++
			r.outDistance += r.outDistanceStep
		}

		srcIdx++
		r.inDistance += distanceStep
	}

	return int(dstIdx * outFrameSize), err
}

// ReadAllMonoFloat32 reads the whole input, mixes it down to a single
// channel and converts it to the given sample rate.
func ReadAllMonoFloat32(
	in Format,
	inReader io.Reader,
	sampleRate types.SampleRate,
) ([]float32, error) {
	out := Format{
		Channels:   1,
		SampleRate: sampleRate,
		PCMFormat:  types.PCMFormatFloat32LE,
	}
	r, err := NewResampler(in, inReader, out)
	if err != nil {
		return nil, err
	}

	var samples []float32
	buf := make([]byte, 64*1024)
	for {
		n, err := r.Read(buf)
		for i := 0; i+4 <= n; i += 4 {
			samples = append(samples, math.Float32frombits(binary.LittleEndian.Uint32(buf[i:])))
		}
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			return samples, nil
		default:
			return samples, fmt.Errorf("unable to read: %w", err)
		}
	}
}

// Float32LEBytes serializes mono samples as f32le PCM.
func Float32LEBytes(samples []float32) []byte {
	b := make([]byte, len(samples)*4)
	for i, v := range samples {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b
}

func decodeSample(f types.PCMFormat, p []byte) float64 {
	switch f {
	case types.PCMFormatU8:
		return (float64(p[0]) - 128) / 128
	case types.PCMFormatS16LE:
		return float64(int16(binary.LittleEndian.Uint16(p))) / 32768
	case types.PCMFormatS16BE:
		return float64(int16(binary.BigEndian.Uint16(p))) / 32768
	case types.PCMFormatS24LE:
		return float64(signExtend24(uint32(p[0])|uint32(p[1])<<8|uint32(p[2])<<16)) / 8388608
	case types.PCMFormatS24BE:
		return float64(signExtend24(uint32(p[2])|uint32(p[1])<<8|uint32(p[0])<<16)) / 8388608
	case types.PCMFormatS32LE:
		return float64(int32(binary.LittleEndian.Uint32(p))) / 2147483648
	case types.PCMFormatS32BE:
		return float64(int32(binary.BigEndian.Uint32(p))) / 2147483648
	case types.PCMFormatS64LE:
		return float64(int64(binary.LittleEndian.Uint64(p))) / 9223372036854775808
	case types.PCMFormatS64BE:
		return float64(int64(binary.BigEndian.Uint64(p))) / 9223372036854775808
	case types.PCMFormatFloat32LE:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(p)))
	case types.PCMFormatFloat32BE:
		return float64(math.Float32frombits(binary.BigEndian.Uint32(p)))
	case types.PCMFormatFloat64LE:
		return math.Float64frombits(binary.LittleEndian.Uint64(p))
	case types.PCMFormatFloat64BE:
		return math.Float64frombits(binary.BigEndian.Uint64(p))
	default:
		panic(fmt.Sprintf("unknown format: %v", f))
	}
}

func signExtend24(v uint32) int32 {
	if v&0x800000 != 0 {
		v |= 0xff000000
	}
	return int32(v)
}

func clampInt(v float64, lo, hi float64) float64 {
	v = math.Round(v)
	if v > hi {
		return hi
	}
	if v < lo {
		return lo
	}
	return v
}

func encodeSample(f types.PCMFormat, p []byte, v float64) {
	switch f {
	case types.PCMFormatU8:
		p[0] = byte(clampInt(v*128+128, 0, 255))
	case types.PCMFormatS16LE:
		binary.LittleEndian.PutUint16(p, uint16(int16(clampInt(v*32768, math.MinInt16, math.MaxInt16))))
	case types.PCMFormatS16BE:
		binary.BigEndian.PutUint16(p, uint16(int16(clampInt(v*32768, math.MinInt16, math.MaxInt16))))
	case types.PCMFormatS24LE:
		val := int32(clampInt(v*8388608, -8388608, 8388607))
		p[0], p[1], p[2] = byte(val), byte(val>>8), byte(val>>16)
	case types.PCMFormatS24BE:
		val := int32(clampInt(v*8388608, -8388608, 8388607))
		p[0], p[1], p[2] = byte(val>>16), byte(val>>8), byte(val)
	case types.PCMFormatS32LE:
		binary.LittleEndian.PutUint32(p, uint32(int32(clampInt(v*2147483648, math.MinInt32, math.MaxInt32))))
	case types.PCMFormatS32BE:
		binary.BigEndian.PutUint32(p, uint32(int32(clampInt(v*2147483648, math.MinInt32, math.MaxInt32))))
	case types.PCMFormatS64LE:
		binary.LittleEndian.PutUint64(p, uint64(int64(v*math.MaxInt64)))
	case types.PCMFormatS64BE:
		binary.BigEndian.PutUint64(p, uint64(int64(v*math.MaxInt64)))
	case types.PCMFormatFloat32LE:
		binary.LittleEndian.PutUint32(p, math.Float32bits(float32(v)))
	case types.PCMFormatFloat32BE:
		binary.BigEndian.PutUint32(p, math.Float32bits(float32(v)))
	case types.PCMFormatFloat64LE:
		binary.LittleEndian.PutUint64(p, math.Float64bits(v))
	case types.PCMFormatFloat64BE:
		binary.BigEndian.PutUint64(p, math.Float64bits(v))
	default:
		panic(fmt.Sprintf("unknown format: %v", f))
	}
}
