package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrInvalidWAV is returned for input that is not a supported mono WAV file.
var ErrInvalidWAV = errors.New("invalid WAV data")

const outputBitDepth = 16

// WAVE format tags
const (
	formatPCM   = 1
	formatFloat = 3
)

// Signal is a mono signal with samples scaled to [-1, 1].
type Signal struct {
	Samples    []float64
	SampleRate int
}

// Duration returns the signal length in time.
func (s Signal) Duration() time.Duration {
	if s.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(s.Samples)) / float64(s.SampleRate) * float64(time.Second))
}

// ReadWAV loads a mono PCM WAV file.
func ReadWAV(path string) (Signal, error) {
	f, err := os.Open(path)
	if err != nil {
		return Signal{}, fmt.Errorf("failed to open WAV file %s: %w", path, err)
	}
	defer f.Close()

	s, err := DecodeWAV(f)
	if err != nil {
		return Signal{}, fmt.Errorf("failed to decode WAV file %s: %w", path, err)
	}
	return s, nil
}

// DecodeWAV decodes mono 16, 24 or 32 bit integer PCM or 32 bit IEEE float
// WAV data. Other encodings fail with ErrInvalidWAV.
func DecodeWAV(r io.ReadSeeker) (Signal, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return Signal{}, fmt.Errorf("%w: missing RIFF/WAVE header", ErrInvalidWAV)
	}

	if dec.NumChans != 1 {
		return Signal{}, fmt.Errorf("%w: only mono is supported, got %d channels", ErrInvalidWAV, dec.NumChans)
	}

	if dec.SampleRate == 0 {
		return Signal{}, fmt.Errorf("%w: sample rate is 0", ErrInvalidWAV)
	}

	switch dec.WavAudioFormat {
	case formatPCM:
	case formatFloat:
		if dec.BitDepth != 32 {
			return Signal{}, fmt.Errorf("%w: unsupported float bit depth %d", ErrInvalidWAV, dec.BitDepth)
		}
		return decodeFloat32(dec)
	default:
		return Signal{}, fmt.Errorf("%w: unsupported audio format %d", ErrInvalidWAV, dec.WavAudioFormat)
	}

	switch dec.BitDepth {
	case 16, 24, 32:
	default:
		return Signal{}, fmt.Errorf("%w: unsupported bit depth %d", ErrInvalidWAV, dec.BitDepth)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return Signal{}, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
	}

	scale := float64(int64(1) << (dec.BitDepth - 1))
	samples := make([]float64, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = float64(v) / scale
	}

	return Signal{Samples: samples, SampleRate: int(dec.SampleRate)}, nil
}

// decodeFloat32 reads the data chunk as little endian float32 samples.
func decodeFloat32(dec *wav.Decoder) (Signal, error) {
	if err := dec.FwdToPCM(); err != nil {
		return Signal{}, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
	}

	raw := make([]byte, dec.PCMChunk.Size)
	if _, err := io.ReadFull(dec.PCMChunk, raw); err != nil {
		return Signal{}, fmt.Errorf("%w: short data chunk: %v", ErrInvalidWAV, err)
	}

	samples := make([]float64, len(raw)/4)
	for i := range samples {
		samples[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:])))
	}
	return Signal{Samples: samples, SampleRate: int(dec.SampleRate)}, nil
}

// EncodeWAV writes s as 16-bit PCM mono. Samples outside [-1, 1] are clipped.
func EncodeWAV(w io.WriteSeeker, s Signal) error {
	if s.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", s.SampleRate)
	}

	enc := wav.NewEncoder(w, s.SampleRate, outputBitDepth, 1, 1)

	data := make([]int, len(s.Samples))
	for i, v := range s.Samples {
		v = math.Max(-1, math.Min(1, v))
		data[i] = int(math.Round(v * math.MaxInt16))
	}

	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: 1,
			SampleRate:  s.SampleRate,
		},
		Data:           data,
		SourceBitDepth: outputBitDepth,
	}

	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("failed to write audio data: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to finalize WAV: %w", err)
	}
	return nil
}

// WriteWAV writes s to path as 16-bit PCM mono.
func WriteWAV(path string, s Signal) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create WAV file %s: %w", path, err)
	}
	if err := EncodeWAV(f, s); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// MaskSignal renders a speech mask as a 0/1 signal, handy for listening
// alongside the source.
func MaskSignal(mask []bool, sampleRate int) Signal {
	samples := make([]float64, len(mask))
	for i, v := range mask {
		if v {
			samples[i] = 1
		}
	}
	return Signal{Samples: samples, SampleRate: sampleRate}
}
