// Package analysis turns a raw audio recording into structured musical
// features: duration, tempo, perceptual energy, spectral shape, a beat
// timeline and coarse structural boundaries.
package analysis

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
)

// Signal is a decoded mono PCM signal. It is immutable once decoded: every
// later stage reads it, none writes it.
type Signal struct {
	Samples    []float64
	SampleRate int
}

// Duration returns the signal length in seconds.
func (s Signal) Duration() float64 {
	if s.SampleRate <= 0 {
		return 0
	}
	return float64(len(s.Samples)) / float64(s.SampleRate)
}

// Input is a single decodable audio resource: a name, its binary content and
// its declared MIME type. The MIME type wins over the file extension when
// both are present.
type Input struct {
	Name string
	Data []byte
	MIME string
}

// DecodeInput decodes an audio resource into a mono Signal.
// Multi-channel sources are downmixed by averaging channels.
func DecodeInput(in Input) (Signal, error) {
	format := formatFor(in.MIME, in.Name)
	switch format {
	case "wav":
		return decodeWAV(in.Data)
	case "mp3":
		return decodeMP3(in.Data)
	default:
		return Signal{}, &DecodeError{Format: format, Err: fmt.Errorf("unsupported audio format")}
	}
}

// LoadAudioMono loads an audio file from disk and decodes it to a mono Signal.
func LoadAudioMono(path string) (Signal, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Signal{}, &DecodeError{Format: strings.TrimPrefix(filepath.Ext(path), "."), Err: err}
	}
	return DecodeInput(Input{Name: filepath.Base(path), Data: data})
}

// formatFor resolves the decode format from a declared MIME type, falling
// back to the file extension.
func formatFor(mimeType, name string) string {
	switch strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0])) {
	case "audio/wav", "audio/x-wav", "audio/wave", "audio/vnd.wave":
		return "wav"
	case "audio/mpeg", "audio/mp3":
		return "mp3"
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".wav":
		return "wav"
	case ".mp3":
		return "mp3"
	}
	if ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), "."); ext != "" {
		return ext
	}
	return mimeType
}

// decodeWAV decodes a RIFF/WAVE payload to a mono Signal.
func decodeWAV(data []byte) (Signal, error) {
	d := wav.NewDecoder(bytes.NewReader(data))
	if !d.IsValidFile() {
		return Signal{}, &DecodeError{Format: "wav", Err: errors.New("not a valid RIFF/WAVE file")}
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return Signal{}, &DecodeError{Format: "wav", Err: err}
	}
	if buf.Format == nil || buf.Format.SampleRate <= 0 {
		return Signal{}, &DecodeError{Format: "wav", Err: errors.New("missing format chunk")}
	}

	channels := buf.Format.NumChannels
	if channels <= 0 {
		channels = 1
	}
	bitDepth := buf.SourceBitDepth
	if bitDepth <= 0 {
		bitDepth = int(d.BitDepth)
	}
	if bitDepth <= 0 {
		bitDepth = 16
	}
	scale := 1.0 / float64(int64(1)<<(bitDepth-1))

	numFrames := len(buf.Data) / channels
	samples := make([]float64, numFrames)
	for i := range numFrames {
		sum := 0.0
		for ch := range channels {
			sum += float64(buf.Data[i*channels+ch])
		}
		samples[i] = sum / float64(channels) * scale
	}

	return Signal{Samples: samples, SampleRate: buf.Format.SampleRate}, nil
}

// decodeMP3 decodes an MP3 payload to a mono Signal.
// go-mp3 always outputs 16-bit signed stereo interleaved PCM.
func decodeMP3(data []byte) (Signal, error) {
	decoder, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return Signal{}, &DecodeError{Format: "mp3", Err: err}
	}

	sampleRate := decoder.SampleRate()

	pcm, err := io.ReadAll(decoder)
	if err != nil {
		return Signal{}, &DecodeError{Format: "mp3", Err: err}
	}

	// 4 bytes per sample pair: left int16, right int16.
	numFrames := len(pcm) / 4
	samples := make([]float64, numFrames)
	for i := range numFrames {
		offset := i * 4
		left := int16(binary.LittleEndian.Uint16(pcm[offset:]))
		right := int16(binary.LittleEndian.Uint16(pcm[offset+2:]))
		samples[i] = (float64(left) + float64(right)) / 2.0 / 32768.0
	}

	return Signal{Samples: samples, SampleRate: sampleRate}, nil
}

// ClipRatio reports the fraction of samples at or beyond full scale. Heavily
// clipped input still analyzes; the ratio is reported for diagnosing odd
// tempo results on hot masters.
func ClipRatio(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	clipped := 0
	for _, s := range samples {
		if math.Abs(s) >= 0.999 {
			clipped++
		}
	}
	return float64(clipped) / float64(len(samples))
}

// isSupportedAudio returns true if the file extension is a supported format.
func isSupportedAudio(ext string) bool {
	switch ext {
	case ".mp3", ".wav":
		return true
	default:
		return false
	}
}
