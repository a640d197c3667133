package audio

import (
	"context"
	"errors"
	"fmt"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAV is a lossless PCM codec used for the separation hand-off and the
// per-speaker snippets.
type WAV struct{}

const (
	wavFormatPCM = 1
	// 8-bit wav samples are unsigned around this midpoint
	wavUnsignedOffset = 128
)

// Decode reads an integer PCM WAV file at whatever rate, width and channel
// count it was written with. Float and compressed encodings are rejected.
func (WAV) Decode(_ context.Context, path string) (*Track, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return nil, &DecodeError{Path: path, Err: errors.New("not a valid wav file")}
	}
	if d.WavAudioFormat != wavFormatPCM {
		return nil, &DecodeError{Path: path, Err: fmt.Errorf("unsupported wav encoding %d, only integer PCM is read", d.WavAudioFormat)}
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}

	format := Format{
		Channels:    int(d.NumChans),
		SampleRate:  int(d.SampleRate),
		SampleWidth: int(d.BitDepth) / 8,
	}
	if err := format.Validate(); err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}

	if format.SampleWidth == 1 {
		for i := range buf.Data {
			buf.Data[i] -= wavUnsignedOffset
		}
	}

	return &Track{Format: format, Samples: buf.Data}, nil
}

// Encode writes the track as 1 (PCM) format WAV
func (WAV) Encode(_ context.Context, track *Track, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %v", path, err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, track.Format.SampleRate, track.Format.BitDepth(), track.Format.Channels, wavFormatPCM)
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: track.Format.Channels,
			SampleRate:  track.Format.SampleRate,
		},
		Data:           track.Samples,
		SourceBitDepth: track.Format.BitDepth(),
	}
	if buf.Data == nil {
		buf.Data = []int{}
	}
	if track.Format.SampleWidth == 1 {
		shifted := make([]int, len(track.Samples))
		for i, v := range track.Samples {
			shifted[i] = v + wavUnsignedOffset
		}
		buf.Data = shifted
	}

	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("failed to write %s: %v", path, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to finalize %s: %v", path, err)
	}
	return nil
}
