package audio

import (
	"fmt"
	"math"
)

// Format describes the sample layout of a Track
type Format struct {
	Channels    int `yaml:"channels" json:"channels"`
	SampleRate  int `yaml:"sample_rate" json:"sample_rate"`
	SampleWidth int `yaml:"sample_width" json:"sample_width"` // bytes per sample
}

// CanonicalFormat is the mono 22.05kHz 16-bit layout every internal stage assumes
var CanonicalFormat = Format{Channels: 1, SampleRate: 22050, SampleWidth: 2}

// BitDepth returns the number of bits per sample
func (f Format) BitDepth() int {
	return f.SampleWidth * 8
}

// MaxAmplitude returns the full-scale amplitude for the sample width
func (f Format) MaxAmplitude() float64 {
	return math.Ldexp(1, f.BitDepth()-1)
}

// Validate reports whether the format can be processed
func (f Format) Validate() error {
	if f.Channels < 1 {
		return fmt.Errorf("invalid channel count %d", f.Channels)
	}
	if f.SampleRate < 1 {
		return fmt.Errorf("invalid sample rate %d", f.SampleRate)
	}
	if f.SampleWidth < 1 || f.SampleWidth > 4 {
		return fmt.Errorf("unsupported sample width %d", f.SampleWidth)
	}
	return nil
}

func (f Format) String() string {
	return fmt.Sprintf("%dch/%dHz/%dbit", f.Channels, f.SampleRate, f.BitDepth())
}

// Track is a decoded audio buffer. Samples are interleaved by channel.
type Track struct {
	Format  Format
	Samples []int
}

// NewTrack returns an empty track in the given format
func NewTrack(format Format) *Track {
	return &Track{Format: format}
}

// Frames returns the number of sample frames
func (t *Track) Frames() int {
	if t == nil || t.Format.Channels == 0 {
		return 0
	}
	return len(t.Samples) / t.Format.Channels
}

// IsEmpty reports whether the track holds no audio
func (t *Track) IsEmpty() bool {
	return t.Frames() == 0
}

// DurationMs returns the track length in milliseconds, rounded to the nearest ms
func (t *Track) DurationMs() int64 {
	if t == nil || t.Format.SampleRate == 0 {
		return 0
	}
	return framesToMs(t.Frames(), t.Format.SampleRate)
}

// FrameAt maps a millisecond offset to a frame index, clamped to the track
func (t *Track) FrameAt(ms int64) int {
	if ms <= 0 {
		return 0
	}
	frame := int(ms * int64(t.Format.SampleRate) / 1000)
	if n := t.Frames(); frame > n {
		return n
	}
	return frame
}

// Slice copies the audio in [startMs, endMs) into a new track
func (t *Track) Slice(startMs, endMs int64) *Track {
	return t.sliceFrames(t.FrameAt(startMs), t.FrameAt(endMs))
}

func (t *Track) sliceFrames(start, end int) *Track {
	out := NewTrack(t.Format)
	if end <= start {
		return out
	}
	ch := t.Format.Channels
	out.Samples = append(make([]int, 0, (end-start)*ch), t.Samples[start*ch:end*ch]...)
	return out
}

// Append adds other to the end of t. Both tracks must share a format.
func (t *Track) Append(other *Track) error {
	if other.IsEmpty() {
		return nil
	}
	if t.Format != other.Format {
		return fmt.Errorf("cannot append %s audio to %s track", other.Format, t.Format)
	}
	t.Samples = append(t.Samples, other.Samples...)
	return nil
}

// Clone returns a deep copy of the track
func (t *Track) Clone() *Track {
	return t.sliceFrames(0, t.Frames())
}

func framesToMs(frames, rate int) int64 {
	return int64(math.Round(float64(frames) * 1000 / float64(rate)))
}
