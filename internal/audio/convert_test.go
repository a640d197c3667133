package audio_test

import (
	"testing"

	"github.com/codebuildervaibhav/speaker-splitter/internal/audio"
)

func TestConvertDownmixAndResample(t *testing.T) {
	stereo := audio.Format{Channels: 2, SampleRate: 44100, SampleWidth: 2}
	tr := audio.NewTrack(stereo)
	frames := 44100 // one second
	tr.Samples = make([]int, frames*2)
	for i := 0; i < frames; i++ {
		tr.Samples[i*2] = 100
		tr.Samples[i*2+1] = 300
	}

	out, err := tr.Convert(audio.CanonicalFormat)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Format != audio.CanonicalFormat {
		t.Fatalf("expected canonical format, got %s", out.Format)
	}
	if got := out.DurationMs(); got != 1000 {
		t.Fatalf("expected duration to be preserved, got %dms", got)
	}
	for i, s := range out.Samples {
		if s != 200 {
			t.Fatalf("sample %d = %d, want averaged 200", i, s)
		}
	}
}

func TestConvertSampleWidth(t *testing.T) {
	wide := audio.Format{Channels: 1, SampleRate: 22050, SampleWidth: 3}
	tr := audio.NewTrack(wide)
	tr.Samples = []int{1 << 16, -(1 << 16), 256}

	out, err := tr.Convert(audio.CanonicalFormat)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []int{1 << 8, -(1 << 8), 1}
	for i := range want {
		if out.Samples[i] != want[i] {
			t.Fatalf("sample %d = %d, want %d", i, out.Samples[i], want[i])
		}
	}
}

func TestConvertEmptyAndIdentity(t *testing.T) {
	empty := audio.NewTrack(audio.Format{Channels: 2, SampleRate: 48000, SampleWidth: 4})
	out, err := empty.Convert(audio.CanonicalFormat)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.IsEmpty() || out.Format != audio.CanonicalFormat {
		t.Fatalf("expected empty canonical track, got %+v", out)
	}

	tr := tone(audio.CanonicalFormat, 10, 7)
	same, err := tr.Convert(audio.CanonicalFormat)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	same.Samples[0] = 0
	if tr.Samples[0] != 7 {
		t.Fatal("identity conversion should return a copy")
	}

	if _, err := tr.Convert(audio.Format{}); err == nil {
		t.Fatal("expected error for invalid target format")
	}
}
