package audio_test

import "github.com/codebuildervaibhav/speaker-splitter/internal/audio"

// tone returns ms of a square wave at the given amplitude in format f
func tone(f audio.Format, ms int, amplitude int) *audio.Track {
	frames := ms * f.SampleRate / 1000
	t := audio.NewTrack(f)
	t.Samples = make([]int, frames*f.Channels)
	for i := 0; i < frames; i++ {
		v := amplitude
		if i%2 == 1 {
			v = -amplitude
		}
		for c := 0; c < f.Channels; c++ {
			t.Samples[i*f.Channels+c] = v
		}
	}
	return t
}

func silence(f audio.Format, ms int) *audio.Track {
	return tone(f, ms, 0)
}

func concat(tracks ...*audio.Track) *audio.Track {
	out := audio.NewTrack(tracks[0].Format)
	for _, t := range tracks {
		if err := out.Append(t); err != nil {
			panic(err)
		}
	}
	return out
}
