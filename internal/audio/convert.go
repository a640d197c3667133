package audio

import "math"

// Convert returns a copy of t in the target format. Channels are down-mixed by
// averaging (or duplicated from mono), sample width is rescaled and the sample
// rate is changed by linear interpolation.
func (t *Track) Convert(to Format) (*Track, error) {
	if err := to.Validate(); err != nil {
		return nil, err
	}
	if t.Format == to {
		return t.Clone(), nil
	}
	if t.IsEmpty() {
		return NewTrack(to), nil
	}
	if err := t.Format.Validate(); err != nil {
		return nil, err
	}

	samples := remix(t.Samples, t.Format.Channels, to.Channels)
	samples = rescale(samples, t.Format.BitDepth(), to.BitDepth())
	samples = resample(samples, to.Channels, t.Format.SampleRate, to.SampleRate)

	return &Track{Format: to, Samples: samples}, nil
}

// remix averages every frame down to mono and then copies the mono signal
// into each output channel.
func remix(samples []int, from, to int) []int {
	if from == to {
		return append([]int(nil), samples...)
	}
	frames := len(samples) / from
	out := make([]int, frames*to)
	for i := 0; i < frames; i++ {
		sum := 0
		for c := 0; c < from; c++ {
			sum += samples[i*from+c]
		}
		mono := int(math.Round(float64(sum) / float64(from)))
		for c := 0; c < to; c++ {
			out[i*to+c] = mono
		}
	}
	return out
}

func rescale(samples []int, fromBits, toBits int) []int {
	if fromBits == toBits {
		return samples
	}
	for i, s := range samples {
		if toBits > fromBits {
			samples[i] = s << (toBits - fromBits)
		} else {
			samples[i] = s >> (fromBits - toBits)
		}
	}
	return samples
}

func resample(samples []int, channels, fromRate, toRate int) []int {
	if fromRate == toRate {
		return samples
	}
	frames := len(samples) / channels
	outFrames := int(math.Round(float64(frames) * float64(toRate) / float64(fromRate)))
	out := make([]int, outFrames*channels)
	step := float64(fromRate) / float64(toRate)
	for i := 0; i < outFrames; i++ {
		pos := float64(i) * step
		left := int(pos)
		if left >= frames {
			left = frames - 1
		}
		right := left + 1
		if right >= frames {
			right = frames - 1
		}
		frac := pos - float64(left)
		for c := 0; c < channels; c++ {
			a := float64(samples[left*channels+c])
			b := float64(samples[right*channels+c])
			out[i*channels+c] = int(math.Round(a + (b-a)*frac))
		}
	}
	return out
}
