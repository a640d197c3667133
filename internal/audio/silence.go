package audio

import "math"

// Default silence policy
const (
	DefaultSilenceThresholdDB = -50.0
	DefaultMinSilenceMs       = 2000
)

// Span is a half-open range of frames [Start, End)
type Span struct {
	Start int
	End   int
}

// Len returns the number of frames in the span
func (s Span) Len() int {
	return s.End - s.Start
}

// silenceAmplitude converts a dBFS threshold into an absolute sample amplitude
func silenceAmplitude(f Format, thresholdDB float64) float64 {
	return math.Pow(10, thresholdDB/20) * f.MaxAmplitude()
}

// DetectSilence returns the maximal runs of frames whose peak stays at or below
// thresholdDB for at least minSilenceMs.
func DetectSilence(t *Track, thresholdDB float64, minSilenceMs int64) []Span {
	frames := t.Frames()
	if frames == 0 {
		return nil
	}
	limit := silenceAmplitude(t.Format, thresholdDB)
	minFrames := int(minSilenceMs * int64(t.Format.SampleRate) / 1000)
	if minFrames < 1 {
		minFrames = 1
	}

	var spans []Span
	runStart := -1
	for i := 0; i < frames; i++ {
		if frameIsSilent(t, i, limit) {
			if runStart < 0 {
				runStart = i
			}
			continue
		}
		if runStart >= 0 && i-runStart >= minFrames {
			spans = append(spans, Span{Start: runStart, End: i})
		}
		runStart = -1
	}
	if runStart >= 0 && frames-runStart >= minFrames {
		spans = append(spans, Span{Start: runStart, End: frames})
	}
	return spans
}

// DetectNonsilent returns the complement of DetectSilence
func DetectNonsilent(t *Track, thresholdDB float64, minSilenceMs int64) []Span {
	frames := t.Frames()
	if frames == 0 {
		return nil
	}
	var spans []Span
	cursor := 0
	for _, s := range DetectSilence(t, thresholdDB, minSilenceMs) {
		if s.Start > cursor {
			spans = append(spans, Span{Start: cursor, End: s.Start})
		}
		cursor = s.End
	}
	if cursor < frames {
		spans = append(spans, Span{Start: cursor, End: frames})
	}
	return spans
}

// Trim drops every qualifying silent span and joins the remaining audio in order.
// Offsets in the result refer to the shortened timeline.
func Trim(t *Track, thresholdDB float64, minSilenceMs int64) *Track {
	out := NewTrack(t.Format)
	ch := t.Format.Channels
	for _, s := range DetectNonsilent(t, thresholdDB, minSilenceMs) {
		out.Samples = append(out.Samples, t.Samples[s.Start*ch:s.End*ch]...)
	}
	return out
}

func frameIsSilent(t *Track, frame int, limit float64) bool {
	ch := t.Format.Channels
	for _, s := range t.Samples[frame*ch : (frame+1)*ch] {
		if math.Abs(float64(s)) > limit {
			return false
		}
	}
	return true
}
