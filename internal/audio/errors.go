package audio

import "fmt"

// DecodeError reports input media that could not be decoded
type DecodeError struct {
	Path   string
	Output string // decoder diagnostics, if any
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("decode %s: %v\nOutput: %s", e.Path, e.Err, e.Output)
	}
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
