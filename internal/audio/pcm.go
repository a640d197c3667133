package audio

import "fmt"

// rawFormat returns the ffmpeg raw PCM muxer name for a sample width
func rawFormat(width int) (string, error) {
	switch width {
	case 1:
		return "u8", nil
	case 2:
		return "s16le", nil
	case 3:
		return "s24le", nil
	case 4:
		return "s32le", nil
	}
	return "", fmt.Errorf("unsupported sample width %d", width)
}

// unpackPCM decodes little-endian signed PCM (unsigned for 8-bit)
func unpackPCM(data []byte, width int) []int {
	n := len(data) / width
	samples := make([]int, n)
	for i := 0; i < n; i++ {
		b := data[i*width : (i+1)*width]
		if width == 1 {
			samples[i] = int(b[0]) - 128
			continue
		}
		var v int32
		for j := width - 1; j >= 0; j-- {
			v = v<<8 | int32(b[j])
		}
		shift := 32 - width*8
		samples[i] = int(v << shift >> shift)
	}
	return samples
}

// packPCM is the inverse of unpackPCM; samples are clipped to the width's range
func packPCM(samples []int, width int) []byte {
	out := make([]byte, len(samples)*width)
	hi := 1<<(width*8-1) - 1
	lo := -(1 << (width*8 - 1))
	for i, s := range samples {
		if s > hi {
			s = hi
		} else if s < lo {
			s = lo
		}
		if width == 1 {
			out[i] = byte(s + 128)
			continue
		}
		for j := 0; j < width; j++ {
			out[i*width+j] = byte(s >> (8 * j))
		}
	}
	return out
}
