// ABOUTME: Sample conversion helpers
// ABOUTME: 24-bit down-conversion and G.711 expansion to 16-bit linear PCM
package audio

// SampleToInt16 converts a 24-bit range int32 sample to int16
func SampleToInt16(sample int32) int16 {
	// Right-shift to convert 24-bit to 16-bit range
	return int16(sample >> 8)
}

// ScaleToInt16 converts a sample of the given bit depth to int16
func ScaleToInt16(sample int32, bitDepth int) int16 {
	switch {
	case bitDepth == 16:
		return int16(sample)
	case bitDepth == 24:
		return SampleToInt16(sample)
	case bitDepth > 16:
		return int16(sample >> (bitDepth - 16))
	default:
		return int16(sample << (16 - bitDepth))
	}
}

// ULawToInt16 expands a G.711 µ-law byte to linear PCM
func ULawToInt16(u byte) int16 {
	u = ^u
	t := (int32(u&0x0F) << 3) + 0x84
	t <<= (u & 0x70) >> 4
	if u&0x80 != 0 {
		return int16(0x84 - t)
	}
	return int16(t - 0x84)
}

// ALawToInt16 expands a G.711 A-law byte to linear PCM
func ALawToInt16(a byte) int16 {
	a ^= 0x55
	t := int32(a&0x0F) << 4
	seg := (a & 0x70) >> 4
	switch seg {
	case 0:
		t += 8
	case 1:
		t += 0x108
	default:
		t += 0x108
		t <<= seg - 1
	}
	if a&0x80 != 0 {
		return int16(t)
	}
	return int16(-t)
}
