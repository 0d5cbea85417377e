package codec

import "encoding/binary"

// BytesToInt16LE interprets a little-endian byte slice as 16-bit linear
// PCM samples. A trailing odd byte, if any, is dropped.
func BytesToInt16LE(data []byte) []int16 {
	n := len(data) / 2
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(binary.LittleEndian.Uint16(data[i*2 : i*2+2]))
	}
	return out
}

// Int16ToBytesLE serializes 16-bit linear PCM samples to little-endian
// bytes.
func Int16ToBytesLE(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:i*2+2], uint16(s))
	}
	return out
}
