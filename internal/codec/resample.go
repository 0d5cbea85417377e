package codec

// Upsample8kTo16k converts linear PCM samples from 8 kHz to 16 kHz using
// zero-order hold (each sample duplicated once). This is a deliberate
// simplification: narrowband phone audio has no content above 4 kHz, so
// naive duplication introduces no audible artifact the downstream ASR
// would notice, and real resampling is not worth the cost at this
// sample rate.
func Upsample8kTo16k(samples []int16) []int16 {
	out := make([]int16, len(samples)*2)
	for i, s := range samples {
		out[i*2] = s
		out[i*2+1] = s
	}
	return out
}

// Downsample16kTo8k converts linear PCM samples from 16 kHz to 8 kHz by
// dropping every second sample. Trailing odd sample, if any, is dropped.
func Downsample16kTo8k(samples []int16) []int16 {
	n := len(samples) / 2
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = samples[i*2]
	}
	return out
}
