package codec

import "testing"

func TestMuLawRoundTripAllBytes(t *testing.T) {
	for b := 0; b < 256; b++ {
		if b == 0x7F {
			// 0x7F is the ITU-T tables' negative-zero byte: it decodes to
			// the same PCM sample (0) as positive-zero 0xFF, so it can
			// only ever re-encode to 0xFF. Every correct implementation
			// collapses this pair; it's not a round-trip bug.
			continue
		}
		in := []byte{byte(b)}
		decoded := MuLawDecode(in)
		reEncoded := MuLawEncode(decoded)
		if reEncoded[0] != in[0] {
			t.Errorf("MuLawEncode(MuLawDecode(0x%02X)) = 0x%02X, want 0x%02X", in[0], reEncoded[0], in[0])
		}
	}
}

func TestMuLawDecodeLength(t *testing.T) {
	in := make([]byte, 160)
	out := MuLawDecode(in)
	if len(out) != len(in) {
		t.Fatalf("MuLawDecode returned %d samples, want %d", len(out), len(in))
	}
}

func TestMuLawEncodeLength(t *testing.T) {
	in := make([]int16, 160)
	out := MuLawEncode(in)
	if len(out) != len(in) {
		t.Fatalf("MuLawEncode returned %d bytes, want %d", len(out), len(in))
	}
}

func TestMuLawEncodeClipsSaturates(t *testing.T) {
	maxSample := MuLawEncode([]int16{32767})
	minSample := MuLawEncode([]int16{-32768})
	if len(maxSample) != 1 || len(minSample) != 1 {
		t.Fatal("expected one byte each")
	}
	// Saturating extremes must decode back to large-magnitude values of
	// the correct sign, not overflow or wrap.
	if MuLawDecode(maxSample)[0] <= 0 {
		t.Errorf("decoded max sample should stay positive, got %d", MuLawDecode(maxSample)[0])
	}
	if MuLawDecode(minSample)[0] >= 0 {
		t.Errorf("decoded min sample should stay negative, got %d", MuLawDecode(minSample)[0])
	}
}

func TestMuLawSilenceIsSmallMagnitude(t *testing.T) {
	// Telephony silence is conventionally encoded as 0xFF (or 0x7F).
	decoded := MuLawDecode([]byte{0xFF})[0]
	if decoded < -200 || decoded > 200 {
		t.Errorf("decoded silence byte should be near zero, got %d", decoded)
	}
}
