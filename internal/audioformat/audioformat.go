// Package audioformat names the wire audio encodings the AI provider may
// negotiate for its output, so the pacer and AI connector agree on how to
// get from "whatever the provider sent" to 20 ms μ-law/8kHz telephony
// frames without depending on each other's packages.
package audioformat

import "fmt"

// Format identifies one of the AI provider's supported output encodings.
type Format string

const (
	// UlawNarrowband is 8kHz μ-law — already telephony-ready.
	UlawNarrowband Format = "ulaw_8000"
	// PCM16Wideband is 16kHz signed 16-bit linear PCM.
	PCM16Wideband Format = "pcm16_16000"
	// PCM16Narrowband is 8kHz signed 16-bit linear PCM.
	PCM16Narrowband Format = "pcm16_8000"
)

// Parse validates a provider-reported format string.
func Parse(s string) (Format, error) {
	switch Format(s) {
	case UlawNarrowband, PCM16Wideband, PCM16Narrowband:
		return Format(s), nil
	default:
		return "", fmt.Errorf("audioformat: unsupported output format %q", s)
	}
}
