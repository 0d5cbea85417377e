package bridgecall

import "fmt"

// HandleStop implements the telephony stop handling from spec §4.6 and
// scenario S6: flush remaining buffered caller audio, flush and send
// whatever partial agent frame the pacer is still holding, send a final
// user_audio_end and a terminal user_message, then leave both sockets
// to be closed by the caller. Errors along the way are collected but do
// not stop the remaining steps — cleanup always runs to completion.
func (c *Call) HandleStop() []error {
	var errs []error

	if err := c.FlushBufferToAI(); err != nil {
		errs = append(errs, fmt.Errorf("bridgecall: final buffer flush: %w", err))
	}

	if f := c.FlushAgentAudio(); f != nil {
		if err := c.SendTelephonyFrame(*f); err != nil {
			errs = append(errs, fmt.Errorf("bridgecall: final agent audio flush: %w", err))
		}
	}

	c.aiWriteMu.Lock()
	if err := c.ai.SendUserAudioEnd(); err != nil {
		errs = append(errs, fmt.Errorf("bridgecall: final user_audio_end: %w", err))
	}
	if err := c.ai.SendNudgeMessage("(Call ended)"); err != nil {
		errs = append(errs, fmt.Errorf("bridgecall: terminal user_message: %w", err))
	}
	c.aiWriteMu.Unlock()

	return errs
}

// Cleanup closes both sockets. It is safe to call more than once and
// safe to call with either socket nil or already closed — satisfies
// invariant I6 (no references held after cleanup).
func (c *Call) Cleanup() {
	if c.telConn != nil {
		c.telConn.Close()
	}
	if c.ai != nil {
		c.ai.Close()
	}
}
