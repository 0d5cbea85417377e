package bridgecall

import "github.com/birddigital/voicebridge/internal/aiconnector"

// EndTurn exits the current caller turn (silence or hard-cap trigger).
// It flushes the upstream buffer and sends user_audio_end, but only
// once: a second call while already idle is a no-op, satisfying the
// idempotence invariant (spec §8) so silence and hard-cap firing close
// together never produce two user_audio_end records.
func (c *Call) EndTurn() (ended bool, err error) {
	if !c.turn.EndTurn() {
		return false, nil
	}
	if err := c.FlushBufferToAI(); err != nil {
		return true, err
	}
	c.aiWriteMu.Lock()
	err = c.ai.SendUserAudioEnd()
	c.aiWriteMu.Unlock()
	return true, err
}

// SendProcessingNudge sends the short follow-up message the orchestrator
// schedules ~250ms after a turn ends, to force the AI to commit.
func (c *Call) SendProcessingNudge() error {
	c.aiWriteMu.Lock()
	defer c.aiWriteMu.Unlock()
	return c.ai.SendNudgeMessage("(processing)")
}

// ShouldSendStartupNudge reports whether one of the three ~2s/4s/6s
// startup nudges should still fire: only while the agent has not yet
// produced any audio.
func (c *Call) ShouldSendStartupNudge() bool {
	return !c.agentHasSpoken.Load()
}

// SendStartupNudge sends a startup nudge unless ShouldSendStartupNudge
// reports false, which it checks itself (the orchestrator cancels all
// three nudge timers the moment agentHasSpoken flips true, but a timer
// may already be in flight).
func (c *Call) SendStartupNudge() error {
	if !c.ShouldSendStartupNudge() {
		return nil
	}
	c.aiWriteMu.Lock()
	defer c.aiWriteMu.Unlock()
	return c.ai.SendNudgeMessage("Hello")
}

// MaybeSendUserActivity implements the "once per caller utterance after
// an agent utterance" resolution from spec §9: it is a no-op until the
// agent has spoken at least once, and at most once per open turn after
// that.
func (c *Call) MaybeSendUserActivity() error {
	if !c.agentHasSpoken.Load() || c.turnUserActivitySent {
		return nil
	}
	c.turnUserActivitySent = true
	c.aiWriteMu.Lock()
	defer c.aiWriteMu.Unlock()
	return c.ai.SendUserActivity()
}

// ApplyMetadataFallback forces the AI session to ready if true metadata
// has not already arrived, so the upstream buffer is not stalled
// forever by a provider variant that omits the metadata event (spec
// §4.5). It reports whether this call actually transitioned state (the
// caller then flushes the buffer per invariant I7).
func (c *Call) ApplyMetadataFallback() bool {
	if c.ai.State() != aiconnector.StateOpen {
		return false
	}
	c.ai.MarkReady()
	return true
}
