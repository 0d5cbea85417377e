package bridgecall

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"

	"github.com/birddigital/voicebridge/internal/config"
	"github.com/birddigital/voicebridge/internal/profile"
	"github.com/birddigital/voicebridge/internal/telephony"
)

// ApplyStart processes a telephony start event (spec §4.6): records the
// stream id, enforces the auth token, resolves the mode and agent id.
// It returns an error if the start event fails auth — the caller must
// close telephony with policy-violation (1008) and abort without
// opening an AI session.
func (c *Call) ApplyStart(e telephony.Event) error {
	c.StreamSid = e.StreamSid
	c.Authorized = telephony.AuthorizeStart(e, c.cfg.AuthToken)
	if !c.Authorized {
		return fmt.Errorf("bridgecall: start event failed auth token check")
	}

	if m := e.Mode(); m != "" {
		c.Mode = config.Mode(m)
	}
	c.AgentID = telephony.SelectAgentID(e, c.cfg.AgentIDFor(c.Mode))
	c.CallerPhone = e.CallerPhone()
	return nil
}

// ResolveProfile decodes a telephony-supplied profile first (the
// telephony side may have already resolved one upstream), falling back
// to the configured profile store keyed by caller phone. Lookup
// failures are logged and degrade to "no profile" rather than failing
// the call — profile enrichment is best-effort.
func (c *Call) ResolveProfile(ctx context.Context, e telephony.Event) map[string]interface{} {
	if p := profile.DecodeBase64Profile(e.ProfileBase64(), base64.StdEncoding.DecodeString); p != nil {
		return p
	}
	if c.profiles == nil {
		return nil
	}
	p, err := c.profiles.Lookup(ctx, c.CallerPhone)
	if err != nil {
		log.Printf("[Call %s] profile lookup failed: %v", c.SessionID, err)
		return nil
	}
	return p
}

// SendInitiation sends the conversation_initiation_client_data record
// to the AI session, including the resolved profile (if any).
func (c *Call) SendInitiation(profileDoc map[string]interface{}) error {
	c.aiWriteMu.Lock()
	defer c.aiWriteMu.Unlock()
	return c.ai.SendInitiation(c.CallerPhone, string(c.Mode), c.SessionID, profileDoc)
}
