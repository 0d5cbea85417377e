// Package telephony implements the telephony-side handler (spec
// component C6): parsing the inbound control+media protocol and
// building the outbound media/mark/clear records the Call orchestrator
// writes back to the telephony socket.
package telephony

import (
	"encoding/json"
	"fmt"
)

// Kind tags one inbound telephony event.
type Kind int

const (
	KindConnected Kind = iota
	KindStart
	KindMedia
	KindMark
	KindStop
	KindUnknown
)

// Event is the parsed form of one inbound telephony record.
type Event struct {
	Kind Kind

	StreamSid        string
	CustomParameters map[string]string

	MediaTrack      string
	MediaPayloadB64 string

	MarkName string

	RawEvent string
}

// Token returns the auth token custom parameter from a start event, if
// any.
func (e Event) Token() string { return e.CustomParameters["token"] }

// AgentIDParam returns the per-call agent id override, if the telephony
// side supplied one.
func (e Event) AgentIDParam() string { return e.CustomParameters["agent_id"] }

// Mode returns the mode custom parameter ("discovery" or "daily"),
// possibly empty.
func (e Event) Mode() string { return e.CustomParameters["mode"] }

// CallerPhone returns the caller_phone custom parameter, possibly
// empty.
func (e Event) CallerPhone() string { return e.CustomParameters["caller_phone"] }

// ProfileBase64 returns the opaque profile_b64 custom parameter,
// possibly empty.
func (e Event) ProfileBase64() string { return e.CustomParameters["profile_b64"] }

// ParseInbound parses one telephony JSON record into an Event. Unknown
// event names are returned as KindUnknown, never an error: spec §7
// requires malformed or unrecognized records to be logged and skipped,
// not to close the connection.
func ParseInbound(raw []byte) (Event, error) {
	var msg struct {
		Event     string `json:"event"`
		StreamSid string `json:"streamSid"`
		Start     struct {
			StreamSid        string            `json:"streamSid"`
			CustomParameters map[string]string `json:"customParameters"`
		} `json:"start"`
		Media struct {
			Track   string `json:"track"`
			Payload string `json:"payload"`
		} `json:"media"`
		Mark struct {
			Name string `json:"name"`
		} `json:"mark"`
	}

	if err := json.Unmarshal(raw, &msg); err != nil {
		return Event{}, fmt.Errorf("telephony: invalid inbound JSON: %w", err)
	}

	switch msg.Event {
	case "connected":
		return Event{Kind: KindConnected, RawEvent: msg.Event}, nil
	case "start":
		streamSid := msg.Start.StreamSid
		if streamSid == "" {
			streamSid = msg.StreamSid
		}
		return Event{
			Kind:             KindStart,
			StreamSid:        streamSid,
			CustomParameters: msg.Start.CustomParameters,
			RawEvent:         msg.Event,
		}, nil
	case "media":
		return Event{
			Kind:            KindMedia,
			MediaTrack:      msg.Media.Track,
			MediaPayloadB64: msg.Media.Payload,
			RawEvent:        msg.Event,
		}, nil
	case "mark":
		return Event{Kind: KindMark, MarkName: msg.Mark.Name, RawEvent: msg.Event}, nil
	case "stop":
		return Event{Kind: KindStop, RawEvent: msg.Event}, nil
	default:
		return Event{Kind: KindUnknown, RawEvent: msg.Event}, nil
	}
}

// IsInboundTrack reports whether a media event's track should be fed to
// the VAD/buffer pipeline. Frames on any other named track (e.g.
// "outbound" echoed back by some providers) are ignored per spec §4.6.
func (e Event) IsInboundTrack() bool {
	return e.MediaTrack == "" || e.MediaTrack == "inbound"
}

// AuthorizeStart checks a start event's token parameter against the
// process-wide configured token. An empty configuredToken means no
// auth is required.
func AuthorizeStart(e Event, configuredToken string) bool {
	if configuredToken == "" {
		return true
	}
	return e.Token() == configuredToken
}

// SelectAgentID picks the per-call agent id: the start event's
// agent_id parameter if present, else the per-mode default.
func SelectAgentID(e Event, modeDefault string) string {
	if id := e.AgentIDParam(); id != "" {
		return id
	}
	return modeDefault
}
