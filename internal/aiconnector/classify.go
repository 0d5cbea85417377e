package aiconnector

import (
	"encoding/json"
	"fmt"

	"github.com/birddigital/voicebridge/internal/audioformat"
)

// InboundKind tags the shape of one inbound AI record, per spec §4.5.
type InboundKind int

const (
	KindMetadata InboundKind = iota
	KindAudio
	KindPing
	KindInterruption
	KindDiagnostic
	KindError
	KindUnknown
)

// Inbound is the classified result of one inbound AI record.
type Inbound struct {
	Kind InboundKind

	// Populated for KindMetadata.
	UserInputFormat   audioformat.Format
	AgentOutputFormat audioformat.Format

	// Populated for KindAudio.
	AudioBase64 string

	// Populated for KindPing.
	PingEventID string

	// Populated for KindDiagnostic/KindError/KindUnknown, for logging.
	RawType string
	Message string
}

// audioFieldPaths lists, in probe order, the nested-map paths the
// provider's several audio-payload shapes have been observed to use:
// a direct audio string, or one nested under an audio/tts/response/
// chunk object (spec §9).
var audioFieldPaths = [][]string{
	{"audio_event", "audio_base_64"},
	{"audio"},
	{"audio", "chunk"},
	{"response", "audio"},
	{"tts", "chunk"},
	{"chunk"},
}

// ClassifyInbound parses one inbound JSON record from the AI socket and
// classifies it per the taxonomy in spec §4.5. Unknown tags are
// returned as KindUnknown rather than erroring: the caller logs and
// ignores them, never crashing the Call.
func ClassifyInbound(raw []byte) (Inbound, error) {
	var msg map[string]interface{}
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Inbound{}, fmt.Errorf("aiconnector: invalid inbound JSON: %w", err)
	}

	if errMsg, ok := extractError(msg); ok {
		return Inbound{Kind: KindError, Message: errMsg}, nil
	}

	typ, _ := msg["type"].(string)

	switch typ {
	case "conversation_initiation_metadata":
		return classifyMetadata(msg), nil
	case "ping":
		return Inbound{Kind: KindPing, PingEventID: extractPingEventID(msg)}, nil
	case "interruption":
		return Inbound{Kind: KindInterruption}, nil
	case "user_transcript", "agent_response":
		return Inbound{Kind: KindDiagnostic, RawType: typ}, nil
	case "error":
		return Inbound{Kind: KindError, Message: typ}, nil
	}

	if payload, ok := probeAudioPayload(msg); ok {
		return Inbound{Kind: KindAudio, AudioBase64: payload}, nil
	}

	return Inbound{Kind: KindUnknown, RawType: typ}, nil
}

func classifyMetadata(msg map[string]interface{}) Inbound {
	body, ok := msg["conversation_initiation_metadata_event"].(map[string]interface{})
	if !ok {
		body = msg
	}
	userFmt, _ := body["user_input_audio_format"].(string)
	agentFmt, _ := body["agent_output_audio_format"].(string)

	inbound := Inbound{Kind: KindMetadata}
	if f, err := audioformat.Parse(userFmt); err == nil {
		inbound.UserInputFormat = f
	}
	if f, err := audioformat.Parse(agentFmt); err == nil {
		inbound.AgentOutputFormat = f
	}
	return inbound
}

func extractPingEventID(msg map[string]interface{}) string {
	if body, ok := msg["ping_event"].(map[string]interface{}); ok {
		if id, ok := body["event_id"]; ok {
			return fmt.Sprint(id)
		}
	}
	if id, ok := msg["event_id"]; ok {
		return fmt.Sprint(id)
	}
	return ""
}

func extractError(msg map[string]interface{}) (string, bool) {
	switch v := msg["error"].(type) {
	case string:
		if v != "" {
			return v, true
		}
	case map[string]interface{}:
		if m, ok := v["message"].(string); ok {
			return m, true
		}
		return "error", true
	}
	return "", false
}

func probeAudioPayload(msg map[string]interface{}) (string, bool) {
	for _, path := range audioFieldPaths {
		if v, ok := lookupPath(msg, path); ok {
			if s, ok := v.(string); ok && s != "" {
				return s, true
			}
		}
	}
	return "", false
}

func lookupPath(msg map[string]interface{}, path []string) (interface{}, bool) {
	var cur interface{} = msg
	for _, key := range path {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}
