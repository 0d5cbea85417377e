package telephony

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is the subset of *websocket.Conn the telephony socket needs;
// gorilla's *websocket.Conn satisfies it directly.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// WriteJSON marshals and writes one text-frame JSON record.
func WriteJSON(conn Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("telephony: marshaling outbound record: %w", err)
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

// SendMedia writes one outbound media record.
func SendMedia(conn Conn, streamSid string, seq, chunk uint64, tsMs int64, payloadB64 string) error {
	return WriteJSON(conn, MediaRecord(streamSid, seq, chunk, tsMs, payloadB64))
}

// SendMark writes the mark record accompanying a media record.
func SendMark(conn Conn, streamSid string, chunk uint64) error {
	return WriteJSON(conn, MarkRecord(streamSid, chunk))
}

// SendClear writes a clear record (barge-in).
func SendClear(conn Conn, streamSid string) error {
	return WriteJSON(conn, ClearRecord(streamSid))
}

// CloseWithCode sends a close control frame with the given code and
// reason, then closes the underlying transport. Used to implement the
// error taxonomy's policy-violation (1008) and internal-error (1011)
// closes, and the normal (1000) close on a clean stop.
func CloseWithCode(conn Conn, code int, reason string) error {
	ctrlErr := conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(2*time.Second))
	closeErr := conn.Close()
	if ctrlErr != nil {
		return fmt.Errorf("telephony: sending close control: %w", ctrlErr)
	}
	return closeErr
}

// MediaRecord builds the outbound media record shape from spec §6: one
// paced 20ms frame, addressed by the Call's stream id and stamped with
// its seq/chunk/tsMs triple.
func MediaRecord(streamSid string, seq, chunk uint64, tsMs int64, payloadB64 string) map[string]interface{} {
	return map[string]interface{}{
		"event":          "media",
		"streamSid":      streamSid,
		"sequenceNumber": fmt.Sprint(seq),
		"media": map[string]interface{}{
			"track":     "outbound",
			"chunk":     fmt.Sprint(chunk),
			"timestamp": fmt.Sprint(tsMs),
			"payload":   payloadB64,
		},
	}
}

// MarkRecord builds the outbound mark record that accompanies each
// media record, named after the chunk it acknowledges.
func MarkRecord(streamSid string, chunk uint64) map[string]interface{} {
	return map[string]interface{}{
		"event":     "mark",
		"streamSid": streamSid,
		"mark": map[string]interface{}{
			"name": fmt.Sprintf("chunk-%d", chunk),
		},
	}
}

// ClearRecord builds the outbound clear record sent on AI interruption
// to drop the telephony side's playout buffer for barge-in.
func ClearRecord(streamSid string) map[string]interface{} {
	return map[string]interface{}{
		"event":     "clear",
		"streamSid": streamSid,
	}
}
