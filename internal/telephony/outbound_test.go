package telephony

import "testing"

func TestMediaRecordShape(t *testing.T) {
	rec := MediaRecord("SID1", 3, 3, 40, "Zm9v")
	if rec["event"] != "media" || rec["streamSid"] != "SID1" || rec["sequenceNumber"] != "3" {
		t.Fatalf("got %+v", rec)
	}
	media := rec["media"].(map[string]interface{})
	if media["track"] != "outbound" || media["chunk"] != "3" || media["timestamp"] != "40" || media["payload"] != "Zm9v" {
		t.Errorf("media body = %+v", media)
	}
}

func TestMarkRecordNamesByChunk(t *testing.T) {
	rec := MarkRecord("SID1", 7)
	mark := rec["mark"].(map[string]interface{})
	if mark["name"] != "chunk-7" {
		t.Errorf("mark name = %v, want chunk-7", mark["name"])
	}
}

func TestClearRecordShape(t *testing.T) {
	rec := ClearRecord("SID1")
	if rec["event"] != "clear" || rec["streamSid"] != "SID1" {
		t.Errorf("got %+v", rec)
	}
}
