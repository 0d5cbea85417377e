package aiconnector

import "testing"

func TestClassifyMetadata(t *testing.T) {
	raw := []byte(`{
		"type": "conversation_initiation_metadata",
		"conversation_initiation_metadata_event": {
			"user_input_audio_format": "ulaw_8000",
			"agent_output_audio_format": "pcm16_16000"
		}
	}`)
	got, err := ClassifyInbound(raw)
	if err != nil {
		t.Fatal(err)
	}
	if got.Kind != KindMetadata {
		t.Fatalf("Kind = %v, want KindMetadata", got.Kind)
	}
	if got.UserInputFormat != "ulaw_8000" || got.AgentOutputFormat != "pcm16_16000" {
		t.Errorf("formats = %q/%q, want ulaw_8000/pcm16_16000", got.UserInputFormat, got.AgentOutputFormat)
	}
}

func TestClassifyAudioEventShape(t *testing.T) {
	raw := []byte(`{"type":"audio","audio_event":{"audio_base_64":"Zm9v","event_id":7}}`)
	got, err := ClassifyInbound(raw)
	if err != nil {
		t.Fatal(err)
	}
	if got.Kind != KindAudio || got.AudioBase64 != "Zm9v" {
		t.Errorf("got %+v, want KindAudio with payload Zm9v", got)
	}
}

func TestClassifyDirectAudioStringShape(t *testing.T) {
	raw := []byte(`{"type":"tts_chunk","audio":"Zm9v"}`)
	got, err := ClassifyInbound(raw)
	if err != nil {
		t.Fatal(err)
	}
	if got.Kind != KindAudio || got.AudioBase64 != "Zm9v" {
		t.Errorf("got %+v, want KindAudio with payload Zm9v", got)
	}
}

func TestClassifyNestedResponseAudioShape(t *testing.T) {
	raw := []byte(`{"type":"response","response":{"audio":"Zm9v"}}`)
	got, err := ClassifyInbound(raw)
	if err != nil {
		t.Fatal(err)
	}
	if got.Kind != KindAudio || got.AudioBase64 != "Zm9v" {
		t.Errorf("got %+v, want KindAudio", got)
	}
}

func TestClassifyPing(t *testing.T) {
	raw := []byte(`{"type":"ping","ping_event":{"event_id":"42"}}`)
	got, err := ClassifyInbound(raw)
	if err != nil {
		t.Fatal(err)
	}
	if got.Kind != KindPing || got.PingEventID != "42" {
		t.Errorf("got %+v, want KindPing with event id 42", got)
	}
}

func TestClassifyInterruption(t *testing.T) {
	raw := []byte(`{"type":"interruption"}`)
	got, err := ClassifyInbound(raw)
	if err != nil {
		t.Fatal(err)
	}
	if got.Kind != KindInterruption {
		t.Errorf("Kind = %v, want KindInterruption", got.Kind)
	}
}

func TestClassifyDiagnosticTypes(t *testing.T) {
	for _, typ := range []string{"user_transcript", "agent_response"} {
		raw := []byte(`{"type":"` + typ + `"}`)
		got, err := ClassifyInbound(raw)
		if err != nil {
			t.Fatal(err)
		}
		if got.Kind != KindDiagnostic {
			t.Errorf("type %s: Kind = %v, want KindDiagnostic", typ, got.Kind)
		}
	}
}

func TestClassifyErrorField(t *testing.T) {
	raw := []byte(`{"type":"something","error":"boom"}`)
	got, err := ClassifyInbound(raw)
	if err != nil {
		t.Fatal(err)
	}
	if got.Kind != KindError || got.Message != "boom" {
		t.Errorf("got %+v, want KindError with message boom", got)
	}
}

func TestClassifyUnknownType(t *testing.T) {
	raw := []byte(`{"type":"something_new","foo":"bar"}`)
	got, err := ClassifyInbound(raw)
	if err != nil {
		t.Fatal(err)
	}
	if got.Kind != KindUnknown || got.RawType != "something_new" {
		t.Errorf("got %+v, want KindUnknown", got)
	}
}

func TestClassifyInvalidJSON(t *testing.T) {
	if _, err := ClassifyInbound([]byte(`not json`)); err == nil {
		t.Error("expected an error for invalid JSON")
	}
}
