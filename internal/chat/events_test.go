package chat

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseInbound(t *testing.T) {
	ev, err := ParseInbound([]byte(`{"event":"send_message","payload":"hi there"}`))
	if err != nil {
		t.Fatalf("ParseInbound() error = %v", err)
	}
	if ev.Event != EventSendMessage || ev.Payload != "hi there" {
		t.Errorf("ParseInbound() = %+v", ev)
	}

	ev, err = ParseInbound([]byte(`{"event":"typing"}`))
	if err != nil {
		t.Fatalf("ParseInbound(typing) error = %v", err)
	}
	if ev.Event != EventTyping {
		t.Errorf("ParseInbound(typing) = %+v", ev)
	}
}

func TestParseInboundRejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"not json", `hello`, ErrMalformedEvent},
		{"wrong shape", `[1,2,3]`, ErrMalformedEvent},
		{"empty payload", `{"event":"send_message","payload":""}`, ErrMalformedEvent},
		{"missing payload", `{"event":"send_message"}`, ErrMalformedEvent},
		{"unknown event", `{"event":"delete_everything"}`, ErrUnknownEvent},
		{"no event field", `{"payload":"hi"}`, ErrUnknownEvent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseInbound([]byte(tt.raw)); !errors.Is(err, tt.want) {
				t.Errorf("ParseInbound(%s) error = %v, want %v", tt.raw, err, tt.want)
			}
		})
	}
}

func TestErrorFrame(t *testing.T) {
	var got map[string]string
	if err := json.Unmarshal(errorFrame("failed to save message"), &got); err != nil {
		t.Fatalf("error frame is not valid json: %v", err)
	}
	if got["error"] != "failed to save message" {
		t.Errorf(`frame["error"] = %q`, got["error"])
	}
}
