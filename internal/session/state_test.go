package session

import (
	"encoding/json"
	"testing"
)

func TestStateIsTerminal(t *testing.T) {
	tests := []struct {
		state State
		want  bool
	}{
		{Idle, false},
		{Authenticating, false},
		{Watching, false},
		{Answering, false},
		{Stopped, true},
		{Failed, true},
	}
	for _, tt := range tests {
		if got := tt.state.IsTerminal(); got != tt.want {
			t.Errorf("%s.IsTerminal() = %v, want %v", tt.state, got, tt.want)
		}
	}
}

func TestStateJSONRoundTrip(t *testing.T) {
	data, err := json.Marshal(Answering)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `"answering"` {
		t.Errorf("marshal = %s, want \"answering\"", data)
	}

	var s State
	if err := json.Unmarshal([]byte(`"failed"`), &s); err != nil {
		t.Fatal(err)
	}
	if s != Failed {
		t.Errorf("unmarshal = %s, want failed", s)
	}
}

func TestLevelStrings(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "debug"},
		{LevelInfo, "info"},
		{LevelSuccess, "success"},
		{LevelPoll, "poll"},
		{LevelError, "error"},
	}
	for _, tt := range tests {
		if got := tt.level.String(); got != tt.want {
			t.Errorf("Level(%d).String() = %q, want %q", tt.level, got, tt.want)
		}
	}
	if got := Level(99).String(); got != "unknown" {
		t.Errorf("out-of-range level = %q, want unknown", got)
	}
}
