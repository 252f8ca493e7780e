package mock

import (
	"context"
	"testing"

	"github.com/pollevbot/backend/internal/session"
)

func TestAuthenticate(t *testing.T) {
	c := &Capability{}
	token, err := c.Authenticate(context.Background(), session.Config{Identity: "demo", Host: "demo-host"})
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if token != "mock-watch-token-demo-host" {
		t.Errorf("token = %q", token)
	}

	c = &Capability{FailAuth: true}
	if _, err := c.Authenticate(context.Background(), session.Config{Identity: "demo"}); err == nil {
		t.Error("expected auth failure with FailAuth set")
	}
}

func TestDetectCadence(t *testing.T) {
	c := &Capability{PollEvery: 3}
	var got []string
	for i := 0; i < 7; i++ {
		id, err := c.DetectNewPoll(context.Background(), "tok")
		if err != nil {
			t.Fatalf("DetectNewPoll: %v", err)
		}
		if id != "" {
			got = append(got, id)
		}
	}
	// Checks 3 and 6 open polls.
	want := []string{"mock-poll-1", "mock-poll-2"}
	if len(got) != len(want) {
		t.Fatalf("polls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("poll %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSubmitAnswerDescribesPoll(t *testing.T) {
	c := &Capability{PollEvery: 1}
	id, err := c.DetectNewPoll(context.Background(), "tok")
	if err != nil || id == "" {
		t.Fatalf("DetectNewPoll = %q, %v", id, err)
	}
	desc, err := c.SubmitAnswer(context.Background(), id)
	if err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	if desc != `answered mock-poll-1 with "Option B"` {
		t.Errorf("desc = %q", desc)
	}
}
