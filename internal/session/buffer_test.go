package session

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestLogBufferDrainPreservesOrder(t *testing.T) {
	b := NewLogBuffer()
	base := time.Now()
	for i := 1; i <= 5; i++ {
		b.Append(LogEvent{
			Time:    base.Add(time.Duration(i) * time.Second),
			Level:   LevelDebug,
			Message: fmt.Sprintf("E%d", i),
		})
	}

	events := b.Drain()
	if len(events) != 5 {
		t.Fatalf("Drain returned %d events, want 5", len(events))
	}
	for i, ev := range events {
		want := fmt.Sprintf("E%d", i+1)
		if ev.Message != want {
			t.Errorf("event %d = %q, want %q", i, ev.Message, want)
		}
	}
}

func TestLogBufferDrainNeverRepeats(t *testing.T) {
	b := NewLogBuffer()
	b.Append(LogEvent{Message: "one"})
	b.Append(LogEvent{Message: "two"})

	first := b.Drain()
	if len(first) != 2 {
		t.Fatalf("first drain returned %d events, want 2", len(first))
	}
	if second := b.Drain(); len(second) != 0 {
		t.Errorf("second drain returned %d events, want 0", len(second))
	}

	b.Append(LogEvent{Message: "three"})
	third := b.Drain()
	if len(third) != 1 || third[0].Message != "three" {
		t.Errorf("drain after re-append = %v, want just \"three\"", third)
	}
}

func TestLogBufferLen(t *testing.T) {
	b := NewLogBuffer()
	if b.Len() != 0 {
		t.Errorf("empty buffer Len = %d", b.Len())
	}
	b.Append(LogEvent{Message: "x"})
	b.Append(LogEvent{Message: "y"})
	if b.Len() != 2 {
		t.Errorf("Len = %d, want 2", b.Len())
	}
	b.Drain()
	if b.Len() != 0 {
		t.Errorf("Len after drain = %d, want 0", b.Len())
	}
}

func TestLogBufferConcurrentAppend(t *testing.T) {
	b := NewLogBuffer()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				b.Append(LogEvent{Message: "m"})
			}
		}()
	}
	wg.Wait()
	if got := b.Len(); got != 1000 {
		t.Errorf("Len = %d, want 1000", got)
	}
}
