package session

import (
	"encoding/json"
	"time"
)

// Level classifies log events emitted by a runner.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelSuccess
	LevelPoll
	LevelError
)

var levelNames = map[Level]string{
	LevelDebug:   "debug",
	LevelInfo:    "info",
	LevelSuccess: "success",
	LevelPoll:    "poll",
	LevelError:   "error",
}

var levelFromName = map[string]Level{
	"debug":   LevelDebug,
	"info":    LevelInfo,
	"success": LevelSuccess,
	"poll":    LevelPoll,
	"error":   LevelError,
}

func (l Level) String() string {
	if n, ok := levelNames[l]; ok {
		return n
	}
	return "unknown"
}

func (l Level) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

func (l *Level) UnmarshalJSON(data []byte) error {
	var n string
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	if v, ok := levelFromName[n]; ok {
		*l = v
	}
	return nil
}

// LogEvent is a single entry in a runner's event stream. Immutable once
// created; totally ordered by emission time within one runner.
type LogEvent struct {
	Time    time.Time `json:"time"`
	Level   Level     `json:"level"`
	Message string    `json:"message"`
}
