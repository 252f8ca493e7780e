package session

import "encoding/json"

// State is the lifecycle state of a session runner.
type State int

const (
	Idle State = iota
	Authenticating
	Watching
	Answering
	Stopped
	Failed
)

var stateNames = map[State]string{
	Idle:           "idle",
	Authenticating: "authenticating",
	Watching:       "watching",
	Answering:      "answering",
	Stopped:        "stopped",
	Failed:         "failed",
}

var stateFromName = map[string]State{
	"idle":           Idle,
	"authenticating": Authenticating,
	"watching":       Watching,
	"answering":      Answering,
	"stopped":        Stopped,
	"failed":         Failed,
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}

func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *State) UnmarshalJSON(data []byte) error {
	var n string
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	if v, ok := stateFromName[n]; ok {
		*s = v
	}
	return nil
}

// IsTerminal reports whether the runner has exited. Stopped and Failed are
// equivalent to callers (the loop is gone) but stay distinguishable in logs.
func (s State) IsTerminal() bool {
	return s == Stopped || s == Failed
}
