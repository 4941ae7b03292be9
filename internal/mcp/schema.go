// Package mcp exposes a running stimulation session as an MCP (Model Context
// Protocol) server: protocol control, the prediction channel and the
// recorded events.
package mcp

import (
	"github.com/nvandessel/cvep/internal/store"
)

// StatusInput defines the input for cvep_status tool.
type StatusInput struct{}

// StatusOutput defines the output for cvep_status tool.
type StatusOutput struct {
	Status      string  `json:"status" jsonschema:"Protocol phase: ready, calibrating, idle or testing"`
	Attached    bool    `json:"attached" jsonschema:"Whether the cells are currently being stimulated"`
	Running     string  `json:"running,omitempty" jsonschema:"Background phase in progress (train or test), empty if none"`
	LastError   string  `json:"last_error,omitempty" jsonschema:"Error returned by the last finished phase"`
	SessionID   string  `json:"session_id,omitempty" jsonschema:"Recording session identifier"`
	Cells       int     `json:"cells" jsonschema:"Number of stimulation cells"`
	Symbols     string  `json:"symbols" jsonschema:"Cell labels in cell order"`
	Pattern     string  `json:"pattern" jsonschema:"Stimulation code as a bit string"`
	Step        int     `json:"step" jsonschema:"Phase offset between adjacent cells"`
	FrameRate   float64 `json:"frame_rate" jsonschema:"Configured refresh rate in Hz (0 means measured)"`
	EpochLength float64 `json:"epoch_length" jsonschema:"Duration of one code cycle in seconds"`
}

// TrainInput defines the input for cvep_train tool.
type TrainInput struct {
	Targets string `json:"targets,omitempty" jsonschema:"Number of random targets or a string of symbols to train in order; defaults to the configured targets"`
}

// TrainOutput defines the output for cvep_train tool.
type TrainOutput struct {
	Started bool   `json:"started" jsonschema:"Whether training was started"`
	Targets []int  `json:"targets,omitempty" jsonschema:"Training target cells in order"`
	Symbols string `json:"symbols,omitempty" jsonschema:"Training targets as symbols"`
	Status  string `json:"status" jsonschema:"Protocol phase after the call"`
	Message string `json:"message" jsonschema:"Human-readable result message"`
}

// TestInput defines the input for cvep_test tool.
type TestInput struct{}

// TestOutput defines the output for cvep_test tool.
type TestOutput struct {
	Started bool   `json:"started" jsonschema:"Whether testing was started"`
	Status  string `json:"status" jsonschema:"Protocol phase after the call"`
	Message string `json:"message" jsonschema:"Human-readable result message"`
}

// StopInput defines the input for cvep_stop tool.
type StopInput struct {
	Abort bool `json:"abort,omitempty" jsonschema:"Also cancel a training phase in progress"`
}

// StopOutput defines the output for cvep_stop tool.
type StopOutput struct {
	Stopped bool   `json:"stopped" jsonschema:"Whether a phase was stopped"`
	Status  string `json:"status" jsonschema:"Protocol phase after the call"`
	Message string `json:"message" jsonschema:"Human-readable result message"`
}

// PredictInput defines the input for cvep_predict tool.
type PredictInput struct {
	Target *int   `json:"target,omitempty" jsonschema:"Predicted cell id"`
	Symbol string `json:"symbol,omitempty" jsonschema:"Predicted cell as its symbol; used when target is absent"`
}

// PredictOutput defines the output for cvep_predict tool.
type PredictOutput struct {
	Accepted bool   `json:"accepted" jsonschema:"Whether the prediction was handed to the testing loop"`
	Target   int    `json:"target" jsonschema:"Resolved cell id"`
	Symbol   string `json:"symbol,omitempty" jsonschema:"Symbol of the resolved cell"`
	Status   string `json:"status" jsonschema:"Protocol phase when the prediction arrived"`
}

// SnapshotInput defines the input for cvep_snapshot tool.
type SnapshotInput struct {
	Path string `json:"path,omitempty" jsonschema:"PNG file name, relative to the snapshots directory; defaults to a timestamped name"`
}

// SnapshotOutput defines the output for cvep_snapshot tool.
type SnapshotOutput struct {
	Path    string `json:"path" jsonschema:"Written PNG file"`
	On      []int  `json:"on" jsonschema:"Cells rendered on"`
	Focused *int   `json:"focused,omitempty" jsonschema:"Cell carrying the focus cue, if any"`
	Status  string `json:"status" jsonschema:"Protocol phase at the time of the snapshot"`
}

// EventsInput defines the input for cvep_events tool.
type EventsInput struct {
	Session  string `json:"session,omitempty" jsonschema:"Session id; defaults to the current session"`
	Name     string `json:"name,omitempty" jsonschema:"Only events with this name"`
	AfterSeq int64  `json:"after_seq,omitempty" jsonschema:"Only events recorded after this sequence number"`
	Limit    int    `json:"limit,omitempty" jsonschema:"Maximum number of events (default 100, max 1000)"`
}

// EventsOutput defines the output for cvep_events tool.
type EventsOutput struct {
	Events []store.StoredEvent `json:"events" jsonschema:"Recorded events in order"`
	Count  int                 `json:"count" jsonschema:"Number of events returned"`
}
