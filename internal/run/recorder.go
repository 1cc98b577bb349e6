package run

// Telemetry event names
const (
	EventWaveStart    = "wave_start"
	EventGateResolved = "gate_resolved"
	EventSkirmish     = "skirmish"
	EventRetreatGate  = "retreat_gate"
	EventWaveComplete = "wave_complete"
	EventWaveFailed   = "wave_failed"
)

// Event is one telemetry record emitted by an Engine
type Event struct {
	Name    string         `json:"name"`
	Seed    string         `json:"seed"`
	Wave    int            `json:"wave"`
	Phase   Phase          `json:"phase"`
	Army    int            `json:"army"`
	Elapsed float64        `json:"elapsed"`
	Data    map[string]any `json:"data,omitempty"`
}

// Recorder receives telemetry events. Implementations must not call back into the
// engine that emitted the event.
type Recorder interface {
	Record(Event)
}

// RecorderFunc adapts a function to Recorder
type RecorderFunc func(Event)

// Record calls f
func (f RecorderFunc) Record(e Event) {
	f(e)
}

type nopRecorder struct{}

func (nopRecorder) Record(Event) {}

// MemoryRecorder keeps every event in order. Not safe for concurrent use.
type MemoryRecorder struct {
	Events []Event
}

// Record appends e
func (m *MemoryRecorder) Record(e Event) {
	m.Events = append(m.Events, e)
}

// Names returns the recorded event names in order
func (m *MemoryRecorder) Names() []string {
	names := make([]string, len(m.Events))
	for i, e := range m.Events {
		names[i] = e.Name
	}
	return names
}
