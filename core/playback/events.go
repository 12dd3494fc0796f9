package playback

import "genesis/model"

// EventType names what changed in an Event.
type EventType string

const (
	EventQueue    EventType = "queue"
	EventState    EventType = "state"
	EventSettings EventType = "settings"
	EventTrack    EventType = "track"
	EventNotice   EventType = "notice"
)

// Event is delivered to listeners after the turn that produced it. State is
// the engine snapshot at the moment the event was raised.
//
// Seq increases with every raised event. Turns on different goroutines may
// deliver out of order, so a listener holding a newer Seq can drop older
// snapshots.
type Event struct {
	Type    EventType `json:"type"`
	Seq     uint64    `json:"seq"`
	State   State     `json:"state"`
	Message string    `json:"message,omitempty"`
}

// State is a read-only view of the engine.
type State struct {
	Queue        []model.Track    `json:"queue"`
	CurrentIndex int              `json:"currentIndex"`
	Current      *model.Track     `json:"current"`
	IsPlaying    bool             `json:"isPlaying"`
	IsShuffled   bool             `json:"isShuffled"`
	RepeatState  model.RepeatMode `json:"repeatState"`
	Volume       float64          `json:"volume"`
	CurrentTime  float64          `json:"currentTime"`
	Duration     float64          `json:"duration"`
}

// Empty reports whether no track is loaded.
func (s State) Empty() bool {
	return s.CurrentIndex < 0
}

// QueueIDs returns the ids of the queue in order.
func (s State) QueueIDs() []string {
	ids := make([]string, len(s.Queue))
	for i, t := range s.Queue {
		ids[i] = t.ID
	}
	return ids
}
