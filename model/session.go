package model

// RepeatMode is the continuation policy at the end of a track.
type RepeatMode int

const (
	RepeatOff RepeatMode = iota
	RepeatAll
	RepeatOne
)

// Next cycles Off -> All -> One -> Off.
func (m RepeatMode) Next() RepeatMode {
	return (m + 1) % 3
}

// Valid reports whether m is one of the three known modes.
func (m RepeatMode) Valid() bool {
	return m >= RepeatOff && m <= RepeatOne
}

func (m RepeatMode) String() string {
	switch m {
	case RepeatAll:
		return "all"
	case RepeatOne:
		return "one"
	default:
		return "off"
	}
}

// SessionRecord is the persisted playback session. isPlaying is deliberately
// absent: a restored session never starts playing on its own.
type SessionRecord struct {
	TrackID     string     `json:"trackId"`
	CurrentTime float64    `json:"currentTime"`
	Volume      float64    `json:"volume"`
	IsShuffled  bool       `json:"isShuffled"`
	RepeatState RepeatMode `json:"repeatState"`
}
