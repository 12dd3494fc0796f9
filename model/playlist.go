package model

// Playlist is a user-named ordered set of track ids.
type Playlist struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	TrackIDs  []string `json:"trackIds"`
	CreatedAt int64    `json:"createdAt,omitempty"` // unix milliseconds, orders listings
}

// Has reports whether trackID is in the playlist.
func (p *Playlist) Has(trackID string) bool {
	for _, id := range p.TrackIDs {
		if id == trackID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (p *Playlist) Clone() *Playlist {
	c := *p
	c.TrackIDs = append([]string{}, p.TrackIDs...)
	return &c
}
