// Package grouping derives the album and artist views of the library.
package grouping

import (
	"sort"
	"strings"

	"genesis/model"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Group is one album or artist with the tracks that belong to it.
type Group struct {
	Name     string   `json:"name"`
	Artist   string   `json:"artist,omitempty"`
	CoverRef string   `json:"coverRef,omitempty"`
	TrackIDs []string `json:"trackIds"`
}

// Sorter orders groups by name for one locale.
type Sorter struct {
	tag language.Tag
}

// NewSorter parses locale, falling back to English on a bad tag.
func NewSorter(locale string) Sorter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	return Sorter{tag: tag}
}

func (s Sorter) sort(groups []*Group) []Group {
	// A collator is not safe for concurrent use; build one per call.
	c := collate.New(s.tag, collate.IgnoreCase)
	sort.SliceStable(groups, func(i, j int) bool {
		return c.CompareString(groups[i].Name, groups[j].Name) < 0
	})
	out := make([]Group, len(groups))
	for i, g := range groups {
		out[i] = *g
	}
	return out
}

func artistOf(t model.Track) string {
	if a := strings.TrimSpace(t.Artist); a != "" {
		return a
	}
	return model.UnknownArtist
}

// Albums groups tracks that carry an album name by (album, artist).
func (s Sorter) Albums(tracks []model.Track) []Group {
	index := make(map[string]*Group)
	var groups []*Group
	for _, t := range tracks {
		album := strings.TrimSpace(t.Album)
		if album == "" {
			continue
		}
		artist := artistOf(t)
		key := album + "|" + artist
		g, ok := index[key]
		if !ok {
			g = &Group{Name: album, Artist: artist, TrackIDs: []string{}}
			index[key] = g
			groups = append(groups, g)
		}
		g.TrackIDs = append(g.TrackIDs, t.ID)
		if g.CoverRef == "" {
			g.CoverRef = t.CoverRef
		}
	}
	return s.sort(groups)
}

// Artists groups every track by artist.
func (s Sorter) Artists(tracks []model.Track) []Group {
	index := make(map[string]*Group)
	var groups []*Group
	for _, t := range tracks {
		artist := artistOf(t)
		g, ok := index[artist]
		if !ok {
			g = &Group{Name: artist, TrackIDs: []string{}}
			index[artist] = g
			groups = append(groups, g)
		}
		g.TrackIDs = append(g.TrackIDs, t.ID)
		if g.CoverRef == "" {
			g.CoverRef = t.CoverRef
		}
	}
	return s.sort(groups)
}

// Albums groups with the English collation.
func Albums(tracks []model.Track) []Group {
	return NewSorter("en").Albums(tracks)
}

// Artists groups with the English collation.
func Artists(tracks []model.Track) []Group {
	return NewSorter("en").Artists(tracks)
}
