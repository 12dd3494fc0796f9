// Package lyrics parses LRC synced lyrics.
package lyrics

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"genesis/model"
)

var timeTag = regexp.MustCompile(`\[(\d{2}):(\d{2})\.(\d{2,3})\]`)

// ParseLRC returns the timed lines of an LRC text, ordered by time.
//
// A line may carry several leading time tags ("[00:12.00][00:45.00]chorus").
// Lines without text are dropped. Lines sharing a timestamp are joined with a
// newline so that times are strictly increasing.
func ParseLRC(text string) []model.LyricLine {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var lines []model.LyricLine
	for _, raw := range strings.Split(text, "\n") {
		raw = strings.TrimRight(raw, "\r")
		matches := timeTag.FindAllStringSubmatchIndex(raw, -1)
		if len(matches) == 0 {
			continue
		}

		// Text follows the last of the consecutive leading tags.
		end := matches[0][1]
		times := []float64{tagSeconds(raw, matches[0])}
		for _, m := range matches[1:] {
			if m[0] != end {
				break
			}
			end = m[1]
			times = append(times, tagSeconds(raw, m))
		}

		body := strings.TrimSpace(raw[:matches[0][0]] + raw[end:])
		if body == "" {
			continue
		}
		for _, t := range times {
			lines = append(lines, model.LyricLine{Time: t, Text: body})
		}
	}

	sort.SliceStable(lines, func(i, j int) bool { return lines[i].Time < lines[j].Time })

	merged := lines[:0]
	for _, l := range lines {
		if n := len(merged); n > 0 && merged[n-1].Time == l.Time {
			merged[n-1].Text += "\n" + l.Text
			continue
		}
		merged = append(merged, l)
	}
	if len(merged) == 0 {
		return nil
	}
	return merged
}

func tagSeconds(s string, m []int) float64 {
	minutes, _ := strconv.Atoi(s[m[2]:m[3]])
	seconds, _ := strconv.Atoi(s[m[4]:m[5]])
	frac := s[m[6]:m[7]]
	for len(frac) < 3 {
		frac += "0"
	}
	millis, _ := strconv.Atoi(frac)
	return float64((minutes*60+seconds)*1000+millis) / 1000
}
