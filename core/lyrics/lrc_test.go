package lyrics

import (
	"testing"

	"genesis/model"

	"github.com/stretchr/testify/assert"
)

func TestParseLRC(t *testing.T) {
	text := "[ar:Someone]\n" +
		"[00:12.50]second line\r\n" +
		"[00:01.00]first line\n" +
		"[00:20.00]   \n" +
		"no tag here\n" +
		"[01:02.345]third line"

	got := ParseLRC(text)
	assert.Equal(t, []model.LyricLine{
		{Time: 1, Text: "first line"},
		{Time: 12.5, Text: "second line"},
		{Time: 62.345, Text: "third line"},
	}, got)
}

func TestParseLRCTwoDigitFractionIsCentiseconds(t *testing.T) {
	got := ParseLRC("[00:00.05]a")
	assert.InDelta(t, 0.05, got[0].Time, 1e-9)
}

func TestParseLRCRepeatedTags(t *testing.T) {
	got := ParseLRC("[00:10.00][00:30.00]chorus\n[00:20.00]verse")
	assert.Equal(t, []model.LyricLine{
		{Time: 10, Text: "chorus"},
		{Time: 20, Text: "verse"},
		{Time: 30, Text: "chorus"},
	}, got)
}

func TestParseLRCStrictlyIncreasing(t *testing.T) {
	got := ParseLRC("[00:05.00]original\n[00:05.00]translation\n[00:06.00]next")
	assert.Equal(t, []model.LyricLine{
		{Time: 5, Text: "original\ntranslation"},
		{Time: 6, Text: "next"},
	}, got)
	for i := 1; i < len(got); i++ {
		assert.Greater(t, got[i].Time, got[i-1].Time)
	}
}

func TestParseLRCEmpty(t *testing.T) {
	assert.Nil(t, ParseLRC(""))
	assert.Nil(t, ParseLRC("plain lyrics\nwithout timing"))
}
