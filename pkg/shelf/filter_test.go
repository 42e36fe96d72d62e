package shelf

import (
	"testing"

	"github.com/kerbaras/shelf/pkg/data"
	"github.com/stretchr/testify/assert"
)

func testChapters() []data.Chapter {
	return []data.Chapter{
		{Index: 0.5, Title: "Prologue"},
		{Index: 1, Title: "Start", Volume: data.Vol(1)},
		{Index: 2, Title: "Middle", Volume: data.Vol(1)},
		{Index: 3, Title: "Turn", Volume: data.Vol(2)},
		{Index: 4, Title: "End", Volume: data.Vol(2)},
		{Index: 5, Title: "Extra"},
		{Index: 6, Title: "Epilogue", Volume: data.Vol(3)},
	}
}

func accepted(f Filter, chapters []data.Chapter) []float64 {
	var out []float64
	for i := range chapters {
		if f(&chapters[i]) {
			out = append(out, chapters[i].Index)
		}
	}
	return out
}

func TestIdentities(t *testing.T) {
	chapters := testChapters()
	assert.Len(t, accepted(True(), chapters), len(chapters))
	assert.Empty(t, accepted(False(), chapters))
}

func TestAlgebraLaws(t *testing.T) {
	chapters := testChapters()
	filters := map[string]Filter{
		"index 1:3":  IndexRange(1, 3),
		"volume 2":   VolumeIn(2),
		"has volume": HasVolume(),
		"title":      TitleIn("Extra", "Start"),
		"true":       True(),
		"false":      False(),
	}

	for nameA, a := range filters {
		for nameB, b := range filters {
			for i := range chapters {
				c := &chapters[i]
				assert.Equal(t, a(c) && b(c), a.And(b)(c), "%s & %s", nameA, nameB)
				assert.Equal(t, a(c) || b(c), a.Or(b)(c), "%s | %s", nameA, nameB)
			}
		}
		for i := range chapters {
			c := &chapters[i]
			assert.Equal(t, !a(c), a.Not()(c), "~%s", nameA)
			assert.True(t, a.Or(a.Not())(c), "%s | ~%s", nameA, nameA)
			assert.False(t, a.And(a.Not())(c), "%s & ~%s", nameA, nameA)
		}
	}
}

func TestPrimitives(t *testing.T) {
	chapters := testChapters()

	assert.Equal(t, []float64{1, 2, 3}, accepted(IndexRange(1, 3), chapters))
	assert.Equal(t, []float64{0.5, 5}, accepted(IndexIn(0.5, 5), chapters))
	assert.Equal(t, []float64{1, 5}, accepted(TitleIn("Start", "Extra"), chapters))
	assert.Equal(t, []float64{1, 2, 3, 4, 6}, accepted(HasVolume(), chapters))
	assert.Equal(t, []float64{3, 4}, accepted(VolumeIn(2), chapters))
	assert.Equal(t, []float64{3, 4, 6}, accepted(VolumeRange(2, 3), chapters))
}

func TestVolumeFiltersSkipUnvolumed(t *testing.T) {
	// must not dereference a nil volume
	c := &data.Chapter{Index: 1}
	assert.False(t, VolumeIn(1)(c))
	assert.False(t, VolumeRange(0, 100)(c))
}

func TestCombine(t *testing.T) {
	chapters := testChapters()

	assert.Len(t, accepted(Combine(nil, nil), chapters), len(chapters))
	assert.Equal(t, []float64{1, 2, 4}, accepted(Combine(IndexRange(1, 4), IndexIn(3)), chapters))
	assert.Equal(t, []float64{0.5, 5}, accepted(Combine(nil, HasVolume()), chapters))
}
