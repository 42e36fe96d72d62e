package shelf

import (
	"slices"

	"github.com/kerbaras/shelf/pkg/data"
)

// Filter is a predicate over chapters. Filters compose with And, Or and Not
// and form a boolean algebra with True and False as identities.
type Filter func(chapter *data.Chapter) bool

// True accepts every chapter.
func True() Filter {
	return func(*data.Chapter) bool { return true }
}

// False rejects every chapter.
func False() Filter {
	return func(*data.Chapter) bool { return false }
}

func (f Filter) And(other Filter) Filter {
	return func(c *data.Chapter) bool { return f(c) && other(c) }
}

func (f Filter) Or(other Filter) Filter {
	return func(c *data.Chapter) bool { return f(c) || other(c) }
}

func (f Filter) Not() Filter {
	return func(c *data.Chapter) bool { return !f(c) }
}

// Combine merges an include and an exclude filter into include & ~exclude.
// A nil include accepts everything, a nil exclude rejects nothing.
func Combine(include, exclude Filter) Filter {
	if include == nil {
		include = True()
	}
	if exclude == nil {
		exclude = False()
	}
	return include.And(exclude.Not())
}

// TitleIn accepts chapters whose title is one of titles.
func TitleIn(titles ...string) Filter {
	return func(c *data.Chapter) bool { return slices.Contains(titles, c.Title) }
}

// IndexIn accepts chapters whose index is one of indices.
func IndexIn(indices ...float64) Filter {
	return func(c *data.Chapter) bool { return slices.Contains(indices, c.Index) }
}

// IndexRange accepts chapters with start <= index <= end.
func IndexRange(start, end float64) Filter {
	return func(c *data.Chapter) bool { return start <= c.Index && c.Index <= end }
}

// HasVolume accepts chapters that belong to a volume.
func HasVolume() Filter {
	return func(c *data.Chapter) bool { return c.Volume != nil }
}

// VolumeIn accepts chapters whose volume is one of volumes.
func VolumeIn(volumes ...float64) Filter {
	return HasVolume().And(func(c *data.Chapter) bool {
		return slices.Contains(volumes, *c.Volume)
	})
}

// VolumeRange accepts chapters with start <= volume <= end.
func VolumeRange(start, end float64) Filter {
	return HasVolume().And(func(c *data.Chapter) bool {
		return start <= *c.Volume && *c.Volume <= end
	})
}
