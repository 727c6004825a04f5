package utils

import (
	"strings"

	"github.com/spf13/cast"
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// Page is a normalized listing window. Number starts at 1.
type Page struct {
	Number int
	Size   int
}

// PageMeta is returned next to every listing
type PageMeta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalCount int64 `json:"totalCount"`
	TotalPages int   `json:"totalPages"`
	HasNext    bool  `json:"hasNext"`
}

// NewPage clamps number to >= 1 and size to (0, MaxPageLimit], falling back
// to DefaultPageLimit for a missing size.
func NewPage(number, size int) Page {
	if number < 1 {
		number = 1
	}
	switch {
	case size <= 0:
		size = DefaultPageLimit
	case size > MaxPageLimit:
		size = MaxPageLimit
	}
	return Page{Number: number, Size: size}
}

// PageFromQuery parses raw ?page= and ?limit= values. Garbage reads as unset.
func PageFromQuery(number, size string) Page {
	return NewPage(cast.ToInt(strings.TrimLeft(number, "0")), cast.ToInt(strings.TrimLeft(size, "0")))
}

func (p Page) Offset() int {
	if p.Number < 1 {
		return 0
	}
	return (p.Number - 1) * p.Size
}

// Meta describes p against the total row count
func (p Page) Meta(total int64) PageMeta {
	pages := 0
	if p.Size > 0 {
		pages = int((total + int64(p.Size) - 1) / int64(p.Size))
	}
	return PageMeta{
		Page:       p.Number,
		Limit:      p.Size,
		TotalCount: total,
		TotalPages: pages,
		HasNext:    p.Number < pages,
	}
}
