package pdf

import (
	"fmt"
	"strconv"
	"strings"
)

// PageSize is a page geometry in points (1/72 inch).
type PageSize struct {
	Width  float64
	Height float64
}

var (
	A3     = PageSize{Width: 841.8897637795277, Height: 1190.5511811023623}
	A4     = PageSize{Width: 595.2755905511812, Height: 841.8897637795277}
	A5     = PageSize{Width: 419.5275590551181, Height: 595.2755905511812}
	Letter = PageSize{Width: 612, Height: 792}
	Legal  = PageSize{Width: 612, Height: 1008}
)

var namedSizes = map[string]PageSize{
	"a3":     A3,
	"a4":     A4,
	"a5":     A5,
	"letter": Letter,
	"legal":  Legal,
}

// Landscape returns the size with width and height swapped when the page is
// taller than it is wide.
func (s PageSize) Landscape() PageSize {
	if s.Height > s.Width {
		return PageSize{Width: s.Height, Height: s.Width}
	}
	return s
}

// ParsePageSize accepts a named size (a3, a4, a5, letter, legal) or an
// explicit WIDTHxHEIGHT in points, e.g. "500x700".
func ParsePageSize(s string) (PageSize, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if size, ok := namedSizes[key]; ok {
		return size, nil
	}

	w, h, found := strings.Cut(key, "x")
	if !found {
		return PageSize{}, &OptionsError{Field: "page-size", Reason: fmt.Sprintf("unknown page size %q", s)}
	}
	width, err := strconv.ParseFloat(strings.TrimSpace(w), 64)
	if err != nil {
		return PageSize{}, &OptionsError{Field: "page-size", Reason: fmt.Sprintf("invalid width in %q", s)}
	}
	height, err := strconv.ParseFloat(strings.TrimSpace(h), 64)
	if err != nil {
		return PageSize{}, &OptionsError{Field: "page-size", Reason: fmt.Sprintf("invalid height in %q", s)}
	}
	size := PageSize{Width: width, Height: height}
	if size.Width <= 0 || size.Height <= 0 {
		return PageSize{}, &OptionsError{Field: "page-size", Reason: fmt.Sprintf("dimensions must be positive, got %q", s)}
	}
	return size, nil
}

// Options controls how images are laid out on their page. It is passed by
// value through the whole pipeline.
type Options struct {
	PageSize            PageSize
	FitToPage           bool
	MaintainAspectRatio bool
	// Quality is the JPEG quality used when re-encoding images, 1-100.
	Quality int
	// DPI is written into the image metadata only; it does not affect layout.
	DPI int
}

// DefaultOptions returns A4 pages, fit and aspect ratio on, quality 85, 300 dpi.
func DefaultOptions() Options {
	return Options{
		PageSize:            A4,
		FitToPage:           true,
		MaintainAspectRatio: true,
		Quality:             85,
		DPI:                 300,
	}
}

// Validate reports the first out-of-range field.
func (o Options) Validate() error {
	if o.PageSize.Width <= 0 || o.PageSize.Height <= 0 {
		return &OptionsError{Field: "page-size", Reason: "dimensions must be positive"}
	}
	if o.Quality < 1 || o.Quality > 100 {
		return &OptionsError{Field: "quality", Reason: fmt.Sprintf("must be between 1 and 100, got %d", o.Quality)}
	}
	if o.DPI <= 0 {
		return &OptionsError{Field: "dpi", Reason: fmt.Sprintf("must be positive, got %d", o.DPI)}
	}
	return nil
}
