package invoice

import (
	"strings"

	"github.com/invoicepdf/backend/internal/domain/shared"
)

// PaperSize represents the paper size of the exported page
type PaperSize string

const (
	PaperSizeA4     PaperSize = "A4"     // 210mm x 297mm
	PaperSizeA5     PaperSize = "A5"     // 148mm x 210mm
	PaperSizeLetter PaperSize = "LETTER" // 216mm x 279mm
	PaperSizeLegal  PaperSize = "LEGAL"  // 216mm x 356mm
)

// ParsePaperSize parses a configured paper size, case-insensitively
func ParsePaperSize(s string) (PaperSize, error) {
	p := PaperSize(strings.ToUpper(strings.TrimSpace(s)))
	if !p.IsValid() {
		return "", shared.NewDomainError(shared.CodeInvalidRequest, "Invalid paper size: "+s)
	}
	return p, nil
}

// IsValid checks if the PaperSize is a valid value
func (p PaperSize) IsValid() bool {
	switch p {
	case PaperSizeA4, PaperSizeA5, PaperSizeLetter, PaperSizeLegal:
		return true
	}
	return false
}

// String returns the string representation of PaperSize
func (p PaperSize) String() string {
	return string(p)
}

// Dimensions returns the paper dimensions in millimeters (width, height)
func (p PaperSize) Dimensions() (width, height float64) {
	switch p {
	case PaperSizeA5:
		return 148, 210
	case PaperSizeLetter:
		return 215.9, 279.4
	case PaperSizeLegal:
		return 215.9, 355.6
	default:
		return 210, 297
	}
}

// Orientation represents the page orientation
type Orientation string

const (
	OrientationPortrait  Orientation = "PORTRAIT"
	OrientationLandscape Orientation = "LANDSCAPE"
)

// IsValid checks if the Orientation is a valid value
func (o Orientation) IsValid() bool {
	switch o {
	case OrientationPortrait, OrientationLandscape:
		return true
	}
	return false
}

// Margins represents the page margins in millimeters
type Margins struct {
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
}

// DefaultMargins returns the default invoice margins
func DefaultMargins() Margins {
	return Margins{Top: 10, Right: 10, Bottom: 10, Left: 10}
}

// PageLayout describes the fixed-layout page the rasterizer exports
type PageLayout struct {
	PaperSize       PaperSize
	Orientation     Orientation
	Margins         Margins
	PrintBackground bool
	Scale           float64
}

// DefaultPageLayout returns A4 portrait with background graphics enabled
func DefaultPageLayout() PageLayout {
	return PageLayout{
		PaperSize:       PaperSizeA4,
		Orientation:     OrientationPortrait,
		Margins:         DefaultMargins(),
		PrintBackground: true,
		Scale:           1.0,
	}
}

// Validate checks the layout before it reaches the rendering engine
func (l PageLayout) Validate() error {
	if !l.PaperSize.IsValid() {
		return shared.NewDomainError(shared.CodeInvalidRequest, "Invalid paper size: "+string(l.PaperSize))
	}
	if l.Orientation != "" && !l.Orientation.IsValid() {
		return shared.NewDomainError(shared.CodeInvalidRequest, "Invalid orientation: "+string(l.Orientation))
	}
	m := l.Margins
	if m.Top < 0 || m.Right < 0 || m.Bottom < 0 || m.Left < 0 {
		return shared.NewDomainError(shared.CodeInvalidRequest, "Margins cannot be negative")
	}
	if l.Scale < 0 || l.Scale > 2 {
		return shared.NewDomainError(shared.CodeInvalidRequest, "Scale must be between 0 and 2")
	}
	return nil
}
