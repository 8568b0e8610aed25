package invoice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePaperSize(t *testing.T) {
	p, err := ParsePaperSize("a4")
	require.NoError(t, err)
	assert.Equal(t, PaperSizeA4, p)

	p, err = ParsePaperSize(" Letter ")
	require.NoError(t, err)
	assert.Equal(t, PaperSizeLetter, p)

	_, err = ParsePaperSize("RECEIPT_58MM")
	assert.Error(t, err)
}

func TestPaperSize_Dimensions(t *testing.T) {
	tests := []struct {
		size   PaperSize
		width  float64
		height float64
	}{
		{PaperSizeA4, 210, 297},
		{PaperSizeA5, 148, 210},
		{PaperSizeLetter, 215.9, 279.4},
		{PaperSizeLegal, 215.9, 355.6},
		{PaperSize("unknown"), 210, 297},
	}
	for _, tt := range tests {
		t.Run(string(tt.size), func(t *testing.T) {
			w, h := tt.size.Dimensions()
			assert.Equal(t, tt.width, w)
			assert.Equal(t, tt.height, h)
		})
	}
}

func TestDefaultPageLayout(t *testing.T) {
	l := DefaultPageLayout()
	assert.Equal(t, PaperSizeA4, l.PaperSize)
	assert.Equal(t, OrientationPortrait, l.Orientation)
	assert.True(t, l.PrintBackground)
	assert.NoError(t, l.Validate())
}

func TestPageLayout_Validate(t *testing.T) {
	l := DefaultPageLayout()
	l.PaperSize = "B5"
	assert.Error(t, l.Validate())

	l = DefaultPageLayout()
	l.Orientation = "DIAGONAL"
	assert.Error(t, l.Validate())

	l = DefaultPageLayout()
	l.Margins.Left = -1
	assert.Error(t, l.Validate())

	l = DefaultPageLayout()
	l.Scale = 3
	assert.Error(t, l.Validate())
}
