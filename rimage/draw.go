package rimage

import (
	"image/color"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"
)

var captionFont *truetype.Font

func init() {
	var err error
	captionFont, err = truetype.Parse(goregular.TTF)
	if err != nil {
		panic(err)
	}
}

// captionMargin is the distance in pixels from the top left corner to the caption.
const captionMargin = 8

// DrawCaption writes text into the top left corner of the context, wrapped at the context's
// width. A one pixel black shadow keeps it readable over bright points.
func DrawCaption(dc *gg.Context, text string, c color.Color, size float64) {
	if text == "" || size <= 0 {
		return
	}
	dc.SetFontFace(truetype.NewFace(captionFont, &truetype.Options{Size: size}))
	width := float64(dc.Width() - 2*captionMargin)
	dc.SetColor(color.Black)
	dc.DrawStringWrapped(text, captionMargin+1, captionMargin+1, 0, 0, width, 1, gg.AlignLeft)
	dc.SetColor(c)
	dc.DrawStringWrapped(text, captionMargin, captionMargin, 0, 0, width, 1, gg.AlignLeft)
}
