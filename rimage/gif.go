package rimage

import (
	"bufio"
	"image"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	cmutils "go.viam.com/cloudmosh/utils"
)

// DefaultGIFDelay is the default time between GIF frames, in 100ths of a second.
const DefaultGIFDelay = 10

// ReadGIFFrames decodes every frame of the GIF at path. Frames are composited onto a canvas of
// the full GIF size, so each one is a complete picture.
func ReadGIFFrames(path string) (Frames, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading gif %q", path)
	}
	defer utils.UncheckedErrorFunc(f.Close)

	anim, err := gif.DecodeAll(bufio.NewReader(f))
	if err != nil {
		return nil, errors.Wrapf(err, "decoding gif %q", path)
	}

	width, height := anim.Config.Width, anim.Config.Height
	if width == 0 || height == 0 {
		if len(anim.Image) == 0 {
			return nil, errors.Errorf("gif %q has no frames", path)
		}
		width, height = anim.Image[0].Bounds().Dx(), anim.Image[0].Bounds().Dy()
	}

	canvas := image.NewNRGBA(image.Rect(0, 0, width, height))
	frames := make(Frames, 0, len(anim.Image))
	for i, frame := range anim.Image {
		var previous *image.NRGBA
		if i < len(anim.Disposal) && anim.Disposal[i] == gif.DisposalPrevious {
			previous = image.NewNRGBA(canvas.Bounds())
			copy(previous.Pix, canvas.Pix)
		}
		draw.Draw(canvas, frame.Bounds(), frame, frame.Bounds().Min, draw.Over)
		frames = append(frames, FromImage(canvas))

		if i < len(anim.Disposal) {
			switch anim.Disposal[i] {
			case gif.DisposalBackground:
				draw.Draw(canvas, frame.Bounds(), image.Transparent, image.Point{}, draw.Src)
			case gif.DisposalPrevious:
				canvas = previous
			}
		}
	}
	return frames, nil
}

// WriteGIF encodes frames as an animated GIF at path. Frames are quantized to the Plan9 palette
// with Floyd-Steinberg dithering. delay is the time between frames in 100ths of a second.
func WriteGIF(path string, frames Frames, delay int) (err error) {
	if len(frames) == 0 {
		return cmutils.NewShapeError("cannot write gif %q without frames", path)
	}
	anim := &gif.GIF{}
	for i, frame := range frames {
		if frame.Batch != 1 {
			return cmutils.NewShapeError("gif frame %d has batch %d, expected 1", i, frame.Batch)
		}
		img, err := frame.ToImage(0)
		if err != nil {
			return err
		}
		paletted := image.NewPaletted(img.Bounds(), palette.Plan9)
		draw.FloydSteinberg.Draw(paletted, img.Bounds(), img, image.Point{})
		anim.Image = append(anim.Image, paletted)
		anim.Delay = append(anim.Delay, delay)
	}

	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	w := bufio.NewWriter(f)
	if err := gif.EncodeAll(w, anim); err != nil {
		return errors.Wrapf(err, "encoding gif %q", path)
	}
	return w.Flush()
}
