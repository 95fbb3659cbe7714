package rimage

import (
	"bufio"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/lmittmann/ppm"
	"github.com/pkg/errors"
	"github.com/xfmoulet/qoi"
	"go.uber.org/multierr"

	// register the remaining decoders with the image package.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"go.viam.com/cloudmosh/utils"
)

// JPEGQuality is the quality used when saving JPEG files.
const JPEGQuality = 95

// ReadImageFile decodes the image at path. The format is detected from the file contents.
func ReadImageFile(path string) (image.Image, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading image %q", path)
	}
	return img, nil
}

// WriteImageFile encodes img to path in the format named by its extension.
func WriteImageFile(path string, img image.Image) error {
	switch utils.MimeTypeFromPath(path) {
	case utils.MimeTypeQOI:
		return writeWith(path, img, qoi.Encode)
	case utils.MimeTypePPM:
		return writeWith(path, img, ppm.Encode)
	case utils.MimeTypeJPEG, utils.MimeTypePNG, utils.MimeTypeGIF, utils.MimeTypeTIFF, utils.MimeTypeBMP:
		return errors.Wrapf(imaging.Save(img, path, imaging.JPEGQuality(JPEGQuality)), "writing image %q", path)
	default:
		return errors.Errorf("do not know how to write image file %q (extension %q)", path, strings.ToLower(filepath.Ext(path)))
	}
}

func writeWith(path string, img image.Image, encode func(w io.Writer, img image.Image) error) (err error) {
	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	w := bufio.NewWriter(f)
	if err := encode(w, img); err != nil {
		return errors.Wrapf(err, "encoding %q", path)
	}
	return w.Flush()
}

// ReadArrayFile decodes the image at path into a Batch 1 array.
func ReadArrayFile(path string) (*Array, error) {
	img, err := ReadImageFile(path)
	if err != nil {
		return nil, err
	}
	return FromImage(img), nil
}

// WriteArrayFile writes every batch entry of arr to path. Only Batch 1 arrays are accepted.
func WriteArrayFile(path string, arr *Array) error {
	if arr.Batch != 1 {
		return utils.NewShapeError("can only save one image per file, got batch of %d", arr.Batch)
	}
	img, err := arr.ToImage(0)
	if err != nil {
		return err
	}
	return WriteImageFile(path, img)
}
