package utils

import (
	"path/filepath"
	"strings"
)

const (
	// MimeTypeJPEG is regular jpgs.
	MimeTypeJPEG = "image/jpeg"

	// MimeTypePNG is regular pngs.
	MimeTypePNG = "image/png"

	// MimeTypeGIF is for still or animated gifs.
	MimeTypeGIF = "image/gif"

	// MimeTypeTIFF is for tiff images.
	MimeTypeTIFF = "image/tiff"

	// MimeTypeBMP is for bitmap images.
	MimeTypeBMP = "image/bmp"

	// MimeTypeQOI is for .qoi "Quite OK Image" for lossless, fast encoding/decoding.
	MimeTypeQOI = "image/qoi"

	// MimeTypePPM is for portable pixmaps.
	MimeTypePPM = "image/x-portable-pixmap"

	// MimeTypePCD is for .pcd pointcloud files.
	MimeTypePCD = "pointcloud/pcd"

	// MimeTypeLAS is for .las lidar pointcloud files.
	MimeTypeLAS = "pointcloud/las"

	// MimeTypeVideo is anything else that ffmpeg is expected to understand.
	MimeTypeVideo = "video/*"
)

var extensionMimeTypes = map[string]string{
	".jpg":  MimeTypeJPEG,
	".jpeg": MimeTypeJPEG,
	".png":  MimeTypePNG,
	".gif":  MimeTypeGIF,
	".tif":  MimeTypeTIFF,
	".tiff": MimeTypeTIFF,
	".bmp":  MimeTypeBMP,
	".qoi":  MimeTypeQOI,
	".ppm":  MimeTypePPM,
	".pcd":  MimeTypePCD,
	".las":  MimeTypeLAS,
}

// MimeTypeFromPath guesses the mime type of a file from its extension. Unknown extensions
// are assumed to be video containers.
func MimeTypeFromPath(path string) string {
	if mt, ok := extensionMimeTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return mt
	}
	return MimeTypeVideo
}

// IsLossless reports whether files of the given mime type store pixels exactly.
func IsLossless(mimeType string) bool {
	switch mimeType {
	case MimeTypePNG, MimeTypeQOI, MimeTypePPM, MimeTypeTIFF, MimeTypeBMP:
		return true
	default:
		return false
	}
}

// IsAnimated reports whether files of the given mime type hold a sequence of frames.
func IsAnimated(mimeType string) bool {
	return mimeType == MimeTypeGIF || mimeType == MimeTypeVideo
}
