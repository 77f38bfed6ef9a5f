package utils

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"
	"net/http"
	"path"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"

	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Extensions accepted per content type. A file passes only when its declared
// type, sniffed type and extension agree.
var imageExtensions = map[string][]string{
	"image/jpeg": {".jpg", ".jpeg"},
	"image/jpg":  {".jpg", ".jpeg"},
	"image/png":  {".png"},
	"image/webp": {".webp"},
	"image/gif":  {".gif"},
	"image/bmp":  {".bmp"},
	"image/tiff": {".tif", ".tiff"},
	"image/heic": {".heic"},
	"image/heif": {".heif", ".heic"},
}

const ContentTypePDF = "application/pdf"

var ErrUnsupportedFile = errors.New("unsupported file type")

type ImageSourceMeta struct {
	Width  *int    `json:"width"`
	Height *int    `json:"height"`
	Format *string `json:"format"`
}

// ValidateUpload checks content type and filename extension. PDFs are accepted
// only when allowPDF is set.
func ValidateUpload(contentType string, filename string, data []byte, allowPDF bool) (string, error) {
	ct := strings.TrimSpace(strings.ToLower(contentType))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	ext := strings.ToLower(path.Ext(filename))

	if ct == ContentTypePDF || IsPDF(data) {
		if !allowPDF || !IsPDF(data) || (ext != "" && ext != ".pdf") {
			return "", ErrUnsupportedFile
		}
		return ContentTypePDF, nil
	}

	if ct == "" || ct == "application/octet-stream" {
		ct = DetectContentType(data)
		if isHeifFamily(data) {
			ct = "image/heic"
		}
	}
	exts, ok := imageExtensions[ct]
	if !ok {
		return "", ErrUnsupportedFile
	}
	if ext != "" {
		matched := false
		for _, e := range exts {
			if e == ext {
				matched = true
				break
			}
		}
		if !matched {
			return "", ErrUnsupportedFile
		}
	}
	return ct, nil
}

func IsPDF(data []byte) bool {
	return bytes.HasPrefix(data, []byte("%PDF-"))
}

func DetectContentType(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	sample := data
	if len(sample) > 512 {
		sample = sample[:512]
	}
	return http.DetectContentType(sample)
}

func isHeifFamily(data []byte) bool {
	// ISO BMFF: [size:4][ftyp:4][brand:4]
	if len(data) < 12 {
		return false
	}
	if string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heix", "hevc", "hevx", "mif1", "msf1", "heif":
		return true
	default:
		return false
	}
}

func decodeAndAutoRotate(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		if isHeifFamily(data) {
			if heicImg, heicErr := decodeHEIC(data); heicErr == nil {
				return heicImg, "heic", nil
			}
		}
		return nil, "", err
	}

	// Phone photos of certificates are usually JPEGs carrying an EXIF orientation.
	if strings.EqualFold(format, "jpeg") {
		if ex, exErr := exif.Decode(bytes.NewReader(data)); exErr == nil {
			if tag, tagErr := ex.Get(exif.Orientation); tagErr == nil {
				if orient, convErr := tag.Int(0); convErr == nil {
					img = applyOrientation(img, orient)
				}
			}
		}
	}

	return img, format, nil
}

func applyOrientation(img image.Image, orient int) image.Image {
	switch orient {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	}
	return img
}

func sourceMeta(img image.Image, format string) ImageSourceMeta {
	b := img.Bounds()
	w := b.Dx()
	h := b.Dy()
	return ImageSourceMeta{Width: &w, Height: &h, Format: ptrString(format)}
}

// EncodeJpegFitInside decodes, auto-rotates and re-encodes the image so neither side exceeds maxSide.
func EncodeJpegFitInside(data []byte, maxSide int, quality int) ([]byte, ImageSourceMeta, error) {
	if maxSide <= 0 {
		return nil, ImageSourceMeta{}, errors.New("maxSide must be > 0")
	}
	img, format, err := decodeAndAutoRotate(data)
	if err != nil {
		return nil, ImageSourceMeta{}, err
	}
	meta := sourceMeta(img, format)

	resized := imaging.Fit(img, maxSide, maxSide, imaging.Lanczos)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: quality}); err != nil {
		return nil, ImageSourceMeta{}, err
	}
	return buf.Bytes(), meta, nil
}

// EncodeJpegCoverSquare produces a centre-cropped square thumbnail.
func EncodeJpegCoverSquare(data []byte, size int, quality int) ([]byte, ImageSourceMeta, error) {
	if size <= 0 {
		return nil, ImageSourceMeta{}, errors.New("size must be > 0")
	}
	img, format, err := decodeAndAutoRotate(data)
	if err != nil {
		return nil, ImageSourceMeta{}, err
	}
	meta := sourceMeta(img, format)

	filled := imaging.Fill(img, size, size, imaging.Center, imaging.Lanczos)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, filled, &jpeg.Options{Quality: quality}); err != nil {
		return nil, ImageSourceMeta{}, err
	}
	return buf.Bytes(), meta, nil
}

func ptrString(v string) *string {
	vv := strings.TrimSpace(v)
	if vv == "" {
		return nil
	}
	return &vv
}
