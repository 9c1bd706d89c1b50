package pdf

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"

	_ "github.com/hhrutter/tiff"
	"github.com/jung-kurt/gofpdf"
	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

const (
	// pageMargin is kept empty on every side when an image is fitted.
	pageMargin = 20.0

	// maxImageDimension and maxImagePixels bound what the decoders are asked
	// to allocate.
	maxImageDimension       = 32768
	maxImagePixels    int64 = 64 * 1024 * 1024
)

// Placement is where an image lands on its page, in points, with the origin
// at the bottom-left corner of the page.
type Placement struct {
	X      float64
	Y      float64
	Width  int
	Height int
}

// Fit computes the placement of an imgW x imgH pixel image on a page.
//
// Without FitToPage the native pixel size is used as the size in points at
// the page origin, with no DPI scaling, so large images overflow the page.
// With FitToPage the image is scaled into the page minus the margin and
// centered; MaintainAspectRatio picks uniform scaling over stretching.
func Fit(imgW, imgH int, opts Options) (Placement, error) {
	if imgW <= 0 || imgH <= 0 {
		return Placement{}, fmt.Errorf("image has no pixels (%d x %d)", imgW, imgH)
	}
	if !opts.FitToPage {
		return Placement{Width: imgW, Height: imgH}, nil
	}

	page := opts.PageSize
	availW := page.Width - 2*pageMargin
	availH := page.Height - 2*pageMargin
	if availW <= 0 || availH <= 0 {
		return Placement{}, &OptionsError{
			Field:  "page-size",
			Reason: fmt.Sprintf("%gx%g leaves no room inside the %gpt margin", page.Width, page.Height, pageMargin),
		}
	}

	var w, h int
	if opts.MaintainAspectRatio {
		ratio := min(availW/float64(imgW), availH/float64(imgH))
		w = int(float64(imgW) * ratio)
		h = int(float64(imgH) * ratio)
	} else {
		w = int(availW)
		h = int(availH)
	}
	w = max(w, 1)
	h = max(h, 1)

	return Placement{
		X:      (page.Width - float64(w)) / 2,
		Y:      (page.Height - float64(h)) / 2,
		Width:  w,
		Height: h,
	}, nil
}

// ImageToPage renders a single raster image onto a one-page PDF.
type ImageToPage struct{}

// Convert decodes imagePath, lays it out according to opts and writes a
// single-page PDF to outputPath, replacing any existing file.
func (ImageToPage) Convert(imagePath, outputPath string, opts Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}

	img, err := decodeImage(imagePath)
	if err != nil {
		return &DecodeError{Path: imagePath, Err: err}
	}

	rgb := toRGB(img)
	place, err := Fit(rgb.Bounds().Dx(), rgb.Bounds().Dy(), opts)
	if err != nil {
		return err
	}

	jpg, err := encodeJPEG(resize(rgb, place.Width, place.Height), opts.Quality, opts.DPI)
	if err != nil {
		return &WriteError{Path: outputPath, Err: err}
	}

	if err := renderPage(jpg, place, opts.PageSize, filepath.Base(imagePath), outputPath); err != nil {
		return &WriteError{Path: outputPath, Err: err}
	}
	return nil
}

func decodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return nil, errors.Wrap(err, "reading image header")
	}
	if err := checkImageBounds(cfg.Width, cfg.Height); err != nil {
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding %s", format)
	}
	return img, nil
}

func checkImageBounds(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("image bounds invalid (%d x %d)", width, height)
	}
	if width > maxImageDimension || height > maxImageDimension {
		return fmt.Errorf("image dimension exceeds limit (%d x %d)", width, height)
	}
	if pixels := int64(width) * int64(height); pixels > maxImagePixels {
		return fmt.Errorf("image pixel count %d exceeds limit %d", pixels, maxImagePixels)
	}
	return nil
}

// toRGB copies src into an opaque RGBA buffer anchored at (0,0). Alpha is
// discarded rather than composited, so transparent pixels keep their color.
func toRGB(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))

	switch s := src.(type) {
	case *image.YCbCr, *image.Gray:
		// Always opaque; draw has fast paths for both.
		draw.Draw(dst, dst.Bounds(), s, b.Min, draw.Src)
	case *image.NRGBA:
		rowLen := b.Dx() * 4
		for y := 0; y < b.Dy(); y++ {
			in := s.Pix[s.PixOffset(b.Min.X, b.Min.Y+y):][:rowLen]
			out := dst.Pix[dst.PixOffset(0, y):][:rowLen]
			for i := 0; i < rowLen; i += 4 {
				out[i], out[i+1], out[i+2], out[i+3] = in[i], in[i+1], in[i+2], 0xff
			}
		}
	default:
		// One color conversion per pixel: slow on large images, but only
		// paletted, 16-bit and CMYK sources end up here.
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				c := color.NRGBAModel.Convert(src.At(x, y)).(color.NRGBA)
				dst.SetRGBA(x-b.Min.X, y-b.Min.Y, color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff})
			}
		}
	}
	return dst
}

func resize(src *image.RGBA, w, h int) *image.RGBA {
	if src.Bounds().Dx() == w && src.Bounds().Dy() == h {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

func encodeJPEG(img image.Image, quality, dpi int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, errors.Wrap(err, "encoding jpeg")
	}
	return withJFIFDensity(buf.Bytes(), dpi)
}

func renderPage(jpg []byte, place Placement, page PageSize, name, outputPath string) error {
	doc := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: page.Width, Ht: page.Height},
	})
	doc.SetMargins(0, 0, 0)
	doc.SetAutoPageBreak(false, 0)
	doc.AddPage()

	imgOpts := gofpdf.ImageOptions{ImageType: "JPG", AllowNegativePosition: true}
	doc.RegisterImageOptionsReader(name, imgOpts, bytes.NewReader(jpg))

	// gofpdf measures y from the top edge.
	top := page.Height - place.Y - float64(place.Height)
	doc.ImageOptions(name, place.X, top, float64(place.Width), float64(place.Height), false, imgOpts, 0, "")
	if err := doc.Error(); err != nil {
		return errors.Wrap(err, "rendering page")
	}

	return doc.OutputFileAndClose(outputPath)
}
