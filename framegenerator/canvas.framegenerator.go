package framegenerator

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/draw"
	"golang.org/x/image/font/gofont/goregular"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// Canvas is an image held by an ImageBackend.
type Canvas interface {
	Image() image.Image
	Bounds() image.Rectangle
	// Grayscale reports whether the source file stored gray samples,
	// even if decoding widened them to RGB.
	Grayscale() bool
}

// ImageBackend is everything the extractor needs from an image toolkit.
type ImageBackend interface {
	Open(path string) (Canvas, error)
	// Crop copies box out of src into a new mutable canvas.
	Crop(src Canvas, box image.Rectangle) Canvas
	DrawVerticalLine(c Canvas, x int, col Color, width int) error
	DrawLabel(c Canvas, text string) error
	Save(c Canvas, path string) error
	Encode(c Canvas, w io.Writer) error
}

type ggCanvas struct {
	im   image.Image
	dc   *gg.Context
	gray bool
}

func (c *ggCanvas) Image() image.Image      { return c.im }
func (c *ggCanvas) Bounds() image.Rectangle { return c.im.Bounds() }
func (c *ggCanvas) Grayscale() bool         { return c.gray }

// GGBackend draws with fogleman/gg. It is safe for concurrent use on distinct canvases.
type GGBackend struct {
	font *truetype.Font
}

func NewGGBackend() (*GGBackend, error) {
	f, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse label font: %w", err)
	}

	return &GGBackend{font: f}, nil
}

// Open decodes the image at path. The returned canvas is read-only.
func (b *GGBackend) Open(path string) (Canvas, error) {
	im, err := gg.LoadImage(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	gray, err := pngGrayscale(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	switch im.ColorModel() {
	case color.GrayModel, color.Gray16Model, color.AlphaModel, color.Alpha16Model:
		gray = true
	}
	return &ggCanvas{im: im, gray: gray}, nil
}

// pngGrayscale reads the IHDR color type of a PNG file. The decoder turns
// gray+alpha into NRGBA, so the decoded color model cannot tell.
func pngGrayscale(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	var hdr [pngColorTypeOffset + 1]byte
	if _, err := io.ReadFull(f, hdr[:]); err != nil {
		// too short to be a PNG, leave it to the decoder's verdict
		return false, nil
	}
	if string(hdr[:len(pngSignature)]) != pngSignature || string(hdr[12:16]) != "IHDR" {
		return false, nil
	}

	ct := hdr[pngColorTypeOffset]
	return ct == pngColorGray || ct == pngColorGrayAlpha, nil
}

func (b *GGBackend) Crop(src Canvas, box image.Rectangle) Canvas {
	dst := image.NewRGBA(image.Rect(0, 0, box.Dx(), box.Dy()))
	draw.Copy(dst, image.Point{}, src.Image(), box, draw.Src, nil)
	return &ggCanvas{im: dst, dc: gg.NewContextForRGBA(dst), gray: src.Grayscale()}
}

func (b *GGBackend) context(c Canvas) (*gg.Context, error) {
	gc, ok := c.(*ggCanvas)
	if !ok || gc.dc == nil {
		return nil, ErrReadOnlyCanvas
	}
	return gc.dc, nil
}

// DrawVerticalLine fills columns x-(width-1)/2 .. x+width/2 over the full height.
func (b *GGBackend) DrawVerticalLine(c Canvas, x int, col Color, width int) error {
	dc, err := b.context(c)
	if err != nil {
		return err
	}

	left := x - (width-1)/2
	dc.SetColor(col.NRGBA())
	dc.DrawRectangle(float64(left), 0, float64(width), float64(dc.Height()))
	dc.Fill()
	return nil
}

func (b *GGBackend) DrawLabel(c Canvas, text string) error {
	dc, err := b.context(c)
	if err != nil {
		return err
	}

	// faces cache glyphs and must not be shared between goroutines
	dc.SetFontFace(truetype.NewFace(b.font, &truetype.Options{Size: labelFontSize}))
	dc.SetColor(labelColor.NRGBA())
	dc.DrawString(text, 30, 30)
	return nil
}

func (b *GGBackend) Save(c Canvas, path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return gg.SavePNG(path, c.Image())
	case ".jpg", ".jpeg":
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := jpeg.Encode(f, c.Image(), &jpeg.Options{Quality: 95}); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}
	return fmt.Errorf("unsupported frame format: %s", path)
}

func (b *GGBackend) Encode(c Canvas, w io.Writer) error {
	if gc, ok := c.(*ggCanvas); ok && gc.dc != nil {
		return gc.dc.EncodePNG(w)
	}
	return fmt.Errorf("encode: %w", ErrReadOnlyCanvas)
}
