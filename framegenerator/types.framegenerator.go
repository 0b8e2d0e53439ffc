package framegenerator

import (
	"image"
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
)

type Color struct {
	R float64
	G float64
	B float64
}

// NRGBA rounds the channels to 8 bits so highlight pixels come out exact.
func (c Color) NRGBA() color.NRGBA {
	r, g, b := colorful.Color(c).RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}
}

type ScreenResolution [2]int

func (r ScreenResolution) Width() int  { return r[0] }
func (r ScreenResolution) Height() int { return r[1] }

// Window is the crop placed around one playhead position.
// Left is inclusive, Right exclusive.
type Window struct {
	Center       int
	Left         int
	Right        int
	CursorOffset int
}

func (w Window) Width() int { return w.Right - w.Left }

func (w Window) Box(frameH int) image.Rectangle {
	return image.Rect(w.Left, 0, w.Right, frameH)
}

// Panorama is the loaded source raster. It is shared read-only between workers.
type Panorama struct {
	Path   string
	Canvas Canvas
	Width  int
	Height int
}

type Plan struct {
	PanoramaWidth   int     `json:"panorama_width"`
	StepPixels      int     `json:"step_pixels"`
	FrameCount      int     `json:"frame_count"`
	FrameRate       int     `json:"frame_rate"`
	PixelsPerSecond int     `json:"pixels_per_second"`
	Duration        float64 `json:"duration_seconds"`
	FrameWidth      int     `json:"frame_width"`
	FrameHeight     int     `json:"frame_height"`
}

type Result struct {
	Plan    Plan
	Written int
	// Missing holds the frame indices that failed when running with ContinueOnError.
	Missing []int
}
