package framegenerator

import "errors"

var blueColor = Color{0, 0, 180.0 / 255}
var redColor = Color{1, 0, 0}
var greenColor = Color{0.2, 1, 0.2}

var labelColor = Color{1, 1, 1}

var resolution1080p = ScreenResolution{1920, 1080}
var resolution720p = ScreenResolution{1280, 720}
var resolution480p = ScreenResolution{854, 480}
var resolution360p = ScreenResolution{640, 360}

var resolutions = map[string]ScreenResolution{
	"1080p": resolution1080p,
	"720p":  resolution720p,
	"480p":  resolution480p,
	"360p":  resolution360p,
}

var defaultResolution = resolution720p

const (
	defaultStepPixels       = 4
	defaultFrameRate        = 25
	defaultHighlightWidth   = 3
	defaultProgressInterval = 10

	frameNameDigits = 6
	maxFrameCount   = 1000000
	labelFontSize   = 14
)

const (
	pngSignature       = "\x89PNG\r\n\x1a\n"
	pngColorTypeOffset = 25
	pngColorGray       = 0
	pngColorGrayAlpha  = 4
)

var supportedFormats = map[string]bool{
	"png": true,
	"jpg": true,
}

var (
	ErrPanoramaTooNarrow  = errors.New("panorama is narrower than the output frame")
	ErrPlayheadOutOfRange = errors.New("playhead outside of panorama")
	ErrTooManyFrames      = errors.New("frame count exceeds the 6-digit frame name range")
	ErrWrongHeight        = errors.New("panorama height does not match output frame height")
	ErrColorMode          = errors.New("panorama must be an RGB image")
	ErrReadOnlyCanvas     = errors.New("canvas is read-only")
	ErrInvalidConfig      = errors.New("invalid extractor config")
)

var namedColors = map[string]Color{
	"blue":  blueColor,
	"red":   redColor,
	"green": greenColor,
}
