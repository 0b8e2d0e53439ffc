package framegenerator

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/lucasb-eyer/go-colorful"
)

// Config is the run configuration handed to NewExtractor.
//
// StepPixels, FrameRate and PixelsPerSecond are tied together:
// PixelsPerSecond == StepPixels * FrameRate. A zero PixelsPerSecond is derived
// from the other two instead of being checked.
type Config struct {
	StepPixels       int
	Resolution       ScreenResolution
	HighlightColor   Color
	HighlightWidth   int
	ProgressInterval int
	FrameRate        int
	PixelsPerSecond  int

	OutputDir       string
	Format          string
	Workers         int
	ContinueOnError bool
	CleanOutput     bool
	Debug           bool
}

func DefaultConfig() Config {
	return Config{
		StepPixels:       defaultStepPixels,
		Resolution:       defaultResolution,
		HighlightColor:   blueColor,
		HighlightWidth:   defaultHighlightWidth,
		ProgressInterval: defaultProgressInterval,
		FrameRate:        defaultFrameRate,
		PixelsPerSecond:  defaultStepPixels * defaultFrameRate,
		OutputDir:        ".",
		Format:           "png",
		Workers:          1,
	}
}

func (c Config) FrameWidth() int  { return c.Resolution.Width() }
func (c Config) FrameHeight() int { return c.Resolution.Height() }

func (c Config) Validate() error {
	switch {
	case c.StepPixels <= 0:
		return fmt.Errorf("%w: step must be positive, got %d", ErrInvalidConfig, c.StepPixels)
	case c.FrameWidth() <= 0 || c.FrameHeight() <= 0:
		return fmt.Errorf("%w: resolution %dx%d", ErrInvalidConfig, c.FrameWidth(), c.FrameHeight())
	case c.HighlightWidth <= 0:
		return fmt.Errorf("%w: highlight width must be positive, got %d", ErrInvalidConfig, c.HighlightWidth)
	case c.ProgressInterval <= 0:
		return fmt.Errorf("%w: progress interval must be positive, got %d", ErrInvalidConfig, c.ProgressInterval)
	case c.FrameRate <= 0:
		return fmt.Errorf("%w: frame rate must be positive, got %d", ErrInvalidConfig, c.FrameRate)
	case c.Workers <= 0:
		return fmt.Errorf("%w: workers must be positive, got %d", ErrInvalidConfig, c.Workers)
	case !supportedFormats[c.Format]:
		return fmt.Errorf("%w: unsupported frame format %q", ErrInvalidConfig, c.Format)
	}

	if c.PixelsPerSecond != 0 && c.PixelsPerSecond != c.StepPixels*c.FrameRate {
		return fmt.Errorf("%w: step %d px at %d fps scrolls %d px/s but the panorama has %d px/s",
			ErrInvalidConfig, c.StepPixels, c.FrameRate, c.StepPixels*c.FrameRate, c.PixelsPerSecond)
	}
	return nil
}

// Settings is the environment facing form of Config.
type Settings struct {
	PanoramaPath     string `env:"PANORAMA_PATH"            envDefault:"spectrogram-rgb.png"`
	OutputDir        string `env:"FRAMES_DIR"               envDefault:"."`
	Format           string `env:"FRAME_FORMAT"             envDefault:"png"`
	StepPixels       int    `env:"STEP_PIXELS"              envDefault:"4"`
	FrameRate        int    `env:"FRAME_RATE"               envDefault:"25"`
	PixelsPerSecond  int    `env:"PIXELS_PER_SECOND"        envDefault:"100"`
	Resolution       string `env:"OUTPUT_RESOLUTION"        envDefault:"720p"`
	HighlightColor   string `env:"HIGHLIGHT_COLOR"          envDefault:"#0000b4"`
	HighlightWidth   int    `env:"HIGHLIGHT_WIDTH_PX"       envDefault:"3"`
	ProgressInterval int    `env:"PROGRESS_INTERVAL_FRAMES" envDefault:"10"`
	Workers          int    `env:"WORKERS"                  envDefault:"0"`
	ContinueOnError  bool   `env:"CONTINUE_ON_ERROR"        envDefault:"false"`
	CleanOutput      bool   `env:"CLEAN_OUTPUT"             envDefault:"false"`
	Debug            bool   `env:"DEBUG"                    envDefault:"false"`

	LogLevel    string `env:"LOG_LEVEL"    envDefault:"info"`
	PreviewPort int    `env:"PREVIEW_PORT" envDefault:"8888"`
}

func LoadSettings() (*Settings, error) {
	s := &Settings{}
	if err := env.Parse(s); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Settings) Config() (Config, error) {
	res, ok := resolutions[strings.ToLower(s.Resolution)]
	if !ok {
		return Config{}, fmt.Errorf("%w: unknown resolution %q", ErrInvalidConfig, s.Resolution)
	}

	col, err := parseColor(s.HighlightColor)
	if err != nil {
		return Config{}, err
	}

	workers := s.Workers
	if workers == 0 {
		workers = runtime.NumCPU()
	}

	cfg := Config{
		StepPixels:       s.StepPixels,
		Resolution:       res,
		HighlightColor:   col,
		HighlightWidth:   s.HighlightWidth,
		ProgressInterval: s.ProgressInterval,
		FrameRate:        s.FrameRate,
		PixelsPerSecond:  s.PixelsPerSecond,
		OutputDir:        s.OutputDir,
		Format:           strings.ToLower(strings.TrimPrefix(s.Format, ".")),
		Workers:          workers,
		ContinueOnError:  s.ContinueOnError,
		CleanOutput:      s.CleanOutput,
		Debug:            s.Debug,
	}
	return cfg, cfg.Validate()
}

func parseColor(s string) (Color, error) {
	if c, ok := namedColors[strings.ToLower(s)]; ok {
		return c, nil
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return Color{}, fmt.Errorf("%w: highlight color %q: %v", ErrInvalidConfig, s, err)
	}
	return Color(c), nil
}
