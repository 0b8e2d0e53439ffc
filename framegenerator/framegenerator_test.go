package framegenerator

import (
	"bytes"
	"compress/zlib"
	"context"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

var testResolution = ScreenResolution{64, 36}

func testConfig(t *testing.T) Config {
	cfg := DefaultConfig()
	cfg.Resolution = testResolution
	cfg.OutputDir = t.TempDir()
	return cfg
}

// panoramaPixel encodes the column in red/green so crops can be traced back.
func panoramaPixel(x, y int) color.NRGBA {
	return color.NRGBA{R: uint8(x % 256), G: uint8(x / 256 * 16), B: uint8(y), A: 255}
}

func writePanorama(t *testing.T, width, height int) string {
	t.Helper()
	im := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			im.SetNRGBA(x, y, panoramaPixel(x, y))
		}
	}
	return writePNG(t, im)
}

func writePNG(t *testing.T, im image.Image) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "spectrogram.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, im))
	require.NoError(t, f.Close())
	return path
}

// writeGrayAlphaPNG writes a PNG with color type 4, which image/png can decode but not encode.
func writeGrayAlphaPNG(t *testing.T, width, height int) string {
	t.Helper()

	chunk := func(buf *bytes.Buffer, typ string, data []byte) {
		binary.Write(buf, binary.BigEndian, uint32(len(data)))
		buf.WriteString(typ)
		buf.Write(data)
		crc := crc32.NewIEEE()
		crc.Write([]byte(typ))
		crc.Write(data)
		binary.Write(buf, binary.BigEndian, crc.Sum32())
	}

	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:], uint32(width))
	binary.BigEndian.PutUint32(ihdr[4:], uint32(height))
	ihdr[8] = 8 // bit depth
	ihdr[9] = 4 // gray + alpha

	var raw bytes.Buffer
	for y := 0; y < height; y++ {
		raw.WriteByte(0) // filter: none
		for x := 0; x < width; x++ {
			raw.Write([]byte{uint8(x), 255})
		}
	}
	var idat bytes.Buffer
	zw := zlib.NewWriter(&idat)
	_, err := zw.Write(raw.Bytes())
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	chunk(&buf, "IHDR", ihdr)
	chunk(&buf, "IDAT", idat.Bytes())
	chunk(&buf, "IEND", nil)

	path := filepath.Join(t.TempDir(), "gray-alpha.png")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	// the decoder widens it, so only the header gives it away
	im := readPNG(t, path)
	_, isNRGBA := im.(*image.NRGBA)
	require.True(t, isNRGBA)
	return path
}

func readPNG(t *testing.T, path string) image.Image {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	im, err := png.Decode(f)
	require.NoError(t, err)
	return im
}

func newTestExtractor(t *testing.T, cfg Config, backend ImageBackend) *Extractor {
	t.Helper()
	if backend == nil {
		b, err := NewGGBackend()
		require.NoError(t, err)
		backend = b
	}
	e, err := NewExtractor(cfg, backend, zaptest.NewLogger(t))
	require.NoError(t, err)
	return e
}

// sameRGB allows a rounding step of slack for pixels painted by the rasterizer.
func sameRGB(t *testing.T, want, got color.Color, msgAndArgs ...any) {
	t.Helper()
	wr, wg, wb, _ := want.RGBA()
	gr, gg, gb, _ := got.RGBA()
	assert.InDelta(t, float64(wr>>8), float64(gr>>8), 2, msgAndArgs...)
	assert.InDelta(t, float64(wg>>8), float64(gg>>8), 2, msgAndArgs...)
	assert.InDelta(t, float64(wb>>8), float64(gb>>8), 2, msgAndArgs...)
}

func TestExtractWritesEveryFrame(t *testing.T) {
	cfg := testConfig(t)
	cfg.Workers = 4
	e := newTestExtractor(t, cfg, nil)

	p, err := e.Load(writePanorama(t, 150, 36))
	require.NoError(t, err)

	res, err := e.Extract(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, 38, res.Plan.FrameCount)
	assert.Equal(t, 38, res.Written)
	assert.Empty(t, res.Missing)
	assert.InDelta(t, 38.0/25.0, res.Plan.Duration, 1e-9)

	files, err := filepath.Glob(filepath.Join(cfg.OutputDir, "*.png"))
	require.NoError(t, err)
	require.Len(t, files, 38)
	for i, f := range files {
		assert.Equal(t, FrameName(i, "png"), filepath.Base(f))
	}

	for i := 0; i < res.Plan.FrameCount; i++ {
		im := readPNG(t, framePath(cfg.OutputDir, i, "png"))
		require.Equal(t, image.Rect(0, 0, 64, 36), im.Bounds(), "frame %d", i)

		w, err := ComputeWindow(i*cfg.StepPixels, p.Width, 64)
		require.NoError(t, err)

		for x := 0; x < 64; x++ {
			if x >= w.CursorOffset-1 && x <= w.CursorOffset+1 {
				sameRGB(t, blueColor.NRGBA(), im.At(x, 10), "frame %d cursor column %d", i, x)
				continue
			}
			sameRGB(t, panoramaPixel(w.Left+x, 10), im.At(x, 10), "frame %d column %d", i, x)
		}
	}
}

func TestExtractSequentialMatchesParallel(t *testing.T) {
	path := writePanorama(t, 131, 36)

	render := func(workers int) string {
		cfg := testConfig(t)
		cfg.Workers = workers
		e := newTestExtractor(t, cfg, nil)
		p, err := e.Load(path)
		require.NoError(t, err)
		_, err = e.Extract(context.Background(), p)
		require.NoError(t, err)
		return cfg.OutputDir
	}

	seq, par := render(1), render(8)
	for i := 0; i < FrameCount(131, 4); i++ {
		a, err := os.ReadFile(framePath(seq, i, "png"))
		require.NoError(t, err)
		b, err := os.ReadFile(framePath(par, i, "png"))
		require.NoError(t, err)
		assert.True(t, bytes.Equal(a, b), "frame %d differs", i)
	}
}

func TestExtractLogsProgressEveryInterval(t *testing.T) {
	cfg := testConfig(t)
	cfg.Workers = 4
	cfg.ProgressInterval = 10

	b, err := NewGGBackend()
	require.NoError(t, err)
	core, logs := observer.New(zap.InfoLevel)
	e, err := NewExtractor(cfg, b, zap.New(core))
	require.NoError(t, err)

	p, err := e.Load(writePanorama(t, 150, 36))
	require.NoError(t, err)

	_, err = e.Extract(context.Background(), p)
	require.NoError(t, err)

	var frames []string
	for _, entry := range logs.FilterMessage("crop").All() {
		frames = append(frames, entry.ContextMap()["frame"].(string))
	}
	slices.Sort(frames)
	assert.Equal(t, []string{"000000.png", "000010.png", "000020.png", "000030.png"}, frames)
}

func TestExtractPanoramaOneFrameWide(t *testing.T) {
	cfg := testConfig(t)
	e := newTestExtractor(t, cfg, nil)

	p, err := e.Load(writePanorama(t, 64, 36))
	require.NoError(t, err)

	res, err := e.Extract(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, 16, res.Written)

	last := readPNG(t, framePath(cfg.OutputDir, 15, "png"))
	sameRGB(t, panoramaPixel(0, 5), last.At(0, 5))
	sameRGB(t, blueColor.NRGBA(), last.At(60, 5))
}

func TestExtractLeavesPanoramaUntouched(t *testing.T) {
	cfg := testConfig(t)
	e := newTestExtractor(t, cfg, nil)

	p, err := e.Load(writePanorama(t, 100, 36))
	require.NoError(t, err)

	_, err = e.Extract(context.Background(), p)
	require.NoError(t, err)

	for x := 0; x < 100; x++ {
		sameRGB(t, panoramaPixel(x, 3), p.Canvas.Image().At(x, 3), "column %d", x)
	}
}

func TestExtractCleanOutput(t *testing.T) {
	cfg := testConfig(t)
	cfg.CleanOutput = true
	stale := filepath.Join(cfg.OutputDir, "000999.png")
	notes := filepath.Join(cfg.OutputDir, "notes.txt")
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))
	require.NoError(t, os.WriteFile(notes, []byte("keep"), 0o644))

	e := newTestExtractor(t, cfg, nil)
	p, err := e.Load(writePanorama(t, 64, 36))
	require.NoError(t, err)

	_, err = e.Extract(context.Background(), p)
	require.NoError(t, err)

	assert.NoFileExists(t, stale)
	assert.FileExists(t, notes)
}

func TestExtractDebugLabel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Resolution = ScreenResolution{320, 36}
	cfg.Debug = true
	e := newTestExtractor(t, cfg, nil)

	p, err := e.Load(writePanorama(t, 320, 36))
	require.NoError(t, err)

	c, w, err := e.RenderFrame(p, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, w.CursorOffset)

	changed := false
	for x := 30; x < 200 && !changed; x++ {
		for y := 15; y < 32; y++ {
			r, _, _, _ := c.Image().At(x, y).RGBA()
			want, _, _, _ := panoramaPixel(x, y).RGBA()
			if r != want {
				changed = true
				break
			}
		}
	}
	assert.True(t, changed, "label was not drawn")
}

type failingBackend struct {
	ImageBackend
	failName string
}

func (b *failingBackend) Save(c Canvas, path string) error {
	if filepath.Base(path) == b.failName {
		return errors.New("disk full")
	}
	return b.ImageBackend.Save(c, path)
}

func TestExtractFailsOnFirstSaveError(t *testing.T) {
	cfg := testConfig(t)
	gb, err := NewGGBackend()
	require.NoError(t, err)
	e := newTestExtractor(t, cfg, &failingBackend{ImageBackend: gb, failName: "000005.png"})

	p, err := e.Load(writePanorama(t, 100, 36))
	require.NoError(t, err)

	_, err = e.Extract(context.Background(), p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestExtractContinueOnError(t *testing.T) {
	cfg := testConfig(t)
	cfg.ContinueOnError = true
	cfg.Workers = 3
	gb, err := NewGGBackend()
	require.NoError(t, err)
	e := newTestExtractor(t, cfg, &failingBackend{ImageBackend: gb, failName: "000005.png"})

	p, err := e.Load(writePanorama(t, 100, 36))
	require.NoError(t, err)

	res, err := e.Extract(context.Background(), p)
	require.Error(t, err)
	assert.Equal(t, []int{5}, res.Missing)
	assert.Equal(t, 24, res.Written)
	assert.NoFileExists(t, framePath(cfg.OutputDir, 5, "png"))
	assert.FileExists(t, framePath(cfg.OutputDir, 6, "png"))
}

func TestExtractCancelled(t *testing.T) {
	cfg := testConfig(t)
	e := newTestExtractor(t, cfg, nil)

	p, err := e.Load(writePanorama(t, 100, 36))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = e.Extract(ctx, p)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadRejectsBadPanoramas(t *testing.T) {
	e := newTestExtractor(t, testConfig(t), nil)

	_, err := e.Load(writePanorama(t, 40, 36))
	assert.ErrorIs(t, err, ErrPanoramaTooNarrow)

	_, err = e.Load(writePanorama(t, 200, 40))
	assert.ErrorIs(t, err, ErrWrongHeight)

	_, err = e.Load(writePNG(t, image.NewGray(image.Rect(0, 0, 200, 36))))
	assert.ErrorIs(t, err, ErrColorMode)

	_, err = e.Load(writeGrayAlphaPNG(t, 200, 36))
	assert.ErrorIs(t, err, ErrColorMode)

	_, err = e.Load(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}

func TestRenderFrameOutOfRange(t *testing.T) {
	e := newTestExtractor(t, testConfig(t), nil)

	p, err := e.Load(writePanorama(t, 100, 36))
	require.NoError(t, err)

	_, _, err = e.RenderFrame(p, 25)
	assert.ErrorIs(t, err, ErrPlayheadOutOfRange)

	_, w, err := e.RenderFrame(p, 24)
	require.NoError(t, err)
	assert.Equal(t, 96, w.Center)
	assert.Less(t, w.CursorOffset, 64)
}

func TestDrawOnPanoramaIsRejected(t *testing.T) {
	b, err := NewGGBackend()
	require.NoError(t, err)

	c, err := b.Open(writePanorama(t, 64, 36))
	require.NoError(t, err)

	assert.ErrorIs(t, b.DrawVerticalLine(c, 3, blueColor, 3), ErrReadOnlyCanvas)
	assert.ErrorIs(t, b.DrawLabel(c, "x"), ErrReadOnlyCanvas)
}

func TestSaveJPEG(t *testing.T) {
	b, err := NewGGBackend()
	require.NoError(t, err)

	src, err := b.Open(writePanorama(t, 64, 36))
	require.NoError(t, err)

	c := b.Crop(src, image.Rect(0, 0, 64, 36))
	path := filepath.Join(t.TempDir(), FrameName(0, "jpg"))
	require.NoError(t, b.Save(c, path))
	assert.FileExists(t, path)

	assert.Error(t, b.Save(c, strings.TrimSuffix(path, ".jpg")+".gif"))
}
