package framegenerator

import "fmt"

func drawCursor(b ImageBackend, c Canvas, w Window, cfg Config) error {
	return b.DrawVerticalLine(c, w.CursorOffset, cfg.HighlightColor, cfg.HighlightWidth)
}

func drawFrameLabel(b ImageBackend, c Canvas, index int, w Window) error {
	return b.DrawLabel(c, fmt.Sprintf("FRAME %0*d  center %d  [%d, %d)", frameNameDigits, index, w.Center, w.Left, w.Right))
}

func annotateFrame(b ImageBackend, c Canvas, index int, w Window, cfg Config) error {
	if err := drawCursor(b, c, w, cfg); err != nil {
		return err
	}
	if cfg.Debug {
		return drawFrameLabel(b, c, index, w)
	}
	return nil
}
