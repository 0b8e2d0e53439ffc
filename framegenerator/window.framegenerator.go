package framegenerator

import "fmt"

// ComputeWindow places a frameW wide crop around center. Near the panorama
// edges the crop sticks to the edge instead of shrinking.
//
// The right edge is clamped to panoramaW-1, so the last panorama column only
// shows up when the playhead sits on it. A panorama exactly frameW wide would
// then start at -1; it is cut as [0, frameW) instead, so every window is
// frameW wide and inside the panorama.
func ComputeWindow(center, panoramaW, frameW int) (Window, error) {
	if panoramaW < frameW {
		return Window{}, fmt.Errorf("%w: width %d < frame width %d", ErrPanoramaTooNarrow, panoramaW, frameW)
	}
	if center < 0 || center >= panoramaW {
		return Window{}, fmt.Errorf("%w: center %d, width %d", ErrPlayheadOutOfRange, center, panoramaW)
	}

	left := max(center-frameW/2, 0)
	right := left + frameW
	if right > panoramaW-1 {
		right = panoramaW - 1
		left = right - frameW
	}

	// only a panorama exactly one frame wide gets here
	if left < 0 {
		left, right = 0, frameW
	}

	// playhead on the last column
	if center >= right {
		right = center + 1
		left = right - frameW
	}

	return Window{
		Center:       center,
		Left:         left,
		Right:        right,
		CursorOffset: center - left,
	}, nil
}

// FrameCount is the number of playhead positions 0, step, 2*step, ... below panoramaW.
func FrameCount(panoramaW, step int) int {
	if panoramaW <= 0 || step <= 0 {
		return 0
	}
	return (panoramaW + step - 1) / step
}
