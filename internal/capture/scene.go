package capture

import (
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// Scene change constants.
const (
	// sceneBlurSize is the Gaussian kernel applied before differencing.
	sceneBlurSize = 15
	// sceneDiffThreshold is the per-pixel intensity change counted as movement.
	sceneDiffThreshold = 25
	// DefaultSceneThreshold is the percentage of changed pixels that wakes
	// the tracker.
	DefaultSceneThreshold = 1.0
)

// SceneGate decides whether a frame is worth sending to the skeleton tracker
// while nobody is being tracked. It compares each frame with the previous
// one and opens when enough pixels changed, so an empty room does not keep
// the tracker busy.
type SceneGate struct {
	threshold float64
	prev      gocv.Mat
	primed    bool
	mu        sync.Mutex
}

// NewSceneGate creates a gate that opens when more than threshold percent
// of the pixels changed. Values <= 0 use DefaultSceneThreshold.
func NewSceneGate(threshold float64) *SceneGate {
	if threshold <= 0 {
		threshold = DefaultSceneThreshold
	}
	return &SceneGate{
		threshold: threshold,
		prev:      gocv.NewMat(),
	}
}

// Open reports whether the frame differs enough from the previous one,
// along with the percentage of changed pixels. The first frame after
// creation or Reset always opens the gate.
func (g *SceneGate) Open(frame *gocv.Mat) (bool, float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if frame == nil || frame.Empty() {
		return false, 0
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Point{X: sceneBlurSize, Y: sceneBlurSize}, 0, 0, gocv.BorderDefault)

	if !g.primed || g.prev.Rows() != blurred.Rows() || g.prev.Cols() != blurred.Cols() {
		blurred.CopyTo(&g.prev)
		g.primed = true
		return true, 100
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(blurred, g.prev, &diff)

	mask := gocv.NewMat()
	defer mask.Close()
	gocv.Threshold(diff, &mask, sceneDiffThreshold, 255, gocv.ThresholdBinary)

	changed := float64(gocv.CountNonZero(mask)) / float64(mask.Rows()*mask.Cols()) * 100.0
	blurred.CopyTo(&g.prev)

	return changed > g.threshold, changed
}

// Reset forgets the previous frame so the next one opens the gate.
func (g *SceneGate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.primed = false
}

// Close releases the stored frame.
func (g *SceneGate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prev.Close()
	g.prev = gocv.NewMat()
	g.primed = false
}
