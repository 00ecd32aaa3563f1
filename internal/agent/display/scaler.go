// internal/agent/display/scaler.go
package display

import (
	"fmt"
	"math"

	"github.com/xkilldash9x/marionette-cli/api/schemas"
)

// ErrOutOfBounds wraps coordinates outside the advertised logical display.
type ErrOutOfBounds struct {
	X, Y          int
	Width, Height int
}

func (e *ErrOutOfBounds) Error() string {
	return fmt.Sprintf("coordinate (%d, %d) is outside the %dx%d display", e.X, e.Y, e.Width, e.Height)
}

// Scaler maps between the logical display size the model was told about
// and the physical viewport actually rendered. The mapping is linear per
// axis with round-to-nearest; when the two match it is the identity.
type Scaler struct {
	logicalWidth  int
	logicalHeight int
	deviceWidth   int
	deviceHeight  int
}

// NewScaler builds a scaler from the advertised logical size and the real
// viewport. Non-positive device dimensions fall back to the logical size
// (identity mapping).
func NewScaler(logical schemas.Viewport, device schemas.Viewport) *Scaler {
	if device.Width <= 0 || device.Height <= 0 {
		device = logical
	}
	return &Scaler{
		logicalWidth:  logical.Width,
		logicalHeight: logical.Height,
		deviceWidth:   device.Width,
		deviceHeight:  device.Height,
	}
}

// Logical returns the advertised display size.
func (s *Scaler) Logical() schemas.Viewport {
	return schemas.Viewport{Width: s.logicalWidth, Height: s.logicalHeight}
}

// ToDevice converts model coordinates to device pixels. Negative values or
// values beyond the logical display fail with ErrOutOfBounds; actions must
// not silently clamp, the model needs to hear that it missed.
func (s *Scaler) ToDevice(x, y int) (int, int, error) {
	if x < 0 || y < 0 || x > s.logicalWidth || y > s.logicalHeight {
		return 0, 0, &ErrOutOfBounds{X: x, Y: y, Width: s.logicalWidth, Height: s.logicalHeight}
	}
	if s.identity() {
		return x, y, nil
	}
	dx := int(math.Round(float64(x) * float64(s.deviceWidth) / float64(s.logicalWidth)))
	dy := int(math.Round(float64(y) * float64(s.deviceHeight) / float64(s.logicalHeight)))
	return dx, dy, nil
}

// FromDevice converts device pixels back into the model's logical space.
// It is the inverse of ToDevice up to rounding.
func (s *Scaler) FromDevice(x, y int) (int, int) {
	if s.identity() {
		return x, y
	}
	lx := int(math.Round(float64(x) * float64(s.logicalWidth) / float64(s.deviceWidth)))
	ly := int(math.Round(float64(y) * float64(s.logicalHeight) / float64(s.deviceHeight)))
	return lx, ly
}

func (s *Scaler) identity() bool {
	return s.logicalWidth == s.deviceWidth && s.logicalHeight == s.deviceHeight
}
