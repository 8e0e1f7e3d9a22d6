package wallpaper

import (
	"image"

	"github.com/kbinani/screenshot"
)

// DisplayBounds returns the bounds of every active display, in the order the
// windowing system reports them
func DisplayBounds() []image.Rectangle {
	n := screenshot.NumActiveDisplays()
	if n <= 0 {
		return nil
	}
	bounds := make([]image.Rectangle, n)
	for i := range bounds {
		bounds[i] = screenshot.GetDisplayBounds(i)
	}
	return bounds
}
