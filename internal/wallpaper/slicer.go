package wallpaper

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/genricoloni/wallcycle/internal/domain"
	"go.uber.org/zap"
	_ "golang.org/x/image/webp" // WebP source support
)

const sliceQuality = 92

// Slicer cuts one image into per-monitor pieces following the monitor layout
type Slicer struct {
	logger *zap.Logger
}

// NewSlicer creates a slicer
func NewSlicer(logger *zap.Logger) *Slicer {
	return &Slicer{logger: logger}
}

// Slice scales src to cover the bounding box of monitors and writes one crop
// per monitor into dir. It returns output name -> file path.
func (s *Slicer) Slice(src string, img domain.Image, monitors []domain.Monitor, dir string) (map[string]string, error) {
	if len(monitors) == 0 {
		return nil, fmt.Errorf("no monitors to span across")
	}

	layout := layoutBounds(monitors)
	if layout.Dx() <= 0 || layout.Dy() <= 0 {
		return nil, fmt.Errorf("invalid monitor layout: %v", layout)
	}

	source, err := imaging.Open(src, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	s.logger.Debug("Spanning image",
		zap.String("image", img.Name),
		zap.Int("w", layout.Dx()),
		zap.Int("h", layout.Dy()),
		zap.Int("monitors", len(monitors)))

	canvas := imaging.Fill(source, layout.Dx(), layout.Dy(), imaging.Center, imaging.Lanczos)

	parts := make(map[string]string, len(monitors))
	for _, m := range monitors {
		rect := image.Rect(
			m.Position.X-layout.Min.X,
			m.Position.Y-layout.Min.Y,
			m.Position.X-layout.Min.X+m.Width,
			m.Position.Y-layout.Min.Y+m.Height,
		)
		piece := imaging.Crop(canvas, rect)

		out := filepath.Join(dir, fmt.Sprintf("%d-%s.jpg", img.ID, m.Name))
		if err := imaging.Save(piece, out, imaging.JPEGQuality(sliceQuality)); err != nil {
			return nil, fmt.Errorf("failed to write slice for %s: %w", m.Name, err)
		}
		parts[m.Name] = out
	}
	return parts, nil
}

// layoutBounds returns the smallest rectangle containing every monitor
func layoutBounds(monitors []domain.Monitor) image.Rectangle {
	var bounds image.Rectangle
	for i, m := range monitors {
		r := image.Rect(m.Position.X, m.Position.Y, m.Position.X+m.Width, m.Position.Y+m.Height)
		if i == 0 {
			bounds = r
			continue
		}
		bounds = bounds.Union(r)
	}
	return bounds
}
