// Package wallpaper applies images to compositor outputs through external setters.
package wallpaper

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/genricoloni/wallcycle/internal/domain"
	"go.uber.org/zap"
)

// helperSettle is how long a freshly started helper gets before the next attempt
const helperSettle = 500 * time.Millisecond

// ErrNoSetter is returned when no supported wallpaper tool is installed
var ErrNoSetter = errors.New("no supported wallpaper setter found on this system")

// Backend implements domain.Backend using swww or hyprpaper
type Backend struct {
	logger *zap.Logger
	cfg    domain.Config
	runner Runner
	slicer *Slicer
	// displays reports display geometry for monitors that do not carry their own
	displays func() []image.Rectangle

	mu     sync.Mutex
	setter *Setter
}

// NewBackend creates the image application backend
func NewBackend(logger *zap.Logger, cfg domain.Config, runner Runner) *Backend {
	return &Backend{
		logger:   logger,
		cfg:      cfg,
		runner:   runner,
		slicer:   NewSlicer(logger),
		displays: DisplayBounds,
	}
}

// resolveSetter detects the setter once, re-detecting when the configured one changes
func (b *Backend) resolveSetter() (Setter, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	preferred := b.cfg.GetSetter()
	if b.setter != nil && (preferred == "auto" || preferred == b.setter.Name) {
		return *b.setter, nil
	}

	s, ok := detectSetter(b.logger, b.runner, preferred)
	if !ok {
		return Setter{}, ErrNoSetter
	}
	b.logger.Info("Wallpaper setter detected",
		zap.String("name", s.Name),
		zap.String("binary", s.Binary))
	b.setter = &s
	return s, nil
}

func (b *Backend) imagePath(img domain.Image) (string, error) {
	path := filepath.Join(b.cfg.GetImagesDir(), img.Name)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("image %s is not readable: %w", img.Name, err)
	}
	return path, nil
}

// ApplyDuplicated sets the same image on every monitor
func (b *Backend) ApplyDuplicated(ctx context.Context, img domain.Image, monitors []domain.Monitor, animate bool) error {
	setter, err := b.resolveSetter()
	if err != nil {
		return err
	}
	path, err := b.imagePath(img)
	if err != nil {
		return err
	}

	for _, m := range monitors {
		if err := b.set(ctx, setter, m.Name, path, animate); err != nil {
			return err
		}
	}

	b.logger.Info("Wallpaper set",
		zap.String("setter", setter.Name),
		zap.String("image", img.Name),
		zap.Strings("outputs", monitorNames(monitors)))
	return nil
}

// ApplySpanned cuts the image along the monitor layout and sets each piece
func (b *Backend) ApplySpanned(ctx context.Context, img domain.Image, monitors []domain.Monitor, animate bool) error {
	if len(monitors) <= 1 {
		return b.ApplyDuplicated(ctx, img, monitors, animate)
	}

	setter, err := b.resolveSetter()
	if err != nil {
		return err
	}
	path, err := b.imagePath(img)
	if err != nil {
		return err
	}

	parts, err := b.slicer.Slice(path, img, b.withGeometry(monitors), b.cfg.GetCacheDir())
	if err != nil {
		return fmt.Errorf("failed to span %s: %w", img.Name, err)
	}

	for _, m := range monitors {
		if err := b.set(ctx, setter, m.Name, parts[m.Name], animate); err != nil {
			return err
		}
	}

	b.logger.Info("Wallpaper spanned",
		zap.String("setter", setter.Name),
		zap.String("image", img.Name),
		zap.Strings("outputs", monitorNames(monitors)))
	return nil
}

func (b *Backend) set(ctx context.Context, setter Setter, output, path string, animate bool) error {
	for _, args := range setter.Commands(output, path, animate, b.cfg.GetTransition()) {
		b.logger.Debug("Setting wallpaper",
			zap.String("command", setter.Binary),
			zap.Strings("args", args))

		out, err := b.runner.Run(ctx, setter.Binary, args...)
		if err != nil {
			return fmt.Errorf("failed to set wallpaper with %s: %w (output: %s)",
				setter.Name, err, strings.TrimSpace(string(out)))
		}
	}
	return nil
}

// withGeometry fills in size and position of monitors that carry none, using
// the displays reported by the windowing system in order
func (b *Backend) withGeometry(monitors []domain.Monitor) []domain.Monitor {
	var bounds []image.Rectangle
	out := make([]domain.Monitor, len(monitors))
	for i, m := range monitors {
		if m.Width <= 0 || m.Height <= 0 {
			if bounds == nil {
				bounds = b.displays()
			}
			if i < len(bounds) {
				r := bounds[i]
				m.Width, m.Height = r.Dx(), r.Dy()
				m.Position = domain.Position{X: r.Min.X, Y: r.Min.Y}
			} else {
				b.logger.Warn("No geometry for monitor, falling back to 1920x1080",
					zap.String("monitor", m.Name))
				m.Width, m.Height = 1920, 1080
				m.Position = domain.Position{X: i * 1920}
			}
		}
		out[i] = m
	}
	return out
}

// RestartHelper starts the setter's helper daemon
func (b *Backend) RestartHelper(ctx context.Context) error {
	setter, err := b.resolveSetter()
	if err != nil {
		return err
	}

	b.logger.Warn("Restarting wallpaper helper", zap.String("helper", setter.Helper))
	if err := b.runner.Start(setter.Helper, setter.HelperArgs...); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(helperSettle):
		return nil
	}
}

func monitorNames(monitors []domain.Monitor) []string {
	names := make([]string, len(monitors))
	for i, m := range monitors {
		names[i] = m.Name
	}
	return names
}
