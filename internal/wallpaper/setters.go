package wallpaper

import (
	"os"
	"strconv"

	"github.com/genricoloni/wallcycle/internal/domain"
	"go.uber.org/zap"
)

// Setter describes a wallpaper tool that can target individual outputs
type Setter struct {
	Name   string
	Binary string
	// Helper is the process that must be running for Binary to work
	Helper     string
	HelperArgs []string
	// commands builds the invocations that put path on output
	commands func(output, path string, animate bool, tr domain.Transition) [][]string
}

// Commands returns the argument lists (excluding Binary) that set path on output
func (s Setter) Commands(output, path string, animate bool, tr domain.Transition) [][]string {
	return s.commands(output, path, animate, tr)
}

var (
	swwwSetter = Setter{
		Name:   "swww",
		Binary: "swww",
		Helper: "swww-daemon",
		commands: func(output, path string, animate bool, tr domain.Transition) [][]string {
			args := []string{"img", "--outputs", output}
			if animate {
				args = append(args,
					"--transition-type", tr.Type,
					"--transition-fps", strconv.Itoa(tr.FPS),
					"--transition-duration", strconv.FormatFloat(tr.Duration, 'f', -1, 64))
			} else {
				args = append(args, "--transition-type", "none")
			}
			return [][]string{append(args, path)}
		},
	}

	// hyprpaper has no transitions; animate is ignored
	hyprpaperSetter = Setter{
		Name:   "hyprpaper",
		Binary: "hyprctl",
		Helper: "hyprpaper",
		commands: func(output, path string, _ bool, _ domain.Transition) [][]string {
			return [][]string{
				{"hyprpaper", "preload", path},
				{"hyprpaper", "wallpaper", output + "," + path},
			}
		},
	}

	// Ordered list of setters to try (highest priority first)
	setters = []Setter{swwwSetter, hyprpaperSetter}
)

// detectSetter picks the configured setter, or the best available one for "auto"
func detectSetter(logger *zap.Logger, runner Runner, preferred string) (Setter, bool) {
	for _, s := range setters {
		if s.Name == preferred {
			if _, err := runner.LookPath(s.Binary); err != nil {
				logger.Warn("Configured wallpaper setter not found, falling back to detection",
					zap.String("setter", s.Name), zap.Error(err))
				break
			}
			return s, true
		}
	}

	hyprland := os.Getenv("HYPRLAND_INSTANCE_SIGNATURE")
	logger.Debug("Detecting wallpaper setter", zap.Bool("hyprland", hyprland != ""))

	for _, s := range setters {
		if s.Name == hyprpaperSetter.Name && hyprland == "" {
			// hyprctl only talks to a running Hyprland
			continue
		}
		if _, err := runner.LookPath(s.Binary); err == nil {
			return s, true
		}
	}
	return Setter{}, false
}
