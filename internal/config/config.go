package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/adrg/xdg"
	"github.com/genricoloni/wallcycle/internal/domain"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const (
	appName = "wallcycle"

	defaultSetter             = "auto"
	defaultTransitionType     = "simple"
	defaultTransitionFPS      = 60
	defaultTransitionDuration = 1.0
	defaultApplyRetries       = 3
	defaultRetryDelay         = time.Second
	defaultReconcileInterval  = 10 * time.Second
)

// AppConfig holds application configuration. Values come from the process
// environment first, then from the optional env file.
type AppConfig struct {
	logger  *zap.Logger
	envFile string

	mu                sync.RWMutex
	socketPath        string
	databasePath      string
	imagesDir         string
	cacheDir          string
	setter            string
	transition        domain.Transition
	applyRetries      int
	retryDelay        time.Duration
	reconcileInterval time.Duration
	notifications     bool
}

// NewAppConfig creates a new application configuration instance
func NewAppConfig(logger *zap.Logger) (*AppConfig, error) {
	c := &AppConfig{
		logger:  logger,
		envFile: EnvFilePath(),
	}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// EnvFilePath returns the env file read on top of the process environment
func EnvFilePath() string {
	if path := os.Getenv("WALLCYCLE_ENV_FILE"); path != "" {
		return expandPath(path)
	}
	return filepath.Join(xdg.ConfigHome, appName, appName+".env")
}

// DefaultSocketPath returns the control socket location used when nothing is configured
func DefaultSocketPath() string {
	runtimeDir := xdg.RuntimeDir
	if runtimeDir == "" {
		runtimeDir = os.TempDir()
	}
	return filepath.Join(runtimeDir, appName+".sock")
}

// Reload re-reads the env file and the environment
func (c *AppConfig) Reload() error {
	fileValues, err := godotenv.Read(c.envFile)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to read env file %s: %w", c.envFile, err)
		}
		fileValues = map[string]string{}
	}
	env := envLookup(fileValues)

	dataDir := filepath.Join(xdg.DataHome, appName)

	socketPath := expandPath(env.str("WALLCYCLE_SOCKET", DefaultSocketPath()))
	databasePath := expandPath(env.str("WALLCYCLE_DB", filepath.Join(dataDir, "images_database.sqlite3")))
	imagesDir := expandPath(env.str("WALLCYCLE_IMAGES_DIR", filepath.Join(dataDir, "images")))
	cacheDir := expandPath(env.str("WALLCYCLE_CACHE_DIR", filepath.Join(xdg.CacheHome, appName)))
	setter := strings.ToLower(env.str("WALLCYCLE_SETTER", defaultSetter))

	transition := domain.Transition{
		Type:     env.str("WALLCYCLE_TRANSITION_TYPE", defaultTransitionType),
		FPS:      env.integer("WALLCYCLE_TRANSITION_FPS", defaultTransitionFPS),
		Duration: env.float("WALLCYCLE_TRANSITION_DURATION", defaultTransitionDuration),
	}

	applyRetries := env.integer("WALLCYCLE_APPLY_RETRIES", defaultApplyRetries)
	if applyRetries < 1 {
		applyRetries = 1
	}
	retryDelay := env.duration("WALLCYCLE_RETRY_DELAY", defaultRetryDelay)
	reconcileInterval := env.duration("WALLCYCLE_RECONCILE_INTERVAL", defaultReconcileInterval)
	if reconcileInterval <= 0 {
		reconcileInterval = defaultReconcileInterval
	}
	notifications := env.boolean("WALLCYCLE_NOTIFICATIONS", true)

	c.mu.Lock()
	if c.socketPath != "" && c.socketPath != socketPath {
		c.logger.Warn("Socket path changes take effect after a restart",
			zap.String("current", c.socketPath),
			zap.String("configured", socketPath))
		socketPath = c.socketPath
	}
	if c.databasePath != "" && c.databasePath != databasePath {
		c.logger.Warn("Database path changes take effect after a restart",
			zap.String("current", c.databasePath),
			zap.String("configured", databasePath))
		databasePath = c.databasePath
	}
	c.socketPath = socketPath
	c.databasePath = databasePath
	c.imagesDir = imagesDir
	c.cacheDir = cacheDir
	c.setter = setter
	c.transition = transition
	c.applyRetries = applyRetries
	c.retryDelay = retryDelay
	c.reconcileInterval = reconcileInterval
	c.notifications = notifications
	c.mu.Unlock()

	c.logger.Info("Configuration loaded",
		zap.String("envFile", c.envFile),
		zap.String("socket", socketPath),
		zap.String("database", databasePath),
		zap.String("imagesDir", imagesDir),
		zap.String("setter", setter),
		zap.Int("applyRetries", applyRetries),
		zap.Duration("reconcileInterval", reconcileInterval),
		zap.Bool("notifications", notifications))

	return nil
}

// EnvFile returns the path of the env file backing this configuration
func (c *AppConfig) EnvFile() string {
	return c.envFile
}

// GetSocketPath returns the control socket location
func (c *AppConfig) GetSocketPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.socketPath
}

// GetDatabasePath returns the SQLite database file
func (c *AppConfig) GetDatabasePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.databasePath
}

// GetImagesDir returns the directory holding stored images
func (c *AppConfig) GetImagesDir() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.imagesDir
}

// GetCacheDir returns the directory for generated images
func (c *AppConfig) GetCacheDir() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cacheDir
}

// GetSetter returns the preferred wallpaper setter
func (c *AppConfig) GetSetter() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.setter
}

// GetTransition returns the animation settings
func (c *AppConfig) GetTransition() domain.Transition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.transition
}

// GetApplyRetries returns how many times an image application is attempted
func (c *AppConfig) GetApplyRetries() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.applyRetries
}

// GetRetryDelay returns the base delay between attempts
func (c *AppConfig) GetRetryDelay() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.retryDelay
}

// GetReconcileInterval returns the cadence of the missed-event check
func (c *AppConfig) GetReconcileInterval() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.reconcileInterval
}

// NotificationsEnabled reports whether desktop notifications are shown
func (c *AppConfig) NotificationsEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.notifications
}

// LogSettings returns the log level and optional log file. It is read before
// the logger exists, so it only looks at the environment and the env file.
func LogSettings() (level string, file string) {
	fileValues, err := godotenv.Read(EnvFilePath())
	if err != nil {
		fileValues = map[string]string{}
	}
	env := envLookup(fileValues)
	return env.str("WALLCYCLE_LOG_LEVEL", "info"), expandPath(env.str("WALLCYCLE_LOG_FILE", ""))
}

// envLookup resolves keys from the process environment, then the env file
type envLookup map[string]string

func (e envLookup) str(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	if value, exists := e[key]; exists && value != "" {
		return value
	}
	return defaultValue
}

func (e envLookup) integer(key string, defaultValue int) int {
	if value, err := strconv.Atoi(e.str(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func (e envLookup) float(key string, defaultValue float64) float64 {
	if value, err := strconv.ParseFloat(e.str(key, ""), 64); err == nil {
		return value
	}
	return defaultValue
}

func (e envLookup) boolean(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(e.str(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func (e envLookup) duration(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(e.str(key, "")); err == nil {
		return value
	}
	return defaultValue
}

// expandPath expands environment variables and a leading ~
func expandPath(path string) string {
	path = os.ExpandEnv(path)
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[1:])
		}
	}
	return path
}
