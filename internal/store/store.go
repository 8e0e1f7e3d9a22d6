// Package store persists playlists, images, active bindings and history in SQLite.
package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/genricoloni/wallcycle/internal/domain"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Store implements domain.Store on top of SQLite
type Store struct {
	logger *zap.Logger
	conn   *sql.DB
	now    func() time.Time
}

// NewStore opens the database configured in cfg
func NewStore(logger *zap.Logger, cfg domain.Config) (*Store, error) {
	return Open(logger, cfg.GetDatabasePath())
}

// Open opens (creating if needed) the database at path and runs migrations
func Open(logger *zap.Logger, path string) (*Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", path)
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	conn.SetMaxOpenConns(4)
	conn.SetConnMaxIdleTime(15 * time.Minute)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := runMigrations(logger, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info("Database ready", zap.String("path", path))
	return &Store{logger: logger, conn: conn, now: time.Now}, nil
}

func runMigrations(logger *zap.Logger, conn *sql.DB) error {
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(gooseLogger{logger.Sugar()})
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.Up(conn, "migrations"); err != nil {
		return err
	}
	version, err := goose.GetDBVersion(conn)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	logger.Debug("Schema migrated", zap.Int64("version", version))
	return nil
}

// gooseLogger routes goose output into zap
type gooseLogger struct {
	*zap.SugaredLogger
}

func (l gooseLogger) Printf(format string, v ...interface{}) {
	l.Debugf(strings.TrimSpace(format), v...)
}

// Close closes the database
func (s *Store) Close() error {
	return s.conn.Close()
}

// GetPlaylistInfo loads a playlist and its images by name
func (s *Store) GetPlaylistInfo(ctx context.Context, name string) (*domain.Playlist, error) {
	query := `SELECT id, name, type, interval_ms, current_image_index,
		always_start_on_first_image, show_animations
		FROM playlists WHERE name = ?`

	var p domain.Playlist
	var interval sql.NullInt64
	err := s.conn.QueryRowContext(ctx, query, name).Scan(
		&p.ID,
		&p.Name,
		&p.Type,
		&interval,
		&p.CurrentImageIndex,
		&p.AlwaysStartOnFirstImage,
		&p.ShowAnimations,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("playlist %q: %w", name, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan playlist: %w", err)
	}
	if interval.Valid {
		p.Interval = &interval.Int64
	}

	p.Images, err = s.playlistImages(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) playlistImages(ctx context.Context, playlistID int64) ([]domain.Image, error) {
	query := `SELECT i.id, i.name, i.width, i.height, i.format, ip.time
		FROM images_in_playlist ip
		JOIN images i ON i.id = ip.image_id
		WHERE ip.playlist_id = ?
		ORDER BY ip.index_in_playlist ASC`

	rows, err := s.conn.QueryContext(ctx, query, playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlist images: %w", err)
	}
	defer rows.Close()

	var images []domain.Image
	for rows.Next() {
		var img domain.Image
		var minute sql.NullInt64
		if err := rows.Scan(&img.ID, &img.Name, &img.Width, &img.Height, &img.Format, &minute); err != nil {
			return nil, fmt.Errorf("failed to scan playlist image: %w", err)
		}
		if minute.Valid {
			m := int(minute.Int64)
			img.Time = &m
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

// InsertIntoActivePlaylists binds playlistID to monitor, replacing the monitor's previous binding
func (s *Store) InsertIntoActivePlaylists(ctx context.Context, playlistID int64, monitor domain.ActiveMonitor) error {
	encoded, err := json.Marshal(monitor)
	if err != nil {
		return fmt.Errorf("failed to encode monitor: %w", err)
	}

	query := `INSERT INTO active_playlists (monitor_name, monitor, playlist_id) VALUES (?, ?, ?)
		ON CONFLICT(monitor_name) DO UPDATE SET monitor = excluded.monitor, playlist_id = excluded.playlist_id`
	if _, err := s.conn.ExecContext(ctx, query, monitor.Name, string(encoded), playlistID); err != nil {
		return fmt.Errorf("%w: failed to insert active playlist: %v", domain.ErrPersistence, err)
	}
	return nil
}

// RemoveActivePlaylist deletes the binding of playlistName on monitor
func (s *Store) RemoveActivePlaylist(ctx context.Context, playlistName string, monitor domain.ActiveMonitor) error {
	query := `DELETE FROM active_playlists
		WHERE monitor_name = ? AND playlist_id IN (SELECT id FROM playlists WHERE name = ?)`
	if _, err := s.conn.ExecContext(ctx, query, monitor.Name, playlistName); err != nil {
		return fmt.Errorf("%w: failed to remove active playlist: %v", domain.ErrPersistence, err)
	}
	return nil
}

// GetActivePlaylistInfo returns the playlist bound to monitor
func (s *Store) GetActivePlaylistInfo(ctx context.Context, monitor domain.ActiveMonitor) (*domain.Playlist, error) {
	query := `SELECT p.name FROM active_playlists a
		JOIN playlists p ON p.id = a.playlist_id
		WHERE a.monitor_name = ?`

	var name string
	err := s.conn.QueryRowContext(ctx, query, monitor.Name).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("active playlist for %q: %w", monitor.Name, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query active playlist: %w", err)
	}
	return s.GetPlaylistInfo(ctx, name)
}

// GetActivePlaylists returns every binding with its playlist
func (s *Store) GetActivePlaylists(ctx context.Context) ([]domain.ActivePlaylist, error) {
	query := `SELECT a.monitor, p.name FROM active_playlists a
		JOIN playlists p ON p.id = a.playlist_id
		ORDER BY a.monitor_name`

	rows, err := s.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query active playlists: %w", err)
	}

	type binding struct {
		monitor domain.ActiveMonitor
		name    string
	}
	var bindings []binding
	for rows.Next() {
		var encoded string
		var b binding
		if err := rows.Scan(&encoded, &b.name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan active playlist: %w", err)
		}
		if err := json.Unmarshal([]byte(encoded), &b.monitor); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to decode monitor: %w", err)
		}
		bindings = append(bindings, b)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	active := make([]domain.ActivePlaylist, 0, len(bindings))
	for _, b := range bindings {
		p, err := s.GetPlaylistInfo(ctx, b.name)
		if err != nil {
			return nil, err
		}
		active = append(active, domain.ActivePlaylist{Playlist: *p, Monitor: b.monitor})
	}
	return active, nil
}

// UpdatePlaylistCurrentIndex persists the rotation cursor of playlist name
func (s *Store) UpdatePlaylistCurrentIndex(ctx context.Context, name string, index int) error {
	res, err := s.conn.ExecContext(ctx,
		`UPDATE playlists SET current_image_index = ? WHERE name = ?`, index, name)
	if err != nil {
		return fmt.Errorf("%w: failed to update current index: %v", domain.ErrPersistence, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: playlist %q: %w", domain.ErrPersistence, name, domain.ErrNotFound)
	}
	return nil
}

// AddImageToHistory records image as shown now on monitor. An existing row
// for the same pair gets its timestamp refreshed.
func (s *Store) AddImageToHistory(ctx context.Context, image domain.Image, monitor domain.ActiveMonitor) error {
	encoded, err := json.Marshal(monitor)
	if err != nil {
		return fmt.Errorf("failed to encode monitor: %w", err)
	}

	query := `INSERT INTO image_history (image_id, monitor_name, monitor, shown_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(image_id, monitor_name) DO UPDATE SET shown_at = excluded.shown_at, monitor = excluded.monitor`
	if _, err := s.conn.ExecContext(ctx, query, image.ID, monitor.Name, string(encoded), s.now().UnixMilli()); err != nil {
		return fmt.Errorf("%w: failed to add image to history: %v", domain.ErrPersistence, err)
	}
	return nil
}

// GetImageHistory returns history rows, most recent first
func (s *Store) GetImageHistory(ctx context.Context) ([]domain.HistoryEntry, error) {
	query := `SELECT i.id, i.name, i.width, i.height, i.format, h.monitor, h.shown_at
		FROM image_history h
		JOIN images i ON i.id = h.image_id
		ORDER BY h.shown_at DESC`

	rows, err := s.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query image history: %w", err)
	}
	defer rows.Close()

	var history []domain.HistoryEntry
	for rows.Next() {
		var entry domain.HistoryEntry
		var encoded string
		var shownAt int64
		if err := rows.Scan(&entry.Image.ID, &entry.Image.Name, &entry.Image.Width,
			&entry.Image.Height, &entry.Image.Format, &encoded, &shownAt); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		if err := json.Unmarshal([]byte(encoded), &entry.Monitor); err != nil {
			return nil, fmt.Errorf("failed to decode monitor: %w", err)
		}
		entry.Time = time.UnixMilli(shownAt)
		history = append(history, entry)
	}
	return history, rows.Err()
}

// GetAllImages returns the catalog in insertion order
func (s *Store) GetAllImages(ctx context.Context) ([]domain.Image, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, name, width, height, format FROM images ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query images: %w", err)
	}
	defer rows.Close()

	var images []domain.Image
	for rows.Next() {
		var img domain.Image
		if err := rows.Scan(&img.ID, &img.Name, &img.Width, &img.Height, &img.Format); err != nil {
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

// StoreImages inserts images into the catalog and returns them with their IDs.
// An image whose name already exists is updated in place.
func (s *Store) StoreImages(ctx context.Context, images []domain.Image) ([]domain.Image, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `INSERT INTO images (name, width, height, format) VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET width = excluded.width, height = excluded.height, format = excluded.format
		RETURNING id`

	stored := make([]domain.Image, len(images))
	for i, img := range images {
		if err := tx.QueryRowContext(ctx, query, img.Name, img.Width, img.Height, img.Format).Scan(&img.ID); err != nil {
			return nil, fmt.Errorf("failed to store image %s: %w", img.Name, err)
		}
		stored[i] = img
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit images: %w", err)
	}
	return stored, nil
}

// UpsertPlaylist creates or replaces a playlist definition, keyed by name
func (s *Store) UpsertPlaylist(ctx context.Context, p domain.Playlist) (int64, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var interval sql.NullInt64
	if p.Interval != nil {
		interval = sql.NullInt64{Int64: *p.Interval, Valid: true}
	}

	query := `INSERT INTO playlists (name, type, interval_ms, current_image_index, always_start_on_first_image, show_animations)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			type = excluded.type,
			interval_ms = excluded.interval_ms,
			current_image_index = excluded.current_image_index,
			always_start_on_first_image = excluded.always_start_on_first_image,
			show_animations = excluded.show_animations
		RETURNING id`

	var id int64
	if err := tx.QueryRowContext(ctx, query, p.Name, string(p.Type), interval,
		p.CurrentImageIndex, p.AlwaysStartOnFirstImage, p.ShowAnimations).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to upsert playlist: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM images_in_playlist WHERE playlist_id = ?`, id); err != nil {
		return 0, fmt.Errorf("failed to clear playlist images: %w", err)
	}
	for idx, img := range p.Images {
		var minute sql.NullInt64
		if img.Time != nil {
			minute = sql.NullInt64{Int64: int64(*img.Time), Valid: true}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO images_in_playlist (playlist_id, image_id, index_in_playlist, time) VALUES (?, ?, ?, ?)`,
			id, img.ID, idx, minute); err != nil {
			return 0, fmt.Errorf("failed to insert playlist image: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit playlist: %w", err)
	}

	s.logger.Debug("Playlist saved", zap.String("playlist", p.Name), zap.Int("images", len(p.Images)))
	return id, nil
}
