// Package engine runs one playlist on one monitor: it picks the image to show
// according to the playlist's rotation policy and schedules the next change.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/genricoloni/wallcycle/internal/domain"
	"github.com/genricoloni/wallcycle/internal/schedule"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

const defaultReconcileInterval = 10 * time.Second

// Deps are the collaborators shared by every engine
type Deps struct {
	Logger   *zap.Logger
	Store    domain.Store
	Backend  domain.Backend
	Notifier domain.Notifier
	Events   domain.Publisher
	Config   domain.Config
	Clock    clockwork.Clock
}

// wakeup is the next scheduled rotation and when it is expected to fire
type wakeup struct {
	timer      *schedule.Timer
	expectedAt time.Time
}

// Engine drives a single playlist on a single monitor.
//
// Operations and timer callbacks are serialized by opMu so commands for a
// monitor run in receipt order. mu guards the fields read by Diagnostics;
// they are only written with both locks held.
type Engine struct {
	deps    Deps
	logger  *zap.Logger
	sched   *schedule.Scheduler
	monitor domain.ActiveMonitor

	// runCtx is cancelled by Stop and Shutdown, aborting in-flight retries
	runCtx    context.Context
	cancelRun context.CancelFunc

	opMu sync.Mutex

	mu       sync.Mutex
	playlist domain.Playlist
	index    int
	running  bool
	stopped  bool
	unbound  bool
	rotation wakeup
	checker  *schedule.Timer
}

// New loads playlistName and binds it to monitor. The playlist does not
// change images until Start is called.
func New(ctx context.Context, deps Deps, playlistName string, monitor domain.ActiveMonitor) (*Engine, error) {
	logger := deps.Logger.With(
		zap.String("playlist", playlistName),
		zap.String("monitor", monitor.Name))

	p, err := deps.Store.GetPlaylistInfo(ctx, playlistName)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			err = fmt.Errorf("%w: playlist %q is missing in the database", domain.ErrConfiguration, playlistName)
		}
		logger.Error("Failed to load playlist", zap.Error(err))
		deps.Notifier.Notify(ctx, err.Error())
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	e := &Engine{
		deps:      deps,
		logger:    logger,
		sched:     schedule.New(deps.Clock),
		monitor:   monitor,
		runCtx:    runCtx,
		cancelRun: cancel,
	}
	e.load(*p)

	if err := deps.Store.InsertIntoActivePlaylists(ctx, p.ID, monitor); err != nil {
		cancel()
		err = persistenceError("bind playlist to "+monitor.Name, err)
		logger.Error("Failed to register active playlist", zap.Error(err))
		deps.Notifier.Notify(ctx, err.Error())
		return nil, err
	}
	return e, nil
}

// load replaces the playlist definition; callers hold both locks or own e exclusively
func (e *Engine) load(p domain.Playlist) {
	p.Images = append([]domain.Image(nil), p.Images...)
	if p.Type == domain.PlaylistTimeOfDay {
		sortByTime(p.Images)
	}

	index := p.CurrentImageIndex
	if p.AlwaysStartOnFirstImage || index < 0 || index >= len(p.Images) {
		index = 0
	}

	e.playlist = p
	e.index = index
}

// Name returns the running playlist's name
func (e *Engine) Name() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playlist.Name
}

// Monitor returns the monitor the engine runs on
func (e *Engine) Monitor() domain.ActiveMonitor {
	return e.monitor
}

// Type returns the running playlist's rotation policy
func (e *Engine) Type() domain.PlaylistType {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playlist.Type
}

// Start shows the playlist's current image and schedules the rotation
func (e *Engine) Start(ctx context.Context) error {
	e.opMu.Lock()
	defer e.opMu.Unlock()

	if e.isStopped() {
		return domain.ErrEngineStopped
	}

	ctx, done := e.opContext(ctx)
	defer done()
	return e.start(ctx)
}

func (e *Engine) start(ctx context.Context) error {
	e.clearTimers()

	if len(e.playlist.Images) == 0 {
		return e.fail(ctx, fmt.Errorf("%w: playlist %s has no images", domain.ErrConfiguration, e.playlist.Name))
	}

	var err error
	switch e.playlist.Type {
	case domain.PlaylistTimer:
		err = e.runTimer(ctx, false)
	case domain.PlaylistNever:
		err = e.runNever(ctx)
	case domain.PlaylistTimeOfDay:
		err = e.runTimeOfDay(ctx)
	case domain.PlaylistDayOfWeek:
		err = e.runDayOfWeek(ctx)
	default:
		err = fmt.Errorf("%w: unknown playlist type %q", domain.ErrConfiguration, e.playlist.Type)
	}
	if err != nil {
		e.clearTimers()
		return e.fail(ctx, err)
	}

	e.mu.Lock()
	e.running = true
	e.mu.Unlock()

	e.logger.Info("Playlist started", zap.String("type", string(e.playlist.Type)))
	e.publish(domain.EventPlaylistStarted, nil, nil)
	return nil
}

// Pause stops a timer playlist's rotation. Other policies have nothing to pause.
func (e *Engine) Pause(ctx context.Context) (string, error) {
	e.opMu.Lock()
	defer e.opMu.Unlock()

	if e.isStopped() {
		return "", domain.ErrEngineStopped
	}
	if e.playlist.Type != domain.PlaylistTimer {
		return fmt.Sprintf("Cannot pause %s because it is of type %s", e.playlist.Name, e.playlist.Type), nil
	}

	e.disarm()
	e.logger.Info("Playlist paused", zap.Int("index", e.index))
	return fmt.Sprintf("Paused %s", e.playlist.Name), nil
}

// Resume restarts a paused timer playlist without showing the current image again
func (e *Engine) Resume(ctx context.Context) (string, error) {
	e.opMu.Lock()
	defer e.opMu.Unlock()

	if e.isStopped() {
		return "", domain.ErrEngineStopped
	}
	if e.playlist.Type != domain.PlaylistTimer {
		return fmt.Sprintf("Cannot resume %s because it is of type %s", e.playlist.Name, e.playlist.Type), nil
	}

	ctx, done := e.opContext(ctx)
	defer done()
	if err := e.runTimer(ctx, true); err != nil {
		return "", e.fail(ctx, err)
	}
	e.logger.Info("Playlist resumed", zap.Int("index", e.index))
	return fmt.Sprintf("Resuming %s", e.playlist.Name), nil
}

// ResetInterval restarts a timer playlist's countdown from now
func (e *Engine) ResetInterval(ctx context.Context) error {
	e.opMu.Lock()
	defer e.opMu.Unlock()

	if e.isStopped() {
		return domain.ErrEngineStopped
	}
	if e.playlist.Type != domain.PlaylistTimer {
		return nil
	}

	ctx, done := e.opContext(ctx)
	defer done()
	if err := e.runTimer(ctx, true); err != nil {
		return e.fail(ctx, err)
	}
	return nil
}

// NextImage shows the following image, wrapping to the first
func (e *Engine) NextImage(ctx context.Context) (string, error) {
	return e.step(ctx, 1)
}

// PreviousImage shows the preceding image, wrapping to the last
func (e *Engine) PreviousImage(ctx context.Context) (string, error) {
	return e.step(ctx, -1)
}

func (e *Engine) step(ctx context.Context, delta int) (string, error) {
	e.opMu.Lock()
	defer e.opMu.Unlock()

	if e.isStopped() {
		return "", domain.ErrEngineStopped
	}

	ctx, done := e.opContext(ctx)
	defer done()

	if e.playlist.Type == domain.PlaylistTimeOfDay || e.playlist.Type == domain.PlaylistDayOfWeek {
		msg := "Cannot change image in this type of playlist"
		e.deps.Notifier.Notify(ctx, msg)
		return msg, nil
	}
	n := len(e.playlist.Images)
	if n == 0 {
		return "", e.fail(ctx, fmt.Errorf("%w: playlist %s has no images", domain.ErrConfiguration, e.playlist.Name))
	}

	e.setIndex(((e.index+delta)%n + n) % n)

	if e.playlist.Type == domain.PlaylistTimer {
		if err := e.runTimer(ctx, true); err != nil {
			return "", e.fail(ctx, err)
		}
	}

	img := e.playlist.Images[e.index]
	if err := e.setImage(ctx, img); err != nil {
		return "", e.fail(ctx, err)
	}
	if err := e.persistIndex(ctx); err != nil {
		return "", e.fail(ctx, err)
	}
	return fmt.Sprintf("Setting: %s", img.Name), nil
}

// SetImage shows img on the engine's monitor
func (e *Engine) SetImage(ctx context.Context, img domain.Image) error {
	e.opMu.Lock()
	defer e.opMu.Unlock()

	if e.isStopped() {
		return domain.ErrEngineStopped
	}

	ctx, done := e.opContext(ctx)
	defer done()
	if err := e.setImage(ctx, img); err != nil {
		return e.fail(ctx, err)
	}
	return nil
}

func (e *Engine) setImage(ctx context.Context, img domain.Image) error {
	if err := Apply(ctx, e.deps, e.monitor, img, e.playlist.ShowAnimations); err != nil {
		return err
	}
	e.logger.Debug("Image set", zap.String("image", img.Name))
	e.publish(domain.EventImageSet, &img, nil)
	return nil
}

// UpdatePlaylist reloads the definition bound to the monitor and restarts it
func (e *Engine) UpdatePlaylist(ctx context.Context) error {
	e.opMu.Lock()
	defer e.opMu.Unlock()

	if e.isStopped() {
		return domain.ErrEngineStopped
	}

	ctx, done := e.opContext(ctx)
	defer done()

	p, err := e.deps.Store.GetActivePlaylistInfo(ctx, e.monitor)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			err = fmt.Errorf("%w: no playlist is bound to %s", domain.ErrConfiguration, e.monitor.Name)
		}
		return e.fail(ctx, err)
	}

	if err := e.unbind(ctx); err != nil {
		return e.fail(ctx, err)
	}

	e.mu.Lock()
	e.load(*p)
	e.mu.Unlock()
	e.logger = e.deps.Logger.With(
		zap.String("playlist", p.Name),
		zap.String("monitor", e.monitor.Name))

	if err := e.deps.Store.InsertIntoActivePlaylists(ctx, p.ID, e.monitor); err != nil {
		return e.fail(ctx, persistenceError("bind playlist to "+e.monitor.Name, err))
	}
	e.logger.Info("Playlist definition reloaded")
	return e.start(ctx)
}

// Stop cancels every timer and removes the monitor binding. The engine
// cannot be started again. Once the binding is gone, stopping again is a
// no-op; after a failed removal the next Stop tries again.
func (e *Engine) Stop(ctx context.Context) error {
	// Cancel first so a retry loop holding opMu gives up
	e.cancelRun()

	e.opMu.Lock()
	defer e.opMu.Unlock()

	e.mu.Lock()
	if e.unbound {
		e.mu.Unlock()
		return nil
	}
	e.stopped = true
	e.mu.Unlock()

	if err := e.unbind(ctx); err != nil {
		e.logger.Error("Failed to remove active playlist", zap.Error(err))
		e.deps.Notifier.Notify(ctx, err.Error())
		return err
	}
	return nil
}

// Shutdown cancels every timer but keeps the monitor binding so the
// playlist resumes the next time the daemon starts
func (e *Engine) Shutdown() {
	e.cancelRun()

	e.opMu.Lock()
	defer e.opMu.Unlock()

	if e.isStopped() {
		return
	}
	e.mu.Lock()
	e.stopped = true
	e.mu.Unlock()

	e.clearTimers()
	e.markStopped()
	e.logger.Info("Playlist shut down")
}

// unbind clears timers, removes the binding and announces the stop
func (e *Engine) unbind(ctx context.Context) error {
	e.clearTimers()
	e.markStopped()

	if err := e.deps.Store.RemoveActivePlaylist(ctx, e.playlist.Name, e.monitor); err != nil {
		return persistenceError("remove active playlist "+e.playlist.Name, err)
	}
	e.mu.Lock()
	e.unbound = true
	e.mu.Unlock()
	e.logger.Info("Playlist stopped")
	return nil
}

func (e *Engine) markStopped() {
	e.mu.Lock()
	wasRunning := e.running
	e.running = false
	e.mu.Unlock()

	if wasRunning {
		e.publish(domain.EventPlaylistStopped, nil, nil)
	}
}

// Diagnostics returns a snapshot of the engine state
func (e *Engine) Diagnostics() domain.Diagnostics {
	e.mu.Lock()
	defer e.mu.Unlock()

	d := domain.Diagnostics{
		PlaylistName: e.playlist.Name,
		Type:         e.playlist.Type,
		CurrentIndex: e.index,
		Monitor:      e.monitor.Name,
		Running:      e.running && !e.stopped,
		Images:       make([]string, 0, len(e.playlist.Images)),
		DaemonPID:    os.Getpid(),
	}
	if e.playlist.Interval != nil {
		interval := *e.playlist.Interval
		d.Interval = &interval
	}
	if e.rotation.timer != nil {
		d.TimerID = e.rotation.timer.ID()
		d.ExecutionTimeStamp = e.rotation.expectedAt
	}
	if e.checker != nil {
		d.EventCheckerID = e.checker.ID()
	}
	for _, img := range e.playlist.Images {
		raw, err := json.Marshal(img)
		if err != nil {
			continue
		}
		d.Images = append(d.Images, string(raw))
	}
	return d
}

// Policy drivers. All of them run with opMu held.

func (e *Engine) runTimer(ctx context.Context, resume bool) error {
	if e.playlist.Interval == nil || *e.playlist.Interval <= 0 {
		return fmt.Errorf("%w: interval is not set for timer playlist %s", domain.ErrConfiguration, e.playlist.Name)
	}

	if !resume {
		if err := e.setImage(ctx, e.playlist.Images[e.index]); err != nil {
			return err
		}
	}

	interval := time.Duration(*e.playlist.Interval) * time.Millisecond
	e.arm(interval, true, e.onTimerTick)
	return nil
}

func (e *Engine) onTimerTick(ctx context.Context) {
	e.setIndex((e.index + 1) % len(e.playlist.Images))

	if err := e.setImage(ctx, e.playlist.Images[e.index]); err != nil {
		_ = e.fail(ctx, err)
	}
	if err := e.persistIndex(ctx); err != nil {
		_ = e.fail(ctx, err)
	}
}

func (e *Engine) runNever(ctx context.Context) error {
	return e.setImage(ctx, e.playlist.Images[e.index])
}

// runTimeOfDay shows the image whose time slot contains now and wakes up at
// the start of the next slot. The wake-up is armed even if showing fails.
func (e *Engine) runTimeOfDay(ctx context.Context) error {
	times, err := imageTimes(e.playlist.Images)
	if err != nil {
		return err
	}

	now := e.sched.Clock().Now()
	minute := minuteOfDay(now)
	idx := closestIndex(times, minute)
	if idx < 0 {
		// Before the first slot of the day: yesterday's last image still applies
		idx = len(times) - 1
	}
	e.setIndex(idx)

	applyErr := e.setImage(ctx, e.playlist.Images[idx])

	next := times[(idx+1)%len(times)]
	e.arm(untilNextImage(minute, next, now.Second()), false, e.rerun(e.runTimeOfDay))
	e.ensureChecker()
	return applyErr
}

// runDayOfWeek shows today's image and wakes up at the next midnight
func (e *Engine) runDayOfWeek(ctx context.Context) error {
	now := e.sched.Clock().Now()
	idx := dayOfWeekIndex(now.Weekday(), len(e.playlist.Images))
	e.setIndex(idx)

	applyErr := e.setImage(ctx, e.playlist.Images[idx])

	e.arm(nextMidnight(now).Sub(now), false, e.rerun(e.runDayOfWeek))
	e.ensureChecker()
	return applyErr
}

func (e *Engine) rerun(driver func(context.Context) error) func(context.Context) {
	return func(ctx context.Context) {
		if err := driver(ctx); err != nil {
			_ = e.fail(ctx, err)
		}
	}
}

// reconcile re-runs the driver when the rotation should have fired but has
// not, as happens after a suspend
func (e *Engine) reconcile(ctx context.Context) {
	w := e.rotation
	if w.timer == nil || w.expectedAt.IsZero() {
		return
	}
	now := e.sched.Clock().Now()
	if now.Before(w.expectedAt) {
		return
	}

	e.logger.Warn("Missed scheduled image change, rescheduling",
		zap.Time("expected", w.expectedAt),
		zap.String("timer", w.timer.ID()))
	e.disarm()

	switch e.playlist.Type {
	case domain.PlaylistTimeOfDay:
		e.rerun(e.runTimeOfDay)(ctx)
	case domain.PlaylistDayOfWeek:
		e.rerun(e.runDayOfWeek)(ctx)
	}
}

// Reconcile runs the missed-event check now instead of waiting for the
// next checker tick
func (e *Engine) Reconcile(ctx context.Context) {
	e.opMu.Lock()
	defer e.opMu.Unlock()

	if e.isStopped() {
		return
	}
	ctx, done := e.opContext(ctx)
	defer done()
	e.reconcile(ctx)
}

// arm replaces the rotation wake-up. fn runs with opMu held, and only while
// the timer that invoked it is still the current one.
func (e *Engine) arm(d time.Duration, repeat bool, fn func(context.Context)) {
	e.disarm()

	var t *schedule.Timer
	callback := func() {
		e.opMu.Lock()
		defer e.opMu.Unlock()

		e.mu.Lock()
		current := e.rotation.timer == t && !e.stopped
		if current && repeat {
			e.rotation.expectedAt = t.Deadline()
		}
		e.mu.Unlock()
		if !current {
			return
		}
		fn(e.runCtx)
	}

	if repeat {
		t = e.sched.Every(d, callback)
	} else {
		t = e.sched.After(d, callback)
	}

	e.mu.Lock()
	e.rotation = wakeup{timer: t, expectedAt: t.Deadline()}
	e.mu.Unlock()

	e.logger.Debug("Next image scheduled",
		zap.String("timer", t.ID()),
		zap.Time("at", t.Deadline()))
}

// disarm cancels the rotation wake-up, if any
func (e *Engine) disarm() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.rotation.timer != nil {
		e.rotation.timer.Stop()
	}
	e.rotation = wakeup{}
}

func (e *Engine) ensureChecker() {
	if e.checker != nil {
		return
	}

	interval := e.deps.Config.GetReconcileInterval()
	if interval <= 0 {
		interval = defaultReconcileInterval
	}

	var t *schedule.Timer
	t = e.sched.Every(interval, func() {
		e.opMu.Lock()
		defer e.opMu.Unlock()

		e.mu.Lock()
		current := e.checker == t && !e.stopped
		e.mu.Unlock()
		if current {
			e.reconcile(e.runCtx)
		}
	})

	e.mu.Lock()
	e.checker = t
	e.mu.Unlock()
}

func (e *Engine) clearTimers() {
	e.disarm()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.checker != nil {
		e.checker.Stop()
		e.checker = nil
	}
}

func (e *Engine) setIndex(i int) {
	e.mu.Lock()
	e.index = i
	e.mu.Unlock()
}

func (e *Engine) isStopped() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopped
}

func (e *Engine) persistIndex(ctx context.Context) error {
	if err := e.deps.Store.UpdatePlaylistCurrentIndex(ctx, e.playlist.Name, e.index); err != nil {
		return persistenceError("save position of "+e.playlist.Name, err)
	}
	return nil
}

// opContext keeps ctx's values but is cancelled only when the engine stops,
// so a client hanging up does not abort the work it asked for
func (e *Engine) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	opCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(e.runCtx, cancel)
	return opCtx, func() {
		stop()
		cancel()
	}
}

// fail logs err, tells the user and publishes an engine-error event
func (e *Engine) fail(ctx context.Context, err error) error {
	e.logger.Error("Playlist error", zap.Error(err))
	e.deps.Notifier.Notify(ctx, err.Error())
	e.publish(domain.EventEngineError, nil, err)
	return err
}

func (e *Engine) publish(kind domain.EventKind, img *domain.Image, err error) {
	ev := domain.Event{
		Kind:     kind,
		Playlist: e.playlist.Name,
		Monitor:  e.monitor.Name,
		Image:    img,
		Time:     e.sched.Clock().Now(),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	e.deps.Events.Publish(ev)
}
