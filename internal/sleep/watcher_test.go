//go:build linux

package sleep

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/genricoloni/wallcycle/internal/sleep/mocks"
	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

func sleepSignal(sleeping any) *dbus.Signal {
	return &dbus.Signal{
		Sender: ":1.2",
		Path:   login1Path,
		Name:   login1Manager + "." + prepareForSleep,
		Body:   []interface{}{sleeping},
	}
}

// startWatcher starts a watcher on a mocked bus and returns the channel the
// bus would deliver signals on
func startWatcher(t *testing.T, resumes *atomic.Int32) (*Watcher, chan<- *dbus.Signal) {
	t.Helper()
	ctrl := gomock.NewController(t)
	client := mocks.NewMockDBusClient(ctrl)

	var delivered chan<- *dbus.Signal
	client.EXPECT().AddMatchSignal(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	client.EXPECT().Signal(gomock.Any()).Do(func(ch chan<- *dbus.Signal) { delivered = ch })
	client.EXPECT().Close().Return(nil)

	w := NewWatcher(zap.NewNop(), func(context.Context) { resumes.Add(1) })
	w.connect = func() (DBusClient, error) { return client, nil }

	require.NoError(t, w.Start(context.Background()))
	require.NotNil(t, delivered)
	return w, delivered
}

func TestWatcher_CallsBackOnResume(t *testing.T) {
	var resumes atomic.Int32
	w, signals := startWatcher(t, &resumes)

	signals <- sleepSignal(true)
	signals <- sleepSignal(false)

	require.Eventually(t, func() bool { return resumes.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, w.Stop(context.Background()))
	require.NoError(t, w.Stop(context.Background()), "second stop is a no-op")
}

func TestWatcher_IgnoresUnrelatedSignals(t *testing.T) {
	tests := []struct {
		name   string
		signal *dbus.Signal
	}{
		{"Going to sleep", sleepSignal(true)},
		{"Wrong argument type", sleepSignal("false")},
		{"Empty body", &dbus.Signal{Name: login1Manager + "." + prepareForSleep}},
		{"Other member", &dbus.Signal{Name: login1Manager + ".SessionNew", Body: []interface{}{false}}},
		{"Nil signal", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resumes atomic.Int32
			w, signals := startWatcher(t, &resumes)

			signals <- tt.signal
			// A real resume after the ignored signal proves the loop survived it
			signals <- sleepSignal(false)

			require.Eventually(t, func() bool { return resumes.Load() == 1 }, time.Second, 5*time.Millisecond)
			require.NoError(t, w.Stop(context.Background()))
			assert.Equal(t, int32(1), resumes.Load())
		})
	}
}

func TestWatcher_NoSystemBus(t *testing.T) {
	w := NewWatcher(zap.NewNop(), func(context.Context) { t.Fatal("unexpected resume") })
	w.connect = func() (DBusClient, error) { return nil, errors.New("no bus") }

	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Stop(context.Background()))
}

func TestWatcher_MatchRuleFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockDBusClient(ctrl)
	client.EXPECT().AddMatchSignal(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("access denied"))
	client.EXPECT().Close().Return(nil)

	w := NewWatcher(zap.NewNop(), func(context.Context) {})
	w.connect = func() (DBusClient, error) { return client, nil }

	assert.ErrorContains(t, w.Start(context.Background()), "access denied")
	require.NoError(t, w.Stop(context.Background()))
}
