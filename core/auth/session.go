package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"github.com/semed/merenda/core"
)

const refreshFlightKey = "refresh"

// Refresher exchanges a refresh credential for a new access credential.
type Refresher interface {
	RefreshAccess(ctx context.Context, refresh string) (string, error)
}

// RefresherFunc adapts a function to the Refresher interface.
type RefresherFunc func(ctx context.Context, refresh string) (string, error)

func (f RefresherFunc) RefreshAccess(ctx context.Context, refresh string) (string, error) {
	return f(ctx, refresh)
}

type (
	Options struct {
		Skew   time.Duration
		Now    func() time.Time
		Logger core.Logger
	}

	// Manager keeps a usable access credential around: it refreshes on demand,
	// never runs more than one refresh at a time, and reports session loss once.
	Manager struct {
		store     *Store
		refresher Refresher
		skew      time.Duration
		now       func() time.Time
		logger    core.Logger

		flight singleflight.Group

		subsMu sync.Mutex
		subs   map[int]func()
		nextID int
	}
)

func NewManager(store *Store, refresher Refresher, opts *Options) *Manager {
	m := &Manager{
		store:     store,
		refresher: refresher,
		skew:      DefaultExpirySkew,
		now:       time.Now,
		logger:    core.NopLogger,
		subs:      make(map[int]func()),
	}
	if opts != nil {
		if opts.Skew > 0 {
			m.skew = opts.Skew
		}
		if opts.Now != nil {
			m.now = opts.Now
		}
		if opts.Logger != nil {
			m.logger = opts.Logger
		}
	}
	return m
}

// Store returns the underlying credential store.
func (m *Manager) Store() *Store {
	return m.store
}

// EnsureFreshAccess returns the stored access credential, refreshing first when it is
// missing (but a refresh credential exists) or about to expire.
func (m *Manager) EnsureFreshAccess(ctx context.Context) (string, bool) {
	access, hasAccess := m.store.Access()
	_, hasRefresh := m.store.Refresh()

	if (!hasAccess && hasRefresh) || (hasAccess && IsExpired(access, m.skew, m.now())) {
		return m.Refresh(ctx, access)
	}
	return access, hasAccess
}

// Refresh exchanges the stored refresh credential for a new access credential.
// stale is the access credential the caller found unusable; when the store
// already holds a different, unexpired one it is returned without a network call.
// Concurrent callers share a single network call and its outcome.
// Failures are logged and reported as ok == false; stored credentials are left untouched.
func (m *Manager) Refresh(ctx context.Context, stale string) (string, bool) {
	ch := m.flight.DoChan(refreshFlightKey, func() (interface{}, error) {
		// the shared call must not die with whichever caller started it
		access, err := m.refresh(context.WithoutCancel(ctx), stale)
		if err != nil {
			m.logger.Warn("refreshing access token", err)
		}
		return access, err
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", false
		}
		return res.Val.(string), true
	case <-ctx.Done():
		return "", false
	}
}

func (m *Manager) refresh(ctx context.Context, stale string) (access string, err error) {
	defer func() {
		if r := recover(); r != nil {
			access, err = "", fmt.Errorf("refresh panicked: %v", r)
		}
	}()

	// a refresh that completed after the caller looked already did the work
	if current, ok := m.store.Access(); ok && current != stale && !IsExpired(current, m.skew, m.now()) {
		return current, nil
	}

	refresh, ok := m.store.Refresh()
	if !ok {
		return "", errors.New("no refresh token")
	}
	access, err = m.refresher.RefreshAccess(ctx, refresh)
	if err != nil {
		return "", errors.Wrap(err, "calling refresh endpoint")
	}
	if access == "" {
		return "", errors.New("refresh response without access token")
	}
	if err = m.store.Set(access, refresh); err != nil {
		return "", err
	}
	return access, nil
}

// OnSessionExpired registers fn to be called when the session becomes invalid.
// The returned func removes the subscription.
func (m *Manager) OnSessionExpired(fn func()) (unsubscribe func()) {
	m.subsMu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	m.subsMu.Unlock()

	return func() {
		m.subsMu.Lock()
		delete(m.subs, id)
		m.subsMu.Unlock()
	}
}

// ReportSessionExpired wipes the credentials and notifies subscribers,
// at most once until credentials are set again.
func (m *Manager) ReportSessionExpired() {
	if err := m.store.Clear(); err != nil {
		m.logger.Error("clearing expired session", err)
	}
	if !m.store.markNotified() {
		return
	}
	m.logger.Info("session expired")

	m.subsMu.Lock()
	subs := make([]func(), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.subsMu.Unlock()

	for _, fn := range subs {
		fn()
	}
}

// Logout clears the credentials without notifying subscribers.
func (m *Manager) Logout() error {
	return m.store.Clear()
}
