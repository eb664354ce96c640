package browser

import (
	"context"
	"fmt"

	"github.com/brogergvhs/mangapark-dl/internal/ui"
)

type LaunchFunc func(ctx context.Context, opts Options) (Session, error)

// Manager owns at most one live session at a time.
type Manager struct {
	opts   Options
	log    ui.Logger
	launch LaunchFunc
	active Session
}

func NewManager(opts Options, log ui.Logger) *Manager {
	return &Manager{opts: opts, log: log, launch: Launch}
}

// WithLauncher replaces the function used to start sessions.
func (m *Manager) WithLauncher(fn LaunchFunc) *Manager {
	m.launch = fn
	return m
}

// Acquire starts a new session. An already active session is released first.
// Failures are returned as *SessionCreationError and are not retried.
func (m *Manager) Acquire(ctx context.Context) (Session, error) {
	if m.active != nil {
		m.Release()
	}

	sess, err := m.launch(ctx, m.opts)
	if err != nil {
		m.log.Errorf("Failed to setup %s driver: %v", m.engine(), err)
		return nil, &SessionCreationError{Engine: m.engine(), Err: err}
	}
	if sess == nil {
		m.log.Errorf("Failed to setup %s driver: no session returned", m.engine())
		return nil, &SessionCreationError{Engine: m.engine(), Err: fmt.Errorf("no session returned")}
	}

	m.active = sess
	m.log.Infof("%s driver setup successfully", m.engine())
	return sess, nil
}

// Release closes the active session, if any. It never panics and only logs
// close failures.
func (m *Manager) Release() {
	sess := m.active
	if sess == nil {
		return
	}
	m.active = nil

	defer func() {
		if r := recover(); r != nil {
			m.log.Warnf("Error closing driver: %v", r)
		}
	}()

	if err := sess.Close(); err != nil {
		m.log.Warnf("Error closing driver: %v", err)
		return
	}

	m.log.Infof("Driver closed")
}

// Active returns the live session or nil.
func (m *Manager) Active() Session {
	return m.active
}

func (m *Manager) engine() Engine {
	if m.opts.Engine == "" {
		return EngineChrome
	}
	return m.opts.Engine
}
