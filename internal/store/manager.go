package store

import (
	"fmt"
	"os"
	"sync"

	"github.com/farsilandtv/farsihub/internal/config"
	"github.com/farsilandtv/farsihub/internal/models"
	"github.com/sirupsen/logrus"
)

// Manager owns the single open catalog handle. Exactly one catalog database
// is open at a time; the "is the requested source already open" check and
// the close/reopen that follows run under the same mutex so two callers can
// never race a switch into two open instances.
type Manager struct {
	mu     sync.Mutex
	cfg    *config.Config
	logger *logrus.Logger

	active models.SourceID
	store  *CatalogStore
}

// NewManager creates a manager starting on the given source. Nothing is
// opened until the first Store call.
func NewManager(cfg *config.Config, active models.SourceID, logger *logrus.Logger) *Manager {
	return &Manager{cfg: cfg, logger: logger, active: active}
}

// Active returns the currently selected source.
func (m *Manager) Active() models.SourceID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Store returns the open catalog store for the active source, opening it
// (seeding the file first if needed) on first access.
func (m *Manager) Store() (*CatalogStore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.openLocked()
}

// Switch selects a different source, closing the current catalog handle.
// Switching to the already-active source is a no-op. The new source's store
// opens lazily on the next Store call.
func (m *Manager) Switch(source models.SourceID) error {
	if !source.Valid() {
		return fmt.Errorf("unknown source %q", source)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if source == m.active && m.store != nil {
		return nil
	}

	if err := m.closeLocked(); err != nil {
		return err
	}
	m.active = source
	m.logger.WithField("source", source).Info("Switched active content source")
	return nil
}

// ForceResync deletes the active source's catalog database file outright and
// clears the handle; the next open recopies the seed asset, and the caller
// is expected to trigger a full sync.
func (m *Manager) ForceResync() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.closeLocked(); err != nil {
		return err
	}

	path := m.cfg.CatalogDBPath(m.active)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete catalog file: %w", err)
	}

	m.logger.WithFields(logrus.Fields{
		"source": m.active,
		"path":   path,
	}).Info("Catalog database deleted for full resync")
	return nil
}

// Close releases the open handle, if any.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeLocked()
}

func (m *Manager) openLocked() (*CatalogStore, error) {
	if m.store != nil {
		return m.store, nil
	}

	path := m.cfg.CatalogDBPath(m.active)
	if err := ensureCatalogFile(path, m.cfg.SeedDBPath(m.active), m.logger); err != nil {
		return nil, err
	}

	store, err := OpenCatalog(path, m.active, m.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog for %s: %w", m.active, err)
	}
	m.store = store
	m.logger.WithField("source", m.active).Info("Catalog database opened")
	return store, nil
}

func (m *Manager) closeLocked() error {
	if m.store == nil {
		return nil
	}
	err := m.store.Close()
	m.store = nil
	if err != nil {
		return fmt.Errorf("failed to close catalog: %w", err)
	}
	return nil
}
