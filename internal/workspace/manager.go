// Package workspace manages the per-job temporary directories that back
// downloads: allocation, lease-aware eviction under disk pressure, and
// reclamation after the retention window.
package workspace

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/psannetwork/youtube/internal/domain"
	"github.com/psannetwork/youtube/internal/logger"
)

// Handle identifies one allocated workspace directory. The ID is a
// generated token, never derived from client input.
type Handle struct {
	ID   string
	Path string
}

type dirState struct {
	path   string
	leases int
}

// Manager owns the workspace root directory. All methods are safe for
// concurrent use.
type Manager struct {
	root string
	log  *logger.Logger

	mu     sync.Mutex
	active map[string]*dirState
}

// NewManager creates the workspace root if needed.
func NewManager(root string, log *logger.Logger) (*Manager, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, &domain.ResourceError{Op: "resolve workspace root", Err: err}
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, &domain.ResourceError{Op: "create workspace root", Err: err}
	}
	if log == nil {
		log = logger.GetDefault()
	}
	return &Manager{
		root:   abs,
		log:    log.WithField(logger.FieldComponent, "workspace"),
		active: make(map[string]*dirState),
	}, nil
}

// Allocate creates a fresh, uniquely named directory under the root.
func (m *Manager) Allocate() (Handle, error) {
	id := uuid.NewString()
	path := filepath.Join(m.root, id)
	if err := os.Mkdir(path, 0o755); err != nil {
		return Handle{}, &domain.ResourceError{Op: "allocate workspace", Err: err}
	}

	m.mu.Lock()
	m.active[id] = &dirState{path: path}
	m.mu.Unlock()

	return Handle{ID: id, Path: path}, nil
}

// Path returns the directory backing a workspace id.
func (m *Manager) Path(id string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.active[id]
	if !ok {
		return "", false
	}
	return st.path, true
}

// Lease takes a reference on the workspace while a file inside it is
// being streamed out, protecting it from eviction. The returned release
// function is safe to call more than once.
func (m *Manager) Lease(id string) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.active[id]
	if !ok {
		return nil, domain.ErrFileNotFound
	}
	st.leases++

	var once sync.Once
	release := func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if st, ok := m.active[id]; ok && st.leases > 0 {
				st.leases--
			}
		})
	}
	return release, nil
}

// Leased reports whether the workspace currently has an open lease.
func (m *Manager) Leased(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.active[id]
	return ok && st.leases > 0
}

// Reclaim recursively deletes the workspace directory. Idempotent: a
// second call on an already-removed handle is a no-op.
func (m *Manager) Reclaim(h Handle) error {
	m.mu.Lock()
	delete(m.active, h.ID)
	m.mu.Unlock()

	if err := os.RemoveAll(h.Path); err != nil {
		return &domain.ResourceError{Op: "reclaim workspace", Err: err}
	}
	return nil
}

// TryReclaim reclaims the workspace unless it is currently leased.
// Returns true when the directory is gone (now or already).
func (m *Manager) TryReclaim(id string) (bool, error) {
	m.mu.Lock()
	st, ok := m.active[id]
	if ok && st.leases > 0 {
		m.mu.Unlock()
		return false, nil
	}
	var path string
	if ok {
		path = st.path
		delete(m.active, id)
	}
	m.mu.Unlock()

	if path == "" {
		return true, nil
	}
	if err := os.RemoveAll(path); err != nil {
		// Put the entry back so the next sweep retries.
		m.mu.Lock()
		m.active[id] = &dirState{path: path}
		m.mu.Unlock()
		return false, &domain.ResourceError{Op: "reclaim workspace", Err: err}
	}
	return true, nil
}

// AvailableSpace returns the free capacity of the filesystem holding the
// workspace root.
func (m *Manager) AvailableSpace() (int64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(m.root, &st); err != nil {
		return 0, &domain.ResourceError{Op: "statfs workspace root", Err: err}
	}
	return int64(st.Bavail) * int64(st.Bsize), nil
}

// EvictIfLow deletes the single largest file found across all active,
// non-leased workspaces when free space is below the threshold. Repeated
// calls converge toward the threshold. Best effort: failures are logged
// and reported, never fatal.
func (m *Manager) EvictIfLow(thresholdBytes int64) (evicted string, ok bool) {
	if thresholdBytes <= 0 {
		return "", false
	}
	avail, err := m.AvailableSpace()
	if err != nil {
		m.log.WithError(err).Warn("skipping eviction, free space unknown")
		return "", false
	}
	if avail >= thresholdBytes {
		return "", false
	}

	m.mu.Lock()
	candidates := make([]string, 0, len(m.active))
	for _, st := range m.active {
		if st.leases == 0 {
			candidates = append(candidates, st.path)
		}
	}
	m.mu.Unlock()

	var largest string
	var largestSize int64
	for _, dir := range candidates {
		filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return nil
			}
			if info.Size() > largestSize {
				largestSize = info.Size()
				largest = path
			}
			return nil
		})
	}

	if largest == "" {
		return "", false
	}
	if err := os.Remove(largest); err != nil {
		m.log.WithError(err).WithField("path", largest).Warn("failed to evict file")
		return "", false
	}
	m.log.WithFields(logger.Fields{
		"path":            largest,
		logger.FieldSize:  largestSize,
		"available_bytes": avail,
	}).Info("evicted largest file under disk pressure")
	return largest, true
}

// ResolveFile maps a workspace id and client-supplied file name to an
// absolute path, verified to remain inside the workspace directory.
// The traversal check happens before any filesystem access.
func (m *Manager) ResolveFile(id, name string) (string, error) {
	dir, ok := m.Path(id)
	if !ok {
		return "", domain.ErrFileNotFound
	}

	resolved := filepath.Clean(filepath.Join(dir, name))
	if resolved == dir || !strings.HasPrefix(resolved, dir+string(filepath.Separator)) {
		return "", &domain.PathTraversalError{Requested: name}
	}

	info, err := os.Stat(resolved)
	if err != nil || info.IsDir() {
		return "", domain.ErrFileNotFound
	}
	return resolved, nil
}

// Collect enumerates the regular files in a completed workspace. Files
// whose names differ from their sanitized form are renamed on disk first,
// so the returned names always resolve through ResolveFile.
func (m *Manager) Collect(id string, sanitize func(string) string) ([]domain.ProducedFile, error) {
	dir, ok := m.Path(id)
	if !ok {
		return nil, domain.ErrFileNotFound
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &domain.ResourceError{Op: "list workspace", Err: err}
	}

	files := make([]domain.ProducedFile, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if clean := sanitize(name); clean != name {
			if err := os.Rename(filepath.Join(dir, name), filepath.Join(dir, clean)); err == nil {
				name = clean
			}
		}
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		files = append(files, domain.ProducedFile{
			Name:      name,
			Path:      filepath.Join(id, name),
			SizeBytes: info.Size(),
		})
	}
	return files, nil
}
