// Package backup produces, verifies, restores, and expires snapshots of the
// purchase store file. Snapshots are gzip artifacts with a yaml manifest
// sidecar carrying the sha256 of the store content; every mutation of the
// live store goes through an exclusive advisory lock and an atomic rename.
package backup

import (
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/barstock/stock-cli/internal/config"
	"github.com/barstock/stock-cli/internal/errs"
	"github.com/barstock/stock-cli/internal/model"
)

// State identifies where the manager is in a snapshot or restore sequence.
type State string

const (
	StateIdle         State = "idle"
	StateSnapshotting State = "snapshotting"
	StateVerifying    State = "verifying"
	StateFailed       State = "failed"
	StateSafetyBackup State = "safety_backup"
	StateRestoring    State = "restoring"
	StateRolledBack   State = "rolled_back"
)

const lockRetryDelay = 100 * time.Millisecond

// Manager owns the snapshot lineage of a single store file. Methods are safe
// for concurrent use; snapshot and restore additionally hold an exclusive
// advisory lock on <store>.lock so no two processes touch the store at once.
type Manager struct {
	storePath     string
	dir           string
	compress      bool
	retentionDays int
	lockTimeout   time.Duration

	now func() time.Time

	mu    sync.Mutex
	state State
}

// Option adjusts manager construction.
type Option func(*Manager)

// WithNow overrides the clock, pinning artifact timestamps and the retention
// cutoff.
func WithNow(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a manager for the store at storePath.
func NewManager(storePath string, cfg config.BackupConfig, opts ...Option) (*Manager, error) {
	if storePath == "" {
		return nil, errs.Validationf("backup: store path is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, eris.Wrap(err, "backup: config")
	}

	m := &Manager{
		storePath:     storePath,
		dir:           cfg.Dir,
		compress:      cfg.Compress,
		retentionDays: cfg.RetentionDays,
		lockTimeout:   cfg.LockTimeout,
		now:           time.Now,
		state:         StateIdle,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// State returns the manager's current position in the snapshot or restore
// sequence. Idle between operations.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) transition(to State) {
	m.mu.Lock()
	from := m.state
	m.state = to
	m.mu.Unlock()

	zap.L().Debug("backup: state transition",
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
}

// abort records the failure state, then settles back to idle.
func (m *Manager) abort(to State) {
	m.transition(to)
	m.transition(StateIdle)
}

// acquireLock takes the exclusive advisory lock on the store, giving up with
// a busy error once the configured timeout expires.
func (m *Manager) acquireLock(ctx context.Context) (*flock.Flock, error) {
	lock := flock.New(m.storePath + ".lock")

	lockCtx, cancel := context.WithTimeout(ctx, m.lockTimeout)
	defer cancel()

	ok, err := lock.TryLockContext(lockCtx, lockRetryDelay)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, errs.NewBackup("lock", errs.ErrStoreBusy)
		}
		return nil, errs.NewBackup("lock", err)
	}
	if !ok {
		return nil, errs.NewBackup("lock", errs.ErrStoreBusy)
	}
	return lock, nil
}

// Create snapshots the live store into a timestamped artifact with a
// manifest sidecar. The store lock is held from before the copy until after
// verification, so the snapshot is taken from a consistent point. A snapshot
// that fails verification is discarded, never published.
func (m *Manager) Create(ctx context.Context) (*model.BackupEntry, error) {
	log := zap.L().With(zap.String("component", "backup.manager"))

	lock, err := m.acquireLock(ctx)
	if err != nil {
		return nil, err
	}
	defer lock.Unlock() //nolint:errcheck

	createdAt := m.now()
	dst := filepath.Join(m.dir, artifactName(m.storePath, createdAt, m.compress))

	m.transition(StateSnapshotting)
	entry, err := m.snapshotTo(dst, m.compress, createdAt, "create")
	if err != nil {
		m.abort(StateFailed)
		return nil, err
	}

	m.transition(StateVerifying)
	if err := m.Verify(dst); err != nil {
		m.discard(dst)
		m.abort(StateFailed)
		return nil, err
	}

	m.transition(StateIdle)
	log.Info("backup created",
		zap.String("artifact", entry.Name),
		zap.Int64("size_bytes", entry.SizeBytes),
		zap.Bool("compressed", entry.Compressed),
	)
	return entry, nil
}

// Verify recomputes the artifact's content checksum and compares it to the
// manifest. A mismatch or an undecodable artifact gets a corrupt marker
// written next to it; the artifact itself is kept for inspection. Artifacts
// without a manifest are checked for decodability only.
func (m *Manager) Verify(path string) error {
	if _, err := os.Stat(path); err != nil {
		return errs.NewBackup("verify", err)
	}

	man, err := readManifest(manifestPath(path))
	if err != nil {
		return errs.NewBackup("verify", err)
	}

	sum, _, err := digestArtifact(path, isCompressedName(path))
	if err != nil {
		m.markCorrupt(path, "artifact does not decode")
		return errs.NewBackup("verify", errs.NewDataIntegrity(err))
	}

	if man == nil {
		zap.L().Warn("backup: artifact has no manifest, verified decode only",
			zap.String("artifact", filepath.Base(path)),
		)
		return nil
	}

	if sum != man.Checksum {
		m.markCorrupt(path, fmt.Sprintf("checksum %s, manifest records %s", sum, man.Checksum))
		return errs.NewBackup("verify", errs.DataIntegrityf(
			"artifact %s checksum %s does not match manifest %s",
			filepath.Base(path), sum, man.Checksum))
	}
	return nil
}

// Restore replaces the live store with the artifact's content. The current
// store is snapshotted first, the artifact is decoded to a temp path and
// checked against its manifest, and only then renamed over the live file.
// Any failure leaves the live store untouched. Returns the safety backup
// entry, nil when no live store existed.
func (m *Manager) Restore(ctx context.Context, artifactPath string) (*model.BackupEntry, error) {
	log := zap.L().With(zap.String("component", "backup.manager"))

	if _, err := os.Stat(corruptMarkerPath(artifactPath)); err == nil {
		return nil, errs.NewBackup("restore", errs.DataIntegrityf(
			"artifact %s is marked corrupt", filepath.Base(artifactPath)))
	}

	if err := m.Verify(artifactPath); err != nil {
		return nil, err
	}

	man, err := readManifest(manifestPath(artifactPath))
	if err != nil {
		return nil, errs.NewBackup("restore", err)
	}

	lock, err := m.acquireLock(ctx)
	if err != nil {
		return nil, err
	}
	defer lock.Unlock() //nolint:errcheck

	m.transition(StateSafetyBackup)
	safety, err := m.takeSafetyBackup()
	if err != nil {
		m.abort(StateRolledBack)
		return nil, err
	}

	m.transition(StateRestoring)
	tmp := m.storePath + ".restore" + tempSuffix
	sum, _, err := unpackArtifact(artifactPath, tmp, isCompressedName(artifactPath))
	if err != nil {
		_ = os.Remove(tmp)
		m.abort(StateRolledBack)
		return nil, errs.NewBackup("restore", err)
	}

	m.transition(StateVerifying)
	if man != nil && sum != man.Checksum {
		_ = os.Remove(tmp)
		m.abort(StateRolledBack)
		return nil, errs.NewBackup("restore", errs.DataIntegrityf(
			"restored content checksum %s does not match manifest %s", sum, man.Checksum))
	}

	if err := os.Rename(tmp, m.storePath); err != nil {
		_ = os.Remove(tmp)
		m.abort(StateRolledBack)
		return nil, errs.NewBackup("restore", err)
	}

	// Stale WAL sidecars from the replaced store must not be replayed over
	// the restored content.
	for _, suffix := range []string{"-wal", "-shm"} {
		if err := os.Remove(m.storePath + suffix); err != nil && !os.IsNotExist(err) {
			m.abort(StateRolledBack)
			return nil, errs.NewBackup("restore", err)
		}
	}

	m.transition(StateIdle)
	log.Info("store restored",
		zap.String("artifact", filepath.Base(artifactPath)),
		zap.String("checksum", sum),
	)
	return safety, nil
}

// Sweep deletes artifacts whose age exceeds the retention window, oldest
// first. The most recent non-corrupt backup is always kept, however old.
// Returns the number of artifacts removed.
func (m *Manager) Sweep() (int, error) {
	log := zap.L().With(zap.String("component", "backup.manager"))

	entries, err := m.List()
	if err != nil {
		return 0, err
	}

	cutoff := m.now().AddDate(0, 0, -m.retentionDays)

	var lastGood string
	for _, e := range entries {
		if !e.Corrupt {
			lastGood = e.Path
			break
		}
	}

	removed := 0
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if e.Path == lastGood || !e.CreatedAt.Before(cutoff) {
			continue
		}
		if err := removeArtifact(e.Path); err != nil {
			return removed, errs.NewBackup("sweep", err)
		}
		log.Info("swept expired backup",
			zap.String("artifact", e.Name),
			zap.Time("created_at", e.CreatedAt),
		)
		removed++
	}
	return removed, nil
}

// List catalogs the backup directory, newest first. Artifacts without a
// manifest are cataloged from the timestamp in their name and file size.
func (m *Manager) List() ([]model.BackupEntry, error) {
	dirents, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errs.NewBackup("list", err)
	}

	var entries []model.BackupEntry
	for _, de := range dirents {
		if de.IsDir() || !isArtifact(de.Name()) {
			continue
		}
		entry, err := m.catalog(filepath.Join(m.dir, de.Name()), de)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.After(entries[j].CreatedAt)
		}
		return entries[i].Name > entries[j].Name
	})
	return entries, nil
}

func (m *Manager) catalog(path string, de os.DirEntry) (model.BackupEntry, error) {
	man, err := readManifest(manifestPath(path))
	if err != nil {
		return model.BackupEntry{}, errs.NewBackup("list", err)
	}

	var entry model.BackupEntry
	if man != nil {
		entry = man.Entry(path)
	} else {
		info, err := de.Info()
		if err != nil {
			return model.BackupEntry{}, errs.NewBackup("list", err)
		}
		createdAt := info.ModTime()
		if ts, ok := artifactTime(de.Name()); ok {
			createdAt = ts
		}
		entry = model.BackupEntry{
			Path:       path,
			Name:       de.Name(),
			CreatedAt:  createdAt,
			SizeBytes:  info.Size(),
			Compressed: isCompressedName(de.Name()),
		}
	}

	if _, err := os.Stat(corruptMarkerPath(path)); err == nil {
		entry.Corrupt = true
	}
	return entry, nil
}

// snapshotTo copies the live store into dst through a temp file, re-reading
// the written bytes against the source checksum before the artifact and its
// manifest are published under their final names.
func (m *Manager) snapshotTo(dst string, compress bool, createdAt time.Time, op string) (*model.BackupEntry, error) {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return nil, errs.NewBackup(op, err)
	}

	tmp := dst + tempSuffix
	sum, size, err := packStore(m.storePath, tmp, compress)
	if err != nil {
		_ = os.Remove(tmp)
		return nil, errs.NewBackup(op, err)
	}

	got, _, err := digestArtifact(tmp, compress)
	if err != nil {
		_ = os.Remove(tmp)
		return nil, errs.NewBackup(op, err)
	}
	if got != sum {
		_ = os.Remove(tmp)
		return nil, errs.NewBackup(op, errs.DataIntegrityf(
			"written artifact checksum %s does not match source %s", got, sum))
	}

	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return nil, errs.NewBackup(op, err)
	}

	man := Manifest{
		Name:       filepath.Base(dst),
		StoreFile:  filepath.Base(m.storePath),
		CreatedAt:  createdAt,
		SizeBytes:  size,
		Checksum:   sum,
		Compressed: compress,
	}
	if err := writeManifest(manifestPath(dst), man); err != nil {
		_ = os.Remove(dst)
		return nil, errs.NewBackup(op, err)
	}

	entry := man.Entry(dst)
	return &entry, nil
}

// takeSafetyBackup snapshots the current live store before a restore
// overwrites it. Skipped when no live store exists yet.
func (m *Manager) takeSafetyBackup() (*model.BackupEntry, error) {
	if _, err := os.Stat(m.storePath); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errs.NewBackup("restore", err)
	}

	createdAt := m.now()
	dst := filepath.Join(m.dir, safetyName(m.storePath, createdAt))
	return m.snapshotTo(dst, false, createdAt, "restore")
}

// discard removes an artifact with its sidecars after a failed create.
func (m *Manager) discard(path string) {
	if err := removeArtifact(path); err != nil {
		zap.L().Error("backup: discard failed snapshot", zap.String("artifact", path), zap.Error(err))
	}
}

func (m *Manager) markCorrupt(path, reason string) {
	msg := fmt.Sprintf("marked corrupt at %s: %s\n", m.now().Format(time.RFC3339), reason)
	if err := os.WriteFile(corruptMarkerPath(path), []byte(msg), 0o644); err != nil {
		zap.L().Error("backup: write corrupt marker", zap.String("artifact", path), zap.Error(err))
	}
}

func removeArtifact(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return eris.Wrapf(err, "backup: remove %s", filepath.Base(path))
	}
	for _, sidecar := range []string{manifestPath(path), corruptMarkerPath(path)} {
		if err := os.Remove(sidecar); err != nil && !os.IsNotExist(err) {
			return eris.Wrapf(err, "backup: remove %s", filepath.Base(sidecar))
		}
	}
	return nil
}

// packStore copies the store file into an artifact, gzipping when asked, and
// returns the sha256 hex and byte count of the store content.
func packStore(src, dst string, compress bool) (string, int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", 0, eris.Wrap(err, "backup: open store")
	}
	defer in.Close() //nolint:errcheck

	out, err := os.Create(dst)
	if err != nil {
		return "", 0, eris.Wrap(err, "backup: create artifact")
	}

	hasher := sha256.New()
	var w io.Writer = out
	var gzw *gzip.Writer
	if compress {
		gzw = gzip.NewWriter(out)
		w = gzw
	}

	n, err := io.Copy(io.MultiWriter(hasher, w), in)
	if err != nil {
		_ = out.Close()
		return "", 0, eris.Wrap(err, "backup: copy store")
	}
	if gzw != nil {
		if err := gzw.Close(); err != nil {
			_ = out.Close()
			return "", 0, eris.Wrap(err, "backup: flush artifact")
		}
	}
	if err := out.Close(); err != nil {
		return "", 0, eris.Wrap(err, "backup: close artifact")
	}

	return hex.EncodeToString(hasher.Sum(nil)), n, nil
}

// unpackArtifact decodes an artifact into dst and returns the sha256 hex and
// byte count of the decoded content.
func unpackArtifact(src, dst string, compressed bool) (string, int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", 0, eris.Wrap(err, "backup: open artifact")
	}
	defer in.Close() //nolint:errcheck

	var r io.Reader = in
	if compressed {
		gz, err := gzip.NewReader(in)
		if err != nil {
			return "", 0, eris.Wrap(err, "backup: decode artifact")
		}
		defer gz.Close() //nolint:errcheck
		r = gz
	}

	out, err := os.Create(dst)
	if err != nil {
		return "", 0, eris.Wrap(err, "backup: create restore target")
	}

	hasher := sha256.New()
	n, err := io.Copy(io.MultiWriter(hasher, out), r)
	if err != nil {
		_ = out.Close()
		return "", 0, eris.Wrap(err, "backup: decode artifact")
	}
	if err := out.Close(); err != nil {
		return "", 0, eris.Wrap(err, "backup: close restore target")
	}

	return hex.EncodeToString(hasher.Sum(nil)), n, nil
}

// digestArtifact decodes an artifact, discarding the content, and returns
// the sha256 hex and byte count of the decoded stream.
func digestArtifact(path string, compressed bool) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, eris.Wrap(err, "backup: open artifact")
	}
	defer f.Close() //nolint:errcheck

	var r io.Reader = f
	if compressed {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return "", 0, eris.Wrap(err, "backup: decode artifact")
		}
		defer gz.Close() //nolint:errcheck
		r = gz
	}

	hasher := sha256.New()
	n, err := io.Copy(hasher, r)
	if err != nil {
		return "", 0, eris.Wrap(err, "backup: read artifact")
	}
	return hex.EncodeToString(hasher.Sum(nil)), n, nil
}
