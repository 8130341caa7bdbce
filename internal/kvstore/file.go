package kvstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"resumeflow/internal/errors"

	"github.com/fsnotify/fsnotify"
)

// FileStore keeps every key in a single JSON document on disk.
// The document is re-read on each Get so writes from other processes are
// visible; the last writer wins.
type FileStore struct {
	mu   sync.Mutex
	path string

	// modification time of the last write this process made or observed
	lastModTime time.Time

	debounceDelay time.Duration
	logger        *errors.Logger
}

// NewFileStore returns a store backed by path. The parent directory is
// created when missing.
func NewFileStore(path string, debounceDelay time.Duration, logger *errors.Logger) (*FileStore, error) {
	if path == "" {
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig, "file store path is empty", nil)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.NewStorageError(errors.ErrCodeStorageWrite, "failed to create storage directory", err).
			WithContext("path", path)
	}
	if debounceDelay <= 0 {
		debounceDelay = 250 * time.Millisecond
	}
	if logger == nil {
		logger = errors.NewNopLogger()
	}

	fs := &FileStore{path: path, debounceDelay: debounceDelay, logger: logger}
	if stat, err := os.Stat(path); err == nil {
		fs.lastModTime = stat.ModTime()
	}
	return fs, nil
}

// Path returns the backing file.
func (fs *FileStore) Path() string { return fs.path }

func (fs *FileStore) Get(key string) ([]byte, bool, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	doc, err := fs.load()
	if err != nil {
		return nil, false, err
	}
	v, ok := doc[key]
	if !ok {
		return nil, false, nil
	}
	return []byte(v), true, nil
}

func (fs *FileStore) Set(key string, value []byte) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	doc, err := fs.load()
	if err != nil {
		// An unreadable document is replaced rather than blocking every write.
		fs.logger.LogError(err, "Replacing unreadable storage file", "path", fs.path)
		doc = map[string]string{}
	}
	doc[key] = string(value)
	return fs.save(doc)
}

func (fs *FileStore) Delete(key string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	doc, err := fs.load()
	if err != nil {
		return err
	}
	if _, ok := doc[key]; !ok {
		return nil
	}
	delete(doc, key)
	return fs.save(doc)
}

func (fs *FileStore) Close() error { return nil }

func (fs *FileStore) load() (map[string]string, error) {
	raw, err := os.ReadFile(fs.path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, errors.NewStorageError(errors.ErrCodeStorageRead, "failed to read storage file", err).
			WithContext("path", fs.path)
	}
	if len(raw) == 0 {
		return map[string]string{}, nil
	}

	doc := map[string]string{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, errors.NewStorageError(errors.ErrCodeStorageCorrupt, "storage file is not a JSON object", err).
			WithContext("path", fs.path)
	}
	if doc == nil {
		doc = map[string]string{}
	}
	return doc, nil
}

// save writes doc to a temp file in the same directory and renames it over
// the target.
func (fs *FileStore) save(doc map[string]string) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.NewInternalError(errors.ErrCodeStorageWrite, "failed to encode storage document", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(fs.path), "."+filepath.Base(fs.path)+".*")
	if err != nil {
		return errors.NewStorageError(errors.ErrCodeStorageWrite, "failed to create temp file", err).
			WithContext("path", fs.path)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.NewStorageError(errors.ErrCodeStorageWrite, "failed to write temp file", err)
	}
	if err := tmp.Close(); err != nil {
		return errors.NewStorageError(errors.ErrCodeStorageWrite, "failed to close temp file", err)
	}
	if err := os.Rename(tmpName, fs.path); err != nil {
		return errors.NewStorageError(errors.ErrCodeStorageWrite, "failed to replace storage file", err).
			WithContext("path", fs.path)
	}

	if stat, err := os.Stat(fs.path); err == nil {
		fs.lastModTime = stat.ModTime()
	}
	return nil
}

// hasChanged reports whether the file was modified since the last write
// this process made or observed.
func (fs *FileStore) hasChanged() bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	stat, err := os.Stat(fs.path)
	if err != nil {
		if os.IsNotExist(err) && !fs.lastModTime.IsZero() {
			fs.lastModTime = time.Time{}
			return true
		}
		return false
	}
	if stat.ModTime().After(fs.lastModTime) {
		fs.lastModTime = stat.ModTime()
		return true
	}
	return false
}

// Watch calls fn, debounced, whenever another process rewrites the file.
// The directory is watched so atomic renames are seen.
func (fs *FileStore) Watch(ctx context.Context, fn func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			fs.logger.LogError(err, "Failed to close file watcher")
		}
	}()

	dir := filepath.Dir(fs.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch directory %s: %w", dir, err)
	}
	fs.logger.Debug("Storage file watcher started", "path", fs.path, "debounce_delay", fs.debounceDelay)

	base := filepath.Base(fs.path)
	fire := make(chan struct{}, 1)
	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(fs.debounceDelay, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fs.logger.LogError(err, "File watcher error", "path", fs.path)

		case <-fire:
			if fs.hasChanged() {
				fs.logger.Debug("Storage file changed by another process", "path", fs.path)
				fn()
			}
		}
	}
}
