package kvstore

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"resumeflow/internal/config"
	"resumeflow/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()

	_, found, err := s.Get("missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Set("a", []byte(`{"x":1}`)))
	require.NoError(t, s.Set("b", []byte("plain")))

	v, found, err := s.Get("a")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `{"x":1}`, string(v))

	require.NoError(t, s.Set("a", []byte(`{"x":2}`)))
	v, _, err = s.Get("a")
	require.NoError(t, err)
	assert.Equal(t, `{"x":2}`, string(v))

	require.NoError(t, s.Delete("a"))
	require.NoError(t, s.Delete("a"))
	_, found, err = s.Get("a")
	require.NoError(t, err)
	assert.False(t, found)

	v, found, err = s.Get("b")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "plain", string(v))
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	exerciseStore(t, s)

	value := []byte("abc")
	require.NoError(t, s.Set("k", value))
	value[0] = 'z'
	got, _, _ := s.Get("k")
	assert.Equal(t, "abc", string(got), "store must not alias caller buffers")
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	s, err := NewFileStore(path, 10*time.Millisecond, errors.NewNopLogger())
	require.NoError(t, err)
	exerciseStore(t, s)

	// A second instance on the same file sees the first one's writes.
	other, err := NewFileStore(path, 10*time.Millisecond, nil)
	require.NoError(t, err)
	v, found, err := other.Get("b")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "plain", string(v))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must be cleaned up after rename")
}

func TestFileStoreCorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	s, err := NewFileStore(path, 0, nil)
	require.NoError(t, err)

	_, _, err = s.Get("a")
	assert.True(t, errors.HasCode(err, errors.ErrCodeStorageCorrupt))

	require.NoError(t, s.Set("a", []byte("1")), "writes replace an unreadable document")
	v, found, err := s.Get("a")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "1", string(v))
}

func TestFileStoreNullDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("null"), 0o600))

	s, err := NewFileStore(path, 0, nil)
	require.NoError(t, err)

	_, found, err := s.Get("a")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Set("a", []byte("1")))
	v, found, err := s.Get("a")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "1", string(v))
}

func TestFileStoreWatchSeesOtherWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	watched, err := NewFileStore(path, 20*time.Millisecond, nil)
	require.NoError(t, err)
	writer, err := NewFileStore(path, 20*time.Millisecond, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan struct{}, 4)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = watched.Watch(ctx, func() { changed <- struct{}{} })
	}()

	// Give the watcher time to register the directory, and move past the
	// coarse mtime resolution of some filesystems.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, writer.Set("k", []byte("v")))

	select {
	case <-changed:
	case <-time.After(3 * time.Second):
		t.Fatal("watch callback was not called after an external write")
	}

	cancel()
	wg.Wait()
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	exerciseStore(t, s)
}

func TestSQLiteStorePersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(KeyAnonymousID, []byte("anon-1")))
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	v, found, err := reopened.Get(KeyAnonymousID)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "anon-1", string(v))
}

type countingRecorder struct {
	ops    map[string]int
	errors int
}

func (r *countingRecorder) RecordStorageOp(op string, _ time.Duration, err error) {
	r.ops[op]++
	if err != nil {
		r.errors++
	}
}

func TestInstrument(t *testing.T) {
	rec := &countingRecorder{ops: map[string]int{}}
	s := Instrument(NewMemoryStore(), rec)

	require.NoError(t, s.Set("a", []byte("1")))
	_, _, _ = s.Get("a")
	_, _, _ = s.Get("b")
	require.NoError(t, s.Delete("a"))

	assert.Equal(t, map[string]int{"set": 1, "get": 2, "delete": 1}, rec.ops)
	assert.Zero(t, rec.errors)
	assert.Same(t, s, Instrument(s, nil))
}

func TestAsWatcherLooksThroughDecorators(t *testing.T) {
	fs, err := NewFileStore(filepath.Join(t.TempDir(), "s.json"), 0, nil)
	require.NoError(t, err)

	w, ok := AsWatcher(Instrument(fs, &countingRecorder{ops: map[string]int{}}))
	assert.True(t, ok)
	assert.Same(t, fs, w)

	_, ok = AsWatcher(NewMemoryStore())
	assert.False(t, ok)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		cfg     config.StorageConfig
		want    any
		wantErr bool
	}{
		{name: "memory", cfg: config.StorageConfig{Backend: "memory"}, want: &MemoryStore{}},
		{name: "file", cfg: config.StorageConfig{Backend: "file", Path: filepath.Join(dir, "a.json")}, want: &FileStore{}},
		{name: "sqlite", cfg: config.StorageConfig{Backend: "sqlite", Path: filepath.Join(dir, "a.db")}, want: &SQLiteStore{}},
		{name: "unknown", cfg: config.StorageConfig{Backend: "etcd"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Open(tt.cfg, errors.NewNopLogger())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer func() { _ = s.Close() }()
			assert.IsType(t, tt.want, s)
		})
	}
}
