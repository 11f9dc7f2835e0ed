package clientstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileStore implements Store on a single JSON profile file, the equivalent of
// one browser profile's site storage. Every operation re-reads the file so
// several processes can share a profile; concurrent writers race and the
// last write wins.
type FileStore struct {
	path   string
	mu     sync.Mutex
	now    func() time.Time
	closed bool
}

// profile is the on-disk layout of a FileStore.
type profile struct {
	Entries map[string]entry `json:"entries"`
}

// OpenFileStore opens (creating parent directories as needed) the profile at path.
// The file itself is created on first write.
func OpenFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("clientstore: failed to create profile directory: %w", err)
	}

	fs := &FileStore{path: path, now: time.Now}
	// Surface a corrupt profile at open time rather than on first read.
	if _, err := fs.load(); err != nil {
		return nil, err
	}
	return fs, nil
}

// Path returns the profile file path.
func (f *FileStore) Path() string {
	return f.path
}

// Get returns the unexpired value for key.
func (f *FileStore) Get(key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return "", false, ErrClosed
	}

	p, err := f.load()
	if err != nil {
		return "", false, err
	}

	e, ok := p.Entries[key]
	if !ok || e.expired(f.now()) {
		return "", false, nil
	}
	return e.Value, true, nil
}

// Set stores value under key and rewrites the profile, pruning expired entries.
func (f *FileStore) Set(key, value string, expiresAt time.Time) error {
	return f.update(func(p *profile) {
		p.Entries[key] = entry{Value: value, ExpiresAt: expiresAt}
	})
}

// Delete removes key and rewrites the profile.
func (f *FileStore) Delete(key string) error {
	return f.update(func(p *profile) {
		delete(p.Entries, key)
	})
}

// Close marks the store closed. Later operations return ErrClosed.
func (f *FileStore) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *FileStore) update(mutate func(*profile)) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrClosed
	}

	p, err := f.load()
	if err != nil {
		return err
	}

	mutate(p)

	now := f.now()
	for k, e := range p.Entries {
		if e.expired(now) {
			delete(p.Entries, k)
		}
	}

	return f.write(p)
}

// load reads the profile; a missing file is an empty profile.
func (f *FileStore) load() (*profile, error) {
	p := &profile{Entries: make(map[string]entry)}

	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return p, nil
		}
		return nil, fmt.Errorf("clientstore: failed to read profile: %w", err)
	}
	if len(data) == 0 {
		return p, nil
	}

	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("clientstore: corrupt profile %s: %w", f.path, err)
	}
	if p.Entries == nil {
		p.Entries = make(map[string]entry)
	}
	return p, nil
}

// write replaces the profile atomically via a temp file and rename.
func (f *FileStore) write(p *profile) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("clientstore: failed to encode profile: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".profile-*")
	if err != nil {
		return fmt.Errorf("clientstore: failed to create temp profile: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("clientstore: failed to write profile: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("clientstore: failed to close profile: %w", err)
	}

	if err := os.Rename(tmpPath, f.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("clientstore: failed to replace profile: %w", err)
	}
	return nil
}
