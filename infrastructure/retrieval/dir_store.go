package retrieval

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ahrav/go-desirability/internal/ports"
)

var (
	_ ports.PreferenceStore = (*DirStore)(nil)
	_ ports.PreferenceStore = (*MemoryStore)(nil)
)

// DirStore reads participant documents named <hotkey>.json from a directory,
// typically a checkout of the preferences repository at the committed
// revision.
type DirStore struct {
	root string
}

// NewDirStore creates a DirStore rooted at dir.
func NewDirStore(dir string) *DirStore {
	return &DirStore{root: filepath.Clean(dir)}
}

// Fetch reads the document of hotkey. A missing file means the participant
// did not submit.
func (s *DirStore) Fetch(ctx context.Context, hotkey string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if hotkey == "" || strings.ContainsAny(hotkey, `/\`) || hotkey == "." || hotkey == ".." {
		return nil, ports.NewRetrievalError(hotkey, "Fetch", fmt.Errorf("invalid hotkey %q", hotkey))
	}

	data, err := os.ReadFile(filepath.Join(s.root, hotkey+".json"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ports.ErrNoSubmission, hotkey)
	}
	if err != nil {
		return nil, ports.NewRetrievalError(hotkey, "Fetch", err)
	}
	return data, nil
}

// MemoryStore serves documents from memory. It is safe for concurrent use.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// NewMemoryStore creates a MemoryStore holding a copy of docs.
func NewMemoryStore(docs map[string][]byte) *MemoryStore {
	s := &MemoryStore{docs: make(map[string][]byte, len(docs))}
	for hotkey, data := range docs {
		s.Put(hotkey, data)
	}
	return s
}

// Put stores a copy of data for hotkey.
func (s *MemoryStore) Put(hotkey string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[hotkey] = append([]byte(nil), data...)
}

// Fetch returns a copy of the document of hotkey.
func (s *MemoryStore) Fetch(ctx context.Context, hotkey string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.docs[hotkey]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ports.ErrNoSubmission, hotkey)
	}
	return append([]byte(nil), data...), nil
}
