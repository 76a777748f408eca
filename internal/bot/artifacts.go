// Package bot is the Telegram transport: it reduces updates to events,
// routes them, runs the pipelines and sends the composed replies back.
package bot

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Artifacts retains downloaded media on disk between a pipeline run and the
// follow-up button press that references it. Entries expire after a TTL so
// an abandoned conversation does not pin scratch files forever.
type Artifacts struct {
	mu    sync.Mutex
	items map[string]artifact

	ttl time.Duration
	now func() time.Time
}

type artifact struct {
	path    string
	created time.Time
}

func NewArtifacts(ttl time.Duration) *Artifacts {
	return &Artifacts{
		items: make(map[string]artifact),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Create allocates a new on-disk artifact and returns its id and path. The
// caller writes the media to the path; Remove or Sweep deletes it.
func (a *Artifacts) Create(pattern string) (string, string, error) {
	f, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", "", fmt.Errorf("create artifact file: %w", err)
	}
	path := f.Name()
	f.Close()

	id := uuid.NewString()
	a.mu.Lock()
	a.items[id] = artifact{path: path, created: a.now()}
	a.mu.Unlock()
	return id, path, nil
}

// Path resolves an artifact id. A false return means the id is unknown or
// already expired, which the caller reports as "expired" to the user.
func (a *Artifacts) Path(id string) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	item, ok := a.items[id]
	if !ok {
		return "", false
	}
	return item.path, true
}

// Remove drops the artifact and its file.
func (a *Artifacts) Remove(id string) {
	a.mu.Lock()
	item, ok := a.items[id]
	delete(a.items, id)
	a.mu.Unlock()
	if ok {
		removeFile(item.path)
	}
}

// Sweep deletes artifacts older than the TTL and returns how many went.
func (a *Artifacts) Sweep() int {
	cutoff := a.now().Add(-a.ttl)

	a.mu.Lock()
	var expired []artifact
	for id, item := range a.items {
		if item.created.Before(cutoff) {
			expired = append(expired, item)
			delete(a.items, id)
		}
	}
	a.mu.Unlock()

	for _, item := range expired {
		removeFile(item.path)
	}
	return len(expired)
}

func (a *Artifacts) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.items)
}

func removeFile(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to remove artifact file", "path", path, "err", err)
	}
}
