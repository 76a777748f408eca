package session

import (
	"sync"
	"testing"
	"time"
)

func TestUpdateCreatesOnFirstSeen(t *testing.T) {
	store := NewStore("pt")

	store.Update(42, func(s *Session) {
		if s.Mode != ModeIdle {
			t.Errorf("new session mode = %v, want idle", s.Mode)
		}
		if s.SelectedLanguage != "pt" {
			t.Errorf("new session language = %q, want pt", s.SelectedLanguage)
		}
		s.Mode = ModeAwaitingAudio
	})

	got := store.Snapshot(42)
	if got.Mode != ModeAwaitingAudio {
		t.Errorf("mode after update = %v, want awaiting_audio", got.Mode)
	}
	if store.Len() != 1 {
		t.Errorf("store len = %d, want 1", store.Len())
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	store := NewStore("pt")
	snap := store.Snapshot(1)
	snap.Mode = ModeAwaitingImage

	if store.Snapshot(1).Mode != ModeIdle {
		t.Error("mutating a snapshot leaked into the store")
	}
}

func TestConcurrentUpdatesSameChat(t *testing.T) {
	store := NewStore("pt")
	const n = 100

	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.Update(7, func(s *Session) {
				counter++
			})
		}()
	}
	wg.Wait()

	if counter != n {
		t.Errorf("counter = %d, want %d; per-key mutation is not exclusive", counter, n)
	}
}

func TestEvictIdle(t *testing.T) {
	store := NewStore("pt")
	current := time.Unix(1000, 0)
	store.now = func() time.Time { return current }

	store.Update(1, func(s *Session) {})
	store.Update(2, func(s *Session) {})

	current = current.Add(2 * time.Hour)
	store.Update(2, func(s *Session) {}) // keep chat 2 fresh

	if got := store.EvictIdle(time.Hour); got != 1 {
		t.Fatalf("evicted = %d, want 1", got)
	}
	if store.Len() != 1 {
		t.Errorf("store len after eviction = %d, want 1", store.Len())
	}
}

func TestModeStrings(t *testing.T) {
	cases := map[Mode]string{
		ModeIdle:          "idle",
		ModeAwaitingImage: "awaiting_image",
		ModeAwaitingAudio: "awaiting_audio",
		ModeAwaitingText:  "awaiting_text",
	}
	for mode, want := range cases {
		if got := mode.String(); got != want {
			t.Errorf("Mode(%d).String() = %q, want %q", mode, got, want)
		}
	}
}
