package retrieval

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/clinicrag/internal/domain/collection"
)

type stubSource struct {
	load      func() (map[string]collection.Collection, error)
	calls     atomic.Int32
	delay     time.Duration
	started   chan struct{}
	cancelled atomic.Bool
}

func (s *stubSource) Load(ctx context.Context) (map[string]collection.Collection, error) {
	s.calls.Add(1)
	if s.started != nil {
		s.started <- struct{}{}
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if ctx.Err() != nil {
		s.cancelled.Store(true)
		return nil, ctx.Err()
	}
	return s.load()
}

func TestRefresher_RebuildsFromSource(t *testing.T) {
	e, err := NewEngine(context.Background(), clinicCategories, clinicCollections(t), newVocabEmbedder(), zap.NewNop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	fresh := clinicCollections(t)
	fresh["social_media"] = namesCollection(t, "social_media", "Instagram clinic page")
	r := NewRefresher(e, &stubSource{load: func() (map[string]collection.Collection, error) { return fresh, nil }})

	if err := r.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	for _, st := range e.Status() {
		if st.Category == "social_media" && (st.Empty || st.Size != 1) {
			t.Errorf("social_media status = %+v, want one record", st)
		}
	}
}

func TestRefresher_SourceError(t *testing.T) {
	e, err := NewEngine(context.Background(), clinicCategories, clinicCollections(t), newVocabEmbedder(), zap.NewNop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	loadErr := errors.New("database is locked")
	r := NewRefresher(e, &stubSource{load: func() (map[string]collection.Collection, error) { return nil, loadErr }})

	if err := r.Refresh(context.Background()); !errors.Is(err, loadErr) {
		t.Fatalf("expected load error, got %v", err)
	}
	set, err := e.Retrieve(context.Background(), "cleaning", 1)
	if err != nil {
		t.Fatalf("Retrieve after failed refresh: %v", err)
	}
	if set.Total() == 0 {
		t.Error("engine lost its index after a failed refresh")
	}
}

func TestRefresher_CollapsesConcurrentCalls(t *testing.T) {
	e, err := NewEngine(context.Background(), clinicCategories, clinicCollections(t), newVocabEmbedder(), zap.NewNop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	cols := clinicCollections(t)
	src := &stubSource{delay: 50 * time.Millisecond, load: func() (map[string]collection.Collection, error) { return cols, nil }}
	r := NewRefresher(e, src)

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.Refresh(context.Background()); err != nil {
				t.Errorf("Refresh: %v", err)
			}
		}()
	}
	wg.Wait()

	if n := src.calls.Load(); n >= 4 {
		t.Errorf("source loaded %d times, want concurrent refreshes collapsed", n)
	}
}

func TestRefresher_LeaderCancelDoesNotFailWaiters(t *testing.T) {
	e, err := NewEngine(context.Background(), clinicCategories, clinicCollections(t), newVocabEmbedder(), zap.NewNop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	cols := clinicCollections(t)
	src := &stubSource{
		delay:   100 * time.Millisecond,
		started: make(chan struct{}, 1),
		load:    func() (map[string]collection.Collection, error) { return cols, nil },
	}
	r := NewRefresher(e, src)

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() { leaderErr <- r.Refresh(leaderCtx) }()
	<-src.started

	waiterErr := make(chan error, 1)
	go func() { waiterErr <- r.Refresh(context.Background()) }()
	cancel()

	if err := <-leaderErr; !errors.Is(err, context.Canceled) {
		t.Errorf("leader: expected context.Canceled, got %v", err)
	}
	if err := <-waiterErr; err != nil {
		t.Errorf("waiter: %v", err)
	}
	if src.cancelled.Load() {
		t.Error("shared refresh observed the leader's cancellation")
	}
	if n := src.calls.Load(); n != 1 {
		t.Errorf("source loaded %d times, want 1", n)
	}
}
