package retrieval

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/clinicrag/internal/domain"
	"github.com/kailas-cloud/clinicrag/internal/domain/collection"
	"github.com/kailas-cloud/clinicrag/internal/domain/search/result"
)

var services = []string{"Teeth Cleaning", "Root Canal", "Teeth Whitening"}

func TestRetriever_CleaningQuery(t *testing.T) {
	r := builtRetriever(t, newVocabEmbedder(), "services", services...)

	res, err := r.Query(context.Background(), "How much does a cleaning cost?", 2)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if res.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", res.Len())
	}
	if got := res.Texts()[0]; got != "Teeth Cleaning" {
		t.Errorf("first match = %q, want %q", got, "Teeth Cleaning")
	}
}

func TestRetriever_LengthIsMinOfKAndSize(t *testing.T) {
	r := builtRetriever(t, newVocabEmbedder(), "services", services...)

	for _, k := range []int{1, 2, 3, 4, 50} {
		t.Run(fmt.Sprintf("k=%d", k), func(t *testing.T) {
			res, err := r.Query(context.Background(), "teeth", k)
			if err != nil {
				t.Fatalf("Query: %v", err)
			}
			if want := min(k, len(services)); res.Len() != want {
				t.Errorf("Len() = %d, want %d", res.Len(), want)
			}
		})
	}
}

func TestRetriever_NonPositiveK(t *testing.T) {
	embed := newVocabEmbedder()
	r := builtRetriever(t, embed, "services", services...)
	before := embed.calls.Load()

	res, err := r.Query(context.Background(), "teeth", 0)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if res.Len() != 0 {
		t.Errorf("Len() = %d, want 0", res.Len())
	}
	if embed.calls.Load() != before {
		t.Error("query must not be embedded for k <= 0")
	}
}

func TestRetriever_ScoresSortedAndBounded(t *testing.T) {
	r := builtRetriever(t, newVocabEmbedder(), "branches",
		"Main Branch Amman", "Irbid Branch", "Zarqa Clinic", "Amman West Branch", "Aqaba")

	res, err := r.Query(context.Background(), "branch in Amman", 5)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	ms := res.Matches()
	for i := range ms {
		if s := ms[i].Score(); s < -1 || s > 1 {
			t.Errorf("score[%d] = %v outside [-1, 1]", i, s)
		}
		if i > 0 && ms[i].Score() > ms[i-1].Score() {
			t.Errorf("score[%d] = %v > score[%d] = %v", i, ms[i].Score(), i-1, ms[i-1].Score())
		}
	}
}

func TestRetriever_Deterministic(t *testing.T) {
	r := builtRetriever(t, newVocabEmbedder(), "services", services...)

	first, err := r.Query(context.Background(), "root canal teeth", 3)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	second, err := r.Query(context.Background(), "root canal teeth", 3)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	assertSameMatches(t, first, second)
}

func TestRetriever_TiesKeepRecordOrder(t *testing.T) {
	r := builtRetriever(t, newVocabEmbedder(), "services", services...)

	// Neither word is in any record: every score is 0.
	res, err := r.Query(context.Background(), "opening hours", 3)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	for i, m := range res.Matches() {
		if m.Position() != i {
			t.Errorf("match[%d].Position() = %d, want %d", i, m.Position(), i)
		}
	}
}

func TestRetriever_IdenticalTextScoresOne(t *testing.T) {
	r := builtRetriever(t, newVocabEmbedder(), "services", services...)

	res, err := r.Query(context.Background(), "Teeth Whitening", 3)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	top := res.Matches()[0]
	if top.Text() != "Teeth Whitening" {
		t.Errorf("top = %q, want %q", top.Text(), "Teeth Whitening")
	}
	if math.Abs(top.Score()-1) > 1e-5 {
		t.Errorf("score = %v, want ~1", top.Score())
	}
}

func TestRetriever_CombinesConfiguredFields(t *testing.T) {
	c, err := collection.New("branches", []string{"branch_name", "city", "phone"}, []collection.Record{
		{"branch_name": "Main", "city": "Amman", "phone": "0790000000"},
		{"branch_name": "North", "city": "Irbid", "phone": "0791111111"},
	})
	if err != nil {
		t.Fatalf("collection.New: %v", err)
	}
	r := NewRetriever("branches", []string{"branch_name", "city"}, newVocabEmbedder(), zap.NewNop())
	if err = r.Build(context.Background(), c); err != nil {
		t.Fatalf("Build: %v", err)
	}

	res, err := r.Query(context.Background(), "irbid", 1)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if got := res.Texts()[0]; got != "North Irbid" {
		t.Errorf("text = %q, want %q", got, "North Irbid")
	}
}

func TestRetriever_QueryBeforeBuild(t *testing.T) {
	r := NewRetriever("services", []string{"name"}, newVocabEmbedder(), zap.NewNop())

	_, err := r.Query(context.Background(), "teeth", 3)
	if !errors.Is(err, domain.ErrNotBuilt) {
		t.Fatalf("expected ErrNotBuilt, got %v", err)
	}
	if r.Status().Ready {
		t.Error("unbuilt retriever must not report ready")
	}
}

func TestRetriever_EmptyCollection(t *testing.T) {
	r := NewRetriever("social_media", []string{"name"}, newVocabEmbedder(), zap.NewNop())

	err := r.Build(context.Background(), namesCollection(t, "social_media"))
	if !errors.Is(err, domain.ErrEmptyCollection) {
		t.Fatalf("Build: expected ErrEmptyCollection, got %v", err)
	}
	if _, err = r.Query(context.Background(), "instagram", 3); !errors.Is(err, domain.ErrEmptyCollection) {
		t.Errorf("Query: expected ErrEmptyCollection, got %v", err)
	}
	if st := r.Status(); !st.Ready || !st.Empty {
		t.Errorf("Status() = %+v, want ready and empty", st)
	}
}

func TestRetriever_SchemaError(t *testing.T) {
	r := NewRetriever("services", []string{"service_name"}, newVocabEmbedder(), zap.NewNop())

	err := r.Build(context.Background(), namesCollection(t, "services", services...))
	var se *collection.SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("expected *collection.SchemaError, got %v", err)
	}
	if se.Field != "service_name" {
		t.Errorf("Field = %q, want %q", se.Field, "service_name")
	}
}

func TestRetriever_RebuildReplacesIndex(t *testing.T) {
	embed := newVocabEmbedder()
	r := builtRetriever(t, embed, "services", services...)

	if err := r.Build(context.Background(), namesCollection(t, "services", "Braces", "Implants")); err != nil {
		t.Fatalf("Build: %v", err)
	}
	res, err := r.Query(context.Background(), "teeth", 10)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if res.Len() != 2 {
		t.Errorf("Len() = %d, want 2 after rebuild", res.Len())
	}
	if st := r.Status(); st.Size != 2 {
		t.Errorf("Status().Size = %d, want 2", st.Size)
	}
}

func TestRetriever_FailedBuildKeepsPreviousIndex(t *testing.T) {
	embed := newVocabEmbedder()
	r := builtRetriever(t, embed, "services", services...)

	embed.setErr(fmt.Errorf("provider down: %w", domain.ErrEncoding))
	err := r.Build(context.Background(), namesCollection(t, "services", "Braces"))
	if !errors.Is(err, domain.ErrEncoding) {
		t.Fatalf("expected ErrEncoding, got %v", err)
	}
	embed.setErr(nil)

	res, err := r.Query(context.Background(), "teeth", 10)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if res.Len() != len(services) {
		t.Errorf("Len() = %d, want previous index size %d", res.Len(), len(services))
	}
}

func TestRetriever_EmbeddingCountMismatch(t *testing.T) {
	r := NewRetriever("services", []string{"name"}, &stubEmbedder{vectors: [][]float32{{1, 0}}}, zap.NewNop())

	err := r.Build(context.Background(), namesCollection(t, "services", services...))
	if !errors.Is(err, domain.ErrEncoding) {
		t.Fatalf("expected ErrEncoding, got %v", err)
	}
}

func TestRetriever_MixedDimensions(t *testing.T) {
	r := NewRetriever("services", []string{"name"},
		&stubEmbedder{vectors: [][]float32{{1, 0}, {0, 1, 0}}}, zap.NewNop())

	err := r.Build(context.Background(), namesCollection(t, "services", "a", "b"))
	if !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Fatalf("expected ErrVectorDimMismatch, got %v", err)
	}
}

func TestRetriever_QueryEncodingError(t *testing.T) {
	embed := newVocabEmbedder()
	r := builtRetriever(t, embed, "services", services...)
	embed.setErr(fmt.Errorf("timeout: %w", domain.ErrEncoding))

	if _, err := r.Query(context.Background(), "teeth", 2); !errors.Is(err, domain.ErrEncoding) {
		t.Errorf("expected ErrEncoding, got %v", err)
	}
}

func TestRetriever_ConcurrentQueriesDuringRebuild(t *testing.T) {
	embed := newVocabEmbedder()
	r := builtRetriever(t, embed, "services", services...)

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 20 {
				res, err := r.Query(context.Background(), "teeth cleaning", 3)
				if err != nil {
					errs <- err
					return
				}
				if n := res.Len(); n != 2 && n != 3 {
					errs <- fmt.Errorf("partial index observed: %d matches", n)
					return
				}
			}
		}()
	}
	for i := range 10 {
		names := services
		if i%2 == 0 {
			names = []string{"Teeth Cleaning", "Braces"}
		}
		if err := r.Build(context.Background(), namesCollection(t, "services", names...)); err != nil {
			t.Fatalf("Build: %v", err)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func assertSameMatches(t *testing.T, a, b result.Result) {
	t.Helper()
	am, bm := a.Matches(), b.Matches()
	if len(am) != len(bm) {
		t.Fatalf("len %d != %d", len(am), len(bm))
	}
	for i := range am {
		if am[i].Text() != bm[i].Text() || am[i].Score() != bm[i].Score() || am[i].Position() != bm[i].Position() {
			t.Errorf("match[%d] differs: (%q, %v, %d) vs (%q, %v, %d)", i,
				am[i].Text(), am[i].Score(), am[i].Position(),
				bm[i].Text(), bm[i].Score(), bm[i].Position())
		}
	}
}
