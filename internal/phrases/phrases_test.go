package phrases

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/internal/artifact"
	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/internal/corpus"
	apperrors "github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/pkg/errors"
)

// testCorpus makes (social, distancing) a phrase at minCount 4 and keeps
// (social, media) below the threshold.
func testCorpus() [][]string {
	var docs [][]string
	for i := 0; i < 20; i++ {
		docs = append(docs, []string{"social", "distancing"})
	}
	for i := 0; i < 5; i++ {
		docs = append(docs, []string{"social", "media"})
	}
	for i := 0; i < 300; i++ {
		docs = append(docs, []string{fmt.Sprintf("w%d", i), fmt.Sprintf("x%d", i)})
	}
	return docs
}

func TestLearn(t *testing.T) {
	m := Learn("2020-01", testCorpus(), 4, 10)
	if !m.Contains("social", "distancing") {
		t.Error("social distancing not learned")
	}
	if m.Contains("social", "media") {
		t.Error("social media learned below threshold")
	}
	if m.Contains("w1", "x1") {
		t.Error("pair below min count learned")
	}
	if m.Len() != 1 {
		t.Errorf("Len = %d, want 1", m.Len())
	}
}

func TestLearnIgnoresFoldedTokens(t *testing.T) {
	plain := testCorpus()
	folded := make([][]string, len(plain))
	for i, doc := range plain {
		folded[i] = Learn("2020-01", plain, 4, 10).Apply(doc)
	}
	a, _ := Learn("2020-01", plain, 4, 10).MarshalBinary()
	b, _ := Learn("2020-01", folded, 4, 10).MarshalBinary()
	if string(a) != string(b) {
		t.Errorf("folded corpus learned a different model:\n%s\n%s", a, b)
	}
}

func TestApply(t *testing.T) {
	m := Learn("2020-01", testCorpus(), 4, 10)
	tests := []struct {
		name   string
		tokens []string
		want   []string
	}{
		{
			name:   "appends phrase after originals",
			tokens: []string{"love", "social", "distancing", "social", "media"},
			want:   []string{"love", "social", "distancing", "social", "media", "social_distancing"},
		},
		{
			name:   "repeated phrase",
			tokens: []string{"social", "distancing", "social", "distancing"},
			want:   []string{"social", "distancing", "social", "distancing", "social_distancing", "social_distancing"},
		},
		{
			name:   "no phrase",
			tokens: []string{"distancing", "social"},
			want:   []string{"distancing", "social"},
		},
		{
			name:   "empty",
			tokens: nil,
			want:   []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.Apply(tt.tokens)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Apply(%v) = %v, want %v", tt.tokens, got, tt.want)
			}
		})
	}
}

func TestApplyOnce(t *testing.T) {
	m := Learn("2020-01", testCorpus(), 4, 10)
	doc := corpus.Document{ID: 1, Date: "2020-01", Tokens: []string{"social", "distancing"}}

	first, changed := m.ApplyOnce(doc)
	if !changed || !first.HasBigram {
		t.Fatalf("first ApplyOnce: changed=%v has_bigram=%v", changed, first.HasBigram)
	}
	want := []string{"social", "distancing", "social_distancing"}
	if !reflect.DeepEqual(first.Tokens, want) {
		t.Fatalf("tokens = %v, want %v", first.Tokens, want)
	}

	second, changed := m.ApplyOnce(first)
	if changed {
		t.Error("second ApplyOnce changed the document")
	}
	if !reflect.DeepEqual(second.Tokens, want) {
		t.Errorf("tokens after second ApplyOnce = %v, want %v", second.Tokens, want)
	}

	// A naive second Apply duplicates the phrase token.
	if got := m.Apply(first.Tokens); len(got) != len(want)+1 {
		t.Errorf("double Apply = %v", got)
	}
	// Detection itself is stable across applications.
	if !reflect.DeepEqual(m.Detect(first.Tokens), m.Detect(doc.Tokens)) {
		t.Error("detected phrases differ between passes")
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	m := Learn("2020-01", testCorpus(), 4, 10)
	data, err := m.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	var got Model
	if err := got.UnmarshalBinary(data); err != nil {
		t.Fatalf("UnmarshalBinary: %v", err)
	}
	if got.Date != m.Date || got.MinCount != m.MinCount || got.Threshold != m.Threshold {
		t.Errorf("header = %+v, want %+v", got, m)
	}
	if !reflect.DeepEqual(got.phrases, m.phrases) {
		t.Errorf("phrases = %v, want %v", got.phrases, m.phrases)
	}
}

type fakeSource struct {
	mu    sync.Mutex
	docs  [][]string
	calls int
	err   error
}

func (f *fakeSource) FetchAllTokens(_ context.Context, _ string, _ bool) ([][]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.docs, f.err
}

func TestCache(t *testing.T) {
	ctx := context.Background()
	store := artifact.NewFileStore(t.TempDir())
	src := &fakeSource{docs: testCorpus()}
	c := NewCache(store, src, 4, 10)

	if _, err := c.Load(ctx, "2020-01"); !errors.Is(err, apperrors.ErrArtifactMissing) {
		t.Fatalf("Load before compute: err = %v, want ErrArtifactMissing", err)
	}

	m, computed, err := c.Ensure(ctx, "2020-01")
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if !computed || !m.Contains("social", "distancing") {
		t.Errorf("Ensure computed=%v phrases=%d", computed, m.Len())
	}
	if ok, _ := store.Exists(ctx, "2020-01_bigram_model_4"); !ok {
		t.Error("artifact not stored under 2020-01_bigram_model_4")
	}

	_, computed, err = c.Ensure(ctx, "2020-01")
	if err != nil {
		t.Fatalf("second Ensure: %v", err)
	}
	if computed {
		t.Error("second Ensure recomputed the model")
	}
	if src.calls != 1 {
		t.Errorf("corpus read %d times, want 1", src.calls)
	}
}

func TestCacheComputeError(t *testing.T) {
	store := artifact.NewFileStore(t.TempDir())
	src := &fakeSource{err: apperrors.ErrStorageUnavailable}
	c := NewCache(store, src, 4, 10)
	if _, _, err := c.Ensure(context.Background(), "2020-01"); !errors.Is(err, apperrors.ErrStorageUnavailable) {
		t.Fatalf("Ensure err = %v, want ErrStorageUnavailable", err)
	}
	if ok, _ := store.Exists(context.Background(), c.Key("2020-01")); ok {
		t.Error("artifact written after failed compute")
	}
}
