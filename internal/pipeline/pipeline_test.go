package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"contrabot/internal/domain"
	"contrabot/internal/filter"
	"contrabot/internal/signal"
	"contrabot/internal/store"
)

type fakeSource struct {
	posts []domain.Post
}

func (f *fakeSource) FetchNewPosts(context.Context) []domain.Post { return f.posts }

type fakeExtractor struct {
	signals map[string]*domain.TradeSignal // by post id
	err     error
	calls   int
}

func (f *fakeExtractor) Extract(_ context.Context, post *domain.Post) (*domain.TradeSignal, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	sig := f.signals[post.ID]
	if sig != nil {
		cp := *sig
		cp.PostID = post.ID
		return &cp, nil
	}
	return nil, nil
}

type fakeAdmitter struct {
	admitted []*domain.TradeSignal
}

func (f *fakeAdmitter) MaybeOpenPosition(_ context.Context, sig *domain.TradeSignal) bool {
	f.admitted = append(f.admitted, sig)
	return true
}

func goodPost(id string) domain.Post {
	return domain.Post{
		ID: id, Subreddit: "wallstreetbets", IsSelf: true,
		Title: "$TSLA is done",
		Body:  "Full thesis on why this drops hard over the next two quarters.",
	}
}

func newTestRunner(t *testing.T, d Deps) (*Runner, *store.SQLiteStore) {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	if d.Filter == nil {
		d.Filter = filter.New(100)
	}
	d.Gate = signal.Gate{MinConfidence: 0.7, Markets: signal.EnabledMarkets([]string{"stocks"})}
	d.Posts = st
	d.Signals = st
	return NewRunner(d), st
}

func TestRunOnceAdmitsSignal(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{posts: []domain.Post{goodPost("p1")}}
	ex := &fakeExtractor{signals: map[string]*domain.TradeSignal{
		"p1": {Ticker: "TSLA", AssetClass: domain.AssetStock, Direction: domain.DirectionLong, RawDirection: domain.DirectionLong, Confidence: 0.9},
	}}
	adm := &fakeAdmitter{}

	r, st := newTestRunner(t, Deps{Source: src, Extractor: ex, Invert: true, Admitter: adm})
	r.RunOnce(ctx)

	if len(adm.admitted) != 1 {
		t.Fatalf("admitted %d signals, want 1", len(adm.admitted))
	}
	sig := adm.admitted[0]
	if sig.ID == 0 {
		t.Error("signal reached admission without a persisted id")
	}
	// Contrarian mode inverts before persisting.
	if sig.Direction != domain.DirectionShort || sig.RawDirection != domain.DirectionLong {
		t.Errorf("direction = %v raw = %v", sig.Direction, sig.RawDirection)
	}

	seen, err := st.IsPostProcessed(ctx, "p1")
	if err != nil || !seen {
		t.Errorf("post not recorded: seen=%v err=%v", seen, err)
	}
}

func TestRunOnceFilteredPostSkipsExtraction(t *testing.T) {
	ctx := context.Background()
	post := goodPost("p1")
	post.Body = "lol"
	post.Title = "market bad"

	ex := &fakeExtractor{}
	r, st := newTestRunner(t, Deps{Source: &fakeSource{posts: []domain.Post{post}}, Extractor: ex, Admitter: &fakeAdmitter{}})
	r.RunOnce(ctx)

	if ex.calls != 0 {
		t.Error("filtered post reached the extractor")
	}
	// The rejection is still recorded.
	seen, _ := st.IsPostProcessed(ctx, "p1")
	if !seen {
		t.Error("rejected post not recorded")
	}
}

func TestRunOnceGateDiscardsLowConfidence(t *testing.T) {
	ctx := context.Background()
	ex := &fakeExtractor{signals: map[string]*domain.TradeSignal{
		"p1": {Ticker: "TSLA", AssetClass: domain.AssetStock, Direction: domain.DirectionLong, Confidence: 0.4},
	}}
	adm := &fakeAdmitter{}

	r, _ := newTestRunner(t, Deps{Source: &fakeSource{posts: []domain.Post{goodPost("p1")}}, Extractor: ex, Admitter: adm})
	r.RunOnce(ctx)

	if len(adm.admitted) != 0 {
		t.Error("low-confidence signal reached admission")
	}
}

func TestRunOnceExtractionFailureDoesNotAbortBatch(t *testing.T) {
	ctx := context.Background()
	ex := &fakeExtractor{err: errors.New("llm down")}
	adm := &fakeAdmitter{}

	r, st := newTestRunner(t, Deps{
		Source:    &fakeSource{posts: []domain.Post{goodPost("p1"), goodPost("p2")}},
		Extractor: ex,
		Admitter:  adm,
	})
	r.RunOnce(ctx)

	if ex.calls != 2 {
		t.Errorf("extractor called %d times, want 2 (batch continues past failures)", ex.calls)
	}
	for _, id := range []string{"p1", "p2"} {
		if seen, _ := st.IsPostProcessed(ctx, id); !seen {
			t.Errorf("post %s not recorded", id)
		}
	}
}

func TestRunOnceNoInvertWhenDisabled(t *testing.T) {
	ctx := context.Background()
	ex := &fakeExtractor{signals: map[string]*domain.TradeSignal{
		"p1": {Ticker: "TSLA", AssetClass: domain.AssetStock, Direction: domain.DirectionLong, RawDirection: domain.DirectionLong, Confidence: 0.9},
	}}
	adm := &fakeAdmitter{}

	r, _ := newTestRunner(t, Deps{Source: &fakeSource{posts: []domain.Post{goodPost("p1")}}, Extractor: ex, Invert: false, Admitter: adm})
	r.RunOnce(ctx)

	if len(adm.admitted) != 1 {
		t.Fatalf("admitted %d signals, want 1", len(adm.admitted))
	}
	if adm.admitted[0].Direction != domain.DirectionLong {
		t.Errorf("direction = %v, want long (with mode untouched)", adm.admitted[0].Direction)
	}
}
