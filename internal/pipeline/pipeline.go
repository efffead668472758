// Package pipeline drives one poll cycle: fetch new posts, screen them,
// extract signals, and hand admitted signals to the position manager.
// A failure on one post never aborts the rest of the batch.
package pipeline

import (
	"context"
	"log/slog"

	"contrabot/internal/domain"
	"contrabot/internal/filter"
	"contrabot/internal/signal"
	"contrabot/internal/store"
)

// Source supplies unseen posts for one cycle.
type Source interface {
	FetchNewPosts(ctx context.Context) []domain.Post
}

// Admitter decides whether a persisted signal becomes a position.
type Admitter interface {
	MaybeOpenPosition(ctx context.Context, sig *domain.TradeSignal) bool
}

// Deps collects the pipeline's collaborators.
type Deps struct {
	Source    Source
	Filter    *filter.PostFilter
	Extractor signal.Extractor
	Gate      signal.Gate
	Invert    bool // contrarian mode: flip extracted sentiment
	Posts     store.PostStore
	Signals   store.SignalStore
	Admitter  Admitter
}

// Runner executes poll cycles.
type Runner struct {
	d   Deps
	log *slog.Logger
}

// NewRunner wires a Runner from its dependencies.
func NewRunner(d Deps) *Runner {
	return &Runner{d: d, log: slog.Default().With("component", "pipeline")}
}

// RunOnce processes one batch of new posts.
func (r *Runner) RunOnce(ctx context.Context) {
	posts := r.d.Source.FetchNewPosts(ctx)
	for i := range posts {
		if ctx.Err() != nil {
			return
		}
		r.processPost(ctx, &posts[i])
	}
}

// processPost runs one post through the full chain. Every post is recorded
// with its filter outcome so reprocessing and audits have the full history.
func (r *Runner) processPost(ctx context.Context, post *domain.Post) {
	res := r.d.Filter.Check(post)
	if err := r.d.Posts.SavePost(ctx, post, res.Passed, res.Reason); err != nil {
		r.log.Error("recording post", "post_id", post.ID, "err", err)
		return
	}
	if !res.Passed {
		r.log.Debug("post filtered out", "post_id", post.ID, "reason", res.Reason)
		return
	}

	sig, err := r.d.Extractor.Extract(ctx, post)
	if err != nil {
		r.log.Error("signal extraction failed", "post_id", post.ID, "err", err)
		return
	}
	if sig == nil {
		r.log.Debug("no signal in post", "post_id", post.ID)
		return
	}

	if ok, reason := r.d.Gate.Admit(sig); !ok {
		r.log.Info("signal discarded", "post_id", post.ID, "ticker", sig.Ticker, "reason", reason)
		return
	}

	if r.d.Invert {
		sig = signal.Invert(sig)
	}

	// Persist before admission; every gated signal counts toward the
	// dedup window even when no position results.
	id, err := r.d.Signals.SaveSignal(ctx, sig)
	if err != nil {
		r.log.Error("saving signal", "post_id", post.ID, "err", err)
		return
	}
	sig.ID = id
	r.log.Info("signal recorded",
		"signal_id", id, "ticker", sig.Ticker, "direction", sig.Direction,
		"asset_class", sig.AssetClass, "confidence", sig.Confidence)

	if r.d.Admitter.MaybeOpenPosition(ctx, sig) {
		r.log.Info("position opened", "signal_id", id, "ticker", sig.Ticker)
	}
}
