// Package feed ingests new posts from Reddit's public JSON listings. It
// polls the "new" listing of each configured subreddit and drops posts the
// store has already seen, so restarts never re-process old posts.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"contrabot/internal/domain"
	"contrabot/internal/store"
	"contrabot/internal/util"
)

const (
	defaultBaseURL   = "https://www.reddit.com"
	defaultUserAgent = "contrabot/1.0"

	// Reddit's unauthenticated API allows well under this; the limiter
	// mainly paces multi-subreddit polls.
	requestsPerMinute = 60
)

// RedditSource polls subreddits for new posts.
type RedditSource struct {
	subreddits   []string
	postsPerPoll int
	posts        store.PostStore

	baseURL   string
	userAgent string
	client    *http.Client
	limiter   *util.RateLimiter
	log       *slog.Logger
}

// NewRedditSource polls the given subreddits, fetching up to postsPerPoll
// posts from each per cycle.
func NewRedditSource(subreddits []string, postsPerPoll int, posts store.PostStore) *RedditSource {
	return &RedditSource{
		subreddits:   subreddits,
		postsPerPoll: postsPerPoll,
		posts:        posts,
		baseURL:      defaultBaseURL,
		userAgent:    defaultUserAgent,
		client:       &http.Client{Timeout: 30 * time.Second},
		limiter:      util.NewRateLimiter(requestsPerMinute, 2),
		log:          slog.Default().With("component", "feed"),
	}
}

// listing mirrors the slice of Reddit's listing JSON we consume.
type listing struct {
	Data struct {
		Children []struct {
			Data struct {
				ID          string  `json:"id"`
				Subreddit   string  `json:"subreddit"`
				Title       string  `json:"title"`
				SelfText    string  `json:"selftext"`
				URL         string  `json:"url"`
				Author      string  `json:"author"`
				CreatedUTC  float64 `json:"created_utc"`
				Score       int     `json:"score"`
				TotalAwards int     `json:"total_awards_received"`
				IsSelf      bool    `json:"is_self"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// FetchNewPosts returns unseen posts across all configured subreddits. A
// failure on one subreddit is logged and does not abort the others.
func (s *RedditSource) FetchNewPosts(ctx context.Context) []domain.Post {
	var results []domain.Post
	for _, sub := range s.subreddits {
		if err := s.limiter.Wait(ctx); err != nil {
			return results
		}
		posts, err := s.fetchSubreddit(ctx, sub)
		if err != nil {
			s.log.Warn("fetching subreddit failed", "subreddit", sub, "err", err)
			continue
		}
		s.log.Info("polled subreddit", "subreddit", sub, "new_posts", len(posts))
		results = append(results, posts...)
	}
	return results
}

func (s *RedditSource) fetchSubreddit(ctx context.Context, sub string) ([]domain.Post, error) {
	url := fmt.Sprintf("%s/r/%s/new.json?limit=%d", s.baseURL, sub, s.postsPerPoll)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("listing r/%s: status %d", sub, resp.StatusCode)
	}

	var l listing
	if err := json.NewDecoder(resp.Body).Decode(&l); err != nil {
		return nil, fmt.Errorf("decoding r/%s listing: %w", sub, err)
	}

	var posts []domain.Post
	for _, child := range l.Data.Children {
		d := child.Data
		seen, err := s.posts.IsPostProcessed(ctx, d.ID)
		if err != nil {
			return posts, err
		}
		if seen {
			continue
		}

		body := strings.TrimSpace(d.SelfText)
		if body == "[removed]" || body == "[deleted]" {
			body = ""
		}
		author := d.Author
		if author == "" {
			author = "[deleted]"
		}

		posts = append(posts, domain.Post{
			ID:         d.ID,
			Subreddit:  sub,
			Title:      d.Title,
			Body:       body,
			URL:        d.URL,
			Author:     author,
			CreatedUTC: d.CreatedUTC,
			Upvotes:    d.Score,
			Awards:     d.TotalAwards,
			IsSelf:     d.IsSelf,
			// The listing does not expose author karma.
			KarmaKnown: false,
		})
	}
	return posts, nil
}
