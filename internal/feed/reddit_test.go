package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"contrabot/internal/store"
)

func listingJSON(ids ...string) string {
	children := ""
	for i, id := range ids {
		if i > 0 {
			children += ","
		}
		children += fmt.Sprintf(`{"data":{"id":%q,"subreddit":"wallstreetbets","title":"post %s",
			"selftext":"some body text","url":"https://reddit.com/%s","author":"u1",
			"created_utc":1700000000,"score":42,"total_awards_received":1,"is_self":true}}`, id, id, id)
	}
	return `{"data":{"children":[` + children + `]}}`
}

func newTestSource(t *testing.T, handler http.HandlerFunc) (*RedditSource, *store.SQLiteStore) {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	src := NewRedditSource([]string{"wallstreetbets"}, 25, st)
	src.baseURL = srv.URL
	return src, st
}

func TestFetchNewPosts(t *testing.T) {
	var gotPath, gotAgent string
	src, _ := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAgent = r.Header.Get("User-Agent")
		fmt.Fprint(w, listingJSON("abc", "def"))
	})

	posts := src.FetchNewPosts(context.Background())
	if len(posts) != 2 {
		t.Fatalf("got %d posts, want 2", len(posts))
	}
	if gotPath != "/r/wallstreetbets/new.json" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAgent == "" {
		t.Error("request sent without a User-Agent")
	}
	if posts[0].ID != "abc" || posts[0].Upvotes != 42 || !posts[0].IsSelf {
		t.Errorf("post = %+v", posts[0])
	}
	if posts[0].KarmaKnown {
		t.Error("listing posts should have unknown karma")
	}
}

func TestFetchSkipsProcessedPosts(t *testing.T) {
	src, st := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, listingJSON("abc", "def"))
	})

	ctx := context.Background()
	posts := src.FetchNewPosts(ctx)
	if len(posts) != 2 {
		t.Fatalf("first poll: got %d posts, want 2", len(posts))
	}
	// Record one of them, as the pipeline does after processing.
	if err := st.SavePost(ctx, &posts[0], true, "all checks passed"); err != nil {
		t.Fatalf("SavePost: %v", err)
	}

	posts = src.FetchNewPosts(ctx)
	if len(posts) != 1 || posts[0].ID != "def" {
		t.Fatalf("second poll: got %+v, want only def", posts)
	}
}

func TestFetchServerErrorReturnsNothing(t *testing.T) {
	src, _ := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	if posts := src.FetchNewPosts(context.Background()); len(posts) != 0 {
		t.Errorf("got %d posts from failing listing, want 0", len(posts))
	}
}

func TestFetchRemovedBodyCleared(t *testing.T) {
	src, _ := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"children":[{"data":{"id":"x1","title":"t","selftext":"[removed]","author":"","is_self":true}}]}}`)
	})

	posts := src.FetchNewPosts(context.Background())
	if len(posts) != 1 {
		t.Fatalf("got %d posts, want 1", len(posts))
	}
	if posts[0].Body != "" {
		t.Errorf("body = %q, want empty for removed post", posts[0].Body)
	}
	if posts[0].Author != "[deleted]" {
		t.Errorf("author = %q, want [deleted]", posts[0].Author)
	}
}
