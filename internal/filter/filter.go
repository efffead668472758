// Package filter implements the cheap pre-screening gate that runs before
// any LLM call. A post must pass every check to be forwarded to signal
// extraction; the first failing check decides the recorded reason.
package filter

import (
	"fmt"
	"regexp"
	"strings"

	"contrabot/internal/domain"
)

// Result is the outcome of running a post through the filter chain.
type Result struct {
	Passed bool
	Reason string
}

var sportsKeywords = []string{
	// leagues and events
	"nfl", "nba", "mlb", "nhl", "mls", "ufc", "ncaa",
	"premier league", "la liga", "bundesliga", "serie a", "ligue 1",
	"champions league", "europa league", "super bowl", "march madness",
	"world cup", "playoffs", "stanley cup", "nba finals",
	// betting terminology
	"parlay", "moneyline", "point spread", "over/under", "over under",
	"handicap", "teaser", "prop bet", "futures bet", "live bet",
	"draftkings", "fanduel", "pointsbet", "betmgm", "caesars sportsbook",
	"bet365", "barstool sportsbook", "wynn bet", "fanatics betting",
	"fantasy football", "fantasy basketball", "fantasy baseball",
	"daily fantasy", "dfs", "sports betting",
	// generic sports signals
	"quarterback", "touchdown", "home run", "slam dunk", "hat trick",
	"mvp award", "first round pick", "draft pick",
}

var cryptoNames = []string{
	"bitcoin", "btc", "ethereum", "eth", "solana", "sol", "dogecoin",
	"doge", "cardano", "ada", "ripple", "xrp", "avalanche", "avax",
	"polkadot", "dot", "chainlink", "link", "litecoin", "ltc",
	"uniswap", "uni", "polygon", "matic", "shiba", "shib", "pepe",
	"bnb", "binance", "tron", "trx", "near", "ftm", "fantom",
	"injective", "inj", "arbitrum", "arb", "optimism", "op",
}

// Bare all-caps words that look like tickers but are ordinary prose.
var tickerStopWords = map[string]struct{}{}

func init() {
	for _, w := range []string{
		"I", "A", "AN", "THE", "AND", "OR", "BUT", "FOR", "NOR", "SO", "YET",
		"AT", "BY", "IN", "OF", "ON", "TO", "UP", "AS", "IS", "IT", "BE",
		"DO", "GO", "IF", "NO", "MY", "HE", "ME", "WE", "US", "AM", "VS",
		"TV", "PC", "OK", "AI", "HQ", "DD", "TL", "DR", "IMO", "LOL",
		"OMG", "WTF", "CEO", "CFO", "COO", "CTO", "SEC", "FED", "IPO",
	} {
		tickerStopWords[w] = struct{}{}
	}
}

var (
	tickerRe       = regexp.MustCompile(`\$?[A-Z]{1,5}\b`)
	dollarTickerRe = regexp.MustCompile(`\$[A-Z]{1,5}\b`)
	cryptoRes      = compileCryptoPatterns()
)

func compileCryptoPatterns() []*regexp.Regexp {
	res := make([]*regexp.Regexp, 0, len(cryptoNames))
	for _, name := range cryptoNames {
		res = append(res, regexp.MustCompile(`\b`+regexp.QuoteMeta(name)+`\b`))
	}
	return res
}

var imageExtensions = []string{
	".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp", ".tiff", ".svg",
}

// PostFilter screens posts with no network calls.
type PostFilter struct {
	minKarma int
}

// New returns a PostFilter rejecting authors below minKarma.
func New(minKarma int) *PostFilter {
	return &PostFilter{minKarma: minKarma}
}

// Check runs every filter against the post. The result carries the first
// failure reason, or "all checks passed".
func (f *PostFilter) Check(post *domain.Post) Result {
	checks := []func(*domain.Post) Result{
		checkSports,
		checkMeme,
		checkInstrument,
		f.checkKarma,
	}
	for _, check := range checks {
		if r := check(post); !r.Passed {
			return r
		}
	}
	return Result{Passed: true, Reason: "all checks passed"}
}

func checkSports(post *domain.Post) Result {
	combined := strings.ToLower(post.Title + " " + post.Body)
	for _, kw := range sportsKeywords {
		if strings.Contains(combined, kw) {
			return Result{Reason: fmt.Sprintf("sports/gambling keyword: %q", kw)}
		}
	}
	return Result{Passed: true, Reason: "no sports keywords"}
}

// checkMeme rejects image-only link posts and self posts with no
// meaningful body, unless the title itself names an instrument.
func checkMeme(post *domain.Post) Result {
	body := strings.TrimSpace(post.Body)

	if !post.IsSelf {
		urlLower := strings.ToLower(post.URL)
		for _, ext := range imageExtensions {
			if strings.HasSuffix(urlLower, ext) && body == "" {
				return Result{Reason: "image-only link post (meme)"}
			}
		}
		return Result{Passed: true, Reason: "not a meme post"}
	}

	if len(body) < 20 && !hasInstrument(post.Title) {
		return Result{Reason: "self-post with no body text"}
	}
	return Result{Passed: true, Reason: "not a meme post"}
}

func checkInstrument(post *domain.Post) Result {
	if hasInstrument(post.Title + " " + post.Body) {
		return Result{Passed: true, Reason: "financial instrument found"}
	}
	return Result{Reason: "no identifiable financial instrument"}
}

func (f *PostFilter) checkKarma(post *domain.Post) Result {
	if !post.KarmaKnown {
		// Missing data must not block a post.
		return Result{Passed: true, Reason: "karma unavailable, allowing"}
	}
	if post.Karma < f.minKarma {
		return Result{Reason: fmt.Sprintf("author karma %d below threshold %d", post.Karma, f.minKarma)}
	}
	return Result{Passed: true, Reason: fmt.Sprintf("author karma %d OK", post.Karma)}
}

// hasInstrument reports whether the text names a recognizable financial
// instrument: a $TICKER, a bare 2-5 letter all-caps ticker that is not a
// stop word, or a known crypto name.
func hasInstrument(text string) bool {
	lower := strings.ToLower(text)
	for _, re := range cryptoRes {
		if re.MatchString(lower) {
			return true
		}
	}

	if dollarTickerRe.MatchString(text) {
		return true
	}

	for _, match := range tickerRe.FindAllString(text, -1) {
		word := strings.TrimPrefix(match, "$")
		if len(word) < 2 {
			continue
		}
		if _, stop := tickerStopWords[word]; !stop {
			return true
		}
	}
	return false
}
