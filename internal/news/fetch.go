// Package news gathers per-symbol headlines for portfolio holdings from the
// Alpaca news API and Google News RSS.
package news

import (
	"context"
	"encoding/xml"
	"fmt"
	"html"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/errgroup"
)

// Headline is one article about one symbol.
type Headline struct {
	Symbol  string
	Time    time.Time
	Source  string
	Title   string
	Summary string
	Link    string
}

// Source fetches headlines for a symbol published at or after since.
type Source interface {
	Headlines(ctx context.Context, symbol string, since time.Time) ([]Headline, error)
}

// ---------------------------------------------------------------------------
// Alpaca
// ---------------------------------------------------------------------------

// AlpacaSource reads the Alpaca marketdata news API.
type AlpacaSource struct {
	mdc *marketdata.Client
}

// NewAlpacaSource returns an AlpacaSource with the given credentials.
func NewAlpacaSource(apiKey, apiSecret string) *AlpacaSource {
	return &AlpacaSource{mdc: marketdata.NewClient(marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	})}
}

func (s *AlpacaSource) Headlines(_ context.Context, symbol string, since time.Time) ([]Headline, error) {
	items, err := s.mdc.GetNews(marketdata.GetNewsRequest{
		Symbols:            []string{symbol},
		Start:              since,
		TotalLimit:         50,
		IncludeContent:     true,
		ExcludeContentless: true,
		Sort:               marketdata.SortDesc,
	})
	if err != nil {
		return nil, err
	}

	out := make([]Headline, 0, len(items))
	for _, a := range items {
		summary := a.Summary
		if a.Content != "" {
			summary = ExtractSymbolContent(a.Content, symbol)
		}
		out = append(out, Headline{
			Symbol:  symbol,
			Time:    a.CreatedAt,
			Source:  "alpaca",
			Title:   a.Headline,
			Summary: summary,
			Link:    a.URL,
		})
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Google News RSS
// ---------------------------------------------------------------------------

type rssResponse struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title   string `xml:"title"`
	Link    string `xml:"link"`
	PubDate string `xml:"pubDate"`
	Desc    string `xml:"description"`
}

// GoogleSource reads the Google News RSS search feed.
type GoogleSource struct {
	http *resty.Client
}

// NewGoogleSource returns a GoogleSource. baseURL is normally
// https://news.google.com.
func NewGoogleSource(baseURL string, timeout time.Duration) *GoogleSource {
	return &GoogleSource{http: resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("User-Agent", "Mozilla/5.0")}
}

func (s *GoogleSource) Headlines(ctx context.Context, symbol string, since time.Time) ([]Headline, error) {
	resp, err := s.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":    symbol + " stock",
			"hl":   "en-IN",
			"gl":   "IN",
			"ceid": "IN:en",
		}).
		Get("/rss/search")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("google news %s: status %d", symbol, resp.StatusCode())
	}

	var rss rssResponse
	if err := xml.Unmarshal(resp.Body(), &rss); err != nil {
		return nil, fmt.Errorf("decoding google news feed: %w", err)
	}

	var out []Headline
	for _, item := range rss.Channel.Items {
		t, err := time.Parse(time.RFC1123Z, item.PubDate)
		if err != nil {
			t, err = time.Parse(time.RFC1123, item.PubDate)
			if err != nil {
				continue
			}
		}
		if t.Before(since) {
			continue
		}
		title := item.Title
		if idx := strings.LastIndex(title, " - "); idx > 0 {
			title = title[:idx]
		}
		out = append(out, Headline{
			Symbol:  symbol,
			Time:    t,
			Source:  "google",
			Title:   title,
			Summary: StripHTML(item.Desc),
			Link:    item.Link,
		})
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Gathering
// ---------------------------------------------------------------------------

// Gather fetches headlines for every symbol from source, at most parallel
// at a time. A symbol whose fetch fails is skipped; its error is returned
// joined with the others only if nothing at all was fetched. Results are
// deduplicated by title per symbol and sorted newest first.
func Gather(ctx context.Context, source Source, symbols []string, since time.Time, parallel int) ([]Headline, error) {
	if parallel < 1 {
		parallel = 1
	}

	var (
		mu   sync.Mutex
		all  []Headline
		errs []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for _, sym := range symbols {
		g.Go(func() error {
			items, err := source.Headlines(gctx, sym, since)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", sym, err))
				return nil
			}
			all = append(all, items...)
			return nil
		})
	}
	_ = g.Wait()

	if len(all) == 0 && len(errs) > 0 {
		return nil, errs[0]
	}
	return dedupe(all), nil
}

func dedupe(items []Headline) []Headline {
	type key struct{ symbol, title string }
	seen := make(map[key]bool, len(items))
	out := items[:0:0]
	for _, h := range items {
		k := key{h.Symbol, strings.ToLower(strings.TrimSpace(h.Title))}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, h)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.After(out[j].Time) })
	return out
}

// ---------------------------------------------------------------------------
// HTML helpers
// ---------------------------------------------------------------------------

var htmlTagRe = regexp.MustCompile(`<[^>]*>`)
var htmlParaRe = regexp.MustCompile(`(?i)</?(p|br|div|li|h[1-6])\b[^>]*>`)

// StripHTML removes HTML tags and normalizes whitespace.
func StripHTML(s string) string {
	s = htmlTagRe.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}

// ExtractSymbolContent keeps the paragraphs of rawHTML that mention symbol,
// or all of it stripped when none do.
func ExtractSymbolContent(rawHTML, symbol string) string {
	upper := strings.ToUpper(symbol)
	var matched []string
	for _, chunk := range htmlParaRe.Split(rawHTML, -1) {
		plain := StripHTML(chunk)
		if plain != "" && strings.Contains(strings.ToUpper(plain), upper) {
			matched = append(matched, plain)
		}
	}
	if len(matched) > 0 {
		return strings.Join(matched, " ")
	}
	return StripHTML(rawHTML)
}
