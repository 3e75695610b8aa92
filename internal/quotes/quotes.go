// Package quotes supplies motivational quotes for the motivation handler.
// The primary source scrapes a quotes site; a local embedded list serves
// as the fallback so motivation never depends on the network.
package quotes

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Quote is one motivational quote.
type Quote struct {
	Text   string
	Author string
}

func (q Quote) String() string {
	if q.Author == "" {
		return q.Text
	}
	return fmt.Sprintf("%s — %s", q.Text, q.Author)
}

// Scraper fetches quotes from a web page. The selectors target the
// quotes.toscrape.com markup (div.quote with span.text and small.author).
type Scraper struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

// NewScraper creates a quote scraper for url.
func NewScraper(url string, timeout time.Duration, logger *slog.Logger) (*Scraper, error) {
	if url == "" {
		return nil, fmt.Errorf("url is required")
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scraper{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger.With("component", "quotes"),
	}, nil
}

// Fetch scrapes the page and returns one randomly chosen quote.
func (s *Scraper) Fetch(ctx context.Context) (Quote, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return Quote{}, fmt.Errorf("building quote request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return Quote{}, fmt.Errorf("fetching quotes page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Quote{}, fmt.Errorf("quotes page returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return Quote{}, fmt.Errorf("parsing quotes page: %w", err)
	}

	all := parseQuotes(doc)
	if len(all) == 0 {
		return Quote{}, fmt.Errorf("no quotes found at %s", s.url)
	}

	q := all[rand.IntN(len(all))]
	s.logger.Debug("quote scraped", "author", q.Author, "candidates", len(all))
	return q, nil
}

// parseQuotes extracts all quotes from a parsed document.
func parseQuotes(doc *goquery.Document) []Quote {
	var out []Quote
	doc.Find("div.quote").Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Find("span.text").First().Text())
		author := strings.TrimSpace(sel.Find("small.author").First().Text())
		// The site wraps quotes in curly double quotes.
		text = strings.Trim(text, "“”\"")
		if text == "" {
			return
		}
		out = append(out, Quote{Text: text, Author: author})
	})
	return out
}
