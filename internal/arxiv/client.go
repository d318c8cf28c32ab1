package arxiv

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bikestra/paper-tracker/internal/author"
	"github.com/bikestra/paper-tracker/internal/domain"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the export mirror arXiv asks API clients to use.
	DefaultBaseURL = "http://export.arxiv.org"

	// RateInterval is the minimum spacing between requests allowed by the arXiv terms of use.
	RateInterval = 3 * time.Second

	userAgent    = "paper-tracker/1.0 (+https://github.com/bikestra/paper-tracker)"
	maxFeedBytes = 4 << 20
)

// Fetcher retrieves metadata for a canonical identifier.
type Fetcher interface {
	Fetch(ctx context.Context, id Identifier) (*domain.PaperMetadata, error)
}

// Client is a rate-limited client for the arXiv Atom API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

type ClientOption func(*Client)

// WithBaseURL points the client at another host (tests, mirrors).
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRateLimit replaces the default one request per RateInterval.
func WithRateLimit(every time.Duration, burst int) ClientOption {
	return func(c *Client) {
		limit := rate.Inf
		if every > 0 {
			limit = rate.Every(every)
		}
		c.limiter = rate.NewLimiter(limit, burst)
	}
}

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(RateInterval), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID              string         `xml:"id"`
	Title           string         `xml:"title"`
	Summary         string         `xml:"summary"`
	Published       string         `xml:"published"`
	Updated         string         `xml:"updated"`
	Authors         []atomAuthor   `xml:"author"`
	Links           []atomLink     `xml:"link"`
	Categories      []atomCategory `xml:"category"`
	PrimaryCategory atomCategory   `xml:"http://arxiv.org/schemas/atom primary_category"`
	DOI             string         `xml:"http://arxiv.org/schemas/atom doi"`
	JournalRef      string         `xml:"http://arxiv.org/schemas/atom journal_ref"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

type atomLink struct {
	Href  string `xml:"href,attr"`
	Rel   string `xml:"rel,attr"`
	Type  string `xml:"type,attr"`
	Title string `xml:"title,attr"`
}

type atomCategory struct {
	Term string `xml:"term,attr"`
}

// Fetch queries the Atom API for one identifier. A versioned identifier
// fetches that version; otherwise arXiv answers with the latest one.
func (c *Client) Fetch(ctx context.Context, id Identifier) (*domain.PaperMetadata, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fetchErr(id.String(), ErrUpstreamUnavailable, fmt.Errorf("rate limiter: %w", err))
	}

	endpoint := fmt.Sprintf("%s/api/query?id_list=%s&max_results=1", c.baseURL, url.QueryEscape(id.String()))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fetchErr(id.String(), ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fetchErr(id.String(), ErrNotFound, nil)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fetchErr(id.String(), ErrUpstreamUnavailable, fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fetchErr(id.String(), ErrMalformedResponse, fmt.Errorf("status %d: %s", resp.StatusCode, b))
	}

	var feed atomFeed
	if err := xml.NewDecoder(io.LimitReader(resp.Body, maxFeedBytes)).Decode(&feed); err != nil {
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, fetchErr(id.String(), ErrUpstreamUnavailable, err)
		}
		return nil, fetchErr(id.String(), ErrMalformedResponse, fmt.Errorf("decode feed: %w", err))
	}

	if len(feed.Entries) == 0 || strings.Contains(feed.Entries[0].ID, "/api/errors") {
		return nil, fetchErr(id.String(), ErrNotFound, nil)
	}

	meta, err := entryToMetadata(feed.Entries[0])
	if err != nil {
		return nil, fetchErr(id.String(), ErrMalformedResponse, err)
	}
	return meta, nil
}

func entryToMetadata(e atomEntry) (*domain.PaperMetadata, error) {
	title := collapseSpace(e.Title)
	if title == "" {
		return nil, errors.New("entry has no title")
	}

	entryID, err := Normalize(e.ID)
	if err != nil {
		return nil, fmt.Errorf("entry id: %w", err)
	}

	published, err := parseTime(e.Published)
	if err != nil {
		return nil, fmt.Errorf("published: %w", err)
	}
	updated, err := parseTime(e.Updated)
	if err != nil {
		return nil, fmt.Errorf("updated: %w", err)
	}

	meta := &domain.PaperMetadata{
		ID:              entryID.ID,
		Version:         entryID.Version,
		Title:           title,
		Abstract:        strings.TrimSpace(e.Summary),
		PrimaryCategory: e.PrimaryCategory.Term,
		DOI:             strings.TrimSpace(e.DOI),
		JournalRef:      collapseSpace(e.JournalRef),
		URL:             entryID.AbsURL(),
		PDFURL:          entryID.PDFURL(),
		PublishedAt:     published,
		UpdatedAt:       updated,
	}

	for _, a := range e.Authors {
		name := collapseSpace(a.Name)
		if name == "" {
			continue
		}
		meta.Authors = append(meta.Authors, domain.AuthorDescriptor{
			Name:     name,
			SourceID: author.NameSlug(name),
		})
	}

	for _, c := range e.Categories {
		if c.Term != "" {
			meta.Categories = append(meta.Categories, c.Term)
		}
	}
	if meta.PrimaryCategory == "" && len(meta.Categories) > 0 {
		meta.PrimaryCategory = meta.Categories[0]
	}

	for _, l := range e.Links {
		switch {
		case l.Rel == "alternate" && l.Href != "":
			meta.URL = l.Href
		case l.Title == "pdf" && l.Href != "":
			meta.PDFURL = l.Href
		}
	}

	return meta, nil
}

func parseTime(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	t = t.UTC()
	return &t, nil
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
