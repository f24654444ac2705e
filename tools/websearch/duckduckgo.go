package websearch

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/cockroachdb/errors"
)

const (
	// DuckDuckGoURL is the HTML endpoint of DuckDuckGo
	DuckDuckGoURL = "https://html.duckduckgo.com/html/"

	defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// DuckDuckGo searches the unauthenticated DuckDuckGo HTML endpoint
type DuckDuckGo struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

var _ Searcher = (*DuckDuckGo)(nil)

// NewDuckDuckGo returns the DuckDuckGo backend
func NewDuckDuckGo() *DuckDuckGo {
	return &DuckDuckGo{
		baseURL:    DuckDuckGoURL,
		userAgent:  defaultUserAgent,
		httpClient: http.DefaultClient,
	}
}

func (d *DuckDuckGo) WithBaseURL(baseURL string) *DuckDuckGo {
	d.baseURL = baseURL
	return d
}

func (d *DuckDuckGo) WithHTTPClient(client *http.Client) *DuckDuckGo {
	d.httpClient = client
	return d
}

func (d *DuckDuckGo) Name() string {
	return "duckduckgo"
}

func (d *DuckDuckGo) Search(ctx context.Context, query string) ([]Result, error) {
	u, err := url.Parse(d.baseURL)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid base URL: %s", d.baseURL)
	}
	q := u.Query()
	q.Set("q", query)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	req.Header.Set("User-Agent", d.userAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("unexpected status: %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse response")
	}
	return parseResults(doc), nil
}

// parseResults extracts the organic results, an entry without
// title, link or snippet is skipped.
func parseResults(doc *goquery.Document) []Result {
	list := []Result{}
	doc.Find(".result").Each(func(_ int, s *goquery.Selection) {
		if s.HasClass("result--ad") {
			return
		}
		link := s.Find(".result__a").First()
		snippet := s.Find(".result__snippet").First()
		if link.Length() == 0 || snippet.Length() == 0 {
			return
		}
		href, ok := link.Attr("href")
		if !ok || href == "" {
			return
		}
		list = append(list, Result{
			Title: strings.TrimSpace(link.Text()),
			Href:  unwrapRedirect(href),
			Body:  strings.TrimSpace(snippet.Text()),
		})
	})
	return list
}

// unwrapRedirect returns the target of `//duckduckgo.com/l/?uddg=<url>` links
func unwrapRedirect(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if strings.HasSuffix(u.Hostname(), "duckduckgo.com") && strings.HasPrefix(u.Path, "/l/") {
		if target := u.Query().Get("uddg"); target != "" {
			return target
		}
	}
	return href
}
