package websearch

import (
	"context"
	"net/http"

	"github.com/cockroachdb/errors"
	tavilygo "github.com/diverged/tavily-go"
	tavilyModels "github.com/diverged/tavily-go/models"
)

// Tavily searches with the Tavily API
type Tavily struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

var _ Searcher = (*Tavily)(nil)

// NewTavily returns the Tavily backend
func NewTavily(apiKey string) *Tavily {
	return &Tavily{
		apiKey: apiKey,
	}
}

func (t *Tavily) WithBaseURL(baseURL string) *Tavily {
	t.baseURL = baseURL
	return t
}

func (t *Tavily) WithHTTPClient(client *http.Client) *Tavily {
	t.httpClient = client
	return t
}

func (t *Tavily) Name() string {
	return "tavily"
}

// Search performs a basic depth search, the context is not
// propagated as the client does not accept one.
func (t *Tavily) Search(_ context.Context, query string) ([]Result, error) {
	if t.apiKey == "" {
		return nil, errors.New("tavily API key is not set")
	}

	client := tavilygo.NewClient(t.apiKey)
	if t.baseURL != "" {
		client.BaseURL = t.baseURL
	}
	if t.httpClient != nil {
		client.HTTPClient = t.httpClient
	}

	resp, err := tavilygo.Search(client, tavilyModels.SearchRequest{
		Query:       query,
		SearchDepth: "basic",
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to perform search")
	}

	list := make([]Result, 0, len(resp.Results))
	for _, r := range resp.Results {
		list = append(list, Result{
			Title: r.Title,
			Href:  r.URL,
			Body:  r.Content,
		})
	}
	return list, nil
}
