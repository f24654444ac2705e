// Package websearch provides the `search_duckduckgo` tool and the search
// backends behind it.
package websearch

import (
	"context"
	"encoding/json"
	"reflect"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/auntie/pkg/llmutils"
	"github.com/effective-security/auntie/pkg/metricskey"
	"github.com/effective-security/auntie/pkg/schema"
	"github.com/effective-security/auntie/tools"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/auntie/tools", "websearch")

const (
	// ToolName is the name of the tool exposed to the model
	ToolName = "search_duckduckgo"
	// DefaultMaxResults is the number of results returned when not configured
	DefaultMaxResults = 5
)

// Result is a single search hit
type Result struct {
	Title string `json:"title" yaml:"title"`
	Href  string `json:"href" yaml:"href"`
	Body  string `json:"body" yaml:"body"`
}

// Searcher is a search backend
type Searcher interface {
	// Name returns the backend name, used in logs and metrics
	Name() string
	// Search returns the results in the provider order
	Search(ctx context.Context, query string) ([]Result, error)
}

// Request is the tool input
type Request struct {
	Query string `json:"query" yaml:"query" jsonschema:"title=Query,description=The query to search the web for."`
}

// Response is the tool output
type Response struct {
	Results []Result `json:"results" yaml:"results"`
}

// Tool exposes a Searcher to the model
type Tool struct {
	searcher   Searcher
	maxResults int
	funcParams any
}

var _ tools.Tool[Request, Response] = (*Tool)(nil)

// New returns the web search tool over the searcher,
// DuckDuckGo is used if searcher is nil.
// maxResults <= 0 means DefaultMaxResults.
func New(searcher Searcher, maxResults int) (*Tool, error) {
	if searcher == nil {
		searcher = NewDuckDuckGo()
	}
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}

	sc, err := schema.New(reflect.TypeOf(Request{}))
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create schema")
	}
	return &Tool{
		searcher:   searcher,
		maxResults: maxResults,
		funcParams: sc.Parameters,
	}, nil
}

func (t *Tool) Name() string {
	return ToolName
}

func (t *Tool) Description() string {
	return "Search the web using DuckDuckGo to find information."
}

func (t *Tool) Parameters() any {
	return t.funcParams
}

// Backend returns the name of the search backend
func (t *Tool) Backend() string {
	return t.searcher.Name()
}

// MaxResults returns the maximum number of results
func (t *Tool) MaxResults() int {
	return t.maxResults
}

// Search returns at most MaxResults results for the query.
// The query is passed to the backend as is, even if empty.
func (t *Tool) Search(ctx context.Context, query string) ([]Result, error) {
	list, err := t.searcher.Search(ctx, query)
	if err != nil {
		metricskey.StatsSearchRequestsFailed.IncrCounter(1, t.searcher.Name())
		logger.ContextKV(ctx, xlog.ERROR,
			"status", "search_failed",
			"backend", t.searcher.Name(),
			"err", err.Error(),
		)
		return nil, errors.WithMessagef(err, "%s search failed", t.searcher.Name())
	}

	if len(list) > t.maxResults {
		list = list[:t.maxResults]
	}
	if list == nil {
		list = []Result{}
	}
	return list, nil
}

func (t *Tool) Run(ctx context.Context, req *Request) (*Response, error) {
	list, err := t.Search(ctx, req.Query)
	if err != nil {
		return nil, err
	}
	return &Response{Results: list}, nil
}

func (t *Tool) Call(ctx context.Context, input string) (string, error) {
	var req Request
	if err := json.Unmarshal(llmutils.CleanJSON([]byte(input)), &req); err != nil {
		return "", errors.WithStack(tools.ErrFailedUnmarshalInput)
	}

	res, err := t.Run(ctx, &req)
	if err != nil {
		return "", err
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"status", "found",
		"backend", t.searcher.Name(),
		"query", req.Query,
		"count", len(res.Results),
	)
	return llmutils.ToJSON(res.Results), nil
}
