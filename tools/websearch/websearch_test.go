package websearch_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/auntie/pkg/llmutils"
	"github.com/effective-security/auntie/tools"
	"github.com/effective-security/auntie/tools/websearch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSearcher struct {
	results []websearch.Result
	err     error
	queries []string
}

func (f *fakeSearcher) Name() string { return "fake" }

func (f *fakeSearcher) Search(_ context.Context, query string) ([]websearch.Result, error) {
	f.queries = append(f.queries, query)
	return f.results, f.err
}

func makeResults(n int) []websearch.Result {
	list := make([]websearch.Result, n)
	for i := range list {
		list[i] = websearch.Result{
			Title: fmt.Sprintf("title %d", i),
			Href:  fmt.Sprintf("https://example.com/%d", i),
			Body:  fmt.Sprintf("body %d", i),
		}
	}
	return list
}

func TestTool(t *testing.T) {
	ctx := context.Background()
	fake := &fakeSearcher{results: makeResults(8)}

	tool, err := websearch.New(fake, 0)
	require.NoError(t, err)
	assert.Equal(t, "search_duckduckgo", tool.Name())
	assert.Equal(t, "Search the web using DuckDuckGo to find information.", tool.Description())
	assert.Equal(t, websearch.DefaultMaxResults, tool.MaxResults())
	assert.Equal(t, "fake", tool.Backend())

	expParams := `{
	"properties": {
		"query": {
			"type": "string",
			"title": "Query",
			"description": "The query to search the web for."
		}
	},
	"type": "object",
	"required": [
		"query"
	]
}`
	assert.JSONEq(t, expParams, llmutils.ToJSON(tool.Parameters()))

	list, err := tool.Search(ctx, "Zainscity LinkedIn")
	require.NoError(t, err)
	assert.Equal(t, fake.results[:5], list)

	out, err := tool.Call(ctx, `{"query": "Ayesha Instagram"}`)
	require.NoError(t, err)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Len(t, decoded, 5)
	for _, r := range decoded {
		assert.Contains(t, r, "title")
		assert.Contains(t, r, "href")
		assert.Contains(t, r, "body")
	}
	assert.Equal(t, []string{"Zainscity LinkedIn", "Ayesha Instagram"}, fake.queries)

	_, err = tool.Call(ctx, "plain string")
	assert.True(t, errors.Is(err, tools.ErrFailedUnmarshalInput))
}

func TestTool_MaxResults(t *testing.T) {
	ctx := context.Background()

	tool, err := websearch.New(&fakeSearcher{results: makeResults(3)}, 2)
	require.NoError(t, err)
	res, err := tool.Run(ctx, &websearch.Request{Query: "q"})
	require.NoError(t, err)
	assert.Len(t, res.Results, 2)

	tool, err = websearch.New(&fakeSearcher{results: makeResults(3)}, 10)
	require.NoError(t, err)
	res, err = tool.Run(ctx, &websearch.Request{Query: "q"})
	require.NoError(t, err)
	assert.Len(t, res.Results, 3)
}

func TestTool_EmptyAndErrors(t *testing.T) {
	ctx := context.Background()

	fake := &fakeSearcher{}
	tool, err := websearch.New(fake, 5)
	require.NoError(t, err)

	// empty query is passed to the backend
	out, err := tool.Call(ctx, `{"query": ""}`)
	require.NoError(t, err)
	assert.Equal(t, "[]", out)
	assert.Equal(t, []string{""}, fake.queries)

	// empty fields are still emitted
	fake.results = []websearch.Result{{Title: "only title"}}
	out, err = tool.Call(ctx, `{"query": "x"}`)
	require.NoError(t, err)
	assert.Equal(t, `[{"title":"only title","href":"","body":""}]`, out)

	rateLimited := errors.New("rate limited")
	tool, err = websearch.New(&fakeSearcher{err: rateLimited}, 5)
	require.NoError(t, err)
	_, err = tool.Call(ctx, `{"query": "x"}`)
	require.Error(t, err)
	assert.True(t, errors.Is(err, rateLimited))
	assert.Equal(t, "fake search failed: rate limited", err.Error())
}

func TestNew_DefaultBackend(t *testing.T) {
	tool, err := websearch.New(nil, -1)
	require.NoError(t, err)
	assert.Equal(t, "duckduckgo", tool.Backend())
	assert.Equal(t, websearch.DefaultMaxResults, tool.MaxResults())
}
