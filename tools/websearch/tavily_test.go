package websearch_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	tavilyModels "github.com/diverged/tavily-go/models"
	"github.com/effective-security/auntie/tools/websearch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTavily(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)

		var req tavilyModels.SearchRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Ayesha Facebook", req.Query)
		assert.Equal(t, "basic", req.SearchDepth)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []tavilyModels.SearchResult{
				{Title: "Ayesha", URL: "https://facebook.com/ayesha", Content: "Profile", Score: 0.9},
				{Title: "Ayesha K", URL: "https://facebook.com/ayeshak", Content: "Another profile", Score: 0.5},
			},
		})
	}))
	defer srv.Close()

	tv := websearch.NewTavily("testkey").WithBaseURL(srv.URL).WithHTTPClient(srv.Client())
	assert.Equal(t, "tavily", tv.Name())

	list, err := tv.Search(context.Background(), "Ayesha Facebook")
	require.NoError(t, err)
	assert.Equal(t, []websearch.Result{
		{Title: "Ayesha", Href: "https://facebook.com/ayesha", Body: "Profile"},
		{Title: "Ayesha K", Href: "https://facebook.com/ayeshak", Body: "Another profile"},
	}, list)

	tool, err := websearch.New(tv, 1)
	require.NoError(t, err)
	out, err := tool.Call(context.Background(), `{"query":"Ayesha Facebook"}`)
	require.NoError(t, err)
	assert.Equal(t, `[{"title":"Ayesha","href":"https://facebook.com/ayesha","body":"Profile"}]`, out)
}

func TestTavily_NoKey(t *testing.T) {
	_, err := websearch.NewTavily("").Search(context.Background(), "q")
	assert.EqualError(t, err, "tavily API key is not set")
}

func Test_Tavily_Real(t *testing.T) {
	apikey := os.Getenv("TAVILY_API_KEY")
	if apikey == "" {
		t.Skip("TAVILY_API_KEY is not set")
	}

	list, err := websearch.NewTavily(apikey).Search(context.Background(), "What is capital of France")
	require.NoError(t, err)
	assert.NotEmpty(t, list)
}
