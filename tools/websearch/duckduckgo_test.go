package websearch_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/effective-security/auntie/tools/websearch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ddgPage = `<!DOCTYPE html>
<html><body>
<div class="results">
  <div class="result results_links results_links_deep result--ad">
    <h2 class="result__title"><a class="result__a" href="https://ads.example.com">Sponsored</a></h2>
    <a class="result__snippet" href="https://ads.example.com">Buy now</a>
  </div>
  <div class="result results_links results_links_deep web-result">
    <h2 class="result__title">
      <a rel="nofollow" class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fwww.linkedin.com%2Fin%2Fzainscity&amp;rut=abc">Zainscity - LinkedIn</a>
    </h2>
    <a class="result__snippet" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fwww.linkedin.com%2Fin%2Fzainscity">Software engineer in <b>Lahore</b>.</a>
  </div>
  <div class="result results_links results_links_deep web-result">
    <h2 class="result__title"><a rel="nofollow" class="result__a" href="https://www.instagram.com/zainscity/">Zainscity (@zainscity)</a></h2>
    <a class="result__snippet" href="https://www.instagram.com/zainscity/">Photos and videos.</a>
  </div>
  <div class="result results_links results_links_deep web-result">
    <h2 class="result__title"><a rel="nofollow" class="result__a" href="https://example.com/no-snippet">No snippet</a></h2>
  </div>
  <div class="result results_links results_links_deep web-result">
    <a class="result__snippet" href="https://example.com/no-title">No title</a>
  </div>
</div>
</body></html>`

func TestDuckDuckGo(t *testing.T) {
	var gotQuery, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		gotQuery = r.URL.Query().Get("q")
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(ddgPage))
	}))
	defer srv.Close()

	ddg := websearch.NewDuckDuckGo().WithBaseURL(srv.URL + "/html/").WithHTTPClient(srv.Client())
	assert.Equal(t, "duckduckgo", ddg.Name())

	list, err := ddg.Search(context.Background(), "Zainscity LinkedIn & Instagram")
	require.NoError(t, err)
	assert.Equal(t, "Zainscity LinkedIn & Instagram", gotQuery)
	assert.NotEmpty(t, gotUA)

	assert.Equal(t, []websearch.Result{
		{
			Title: "Zainscity - LinkedIn",
			Href:  "https://www.linkedin.com/in/zainscity",
			Body:  "Software engineer in Lahore.",
		},
		{
			Title: "Zainscity (@zainscity)",
			Href:  "https://www.instagram.com/zainscity/",
			Body:  "Photos and videos.",
		},
	}, list)
}

func TestDuckDuckGo_Empty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body><div class="no-results">No results.</div></body></html>`))
	}))
	defer srv.Close()

	list, err := websearch.NewDuckDuckGo().WithBaseURL(srv.URL).Search(context.Background(), "")
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestDuckDuckGo_Status(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	_, err := websearch.NewDuckDuckGo().WithBaseURL(srv.URL).Search(context.Background(), "q")
	assert.EqualError(t, err, "unexpected status: 202 Accepted")
}

func TestDuckDuckGo_WithTool(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(ddgPage))
	}))
	defer srv.Close()

	tool, err := websearch.New(websearch.NewDuckDuckGo().WithBaseURL(srv.URL), 1)
	require.NoError(t, err)

	out, err := tool.Call(context.Background(), `{"query":"Zainscity"}`)
	require.NoError(t, err)
	assert.Equal(t, `[{"title":"Zainscity - LinkedIn","href":"https://www.linkedin.com/in/zainscity","body":"Software engineer in Lahore."}]`, out)
}

func Test_DuckDuckGo_Real(t *testing.T) {
	t.Skip("skipping real test")

	list, err := websearch.NewDuckDuckGo().Search(context.Background(), "golang")
	require.NoError(t, err)
	assert.NotEmpty(t, list)
}
