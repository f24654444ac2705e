package main

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/effective-security/auntie/config"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_newServer(t *testing.T) {
	gin.SetMode(gin.TestMode)

	form := url.Values{}
	form.Set("request", "Find a match")
	form.Set("recipient", "whatsapp:+15550001111")

	submit := func(h http.Handler) string {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		return w.Body.String()
	}

	cfg := &config.Config{}
	cfg.SetDefaults()
	body := submit(newServer(cfg).Router())
	assert.Contains(t, body, "Configuration Error: missing required environment variables: GEMINI_API_KEY")

	cfg.LLM.APIKey = "key"
	cfg.Twilio = config.Twilio{AccountSID: "AC123", AuthToken: "token", WhatsAppNumber: "whatsapp:+14155238886"}
	router := newServer(cfg).Router()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Find a Match")
}
