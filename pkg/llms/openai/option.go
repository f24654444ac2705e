package openai

import (
	"net/http"

	"github.com/effective-security/auntie/pkg/llms"
)

const (
	// DefaultBaseURL is the OpenAI-compatible endpoint of Google Gemini
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"
	// DefaultModel is the chat model used when none is configured
	DefaultModel = "gemini-2.0-flash"
)

type options struct {
	token      string
	model      string
	baseURL    string
	provider   llms.ProviderType
	httpClient *http.Client
	maxRetries int
}

// Option is a functional option for the OpenAI client.
type Option func(*options)

// WithToken passes the API key to the client.
func WithToken(token string) Option {
	return func(opts *options) {
		opts.token = token
	}
}

// WithModel sets the default model, used when the call does not specify one.
func WithModel(model string) Option {
	return func(opts *options) {
		opts.model = model
	}
}

// WithBaseURL sets the base URL of the OpenAI-compatible endpoint.
// If not set, DefaultBaseURL is used.
func WithBaseURL(baseURL string) Option {
	return func(opts *options) {
		opts.baseURL = baseURL
	}
}

// WithProvider sets the provider type reported by the model.
// If not set, ProviderGoogleAI is reported for DefaultBaseURL
// and ProviderOpenAI otherwise.
func WithProvider(provider llms.ProviderType) Option {
	return func(opts *options) {
		opts.provider = provider
	}
}

// WithHTTPClient allows setting a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(opts *options) {
		opts.httpClient = client
	}
}

// WithMaxRetries sets the number of SDK level retries, default is 0.
func WithMaxRetries(n int) Option {
	return func(opts *options) {
		opts.maxRetries = n
	}
}
