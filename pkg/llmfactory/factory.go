package llmfactory

import (
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/auntie/config"
	"github.com/effective-security/auntie/pkg/llms"
	"github.com/effective-security/auntie/pkg/llms/openai"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/auntie/pkg", "llmfactory")

// NewLLM is a wrapper for CreateLLM to allow for overriding the default implementation.
var NewLLM = CreateLLM

// Option customizes the created model
type Option func(*options)

type options struct {
	httpClient *http.Client
}

// WithHTTPClient sets the HTTP client of the provider
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// CreateLLM returns the model for the provider config,
// the provider is OPENAI or GOOGLEAI, both served by the OpenAI-compatible client.
func CreateLLM(cfg config.LLM, opts ...Option) (llms.Model, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	baseURL := values.StringsCoalesce(cfg.BaseURL, openai.DefaultBaseURL)
	provType := strings.ToUpper(cfg.APIType)
	if provType == "" {
		provType = string(llms.ProviderOpenAI)
		if baseURL == openai.DefaultBaseURL {
			provType = string(llms.ProviderGoogleAI)
		}
	}

	var provider llms.ProviderType
	switch provType {
	case "OPENAI", "OPEN_AI":
		provider = llms.ProviderOpenAI
	case "GOOGLEAI":
		provider = llms.ProviderGoogleAI
	default:
		return nil, errors.Errorf("unsupported provider type: %s", provType)
	}

	llmOpts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithBaseURL(baseURL),
		openai.WithModel(values.StringsCoalesce(cfg.Model, openai.DefaultModel)),
		openai.WithProvider(provider),
		openai.WithMaxRetries(0),
	}
	if o.httpClient != nil {
		llmOpts = append(llmOpts, openai.WithHTTPClient(o.httpClient))
	}

	model, err := openai.New(llmOpts...)
	if err != nil {
		return nil, err
	}

	logger.KV(xlog.DEBUG,
		"status", "created_llm",
		"type", provider,
		"model", model.GetName(),
		"base_url", baseURL,
	)
	return model, nil
}
