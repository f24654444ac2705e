package config

import (
	"os"
	"reflect"
	"sort"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/x/configloader"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/auntie", "config")

// ErrMissingConfig is returned when a required value is not set
var ErrMissingConfig = errors.New("missing required configuration")

const (
	// EnvConfigFile is the optional YAML config file location
	EnvConfigFile = "AUNTIE_CONFIG"

	// DefaultListen is the web form address
	DefaultListen = ":8501"
	// DefaultAgentName is the name of the assistant
	DefaultAgentName = "Auntie"
	// DefaultPersona is the system prompt of the assistant
	DefaultPersona = "You are a warm, friendly, and wise 'Rishtey Wali Auntie' who helps people find matches. Be personable and encouraging in your response."
	// DefaultSearchMaxResults is the number of web search results returned to the model
	DefaultSearchMaxResults = 5
)

// Config is the application config, built once at startup
type Config struct {
	LLM    LLM    `json:"llm" yaml:"llm"`
	Twilio Twilio `json:"twilio" yaml:"twilio"`
	Search Search `json:"search" yaml:"search"`
	Agent  Agent  `json:"agent" yaml:"agent"`
	Web    Web    `json:"web" yaml:"web"`

	// LogLevel is one of TRACE|DEBUG|INFO|NOTICE|WARNING|ERROR|CRITICAL
	LogLevel string `json:"log_level,omitempty" yaml:"log_level,omitempty" env:"AUNTIE_LOG_LEVEL"`
}

// LLM is the model provider config
type LLM struct {
	APIKey  string `json:"api_key,omitempty" yaml:"api_key,omitempty" env:"GEMINI_API_KEY" validate:"required"`
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" env:"LLM_BASE_URL"`
	Model   string `json:"model,omitempty" yaml:"model,omitempty" env:"LLM_MODEL"`
	// APIType specifies the provider: OPENAI|GOOGLEAI,
	// empty value is detected from the base URL
	APIType string `json:"api_type,omitempty" yaml:"api_type,omitempty" validate:"omitempty,oneof=OPENAI GOOGLEAI"`
}

// Twilio is the messaging provider config
type Twilio struct {
	AccountSID     string `json:"account_sid,omitempty" yaml:"account_sid,omitempty" env:"TWILIO_ACCOUNT_SID" validate:"required"`
	AuthToken      string `json:"auth_token,omitempty" yaml:"auth_token,omitempty" env:"TWILIO_AUTH_TOKEN" validate:"required"`
	WhatsAppNumber string `json:"whatsapp_number,omitempty" yaml:"whatsapp_number,omitempty" env:"TWILIO_WHATSAPP_NUMBER" validate:"required"`
	// Recipient is required by the script only,
	// the web form asks for the recipient
	Recipient    string `json:"recipient,omitempty" yaml:"recipient,omitempty" env:"MY_WHATSAPP_NUMBER"`
	BodyTemplate string `json:"body_template,omitempty" yaml:"body_template,omitempty"`
}

// Search is the web search config
type Search struct {
	// TavilyAPIKey switches the backend from DuckDuckGo to Tavily
	TavilyAPIKey string `json:"tavily_api_key,omitempty" yaml:"tavily_api_key,omitempty" env:"TAVILY_API_KEY"`
	MaxResults   int    `json:"max_results,omitempty" yaml:"max_results,omitempty" env:"SEARCH_MAX_RESULTS" validate:"gte=0"`
}

// Agent is the assistant config
type Agent struct {
	Name    string `json:"name,omitempty" yaml:"name,omitempty"`
	Persona string `json:"persona,omitempty" yaml:"persona,omitempty"`
	// MaxToolCalls limits the tool calls per run, 0 means unlimited
	MaxToolCalls int `json:"max_tool_calls,omitempty" yaml:"max_tool_calls,omitempty" validate:"gte=0"`
}

// Web is the form server config
type Web struct {
	Listen string `json:"listen,omitempty" yaml:"listen,omitempty" env:"AUNTIE_LISTEN"`
}

// Load returns the config from the optional file and the environment,
// the `.env` file in the working directory is loaded first.
// Empty file means the value of AUNTIE_CONFIG.
func Load(file string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "failed to load .env")
	}

	cfg := new(Config)
	file = values.StringsCoalesce(file, os.Getenv(EnvConfigFile))
	if file != "" {
		if err := configloader.UnmarshalAndExpand(file, cfg); err != nil {
			return nil, errors.WithMessagef(err, "failed to load config %s", file)
		}
	}

	if err := cfg.ApplyEnv(nil); err != nil {
		return nil, err
	}
	cfg.SetDefaults()

	logger.KV(xlog.DEBUG,
		"status", "loaded",
		"file", file,
		"model", cfg.LLM.Model,
		"tavily", cfg.Search.TavilyAPIKey != "",
	)
	return cfg, nil
}

// ApplyEnv overrides the values that have an `env` tag,
// nil environment means the process environment.
// Empty values are ignored.
func (c *Config) ApplyEnv(environment map[string]string) error {
	err := env.ParseWithOptions(c, env.Options{
		Environment: environment,
		FuncMap: map[reflect.Type]env.ParserFunc{
			reflect.TypeOf(0): func(v string) (any, error) {
				return cast.ToIntE(strings.TrimSpace(v))
			},
		},
	})
	if err != nil {
		return errors.WithMessage(err, "invalid environment")
	}
	return nil
}

// SetDefaults sets the optional values
func (c *Config) SetDefaults() {
	c.Agent.Name = values.StringsCoalesce(c.Agent.Name, DefaultAgentName)
	c.Agent.Persona = values.StringsCoalesce(c.Agent.Persona, DefaultPersona)
	c.Search.MaxResults = values.NumbersCoalesce(c.Search.MaxResults, DefaultSearchMaxResults)
	c.Web.Listen = values.StringsCoalesce(c.Web.Listen, DefaultListen)
	c.LogLevel = strings.ToUpper(values.StringsCoalesce(c.LogLevel, "INFO"))
	c.LLM.APIType = strings.ToUpper(c.LLM.APIType)
}

// Validate returns ErrMissingConfig naming every missing required value,
// requireRecipient is set by the script that sends to MY_WHATSAPP_NUMBER.
func (c *Config) Validate(requireRecipient bool) error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return values.StringsCoalesce(fld.Tag.Get("env"), fld.Name)
	})

	var missing, invalid []string
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return errors.WithStack(err)
		}
		for _, fe := range verrs {
			if fe.Tag() == "required" {
				missing = append(missing, fe.Field())
			} else {
				invalid = append(invalid, fe.Field())
			}
		}
	}
	if requireRecipient && c.Twilio.Recipient == "" {
		missing = append(missing, "MY_WHATSAPP_NUMBER")
	}

	if len(missing) > 0 {
		sort.Strings(missing)
		return errors.Mark(
			errors.Newf("missing required environment variables: %s", strings.Join(missing, ", ")),
			ErrMissingConfig)
	}
	if len(invalid) > 0 {
		return errors.Newf("invalid configuration values: %s", strings.Join(invalid, ", "))
	}
	return nil
}

// XLogLevel returns the xlog level for LogLevel
func (c *Config) XLogLevel() xlog.LogLevel {
	switch strings.ToUpper(c.LogLevel) {
	case "TRACE":
		return xlog.TRACE
	case "DEBUG":
		return xlog.DEBUG
	case "NOTICE":
		return xlog.NOTICE
	case "WARNING", "WARN":
		return xlog.WARNING
	case "ERROR":
		return xlog.ERROR
	case "CRITICAL":
		return xlog.CRITICAL
	}
	return xlog.INFO
}
