package matchmaker

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/auntie/assistants"
	"github.com/effective-security/auntie/chatmodel"
	"github.com/effective-security/auntie/config"
	"github.com/effective-security/auntie/notify"
	"github.com/effective-security/auntie/pkg/llmfactory"
	"github.com/effective-security/auntie/pkg/llms"
	"github.com/effective-security/auntie/pkg/metricskey"
	"github.com/effective-security/auntie/tools"
	"github.com/effective-security/auntie/tools/directory"
	"github.com/effective-security/auntie/tools/websearch"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/auntie", "matchmaker")

// AgentDescription is the description of the assistant
const AgentDescription = "Finds suitable matches in the user directory and tells about them from public profiles."

// Notifier sends the answer to the user
type Notifier interface {
	Send(ctx context.Context, message string) notify.Result
}

// Matchmaker runs the match requests,
// it is read-only after creation and safe for concurrent use.
type Matchmaker struct {
	llm      llms.Model
	tools    []tools.ITool
	cfg      config.Agent
	callback assistants.Callback
}

// New returns a Matchmaker with the tools
func New(llm llms.Model, cfg config.Agent, toolset ...tools.ITool) *Matchmaker {
	return &Matchmaker{
		llm:   llm,
		tools: toolset,
		cfg:   cfg,
	}
}

// NewFromConfig returns a Matchmaker with the model and the tools
// created from the config.
func NewFromConfig(cfg *config.Config) (*Matchmaker, error) {
	llm, err := llmfactory.NewLLM(cfg.LLM)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create LLM")
	}
	toolset, err := NewTools(cfg.Search)
	if err != nil {
		return nil, err
	}
	return New(llm, cfg.Agent, toolset...), nil
}

// WithCallback sets the callback of the assistant events
func (m *Matchmaker) WithCallback(callback assistants.Callback) *Matchmaker {
	m.callback = callback
	return m
}

// Tools returns the registered tools
func (m *Matchmaker) Tools() []tools.ITool {
	return m.tools
}

// NewTools returns the `get_user_data` and `search_duckduckgo` tools,
// the search is served by Tavily when its API key is configured.
func NewTools(cfg config.Search) ([]tools.ITool, error) {
	dirTool, err := directory.NewTool(directory.Default())
	if err != nil {
		return nil, err
	}

	var searcher websearch.Searcher
	if cfg.TavilyAPIKey != "" {
		searcher = websearch.NewTavily(cfg.TavilyAPIKey)
	}
	searchTool, err := websearch.New(searcher, cfg.MaxResults)
	if err != nil {
		return nil, err
	}

	logger.KV(xlog.DEBUG,
		"status", "tools_created",
		"search_backend", searchTool.Backend(),
		"max_results", searchTool.MaxResults(),
	)
	return []tools.ITool{dirTool, searchTool}, nil
}

// NewAssistant returns the assistant for a single run
func (m *Matchmaker) NewAssistant() *assistants.Assistant {
	var opts []assistants.Option
	if m.callback != nil {
		opts = append(opts, assistants.WithCallback(m.callback))
	}
	if m.cfg.MaxToolCalls > 0 {
		opts = append(opts, assistants.WithMaxToolCalls(m.cfg.MaxToolCalls))
	}

	return assistants.NewAssistant(m.llm, values.StringsCoalesce(m.cfg.Persona, config.DefaultPersona), opts...).
		WithName(values.StringsCoalesce(m.cfg.Name, config.DefaultAgentName)).
		WithDescription(AgentDescription).
		WithTools(m.tools...)
}

// RunMatch sends the prompt as the only user turn and returns the final answer
func (m *Matchmaker) RunMatch(ctx context.Context, prompt string) (string, error) {
	if chatmodel.GetChatContext(ctx) == nil {
		ctx = chatmodel.WithChatContext(ctx, chatmodel.NewChatContext("", nil))
	}

	agent := m.NewAssistant()
	defer metricskey.PerfMatchRun.MeasureSince(time.Now(), agent.Name())

	resp, err := agent.Call(ctx, &assistants.CallInput{Input: prompt})
	if err != nil {
		logger.ContextKV(ctx, xlog.ERROR,
			"status", "match_failed",
			"chat_id", chatmodel.GetChatID(ctx),
			"err", err.Error(),
		)
		return "", errors.WithMessage(err, "match request failed")
	}

	answer := assistants.GetContent(resp)
	logger.ContextKV(ctx, xlog.DEBUG,
		"status", "match_completed",
		"chat_id", chatmodel.GetChatID(ctx),
		"messages", len(agent.LastRunMessages()),
		"answer_size", len(answer),
	)
	return answer, nil
}

// MatchAndNotify runs the match and sends the answer,
// the notification outcome never fails the call.
func (m *Matchmaker) MatchAndNotify(ctx context.Context, prompt string, sender Notifier) (string, notify.Result, error) {
	answer, err := m.RunMatch(ctx, prompt)
	if err != nil {
		return "", notify.Result{}, err
	}
	if sender == nil {
		return answer, notify.Result{Err: errors.New("notification sender is not configured")}, nil
	}
	return answer, sender.Send(ctx, answer), nil
}
