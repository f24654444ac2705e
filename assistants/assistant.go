package assistants

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/auntie/pkg/llms"
	"github.com/effective-security/auntie/pkg/llmutils"
	"github.com/effective-security/auntie/pkg/metricskey"
	"github.com/effective-security/auntie/pkg/schema"
	"github.com/effective-security/auntie/tools"
	"github.com/effective-security/x/slices"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
	"github.com/invopop/jsonschema"
)

// Assistant runs a system persona with a set of tools against a model.
type Assistant struct {
	LLM llms.Model

	toolsByName map[string]tools.ITool
	toolsNames  []string
	tools       []tools.ITool
	llmToolDefs []llms.Tool

	cfg         *Config
	name        string
	description string
	sysprompt   string
	runMessages []llms.Message
}

var _ IAssistant = (*Assistant)(nil)

// NewAssistant returns an assistant with the system prompt
func NewAssistant(llmModel llms.Model, systemPrompt string, options ...Option) *Assistant {
	return &Assistant{
		cfg:         NewConfig(options...),
		LLM:         llmModel,
		sysprompt:   systemPrompt,
		name:        "Generic Assistant",
		description: "An AI assistant that can perform various tasks.",
	}
}

// WithName sets the name of the Assistant.
func (a *Assistant) WithName(name string) *Assistant {
	a.name = name
	return a
}

// WithDescription sets the description of the Assistant.
func (a *Assistant) WithDescription(description string) *Assistant {
	a.description = description
	return a
}

// Name returns the name of the Assistant.
func (a *Assistant) Name() string {
	return a.name
}

// Description returns the description of the Assistant.
func (a *Assistant) Description() string {
	return a.description
}

// SystemPrompt returns the persona instructions.
func (a *Assistant) SystemPrompt() string {
	return a.sysprompt
}

func (a *Assistant) GetTools() []tools.ITool {
	return a.tools
}

// GetCallConfig returns the config with per call options applied.
func (a *Assistant) GetCallConfig(opts ...Option) *Config {
	return a.cfg.Apply(opts...)
}

// WithTools adds new tools to the Assistant,
// existing tools are not replaced.
func (a *Assistant) WithTools(list ...tools.ITool) *Assistant {
	if a.toolsByName == nil {
		a.toolsByName = make(map[string]tools.ITool)
	}
	for _, tool := range list {
		name := tool.Name()
		// use lowercase for the key
		nameLowerCase := strings.ToLower(name)
		if a.toolsByName[nameLowerCase] != nil {
			continue
		}

		params, err := toolParameters(tool)
		if err != nil {
			logger.KV(xlog.ERROR,
				"assistant", a.name,
				"status", "invalid_tool_parameters",
				"tool", name,
				"err", err.Error(),
			)
			continue
		}

		a.toolsByName[nameLowerCase] = tool
		a.toolsNames = append(a.toolsNames, name)
		a.tools = append(a.tools, tool)
		a.llmToolDefs = append(a.llmToolDefs, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        name,
				Description: tool.Description(),
				Parameters:  params,
			},
		})
	}
	return a
}

func toolParameters(tool tools.ITool) (*jsonschema.Schema, error) {
	switch p := tool.Parameters().(type) {
	case nil:
		return nil, nil
	case *jsonschema.Schema:
		return p, nil
	default:
		return schema.FromAny(p)
	}
}

// LastRunMessages returns the messages of the last run,
// excluding the system prompt.
func (a *Assistant) LastRunMessages() []llms.Message {
	return a.runMessages
}

// Call executes the assistant with the given input.
func (a *Assistant) Call(ctx context.Context, input *CallInput) (*llms.ContentResponse, error) {
	started := time.Now()
	defer metricskey.PerfAssistantCall.MeasureSince(started, a.Name())

	// reset the run messages
	a.runMessages = nil
	// create a per call config
	cfg := a.GetCallConfig(input.Options...)

	callback := cfg.CallbackHandler
	if callback != nil {
		callback.OnAssistantStart(ctx, a, input.Input)
	}

	resp, messages, err := a.run(ctx, cfg, input)
	if err != nil {
		metricskey.StatsAssistantCallsFailed.IncrCounter(1, a.Name())
		if callback != nil {
			callback.OnAssistantError(ctx, a, input.Input, err, messages)
		}
		return nil, err
	}
	metricskey.StatsAssistantCallsSucceeded.IncrCounter(1, a.Name())
	if callback != nil {
		callback.OnAssistantEnd(ctx, a, input.Input, resp, messages)
	}
	return resp, nil
}

func (a *Assistant) run(ctx context.Context, cfg *Config, input *CallInput) (*llms.ContentResponse, []llms.Message, error) {
	messageHistory := []llms.Message{
		llms.MessageFromTextParts(llms.RoleSystem, strings.TrimRight(a.sysprompt, "\n")),
	}
	if input.Input != "" {
		userMessage := llms.MessageFromTextParts(llms.RoleHuman, input.Input)
		messageHistory = append(messageHistory, userMessage)
		a.runMessages = append(a.runMessages, userMessage)
	}
	messageHistory = append(messageHistory, input.Messages...)

	var extraOptions []llms.CallOption
	if len(a.llmToolDefs) > 0 {
		prov := a.LLM.GetProviderType()
		if !prov.Supports(llms.CapabilityFunctionCalling) {
			return nil, messageHistory, errors.Newf("assistant %s: the LLM does not support function calling", a.name)
		}
		extraOptions = append(extraOptions, llms.WithTools(a.llmToolDefs))
	}
	callOpts := cfg.GetCallOptions(extraOptions...)

	assistantName := a.Name()
	modelName := a.LLM.GetName()

	var resp *llms.ContentResponse
	var err error
	var totalToolExecuted int
	for {
		if cfg.MaxMessages > 0 && len(messageHistory) > cfg.MaxMessages {
			return nil, messageHistory, errors.Newf("assistant %s: the messages count exceeded limit", assistantName)
		}

		if cfg.CallbackHandler != nil {
			cfg.CallbackHandler.OnAssistantLLMCallStart(ctx, a, a.LLM, messageHistory)
		}

		bytesSent := llmutils.CountMessagesContentSize(messageHistory)
		metricskey.StatsLLMMessagesSent.IncrCounter(float64(len(messageHistory)), assistantName, modelName)
		metricskey.StatsLLMBytesSent.IncrCounter(float64(bytesSent), assistantName, modelName)

		resp, err = a.LLM.GenerateContent(ctx, messageHistory, callOpts...)
		if err != nil {
			return nil, messageHistory, errors.Wrap(err, "failed to generate content from LLM")
		}

		if cfg.CallbackHandler != nil {
			cfg.CallbackHandler.OnAssistantLLMCallEnd(ctx, a, a.LLM, resp)
		}

		metricskey.StatsLLMBytesReceived.IncrCounter(float64(llmutils.CountResponseContentSize(resp)), assistantName, modelName)
		tokensIn, tokensOut, _ := llmutils.CountTokens(resp)
		metricskey.StatsLLMInputTokens.IncrCounter(float64(tokensIn), assistantName, modelName)
		metricskey.StatsLLMOutputTokens.IncrCounter(float64(tokensOut), assistantName, modelName)

		if len(resp.Choices) == 0 {
			logger.ContextKV(ctx, xlog.ERROR,
				"assistant", assistantName,
				"status", "empty_choices",
				"input", slices.StringUpto(input.Input, 64),
			)
			return nil, messageHistory, errors.Newf("assistant %s: LLM returned empty response with no choices", assistantName)
		}

		var executed int
		executed, messageHistory = a.executeToolCalls(ctx, cfg, messageHistory, resp)
		if executed == 0 {
			break
		}

		totalToolExecuted += executed
		if cfg.MaxToolCalls > 0 && totalToolExecuted > cfg.MaxToolCalls {
			return nil, messageHistory, errors.Newf("assistant %s: the tool calls limit is exceeded", assistantName)
		}
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"assistant", assistantName,
		"status", "response_analysis",
		"choices_count", len(resp.Choices),
		"tool_calls", totalToolExecuted,
	)

	result := GetContent(resp)
	aiMessage := llms.MessageFromTextParts(llms.RoleAI, result)
	messageHistory = append(messageHistory, aiMessage)
	a.runMessages = append(a.runMessages, aiMessage)

	return resp, messageHistory, nil
}

// executeToolCalls executes the tool calls of all choices in order, and
// returns the number of the calls and the updated message history.
func (a *Assistant) executeToolCalls(ctx context.Context, cfg *Config, messageHistory []llms.Message, resp *llms.ContentResponse) (int, []llms.Message) {
	var toolCalls []llms.ToolCall
	for _, choice := range resp.Choices {
		for i, toolCall := range choice.ToolCalls {
			if toolCall.FunctionCall == nil {
				continue
			}
			if toolCall.ID == "" {
				toolCall.ID = fmt.Sprintf("%s_%d", toolCall.FunctionCall.Name, i)
			}
			toolCall.Type = values.StringsCoalesce(toolCall.Type, "function")
			toolCalls = append(toolCalls, toolCall)

			logger.ContextKV(ctx, xlog.DEBUG,
				"assistant", a.name,
				"status", "tool_call_found",
				"tool_call_id", toolCall.ID,
				"tool_call_name", toolCall.FunctionCall.Name,
			)
		}
	}
	if len(toolCalls) == 0 {
		return 0, messageHistory
	}

	assistantResponse := llms.MessageFromToolCalls(llms.RoleAI, toolCalls...)
	messageHistory = append(messageHistory, assistantResponse)
	a.runMessages = append(a.runMessages, assistantResponse)

	for _, tc := range toolCalls {
		content := a.executeToolCall(ctx, cfg, tc)

		toolCallResponse := llms.MessageFromToolResponse(llms.RoleTool, llms.ToolCallResponse{
			ToolCallID: tc.ID,
			Name:       tc.FunctionCall.Name,
			Content:    content,
		})

		logger.ContextKV(ctx, xlog.DEBUG,
			"assistant", a.name,
			"status", "tool_call_response",
			"tool_call_id", tc.ID,
			"tool_name", tc.FunctionCall.Name,
			"content_length", len(content),
		)

		messageHistory = append(messageHistory, toolCallResponse)
		a.runMessages = append(a.runMessages, toolCallResponse)
	}

	return len(toolCalls), messageHistory
}

// executeToolCall returns the content for the model,
// a tool failure is reported to the model instead of failing the run.
func (a *Assistant) executeToolCall(ctx context.Context, cfg *Config, tc llms.ToolCall) string {
	toolName := tc.FunctionCall.Name
	toolArgs := tc.FunctionCall.Arguments

	// use lowercase for the key
	tool := a.toolsByName[strings.ToLower(toolName)]
	if tool == nil {
		metricskey.StatsToolCallsNotFound.IncrCounter(1, toolName)
		if cfg.CallbackHandler != nil {
			cfg.CallbackHandler.OnToolNotFound(ctx, a, toolName)
		}

		availableTools := strings.Join(a.toolsNames, ", ")
		logger.ContextKV(ctx, xlog.WARNING,
			"assistant", a.name,
			"status", "tool_not_found",
			"tool_name", toolName,
			"available_tools", availableTools,
		)
		return fmt.Sprintf("Tool `%s` not found. Please check the tool name and try again with exact match. Available tools: %s", toolName, availableTools)
	}

	if cfg.CallbackHandler != nil {
		cfg.CallbackHandler.OnToolStart(ctx, tool, a.Name(), toolArgs)
	}

	started := time.Now()
	res, err := tool.Call(ctx, toolArgs)
	metricskey.PerfToolCall.MeasureSince(started, toolName)

	if err != nil {
		metricskey.StatsToolCallsFailed.IncrCounter(1, toolName)
		if cfg.CallbackHandler != nil {
			cfg.CallbackHandler.OnToolError(ctx, tool, a.Name(), toolArgs, err)
		}

		logger.ContextKV(ctx, xlog.WARNING,
			"assistant", a.name,
			"status", "tool_call_failed",
			"tool", toolName,
			"err", err.Error(),
		)

		if errors.Is(err, tools.ErrFailedUnmarshalInput) {
			return "Tool call failed: failed to unmarshal input, check the JSON schema and try again."
		}
		return fmt.Sprintf("Tool call failed: %s", errors.WithMessagef(err, "failed to call tool %s", toolName).Error())
	}

	metricskey.StatsToolCallsSucceeded.IncrCounter(1, toolName)
	if cfg.CallbackHandler != nil {
		cfg.CallbackHandler.OnToolEnd(ctx, tool, a.Name(), toolArgs, res)
	}
	return res
}
