package openai

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/auntie/pkg/llms"
	"github.com/effective-security/auntie/pkg/schema"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/auntie/pkg/llms", "openai")

var (
	// ErrEmptyResponse is returned when the endpoint replied with no choices.
	ErrEmptyResponse = errors.New("no response")
	// ErrMissingToken is returned when no API key is provided.
	ErrMissingToken = errors.New("missing the API key")
)

// LLM is a chat model served by an OpenAI-compatible
// chat completions endpoint.
type LLM struct {
	client   openai.Client
	model    string
	provider llms.ProviderType
}

var _ llms.Model = (*LLM)(nil)

// New returns a new OpenAI-compatible LLM.
func New(opts ...Option) (*LLM, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.token == "" {
		return nil, ErrMissingToken
	}

	baseURL := values.StringsCoalesce(o.baseURL, DefaultBaseURL)
	provider := o.provider
	if provider == "" {
		provider = llms.ProviderOpenAI
		if baseURL == DefaultBaseURL {
			provider = llms.ProviderGoogleAI
		}
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(o.token),
		option.WithBaseURL(baseURL),
		option.WithMaxRetries(o.maxRetries),
	}
	if o.httpClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(o.httpClient))
	}

	return &LLM{
		client:   openai.NewClient(reqOpts...),
		model:    values.StringsCoalesce(o.model, DefaultModel),
		provider: provider,
	}, nil
}

// GetProviderType implements the Model interface.
func (o *LLM) GetProviderType() llms.ProviderType {
	return o.provider
}

// GetName implements the Model interface.
func (o *LLM) GetName() string {
	return o.model
}

// GenerateContent implements the Model interface.
func (o *LLM) GenerateContent(ctx context.Context, messages []llms.Message, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.NewCallOptions(options...)

	req := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(values.StringsCoalesce(opts.Model, o.model)),
	}

	for _, m := range messages {
		msg, err := messageFromMessage(m)
		if err != nil {
			return nil, err
		}
		req.Messages = append(req.Messages, msg)
	}

	for _, t := range opts.Tools {
		tool, err := toolFromTool(t)
		if err != nil {
			return nil, errors.WithMessage(err, "failed to convert tool")
		}
		req.Tools = append(req.Tools, tool)
	}

	if opts.ToolChoice != "" {
		req.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{
			OfAuto: openai.String(opts.ToolChoice),
		}
	}
	if opts.MaxTokens > 0 {
		req.MaxCompletionTokens = openai.Int(int64(opts.MaxTokens))
	}
	if opts.HasTemperature() {
		req.Temperature = openai.Float(opts.Temperature)
	}
	if opts.TopP > 0 {
		req.TopP = openai.Float(opts.TopP)
	}
	if opts.Seed != 0 {
		req.Seed = openai.Int(int64(opts.Seed))
	}
	if opts.N > 0 {
		req.N = openai.Int(int64(opts.N))
	}
	if len(opts.StopWords) > 0 {
		req.Stop = openai.ChatCompletionNewParamsStopUnion{
			OfStringArray: opts.StopWords,
		}
	}
	if len(opts.Metadata) > 0 {
		req.Metadata = shared.Metadata(opts.Metadata)
	}

	result, err := o.client.Chat.Completions.New(ctx, req)
	if err != nil {
		logger.ContextKV(ctx, xlog.DEBUG,
			"status", "chat_completion_failed",
			"model", req.Model,
			"err", err.Error(),
		)
		return nil, errors.Wrap(err, "chat completion failed")
	}
	if len(result.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	choices := make([]*llms.ContentChoice, len(result.Choices))
	for i, c := range result.Choices {
		choice := &llms.ContentChoice{
			Content:    c.Message.Content,
			StopReason: c.FinishReason,
			GenerationInfo: map[string]any{
				"InputTokens":  result.Usage.PromptTokens,
				"OutputTokens": result.Usage.CompletionTokens,
				"TotalTokens":  result.Usage.TotalTokens,
			},
		}
		for _, tc := range c.Message.ToolCalls {
			choice.ToolCalls = append(choice.ToolCalls, llms.ToolCall{
				ID:   tc.ID,
				Type: values.StringsCoalesce(string(tc.Type), "function"),
				FunctionCall: &llms.FunctionCall{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			})
		}
		choices[i] = choice
	}

	return &llms.ContentResponse{Choices: choices}, nil
}

// messageFromMessage converts the provider-neutral message
// into a chat completion message.
func messageFromMessage(m llms.Message) (openai.ChatCompletionMessageParamUnion, error) {
	switch m.Role {
	case llms.RoleSystem:
		return openai.SystemMessage(m.TextParts()), nil
	case llms.RoleHuman:
		return openai.UserMessage(m.TextParts()), nil
	case llms.RoleAI:
		calls := m.ToolCalls()
		if len(calls) == 0 {
			return openai.AssistantMessage(m.TextParts()), nil
		}
		msg := &openai.ChatCompletionAssistantMessageParam{}
		if text := m.TextParts(); text != "" {
			msg.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
				OfString: openai.String(text),
			}
		}
		for _, tc := range calls {
			msg.ToolCalls = append(msg.ToolCalls, openai.ChatCompletionMessageToolCallUnionParam{
				OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
					ID: tc.ID,
					Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
						Name:      tc.FunctionCall.Name,
						Arguments: tc.FunctionCall.Arguments,
					},
				},
			})
		}
		return openai.ChatCompletionMessageParamUnion{OfAssistant: msg}, nil
	case llms.RoleTool:
		if len(m.Parts) != 1 {
			return openai.ChatCompletionMessageParamUnion{}, errors.Newf("expected exactly one part for role %s, got %d", m.Role, len(m.Parts))
		}
		resp, ok := m.Parts[0].(llms.ToolCallResponse)
		if !ok {
			return openai.ChatCompletionMessageParamUnion{}, errors.Newf("expected part of type ToolCallResponse for role %s, got %T", m.Role, m.Parts[0])
		}
		return openai.ToolMessage(resp.Content, resp.ToolCallID), nil
	default:
		return openai.ChatCompletionMessageParamUnion{}, errors.Wrapf(llms.ErrUnexpectedRole, "role %s", m.Role)
	}
}

// toolFromTool converts an llms.Tool to a function tool definition.
func toolFromTool(t llms.Tool) (openai.ChatCompletionToolUnionParam, error) {
	if t.Type != "function" || t.Function == nil {
		return openai.ChatCompletionToolUnionParam{}, errors.Newf("tool type %s not supported", t.Type)
	}

	params, err := schema.ToMap(t.Function.Parameters)
	if err != nil {
		return openai.ChatCompletionToolUnionParam{}, err
	}

	def := openai.FunctionDefinitionParam{
		Name:        t.Function.Name,
		Description: openai.String(t.Function.Description),
		Parameters:  openai.FunctionParameters(params),
	}
	if t.Function.Strict {
		def.Strict = openai.Bool(true)
	}
	return openai.ChatCompletionFunctionTool(def), nil
}
