package assistants_test

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/auntie/assistants"
	"github.com/effective-security/auntie/mocks/mockllms"
	"github.com/effective-security/auntie/mocks/mocktools"
	"github.com/effective-security/auntie/pkg/llms"
	"github.com/effective-security/auntie/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const systemPrompt = "You are a warm and friendly matchmaker."

func newMockLLM(ctrl *gomock.Controller) *mockllms.MockModel {
	mockLLM := mockllms.NewMockModel(ctrl)
	mockLLM.EXPECT().GetName().Return("gemini-2.0-flash").AnyTimes()
	mockLLM.EXPECT().GetProviderType().Return(llms.ProviderGoogleAI).AnyTimes()
	return mockLLM
}

func newMockTool(ctrl *gomock.Controller, name string) *mocktools.MockTool[any, any] {
	mockTool := mocktools.NewMockTool[any, any](ctrl)
	mockTool.EXPECT().Name().Return(name).AnyTimes()
	mockTool.EXPECT().Description().Return("Test tool " + name).AnyTimes()
	mockTool.EXPECT().Parameters().Return(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"min_age": map[string]any{"type": "integer"},
		},
	}).AnyTimes()
	return mockTool
}

func toolCallResponse(id, name, args string) *llms.ContentResponse {
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{
			{
				StopReason: "tool_calls",
				ToolCalls: []llms.ToolCall{
					{
						ID:           id,
						Type:         "function",
						FunctionCall: &llms.FunctionCall{Name: name, Arguments: args},
					},
				},
			},
		},
	}
}

func textResponse(text string) *llms.ContentResponse {
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{
			{Content: text, StopReason: "stop"},
		},
	}
}

func Test_Assistant_BuilderMethods(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLLM := newMockLLM(ctrl)
	assistant := assistants.NewAssistant(mockLLM, systemPrompt)
	assert.Equal(t, "Generic Assistant", assistant.Name())
	assert.NotEmpty(t, assistant.Description())
	assert.Equal(t, systemPrompt, assistant.SystemPrompt())

	assistant = assistant.WithName("Auntie").WithDescription("Finds matches")
	assert.Equal(t, "Auntie", assistant.Name())
	assert.Equal(t, "Finds matches", assistant.Description())
	assert.Empty(t, assistant.GetTools())
	assert.Empty(t, assistant.LastRunMessages())

	tool := newMockTool(ctrl, "get_user_data")
	assistant.WithTools(tool)
	// duplicates are ignored, names are case insensitive
	assistant.WithTools(newMockTool(ctrl, "GET_USER_DATA"))
	require.Len(t, assistant.GetTools(), 1)
	assert.Equal(t, "get_user_data", assistant.GetTools()[0].Name())
}

func Test_Assistant_CallConfig(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	assistant := assistants.NewAssistant(newMockLLM(ctrl), systemPrompt,
		assistants.WithMaxToolCalls(5),
		assistants.WithTemperature(0.2),
	)
	cfg := assistant.GetCallConfig(assistants.WithMaxToolCalls(1), assistants.WithModel("gpt-4o"))
	assert.Equal(t, 1, cfg.MaxToolCalls)
	assert.Equal(t, "gpt-4o", cfg.Model)
	assert.Equal(t, 0.2, cfg.Temperature)
	assert.Len(t, cfg.GetCallOptions(), 2)

	// the assistant config is not modified by a per call option
	assert.Equal(t, 5, assistant.GetCallConfig().MaxToolCalls)
	assert.Empty(t, assistant.GetCallConfig().Model)
}

func Test_Assistant_Call_NoTools(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLLM := newMockLLM(ctrl)
	mockLLM.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, messages []llms.Message, _ ...llms.CallOption) (*llms.ContentResponse, error) {
			require.Len(t, messages, 2)
			assert.Equal(t, llms.RoleSystem, messages[0].Role)
			assert.Equal(t, systemPrompt, messages[0].TextParts())
			assert.Equal(t, llms.RoleHuman, messages[1].Role)
			assert.Equal(t, "Hello Auntie", messages[1].TextParts())
			return textResponse("Hello beta!"), nil
		})

	assistant := assistants.NewAssistant(mockLLM, systemPrompt).WithName("Auntie")
	resp, err := assistant.Call(context.Background(), &assistants.CallInput{Input: "Hello Auntie"})
	require.NoError(t, err)
	assert.Equal(t, "Hello beta!", assistants.GetContent(resp))

	msgs := assistant.LastRunMessages()
	require.Len(t, msgs, 2)
	assert.Equal(t, llms.RoleHuman, msgs[0].Role)
	assert.Equal(t, llms.RoleAI, msgs[1].Role)
	assert.Equal(t, "Hello beta!", msgs[1].TextParts())
}

func Test_Assistant_Call_WithToolCall(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLLM := newMockLLM(ctrl)
	tool := newMockTool(ctrl, "get_user_data")
	tool.EXPECT().Call(gomock.Any(), `{"min_age":24}`).
		Return(`[{"name":"Zainscity","age":25},{"name":"Ayesha","age":28}]`, nil)

	gomock.InOrder(
		mockLLM.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, messages []llms.Message, opts ...llms.CallOption) (*llms.ContentResponse, error) {
				require.Len(t, messages, 2)
				co := llms.NewCallOptions(opts...)
				require.Len(t, co.Tools, 1)
				assert.Equal(t, "get_user_data", co.Tools[0].Function.Name)
				require.NotNil(t, co.Tools[0].Function.Parameters)
				return toolCallResponse("call_1", "get_user_data", `{"min_age":24}`), nil
			}),
		mockLLM.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, messages []llms.Message, _ ...llms.CallOption) (*llms.ContentResponse, error) {
				require.Len(t, messages, 4)
				assert.Equal(t, llms.RoleAI, messages[2].Role)
				calls := messages[2].ToolCalls()
				require.Len(t, calls, 1)
				assert.Equal(t, "call_1", calls[0].ID)

				assert.Equal(t, llms.RoleTool, messages[3].Role)
				resp, ok := messages[3].Parts[0].(llms.ToolCallResponse)
				require.True(t, ok)
				assert.Equal(t, "call_1", resp.ToolCallID)
				assert.Equal(t, "get_user_data", resp.Name)
				assert.Contains(t, resp.Content, "Zainscity")
				return textResponse("Zainscity is 25, a lovely match!"), nil
			}),
	)

	assistant := assistants.NewAssistant(mockLLM, systemPrompt).WithName("Auntie")
	assistant.WithTools(tool)

	resp, err := assistant.Call(context.Background(), &assistants.CallInput{Input: "Find a match of at least 24"})
	require.NoError(t, err)
	assert.Equal(t, "Zainscity is 25, a lovely match!", assistants.GetContent(resp))
	assert.Len(t, assistant.LastRunMessages(), 4)
}

func Test_Assistant_Call_ToolFailures(t *testing.T) {
	tcases := []struct {
		name     string
		toolName string
		toolErr  error
		exp      string
	}{
		{
			name:     "not_found",
			toolName: "search_bing",
			exp:      "Tool `search_bing` not found. Please check the tool name and try again with exact match. Available tools: get_user_data",
		},
		{
			name:     "unmarshal",
			toolName: "get_user_data",
			toolErr:  errors.Wrap(tools.ErrFailedUnmarshalInput, "min_age"),
			exp:      "Tool call failed: failed to unmarshal input, check the JSON schema and try again.",
		},
		{
			name:     "failed",
			toolName: "get_user_data",
			toolErr:  errors.New("directory is unavailable"),
			exp:      "Tool call failed: failed to call tool get_user_data: directory is unavailable",
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			mockLLM := newMockLLM(ctrl)
			tool := newMockTool(ctrl, "get_user_data")
			if tc.toolErr != nil {
				tool.EXPECT().Call(gomock.Any(), gomock.Any()).Return("", tc.toolErr)
			}

			gomock.InOrder(
				mockLLM.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(toolCallResponse("call_1", tc.toolName, `{"min_age":"x"}`), nil),
				mockLLM.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, messages []llms.Message, _ ...llms.CallOption) (*llms.ContentResponse, error) {
						require.Len(t, messages, 4)
						resp, ok := messages[3].Parts[0].(llms.ToolCallResponse)
						require.True(t, ok)
						assert.Equal(t, tc.exp, resp.Content)
						return textResponse("Sorry, beta."), nil
					}),
			)

			assistant := assistants.NewAssistant(mockLLM, systemPrompt).WithTools(tool)
			resp, err := assistant.Call(context.Background(), &assistants.CallInput{Input: "Find a match"})
			require.NoError(t, err)
			assert.Equal(t, "Sorry, beta.", assistants.GetContent(resp))
		})
	}
}

func Test_Assistant_Call_Errors(t *testing.T) {
	t.Run("llm_error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockLLM := newMockLLM(ctrl)
		mockLLM.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, errors.New("401 Unauthorized"))

		assistant := assistants.NewAssistant(mockLLM, systemPrompt)
		_, err := assistant.Call(context.Background(), &assistants.CallInput{Input: "hi"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "401 Unauthorized")
	})

	t.Run("empty_choices", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockLLM := newMockLLM(ctrl)
		mockLLM.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(&llms.ContentResponse{}, nil).Times(1)

		assistant := assistants.NewAssistant(mockLLM, systemPrompt).WithName("Auntie")
		_, err := assistant.Call(context.Background(), &assistants.CallInput{Input: "hi"})
		assert.EqualError(t, err, "assistant Auntie: LLM returned empty response with no choices")
	})

	t.Run("tool_calls_limit", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockLLM := newMockLLM(ctrl)
		tool := newMockTool(ctrl, "get_user_data")
		tool.EXPECT().Call(gomock.Any(), gomock.Any()).Return("[]", nil).Times(3)
		mockLLM.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(toolCallResponse("call_1", "get_user_data", `{"min_age":20}`), nil).Times(3)

		assistant := assistants.NewAssistant(mockLLM, systemPrompt, assistants.WithMaxToolCalls(2)).
			WithName("Auntie").
			WithTools(tool)
		_, err := assistant.Call(context.Background(), &assistants.CallInput{Input: "hi"})
		assert.EqualError(t, err, "assistant Auntie: the tool calls limit is exceeded")
	})

	t.Run("tool_calls_limit_reached", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockLLM := newMockLLM(ctrl)
		tool := newMockTool(ctrl, "get_user_data")
		tool.EXPECT().Call(gomock.Any(), `{"min_age":20}`).Return("[]", nil).Times(1)
		gomock.InOrder(
			mockLLM.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
				Return(toolCallResponse("call_1", "get_user_data", `{"min_age":20}`), nil),
			mockLLM.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
				Return(textResponse("no matches"), nil),
		)

		assistant := assistants.NewAssistant(mockLLM, systemPrompt, assistants.WithMaxToolCalls(1)).
			WithName("Auntie").
			WithTools(tool)
		resp, err := assistant.Call(context.Background(), &assistants.CallInput{Input: "hi"})
		require.NoError(t, err)
		assert.Equal(t, "no matches", assistants.GetContent(resp))
	})

	t.Run("messages_limit", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockLLM := newMockLLM(ctrl)
		assistant := assistants.NewAssistant(mockLLM, systemPrompt, assistants.WithMaxMessages(1)).WithName("Auntie")
		_, err := assistant.Call(context.Background(), &assistants.CallInput{Input: "hi"})
		assert.EqualError(t, err, "assistant Auntie: the messages count exceeded limit")
	})

	t.Run("no_function_calling", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockLLM := mockllms.NewMockModel(ctrl)
		mockLLM.EXPECT().GetName().Return("local").AnyTimes()
		mockLLM.EXPECT().GetProviderType().Return(llms.ProviderType("LOCAL")).AnyTimes()

		assistant := assistants.NewAssistant(mockLLM, systemPrompt).
			WithName("Auntie").
			WithTools(newMockTool(ctrl, "get_user_data"))
		_, err := assistant.Call(context.Background(), &assistants.CallInput{Input: "hi"})
		assert.EqualError(t, err, "assistant Auntie: the LLM does not support function calling")
	})
}

func Test_GetContent(t *testing.T) {
	assert.Empty(t, assistants.GetContent(nil))
	assert.Equal(t, "a\n\nb", assistants.GetContent(&llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: "a"}, {Content: "b"}},
	}))
}
