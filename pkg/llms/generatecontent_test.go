package llms_test

import (
	"testing"

	"github.com/effective-security/auntie/pkg/llms"
	"github.com/effective-security/auntie/pkg/llmutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextParts(t *testing.T) {
	t.Parallel()
	type args struct {
		role  llms.Role
		parts []string
	}
	tests := []struct {
		name string
		args args
		want llms.Message
	}{
		{
			"basics",
			args{
				llms.RoleHuman,
				[]string{"a", "b", "c"},
			},
			llms.Message{
				Role:  llms.RoleHuman,
				Parts: []llms.ContentPart{llms.TextPart("a"), llms.TextPart("b"), llms.TextPart("c")},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			mc := llms.MessageFromTextParts(tt.args.role, tt.args.parts...)
			assert.Equal(t, tt.want, mc)
			assert.Equal(t, "a\nb\nc", mc.TextParts())
		})
	}
}

func Test_Message_JSON(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		msg     llms.Message
		js      string
		content string
	}{
		{
			"text",
			llms.MessageFromTextParts(llms.RoleHuman, "a", "b"),
			`{"role":"human","parts":[{"text":"a"},{"text":"b"}]}`,
			"a\nb\n",
		},
		{
			"tool_call",
			llms.MessageFromToolCalls(llms.RoleAI, llms.ToolCall{ID: "123", Type: "function", FunctionCall: &llms.FunctionCall{Name: "get_user_data", Arguments: `{"min_age":20}`}}),
			`{"role":"ai","parts":[{"id":"123","type":"function","function":{"name":"get_user_data","arguments":"{\"min_age\":20}"}}]}`,
			`Tool Call: {"id":"123","type":"function","function":{"name":"get_user_data","arguments":"{\"min_age\":20}"}}
`,
		},
		{
			"tool_response",
			llms.MessageFromToolResponse(llms.RoleTool, llms.ToolCallResponse{ToolCallID: "123", Name: "get_user_data", Content: "[]"}),
			`{"role":"tool","parts":[{"tool_call_id":"123","name":"get_user_data","content":"[]"}]}`,
			`Response: {"tool_call_id":"123","name":"get_user_data","content":"[]"}
`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.js, llmutils.ToJSON(tt.msg))
			assert.Equal(t, tt.content, tt.msg.GetContent())
		})
	}
}

func Test_ToolCalls(t *testing.T) {
	t.Parallel()

	msg := llms.MessageFromToolCalls(llms.RoleAI,
		llms.ToolCall{ID: "1", Type: "function", FunctionCall: &llms.FunctionCall{Name: "a", Arguments: "{}"}},
		llms.ToolCall{ID: "2", Type: "function", FunctionCall: &llms.FunctionCall{Name: "b", Arguments: "{}"}},
	)
	calls := msg.ToolCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, "a", calls[0].FunctionCall.Name)
	assert.Equal(t, "b", calls[1].FunctionCall.Name)
	assert.Equal(t, "ToolCall: 1 (a), input: {}", calls[0].String())
	assert.Empty(t, msg.TextParts())
}

func Test_ProviderCapabilities(t *testing.T) {
	t.Parallel()

	assert.True(t, llms.ProviderOpenAI.Supports(llms.CapabilityFunctionCalling))
	assert.True(t, llms.ProviderGoogleAI.Supports(llms.CapabilityFunctionCalling))
	assert.False(t, llms.ProviderType("UNKNOWN").Supports(llms.CapabilityFunctionCalling))
}
