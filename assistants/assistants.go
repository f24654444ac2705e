package assistants

import (
	"context"
	"strings"

	"github.com/effective-security/auntie/pkg/llms"
	"github.com/effective-security/auntie/tools"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/auntie", "assistants")

//go:generate mockgen -destination=../mocks/mockllms/llm_mock.gen.go -package mockllms github.com/effective-security/auntie/pkg/llms Model

// IAssistant is an agent backed by a model
type IAssistant interface {
	// Name returns the name of the Assistant.
	Name() string
	// Description returns the description of the Assistant.
	Description() string
	// Call executes the assistant with the given input.
	Call(ctx context.Context, input *CallInput) (*llms.ContentResponse, error)
}

// CallInput is the input of a single assistant run
type CallInput struct {
	// Input is the user message, sent as the only human turn
	Input string
	// Messages are optional messages appended after the input
	Messages []llms.Message
	// Options override the assistant config for this call
	Options []Option
}

// Callback receives the assistant lifecycle events
type Callback interface {
	tools.Callback
	OnAssistantStart(ctx context.Context, agent IAssistant, input string)
	OnAssistantEnd(ctx context.Context, agent IAssistant, input string, resp *llms.ContentResponse, messages []llms.Message)
	OnAssistantError(ctx context.Context, agent IAssistant, input string, err error, messages []llms.Message)
	OnAssistantLLMCallStart(ctx context.Context, agent IAssistant, llm llms.Model, payload []llms.Message)
	OnAssistantLLMCallEnd(ctx context.Context, agent IAssistant, llm llms.Model, resp *llms.ContentResponse)
	OnToolNotFound(ctx context.Context, agent IAssistant, tool string)
}

// GetContent returns the text of the response,
// multiple choices are separated with a blank line.
func GetContent(resp *llms.ContentResponse) string {
	if resp == nil {
		return ""
	}
	parts := make([]string, 0, len(resp.Choices))
	for _, choice := range resp.Choices {
		parts = append(parts, choice.Content)
	}
	return strings.Join(parts, "\n\n")
}
