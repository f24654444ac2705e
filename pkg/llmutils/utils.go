package llmutils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/effective-security/auntie/pkg/llms"
	"github.com/effective-security/x/values"
)

// CleanJSON returns the JSON object or array embedded in a model reply,
// dropping any chatter before the first opening and after the last closing
// bracket, for example `Here you go: {json}`.
func CleanJSON(bs []byte) []byte {
	start := firstIndexOfAny(bs, '{', '[')
	if start == -1 {
		return bs
	}
	bs = bs[start:]

	end := max(bytes.LastIndexByte(bs, '}'), bytes.LastIndexByte(bs, ']'))
	if end == -1 {
		return bs
	}
	return bs[:end+1]
}

func firstIndexOfAny(bs []byte, chars ...byte) int {
	idx := -1
	for _, c := range chars {
		i := bytes.IndexByte(bs, c)
		if i != -1 && (idx == -1 || i < idx) {
			idx = i
		}
	}
	return idx
}

// ToJSON returns compact JSON, or empty string if the value can't be marshaled
func ToJSON(val any) string {
	js, _ := json.Marshal(val)
	return string(js)
}

// PrintMessages writes the conversation as `Role: content` lines.
func PrintMessages(w io.Writer, msgs []llms.Message) {
	for _, m := range msgs {
		var role string
		switch m.Role {
		case llms.RoleHuman:
			role = "Human"
		case llms.RoleAI:
			role = "AI"
		case llms.RoleSystem:
			role = "System"
		case llms.RoleTool:
			role = "Tool"
		default:
			role = string(m.Role)
		}
		for _, p := range m.Parts {
			switch pp := p.(type) {
			case llms.TextContent:
				fmt.Fprintf(w, "%s: %s\n", role, pp.Text)
			case llms.ToolCall:
				fmt.Fprintf(w, "%s: Tool Call: %s(%s)\n", role, pp.FunctionCall.Name, pp.FunctionCall.Arguments)
			case llms.ToolCallResponse:
				fmt.Fprintf(w, "%s: %s: Response: %s\n", role, pp.Name, pp.Content)
			}
		}
	}
}

// CountMessagesContentSize returns the number of bytes in the messages
func CountMessagesContentSize(msgs []llms.Message) uint64 {
	var size uint64
	for _, m := range msgs {
		size += uint64(len(m.Role))
		for _, p := range m.Parts {
			switch pp := p.(type) {
			case llms.TextContent:
				size += uint64(len(pp.Text))
			case llms.ToolCall:
				size += uint64(len(pp.ID) + len(pp.Type))
				if pp.FunctionCall != nil {
					size += uint64(len(pp.FunctionCall.Name) + len(pp.FunctionCall.Arguments))
				}
			case llms.ToolCallResponse:
				size += uint64(len(pp.ToolCallID) + len(pp.Name) + len(pp.Content))
			}
		}
	}
	return size
}

// CountResponseContentSize returns the number of bytes in the response
func CountResponseContentSize(resp *llms.ContentResponse) uint64 {
	var size uint64
	for _, choice := range resp.Choices {
		size += uint64(len(choice.Content))
		for _, tc := range choice.ToolCalls {
			size += uint64(len(tc.ID) + len(tc.Type))
			if tc.FunctionCall != nil {
				size += uint64(len(tc.FunctionCall.Name) + len(tc.FunctionCall.Arguments))
			}
		}
	}
	return size
}

// CountTokens sums the token usage reported by the provider in GenerationInfo
func CountTokens(resp *llms.ContentResponse) (in, out, total int64) {
	for _, choice := range resp.Choices {
		ma := values.MapAny(choice.GenerationInfo)
		in += ma.Int64("InputTokens")
		out += ma.Int64("OutputTokens")
		total += ma.Int64("TotalTokens")
	}
	return
}

// EnsureEndsWithNewline trims the surrounding spaces and makes sure
// a non-empty text ends with exactly one newline.
func EnsureEndsWithNewline(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	return s + "\n"
}
