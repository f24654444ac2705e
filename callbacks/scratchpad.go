package callbacks

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/effective-security/auntie/assistants"
	"github.com/effective-security/auntie/chatmodel"
	"github.com/effective-security/auntie/pkg/llms"
	"github.com/effective-security/auntie/pkg/llmutils"
	"github.com/effective-security/auntie/tools"
)

// TimeNowFn is used for the trace timestamps
var TimeNowFn = time.Now

// RunStats is the summary of a single match run
type RunStats struct {
	ChatID string `json:"chat_id"`
	RunID  string `json:"run_id"`

	Duration        time.Duration `json:"duration"`
	TotalMessages   uint32        `json:"total_messages"`
	LLMCalls        uint32        `json:"llm_calls"`
	LLMBytesOut     uint64        `json:"llm_bytes_out"`
	LLMBytesIn      uint64        `json:"llm_bytes_in"`
	LLMInputTokens  uint64        `json:"llm_input_tokens"`
	LLMOutputTokens uint64        `json:"llm_output_tokens"`
	LLMTotalTokens  uint64        `json:"llm_total_tokens"`
	ToolCalls       uint32        `json:"tool_calls"`
	ToolCallsFailed uint32        `json:"tool_calls_failed"`
	ToolNotFound    uint32        `json:"tool_not_found"`
	Failed          bool          `json:"failed"`
}

// Scratchpad records a trace and the stats of the runs,
// the runs are keyed by the chat ID of the context.
type Scratchpad struct {
	runs map[string]*run
	mode Mode
	lock sync.Mutex
}

var _ assistants.Callback = (*Scratchpad)(nil)

func NewScratchpad(mode Mode) *Scratchpad {
	return &Scratchpad{
		runs: make(map[string]*run),
		mode: mode,
	}
}

// StartRun starts recording for the chat context in ctx.
func (l *Scratchpad) StartRun(ctx context.Context) {
	chatCtx := chatmodel.GetChatContext(ctx)
	if chatCtx == nil {
		return
	}

	r := &run{
		chatCtx: chatCtx,
		started: TimeNowFn(),
		stats: RunStats{
			ChatID: chatCtx.GetChatID(),
			RunID:  chatCtx.RunID(),
		},
	}

	l.lock.Lock()
	l.runs[chatCtx.GetChatID()] = r
	l.lock.Unlock()

	r.print("*** Run Started ***")
}

// EndRun stops recording and returns the stats and the trace,
// nil is returned when the run was not started.
func (l *Scratchpad) EndRun(ctx context.Context) (*RunStats, []byte) {
	r := l.getRun(ctx)
	if r == nil {
		return nil, nil
	}

	stats := r.stats
	stats.Duration = TimeNowFn().Sub(r.started)

	r.print(fmt.Sprintf("LLM calls: %d, Messages: %d, Bytes Out: %d, Bytes In: %d, Input Tokens: %d, Output Tokens: %d",
		stats.LLMCalls,
		stats.TotalMessages,
		stats.LLMBytesOut,
		stats.LLMBytesIn,
		stats.LLMInputTokens,
		stats.LLMOutputTokens,
	))
	r.print(fmt.Sprintf("Tool calls: %d, Failed: %d, Not Found: %d",
		stats.ToolCalls,
		stats.ToolCallsFailed,
		stats.ToolNotFound,
	))
	r.print(fmt.Sprintf("*** Run Ended. Duration: %s ***", stats.Duration))

	l.lock.Lock()
	delete(l.runs, stats.ChatID)
	l.lock.Unlock()

	return &stats, r.w.Bytes()
}

func (l *Scratchpad) getRun(ctx context.Context) *run {
	chatID := chatmodel.GetChatID(ctx)
	if chatID == "" {
		return nil
	}

	l.lock.Lock()
	defer l.lock.Unlock()
	return l.runs[chatID]
}

func (l *Scratchpad) OnAssistantStart(ctx context.Context, agent assistants.IAssistant, input string) {
	if r := l.getRun(ctx); r != nil {
		r.print(agent.Name(), "Input:", input)
	}
}

func (l *Scratchpad) OnAssistantEnd(ctx context.Context, agent assistants.IAssistant, _ string, resp *llms.ContentResponse, messages []llms.Message) {
	r := l.getRun(ctx)
	if r == nil {
		return
	}
	if l.mode == ModeVerbose {
		r.print(agent.Name(), "Output:", assistants.GetContent(resp))
		r.print(agent.Name(), printMessages(messages))
	}
	r.print(agent.Name(), "*** Assistant End ***")
}

func (l *Scratchpad) OnAssistantError(ctx context.Context, agent assistants.IAssistant, _ string, err error, messages []llms.Message) {
	r := l.getRun(ctx)
	if r == nil {
		return
	}
	r.lock.Lock()
	r.stats.Failed = true
	r.lock.Unlock()
	r.print(agent.Name(), "*** Error ***", err.Error())
	r.print(agent.Name(), printMessages(messages))
}

func (l *Scratchpad) OnAssistantLLMCallStart(ctx context.Context, agent assistants.IAssistant, llm llms.Model, payload []llms.Message) {
	r := l.getRun(ctx)
	if r == nil {
		return
	}

	count := uint32(len(payload))
	atomic.AddUint32(&r.stats.LLMCalls, 1)
	atomic.AddUint32(&r.stats.TotalMessages, count)
	atomic.AddUint64(&r.stats.LLMBytesOut, llmutils.CountMessagesContentSize(payload))

	r.print(agent.Name(), "*** LLM Call ***", fmt.Sprintf("%s model, %d messages", llm.GetName(), count))
}

func (l *Scratchpad) OnAssistantLLMCallEnd(ctx context.Context, agent assistants.IAssistant, llm llms.Model, resp *llms.ContentResponse) {
	r := l.getRun(ctx)
	if r == nil {
		return
	}

	tokensIn, tokensOut, tokensTotal := llmutils.CountTokens(resp)
	atomic.AddUint64(&r.stats.LLMBytesIn, llmutils.CountResponseContentSize(resp))
	atomic.AddUint64(&r.stats.LLMInputTokens, uint64(tokensIn))
	atomic.AddUint64(&r.stats.LLMOutputTokens, uint64(tokensOut))
	atomic.AddUint64(&r.stats.LLMTotalTokens, uint64(tokensTotal))

	r.print(agent.Name(), "*** LLM Call End ***", fmt.Sprintf("%s model, %d input tokens, %d output tokens", llm.GetName(), tokensIn, tokensOut))
}

func (l *Scratchpad) OnToolStart(ctx context.Context, tool tools.ITool, assistantName, input string) {
	r := l.getRun(ctx)
	if r == nil {
		return
	}
	atomic.AddUint32(&r.stats.ToolCalls, 1)
	r.print(assistantName, tool.Name(), "Input:", input)
}

func (l *Scratchpad) OnToolEnd(ctx context.Context, tool tools.ITool, assistantName, _ string, output string) {
	r := l.getRun(ctx)
	if r == nil {
		return
	}
	if l.mode == ModeVerbose {
		r.print(assistantName, tool.Name(), "Output:", output)
	}
	r.print(assistantName, tool.Name(), "*** Tool End ***")
}

func (l *Scratchpad) OnToolError(ctx context.Context, tool tools.ITool, assistantName, _ string, err error) {
	r := l.getRun(ctx)
	if r == nil {
		return
	}
	atomic.AddUint32(&r.stats.ToolCallsFailed, 1)
	r.print(assistantName, tool.Name(), "*** Tool Error ***", err.Error())
}

func (l *Scratchpad) OnToolNotFound(ctx context.Context, agent assistants.IAssistant, tool string) {
	r := l.getRun(ctx)
	if r == nil {
		return
	}
	atomic.AddUint32(&r.stats.ToolNotFound, 1)
	r.print(agent.Name(), "*** Tool Not Found ***", tool)
}

func printMessages(messages []llms.Message) string {
	var buf strings.Builder
	buf.WriteString("Messages:\n")
	for idx, msg := range messages {
		fmt.Fprintf(&buf, "[%d] %s:\n", idx, msg.Role)
		for _, part := range msg.Parts {
			switch typ := part.(type) {
			case llms.TextContent:
				fmt.Fprintf(&buf, "  - text, %d bytes\n", len(typ.Text))
			case llms.ToolCall:
				fmt.Fprintf(&buf, "  - %s\n", typ.String())
			case llms.ToolCallResponse:
				fmt.Fprintf(&buf, "  - %s\n", typ.String())
			}
		}
	}
	return strings.TrimRight(buf.String(), "\n")
}

type run struct {
	chatCtx chatmodel.ChatContext
	w       bytes.Buffer
	started time.Time
	lock    sync.Mutex
	stats   RunStats
}

// print writes the entries in the following format:
// [timestamp chatID.runID] entry entry\n
func (r *run) print(entries ...string) {
	r.lock.Lock()
	defer r.lock.Unlock()

	_, _ = r.w.WriteString(TimeNowFn().Format("2006-01-02 15:04:05"))
	_, _ = r.w.WriteString(" ")
	_, _ = r.w.WriteString(r.chatCtx.GetChatID())
	_, _ = r.w.WriteString(".")
	_, _ = r.w.WriteString(r.chatCtx.RunID())
	_, _ = r.w.WriteString(" ")
	_, _ = r.w.WriteString(strings.Join(entries, " "))
	_, _ = r.w.WriteString("\n")
}
