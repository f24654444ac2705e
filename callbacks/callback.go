package callbacks

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/effective-security/auntie/assistants"
	"github.com/effective-security/auntie/chatmodel"
	"github.com/effective-security/auntie/pkg/llms"
	"github.com/effective-security/auntie/pkg/llmutils"
	"github.com/effective-security/auntie/tools"
	"github.com/effective-security/x/slices"
	"github.com/effective-security/xlog"
)

var (
	_ assistants.Callback = (*Noop)(nil)
	_ assistants.Callback = (*Printer)(nil)
	_ assistants.Callback = (*PackageLogger)(nil)
	_ assistants.Callback = (*Fanout)(nil)
	_ tools.Callback      = (*Fanout)(nil)
)

// Mode defines the mode for callback printing
type Mode int

const (
	// ModeDefault prints the events only
	ModeDefault Mode = iota
	// ModeVerbose prints the tool output and the model responses
	ModeVerbose
)

// Fanout forwards the events to multiple callbacks.
type Fanout struct {
	callbacks []assistants.Callback
}

func NewFanout(callbacks ...assistants.Callback) *Fanout {
	return &Fanout{callbacks: callbacks}
}

func (l *Fanout) Add(callback assistants.Callback) {
	l.callbacks = append(l.callbacks, callback)
}

func (l *Fanout) OnAssistantStart(ctx context.Context, agent assistants.IAssistant, input string) {
	for _, callback := range l.callbacks {
		callback.OnAssistantStart(ctx, agent, input)
	}
}

func (l *Fanout) OnAssistantEnd(ctx context.Context, agent assistants.IAssistant, input string, resp *llms.ContentResponse, messages []llms.Message) {
	for _, callback := range l.callbacks {
		callback.OnAssistantEnd(ctx, agent, input, resp, messages)
	}
}

func (l *Fanout) OnAssistantError(ctx context.Context, agent assistants.IAssistant, input string, err error, messages []llms.Message) {
	for _, callback := range l.callbacks {
		callback.OnAssistantError(ctx, agent, input, err, messages)
	}
}

func (l *Fanout) OnAssistantLLMCallStart(ctx context.Context, agent assistants.IAssistant, llm llms.Model, payload []llms.Message) {
	for _, callback := range l.callbacks {
		callback.OnAssistantLLMCallStart(ctx, agent, llm, payload)
	}
}

func (l *Fanout) OnAssistantLLMCallEnd(ctx context.Context, agent assistants.IAssistant, llm llms.Model, resp *llms.ContentResponse) {
	for _, callback := range l.callbacks {
		callback.OnAssistantLLMCallEnd(ctx, agent, llm, resp)
	}
}

func (l *Fanout) OnToolStart(ctx context.Context, tool tools.ITool, assistantName, input string) {
	for _, callback := range l.callbacks {
		callback.OnToolStart(ctx, tool, assistantName, input)
	}
}

func (l *Fanout) OnToolEnd(ctx context.Context, tool tools.ITool, assistantName, input string, output string) {
	for _, callback := range l.callbacks {
		callback.OnToolEnd(ctx, tool, assistantName, input, output)
	}
}

func (l *Fanout) OnToolError(ctx context.Context, tool tools.ITool, assistantName, input string, err error) {
	for _, callback := range l.callbacks {
		callback.OnToolError(ctx, tool, assistantName, input, err)
	}
}

func (l *Fanout) OnToolNotFound(ctx context.Context, agent assistants.IAssistant, tool string) {
	for _, callback := range l.callbacks {
		callback.OnToolNotFound(ctx, agent, tool)
	}
}

// Noop does nothing.
type Noop struct{}

func NewNoop() *Noop {
	return &Noop{}
}

func (l *Noop) OnAssistantStart(context.Context, assistants.IAssistant, string) {}
func (l *Noop) OnAssistantEnd(context.Context, assistants.IAssistant, string, *llms.ContentResponse, []llms.Message) {
}
func (l *Noop) OnAssistantError(context.Context, assistants.IAssistant, string, error, []llms.Message) {
}
func (l *Noop) OnAssistantLLMCallStart(context.Context, assistants.IAssistant, llms.Model, []llms.Message) {
}
func (l *Noop) OnAssistantLLMCallEnd(context.Context, assistants.IAssistant, llms.Model, *llms.ContentResponse) {
}
func (l *Noop) OnToolStart(context.Context, tools.ITool, string, string)        {}
func (l *Noop) OnToolEnd(context.Context, tools.ITool, string, string, string)  {}
func (l *Noop) OnToolError(context.Context, tools.ITool, string, string, error) {}
func (l *Noop) OnToolNotFound(context.Context, assistants.IAssistant, string)   {}

// Printer writes the run progress to the Writer, the CLI uses it with stderr.
type Printer struct {
	Out  io.Writer
	Mode Mode

	lock sync.Mutex
}

func NewPrinter(out io.Writer, mode Mode) *Printer {
	return &Printer{Out: out, Mode: mode}
}

func (l *Printer) printf(format string, args ...any) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, format, args...)
}

func (l *Printer) OnAssistantStart(_ context.Context, agent assistants.IAssistant, input string) {
	l.printf("%s is thinking about: %s\n", agent.Name(), input)
}

func (l *Printer) OnAssistantEnd(_ context.Context, agent assistants.IAssistant, _ string, _ *llms.ContentResponse, messages []llms.Message) {
	l.printf("%s is done, %d messages\n", agent.Name(), len(messages))
	if l.Mode == ModeVerbose {
		l.lock.Lock()
		defer l.lock.Unlock()
		llmutils.PrintMessages(l.Out, messages)
	}
}

func (l *Printer) OnAssistantError(_ context.Context, agent assistants.IAssistant, _ string, err error, _ []llms.Message) {
	l.printf("%s failed: %s\n", agent.Name(), err.Error())
}

func (l *Printer) OnAssistantLLMCallStart(_ context.Context, agent assistants.IAssistant, llm llms.Model, payload []llms.Message) {
	if l.Mode == ModeVerbose {
		l.printf("%s asks %s with %d messages\n", agent.Name(), llm.GetName(), len(payload))
	}
}

func (l *Printer) OnAssistantLLMCallEnd(_ context.Context, agent assistants.IAssistant, llm llms.Model, resp *llms.ContentResponse) {
	if l.Mode == ModeVerbose && resp != nil {
		l.printf("%s got %d choices from %s\n", agent.Name(), len(resp.Choices), llm.GetName())
	}
}

func (l *Printer) OnToolStart(_ context.Context, tool tools.ITool, assistantName, input string) {
	l.printf("%s calls %s with %s\n", assistantName, tool.Name(), input)
}

func (l *Printer) OnToolEnd(_ context.Context, tool tools.ITool, assistantName, _ string, output string) {
	if l.Mode == ModeVerbose {
		l.printf("%s got from %s: %s\n", assistantName, tool.Name(), output)
	}
}

func (l *Printer) OnToolError(_ context.Context, tool tools.ITool, assistantName, _ string, err error) {
	l.printf("%s: %s failed: %s\n", assistantName, tool.Name(), err.Error())
}

func (l *Printer) OnToolNotFound(_ context.Context, agent assistants.IAssistant, tool string) {
	l.printf("%s: tool not found: %s\n", agent.Name(), tool)
}

// PackageLogger writes the events to the logger,
// the chat ID is added when the context has one.
type PackageLogger struct {
	logger *xlog.PackageLogger
}

func NewPackageLogger(logger *xlog.PackageLogger) *PackageLogger {
	return &PackageLogger{logger: logger}
}

func (l *PackageLogger) log(ctx context.Context, level xlog.LogLevel, kv ...any) {
	if chatID := chatmodel.GetChatID(ctx); chatID != "" {
		kv = append(kv, "chat_id", chatID)
	}
	l.logger.ContextKV(ctx, level, kv...)
}

func (l *PackageLogger) OnAssistantStart(ctx context.Context, agent assistants.IAssistant, input string) {
	l.log(ctx, xlog.DEBUG,
		"event", "assistant_start",
		"assistant", agent.Name(),
		"input", slices.StringUpto(input, 128),
	)
}

func (l *PackageLogger) OnAssistantEnd(ctx context.Context, agent assistants.IAssistant, _ string, resp *llms.ContentResponse, messages []llms.Message) {
	l.log(ctx, xlog.DEBUG,
		"event", "assistant_end",
		"assistant", agent.Name(),
		"messages", len(messages),
		"result", slices.StringUpto(assistants.GetContent(resp), 128),
	)
}

func (l *PackageLogger) OnAssistantError(ctx context.Context, agent assistants.IAssistant, _ string, err error, messages []llms.Message) {
	l.log(ctx, xlog.ERROR,
		"event", "assistant_error",
		"assistant", agent.Name(),
		"messages", len(messages),
		"err", err.Error(),
	)
}

func (l *PackageLogger) OnAssistantLLMCallStart(ctx context.Context, agent assistants.IAssistant, llm llms.Model, payload []llms.Message) {
	l.log(ctx, xlog.DEBUG,
		"event", "llm_call_start",
		"assistant", agent.Name(),
		"model", llm.GetName(),
		"messages", len(payload),
	)
}

func (l *PackageLogger) OnAssistantLLMCallEnd(ctx context.Context, agent assistants.IAssistant, llm llms.Model, resp *llms.ContentResponse) {
	choices := 0
	if resp != nil {
		choices = len(resp.Choices)
	}
	l.log(ctx, xlog.DEBUG,
		"event", "llm_call_end",
		"assistant", agent.Name(),
		"model", llm.GetName(),
		"choices", choices,
	)
}

func (l *PackageLogger) OnToolStart(ctx context.Context, tool tools.ITool, assistantName, input string) {
	l.log(ctx, xlog.DEBUG,
		"event", "tool_start",
		"assistant", assistantName,
		"tool", tool.Name(),
		"input", input,
	)
}

func (l *PackageLogger) OnToolEnd(ctx context.Context, tool tools.ITool, assistantName, _ string, output string) {
	l.log(ctx, xlog.DEBUG,
		"event", "tool_end",
		"assistant", assistantName,
		"tool", tool.Name(),
		"output", slices.StringUpto(output, 256),
	)
}

func (l *PackageLogger) OnToolError(ctx context.Context, tool tools.ITool, assistantName, _ string, err error) {
	l.log(ctx, xlog.ERROR,
		"event", "tool_error",
		"assistant", assistantName,
		"tool", tool.Name(),
		"err", err.Error(),
	)
}

func (l *PackageLogger) OnToolNotFound(ctx context.Context, agent assistants.IAssistant, tool string) {
	l.log(ctx, xlog.WARNING,
		"event", "tool_not_found",
		"assistant", agent.Name(),
		"tool", tool,
	)
}
