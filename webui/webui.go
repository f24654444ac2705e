package webui

import (
	"context"
	"embed"
	"html/template"
	"net/http"
	"strings"

	"github.com/effective-security/auntie/callbacks"
	"github.com/effective-security/auntie/chatmodel"
	"github.com/effective-security/auntie/matchmaker"
	"github.com/effective-security/auntie/notify"
	"github.com/effective-security/xlog"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/auntie", "webui")

//go:embed templates/*.html
var templatesFS embed.FS

// DefaultRequest is the initial text of the request box
const DefaultRequest = "Find a suitable match for me who is at least 24 years old. Then, tell me a little about them based on what you can find on their LinkedIn or other public profiles."

// Messages shown on the page
const (
	MsgEmptyRequest   = "Please enter your request in the text box."
	MsgEmptyRecipient = "Please enter your WhatsApp number to receive notifications."
)

// Runner runs the match and sends the answer
type Runner interface {
	MatchAndNotify(ctx context.Context, prompt string, sender matchmaker.Notifier) (string, notify.Result, error)
}

// SenderFactory returns the notifier for the recipient
type SenderFactory func(recipient string) matchmaker.Notifier

// Form is the submitted form
type Form struct {
	Request   string `form:"request"`
	Recipient string `form:"recipient"`
}

// Page is the template data
type Page struct {
	Request     string
	Recipient   string
	Warning     string
	Error       string
	Answer      string
	NotifyError string
	Delivered   bool
	RequestID   string
}

// Server serves the form
type Server struct {
	runner     Runner
	senderFor  SenderFactory
	cfgErr     error
	scratchpad *callbacks.Scratchpad
}

// New returns the form server
func New(runner Runner, senderFor SenderFactory) *Server {
	return &Server{
		runner:    runner,
		senderFor: senderFor,
	}
}

// NewWithConfigError returns the server that reports
// the configuration error on each submission.
func NewWithConfigError(err error) *Server {
	return &Server{cfgErr: err}
}

// WithScratchpad records the run stats of each submission
func (s *Server) WithScratchpad(sp *callbacks.Scratchpad) *Server {
	s.scratchpad = sp
	return s
}

// Router returns the gin engine with the routes
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.SetHTMLTemplate(template.Must(template.ParseFS(templatesFS, "templates/*.html")))

	router.GET("/", s.formHandler)
	router.POST("/", s.submitHandler)
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return router
}

func (s *Server) formHandler(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", Page{Request: DefaultRequest})
}

func (s *Server) submitHandler(c *gin.Context) {
	var form Form
	if err := c.ShouldBind(&form); err != nil {
		c.HTML(http.StatusBadRequest, "index.html", Page{Request: DefaultRequest, Error: err.Error()})
		return
	}

	page := Page{
		Request:   form.Request,
		Recipient: form.Recipient,
	}

	switch {
	case strings.TrimSpace(form.Request) == "":
		page.Warning = MsgEmptyRequest
	case strings.TrimSpace(form.Recipient) == "":
		page.Warning = MsgEmptyRecipient
	case s.cfgErr != nil:
		page.Error = "Configuration Error: " + s.cfgErr.Error()
	default:
		s.run(c.Request.Context(), form, &page)
	}

	c.HTML(http.StatusOK, "index.html", page)
}

func (s *Server) run(ctx context.Context, form Form, page *Page) {
	page.RequestID = uuid.NewString()
	ctx = chatmodel.WithChatContext(ctx, chatmodel.NewChatContext(page.RequestID, nil))

	if s.scratchpad != nil {
		s.scratchpad.StartRun(ctx)
		defer func() {
			if stats, _ := s.scratchpad.EndRun(ctx); stats != nil {
				logger.ContextKV(ctx, xlog.INFO,
					"status", "run_stats",
					"chat_id", stats.ChatID,
					"duration", stats.Duration.String(),
					"llm_calls", stats.LLMCalls,
					"tool_calls", stats.ToolCalls,
					"tokens", stats.LLMTotalTokens,
				)
			}
		}()
	}

	answer, res, err := s.runner.MatchAndNotify(ctx, form.Request, s.senderFor(form.Recipient))
	if err != nil {
		page.Error = "An unexpected error occurred: " + err.Error()
		return
	}

	page.Answer = answer
	if res.Err != nil {
		page.NotifyError = "Failed to send WhatsApp message: " + res.Err.Error()
		return
	}
	page.Delivered = res.Delivered
}
