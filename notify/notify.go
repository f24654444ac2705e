package notify

import (
	"context"
	"strings"
	"text/template"
	"time"

	"github.com/Masterminds/sprig/v3"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/auntie/pkg/metricskey"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/auntie", "notify")

// DefaultBodyTemplate delivers the message verbatim
const DefaultBodyTemplate = "{{ .Text }}"

const channelWhatsApp = "whatsapp"

// Config is the notification config
type Config struct {
	// AccountSID is the Twilio account SID
	AccountSID string
	// AuthToken is the Twilio auth token
	AuthToken string
	// Sender is the Twilio WhatsApp number, in `whatsapp:+<number>` form
	Sender string
	// Recipient is the default recipient, in `whatsapp:+<number>` form
	Recipient string
	// BodyTemplate is the text/template for the message body,
	// the template data is TemplateData
	BodyTemplate string
}

// TemplateData is passed to the body template
type TemplateData struct {
	Text      string
	Recipient string
	Now       time.Time
}

// Result is the outcome of Send
type Result struct {
	Delivered bool
	// SID is the provider message ID, when delivered
	SID string
	// Err is the provider or template error, when not delivered
	Err error
}

// MessageCreator is the Twilio Messages API used by the Sender,
// *twilioApi.ApiService implements it.
type MessageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// Sender sends WhatsApp messages
type Sender struct {
	cfg     Config
	creator MessageCreator
	tmpl    *template.Template
}

// New returns a Sender backed by the Twilio REST client
func New(cfg Config) (*Sender, error) {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return NewWithCreator(cfg, client.Api)
}

// NewWithCreator returns a Sender with the provided message API
func NewWithCreator(cfg Config, creator MessageCreator) (*Sender, error) {
	if creator == nil {
		return nil, errors.New("message creator is required")
	}
	tmpl, err := template.New("body").
		Funcs(sprig.TxtFuncMap()).
		Parse(values.StringsCoalesce(cfg.BodyTemplate, DefaultBodyTemplate))
	if err != nil {
		return nil, errors.Wrap(err, "invalid body template")
	}
	return &Sender{
		cfg:     cfg,
		creator: creator,
		tmpl:    tmpl,
	}, nil
}

// Recipient returns the recipient of the messages
func (s *Sender) Recipient() string {
	return s.cfg.Recipient
}

// WithRecipient returns a copy of the Sender for another recipient
func (s *Sender) WithRecipient(to string) *Sender {
	c := *s
	c.cfg.Recipient = to
	return &c
}

// Render returns the message body
func (s *Sender) Render(text string) (string, error) {
	var body strings.Builder
	err := s.tmpl.Execute(&body, TemplateData{
		Text:      text,
		Recipient: s.cfg.Recipient,
		Now:       time.Now(),
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to render message body")
	}
	return body.String(), nil
}

// Send sends one message to the recipient,
// the failure is reported in the Result.
func (s *Sender) Send(ctx context.Context, message string) (res Result) {
	defer metricskey.PerfNotificationSend.MeasureSince(time.Now(), channelWhatsApp)
	defer func() {
		if r := recover(); r != nil {
			res = Result{Err: errors.Newf("message provider panic: %v", r)}
		}
		if res.Err != nil {
			metricskey.StatsNotificationsFailed.IncrCounter(1, channelWhatsApp)
			logger.ContextKV(ctx, xlog.ERROR,
				"status", "send_failed",
				"to", s.cfg.Recipient,
				"err", res.Err.Error(),
			)
		}
	}()

	body, err := s.Render(message)
	if err != nil {
		return Result{Err: err}
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(s.cfg.Recipient)
	params.SetFrom(s.cfg.Sender)
	params.SetBody(body)

	resp, err := s.creator.CreateMessage(params)
	if err != nil {
		return Result{Err: errors.WithMessage(err, "failed to send WhatsApp message")}
	}

	var sid string
	if resp != nil && resp.Sid != nil {
		sid = *resp.Sid
	}

	metricskey.StatsNotificationsSent.IncrCounter(1, channelWhatsApp)
	logger.ContextKV(ctx, xlog.DEBUG,
		"status", "sent",
		"to", s.cfg.Recipient,
		"sid", sid,
		"size", len(body),
	)
	return Result{Delivered: true, SID: sid}
}
