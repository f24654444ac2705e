// Command auntie runs the fixed match request once, prints the answer and
// sends it to MY_WHATSAPP_NUMBER.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/auntie/callbacks"
	"github.com/effective-security/auntie/config"
	"github.com/effective-security/auntie/matchmaker"
	"github.com/effective-security/auntie/notify"
	"github.com/effective-security/auntie/pkg/llmutils"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/auntie/cmd", "auntie")

// Request is the match request of the script
const Request = "Find a match of 20 minimum age and tell me the details about the match from LinkedIn, Instagram, Facebook, Tiktok."

func main() {
	xlog.SetFormatter(xlog.NewStringFormatter(os.Stderr))

	if err := run(context.Background(), os.Stdout); err != nil {
		logger.KV(xlog.ERROR, "status", "failed", "err", err.Error())
		os.Exit(1)
	}
}

// replaced in tests
var (
	newMatchmaker = matchmaker.NewFromConfig
	newSender     = func(cfg notify.Config) (matchmaker.Notifier, error) {
		return notify.New(cfg)
	}
)

func run(ctx context.Context, out io.Writer) error {
	cfg, err := config.Load("")
	if err != nil {
		return err
	}
	xlog.SetGlobalLogLevel(cfg.XLogLevel())

	if err = cfg.Validate(true); err != nil {
		return err
	}

	mm, err := newMatchmaker(cfg)
	if err != nil {
		return err
	}
	mm.WithCallback(callbacks.NewFanout(
		callbacks.NewPackageLogger(logger),
		callbacks.NewPrinter(os.Stderr, callbacks.ModeDefault),
	))

	sender, err := newSender(notify.Config{
		AccountSID:   cfg.Twilio.AccountSID,
		AuthToken:    cfg.Twilio.AuthToken,
		Sender:       cfg.Twilio.WhatsAppNumber,
		Recipient:    cfg.Twilio.Recipient,
		BodyTemplate: cfg.Twilio.BodyTemplate,
	})
	if err != nil {
		return err
	}

	answer, err := mm.RunMatch(ctx, Request)
	if err != nil {
		return err
	}
	fmt.Fprint(out, llmutils.EnsureEndsWithNewline(answer))

	res := sender.Send(ctx, answer)
	if res.Err != nil {
		return errors.WithMessage(res.Err, "notification failed")
	}
	logger.KV(xlog.INFO, "status", "notification_sent", "sid", res.SID)
	return nil
}
