// Command auntie-web serves the matchmaking form.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/effective-security/auntie/callbacks"
	"github.com/effective-security/auntie/config"
	"github.com/effective-security/auntie/matchmaker"
	"github.com/effective-security/auntie/notify"
	"github.com/effective-security/auntie/webui"
	"github.com/effective-security/xlog"
	"github.com/gin-gonic/gin"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/auntie/cmd", "auntie-web")

func main() {
	xlog.SetFormatter(xlog.NewStringFormatter(os.Stderr))
	gin.SetMode(gin.ReleaseMode)

	cfg, err := config.Load("")
	if err != nil {
		logger.KV(xlog.ERROR, "status", "config_load_failed", "err", err.Error())
		os.Exit(1)
	}
	xlog.SetGlobalLogLevel(cfg.XLogLevel())

	server := newServer(cfg)

	httpServer := &http.Server{
		Addr:              cfg.Web.Listen,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.KV(xlog.INFO, "status", "listening", "addr", cfg.Web.Listen)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.KV(xlog.ERROR, "status", "serve_failed", "err", err.Error())
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.KV(xlog.INFO, "status", "shutting_down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctx)
}

// newServer returns the form server, a configuration problem is
// reported on the page so the operator can see it.
func newServer(cfg *config.Config) *webui.Server {
	if err := cfg.Validate(false); err != nil {
		logger.KV(xlog.ERROR, "status", "invalid_config", "err", err.Error())
		return webui.NewWithConfigError(err)
	}

	scratchpad := callbacks.NewScratchpad(callbacks.ModeDefault)
	mm, err := matchmaker.NewFromConfig(cfg)
	if err != nil {
		logger.KV(xlog.ERROR, "status", "matchmaker_failed", "err", err.Error())
		return webui.NewWithConfigError(err)
	}
	mm.WithCallback(callbacks.NewFanout(
		callbacks.NewPackageLogger(logger),
		scratchpad,
	))

	sender, err := notify.New(notify.Config{
		AccountSID:   cfg.Twilio.AccountSID,
		AuthToken:    cfg.Twilio.AuthToken,
		Sender:       cfg.Twilio.WhatsAppNumber,
		BodyTemplate: cfg.Twilio.BodyTemplate,
	})
	if err != nil {
		logger.KV(xlog.ERROR, "status", "sender_failed", "err", err.Error())
		return webui.NewWithConfigError(err)
	}

	return webui.New(mm, func(recipient string) matchmaker.Notifier {
		return sender.WithRecipient(recipient)
	}).WithScratchpad(scratchpad)
}
