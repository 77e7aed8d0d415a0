package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"net/http/fcgi"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/accelara/easyxfer/internal/mail"
	"github.com/accelara/easyxfer/internal/registration"
)

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err == flag.ErrHelp {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	log := newLogger(cfg.Debug)
	if err := run(cfg, log); err != nil {
		log.WithError(err).Error("mail server stopped")
		os.Exit(1)
	}
}

func newLogger(debug bool) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	log.SetLevel(logrus.InfoLevel)
	if lvl, err := logrus.ParseLevel(strings.TrimSpace(os.Getenv("LOGLEVEL"))); err == nil {
		log.SetLevel(lvl)
	}
	if debug {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}

func newSender(cfg Config, log *logrus.Entry) (mail.Sender, error) {
	if cfg.DryRun {
		return &dryRun{log: log}, nil
	}
	sender, err := mail.ParseUser(cfg.Email)
	if err != nil {
		return nil, err
	}
	return &mail.SMTP{
		Hostname: cfg.Hostname,
		Username: sender.Email,
		Password: cfg.Password,
		Verbose:  cfg.Verbose,
		Log:      log,
	}, nil
}

// dryRun logs rendered mails instead of sending them. Nothing is kept
// after Send returns.
type dryRun struct {
	log *logrus.Entry
}

func (d *dryRun) Send(ctx context.Context, m mail.Mail) error {
	payload, err := m.Payload()
	if err != nil {
		return err
	}
	d.log.WithFields(logrus.Fields{
		"subject":    m.Subject,
		"recipients": len(m.Recipients()),
	}).Infof("dry run, not sending:\n%s", payload)
	return nil
}

func run(cfg Config, logger *logrus.Logger) error {
	regCfg, err := cfg.registrationConfig()
	if err != nil {
		return err
	}
	log := logrus.NewEntry(logger)
	sender, err := newSender(cfg, log.WithField("component", "smtp"))
	if err != nil {
		return err
	}

	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	handler := registration.New(regCfg, sender, log.WithField("component", "http")).Handler()

	log.WithFields(logrus.Fields{
		"smtp":    cfg.Hostname,
		"sender":  regCfg.Sender.String(),
		"listen":  cfg.Listen,
		"fcgi":    cfg.FCGI,
		"dry_run": cfg.DryRun,
	}).Info("starting mail server")

	if cfg.FCGI {
		if cfg.Listen == "" {
			// Launched by spawn-fcgi: the listening socket is stdin.
			return fcgi.Serve(nil, handler)
		}
		l, err := net.Listen("tcp", cfg.Listen)
		if err != nil {
			return err
		}
		return fcgi.Serve(l, handler)
	}

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
