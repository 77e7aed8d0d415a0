package main

import (
	"flag"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/accelara/easyxfer/internal/mail"
	"github.com/accelara/easyxfer/internal/registration"
)

// Config is the mail server configuration. It can be read from a YAML
// file; command line flags override file values.
type Config struct {
	Hostname string   `yaml:"hostname"`
	Email    string   `yaml:"email"`
	Password string   `yaml:"password"`
	Cc       []string `yaml:"cc"`
	Bcc      []string `yaml:"bcc"`
	ReplyTo  string   `yaml:"reply_to"`
	Domain   string   `yaml:"domain"`
	Club     string   `yaml:"club"`
	Listen   string   `yaml:"listen"`
	FCGI     bool     `yaml:"fcgi"`
	Debug    bool     `yaml:"debug"`
	DryRun   bool     `yaml:"dry_run"`
	Verbose  bool     `yaml:"verbose"`
}

func defaultConfig() Config {
	return Config{
		Hostname: "smtps://smtp.gmail.com:465",
		Listen:   ":5000",
	}
}

// loadConfigFile overlays the YAML file at path onto cfg.
func loadConfigFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "reading config file")
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return errors.Wrapf(err, "parsing %s", path)
	}
	return nil
}

// parseFlags parses args, reading --config first so explicit flags win
// over file values.
func parseFlags(args []string) (Config, error) {
	cfg := defaultConfig()
	fs := flag.NewFlagSet("mailserver", flag.ContinueOnError)

	var (
		configPath string
		cc, bcc    listFlag
		flagCfg    Config
	)
	fs.StringVar(&configPath, "config", "", "YAML configuration file")
	fs.StringVar(&flagCfg.Hostname, "hostname", cfg.Hostname, "SMTP server URL, including protocol and port")
	fs.StringVar(&flagCfg.Email, "email", "", "Send mails from this address, 'smith@example.com' or 'John Smith <smith@example.com>'")
	fs.StringVar(&flagCfg.Password, "password", "", "Password for the mail account (default $SMTP_PASSWORD)")
	fs.Var(&cc, "cc", "Address to send in cc, repeatable")
	fs.Var(&bcc, "bcc", "Address to send in bcc, repeatable")
	fs.StringVar(&flagCfg.ReplyTo, "reply-to", "", "Address registrations are sent to and replies go to")
	fs.StringVar(&flagCfg.Domain, "domain", "", "Web site this server runs for, e.g. https://example.com")
	fs.StringVar(&flagCfg.Club, "club", "", "Club name used in acknowledgement mails")
	fs.StringVar(&flagCfg.Listen, "listen", cfg.Listen, "Listen address; with --fcgi and empty, serve FastCGI on stdin")
	fs.BoolVar(&flagCfg.FCGI, "fcgi", false, "Serve FastCGI instead of HTTP")
	fs.BoolVar(&flagCfg.Debug, "debug", false, "Debug logging and /api/print-env")
	fs.BoolVar(&flagCfg.DryRun, "dry-run", false, "Log mails instead of sending them")
	fs.BoolVar(&flagCfg.Verbose, "verbose", false, "Trace SMTP dialogues on stderr")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	if configPath != "" {
		if err := loadConfigFile(&cfg, configPath); err != nil {
			return cfg, err
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "hostname":
			cfg.Hostname = flagCfg.Hostname
		case "email":
			cfg.Email = flagCfg.Email
		case "password":
			cfg.Password = flagCfg.Password
		case "cc":
			cfg.Cc = cc
		case "bcc":
			cfg.Bcc = bcc
		case "reply-to":
			cfg.ReplyTo = flagCfg.ReplyTo
		case "domain":
			cfg.Domain = flagCfg.Domain
		case "club":
			cfg.Club = flagCfg.Club
		case "listen":
			cfg.Listen = flagCfg.Listen
		case "fcgi":
			cfg.FCGI = flagCfg.FCGI
		case "debug":
			cfg.Debug = flagCfg.Debug
		case "dry-run":
			cfg.DryRun = flagCfg.DryRun
		case "verbose":
			cfg.Verbose = flagCfg.Verbose
		}
	})
	if cfg.Password == "" {
		cfg.Password = strings.TrimSpace(os.Getenv("SMTP_PASSWORD"))
	}
	return cfg, nil
}

// registrationConfig validates the addresses and converts cfg.
func (cfg Config) registrationConfig() (registration.Config, error) {
	var out registration.Config
	if cfg.Email == "" {
		return out, errors.New("--email is required")
	}
	if cfg.Domain == "" {
		return out, errors.New("--domain is required")
	}
	sender, err := mail.ParseUser(cfg.Email)
	if err != nil {
		return out, errors.Wrapf(err, "email %q", cfg.Email)
	}
	out.Sender = sender
	if cfg.ReplyTo != "" {
		replyTo, err := mail.ParseUser(cfg.ReplyTo)
		if err != nil {
			return out, errors.Wrapf(err, "reply-to %q", cfg.ReplyTo)
		}
		out.ReplyTo = &replyTo
	}
	if out.Cc, err = parseUsers(cfg.Cc); err != nil {
		return out, errors.Wrap(err, "cc")
	}
	if out.Bcc, err = parseUsers(cfg.Bcc); err != nil {
		return out, errors.Wrap(err, "bcc")
	}
	out.Domain = cfg.Domain
	out.Club = cfg.Club
	out.Debug = cfg.Debug
	return out, nil
}

func parseUsers(descriptions []string) ([]mail.User, error) {
	users := make([]mail.User, 0, len(descriptions))
	for _, d := range descriptions {
		u, err := mail.ParseUser(d)
		if err != nil {
			return nil, errors.Wrapf(err, "%q", d)
		}
		users = append(users, u)
	}
	return users, nil
}

// listFlag collects a repeatable string flag.
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ", ") }

func (l *listFlag) Set(v string) error {
	*l = append(*l, v)
	return nil
}
