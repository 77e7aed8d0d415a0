package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accelara/easyxfer/internal/mail"
)

func TestParseFlagsDefaults(t *testing.T) {
	t.Setenv("SMTP_PASSWORD", " from-env ")
	cfg, err := parseFlags([]string{"--email", "Dojo <dojo@example.com>", "--domain", "https://example.com"})
	require.NoError(t, err)
	assert.Equal(t, "smtps://smtp.gmail.com:465", cfg.Hostname)
	assert.Equal(t, ":5000", cfg.Listen)
	assert.Equal(t, "from-env", cfg.Password)
}

func TestFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mailserver.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
hostname: smtp://mail.example.com:587
email: file@example.com
password: file-secret
cc:
  - coach@example.com
reply_to: Office <office@example.com>
domain: https://example.com
fcgi: true
`), 0o644))

	cfg, err := parseFlags([]string{"--config", path, "--email", "flag@example.com", "--bcc", "a@example.com", "--bcc", "b@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "smtp://mail.example.com:587", cfg.Hostname)
	assert.Equal(t, "flag@example.com", cfg.Email)
	assert.Equal(t, "file-secret", cfg.Password)
	assert.Equal(t, []string{"coach@example.com"}, cfg.Cc)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, cfg.Bcc)
	assert.True(t, cfg.FCGI)

	reg, err := cfg.registrationConfig()
	require.NoError(t, err)
	assert.Equal(t, "flag@example.com", reg.Sender.Email)
	require.NotNil(t, reg.ReplyTo)
	assert.Equal(t, "Office", reg.ReplyTo.Name)
	assert.Len(t, reg.Bcc, 2)
}

func TestRegistrationConfigErrors(t *testing.T) {
	_, err := Config{Domain: "https://example.com"}.registrationConfig()
	assert.ErrorContains(t, err, "--email is required")

	_, err = Config{Email: "dojo@example.com"}.registrationConfig()
	assert.ErrorContains(t, err, "--domain is required")

	_, err = Config{Email: "dojo@example.com", Domain: "x", Cc: []string{"nope"}}.registrationConfig()
	assert.ErrorIs(t, err, mail.ErrInvalidEmail)
}

func TestMissingConfigFile(t *testing.T) {
	_, err := parseFlags([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")})
	assert.ErrorContains(t, err, "reading config file")
}
