package registration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accelara/easyxfer/internal/mail"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type field struct{ key, value string }

func multipartRequest(t *testing.T, fields []field) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for _, f := range fields {
		require.NoError(t, w.WriteField(f.key, f.value))
	}
	require.NoError(t, w.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/trial-registration", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func adultForm() []field {
	return []field{
		{"first_name", "Jane"},
		{"last_name", "Doe"},
		{"phone", "0123 456"},
		{"email", "jane@example.com"},
		{"age", "34"},
		{"privacy", "on"},
	}
}

func childForm() []field {
	return append(adultForm(),
		field{"parents_consent", "on"},
		field{"child_first_name[]", "Tom"},
		field{"child_last_name[]", "Doe"},
		field{"child_age[]", "8"},
		field{"child_first_name[]", "Anna"},
		field{"child_last_name[]", "Doe"},
		field{"child_age[]", "10"},
		field{"child_first_name[]", "Ben"},
		field{"child_last_name[]", "Doe"},
		field{"child_age[]", "12"},
	)
}

func newTestServer(sender mail.Sender, debug bool) *Server {
	reply := mail.MustParseUser("Office <office@example.com>")
	log := logrus.New()
	log.SetOutput(io.Discard)
	return New(Config{
		Sender:  mail.MustParseUser("Dojo <dojo@example.com>"),
		ReplyTo: &reply,
		Cc:      []mail.User{mail.MustParseUser("coach@example.com")},
		Bcc:     []mail.User{mail.MustParseUser("archive@example.com")},
		Domain:  "dojo.example.com",
		Club:    "Example Dojo",
		Debug:   debug,
	}, sender, logrus.NewEntry(log))
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func jsonBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var out map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func emails(users []mail.User) []string {
	var out []string
	for _, u := range users {
		out = append(out, u.Email)
	}
	return out
}

func TestAdultRegistration(t *testing.T) {
	var rec mail.Recorder
	res := serve(newTestServer(&rec, false), multipartRequest(t, adultForm()))

	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "Email sent.", jsonBody(t, res)["message"])

	sent := rec.Sent()
	require.Len(t, sent, 2)

	registration := sent[0]
	assert.Equal(t, "Trial training registration: adults", registration.Subject)
	assert.Equal(t, []string{"office@example.com"}, emails(registration.To))
	assert.Equal(t, []string{"coach@example.com"}, emails(registration.Cc))
	assert.Equal(t, []string{"archive@example.com"}, emails(registration.Bcc))
	assert.Contains(t, registration.Body, "Name: Jane Doe<br/>")
	assert.Contains(t, registration.Body, "Age: 34<br/>")

	ack := sent[1]
	assert.Equal(t, []mail.User{{Name: "Jane Doe", Email: "jane@example.com"}}, ack.To)
	assert.Equal(t, []string{"archive@example.com", "dojo@example.com"}, emails(ack.Bcc))
	assert.Contains(t, ack.Body, "Hello Jane,")
	assert.Contains(t, ack.Body, `href="http://example.com/contact"`)
}

func TestRegistrationWithoutReplyTo(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	var rec mail.Recorder
	s := New(Config{
		Sender: mail.MustParseUser("Dojo <dojo@example.com>"),
		Domain: "dojo.example.com",
	}, &rec, logrus.NewEntry(log))

	res := serve(s, multipartRequest(t, adultForm()))
	require.Equal(t, http.StatusOK, res.Code)

	sent := rec.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, []string{"dojo@example.com"}, emails(sent[0].To))
	assert.Nil(t, sent[0].ReplyTo)
}

func TestContactLink(t *testing.T) {
	cases := []struct {
		name   string
		domain string
		proto  string
		want   string
	}{
		{"domain with scheme wins", "https://dojo.example.com/", "", "https://dojo.example.com/contact"},
		{"plain http domain kept", "http://localhost:5000", "", "http://localhost:5000/contact"},
		{"request host", "dojo.example.com", "", "http://example.com/contact"},
		{"forwarded proto", "dojo.example.com", "https", "https://example.com/contact"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var rec mail.Recorder
			s := newTestServer(&rec, false)
			s.cfg.Domain = tc.domain
			req := multipartRequest(t, adultForm())
			if tc.proto != "" {
				req.Header.Set("X-Forwarded-Proto", tc.proto)
			}
			res := serve(s, req)
			require.Equal(t, http.StatusOK, res.Code)
			sent := rec.Sent()
			require.Len(t, sent, 2)
			assert.Contains(t, sent[1].Body, `href="`+tc.want+`"`)
		})
	}
}

func TestChildRegistration(t *testing.T) {
	var rec mail.Recorder
	res := serve(newTestServer(&rec, false), multipartRequest(t, childForm()))
	require.Equal(t, http.StatusOK, res.Code)

	sent := rec.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "Trial training registration: children (3)", sent[0].Subject)
	assert.Contains(t, sent[0].Body, "<b>Child #3</b><br/>\nName: Ben Doe<br/>\nAge: 12<br/>")
	assert.Contains(t, sent[0].Body, "<b>Parent</b>")
	assert.Contains(t, sent[1].Body, "Dear Doe family,")
	assert.Contains(t, sent[1].Body, "registering Tom, Anna and Ben for a trial training")
}

func TestURLEncodedForm(t *testing.T) {
	form := url.Values{}
	for _, f := range adultForm() {
		form.Add(f.key, f.value)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/trial-registration", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var rec mail.Recorder
	res := serve(newTestServer(&rec, false), req)
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Len(t, rec.Sent(), 2)
}

func TestInvalidForms(t *testing.T) {
	without := func(fields []field, key string) []field {
		var out []field
		for _, f := range fields {
			if f.key != key {
				out = append(out, f)
			}
		}
		return out
	}
	replace := func(fields []field, key, value string) []field {
		out := append([]field(nil), fields...)
		for i := range out {
			if out[i].key == key {
				out[i].value = value
			}
		}
		return out
	}

	cases := map[string][]field{
		"missing first name": without(adultForm(), "first_name"),
		"empty phone":        replace(adultForm(), "phone", " "),
		"invalid email":      replace(adultForm(), "email", "jane@invalid"),
		"missing age":        without(adultForm(), "age"),
		"non numeric age":    replace(adultForm(), "age", "old"),
		"no privacy":         without(adultForm(), "privacy"),
		"no consent":         without(childForm(), "parents_consent"),
		"uneven children":    append(childForm(), field{"child_age[]", "4"}),
	}
	for name, fields := range cases {
		t.Run(name, func(t *testing.T) {
			var rec mail.Recorder
			res := serve(newTestServer(&rec, false), multipartRequest(t, fields))
			assert.Equal(t, http.StatusBadRequest, res.Code)
			assert.Equal(t, "Form data could not be parsed.", jsonBody(t, res)["error"])
			assert.Empty(t, rec.Sent())
		})
	}
}

func TestSendFailure(t *testing.T) {
	rec := mail.Recorder{Err: errors.New("smtp down")}
	res := serve(newTestServer(&rec, false), multipartRequest(t, adultForm()))
	assert.Equal(t, http.StatusInternalServerError, res.Code)
	assert.Equal(t, "Failed to send registration email.", jsonBody(t, res)["error"])
}

// failSecond fails every send after the first.
type failSecond struct {
	mail.Recorder
}

func (f *failSecond) Send(ctx context.Context, m mail.Mail) error {
	if len(f.Sent()) > 0 {
		return errors.New("rejected")
	}
	return f.Recorder.Send(ctx, m)
}

func TestAcknowledgementFailure(t *testing.T) {
	var sender failSecond
	res := serve(newTestServer(&sender, false), multipartRequest(t, adultForm()))
	assert.Equal(t, http.StatusInternalServerError, res.Code)
	assert.Equal(t, "Failed to send acknowledgement email.", jsonBody(t, res)["error"])
}

func TestPrintEnv(t *testing.T) {
	t.Setenv("REGISTRATION_TEST_VAR", "<value>")

	res := serve(newTestServer(&mail.Recorder{}, true), httptest.NewRequest(http.MethodGet, "/api/print-env", nil))
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "text/html", res.Header().Get("Content-Type"))
	assert.Contains(t, res.Body.String(), "REGISTRATION_TEST_VAR: &lt;value&gt;<br/>\n")

	res = serve(newTestServer(&mail.Recorder{}, false), httptest.NewRequest(http.MethodGet, "/api/print-env", nil))
	assert.Equal(t, http.StatusNotFound, res.Code)
}

func TestNotFound(t *testing.T) {
	res := serve(newTestServer(&mail.Recorder{}, false), httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	assert.Equal(t, http.StatusNotFound, res.Code)
	assert.Equal(t, "<center><h1>Not Found</h1></center>", res.Body.String())
}

func TestNameList(t *testing.T) {
	assert.Equal(t, "", nameList(nil))
	assert.Equal(t, "Tom", nameList([]string{"Tom"}))
	assert.Equal(t, "Tom and Anna", nameList([]string{"Tom", "Anna"}))
}
