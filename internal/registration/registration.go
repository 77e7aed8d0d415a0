// Package registration serves the trial training sign-up form and mails
// each registration to the club and an acknowledgement to the registrant.
package registration

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/accelara/easyxfer/internal/mail"
)

const (
	msgBadForm         = "Form data could not be parsed."
	msgRegistrationErr = "Failed to send registration email."
	msgAckErr          = "Failed to send acknowledgement email."
	msgSent            = "Email sent."

	notFoundPage = "<center><h1>Not Found</h1></center>"
)

// Config holds the addresses mails are sent from and to.
type Config struct {
	Sender  mail.User
	ReplyTo *mail.User
	Cc      []mail.User
	Bcc     []mail.User

	// Domain is the site linked from acknowledgement mails. With a scheme
	// it is used as is; without one it only stands in for a missing Host.
	Domain string
	Club   string

	// Debug enables /api/print-env.
	Debug bool
	// SendTimeout bounds both mails of one registration.
	SendTimeout time.Duration
}

type Server struct {
	cfg    Config
	mailer mail.Sender
	log    *logrus.Entry
}

func New(cfg Config, mailer mail.Sender, log *logrus.Entry) *Server {
	if cfg.Club == "" {
		cfg.Club = "Karate Dojo"
	}
	if cfg.SendTimeout == 0 {
		cfg.SendTimeout = time.Minute
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Server{cfg: cfg, mailer: mailer, log: log}
}

// Handler returns a gin engine serving every route.
func (s *Server) Handler() *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(s.log))
	s.RegisterRoutes(engine)
	engine.NoRoute(func(c *gin.Context) {
		c.Data(http.StatusNotFound, "text/html; charset=utf-8", []byte(notFoundPage))
	})
	return engine
}

func (s *Server) RegisterRoutes(r gin.IRouter) {
	r.POST("/api/trial-registration", s.trialRegistration)
	if s.cfg.Debug {
		r.GET("/api/print-env", printEnv)
	}
}

func requestLogger(log *logrus.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start),
		}).Info("request")
	}
}

// registrant is a validated form submission.
type registrant struct {
	FirstName string
	LastName  string
	Phone     string
	Email     string
	Age       string
	Children  []child
}

type child struct {
	FirstName string
	LastName  string
	Age       string
}

func formArray(c *gin.Context, key string) []string {
	if values := c.PostFormArray(key + "[]"); len(values) > 0 {
		return values
	}
	return c.PostFormArray(key)
}

func parseForm(c *gin.Context) (registrant, bool) {
	var r registrant
	fields := []struct {
		key string
		dst *string
	}{
		{"first_name", &r.FirstName},
		{"last_name", &r.LastName},
		{"phone", &r.Phone},
		{"email", &r.Email},
	}
	for _, f := range fields {
		v := strings.TrimSpace(c.PostForm(f.key))
		if v == "" {
			return r, false
		}
		*f.dst = v
	}
	if !mail.IsValidEmail(r.Email) {
		return r, false
	}
	age, ok := c.GetPostForm("age")
	if !ok {
		return r, false
	}
	r.Age = strings.TrimSpace(age)
	if c.PostForm("privacy") != "on" {
		return r, false
	}

	firstNames := formArray(c, "child_first_name")
	lastNames := formArray(c, "child_last_name")
	ages := formArray(c, "child_age")
	if len(firstNames) == 0 && len(lastNames) == 0 && len(ages) == 0 {
		if _, err := strconv.Atoi(r.Age); err != nil {
			return r, false
		}
		return r, true
	}

	if c.PostForm("parents_consent") != "on" {
		return r, false
	}
	if len(firstNames) != len(lastNames) || len(firstNames) != len(ages) {
		return r, false
	}
	for i := range firstNames {
		r.Children = append(r.Children, child{
			FirstName: strings.TrimSpace(firstNames[i]),
			LastName:  strings.TrimSpace(lastNames[i]),
			Age:       strings.TrimSpace(ages[i]),
		})
	}
	return r, true
}

func (s *Server) trialRegistration(c *gin.Context) {
	r, ok := parseForm(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgBadForm})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.SendTimeout)
	defer cancel()
	log := s.log.WithFields(logrus.Fields{"email": r.Email, "children": len(r.Children)})

	if err := s.mailer.Send(ctx, s.registrationMail(r)); err != nil {
		log.WithError(err).Error("sending registration mail")
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgRegistrationErr})
		return
	}
	if err := s.mailer.Send(ctx, s.acknowledgementMail(r, s.contactLink(c))); err != nil {
		log.WithError(err).Error("sending acknowledgement mail")
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgAckErr})
		return
	}
	log.Info("trial registration received")
	c.JSON(http.StatusOK, gin.H{"message": msgSent})
}

func (s *Server) contactLink(c *gin.Context) string {
	if strings.Contains(s.cfg.Domain, "://") {
		return strings.TrimRight(s.cfg.Domain, "/") + "/contact"
	}
	host := c.Request.Host
	if host == "" {
		host = s.cfg.Domain
	}
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
		scheme = strings.ToLower(strings.TrimSpace(strings.Split(proto, ",")[0]))
	}
	return scheme + "://" + host + "/contact"
}

// registrationMail goes to the reply-to address, or back to the sender
// when none is configured.
func (s *Server) registrationMail(r registrant) mail.Mail {
	to := s.cfg.Sender
	if s.cfg.ReplyTo != nil {
		to = *s.cfg.ReplyTo
	}
	m := mail.Mail{
		From: s.cfg.Sender,
		To:   []mail.User{to},
		Cc:   s.cfg.Cc,
		Bcc:  s.cfg.Bcc,
	}

	var b strings.Builder
	if len(r.Children) == 0 {
		m.Subject = "Trial training registration: adults"
		b.WriteString("New trial training registration for <b>adults</b>.<br/>\n<br/>\n")
		fmt.Fprintf(&b, "Name: %s %s<br/>\n", esc(r.FirstName), esc(r.LastName))
		fmt.Fprintf(&b, "Age: %s<br/>\n", esc(r.Age))
		fmt.Fprintf(&b, "Email: %s<br/>\n", esc(r.Email))
		fmt.Fprintf(&b, "Phone: %s<br/>\n", esc(r.Phone))
		m.Body = b.String()
		return m
	}

	m.Subject = fmt.Sprintf("Trial training registration: children (%d)", len(r.Children))
	b.WriteString("New trial training registration for <b>children</b>.<br/>\n<br/>\n")
	blocks := make([]string, len(r.Children))
	for i, ch := range r.Children {
		blocks[i] = fmt.Sprintf("<b>Child #%d</b><br/>\nName: %s %s<br/>\nAge: %s<br/>\n",
			i+1, esc(ch.FirstName), esc(ch.LastName), esc(ch.Age))
	}
	b.WriteString(strings.Join(blocks, "\n<br>"))
	b.WriteString("<br/>\n<b>Parent</b><br/>\n")
	fmt.Fprintf(&b, "Name: %s %s<br/>\n", esc(r.FirstName), esc(r.LastName))
	fmt.Fprintf(&b, "Email: %s<br/>\n", esc(r.Email))
	fmt.Fprintf(&b, "Phone: %s<br/>\n", esc(r.Phone))
	m.Body = b.String()
	return m
}

func (s *Server) acknowledgementMail(r registrant, contact string) mail.Mail {
	m := mail.Mail{
		From:    s.cfg.Sender,
		To:      []mail.User{{Name: r.FirstName + " " + r.LastName, Email: r.Email}},
		Cc:      s.cfg.Cc,
		Bcc:     append(append([]mail.User(nil), s.cfg.Bcc...), s.cfg.Sender),
		Subject: s.cfg.Club + " - trial training registration",
	}

	var b strings.Builder
	if len(r.Children) == 0 {
		fmt.Fprintf(&b, "Hello %s,<br/>\n<br/>\n", esc(r.FirstName))
		b.WriteString("Thank you for registering for a trial training.<br/>\n<br/>\n")
		b.WriteString("One of our trainers will contact you shortly to confirm a date for your first training. ")
	} else {
		names := make([]string, len(r.Children))
		for i, ch := range r.Children {
			names[i] = esc(ch.FirstName)
		}
		fmt.Fprintf(&b, "Dear %s family,<br/>\n<br/>\n", esc(r.LastName))
		fmt.Fprintf(&b, "Thank you for registering %s for a trial training.<br/>\n<br/>\n", nameList(names))
		b.WriteString("One of our trainers will contact you shortly to confirm a date for the first training. ")
	}
	fmt.Fprintf(&b, "If you have any questions in the meantime, you can find more information <a href=\"%s\">here</a>.<br/>\n<br/>\n", esc(contact))
	fmt.Fprintf(&b, "Best regards,<br/>\nThe %s team<br/>\n", esc(s.cfg.Club))
	m.Body = b.String()
	return m
}

// nameList joins names as "a, b and c".
func nameList(names []string) string {
	if len(names) <= 1 {
		return strings.Join(names, "")
	}
	return strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1]
}

func esc(s string) string {
	return html.EscapeString(s)
}

func printEnv(c *gin.Context) {
	env := os.Environ()
	sort.Strings(env)
	var b strings.Builder
	for _, kv := range env {
		key, value, _ := strings.Cut(kv, "=")
		fmt.Fprintf(&b, "%s: %s<br/>\n", esc(key), esc(value))
	}
	c.Data(http.StatusOK, "text/html", []byte(b.String()))
}
