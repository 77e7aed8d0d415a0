package mail

import (
	"mime"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrUnexpectedFormat is returned for descriptions that are neither
	// "email", "Name <email>" nor "<email>".
	ErrUnexpectedFormat = errors.New("mail: unexpected user format")
	// ErrInvalidEmail is returned when the address part is not an email.
	ErrInvalidEmail = errors.New("mail: invalid email address")
)

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	userPattern  = regexp.MustCompile(`^([^<>]+)?(\s*<(.+)>\s*)?$`)
)

// User is a mailbox with an optional display name.
type User struct {
	Name  string
	Email string
}

// IsValidEmail reports whether email looks like a deliverable address.
func IsValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// ParseUser parses "john@example.com", "John Smith <john@example.com>" or
// "<john@example.com>".
func ParseUser(description string) (User, error) {
	m := userPattern.FindStringSubmatchIndex(description)
	if m == nil {
		return User{}, ErrUnexpectedFormat
	}
	group := func(i int) (string, bool) {
		if m[2*i] < 0 {
			return "", false
		}
		return description[m[2*i]:m[2*i+1]], true
	}
	name, hasName := group(1)
	email, hasEmail := group(3)

	var u User
	switch {
	case !hasEmail && hasName:
		u.Email = strings.TrimSpace(name)
	case !hasEmail:
		return User{}, ErrUnexpectedFormat
	default:
		u.Name = strings.TrimSpace(name)
		u.Email = email
	}
	if !IsValidEmail(u.Email) {
		return User{}, ErrInvalidEmail
	}
	return u, nil
}

// MustParseUser is ParseUser for constants; it panics on error.
func MustParseUser(description string) User {
	u, err := ParseUser(description)
	if err != nil {
		panic(errors.Wrapf(err, "parsing %q", description))
	}
	return u
}

func (u User) String() string {
	if u.Name == "" {
		return "<" + u.Email + ">"
	}
	return u.Name + " <" + u.Email + ">"
}

// header renders u for a message header, encoding non-ASCII names.
func (u User) header() string {
	if u.Name == "" {
		return "<" + u.Email + ">"
	}
	return mime.QEncoding.Encode("utf-8", u.Name) + " <" + u.Email + ">"
}
