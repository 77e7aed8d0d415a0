// Package smtptest runs a scripted in-process SMTP server for tests.
package smtptest

import (
	"bytes"
	"encoding/base64"
	"net"
	"net/textproto"
	"strings"
	"sync"
)

// Message is one mail accepted by the server.
type Message struct {
	From string
	To   []string
	Data string
}

// Server accepts plain SMTP on a loopback port. When Username is set it
// advertises AUTH PLAIN and refuses mail from unauthenticated sessions.
type Server struct {
	Addr     string
	Username string
	Password string
	// Reject lists recipients answered with 550.
	Reject []string

	ln   net.Listener
	wg   sync.WaitGroup
	mu   sync.Mutex
	msgs []Message
}

// NewServer starts a server on 127.0.0.1 with a random port.
func NewServer() (*Server, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	s := &Server{Addr: ln.Addr().String(), ln: ln}
	s.wg.Add(1)
	go s.serve()
	return s, nil
}

// URL returns the server address with the given scheme, e.g. "smtp".
func (s *Server) URL(scheme string) string {
	return scheme + "://" + s.Addr
}

// Close stops accepting and waits for open sessions to end.
func (s *Server) Close() {
	_ = s.ln.Close()
	s.wg.Wait()
}

// Messages returns the mails accepted so far.
func (s *Server) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.msgs...)
}

func (s *Server) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.session(conn)
		}()
	}
}

func (s *Server) session(conn net.Conn) {
	tp := textproto.NewConn(conn)
	defer tp.Close()

	authed := s.Username == ""
	var msg Message
	_ = tp.PrintfLine("220 localhost ESMTP smtptest")
	for {
		line, err := tp.ReadLine()
		if err != nil {
			return
		}
		verb, arg, _ := strings.Cut(line, " ")
		switch strings.ToUpper(verb) {
		case "EHLO":
			_ = tp.PrintfLine("250-localhost greets %s", arg)
			if s.Username != "" {
				_ = tp.PrintfLine("250-AUTH PLAIN")
			}
			_ = tp.PrintfLine("250 8BITMIME")
		case "HELO":
			_ = tp.PrintfLine("250 localhost")
		case "AUTH":
			mech, resp, _ := strings.Cut(arg, " ")
			if !strings.EqualFold(mech, "PLAIN") {
				_ = tp.PrintfLine("504 5.5.4 Unrecognized authentication type")
				continue
			}
			if s.checkPlain(resp) {
				authed = true
				_ = tp.PrintfLine("235 2.7.0 Authentication successful")
			} else {
				_ = tp.PrintfLine("535 5.7.8 Authentication credentials invalid")
			}
		case "MAIL":
			if !authed {
				_ = tp.PrintfLine("530 5.7.0 Authentication required")
				continue
			}
			msg = Message{From: address(arg)}
			_ = tp.PrintfLine("250 2.1.0 Ok")
		case "RCPT":
			rcpt := address(arg)
			if s.rejects(rcpt) {
				_ = tp.PrintfLine("550 5.1.1 No such user")
				continue
			}
			msg.To = append(msg.To, rcpt)
			_ = tp.PrintfLine("250 2.1.5 Ok")
		case "DATA":
			if len(msg.To) == 0 {
				_ = tp.PrintfLine("554 5.5.1 No valid recipients")
				continue
			}
			_ = tp.PrintfLine("354 End data with <CR><LF>.<CR><LF>")
			data, err := tp.ReadDotBytes()
			if err != nil {
				return
			}
			msg.Data = string(data)
			s.mu.Lock()
			s.msgs = append(s.msgs, msg)
			s.mu.Unlock()
			msg = Message{}
			_ = tp.PrintfLine("250 2.0.0 Ok: queued")
		case "RSET":
			msg = Message{}
			_ = tp.PrintfLine("250 2.0.0 Ok")
		case "NOOP":
			_ = tp.PrintfLine("250 2.0.0 Ok")
		case "QUIT":
			_ = tp.PrintfLine("221 2.0.0 Bye")
			return
		default:
			_ = tp.PrintfLine("502 5.5.2 Command not recognized")
		}
	}
}

func (s *Server) checkPlain(resp string) bool {
	raw, err := base64.StdEncoding.DecodeString(resp)
	if err != nil {
		return false
	}
	parts := bytes.Split(raw, []byte{0})
	if len(parts) != 3 {
		return false
	}
	return string(parts[1]) == s.Username && string(parts[2]) == s.Password
}

func (s *Server) rejects(rcpt string) bool {
	for _, r := range s.Reject {
		if strings.EqualFold(r, rcpt) {
			return true
		}
	}
	return false
}

// address extracts the mailbox from "FROM:<a@b> BODY=8BITMIME".
func address(arg string) string {
	start := strings.IndexByte(arg, '<')
	end := strings.IndexByte(arg, '>')
	if start < 0 || end < start {
		return ""
	}
	return arg[start+1 : end]
}
