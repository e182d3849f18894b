package mockservers

import (
	"bufio"
	"encoding/base64"
	"net"
	"net/textproto"
	"strings"
	"sync"
	"testing"
)

// SMTPMessage is one message accepted by the mock server
type SMTPMessage struct {
	From     string
	To       []string
	Username string
	Data     string
}

// SMTPMockServer is a plain-text SMTP server that records messages.
// It advertises AUTH PLAIN and no STARTTLS.
type SMTPMockServer struct {
	Username string // Accepted credentials; empty accepts any
	Password string

	listener net.Listener
	wg       sync.WaitGroup

	mu       sync.Mutex
	messages []SMTPMessage
}

// NewSMTPMockServer starts a mock SMTP server on 127.0.0.1
func NewSMTPMockServer(t *testing.T) *SMTPMockServer {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	m := &SMTPMockServer{listener: ln}

	m.wg.Add(1)
	go m.serve()

	t.Cleanup(func() {
		ln.Close()
		m.wg.Wait()
	})

	return m
}

// Host returns the listening host
func (m *SMTPMockServer) Host() string {
	host, _, _ := net.SplitHostPort(m.listener.Addr().String())
	return host
}

// Port returns the listening port
func (m *SMTPMockServer) Port() int {
	return m.listener.Addr().(*net.TCPAddr).Port
}

// Messages returns the accepted messages
func (m *SMTPMockServer) Messages() []SMTPMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SMTPMessage(nil), m.messages...)
}

func (m *SMTPMockServer) serve() {
	defer m.wg.Done()
	for {
		conn, err := m.listener.Accept()
		if err != nil {
			return
		}
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.handle(conn)
		}()
	}
}

func (m *SMTPMockServer) handle(conn net.Conn) {
	defer conn.Close()

	tp := textproto.NewConn(conn)
	w := bufio.NewWriter(conn)
	reply := func(lines ...string) {
		for _, l := range lines {
			w.WriteString(l + "\r\n")
		}
		w.Flush()
	}

	reply("220 localhost ESMTP mock")

	var msg SMTPMessage
	for {
		line, err := tp.ReadLine()
		if err != nil {
			return
		}
		verb := strings.ToUpper(line)

		switch {
		case strings.HasPrefix(verb, "EHLO"):
			reply("250-localhost", "250-AUTH PLAIN", "250 8BITMIME")
		case strings.HasPrefix(verb, "HELO"):
			reply("250 localhost")
		case strings.HasPrefix(verb, "AUTH PLAIN"):
			user, pass := decodePlain(strings.TrimSpace(line[len("AUTH PLAIN"):]))
			if m.Username != "" && (user != m.Username || pass != m.Password) {
				reply("535 5.7.8 Authentication failed")
				continue
			}
			msg.Username = user
			reply("235 2.7.0 Authentication successful")
		case line == "*":
			reply("501 5.7.0 Authentication aborted")
		case strings.HasPrefix(verb, "MAIL FROM:"):
			msg.From = trimAddr(line[len("MAIL FROM:"):])
			reply("250 OK")
		case strings.HasPrefix(verb, "RCPT TO:"):
			msg.To = append(msg.To, trimAddr(line[len("RCPT TO:"):]))
			reply("250 OK")
		case verb == "DATA":
			reply("354 Go ahead")
			data, err := tp.ReadDotBytes()
			if err != nil {
				return
			}
			msg.Data = string(data)
			m.mu.Lock()
			m.messages = append(m.messages, msg)
			m.mu.Unlock()
			msg = SMTPMessage{Username: msg.Username}
			reply("250 OK queued")
		case verb == "RSET":
			msg = SMTPMessage{Username: msg.Username}
			reply("250 OK")
		case verb == "NOOP":
			reply("250 OK")
		case verb == "QUIT":
			reply("221 Bye")
			return
		default:
			reply("502 Command not implemented")
		}
	}
}

// decodePlain decodes an AUTH PLAIN initial response
func decodePlain(s string) (string, string) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", ""
	}
	parts := strings.SplitN(string(raw), "\x00", 3)
	if len(parts) != 3 {
		return "", ""
	}
	return parts[1], parts[2]
}

func trimAddr(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, ' '); i >= 0 {
		s = s[:i]
	}
	return strings.Trim(s, "<>")
}
