package notify_test

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"strings"
	"testing"

	"github.com/purplix/backend/internal/purplix/notify"
	"github.com/stretchr/testify/require"
)

// fakeSMTP accepts one message and hands its DATA section to got.
func fakeSMTP(t *testing.T) (port int, got <-chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	out := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		r := bufio.NewReader(conn)
		w := func(s string) { _, _ = conn.Write([]byte(s + "\r\n")) }
		w("220 fake ESMTP")

		var data strings.Builder
		inData := false
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			if inData {
				if line == ".\r\n" {
					inData = false
					out <- data.String()
					w("250 queued")
					continue
				}
				data.WriteString(line)
				continue
			}
			switch cmd := strings.ToUpper(strings.TrimSpace(line)); {
			case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
				w("250 fake")
			case strings.HasPrefix(cmd, "MAIL"), strings.HasPrefix(cmd, "RCPT"):
				w("250 ok")
			case cmd == "DATA":
				inData = true
				w("354 go ahead")
			case cmd == "QUIT":
				w("221 bye")
				return
			default:
				w("250 ok")
			}
		}
	}()

	_, p, _ := net.SplitHostPort(ln.Addr().String())
	port, _ = strconv.Atoi(p)
	return port, out
}

func TestSMTPMailer(t *testing.T) {
	port, got := fakeSMTP(t)

	m := notify.NewSMTPMailer(notify.SMTPConfig{Host: "127.0.0.1", Port: port, From: "noreply@purplix.test"})
	require.NoError(t, m.Send(context.Background(), "alice@example.com", "Verify your email", "line one\nline two"))

	msg := <-got
	require.Contains(t, msg, "To: alice@example.com\r\n")
	require.Contains(t, msg, "Subject: Verify your email\r\n")
	require.Contains(t, msg, "line one\r\nline two")
}

func TestSMTPMailerRejectsHeaderInjection(t *testing.T) {
	m := notify.NewSMTPMailer(notify.SMTPConfig{Host: "127.0.0.1", Port: 1, From: "a@b.c"})
	err := m.Send(context.Background(), "alice@example.com\r\nBcc: eve@example.com", "hi", "body")
	require.Error(t, err)
}
