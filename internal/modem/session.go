package modem

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"gsmtrack/internal/model"
)

// AT commands the driver issues. CNMI enables unsolicited "message received"
// indications so new SMS can be detected without polling the SIM storage.
const (
	cmdEnableNotify = "AT+CNMI=2,1,0,0,0"
	cmdReadMessage  = "AT+CMGR=%d"
	cmdDeleteAll    = "AT+CMGD=1,4"
)

// defaultSettle is how long the modem gets to finish a response before the
// buffered bytes are drained. There is no retry: a modem that answers slower
// than this produces a truncated response, which parses as no message.
const defaultSettle = time.Second

// ErrSessionClosed is returned for any command issued after Close.
var ErrSessionClosed = errors.New("modem: session closed")

// messagePattern matches a CMGR response for an unread SMS: the header line
// with the sender's number, then the message body on the following line.
var messagePattern = regexp.MustCompile(`\+CMGR: "REC UNREAD","(\+?\d+)".*\r\n(.+)\r\n`)

// Session speaks the AT command protocol over one open serial channel.
// All methods other than Close require the session to be open.
type Session struct {
	port   Port
	logger *zap.Logger
	settle time.Duration

	mu     sync.Mutex
	closed bool
}

// NewSession wraps an open port.
func NewSession(port Port, logger *zap.Logger) *Session {
	return &Session{port: port, logger: logger, settle: defaultSettle}
}

// Configure enables unsolicited SMS notifications on the modem.
func (s *Session) Configure(ctx context.Context) error {
	_, err := s.Command(ctx, cmdEnableNotify)
	return err
}

// Command writes one command line, waits for the modem to settle, then
// drains and returns whatever the modem answered.
func (s *Session) Command(ctx context.Context, cmd string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrSessionClosed
	}

	if _, err := s.port.Write([]byte(cmd + "\r")); err != nil {
		return "", fmt.Errorf("modem: write %q: %w", cmd, err)
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(s.settle):
	}

	resp, err := s.drain()
	s.logger.Debug("modem exchange",
		zap.String("command", cmd),
		zap.String("response", resp),
	)
	if err != nil {
		return resp, fmt.Errorf("modem: read response to %q: %w", cmd, err)
	}
	return resp, nil
}

// ReadSMS reads the stored message at the given index and decodes it. An
// unparseable or absent message is not an error: the returned message is
// simply empty.
func (s *Session) ReadSMS(ctx context.Context, index int) (model.Message, error) {
	resp, err := s.Command(ctx, fmt.Sprintf(cmdReadMessage, index))
	if err != nil {
		return model.Message{}, err
	}

	match := messagePattern.FindStringSubmatch(resp)
	if match == nil {
		s.logger.Debug("no readable message at index", zap.Int("index", index))
		return model.Message{}, nil
	}

	phone := match[1]
	start, points, ok := parseBody(strings.TrimSpace(match[2]), s.logger)
	if !ok || len(points) == 0 {
		return model.Message{}, nil
	}

	times := SyntheticTimes(start, len(points))
	for i := range points {
		points[i].RecordedAt = times[i]
	}
	return model.Message{Phone: phone, Points: points}, nil
}

// DeleteAll wipes the SIM message storage. Failure is logged rather than
// returned: the next pass after a successful read retries the delete anyway.
func (s *Session) DeleteAll(ctx context.Context) {
	resp, err := s.Command(ctx, cmdDeleteAll)
	if err != nil {
		s.logger.Warn("delete stored messages failed", zap.Error(err))
		return
	}
	if !strings.Contains(resp, "OK") {
		s.logger.Warn("modem rejected message delete", zap.String("response", resp))
		return
	}
	s.logger.Debug("stored messages deleted")
}

// ReadPending drains bytes the modem pushed unsolicited, without sending a
// command first. The listener uses this to watch for CMTI indications.
func (s *Session) ReadPending() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrSessionClosed
	}
	return s.drain()
}

// Close shuts the serial channel. Any blocked read fails, which also stops a
// listener that missed the context cancellation.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.port.Close()
}

// drain reads the bytes currently buffered on the channel. A full chunk means
// more may be pending; a short or zero-byte (timed out) read ends the drain.
// Callers must hold s.mu.
func (s *Session) drain() (string, error) {
	buf := make([]byte, 4096)
	var out []byte
	for {
		n, err := s.port.Read(buf)
		if n > 0 {
			out = append(out, buf[:n]...)
		}
		if err != nil {
			return string(out), err
		}
		if n < len(buf) {
			return string(out), nil
		}
	}
}
