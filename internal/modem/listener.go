package modem

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"time"

	"go.uber.org/zap"

	"gsmtrack/internal/model"
)

// indicationPattern matches the unsolicited notification the modem emits
// when a new SMS lands in SIM storage.
var indicationPattern = regexp.MustCompile(`\+CMTI: "SM",(\d+)`)

const (
	defaultPollInterval = 500 * time.Millisecond
	messageBuffer       = 16
)

// Listener watches the serial channel for message-received indications,
// reads and decodes each indicated SMS, and hands the result to a consumer
// over a channel. It owns no UI concerns: the consumer decides what a
// decoded message means.
type Listener struct {
	session *Session
	logger  *zap.Logger
	poll    time.Duration
	out     chan model.Message
}

// NewListener builds a listener with the given poll interval; zero selects
// the default.
func NewListener(session *Session, poll time.Duration, logger *zap.Logger) *Listener {
	if poll <= 0 {
		poll = defaultPollInterval
	}
	return &Listener{
		session: session,
		logger:  logger,
		poll:    poll,
		out:     make(chan model.Message, messageBuffer),
	}
}

// Messages is the stream of decoded SMS. It is closed when Run returns.
func (l *Listener) Messages() <-chan model.Message {
	return l.out
}

// Run polls the channel for indications until the context is cancelled or
// the session is closed. Unparseable messages are skipped; communication
// failures end the loop.
func (l *Listener) Run(ctx context.Context) error {
	defer close(l.out)

	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()

	// Unsolicited lines can arrive split across reads, so unmatched bytes
	// carry over to the next pass.
	var pending string

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		chunk, err := l.session.ReadPending()
		pending += chunk
		if err != nil {
			if errors.Is(err, ErrSessionClosed) || ctx.Err() != nil {
				return nil
			}
			return err
		}

		match := indicationPattern.FindStringSubmatch(pending)
		if match == nil {
			pending = trimPending(pending)
			continue
		}
		pending = ""

		index, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		l.logger.Info("sms indication received", zap.Int("index", index))

		msg, err := l.session.ReadSMS(ctx, index)
		if err != nil {
			if errors.Is(err, ErrSessionClosed) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		if msg.Empty() {
			continue
		}

		select {
		case l.out <- msg:
		case <-ctx.Done():
			return ctx.Err()
		}

		l.session.DeleteAll(ctx)
	}
}

// trimPending caps the carry-over buffer so a chatty modem cannot grow it
// without bound. An indication line is well under this size.
func trimPending(pending string) string {
	const keep = 256
	if len(pending) <= keep {
		return pending
	}
	return pending[len(pending)-keep:]
}
