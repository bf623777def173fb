// Package bridge forwards native calls queued by components to NATS, so
// host processes (mobile shells, desktop wrappers, workers) can act on
// them without polling the browser.
//
// Every call is published on "<subject>.<call name>", e.g.
// "live.native.device.vibrate".
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/pthm/livecmp"
)

const logPrefix = "bridge:nats"

// DefaultSubject prefixes published subjects.
const DefaultSubject = "live.native"

// Message is the JSON body of a published call.
type Message struct {
	Component string    `json:"component"`
	Name      string    `json:"name"`
	Detail    any       `json:"detail"`
	Time      time.Time `json:"time"`
}

// Connect opens a NATS connection that reconnects in the background.
func Connect(url, name string, logger *slog.Logger) (*nats.Conn, error) {
	if logger == nil {
		logger = slog.Default()
	}
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.Timeout(10*time.Second),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(60),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn(fmt.Sprintf("%s - disconnected", logPrefix), "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info(fmt.Sprintf("%s - reconnected", logPrefix), "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("%s - connect %s: %w", logPrefix, url, err)
	}
	return nc, nil
}

// Publisher is a livecmp.NativeSink backed by NATS.
type Publisher struct {
	nc      *nats.Conn
	subject string
	now     func() time.Time
}

var _ livecmp.NativeSink = (*Publisher)(nil)

// NewPublisher publishes on subject, or DefaultSubject when empty.
func NewPublisher(nc *nats.Conn, subject string) *Publisher {
	if subject == "" {
		subject = DefaultSubject
	}
	return &Publisher{nc: nc, subject: subject, now: time.Now}
}

// Subject returns the subject a call named name is published on.
func (p *Publisher) Subject(name string) string {
	return p.subject + "." + name
}

// PublishNative publishes calls in order. Failed calls do not stop the
// rest; their errors are joined.
func (p *Publisher) PublishNative(ctx context.Context, component string, calls []livecmp.Event) error {
	var errs []error
	for _, call := range calls {
		data, err := json.Marshal(Message{
			Component: component,
			Name:      call.Name,
			Detail:    call.Detail,
			Time:      p.now().UTC(),
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("%s - encode %s: %w", logPrefix, call.Name, err))
			continue
		}
		if err := p.nc.Publish(p.Subject(call.Name), data); err != nil {
			errs = append(errs, fmt.Errorf("%s - publish %s: %w", logPrefix, call.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Subscribe delivers published calls matching pattern (relative to
// subject, e.g. "device.>") to fn. Undecodable messages are dropped.
func Subscribe(nc *nats.Conn, subject, pattern string, fn func(Message)) (*nats.Subscription, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	return nc.Subscribe(subject+"."+pattern, func(msg *nats.Msg) {
		var m Message
		if err := json.Unmarshal(msg.Data, &m); err != nil {
			return
		}
		fn(m)
	})
}
