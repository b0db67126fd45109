// Package notify delivers parent notifications about student lifecycle
// events.
//
// A Notifier is the transport. A Dispatcher wraps one and guarantees that a
// notification never fails or blocks the operation that triggered it:
// Dispatch runs in the background with a timeout and only logs failures.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// EventType names what happened to the student.
type EventType string

const (
	EventUpdate    EventType = "Update"
	EventDelete    EventType = "Delete"
	EventComplaint EventType = "Complaint"
)

// Notification is one message to a parent.
type Notification struct {
	RecipientEmail string
	SubjectName    string
	Event          EventType
	Details        string
}

// Notifier delivers a notification.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier records the intent to notify and delivers nothing. It is the
// transport used while email delivery is not configured.
type LogNotifier struct {
	log *slog.Logger
}

// NewLogNotifier returns a LogNotifier writing to log.
func NewLogNotifier(log *slog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(_ context.Context, msg Notification) error {
	n.log.Info("notification skipped: email delivery is not configured",
		slog.String("event", string(msg.Event)),
		slog.String("student", msg.SubjectName),
		slog.String("recipient", msg.RecipientEmail),
	)
	return nil
}

// Dispatcher runs notifications against a Notifier with a per-attempt timeout.
type Dispatcher struct {
	notifier Notifier
	timeout  time.Duration
	log      *slog.Logger

	wg sync.WaitGroup
}

// NewDispatcher returns a Dispatcher that bounds each attempt by timeout and
// logs background failures to log.
func NewDispatcher(notifier Notifier, timeout time.Duration, log *slog.Logger) *Dispatcher {
	return &Dispatcher{
		notifier: notifier,
		timeout:  timeout,
		log:      log,
	}
}

// Dispatch sends n in the background. Errors, panics and timeouts are logged
// and never reach the caller.
func (d *Dispatcher) Dispatch(n Notification) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		if err := d.Send(context.Background(), n); err != nil {
			d.log.Warn("notification failed",
				slog.String("event", string(n.Event)),
				slog.String("student", n.SubjectName),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// Send delivers n synchronously, bounded by the dispatcher timeout, and
// reports the outcome. A panicking notifier is reported as an error.
func (d *Dispatcher) Send(ctx context.Context, n Notification) (err error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("notifier panic: %v", r)
			}
		}()
		done <- d.notifier.Notify(ctx, n)
	}()

	select {
	case err = <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("notify %s for %s: %w", n.Event, n.SubjectName, ctx.Err())
	}
}

// Wait blocks until every dispatched notification has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
