// Package notification defines fire-and-forget delivery of workflow messages.
package notification

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"procurement/pkg/logger"
)

// Metadata tags a message with the document it concerns.
type Metadata struct {
	DocType    string `json:"docType"`
	Action     string `json:"action"`
	DocumentID string `json:"documentId,omitempty"`
	DocumentNo string `json:"documentNo,omitempty"`
}

// Message is delivered to every recipient.
type Message struct {
	Recipients []string `json:"recipients"`
	Title      string   `json:"title"`
	Body       string   `json:"body"`
	Metadata   Metadata `json:"metadata"`
}

// Dispatcher delivers a message.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg Message) error
}

// Sender dispatches messages in the background after a commit.
// Failures are logged and never returned.
type Sender struct {
	dispatcher Dispatcher
	timeout    time.Duration
	limit      int

	wg sync.WaitGroup
}

// NewSender creates a Sender. timeout bounds one dispatch, limit bounds
// concurrent dispatches of one Send call.
func NewSender(d Dispatcher, timeout time.Duration, limit int) *Sender {
	if limit <= 0 {
		limit = 4
	}
	return &Sender{dispatcher: d, timeout: timeout, limit: limit}
}

// Send starts delivering msgs and returns immediately.
func (s *Sender) Send(ctx context.Context, msgs ...Message) {
	if s == nil || s.dispatcher == nil || len(msgs) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		var g errgroup.Group
		g.SetLimit(s.limit)
		for _, msg := range msgs {
			if len(msg.Recipients) == 0 {
				continue
			}
			g.Go(func() error {
				s.dispatch(ctx, msg)
				return nil
			})
		}
		_ = g.Wait()
	}()
}

// Wait blocks until every started Send has finished. Used on shutdown and in tests.
func (s *Sender) Wait() {
	if s == nil {
		return
	}
	s.wg.Wait()
}

func (s *Sender) dispatch(ctx context.Context, msg Message) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, "notification dispatcher panicked", "panic", r, "action", msg.Metadata.Action)
		}
	}()

	if err := s.dispatcher.Dispatch(ctx, msg); err != nil {
		logger.Warn(ctx, "notification delivery failed",
			"error", err,
			"doc_type", msg.Metadata.DocType,
			"action", msg.Metadata.Action,
			"document_no", msg.Metadata.DocumentNo,
			"recipients", len(msg.Recipients),
		)
	}
}
