// Package chat implements the message-delivery engine: for each inbound
// message event it validates, consults the block registry, persists, and
// routes to the receiver's live session when one exists.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rakhisingh42/Chat-Application/internal/logger"
	"github.com/rakhisingh42/Chat-Application/internal/session"
	"github.com/rakhisingh42/Chat-Application/internal/store"
)

// ErrMissingParticipants indicates a message event without a sender or
// receiver. The event is dropped before any block check or persistence.
var ErrMissingParticipants = errors.New("chat: sender and receiver are required")

// ErrPersistence indicates a storage failure inside the engine. The wrapped
// cause follows; the operation is aborted, never retried.
var ErrPersistence = errors.New("chat: persistence failure")

// ErrStopped is returned by Submit after the engine has shut down.
var ErrStopped = errors.New("chat: engine stopped")

// Outcome classifies what the engine did with one message event.
type Outcome string

const (
	// OutcomeDelivered means the message was persisted and pushed to the
	// receiver's live session.
	OutcomeDelivered Outcome = "delivered"
	// OutcomeStored means the message was persisted but the receiver had no
	// live session; delivery is best-effort and this still counts as success.
	OutcomeStored Outcome = "stored"
	// OutcomeSuppressed means the receiver has blocked the sender. Nothing is
	// persisted and the sender gets no feedback.
	OutcomeSuppressed Outcome = "suppressed"
	// OutcomeRejected means validation or persistence failed; Err carries the
	// reason and an error frame is pushed to the sender's session.
	OutcomeRejected Outcome = "rejected"
)

// Result reports the outcome of processing one event.
type Result struct {
	Outcome Outcome
	Message store.Message
	Err     error
}

// MessageStore is the persistence surface the engine writes through.
type MessageStore interface {
	SaveMessage(ctx context.Context, msg store.Message) (store.Message, error)
	SaveUser(ctx context.Context, username string) error
}

// Suppressor answers whether a sender-to-receiver message must be dropped.
type Suppressor interface {
	IsSuppressed(ctx context.Context, sender, receiver string) (bool, error)
}

// Resolver looks up the live session for a username.
type Resolver interface {
	Resolve(username string) (*session.Session, bool)
}

// Engine orchestrates validate, block-check, persist, and route for every
// inbound message event. Events flow in through Submit and are consumed by a
// single Run loop, so persistence and the subsequent delivery attempt happen
// in arrival order as one sequential unit.
type Engine struct {
	messages MessageStore
	blocks   Suppressor
	sessions Resolver

	events chan Event
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewEngine constructs an Engine with its collaborators injected. Call Run in
// a goroutine to start consuming events.
func NewEngine(messages MessageStore, blocks Suppressor, sessions Resolver) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		messages: messages,
		blocks:   blocks,
		sessions: sessions,
		events:   make(chan Event, 64),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Connect records the connecting username in the store. The gateway calls it
// on every websocket connect; the upsert is idempotent.
func (e *Engine) Connect(ctx context.Context, username string) error {
	if err := e.messages.SaveUser(ctx, username); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

// Submit queues an event for processing. It returns ErrStopped once the
// engine has shut down.
func (e *Engine) Submit(ev Event) error {
	select {
	case <-e.ctx.Done():
		return ErrStopped
	case e.events <- ev:
		return nil
	}
}

// Run consumes submitted events until Shutdown is called. Rejected events are
// reported back to the sender's own session as an error frame; suppressed
// events leave no trace anywhere.
func (e *Engine) Run() {
	defer close(e.done)

	for {
		select {
		case <-e.ctx.Done():
			e.drain()
			return
		case ev := <-e.events:
			result := e.Process(e.ctx, ev)
			e.report(ev, result)
		}
	}
}

// drain processes events still buffered at shutdown so nothing accepted from
// a client is dropped unpersisted. The engine context is already cancelled,
// so draining runs under a fresh one.
func (e *Engine) drain() {
	for {
		select {
		case ev := <-e.events:
			result := e.Process(context.Background(), ev)
			e.report(ev, result)
		default:
			return
		}
	}
}

// Shutdown stops the event loop and waits for it to drain, up to timeout.
func (e *Engine) Shutdown(timeout time.Duration) error {
	e.cancel()

	select {
	case <-e.done:
		return nil
	case <-time.After(timeout):
		return context.DeadlineExceeded
	}
}

// Process handles one event synchronously and returns its Result. It is the
// unit-testable core; Run wraps it with sender feedback.
func (e *Engine) Process(ctx context.Context, ev Event) Result {
	if ev.Sender == "" || ev.Receiver == "" {
		return Result{Outcome: OutcomeRejected, Err: ErrMissingParticipants}
	}

	suppressed, err := e.blocks.IsSuppressed(ctx, ev.Sender, ev.Receiver)
	if err != nil {
		return Result{Outcome: OutcomeRejected, Err: fmt.Errorf("%w: %v", ErrPersistence, err)}
	}
	if suppressed {
		logger.L.Debug("message suppressed", "sender", ev.Sender, "receiver", ev.Receiver)
		return Result{Outcome: OutcomeSuppressed}
	}

	msg, err := e.messages.SaveMessage(ctx, store.Message{
		Sender:   ev.Sender,
		Receiver: ev.Receiver,
		Body:     ev.Body,
		FilePath: ev.FilePath,
	})
	if err != nil {
		return Result{Outcome: OutcomeRejected, Err: fmt.Errorf("%w: %v", ErrPersistence, err)}
	}

	receiver, ok := e.sessions.Resolve(ev.Receiver)
	if !ok {
		logger.L.Debug("receiver offline, message stored", "sender", ev.Sender, "receiver", ev.Receiver, "id", msg.ID)
		return Result{Outcome: OutcomeStored, Message: msg}
	}

	if err := receiver.Send(e.payload(ev)); err != nil {
		// The row is already durable; a failed push downgrades to stored.
		logger.L.Warn("push to receiver failed", "receiver", ev.Receiver, "id", msg.ID, "error", err)
		return Result{Outcome: OutcomeStored, Message: msg}
	}

	logger.L.Debug("message delivered", "sender", ev.Sender, "receiver", ev.Receiver, "id", msg.ID)
	return Result{Outcome: OutcomeDelivered, Message: msg}
}

// payload returns the bytes forwarded to the receiver: the original inbound
// frame when available, otherwise a re-encoding of the event.
func (e *Engine) payload(ev Event) []byte {
	if len(ev.Raw) > 0 {
		return ev.Raw
	}
	encoded, err := json.Marshal(ev)
	if err != nil {
		return nil
	}
	return encoded
}

// report pushes an error frame to the sender's session for rejected events.
// Delivered, stored, and suppressed outcomes produce no sender feedback.
func (e *Engine) report(ev Event, result Result) {
	if result.Outcome != OutcomeRejected {
		return
	}

	logger.L.Warn("message rejected", "sender", ev.Sender, "receiver", ev.Receiver, "error", result.Err)

	sender, ok := e.sessions.Resolve(ev.Sender)
	if !ok {
		return
	}

	code := CodeStorageError
	if errors.Is(result.Err, ErrMissingParticipants) {
		code = CodeValidationError
	}
	frame, err := json.Marshal(NewErrorFrame(code, result.Err.Error()))
	if err != nil {
		return
	}
	_ = sender.Send(frame)
}
