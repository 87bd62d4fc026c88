package session

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"quiz-session-host/internal/domain"
	"quiz-session-host/internal/protocol"
)

// Transport abstracts the bidirectional session channel so the client can be
// tested without a network.
type Transport interface {
	Dial(ctx context.Context) error
	Send(data []byte) error
	Close() error
	OnMessage(fn func(raw []byte))
	OnClose(fn func(err error))
}

// Options tune host-side policy. Zero values fall back to defaults; the
// countdown and backoff are injectable mostly for tests.
type Options struct {
	// Countdown is the lobby-to-question animation delay. Default 3s.
	Countdown time.Duration
	// ReconnectAttempts bounds reconnects after an unexpected close. Default 5.
	ReconnectAttempts int
	// ReconnectBackoff is the base delay, doubled per attempt. Default 500ms.
	ReconnectBackoff time.Duration
	// DialTimeout bounds each reconnect dial. Default 10s.
	DialTimeout time.Duration
	// MinParticipants gates Start on the number of non-host participants.
	// Zero disables the gate; it is display policy, not a protocol invariant.
	MinParticipants int
}

func (o Options) withDefaults() Options {
	if o.Countdown <= 0 {
		o.Countdown = 3 * time.Second
	}
	if o.ReconnectAttempts <= 0 {
		o.ReconnectAttempts = 5
	}
	if o.ReconnectBackoff <= 0 {
		o.ReconnectBackoff = 500 * time.Millisecond
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = 10 * time.Second
	}
	return o
}

// Client drives one live session from the host side: it decodes inbound
// frames into machine transitions, runs the countdown timer, supervises
// reconnects, and exposes the gated command surface.
type Client struct {
	machine   *Machine
	transport Transport
	opts      Options

	mu        sync.Mutex
	countdown *time.Timer
	closed    bool
	done      chan struct{}
}

func NewClient(t Transport, info domain.SessionInfo, totalQuestions int, opts Options) *Client {
	c := &Client{
		machine:   NewMachine(info, totalQuestions),
		transport: t,
		opts:      opts.withDefaults(),
		done:      make(chan struct{}),
	}
	t.OnMessage(c.handleMessage)
	t.OnClose(c.handleClose)
	return c
}

// Connect opens the session channel. The transport announces the host join on
// open; repeated calls while the channel is open are no-ops.
func (c *Client) Connect(ctx context.Context) error {
	return c.transport.Dial(ctx)
}

// Subscribe exposes the machine's snapshot stream.
func (c *Client) Subscribe() (<-chan Snapshot, func()) {
	return c.machine.Subscribe()
}

// Snapshot returns the current session view.
func (c *Client) Snapshot() Snapshot {
	return c.machine.Snapshot()
}

// Stage returns the current session stage.
func (c *Client) Stage() Stage {
	return c.machine.Stage()
}

// Start requests the server to begin the quiz. Valid only in the lobby; the
// stage advances when the server pushes start back, not here.
func (c *Client) Start() error {
	if c.machine.Stage() != StageLobby {
		return domain.ErrInvalidStage
	}
	if c.opts.MinParticipants > 0 {
		snap := c.machine.Snapshot()
		players := len(snap.Participants) - c.machine.CountByRole(domain.RoleHost)
		if players < c.opts.MinParticipants {
			return domain.ErrNotEnoughParticipants
		}
	}
	return c.send(protocol.TypeStart)
}

// Next requests the following question. Valid only during a question.
func (c *Client) Next() error {
	if c.machine.Stage() != StageQuestion {
		return domain.ErrInvalidStage
	}
	return c.send(protocol.TypeNext)
}

// Finish requests the final results. Valid only on the last question.
func (c *Client) Finish() error {
	if c.machine.Stage() != StageQuestion {
		return domain.ErrInvalidStage
	}
	if !c.machine.IsLastQuestion() {
		return domain.ErrNotLastQuestion
	}
	return c.send(protocol.TypeFinish)
}

// Cancel ends the session. The cancel command is sent best-effort and the
// local stage moves to cancelled regardless of whether the server
// acknowledges, then the channel is torn down.
func (c *Client) Cancel() error {
	if raw, err := protocol.EncodeCommand(protocol.TypeCancel); err == nil {
		if err := c.transport.Send(raw); err != nil {
			log.Printf("session %s: cancel send skipped: %v", c.machine.Snapshot().SessionID, err)
		}
	}
	c.machine.ForceCancel()
	c.shutdown()
	return nil
}

// Close tears the session down: the countdown timer, the transport and all
// snapshot subscribers are released. Idempotent.
func (c *Client) Close() error {
	c.shutdown()
	return nil
}

func (c *Client) send(t protocol.Type) error {
	raw, err := protocol.EncodeCommand(t)
	if err != nil {
		return err
	}
	return c.transport.Send(raw)
}

func (c *Client) handleMessage(raw []byte) {
	ev, err := protocol.Decode(raw)
	if err != nil {
		// Unknown and malformed frames are dropped; the channel survives
		// forward-incompatible messages.
		log.Printf("session: dropping frame: %v", err)
		return
	}

	stage, changed := c.machine.Apply(ev)
	if !changed {
		return
	}
	switch stage {
	case StageCountdown:
		c.armCountdown()
	case StageCancelled:
		c.shutdown()
	default:
		c.stopCountdown()
	}
}

func (c *Client) handleClose(cause error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return
	}

	switch c.machine.Stage() {
	case StageLobby, StageCountdown, StageQuestion:
		log.Printf("session: channel dropped mid-session: %v", cause)
		go c.reconnect(cause)
	default:
		log.Printf("session: channel closed: %v", cause)
	}
}

// reconnect retries the dial with exponential backoff, bounded by
// ReconnectAttempts. The transport replays the join announcement on every
// successful dial. Exhaustion is surfaced to observers as a fatal error.
func (c *Client) reconnect(cause error) {
	lastErr := cause
	delay := c.opts.ReconnectBackoff
	for attempt := 1; attempt <= c.opts.ReconnectAttempts; attempt++ {
		select {
		case <-time.After(delay):
		case <-c.done:
			return
		}
		delay *= 2

		ctx, cancel := context.WithTimeout(context.Background(), c.opts.DialTimeout)
		err := c.transport.Dial(ctx)
		cancel()
		if err == nil {
			log.Printf("session: channel reconnected after %d attempt(s)", attempt)
			return
		}
		lastErr = err
		log.Printf("session: reconnect attempt %d/%d failed: %v", attempt, c.opts.ReconnectAttempts, err)
	}
	c.machine.Fail(fmt.Errorf("%w: %v", domain.ErrReconnectExhausted, lastErr))
}

func (c *Client) armCountdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if c.countdown != nil {
		c.countdown.Stop()
	}
	c.countdown = time.AfterFunc(c.opts.Countdown, func() {
		// The machine re-checks the stage, so a stale expiry after a cancel
		// cannot fire a transition into a torn-down session.
		c.machine.CountdownElapsed()
	})
}

func (c *Client) stopCountdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.countdown != nil {
		c.countdown.Stop()
		c.countdown = nil
	}
}

func (c *Client) shutdown() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.countdown != nil {
		c.countdown.Stop()
		c.countdown = nil
	}
	close(c.done)
	c.mu.Unlock()

	_ = c.transport.Close()
	c.machine.Close()
}
