package presence

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"presenced/internal/metrics"
	"presenced/internal/session"
)

// Event is an asynchronous notification from the channel: the
// connection died or the channel shut down on its side.
type Event struct {
	Err error
}

// Channel is the presence channel capability the publisher drives.
// Implementations must surface connection loss on the Events stream;
// write errors are allowed to be reported there as well.
type Channel interface {
	Connect(ctx context.Context) error
	SetActivity(a Activity) error
	ClearActivity() error
	Close() error

	// Events returns the notification stream for the current
	// connection. Valid after a successful Connect; the channel closes
	// the stream when the connection is gone.
	Events() <-chan Event
}

// ConnState is the publisher's connection status
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
)

// String returns the state name for logging and the status endpoint
func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// ConnStatus is the read-only connection snapshot exposed to the shell
type ConnStatus struct {
	State           ConnState `json:"-"`
	StateName       string    `json:"state"`
	Attempt         int       `json:"attempt"`
	Degraded        bool      `json:"degraded"`
	LastConnectedAt time.Time `json:"lastConnectedAt,omitzero"`
}

// emitKey identifies an emitted state coarsely enough to suppress
// redundant writes: same track, same mode, same elapsed minute.
type emitKey struct {
	id     session.TrackIdentity
	mode   session.Mode
	bucket int64
}

func keyFor(s session.ResolvedSession) emitKey {
	return emitKey{
		id:     s.Identity,
		mode:   s.Mode,
		bucket: int64(s.Elapsed / time.Minute),
	}
}

// Options configure the publisher's reconnect behavior
type Options struct {
	// InitialDelay and MaxDelay bound the exponential backoff.
	InitialDelay time.Duration
	MaxDelay     time.Duration

	// DegradedAfter is the number of consecutive failed connect
	// attempts after which the publisher reports itself degraded.
	// Zero disables the signal.
	DegradedAfter int
}

// Publisher drives the presence channel. Publish never blocks on the
// connection and never returns an error; the connection lifecycle runs
// in a separate goroutine started by Run.
type Publisher struct {
	ch  Channel
	log *slog.Logger
	met *metrics.Metrics
	opt Options

	mu              sync.Mutex
	state           ConnState
	attempt         int
	degraded        bool
	lastConnectedAt time.Time

	desired     session.ResolvedSession
	haveDesired bool
	lastEmitted emitKey
	haveEmitted bool
	cleared     bool

	trackStart time.Time
	lastTrack  session.TrackIdentity
}

// New creates a publisher for the given channel. met may be nil in
// tests.
func New(ch Channel, opt Options, met *metrics.Metrics, log *slog.Logger) *Publisher {
	if opt.InitialDelay <= 0 {
		opt.InitialDelay = time.Second
	}
	if opt.MaxDelay <= 0 {
		opt.MaxDelay = 60 * time.Second
	}
	return &Publisher{
		ch:      ch,
		log:     log,
		met:     met,
		opt:     opt,
		state:   StateDisconnected,
		cleared: true, // a fresh connection has nothing to clear
	}
}

// Publish accepts the latest resolved session. While disconnected it
// only records the desired state so the next successful connect can
// emit it immediately. While connected it writes to the channel unless
// the session is a duplicate of the last emitted state.
func (p *Publisher) Publish(s session.ResolvedSession) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.desired = s
	p.haveDesired = true

	if s.Identity != p.lastTrack {
		p.trackStart = time.Now()
		p.lastTrack = s.Identity
	}

	if p.state != StateConnected {
		return
	}
	p.emitLocked(s)
}

// emitLocked writes the session to the channel if it differs from the
// last emitted state. Caller holds p.mu.
func (p *Publisher) emitLocked(s session.ResolvedSession) {
	if s.IsIdle() {
		if p.cleared {
			return
		}
		if err := p.ch.ClearActivity(); err != nil {
			// Write failures surface as a disconnect on the event
			// stream; nothing to do here.
			p.log.Warn("failed to clear presence", "error", err)
			return
		}
		p.cleared = true
		p.haveEmitted = false
		if p.met != nil {
			p.met.IncClears()
		}
		p.log.Info("presence cleared")
		return
	}

	key := keyFor(s)
	if p.haveEmitted && key == p.lastEmitted {
		return
	}

	if err := p.ch.SetActivity(BuildActivity(s, p.trackStart)); err != nil {
		p.log.Warn("failed to update presence", "error", err)
		return
	}
	p.lastEmitted = key
	p.haveEmitted = true
	p.cleared = false
	if p.met != nil {
		p.met.IncUpdates()
	}
	p.log.Debug("presence updated",
		"track", s.Identity,
		"mode", s.Mode.String(),
		"source", s.Source.String(),
	)
}

// Run owns the connection state machine: connect, watch the event
// stream, reconnect with exponential backoff. It returns when ctx is
// cancelled, closing the channel connection.
func (p *Publisher) Run(ctx context.Context) {
	for {
		if err := p.connect(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			delay := p.failureDelay()
			p.log.Debug("presence channel connect failed", "error", err, "retry_in", delay)
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			continue
		}

		// Connected: block until the connection dies or shutdown.
		events := p.ch.Events()
		select {
		case <-ctx.Done():
			p.shutdown()
			return
		case ev, ok := <-events:
			p.onDisconnect(ev, ok)
		}
	}
}

// connect performs one connection attempt. At most one attempt is ever
// outstanding because only the Run goroutine calls this.
func (p *Publisher) connect(ctx context.Context) error {
	p.setState(StateConnecting)

	if err := p.ch.Connect(ctx); err != nil {
		p.setState(StateDisconnected)
		return err
	}

	p.mu.Lock()
	reconnected := !p.lastConnectedAt.IsZero()
	p.state = StateConnected
	p.attempt = 0
	p.degraded = false
	p.lastConnectedAt = time.Now()
	p.cleared = true // fresh connection displays nothing yet
	p.haveEmitted = false

	// Emit the latest desired state right away rather than waiting for
	// the next cycle.
	if p.haveDesired && !p.desired.IsIdle() {
		p.emitLocked(p.desired)
	}
	p.mu.Unlock()

	if p.met != nil {
		p.met.SetConnected(true)
		p.met.SetDegraded(false)
		if reconnected {
			p.met.IncReconnects()
		}
	}
	p.log.Info("presence channel connected")
	return nil
}

// onDisconnect records the transition out of Connected.
func (p *Publisher) onDisconnect(ev Event, ok bool) {
	p.setState(StateDisconnected)
	if p.met != nil {
		p.met.SetConnected(false)
	}
	if ok && ev.Err != nil {
		p.log.Warn("presence channel disconnected", "error", ev.Err)
	} else {
		p.log.Info("presence channel closed")
	}
	_ = p.ch.Close()
}

// shutdown releases the connection on clean exit.
func (p *Publisher) shutdown() {
	p.mu.Lock()
	if p.state == StateConnected && !p.cleared {
		_ = p.ch.ClearActivity()
	}
	p.state = StateDisconnected
	p.mu.Unlock()
	_ = p.ch.Close()
	if p.met != nil {
		p.met.SetConnected(false)
	}
}

// failureDelay advances the attempt counter and returns how long to
// wait before the next connect. Crossing the degraded threshold flips
// the degraded flag, which stays set until a successful connect.
func (p *Publisher) failureDelay() time.Duration {
	p.mu.Lock()
	delay := backoffDelay(p.attempt, p.opt.InitialDelay, p.opt.MaxDelay)
	p.attempt++
	nowDegraded := p.opt.DegradedAfter > 0 && p.attempt >= p.opt.DegradedAfter && !p.degraded
	if nowDegraded {
		p.degraded = true
	}
	p.mu.Unlock()

	if nowDegraded {
		if p.met != nil {
			p.met.SetDegraded(true)
		}
		p.log.Warn("presence channel unreachable, running degraded", "attempts", p.opt.DegradedAfter)
	}
	return delay
}

// backoffDelay returns initial doubled attempt times, capped at max.
func backoffDelay(attempt int, initial, max time.Duration) time.Duration {
	d := initial
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}

func (p *Publisher) setState(s ConnState) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// Snapshot returns the current connection status for the shell.
func (p *Publisher) Snapshot() ConnStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return ConnStatus{
		State:           p.state,
		StateName:       p.state.String(),
		Attempt:         p.attempt,
		Degraded:        p.degraded,
		LastConnectedAt: p.lastConnectedAt,
	}
}
