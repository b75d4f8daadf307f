package dht

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/nao1215/dhtcrawler/internal/model"
	"github.com/nao1215/dhtcrawler/internal/telemetry"
)

const (
	// DefaultIterationInterval is how long a session should sleep between ticks.
	DefaultIterationInterval = 50 * time.Millisecond

	// DefaultQueueSize is the number of datagrams buffered between ticks.
	DefaultQueueSize = 4096

	// DefaultTransactionTimeout is how long a query waits for its response.
	DefaultTransactionTimeout = 20 * time.Second

	// maxDatagramSize is large enough for any KRPC message.
	maxDatagramSize = 2048
)

// packet is one received datagram.
type packet struct {
	data []byte
	from netip.AddrPort
}

// Engine is a single DHT node identity bound to one UDP socket.
type Engine struct {
	conn   *net.UDPConn
	id     model.NodeID
	logger *slog.Logger
	clock  clock.Clock

	interval  time.Duration
	txTimeout time.Duration

	packets      chan packet
	onDiscovered func(model.Peer)

	// pending maps transaction ids of outstanding queries to their deadline.
	pending map[string]time.Time
	nextTx  uint16

	closed    atomic.Bool
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Option configures an Engine.
type Option func(*settings)

type settings struct {
	bind      string
	logger    *slog.Logger
	clock     clock.Clock
	queueSize int
	interval  time.Duration
	txTimeout time.Duration
	id        *model.NodeID
}

// WithBind sets the local UDP address. Defaults to ":0".
func WithBind(addr string) Option {
	return func(s *settings) {
		if addr != "" {
			s.bind = addr
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// WithClock sets the clock used for transaction expiry.
func WithClock(c clock.Clock) Option {
	return func(s *settings) {
		s.clock = c
	}
}

// WithQueueSize sets how many datagrams are buffered between ticks.
func WithQueueSize(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.queueSize = n
		}
	}
}

// WithIterationInterval overrides the recommended sleep between ticks.
func WithIterationInterval(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithTransactionTimeout sets how long a query waits for its response.
func WithTransactionTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.txTimeout = d
		}
	}
}

// WithNodeID fixes the engine's identity instead of drawing a random one.
func WithNodeID(id model.NodeID) Option {
	return func(s *settings) {
		s.id = &id
	}
}

// New binds a UDP socket and starts the reader goroutine.
func New(opts ...Option) (*Engine, error) {
	s := settings{
		bind:      ":0",
		queueSize: DefaultQueueSize,
		interval:  DefaultIterationInterval,
		txTimeout: DefaultTransactionTimeout,
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.clock == nil {
		s.clock = clock.New()
	}

	laddr, err := net.ResolveUDPAddr("udp", s.bind)
	if err != nil {
		return nil, fmt.Errorf("invalid bind address %q: %w", s.bind, err)
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", s.bind, err)
	}

	id := model.RandomNodeID()
	if s.id != nil {
		id = *s.id
	}

	e := &Engine{
		conn:         conn,
		id:           id,
		logger:       s.logger,
		clock:        s.clock,
		interval:     s.interval,
		txTimeout:    s.txTimeout,
		packets:      make(chan packet, s.queueSize),
		onDiscovered: func(model.Peer) {},
		pending:      make(map[string]time.Time),
	}

	e.wg.Add(1)
	go e.readLoop()

	return e, nil
}

// ID returns the engine's own identity.
func (e *Engine) ID() model.NodeID {
	return e.id
}

// LocalAddr returns the bound UDP address.
func (e *Engine) LocalAddr() netip.AddrPort {
	return e.conn.LocalAddr().(*net.UDPAddr).AddrPort()
}

// OnDiscovered registers the callback fired from Tick for every node
// reported in a find_node response.
func (e *Engine) OnDiscovered(fn func(model.Peer)) {
	if fn == nil {
		fn = func(model.Peer) {}
	}
	e.onDiscovered = fn
}

// IterationInterval returns the recommended sleep between ticks.
func (e *Engine) IterationInterval() time.Duration {
	return e.interval
}

// Bootstrap asks p about the engine's own identity, which returns the
// nodes closest to us and seeds the session.
func (e *Engine) Bootstrap(p model.Peer) error {
	return e.Query(p, e.id)
}

// Query sends a find_node query to target asking for nodes close to about.
func (e *Engine) Query(target model.Peer, about model.NodeID) error {
	if e.closed.Load() {
		return ErrClosed
	}
	if !target.Addr.IsValid() || target.Addr.Port() == 0 {
		return fmt.Errorf("%w: %s", ErrInvalidAddress, target.Addr)
	}

	tid := e.newTransactionID()
	msg, err := encodeFindNode(tid, e.id, about)
	if err != nil {
		return err
	}

	if _, err := e.conn.WriteToUDPAddrPort(msg, target.Addr); err != nil {
		return fmt.Errorf("failed to send find_node to %s: %w", target.Addr, err)
	}
	e.pending[tid] = e.clock.Now().Add(e.txTimeout)
	return nil
}

// Tick processes every datagram received since the last tick and expires
// unanswered queries. Discovery callbacks run synchronously from here.
func (e *Engine) Tick() error {
	if e.closed.Load() {
		return ErrClosed
	}

	e.expire()

	// Bound the work per tick so a flood cannot starve the caller.
	for range cap(e.packets) {
		select {
		case p := <-e.packets:
			e.handle(p)
		default:
			return nil
		}
	}
	return nil
}

// Close closes the socket and waits for the reader goroutine.
func (e *Engine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		err = e.conn.Close()
		e.wg.Wait()
	})
	return err
}

// readLoop moves datagrams from the socket to the queue until Close.
func (e *Engine) readLoop() {
	defer e.wg.Done()

	buf := make([]byte, maxDatagramSize)
	for {
		n, from, err := e.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) || e.closed.Load() {
				return
			}
			e.logger.Debug("dht read failed", "error", err)
			continue
		}

		data := make([]byte, n)
		copy(data, buf[:n])

		select {
		case e.packets <- packet{data: data, from: netip.AddrPortFrom(from.Addr().Unmap(), from.Port())}:
		default:
			telemetry.DatagramsDropped.Inc()
		}
	}
}

// handle dispatches one datagram.
func (e *Engine) handle(p packet) {
	msg, err := decodeMessage(p.data)
	if err != nil {
		e.logger.Debug("dropping datagram", "from", p.from, "error", err)
		return
	}

	switch msg.Y {
	case typeQuery:
		if msg.Q == methodPing {
			e.pong(msg.T, p.from)
		}
	case typeResponse:
		if _, ok := e.pending[msg.T]; !ok {
			return
		}
		delete(e.pending, msg.T)
		for _, peer := range msg.Nodes {
			e.onDiscovered(peer)
		}
	case typeError:
		delete(e.pending, msg.T)
	}
}

// pong answers a ping so other nodes keep this one in their tables.
func (e *Engine) pong(tid string, to netip.AddrPort) {
	msg, err := encodePong(tid, e.id)
	if err != nil {
		return
	}
	if _, err := e.conn.WriteToUDPAddrPort(msg, to); err != nil {
		e.logger.Debug("failed to answer ping", "to", to, "error", err)
	}
}

// expire forgets queries whose response deadline has passed.
func (e *Engine) expire() {
	now := e.clock.Now()
	for tid, deadline := range e.pending {
		if !now.Before(deadline) {
			delete(e.pending, tid)
		}
	}
}

// newTransactionID returns the next 2-byte transaction id.
func (e *Engine) newTransactionID() string {
	e.nextTx++
	return string(binary.BigEndian.AppendUint16(nil, e.nextTx))
}

// Pending returns the number of queries awaiting a response.
func (e *Engine) Pending() int {
	return len(e.pending)
}
