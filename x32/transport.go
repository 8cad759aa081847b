package x32

import (
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Closing decides how long the socket of a command stays open.
type Closing int

const (
	// CloseOnReply closes the socket after the first reply or the socket
	// timeout, whichever comes first.
	CloseOnReply Closing = iota
	// KeepOpen keeps the socket open until another KeepOpen command for the
	// same slot replaces it.
	KeepOpen
)

// Slot names a long-lived subscription socket.
type Slot int

const (
	SlotNone Slot = iota
	SlotXRemote
	SlotMeters1
	SlotMeters2
)

func (s Slot) String() string {
	switch s {
	case SlotXRemote:
		return "xremote"
	case SlotMeters1:
		return "meters1"
	case SlotMeters2:
		return "meters2"
	default:
		return "none"
	}
}

// Command is one encoded message together with its socket strategy.
type Command struct {
	Payload []byte
	Closing Closing
	Slot    Slot
}

// Transport delivers commands to the console. Every packet received in reply
// is handed to the deliver callback the transport was created with.
type Transport interface {
	Send(cmd Command)
	Close()
}

// TransportFactory creates a transport for addr (host:port).
type TransportFactory func(addr string, deliver func([]byte)) Transport

const maxPacketSize = 65536

// UDPTransport sends every command from a fresh UDP socket and reads the
// replies on that socket.
type UDPTransport struct {
	addr            string
	timeout         time.Duration
	keepOpenTimeout time.Duration
	deliver         func([]byte)
	log             *logrus.Entry

	mu     sync.Mutex
	closed bool
	conns  map[*net.UDPConn]struct{}
	slots  map[Slot]*net.UDPConn
	wg     sync.WaitGroup
}

// NewUDPTransport creates a transport for addr. Sockets of CloseOnReply
// commands are closed after timeout at the latest, subscription sockets after
// keepOpenTimeout.
func NewUDPTransport(addr string, timeout, keepOpenTimeout time.Duration, deliver func([]byte), log *logrus.Entry) *UDPTransport {
	return &UDPTransport{
		addr:            addr,
		timeout:         timeout,
		keepOpenTimeout: keepOpenTimeout,
		deliver:         deliver,
		log:             log,
		conns:           make(map[*net.UDPConn]struct{}),
		slots:           make(map[Slot]*net.UDPConn),
	}
}

// Send opens a socket, writes the payload and starts reading replies. Errors
// are logged, never returned.
func (t *UDPTransport) Send(cmd Command) {
	raddr, err := net.ResolveUDPAddr("udp", t.addr)
	if err != nil {
		t.log.WithError(err).WithField("addr", t.addr).Warn("Cannot resolve console address")
		return
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		t.log.WithError(err).WithField("addr", t.addr).Warn("Cannot open socket")
		return
	}

	deadline := t.timeout
	if cmd.Closing == KeepOpen {
		deadline = t.keepOpenTimeout
	}
	_ = conn.SetDeadline(time.Now().Add(deadline))

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		closeQuietly(conn)
		return
	}
	t.conns[conn] = struct{}{}
	var superseded *net.UDPConn
	if cmd.Closing == KeepOpen {
		superseded = t.slots[cmd.Slot]
		t.slots[cmd.Slot] = conn
	}
	t.wg.Add(1)
	t.mu.Unlock()

	if superseded != nil {
		t.release(superseded)
	}

	go t.read(conn, cmd.Closing == CloseOnReply)

	if _, err := conn.Write(cmd.Payload); err != nil {
		t.log.WithError(err).WithField("slot", cmd.Slot).Debug("Write to console failed")
		t.release(conn)
	}
}

func (t *UDPTransport) read(conn *net.UDPConn, once bool) {
	defer t.wg.Done()
	defer t.release(conn)

	buf := make([]byte, maxPacketSize)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		packet := make([]byte, n)
		copy(packet, buf[:n])
		t.deliver(packet)
		if once {
			return
		}
	}
}

// release forgets and closes a socket. Releasing a socket twice is harmless.
func (t *UDPTransport) release(conn *net.UDPConn) {
	t.mu.Lock()
	delete(t.conns, conn)
	for slot, c := range t.slots {
		if c == conn {
			delete(t.slots, slot)
		}
	}
	t.mu.Unlock()
	closeQuietly(conn)
}

// Close closes every open socket and waits for the readers to finish. Later
// sends are dropped.
func (t *UDPTransport) Close() {
	t.mu.Lock()
	t.closed = true
	conns := make([]*net.UDPConn, 0, len(t.conns))
	for c := range t.conns {
		conns = append(conns, c)
	}
	t.conns = make(map[*net.UDPConn]struct{})
	t.slots = make(map[Slot]*net.UDPConn)
	t.mu.Unlock()

	for _, c := range conns {
		closeQuietly(c)
	}
	t.wg.Wait()
}

// OpenSockets returns the number of sockets currently open.
func (t *UDPTransport) OpenSockets() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.conns)
}

func closeQuietly(conn *net.UDPConn) {
	_ = conn.Close()
}
