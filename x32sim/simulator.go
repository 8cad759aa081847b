package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/SimpleVolumeControl/SimpleVolumeControl/logger"
	goosc "github.com/hypebeast/go-osc/osc"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	subscriptionTTL = 10 * time.Second
	meterInterval   = 50 * time.Millisecond
)

var colorCodes = []string{
	"OFF", "RD", "GN", "YE", "BL", "MG", "CY", "WH",
	"OFFi", "RDi", "GNi", "YEi", "BLi", "MGi", "CYi", "WHi",
}

type subscriber struct {
	addr    *net.UDPAddr
	expires time.Time
}

// Simulator answers the subset of the console protocol the driver speaks.
type Simulator struct {
	conn *net.UDPConn
	log  *logrus.Entry

	mu      sync.Mutex
	values  map[string]interface{}
	remotes map[string]subscriber
	meters  map[string]map[string]subscriber // stream -> subscribers
	levels  map[string][]float32             // stream -> meter values
}

// NewSimulator listens on addr (host:port, port 0 picks a free one).
func NewSimulator(addr string) (*Simulator, error) {
	laddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, errors.Wrap(err, "resolving listen address")
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, errors.Wrap(err, "listening")
	}
	return &Simulator{
		conn:    conn,
		log:     logger.GetProjectLogger().WithField("component", "x32sim"),
		values:  make(map[string]interface{}),
		remotes: make(map[string]subscriber),
		meters:  make(map[string]map[string]subscriber),
		levels:  make(map[string][]float32),
	}, nil
}

// Addr returns the address the simulator listens on.
func (s *Simulator) Addr() *net.UDPAddr {
	return s.conn.LocalAddr().(*net.UDPAddr)
}

// Run serves requests and streams meters until ctx is done.
func (s *Simulator) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		return s.conn.Close()
	})
	g.Go(func() error {
		return s.serve(ctx)
	})
	g.Go(func() error {
		return s.streamMeters(ctx)
	})
	return g.Wait()
}

func (s *Simulator) serve(ctx context.Context) error {
	buf := make([]byte, 65536)
	for {
		n, from, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "reading packet")
		}
		packet, err := goosc.ParsePacket(string(buf[:n]))
		if err != nil {
			s.log.WithError(err).Warn("Dropping unparseable packet")
			continue
		}
		msg, ok := packet.(*goosc.Message)
		if !ok {
			continue
		}
		s.handle(msg, from)
	}
}

func (s *Simulator) handle(msg *goosc.Message, from *net.UDPAddr) {
	s.log.WithFields(logrus.Fields{"from": from, "msg": msg.String()}).Debug("Received")

	switch msg.Address {
	case "/xremote":
		s.mu.Lock()
		s.remotes[from.String()] = subscriber{addr: from, expires: time.Now().Add(subscriptionTTL)}
		s.mu.Unlock()
		return
	case "/meters":
		if len(msg.Arguments) == 0 {
			return
		}
		stream, ok := msg.Arguments[0].(string)
		if !ok {
			return
		}
		s.mu.Lock()
		if s.meters[stream] == nil {
			s.meters[stream] = make(map[string]subscriber)
		}
		s.meters[stream][from.String()] = subscriber{addr: from, expires: time.Now().Add(subscriptionTTL)}
		s.mu.Unlock()
		return
	case "/node":
		if len(msg.Arguments) == 0 {
			return
		}
		if node, ok := msg.Arguments[0].(string); ok {
			s.reply(from, goosc.NewMessage("node", s.nodeLine(node)))
		}
		return
	}

	if len(msg.Arguments) == 0 {
		s.reply(from, goosc.NewMessage(msg.Address, s.Value(msg.Address)))
		return
	}
	s.set(msg.Address, msg.Arguments[0], from)
}

// nodeLine renders an entity config, e.g. `/ch/01/config "Kick" 1 RD 1`.
func (s *Simulator) nodeLine(node string) string {
	prefix := "/" + strings.TrimSuffix(node, "/config")
	name, _ := s.Value(prefix + "/config/name").(string)
	color, _ := s.Value(prefix + "/config/color").(int32)
	code := colorCodes[0]
	if color >= 0 && int(color) < len(colorCodes) {
		code = colorCodes[color]
	}
	return fmt.Sprintf("/%s \"%s\" 1 %s 1\n", node, name, code)
}

// Value returns the stored value of an address, or the default for its kind.
func (s *Simulator) Value(address string) interface{} {
	s.mu.Lock()
	v, ok := s.values[address]
	s.mu.Unlock()
	if ok {
		return v
	}

	switch {
	case strings.HasSuffix(address, "/config/name"):
		return ""
	case strings.HasSuffix(address, "/config/color"):
		return int32(0)
	case strings.HasSuffix(address, "/fader"), strings.HasSuffix(address, "/level"), strings.HasSuffix(address, "/mlevel"):
		return float32(0)
	default:
		return int32(0)
	}
}

// Set stores a value and pushes it to all remote subscribers.
func (s *Simulator) Set(address string, value interface{}) {
	s.set(address, value, nil)
}

func (s *Simulator) set(address string, value interface{}, from *net.UDPAddr) {
	s.mu.Lock()
	s.values[address] = value
	targets := s.liveLocked(s.remotes)
	s.mu.Unlock()

	msg := goosc.NewMessage(address, value)
	for _, addr := range targets {
		if from != nil && addr.String() == from.String() {
			continue
		}
		s.reply(addr, msg)
	}
}

// SetMeters sets the values streamed for a meter stream.
func (s *Simulator) SetMeters(stream string, values []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.levels[stream] = append([]float32(nil), values...)
}

func (s *Simulator) streamMeters(ctx context.Context) error {
	t := time.NewTicker(meterInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			for _, stream := range []string{"/meters/1", "/meters/2"} {
				s.mu.Lock()
				targets := s.liveLocked(s.meters[stream])
				values := s.levels[stream]
				s.mu.Unlock()

				if len(targets) == 0 {
					continue
				}
				msg := goosc.NewMessage(stream, meterBlob(values))
				for _, addr := range targets {
					s.reply(addr, msg)
				}
			}
		}
	}
}

// liveLocked drops expired subscribers and returns the others.
func (s *Simulator) liveLocked(subs map[string]subscriber) []*net.UDPAddr {
	now := time.Now()
	out := make([]*net.UDPAddr, 0, len(subs))
	for key, sub := range subs {
		if now.After(sub.expires) {
			delete(subs, key)
			continue
		}
		out = append(out, sub.addr)
	}
	return out
}

func (s *Simulator) reply(to *net.UDPAddr, msg *goosc.Message) {
	data, err := msg.MarshalBinary()
	if err != nil {
		s.log.WithError(err).WithField("address", msg.Address).Error("Cannot encode reply")
		return
	}
	if _, err := s.conn.WriteToUDP(data, to); err != nil {
		s.log.WithError(err).WithField("to", to).Debug("Cannot send reply")
	}
}

func meterBlob(values []float32) []byte {
	blob := binary.BigEndian.AppendUint32(nil, uint32(len(values)))
	for _, v := range values {
		blob = binary.BigEndian.AppendUint32(blob, math.Float32bits(v))
	}
	return blob
}
