// Package x32 drives Behringer X32 and Midas M32 consoles over their OSC
// based UDP protocol.
package x32

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/SimpleVolumeControl/SimpleVolumeControl/catalog"
	"github.com/SimpleVolumeControl/SimpleVolumeControl/logger"
	"github.com/SimpleVolumeControl/SimpleVolumeControl/mixer"
	"github.com/SimpleVolumeControl/SimpleVolumeControl/osc"
	"github.com/SimpleVolumeControl/SimpleVolumeControl/queue"
	"github.com/SimpleVolumeControl/SimpleVolumeControl/utils"
	"github.com/gruntwork-io/go-commons/errors"
	"github.com/sirupsen/logrus"
	"k8s.io/utils/clock"
)

// InvalidAddress is returned for console addresses that are not an IP.
type InvalidAddress struct {
	Address string
}

func (err InvalidAddress) Error() string {
	return fmt.Sprintf("invalid console address %q", err.Address)
}

const inboundBuffer = 256

// Driver is a mixer.Mixer for the X32 family. It mirrors the console state in
// a local cache, kept up to date by push updates and a continuous re-poll of
// every known value.
type Driver struct {
	opts     options
	console  catalog.Console
	routes   *routes
	registry *mixer.Registry
	log      *logrus.Entry

	mu          sync.RWMutex
	names       map[string]string
	colors      map[string]string
	levels      map[send]float64
	mutes       map[send]bool
	meters      map[string]int
	metersDirty bool

	ip string

	lifeMu  sync.Mutex
	session atomic.Pointer[session]
}

// session holds everything that lives from one start to the next stop.
type session struct {
	ctx       context.Context
	cancel    context.CancelFunc
	inbound   chan []byte
	queue     *queue.Queue[Command]
	transport Transport
	renew     clock.Ticker
	resync    clock.Ticker
	polls     *utils.Cycle[osc.Message]
}

// New creates a driver for the console at ip and starts talking to it.
func New(ip string, console catalog.Console, opts ...Option) (*Driver, error) {
	o := options{
		port:           DefaultPort,
		clock:          clock.RealClock{},
		queueInterval:  DefaultQueueInterval,
		renewInterval:  DefaultRenewInterval,
		resyncInterval: DefaultResyncInterval,
		socketTimeout:  DefaultSocketTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.GetProjectLogger()
	}

	d := &Driver{
		opts:     o,
		console:  console,
		routes:   newRoutes(console),
		registry: mixer.NewRegistry(),
		log:      o.log.WithField("console", console.Name),
	}

	if err := d.SetAddress(ip); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Driver) resetCache() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.names = make(map[string]string)
	d.colors = make(map[string]string)
	d.levels = make(map[send]float64)
	d.mutes = make(map[send]bool)
	d.meters = make(map[string]int)
	d.metersDirty = false
}

// SetAddress tears down all network state and starts over with the console at
// ip. The cache is cleared, listeners stay registered.
func (d *Driver) SetAddress(ip string) error {
	if net.ParseIP(ip) == nil {
		return errors.WithStackTrace(InvalidAddress{Address: ip})
	}

	d.lifeMu.Lock()
	defer d.lifeMu.Unlock()

	d.stopLocked()
	d.resetCache()
	d.mu.Lock()
	d.ip = ip
	d.mu.Unlock()
	return d.startLocked(ip)
}

func (d *Driver) startLocked(ip string) error {
	q, err := queue.New[Command](d.opts.queueInterval, queue.WithClock(d.opts.clock))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &session{
		ctx:     ctx,
		cancel:  cancel,
		inbound: make(chan []byte, inboundBuffer),
		queue:   q,
		polls:   utils.NewCycle(d.routes.polls),
	}

	deliver := func(packet []byte) {
		select {
		case s.inbound <- packet:
		case <-ctx.Done():
		}
	}
	addr := net.JoinHostPort(ip, strconv.Itoa(d.opts.port))
	if d.opts.transport != nil {
		s.transport = d.opts.transport(addr, deliver)
	} else {
		s.transport = NewUDPTransport(addr, d.opts.socketTimeout, 2*d.opts.renewInterval, deliver, d.log)
	}
	q.AddHandler(s.transport.Send)

	s.renew = d.opts.clock.NewTicker(d.opts.renewInterval)
	s.resync = d.opts.clock.NewTicker(d.opts.resyncInterval)

	d.session.Store(s)
	go d.run(s)

	d.subscribe(s)
	for _, m := range d.routes.polls {
		s.enqueue(m, CloseOnReply, SlotNone)
	}

	d.log.WithFields(logrus.Fields{
		"addr":  addr,
		"polls": len(d.routes.polls),
	}).Info("Started console driver")
	return nil
}

// Stop releases all network resources. It does not wait for the event loop,
// so listeners may call Stop or SetAddress.
func (d *Driver) Stop() {
	d.lifeMu.Lock()
	defer d.lifeMu.Unlock()
	d.stopLocked()
}

func (d *Driver) stopLocked() {
	s := d.session.Swap(nil)
	if s == nil {
		return
	}

	s.cancel()
	s.renew.Stop()
	s.resync.Stop()
	s.queue.Stop()
	s.transport.Close()

	d.log.WithField("ip", d.Address()).Info("Stopped console driver")
}

func (d *Driver) run(s *session) {
	for {
		select {
		case <-s.ctx.Done():
			return
		case packet := <-s.inbound:
			msg := osc.Decode(packet)
			d.log.WithField("msg", msg).Trace("Received")
			d.handleMessage(s, msg)
		case <-s.renew.C():
			d.subscribe(s)
		case <-s.resync.C():
			if m, ok := s.polls.Next(); ok {
				s.enqueue(m, CloseOnReply, SlotNone)
			}
		}
	}
}

// subscribe (re)arms the push updates and both meter streams.
func (d *Driver) subscribe(s *session) {
	s.enqueue(osc.NewMessage("/xremote"), KeepOpen, SlotXRemote)
	s.enqueue(osc.NewMessage("/meters", meters1), KeepOpen, SlotMeters1)
	s.enqueue(osc.NewMessage("/meters", meters2), KeepOpen, SlotMeters2)
}

func (s *session) enqueue(m osc.Message, closing Closing, slot Slot) {
	s.queue.QueueValue(Command{Payload: m.Encode(), Closing: closing, Slot: slot})
}

// Address returns the IP of the console.
func (d *Driver) Address() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.ip
}

// ConsoleTypeName returns the catalog name of the console.
func (d *Driver) ConsoleTypeName() string {
	return d.console.Name
}

func (d *Driver) nameLocked(id string) string {
	if name, ok := d.names[id]; ok {
		return name
	}
	return strings.ToUpper(id)
}

func (d *Driver) colorLocked(id string) string {
	if color, ok := d.colors[id]; ok {
		return color
	}
	return mixer.DefaultColor
}

func (d *Driver) sendLocked(s send) (float64, bool) {
	mute, ok := d.mutes[s]
	if !ok {
		mute = true
	}
	return d.levels[s], mute
}

// InputData returns the cached data of input as sent to mix.
func (d *Driver) InputData(mix, input string) (mixer.InputData, bool) {
	if input == mixer.Self || !d.console.HasMix(mix) || !d.console.HasInput(input) {
		return mixer.InputData{}, false
	}
	if _, ok := d.routes.send(mix, input); !ok {
		return mixer.InputData{}, false
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	level, mute := d.sendLocked(send{mix, input})
	return mixer.InputData{
		ID:    input,
		Name:  d.nameLocked(input),
		Color: d.colorLocked(input),
		Level: level,
		Mute:  mute,
	}, true
}

// MixData returns the cached data of mix.
func (d *Driver) MixData(mix string) (mixer.MixData, bool) {
	if !d.console.HasMix(mix) {
		return mixer.MixData{}, false
	}
	if _, ok := d.routes.send(mix, mixer.Self); !ok {
		return mixer.MixData{}, false
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	level, mute := d.sendLocked(send{mix, mixer.Self})
	return mixer.MixData{
		ID:    mix,
		Name:  d.nameLocked(mix),
		Color: d.colorLocked(mix),
		Level: level,
		Mute:  mute,
	}, true
}

// MetersString encodes the LED count of every id as one character. Ids
// without meter data report zero.
func (d *Driver) MetersString(ids []string) string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var sb strings.Builder
	for _, id := range ids {
		sb.WriteString(utils.B64Encode(d.meters[id]))
	}
	return sb.String()
}

// SetLevel sets the level of a send, or of mix itself when input is
// mixer.Self. Unknown or unroutable identifiers are ignored.
func (d *Driver) SetLevel(level float64, mix, input string) {
	paths, ok := d.validSend(mix, input)
	if !ok {
		d.log.WithFields(logrus.Fields{"mix": mix, "input": input}).Debug("Ignoring level for unknown send")
		return
	}
	value := float32(utils.Clamp(level, 0, 1))

	if d.writeLevel(nil, send{mix, input}, float64(value)) {
		d.registry.FireLevelChange(mix, input)
	}
	if s := d.session.Load(); s != nil {
		s.enqueue(osc.NewMessage(paths.level, value), CloseOnReply, SlotNone)
	}
}

// SetMute sets the mute state of a send, or of mix itself when input is
// mixer.Self. Unknown or unroutable identifiers are ignored.
func (d *Driver) SetMute(mute bool, mix, input string) {
	paths, ok := d.validSend(mix, input)
	if !ok {
		d.log.WithFields(logrus.Fields{"mix": mix, "input": input}).Debug("Ignoring mute for unknown send")
		return
	}

	if d.writeMute(nil, send{mix, input}, mute) {
		d.registry.FireMuteChange(mix, input)
	}
	if s := d.session.Load(); s != nil {
		s.enqueue(osc.NewMessage(paths.mute, muteToWire(mute)), CloseOnReply, SlotNone)
	}
}

func (d *Driver) validSend(mix, input string) (sendPaths, bool) {
	if !d.console.HasMix(mix) {
		return sendPaths{}, false
	}
	if input != mixer.Self && !d.console.HasInput(input) {
		return sendPaths{}, false
	}
	return d.routes.send(mix, input)
}

// muteToWire encodes a mute state; the console reports 0 for unmuted.
func muteToWire(mute bool) int32 {
	if mute {
		return 1
	}
	return 0
}

func (d *Driver) RegisterListeners(l mixer.Listeners) mixer.ListenerID {
	return d.registry.Register(l)
}

func (d *Driver) UnregisterListeners(id mixer.ListenerID) {
	d.registry.Unregister(id)
}

var _ mixer.Mixer = (*Driver)(nil)
