package x32

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/SimpleVolumeControl/SimpleVolumeControl/catalog"
	"github.com/SimpleVolumeControl/SimpleVolumeControl/mixer"
	"github.com/SimpleVolumeControl/SimpleVolumeControl/osc"
	"github.com/SimpleVolumeControl/SimpleVolumeControl/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"
)

const (
	waitFor       = 2 * time.Second
	tick          = 2 * time.Millisecond
	queueInterval = time.Millisecond
)

type fakeTransport struct {
	addr    string
	deliver func([]byte)

	mu     sync.Mutex
	sent   []Command
	closed bool
}

// Send records every command, also after Close, so leaks show up.
func (f *fakeTransport) Send(cmd Command) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, cmd)
}

func (f *fakeTransport) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeTransport) commands() []Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Command(nil), f.sent...)
}

func (f *fakeTransport) messages() []osc.Message {
	var out []osc.Message
	for _, c := range f.commands() {
		out = append(out, osc.Decode(c.Payload))
	}
	return out
}

func (f *fakeTransport) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type fakeNetwork struct {
	mu         sync.Mutex
	transports []*fakeTransport
}

func (n *fakeNetwork) factory(addr string, deliver func([]byte)) Transport {
	n.mu.Lock()
	defer n.mu.Unlock()
	t := &fakeTransport{addr: addr, deliver: deliver}
	n.transports = append(n.transports, t)
	return t
}

func (n *fakeNetwork) last() *fakeTransport {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.transports[len(n.transports)-1]
}

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(e string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) count(e string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, got := range r.events {
		if got == e {
			n++
		}
	}
	return n
}

func (r *recorder) listeners() mixer.Listeners {
	return mixer.Listeners{
		OnMixChange:    func(mix string) { r.add("mix:" + mix) },
		OnInputChange:  func(input string) { r.add("input:" + input) },
		OnLevelChange:  func(mix, input string) { r.add("level:" + mix + "/" + input) },
		OnMuteChange:   func(mix, input string) { r.add("mute:" + mix + "/" + input) },
		OnMetersChange: func() { r.add("meters") },
	}
}

type testDriver struct {
	*Driver
	network *fakeNetwork
	clock   *testingclock.FakeClock
	events  *recorder
}

func newTestDriver(t *testing.T, console catalog.Console, opts ...Option) *testDriver {
	t.Helper()

	network := &fakeNetwork{}
	fc := testingclock.NewFakeClock(time.Now())
	opts = append([]Option{
		WithTransport(network.factory),
		WithClock(fc),
		WithQueueInterval(queueInterval),
		WithRenewInterval(time.Hour),
		WithResyncInterval(time.Hour),
	}, opts...)
	d, err := New("192.168.2.208", console, opts...)
	require.NoError(t, err)
	t.Cleanup(d.Stop)

	events := &recorder{}
	d.RegisterListeners(events.listeners())

	td := &testDriver{Driver: d, network: network, clock: fc, events: events}
	td.waitSent(t, len(d.routes.polls)+3)
	return td
}

// waitSent steps the clock by the queue interval until the current transport
// has sent n commands.
func (td *testDriver) waitSent(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		sent := len(td.network.last().commands())
		if sent < n {
			td.clock.Step(queueInterval)
		}
		return sent == n
	}, waitFor, tick)
}

// inject handles msg as if the running session had received it.
func (td *testDriver) inject(msg osc.Message) {
	td.handleMessage(td.session.Load(), msg)
}

func exampleConsole() catalog.Console {
	return catalog.NewConsole("Behringer X32", catalog.DriverX32, []string{"ch01"}, []string{"bus01", "bus02"})
}

func TestNewRejectsInvalidAddress(t *testing.T) {
	t.Parallel()

	_, err := New("not-an-ip", exampleConsole(), WithTransport((&fakeNetwork{}).factory))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not-an-ip")
}

func TestStartSubscribesAndSeeds(t *testing.T) {
	t.Parallel()

	d := newTestDriver(t, exampleConsole())
	transport := d.network.last()
	assert.Equal(t, "192.168.2.208:10023", transport.addr)

	cmds := transport.commands()
	assert.Equal(t, Command{Payload: osc.NewMessage("/xremote").Encode(), Closing: KeepOpen, Slot: SlotXRemote}, cmds[0])
	assert.Equal(t, Command{Payload: osc.NewMessage("/meters", "/meters/1").Encode(), Closing: KeepOpen, Slot: SlotMeters1}, cmds[1])
	assert.Equal(t, Command{Payload: osc.NewMessage("/meters", "/meters/2").Encode(), Closing: KeepOpen, Slot: SlotMeters2}, cmds[2])

	for i, poll := range d.routes.polls {
		assert.Equal(t, Command{Payload: poll.Encode(), Closing: CloseOnReply, Slot: SlotNone}, cmds[3+i])
	}
}

func TestRenewalResubscribes(t *testing.T) {
	t.Parallel()

	d := newTestDriver(t, exampleConsole(), WithRenewInterval(DefaultRenewInterval))
	before := len(d.network.last().commands())

	d.clock.Step(DefaultRenewInterval)
	d.waitSent(t, before+3)

	cmds := d.network.last().commands()[before:]
	assert.Equal(t, []Slot{SlotXRemote, SlotMeters1, SlotMeters2}, []Slot{cmds[0].Slot, cmds[1].Slot, cmds[2].Slot})
	for _, c := range cmds {
		assert.Equal(t, KeepOpen, c.Closing)
	}
}

func TestResyncCyclesThroughPolls(t *testing.T) {
	t.Parallel()

	d := newTestDriver(t, exampleConsole(), WithResyncInterval(time.Minute))
	polls := d.routes.polls
	seeded := len(d.network.last().commands())

	for i := 0; i < len(polls)+2; i++ {
		d.clock.Step(time.Minute)
		d.waitSent(t, seeded+i+1)
	}

	msgs := d.network.last().messages()[seeded:]
	for i, m := range msgs {
		assert.Equal(t, polls[i%len(polls)], m, "tick %d", i)
	}
}

func TestFallbackValues(t *testing.T) {
	t.Parallel()

	d := newTestDriver(t, exampleConsole())

	input, ok := d.InputData("bus01", "ch01")
	require.True(t, ok)
	assert.Equal(t, mixer.InputData{ID: "ch01", Name: "CH01", Color: mixer.DefaultColor, Level: 0, Mute: true}, input)

	mix, ok := d.MixData("bus02")
	require.True(t, ok)
	assert.Equal(t, mixer.MixData{ID: "bus02", Name: "BUS02", Color: mixer.DefaultColor, Level: 0, Mute: true}, mix)

	_, ok = d.InputData("bus01", "ch02")
	assert.False(t, ok)
	_, ok = d.InputData("nosuchbus", "ch01")
	assert.False(t, ok)
	_, ok = d.InputData("bus01", mixer.Self)
	assert.False(t, ok)
	_, ok = d.MixData("ch01")
	assert.False(t, ok)

	assert.Equal(t, "AAA", d.MetersString([]string{"ch01", "bus01", "nope"}))
	assert.Equal(t, "Behringer X32", d.ConsoleTypeName())
	assert.Equal(t, "192.168.2.208", d.Address())
}

func TestInboundMuteUnmutesAndFiresOnce(t *testing.T) {
	t.Parallel()

	d := newTestDriver(t, exampleConsole())
	transport := d.network.last()

	transport.deliver(osc.NewMessage("/ch/01/mix/01/on", int32(0)).Encode())
	require.Eventually(t, func() bool {
		return d.events.count("mute:bus01/ch01") == 1
	}, waitFor, tick)

	input, ok := d.InputData("bus01", "ch01")
	require.True(t, ok)
	assert.False(t, input.Mute)

	// the same state again is not a change
	transport.deliver(osc.NewMessage("/ch/01/mix/01/on", int32(0)).Encode())
	transport.deliver(osc.NewMessage("/ch/01/mix/01/level", float32(0.5)).Encode())
	require.Eventually(t, func() bool {
		return d.events.count("level:bus01/ch01") == 1
	}, waitFor, tick)
	assert.Equal(t, 1, d.events.count("mute:bus01/ch01"))
}

func TestMuteWireInversion(t *testing.T) {
	t.Parallel()

	d := newTestDriver(t, exampleConsole())

	d.inject(osc.NewMessage("/bus/02/mix/on", int32(0)))
	mix, _ := d.MixData("bus02")
	assert.False(t, mix.Mute)

	d.inject(osc.NewMessage("/bus/02/mix/on", int32(1)))
	mix, _ = d.MixData("bus02")
	assert.True(t, mix.Mute)
	assert.Equal(t, 2, d.events.count("mute:bus02/"))

	seeded := len(d.network.last().commands())
	d.SetMute(false, "bus02", mixer.Self)
	d.SetMute(true, "bus01", "ch01")
	d.waitSent(t, seeded+2)

	msgs := d.network.last().messages()[seeded:]
	assert.Equal(t, osc.NewMessage("/bus/02/mix/on", int32(0)), msgs[0])
	assert.Equal(t, osc.NewMessage("/ch/01/mix/01/on", int32(1)), msgs[1])
}

func TestChangeGating(t *testing.T) {
	t.Parallel()

	d := newTestDriver(t, exampleConsole())

	for i := 0; i < 3; i++ {
		d.inject(osc.NewMessage("/bus/01/mix/fader", float32(0.25)))
		d.inject(osc.NewMessage("/ch/01/config/name", "Kick"))
		d.inject(osc.NewMessage("/bus/01/config/color", int32(2)))
	}

	assert.Equal(t, 1, d.events.count("level:bus01/"))
	assert.Equal(t, 1, d.events.count("input:ch01"))
	assert.Equal(t, 1, d.events.count("mix:bus01"))

	mix, _ := d.MixData("bus01")
	assert.Equal(t, 0.25, mix.Level)
	assert.Equal(t, "green", mix.Color)
	input, _ := d.InputData("bus02", "ch01")
	assert.Equal(t, "Kick", input.Name)
}

func TestSetLevel(t *testing.T) {
	t.Parallel()

	d := newTestDriver(t, exampleConsole())
	transport := d.network.last()
	seeded := len(transport.commands())

	d.SetLevel(0.75, "bus01", mixer.Self)
	d.waitSent(t, seeded+1)
	assert.Equal(t,
		Command{Payload: osc.NewMessage("/bus/01/mix/fader", float32(0.75)).Encode(), Closing: CloseOnReply},
		transport.commands()[seeded])

	mix, _ := d.MixData("bus01")
	assert.Equal(t, 0.75, mix.Level)
	assert.Equal(t, 1, d.events.count("level:bus01/"))

	// the console echoing the value back is not a change
	d.inject(osc.NewMessage("/bus/01/mix/fader", float32(0.75)))
	assert.Equal(t, 1, d.events.count("level:bus01/"))

	d.SetLevel(0.75, "nosuchbus", mixer.Self)
	d.SetLevel(0.75, "bus01", "ch99")
	d.SetMute(true, "nosuchbus", "ch01")
	assert.Never(t, func() bool {
		return len(transport.commands()) != seeded+1
	}, 50*time.Millisecond, 5*time.Millisecond)
}

func TestSetLevelClamps(t *testing.T) {
	t.Parallel()

	d := newTestDriver(t, exampleConsole())
	seeded := len(d.network.last().commands())

	d.SetLevel(1.5, "bus02", "ch01")
	d.SetLevel(-1, "bus01", "ch01")
	d.waitSent(t, seeded+2)

	msgs := d.network.last().messages()[seeded:]
	assert.Equal(t, osc.NewMessage("/ch/01/mix/02/level", float32(1)), msgs[0])
	assert.Equal(t, osc.NewMessage("/ch/01/mix/01/level", float32(0)), msgs[1])
}

func TestNodeConfigLine(t *testing.T) {
	t.Parallel()

	console := catalog.NewConsole("test", catalog.DriverX32, []string{"ch01", "bus01"}, []string{"bus01", "mtx01"})
	d := newTestDriver(t, console)

	d.inject(osc.NewMessage("node", "/ch/01/config \"Lead Vox\" 1 RDi 1\n"))
	input, ok := d.InputData("bus01", "ch01")
	require.True(t, ok)
	assert.Equal(t, "Lead Vox", input.Name)
	assert.Equal(t, "red", input.Color)
	assert.Equal(t, 1, d.events.count("input:ch01"))

	// bus01 is both a mix and an input
	d.inject(osc.NewMessage("node", "/bus/01/config \"Wedges\" 1 CY 1\n"))
	assert.Equal(t, 1, d.events.count("mix:bus01"))
	assert.Equal(t, 1, d.events.count("input:bus01"))
	input, ok = d.InputData("mtx01", "bus01")
	require.True(t, ok)
	assert.Equal(t, "Wedges", input.Name)
	assert.Equal(t, "cyan", input.Color)

	// unknown entities and malformed lines are ignored
	d.inject(osc.NewMessage("node", "/ch/02/config \"Other\" 1 RD 1\n"))
	d.inject(osc.NewMessage("node", "/ch/01/mix/fader 0.5"))
	d.inject(osc.NewMessage("node"))
	d.inject(osc.NewMessage("/ch/01/config/color", int32(99)))
	d.inject(osc.NewMessage("/ch/01/config/name", int32(1)))
	input, _ = d.InputData("bus01", "ch01")
	assert.Equal(t, "Lead Vox", input.Name)
	assert.Equal(t, "red", input.Color)
}

func TestMeters(t *testing.T) {
	t.Parallel()

	d := newTestDriver(t, exampleConsole())

	m1 := make([]float32, 48)
	m1[0] = 1
	m2 := make([]float32, 27)
	m2[1] = dbToLinear(-30)

	d.inject(osc.NewMessage(meters1, meterBlob(m1...)))
	assert.Equal(t, 0, d.events.count("meters"))

	d.inject(osc.NewMessage(meters2, meterBlob(m2...)))
	assert.Equal(t, 1, d.events.count("meters"))

	expected := "U" + utils.B64Encode(LEDCount(dbToLinear(-30))) + "AA"
	assert.Equal(t, expected, d.MetersString([]string{"ch01", "bus02", "bus01", "unknown"}))

	// unchanged meters do not notify
	d.inject(osc.NewMessage(meters1, meterBlob(m1...)))
	d.inject(osc.NewMessage(meters2, meterBlob(m2...)))
	assert.Equal(t, 1, d.events.count("meters"))

	// a meters message without blob is ignored
	d.inject(osc.NewMessage(meters2, "nope"))
	assert.Equal(t, 1, d.events.count("meters"))
}

func TestSetAddressRebuilds(t *testing.T) {
	t.Parallel()

	d := newTestDriver(t, exampleConsole())
	old := d.network.last()
	d.inject(osc.NewMessage("/bus/01/mix/fader", float32(0.5)))

	require.NoError(t, d.SetAddress("10.0.0.9"))
	assert.True(t, old.isClosed())
	assert.Equal(t, "10.0.0.9", d.Address())
	assert.Equal(t, "10.0.0.9:10023", d.network.last().addr)
	d.waitSent(t, len(d.routes.polls)+3)

	mix, _ := d.MixData("bus01")
	assert.Equal(t, 0.0, mix.Level)

	// listeners survive the swap
	d.network.last().deliver(osc.NewMessage("/bus/01/mix/fader", float32(0.5)).Encode())
	require.Eventually(t, func() bool {
		return d.events.count("level:bus01/") == 2
	}, waitFor, tick)

	assert.Error(t, d.SetAddress("bogus"))
	assert.Equal(t, "10.0.0.9", d.Address())
}

func TestStop(t *testing.T) {
	t.Parallel()

	d := newTestDriver(t, exampleConsole(), WithRenewInterval(time.Minute), WithResyncInterval(time.Minute))
	transport := d.network.last()
	seeded := len(transport.commands())
	d.SetLevel(0.25, "bus01", mixer.Self)
	d.SetLevel(0.5, "bus02", mixer.Self)
	d.waitSent(t, seeded+2)
	d.SetLevel(0.75, "bus01", mixer.Self)
	d.SetLevel(1, "bus02", mixer.Self)
	sent := len(transport.commands())

	d.Stop()
	d.Stop()
	assert.True(t, transport.isClosed())

	// neither tickers nor queued commands outlive the session
	d.clock.Step(time.Minute)
	d.clock.Step(time.Minute)
	assert.Never(t, func() bool {
		return len(transport.commands()) != sent
	}, 50*time.Millisecond, 5*time.Millisecond)

	// mutations after stop only touch the cache
	d.SetLevel(0.5, "bus01", mixer.Self)
	mix, _ := d.MixData("bus01")
	assert.Equal(t, 0.5, mix.Level)
}

func TestInboundLevelIsClamped(t *testing.T) {
	t.Parallel()

	d := newTestDriver(t, exampleConsole())

	for i := 0; i < 3; i++ {
		d.inject(osc.NewMessage("/bus/01/mix/fader", float32(math.NaN())))
	}
	assert.Equal(t, 1, d.events.count("level:bus01/"))
	mix, _ := d.MixData("bus01")
	assert.Equal(t, 0.0, mix.Level)

	d.inject(osc.NewMessage("/bus/01/mix/fader", float32(7.5)))
	mix, _ = d.MixData("bus01")
	assert.Equal(t, 1.0, mix.Level)

	d.inject(osc.NewMessage("/ch/01/mix/02/level", float32(-2)))
	input, _ := d.InputData("bus02", "ch01")
	assert.Equal(t, 0.0, input.Level)
	assert.Equal(t, 2, d.events.count("level:bus01/"))
	assert.Equal(t, 1, d.events.count("level:bus02/ch01"))
}

func TestListenerMaySetAddress(t *testing.T) {
	t.Parallel()

	d := newTestDriver(t, exampleConsole())
	old := d.network.last()

	var once sync.Once
	d.RegisterListeners(mixer.Listeners{
		OnLevelChange: func(mix, input string) {
			once.Do(func() { assert.NoError(t, d.SetAddress("10.0.0.1")) })
		},
	})
	old.deliver(osc.NewMessage("/bus/01/mix/fader", float32(0.5)).Encode())

	require.Eventually(t, func() bool {
		return d.network.last().addr == "10.0.0.1:10023"
	}, waitFor, tick)
	assert.True(t, old.isClosed())
	assert.Equal(t, "10.0.0.1", d.Address())
	d.waitSent(t, len(d.routes.polls)+3)

	stopped := make(chan struct{})
	go func() {
		d.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(waitFor):
		t.Fatal("Stop blocked after a listener changed the address")
	}
}

func TestListenerMayStop(t *testing.T) {
	t.Parallel()

	d := newTestDriver(t, exampleConsole())
	transport := d.network.last()

	d.RegisterListeners(mixer.Listeners{
		OnMuteChange: func(mix, input string) { d.Stop() },
	})
	transport.deliver(osc.NewMessage("/bus/01/mix/on", int32(0)).Encode())

	require.Eventually(t, transport.isClosed, waitFor, tick)
	require.NoError(t, d.SetAddress("10.0.0.3"))
	assert.Equal(t, "10.0.0.3:10023", d.network.last().addr)
}

func TestStaleSessionWritesAreDropped(t *testing.T) {
	t.Parallel()

	d := newTestDriver(t, exampleConsole())
	old := d.session.Load()
	require.NoError(t, d.SetAddress("10.0.0.2"))

	d.handleMessage(old, osc.NewMessage("/bus/01/mix/fader", float32(0.5)))
	d.handleMessage(old, osc.NewMessage("node", "/ch/01/config \"Kick\" 1 RD 1\n"))

	mix, _ := d.MixData("bus01")
	assert.Equal(t, 0.0, mix.Level)
	input, _ := d.InputData("bus01", "ch01")
	assert.Equal(t, "CH01", input.Name)
	assert.Equal(t, 0, d.events.count("level:bus01/"))
	assert.Equal(t, 0, d.events.count("input:ch01"))
}
