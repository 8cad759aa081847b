package x32

import (
	"time"

	"github.com/sirupsen/logrus"
	"k8s.io/utils/clock"
)

const (
	DefaultPort           = 10023
	DefaultQueueInterval  = 5 * time.Millisecond
	DefaultRenewInterval  = 8 * time.Second
	DefaultResyncInterval = 50 * time.Millisecond
	DefaultSocketTimeout  = 3 * time.Second
)

type options struct {
	port           int
	clock          clock.WithTickerAndDelayedExecution
	queueInterval  time.Duration
	renewInterval  time.Duration
	resyncInterval time.Duration
	socketTimeout  time.Duration
	transport      TransportFactory
	log            *logrus.Entry
}

// Option configures a Driver.
type Option func(*options)

// WithPort sets the UDP port of the console.
func WithPort(port int) Option {
	return func(o *options) { o.port = port }
}

// WithClock sets the clock driving subscription renewal, resync ticks and the
// spacing of outbound commands.
func WithClock(c clock.WithTickerAndDelayedExecution) Option {
	return func(o *options) { o.clock = c }
}

// WithQueueInterval sets the minimum spacing of outbound commands.
func WithQueueInterval(d time.Duration) Option {
	return func(o *options) { o.queueInterval = d }
}

// WithRenewInterval sets how often subscriptions are renewed.
func WithRenewInterval(d time.Duration) Option {
	return func(o *options) { o.renewInterval = d }
}

// WithResyncInterval sets how often one poll message is sent to resync the
// cache.
func WithResyncInterval(d time.Duration) Option {
	return func(o *options) { o.resyncInterval = d }
}

// WithSocketTimeout sets how long a socket waits for a reply.
func WithSocketTimeout(d time.Duration) Option {
	return func(o *options) { o.socketTimeout = d }
}

// WithTransport replaces the UDP transport.
func WithTransport(f TransportFactory) Option {
	return func(o *options) { o.transport = f }
}

// WithLogger sets the logger of the driver.
func WithLogger(log *logrus.Entry) Option {
	return func(o *options) { o.log = log }
}
