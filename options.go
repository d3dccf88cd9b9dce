package credmine

import (
	"time"

	"github.com/passlink/credmine/notify"
	"github.com/passlink/credmine/tabs"
)

// DefaultRetryDelay is the pause between two processing cycles of a failing task.
const DefaultRetryDelay = time.Second

// TabSource resolves the tab-scoped store of a capture.
type TabSource interface {
	For(tabID string) tabs.Store
}

type options struct {
	log         Logger
	reporter    ErrorReporter
	notifier    notify.Notifier
	tabs        TabSource
	retryDelay  time.Duration
	maxAttempts int
	middlewares []Middleware

	retryDelaySet bool
}

// Option configures a Manager.
type Option func(*options)

// WithLogger sets the logger used for manager events. Default is FmtLogger.
func WithLogger(l Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// WithErrorReporter sets the sink for every caught failure.
// Default logs through the manager logger.
func WithErrorReporter(r ErrorReporter) Option {
	return func(o *options) {
		o.reporter = r
	}
}

// WithNotifier sets the new-password notification emitter.
func WithNotifier(n notify.Notifier) Option {
	return func(o *options) {
		o.notifier = n
	}
}

// WithTabs sets the source of tab-scoped stores used for autofill tracking.
func WithTabs(src TabSource) Option {
	return func(o *options) {
		o.tabs = src
	}
}

// WithRetryDelay sets the wait between cycles of a failing task.
// Zero still yields to the scheduler between cycles.
func WithRetryDelay(d time.Duration) Option {
	return func(o *options) {
		if d < 0 {
			d = 0
		}
		o.retryDelay = d
		o.retryDelaySet = true
	}
}

// WithMaxAttempts bounds the cycles per task. A task that exhausts them stays
// queued in the failed state. Zero (default) retries until the task finalizes.
func WithMaxAttempts(n int) Option {
	return func(o *options) {
		if n < 0 {
			n = 0
		}
		o.maxAttempts = n
	}
}

// WithMiddleware wraps every processing cycle. Middlewares run in the order given.
func WithMiddleware(mw ...Middleware) Option {
	return func(o *options) {
		o.middlewares = append(o.middlewares, mw...)
	}
}

func buildOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.log == nil {
		o.log = NewFmtLogger()
	}
	if o.reporter == nil {
		o.reporter = logReporter{log: o.log}
	}
	if o.notifier == nil {
		o.notifier = notify.Noop{}
	}
	if o.tabs == nil {
		o.tabs = tabs.NewRegistry()
	}
	if !o.retryDelaySet {
		o.retryDelay = DefaultRetryDelay
	}
	return o
}
