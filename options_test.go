package credmine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/passlink/credmine/notify"
)

func TestOptions_Defaults(t *testing.T) {
	o := buildOptions(nil)
	require.IsType(t, &FmtLogger{}, o.log)
	require.IsType(t, logReporter{}, o.reporter)
	require.IsType(t, notify.Noop{}, o.notifier)
	require.NotNil(t, o.tabs)
	require.Equal(t, DefaultRetryDelay, o.retryDelay)
	require.Zero(t, o.maxAttempts)
}

func TestOptions_Setters(t *testing.T) {
	var reported error
	reporter := ErrorReporterFunc(func(err error) { reported = err })
	o := buildOptions([]Option{
		WithLogger(noopLogger{}),
		WithErrorReporter(reporter),
		WithRetryDelay(0),
		WithMaxAttempts(-3),
		WithMiddleware(func(next CycleFunc) CycleFunc { return next }),
	})
	require.Equal(t, noopLogger{}, o.log)
	require.Zero(t, o.retryDelay, "an explicit zero delay is kept")
	require.Zero(t, o.maxAttempts)
	require.Len(t, o.middlewares, 1)

	o.reporter.LogError(errors.New("x"))
	require.EqualError(t, reported, "x")

	require.Zero(t, buildOptions([]Option{WithRetryDelay(-time.Second)}).retryDelay)
	require.Equal(t, 4, buildOptions([]Option{WithMaxAttempts(4)}).maxAttempts)
}

func TestChain_Order(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next CycleFunc) CycleFunc {
			return func(ctx context.Context, t *Task) (*Task, error) {
				order = append(order, name)
				return next(ctx, t)
			}
		}
	}
	fn := chain(func(_ context.Context, t *Task) (*Task, error) {
		order = append(order, "cycle")
		return t, nil
	}, []Middleware{mw("a"), mw("b")})

	_, err := fn(context.Background(), &Task{})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "cycle"}, order)
}
