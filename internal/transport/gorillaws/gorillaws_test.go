package gorillaws

import (
	"testing"

	"go.uber.org/goleak"

	"github.com/leapmux/tether/internal/supervisor"
	"github.com/leapmux/tether/internal/transport"
	"github.com/leapmux/tether/internal/transport/transporttest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestDriver(t *testing.T) {
	transporttest.RunDriverTests(t, func(opts transport.Options) supervisor.Dialer {
		return NewDialer(opts)
	})
}
