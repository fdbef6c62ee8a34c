//go:build unix

package pipeline

import (
	stdctx "context"
	"os"
	"os/signal"
	"syscall"
	"testing"
	"time"

	"github.com/blacktop/fcs-keys/internal/context"
	"github.com/blacktop/fcs-keys/internal/store"
	"github.com/caarlos0/ctrlc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteInterrupted(t *testing.T) {
	u := newUpstream(t, []string{"iOS;22A1", "iOS;22B2"})
	c := testConfig(t, u)
	c.Parallel = 2

	ctx, cancel := context.NewWithTimeout(c, 0)
	defer cancel()
	ipsw := newBlockingIpsw()
	ctx.Runner = ipsw
	ctx.Store = store.NewLocal(c.KeysDir, c.Store.Naming, c.Store.Marker)

	// keep SIGINT from killing the test binary
	sigs := make(chan os.Signal, 8)
	signal.Notify(sigs, syscall.SIGINT)
	defer signal.Stop(sigs)

	done := make(chan struct{})
	go func() {
		select {
		case <-ipsw.started:
		case <-done:
			return
		}
		tick := time.NewTicker(20 * time.Millisecond)
		defer tick.Stop()
		for {
			syscall.Kill(os.Getpid(), syscall.SIGINT)
			select {
			case <-done:
				return
			case <-tick.C:
			}
		}
	}()

	err := Execute(ctx, cancel, ctrlc.New(), Pipeline)
	close(done)

	var interrupted ctrlc.ErrorCtrlC
	require.ErrorAs(t, err, &interrupted)
	assert.ErrorIs(t, ctx.Err(), stdctx.Canceled)
	assertCleanCancel(t, ctx, c)
}
