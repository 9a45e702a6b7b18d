package flight

import (
	"sync"
	"testing"

	"datanomics/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuard_RefusesOverlappingCallsForSameAction(t *testing.T) {
	g := NewGuard(nil)

	release, err := g.Begin("run-model")
	require.NoError(t, err)
	assert.True(t, g.Busy("run-model"))

	_, err = g.Begin("run-model")
	assert.ErrorIs(t, err, core.ErrActionInFlight)

	release()
	release()
	assert.False(t, g.Busy("run-model"))

	again, err := g.Begin("run-model")
	require.NoError(t, err)
	again()
}

func TestGuard_ActionsAreIndependent(t *testing.T) {
	g := NewGuard(nil)

	release, err := g.Begin("clean:remove-missing")
	require.NoError(t, err)
	defer release()

	other, err := g.Begin("summary")
	require.NoError(t, err)
	other()
}

func TestGuard_BusyWhilePolledDoesNotRefuseSameAction(t *testing.T) {
	g := NewGuard(nil)
	stop := make(chan struct{})
	var polls sync.WaitGroup
	for i := 0; i < 4; i++ {
		polls.Add(1)
		go func() {
			defer polls.Done()
			for {
				select {
				case <-stop:
					return
				default:
					g.Busy("run-model")
				}
			}
		}()
	}

	for i := 0; i < 500; i++ {
		release, err := g.Begin("run-model")
		require.NoError(t, err, "attempt %d", i)
		release()
	}
	close(stop)
	polls.Wait()
}
