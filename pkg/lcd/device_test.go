package lcd

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urmzd/ht32-panel/pkg/device"
)

// slowHID blocks every write until release is closed.
type slowHID struct {
	release chan struct{}
	writing atomic.Bool
	closed  atomic.Bool
	early   atomic.Bool // Close ran while a write was in progress
}

func (h *slowHID) Write(p []byte) (int, error) {
	h.writing.Store(true)
	<-h.release
	h.writing.Store(false)
	return len(p), nil
}

func (h *slowHID) Close() error {
	if h.writing.Load() {
		h.early.Store(true)
	}
	h.closed.Store(true)
	return nil
}

func TestCloseWaitsForAbandonedWrite(t *testing.T) {
	hid := &slowHID{release: make(chan struct{})}
	d := &Device{dev: hid, path: "test", timeout: 20 * time.Millisecond}

	err := d.WriteFrame(context.Background(), HeartbeatReport(time.Unix(0, 0)))
	require.ErrorIs(t, err, device.ErrTimeout)

	done := make(chan struct{})
	go func() {
		assert.NoError(t, d.Close())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close blocked on the pending write")
	}
	assert.False(t, hid.closed.Load(), "handle freed under a running write")

	close(hid.release)
	assert.Eventually(t, hid.closed.Load, time.Second, 5*time.Millisecond)
	assert.False(t, hid.early.Load())

	err = d.WriteFrame(context.Background(), HeartbeatReport(time.Unix(0, 0)))
	assert.ErrorIs(t, err, device.ErrNotConnected)
}
