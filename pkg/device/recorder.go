package device

import (
	"context"
	"sync"
)

// Recorder captures frames written to it. A failure can be injected to
// simulate a disconnect.
type Recorder struct {
	mu     sync.Mutex
	path   string
	frames [][]byte
	fail   error
	closed bool
}

// NewRecorder creates a Recorder reporting path.
func NewRecorder(path string) *Recorder {
	return &Recorder{path: path}
}

func (r *Recorder) WriteFrame(ctx context.Context, frame []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrNotConnected
	}
	if r.fail != nil {
		return r.fail
	}
	r.frames = append(r.frames, append([]byte(nil), frame...))
	return nil
}

func (r *Recorder) Path() string {
	return r.path
}

func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// Fail makes every subsequent write return err. A nil err clears it.
func (r *Recorder) Fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail = err
}

// Frames returns a copy of everything written so far.
func (r *Recorder) Frames() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]byte, len(r.frames))
	copy(out, r.frames)
	return out
}

// Closed reports whether Close was called.
func (r *Recorder) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Reset forgets recorded frames.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = nil
}
