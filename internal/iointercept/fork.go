// Package iointercept tees byte streams to/from a child process into
// append-only files for debugging, without ever blocking the primary
// stream on tee failure.
package iointercept

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/csc-dev/commonsensecoder/errors"
	"github.com/csc-dev/commonsensecoder/logger"
)

type message struct {
	kind messageKind
	data []byte
}

type messageKind int

const (
	msgData messageKind = iota
	msgFlush
	msgShutdown
)

// messageQueue is an unbounded FIFO of pending tee messages. The interception
// channel is unbounded deliberately: push must never block or drop a
// message under backpressure from a slow disk, since that would make
// debugging output silently diverge from what the LSP connection actually
// saw. If memory becomes a concern the fix is rotating the tee files, not
// throttling the queue.
type messageQueue struct {
	mu    sync.Mutex
	cond  *sync.Cond
	items []message
}

func newMessageQueue() *messageQueue {
	q := &messageQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *messageQueue) push(msg message) {
	q.mu.Lock()
	q.items = append(q.items, msg)
	q.mu.Unlock()
	q.cond.Signal()
}

// pop blocks until a message is available.
func (q *messageQueue) pop() message {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 {
		q.cond.Wait()
	}
	msg := q.items[0]
	q.items = q.items[1:]
	return msg
}

// WriteFork wraps an io.Writer, tee-ing every successfully written chunk
// to an append-only file via a dedicated background goroutine.
type WriteFork struct {
	inner io.Writer
	q     *messageQueue
}

// NewWriteFork creates a tee on top of inner. directory must already exist.
// what is both the log message and the file name.
func NewWriteFork(inner io.Writer, directory, what string) (*WriteFork, error) {
	q, err := spawnWriter(directory, what)
	if err != nil {
		return nil, err
	}
	return &WriteFork{inner: inner, q: q}, nil
}

// Write forwards to the underlying writer, then tees the bytes actually
// written.
func (f *WriteFork) Write(p []byte) (int, error) {
	n, err := f.inner.Write(p)
	if n > 0 {
		f.q.push(message{kind: msgData, data: append([]byte(nil), p[:n]...)})
	}
	return n, err
}

// Flush syncs the tee file to disk.
func (f *WriteFork) Flush() {
	f.q.push(message{kind: msgFlush})
}

// Close signals the background writer to flush and close its file.
func (f *WriteFork) Close() error {
	f.q.push(message{kind: msgShutdown})
	if closer, ok := f.inner.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// ReadFork wraps an io.Reader, tee-ing every successfully read chunk to an
// append-only file via a dedicated background goroutine.
type ReadFork struct {
	inner io.Reader
	q     *messageQueue
}

// NewReadFork creates a tee on top of inner. directory must already exist.
func NewReadFork(inner io.Reader, directory, what string) (*ReadFork, error) {
	q, err := spawnWriter(directory, what)
	if err != nil {
		return nil, err
	}
	return &ReadFork{inner: inner, q: q}, nil
}

// Read forwards to the underlying reader, then tees the bytes actually read.
func (f *ReadFork) Read(p []byte) (int, error) {
	n, err := f.inner.Read(p)
	if n > 0 {
		f.q.push(message{kind: msgData, data: append([]byte(nil), p[:n]...)})
	}
	if err != nil {
		f.q.push(message{kind: msgShutdown})
	}
	return n, err
}

// Close signals the background writer to flush and close its file, then
// closes the underlying reader if it is closable.
func (f *ReadFork) Close() error {
	f.q.push(message{kind: msgShutdown})
	if closer, ok := f.inner.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// spawnWriter opens directory/what for create+append and starts the
// background goroutine draining the returned queue into it until msgShutdown.
func spawnWriter(directory, what string) (*messageQueue, error) {
	file, err := os.OpenFile(filepath.Join(directory, what), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s interception file", what)
	}

	q := newMessageQueue()
	log := logger.ComponentLogger("iointercept")
	sessionID := uuid.NewString()[:8]

	go func() {
		defer file.Close()
		fileWithTag(file, sessionID, "session start")
		for {
			msg := q.pop()
			switch msg.kind {
			case msgData:
				if _, err := file.Write(msg.data); err != nil {
					log.Warnw("tee write failed", logger.FieldFile, what, logger.FieldError, err)
				} else if logger.ShouldOutput(logger.Verbosity(), logger.OutputTeeWrites) {
					log.Debugw("tee write", logger.FieldFile, what, "bytes", len(msg.data))
				}
			case msgFlush:
				file.Sync()
			case msgShutdown:
				file.Sync()
				return
			}
		}
	}()

	return q, nil
}

func fileWithTag(file *os.File, sessionID, note string) {
	file.WriteString("--- " + sessionID + " " + note + " ---\n")
}
