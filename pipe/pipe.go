package pipe

import (
	"context"
	"io"
	"sync"

	"github.com/go-zoox/logger"
	"github.com/pkg/errors"
)

const (
	DefaultChunkSize = 32 * 1024
	DefaultQueueSize = 8
)

type Options struct {
	// Name tags debug logs, e.g. "session-id:upstream".
	Name string
	// ChunkSize is the read buffer size for src.
	ChunkSize int
	// QueueSize bounds the channel between two stages.
	QueueSize int
}

// Pipe reads chunks from src, passes them through stages in order and writes
// the result to dst. Nil stages are skipped.
//
// The first error from src, a stage or dst cancels the pipe and is returned;
// io.EOF from src is a clean end. Once the pipe is cancelled no further write
// reaches dst. Pipe returns when the writer side is done: a reader still
// blocked in src.Read exits only when src is closed, which is the caller's job.
func Pipe(ctx context.Context, dst io.Writer, src io.Reader, opts *Options, stages ...Transform) (written int64, err error) {
	name, chunkSize, queueSize := "pipe", DefaultChunkSize, DefaultQueueSize
	if opts != nil {
		if opts.Name != "" {
			name = opts.Name
		}
		if opts.ChunkSize > 0 {
			chunkSize = opts.ChunkSize
		}
		if opts.QueueSize > 0 {
			queueSize = opts.QueueSize
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	state := &failure{cancel: cancel}

	send := func(ch chan<- []byte, b []byte) error {
		select {
		case ch <- b:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	// reader
	source := make(chan []byte, queueSize)
	go func(out chan<- []byte) {
		defer close(out)

		for {
			buf := make([]byte, chunkSize)
			n, rerr := src.Read(buf)
			if n > 0 {
				if send(out, buf[:n]) != nil {
					return
				}
			}

			if rerr != nil {
				if rerr != io.EOF {
					state.fail(errors.Wrap(rerr, "failed to read"))
				}
				return
			}
		}
	}(source)

	// stages
	var in <-chan []byte = source
	for _, stage := range stages {
		if stage == nil {
			continue
		}

		out := make(chan []byte, queueSize)
		go func(stage Transform, in <-chan []byte, out chan<- []byte) {
			defer close(out)

			emit := func(b []byte) error {
				if len(b) == 0 {
					return nil
				}
				return send(out, b)
			}

			for {
				select {
				case chunk, ok := <-in:
					if !ok {
						return
					}

					if terr := stage.Transform(chunk, emit); terr != nil {
						state.fail(terr)
						return
					}
				case <-ctx.Done():
					return
				}
			}
		}(stage, in, out)

		in = out
	}

	// writer
	for {
		select {
		case chunk, ok := <-in:
			if !ok {
				logger.Debugf("[pipe][%s] done, %d bytes", name, written)
				return written, state.get()
			}

			// a cancelled pipe never writes again
			if ctx.Err() != nil {
				return written, state.getOr(ctx.Err())
			}

			n, werr := dst.Write(chunk)
			written += int64(n)
			if werr != nil {
				state.fail(errors.Wrap(werr, "failed to write"))
				return written, state.get()
			}
		case <-ctx.Done():
			return written, state.getOr(ctx.Err())
		}
	}
}

type failure struct {
	sync.Mutex
	err    error
	cancel context.CancelFunc
}

func (f *failure) fail(err error) {
	f.Lock()
	defer f.Unlock()

	if f.err == nil {
		f.err = err
	}
	f.cancel()
}

func (f *failure) get() error {
	f.Lock()
	defer f.Unlock()

	return f.err
}

func (f *failure) getOr(fallback error) error {
	if err := f.get(); err != nil {
		return err
	}
	return fallback
}
