// Package stdio serves request envelopes over newline-delimited standard
// input and output.
package stdio

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/teemow/crmgate/internal/dispatch"
	"github.com/teemow/crmgate/internal/logging"
)

// DefaultMaxLineSize bounds a single request line.
const DefaultMaxLineSize = 10 << 20

// Server reads one envelope per line and writes one response per line.
// Requests are dispatched concurrently, so responses may be written out of
// order; callers match them by id.
type Server struct {
	dispatcher  *dispatch.Dispatcher
	in          io.Reader
	out         io.Writer
	logger      *slog.Logger
	maxLineSize int

	writeMu sync.Mutex
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. It must not write to the output stream.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMaxLineSize overrides DefaultMaxLineSize.
func WithMaxLineSize(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxLineSize = n
		}
	}
}

// New creates a stdio server reading from in and writing to out.
func New(d *dispatch.Dispatcher, in io.Reader, out io.Writer, opts ...Option) *Server {
	s := &Server{
		dispatcher:  d,
		in:          in,
		out:         out,
		logger:      slog.Default(),
		maxLineSize: DefaultMaxLineSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.WithComponent(s.logger, "stdio")
	return s
}

// Serve handles requests until the input ends, ctx is cancelled or a
// shutdown request has been answered. In-flight requests finish before it
// returns.
func (s *Server) Serve(ctx context.Context) error {
	lines := make(chan []byte)
	readErr := make(chan error, 1)
	go s.read(ctx, lines, readErr)

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.dispatcher.Done():
			return nil
		case err := <-readErr:
			return err
		case line := <-lines:
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.handle(ctx, line)
			}()
		}
	}
}

func (s *Server) read(ctx context.Context, lines chan<- []byte, readErr chan<- error) {
	scanner := bufio.NewScanner(s.in)
	scanner.Buffer(make([]byte, 0, min(64*1024, s.maxLineSize)), s.maxLineSize)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		// Scanner reuses its buffer.
		msg := append([]byte(nil), line...)
		select {
		case lines <- msg:
		case <-ctx.Done():
			return
		}
	}

	err := scanner.Err()
	if err != nil {
		err = fmt.Errorf("read request: %w", err)
	}
	readErr <- err
}

func (s *Server) handle(ctx context.Context, line []byte) {
	resp := s.dispatcher.DispatchBytes(ctx, line)
	if err := s.write(resp); err != nil {
		s.logger.Error("failed to write response", logging.Err(err))
	}
}

func (s *Server) write(resp *dispatch.Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err = s.out.Write(data)
	if errors.Is(err, io.ErrClosedPipe) {
		return nil
	}
	return err
}
