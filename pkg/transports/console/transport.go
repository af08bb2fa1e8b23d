// Package console implements a terminal transport: a prompt on the output,
// one line read per turn from the input.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/harunnryd/todoagent/pkg/transports"
)

const (
	DefaultPrompt  = ">>"
	DefaultMaxLine = 1024 * 1024
)

type Config struct {
	In     io.Reader
	Out    io.Writer
	Prompt string
	// MaxLine caps one input line in bytes. Longer lines are skipped and
	// reported as transports.ErrLineTooLong.
	MaxLine int
}

type line struct {
	text string
	err  error
}

// Transport reads lines on a background goroutine so ReadLine can honour
// context cancellation while stdin blocks.
type Transport struct {
	in     io.Reader
	out    io.Writer
	prompt  string
	maxLine int

	mu      sync.Mutex
	lines   chan line
	done    chan struct{}
	started bool
	stopped bool
}

func New(cfg Config) *Transport {
	if cfg.In == nil {
		cfg.In = os.Stdin
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if cfg.Prompt == "" {
		cfg.Prompt = DefaultPrompt
	}
	if cfg.MaxLine <= 0 {
		cfg.MaxLine = DefaultMaxLine
	}
	return &Transport{
		in:      cfg.In,
		out:     cfg.Out,
		prompt:  cfg.Prompt,
		maxLine: cfg.MaxLine,
		lines:   make(chan line),
		done:    make(chan struct{}),
	}
}

func (t *Transport) Name() string { return "console" }

func (t *Transport) ReadyFields() map[string]any {
	return map[string]any{"prompt": t.prompt}
}

func (t *Transport) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return nil
	}
	t.started = true
	go t.readLoop()
	return nil
}

func (t *Transport) readLoop() {
	r := bufio.NewReader(t.in)
	for {
		l := t.readOne(r)
		select {
		case t.lines <- l:
		case <-t.done:
			return
		}
		if l.err != nil && !errors.Is(l.err, transports.ErrLineTooLong) {
			return
		}
	}
}

// readOne returns the next line without its newline. A line longer than
// maxLine is drained up to its newline and reported as ErrLineTooLong.
func (t *Transport) readOne(r *bufio.Reader) line {
	var (
		buf      []byte
		tooLong  bool
		sawBytes bool
	)
	for {
		chunk, err := r.ReadSlice('\n')
		sawBytes = sawBytes || len(chunk) > 0
		if !tooLong {
			n := len(buf) + len(chunk)
			if n > 0 && len(chunk) > 0 && chunk[len(chunk)-1] == '\n' {
				n--
			}
			if n > t.maxLine {
				tooLong, buf = true, nil
			} else {
				buf = append(buf, chunk...)
			}
		}
		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case err == nil:
		case errors.Is(err, io.EOF) && sawBytes:
		default:
			return line{err: err}
		}
		if tooLong {
			return line{err: transports.ErrLineTooLong}
		}
		return line{text: strings.TrimSuffix(string(buf), "\n")}
	}
}

func (t *Transport) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.stopped {
		t.stopped = true
		close(t.done)
	}
	return nil
}

// ReadLine writes the prompt and waits for the next input line.
func (t *Transport) ReadLine(ctx context.Context) (string, error) {
	if err := t.writePrompt(); err != nil {
		return "", err
	}
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-t.done:
		return "", transports.ErrClosed
	case l := <-t.lines:
		if l.err != nil {
			return "", l.err
		}
		return strings.TrimRight(l.text, "\r"), nil
	}
}

func (t *Transport) WriteLine(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return transports.ErrClosed
	}
	_, err := fmt.Fprintln(t.out, text)
	return err
}

func (t *Transport) writePrompt() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return transports.ErrClosed
	}
	if !t.started {
		return fmt.Errorf("console: not started")
	}
	_, err := io.WriteString(t.out, t.prompt)
	return err
}

var (
	_ transports.Transport     = (*Transport)(nil)
	_ transports.ReadyReporter = (*Transport)(nil)
)
