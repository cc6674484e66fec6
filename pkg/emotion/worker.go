package emotion

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
)

const providerWorker = "worker"

// maxFrameSize bounds a single protocol message.
const maxFrameSize = 16 << 20

// stderrTail is how much worker stderr is kept for crash reports.
const stderrTail = 8 << 10

// Worker runs a DeepFace process and talks to it over pipes.
//
// Protocol: each request is a JPEG written to the child's stdin as
// [uint32 big-endian length][bytes]. Each response is read from fd 3 in the
// same framing and holds the JSON output of DeepFace.analyze, or
// {"error": "..."}. Stdout stays free for the child's own logging.
type Worker struct {
	cmd    *exec.Cmd
	stderr *tailBuffer
	stdin  io.WriteCloser
	data   io.ReadCloser
	logger *slog.Logger

	mu     sync.Mutex
	failed error
	closed bool

	waitOnce sync.Once
	waitErr  error
}

// NewWorker starts the worker process named by the configured command.
func NewWorker(opts ...Option) (*Worker, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if len(cfg.Command) == 0 {
		return nil, WrapError(providerWorker, fmt.Errorf("no worker command configured"))
	}

	cmd := exec.Command(cfg.Command[0], cfg.Command[1:]...)
	stderr := &tailBuffer{max: stderrTail}
	cmd.Stderr = stderr
	cmd.Env = append(os.Environ(), "MOODCAM_DETECTOR_BACKEND="+cfg.DetectorBackend)

	// Side channel for responses. The child sees the write end as fd 3.
	r, w, err := os.Pipe()
	if err != nil {
		return nil, WrapError(providerWorker, fmt.Errorf("create pipe: %w", err))
	}
	cmd.ExtraFiles = []*os.File{w}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		w.Close()
		r.Close()
		return nil, WrapError(providerWorker, fmt.Errorf("stdin pipe: %w", err))
	}

	if err := cmd.Start(); err != nil {
		w.Close()
		r.Close()
		return nil, WrapError(providerWorker, fmt.Errorf("start %s: %w", cfg.Command[0], err))
	}

	// Only the child holds the write end, so its exit surfaces as EOF.
	w.Close()

	logger := cfg.Logger.With("component", "emotion.worker")
	logger.Info("worker started", "pid", cmd.Process.Pid, "command", strings.Join(cfg.Command, " "))

	return &Worker{
		cmd:    cmd,
		stderr: stderr,
		stdin:  stdin,
		data:   r,
		logger: logger,
	}, nil
}

// Name returns "worker".
func (w *Worker) Name() string {
	return providerWorker
}

// Classify sends one crop and waits for the analysis. A transport failure
// or a cancelled context leaves the worker unusable; later calls return
// ErrWorkerExited. An {"error"} reply does not.
func (w *Worker) Classify(ctx context.Context, jpeg []byte) (*Analysis, error) {
	if len(jpeg) == 0 {
		return nil, WrapError(providerWorker, ErrEmptyImage)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, WrapError(providerWorker, ErrWorkerExited)
	}
	if w.failed != nil {
		return nil, WrapError(providerWorker, w.failed)
	}

	start := time.Now()

	type reply struct {
		body []byte
		err  error
	}
	ch := make(chan reply, 1)
	go func() {
		body, err := w.communicate(jpeg)
		ch <- reply{body, err}
	}()

	var r reply
	select {
	case <-ctx.Done():
		w.failed = fmt.Errorf("%w: %v", ErrWorkerExited, ctx.Err())
		w.kill()
		return nil, ctx.Err()
	case r = <-ch:
	}

	if r.err != nil {
		w.kill()
		w.wait()
		w.failed = w.crashError(r.err)
		w.logger.Error("worker failed", "error", w.failed)
		return nil, WrapError(providerWorker, w.failed)
	}

	a, err := decodeReply(r.body)
	if err != nil {
		return nil, WrapError(providerWorker, err)
	}
	a.Provider = providerWorker
	a.LatencyMs = time.Since(start).Milliseconds()
	return a, nil
}

// Close ends the worker by closing its stdin, killing it if it does not
// exit within two seconds.
func (w *Worker) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	w.stdin.Close()
	if w.cmd == nil {
		return w.closeData()
	}

	done := make(chan error, 1)
	go func() { done <- w.wait() }()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		w.logger.Warn("worker did not exit, killing", "pid", w.cmd.Process.Pid)
		w.cmd.Process.Kill()
		<-done
	}
	return w.closeData()
}

// closeData closes the response pipe unless kill already did.
func (w *Worker) closeData() error {
	err := w.data.Close()
	if w.failed != nil {
		return nil
	}
	return err
}

// Stderr returns the tail of the worker's stderr.
func (w *Worker) Stderr() string {
	if w.stderr == nil {
		return ""
	}
	return w.stderr.String()
}

func (w *Worker) communicate(payload []byte) ([]byte, error) {
	if err := writeFrame(w.stdin, payload); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}
	body, err := readFrame(w.data)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}

// wait reaps the process once. Stderr is complete after it returns.
func (w *Worker) wait() error {
	if w.cmd == nil {
		return nil
	}
	w.waitOnce.Do(func() { w.waitErr = w.cmd.Wait() })
	return w.waitErr
}

// kill tears down the process and unblocks any pending read.
func (w *Worker) kill() {
	if w.cmd != nil && w.cmd.Process != nil {
		w.cmd.Process.Kill()
	}
	w.stdin.Close()
	w.data.Close()
}

// crashError wraps err with whatever the worker printed to stderr.
func (w *Worker) crashError(err error) error {
	logs := strings.TrimSpace(w.Stderr())
	if logs == "" {
		return fmt.Errorf("%w: %v", ErrWorkerExited, err)
	}
	return fmt.Errorf("%w: %v\nworker stderr:\n%s", ErrWorkerExited, err, logs)
}

// decodeReply accepts a DeepFace result list, a {"results": [...]} object
// or an {"error": "..."} object.
func decodeReply(body []byte) (*Analysis, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("invalid JSON reply: %q", truncate(string(body), 120))
	}

	parsed := gjson.ParseBytes(body)
	if msg := parsed.Get("error"); msg.Exists() {
		return nil, fmt.Errorf("worker error: %s", msg.String())
	}

	raw := body
	if !parsed.IsArray() {
		results := parsed.Get("results")
		if !results.IsArray() {
			return nil, ErrNoFace
		}
		raw = []byte(results.Raw)
	}

	var results []faceResult
	if err := json.Unmarshal(raw, &results); err != nil {
		return nil, fmt.Errorf("decode reply: %w", err)
	}
	return analysisFrom(results)
}

// writeFrame writes data as [uint32 big-endian length][data].
func writeFrame(w io.Writer, data []byte) error {
	if len(data) > maxFrameSize {
		return fmt.Errorf("frame of %d bytes exceeds limit", len(data))
	}
	if err := binary.Write(w, binary.BigEndian, uint32(len(data))); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

// readFrame reads one [uint32 big-endian length][data] message.
func readFrame(r io.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, io.EOF
		}
		return nil, err
	}
	if n > maxFrameSize {
		return nil, fmt.Errorf("frame of %d bytes exceeds limit", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.max; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
