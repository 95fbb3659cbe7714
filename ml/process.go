package ml

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"
	"gorgonia.org/tensor"

	"go.viam.com/cloudmosh/logging"
)

// DefaultWorkerCommand is the command used to start a worker when none is configured. The model
// path is appended as `--model <path>`.
var DefaultWorkerCommand = []string{"python3", "-u", "worker.py"}

const (
	statusOK    byte = 0
	statusError byte = 1

	// maxFrameSize bounds a single response so a confused worker cannot make us allocate wildly.
	maxFrameSize = 1 << 31

	crashReportTimeout = 2 * time.Second
)

// ProcessConfig describes how to start a worker process.
type ProcessConfig struct {
	// Command is the worker executable and its arguments. Defaults to DefaultWorkerCommand.
	Command []string
	// ModelPath is passed to the worker as `--model <path>` when set.
	ModelPath string
	// Env is added to the environment of the worker.
	Env []string
}

// ProcessModel is a Model served by an external worker process.
//
// The worker reads requests on stdin and answers on file descriptor 3, which keeps its own
// logging on stdout and stderr out of the data stream. A request is `[u32 length][npy tensor]`.
// Every answer is `[u8 status][u32 length][payload]`: status 0 carries an npy tensor (empty for
// the ready message sent once the model is loaded) and status 1 a UTF-8 error message. Lengths
// are big endian. stderr is captured so crashes can be reported with the worker's own output.
type ProcessModel struct {
	mu       sync.Mutex
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	dataPipe io.ReadCloser
	data     *bufio.Reader
	stderr   *lockedBuffer
	logger   logging.Logger
	closed   bool

	waitOnce sync.Once
	exited   chan struct{}
	waitErr  error
}

// NewProcessModel starts a worker and waits for it to report that the model is loaded.
func NewProcessModel(ctx context.Context, conf ProcessConfig, logger logging.Logger) (*ProcessModel, error) {
	logger = logging.OrGlobal(logger).Sublogger("worker")
	command := conf.Command
	if len(command) == 0 {
		command = DefaultWorkerCommand
	}
	args := append([]string(nil), command[1:]...)
	if conf.ModelPath != "" {
		args = append(args, "--model", conf.ModelPath)
	}

	//nolint:gosec
	cmd := exec.Command(command[0], args...)
	cmd.Env = append(os.Environ(), conf.Env...)
	stderr := &lockedBuffer{}
	cmd.Stderr = stderr

	// Side-channel pipe for clean data transfer. The child sees the write end as fd 3.
	r, w, err := os.Pipe()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create worker data pipe")
	}
	cmd.ExtraFiles = []*os.File{w}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, multierr.Combine(errors.Wrap(err, "failed to create worker stdin"), w.Close(), r.Close())
	}
	if err := cmd.Start(); err != nil {
		return nil, multierr.Combine(errors.Wrapf(err, "worker %q failed to start", command[0]), w.Close(), r.Close())
	}
	// Only the child should hold the write end, so that its exit shows up as EOF here.
	goutils.UncheckedError(w.Close())

	pm := &ProcessModel{
		cmd:      cmd,
		stdin:    stdin,
		dataPipe: r,
		data:     bufio.NewReader(r),
		stderr:   stderr,
		logger:   logger,
		exited:   make(chan struct{}),
	}
	logger.Debugw("started worker", "command", command, "pid", cmd.Process.Pid)

	if _, err := pm.await(ctx); err != nil {
		return nil, multierr.Combine(errors.Wrap(err, "worker failed to load model"), pm.Close())
	}
	logger.Debugw("worker ready", "model", conf.ModelPath)
	return pm, nil
}

// Infer sends the input tensor to the worker and returns its answer as the output tensor.
func (pm *ProcessModel) Infer(ctx context.Context, tensors Tensors) (Tensors, error) {
	input, ok := tensors[InputTensorName]
	if !ok {
		return nil, errors.Errorf("no tensor named %q among input tensors %v", InputTensorName, TensorNames(tensors))
	}

	pm.mu.Lock()
	defer pm.mu.Unlock()
	if pm.closed {
		return nil, errors.New("worker is closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var body bytes.Buffer
	if err := input.WriteNpy(&body); err != nil {
		return nil, errors.Wrap(err, "encoding input tensor")
	}
	if err := binary.Write(pm.stdin, binary.BigEndian, uint32(body.Len())); err != nil {
		return nil, pm.crashed(err)
	}
	if _, err := pm.stdin.Write(body.Bytes()); err != nil {
		return nil, pm.crashed(err)
	}

	payload, err := pm.await(ctx)
	if err != nil {
		return nil, err
	}
	output := new(tensor.Dense)
	if err := output.ReadNpy(bytes.NewReader(payload)); err != nil {
		return nil, errors.Wrap(err, "decoding output tensor")
	}
	return Tensors{OutputTensorName: output}, nil
}

// await reads one answer. The worker is killed if ctx ends first.
func (pm *ProcessModel) await(ctx context.Context) ([]byte, error) {
	done := make(chan struct{})
	defer close(done)
	goutils.PanicCapturingGo(func() {
		select {
		case <-ctx.Done():
			goutils.UncheckedError(pm.cmd.Process.Kill())
		case <-done:
		}
	})

	var header [5]byte
	if _, err := io.ReadFull(pm.data, header[:]); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, pm.crashed(err)
	}
	size := binary.BigEndian.Uint32(header[1:])
	if size > maxFrameSize {
		return nil, errors.Errorf("worker sent an oversized frame of %d bytes", size)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(pm.data, payload); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, pm.crashed(err)
	}

	switch header[0] {
	case statusOK:
		return payload, nil
	case statusError:
		return nil, errors.Errorf("worker error: %s", payload)
	default:
		return nil, errors.Errorf("worker sent unknown status %d", header[0])
	}
}

// wait reaps the worker exactly once. Its stderr is fully captured once this returns.
func (pm *ProcessModel) wait() error {
	pm.waitOnce.Do(func() {
		pm.waitErr = pm.cmd.Wait()
		close(pm.exited)
	})
	<-pm.exited
	return pm.waitErr
}

// crashed decorates a pipe error with whatever the worker printed to stderr.
func (pm *ProcessModel) crashed(err error) error {
	// A broken pipe usually means the worker is exiting; give it a moment so its last words are
	// captured.
	goutils.PanicCapturingGo(func() { goutils.UncheckedError(pm.wait()) })
	select {
	case <-pm.exited:
	case <-time.After(crashReportTimeout):
	}
	if logs := pm.stderr.String(); logs != "" {
		return errors.Wrapf(err, "worker crashed; stderr:\n%s", logs)
	}
	return errors.Wrap(err, "worker crashed")
}

// Stderr returns everything the worker has written to stderr so far.
func (pm *ProcessModel) Stderr() string {
	return pm.stderr.String()
}

// Close stops the worker by closing its stdin and waits for it to exit.
func (pm *ProcessModel) Close() error {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if pm.closed {
		return nil
	}
	pm.closed = true
	err := multierr.Combine(pm.stdin.Close(), pm.dataPipe.Close())
	if waitErr := pm.wait(); waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			err = multierr.Combine(err, waitErr)
		}
	}
	pm.logger.Debugw("worker stopped", "pid", pm.cmd.Process.Pid)
	return err
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (lb *lockedBuffer) Write(p []byte) (int, error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.buf.Write(p)
}

func (lb *lockedBuffer) String() string {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.buf.String()
}
