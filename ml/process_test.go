package ml

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"os/exec"
	"testing"
	"time"

	"go.viam.com/test"
	"gorgonia.org/tensor"

	"go.viam.com/cloudmosh/logging"
)

const helperEnv = "CLOUDMOSH_HELPER_WORKER"

// TestHelperWorker is not a real test. It is the worker process started by the tests below.
func TestHelperWorker(t *testing.T) {
	mode := os.Getenv(helperEnv)
	if mode == "" {
		return
	}
	data := os.NewFile(3, "data")
	reply := func(status byte, payload []byte) {
		header := make([]byte, 5)
		header[0] = status
		binary.BigEndian.PutUint32(header[1:], uint32(len(payload)))
		data.Write(header)
		data.Write(payload)
	}

	if mode == "fail-load" {
		reply(statusError, []byte("no such model"))
		os.Exit(0)
	}
	reply(statusOK, nil)

	in := bufio.NewReader(os.Stdin)
	for {
		var size uint32
		if err := binary.Read(in, binary.BigEndian, &size); err != nil {
			os.Exit(0)
		}
		body := make([]byte, size)
		if _, err := io.ReadFull(in, body); err != nil {
			os.Exit(1)
		}
		switch mode {
		case "crash":
			fmt.Fprintln(os.Stderr, "Traceback: out of memory")
			os.Exit(3)
		case "error":
			reply(statusError, []byte("bad input shape"))
			continue
		case "hang":
			time.Sleep(time.Minute)
		}

		input := new(tensor.Dense)
		if err := input.ReadNpy(bytes.NewReader(body)); err != nil {
			reply(statusError, []byte(err.Error()))
			continue
		}
		values := input.Data().([]float32)
		doubled := make([]float32, len(values))
		for i, v := range values {
			doubled[i] = 2 * v
		}
		out := tensor.New(tensor.WithShape(input.Shape()...), tensor.WithBacking(doubled))
		var buf bytes.Buffer
		if err := out.WriteNpy(&buf); err != nil {
			reply(statusError, []byte(err.Error()))
			continue
		}
		reply(statusOK, buf.Bytes())
	}
}

func startHelper(t *testing.T, mode string) (*ProcessModel, error) {
	t.Helper()
	return NewProcessModel(context.Background(), ProcessConfig{
		Command:   []string{os.Args[0], "-test.run=^TestHelperWorker$", "--"},
		ModelPath: "nyu.h5",
		Env:       []string{helperEnv + "=" + mode},
	}, logging.NewTestLogger(t))
}

func TestProcessModelInfer(t *testing.T) {
	model, err := startHelper(t, "double")
	test.That(t, err, test.ShouldBeNil)
	defer func() {
		test.That(t, model.Close(), test.ShouldBeNil)
	}()

	for i := 0; i < 2; i++ {
		input := Float32Tensor([]float64{1, 2, 3, 4, 5, 6}, 1, 2, 3, 1)
		out, err := model.Infer(context.Background(), Tensors{InputTensorName: input})
		test.That(t, err, test.ShouldBeNil)
		output, err := Output(out)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, []int(output.Shape()), test.ShouldResemble, []int{1, 2, 3, 1})
		values, err := Float64Data(output)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, values, test.ShouldResemble, []float64{2, 4, 6, 8, 10, 12})
	}

	_, err = model.Infer(context.Background(), Tensors{"other": Float32Tensor([]float64{1}, 1)})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestProcessModelErrors(t *testing.T) {
	t.Run("load failure", func(t *testing.T) {
		_, err := startHelper(t, "fail-load")
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "no such model")
	})

	t.Run("worker error", func(t *testing.T) {
		model, err := startHelper(t, "error")
		test.That(t, err, test.ShouldBeNil)
		defer model.Close()
		_, err = model.Infer(context.Background(), Tensors{InputTensorName: Float32Tensor([]float64{1}, 1)})
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "bad input shape")
	})

	t.Run("crash", func(t *testing.T) {
		model, err := startHelper(t, "crash")
		test.That(t, err, test.ShouldBeNil)
		defer model.Close()
		_, err = model.Infer(context.Background(), Tensors{InputTensorName: Float32Tensor([]float64{1}, 1)})
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "out of memory")
	})

	t.Run("cancelled", func(t *testing.T) {
		model, err := startHelper(t, "hang")
		test.That(t, err, test.ShouldBeNil)
		defer model.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		_, err = model.Infer(ctx, Tensors{InputTensorName: Float32Tensor([]float64{1}, 1)})
		test.That(t, err, test.ShouldEqual, context.DeadlineExceeded)
	})

	t.Run("missing binary", func(t *testing.T) {
		_, err := NewProcessModel(context.Background(), ProcessConfig{Command: []string{"/definitely/not/a/worker"}}, nil)
		test.That(t, err, test.ShouldNotBeNil)
	})
}

func TestModelFunc(t *testing.T) {
	var model Model = ModelFunc(func(ctx context.Context, in Tensors) (Tensors, error) {
		return Tensors{"depth": in[InputTensorName]}, nil
	})
	out, err := model.Infer(context.Background(), Tensors{InputTensorName: Float32Tensor([]float64{7}, 1)})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, TensorNames(out), test.ShouldResemble, []string{"depth"})
	only, err := Output(out)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, only.Data(), test.ShouldResemble, []float32{7})
	test.That(t, model.Close(), test.ShouldBeNil)

	_, err = Output(Tensors{"a": only, "b": only})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestWorkerScript(t *testing.T) {
	python, err := exec.LookPath("python3")
	if err != nil {
		t.Skip("python3 not available")
	}
	if err := exec.Command(python, "-c", "import numpy").Run(); err != nil {
		t.Skip("numpy not available")
	}
	out, err := exec.Command(python, "worker_test.py").CombinedOutput()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(out), test.ShouldContainSubstring, "OK")
}
