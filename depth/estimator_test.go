package depth

import (
	"context"
	"errors"
	"testing"

	"go.viam.com/test"
	"gorgonia.org/tensor"

	"go.viam.com/cloudmosh/logging"
	"go.viam.com/cloudmosh/ml"
	"go.viam.com/cloudmosh/pipeline"
	"go.viam.com/cloudmosh/rimage"
	"go.viam.com/cloudmosh/utils"
)

// fakeModel answers every batch with half-size predictions equal to value, recording the input
// shapes it saw.
type fakeModel struct {
	value  float32
	shapes [][]int
	maxIn  float64
	minIn  float64
}

func (f *fakeModel) Infer(ctx context.Context, in ml.Tensors) (ml.Tensors, error) {
	input := in[ml.InputTensorName]
	shape := []int(input.Shape())
	f.shapes = append(f.shapes, shape)
	for _, v := range input.Data().([]float32) {
		f.maxIn = max(f.maxIn, float64(v))
		f.minIn = min(f.minIn, float64(v))
	}
	n := shape[0]
	out := make([]float32, n*320*240)
	for i := range out {
		out[i] = f.value
	}
	return ml.Tensors{ml.OutputTensorName: tensor.New(tensor.WithShape(n, 320, 240, 1), tensor.WithBacking(out))}, nil
}

func (f *fakeModel) Close() error { return nil }

func images(batch, rows, cols, channels int) *rimage.Array {
	arr := rimage.NewArray(batch, rows, cols, channels)
	for i := range arr.Data {
		arr.Data[i] = float64(i % 300)
	}
	return arr
}

func TestEstimatorShapesAndBatching(t *testing.T) {
	model := &fakeModel{value: 10}
	est, err := NewEstimator(model, Config{BatchSize: 2}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	seq, err := pipeline.Shift(context.Background(),
		pipeline.Of(images(3, 20, 10, 3), images(1, 7, 9, 1)),
		pipeline.Stage[*rimage.Array, *rimage.Array](est))
	test.That(t, err, test.ShouldBeNil)
	out, err := pipeline.Collect(seq)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldHaveLength, 2)
	test.That(t, out[0].ShapeString(), test.ShouldEqual, "(3, 20, 10, 1)")
	test.That(t, out[1].ShapeString(), test.ShouldEqual, "(1, 7, 9, 1)")

	test.That(t, model.shapes, test.ShouldResemble, [][]int{
		{2, ModelRows, ModelCols, 3},
		{1, ModelRows, ModelCols, 3},
		{1, ModelRows, ModelCols, 3},
	})
	test.That(t, model.maxIn, test.ShouldBeLessThanOrEqualTo, 1.0)
	test.That(t, model.minIn, test.ShouldBeGreaterThanOrEqualTo, 0.0)

	// maxDepth / 10 = 100 everywhere.
	for _, v := range out[0].Data {
		test.That(t, v, test.ShouldEqual, 100.0)
	}
}

func TestEstimatorClips(t *testing.T) {
	for _, tc := range []struct {
		prediction float32
		want       float64
	}{
		{0.001, DefaultMaxDepth},
		{0, DefaultMaxDepth},
		{500, DefaultMinDepth},
	} {
		est, err := NewEstimator(&fakeModel{value: tc.prediction}, Config{}, nil)
		test.That(t, err, test.ShouldBeNil)
		depth, err := est.Estimate(context.Background(), images(1, 4, 4, 4))
		test.That(t, err, test.ShouldBeNil)
		for _, v := range depth.Data {
			test.That(t, v, test.ShouldEqual, tc.want)
		}
	}
}

func TestEstimatorZeroMinDepth(t *testing.T) {
	zero := 0.0
	for _, tc := range []struct {
		prediction float32
		want       float64
	}{
		{500, 0.04},
		{-1, 0},
		{0.5, 20},
	} {
		est, err := NewEstimator(&fakeModel{value: tc.prediction}, Config{MinDepth: &zero, MaxDepth: 20}, nil)
		test.That(t, err, test.ShouldBeNil)
		depth, err := est.Estimate(context.Background(), images(1, 4, 4, 3))
		test.That(t, err, test.ShouldBeNil)
		for _, v := range depth.Data {
			test.That(t, v, test.ShouldAlmostEqual, tc.want)
		}
	}
}

func TestEstimatorErrors(t *testing.T) {
	boom := errors.New("model exploded")
	failing := ml.ModelFunc(func(ctx context.Context, in ml.Tensors) (ml.Tensors, error) {
		return nil, boom
	})
	est, err := NewEstimator(failing, Config{}, nil)
	test.That(t, err, test.ShouldBeNil)
	_, err = est.Estimate(context.Background(), images(1, 2, 2, 3))
	test.That(t, err, test.ShouldEqual, boom)

	_, err = est.Estimate(context.Background(), images(1, 2, 2, 2))
	test.That(t, errors.Is(err, utils.ErrShape), test.ShouldBeTrue)

	_, err = pipeline.Shift(context.Background(), nil, pipeline.Stage[*rimage.Array, *rimage.Array](est))
	test.That(t, errors.Is(err, utils.ErrUsage), test.ShouldBeTrue)

	_, err = NewEstimator(nil, Config{}, nil)
	test.That(t, errors.Is(err, utils.ErrUsage), test.ShouldBeTrue)
	minDepth := 50.0
	_, err = NewEstimator(failing, Config{MinDepth: &minDepth, MaxDepth: 5}, nil)
	test.That(t, errors.Is(err, utils.ErrUsage), test.ShouldBeTrue)
	minDepth = -1
	_, err = NewEstimator(failing, Config{MinDepth: &minDepth}, nil)
	test.That(t, errors.Is(err, utils.ErrUsage), test.ShouldBeTrue)

	wrongShape := ml.ModelFunc(func(ctx context.Context, in ml.Tensors) (ml.Tensors, error) {
		return ml.Tensors{"x": ml.Float32Tensor(make([]float64, 8), 1, 2, 2, 2)}, nil
	})
	est, err = NewEstimator(wrongShape, Config{}, nil)
	test.That(t, err, test.ShouldBeNil)
	_, err = est.Estimate(context.Background(), images(1, 2, 2, 3))
	test.That(t, errors.Is(err, utils.ErrShape), test.ShouldBeTrue)
}
