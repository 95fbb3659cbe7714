package effect

import (
	"context"
	"errors"
	"image/color"
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/samber/lo"
	"go.viam.com/test"

	"go.viam.com/cloudmosh/logging"
	"go.viam.com/cloudmosh/pipeline"
	"go.viam.com/cloudmosh/pointcloud"
	"go.viam.com/cloudmosh/rimage"
	"go.viam.com/cloudmosh/utils"
)

func TestQuantizeSingleLevel(t *testing.T) {
	values := []float64{1, 2, 3, 6}
	out, centroids, err := Quantize(values, 1, 0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, centroids, test.ShouldHaveLength, 1)
	test.That(t, centroids[0], test.ShouldAlmostEqual, 3.0)
	for _, v := range out {
		test.That(t, v, test.ShouldEqual, centroids[0])
	}

	out, centroids, err = Quantize(values, 1, 10)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, centroids[0], test.ShouldAlmostEqual, 13.0)
	test.That(t, out[3], test.ShouldAlmostEqual, 13.0)
	test.That(t, values, test.ShouldResemble, []float64{1, 2, 3, 6})
}

func TestQuantizeLevels(t *testing.T) {
	values := []float64{}
	for _, base := range []float64{10, 500, 1000} {
		for i := 0; i < 20; i++ {
			values = append(values, base+float64(i%4))
		}
	}
	for _, levels := range []int{2, 3, 4} {
		out, centroids, err := Quantize(values, levels, 2.5)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, out, test.ShouldHaveLength, len(values))
		test.That(t, len(lo.Uniq(out)), test.ShouldBeLessThanOrEqualTo, levels)
		for _, v := range out {
			test.That(t, lo.Contains(centroids, v), test.ShouldBeTrue)
		}
	}
}

func TestQuantizeConverges(t *testing.T) {
	values := make([]float64, 0, 8000)
	for _, base := range []float64{0, 100, 250, 600} {
		for i := 0; i < 2000; i++ {
			values = append(values, base+float64((i*37)%50)*0.5)
		}
	}
	out, centroids, err := Quantize(values, 4, 0)
	test.That(t, err, test.ShouldBeNil)

	// A converged partition is a fixed point: every value sits at its nearest centroid and
	// every centroid is the mean of its values.
	sums := make([]float64, len(centroids))
	counts := make([]int, len(centroids))
	for i, v := range values {
		idx := lo.IndexOf(centroids, out[i])
		test.That(t, idx, test.ShouldBeGreaterThanOrEqualTo, 0)
		for _, c := range centroids {
			test.That(t, math.Abs(v-out[i]), test.ShouldBeLessThanOrEqualTo, math.Abs(v-c)+1e-9)
		}
		sums[idx] += v
		counts[idx]++
	}
	for idx, c := range centroids {
		if counts[idx] == 0 {
			continue
		}
		test.That(t, c, test.ShouldAlmostEqual, sums[idx]/float64(counts[idx]), 1e-6)
	}
}

func TestQuantizeErrors(t *testing.T) {
	_, _, err := Quantize([]float64{1, 2, 3}, 0, 0)
	test.That(t, errors.Is(err, utils.ErrClustering), test.ShouldBeTrue)

	_, _, err = Quantize([]float64{1, 1, 2, 2, 3}, 4, 0)
	test.That(t, errors.Is(err, utils.ErrClustering), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "3 distinct values into 4 levels")

	// A constant cloud still posterizes to one level.
	out, _, err := Quantize([]float64{7, 7, 7}, 1, 0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldResemble, []float64{7, 7, 7})
}

func testCloud(t *testing.T) *pointcloud.DepthCloud {
	t.Helper()
	var points []r3.Vector
	var colors []color.NRGBA
	for i := 0; i < 12; i++ {
		points = append(points, r3.Vector{X: float64(i / 4), Y: float64(i % 4), Z: float64(100*(i%3) + i)})
		colors = append(colors, color.NRGBA{uint8(i), uint8(2 * i), uint8(3 * i), 255})
	}
	cloud, err := pointcloud.New(points, colors)
	test.That(t, err, test.ShouldBeNil)
	return cloud
}

func TestPosterizeDepth(t *testing.T) {
	cloud := testCloud(t)
	padding := 1.0
	p := PosterizeDepth(PosterizeConfig{Levels: 3, ZPadding: &padding}).WithLogger(logging.NewTestLogger(t))

	seq, err := pipeline.Shift(context.Background(), pipeline.Of(cloud, cloud),
		pipeline.Stage[*pointcloud.DepthCloud, *pointcloud.DepthCloud](p))
	test.That(t, err, test.ShouldBeNil)
	out, err := pipeline.Collect(seq)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldHaveLength, 2)

	for _, posterized := range out {
		zs := posterized.Zs()
		test.That(t, len(lo.Uniq(zs)), test.ShouldBeLessThanOrEqualTo, 3)
		test.That(t, posterized.Colors(), test.ShouldResemble, cloud.Colors())
		for i, p := range posterized.Points() {
			orig, _ := cloud.At(i)
			test.That(t, p.X, test.ShouldEqual, orig.X)
			test.That(t, p.Y, test.ShouldEqual, orig.Y)
		}
	}
	test.That(t, cloud.Zs()[1], test.ShouldEqual, 101.0)

	test.That(t, PosterizeDepth(PosterizeConfig{}).levels, test.ShouldEqual, DefaultLevels)

	seq, err = pipeline.Shift(context.Background(), pipeline.Of(cloud),
		pipeline.Stage[*pointcloud.DepthCloud, *pointcloud.DepthCloud](PosterizeDepth(PosterizeConfig{Levels: 50})))
	test.That(t, err, test.ShouldBeNil)
	_, err = pipeline.Collect(seq)
	test.That(t, errors.Is(err, utils.ErrClustering), test.ShouldBeTrue)
}

func TestColorizeDepth(t *testing.T) {
	depth := rimage.NewArray(2, 2, 2, 1)
	for i := range depth.Data {
		depth.Data[i] = float64(10 * i)
	}
	c, err := ColorizeDepth(ColorizeConfig{Near: "#ff0000", Far: "#0000ff"})
	test.That(t, err, test.ShouldBeNil)

	seq, err := pipeline.Shift(context.Background(), pipeline.Of(depth),
		pipeline.Stage[*rimage.Array, *rimage.Array](c))
	test.That(t, err, test.ShouldBeNil)
	out, err := pipeline.Collect(seq)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldHaveLength, 1)
	test.That(t, out[0].ShapeString(), test.ShouldEqual, "(2, 2, 2, 3)")
	for b := 0; b < 2; b++ {
		test.That(t, out[0].At(b, 0, 0, 0), test.ShouldEqual, 255.0)
		test.That(t, out[0].At(b, 0, 0, 2), test.ShouldEqual, 0.0)
		test.That(t, out[0].At(b, 1, 1, 0), test.ShouldEqual, 0.0)
		test.That(t, out[0].At(b, 1, 1, 2), test.ShouldEqual, 255.0)
	}

	_, err = ColorizeDepth(ColorizeConfig{Far: "blue"})
	test.That(t, errors.Is(err, utils.ErrUsage), test.ShouldBeTrue)
	err = (&ColorizeConfig{Near: "#12"}).Validate("depth.colorize")
	test.That(t, err.Error(), test.ShouldContainSubstring, "depth.colorize.near")
}

func TestRegistry(t *testing.T) {
	test.That(t, Names(), test.ShouldResemble, []string{"interpolate", "posterize"})

	eff, err := Build("effects.0", "posterize", utils.AttributeMap{"levels": 2.0, "z_padding": 1.5}, nil)
	test.That(t, err, test.ShouldBeNil)
	p, ok := eff.(*Posterizer)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, p.levels, test.ShouldEqual, 2)
	test.That(t, p.padding, test.ShouldEqual, 1.5)

	eff, err = Build("effects.1", "interpolate",
		utils.AttributeMap{"step": "cosine", "t_start": 0, "t_stop": 1, "t_step": 0.5}, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, eff.Name(), test.ShouldEqual, "InterpolateClouds")

	_, err = Build("effects.1", "interpolate", utils.AttributeMap{"t_stop": 1}, nil)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "effects.1.attributes.t_step")

	_, err = Build("effects.0", "posterize", utils.AttributeMap{"levels": -1}, nil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "effects.0.attributes.levels")

	_, err = Build("effects.0", "posterize", utils.AttributeMap{"colours": 3}, nil)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "colours")

	_, err = Build("effects.2", "sparkle", nil, nil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "effects.2.type")

	_, ok = Lookup("sparkle")
	test.That(t, ok, test.ShouldBeFalse)

	test.That(t, func() {
		Register("posterize", Registration[*PosterizeConfig]{
			Constructor: func(conf *PosterizeConfig, logger logging.Logger) (CloudEffect, error) { return nil, nil },
		})
	}, test.ShouldPanic)
}
