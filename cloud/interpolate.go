package cloud

import (
	"context"
	"image/color"
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/floats"

	"go.viam.com/cloudmosh/logging"
	"go.viam.com/cloudmosh/pipeline"
	"go.viam.com/cloudmosh/pointcloud"
	"go.viam.com/cloudmosh/utils"
)

// StepFunc maps the interpolation parameter t to a blend weight, normally in [0, 1].
type StepFunc func(t float64) float64

// Linear is f(t) = t.
func Linear(t float64) float64 { return t }

// Smoothstep eases in and out: 3t² - 2t³ on t clamped to [0, 1].
func Smoothstep(t float64) float64 {
	t = utils.Clamp(t, 0, 1)
	return t * t * (3 - 2*t)
}

// Cosine eases in and out along half a cosine wave.
func Cosine(t float64) float64 {
	return (1 - math.Cos(math.Pi*t)) / 2
}

var stepFuncs = map[string]StepFunc{
	"linear":     Linear,
	"smoothstep": Smoothstep,
	"cosine":     Cosine,
}

// StepFuncByName returns one of the named step functions: linear, smoothstep or cosine.
func StepFuncByName(name string) (StepFunc, error) {
	f, ok := stepFuncs[name]
	if !ok {
		return nil, utils.NewUsageError("unknown step function %q", name)
	}
	return f, nil
}

// Interpolator is a transform that morphs between consecutive clouds.
type Interpolator struct {
	step                 StepFunc
	tStart, tStop, tStep float64
	logger               logging.Logger
}

// InterpolateClouds returns an interpolator emitting, for each adjacent pair of clouds (A, B),
// one blended cloud per t, starting at tStart and adding tStep while t <= tStop. tStep must be
// positive.
func InterpolateClouds(step StepFunc, tStart, tStop, tStep float64) (*Interpolator, error) {
	if step == nil {
		return nil, utils.NewUsageError("InterpolateClouds needs a step function")
	}
	if !(tStep > 0) || math.IsInf(tStep, 0) {
		return nil, utils.NewUsageError("InterpolateClouds needs a positive step size, got %v", tStep)
	}
	return &Interpolator{step: step, tStart: tStart, tStop: tStop, tStep: tStep}, nil
}

// WithLogger sets the logger used for per-pair diagnostics.
func (in *Interpolator) WithLogger(logger logging.Logger) *Interpolator {
	in.logger = logger
	return in
}

// Name returns "InterpolateClouds".
func (in *Interpolator) Name() string { return "InterpolateClouds" }

// Role is RoleTransform.
func (in *Interpolator) Role() pipeline.Role { return pipeline.RoleTransform }

// Times returns the t values visited for every pair. t accumulates tStep so the visited values
// and the tStop comparison match the running sum exactly.
func (in *Interpolator) Times() []float64 {
	var times []float64
	for t := in.tStart; t <= in.tStop; t += in.tStep {
		times = append(times, t)
		if t+in.tStep == t {
			break
		}
	}
	return times
}

// StepsPerPair is how many clouds are emitted for each adjacent pair.
func (in *Interpolator) StepsPerPair() int {
	return len(in.Times())
}

// Attach drains upstream and lazily yields the blended clouds.
func (in *Interpolator) Attach(
	ctx context.Context,
	upstream pipeline.Seq[*pointcloud.DepthCloud],
) (pipeline.Seq[*pointcloud.DepthCloud], error) {
	if upstream == nil {
		return nil, utils.NewMissingInputError(in.Name())
	}
	logger := logging.OrGlobal(in.logger)
	times := in.Times()
	return func(yield func(*pointcloud.DepthCloud, error) bool) {
		clouds, err := pipeline.Collect(upstream)
		if err != nil {
			yield(nil, err)
			return
		}
		for i := 0; i+1 < len(clouds); i++ {
			pair, err := newBlendPair(clouds[i], clouds[i+1])
			if err != nil {
				yield(nil, err)
				return
			}
			logger.CDebugw(ctx, "interpolating clouds", "pair", i, "steps", len(times))
			for _, t := range times {
				if err := ctx.Err(); err != nil {
					yield(nil, err)
					return
				}
				if !yield(pair.at(in.step(t)), nil) {
					return
				}
			}
		}
	}, nil
}

// blendPair holds two clouds flattened to coordinate and color vectors.
type blendPair struct {
	pointsA, pointsB []float64
	colorsA, colorsB []float64
}

func newBlendPair(a, b *pointcloud.DepthCloud) (*blendPair, error) {
	if !a.HasColor() || !b.HasColor() {
		return nil, utils.NewShapeError("can only interpolate colored clouds")
	}
	if a.Size() != b.Size() {
		return nil, utils.NewShapeError("cannot interpolate clouds of %d and %d points", a.Size(), b.Size())
	}
	pair := &blendPair{}
	pair.pointsA, pair.colorsA = flatten(a)
	pair.pointsB, pair.colorsB = flatten(b)
	return pair, nil
}

func flatten(cloud *pointcloud.DepthCloud) ([]float64, []float64) {
	points := make([]float64, 0, 3*cloud.Size())
	colors := make([]float64, 0, 3*cloud.Size())
	cloud.Iterate(func(_ int, p r3.Vector, c color.NRGBA, _ bool) bool {
		points = append(points, p.X, p.Y, p.Z)
		colors = append(colors, float64(c.R), float64(c.G), float64(c.B))
		return true
	})
	return points, colors
}

// at returns (1-ft)*A + ft*B on every coordinate and color channel. Colors are truncated.
func (bp *blendPair) at(ft float64) *pointcloud.DepthCloud {
	pts := make([]float64, len(bp.pointsA))
	floats.ScaleTo(pts, 1-ft, bp.pointsA)
	floats.AddScaled(pts, ft, bp.pointsB)

	cols := make([]float64, len(bp.colorsA))
	floats.ScaleTo(cols, 1-ft, bp.colorsA)
	floats.AddScaled(cols, ft, bp.colorsB)

	n := len(pts) / 3
	points := make([]r3.Vector, n)
	colors := make([]color.NRGBA, n)
	for i := 0; i < n; i++ {
		points[i] = r3.Vector{X: pts[3*i], Y: pts[3*i+1], Z: pts[3*i+2]}
		colors[i] = color.NRGBA{
			R: truncateChannel(cols[3*i]),
			G: truncateChannel(cols[3*i+1]),
			B: truncateChannel(cols[3*i+2]),
			A: 255,
		}
	}
	// Lengths match by construction.
	cloud, _ := pointcloud.New(points, colors)
	return cloud
}

func truncateChannel(v float64) uint8 {
	return uint8(utils.Clamp(math.Trunc(v), 0, 255))
}
