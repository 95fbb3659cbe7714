package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"go.viam.com/test"

	"go.viam.com/cloudmosh/depth"
	"go.viam.com/cloudmosh/logging"
	"go.viam.com/cloudmosh/pointcloud"
	"go.viam.com/cloudmosh/utils"
)

const fullConfig = `{
  "inputs": ["a.png", "b.png"],
  "model": {"path": "${CLOUDMOSH_TEST_MODEL}", "command": ["python3", "worker.py"], "min_depth": 5,
            "max_depth": 500, "batch_size": 4},
  "effects": [{"type": "posterize", "attributes": {"levels": 3, "z_padding": 10}},
              {"type": "interpolate", "attributes": {"step": "smoothstep", "t_start": 0,
               "t_stop": 1, "t_step": 0.1}}],
  "render": {"width": 320, "height": 240, "point_size": 3, "camera": "fixed",
             "pose": [[1, 0, 0, 1], [0, 1, 0, 2], [0, 0, 1, 3], [0, 0, 0, 1]]},
  "outputs": ["out.gif"],
  "log": {"level": "debug"}
}`

func TestRead(t *testing.T) {
	t.Setenv("CLOUDMOSH_TEST_MODEL", "/models/nyu.h5")
	path := filepath.Join(t.TempDir(), "run.json")
	test.That(t, os.WriteFile(path, []byte(fullConfig), 0o600), test.ShouldBeNil)

	cfg, err := Read(context.Background(), path, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.ConfigFilePath, test.ShouldEqual, path)
	test.That(t, cfg.Inputs, test.ShouldResemble, []string{"a.png", "b.png"})
	test.That(t, cfg.Model.Path, test.ShouldEqual, "/models/nyu.h5")
	test.That(t, cfg.Model.Command, test.ShouldResemble, []string{"python3", "worker.py"})
	minDepth := 5.0
	test.That(t, cfg.Model.Config, test.ShouldResemble, depth.Config{MinDepth: &minDepth, MaxDepth: 500, BatchSize: 4})
	test.That(t, cfg.Effects, test.ShouldHaveLength, 2)
	test.That(t, cfg.Effects[0].Attributes, test.ShouldResemble, utils.AttributeMap{"levels": 3.0, "z_padding": 10.0})
	test.That(t, cfg.Render.Width, test.ShouldEqual, 320)
	test.That(t, cfg.Log.Level, test.ShouldEqual, "debug")

	kind, err := cfg.OutputKind()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, kind, test.ShouldEqual, OutputGIF)

	pose, err := cfg.Render.PoseMatrix()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, *pose, test.ShouldResemble, mgl64.Translate3D(1, 2, 3))

	effects, err := cfg.BuildEffects(nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, effects, test.ShouldHaveLength, 2)
	test.That(t, effects[0].Name(), test.ShouldEqual, "PosterizeDepth")
	test.That(t, effects[1].Name(), test.ShouldEqual, "InterpolateClouds")

	_, err = Read(context.Background(), filepath.Join(t.TempDir(), "missing.json"), nil)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestDepthInputsOnly(t *testing.T) {
	cfg, err := FromReader(context.Background(), "inline",
		strings.NewReader(`{"depth_inputs": ["d.png"], "outputs": ["cloud.pcd"]}`), nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.Model, test.ShouldBeNil)
	kind, err := cfg.OutputKind()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, kind, test.ShouldEqual, OutputClouds)

	pose, err := cfg.Render.PoseMatrix()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pose, test.ShouldBeNil)
}

func TestValidationErrors(t *testing.T) {
	for _, tc := range []struct {
		name   string
		config string
		want   []string
	}{
		{"no inputs", `{"outputs": ["o.png"]}`, []string{"depth_inputs"}},
		{"no model", `{"inputs": ["a.png"], "outputs": ["o.png"]}`, []string{"model"}},
		{"model path", `{"inputs": ["a.png"], "model": {}, "outputs": ["o.png"]}`, []string{"model", "path"}},
		{
			"model depths", `{"inputs": ["a.png"], "model": {"path": "m", "min_depth": 50, "max_depth": 5},
			"outputs": ["o.png"]}`,
			[]string{"model", "min_depth"},
		},
		{
			"color count", `{"inputs": ["a.png"], "depth_inputs": ["d.png", "e.png"], "outputs": ["o.png"]}`,
			[]string{"inputs", "depth_inputs"},
		},
		{"no outputs", `{"depth_inputs": ["d.png"]}`, []string{"outputs"}},
		{"mixed outputs", `{"depth_inputs": ["d.png"], "outputs": ["o.png", "c.pcd"]}`, []string{"outputs.1", ".pcd"}},
		{"video output", `{"depth_inputs": ["d.png"], "outputs": ["o.mp4"]}`, []string{"outputs.0", "o.mp4"}},
		{
			"effect type", `{"depth_inputs": ["d.png"], "outputs": ["o.png"], "effects": [{"attributes": {}}]}`,
			[]string{"effects.0", "type"},
		},
		{
			"effect attributes", `{"depth_inputs": ["d.png"], "outputs": ["o.png"],
			"effects": [{"type": "posterize", "attributes": {"levels": 2}}, {"type": "interpolate", "attributes": {"t_step": -1}}]}`,
			[]string{"effects.1.attributes.t_step"},
		},
		{
			"unknown effect", `{"depth_inputs": ["d.png"], "outputs": ["o.png"], "effects": [{"type": "glitter"}]}`,
			[]string{"effects.0.type", "glitter"},
		},
		{"camera", `{"depth_inputs": ["d.png"], "outputs": ["o.png"], "render": {"camera": "orbit"}}`, []string{"render", "orbit"}},
		{
			"pose", `{"depth_inputs": ["d.png"], "outputs": ["o.png"], "render": {"pose": [[1, 0, 0, 0]]}}`,
			[]string{"render", "4 rows"},
		},
		{"log level", `{"depth_inputs": ["d.png"], "outputs": ["o.png"], "log": {"level": "loud"}}`, []string{"log"}},
		{"pcd format", `{"depth_inputs": ["d.png"], "outputs": ["o.pcd"], "pcd_format": "zip"}`, []string{"pcd_format", "zip"}},
		{"unknown field", `{"depth_inputs": ["d.png"], "outputs": ["o.png"], "colour": true}`, []string{"colour"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := FromReader(context.Background(), "inline", strings.NewReader(tc.config), nil)
			test.That(t, err, test.ShouldNotBeNil)
			for _, want := range tc.want {
				test.That(t, err.Error(), test.ShouldContainSubstring, want)
			}
		})
	}
}

func TestAnimatedInputsAndPCDFormat(t *testing.T) {
	cfg, err := FromReader(context.Background(), "inline", strings.NewReader(
		`{"inputs": ["clip.gif"], "depth_inputs": ["d0.png", "d1.png", "d2.png"], "outputs": ["o.pcd"],
		"pcd_format": "ascii"}`), nil)
	test.That(t, err, test.ShouldBeNil)
	pcdType, err := cfg.PCDType()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pcdType, test.ShouldEqual, pointcloud.PCDAscii)

	cfg, err = FromReader(context.Background(), "inline", strings.NewReader(
		`{"inputs": ["a.png", "b.png"], "depth_inputs": ["walk.mp4"], "outputs": ["o.gif"]}`), nil)
	test.That(t, err, test.ShouldBeNil)
	pcdType, err = cfg.PCDType()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pcdType, test.ShouldEqual, pointcloud.PCDBinary)
}
