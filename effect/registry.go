package effect

import (
	"reflect"
	"sort"
	"sync"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"

	"go.viam.com/cloudmosh/cloud"
	"go.viam.com/cloudmosh/logging"
	"go.viam.com/cloudmosh/pipeline"
	"go.viam.com/cloudmosh/pointcloud"
	"go.viam.com/cloudmosh/utils"
)

// CloudEffect is any stage that maps clouds to clouds.
type CloudEffect = pipeline.Stage[*pointcloud.DepthCloud, *pointcloud.DepthCloud]

// A ConfigValidator is an attribute struct that can check itself. path names the config field
// the attributes were read from and prefixes every error.
type ConfigValidator interface {
	Validate(path string) error
}

// A Create builds an effect from its decoded attributes.
type Create[ConfigT ConfigValidator] func(conf ConfigT, logger logging.Logger) (CloudEffect, error)

// A Registration stores how to build one kind of effect.
type Registration[ConfigT ConfigValidator] struct {
	Constructor Create[ConfigT]
}

// A Creator decodes, validates and builds an effect from raw attributes.
type Creator func(path string, attributes utils.AttributeMap, logger logging.Logger) (CloudEffect, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Creator{}
)

// Register registers an effect type under name. Registering the same name twice panics.
func Register[ConfigT ConfigValidator](name string, reg Registration[ConfigT]) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, old := registry[name]; old {
		panic(errors.Errorf("trying to register two effects with the same name %q", name))
	}
	if reg.Constructor == nil {
		panic(errors.Errorf("cannot register a nil constructor for effect %q", name))
	}
	registry[name] = func(path string, attributes utils.AttributeMap, logger logging.Logger) (CloudEffect, error) {
		conf, err := TransformAttributeMap[ConfigT](attributes)
		if err != nil {
			return nil, errors.Wrapf(err, "%s", fieldPath(path, "attributes"))
		}
		if err := conf.Validate(fieldPath(path, "attributes")); err != nil {
			return nil, err
		}
		return reg.Constructor(conf, logger)
	}
}

// Lookup returns the creator registered under name, if any.
func Lookup(name string) (Creator, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	creator, ok := registry[name]
	return creator, ok
}

// Names returns the registered effect names in sorted order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build looks up and builds the effect named kind.
func Build(path, kind string, attributes utils.AttributeMap, logger logging.Logger) (CloudEffect, error) {
	creator, ok := Lookup(kind)
	if !ok {
		return nil, errors.Errorf("%s: unknown effect type %q, expected one of %v", fieldPath(path, "type"), kind, Names())
	}
	return creator(path, attributes, logger)
}

// TransformAttributeMap decodes attributes into T using the `json` field tags. Unknown
// attributes are an error. T is usually a pointer to a struct.
func TransformAttributeMap[T any](attributes utils.AttributeMap) (T, error) {
	var out T

	var forResult interface{}
	toT := reflect.TypeOf(out)
	if toT != nil && toT.Kind() == reflect.Ptr {
		var ok bool
		out, ok = reflect.New(toT.Elem()).Interface().(T)
		if !ok {
			return out, errors.Errorf("failed to allocate config type %T", out)
		}
		forResult = out
	} else {
		forResult = &out
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           forResult,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return out, err
	}
	if err := decoder.Decode(map[string]interface{}(attributes)); err != nil {
		return out, err
	}
	return out, nil
}

// InterpolateConfig configures an interpolation effect.
type InterpolateConfig struct {
	Step   string  `json:"step,omitempty"`
	TStart float64 `json:"t_start"`
	TStop  float64 `json:"t_stop"`
	TStep  float64 `json:"t_step"`
}

// Validate ensures all parts of the config are valid.
func (cfg *InterpolateConfig) Validate(path string) error {
	if cfg.Step != "" {
		if _, err := cloud.StepFuncByName(cfg.Step); err != nil {
			return errors.Wrapf(err, "%s", fieldPath(path, "step"))
		}
	}
	if !(cfg.TStep > 0) {
		return errors.Errorf("%s: must be positive, got %v", fieldPath(path, "t_step"), cfg.TStep)
	}
	return nil
}

func init() {
	Register("posterize", Registration[*PosterizeConfig]{
		Constructor: func(conf *PosterizeConfig, logger logging.Logger) (CloudEffect, error) {
			return PosterizeDepth(*conf).WithLogger(logger), nil
		},
	})
	Register("interpolate", Registration[*InterpolateConfig]{
		Constructor: func(conf *InterpolateConfig, logger logging.Logger) (CloudEffect, error) {
			var step cloud.StepFunc = cloud.Linear
			if conf.Step != "" {
				var err error
				if step, err = cloud.StepFuncByName(conf.Step); err != nil {
					return nil, err
				}
			}
			in, err := cloud.InterpolateClouds(step, conf.TStart, conf.TStop, conf.TStep)
			if err != nil {
				return nil, err
			}
			return in.WithLogger(logger), nil
		},
	})
}
