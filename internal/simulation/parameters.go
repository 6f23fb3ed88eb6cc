// Package simulation replays dataset transactions against the inference path
// from concurrent generators for a bounded duration.
package simulation

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/tigerroll/fraudflow/pkg/fraud/core/config"
	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/configbinder"
	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/exception"
)

const moduleName = "simulation"

// Accepted input ranges.
const (
	MinDuration   = 300
	MaxDuration   = 900
	MinConcurrent = 1
	MaxConcurrent = 40
	MinInterval   = 1
	MaxInterval   = 60
)

// Parameters is the validated simulation input.
type Parameters struct {
	// Duration is how long each generator runs, in seconds.
	Duration   int `json:"duration"`
	Concurrent int `json:"concurrent"`
	// Interval is the pause between transactions, in milliseconds.
	Interval int `json:"interval"`
}

// BranchInput is handed to each generator.
type BranchInput struct {
	Duration int `json:"duration"`
	Interval int `json:"interval"`
}

type rawInput struct {
	Duration   *float64 `mapstructure:"duration"`
	Concurrent *float64 `mapstructure:"concurrent"`
	Interval   *float64 `mapstructure:"interval"`
}

// PrepareParameters validates input and converts the interval from seconds to
// milliseconds. Missing fields take the configured defaults.
func PrepareParameters(input interface{}, defaults *config.SimulationConfig) (*Parameters, error) {
	props, err := toProperties(input)
	if err != nil {
		return nil, err
	}
	var in rawInput
	if err := configbinder.BindStrict(props, &in, "mapstructure"); err != nil {
		return nil, exception.NewValidationError(moduleName, "simulation input must contain only numeric duration, concurrent and interval", err)
	}

	duration, err := bounded("duration", in.Duration, defaults.Duration, MinDuration, MaxDuration, "seconds")
	if err != nil {
		return nil, err
	}
	concurrent, err := bounded("concurrent", in.Concurrent, defaults.Concurrent, MinConcurrent, MaxConcurrent, "generators")
	if err != nil {
		return nil, err
	}
	interval, err := bounded("interval", in.Interval, defaults.Interval, MinInterval, MaxInterval, "seconds")
	if err != nil {
		return nil, err
	}
	return &Parameters{Duration: duration, Concurrent: concurrent, Interval: interval * 1000}, nil
}

func bounded(field string, v *float64, def, lo, hi int, unit string) (int, error) {
	if v == nil {
		return def, nil
	}
	if *v != math.Trunc(*v) || *v < float64(lo) || *v > float64(hi) {
		return 0, exception.NewValidationError(moduleName,
			fmt.Sprintf("%s must be an integer between %d and %d %s, got %v", field, lo, hi, unit, *v), nil)
	}
	return int(*v), nil
}

// Branches returns one generator input per concurrent generator.
func (p *Parameters) Branches() []interface{} {
	items := make([]interface{}, p.Concurrent)
	for i := range items {
		items[i] = BranchInput{Duration: p.Duration, Interval: p.Interval}
	}
	return items
}

func toProperties(input interface{}) (map[string]interface{}, error) {
	switch v := input.(type) {
	case nil:
		return map[string]interface{}{}, nil
	case map[string]interface{}:
		return v, nil
	}
	data, err := json.Marshal(input)
	if err != nil {
		return nil, exception.NewValidationError(moduleName, "simulation input is not serializable", err)
	}
	props := map[string]interface{}{}
	if err := json.Unmarshal(data, &props); err != nil {
		return nil, exception.NewValidationError(moduleName, "simulation input must be an object", err)
	}
	return props, nil
}
