// Package training builds and runs the model training and deployment pipeline.
package training

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/tigerroll/fraudflow/pkg/fraud/core/domain/model"
	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/configbinder"
	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/exception"
)

// Defaults applied by Normalize.
const (
	DefaultInstanceType     = "ml.c5.4xlarge"
	DefaultInstanceCount    = 1
	DefaultTimeoutInSeconds = 90 * 60
)

// DefaultHyperparameters returns a fresh copy of the default hyperparameters.
func DefaultHyperparameters() map[string]string {
	return map[string]string{
		"nodes":          "features.csv",
		"edges":          "relation*",
		"labels":         "tags.csv",
		"embedding-size": "64",
		"n-layers":       "2",
		"n-epochs":       "10",
		"optimizer":      "adam",
		"lr":             "1e-2",
	}
}

type trainingJobInput struct {
	Hyperparameters  map[string]string `mapstructure:"hyperparameters"`
	InstanceType     string            `mapstructure:"instanceType"`
	InstanceCount    *float64          `mapstructure:"instanceCount"`
	TimeoutInSeconds *float64          `mapstructure:"timeoutInSeconds"`
}

type normalizeInput struct {
	TrainingJob *trainingJobInput `mapstructure:"trainingJob"`
}

// Normalize fills the defaults into a partial pipeline input. input may be nil,
// a generic map or any value with the same JSON shape. Caller values and extra
// hyperparameter keys are kept. Malformed input fails with a validation error.
func Normalize(input interface{}) (*model.Parameters, error) {
	props, err := toProperties(input)
	if err != nil {
		return nil, err
	}

	var in normalizeInput
	if err := configbinder.BindStrict(props, &in, "mapstructure"); err != nil {
		return nil, exception.NewValidationError("normalizer", "malformed pipeline input", err)
	}

	hp := DefaultHyperparameters()
	tj := model.TrainingJobParameters{
		InstanceType:     DefaultInstanceType,
		InstanceCount:    DefaultInstanceCount,
		TimeoutInSeconds: DefaultTimeoutInSeconds,
	}
	if in.TrainingJob != nil {
		for k, v := range in.TrainingJob.Hyperparameters {
			hp[k] = v
		}
		if in.TrainingJob.InstanceType != "" {
			tj.InstanceType = in.TrainingJob.InstanceType
		}
		if in.TrainingJob.InstanceCount != nil {
			if tj.InstanceCount, err = positiveInt("instanceCount", *in.TrainingJob.InstanceCount); err != nil {
				return nil, err
			}
		}
		if in.TrainingJob.TimeoutInSeconds != nil {
			if tj.TimeoutInSeconds, err = positiveInt("timeoutInSeconds", *in.TrainingJob.TimeoutInSeconds); err != nil {
				return nil, err
			}
		}
	}
	tj.Hyperparameters = hp
	return &model.Parameters{TrainingJob: tj}, nil
}

func positiveInt(field string, v float64) (int, error) {
	if v != math.Trunc(v) || v < 1 {
		return 0, exception.NewValidationError("normalizer", fmt.Sprintf("%s must be a positive integer, got %v", field, v), nil)
	}
	return int(v), nil
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
		return nil, exception.NewValidationError("normalizer", "pipeline input is not serializable", err)
	}
	var props map[string]interface{}
	if err := json.Unmarshal(data, &props); err != nil {
		return nil, exception.NewValidationError("normalizer", "pipeline input must be an object", err)
	}
	if props == nil {
		props = map[string]interface{}{}
	}
	return props, nil
}
