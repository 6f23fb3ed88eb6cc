package training

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/exception"
)

func TestNormalize_Defaults(t *testing.T) {
	params, err := Normalize(nil)
	require.NoError(t, err)

	tj := params.TrainingJob
	assert.Equal(t, DefaultHyperparameters(), tj.Hyperparameters)
	assert.Equal(t, "ml.c5.4xlarge", tj.InstanceType)
	assert.Equal(t, 1, tj.InstanceCount)
	assert.Equal(t, 5400, tj.TimeoutInSeconds)

	params, err = Normalize(map[string]interface{}{"trainingJob": map[string]interface{}{}})
	require.NoError(t, err)
	assert.Len(t, params.TrainingJob.Hyperparameters, 8)
}

func TestNormalize_OverridesAndExtraKeys(t *testing.T) {
	input := map[string]interface{}{
		"trainingJob": map[string]interface{}{
			"hyperparameters": map[string]interface{}{
				"n-epochs": "100",
				"lr":       "4e-3",
				"n-hidden": "32",
			},
			"instanceType":     "ml.m5.xlarge",
			"instanceCount":    float64(2),
			"timeoutInSeconds": float64(7200),
		},
	}
	params, err := Normalize(input)
	require.NoError(t, err)

	hp := params.TrainingJob.Hyperparameters
	assert.Equal(t, "100", hp["n-epochs"])
	assert.Equal(t, "4e-3", hp["lr"])
	assert.Equal(t, "32", hp["n-hidden"])
	assert.Equal(t, "adam", hp["optimizer"])
	assert.Len(t, hp, 9)
	assert.Equal(t, "ml.m5.xlarge", params.TrainingJob.InstanceType)
	assert.Equal(t, 2, params.TrainingJob.InstanceCount)
	assert.Equal(t, 7200, params.TrainingJob.TimeoutInSeconds)
}

func TestNormalize_TypedInput(t *testing.T) {
	type trainingJob struct {
		InstanceCount int `json:"instanceCount"`
	}
	params, err := Normalize(struct {
		TrainingJob trainingJob `json:"trainingJob"`
	}{trainingJob{InstanceCount: 3}})
	require.NoError(t, err)
	assert.Equal(t, 3, params.TrainingJob.InstanceCount)
}

func TestNormalize_Malformed(t *testing.T) {
	cases := map[string]interface{}{
		"non-string hyperparameter": map[string]interface{}{
			"trainingJob": map[string]interface{}{"hyperparameters": map[string]interface{}{"n-epochs": float64(10)}},
		},
		"fractional count": map[string]interface{}{
			"trainingJob": map[string]interface{}{"instanceCount": 1.5},
		},
		"string count": map[string]interface{}{
			"trainingJob": map[string]interface{}{"instanceCount": "2"},
		},
		"zero timeout": map[string]interface{}{
			"trainingJob": map[string]interface{}{"timeoutInSeconds": float64(0)},
		},
		"unknown field": map[string]interface{}{
			"trainingjob": map[string]interface{}{},
		},
		"not an object": []string{"a"},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Normalize(input)
			require.Error(t, err)
			assert.ErrorIs(t, err, exception.ErrValidation)
		})
	}
}
