package training

import (
	"net/url"

	"github.com/tigerroll/fraudflow/pkg/fraud/core/domain/model"
	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/exception"
)

// dataLocations are the ETL output globs the training script reads.
var dataLocations = map[string]string{
	"edges":       "relation_*_edgelist/*",
	"labels":      "tags/*",
	"nodes":       "features/*",
	"new-account": "test/*",
}

// BuildHyperparameters returns a copy of the normalized hyperparameters with the
// ETL output locations added, and the input data URI <inputDataRoot>/<run id>
// resolved as a URL reference. params is not modified.
func BuildHyperparameters(params *model.Parameters, processed *model.DataProcessOutput, inputDataRoot string) (*model.TrainingParametersOutput, error) {
	if params == nil || params.TrainingJob.Hyperparameters == nil {
		return nil, exception.NewFlowErrorf("hyperparameters", "normalized hyperparameters are missing", exception.ErrTaskFailed)
	}
	if processed == nil || processed.ID == "" {
		return nil, exception.NewFlowErrorf("hyperparameters", "data process output has no job run id", exception.ErrTaskFailed)
	}
	if inputDataRoot == "" {
		return nil, exception.NewValidationError("hyperparameters", "input data root is not configured", nil)
	}

	base, err := url.Parse(inputDataRoot)
	if err != nil {
		return nil, exception.NewValidationError("hyperparameters", "malformed input data root", err)
	}
	ref, err := url.Parse(processed.ID)
	if err != nil {
		return nil, exception.NewValidationError("hyperparameters", "malformed job run id", err)
	}

	hp := make(map[string]string, len(params.TrainingJob.Hyperparameters)+len(dataLocations))
	for k, v := range params.TrainingJob.Hyperparameters {
		hp[k] = v
	}
	for k, v := range dataLocations {
		hp[k] = v
	}
	return &model.TrainingParametersOutput{
		HyperParameters: hp,
		InputDataURI:    base.ResolveReference(ref).String(),
	}, nil
}
