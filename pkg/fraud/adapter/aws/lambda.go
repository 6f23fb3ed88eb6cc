package aws

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"

	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/exception"
)

// functionError is the payload a function returns when it raises.
type functionError struct {
	ErrorType    string `json:"errorType"`
	ErrorMessage string `json:"errorMessage"`
}

// FunctionInvoker calls remote functions with request/response semantics.
type FunctionInvoker struct {
	api LambdaAPI
}

// NewFunctionInvoker creates a FunctionInvoker.
func NewFunctionInvoker(api LambdaAPI) *FunctionInvoker {
	return &FunctionInvoker{api: api}
}

// Invoke sends payload as JSON and decodes the response into out when out is non-nil.
// A function-raised error is reported under its error type when that is a
// known transient kind, and as exception.ErrTaskFailed otherwise.
func (f *FunctionInvoker) Invoke(ctx context.Context, functionName string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return exception.NewValidationError("lambda", fmt.Sprintf("failed to encode payload for '%s'", functionName), err)
	}

	resp, err := f.api.Invoke(ctx, &lambda.InvokeInput{
		FunctionName:   aws.String(functionName),
		InvocationType: lambdatypes.InvocationTypeRequestResponse,
		Payload:        body,
	})
	if err != nil {
		return exception.NewFlowErrorf("lambda", "failed to invoke '%s'", functionName, Classify(err))
	}

	if resp.FunctionError != nil {
		var fe functionError
		if err := json.Unmarshal(resp.Payload, &fe); err != nil || fe.ErrorMessage == "" {
			fe.ErrorMessage = string(resp.Payload)
		}
		kind, ok := apiErrorKinds[fe.ErrorType]
		if !ok {
			kind = exception.ErrTaskFailed
		}
		return exception.NewFlowErrorf("lambda", "function '%s' raised %s (%s): %s",
			functionName, fe.ErrorType, aws.ToString(resp.FunctionError), fe.ErrorMessage, kind)
	}

	if out == nil || len(resp.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Payload, out); err != nil {
		return exception.NewFlowErrorf("lambda", "failed to decode response of '%s'", functionName, err)
	}
	return nil
}
