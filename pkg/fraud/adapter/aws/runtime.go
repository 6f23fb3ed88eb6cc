package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sagemakerruntime"

	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/exception"
)

// EndpointInvoker posts payloads to a serving endpoint.
type EndpointInvoker struct {
	api         RuntimeAPI
	contentType string
}

// NewEndpointInvoker creates an EndpointInvoker sending contentType bodies.
func NewEndpointInvoker(api RuntimeAPI, contentType string) *EndpointInvoker {
	return &EndpointInvoker{api: api, contentType: contentType}
}

// Invoke sends body to endpointName and returns the raw response body.
func (e *EndpointInvoker) Invoke(ctx context.Context, endpointName string, body []byte) ([]byte, error) {
	out, err := e.api.InvokeEndpoint(ctx, &sagemakerruntime.InvokeEndpointInput{
		EndpointName: aws.String(endpointName),
		ContentType:  aws.String(e.contentType),
		Accept:       aws.String(e.contentType),
		Body:         body,
	})
	if err != nil {
		return nil, exception.NewFlowErrorf("sagemakerruntime", "failed to invoke endpoint '%s'", endpointName, Classify(err))
	}
	return out.Body, nil
}
