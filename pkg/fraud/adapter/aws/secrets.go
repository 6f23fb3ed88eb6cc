package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/exception"
)

// SecretReader reads secret strings.
type SecretReader struct {
	api SecretsAPI
}

// NewSecretReader creates a SecretReader.
func NewSecretReader(api SecretsAPI) *SecretReader {
	return &SecretReader{api: api}
}

// GetSecretString returns the string value of secretID.
func (r *SecretReader) GetSecretString(ctx context.Context, secretID string) (string, error) {
	out, err := r.api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: aws.String(secretID)})
	if err != nil {
		return "", exception.NewFlowErrorf("secretsmanager", "failed to read secret '%s'", secretID, Classify(err))
	}
	if out.SecretString == nil {
		return "", exception.NewFlowErrorf("secretsmanager", "secret '%s' has no string value", secretID)
	}
	return *out.SecretString, nil
}
