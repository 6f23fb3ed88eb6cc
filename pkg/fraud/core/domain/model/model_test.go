package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/exception"
)

func TestRunContext_PutIsWriteOnce(t *testing.T) {
	rc := NewRunContext()
	require.NoError(t, rc.Put("parameters", Parameters{}))

	err := rc.Put("parameters", "other")
	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrContextKeyExists))
	assert.IsType(t, Parameters{}, rc["parameters"])
}

func TestRunContext_DecodeTypedAndGeneric(t *testing.T) {
	rc := NewRunContext()
	require.NoError(t, rc.Put(ContextKeyDataProcessOutput, DataProcessOutput{ID: "jr_1", CompletedOn: 1700000000000}))
	require.NoError(t, rc.Put(ContextKeyTrainingJobOutput, map[string]interface{}{
		"TrainingJobName": "job",
		"ModelArtifacts":  map[string]interface{}{"S3ModelArtifacts": "s3://b/model.tar.gz"},
	}))

	var dp DataProcessOutput
	require.NoError(t, rc.Decode(ContextKeyDataProcessOutput, &dp))
	assert.Equal(t, "jr_1", dp.ID)
	assert.EqualValues(t, 1700000000000, dp.CompletedOn)

	var tj TrainingJobOutput
	require.NoError(t, rc.Decode(ContextKeyTrainingJobOutput, &tj))
	assert.Equal(t, "s3://b/model.tar.gz", tj.ModelArtifacts.S3ModelArtifacts)

	assert.Error(t, rc.Decode("missing", &tj))
}

func TestRunContext_GetNested(t *testing.T) {
	rc := NewRunContext()
	require.NoError(t, rc.Put(ContextKeyCheckEndpointOutput, EndpointState{Endpoint: map[string]bool{"frauddetection": true}}))

	v, ok := rc.GetNested("checkEndpointOutput.Endpoint.frauddetection")
	require.True(t, ok)
	assert.Equal(t, true, v)

	_, ok = rc.GetNested("checkEndpointOutput.Endpoint.other")
	assert.False(t, ok)
}

func TestRunContext_ValueScanRoundTrip(t *testing.T) {
	rc := NewRunContext()
	require.NoError(t, rc.Put("a", 1))
	v, err := rc.Value()
	require.NoError(t, err)

	var scanned RunContext
	require.NoError(t, scanned.Scan(v))
	assert.EqualValues(t, 1, scanned["a"])
	assert.Error(t, scanned.Scan(42))
}

func TestPipelineRun_Lifecycle(t *testing.T) {
	run := NewPipelineRun("training", map[string]interface{}{"trainingJob": map[string]interface{}{}})
	assert.Equal(t, StatusStarting, run.Status)
	assert.True(t, run.Context.Has(ContextKeyInput))

	run.MarkAsStarted()
	run.MarkAsFailed(NewErrorRecord("DataProcess", fmt.Errorf("glue: %w", exception.ErrStepTimeout), true))
	assert.Equal(t, StatusFailed, run.Status)
	assert.Equal(t, "States.Timeout", run.Error.Error)
	assert.True(t, run.Error.Caught)
	assert.NotNil(t, run.EndTime)

	child := NewChildRun(run, 3, nil)
	assert.Equal(t, run.ID+"/branch-3", child.ID)
	assert.Equal(t, run.ID, child.ParentID)
}

func TestTransaction_UnmarshalJSON(t *testing.T) {
	var tx Transaction
	require.NoError(t, json.Unmarshal([]byte(`{"id": 3663549, "amount": 12.5, "pEmaildomain": "gmail.com", "rEmaildomain": "yahoo.com"}`), &tx))
	assert.Equal(t, "3663549", tx.ID)
	assert.Equal(t, 12.5, tx.Amount)
	assert.Equal(t, "gmail.com", tx.PEmailDomain)
	assert.Equal(t, "yahoo.com", tx.REmailDomain)

	tx = Transaction{}
	require.NoError(t, json.Unmarshal([]byte(`{"id": "c0ffee", "isFraud": true}`), &tx))
	assert.Equal(t, "c0ffee", tx.ID)
	assert.True(t, tx.IsFraud)

	tx = Transaction{}
	require.NoError(t, json.Unmarshal([]byte(`{"TransactionID": 2987000, "P_emaildomain": "anonymous.com"}`), &tx))
	assert.Equal(t, "2987000", tx.ID)
	assert.Equal(t, "anonymous.com", tx.PEmailDomain)

	assert.Error(t, json.Unmarshal([]byte(`{"id": true}`), &Transaction{}))
}

func TestTransaction_MarshalJSONUsesQueueFieldNames(t *testing.T) {
	out, err := json.Marshal(Transaction{ID: "1", PEmailDomain: "gmail.com", REmailDomain: "yahoo.com"})
	require.NoError(t, err)
	assert.Contains(t, string(out), `"pEmaildomain":"gmail.com"`)
	assert.Contains(t, string(out), `"rEmaildomain":"yahoo.com"`)
	assert.NotContains(t, string(out), "P_emaildomain")
}
