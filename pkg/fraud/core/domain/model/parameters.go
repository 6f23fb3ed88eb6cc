package model

// Context keys written by the training pipeline.
const (
	ContextKeyInput                    = "input"
	ContextKeyParameters               = "parameters"
	ContextKeyIngestOutput             = "ingestOutput"
	ContextKeyCrawlOutput              = "crawlOutput"
	ContextKeyDataProcessOutput        = "dataProcessOutput"
	ContextKeyTrainingParametersOutput = "trainingParametersOutput"
	ContextKeyTrainingJobOutput        = "trainingJobOutput"
	ContextKeyLoadGraphOutput          = "loadGraphOutput"
	ContextKeyModelPackagingOutput     = "modelPackagingOutput"
	ContextKeyCreateModelOutput        = "createModelOutput"
	ContextKeyEndpointConfigOutput     = "endpointConfigOutput"
	ContextKeyCheckEndpointOutput      = "checkEndpointOutput"
	ContextKeyEndpointOutput           = "endpointOutput"
)

// TrainingJobParameters is the sizing and hyperparameter set for a training job.
type TrainingJobParameters struct {
	Hyperparameters  map[string]string `json:"hyperparameters"`
	InstanceType     string            `json:"instanceType"`
	InstanceCount    int               `json:"instanceCount"`
	TimeoutInSeconds int               `json:"timeoutInSeconds"`
}

// Parameters is the normalized training configuration, stored under "parameters".
type Parameters struct {
	TrainingJob TrainingJobParameters `json:"trainingJob"`
}

// DataProcessOutput is the ETL job's completion marker.
type DataProcessOutput struct {
	ID          string `json:"Id"`
	JobRunState string `json:"JobRunState"`
	// CompletedOn is the completion time in Unix milliseconds.
	CompletedOn int64 `json:"CompletedOn"`
}

// TrainingParametersOutput is the hyperparameter set augmented with data locations.
type TrainingParametersOutput struct {
	HyperParameters map[string]string `json:"hyperParameters"`
	InputDataURI    string            `json:"inputDataUri"`
}

// ModelArtifacts locates the trained model.
type ModelArtifacts struct {
	S3ModelArtifacts string `json:"S3ModelArtifacts"`
}

// TrainingJobOutput is the result of the training job.
type TrainingJobOutput struct {
	TrainingJobName string         `json:"TrainingJobName"`
	ModelArtifacts  ModelArtifacts `json:"ModelArtifacts"`
}

// ModelPackagingOutput is the result of the repackaging function.
type ModelPackagingOutput struct {
	RepackagedArtifact string `json:"RepackagedArtifact"`
}

// EndpointState is the freshly read existence flag of a serving endpoint.
type EndpointState struct {
	// Endpoint maps the endpoint name to whether it exists.
	Endpoint map[string]bool `json:"Endpoint"`
}
