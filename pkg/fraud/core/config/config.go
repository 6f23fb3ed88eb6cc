package config

// EmbeddedConfig holds the content of the configuration file, typically passed from main.go.
type EmbeddedConfig []byte

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the logging level (e.g., "INFO", "DEBUG").
	Level string `yaml:"level"`
}

// SystemConfig holds system-wide settings.
type SystemConfig struct {
	Timezone string        `yaml:"timezone"`
	Logging  LoggingConfig `yaml:"logging"`
}

// RetryConfig configures the automatic retry applied to request/response steps.
type RetryConfig struct {
	MaxAttempts         int      `yaml:"max_attempts"`         // Total attempts including the first one.
	InitialInterval     int      `yaml:"initial_interval"`     // Initial backoff interval in milliseconds.
	MaxInterval         int      `yaml:"max_interval"`         // Upper bound for a single backoff interval in milliseconds.
	Factor              float64  `yaml:"factor"`               // Backoff multiplier.
	RetryableExceptions []string `yaml:"retryable_exceptions"` // Registered error names that trigger a retry.
}

// TimeoutsConfig holds per-state timeouts in seconds.
// The training step is bounded by the run's own Parameters timeout instead.
type TimeoutsConfig struct {
	ParametersNormalize  int `yaml:"parameters_normalize"`
	DataIngest           int `yaml:"data_ingest"`
	DataCatalogCrawl     int `yaml:"data_catalog_crawl"`
	DataProcess          int `yaml:"data_process"`
	BuildHyperparameters int `yaml:"build_hyperparameters"`
	LoadGraphData        int `yaml:"load_graph_data"`
	RepackageModel       int `yaml:"repackage_model"`
	CheckEndpoint        int `yaml:"check_endpoint"`
	Lifecycle            int `yaml:"lifecycle"` // CreateModel, CreateEndpointConfig, CreateEndpoint, UpdateEndpoint.
}

// ServerlessConfig switches the endpoint configuration to serverless inference.
type ServerlessConfig struct {
	Enabled        bool `yaml:"enabled"`
	MemorySizeInMB int  `yaml:"memory_size_in_mb"`
	MaxConcurrency int  `yaml:"max_concurrency"`
}

// PipelineConfig configures the training pipeline.
type PipelineConfig struct {
	Name            string `yaml:"name"`
	DataPrefix      string `yaml:"data_prefix"`       // Root of the raw and processed data, e.g. s3://bucket/fraud-detection/.
	InputDataRoot   string `yaml:"input_data_root"`   // Root under which the ETL job writes its output, keyed by job run id.
	ModelOutputRoot string `yaml:"model_output_root"` // Output path for training artifacts.
	EndpointName    string `yaml:"endpoint_name"`
	// CatchCreateModel attaches the catch-all failure rule to CreateModel as well.
	CatchCreateModel         bool             `yaml:"catch_create_model"`
	CrawlPollIntervalSeconds int              `yaml:"crawl_poll_interval_seconds"`
	JobPollIntervalSeconds   int              `yaml:"job_poll_interval_seconds"`
	Serverless               ServerlessConfig `yaml:"serverless"`
	Timeouts                 TimeoutsConfig   `yaml:"timeouts"`
	Retry                    RetryConfig      `yaml:"retry"`
}

// CredentialsConfig holds optional static AWS credentials.
// When AccessKeyID is empty the default credential chain is used.
type CredentialsConfig struct {
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token"`
}

// FunctionsConfig names remote functions. An empty name selects the in-process implementation.
type FunctionsConfig struct {
	DataIngest     string `yaml:"data_ingest"`
	RepackageModel string `yaml:"repackage_model"`
	Inference      string `yaml:"inference"` // Scores simulated transactions.
}

// GlueConfig names the crawler and ETL job.
type GlueConfig struct {
	CrawlerName string `yaml:"crawler_name"`
	JobName     string `yaml:"job_name"`
}

// TrainingConfig configures the managed training job.
type TrainingConfig struct {
	Image        string `yaml:"image"`
	RoleArn      string `yaml:"role_arn"`
	VolumeSizeGB int    `yaml:"volume_size_gb"`
}

// HostingConfig configures the model and endpoint resources.
type HostingConfig struct {
	Image                string `yaml:"image"`
	RoleArn              string `yaml:"role_arn"`
	InstanceType         string `yaml:"instance_type"`
	VariantName          string `yaml:"variant_name"`
	InitialInstanceCount int    `yaml:"initial_instance_count"`
	EntryPoint           string `yaml:"entry_point"`
}

// LoadGraphConfig configures the containerized bulk-load task.
type LoadGraphConfig struct {
	Cluster           string   `yaml:"cluster"`
	TaskDefinition    string   `yaml:"task_definition"`
	ContainerName     string   `yaml:"container_name"`
	Subnets           []string `yaml:"subnets"`
	SecurityGroups    []string `yaml:"security_groups"`
	TempFolder        string   `yaml:"temp_folder"`
	NeptuneIAMRoleArn string   `yaml:"neptune_iam_role_arn"`
}

// ServicesConfig configures the external managed services.
type ServicesConfig struct {
	Region      string            `yaml:"region"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Functions   FunctionsConfig   `yaml:"functions"`
	Glue        GlueConfig        `yaml:"glue"`
	Training    TrainingConfig    `yaml:"training"`
	Hosting     HostingConfig     `yaml:"hosting"`
	LoadGraph   LoadGraphConfig   `yaml:"load_graph"`
}

// GraphConfig locates the graph store.
type GraphConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Protocol string `yaml:"protocol"` // "wss" or "ws".
	// MaxNeighbors caps the vertices fetched per entity when building the scoring neighborhood.
	MaxNeighbors int `yaml:"max_neighbors"`
}

// QueueConfig configures the transaction persistence queue.
type QueueConfig struct {
	URL               string `yaml:"url"`
	MessageGroupID    string `yaml:"message_group_id"`
	MaxMessages       int    `yaml:"max_messages"`
	WaitTimeSeconds   int    `yaml:"wait_time_seconds"`
	VisibilityTimeout int    `yaml:"visibility_timeout"`
}

// DocumentDBConfig configures the transaction document store.
type DocumentDBConfig struct {
	// URI is used as-is when set; otherwise it is built from the secret named by SecretID.
	URI                   string `yaml:"uri"`
	SecretID              string `yaml:"secret_id"`
	Database              string `yaml:"database"`
	Collection            string `yaml:"collection"`
	ReplicaSet            string `yaml:"replica_set"`
	TLS                   bool   `yaml:"tls"`
	CAFile                string `yaml:"ca_file"` // PEM bundle trusted for TLS; the system pool when empty.
	MaxPoolSize           int    `yaml:"max_pool_size"`
	MinPoolSize           int    `yaml:"min_pool_size"`
	ConnectTimeoutSeconds int    `yaml:"connect_timeout_seconds"`
}

// DashboardConfig configures the query handler and the HTTP server.
type DashboardConfig struct {
	ListenAddress string `yaml:"listen_address"`
	DefaultLimit  int    `yaml:"default_limit"`
}

// InferenceConfig configures the live scoring path.
type InferenceConfig struct {
	EndpointName string  `yaml:"endpoint_name"`
	Threshold    float64 `yaml:"threshold"`
	ContentType  string  `yaml:"content_type"`
}

// SimulationConfig configures the transaction generator.
type SimulationConfig struct {
	StorageRef    string `yaml:"storage_ref"`
	DatasetObject string `yaml:"dataset_object"`
	Duration      int    `yaml:"duration"`
	Concurrent    int    `yaml:"concurrent"`
	Interval      int    `yaml:"interval"`
}

// IngestConfig configures the CSV to parquet ingest job.
type IngestConfig struct {
	SourceStorageRef   string `yaml:"source_storage_ref"`
	TargetStorageRef   string `yaml:"target_storage_ref"`
	TransactionsObject string `yaml:"transactions_object"`
	IdentityObject     string `yaml:"identity_object"`
	TransactionPrefix  string `yaml:"transaction_prefix"`
	IdentityPrefix     string `yaml:"identity_prefix"`
	ChunkSize          int    `yaml:"chunk_size"`
	Compression        string `yaml:"compression"`
}

// RunRepositoryConfig selects where pipeline runs are persisted.
type RunRepositoryConfig struct {
	Type  string `yaml:"type"`   // "inmemory" or "sql".
	DBRef string `yaml:"db_ref"` // Name of the database entry under adapter.database.
}

// MetricsConfig selects the metric recorder.
type MetricsConfig struct {
	Type     string `yaml:"type"`     // "noop", "prometheus" or "otel".
	Exporter string `yaml:"exporter"` // "grpc" or "http" for otel.
	Endpoint string `yaml:"endpoint"`
}

// TracingConfig configures the OpenTelemetry tracer.
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Exporter    string `yaml:"exporter"` // "grpc" or "http".
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name"`
}

// InfrastructureConfig holds infrastructure selections.
type InfrastructureConfig struct {
	RunRepository RunRepositoryConfig `yaml:"run_repository"`
	Metrics       MetricsConfig       `yaml:"metrics"`
	Tracing       TracingConfig       `yaml:"tracing"`
}

// AdapterConfigs holds named adapter settings, bound to concrete structs by each adapter.
type AdapterConfigs struct {
	Database map[string]interface{} `yaml:"database"`
	Storage  map[string]interface{} `yaml:"storage"`
}

// FraudflowConfig holds everything under the "fraudflow" key.
type FraudflowConfig struct {
	System         SystemConfig         `yaml:"system"`
	Pipeline       PipelineConfig       `yaml:"pipeline"`
	Services       ServicesConfig       `yaml:"services"`
	Graph          GraphConfig          `yaml:"graph"`
	Queue          QueueConfig          `yaml:"queue"`
	DocumentDB     DocumentDBConfig     `yaml:"document_db"`
	Dashboard      DashboardConfig      `yaml:"dashboard"`
	Inference      InferenceConfig      `yaml:"inference"`
	Simulation     SimulationConfig     `yaml:"simulation"`
	Ingest         IngestConfig         `yaml:"ingest"`
	Infrastructure InfrastructureConfig `yaml:"infrastructure"`
	Adapter        AdapterConfigs       `yaml:"adapter"`
}

// Config is the root of the application configuration.
type Config struct {
	Fraudflow FraudflowConfig `yaml:"fraudflow"`
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		Fraudflow: FraudflowConfig{
			System: SystemConfig{
				Timezone: "UTC",
				Logging:  LoggingConfig{Level: "INFO"},
			},
			Pipeline: PipelineConfig{
				Name:                     "fraud-detection",
				EndpointName:             "frauddetection",
				CrawlPollIntervalSeconds: 10,
				JobPollIntervalSeconds:   30,
				Serverless: ServerlessConfig{
					MemorySizeInMB: 4096,
					MaxConcurrency: 20,
				},
				Timeouts: TimeoutsConfig{
					ParametersNormalize:  60,
					DataIngest:           15 * 60,
					DataCatalogCrawl:     15 * 60,
					DataProcess:          5 * 60 * 60,
					BuildHyperparameters: 15 * 60,
					LoadGraphData:        2 * 60 * 60,
					RepackageModel:       15 * 60,
					CheckEndpoint:        30,
					Lifecycle:            5 * 60,
				},
				Retry: RetryConfig{
					MaxAttempts:     6,
					InitialInterval: 2000,
					MaxInterval:     60000,
					Factor:          2.0,
					RetryableExceptions: []string{
						"ServiceUnavailable",
						"ServiceException",
						"TooManyRequestsException",
						"ThrottlingException",
						"ClientTransportError",
					},
				},
			},
			Services: ServicesConfig{
				Region: "us-east-1",
				Training: TrainingConfig{
					VolumeSizeGB: 50,
				},
				Hosting: HostingConfig{
					Image:                "763104351884.dkr.ecr.us-east-1.amazonaws.com/pytorch-inference:1.4.0-cpu-py36-ubuntu16.04",
					InstanceType:         "ml.c5.4xlarge",
					VariantName:          "c5-4x",
					InitialInstanceCount: 1,
					EntryPoint:           "fd_sl_deployment_entry_point.py",
				},
				LoadGraph: LoadGraphConfig{
					ContainerName: "container",
					TempFolder:    "/neptune/bulk-load-staging",
				},
			},
			Graph: GraphConfig{
				Port:         8182,
				Protocol:     "wss",
				MaxNeighbors: 50,
			},
			Queue: QueueConfig{
				MessageGroupID:    "transactions",
				MaxMessages:       10,
				WaitTimeSeconds:   20,
				VisibilityTimeout: 30,
			},
			DocumentDB: DocumentDBConfig{
				Database:              "frauddetection",
				Collection:            "transaction",
				ReplicaSet:            "rs0",
				TLS:                   true,
				MaxPoolSize:           50,
				MinPoolSize:           10,
				ConnectTimeoutSeconds: 5,
			},
			Dashboard: DashboardConfig{
				ListenAddress: ":8080",
				DefaultLimit:  10,
			},
			Inference: InferenceConfig{
				Threshold:   0.5,
				ContentType: "application/json",
			},
			Simulation: SimulationConfig{
				StorageRef: "dataset",
				Duration:   300,
				Concurrent: 10,
				Interval:   1,
			},
			Ingest: IngestConfig{
				SourceStorageRef:   "raw",
				TargetStorageRef:   "processed",
				TransactionsObject: "train_transaction.csv",
				IdentityObject:     "train_identity.csv",
				TransactionPrefix:  "transactions",
				IdentityPrefix:     "identity",
				ChunkSize:          100000,
				Compression:        "SNAPPY",
			},
			Infrastructure: InfrastructureConfig{
				RunRepository: RunRepositoryConfig{Type: "inmemory", DBRef: "metadata"},
				Metrics:       MetricsConfig{Type: "noop", Exporter: "grpc"},
				Tracing:       TracingConfig{Exporter: "grpc", ServiceName: "fraudflow"},
			},
			Adapter: AdapterConfigs{
				Database: map[string]interface{}{},
				Storage:  map[string]interface{}{},
			},
		},
	}
}

// InferenceEndpointName returns the scoring endpoint, defaulting to the pipeline's endpoint.
func (c *FraudflowConfig) InferenceEndpointName() string {
	if c.Inference.EndpointName != "" {
		return c.Inference.EndpointName
	}
	return c.Pipeline.EndpointName
}
