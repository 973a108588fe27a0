package log

// Model and operation context.
const (
	// ModelNameKey identifies the estimator type, e.g. "RandomForestClassifier".
	ModelNameKey = "model.name"
	// BackendKey is the artifact backend ("estimator", "network", "convolutional").
	BackendKey   = "model.backend"
	OperationKey = "ml.operation"
	// ComponentKey identifies the named logger (see GetLoggerWithName).
	ComponentKey = "ml.component"
	PhaseKey     = "ml.phase"
	// StageKey is the pipeline stage: featurize, train-test-split, fit, eval.
	StageKey = "pipeline.stage"
)

// Data shape and provenance.
const (
	SamplesKey  = "data.samples"
	FeaturesKey = "data.features"
	TargetsKey  = "data.targets"
	// TaskKey names a single prediction task (a target field).
	TaskKey        = "data.task"
	DatasetKey     = "data.dataset"
	FileKey        = "data.file"
	FeatureTypeKey = "data.feature_type"
	SplitKey       = "data.split"
	BatchSizeKey   = "data.batch_size"
)

// Performance and training progress.
const (
	DurationMsKey = "perf.duration_ms"
	AccuracyKey   = "metrics.accuracy"
	LossKey       = "metrics.loss"
	ValLossKey    = "metrics.val_loss"
	R2ScoreKey    = "metrics.r2_score"
	MetricKey     = "metrics.name"
	ValueKey      = "metrics.value"
	IterationKey  = "training.iteration"
	EpochKey      = "training.epoch"
)

// Error context.
const (
	ErrorCodeKey  = "error.code"
	ErrorTypeKey  = "error.type"
	StacktraceKey = "error.stacktrace"
	// SuggestionKey carries a hint for resolving the problem, e.g.
	// "Increase max_iter".
	SuggestionKey = "error.suggestion"
)

// Hyperparameters and configuration.
const (
	LearningRateKey   = "hyperparams.learning_rate"
	RegularizationKey = "hyperparams.regularization"
	RandomSeedKey     = "config.random_seed"
	ConfigVersionKey  = "config.version"
	WorkerIDKey       = "infra.worker_id"
	RunIDKey          = "infra.run_id"
)

const (
	OperationFit       = "fit"
	OperationPredict   = "predict"
	OperationTransform = "transform"
	OperationScore     = "score"

	PhaseTraining      = "training"
	PhaseValidation    = "validation"
	PhaseTesting       = "testing"
	PhasePreprocessing = "preprocessing"

	ErrorNotFitted         = "NOT_FITTED"
	ErrorDimensionMismatch = "DIMENSION_MISMATCH"
	ErrorEmptyData         = "EMPTY_DATA"
	ErrorInvalidInput      = "INVALID_INPUT"
	ErrorConvergence       = "CONVERGENCE_FAILURE"
	ErrorSingularMatrix    = "SINGULAR_MATRIX"
)
