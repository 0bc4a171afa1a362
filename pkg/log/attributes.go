package log

// Identification of the run and the component emitting the record.
const (
	ComponentKey = "component"
	RunIDKey     = "run.id"
	StageKey     = "pipeline.stage"
	ModelNameKey = "model.name"
	OperationKey = "ml.operation"
)

// Data shape.
const (
	SamplesKey  = "data.samples"
	FeaturesKey = "data.features"
	PositiveKey = "data.positive"
	NegativeKey = "data.negative"
	SourceKey   = "data.source"
	ColumnKey   = "data.column"
)

// Training and evaluation.
const (
	DurationMsKey = "perf.duration_ms"
	AccuracyKey   = "metrics.accuracy"
	AUCKey        = "metrics.auc"
	EstimatorsKey = "model.n_estimators"
	MaxDepthKey   = "model.max_depth"
	RandomSeedKey = "config.random_seed"
	ArtifactKey   = "model.artifact"
	KNeighborsKey = "smote.k_neighbors"
	WorkersKey    = "infra.workers"
	TestSizeKey   = "split.test_size"
	HighRiskKey   = "roi.high_risk"
	SavingsKey    = "roi.savings"
	ThresholdKey  = "roi.threshold"
	HTTPMethodKey = "http.method"
	HTTPPathKey   = "http.path"
	HTTPStatusKey = "http.status"
	RequestIDKey  = "http.request_id"
)

// Error classification.
const (
	ErrorTypeKey  = "error.type"
	SuggestionKey = "error.suggestion"
)

// Well-known values.
const (
	OperationFit          = "fit"
	OperationPredict      = "predict"
	OperationTransform    = "transform"
	OperationFitTransform = "fit_transform"
	OperationResample     = "fit_resample"
	OperationScore        = "score"

	StageLoad       = "load"
	StagePreprocess = "preprocess"
	StageSplit      = "split"
	StageBalance    = "balance"
	StageFit        = "fit"
	StageEvaluate   = "evaluate"
	StagePersist    = "persist"
	StageScore      = "score"
	StageExplain    = "explain"
)
