// Standard attribute keys.
//
// Keys follow a dotted hierarchy ("tree.nodes", "export.destination") so that
// records from different components can be filtered the same way.

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the estimator type, e.g. "DecisionTree".
	ModelNameKey = "model.name"

	// RunIDKey correlates every record of one export or load call.
	RunIDKey = "run.id"

	// OperationKey specifies the operation being performed.
	// Standard values: OperationExport, OperationLoad, OperationApply, OperationPredict.
	OperationKey = "ml.operation"

	// ComponentKey identifies which component or package is logging.
	ComponentKey = "ml.component"
)

// Tree shape
const (
	// NodeCountKey is the number of nodes in the tree.
	NodeCountKey = "tree.nodes"

	// LeafCountKey is the number of leaves in the tree.
	LeafCountKey = "tree.leaves"

	// RootIDKey is the node the traversal started from.
	RootIDKey = "tree.root_id"

	// ValueKindKey is the storage kind of the node value table ("int" or "float").
	ValueKindKey = "tree.value_kind"

	// FeaturesKey is the number of input features.
	FeaturesKey = "data.features"

	// SamplesKey is the number of input rows.
	SamplesKey = "data.samples"
)

// Export
const (
	// DestinationKey describes the export sink: a file path or "writer".
	DestinationKey = "export.destination"

	// BytesWrittenKey is the number of bytes written to the sink.
	BytesWrittenKey = "export.bytes"

	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"
)

// Error and Warning Context
const (
	// ErrorTypeKey categorizes the type of error encountered.
	ErrorTypeKey = "error.type"

	// StacktraceKey contains stack trace information for debugging.
	StacktraceKey = "error.stacktrace"
)

// Standard attribute values.
const (
	OperationExport  = "export"
	OperationLoad    = "load"
	OperationApply   = "apply"
	OperationPredict = "predict"
)
