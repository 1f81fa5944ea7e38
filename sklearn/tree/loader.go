package tree

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	scigoErrors "github.com/YuminosukeSato/sktree/pkg/errors"
	"github.com/YuminosukeSato/sktree/pkg/log"
)

// treeDump is the JSON form of scikit-learn's Tree.__getstate__():
//
//	state = clf.tree_.__getstate__()
//	json.dump({
//	    "n_features": clf.n_features_in_,
//	    "n_outputs": clf.n_outputs_,
//	    "n_classes": list(clf.tree_.n_classes),
//	    "node_count": state["node_count"],
//	    "nodes": [dict(zip(state["nodes"].dtype.names, map(to_py, n))) for n in state["nodes"]],
//	    "values": state["values"].tolist(),
//	    "value_dtype": str(state["values"].dtype),
//	}, fh)
type treeDump struct {
	NFeatures  int           `json:"n_features"`
	NOutputs   int           `json:"n_outputs"`
	NClasses   []int         `json:"n_classes"`
	MaxDepth   int           `json:"max_depth"`
	NodeCount  *int          `json:"node_count"`
	ValueDtype string        `json:"value_dtype"`
	Nodes      []nodeDump    `json:"nodes"`
	Values     [][][]float64 `json:"values"`
}

type nodeDump struct {
	LeftChild            int      `json:"left_child"`
	RightChild           int      `json:"right_child"`
	Feature              int      `json:"feature"`
	Threshold            float64  `json:"threshold"`
	Impurity             float64  `json:"impurity"`
	NNodeSamples         int      `json:"n_node_samples"`
	WeightedNNodeSamples *float64 `json:"weighted_n_node_samples"`
}

// LoadTreeFromFile loads a tree dump from path.
func LoadTreeFromFile(path string) (*Tree, error) {
	cleanPath := filepath.Clean(path)
	if strings.Contains(cleanPath, "..") {
		return nil, scigoErrors.NewValidationError("path", "path traversal detected", path)
	}
	f, err := os.Open(cleanPath)
	if err != nil {
		return nil, scigoErrors.NewModelError("LoadTreeFromFile", "open file", err)
	}
	defer f.Close()
	return LoadTree(f)
}

// LoadTree decodes a scikit-learn tree dump (see treeDump) and returns a
// validated Tree. The value storage kind follows "value_dtype": int* and
// uint* produce IntValues, float* (and a missing dtype) FloatValues.
func LoadTree(r io.Reader) (*Tree, error) {
	const op = "LoadTree"
	logger := log.GetLoggerWithName("tree.loader").With(
		log.RunIDKey, uuid.NewString(),
		log.OperationKey, log.OperationLoad,
	)

	var dump treeDump
	if err := json.NewDecoder(r).Decode(&dump); err != nil {
		return nil, scigoErrors.NewModelError(op, "decode tree dump", err)
	}

	n := len(dump.Nodes)
	if n == 0 {
		return nil, scigoErrors.NewModelError(op, "empty tree", scigoErrors.ErrEmptyTree)
	}
	if dump.NodeCount != nil && *dump.NodeCount != n {
		return nil, scigoErrors.NewValidationError("node_count", fmt.Sprintf("does not match %d nodes", n), *dump.NodeCount)
	}
	if len(dump.Values) != n {
		return nil, scigoErrors.NewValidationError("values", fmt.Sprintf("expected %d entries, one per node", n), len(dump.Values))
	}

	kind, err := parseValueDtype(dump.ValueDtype)
	if err != nil {
		return nil, err
	}

	t := &Tree{
		ChildrenLeft:  make([]int, n),
		ChildrenRight: make([]int, n),
		Feature:       make([]int, n),
		Threshold:     make([]float64, n),
		Impurity:      make([]float64, n),
		NNodeSamples:  make([]int, n),
		NFeatures:     dump.NFeatures,
		NOutputs:      dump.NOutputs,
		NClasses:      dump.NClasses,
	}
	if t.NOutputs == 0 {
		t.NOutputs = 1
	}
	if n > 0 && dump.Nodes[0].WeightedNNodeSamples != nil {
		t.WeightedNNodeSamples = make([]float64, n)
	}
	for i, node := range dump.Nodes {
		t.ChildrenLeft[i] = node.LeftChild
		t.ChildrenRight[i] = node.RightChild
		t.Feature[i] = node.Feature
		t.Threshold[i] = node.Threshold
		t.Impurity[i] = node.Impurity
		t.NNodeSamples[i] = node.NNodeSamples
		if t.WeightedNNodeSamples != nil && node.WeightedNNodeSamples != nil {
			t.WeightedNNodeSamples[i] = *node.WeightedNNodeSamples
		}
	}

	t.Value, err = buildValueTable(dump.Values, kind)
	if err != nil {
		return nil, err
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}

	logger.Debug("Tree loaded",
		log.NodeCountKey, n,
		log.LeafCountKey, t.NLeaves(),
		log.FeaturesKey, t.NFeatures,
		log.ValueKindKey, kind.String(),
	)
	return t, nil
}

// parseValueDtype maps a numpy dtype name onto a ValueKind. Narrower dtypes
// are widened with a DataConversionWarning.
func parseValueDtype(dtype string) (ValueKind, error) {
	switch dtype {
	case "", "float64", "<f8":
		return FloatValues, nil
	case "int64", "<i8":
		return IntValues, nil
	case "float32", "float16", "<f4", "<f2":
		scigoErrors.Warn(scigoErrors.NewDataConversionWarning(dtype, "float64", "node values are stored as float64"))
		return FloatValues, nil
	case "int32", "int16", "int8", "uint8", "uint16", "uint32", "uint64", "<i4", "<i2", "|i1", "|u1", "<u2", "<u4", "<u8":
		scigoErrors.Warn(scigoErrors.NewDataConversionWarning(dtype, "int64", "node values are stored as int64"))
		return IntValues, nil
	default:
		return FloatValues, scigoErrors.NewValueError("LoadTree", fmt.Sprintf("value_dtype: %s is not supported", dtype))
	}
}

// buildValueTable ravels each node's n_outputs × max_classes block into one row.
func buildValueTable(values [][][]float64, kind ValueKind) (ValueTable, error) {
	rows := make([][]float64, len(values))
	for i, block := range values {
		for _, out := range block {
			rows[i] = append(rows[i], out...)
		}
	}

	if kind == FloatValues {
		return NewFloatValueTableFromRows(rows)
	}

	ints := make([][]int64, len(rows))
	for i, row := range rows {
		ints[i] = make([]int64, len(row))
		for j, v := range row {
			if v != math.Trunc(v) || math.IsInf(v, 0) {
				return ValueTable{}, scigoErrors.NewValidationError("values",
					fmt.Sprintf("node %d holds a non-integer value under an integer dtype", i), v)
			}
			// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold.
			if v < math.MinInt64 || v >= math.MaxInt64 {
				return ValueTable{}, scigoErrors.NewValidationError("values",
					fmt.Sprintf("node %d holds a value outside the int64 range", i), v)
			}
			ints[i][j] = int64(v)
		}
	}
	return NewIntValueTable(ints)
}
