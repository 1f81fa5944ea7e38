package tree

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/sktree/core/model"
	scigoErrors "github.com/YuminosukeSato/sktree/pkg/errors"
)

// DecisionTree wraps a fitted Tree together with the metadata scikit-learn
// keeps on the estimator (feature_names_in_, classes_).
type DecisionTree struct {
	model.BaseEstimator

	// Structure is the fitted tree (tree_ in scikit-learn).
	Structure *Tree
	// FeatureNames are the input feature names, if known.
	FeatureNames []string
	// Classes maps class indices to labels for classifiers; nil for regressors.
	Classes []float64
}

var (
	_ model.Predictor = (*DecisionTree)(nil)
	_ model.Applier   = (*DecisionTree)(nil)
	_ Source          = (*DecisionTree)(nil)
	_ Source          = (*Tree)(nil)
)

// EstimatorOption configures NewDecisionTree.
type EstimatorOption func(*DecisionTree)

// WithInputFeatures records the names of the input features.
func WithInputFeatures(names []string) EstimatorOption {
	return func(dt *DecisionTree) {
		dt.FeatureNames = names
	}
}

// WithClassLabels records the class labels in value-column order.
func WithClassLabels(labels []float64) EstimatorOption {
	return func(dt *DecisionTree) {
		dt.Classes = labels
	}
}

// NewDecisionTree validates t and returns a fitted estimator holding it.
func NewDecisionTree(t *Tree, opts ...EstimatorOption) (*DecisionTree, error) {
	if t == nil {
		return nil, scigoErrors.NewModelError("NewDecisionTree", "nil tree", scigoErrors.ErrEmptyTree)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	dt := &DecisionTree{Structure: t}
	for _, opt := range opts {
		opt(dt)
	}
	if t.NFeatures > 0 && dt.FeatureNames != nil && len(dt.FeatureNames) != t.NFeatures {
		return nil, scigoErrors.NewDimensionError("NewDecisionTree", t.NFeatures, len(dt.FeatureNames), 1)
	}
	dt.SetFitted()
	return dt, nil
}

// LoadDecisionTree reads an estimator saved with Save.
func LoadDecisionTree(filename string) (*DecisionTree, error) {
	var dt DecisionTree
	if err := model.LoadModel(&dt, filename); err != nil {
		return nil, err
	}
	if dt.IsFitted() {
		if dt.Structure == nil {
			return nil, scigoErrors.NewModelError("LoadDecisionTree", "fitted model has no tree", scigoErrors.ErrEmptyTree)
		}
		if err := dt.Structure.Validate(); err != nil {
			return nil, err
		}
	}
	return &dt, nil
}

// Save writes the estimator with gob.
func (dt *DecisionTree) Save(filename string) error {
	return model.SaveModel(dt, filename)
}

// TreeStructure implements Source.
func (dt *DecisionTree) TreeStructure() (*Tree, error) {
	if !dt.IsFitted() || dt.Structure == nil {
		return nil, scigoErrors.NewNotFittedError("DecisionTree", "TreeStructure")
	}
	return dt.Structure, nil
}

// Apply returns the leaf id reached by every row of X.
func (dt *DecisionTree) Apply(X mat.Matrix) ([]int, error) {
	t, err := dt.treeFor("Apply")
	if err != nil {
		return nil, err
	}
	return t.Apply(X)
}

// Predict returns one column per output. For classification outputs the
// entry is the class with the largest value in the leaf (mapped through
// Classes when set); for single-value outputs it is the leaf value itself.
func (dt *DecisionTree) Predict(X mat.Matrix) (mat.Matrix, error) {
	t, err := dt.treeFor("Predict")
	if err != nil {
		return nil, err
	}
	leaves, err := t.Apply(X)
	if err != nil {
		return nil, err
	}

	nOutputs := t.NOutputs
	if nOutputs <= 0 {
		nOutputs = 1
	}
	width := t.Value.Width()
	if width%nOutputs != 0 {
		return nil, scigoErrors.NewValueError("DecisionTree.Predict", "value width is not a multiple of n_outputs")
	}
	block := width / nOutputs

	pred := mat.NewDense(len(leaves), nOutputs, nil)
	for i, leaf := range leaves {
		row := t.Value.Row(leaf)
		for k := 0; k < nOutputs; k++ {
			vals := row[k*block : (k+1)*block]
			if block == 1 {
				pred.Set(i, k, vals[0])
				continue
			}
			pred.Set(i, k, dt.classLabel(argmax(vals)))
		}
	}
	return pred, nil
}

func (dt *DecisionTree) treeFor(method string) (*Tree, error) {
	if !dt.IsFitted() || dt.Structure == nil {
		return nil, scigoErrors.NewNotFittedError("DecisionTree", method)
	}
	return dt.Structure, nil
}

func (dt *DecisionTree) classLabel(idx int) float64 {
	if idx < len(dt.Classes) {
		return dt.Classes[idx]
	}
	return float64(idx)
}

// argmax returns the first index of the largest value.
func argmax(vals []float64) int {
	best := 0
	for j := 1; j < len(vals); j++ {
		if vals[j] > vals[best] {
			best = j
		}
	}
	return best
}
