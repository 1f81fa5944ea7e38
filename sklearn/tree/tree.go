// Package tree holds fitted binary decision trees in scikit-learn's flat
// array layout and exports them as nested JSON documents.
//
// A tree is stored as parallel arrays indexed by node id, with node 0 as the
// root. A node whose left child equals TreeLeaf is a leaf.
//
//	t := &tree.Tree{
//	    ChildrenLeft:  []int{1, tree.TreeLeaf, tree.TreeLeaf},
//	    ChildrenRight: []int{2, tree.TreeLeaf, tree.TreeLeaf},
//	    Feature:       []int{0, tree.TreeUndefined, tree.TreeUndefined},
//	    Threshold:     []float64{2.5, tree.TreeUndefined, tree.TreeUndefined},
//	    Impurity:      []float64{0.5, 0, 0},
//	    NNodeSamples:  []int{100, 50, 50},
//	    Value:         values,
//	}
//	w, err := tree.ExportJSON(t, tree.ToFile("iris.json"),
//	    tree.WithFeatureNames([]string{"petal_length", "petal_width"}))
//	if err != nil {
//	    return err
//	}
//	defer w.Close()
package tree

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/sktree/core/parallel"
	scigoErrors "github.com/YuminosukeSato/sktree/pkg/errors"
)

const (
	// TreeLeaf marks "no such child" in ChildrenLeft / ChildrenRight.
	TreeLeaf = -1
	// TreeUndefined fills Feature and Threshold of leaf nodes.
	TreeUndefined = -2
)

// applyParallelThreshold is the row count above which Apply fans out.
const applyParallelThreshold = 1000

// Tree is a fitted binary decision tree. It is read-only to this package.
type Tree struct {
	ChildrenLeft  []int
	ChildrenRight []int
	// Feature is the split feature index per node; TreeUndefined on leaves.
	Feature []int
	// Threshold is the split threshold per node; TreeUndefined on leaves.
	Threshold []float64
	// Impurity is the node impurity (gini, entropy, mse...).
	Impurity     []float64
	NNodeSamples []int
	// WeightedNNodeSamples is optional; nil when the source did not record it.
	WeightedNNodeSamples []float64
	Value                ValueTable

	NFeatures int
	NOutputs  int
	NClasses  []int
}

// TreeStructure implements Source.
func (t *Tree) TreeStructure() (*Tree, error) {
	if t == nil {
		return nil, scigoErrors.NewModelError("Tree.TreeStructure", "nil tree", scigoErrors.ErrEmptyTree)
	}
	return t, nil
}

// NodeCount returns the number of nodes.
func (t *Tree) NodeCount() int {
	return len(t.ChildrenLeft)
}

// IsLeaf reports whether node id has no children.
func (t *Tree) IsLeaf(id int) bool {
	return t.ChildrenLeft[id] == TreeLeaf
}

// NLeaves returns the number of leaves.
func (t *Tree) NLeaves() int {
	n := 0
	for _, left := range t.ChildrenLeft {
		if left == TreeLeaf {
			n++
		}
	}
	return n
}

// MaxDepth returns the depth of the deepest leaf below the root; a single
// leaf has depth 0. The tree must be valid.
func (t *Tree) MaxDepth() int {
	if t.NodeCount() == 0 {
		return 0
	}
	type frame struct{ id, depth int }
	stack := []frame{{0, 0}}
	maxDepth := 0
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if f.depth > maxDepth {
			maxDepth = f.depth
		}
		if !t.IsLeaf(f.id) {
			stack = append(stack,
				frame{t.ChildrenRight[f.id], f.depth + 1},
				frame{t.ChildrenLeft[f.id], f.depth + 1})
		}
	}
	return maxDepth
}

// checkShape verifies that every per-node array has NodeCount entries.
func (t *Tree) checkShape(op string) error {
	n := t.NodeCount()
	if n == 0 {
		return scigoErrors.NewModelError(op, "empty tree", scigoErrors.ErrEmptyTree)
	}
	lengths := []struct {
		name string
		got  int
	}{
		{"children_right", len(t.ChildrenRight)},
		{"feature", len(t.Feature)},
		{"threshold", len(t.Threshold)},
		{"impurity", len(t.Impurity)},
		{"n_node_samples", len(t.NNodeSamples)},
		{"value", t.Value.Len()},
	}
	for _, l := range lengths {
		if l.got != n {
			return scigoErrors.NewValidationError(l.name, fmt.Sprintf("expected %d entries to match children_left", n), l.got)
		}
	}
	if t.WeightedNNodeSamples != nil && len(t.WeightedNNodeSamples) != n {
		return scigoErrors.NewValidationError("weighted_n_node_samples", fmt.Sprintf("expected %d entries to match children_left", n), len(t.WeightedNNodeSamples))
	}
	return nil
}

// Validate checks array shapes and that the nodes reachable from the root
// form a tree: child ids in range, both children present on split nodes,
// no node with two parents, and no edge back into the root.
func (t *Tree) Validate() error {
	const op = "Tree.Validate"
	if err := t.checkShape(op); err != nil {
		return err
	}
	n := t.NodeCount()
	parents := make([]int, n)
	for id := 0; id < n; id++ {
		left, right := t.ChildrenLeft[id], t.ChildrenRight[id]
		if left == TreeLeaf {
			if right != TreeLeaf {
				return scigoErrors.NewMalformedTreeError(op, id, "left child is a leaf sentinel but right child is not")
			}
			continue
		}
		for _, child := range [2]int{left, right} {
			if child < 0 || child >= n {
				return scigoErrors.NewMalformedTreeError(op, id, fmt.Sprintf("child %d out of range [0, %d)", child, n))
			}
			parents[child]++
		}
		if t.NFeatures > 0 && (t.Feature[id] < 0 || t.Feature[id] >= t.NFeatures) {
			return scigoErrors.NewMalformedTreeError(op, id, fmt.Sprintf("split feature %d out of range [0, %d)", t.Feature[id], t.NFeatures))
		}
	}
	if parents[0] != 0 {
		return scigoErrors.NewMalformedTreeError(op, 0, "root has a parent")
	}
	for id, p := range parents {
		if p > 1 {
			return scigoErrors.NewMalformedTreeError(op, id, fmt.Sprintf("node has %d parents", p))
		}
	}
	return nil
}

// Apply returns the id of the leaf each row of X ends in. A row goes left
// when X[row, feature] <= threshold.
func (t *Tree) Apply(X mat.Matrix) ([]int, error) {
	const op = "Tree.Apply"
	if err := t.Validate(); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if rows == 0 {
		return nil, scigoErrors.NewModelError(op, "empty data", scigoErrors.ErrEmptyData)
	}
	if t.NFeatures > 0 && cols != t.NFeatures {
		return nil, scigoErrors.NewDimensionError(op, t.NFeatures, cols, 1)
	}

	leaves := make([]int, rows)
	err := parallel.ForWithThreshold(rows, applyParallelThreshold, func(start, end int) error {
		return scigoErrors.SafeExecute(op, func() error {
			for i := start; i < end; i++ {
				leaves[i] = t.leafFor(X, i)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return leaves, nil
}

func (t *Tree) leafFor(X mat.Matrix, row int) int {
	id := 0
	for !t.IsLeaf(id) {
		if X.At(row, t.Feature[id]) <= t.Threshold[id] {
			id = t.ChildrenLeft[id]
		} else {
			id = t.ChildrenRight[id]
		}
	}
	return id
}
