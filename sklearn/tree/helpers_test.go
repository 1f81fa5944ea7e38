package tree

import (
	"testing"

	"github.com/stretchr/testify/require"
)

var irisFeatureNames = []string{"sepal length (cm)", "sepal width (cm)", "petal length (cm)", "petal width (cm)"}

// irisTree is the depth-2 gini tree scikit-learn fits on the iris dataset,
// with raw class counts as integer values.
func irisTree(t testing.TB) *Tree {
	t.Helper()
	values, err := NewIntValueTable([][]int64{
		{50, 50, 50},
		{50, 0, 0},
		{0, 50, 50},
		{0, 49, 5},
		{0, 1, 45},
	})
	require.NoError(t, err)
	return &Tree{
		ChildrenLeft:  []int{1, TreeLeaf, 3, TreeLeaf, TreeLeaf},
		ChildrenRight: []int{2, TreeLeaf, 4, TreeLeaf, TreeLeaf},
		Feature:       []int{2, TreeUndefined, 3, TreeUndefined, TreeUndefined},
		Threshold:     []float64{2.450000047683716, TreeUndefined, 1.75, TreeUndefined, TreeUndefined},
		Impurity:      []float64{0.6666666666666667, 0, 0.5, 0.16803840877914955, 0.04253308128544431},
		NNodeSamples:  []int{150, 50, 100, 54, 46},
		Value:         values,
		NFeatures:     4,
		NOutputs:      1,
		NClasses:      []int{3},
	}
}

// twoLevelTree is a root split on feature 0 at 1.0 with two leaves and
// float-typed values.
func twoLevelTree(t testing.TB) *Tree {
	t.Helper()
	values, err := NewFloatValueTableFromRows([][]float64{
		{0.5, 0.5},
		{1, 0},
		{0, 1},
	})
	require.NoError(t, err)
	return &Tree{
		ChildrenLeft:  []int{1, TreeLeaf, TreeLeaf},
		ChildrenRight: []int{2, TreeLeaf, TreeLeaf},
		Feature:       []int{0, TreeUndefined, TreeUndefined},
		Threshold:     []float64{1.0, TreeUndefined, TreeUndefined},
		Impurity:      []float64{0.5, 0, 0},
		NNodeSamples:  []int{4, 2, 2},
		Value:         values,
		NFeatures:     2,
		NOutputs:      1,
		NClasses:      []int{2},
	}
}

// singleLeafTree has only a root that is also a leaf.
func singleLeafTree(t testing.TB) *Tree {
	t.Helper()
	values, err := NewIntValueTable([][]int64{{3}})
	require.NoError(t, err)
	return &Tree{
		ChildrenLeft:  []int{TreeLeaf},
		ChildrenRight: []int{TreeLeaf},
		Feature:       []int{TreeUndefined},
		Threshold:     []float64{TreeUndefined},
		Impurity:      []float64{0},
		NNodeSamples:  []int{3},
		Value:         values,
		NOutputs:      1,
	}
}

// completeTree builds a perfect binary tree of the given depth in
// breadth-first numbering, with integer values.
func completeTree(t testing.TB, depth int) *Tree {
	t.Helper()
	n := 1<<(depth+1) - 1
	tr := &Tree{
		ChildrenLeft:  make([]int, n),
		ChildrenRight: make([]int, n),
		Feature:       make([]int, n),
		Threshold:     make([]float64, n),
		Impurity:      make([]float64, n),
		NNodeSamples:  make([]int, n),
	}
	rows := make([][]int64, n)
	for id := 0; id < n; id++ {
		left, right := 2*id+1, 2*id+2
		if left >= n {
			tr.ChildrenLeft[id], tr.ChildrenRight[id] = TreeLeaf, TreeLeaf
			tr.Feature[id], tr.Threshold[id] = TreeUndefined, TreeUndefined
		} else {
			tr.ChildrenLeft[id], tr.ChildrenRight[id] = left, right
			tr.Feature[id], tr.Threshold[id] = id%3, float64(id)+0.5
		}
		tr.Impurity[id] = 1 / float64(id+2)
		tr.NNodeSamples[id] = n - id
		rows[id] = []int64{int64(id), int64(n - id)}
	}
	values, err := NewIntValueTable(rows)
	require.NoError(t, err)
	tr.Value = values
	return tr
}

// chainTree builds a left-leaning tree: every split has a leaf on the right.
func chainTree(t testing.TB, splits int) *Tree {
	t.Helper()
	n := 2*splits + 1
	tr := &Tree{
		ChildrenLeft:  make([]int, n),
		ChildrenRight: make([]int, n),
		Feature:       make([]int, n),
		Threshold:     make([]float64, n),
		Impurity:      make([]float64, n),
		NNodeSamples:  make([]int, n),
	}
	rows := make([][]float64, n)
	id := 0
	for s := 0; s < splits; s++ {
		left, right := id+2, id+1
		tr.ChildrenLeft[id], tr.ChildrenRight[id] = left, right
		tr.Feature[id], tr.Threshold[id] = 0, float64(s)
		tr.ChildrenLeft[right], tr.ChildrenRight[right] = TreeLeaf, TreeLeaf
		tr.Feature[right], tr.Threshold[right] = TreeUndefined, TreeUndefined
		id = left
	}
	tr.ChildrenLeft[id], tr.ChildrenRight[id] = TreeLeaf, TreeLeaf
	tr.Feature[id], tr.Threshold[id] = TreeUndefined, TreeUndefined
	for i := range rows {
		rows[i] = []float64{float64(i) / 4}
	}
	values, err := NewFloatValueTableFromRows(rows)
	require.NoError(t, err)
	tr.Value = values
	return tr
}
