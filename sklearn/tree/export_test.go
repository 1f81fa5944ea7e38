package tree

import (
	"bytes"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	scigoErrors "github.com/YuminosukeSato/sktree/pkg/errors"
	"github.com/YuminosukeSato/sktree/pkg/log"
)

func exportString(t *testing.T, src Source, opts ...ExportOption) string {
	t.Helper()
	var buf bytes.Buffer
	_, err := ExportJSON(src, ToWriter(&buf), opts...)
	require.NoError(t, err)
	return buf.String()
}

func TestExportJSON_Iris(t *testing.T) {
	got := exportString(t, irisTree(t), WithFeatureNames(irisFeatureNames))

	want := `{"error": 0.6667, "samples": 150, "value": [50, 50, 50], "label": "petal length (cm) <= 2.45", "type": "split", "children": [` +
		`{"error": 0.0000, "samples": 50, "value": [50, 0, 0], "label": "Leaf - 1", "type": "leaf"}, ` +
		`{"error": 0.5000, "samples": 100, "value": [0, 50, 50], "label": "petal width (cm) <= 1.75", "type": "split", "children": [` +
		`{"error": 0.1680, "samples": 54, "value": [0, 49, 5], "label": "Leaf - 3", "type": "leaf"}, ` +
		`{"error": 0.0425, "samples": 46, "value": [0, 1, 45], "label": "Leaf - 4", "type": "leaf"}]}]}`
	assert.Equal(t, want, got)
	assert.NotContains(t, got, "\n")
}

func TestExportJSON_SyntheticFeatureNames(t *testing.T) {
	got := exportString(t, irisTree(t))

	assert.Contains(t, got, `"label": "X[2] <= 2.45"`)
	assert.Contains(t, got, `"label": "X[3] <= 1.75"`)
}

func TestExportJSON_SplitLabel(t *testing.T) {
	tr := twoLevelTree(t)
	tr.Threshold[0] = 2.5

	withNames := exportString(t, tr, WithFeatureNames([]string{"petal_length", "petal_width"}))
	root, err := ReadExported(strings.NewReader(withNames))
	require.NoError(t, err)
	assert.Equal(t, "petal_length <= 2.50", root.Label)

	withoutNames := exportString(t, tr)
	root, err = ReadExported(strings.NewReader(withoutNames))
	require.NoError(t, err)
	assert.Equal(t, "X[0] <= 2.50", root.Label)
}

func TestExportJSON_TwoLevelFloatValues(t *testing.T) {
	got := exportString(t, twoLevelTree(t))

	want := `{"error": 0.5000, "samples": 4, "value": [0.5, 0.5], "label": "X[0] <= 1.00", "type": "split", "children": [` +
		`{"error": 0.0000, "samples": 2, "value": [1.0, 0.0], "label": "Leaf - 1", "type": "leaf"}, ` +
		`{"error": 0.0000, "samples": 2, "value": [0.0, 1.0], "label": "Leaf - 2", "type": "leaf"}]}`
	assert.Equal(t, want, got)
}

func TestExportJSON_SingleLeaf(t *testing.T) {
	got := exportString(t, singleLeafTree(t))

	assert.Equal(t, `{"error": 0.0000, "samples": 3, "value": [3], "label": "Leaf - 0", "type": "leaf"}`, got)
	assert.NotContains(t, got, "children")
}

func TestExportJSON_ValueRendering(t *testing.T) {
	t.Run("integer storage has no decimal point", func(t *testing.T) {
		doc := exportString(t, completeTree(t, 3))
		root, err := ReadExported(strings.NewReader(doc))
		require.NoError(t, err)
		assert.NotContains(t, valueFragments(doc), ".")
		assert.Equal(t, []float64{0, 15}, root.Value)
	})

	t.Run("float storage renders floats", func(t *testing.T) {
		doc := exportString(t, chainTree(t, 3))
		for _, frag := range strings.Split(valueFragments(doc), "|") {
			assert.Contains(t, frag, ".", "value %q should be a float", frag)
		}
	})
}

// valueFragments returns the contents of every "value": [...] array joined by "|".
func valueFragments(doc string) string {
	var parts []string
	for _, chunk := range strings.Split(doc, `"value": [`)[1:] {
		parts = append(parts, chunk[:strings.IndexByte(chunk, ']')])
	}
	return strings.Join(parts, "|")
}

func TestExportJSON_NodeCounts(t *testing.T) {
	trees := map[string]*Tree{
		"single":     singleLeafTree(t),
		"two level":  twoLevelTree(t),
		"iris":       irisTree(t),
		"complete 5": completeTree(t, 5),
		"chain 40":   chainTree(t, 40),
	}

	for name, tr := range trees {
		t.Run(name, func(t *testing.T) {
			doc := exportString(t, tr)
			root, err := ReadExported(strings.NewReader(doc))
			require.NoError(t, err)

			stats := root.Stats()
			assert.Equal(t, tr.NodeCount(), stats.Nodes)
			assert.Equal(t, tr.NLeaves(), stats.Leaves)
			assert.Equal(t, tr.NodeCount()-tr.NLeaves(), stats.Splits)
			assert.Equal(t, tr.NodeCount()-tr.NLeaves(), strings.Count(doc, `"children": [`))
			assert.Equal(t, tr.MaxDepth(), stats.Depth)

			assertSameShape(t, tr, 0, root)
		})
	}
}

// assertSameShape checks that the exported node mirrors node id of tr,
// left before right, at every level.
func assertSameShape(t *testing.T, tr *Tree, id int, node *ExportedNode) {
	t.Helper()
	assert.Equal(t, tr.NNodeSamples[id], node.Samples)
	if tr.IsLeaf(id) {
		assert.Equal(t, NodeTypeLeaf, node.Type)
		assert.Empty(t, node.Children)
		return
	}
	assert.Equal(t, NodeTypeSplit, node.Type)
	require.Len(t, node.Children, 2)
	assertSameShape(t, tr, tr.ChildrenLeft[id], node.Children[0])
	assertSameShape(t, tr, tr.ChildrenRight[id], node.Children[1])
}

func TestExportJSON_RootID(t *testing.T) {
	got := exportString(t, irisTree(t), WithRootID(2), WithFeatureNames(irisFeatureNames))

	assert.True(t, strings.HasPrefix(got, `{"error": 0.5000, "samples": 100, "value": [0, 50, 50], "label": "petal width (cm) <= 1.75"`))
	assert.Contains(t, got, `"label": "Leaf - 3"`)
	assert.NotContains(t, got, `"label": "Leaf - 1"`)
}

func TestExportJSON_SentinelRoot(t *testing.T) {
	var buf bytes.Buffer
	w, err := ExportJSON(irisTree(t), ToWriter(&buf), WithRootID(TreeLeaf))

	require.Error(t, err)
	assert.Nil(t, w)
	var nodeErr *scigoErrors.InvalidNodeError
	require.True(t, scigoErrors.As(err, &nodeErr))
	assert.Equal(t, TreeLeaf, nodeErr.NodeID)
	assert.Zero(t, buf.Len(), "no node object may be written")
}

func TestExportJSON_AsymmetricChildren(t *testing.T) {
	tr := twoLevelTree(t)
	tr.ChildrenRight[0] = TreeLeaf

	var buf bytes.Buffer
	_, err := ExportJSON(tr, ToWriter(&buf))

	var nodeErr *scigoErrors.InvalidNodeError
	require.True(t, scigoErrors.As(err, &nodeErr))
	assert.Equal(t, 0, nodeErr.Parent)
	// The left subtree was already streamed.
	assert.True(t, strings.HasPrefix(buf.String(), `{"error": 0.5000`))
	assert.Contains(t, buf.String(), `"label": "Leaf - 1"`)
}

func TestExportJSON_MalformedTrees(t *testing.T) {
	t.Run("dangling child", func(t *testing.T) {
		tr := twoLevelTree(t)
		tr.ChildrenRight[0] = 7

		_, err := ExportJSON(tr, ToWriter(&bytes.Buffer{}))
		var malformed *scigoErrors.MalformedTreeError
		require.True(t, scigoErrors.As(err, &malformed))
		assert.Equal(t, 0, malformed.NodeID)
	})

	t.Run("cycle", func(t *testing.T) {
		tr := twoLevelTree(t)
		tr.ChildrenLeft[1], tr.ChildrenRight[1] = 0, 2

		_, err := ExportJSON(tr, ToWriter(&bytes.Buffer{}))
		var malformed *scigoErrors.MalformedTreeError
		require.True(t, scigoErrors.As(err, &malformed))
		assert.Contains(t, malformed.Reason, "cycle")
	})

	t.Run("array length mismatch", func(t *testing.T) {
		tr := twoLevelTree(t)
		tr.Impurity = tr.Impurity[:2]

		_, err := ExportJSON(tr, ToWriter(&bytes.Buffer{}))
		var valErr *scigoErrors.ValidationError
		require.True(t, scigoErrors.As(err, &valErr))
		assert.Equal(t, "impurity", valErr.ParamName)
	})

	t.Run("empty tree", func(t *testing.T) {
		_, err := ExportJSON(&Tree{}, ToWriter(&bytes.Buffer{}))
		assert.True(t, scigoErrors.Is(err, scigoErrors.ErrEmptyTree))
	})

	t.Run("root out of range", func(t *testing.T) {
		_, err := ExportJSON(twoLevelTree(t), ToWriter(&bytes.Buffer{}), WithRootID(3))
		var valErr *scigoErrors.ValidationError
		require.True(t, scigoErrors.As(err, &valErr))
		assert.Equal(t, "root_id", valErr.ParamName)
	})
}

func TestExportJSON_FeatureNameOutOfRange(t *testing.T) {
	_, err := ExportJSON(irisTree(t), ToWriter(&bytes.Buffer{}), WithFeatureNames([]string{"a", "b"}))

	var valErr *scigoErrors.ValidationError
	require.True(t, scigoErrors.As(err, &valErr))
	assert.Equal(t, "feature_names", valErr.ParamName)
	assert.Equal(t, 2, valErr.Value)
}

func TestExportJSON_EscapesLabels(t *testing.T) {
	doc := exportString(t, twoLevelTree(t), WithFeatureNames([]string{`width "cm"\raw`, "b"}))

	root, err := ReadExported(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, `width "cm"\raw <= 1.00`, root.Label)
	assert.Contains(t, doc, `"label": "width \"cm\"\\raw <= 1.00"`)
}

func TestExportJSON_LabelsKeepHTMLCharacters(t *testing.T) {
	doc := exportString(t, twoLevelTree(t), WithFeatureNames([]string{"a<b & c>d", "b"}))

	assert.Contains(t, doc, `"label": "a<b & c>d <= 1.00"`)
	assert.NotContains(t, doc, `\u003c`)
	assert.NotContains(t, doc, `\u0026`)
}

func TestExportJSON_NonFiniteValues(t *testing.T) {
	tr := twoLevelTree(t)
	tr.Impurity[1] = math.NaN()

	doc := exportString(t, tr)
	assert.Contains(t, doc, `{"error": null, "samples": 2`)

	_, err := ReadExported(strings.NewReader(doc))
	assert.NoError(t, err)
}

func TestExportJSON_NonFiniteThreshold(t *testing.T) {
	tr := twoLevelTree(t)
	tr.Threshold[0] = math.NaN()

	doc := exportString(t, tr)
	assert.Contains(t, doc, `"label": "X[0] <= nan"`)

	tr.Threshold[0] = math.Inf(1)
	doc = exportString(t, tr)
	assert.Contains(t, doc, `"label": "X[0] <= inf"`)
}

func TestExportJSON_FileDestination(t *testing.T) {
	path := filepath.Join(t.TempDir(), "iris.json")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte("x"), 4096), 0o600))

	w, err := ExportJSON(irisTree(t), ToFile(path))
	require.NoError(t, err)
	_, isFile := w.(*os.File)
	assert.True(t, isFile, "exporter should hand back the file it opened")
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, exportString(t, irisTree(t)), string(data))
}

func TestExportJSON_DefaultDestination(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer func() { require.NoError(t, os.Chdir(wd)) }()

	w, err := ExportJSON(singleLeafTree(t), Destination{})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data, err := os.ReadFile(filepath.Join(dir, DefaultFileName))
	require.NoError(t, err)
	assert.Equal(t, `{"error": 0.0000, "samples": 3, "value": [3], "label": "Leaf - 0", "type": "leaf"}`, string(data))
}

func TestExportJSON_UnwritablePath(t *testing.T) {
	_, err := ExportJSON(singleLeafTree(t), ToFile(filepath.Join(t.TempDir(), "missing", "tree.json")))

	var modelErr *scigoErrors.ModelError
	require.True(t, scigoErrors.As(err, &modelErr))
	assert.Equal(t, "open destination", modelErr.Kind)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

type closeTracker struct {
	bytes.Buffer
	closed bool
}

func (c *closeTracker) Close() error {
	c.closed = true
	return nil
}

func TestExportJSON_WriterIsNotClosed(t *testing.T) {
	sink := &closeTracker{}

	w, err := ExportJSON(singleLeafTree(t), ToWriter(sink))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.False(t, sink.closed)
	assert.NotZero(t, sink.Len())

	_, err = ExportJSON(singleLeafTree(t), ToWriter(nil))
	assert.Error(t, err)
}

// trackFiles makes file destinations return in-memory sinks for the rest of the test.
func trackFiles(t *testing.T) map[string]*closeTracker {
	t.Helper()
	files := map[string]*closeTracker{}
	orig := createFile
	createFile = func(path string) (io.WriteCloser, error) {
		f := &closeTracker{}
		files[path] = f
		return f, nil
	}
	t.Cleanup(func() { createFile = orig })
	return files
}

type panickingLogger struct {
	log.Logger
}

func (l panickingLogger) With(...any) log.Logger { return l }

func (panickingLogger) Debug(string, ...any) { panic("logger failed") }

func TestExportJSON_ClosesFileOnPanic(t *testing.T) {
	files := trackFiles(t)

	w, err := ExportJSON(irisTree(t), ToFile("iris.json"), WithLogger(panickingLogger{}))

	assert.Nil(t, w)
	var panicErr *scigoErrors.PanicError
	require.True(t, scigoErrors.As(err, &panicErr))
	assert.Equal(t, "ExportJSON", panicErr.Operation)
	require.Contains(t, files, "iris.json")
	assert.True(t, files["iris.json"].closed)
}

func TestExportJSON_ClosesFileOnError(t *testing.T) {
	files := trackFiles(t)

	_, err := ExportJSON(irisTree(t), ToFile("iris.json"), WithFeatureNames([]string{"a"}))
	require.Error(t, err)
	assert.True(t, files["iris.json"].closed)

	w, err := ExportJSON(irisTree(t), ToFile("ok.json"))
	require.NoError(t, err)
	assert.False(t, files["ok.json"].closed, "the caller closes a successful export")
	require.NoError(t, w.Close())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestExportJSON_WriteFailure(t *testing.T) {
	_, err := ExportJSON(completeTree(t, 8), ToWriter(failingWriter{}))

	var modelErr *scigoErrors.ModelError
	require.True(t, scigoErrors.As(err, &modelErr))
	assert.Equal(t, "write destination", modelErr.Kind)
	assert.Contains(t, err.Error(), "disk full")
}

func TestExportJSON_FromEstimator(t *testing.T) {
	dt, err := NewDecisionTree(irisTree(t), WithInputFeatures(irisFeatureNames))
	require.NoError(t, err)

	got := exportString(t, dt, WithFeatureNames(dt.FeatureNames))
	assert.Equal(t, exportString(t, irisTree(t), WithFeatureNames(irisFeatureNames)), got)

	_, err = ExportJSON(&DecisionTree{}, ToWriter(&bytes.Buffer{}))
	var notFitted *scigoErrors.NotFittedError
	assert.True(t, scigoErrors.As(err, &notFitted))
}

func TestExportJSON_Logging(t *testing.T) {
	logger, _ := log.NewTestLogger(log.LevelDebug)

	_, err := ExportJSON(irisTree(t), ToWriter(&bytes.Buffer{}), WithLogger(logger))
	require.NoError(t, err)

	assert.True(t, logger.ContainsMessage("Export started"))
	assert.True(t, logger.ContainsMessage("Export completed"))
	assert.True(t, logger.ContainsField(log.NodeCountKey, 5.0))
	assert.True(t, logger.ContainsField(log.ValueKindKey, "int"))
	assert.True(t, logger.ContainsField(log.DestinationKey, "writer"))

	entries, err := logger.GetLogEntries()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, entries[0][log.RunIDKey], entries[1][log.RunIDKey])
}

func TestExportJSON_LoggingFailure(t *testing.T) {
	logger, _ := log.NewTestLogger(log.LevelDebug)

	_, err := ExportJSON(completeTree(t, 8), ToWriter(failingWriter{}), WithLogger(logger))
	require.Error(t, err)

	assert.True(t, logger.ContainsMessage("Export failed"))
	assert.False(t, logger.ContainsMessage("Export completed"))
	assert.True(t, logger.ContainsField(log.BytesWrittenKey, 0.0))

	entries, err := logger.GetLogEntries()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Export failed", entries[1]["message"])
	assert.Contains(t, entries[1][log.ErrAttrKey], "disk full")
	assert.Equal(t, entries[0][log.RunIDKey], entries[1][log.RunIDKey])
}

func BenchmarkExportJSON(b *testing.B) {
	tr := completeTree(b, 10)
	var buf bytes.Buffer

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf.Reset()
		if _, err := ExportJSON(tr, ToWriter(&buf)); err != nil {
			b.Fatal(err)
		}
	}
}
