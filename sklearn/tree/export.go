package tree

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	scigoErrors "github.com/YuminosukeSato/sktree/pkg/errors"
	"github.com/YuminosukeSato/sktree/pkg/log"
)

// DefaultFileName is the file ExportJSON creates when no destination is given.
const DefaultFileName = "tree.json"

// Source is anything that can hand out a fitted tree: a *Tree itself or an
// estimator wrapping one.
type Source interface {
	TreeStructure() (*Tree, error)
}

type destinationKind int

const (
	destDefault destinationKind = iota
	destPath
	destWriter
)

// Destination selects where ExportJSON writes. The zero value means
// DefaultFileName in the current working directory.
type Destination struct {
	kind destinationKind
	path string
	w    io.Writer
}

// ToFile writes to path, creating or truncating it.
func ToFile(path string) Destination {
	return Destination{kind: destPath, path: path}
}

// ToWriter writes to an already open sink. ExportJSON never closes it.
func ToWriter(w io.Writer) Destination {
	return Destination{kind: destWriter, w: w}
}

// String describes the destination for logs.
func (d Destination) String() string {
	switch d.kind {
	case destPath:
		return d.path
	case destWriter:
		return "writer"
	default:
		return DefaultFileName
	}
}

// createFile opens file destinations.
var createFile = func(path string) (io.WriteCloser, error) {
	return os.Create(path)
}

func (d Destination) open(op string) (io.WriteCloser, error) {
	switch d.kind {
	case destWriter:
		if d.w == nil {
			return nil, scigoErrors.NewValidationError("destination", "writer must not be nil", nil)
		}
		return nopWriteCloser{d.w}, nil
	case destPath:
		f, err := createFile(d.path)
		if err != nil {
			return nil, scigoErrors.NewModelError(op, "open destination", err)
		}
		return f, nil
	default:
		f, err := createFile(DefaultFileName)
		if err != nil {
			return nil, scigoErrors.NewModelError(op, "open destination", err)
		}
		return f, nil
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

type exportConfig struct {
	rootID       int
	featureNames []string
	logger       log.Logger
}

// ExportOption configures ExportJSON.
type ExportOption func(*exportConfig)

// WithRootID starts the traversal at node id instead of the root (0).
func WithRootID(id int) ExportOption {
	return func(c *exportConfig) {
		c.rootID = id
	}
}

// WithFeatureNames labels splits with names[feature] instead of "X[feature]".
// A nil slice means no table.
func WithFeatureNames(names []string) ExportOption {
	return func(c *exportConfig) {
		c.featureNames = names
	}
}

// WithLogger overrides the logger, which defaults to the "tree.export"
// logger from pkg/log.
func WithLogger(logger log.Logger) ExportOption {
	return func(c *exportConfig) {
		c.logger = logger
	}
}

// ExportJSON writes the subtree rooted at the configured node as one JSON
// object per node, depth first, left child before right:
//
//	{"error": 0.5000, "samples": 100, "value": [50, 50], "label": "X[0] <= 2.50", "type": "split", "children": [{...}, {...}]}
//
// "error" is the impurity with four decimals, "value" the node's value row,
// and leaves are labelled "Leaf - <id>". Output is streamed while the tree is
// walked, so on error the destination may hold a truncated document.
//
// The returned WriteCloser is the sink that was written. For a file opened by
// ExportJSON the caller must Close it; for ToWriter destinations Close is a
// no-op and the caller keeps ownership of the original writer.
func ExportJSON(src Source, dst Destination, opts ...ExportOption) (out io.WriteCloser, err error) {
	const op = "ExportJSON"
	// A file opened here is closed on any failure, including a recovered panic.
	var sink io.WriteCloser
	defer func() {
		if err != nil && sink != nil && dst.kind != destWriter {
			_ = sink.Close()
		}
	}()
	defer scigoErrors.Recover(&err, op)

	cfg := exportConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	logger := cfg.logger
	if logger == nil {
		logger = log.GetLoggerWithName("tree.export")
	}
	logger = logger.With(log.RunIDKey, uuid.NewString(), log.OperationKey, log.OperationExport)

	t, err := src.TreeStructure()
	if err != nil {
		return nil, err
	}
	if err := t.checkShape(op); err != nil {
		return nil, err
	}
	if cfg.rootID == TreeLeaf {
		return nil, scigoErrors.NewInvalidNodeError(op, TreeLeaf, -1)
	}
	if cfg.rootID < 0 || cfg.rootID >= t.NodeCount() {
		return nil, scigoErrors.NewValidationError("root_id", fmt.Sprintf("must be in [0, %d)", t.NodeCount()), cfg.rootID)
	}

	sink, err = dst.open(op)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	logger.Debug("Export started",
		log.NodeCountKey, t.NodeCount(),
		log.RootIDKey, cfg.rootID,
		log.ValueKindKey, t.Value.Kind().String(),
		log.DestinationKey, dst.String(),
	)

	cw := &countingWriter{w: sink}
	e := &jsonExporter{
		tree:  t,
		names: cfg.featureNames,
		w:     bufio.NewWriter(cw),
	}
	walkErr := e.recurse(cfg.rootID, -1, 0)
	flushErr := e.w.Flush()
	if walkErr == nil && flushErr != nil {
		walkErr = scigoErrors.NewModelError(op, "write destination", flushErr)
	}
	if walkErr != nil {
		logger.Debug("Export failed", walkErr, log.BytesWrittenKey, cw.n)
		return nil, walkErr
	}

	logger.Debug("Export completed",
		log.BytesWrittenKey, cw.n,
		log.DurationMsKey, time.Since(started).Milliseconds(),
	)
	return sink, nil
}

// jsonExporter streams node fragments to w.
type jsonExporter struct {
	tree    *Tree
	names   []string
	w       *bufio.Writer
	scratch []byte
}

func (e *jsonExporter) recurse(nodeID, parent, depth int) error {
	const op = "ExportJSON"
	t := e.tree
	if nodeID == TreeLeaf {
		return scigoErrors.NewInvalidNodeError(op, TreeLeaf, parent)
	}
	if nodeID < 0 || nodeID >= t.NodeCount() {
		return scigoErrors.NewMalformedTreeError(op, parent, fmt.Sprintf("child %d out of range [0, %d)", nodeID, t.NodeCount()))
	}
	// A path longer than the node count must revisit a node.
	if depth >= t.NodeCount() {
		return scigoErrors.NewMalformedTreeError(op, nodeID, "cycle detected")
	}

	buf := append(e.scratch[:0], '{')
	buf, err := e.appendNode(buf, nodeID)
	if err != nil {
		return err
	}
	e.scratch = buf
	if err := e.write(buf); err != nil {
		return err
	}

	left := t.ChildrenLeft[nodeID]
	if left != TreeLeaf {
		if err := e.writeString(`, "children": [`); err != nil {
			return err
		}
		if err := e.recurse(left, nodeID, depth+1); err != nil {
			return err
		}
		if err := e.writeString(", "); err != nil {
			return err
		}
		if err := e.recurse(t.ChildrenRight[nodeID], nodeID, depth+1); err != nil {
			return err
		}
		if err := e.writeString("]"); err != nil {
			return err
		}
	}
	return e.writeString("}")
}

// appendNode appends the fields of one node, without braces or children.
func (e *jsonExporter) appendNode(buf []byte, nodeID int) ([]byte, error) {
	t := e.tree
	buf = append(buf, `"error": `...)
	buf = appendFixed(buf, t.Impurity[nodeID], 4)
	buf = append(buf, `, "samples": `...)
	buf = strconv.AppendInt(buf, int64(t.NNodeSamples[nodeID]), 10)
	buf = append(buf, `, "value": `...)
	buf = t.Value.appendJSON(buf, nodeID)

	var label, nodeType string
	if t.ChildrenLeft[nodeID] != TreeLeaf {
		feature, err := e.featureLabel(nodeID)
		if err != nil {
			return nil, err
		}
		label = feature + " <= " + string(appendLabelFixed(nil, t.Threshold[nodeID], 2))
		nodeType = "split"
	} else {
		label = "Leaf - " + strconv.Itoa(nodeID)
		nodeType = "leaf"
	}

	quoted, err := json.MarshalWithOption(label, json.DisableHTMLEscape())
	if err != nil {
		return nil, scigoErrors.Wrapf(err, "encode label of node %d", nodeID)
	}
	buf = append(buf, `, "label": `...)
	buf = append(buf, quoted...)
	buf = append(buf, `, "type": "`...)
	buf = append(buf, nodeType...)
	return append(buf, '"'), nil
}

func (e *jsonExporter) featureLabel(nodeID int) (string, error) {
	feature := e.tree.Feature[nodeID]
	if e.names == nil {
		return "X[" + strconv.Itoa(feature) + "]", nil
	}
	if feature < 0 || feature >= len(e.names) {
		return "", scigoErrors.NewValidationError("feature_names",
			fmt.Sprintf("node %d splits on feature %d but %d names were given", nodeID, feature, len(e.names)), feature)
	}
	return e.names[feature], nil
}

func (e *jsonExporter) write(b []byte) error {
	if _, err := e.w.Write(b); err != nil {
		return scigoErrors.NewModelError("ExportJSON", "write destination", err)
	}
	return nil
}

func (e *jsonExporter) writeString(s string) error {
	if _, err := e.w.WriteString(s); err != nil {
		return scigoErrors.NewModelError("ExportJSON", "write destination", err)
	}
	return nil
}

// countingWriter counts bytes that reached the sink.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
