package tree

import (
	"bytes"
	"encoding/gob"

	"gonum.org/v1/gonum/mat"

	scigoErrors "github.com/YuminosukeSato/sktree/pkg/errors"
)

// ValueKind tags the numeric storage type of a ValueTable.
type ValueKind int

const (
	// FloatValues stores node values as float64 (class fractions, regression means).
	FloatValues ValueKind = iota
	// IntValues stores node values as int64 (raw class counts).
	IntValues
)

func (k ValueKind) String() string {
	if k == IntValues {
		return "int"
	}
	return "float"
}

// ValueTable holds one value array per node. Each row is the raveled
// n_outputs × max_classes block scikit-learn keeps in tree_.value.
//
// The storage kind is fixed when the table is built and decides how the
// exporter renders the numbers: integers without a decimal point, floats in
// their shortest round-trip form.
type ValueTable struct {
	kind   ValueKind
	width  int
	ints   [][]int64
	floats *mat.Dense
}

// NewFloatValueTable builds a float table with one row per node.
// A nil matrix yields an empty table.
func NewFloatValueTable(m *mat.Dense) ValueTable {
	if m == nil {
		return ValueTable{kind: FloatValues}
	}
	_, c := m.Dims()
	return ValueTable{kind: FloatValues, width: c, floats: m}
}

// NewFloatValueTableFromRows copies rows into a float table. All rows must
// have the same length.
func NewFloatValueTableFromRows(rows [][]float64) (ValueTable, error) {
	if len(rows) == 0 {
		return ValueTable{kind: FloatValues}, nil
	}
	width := len(rows[0])
	if width == 0 {
		return ValueTable{}, scigoErrors.NewValueError("NewFloatValueTableFromRows", "value rows must not be empty")
	}
	m := mat.NewDense(len(rows), width, nil)
	for i, row := range rows {
		if len(row) != width {
			return ValueTable{}, scigoErrors.NewDimensionError("NewFloatValueTableFromRows", width, len(row), 1)
		}
		m.SetRow(i, row)
	}
	return NewFloatValueTable(m), nil
}

// NewIntValueTable builds an integer table. All rows must have the same length.
func NewIntValueTable(rows [][]int64) (ValueTable, error) {
	vt := ValueTable{kind: IntValues, ints: rows}
	if len(rows) == 0 {
		return vt, nil
	}
	vt.width = len(rows[0])
	for _, row := range rows {
		if len(row) != vt.width {
			return ValueTable{}, scigoErrors.NewDimensionError("NewIntValueTable", vt.width, len(row), 1)
		}
	}
	return vt, nil
}

// Kind returns the storage kind.
func (v ValueTable) Kind() ValueKind { return v.kind }

// Width returns the number of entries per node.
func (v ValueTable) Width() int { return v.width }

// Len returns the number of nodes the table covers.
func (v ValueTable) Len() int {
	if v.kind == IntValues {
		return len(v.ints)
	}
	if v.floats == nil {
		return 0
	}
	r, _ := v.floats.Dims()
	return r
}

// Row returns a copy of the values of node id as float64.
func (v ValueTable) Row(id int) []float64 {
	out := make([]float64, v.width)
	if v.kind == IntValues {
		for j, x := range v.ints[id] {
			out[j] = float64(x)
		}
		return out
	}
	return mat.Row(out, id, v.floats)
}

// appendJSON appends the values of node id as a JSON array, "[a, b, c]".
func (v ValueTable) appendJSON(buf []byte, id int) []byte {
	buf = append(buf, '[')
	if v.kind == IntValues {
		for j, x := range v.ints[id] {
			if j > 0 {
				buf = append(buf, ", "...)
			}
			buf = appendInt(buf, x)
		}
	} else {
		for j := 0; j < v.width; j++ {
			if j > 0 {
				buf = append(buf, ", "...)
			}
			buf = appendFloat(buf, v.floats.At(id, j))
		}
	}
	return append(buf, ']')
}

// valueTableGob is the wire form used by gob persistence.
type valueTableGob struct {
	Kind   ValueKind
	Width  int
	Ints   [][]int64
	Floats [][]float64
}

// GobEncode implements gob.GobEncoder.
func (v ValueTable) GobEncode() ([]byte, error) {
	w := valueTableGob{Kind: v.kind, Width: v.width, Ints: v.ints}
	if v.kind == FloatValues {
		for i := 0; i < v.Len(); i++ {
			w.Floats = append(w.Floats, v.Row(i))
		}
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(w); err != nil {
		return nil, scigoErrors.Wrap(err, "encode value table")
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder.
func (v *ValueTable) GobDecode(data []byte) error {
	var w valueTableGob
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&w); err != nil {
		return scigoErrors.Wrap(err, "decode value table")
	}
	var (
		vt  ValueTable
		err error
	)
	if w.Kind == IntValues {
		vt, err = NewIntValueTable(w.Ints)
	} else {
		vt, err = NewFloatValueTableFromRows(w.Floats)
	}
	if err != nil {
		return err
	}
	*v = vt
	return nil
}
