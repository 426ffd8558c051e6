package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// FieldSeparator separates fields in tabular replies.
const FieldSeparator = ","

// Column is a named, typed dataset column.
type Column struct {
	Name string `json:"name"`
	Kind Kind   `json:"-"`
}

// Record is one dataset row.
type Record []Value

// Dataset is an ordered set of typed columns and records. Records are added while the
// dataset is open; Finalize types the columns once and closes it.
type Dataset struct {
	columns   []Column
	records   []Record
	finalized bool
}

// NewDataset creates an open dataset. A repeated column name gets a numeric suffix:
// "rep", "rep" becomes "rep", "rep1".
func NewDataset(names []string) *Dataset {
	ds := &Dataset{columns: make([]Column, 0, len(names))}
	for _, name := range names {
		ds.columns = append(ds.columns, Column{Name: ds.uniqueName(strings.TrimSpace(name)), Kind: KindText})
	}
	return ds
}

func (d *Dataset) uniqueName(name string) string {
	if d.ColumnIndex(name) < 0 {
		return name
	}
	for i := 1; ; i++ {
		candidate := name + strconv.Itoa(i)
		if d.ColumnIndex(candidate) < 0 {
			return candidate
		}
	}
}

// AddFields parses raw fields into a record. The field count must match the columns.
func (d *Dataset) AddFields(fields []string) error {
	rec := make(Record, len(fields))
	for i, f := range fields {
		rec[i] = ParseValue(f)
	}
	return d.AddRecord(rec)
}

// AddRecord appends a record to an open dataset.
func (d *Dataset) AddRecord(rec Record) error {
	if d.finalized {
		return errors.New("dataset is finalized")
	}
	if len(rec) != len(d.columns) {
		return fmt.Errorf("%w: record has %d fields, expected %d", ErrDecode, len(rec), len(d.columns))
	}
	d.records = append(d.records, rec)
	return nil
}

// Finalize infers each column type from all of its records and converts values in
// place. Integer columns named after a catalogued variable are widened to real.
// Calling Finalize again has no effect.
func (d *Dataset) Finalize() {
	if d.finalized {
		return
	}
	for j := range d.columns {
		kind := d.inferKind(j)
		if kind == KindInteger {
			if _, ok := VariableByField(d.columns[j].Name); ok {
				kind = KindReal
			}
		}
		d.columns[j].Kind = kind
		for _, rec := range d.records {
			rec[j] = rec[j].widen(kind)
		}
	}
	d.finalized = true
}

func (d *Dataset) inferKind(j int) Kind {
	kind := KindInteger
	for _, rec := range d.records {
		switch rec[j].Kind() {
		case KindText:
			return KindText
		case KindReal:
			kind = KindReal
		}
	}
	return kind
}

// Finalized reports whether column types are final.
func (d *Dataset) Finalized() bool { return d.finalized }

// Columns returns a copy of the columns.
func (d *Dataset) Columns() []Column {
	return append([]Column(nil), d.columns...)
}

// Names returns the column names in order.
func (d *Dataset) Names() []string {
	names := make([]string, len(d.columns))
	for i, c := range d.columns {
		names[i] = c.Name
	}
	return names
}

// ColumnIndex returns the index of the named column, or -1.
func (d *Dataset) ColumnIndex(name string) int {
	for i, c := range d.columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// ColumnIndexFold is ColumnIndex with case-insensitive matching.
func (d *Dataset) ColumnIndexFold(name string) int {
	for i, c := range d.columns {
		if strings.EqualFold(c.Name, name) {
			return i
		}
	}
	return -1
}

// Len is the number of records.
func (d *Dataset) Len() int { return len(d.records) }

// Records returns the records. Callers must not modify them.
func (d *Dataset) Records() []Record { return d.records }

// Value returns the cell at row i of the named column.
func (d *Dataset) Value(i int, column string) (Value, bool) {
	j := d.ColumnIndex(column)
	if j < 0 || i < 0 || i >= len(d.records) {
		return Value{}, false
	}
	return d.records[i][j], true
}

// Project returns a finalized copy keeping only the columns for which keep returns true.
func (d *Dataset) Project(keep func(index int, c Column) bool) *Dataset {
	var idx []int
	out := &Dataset{finalized: d.finalized}
	for j, c := range d.columns {
		if keep(j, c) {
			idx = append(idx, j)
			out.columns = append(out.columns, c)
		}
	}
	out.records = make([]Record, len(d.records))
	for i, rec := range d.records {
		nr := make(Record, len(idx))
		for k, j := range idx {
			nr[k] = rec[j]
		}
		out.records[i] = nr
	}
	return out
}

// Text renders the dataset in the reply format: a header line then one line per record.
func (d *Dataset) Text() string {
	var b strings.Builder
	b.WriteString(strings.Join(d.Names(), FieldSeparator))
	for _, rec := range d.records {
		b.WriteByte('\n')
		for j, v := range rec {
			if j > 0 {
				b.WriteString(FieldSeparator)
			}
			b.WriteString(v.String())
		}
	}
	return b.String()
}

// Equal compares column names, kinds and values.
func (d *Dataset) Equal(o *Dataset) bool {
	if len(d.columns) != len(o.columns) || len(d.records) != len(o.records) {
		return false
	}
	for j := range d.columns {
		if d.columns[j] != o.columns[j] {
			return false
		}
	}
	for i := range d.records {
		for j := range d.records[i] {
			if !d.records[i][j].Equal(o.records[i][j]) {
				return false
			}
		}
	}
	return true
}

type jsonColumn struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// MarshalJSON encodes the dataset as {"columns":[...],"records":[[...]]}.
func (d *Dataset) MarshalJSON() ([]byte, error) {
	cols := make([]jsonColumn, len(d.columns))
	for i, c := range d.columns {
		cols[i] = jsonColumn{Name: c.Name, Type: c.Kind.String()}
	}
	records := d.records
	if records == nil {
		records = []Record{}
	}
	return json.Marshal(struct {
		Columns []jsonColumn `json:"columns"`
		Records []Record     `json:"records"`
	}{cols, records})
}
