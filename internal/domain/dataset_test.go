package domain

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValue(t *testing.T) {
	t.Run("integer", func(t *testing.T) {
		v := ParseValue(" 42 ")
		assert.Equal(t, KindInteger, v.Kind())
		i, ok := v.Int64()
		require.True(t, ok)
		assert.Equal(t, int64(42), i)
	})

	t.Run("real", func(t *testing.T) {
		v := ParseValue("-12.5")
		assert.Equal(t, KindReal, v.Kind())
		f, ok := v.Float64()
		require.True(t, ok)
		assert.Equal(t, -12.5, f)
	})

	t.Run("text", func(t *testing.T) {
		v := ParseValue("n/a")
		assert.Equal(t, KindText, v.Kind())
		assert.False(t, v.IsNumeric())
		_, ok := v.Float64()
		assert.False(t, ok)
	})

	t.Run("NaN is real", func(t *testing.T) {
		v := ParseValue("NaN")
		assert.Equal(t, KindReal, v.Kind())
		assert.True(t, v.Equal(Real(math.NaN())))
	})
}

func TestValueString(t *testing.T) {
	assert.Equal(t, "3", Int(3).String())
	assert.Equal(t, "3.0", Real(3).String())
	assert.Equal(t, "0.25", Real(0.25).String())
	assert.Equal(t, "1e+21", Real(1e21).String())
	assert.Equal(t, "NaN", Real(math.NaN()).String())
	assert.Equal(t, "abc", Text("abc").String())

	for _, v := range []Value{Int(-7), Real(3), Real(-0.001), Real(1e21), Text("x")} {
		assert.Equal(t, v.Kind(), ParseValue(v.String()).Kind(), "kind of %q", v.String())
	}
}

func TestValueEqual(t *testing.T) {
	assert.True(t, Real(0.1+0.2).Equal(Real(0.3)))
	assert.False(t, Real(1).Equal(Int(1)))
	assert.False(t, Real(math.NaN()).Equal(Real(0)))
	assert.True(t, Text("a").Equal(Text("a")))
}

func TestValueMarshalJSON(t *testing.T) {
	b, err := json.Marshal([]Value{Int(1), Real(2.5), Text("x"), Real(math.Inf(1))})
	require.NoError(t, err)
	assert.JSONEq(t, `[1, 2.5, "x", "+Inf"]`, string(b))
}

func newTestDataset(t *testing.T, header string, rows ...string) *Dataset {
	t.Helper()
	ds := NewDataset(strings.Split(header, ","))
	for _, r := range rows {
		require.NoError(t, ds.AddFields(strings.Split(r, ",")))
	}
	ds.Finalize()
	return ds
}

func kinds(ds *Dataset) []Kind {
	var out []Kind
	for _, c := range ds.Columns() {
		out = append(out, c.Kind)
	}
	return out
}

func TestDataset_Inference(t *testing.T) {
	t.Run("integer, real and text columns", func(t *testing.T) {
		ds := newTestDataset(t, "a,b,c", "1,1.5,x", "2,2,y")
		assert.Equal(t, []Kind{KindInteger, KindReal, KindText}, kinds(ds))

		b1, _ := ds.Value(1, "b")
		assert.Equal(t, Real(2), b1)
	})

	t.Run("numbers in a text column become text", func(t *testing.T) {
		ds := newTestDataset(t, "label", "7", "seven")
		v, _ := ds.Value(0, "label")
		assert.Equal(t, Text("7"), v)
	})

	t.Run("variable columns are real even when integral", func(t *testing.T) {
		ds := newTestDataset(t, "month,TMIN_MN,TMAX_MN,PRCP_TT", "1,-10,-2,50")
		assert.Equal(t, []Kind{KindInteger, KindReal, KindReal, KindReal}, kinds(ds))
	})

	t.Run("empty dataset columns are integer", func(t *testing.T) {
		ds := newTestDataset(t, "a,b")
		assert.Equal(t, 0, ds.Len())
		assert.Equal(t, []Kind{KindInteger, KindInteger}, kinds(ds))
	})
}

func TestDataset_FinalizeOnce(t *testing.T) {
	ds := NewDataset([]string{"a"})
	require.NoError(t, ds.AddFields([]string{"1"}))
	ds.Finalize()
	ds.Finalize()
	assert.True(t, ds.Finalized())
	assert.Equal(t, KindInteger, ds.Columns()[0].Kind)

	err := ds.AddFields([]string{"2"})
	assert.Error(t, err)
	assert.Equal(t, 1, ds.Len())
}

func TestDataset_ArityMismatch(t *testing.T) {
	ds := NewDataset([]string{"a", "b"})
	err := ds.AddFields([]string{"1"})
	assert.ErrorIs(t, err, ErrDecode)
}

func TestDataset_DuplicateNames(t *testing.T) {
	ds := NewDataset([]string{"rep", " rep ", "rep", "rep1x"})
	assert.Equal(t, []string{"rep", "rep1", "rep2", "rep1x"}, ds.Names())
}

func TestDataset_Lookup(t *testing.T) {
	ds := newTestDataset(t, "Month,TMIN_MN", "1,-10")
	assert.Equal(t, -1, ds.ColumnIndex("month"))
	assert.Equal(t, 0, ds.ColumnIndexFold("month"))

	_, ok := ds.Value(3, "TMIN_MN")
	assert.False(t, ok)
	_, ok = ds.Value(0, "missing")
	assert.False(t, ok)
}

func TestDataset_Project(t *testing.T) {
	ds := newTestDataset(t, "month,TMIN_MN,Extra,PRCP_TT", "1,-10,a,50", "2,-8,b,40")
	p := ds.Project(func(_ int, c Column) bool { return c.Name != "Extra" })

	assert.Equal(t, []string{"month", "TMIN_MN", "PRCP_TT"}, p.Names())
	assert.True(t, p.Finalized())
	require.Equal(t, 2, p.Len())
	v, _ := p.Value(1, "PRCP_TT")
	assert.Equal(t, Real(40), v)
	assert.Equal(t, 4, len(ds.Names()), "source is untouched")
}

func TestDataset_TextAndEqual(t *testing.T) {
	ds := newTestDataset(t, "rep,DD", "0,1.5", "1,2")
	assert.Equal(t, "rep,DD\n0,1.5\n1,2.0", ds.Text())

	again := newTestDataset(t, "rep,DD", strings.Split(ds.Text(), "\n")[1:]...)
	assert.True(t, ds.Equal(again))

	other := newTestDataset(t, "rep,DD", "0,1.5", "1,3")
	assert.False(t, ds.Equal(other))
}

func TestDataset_MarshalJSON(t *testing.T) {
	ds := newTestDataset(t, "month,TMIN_MN,Note", "1,-10,cold")
	b, err := json.Marshal(ds)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"columns": [
			{"name": "month", "type": "integer"},
			{"name": "TMIN_MN", "type": "real"},
			{"name": "Note", "type": "text"}
		],
		"records": [[1, -10, "cold"]]
	}`, string(b))

	b, err = json.Marshal(newTestDataset(t, "a"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"columns":[{"name":"a","type":"integer"}],"records":[]}`, string(b))
}
