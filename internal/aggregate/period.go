// Package aggregate reduces monthly climate normals to a single period record.
package aggregate

import (
	"errors"
	"fmt"
	"math"

	"github.com/couchcryptid/biosim-client/internal/domain"
)

// MonthColumn is the column holding the month ordinal in monthly normals.
const MonthColumn = "month"

// Period reduces a dataset holding one record per month to a single record over months.
// Intensive variables are day-weighted means, additive variables are plain sums. Months
// may repeat; each occurrence counts again.
//
// Every catalogued variable must have a column in monthly. The output has one real
// column per variable, named after the server field.
func Period(monthly *domain.Dataset, months []domain.Month) (*domain.Dataset, error) {
	if len(months) == 0 {
		return nil, fmt.Errorf("%w: at least one month is required", domain.ErrValidation)
	}
	byMonth, err := indexByMonth(monthly)
	if err != nil {
		return nil, err
	}

	type tracked struct {
		domain.Variable
		col int
	}
	vars := make([]tracked, len(domain.Variables))
	for k, v := range domain.Variables {
		j := monthly.ColumnIndex(v.FieldName)
		if j < 0 {
			return nil, fmt.Errorf("%w: variable %s has no column", domain.ErrAggregation, v.FieldName)
		}
		vars[k] = tracked{Variable: v, col: j}
	}

	totals := make([]float64, len(vars))
	days := 0
	for _, m := range months {
		rec, ok := byMonth[m]
		if !ok {
			return nil, fmt.Errorf("%w: month %s is missing", domain.ErrAggregation, m)
		}
		for k, v := range vars {
			x, ok := rec[v.col].Float64()
			if !ok {
				return nil, fmt.Errorf("%w: %s has no numeric %s value", domain.ErrAggregation, m, v.FieldName)
			}
			if v.Additive {
				totals[k] += x
			} else {
				totals[k] += x * float64(m.Days())
			}
		}
		days += m.Days()
	}

	names := make([]string, len(vars))
	out := make(domain.Record, len(vars))
	for k, v := range vars {
		names[k] = v.FieldName
		if v.Additive {
			out[k] = domain.Real(totals[k])
		} else {
			out[k] = domain.Real(totals[k] / float64(days))
		}
	}
	ds := domain.NewDataset(names)
	if err := ds.AddRecord(out); err != nil {
		return nil, err
	}
	ds.Finalize()
	return ds, nil
}

// Annual aggregates over the twelve months.
func Annual(monthly *domain.Dataset) (*domain.Dataset, error) {
	return Period(monthly, domain.AllMonths)
}

var errNoMonthColumn = errors.New("dataset has no month column")

// indexByMonth maps month ordinals to records. A later record for the same month
// replaces an earlier one.
func indexByMonth(ds *domain.Dataset) (map[domain.Month]domain.Record, error) {
	j := ds.ColumnIndexFold(MonthColumn)
	if j < 0 {
		return nil, fmt.Errorf("%w: %w", domain.ErrAggregation, errNoMonthColumn)
	}
	idx := make(map[domain.Month]domain.Record, ds.Len())
	for i, rec := range ds.Records() {
		f, ok := rec[j].Float64()
		if !ok || f != math.Trunc(f) || !domain.Month(f).Valid() {
			return nil, fmt.Errorf("%w: record %d has invalid month %q", domain.ErrAggregation, i, rec[j].String())
		}
		idx[domain.Month(f)] = rec
	}
	return idx, nil
}
