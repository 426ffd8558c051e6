package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// RCP selects the representative concentration pathway.
type RCP int

const (
	RCP45 RCP = iota // default
	RCP85
)

// QueryValue is the wire form of the scenario.
func (r RCP) QueryValue() string {
	if r == RCP85 {
		return "8_5"
	}
	return "4_5"
}

func (r RCP) String() string {
	if r == RCP85 {
		return "RCP85"
	}
	return "RCP45"
}

// ParseRCP accepts "RCP45", "4.5", "4_5" and their 8.5 counterparts.
func ParseRCP(s string) (RCP, error) {
	switch strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(s)), "RCP") {
	case "", "45", "4.5", "4_5":
		return RCP45, nil
	case "85", "8.5", "8_5":
		return RCP85, nil
	}
	return RCP45, fmt.Errorf("%w: unknown rcp %q", ErrValidation, s)
}

// ClimateModel selects the general or regional climate model used by the server.
type ClimateModel int

const (
	RCM4 ClimateModel = iota // default
	Hadley
	GCM4
)

func (m ClimateModel) String() string {
	switch m {
	case Hadley:
		return "Hadley"
	case GCM4:
		return "GCM4"
	default:
		return "RCM4"
	}
}

// ParseClimateModel matches a model name case-insensitively. Empty means RCM4.
func ParseClimateModel(s string) (ClimateModel, error) {
	switch strings.ToUpper(s) {
	case "", "RCM4":
		return RCM4, nil
	case "HADLEY":
		return Hadley, nil
	case "GCM4":
		return GCM4, nil
	}
	return RCM4, fmt.Errorf("%w: unknown climate model %q", ErrValidation, s)
}

// Period is a 30-year normals window, e.g. "1981_2010".
type Period string

const (
	Period1951to1980 Period = "1951_1980"
	Period1961to1990 Period = "1961_1990"
	Period1971to2000 Period = "1971_2000"
	Period1981to2010 Period = "1981_2010"
	Period1991to2020 Period = "1991_2020"
	Period2001to2030 Period = "2001_2030"
	Period2011to2040 Period = "2011_2040"
	Period2021to2050 Period = "2021_2050"
	Period2031to2060 Period = "2031_2060"
	Period2041to2070 Period = "2041_2070"
	Period2051to2080 Period = "2051_2080"
	Period2061to2090 Period = "2061_2090"
	Period2071to2100 Period = "2071_2100"
)

var periods = []Period{
	Period1951to1980, Period1961to1990, Period1971to2000, Period1981to2010, Period1991to2020,
	Period2001to2030, Period2011to2040, Period2021to2050, Period2031to2060, Period2041to2070,
	Period2051to2080, Period2061to2090, Period2071to2100,
}

// ParsePeriod accepts "1981_2010" or "1981-2010".
func ParsePeriod(s string) (Period, error) {
	p := Period(strings.ReplaceAll(s, "-", "_"))
	for _, known := range periods {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: unknown normals period %q", ErrValidation, s)
}

// Month is a calendar month ordinal, 1 through 12.
type Month int

const (
	January Month = iota + 1
	February
	March
	April
	May
	June
	July
	August
	September
	October
	November
	December
)

var monthDays = [...]int{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

var monthNames = [...]string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// AllMonths lists January through December.
var AllMonths = []Month{January, February, March, April, May, June, July, August, September, October, November, December}

// Valid reports whether m is in 1..12.
func (m Month) Valid() bool { return m >= January && m <= December }

// Days is the fixed day count. Leap years are ignored.
func (m Month) Days() int {
	if !m.Valid() {
		return 0
	}
	return monthDays[m-1]
}

func (m Month) String() string {
	if !m.Valid() {
		return fmt.Sprintf("Month(%d)", int(m))
	}
	return monthNames[m-1]
}

// ParseMonth accepts an ordinal ("3") or an English name or prefix of at least three letters.
func ParseMonth(s string) (Month, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		if m := Month(n); m.Valid() {
			return m, nil
		}
		return 0, fmt.Errorf("%w: month %d out of range", ErrValidation, n)
	}
	if len(s) >= 3 {
		for i, name := range monthNames {
			if strings.HasPrefix(strings.ToLower(name), strings.ToLower(s)) {
				return Month(i + 1), nil
			}
		}
	}
	return 0, fmt.Errorf("%w: unknown month %q", ErrValidation, s)
}

// Variable is a catalogued climate variable.
type Variable struct {
	Code        string
	FieldName   string
	Additive    bool
	Description string
}

// Variables is the catalog of variables requested from the service, in query order.
var Variables = []Variable{
	{Code: "TN", FieldName: "TMIN_MN", Additive: false, Description: "min air temperature"},
	{Code: "TX", FieldName: "TMAX_MN", Additive: false, Description: "max air temperature"},
	{Code: "P", FieldName: "PRCP_TT", Additive: true, Description: "precipitation"},
}

// VariableByField looks up a variable by the column name the server uses for it.
func VariableByField(field string) (Variable, bool) {
	for _, v := range Variables {
		if v.FieldName == field {
			return v, true
		}
	}
	return Variable{}, false
}
