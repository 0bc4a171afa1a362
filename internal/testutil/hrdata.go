// Package testutil builds small synthetic HR tables for tests.
package testutil

import (
	"math/rand/v2"
	"strconv"

	"github.com/YuminosukeSato/attrition/dataset"
)

// Header is the column layout of SyntheticHR, a subset of the IBM HR data set.
var Header = []string{
	"Age", "Attrition", "BusinessTravel", "Department", "EmployeeCount",
	"EmployeeNumber", "JobSatisfaction", "MonthlyIncome", "Over18",
	"OverTime", "StandardHours", "YearsAtCompany",
}

var (
	travel      = []string{"Non-Travel", "Travel_Rarely", "Travel_Frequently"}
	departments = []string{"Human Resources", "Research & Development", "Sales"}
)

// SyntheticHR returns n rows where attrition is driven by overtime, low
// income and low job satisfaction, so a forest can learn it.
func SyntheticHR(n int, seed uint64) *dataset.Table {
	r := rand.New(rand.NewPCG(seed, seed))
	rows := make([][]string, n)
	for i := range rows {
		age := 20 + r.IntN(40)
		sat := 1 + r.IntN(4)
		income := 2000 + r.IntN(15000)
		overtime := r.IntN(3) == 0
		years := r.IntN(age - 18)

		risk := 0.0
		if overtime {
			risk += 0.45
		}
		if income < 5000 {
			risk += 0.3
		}
		if sat == 1 {
			risk += 0.2
		}
		attrition := "No"
		if risk+r.Float64()*0.2 > 0.6 {
			attrition = "Yes"
		}

		ot := "No"
		if overtime {
			ot = "Yes"
		}
		rows[i] = []string{
			strconv.Itoa(age),
			attrition,
			travel[r.IntN(len(travel))],
			departments[r.IntN(len(departments))],
			"1",
			strconv.Itoa(i + 1),
			strconv.Itoa(sat),
			strconv.Itoa(income),
			"Y",
			ot,
			"80",
			strconv.Itoa(years),
		}
	}
	t, err := dataset.NewTable(append([]string(nil), Header...), rows)
	if err != nil {
		panic(err)
	}
	return t
}

// Imbalanced returns n rows of which only positives are "Yes".
func Imbalanced(n, positives int) *dataset.Table {
	rows := make([][]string, n)
	for i := range rows {
		attrition := "No"
		if i < positives {
			attrition = "Yes"
		}
		rows[i] = []string{
			strconv.Itoa(25 + i),
			attrition,
			travel[i%len(travel)],
			departments[i%len(departments)],
			"1",
			strconv.Itoa(i + 1),
			strconv.Itoa(1 + i%4),
			strconv.Itoa(3000 + 250*i),
			"Y",
			[]string{"Yes", "No"}[i%2],
			"80",
			strconv.Itoa(i % 10),
		}
	}
	t, err := dataset.NewTable(append([]string(nil), Header...), rows)
	if err != nil {
		panic(err)
	}
	return t
}

// WithoutColumn returns a copy of t without the named column.
func WithoutColumn(t *dataset.Table, name string) *dataset.Table {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return t.Clone()
	}
	header := make([]string, 0, len(t.Header)-1)
	header = append(header, t.Header[:idx]...)
	header = append(header, t.Header[idx+1:]...)
	rows := make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		rows[i] = make([]string, 0, len(row)-1)
		rows[i] = append(rows[i], row[:idx]...)
		rows[i] = append(rows[i], row[idx+1:]...)
	}
	out, err := dataset.NewTable(header, rows)
	if err != nil {
		panic(err)
	}
	return out
}
