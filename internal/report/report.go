// Package report merges per-scenario results into comparison tables.
package report

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"pvyield_simulator/internal/model"
)

// MergedRow is one metric across scenarios, one value per unit count.
type MergedRow struct {
	Label  string    `json:"label"`
	Unit   string    `json:"unit,omitempty"`
	Values []float64 `json:"values"`
}

// Section is one titled block of merged rows.
type Section struct {
	Group model.RowGroup `json:"group"`
	Title string         `json:"title"`
	Rows  []MergedRow    `json:"rows"`
}

var sectionTitles = map[model.RowGroup]string{
	model.GroupGain:        "Yield & use",
	model.GroupEconomics:   "Cost & economics",
	model.GroupEnvironment: "Environment",
	model.GroupBattery:     "Storage",
	model.GroupEfficiency:  "Efficiencies",
	model.GroupLosses:      "Losses",
}

// MergeRows builds one section per row group from results ordered by unit
// count. The scenario without storage reports its without-battery column,
// every other scenario its with-battery column.
func MergeRows(results []*model.Result) []Section {
	if len(results) == 0 || results[0] == nil {
		return nil
	}
	out := make([]Section, 0, len(model.RowGroups))
	for _, g := range model.RowGroups {
		base := results[0].Rows[g]
		sec := Section{Group: g, Title: sectionTitles[g], Rows: make([]MergedRow, len(base))}
		for i, row := range base {
			m := MergedRow{Label: row.Label, Unit: row.Unit, Values: make([]float64, len(results))}
			for j, res := range results {
				if res == nil || i >= len(res.Rows[g]) {
					continue
				}
				r := res.Rows[g][i]
				if res.Units == 0 {
					m.Values[j] = r.WithoutBattery
				} else {
					m.Values[j] = r.WithBattery
				}
			}
			sec.Rows[i] = m
		}
		out = append(out, sec)
	}
	return out
}

// MonthRange is an inclusive run of consecutive months. Start > End wraps
// over the turn of the year.
type MonthRange struct {
	Start, End int
}

func (r MonthRange) String() string {
	if r.Start == r.End {
		return time.Month(r.Start).String()
	}
	return time.Month(r.Start).String() + " to " + time.Month(r.End).String()
}

// MonthRanges groups months 1-12 into consecutive runs. A run touching
// December and one touching January are joined into a single wrapping range.
func MonthRanges(months []int) []MonthRange {
	ms := slices.Clone(months)
	slices.Sort(ms)
	ms = slices.Compact(ms)
	ms = slices.DeleteFunc(ms, func(m int) bool { return m < 1 || m > 12 })
	if len(ms) == 0 {
		return nil
	}

	var out []MonthRange
	cur := MonthRange{Start: ms[0], End: ms[0]}
	for _, m := range ms[1:] {
		if m != cur.End+1 {
			out = append(out, cur)
			cur = MonthRange{Start: m}
		}
		cur.End = m
	}
	out = append(out, cur)

	if n := len(out); n > 1 && out[0].Start == 1 && out[n-1].End == 12 {
		wrap := MonthRange{Start: out[n-1].Start, End: out[0].End}
		out = append([]MonthRange{wrap}, out[1:n-1]...)
	}
	return out
}

// DisabledMonths returns the optimizer's disabled months of the first
// scenario with storage that has any.
func DisabledMonths(results []*model.Result) []int {
	for _, r := range results {
		if r != nil && r.Units > 0 && len(r.DisabledMonths) > 0 {
			return r.DisabledMonths
		}
	}
	return nil
}

// DisabledLabel describes when the storage may be switched off.
func DisabledLabel(months []int) string {
	ranges := MonthRanges(months)
	if len(ranges) == 0 {
		return "not needed"
	}
	parts := make([]string, len(ranges))
	for i, r := range ranges {
		parts[i] = r.String()
	}
	return strings.Join(parts, " and ")
}

// WriteTable prints merged sections as a fixed-width table with one column
// per scenario.
func WriteTable(w io.Writer, sections []Section, units []int) error {
	labelW := len("Metric")
	for _, s := range sections {
		for _, r := range s.Rows {
			labelW = max(labelW, len(r.Label)+len(r.Unit)+3)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, " %-*s", labelW, "Metric")
	for _, u := range units {
		fmt.Fprintf(&b, " │ %10s", unitHeader(u))
	}
	b.WriteString("\n")
	b.WriteString(strings.Repeat("─", labelW+2))
	for range units {
		b.WriteString("┼" + strings.Repeat("─", 12))
	}
	b.WriteString("\n")

	for _, s := range sections {
		fmt.Fprintf(&b, " %s\n", s.Title)
		for _, r := range s.Rows {
			label := r.Label
			if r.Unit != "" {
				label += " [" + r.Unit + "]"
			}
			fmt.Fprintf(&b, " %-*s", labelW, label)
			for i := range units {
				v := 0.0
				if i < len(r.Values) {
					v = r.Values[i]
				}
				fmt.Fprintf(&b, " │ %10.2f", v)
			}
			b.WriteString("\n")
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func unitHeader(units int) string {
	switch units {
	case 0:
		return "no battery"
	case 1:
		return "1 unit"
	default:
		return fmt.Sprintf("%d units", units)
	}
}
