package collect

import (
	"sort"
	"strconv"
	"strings"
)

// Statement is a normalized financial statement: one row per fiscal
// period, line items as columns.
type Statement struct {
	Source string         `json:"source"`
	Rows   []StatementRow `json:"rows"`
}

// StatementRow holds one fiscal period's line items.
type StatementRow struct {
	Date  string             `json:"date"`
	Items map[string]float64 `json:"items"`
}

// Empty reports whether the statement carries no rows.
func (s *Statement) Empty() bool { return s == nil || len(s.Rows) == 0 }

// statementFromRows normalizes upstream rows keyed by arbitrary line-item
// names. dateKey names the field holding the fiscal period; common
// alternates are tried when it is absent.
func statementFromRows(source string, rows []map[string]any, dateKey string) *Statement {
	st := &Statement{Source: source}
	for _, row := range rows {
		date := rowDate(row, dateKey)
		if date == "" {
			continue
		}
		items := make(map[string]float64, len(row))
		for k, v := range row {
			if k == dateKey || k == "year" || k == "quarter" {
				continue
			}
			if n, ok := numeric(v); ok {
				items[k] = n
			}
		}
		if len(items) == 0 {
			continue
		}
		st.Rows = append(st.Rows, StatementRow{Date: date, Items: items})
	}
	sortRowsDesc(st.Rows)
	return st
}

func rowDate(row map[string]any, dateKey string) string {
	for _, k := range []string{dateKey, "period", "fiscalDateEnding", "date", "endDate"} {
		if v, ok := row[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// numeric coerces an upstream JSON value to a float64. Alpha Vantage
// reports numbers as strings and missing values as "None".
func numeric(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case string:
		s := strings.TrimSpace(x)
		if s == "" || s == "None" || s == "-" {
			return 0, false
		}
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// Transpose converts an item-major table (line item -> fiscal date ->
// value) into date-major statement rows, most recent first.
func Transpose(items map[string]map[string]float64) []StatementRow {
	byDate := map[string]map[string]float64{}
	for item, series := range items {
		for date, val := range series {
			if byDate[date] == nil {
				byDate[date] = map[string]float64{}
			}
			byDate[date][item] = val
		}
	}
	rows := make([]StatementRow, 0, len(byDate))
	for date, its := range byDate {
		rows = append(rows, StatementRow{Date: date, Items: its})
	}
	sortRowsDesc(rows)
	return rows
}

// MergeStatements unions the two statements by fiscal date. The primary
// wins on conflicting line items; the secondary fills gaps and
// contributes dates the primary lacks.
func MergeStatements(primary, secondary *Statement) *Statement {
	if secondary.Empty() {
		return primary
	}
	if primary.Empty() {
		return secondary
	}
	merged := &Statement{Source: primary.Source + "+" + secondary.Source}
	index := map[string]int{}
	for _, row := range primary.Rows {
		merged.Rows = append(merged.Rows, StatementRow{Date: row.Date, Items: cloneItems(row.Items)})
		index[row.Date] = len(merged.Rows) - 1
	}
	for _, row := range secondary.Rows {
		i, ok := index[row.Date]
		if !ok {
			merged.Rows = append(merged.Rows, StatementRow{Date: row.Date, Items: cloneItems(row.Items)})
			continue
		}
		for k, v := range row.Items {
			if _, exists := merged.Rows[i].Items[k]; !exists {
				merged.Rows[i].Items[k] = v
			}
		}
	}
	sortRowsDesc(merged.Rows)
	return merged
}

func cloneItems(items map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(items))
	for k, v := range items {
		out[k] = v
	}
	return out
}

func sortRowsDesc(rows []StatementRow) {
	sort.Slice(rows, func(i, j int) bool { return rows[i].Date > rows[j].Date })
}
