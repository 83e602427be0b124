// Package csvimport parses the fixtures and results files uploaded by the
// contest admin.
package csvimport

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/okian/predictor/internal/domain/model"
)

// Required header columns.
var (
	FixtureColumns = []string{"match_id", "match_date", "team_a", "team_b", "week"}
	ResultColumns  = []string{"match_id", "winner"}
)

// RowError reports a bad value on a 1-based file line.
type RowError struct {
	Line   int
	Column string
	Err    error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d, column %s: %v", e.Line, e.Column, e.Err)
}

func (e *RowError) Unwrap() []error { return []error{ErrInvalidRow, e.Err} }

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseFixtures reads a fixtures CSV. Extra columns are ignored; a blank
// week leaves the fixture unassigned.
func ParseFixtures(r io.Reader) ([]model.Fixture, error) {
	tbl, err := readTable(r, FixtureColumns)
	if err != nil {
		return nil, err
	}
	out := make([]model.Fixture, 0, len(tbl.rows))
	for _, row := range tbl.rows {
		line := row.line
		f := model.Fixture{
			MatchID: tbl.get(row, "match_id"),
			TeamA:   tbl.get(row, "team_a"),
			TeamB:   tbl.get(row, "team_b"),
		}
		if f.MatchID == "" {
			return nil, &RowError{Line: line, Column: "match_id", Err: errors.New("empty")}
		}
		if f.TeamA == "" || f.TeamB == "" {
			return nil, &RowError{Line: line, Column: "team_a/team_b", Err: errors.New("empty team")}
		}
		if f.TeamA == f.TeamB {
			return nil, &RowError{Line: line, Column: "team_b", Err: fmt.Errorf("%q plays itself", f.TeamA)}
		}
		f.MatchDate, err = ParseMatchDate(tbl.get(row, "match_date"))
		if err != nil {
			return nil, &RowError{Line: line, Column: "match_date", Err: err}
		}
		if w := tbl.get(row, "week"); w != "" {
			n, err := strconv.Atoi(w)
			if err != nil {
				return nil, &RowError{Line: line, Column: "week", Err: err}
			}
			f.Week = &n
		}
		out = append(out, f)
	}
	return out, nil
}

// ParseResults reads a results CSV.
func ParseResults(r io.Reader) ([]model.Result, error) {
	tbl, err := readTable(r, ResultColumns)
	if err != nil {
		return nil, err
	}
	out := make([]model.Result, 0, len(tbl.rows))
	for _, row := range tbl.rows {
		res := model.Result{MatchID: tbl.get(row, "match_id"), Winner: tbl.get(row, "winner")}
		if res.MatchID == "" {
			return nil, &RowError{Line: row.line, Column: "match_id", Err: errors.New("empty")}
		}
		if res.Winner == "" {
			return nil, &RowError{Line: row.line, Column: "winner", Err: errors.New("empty")}
		}
		out = append(out, res)
	}
	return out, nil
}

// ParseMatchDate accepts RFC3339 and the common ISO variants without zone,
// which are read as UTC.
func ParseMatchDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

type record struct {
	line   int
	fields []string
}

type table struct {
	index map[string]int
	rows  []record
}

func (t table) get(row record, col string) string {
	i := t.index[col]
	if i >= len(row.fields) {
		return ""
	}
	return strings.TrimSpace(row.fields[i])
}

func readTable(r io.Reader, required []string) (table, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return table{}, fmt.Errorf("read csv: %w", err)
	}
	text, err := decodeText(raw)
	if err != nil {
		return table{}, err
	}

	cr := csv.NewReader(strings.NewReader(text))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return table{}, ErrEmpty
	}
	if err != nil {
		return table{}, fmt.Errorf("%w: %w", ErrInvalidRow, err)
	}

	t := table{index: make(map[string]int, len(header))}
	for i, name := range header {
		t.index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	var missing []string
	for _, col := range required {
		if _, ok := t.index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return table{}, fmt.Errorf("%w: %s (found %s)", ErrMissingColumns,
			strings.Join(missing, ", "), strings.Join(header, ", "))
	}
	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return table{}, fmt.Errorf("%w: %w", ErrInvalidRow, err)
		}
		if isBlank(fields) {
			continue
		}
		line, _ := cr.FieldPos(0)
		t.rows = append(t.rows, record{line: line, fields: fields})
	}
	return t, nil
}

// decodeText strips a UTF-8 BOM and falls back to Latin-1 for bytes that
// are not valid UTF-8.
func decodeText(raw []byte) (string, error) {
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))
	if utf8.Valid(raw) {
		return string(raw), nil
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("decode csv: %w", err)
	}
	return string(out), nil
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
