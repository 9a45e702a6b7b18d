package transform

import (
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"

	"datanomics/domain/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeRows(t *testing.T, raw string) []session.Record {
	t.Helper()
	var rows []session.Record
	require.NoError(t, json.Unmarshal([]byte(raw), &rows))
	return rows
}

func TestRemoveDuplicates_KeepsFirstOccurrence(t *testing.T) {
	rows := decodeRows(t, `[{"x":1},{"x":2},{"x":1}]`)

	got := RemoveDuplicates(rows)

	assert.Equal(t, decodeRows(t, `[{"x":1},{"x":2}]`), got)
	assert.Len(t, rows, 3, "input must not be mutated")
}

func TestRemoveDuplicates_IgnoresKeyOrder(t *testing.T) {
	rows := decodeRows(t, `[{"a":1,"b":"z"},{"b":"z","a":1},{"a":1.0,"b":"z"},{"a":2,"b":"z"}]`)

	got := RemoveDuplicates(rows)

	require.Len(t, got, 2)
	assert.Equal(t, []string{"a", "b"}, got[0].Keys())
}

func TestRemoveDuplicates_NumberEquality(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int
	}{
		{"integers above 2^53 stay distinct", `[{"id":9007199254740993},{"id":9007199254740992}]`, 2},
		{"long decimals stay distinct", `[{"x":0.10000000000000000001},{"x":0.1}]`, 2},
		{"same value in different notation", `[{"x":1},{"x":1.0},{"x":1e0},{"x":10e-1}]`, 1},
		{"trailing zeros", `[{"x":2.50},{"x":2.5}]`, 1},
		{"negative zero", `[{"x":0},{"x":-0.0}]`, 1},
		{"huge exponent kept verbatim", `[{"x":1e999999},{"x":1e999999},{"x":2e999999}]`, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, RemoveDuplicates(decodeRows(t, tt.raw)), tt.want)
		})
	}
}

func TestFingerprint_MixedNumericTypes(t *testing.T) {
	tests := []struct {
		name  string
		a, b  interface{}
		equal bool
	}{
		{"float and literal", 0.1, json.Number("0.1"), true},
		{"int and literal", 3, json.Number("3.0"), true},
		{"int64 above 2^53", int64(9007199254740993), json.Number("9007199254740992"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := Fingerprint(session.NewRecord("v", tt.a))
			b := Fingerprint(session.NewRecord("v", tt.b))
			assert.Equal(t, tt.equal, a == b)
		})
	}
}

func TestRemoveDuplicates_DistinguishesNullFromEmptyString(t *testing.T) {
	rows := decodeRows(t, `[{"a":null},{"a":""},{"a":"null"}]`)
	assert.Len(t, RemoveDuplicates(rows), 3)
}

func TestRemoveMissing_DropsRowsWithNullOrEmpty(t *testing.T) {
	rows := decodeRows(t, `[{"a":1,"b":null},{"a":2,"b":3}]`)

	assert.Equal(t, decodeRows(t, `[{"a":2,"b":3}]`), RemoveMissing(rows))

	withBlank := decodeRows(t, `[{"a":"","b":1},{"a":0,"b":false}]`)
	assert.Equal(t, decodeRows(t, `[{"a":0,"b":false}]`), RemoveMissing(withBlank))
}

func TestTransforms_AreIdempotent(t *testing.T) {
	fixtures := []string{
		`[]`,
		`[{"x":1},{"x":2},{"x":1},{"x":null},{"x":""}]`,
		`[{"g":"a","v":1},{"v":1,"g":"a"},{"g":"b","v":null}]`,
	}
	for _, raw := range fixtures {
		rows := decodeRows(t, raw)

		once := RemoveDuplicates(rows)
		assert.Equal(t, once, RemoveDuplicates(once), raw)

		missing := RemoveMissing(rows)
		assert.Equal(t, missing, RemoveMissing(missing), raw)
	}
}

func TestToCSV_EmptyInput(t *testing.T) {
	assert.Equal(t, "", ToCSV(nil))
	assert.Equal(t, "", ToCSV([]session.Record{}))
	assert.Equal(t, "", ToCSV([]session.Record{session.NewRecord()}))
}

func TestToCSV_HeaderFollowsFirstRowOrder(t *testing.T) {
	rows := decodeRows(t, `[{"year":2020,"gdp":1.5,"country":"EG"},{"country":"MA","gdp":null,"year":2021}]`)

	got := ToCSV(rows)

	assert.Equal(t, "year,gdp,country\n2020,1.5,EG\n2021,,MA", got)
}

func TestToCSV_QuotesSeparatorAndQuotes(t *testing.T) {
	rows := []session.Record{
		session.NewRecord("name", `Cairo, Egypt`, "note", `say "hi"`),
	}

	got := ToCSV(rows)

	assert.Equal(t, "name,note\n\"Cairo, Egypt\",\"say \"\"hi\"\"\"", got)
}

func TestToCSV_RoundTripsThroughCSVReader(t *testing.T) {
	rows := []session.Record{
		session.NewRecord("id", 1, "label", "plain", "comment", "a,b"),
		session.NewRecord("id", 2, "label", `quoted "x"`, "comment", nil),
		session.NewRecord("id", 3, "label", "multi\nline", "comment", true),
	}

	records, err := csv.NewReader(strings.NewReader(ToCSV(rows))).ReadAll()
	require.NoError(t, err)

	require.Len(t, records, 4)
	assert.Equal(t, []string{"id", "label", "comment"}, records[0])
	for i, row := range rows {
		for j, key := range records[0] {
			v, _ := row.Get(key)
			assert.Equal(t, FieldString(v), records[i+1][j])
		}
	}
}

func TestToCSV_PlainValuesSplitByLineAndComma(t *testing.T) {
	rows := decodeRows(t, `[{"a":"x","b":10},{"a":"y","b":20}]`)

	lines := strings.Split(ToCSV(rows), "\n")

	require.Len(t, lines, 3)
	assert.Equal(t, []string{"a", "b"}, strings.Split(lines[0], ","))
	assert.Equal(t, []string{"x", "10"}, strings.Split(lines[1], ","))
	assert.Equal(t, []string{"y", "20"}, strings.Split(lines[2], ","))
}
