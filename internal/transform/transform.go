// Package transform holds the dataset operations that must work without the
// backend: missing-value filtering, duplicate elimination and CSV export.
// Every function is pure; inputs are never mutated and nothing panics.
package transform

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"sort"
	"strconv"
	"strings"

	"datanomics/domain/core"
	"datanomics/domain/session"
)

// CSVFilename is the name of the exported cleaned dataset
const CSVFilename = "cleaned_data.csv"

// RemoveMissing drops every row holding a null or empty-string value
func RemoveMissing(rows []session.Record) []session.Record {
	out := make([]session.Record, 0, len(rows))
	for _, row := range rows {
		if !hasMissing(row) {
			out = append(out, row)
		}
	}
	return out
}

func hasMissing(row session.Record) bool {
	for _, key := range row.Keys() {
		v, _ := row.Get(key)
		if isMissing(v) {
			return true
		}
	}
	return false
}

func isMissing(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case json.Number:
		return val == ""
	}
	return false
}

// RemoveDuplicates keeps the first occurrence of each distinct row. Rows are
// equal when they hold the same keys with the same values, in any key order.
func RemoveDuplicates(rows []session.Record) []session.Record {
	seen := make(map[core.RowHash]struct{}, len(rows))
	out := make([]session.Record, 0, len(rows))
	for _, row := range rows {
		h := Fingerprint(row)
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, row)
	}
	return out
}

// Fingerprint hashes the canonical form of a row
func Fingerprint(row session.Record) core.RowHash {
	return core.NewRowHash(canonical(row))
}

// canonical renders a row as JSON with sorted keys
func canonical(row session.Record) []byte {
	keys := row.Keys()
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, _ := json.Marshal(key)
		buf.Write(k)
		buf.WriteByte(':')
		v, _ := row.Get(key)
		buf.Write(canonicalValue(v))
	}
	buf.WriteByte('}')
	return buf.Bytes()
}

func canonicalValue(v interface{}) []byte {
	switch val := v.(type) {
	case session.Record:
		return canonical(val)
	case json.Number:
		return numberKey(val.String())
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return []byte(strconv.FormatFloat(val, 'g', -1, 64))
		}
		return numberKey(strconv.FormatFloat(val, 'g', -1, 64))
	case int:
		return []byte(strconv.Itoa(val))
	case int64:
		return []byte(strconv.FormatInt(val, 10))
	}
	data, err := json.Marshal(v)
	if err != nil {
		return []byte(fmt.Sprintf("%q", fmt.Sprint(v)))
	}
	return data
}

// numberKey renders a decimal literal as an exact reduced fraction, so 1,
// 1.0 and 1e0 collide while 9007199254740993 and 9007199254740992 do not.
// Literals with an exponent too large to expand are kept verbatim.
func numberKey(lit string) []byte {
	if exp := strings.IndexAny(lit, "eE"); exp >= 0 {
		if n, err := strconv.Atoi(lit[exp+1:]); err != nil || n > maxExponent || n < -maxExponent {
			return []byte(lit)
		}
	}
	r, ok := new(big.Rat).SetString(lit)
	if !ok {
		return []byte(lit)
	}
	return []byte(r.RatString())
}

const maxExponent = 400

// ToCSV serializes rows with the first row's keys as header, in their
// original order. Fields holding a comma, quote or line break are quoted.
// Empty input yields "".
func ToCSV(rows []session.Record) string {
	if len(rows) == 0 {
		return ""
	}
	header := rows[0].Keys()
	if len(header) == 0 {
		return ""
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return ""
	}
	line := make([]string, len(header))
	for _, row := range rows {
		for i, key := range header {
			v, _ := row.Get(key)
			line[i] = FieldString(v)
		}
		if err := w.Write(line); err != nil {
			return ""
		}
	}
	w.Flush()
	if w.Error() != nil {
		return ""
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// FieldString is the exported string form of a value; null is ""
func FieldString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case fmt.Stringer:
		return val.String()
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
