package excel

import (
	"bytes"
	"encoding/csv"
	"testing"

	"datanomics/domain/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrite_RoundTripsThroughRead(t *testing.T) {
	rows := []session.Record{
		session.NewRecord("year", 2020, "country", "EG", "gdp", 1.5),
		session.NewRecord("year", 2021, "country", "MA", "gdp", nil),
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, rows))

	table, err := Read(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, []string{"year", "country", "gdp"}, table.Headers)
	assert.Equal(t, [][]string{{"2020", "EG", "1.5"}, {"2021", "MA", ""}}, table.Rows)
}

func TestWrite_RejectsEmpty(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, Write(&buf, nil))
}

func TestToCSV_ConvertsWorkbook(t *testing.T) {
	rows := []session.Record{session.NewRecord("a", "x,y", "b", 3)}
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, rows))

	out, err := ToCSV(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "b"}, {"x,y", "3"}}, records)
}
