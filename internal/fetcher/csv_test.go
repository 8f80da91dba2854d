package fetcher

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCSV(t *testing.T) {
	in := "Stage,ACV\nNegotiation,\"$144,000\"\n"
	rows, err := ReadCSV(strings.NewReader(in), CSVOptions{})
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Stage", "ACV"},
		{"Negotiation", "$144,000"},
	}, rows)
}

func TestReadCSV_RaggedRowsAllowed(t *testing.T) {
	in := "a,b,c\n1,2\n1,2,3,4\n"
	rows, err := ReadCSV(strings.NewReader(in), CSVOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Len(t, rows[1], 2)
	assert.Len(t, rows[2], 4)
}

func TestReadCSV_Options(t *testing.T) {
	in := "# exported 2026-08-20\na|b\n 1 | 2 \n"
	rows, err := ReadCSV(strings.NewReader(in), CSVOptions{
		Delimiter: '|',
		Comment:   '#',
		TrimSpace: true,
	})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "b"}, {"1", "2"}}, rows)
}

func TestReadCSV_Empty(t *testing.T) {
	rows, err := ReadCSV(strings.NewReader(""), CSVOptions{})
	require.NoError(t, err)
	assert.Empty(t, rows)
}
