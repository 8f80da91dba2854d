package fetcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func TestLocalSource_Fetch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "note.txt"), []byte("met with Janet Kim"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden"), []byte("skip me"), 0o644))

	sub := filepath.Join(dir, "calls")
	require.NoError(t, os.Mkdir(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "demo.txt"), []byte("Sarah Chen: hello"), 0o644))

	s := &LocalSource{Paths: []string{dir}}
	docs, err := s.Fetch(context.Background(), "deal-1")
	require.NoError(t, err)
	require.Len(t, docs, 2, "dotfiles are skipped")

	for _, d := range docs {
		assert.Equal(t, "deal-1", d.DealID)
		assert.NotEmpty(t, d.ContentHash)
	}
}

func TestLocalSource_FetchSingleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quote.txt")
	require.NoError(t, os.WriteFile(path, []byte("Total: $150,000"), 0o644))

	s := &LocalSource{Paths: []string{path}}
	docs, err := s.Fetch(context.Background(), "deal-1")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	// The path is the document ID so classification signals survive.
	assert.Equal(t, path, docs[0].ID)
	assert.Equal(t, "Total: $150,000", docs[0].Text)
}

func TestLocalSource_MissingPath(t *testing.T) {
	s := &LocalSource{Paths: []string{filepath.Join(t.TempDir(), "absent.txt")}}
	_, err := s.Fetch(context.Background(), "deal-1")
	assert.Error(t, err)
}

func TestFlattenRows(t *testing.T) {
	rows := [][]string{
		{"Stage", "ACV", "Close Date"},
		{"Negotiation", "$144,000", "2026-09-30"},
		{"Proposal", "", "2026-11-01"},
	}
	text := FlattenRows(rows)
	assert.Equal(t,
		"Stage: Negotiation\nACV: $144,000\nClose Date: 2026-09-30\n\n"+
			"Stage: Proposal\nClose Date: 2026-11-01\n\n",
		text)
}

func TestFlattenRows_NoHeaderForExtraCells(t *testing.T) {
	rows := [][]string{
		{"Stage"},
		{"Negotiation", "overflow"},
	}
	assert.Equal(t, "Stage: Negotiation\noverflow\n\n", FlattenRows(rows))
}

func TestFlattenRows_Empty(t *testing.T) {
	assert.Equal(t, "", FlattenRows(nil))
	assert.Equal(t, "", FlattenRows([][]string{{"only", "header"}}))
}

func TestLocalSource_FlattensCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.csv")
	require.NoError(t, os.WriteFile(path,
		[]byte("Stage,ACV\nNegotiation,\"$144,000\"\n"), 0o644))

	s := &LocalSource{Paths: []string{path}}
	docs, err := s.Fetch(context.Background(), "deal-1")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Stage: Negotiation\nACV: $144,000\n\n", docs[0].Text)
}

func TestLocalSource_FlattensXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.xlsx")

	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Opportunities")
	require.NoError(t, err)
	for _, row := range [][]string{
		{"Stage", "ACV"},
		{"Negotiation", "$144,000"},
	} {
		r := sheet.AddRow()
		for _, cell := range row {
			r.AddCell().SetString(cell)
		}
	}
	require.NoError(t, f.Save(path))

	s := &LocalSource{Paths: []string{path}}
	docs, err := s.Fetch(context.Background(), "deal-1")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Stage: Negotiation\nACV: $144,000\n\n", docs[0].Text)
}
