package fetcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/deal-intake/internal/model"
)

// LocalSource loads documents from local files and directories. The
// document ID is the path as given, so origin-path classification signals
// survive intake.
type LocalSource struct {
	Paths []string
}

// Fetch reads every path, walking directories. Unreadable entries fail
// the whole fetch; intake should not silently process half a batch.
func (s *LocalSource) Fetch(ctx context.Context, dealID string) ([]model.Document, error) {
	var docs []model.Document
	for _, p := range s.Paths {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "fetcher: fetch cancelled")
		}
		info, err := os.Stat(p)
		if err != nil {
			return nil, eris.Wrapf(err, "fetcher: stat %s", p)
		}
		if !info.IsDir() {
			doc, err := loadFile(dealID, p)
			if err != nil {
				return nil, err
			}
			docs = append(docs, doc)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
				return nil
			}
			doc, err := loadFile(dealID, path)
			if err != nil {
				return err
			}
			docs = append(docs, doc)
			return nil
		})
		if err != nil {
			return nil, eris.Wrapf(err, "fetcher: walk %s", p)
		}
	}
	zap.L().Debug("fetcher: loaded local documents",
		zap.String("deal", dealID),
		zap.Int("count", len(docs)),
	)
	return docs, nil
}

// loadFile reads one file into a Document, flattening tabular formats.
func loadFile(dealID, path string) (model.Document, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		text, err := FlattenCSVFile(path)
		if err != nil {
			return model.Document{}, err
		}
		return model.NewDocument(dealID, path, text), nil
	case ".xlsx":
		rows, err := ReadXLSX(path, XLSXOptions{})
		if err != nil {
			return model.Document{}, err
		}
		return model.NewDocument(dealID, path, FlattenRows(rows)), nil
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return model.Document{}, eris.Wrapf(err, "fetcher: read %s", path)
		}
		return model.NewDocument(dealID, path, string(data)), nil
	}
}

// FlattenRows renders tabular rows as labeled key-value text. The first
// row supplies labels; each later row becomes a "Label: value" block.
// Cells without a header keep their raw value on its own line.
func FlattenRows(rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}
	header := rows[0]
	var b strings.Builder
	for _, row := range rows[1:] {
		for i, cell := range row {
			cell = strings.TrimSpace(cell)
			if cell == "" {
				continue
			}
			if i < len(header) && strings.TrimSpace(header[i]) != "" {
				b.WriteString(strings.TrimSpace(header[i]))
				b.WriteString(": ")
			}
			b.WriteString(cell)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}
