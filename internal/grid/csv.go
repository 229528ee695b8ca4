package grid

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// ReadCSV reads a delimited text export. The delimiter is sniffed from the
// first non-blank line (";" wins ties, as Brazilian bank exports use it).
// Every field stays text: "1.500" is a thousands-separated amount and
// "000123" a document number, so only the parsers know how to read them.
func ReadCSV(r io.Reader) (Grid, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading CSV: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = sniffDelimiter(data)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading CSV: %w", err)
	}

	g := make(Grid, len(records))
	for i, rec := range records {
		row := make(Row, len(rec))
		for j, field := range rec {
			row[j] = csvCell(field)
		}
		g[i] = row
	}
	return g, nil
}

func csvCell(field string) Cell {
	if field == "" {
		return Cell{}
	}
	return Text(field)
}

func sniffDelimiter(data []byte) rune {
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if strings.Count(line, ";") >= strings.Count(line, ",") && strings.Contains(line, ";") {
			return ';'
		}
		return ','
	}
	return ','
}
