package preview

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

// candidate delimiters in preference order
var delimiters = []rune{',', ';', '\t', '|'}

const delimiterSampleLines = 20

type csvRenderer struct {
	maxRows int
}

func (r csvRenderer) Render(ctx context.Context, src *Source) (*Document, error) {
	body, err := src.Body(ctx)
	if err != nil {
		return nil, err
	}

	text, enc := decodeText(body.Data, body.Truncated)
	if body.Truncated {
		// the last line is most likely cut short
		if idx := strings.LastIndexByte(text, '\n'); idx >= 0 {
			text = text[:idx+1]
		}
	}
	if strings.TrimSpace(text) == "" {
		return nil, unparseable("empty table")
	}

	delim := detectDelimiter(text, src.Name, src.ContentType)
	table, err := parseTable(text, delim, r.maxRows)
	if err != nil {
		return nil, unparseable("invalid CSV: %v", err)
	}

	doc := src.document()
	doc.Kind = KindCSV
	doc.Size = len(body.Data)
	doc.Truncated = body.Truncated
	doc.Encoding = enc
	doc.Table = table
	return doc, nil
}

func parseTable(text string, delim rune, maxRows int) (*Table, error) {
	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = delim
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.ReuseRecord = false

	table := &Table{Delimiter: string(delim)}
	width := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if table.Header == nil {
			table.Header = record
			width = len(record)
			continue
		}
		if len(table.Rows) == maxRows {
			table.Truncated = true
			break
		}
		width = max(width, len(record))
		table.Rows = append(table.Rows, record)
	}

	// ragged rows are padded to the widest row
	for i := len(table.Header); i < width; i++ {
		table.Header = append(table.Header, fmt.Sprintf("column %d", i+1))
	}
	for i, row := range table.Rows {
		for len(row) < width {
			row = append(row, "")
		}
		table.Rows[i] = row
	}
	return table, nil
}

// detectDelimiter picks the candidate that splits the sampled lines into the
// most columns consistently. Tab separated names and types always use tabs.
func detectDelimiter(text, name, contentType string) rune {
	if strings.EqualFold(path.Ext(name), ".tsv") || baseType(contentType) == "text/tab-separated-values" {
		return '\t'
	}

	var lines []string
	for line := range strings.Lines(text) {
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}
		lines = append(lines, line)
		if len(lines) == delimiterSampleLines {
			break
		}
	}

	best, bestScore := ',', 0
	for _, d := range delimiters {
		score := -1
		for _, line := range lines {
			n := countOutsideQuotes(line, d)
			if score == -1 || n < score {
				score = n
			}
		}
		if score > bestScore {
			best, bestScore = d, score
		}
	}
	return best
}

func countOutsideQuotes(line string, d rune) int {
	n := 0
	quoted := false
	for _, r := range line {
		switch {
		case r == '"':
			quoted = !quoted
		case r == d && !quoted:
			n++
		}
	}
	return n
}
