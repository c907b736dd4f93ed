package commands

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/mattn/go-runewidth"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/awsui/internal/awsclient"
	"github.com/wolfeidau/awsui/internal/preview"
)

// PreviewCmd renders an object the way the console previews it, as plain
// text on stdout.
type PreviewCmd struct {
	AWS      awsclient.Flags `embed:"" prefix:"aws-"`
	Bucket   string          `arg:"" help:"bucket holding the object"`
	Key      string          `arg:"" help:"object key"`
	MaxBytes int64           `help:"maximum bytes read for the preview" default:"1048576" env:"AWSUI_PREVIEW_MAX_BYTES"`
	Timeout  time.Duration   `help:"timeout fetching the object" default:"30s" env:"AWSUI_PREVIEW_TIMEOUT"`
	ColWidth int             `help:"maximum width of a table column" default:"40"`
	JSON     bool            `help:"print the preview document as JSON" default:"false"`

	out    io.Writer
	client *http.Client
}

func (cmd *PreviewCmd) Run(ctx context.Context, globals *Globals) error {
	log := cliLogger(globals.Debug)
	ctx = log.WithContext(ctx)

	b, err := connect(ctx, cmd.AWS)
	if err != nil {
		return err
	}

	info, err := b.objects.Head(ctx, cmd.Bucket, cmd.Key)
	if err != nil {
		return fmt.Errorf("failed to read object metadata: %w", err)
	}
	url, err := b.objects.PresignGet(ctx, cmd.Bucket, cmd.Key, 0)
	if err != nil {
		return fmt.Errorf("failed to presign object: %w", err)
	}

	client := cmd.client
	if client == nil {
		client = preview.NewHTTPClient("", 0, cmd.Timeout)
	}
	loader := preview.NewLoader(preview.LoaderConfig{Client: client, MaxBytes: cmd.MaxBytes})

	doc, err := loader.Load(ctx, preview.Request{URL: url, ContentType: info.ContentType, Name: cmd.Key})
	if err != nil {
		return fmt.Errorf("failed to preview %s: %w", cmd.Key, err)
	}
	logNotices(log, doc)

	out := stdout(cmd.out)
	if cmd.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	}
	writeDocument(out, doc, cmd.ColWidth)
	return nil
}

func logNotices(log zerolog.Logger, doc *preview.Document) {
	if doc.FallbackReason != "" {
		log.Warn().Str("reason", doc.FallbackReason).Msg("Showing as text")
	}
	if doc.Truncated {
		log.Warn().Int("bytes", doc.Size).Msg("Object truncated")
	}
	if doc.Table != nil && doc.Table.Truncated {
		log.Warn().Int("rows", len(doc.Table.Rows)).Msg("Rows truncated")
	}
}

// writeDocument prints a document as an indented tree, an aligned table or
// text. Media and frame documents print their URL.
func writeDocument(w io.Writer, doc *preview.Document, colWidth int) {
	switch {
	case doc.Tree != nil:
		writeNode(w, doc.Tree, "", 0)
	case doc.Table != nil:
		writeTable(w, doc.Table, colWidth)
	case !doc.Kind.NeedsBody():
		fmt.Fprintf(w, "%s %s\n", doc.Kind, doc.URL)
	default:
		io.WriteString(w, doc.Text)
		if doc.Text != "" && !strings.HasSuffix(doc.Text, "\n") {
			io.WriteString(w, "\n")
		}
	}
}

func writeNode(w io.Writer, n *preview.Node, label string, depth int) {
	indent := strings.Repeat("  ", depth)
	if label == "" {
		label = "$"
	}

	switch n.Type {
	case preview.NodeObject:
		fmt.Fprintf(w, "%s%s {%d}\n", indent, label, n.Len())
		for _, c := range n.Children {
			writeNode(w, c, c.Key, depth+1)
		}
	case preview.NodeArray:
		fmt.Fprintf(w, "%s%s [%d]\n", indent, label, n.Len())
		for _, c := range n.Children {
			writeNode(w, c, "["+c.Key+"]", depth+1)
		}
	case preview.NodeString:
		fmt.Fprintf(w, "%s%s: %s\n", indent, label, strconv.Quote(n.Value))
	default:
		fmt.Fprintf(w, "%s%s: %s\n", indent, label, n.Value)
	}
}

// writeTable aligns columns by display width, so wide runes line up.
func writeTable(w io.Writer, t *preview.Table, colWidth int) {
	if colWidth <= 0 {
		colWidth = 40
	}

	var rows [][]string
	if len(t.Header) > 0 {
		rows = append(rows, flatten(t.Header))
	}
	for _, row := range t.Rows {
		rows = append(rows, flatten(row))
	}

	var widths []int
	for _, row := range rows {
		for i, cell := range row {
			if i >= len(widths) {
				widths = append(widths, 0)
			}
			widths[i] = max(widths[i], min(runewidth.StringWidth(cell), colWidth))
		}
	}

	for r, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = runewidth.FillRight(runewidth.Truncate(cell, colWidth, "…"), widths[i])
		}
		fmt.Fprintln(w, strings.TrimRight(strings.Join(cells, "  "), " "))

		if r == 0 && len(t.Header) > 0 {
			total := 0
			for _, wd := range widths {
				total += wd
			}
			fmt.Fprintln(w, strings.Repeat("─", total+2*(len(widths)-1)))
		}
	}
}

var cellSpace = strings.NewReplacer("\r\n", " ", "\n", " ", "\t", " ")

func flatten(row []string) []string {
	out := make([]string, len(row))
	for i, cell := range row {
		out[i] = cellSpace.Replace(cell)
	}
	return out
}
