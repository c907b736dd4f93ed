package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/wolfeidau/awsui/internal/awsclient"
	"github.com/wolfeidau/awsui/internal/search"
)

const (
	markOpen  = "\033[1;33m"
	markClose = "\033[0m"
)

// SearchCmd fuzzy matches the keys of a bucket.
type SearchCmd struct {
	AWS     awsclient.Flags `embed:"" prefix:"aws-"`
	Bucket  string          `arg:"" help:"bucket to search"`
	Pattern string          `arg:"" help:"fuzzy pattern, case sensitive only when it contains upper case"`
	Prefix  string          `help:"only search keys under this prefix" default:""`
	Limit   int             `help:"maximum number of matches printed" default:"20"`
	MaxKeys int             `help:"maximum number of keys walked" default:"10000" env:"AWSUI_SEARCH_KEYS"`
	Color   bool            `help:"highlight matched characters" default:"true" negatable:""`
	Scores  bool            `help:"print the match score after each key" default:"false"`

	out io.Writer
}

func (cmd *SearchCmd) Run(ctx context.Context, globals *Globals) error {
	log := cliLogger(globals.Debug)
	ctx = log.WithContext(ctx)

	b, err := connect(ctx, cmd.AWS)
	if err != nil {
		return err
	}

	keys, err := b.objects.Keys(ctx, cmd.Bucket, cmd.Prefix, cmd.MaxKeys)
	if err != nil {
		return fmt.Errorf("failed to list keys: %w", err)
	}
	log.Debug().Str("bucket", cmd.Bucket).Int("keys", len(keys)).Msg("Keys loaded")

	matches := search.Filter(cmd.Pattern, keys, cmd.Limit)
	cmd.printMatches(stdout(cmd.out), matches, len(keys))
	return nil
}

func (cmd *SearchCmd) printMatches(w io.Writer, matches []search.Match, total int) {
	if len(matches) == 0 {
		fmt.Fprintf(w, "No keys in %s match %q (%d searched)\n", cmd.Bucket, cmd.Pattern, total)
		return
	}

	width := 0
	for _, m := range matches {
		width = max(width, runewidth.StringWidth(m.Text))
	}

	for _, m := range matches {
		line := m.Text
		if cmd.Color {
			line = search.Mark(search.Highlight(m.Text, m.Result.Spans), markOpen, markClose)
		}
		if !cmd.Scores {
			fmt.Fprintln(w, line)
			continue
		}
		// pad on the plain text so escape codes do not skew the column
		pad := strings.Repeat(" ", width-runewidth.StringWidth(m.Text))
		fmt.Fprintf(w, "%s%s  %6.2f\n", line, pad, m.Result.Score)
	}

	fmt.Fprintf(w, "\n%d shown, %d keys searched\n", len(matches), total)
}
