package console

import (
	"fmt"
	"html/template"
	"time"

	"github.com/goccy/go-json"
	"github.com/wolfeidau/awsui/internal/objects"
	"github.com/wolfeidau/awsui/internal/util"
)

const maxCellBytes = 120

// Funcs are the template helpers the console pages use.
func Funcs() template.FuncMap {
	return template.FuncMap{
		"humanSize": objects.HumanSize,
		"timeFmt":   timeFmt,
		"cell":      cell,
		"rawURL":    rawURL,
	}
}

func timeFmt(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}

// cell formats an item attribute for a table cell: strings as is, other
// values as compact JSON, long values truncated.
func cell(v any) string {
	var s string
	switch tv := v.(type) {
	case nil:
		return ""
	case string:
		s = tv
	case json.Number:
		s = tv.String()
	default:
		data, err := json.Marshal(tv)
		if err != nil {
			s = fmt.Sprint(tv)
		} else {
			s = string(data)
		}
	}
	if out, truncated := util.Truncate(s, maxCellBytes); truncated {
		return out + "…"
	}
	return s
}
