package main

import (
	"fmt"
	"io"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/xdbsoft/potato/api"
	"github.com/xdbsoft/potato/view"
)

func render(w io.Writer, format string, v interface{}) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unsupported output format %q", format)
}

// printable converts a view result into plain values.
func printable(res *view.Result) interface{} {
	out := map[string]interface{}{}
	if res.HasTotalRows {
		out["total_rows"] = res.TotalRows
	}
	switch res.Mode {
	case view.ModeValue:
		out["value"] = res.Value
	case view.ModeDocuments:
		docs := make([]map[string]interface{}, len(res.Documents))
		for i, d := range res.Documents {
			docs[i] = d.ToMap()
		}
		out["documents"] = docs
	default:
		rows := res.Rows
		if rows == nil {
			rows = []api.Row{}
		}
		plain := make([]map[string]interface{}, len(rows))
		for i, r := range rows {
			plain[i] = map[string]interface{}{"id": r.ID, "key": r.Key, "value": r.Value}
			if r.Doc != nil {
				plain[i]["doc"] = r.Doc
			}
		}
		out["rows"] = plain
	}
	return out
}
