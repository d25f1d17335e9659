package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
)

// print writes data as indented JSON if --json is set, otherwise as a table
// of id and label.
func (a *app) print(w io.Writer, data any) error {
	if a.jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	}
	return writeTable(w, data)
}

func writeTable(w io.Writer, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	rows, err := decodeRows(raw)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME")
	for _, row := range rows {
		fmt.Fprintf(tw, "%v\t%s\n", row["id"], label(row))
	}
	if err = tw.Flush(); err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%d records\n", len(rows))
	return err
}

// decodeRows decodes a JSON array of objects, or a single object, keeping
// numbers as written.
func decodeRows(raw []byte) ([]map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if bytes.HasPrefix(bytes.TrimSpace(raw), []byte("[")) {
		var rows []map[string]any
		if err := dec.Decode(&rows); err != nil {
			return nil, err
		}
		return rows, nil
	}
	var row map[string]any
	if err := dec.Decode(&row); err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	return []map[string]any{row}, nil
}

func label(row map[string]any) string {
	for _, key := range []string{"name", "code", "username"} {
		if s, ok := row[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
