package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/h2non/filetype"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"sigs.k8s.io/yaml"
)

// readBody parses a JSON body given inline or as @file. An empty value is no body.
func readBody(s string) (any, error) {
	if s == "" {
		return nil, nil
	}
	data := []byte(s)
	if name, ok := strings.CutPrefix(s, "@"); ok {
		var err error
		if data, err = os.ReadFile(name); err != nil {
			return nil, fmt.Errorf("unable to read body: %w", err)
		}
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("body is not valid JSON: %w", err)
	}
	return v, nil
}

// applySets edits the body object with path=value pairs. Values that are valid JSON are
// set as JSON, anything else as a string.
func applySets(body any, sets []string) (any, error) {
	if len(sets) == 0 {
		return body, nil
	}
	data := []byte("{}")
	if body != nil {
		var err error
		if data, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("unable to encode body: %w", err)
		}
	}
	for _, pair := range sets {
		path, value, ok := strings.Cut(pair, "=")
		if !ok || path == "" {
			return nil, fmt.Errorf("expected path=value, got %q", pair)
		}
		var err error
		if gjson.Valid(value) {
			data, err = sjson.SetRawBytes(data, path, []byte(value))
		} else {
			data, err = sjson.SetBytes(data, path, value)
		}
		if err != nil {
			return nil, fmt.Errorf("unable to set %s: %w", path, err)
		}
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("body is not valid JSON: %w", err)
	}
	return v, nil
}

// parsePairs parses name=value arguments. Later pairs replace earlier ones.
func parsePairs(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("expected name=value, got %q", pair)
		}
		out[name] = value
	}
	return out, nil
}

// decodeBody returns the body as a JSON value, or as text when it is not JSON.
func decodeBody(body []byte) any {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return string(body)
	}
	return v
}

// printResult writes v as json, yaml or raw text.
func printResult(w io.Writer, format string, v any) error {
	switch strings.ToLower(format) {
	case "", "json":
		printJSON(w, v)
	case "yaml":
		out, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("unable to format result: %w", err)
		}
		w.Write(out)
	case "raw":
		switch t := v.(type) {
		case string:
			if kind, _ := filetype.Match([]byte(t)); kind != filetype.Unknown {
				fmt.Fprintf(w, "<binary %s, %d bytes>\n", kind.MIME.Value, len(t))
				return nil
			}
			fmt.Fprintln(w, t)
		default:
			out, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("unable to format result: %w", err)
			}
			fmt.Fprintln(w, string(out))
		}
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
	return nil
}
