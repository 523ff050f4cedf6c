package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// yamlDoc is one document of a multi-document YAML file.
type yamlDoc struct {
	Line   int // line of the document's first key
	Fields map[string]any
}

// ParseMultiYAML reads a file of YAML documents after expanding environment placeholders.
// Empty documents are skipped.
func ParseMultiYAML(filename string, dotenvFiles ...string) ([]yamlDoc, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	// YAML does not allow tabs for indentation
	data = bytes.ReplaceAll(data, []byte("\t"), []byte("  "))

	data, err = PreprocessYAML(data, dotenvFiles...)
	if err != nil {
		return nil, err
	}

	docs, err := parseYAMLDocs(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return docs, nil
}

// parseYAMLDocs decodes every non-empty mapping document of data.
func parseYAMLDocs(data []byte) ([]yamlDoc, error) {
	docs := []yamlDoc{}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	for {
		var node yaml.Node
		err := decoder.Decode(&node)
		if errors.Is(err, io.EOF) {
			return docs, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode YAML: %w", err)
		}
		if len(node.Content) == 0 {
			continue
		}

		root := node.Content[0]
		var fields map[string]any
		if err := root.Decode(&fields); err != nil {
			return nil, fmt.Errorf("line %d: document is not a mapping: %w", root.Line, err)
		}
		if len(fields) > 0 {
			docs = append(docs, yamlDoc{Line: root.Line, Fields: fields})
		}
	}
}
