package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseMultiYAML(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name     string
		content  string
		expected []yamlDoc
		wantErr  bool
	}{
		{
			name: "valid multi-document YAML",
			content: `---
name: doc1
value: 1
---
name: doc2
value: 2`,
			expected: []yamlDoc{
				{Line: 2, Fields: map[string]any{"name": "doc1", "value": 1}},
				{Line: 5, Fields: map[string]any{"name": "doc2", "value": 2}},
			},
		},
		{
			name: "documents without leading ---",
			content: `name: doc1
value: 1
---
name: doc2
value: 2`,
			expected: []yamlDoc{
				{Line: 1, Fields: map[string]any{"name": "doc1", "value": 1}},
				{Line: 4, Fields: map[string]any{"name": "doc2", "value": 2}},
			},
		},
		{
			name: "single document with nested values",
			content: `name: single_doc
params:
  - name: id
    role: path`,
			expected: []yamlDoc{
				{Line: 1, Fields: map[string]any{
					"name": "single_doc",
					"params": []any{
						map[string]any{"name": "id", "role": "path"},
					},
				}},
			},
		},
		{
			name: "one invalid document in multi-document YAML",
			content: `---
name: valid_doc
---
invalid: yaml: content: with: colons: everywhere
---
name: another_valid_doc`,
			wantErr: true,
		},
		{
			name: "empty document handling",
			content: `---
name: doc1
---
---
name: doc2`,
			expected: []yamlDoc{
				{Line: 2, Fields: map[string]any{"name": "doc1"}},
				{Line: 5, Fields: map[string]any{"name": "doc2"}},
			},
		},
		{
			name:    "scalar document",
			content: "just text",
			wantErr: true,
		},
		{
			name:     "completely empty file",
			content:  ``,
			expected: []yamlDoc{},
		},
		{
			name:     "file with only document separators",
			content:  "---\n---\n---",
			expected: []yamlDoc{},
		},
		{
			name:     "environment placeholders are expanded",
			content:  "url: {{ .ENV.HTTPRPC_TEST_BASE }}/users",
			expected: []yamlDoc{{Line: 1, Fields: map[string]any{"url": "http://localhost:8080/users"}}},
		},
	}

	t.Setenv("HTTPRPC_TEST_BASE", "http://localhost:8080")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpFile := filepath.Join(tmpDir, "test.yaml")
			assert.NoError(t, os.WriteFile(tmpFile, []byte(tt.content), 0644))

			result, err := ParseMultiYAML(tmpFile)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, result)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}

	t.Run("file not found", func(t *testing.T) {
		result, err := ParseMultiYAML("nonexistent.yaml")
		assert.Error(t, err)
		assert.Nil(t, result)
	})
}
