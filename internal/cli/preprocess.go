package cli

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"strings"
	"text/template"

	"github.com/joho/godotenv"
)

type TemplateContext struct {
	ENV map[string]string
}

var missingKeyRegex = regexp.MustCompile(`map has no entry for key "(.*?)"`)

// templateEnv merges the dotenv files with the process environment. Missing dotenv
// files are skipped; the process environment wins.
func templateEnv(dotenvFiles []string) (map[string]string, error) {
	env := map[string]string{}
	for _, f := range dotenvFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		vars, err := godotenv.Read(f)
		if err != nil {
			return nil, fmt.Errorf("unable to read %s: %w", f, err)
		}
		for k, v := range vars {
			env[k] = v
		}
	}
	for _, e := range os.Environ() {
		if k, v, ok := strings.Cut(e, "="); ok {
			env[k] = v
		}
	}
	return env, nil
}

// PreprocessYAML replaces {{ .ENV.VAR }} placeholders with values from the environment or
// the given dotenv files.
func PreprocessYAML(input []byte, dotenvFiles ...string) ([]byte, error) {
	env, err := templateEnv(dotenvFiles)
	if err != nil {
		return nil, err
	}

	tmpl, err := template.New("yaml").Option("missingkey=error").Parse(string(input))
	if err != nil {
		return nil, err
	}

	var output bytes.Buffer
	if err := tmpl.Execute(&output, TemplateContext{ENV: env}); err != nil {
		if matches := missingKeyRegex.FindStringSubmatch(err.Error()); len(matches) == 2 {
			return nil, fmt.Errorf("missing environment variable: %s (set it in your shell or .env file)", matches[1])
		}
		return nil, fmt.Errorf("template error: %w", err)
	}
	return output.Bytes(), nil
}
