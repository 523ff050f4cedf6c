package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// Predefined palette of distinct colors for methods
var colorPalette = []*color.Color{
	color.New(color.FgGreen),
	color.New(color.FgCyan),
	color.New(color.FgMagenta),
	color.New(color.FgYellow),
	color.New(color.FgBlue),
}

var systemColor = color.New(color.FgHiWhite)
var failColor = color.New(color.FgHiRed)
var faintColor = color.New(color.FgHiWhite, color.Faint)

// logPrinter renders the NDJSON records of the logger as colored lines. Execution
// records get one line per call; other records print their level and message.
type logPrinter struct {
	mu           sync.Mutex
	w            io.Writer
	methodColors map[string]*color.Color
	colorIndex   int
}

func newLogPrinter(w io.Writer) *logPrinter {
	return &logPrinter{w: w, methodColors: map[string]*color.Color{}}
}

// Write prints one record. zerolog writes every record with a single call.
func (p *logPrinter) Write(line []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.printLine(line)
	return len(line), nil
}

func (p *logPrinter) printLine(line []byte) {
	var m map[string]any
	if err := json.Unmarshal(line, &m); err != nil {
		fmt.Fprintf(p.w, "%s", line)
		return
	}

	level := str(m["level"])
	msg := str(m["message"])
	errorMsg := str(m["error"])
	timestamp := "[" + time.Unix(int64From(m["time"]), 0).Local().Format("15:04:05") + "]"

	fmt.Fprint(p.w, "  "+timestamp+" ")
	method := str(m["method"])
	if method == "" || m["verb"] == nil {
		systemColor.Fprintf(p.w, "[%s] ", level)
		fmt.Fprintln(p.w, msg)
		if errorMsg != "" {
			failColor.Fprintln(p.w, "             ", errorMsg)
		}
		return
	}

	if p.methodColors[method] == nil {
		p.methodColors[method] = colorPalette[p.colorIndex%len(colorPalette)]
		p.colorIndex++
	}
	p.methodColors[method].Fprintf(p.w, "%s", method)
	fmt.Fprintf(p.w, " %s %s", str(m["verb"]), str(m["url"]))
	if status := int64From(m["status"]); status != 0 {
		fmt.Fprintf(p.w, " %d", status)
	}
	if latency, ok := m["latency_ms"].(float64); ok {
		fmt.Fprintf(p.w, " %.1fms", latency)
	}
	if str(m["request_id"]) != "" {
		faintColor.Fprintf(p.w, " %s", str(m["request_id"]))
	}
	fmt.Fprintln(p.w)

	if level == "error" && errorMsg != "" {
		failColor.Fprint(p.w, "             ❗ ")
		failColor.Fprintln(p.w, indentMultiline(errorMsg, "                "))
	}
}

// str safely converts an interface{} to string, returning empty string if conversion fails
func str(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// int64From safely converts an interface{} to int64, handling different numeric types
func int64From(v any) int64 {
	switch x := v.(type) {
	case float64:
		return int64(x)
	case int64:
		return x
	default:
		return 0
	}
}

// indentMultiline adds indentation to all lines except the first in a multiline string
func indentMultiline(text, indent string) string {
	lines := strings.Split(text, "\n")
	if len(lines) <= 1 {
		return text
	}
	for i := 1; i < len(lines); i++ {
		lines[i] = indent + lines[i]
	}
	return strings.Join(lines, "\n")
}
