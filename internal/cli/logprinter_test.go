package cli

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func TestLogPrinter(t *testing.T) {
	saved := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = saved })

	var buf bytes.Buffer
	p := newLogPrinter(&buf)

	p.Write([]byte(`{"level":"info","method":"users.get","verb":"GET","url":"http://h/users/1","status":200,"latency_ms":12.34,"request_id":"r-1","time":0,"message":"rpc executed"}` + "\n"))
	assert.Contains(t, buf.String(), "users.get GET http://h/users/1 200 12.3ms r-1\n")

	buf.Reset()
	p.Write([]byte(`{"level":"error","method":"users.get","verb":"GET","url":"http://h/users/1","status":502,"error":"bad gateway\nretry later","time":0,"message":"rpc executed"}`))
	assert.Contains(t, buf.String(), " 502\n")
	assert.Contains(t, buf.String(), "❗ bad gateway\n                retry later")

	buf.Reset()
	p.Write([]byte(`{"level":"warn","message":"ignoring unknown status policy","time":0}`))
	assert.Contains(t, buf.String(), "[warn] ignoring unknown status policy")

	buf.Reset()
	p.Write([]byte("not json\n"))
	assert.Equal(t, "not json\n", buf.String())
}

func TestIndentMultiline(t *testing.T) {
	assert.Equal(t, "a", indentMultiline("a", "  "))
	assert.Equal(t, "a\n  b\n  c", indentMultiline("a\nb\nc", "  "))
}
