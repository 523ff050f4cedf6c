package httprpc

import (
	"fmt"
	"net/url"
	"strings"
)

// ConfigSource resolves configuration keys, such as endpoint URLs.
type ConfigSource interface {
	Lookup(key string) (string, bool)
}

// ConfigFunc adapts a function to ConfigSource.
type ConfigFunc func(key string) (string, bool)

func (f ConfigFunc) Lookup(key string) (string, bool) { return f(key) }

// resolveURL builds the request URL: the literal template, or the configured value of the
// url key, or the default url. Placeholders without a bound value are left as they are.
func resolveURL(d *MethodDescriptor, cfg ConfigSource, st *boundArgs) (string, error) {
	tmpl := d.urlTemplate
	if tmpl == "" {
		if cfg != nil {
			if v, ok := cfg.Lookup(d.urlConfigKey); ok {
				tmpl = strings.TrimSpace(v)
			}
		}
		if tmpl == "" {
			tmpl = d.defaultURL
		}
		if tmpl == "" {
			return "", ErrMissingEndpointConfiguration.Msg(fmt.Sprintf("no url configured for key %q (%s)", d.urlConfigKey, d.FullName()))
		}
	}

	resolved := substitutePath(tmpl, st.pathVars)
	return appendQuery(resolved, st.query), nil
}

func substitutePath(tmpl string, vars map[string]string) string {
	if len(vars) == 0 || !strings.Contains(tmpl, "{") {
		return tmpl
	}
	pairs := make([]string, 0, 2*len(vars))
	for name, value := range vars {
		pairs = append(pairs, "{"+name+"}", url.PathEscape(value))
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

func appendQuery(u string, pairs []queryPair) string {
	if len(pairs) == 0 {
		return u
	}
	var b strings.Builder
	b.WriteString(u)
	switch {
	case strings.HasSuffix(u, "?"), strings.HasSuffix(u, "&"):
	case strings.Contains(u, "?"):
		b.WriteByte('&')
	default:
		b.WriteByte('?')
	}
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.value))
	}
	return b.String()
}
