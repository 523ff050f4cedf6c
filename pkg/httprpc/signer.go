package httprpc

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/anand-gl/jsoncanonicalizer"
)

// Signer produces a signature over the canonical request text with the caller supplied key.
type Signer interface {
	Sign(canonical, key string) (string, error)
}

// SignerFunc adapts a function to Signer.
type SignerFunc func(canonical, key string) (string, error)

func (f SignerFunc) Sign(canonical, key string) (string, error) { return f(canonical, key) }

// canonicalForm joins the sorted form as key=value pairs with '&'. A non-empty timestamp
// header is appended as the last element.
func canonicalForm(form map[string]string, stamp string) string {
	parts := make([]string, 0, len(form)+1)
	for _, k := range slices.Sorted(maps.Keys(form)) {
		parts = append(parts, k+"="+form[k])
	}
	if stamp != "" {
		parts = append(parts, stamp)
	}
	return strings.Join(parts, "&")
}

// canonicalJSON is the serialized body, optionally in RFC 8785 form, followed by the
// timestamp header.
func canonicalJSON(body []byte, canonicalize bool, stamp string) (string, error) {
	parts := make([]string, 0, 2)
	if len(body) > 0 {
		if canonicalize {
			c, err := jsoncanonicalizer.Transform(body)
			if err != nil {
				return "", err
			}
			body = c
		}
		parts = append(parts, string(body))
	}
	if stamp != "" {
		parts = append(parts, stamp)
	}
	return strings.Join(parts, "&"), nil
}

// signRequest stores the signature in the header map. It is a no-op unless the method
// requires a signature and a key was supplied.
func signRequest(d *MethodDescriptor, s Signer, st *boundArgs, body []byte) error {
	if !d.requiresSignature || !st.hasSigningKey {
		return nil
	}
	if s == nil {
		return ErrConfiguration.Msg(fmt.Sprintf("%s requires a signature but no signer is configured", d.FullName()))
	}

	stamp := st.headers[d.timestampKey]
	var canonical string
	if d.verb == POSTJSON {
		var err error
		if canonical, err = canonicalJSON(body, d.canonicalJSON, stamp); err != nil {
			return ErrSigning.MsgErr("failed to canonicalize request body: "+err.Error(), err)
		}
	} else {
		canonical = canonicalForm(st.form, stamp)
	}

	sig, err := s.Sign(canonical, st.signingKey)
	if err != nil {
		return ErrSigning.MsgErr("failed to sign request: "+err.Error(), err)
	}
	st.headers[d.signatureHeader] = sig
	return nil
}
