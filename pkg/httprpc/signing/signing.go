// Package signing provides request signers backed by the golang-jwt signing methods.
// Signatures are returned base64 encoded (standard alphabet). Private keys are accepted as
// PEM, or as bare base64 DER (PKCS#8 for private keys, PKIX for public keys).
package signing

import (
	"encoding/base64"
	"encoding/pem"
	"strings"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// Supported algorithms.
const (
	RS256 = "RS256"
	ES256 = "ES256"
	EdDSA = "EdDSA"
	HS256 = "HS256"
)

var (
	ErrUnsupportedAlgorithm = errors.New("unsupported signing algorithm")
	ErrInvalidKey           = errors.New("invalid signing key")
	ErrInvalidSignature     = errors.New("invalid signature")
)

type keyParser func(key string) (any, error)

type algorithm struct {
	method       jwt.SigningMethod
	parsePrivate keyParser
	parsePublic  keyParser
}

var algorithms = map[string]algorithm{
	RS256: {
		method:       jwt.SigningMethodRS256,
		parsePrivate: pemOrDER("PRIVATE KEY", func(b []byte) (any, error) { return jwt.ParseRSAPrivateKeyFromPEM(b) }),
		parsePublic:  pemOrDER("PUBLIC KEY", func(b []byte) (any, error) { return jwt.ParseRSAPublicKeyFromPEM(b) }),
	},
	ES256: {
		method:       jwt.SigningMethodES256,
		parsePrivate: pemOrDER("PRIVATE KEY", func(b []byte) (any, error) { return jwt.ParseECPrivateKeyFromPEM(b) }),
		parsePublic:  pemOrDER("PUBLIC KEY", func(b []byte) (any, error) { return jwt.ParseECPublicKeyFromPEM(b) }),
	},
	EdDSA: {
		method:       jwt.SigningMethodEdDSA,
		parsePrivate: pemOrDER("PRIVATE KEY", func(b []byte) (any, error) { return jwt.ParseEdPrivateKeyFromPEM(b) }),
		parsePublic:  pemOrDER("PUBLIC KEY", func(b []byte) (any, error) { return jwt.ParseEdPublicKeyFromPEM(b) }),
	},
	HS256: {
		method:       jwt.SigningMethodHS256,
		parsePrivate: secret,
		parsePublic:  secret,
	},
}

// Algorithms returns the supported algorithm names.
func Algorithms() []string {
	return []string{RS256, ES256, EdDSA, HS256}
}

// Signer signs canonical request text. Parsed keys are cached, so one Signer can serve
// many calls with the same key cheaply.
type Signer struct {
	alg  algorithm
	keys sync.Map // key text -> parsed key
}

// NewSigner returns a signer for alg.
func NewSigner(alg string) (*Signer, error) {
	a, ok := algorithms[alg]
	if !ok {
		return nil, errors.Wrap(ErrUnsupportedAlgorithm, alg)
	}
	return &Signer{alg: a}, nil
}

// Alg returns the algorithm name.
func (s *Signer) Alg() string {
	return s.alg.method.Alg()
}

// Sign signs canonical with the private key.
func (s *Signer) Sign(canonical, key string) (string, error) {
	k, err := cachedKey(&s.keys, key, s.alg.parsePrivate)
	if err != nil {
		return "", err
	}
	sig, err := s.alg.method.Sign(canonical, k)
	if err != nil {
		return "", errors.Wrapf(err, "%s signing failed", s.Alg())
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// Verifier checks signatures produced by Signer. Remote services and tests use it to
// validate incoming requests.
type Verifier struct {
	alg  algorithm
	keys sync.Map
}

// NewVerifier returns a verifier for alg.
func NewVerifier(alg string) (*Verifier, error) {
	a, ok := algorithms[alg]
	if !ok {
		return nil, errors.Wrap(ErrUnsupportedAlgorithm, alg)
	}
	return &Verifier{alg: a}, nil
}

// Verify checks a base64 signature over canonical with the public key (the shared secret
// for HS256).
func (v *Verifier) Verify(canonical, signature, key string) error {
	k, err := cachedKey(&v.keys, key, v.alg.parsePublic)
	if err != nil {
		return err
	}
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return errors.Wrap(ErrInvalidSignature, "signature is not base64")
	}
	if err := v.alg.method.Verify(canonical, sig, k); err != nil {
		return errors.Wrap(ErrInvalidSignature, err.Error())
	}
	return nil
}

func cachedKey(cache *sync.Map, key string, parse keyParser) (any, error) {
	if k, ok := cache.Load(key); ok {
		return k, nil
	}
	k, err := parse(key)
	if err != nil {
		return nil, err
	}
	cache.Store(key, k)
	return k, nil
}

// pemOrDER accepts PEM text, or bare base64 DER which is wrapped into a PEM block of
// blockType before parsing.
func pemOrDER(blockType string, parse func([]byte) (any, error)) keyParser {
	return func(key string) (any, error) {
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, errors.Wrap(ErrInvalidKey, "empty key")
		}
		data := []byte(key)
		if !strings.HasPrefix(key, "-----BEGIN") {
			der, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(key), ""))
			if err != nil {
				return nil, errors.Wrap(ErrInvalidKey, "key is neither PEM nor base64 DER")
			}
			data = pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der})
		}
		k, err := parse(data)
		if err != nil {
			return nil, errors.Wrap(ErrInvalidKey, err.Error())
		}
		return k, nil
	}
}

func secret(key string) (any, error) {
	if key == "" {
		return nil, errors.Wrap(ErrInvalidKey, "empty secret")
	}
	return []byte(key), nil
}
