package profile

import (
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"

	"github.com/groob/plist"
	"go.mozilla.org/pkcs7"
)

// ErrSignerUnavailable reports that no signing identity is configured. It is
// a degraded-mode signal, not a fatal error: Render falls back to unsigned
// output tagged as such.
var ErrSignerUnavailable = errors.New("signing identity unavailable")

// Signer signs a serialized profile document.
type Signer interface {
	Sign(data []byte) ([]byte, error)
}

// SignedProfile is the rendered document. Signed distinguishes a real
// CMS-signed profile from the degraded unsigned fallback so callers can
// never mistake one for the other.
type SignedProfile struct {
	Data   []byte
	Signed bool
}

// PKCS7Signer signs profiles with an X.509 identity.
type PKCS7Signer struct {
	certificate *x509.Certificate
	key         *rsa.PrivateKey
	chain       []*x509.Certificate
}

// LoadSigner reads a PEM certificate/key pair from disk. Empty paths mean
// no signing identity; callers get (nil, ErrSignerUnavailable) and should
// proceed unsigned.
func LoadSigner(certPath, keyPath string) (*PKCS7Signer, error) {
	if certPath == "" || keyPath == "" {
		return nil, ErrSignerUnavailable
	}
	pair, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("load signing identity: %w", err)
	}
	leaf, err := x509.ParseCertificate(pair.Certificate[0])
	if err != nil {
		return nil, fmt.Errorf("parse signing certificate: %w", err)
	}
	key, ok := pair.PrivateKey.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("signing key must be RSA")
	}
	var chain []*x509.Certificate
	for _, raw := range pair.Certificate[1:] {
		cert, err := x509.ParseCertificate(raw)
		if err != nil {
			return nil, fmt.Errorf("parse chain certificate: %w", err)
		}
		chain = append(chain, cert)
	}
	return &PKCS7Signer{certificate: leaf, key: key, chain: chain}, nil
}

// Sign produces a CMS (PKCS7) signature envelope over the document bytes.
func (s *PKCS7Signer) Sign(data []byte) ([]byte, error) {
	signed, err := pkcs7.NewSignedData(data)
	if err != nil {
		return nil, fmt.Errorf("init signed data: %w", err)
	}
	if err := signed.AddSigner(s.certificate, s.key, pkcs7.SignerInfoConfig{}); err != nil {
		return nil, fmt.Errorf("add signer: %w", err)
	}
	for _, cert := range s.chain {
		signed.AddCertificate(cert)
	}
	return signed.Finish()
}

// Render serializes the document as an XML property list and signs it when a
// signer is available. With a nil signer the plain plist bytes are returned
// tagged unsigned; profile delivery must still function without a
// configured signing identity.
func Render(doc *Document, signer Signer) (SignedProfile, error) {
	raw, err := plist.MarshalIndent(doc, "  ")
	if err != nil {
		return SignedProfile{}, fmt.Errorf("marshal profile: %w", err)
	}
	if signer == nil {
		return SignedProfile{Data: raw, Signed: false}, nil
	}
	signed, err := signer.Sign(raw)
	if err != nil {
		return SignedProfile{}, fmt.Errorf("sign profile: %w", err)
	}
	return SignedProfile{Data: signed, Signed: true}, nil
}
