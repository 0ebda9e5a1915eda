// Package manifest builds and verifies the signed manifest that
// accompanies a decode run: the input file's hash, the category and
// schema version used, and the resulting pass/fail summary, so a report
// can be traced back to the exact bytes and catalogue that produced it.
package manifest

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"time"

	"example.com/asterixgate/internal/common"
	cryptox "example.com/asterixgate/internal/crypto"
)

// Manifest records the provenance of one decode run.
type Manifest struct {
	InputPath     string    `json:"inputPath"`
	InputSHA256   string    `json:"inputSha256"`
	InputBytes    int64     `json:"inputBytes"`
	Category      uint8     `json:"category"`
	SchemaVersion string    `json:"schemaVersion"`
	GeneratedAt   time.Time `json:"generatedAt"`
	RecordCount   int       `json:"recordCount"`
	ValidCount    int       `json:"validCount"`
	InvalidCount  int       `json:"invalidCount"`
	Pass          bool      `json:"pass"`
}

// Build hashes inputPath and assembles a Manifest around it.
func Build(inputPath string, category uint8, schemaVersion string, recordCount, validCount, invalidCount int) (Manifest, error) {
	sum, size, err := common.Sha256OfFile(inputPath)
	if err != nil {
		return Manifest{}, fmt.Errorf("manifest: %w", err)
	}
	return Manifest{
		InputPath:     inputPath,
		InputSHA256:   sum,
		InputBytes:    size,
		Category:      category,
		SchemaVersion: schemaVersion,
		GeneratedAt:   time.Now().UTC(),
		RecordCount:   recordCount,
		ValidCount:    validCount,
		InvalidCount:  invalidCount,
		Pass:          invalidCount == 0,
	}, nil
}

// Hash returns the SHA-256 of the manifest's canonical JSON encoding,
// suitable for embedding in a QR code paper trail.
func (m Manifest) Hash() (string, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return fmt.Sprintf("%x", sum), nil
}

// SignedManifest pairs a Manifest with its detached JWS signature.
type SignedManifest struct {
	Manifest Manifest      `json:"manifest"`
	JWS      cryptox.JWS   `json:"jws"`
}

// Sign detached-signs m's canonical JSON encoding with privateKeyPEM.
func Sign(m Manifest, privateKeyPEM []byte) (SignedManifest, error) {
	payload, err := json.Marshal(m)
	if err != nil {
		return SignedManifest{}, err
	}
	jws, err := cryptox.SignDetachedJWS(payload, privateKeyPEM)
	if err != nil {
		return SignedManifest{}, fmt.Errorf("manifest: sign: %w", err)
	}
	return SignedManifest{Manifest: m, JWS: jws}, nil
}

// ErrSignatureInvalid is returned by Verify when the detached signature
// does not match the manifest payload.
var ErrSignatureInvalid = errors.New("manifest: signature verification failed")

// Verify checks sm's detached JWS against publicKeyPEM and that its
// protected payload matches sm.Manifest's canonical encoding.
func Verify(sm SignedManifest, publicKeyPEM []byte) error {
	want, err := json.Marshal(sm.Manifest)
	if err != nil {
		return err
	}
	got, err := base64.RawURLEncoding.DecodeString(sm.JWS.Payload)
	if err != nil {
		return fmt.Errorf("manifest: decode payload: %w", err)
	}
	if string(got) != string(want) {
		return fmt.Errorf("%w: payload does not match manifest", ErrSignatureInvalid)
	}

	pub, err := parseRSAPublicKey(publicKeyPEM)
	if err != nil {
		return fmt.Errorf("manifest: %w", err)
	}
	signingInput := sm.JWS.Protected + "." + sm.JWS.Payload
	h := sha256.Sum256([]byte(signingInput))
	sig, err := base64.RawURLEncoding.DecodeString(sm.JWS.Signature)
	if err != nil {
		return fmt.Errorf("manifest: decode signature: %w", err)
	}
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, h[:], sig); err != nil {
		return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}
	return nil
}

func parseRSAPublicKey(pemBytes []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("no pem block")
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("not an RSA public key")
	}
	return rsaPub, nil
}
