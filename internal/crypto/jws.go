package crypto

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
)

type JWS struct {
	Protected string `json:"protected"`
	Payload   string `json:"payload"`
	Signature string `json:"signature"`
}

// ParseDetachedJWS parses the compact "protected.payload.signature" form or
// the JSON-serialized JWS produced by SignDetachedJWS.
func ParseDetachedJWS(raw []byte) (JWS, error) {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "{") {
		var jws JWS
		if err := json.Unmarshal([]byte(trimmed), &jws); err != nil {
			return JWS{}, fmt.Errorf("parse jws json: %w", err)
		}
		return jws, nil
	}
	parts := strings.Split(trimmed, ".")
	if len(parts) != 3 {
		return JWS{}, errors.New("jws: expected protected.payload.signature")
	}
	return JWS{Protected: parts[0], Payload: parts[1], Signature: parts[2]}, nil
}

// VerifyDetachedJWS verifies that jws is a valid RS256 detached signature
// over payload, using the RSA public key in publicKeyPEM.
func VerifyDetachedJWS(payload []byte, jws JWS, publicKeyPEM []byte) error {
	pub, err := parseRSAPublicKey(publicKeyPEM)
	if err != nil {
		return err
	}
	wantPayload := base64.RawURLEncoding.EncodeToString(payload)
	if jws.Payload != wantPayload {
		return errors.New("jws: payload does not match signed content")
	}
	signingInput := jws.Protected + "." + jws.Payload
	h := sha256.Sum256([]byte(signingInput))
	sig, err := base64.RawURLEncoding.DecodeString(jws.Signature)
	if err != nil {
		return fmt.Errorf("jws: decode signature: %w", err)
	}
	return rsa.VerifyPKCS1v15(pub, crypto.SHA256, h[:], sig)
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
		return nil, errors.New("jws: not an RSA public key")
	}
	return rsaPub, nil
}

func SignDetachedJWS(payload []byte, privateKeyPEM []byte) (JWS, error) {
	hdr := map[string]any{
		"alg": "RS256",
		"typ": "JWT",
	}
	hb, _ := json.Marshal(hdr)
	protected := base64.RawURLEncoding.EncodeToString(hb)
	pl := base64.RawURLEncoding.EncodeToString(payload)

	priv, err := parseRSAPrivateKey(privateKeyPEM)
	if err != nil { return JWS{}, err }

	signingInput := protected + "." + pl
	h := sha256.Sum256([]byte(signingInput))
	sig, err := rsa.SignPKCS1v15(rand.Reader, priv, crypto.SHA256, h[:])
	if err != nil { return JWS{}, err }

	return JWS{
		Protected: protected,
		Payload:   pl,
		Signature: base64.RawURLEncoding.EncodeToString(sig),
	}, nil
}

func parseRSAPrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("no pem block")
	}
	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	return key, nil
}
