// Package smoke exercises the full catalogue-pack-to-decode path end to
// end: build a signed pack, install it, load the resulting registry, and
// decode a sample block against it, the way a release pipeline would
// before shipping a catalogue update.
package smoke

import (
	"archive/zip"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"example.com/asterixgate/internal/asterix"
	"example.com/asterixgate/internal/crypto"
	"example.com/asterixgate/internal/registry"
	"example.com/asterixgate/internal/update"
)

const smokeCatalogYAML = `
category: 2
name: Monoradar Target Reports
version: "1.0"
uap:
  - I010
items:
  - id: I010
    name: Data Source Identifier
    format: fixed
    length: 2
    fields:
      - name: SAC
        type: u8
        bits: 8
      - name: SIC
        type: u8
        bits: 8
`

func genSigningKey(t *testing.T) (privPEM, pubPEM []byte) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	privPEM = pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("MarshalPKIXPublicKey: %v", err)
	}
	pubPEM = pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	return privPEM, pubPEM
}

// buildPack stages VERSION, LICENSE and catalog/002.yaml in a temporary
// directory, signs
// a manifest over them with privPEM, and zips the result to archivePath.
func buildPack(t *testing.T, archivePath, version string, privPEM []byte) {
	t.Helper()
	stage := t.TempDir()
	must := func(err error) {
		if err != nil {
			t.Fatalf("stage pack: %v", err)
		}
	}
	must(os.WriteFile(filepath.Join(stage, "VERSION"), []byte(version), 0o644))
	must(os.WriteFile(filepath.Join(stage, "LICENSE"), []byte("smoke test license\n"), 0o644))
	must(os.MkdirAll(filepath.Join(stage, "catalog"), 0o755))
	must(os.WriteFile(filepath.Join(stage, "catalog", "002.yaml"), []byte(smokeCatalogYAML), 0o644))

	items := []update.ManifestItem{}
	for _, rel := range []string{"VERSION", "LICENSE", "catalog/002.yaml"} {
		sum, size, err := fileSha256(filepath.Join(stage, rel))
		must(err)
		items = append(items, update.ManifestItem{Path: rel, Sha256: sum, Size: size})
	}
	manifest := update.PackageManifest{ShaAlgo: "sha256", Items: items}
	payload, err := json.Marshal(manifest)
	must(err)
	must(os.WriteFile(filepath.Join(stage, "MANIFEST.json"), payload, 0o644))

	jws, err := crypto.SignDetachedJWS(payload, privPEM)
	must(err)
	sig, err := json.Marshal(jws)
	must(err)
	must(os.WriteFile(filepath.Join(stage, "SIGNATURE.jws"), sig, 0o644))

	must(zipDir(stage, archivePath))
}

func TestCatalogPackInstallThenDecode(t *testing.T) {
	privPEM, pubPEM := genSigningKey(t)

	installRoot := t.TempDir()
	certPath := filepath.Join(installRoot, "cert.pem")
	if err := os.WriteFile(certPath, pubPEM, 0o644); err != nil {
		t.Fatalf("write cert: %v", err)
	}

	archivePath := filepath.Join(t.TempDir(), "pack.catalog.zip")
	buildPack(t, archivePath, "2026.1.0", privPEM)

	inst, err := update.NewInstaller(update.Options{InstallRoot: installRoot, CertPath: certPath})
	if err != nil {
		t.Fatalf("NewInstaller: %v", err)
	}
	result, err := inst.InstallFromArchive(archivePath)
	if err != nil {
		t.Fatalf("InstallFromArchive: %v", err)
	}
	if result.Version != "2026.1.0" {
		t.Fatalf("Version = %q", result.Version)
	}

	reg, err := registry.LoadDirectory(inst.CatalogDir())
	if err != nil {
		t.Fatalf("LoadDirectory: %v", err)
	}
	cat, ok := reg.Get(2)
	if !ok {
		t.Fatal("category 2 missing from installed catalogue")
	}

	dec := asterix.NewDecoder(asterix.Config{})
	dec.RegisterCategory(cat)

	// FSPEC selecting slot 0 (I010), then SAC=1, SIC=2.
	body := []byte{0x80, 0x01, 0x02}
	raw := make([]byte, 3+len(body))
	raw[0] = 2
	raw[1] = byte(len(raw) >> 8)
	raw[2] = byte(len(raw))
	copy(raw[3:], body)

	block := dec.DecodeBlock(raw)
	if block.Err != nil {
		t.Fatalf("DecodeBlock: %v", block.Err)
	}
	if len(block.Records) != 1 || !block.Records[0].Valid() {
		t.Fatalf("unexpected decode result: %+v", block)
	}
}

func fileSha256(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()
	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), n, nil
}

func zipDir(srcDir, archivePath string) error {
	out, err := os.Create(archivePath)
	if err != nil {
		return err
	}
	defer out.Close()
	zw := zip.NewWriter(out)
	defer zw.Close()

	return filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		w, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(w, f)
		return err
	})
}
