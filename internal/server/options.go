package server

import (
	"example.com/asterixgate/internal/update"
)

// ManifestSigningOptions configures detached JWS manifest signing.
type ManifestSigningOptions struct {
	PrivateKeyPath  string
	CertificatePath string
}

// Options configures server creation.
type Options struct {
	StorageDir      string
	CatalogDir      string
	Concurrency     int
	EnableAdmin     bool
	ManifestSigning ManifestSigningOptions
	UpdateInstaller *update.Installer
}
