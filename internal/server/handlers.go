package server

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"example.com/asterixgate/api"
	"example.com/asterixgate/internal/asterix"
	"example.com/asterixgate/internal/manifest"
	"example.com/asterixgate/internal/registry"
	"example.com/asterixgate/internal/report"
	"example.com/asterixgate/internal/stats"
	"example.com/asterixgate/internal/update"
	"example.com/asterixgate/internal/validate"
)

// Server coordinates HTTP handlers and manages temporary artifacts produced by
// decode and validation requests.
type Server struct {
	artifacts       *ArtifactStore
	workDir         string
	uploadsDir      string
	concurrency     int
	enableAdmin     bool
	updateInstaller *update.Installer
	signing         ManifestSigningOptions

	regMu sync.RWMutex
	reg   *registry.Registry
}

// Artifact represents a file generated or stored by the daemon.
type Artifact struct {
	ID          string
	Path        string
	Name        string
	ContentType string
	Size        int64
	Kind        string
}

// ArtifactRef is the public representation returned in API responses.
type ArtifactRef struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ContentType string `json:"contentType,omitempty"`
	Size        int64  `json:"size,omitempty"`
	Kind        string `json:"kind,omitempty"`
}

// ArtifactStore keeps track of generated artifacts for later download.
type ArtifactStore struct {
	mu      sync.RWMutex
	entries map[string]Artifact
}

// NewServer constructs a Server rooted at a temporary workspace directory.
// If opts.CatalogDir is set, category schemas are loaded from it; otherwise
// the server starts with an empty catalogue and relies on
// /admin/catalog/install to populate one.
func NewServer(opts Options) (*Server, error) {
	storageDir := opts.StorageDir
	if storageDir == "" {
		storageDir = os.TempDir()
	}
	if err := os.MkdirAll(storageDir, 0o755); err != nil {
		return nil, err
	}
	workDir, err := os.MkdirTemp(storageDir, "asterixd-")
	if err != nil {
		return nil, err
	}
	uploadsDir := filepath.Join(workDir, "uploads")
	if err := os.MkdirAll(uploadsDir, 0o755); err != nil {
		os.RemoveAll(workDir)
		return nil, err
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}
	reg := registry.New()
	if opts.CatalogDir != "" {
		loaded, err := registry.LoadDirectory(opts.CatalogDir)
		if err != nil {
			os.RemoveAll(workDir)
			return nil, fmt.Errorf("load catalog: %w", err)
		}
		reg = loaded
	} else {
		reg.Freeze()
	}
	s := &Server{
		artifacts:       &ArtifactStore{entries: make(map[string]Artifact)},
		workDir:         workDir,
		uploadsDir:      uploadsDir,
		concurrency:     concurrency,
		enableAdmin:     opts.EnableAdmin,
		updateInstaller: opts.UpdateInstaller,
		signing:         opts.ManifestSigning,
		reg:             reg,
	}
	return s, nil
}

// Close removes any temporary state associated with the server.
func (s *Server) Close() error {
	if s == nil || s.workDir == "" {
		return nil
	}
	return os.RemoveAll(s.workDir)
}

func (s *Server) registry() *registry.Registry {
	s.regMu.RLock()
	defer s.regMu.RUnlock()
	return s.reg
}

func (s *Server) setRegistry(r *registry.Registry) {
	s.regMu.Lock()
	s.reg = r
	s.regMu.Unlock()
}

func (s *Server) decoder(strict bool) *asterix.Decoder {
	dec := asterix.NewDecoder(asterix.Config{StrictValidation: strict})
	reg := s.registry()
	for _, cat := range reg.Categories() {
		c, _ := reg.Get(cat)
		dec.RegisterCategory(c)
	}
	return dec
}

func (s *Server) tempPath(pattern string) (string, error) {
	f, err := os.CreateTemp(s.workDir, pattern)
	if err != nil {
		return "", err
	}
	name := f.Name()
	f.Close()
	return name, nil
}

func (s *Server) addArtifact(path, displayName, contentType, kind string) (Artifact, error) {
	if path == "" {
		return Artifact{}, errors.New("empty path")
	}
	info, err := os.Stat(path)
	if err != nil {
		return Artifact{}, err
	}
	id := randomID()
	art := Artifact{
		ID:          id,
		Path:        path,
		Name:        displayName,
		ContentType: contentType,
		Size:        info.Size(),
		Kind:        kind,
	}
	if art.Name == "" {
		art.Name = filepath.Base(path)
	}
	if art.ContentType == "" {
		art.ContentType = guessContentType(art.Name)
	}
	s.artifacts.mu.Lock()
	s.artifacts.entries[id] = art
	s.artifacts.mu.Unlock()
	return art, nil
}

func (s *Server) getArtifact(id string) (Artifact, bool) {
	s.artifacts.mu.RLock()
	art, ok := s.artifacts.entries[id]
	s.artifacts.mu.RUnlock()
	return art, ok
}

func (s *Server) resolvePath(token string) (string, error) {
	if token == "" {
		return "", errors.New("empty input path")
	}
	if art, ok := s.getArtifact(token); ok {
		return art.Path, nil
	}
	abs := token
	if !filepath.IsAbs(token) {
		abs = filepath.Clean(token)
	}
	if _, err := os.Stat(abs); err != nil {
		return "", err
	}
	return abs, nil
}

type decodeRequest struct {
	Input  string `json:"input"`
	Strict bool   `json:"strict"`
}

func (s *Server) decodeInput(req decodeRequest) (string, []asterix.ParsedBlock, error) {
	inputPath, err := s.resolvePath(req.Input)
	if err != nil {
		return "", nil, fmt.Errorf("input resolve: %w", err)
	}
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return "", nil, fmt.Errorf("read input: %w", err)
	}
	dec := s.decoder(req.Strict)
	blocks, err := dec.DecodeFile(data)
	if err != nil {
		return "", nil, fmt.Errorf("decode: %w", err)
	}
	return inputPath, blocks, nil
}

func (s *Server) handleDecode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	stream := r.URL.Query().Get("stream") == "true"
	var req decodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid json: %v", err), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Input) == "" {
		http.Error(w, "input required", http.StatusBadRequest)
		return
	}

	_, blocks, err := s.decodeInput(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if stream {
		writer := NewNDJSONWriter(w)
		w.Header().Set("Content-Type", "application/x-ndjson")
		for _, block := range blocks {
			for i, rec := range block.Records {
				_ = writer.WriteObject(map[string]any{
					"type":     "record",
					"category": block.Category,
					"index":    i,
					"length":   rec.Length,
					"items":    rec.ItemIDs(),
					"valid":    rec.Valid(),
				})
			}
		}
		agg := stats.AnalyzeFile(blocks)
		_ = writer.WriteObject(map[string]any{"type": "summary", "stats": agg})
		return
	}

	agg := stats.AnalyzeFile(blocks)
	var reports []report.DecodeReport
	var artifacts []ArtifactRef
	for _, block := range blocks {
		reg := s.registry()
		cat, _ := reg.Get(block.Category)
		var results []validate.Result
		if cat != nil {
			results = validate.Block(cat, block, req.Strict)
		}
		rep := report.Build(block.Category, block, results)
		reports = append(reports, rep)

		jsonPath, err := s.tempPath("decode-*.json")
		if err == nil && report.SaveDecodeJSON(rep, jsonPath) == nil {
			if art, err := s.addArtifact(jsonPath, fmt.Sprintf("decode_cat%03d.json", block.Category), "application/json", "decode"); err == nil {
				artifacts = append(artifacts, toRef(art))
			}
		}
		pdfPath, err := s.tempPath("decode-*.pdf")
		if err == nil && report.SaveDecodePDF(rep, pdfPath) == nil {
			if art, err := s.addArtifact(pdfPath, fmt.Sprintf("decode_cat%03d.pdf", block.Category), "application/pdf", "decode"); err == nil {
				artifacts = append(artifacts, toRef(art))
			}
		}
	}
	resp := struct {
		Blocks    int                  `json:"blocks"`
		Stats     stats.Stats          `json:"stats"`
		Reports   []report.DecodeReport `json:"reports"`
		Artifacts []ArtifactRef        `json:"artifacts"`
	}{
		Blocks:    len(blocks),
		Stats:     agg,
		Reports:   reports,
		Artifacts: artifacts,
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req decodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid json: %v", err), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Input) == "" {
		http.Error(w, "input required", http.StatusBadRequest)
		return
	}
	_, blocks, err := s.decodeInput(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	reg := s.registry()
	var results []validate.Result
	for _, block := range blocks {
		cat, ok := reg.Get(block.Category)
		if !ok {
			continue
		}
		results = append(results, validate.Block(cat, block, req.Strict)...)
	}
	diagnosticCount := 0
	for _, res := range results {
		diagnosticCount += len(res.Diagnostics)
	}
	writeJSON(w, http.StatusOK, struct {
		Results     []validate.Result `json:"results"`
		Diagnostics int               `json:"diagnostics"`
	}{Results: results, Diagnostics: diagnosticCount})
}

func (s *Server) handleManifest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Input         string `json:"input"`
		Category      uint8  `json:"category"`
		SchemaVersion string `json:"schemaVersion"`
		Strict        bool   `json:"strict"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid json: %v", err), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Input) == "" {
		http.Error(w, "input required", http.StatusBadRequest)
		return
	}
	inputPath, blocks, err := s.decodeInput(decodeRequest{Input: req.Input, Strict: req.Strict})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var recordCount, validCount, invalidCount int
	reg := s.registry()
	for _, block := range blocks {
		if block.Category != req.Category {
			continue
		}
		cat, _ := reg.Get(block.Category)
		var results []validate.Result
		if cat != nil {
			results = validate.Block(cat, block, req.Strict)
		}
		for i, rec := range block.Records {
			recordCount++
			valid := rec.Valid()
			if i < len(results) && !results[i].Valid() {
				valid = false
			}
			if valid {
				validCount++
			} else {
				invalidCount++
			}
		}
	}
	m, err := manifest.Build(inputPath, req.Category, req.SchemaVersion, recordCount, validCount, invalidCount)
	if err != nil {
		http.Error(w, fmt.Sprintf("build manifest: %v", err), http.StatusInternalServerError)
		return
	}
	var payload any = m
	if s.signing.PrivateKeyPath != "" {
		key, err := os.ReadFile(s.signing.PrivateKeyPath)
		if err != nil {
			http.Error(w, fmt.Sprintf("read signing key: %v", err), http.StatusInternalServerError)
			return
		}
		sm, err := manifest.Sign(m, key)
		if err != nil {
			http.Error(w, fmt.Sprintf("sign manifest: %v", err), http.StatusInternalServerError)
			return
		}
		payload = sm
	}
	outPath, err := s.tempPath("manifest-*.json")
	if err != nil {
		http.Error(w, fmt.Sprintf("manifest temp: %v", err), http.StatusInternalServerError)
		return
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		http.Error(w, fmt.Sprintf("encode manifest: %v", err), http.StatusInternalServerError)
		return
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		http.Error(w, fmt.Sprintf("write manifest: %v", err), http.StatusInternalServerError)
		return
	}
	art, err := s.addArtifact(outPath, "manifest.json", "application/json", "manifest")
	if err != nil {
		http.Error(w, fmt.Sprintf("register manifest: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Manifest any         `json:"manifest"`
		Artifact ArtifactRef `json:"artifact"`
	}{Manifest: payload, Artifact: toRef(art)})
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	reg := s.registry()
	cats := reg.Categories()
	type entry struct {
		Category uint8  `json:"category"`
		Name     string `json:"name"`
		Version  string `json:"version"`
	}
	out := make([]entry, 0, len(cats))
	for _, id := range cats {
		c, ok := reg.Get(id)
		if !ok {
			continue
		}
		out = append(out, entry{Category: id, Name: c.Header.Name, Version: c.Header.Version})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAdminCatalogInstall(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.updateInstaller == nil {
		http.Error(w, "no update installer configured", http.StatusServiceUnavailable)
		return
	}
	var req struct {
		ArchivePath string `json:"archivePath"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid json: %v", err), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.ArchivePath) == "" {
		http.Error(w, "archivePath required", http.StatusBadRequest)
		return
	}
	res, err := s.updateInstaller.InstallFromArchive(req.ArchivePath)
	if err != nil {
		http.Error(w, fmt.Sprintf("install: %v", err), http.StatusBadRequest)
		return
	}
	reg, err := registry.LoadDirectory(s.updateInstaller.CatalogDir())
	if err != nil {
		http.Error(w, fmt.Sprintf("reload catalog: %v", err), http.StatusInternalServerError)
		return
	}
	s.setRegistry(reg)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleArtifactDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/artifacts/")
	if id == "" {
		http.NotFound(w, r)
		return
	}
	art, ok := s.getArtifact(id)
	if !ok {
		http.NotFound(w, r)
		return
	}
	f, err := os.Open(art.Path)
	if err != nil {
		http.Error(w, fmt.Sprintf("open artifact: %v", err), http.StatusInternalServerError)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		http.Error(w, fmt.Sprintf("stat artifact: %v", err), http.StatusInternalServerError)
		return
	}
	if art.ContentType != "" {
		w.Header().Set("Content-Type", art.ContentType)
	}
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	disposition := fmt.Sprintf("attachment; filename=\"%s\"", art.Name)
	w.Header().Set("Content-Disposition", disposition)
	io.Copy(w, f)
}

func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(api.OpenAPIYAML)
}

func toRef(art Artifact) ArtifactRef {
	return ArtifactRef{
		ID:          art.ID,
		Name:        art.Name,
		ContentType: art.ContentType,
		Size:        art.Size,
		Kind:        art.Kind,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func guessContentType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".json":
		return "application/json"
	case ".yaml", ".yml":
		return "application/yaml"
	case ".ndjson":
		return "application/x-ndjson"
	case ".pdf":
		return "application/pdf"
	case ".ast", ".bin":
		return "application/octet-stream"
	default:
		return "application/octet-stream"
	}
}

func randomID() string {
	var b [12]byte
	if _, err := rand.Read(b[:]); err != nil {
		now := time.Now().UTC()
		return fmt.Sprintf("%d%06d", now.UnixNano(), os.Getpid())
	}
	return hex.EncodeToString(b[:])
}

func (s *Server) listArtifacts() []ArtifactRef {
	s.artifacts.mu.RLock()
	refs := make([]ArtifactRef, 0, len(s.artifacts.entries))
	for _, art := range s.artifacts.entries {
		refs = append(refs, toRef(art))
	}
	s.artifacts.mu.RUnlock()
	sort.Slice(refs, func(i, j int) bool { return refs[i].ID < refs[j].ID })
	return refs
}
