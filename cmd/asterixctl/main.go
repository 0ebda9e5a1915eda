package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"example.com/asterixgate/internal/asterix"
	"example.com/asterixgate/internal/capture"
	"example.com/asterixgate/internal/common"
	"example.com/asterixgate/internal/manifest"
	"example.com/asterixgate/internal/registry"
	"example.com/asterixgate/internal/report"
	"example.com/asterixgate/internal/stats"
	"example.com/asterixgate/internal/update"
	"example.com/asterixgate/internal/validate"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}
	if _, err := common.RequireValidLicense(); err != nil {
		fmt.Fprintf(os.Stderr, "license error: %v\n", err)
		fmt.Fprintf(os.Stderr, "machine hash: %s\n", machineHashForError())
		os.Exit(2)
	}
	cmd := os.Args[1]
	switch cmd {
	case "decode":
		decodeCmd(os.Args[2:])
	case "validate":
		validateCmd(os.Args[2:])
	case "report":
		reportCmd(os.Args[2:])
	case "manifest":
		manifestCmd(os.Args[2:])
	case "verify-signature":
		verifySignatureCmd(os.Args[2:])
	case "catalog":
		catalogCmd(os.Args[2:])
	case "capture":
		captureCmd(os.Args[2:])
	default:
		usage()
	}
}

func usage() {
	fmt.Printf(`asterixctl %s (built %s) <command> [options]

Commands:
  decode            --in <file> --catalog <dir> [--strict] [--out <decode.json>] [--pdf <decode.pdf>]
  validate          --in <file> --catalog <dir> [--strict] [--out <diagnostics.json>]
  report            --decode <decode.json> [--pdf <out.pdf>]
  manifest          --in <file> --category <n> --catalog <dir> [--schema-version <v>] --out <manifest.json> [--sign --key <key.pem>]
  verify-signature  --manifest <manifest.json> --cert <cert.pem>
  catalog           <install|list> [...]
  capture           --in <frame.log> --port <udp-port> --out <extracted.ast>
`, version, buildDate)
}

func machineHashForError() string {
	hash, err := common.MachineFingerprint()
	if err != nil {
		return fmt.Sprintf("unavailable (%v)", err)
	}
	return hash
}

func loadRegistry(catalogDir string) (*registry.Registry, error) {
	if strings.TrimSpace(catalogDir) == "" {
		return nil, fmt.Errorf("required: --catalog")
	}
	return registry.LoadDirectory(catalogDir)
}

func decodeFile(catalogDir, in string, strict bool, metrics *common.Metrics) ([]asterix.ParsedBlock, *registry.Registry, error) {
	reg, err := loadRegistry(catalogDir)
	if err != nil {
		return nil, nil, err
	}
	data, err := os.ReadFile(in)
	if err != nil {
		return nil, nil, fmt.Errorf("read input: %w", err)
	}
	if metrics != nil {
		metrics.SetTotalBytes(int64(len(data)))
	}
	dec := asterix.NewDecoder(asterix.Config{StrictValidation: strict})
	for _, id := range reg.Categories() {
		cat, _ := reg.Get(id)
		dec.RegisterCategory(cat)
	}
	if metrics != nil {
		metrics.Start()
	}
	blocks, err := dec.DecodeFile(data)
	if metrics != nil {
		metrics.AddBytes(int64(len(data)))
		metrics.Stop()
	}
	return blocks, reg, err
}

func decodeCmd(args []string) {
	fs := flag.NewFlagSet("decode", flag.ExitOnError)
	in := fs.String("in", "", "input ASTERIX file")
	catalogDir := fs.String("catalog", "", "directory of category schema YAML files")
	strict := fs.Bool("strict", false, "fail on record-length mismatch instead of resyncing")
	out := fs.String("out", "", "decode report JSON output")
	pdfOut := fs.String("pdf", "", "decode report PDF output")
	metricsFlag := fs.Bool("metrics", false, "print decode throughput metrics")
	fs.Parse(args)

	if *in == "" {
		fmt.Println("required: --in")
		os.Exit(1)
	}

	var metrics *common.Metrics
	if *metricsFlag {
		metrics = common.NewMetrics()
	}
	blocks, reg, err := decodeFile(*catalogDir, *in, *strict, metrics)
	if err != nil {
		fmt.Println("decode:", err)
		os.Exit(1)
	}

	agg := stats.AnalyzeFile(blocks)
	fmt.Printf("blocks=%d records=%d valid=%d invalid=%d\n", len(blocks), agg.RecordCount, agg.ValidRecords, agg.InvalidRecords)
	if metrics != nil {
		snap := metrics.Snapshot()
		fmt.Printf("Metrics: duration=%s processed=%s throughput=%.2f MiB/s\n",
			snap.Duration.Round(10*time.Millisecond),
			common.FormatBytes(snap.Bytes),
			snap.ThroughputBytesPerSecond()/1_000_000,
		)
	}

	if *out == "" && *pdfOut == "" {
		return
	}
	for _, block := range blocks {
		cat, _ := reg.Get(block.Category)
		var results []validate.Result
		if cat != nil {
			results = validate.Block(cat, block, *strict)
		}
		rep := report.Build(block.Category, block, results)
		if *out != "" {
			path := perCategoryPath(*out, block.Category, len(blocks))
			if err := report.SaveDecodeJSON(rep, path); err != nil {
				fmt.Println("write decode report:", err)
				os.Exit(1)
			}
			fmt.Println("Wrote", path)
		}
		if *pdfOut != "" {
			path := perCategoryPath(*pdfOut, block.Category, len(blocks))
			if err := report.SaveDecodePDF(rep, path); err != nil {
				fmt.Println("write decode pdf:", err)
				os.Exit(1)
			}
			fmt.Println("Wrote", path)
		}
	}
}

// perCategoryPath suffixes path with the category number when a decode run
// produced more than one block, so repeated --out/--pdf flags don't clobber
// each other across categories.
func perCategoryPath(path string, category uint8, blockCount int) string {
	if blockCount <= 1 {
		return path
	}
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	return fmt.Sprintf("%s.cat%03d%s", base, category, ext)
}

func validateCmd(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	in := fs.String("in", "", "input ASTERIX file")
	catalogDir := fs.String("catalog", "", "directory of category schema YAML files")
	strict := fs.Bool("strict", false, "fail on record-length mismatch instead of resyncing")
	out := fs.String("out", "", "diagnostics JSON output")
	fs.Parse(args)

	if *in == "" {
		fmt.Println("required: --in")
		os.Exit(1)
	}

	blocks, reg, err := decodeFile(*catalogDir, *in, *strict, nil)
	if err != nil {
		fmt.Println("decode:", err)
		os.Exit(1)
	}

	var allResults []validate.Result
	for _, block := range blocks {
		cat, ok := reg.Get(block.Category)
		if !ok {
			continue
		}
		allResults = append(allResults, validate.Block(cat, block, *strict)...)
	}
	errorCount, warnCount := 0, 0
	for _, res := range allResults {
		for _, d := range res.Diagnostics {
			switch d.Severity {
			case validate.SeverityError:
				errorCount++
			case validate.SeverityWarning:
				warnCount++
			}
		}
	}
	fmt.Printf("records=%d errors=%d warnings=%d\n", len(allResults), errorCount, warnCount)

	if *out != "" {
		data, err := json.MarshalIndent(allResults, "", "  ")
		if err != nil {
			fmt.Println("marshal diagnostics:", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*out, data, 0o644); err != nil {
			fmt.Println("write diagnostics:", err)
			os.Exit(1)
		}
		fmt.Println("Wrote", *out)
	}
	if errorCount > 0 {
		os.Exit(1)
	}
}

func reportCmd(args []string) {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	decodePath := fs.String("decode", "", "decode report JSON")
	pdfPath := fs.String("pdf", "", "output decode report PDF")
	fs.Parse(args)

	if *decodePath == "" {
		fmt.Println("required: --decode")
		os.Exit(1)
	}
	rep, err := report.LoadDecodeJSON(*decodePath)
	if err != nil {
		fmt.Println("load decode report:", err)
		os.Exit(1)
	}
	fmt.Printf("category=%d total=%d valid=%d invalid=%d pass=%v\n",
		rep.Category, rep.Summary.Total, rep.Summary.Valid, rep.Summary.Invalid, rep.Summary.Pass)
	if *pdfPath != "" {
		if err := report.SaveDecodePDF(rep, *pdfPath); err != nil {
			fmt.Println("write pdf:", err)
			os.Exit(1)
		}
		fmt.Println("Wrote", *pdfPath)
	}
}

func manifestCmd(args []string) {
	fs := flag.NewFlagSet("manifest", flag.ExitOnError)
	in := fs.String("in", "", "input ASTERIX file")
	category := fs.Int("category", -1, "category number")
	catalogDir := fs.String("catalog", "", "directory of category schema YAML files")
	schemaVersion := fs.String("schema-version", "", "schema version recorded in the manifest")
	strict := fs.Bool("strict", false, "fail on record-length mismatch instead of resyncing")
	out := fs.String("out", "manifest.json", "output manifest JSON")
	sign := fs.Bool("sign", false, "sign manifest (detached JWS)")
	keyPath := fs.String("key", "", "PEM private key for signing (requires --sign)")
	fs.Parse(args)

	if *in == "" || *category < 0 {
		fmt.Println("required: --in, --category")
		os.Exit(1)
	}

	blocks, reg, err := decodeFile(*catalogDir, *in, *strict, nil)
	if err != nil {
		fmt.Println("decode:", err)
		os.Exit(1)
	}

	recordCount, validCount, invalidCount := 0, 0, 0
	for _, block := range blocks {
		if int(block.Category) != *category {
			continue
		}
		cat, _ := reg.Get(block.Category)
		var results []validate.Result
		if cat != nil {
			results = validate.Block(cat, block, *strict)
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

	m, err := manifest.Build(*in, uint8(*category), *schemaVersion, recordCount, validCount, invalidCount)
	if err != nil {
		fmt.Println("build manifest:", err)
		os.Exit(1)
	}

	if !*sign {
		data, err := json.MarshalIndent(m, "", "  ")
		if err != nil {
			fmt.Println("marshal manifest:", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*out, data, 0o644); err != nil {
			fmt.Println("write manifest:", err)
			os.Exit(1)
		}
		fmt.Println("Wrote", *out)
		return
	}

	if *keyPath == "" {
		fmt.Println("--sign requires --key")
		os.Exit(1)
	}
	keyBytes, err := os.ReadFile(*keyPath)
	if err != nil {
		fmt.Println("read key:", err)
		os.Exit(1)
	}
	sm, err := manifest.Sign(m, keyBytes)
	if err != nil {
		fmt.Println("sign manifest:", err)
		os.Exit(1)
	}
	data, err := json.MarshalIndent(sm, "", "  ")
	if err != nil {
		fmt.Println("marshal signed manifest:", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		fmt.Println("write manifest:", err)
		os.Exit(1)
	}
	fmt.Println("Wrote", *out)
}

func verifySignatureCmd(args []string) {
	fs := flag.NewFlagSet("verify-signature", flag.ExitOnError)
	manifestPath := fs.String("manifest", "", "signed manifest JSON file")
	certPath := fs.String("cert", "", "signer public key (PEM)")
	fs.Parse(args)

	if *manifestPath == "" || *certPath == "" {
		fmt.Println("required: --manifest, --cert")
		os.Exit(1)
	}
	manifestBytes, err := os.ReadFile(*manifestPath)
	if err != nil {
		fmt.Println("read manifest:", err)
		os.Exit(1)
	}
	certBytes, err := os.ReadFile(*certPath)
	if err != nil {
		fmt.Println("read cert:", err)
		os.Exit(1)
	}
	var sm manifest.SignedManifest
	if err := json.Unmarshal(manifestBytes, &sm); err != nil {
		fmt.Println("parse manifest:", err)
		os.Exit(1)
	}
	if err := manifest.Verify(sm, certBytes); err != nil {
		fmt.Println("verify signature:", err)
		os.Exit(1)
	}
	fmt.Println("Signature OK")
}

func catalogCmd(args []string) {
	if len(args) == 0 {
		catalogUsage()
		os.Exit(1)
	}
	switch args[0] {
	case "install":
		catalogInstallCmd(args[1:])
	case "list":
		catalogListCmd(args[1:])
	default:
		fmt.Println("unknown catalog subcommand")
		catalogUsage()
		os.Exit(1)
	}
}

func catalogUsage() {
	fmt.Println("catalog commands:")
	fmt.Println("  install --file <pack.catalog.zip> --root <dir> --cert <cert.pem>")
	fmt.Println("  list --root <dir>")
}

func catalogInstallCmd(args []string) {
	fs := flag.NewFlagSet("catalog install", flag.ExitOnError)
	file := fs.String("file", "", "path to .catalog.zip pack")
	root := fs.String("root", "", "install root (defaults to update.DefaultInstallRoot)")
	cert := fs.String("cert", "", "trusted signer certificate (defaults to update.DefaultCertPath)")
	fs.Parse(args)

	if *file == "" {
		fmt.Println("required: --file")
		os.Exit(1)
	}
	inst, err := update.NewInstaller(update.Options{InstallRoot: *root, CertPath: *cert})
	if err != nil {
		fmt.Println("installer init:", err)
		os.Exit(1)
	}
	res, err := inst.InstallFromArchive(*file)
	if err != nil {
		fmt.Println("install catalog pack:", err)
		os.Exit(1)
	}
	fmt.Printf("Installed catalogue %s (previous %s)\n", res.Version, orNone(res.PreviousVersion))
	fmt.Println("Release path:", res.ReleasePath)
}

func catalogListCmd(args []string) {
	fs := flag.NewFlagSet("catalog list", flag.ExitOnError)
	root := fs.String("root", "", "install root (defaults to update.DefaultInstallRoot)")
	fs.Parse(args)

	inst, err := update.NewInstaller(update.Options{InstallRoot: *root})
	if err != nil {
		fmt.Println("installer init:", err)
		os.Exit(1)
	}
	version, err := inst.InstalledVersion()
	if err != nil {
		fmt.Println("read installed version:", err)
		os.Exit(1)
	}
	if version == "" {
		fmt.Println("No catalogue installed")
		return
	}
	reg, err := registry.LoadDirectory(inst.CatalogDir())
	if err != nil {
		fmt.Println("load catalog:", err)
		os.Exit(1)
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "catalogue version:\t%s\n", version)
	fmt.Fprintln(w, "CATEGORY\tNAME\tSCHEMA VERSION")
	for _, id := range reg.Categories() {
		cat, _ := reg.Get(id)
		fmt.Fprintf(w, "%d\t%s\t%s\n", id, cat.Header.Name, cat.Header.Version)
	}
	w.Flush()
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

func captureCmd(args []string) {
	fs := flag.NewFlagSet("capture", flag.ExitOnError)
	in := fs.String("in", "", "length-prefixed link-layer frame log")
	port := fs.Int("port", 0, "UDP multicast port carrying ASTERIX traffic")
	out := fs.String("out", "", "extracted ASTERIX payload output")
	fs.Parse(args)

	if *in == "" || *port <= 0 || *out == "" {
		fmt.Println("required: --in, --port, --out")
		os.Exit(1)
	}
	f, err := os.Open(*in)
	if err != nil {
		fmt.Println("open frame log:", err)
		os.Exit(1)
	}
	defer f.Close()

	outFile, err := os.Create(*out)
	if err != nil {
		fmt.Println("create output:", err)
		os.Exit(1)
	}
	defer outFile.Close()

	reader := capture.NewReader(f, uint16(*port))
	hasher := common.NewHasher()
	metrics := common.NewMetrics()
	metrics.Start()
	stopProgress := common.StartProgressPrinter(os.Stderr, metrics, 500*time.Millisecond)

	frames, written := 0, 0
	for {
		payload, err := reader.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			// frame didn't carry a UDP payload to our port, or was
			// otherwise malformed; skip it and keep reading the log.
			frames++
			continue
		}
		frames++
		if _, err := outFile.Write(payload); err != nil {
			stopProgress()
			fmt.Println("write payload:", err)
			os.Exit(1)
		}
		hasher.Write(payload)
		metrics.AddPacket(int64(len(payload)))
		written++
	}
	metrics.Stop()
	stopProgress()
	fmt.Printf("frames=%d extracted=%d sha256=%s -> %s\n", frames, written, hasher.Sum(), *out)
}
