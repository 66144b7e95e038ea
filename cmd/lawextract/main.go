package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"time"

	"lus-laboris-api/pkg/lawparse"
	"lus-laboris-api/pkg/storage"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/net/html/charset"
)

type Config struct {
	Mode      string
	URL       string
	OutputDir string
	RawDir    string
	Filename  string
	RawName   string
	Bucket    string
	Folder    string
	UploadRaw bool
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	config := parseFlags()

	if err := run(config); err != nil {
		log.Fatal(err)
	}
}

func parseFlags() Config {
	var config Config

	flag.StringVar(&config.Mode, "mode", "local", "Processing mode: local or s3")
	flag.StringVar(&config.URL, "url", lawparse.DefaultLawURL, "URL of the law page")
	flag.StringVar(&config.OutputDir, "output-dir", "data/processed", "Directory for the parsed JSON (local mode)")
	flag.StringVar(&config.RawDir, "raw-dir", "data/raw", "Directory for the downloaded HTML (local mode)")
	flag.StringVar(&config.Filename, "filename", lawparse.DefaultFilename, "Name of the parsed JSON file")
	flag.StringVar(&config.RawName, "raw-name", "codigo_trabajo_py.html", "Name of the raw HTML file")
	flag.StringVar(&config.Bucket, "bucket", os.Getenv("S3_BUCKET"), "Bucket name (s3 mode)")
	flag.StringVar(&config.Folder, "folder", "processed", "Bucket folder for the parsed JSON (s3 mode)")
	flag.BoolVar(&config.UploadRaw, "upload-raw", false, "Also upload the raw HTML (s3 mode)")
	flag.StringVar(&config.Endpoint, "endpoint", os.Getenv("S3_ENDPOINT"), "S3 endpoint (s3 mode)")
	flag.Parse()

	config.AccessKey = os.Getenv("S3_ACCESS_KEY")
	config.SecretKey = os.Getenv("S3_SECRET_KEY")
	config.UseSSL = os.Getenv("S3_USE_SSL") == "true"

	return config
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func run(config Config) error {
	color.Cyan("Extracting Paraguayan labour law (mode: %s)", config.Mode)

	rawHTML, err := downloadLawPage(config.URL)
	if err != nil {
		return fmt.Errorf("failed to download law page: %w", err)
	}
	color.Green("✓ Downloaded %d bytes from %s\n", len(rawHTML), config.URL)

	text, err := lawparse.ExtractText(bytes.NewReader(rawHTML))
	if err != nil {
		return fmt.Errorf("failed to extract law text: %w", err)
	}

	doc := lawparse.Parse(text)
	color.Green("✓ Parsed %d articles (ley %s)\n", len(doc.Articulos), doc.Meta.NumeroLey)

	jsonBytes, err := encodeDocument(doc)
	if err != nil {
		return fmt.Errorf("failed to encode parsed law: %w", err)
	}

	switch config.Mode {
	case "local":
		return saveLocal(config, rawHTML, jsonBytes)
	case "s3":
		return saveRemote(config, rawHTML, jsonBytes)
	default:
		return fmt.Errorf("unsupported mode: %s", config.Mode)
	}
}

// downloadLawPage fetches the page and decodes it to UTF-8. The source site
// serves latin-1, so the charset of the response cannot be assumed.
func downloadLawPage(url string) ([]byte, error) {
	spinner := getSpinner(" Downloading law page...")
	defer spinner.Finish()

	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	reader, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, err
	}
	return io.ReadAll(reader)
}

func encodeDocument(doc *lawparse.Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func saveLocal(config Config, rawHTML, jsonBytes []byte) error {
	if err := os.MkdirAll(config.RawDir, 0o755); err != nil {
		return fmt.Errorf("failed to create raw directory: %w", err)
	}
	rawPath := filepath.Join(config.RawDir, config.RawName)
	if err := os.WriteFile(rawPath, rawHTML, 0o644); err != nil {
		return fmt.Errorf("failed to write raw HTML: %w", err)
	}

	if err := os.MkdirAll(config.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	outPath := filepath.Join(config.OutputDir, config.Filename)
	if err := os.WriteFile(outPath, jsonBytes, 0o644); err != nil {
		return fmt.Errorf("failed to write parsed JSON: %w", err)
	}

	color.Green("✓ Saved parsed law to %s\n", outPath)
	return nil
}

func saveRemote(config Config, rawHTML, jsonBytes []byte) error {
	if config.Bucket == "" {
		return fmt.Errorf("bucket is required for s3 mode")
	}

	objects, err := storage.NewMinioStorage(config.Endpoint, config.AccessKey, config.SecretKey, config.UseSSL)
	if err != nil {
		return fmt.Errorf("failed to connect to object storage: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := objects.EnsureBucket(ctx, config.Bucket); err != nil {
		return fmt.Errorf("failed to ensure bucket: %w", err)
	}

	if config.UploadRaw {
		rawObject := path.Join("raw", config.RawName)
		if err := objects.Store(ctx, config.Bucket, rawObject, rawHTML, "text/html; charset=utf-8"); err != nil {
			color.Red("Failed to upload raw HTML: %v\n", err)
		} else {
			color.Green("✓ Uploaded raw HTML to %s/%s\n", config.Bucket, rawObject)
		}
	}

	object := path.Join(config.Folder, config.Filename)
	if err := objects.Store(ctx, config.Bucket, object, jsonBytes, "application/json"); err != nil {
		return fmt.Errorf("failed to upload parsed JSON: %w", err)
	}

	color.Green("✓ Uploaded parsed law to %s/%s\n", config.Bucket, object)
	return nil
}
