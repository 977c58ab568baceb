package common

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/gen2brain/go-fitz"
)

// DocumentExtractor converts lesson documents to plain text. PDFs are read
// directly with go-fitz. DOCX and PPTX are first converted to PDF with the
// LibreOffice binary (soffice), then read the same way.
//
// REQUIRED BINARY for office formats: soffice (libreoffice) in PATH.
type DocumentExtractor struct {
	log            *Logger
	sofficePath    string
	convertTimeout time.Duration
}

func NewDocumentExtractor(log *Logger) *DocumentExtractor {
	return &DocumentExtractor{
		log:            log.With("service", "DocumentExtractor"),
		sofficePath:    "soffice",
		convertTimeout: 2 * time.Minute,
	}
}

// Extract returns the plain text of a PDF, DOCX, or PPTX file.
func (d *DocumentExtractor) Extract(ctx context.Context, path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return d.extractPDF(path)
	case ".docx", ".pptx":
		pdfPath, err := d.convertToPDF(ctx, path)
		if err != nil {
			return "", err
		}
		defer os.Remove(pdfPath)
		return d.extractPDF(pdfPath)
	default:
		return "", fmt.Errorf("no extractor for file type %q", filepath.Ext(path))
	}
}

func (d *DocumentExtractor) extractPDF(path string) (string, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return "", fmt.Errorf("error opening PDF: %w", err)
	}
	defer doc.Close()

	var sb strings.Builder
	for i := 0; i < doc.NumPage(); i++ {
		text, err := doc.Text(i)
		if err != nil {
			return "", fmt.Errorf("error extracting text from page %d: %w", i, err)
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return strings.TrimSpace(sb.String()), nil
}

func (d *DocumentExtractor) convertToPDF(ctx context.Context, path string) (string, error) {
	outDir := filepath.Dir(path)

	ctx, cancel := context.WithTimeout(ctx, d.convertTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, d.sofficePath,
		"--headless", "--norestore", "--convert-to", "pdf", "--outdir", outDir, path)
	if output, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("soffice convert failed: %w: %s", err, strings.TrimSpace(string(output)))
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	pdfPath := filepath.Join(outDir, base+".pdf")
	if _, err := os.Stat(pdfPath); err != nil {
		return "", fmt.Errorf("soffice produced no output for %s: %w", path, err)
	}
	d.log.Debug("converted office document", "input", path, "pdf", pdfPath)
	return pdfPath, nil
}
