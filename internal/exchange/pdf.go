package exchange

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/mandolyte/mdtopdf"
)

// imgPattern matches the <img> tags the Markdown export emits for covers and
// character portraits.
var imgPattern = regexp.MustCompile(`<img src="([^"]*)"[^>]*/>`)

// PDF renders the Markdown export to pdfPath and returns its absolute path.
func (x *Exporter) PDF(ctx context.Context, pdfPath string) (string, error) {
	if !strings.HasSuffix(strings.ToLower(pdfPath), ".pdf") {
		return "", fmt.Errorf("output file must have .pdf extension: %s", pdfPath)
	}

	var sb strings.Builder
	if err := x.Markdown(ctx, &sb); err != nil {
		return "", err
	}
	content := pdfSafe(sb.String())

	renderer := mdtopdf.NewPdfRenderer("P", "A4", pdfPath, "", nil, mdtopdf.LIGHT)
	if err := renderer.Process([]byte(content)); err != nil {
		return "", fmt.Errorf("render pdf: %w", err)
	}

	abs, err := filepath.Abs(pdfPath)
	if err != nil {
		return pdfPath, nil
	}
	return abs, nil
}

// pdfSafe rewrites inline HTML the PDF renderer cannot draw: images become
// their URL and line breaks become spaces.
func pdfSafe(md string) string {
	md = imgPattern.ReplaceAllString(md, "$1")
	return strings.ReplaceAll(md, "<br>", " ")
}
