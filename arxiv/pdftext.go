package arxiv

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
)

// ExtractPDFText extracts plain text from PDF bytes using pdftotext. The
// binary ships with poppler-utils and handles arXiv's output far better than
// pure-Go extractors.
func ExtractPDFText(ctx context.Context, pdf []byte) (string, error) {
	tmp, err := os.CreateTemp("", "ronbun-*.pdf")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(pdf); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}

	cmd := exec.CommandContext(ctx, "pdftotext", tmp.Name(), "-")
	var out bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("pdftotext failed: %w: %s", err, stderr.String())
	}
	return out.String(), nil
}
