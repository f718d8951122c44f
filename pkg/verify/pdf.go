// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package verify

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// ExtractPDFText returns the plain text of the rendered PDF.
//
// Extraction is synchronous; the verifier only needs the text once per
// run. Encrypted or malformed PDFs surface as errors rather than as an
// empty (and therefore trivially "clean") text.
func ExtractPDFText(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open PDF %s: %w", path, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract text from %s: %w", path, err)
	}
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("read text from %s: %w", path, err)
	}
	return buf.String(), nil
}
