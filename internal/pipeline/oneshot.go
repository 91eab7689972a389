package pipeline

import (
	"os"

	"github.com/rs/zerolog"

	"quoteflow/internal"
	"quoteflow/internal/catalog"
)

// LoadCatalogFile imports a catalog file for one-off classification. Rejected
// rows are logged and left out.
func LoadCatalogFile(log zerolog.Logger, path string) ([]internal.CatalogProduct, error) {
	res, err := catalog.ImportFile(path)
	if err != nil {
		return nil, err
	}
	for _, rej := range res.Rejected {
		log.Warn().Err(rej).Str("file", path).Msg("skipped catalog row")
	}
	return res.Products, nil
}

// ClassifyInput runs one classification outside the mail pipeline. A non-empty
// catalogPath replaces products with the file's contents.
func ClassifyInput(log zerolog.Logger, subject, body, catalogPath string, products []internal.CatalogProduct) (internal.ClassificationResult, error) {
	if catalogPath != "" {
		var err error
		if products, err = LoadCatalogFile(log, catalogPath); err != nil {
			return internal.ClassificationResult{}, err
		}
	}
	return Classify(internal.EmailDocument{Subject: subject, Body: body}, products), nil
}

// ClassifyRawFile classifies a stored .eml file.
func ClassifyRawFile(path string, withAttachments bool, products []internal.CatalogProduct) (internal.ClassificationResult, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return internal.ClassificationResult{}, err
	}
	parsed, err := ParseEmailRaw(raw, withAttachments)
	if err != nil {
		return internal.ClassificationResult{}, err
	}
	return Classify(internal.EmailDocument{ID: path, Subject: parsed.Subject, Body: parsed.Body}, products), nil
}
