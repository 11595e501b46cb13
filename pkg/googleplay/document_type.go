// Package googleplay supplies the four HistoricDocument types the
// engine's pipelines were originally built to serve - a Play Store
// app's detail page, its requested permissions, one user review, and
// its Data Safety section - plus a DocumentFactory registry keyed by
// the document_type tag a Request Task stamps onto its raw result.
// Grounded on original_source/kraken/google_play_store/documents/*.py.
package googleplay

// DocumentType tags a raw Request Task result with which document it
// decodes into, mirroring DocumentType in
// original_source/kraken/google_play_store/documents/base/document_type.py.
type DocumentType string

const (
	DocumentTypeDetail     DocumentType = "DETAIL"
	DocumentTypePermission DocumentType = "PERMISSION"
	DocumentTypeReview     DocumentType = "REVIEW"
	DocumentTypeDataSafety DocumentType = "DATA_SAFETY"
)
