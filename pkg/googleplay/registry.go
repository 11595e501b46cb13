package googleplay

import (
	"fmt"

	"github.com/kluhan/kraken/pkg/pipeline"
)

// Factories maps each DocumentType this package supports to the
// pipeline.DocumentFactory that builds it. A Stage configured with a
// google_play document_type looks up its factory here once, at
// registration time, and binds it to pipeline.DataStorageHandler -
// mirroring the original's factory_task dispatch table, keyed the same
// way (on the document_type tag) but resolved once per stage rather
// than per document.
var Factories = map[DocumentType]pipeline.DocumentFactory{
	DocumentTypeDetail:     DetailFromResponse,
	DocumentTypePermission: PermissionFromResponse,
	DocumentTypeReview:     ReviewFromResponse,
	DocumentTypeDataSafety: DataSafetyFromResponse,
}

// FactoryFor looks up the DocumentFactory registered for typ.
func FactoryFor(typ DocumentType) (pipeline.DocumentFactory, error) {
	factory, ok := Factories[typ]
	if !ok {
		return nil, fmt.Errorf("googleplay: no document factory registered for %q", typ)
	}
	return factory, nil
}
