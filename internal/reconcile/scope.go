package reconcile

import (
	"strings"

	"github.com/phobologic/autofold/internal/lang"
	"github.com/phobologic/autofold/internal/model"
)

// SinkName is the name of the diagnostic output surface. Documents that
// show it are never analyzed.
const SinkName = "autofold"

// sinkMarkers are path fragments of host output documents.
var sinkMarkers = []string{"extension-output", "Collapse Automation", SinkName + "-output"}

// IsSinkDocument reports whether uri addresses a diagnostic output surface.
func IsSinkDocument(uri model.URI) bool {
	if uri.Scheme == "output" {
		return true
	}
	for _, marker := range sinkMarkers {
		if strings.Contains(uri.Path, marker) {
			return true
		}
	}
	return false
}

// outOfScope returns a non-empty reason when a document must not be analyzed.
func outOfScope(uri model.URI, languageID string) string {
	if IsSinkDocument(uri) {
		return "diagnostic output"
	}
	if !lang.Supported(languageID) {
		return "unsupported language"
	}
	return ""
}
