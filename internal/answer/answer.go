// Package answer builds the short textual answer returned for a query.
package answer

import (
	"fmt"

	"github.com/learnwithjiji/jiji/internal/storage"
)

// Generate returns the answer text for a sanitized query and its matches.
func Generate(query string, resources []storage.Resource) string {
	if len(resources) == 0 {
		return fmt.Sprintf("I understand you're asking about \"%s\". Relevant resources will appear as more content is added.", query)
	}
	return fmt.Sprintf("Here are %d learning resources related to \"%s\" that you may find helpful.", len(resources), query)
}
