// Package merge applies validated wire representations to the local store:
// each entity either becomes a new shadow row, updates an existing one when
// its content changed, or is left untouched when the import is a no-op.
package merge

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/Sayeeda346/sampledb/federation/wire"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Importer holds the per-deployment state every import pass needs: the own
// federation UUID used for self-protection, the locally known language codes
// and the clock skew tolerance for wire timestamps.
type Importer struct {
	db             *gorm.DB
	ownUUID        uuid.UUID
	languages      map[string]struct{}
	validTimeDelta time.Duration
}

func NewImporter(db *gorm.DB, ownUUID uuid.UUID, languages []string, validTimeDelta time.Duration) *Importer {
	langSet := make(map[string]struct{}, len(languages))
	for _, lang := range languages {
		langSet[strings.ToLower(lang)] = struct{}{}
	}
	return &Importer{
		db:             db,
		ownUUID:        ownUUID,
		languages:      langSet,
		validTimeDelta: validTimeDelta,
	}
}

func (i *Importer) knownLanguage(langCode string) bool {
	_, ok := i.languages[strings.ToLower(langCode)]
	return ok
}

// guardOwnUUID rejects any top-level entity claiming to be authored by this
// deployment. Accepting one would let a peer overwrite authoritative local
// data.
func (i *Importer) guardOwnUUID(componentUUID uuid.UUID, entity string, fedId int) error {
	if componentUUID == i.ownUUID {
		return wire.Invalid("cannot accept updates for own data: %s %d", entity, fedId)
	}
	return nil
}

// filterTranslation drops language codes this deployment does not know.
func (i *Importer) filterTranslation(translation map[string]string) map[string]string {
	if translation == nil {
		return nil
	}
	filtered := make(map[string]string, len(translation))
	for langCode, text := range translation {
		if i.knownLanguage(langCode) {
			filtered[strings.ToLower(langCode)] = text
		}
	}
	return filtered
}

func encodeJSONDoc(doc map[string]interface{}) (*string, error) {
	if doc == nil {
		return nil, nil
	}
	encoded, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	s := string(encoded)
	return &s, nil
}

func encodeTranslationDoc(translation map[string]string) (*string, error) {
	if translation == nil {
		return nil, nil
	}
	encoded, err := json.Marshal(translation)
	if err != nil {
		return nil, err
	}
	s := string(encoded)
	return &s, nil
}

func eqIntPtr(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func eqStrPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
