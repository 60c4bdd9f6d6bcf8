package merge

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Sayeeda346/sampledb/federation/components"
	"github.com/Sayeeda346/sampledb/federation/export"
	"github.com/Sayeeda346/sampledb/federation/schema"
	"github.com/Sayeeda346/sampledb/federation/wire"

	"gorm.io/gorm"
)

var (
	ErrMissingComponentAddress    = errors.New("component has no address configured")
	ErrUnauthorizedRequest        = errors.New("request was unauthorized")
	ErrRequestServer              = errors.New("peer reported a server error")
	ErrRequest                    = errors.New("request failed")
	ErrUnsupportedProtocolVersion = errors.New("unsupported protocol version")
)

// requestTimeout bounds every blocking call to a peer.
const requestTimeout = 60 * time.Second

func peerClient() *http.Client {
	return &http.Client{Timeout: requestTimeout}
}

// fetchExportDocument pulls the raw export document from a peer. The document
// is decoded with UseNumber so the coercion layer sees exact integers.
func (i *Importer) fetchExportDocument(ctx context.Context, component schema.Component, ignoreLastSyncTime bool) (map[string]interface{}, error) {
	if component.Address == nil {
		return nil, ErrMissingComponentAddress
	}
	token, err := components.GetOwnToken(i.db, component.Id)
	if err != nil {
		return nil, err
	}

	endpoint := strings.TrimRight(*component.Address, "/") + "/federation/v1/shares/objects/"
	if component.LastSyncTimestamp != nil && !ignoreLastSyncTime {
		query := url.Values{}
		query.Set("last_sync_timestamp", component.LastSyncTimestamp.UTC().Format(wire.TimestampFormat))
		endpoint += "?" + query.Encode()
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	request.Header.Set("Authorization", "Bearer "+token)

	response, err := peerClient().Do(request)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequest, err)
	}
	defer response.Body.Close()

	switch {
	case response.StatusCode == http.StatusUnauthorized:
		return nil, ErrUnauthorizedRequest
	case response.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", ErrRequestServer, response.StatusCode)
	case response.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: status %d", ErrRequest, response.StatusCode)
	}

	decoder := json.NewDecoder(response.Body)
	decoder.UseNumber()
	var document map[string]interface{}
	if err := decoder.Decode(&document); err != nil {
		return nil, wire.Invalid("malformed export document: %v", err)
	}
	return document, nil
}

// checkHeader validates the export document header against the source peer
// and this deployment's identity and protocol support.
func (i *Importer) checkHeader(document map[string]interface{}, component schema.Component) (*time.Time, error) {
	header, err := wire.Dict(document["header"])
	if err != nil {
		return nil, err
	}
	dbUUID, err := wire.UUID(header["db_uuid"])
	if err != nil {
		return nil, err
	}
	if dbUUID != component.UUID {
		return nil, wire.Invalid("export document from %s claims origin %s", component.UUID, dbUUID)
	}
	targetUUID, err := wire.OptionalUUID(header["target_uuid"])
	if err != nil {
		return nil, err
	}
	if targetUUID != nil && *targetUUID != i.ownUUID {
		return nil, wire.Invalid("export document addressed to %s", targetUUID)
	}
	version, err := wire.Dict(header["protocol_version"])
	if err != nil {
		return nil, err
	}
	major, err := wire.Int(version["major"])
	if err != nil {
		return nil, err
	}
	if major > export.ProtocolVersionMajor {
		return nil, fmt.Errorf("%w: major version %d", ErrUnsupportedProtocolVersion, major)
	}
	return wire.OptionalUTCDatetime(header["sync_timestamp"], i.validTimeDelta)
}

// ImportPayload applies one export document from the given source peer. Each
// entity commits in its own transaction, so a failure partway leaves earlier
// entities imported; rerunning the pass is safe because imports are
// idempotent.
func (i *Importer) ImportPayload(document map[string]interface{}, component schema.Component) error {
	syncTimestamp, err := i.checkHeader(document, component)
	if err != nil {
		return err
	}

	// Entity order matters: later types reference earlier ones, keeping
	// placeholder creation to the rare cross-batch case.
	for _, step := range []struct {
		key      string
		importFn func(map[string]interface{}, schema.Component) error
	}{
		{"users", func(d map[string]interface{}, c schema.Component) error {
			_, err := i.ParseImportUser(d, c)
			return err
		}},
		{"instruments", func(d map[string]interface{}, c schema.Component) error {
			_, err := i.ParseImportInstrument(d, c)
			return err
		}},
		{"action_types", func(d map[string]interface{}, c schema.Component) error {
			_, err := i.ParseImportActionType(d, c)
			return err
		}},
		{"actions", func(d map[string]interface{}, c schema.Component) error {
			_, err := i.ParseImportAction(d, c)
			return err
		}},
		{"locations", func(d map[string]interface{}, c schema.Component) error {
			_, err := i.ParseImportLocation(d, c)
			return err
		}},
		{"objects", func(d map[string]interface{}, c schema.Component) error {
			_, err := i.ParseImportObject(d, c)
			return err
		}},
	} {
		entries, err := wire.OptionalList(document[step.key])
		if err != nil {
			return err
		}
		for _, entry := range entries {
			data, err := wire.Dict(entry)
			if err != nil {
				return err
			}
			if err := step.importFn(data, component); err != nil {
				return err
			}
		}
	}

	if err := i.importMarkdownImages(document, component); err != nil {
		return err
	}

	if syncTimestamp != nil {
		result := i.db.Model(&schema.Component{}).Where("id = ?", component.Id).
			Update("last_sync_timestamp", *syncTimestamp)
		if result.Error != nil {
			slog.Error("sql error updating last sync timestamp", "component_id", component.Id, "error", result.Error)
			return schema.ErrDbAccessFailed
		}
	}
	return nil
}

// importMarkdownImages stores the payload's base64 image blobs under the
// source component. Existing blobs are content-addressed by filename and
// never overwritten.
func (i *Importer) importMarkdownImages(document map[string]interface{}, component schema.Component) error {
	images, err := wire.OptionalDict(document["markdown_images"])
	if err != nil {
		return err
	}
	for fileName, encoded := range images {
		content, err := wire.Str(encoded)
		if err != nil {
			return err
		}
		decoded, err := base64.StdEncoding.DecodeString(content)
		if err != nil {
			return wire.Invalid("markdown image %q is not valid base64", fileName)
		}
		err = i.db.Transaction(func(txn *gorm.DB) error {
			_, err := schema.GetMarkdownImage(fileName, component.Id, txn)
			if errors.Is(err, schema.ErrMarkdownImageNotFound) {
				image := schema.MarkdownImage{
					FileName:    fileName,
					ComponentId: component.Id,
					Content:     decoded,
				}
				return txn.Create(&image).Error
			}
			return err
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// ImportUpdates runs one full pull-and-import pass against a peer.
func (i *Importer) ImportUpdates(ctx context.Context, component schema.Component, ignoreLastSyncTime bool) error {
	document, err := i.fetchExportDocument(ctx, component, ignoreLastSyncTime)
	if err != nil {
		return err
	}
	return i.ImportPayload(document, component)
}
