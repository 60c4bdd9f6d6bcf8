package export

import (
	"encoding/base64"
	"errors"
	"log/slog"
	"regexp"
	"strings"

	"github.com/Sayeeda346/sampledb/federation/schema"
)

var markdownImageRe = regexp.MustCompile(`/markdown_images/([A-Za-z0-9][A-Za-z0-9_.-]*)`)

// FindReferencedImages returns the filenames of all markdown images linked
// from the given markdown text.
func FindReferencedImages(text string) []string {
	matches := markdownImageRe.FindAllStringSubmatch(text, -1)
	fileNames := make([]string, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))
	for _, match := range matches {
		if _, ok := seen[match[1]]; ok {
			continue
		}
		seen[match[1]] = struct{}{}
		fileNames = append(fileNames, match[1])
	}
	return fileNames
}

// rewriteMarkdown qualifies every /markdown_images/<name> link with this
// deployment's UUID and collects the referenced blobs, base64-encoded, into
// the shared image map. Each filename is encoded at most once per export
// document.
func (c *Context) rewriteMarkdown(text string) string {
	for _, fileName := range FindReferencedImages(text) {
		image, err := schema.GetMarkdownImage(fileName, 0, c.db)
		if err != nil {
			if !errors.Is(err, schema.ErrMarkdownImageNotFound) {
				slog.Error("error loading markdown image", "file_name", fileName, "error", err)
			}
			continue
		}
		text = strings.ReplaceAll(
			text,
			"/markdown_images/"+fileName,
			"/markdown_images/"+c.ownUUID.String()+"/"+fileName,
		)
		if _, ok := c.markdownImages[fileName]; !ok {
			c.markdownImages[fileName] = base64.StdEncoding.EncodeToString(image.Content)
		}
	}
	return text
}
