package fetch

import (
	"fmt"
	"regexp"
	"strings"
)

const maxSlugLen = 50

var (
	nonWordPattern   = regexp.MustCompile(`[^\w\s-]`)
	separatorPattern = regexp.MustCompile(`[-\s]+`)
)

// Filename derives the stored image filename for a note from its search
// query and its position in the batch. The index makes the name unique and
// deterministic across re-runs; the slug keeps it recognizable.
func Filename(query string, index int) string {
	slug := strings.ToLower(query)
	slug = nonWordPattern.ReplaceAllString(slug, "")
	slug = separatorPattern.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > maxSlugLen {
		slug = slug[:maxSlugLen]
		slug = strings.Trim(slug, "-")
	}
	if slug == "" {
		slug = "note"
	}
	return fmt.Sprintf("%s-%d.jpg", slug, index)
}
