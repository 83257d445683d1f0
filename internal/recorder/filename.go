package recorder

import (
	"path/filepath"
	"strings"
	"time"
)

// renderFilename expands a template's {date}/{time}/{session} placeholders
// and appends the format's extension. Unknown placeholders pass through
// unchanged rather than erroring: a recording shouldn't fail to start over
// a typo'd template.
func renderFilename(tmpl, sessionID, format string, now time.Time) string {
	if tmpl == "" {
		tmpl = defaultFilenameTemplate
	}
	r := strings.NewReplacer(
		"{date}", now.Format("2006-01-02"),
		"{time}", now.Format("150405"),
		"{session}", sessionID,
	)
	name := r.Replace(tmpl)
	ext := format
	if ext == "" {
		ext = "wav"
	}
	return name + "." + ext
}

func outputPath(dir, tmpl, sessionID, format string, now time.Time) string {
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, renderFilename(tmpl, sessionID, format, now))
}
