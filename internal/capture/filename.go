package capture

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const maxNameCollisions = 100

// BuildFilename constructs the output path. Without a note the name is
// MODEL_YYYY-MM-DD_HH.MM.SS.ext; with one, the note (spaces underscored)
// becomes the base name, suffixed _2, _3... past existing files. After too
// many collisions the timestamped form wins.
func BuildFilename(dir, model string, ts time.Time, ext, note string) string {
	stamped := filepath.Join(dir, fmt.Sprintf("%s_%s.%s", model, ts.Format("2006-01-02_15.04.05"), ext))
	if note == "" {
		return stamped
	}

	base := strings.ReplaceAll(note, " ", "_")
	for i := 0; i < maxNameCollisions; i++ {
		suffix := ""
		if i > 0 {
			suffix = fmt.Sprintf("_%d", i+1)
		}
		candidate := filepath.Join(dir, base+suffix+"."+ext)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
	return stamped
}
