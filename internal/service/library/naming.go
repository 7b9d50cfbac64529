package library

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"unicode/utf8"

	models "courseware/internal/domain/models/library"
)

// validateName trims a proposed node name and checks it against the naming rules.
// Returns the trimmed name.
func validateName(raw string, maxLen int) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", errors.New("name cannot be empty")
	}
	if n := utf8.RuneCountInString(name); n > maxLen {
		return "", fmt.Errorf("name is %d characters, maximum is %d", n, maxLen)
	}
	if strings.ContainsAny(name, `/\`) {
		return "", errors.New(`name cannot contain "/" or "\"`)
	}
	if name == "." || name == ".." {
		return "", fmt.Errorf("%q is not a valid name", name)
	}
	return name, nil
}

// takenNames indexes sibling names case-insensitively, skipping excludeID
func takenNames(siblings []models.Node, excludeID string) map[string]string {
	taken := make(map[string]string, len(siblings))
	for _, s := range siblings {
		if s.ID == excludeID {
			continue
		}
		taken[models.NameKey(s.Name)] = s.ID
	}
	return taken
}

// splitExt separates a file name into base and extension ("B.pdf" -> "B", ".pdf").
// Folders and dotfiles have no extension.
func splitExt(name string, kind models.Kind) (string, string) {
	if kind == models.KindFolder {
		return name, ""
	}
	ext := path.Ext(name)
	if ext == "" || ext == name {
		return name, ""
	}
	return strings.TrimSuffix(name, ext), ext
}

// suffixedName builds "base (n).ext", shortening base to respect maxLen
func suffixedName(name string, kind models.Kind, n, maxLen int) string {
	base, ext := splitExt(name, kind)
	suffix := fmt.Sprintf(" (%d)", n)

	room := maxLen - utf8.RuneCountInString(suffix) - utf8.RuneCountInString(ext)
	if room < 1 {
		// the extension alone leaves no space, so truncate the whole name
		base, ext = name, ""
		room = max(maxLen-utf8.RuneCountInString(suffix), 1)
	}
	if runes := []rune(base); len(runes) > room {
		base = strings.TrimSpace(string(runes[:room]))
	}
	return base + suffix + ext
}

// freeName returns name if no sibling holds it, otherwise the smallest
// free "name (n).ext" with n >= 2
func freeName(name string, kind models.Kind, taken map[string]string, maxLen int) string {
	if _, clash := taken[models.NameKey(name)]; !clash {
		return name
	}
	for n := 2; ; n++ {
		candidate := suffixedName(name, kind, n, maxLen)
		if _, clash := taken[models.NameKey(candidate)]; !clash {
			return candidate
		}
	}
}
