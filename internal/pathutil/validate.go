package pathutil

import (
	"fmt"
	"strings"
	"unicode/utf16"
)

const MaxNameLength = 255

const invalidNameChars = `<>:"/\|?*`

var reservedNames = map[string]struct{}{
	"CON": {}, "PRN": {}, "AUX": {}, "NUL": {},
	"COM1": {}, "COM2": {}, "COM3": {}, "COM4": {}, "COM5": {}, "COM6": {}, "COM7": {}, "COM8": {}, "COM9": {},
	"LPT1": {}, "LPT2": {}, "LPT3": {}, "LPT4": {}, "LPT5": {}, "LPT6": {}, "LPT7": {}, "LPT8": {}, "LPT9": {},
}

// ValidateFileName returns "" for a usable name, otherwise a message that
// can be shown to the user as is.
func ValidateFileName(name string, isFolder bool) string {
	kind := "File"
	if isFolder {
		kind = "Folder"
	}

	if strings.TrimSpace(name) == "" {
		return kind + " name cannot be empty"
	}

	// length in UTF-16 code units, like the web client counted it
	if len(utf16.Encode([]rune(name))) > MaxNameLength {
		return fmt.Sprintf("%s name is too long (maximum %d characters)", kind, MaxNameLength)
	}

	if strings.ContainsAny(name, invalidNameChars) {
		return kind + ` name cannot contain any of the following characters: < > : " / \ | ? *`
	}

	if _, reserved := reservedNames[strings.ToUpper(name)]; reserved {
		return fmt.Sprintf("%q is a reserved name", name)
	}

	return ""
}
