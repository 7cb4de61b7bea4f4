package upload

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// windowsDeviceNames are reserved regardless of extension.
var windowsDeviceNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM0": true, "COM1": true, "COM2": true, "COM3": true, "COM4": true,
	"COM5": true, "COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT0": true, "LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true,
	"LPT5": true, "LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// SecureFilename reduces a client-supplied filename to a safe flat name.
//
// Accented letters are folded to ASCII and other non-ASCII runes dropped,
// path separators become spaces, whitespace runs become a single
// underscore, and anything outside [A-Za-z0-9_.-] is removed. Leading and
// trailing dots and underscores are stripped. The result may be empty.
//
//	SecureFilename("../../etc/passwd")     // "etc_passwd"
//	SecureFilename("My Report (v2).xlsx")  // "My_Report_v2.xlsx"
func SecureFilename(name string) string {
	var b strings.Builder
	for _, r := range norm.NFKD.String(name) {
		if r < unicode.MaxASCII {
			b.WriteRune(r)
		}
	}
	name = b.String()

	name = strings.NewReplacer("/", " ", `\`, " ").Replace(name)
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	name = strings.Trim(name, "._")

	if name != "" {
		stem, _, _ := strings.Cut(name, ".")
		if windowsDeviceNames[strings.ToUpper(stem)] {
			name = "_" + name
		}
	}
	return name
}

// Extension returns the lowercased text after the last dot, and whether
// the name has a dot at all.
func Extension(name string) (string, bool) {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return "", false
	}
	return strings.ToLower(name[i+1:]), true
}

// StoredName is the name a file is saved and reported under: the
// sanitized filename, or "upload" when nothing safe remains.
func StoredName(filename string) string {
	if name := SecureFilename(filename); name != "" {
		return name
	}
	return "upload"
}
