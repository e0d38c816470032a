// Package pathutil implements the path-composition and is-file-probe
// primitives that spec.md treats as external collaborators it merely
// depends on (§1, §6), but whose exact contract §8 pins down with test
// cases. Paths here are always in native Windows form (drive-letter,
// backslash separator) since the only supported native engine is Windows.
package pathutil

import (
	"os"
	"strings"
)

// Join combines a root path and a relative name into a single native path,
// per the contract spec §8 pins down:
//
//	Join(`c:\`, `\foo\bar.txt`)   == `c:\foo\bar.txt`
//	Join(`c:`, `\foo\bar.txt`)    == `c:\foo\bar.txt`
//	Join(`c:\foo\`, `\bar.txt`)   == `c:\foo\bar.txt`
//	Join(`c:`, ``)                == `c:\`
//
// Multiple and mixed slash runs collapse to a single backslash.
func Join(root, name string) string {
	root = normalizeSlashes(root)
	name = normalizeSlashes(name)

	root = strings.TrimRight(root, `\`)
	name = strings.TrimLeft(name, `\`)

	if name == "" {
		return root + `\`
	}
	return root + `\` + name
}

// normalizeSlashes converts forward slashes to backslashes and collapses
// any run of slashes into a single backslash.
func normalizeSlashes(p string) string {
	p = strings.ReplaceAll(p, "/", `\`)
	var b strings.Builder
	b.Grow(len(p))
	prevSlash := false
	for _, r := range p {
		if r == '\\' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// IsFile is the portable stat-based is-file probe: stat the path and report
// whether it names a non-directory. The Windows engine in internal/ntchange
// does its own attribute-bit probe and does not call IsFile.
func IsFile(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	return !info.IsDir(), nil
}
