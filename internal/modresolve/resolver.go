// Package modresolve is the module-resolver contract the core consumes
// (spec §1, §6): it maps an import specifier to a canonical module path.
// The resolver's own implementation (filesystem walking, package.json
// resolution, node_modules lookup) is out of the core's scope; only the
// Resolver interface and a minimal implementation sufficient to drive
// tests are provided here.
package modresolve

import (
	"path/filepath"
	"strings"
)

// Resolver maps an import specifier, relative to an importing file, to a
// canonical module path used as the key into the compilation context's
// per-module export directory.
type Resolver interface {
	Resolve(specifier string, fromFile string) (canonical string, isBuiltin bool, err error)
}

// builtinModules are the module bodies out of scope per spec §1 — only
// their emitter-side call shapes are specified (internal/builtinmods).
var builtinModules = map[string]bool{
	"fs": true, "os": true, "crypto": true, "zlib": true, "path": true,
}

// FileResolver resolves relative specifiers (`./x`, `../x`) against the
// importing file's directory and recognizes the fixed set of built-in
// module names; it does not implement node_modules resolution.
type FileResolver struct{}

func NewFileResolver() *FileResolver { return &FileResolver{} }

func (r *FileResolver) Resolve(specifier, fromFile string) (string, bool, error) {
	if builtinModules[specifier] {
		return specifier, true, nil
	}
	if strings.HasPrefix(specifier, "./") || strings.HasPrefix(specifier, "../") {
		dir := filepath.Dir(fromFile)
		joined := filepath.Join(dir, specifier)
		return filepath.ToSlash(joined), false, nil
	}
	return specifier, false, nil
}
