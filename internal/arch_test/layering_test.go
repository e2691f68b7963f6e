package arch_test

import (
	"path/filepath"
	"strings"
	"testing"
)

// layers assigns each internal package to a numeric layer. A package at
// layer N may only import packages at layer N or below.
var layers = map[string]int{
	"config":    0,
	"fsutil":    0,
	"manifest":  0,
	"telemetry": 0,
	"vcs":       0,

	"conflict": 1,
	"kconfig":  1,
	"ui":       1,
	"watch":    1,

	"merge":     2,
	"reconcile": 2,

	"audit": 3,

	"session": 4,
}

// TestDependencyLayering verifies that no internal package imports a package
// from a higher layer.
func TestDependencyLayering(t *testing.T) {
	t.Parallel()

	dir := internalDirPath(t)
	for _, pkg := range internalPackages(t) {
		importerLayer, ok := layers[pkg]
		if !ok {
			continue
		}
		internal, _ := importsOf(t, filepath.Join(dir, pkg))
		for _, imp := range internal {
			importedLayer, ok := layers[imp]
			if !ok || importerLayer >= importedLayer {
				continue
			}
			t.Errorf("layer violation: %s (layer %d) imports %s (layer %d)",
				pkg, importerLayer, imp, importedLayer)
		}
	}
}

// TestNoUnknownPackages forces new packages to be placed in the DAG.
func TestNoUnknownPackages(t *testing.T) {
	t.Parallel()

	for _, pkg := range internalPackages(t) {
		if _, ok := layers[pkg]; !ok {
			t.Errorf("package %s has no layer assignment; add it to the layers map", pkg)
		}
	}
}

// TestInternalNeverImportsCmd keeps the command layer at the top.
func TestInternalNeverImportsCmd(t *testing.T) {
	t.Parallel()

	dir := internalDirPath(t)
	for _, pkg := range internalPackages(t) {
		_, external := importsOf(t, filepath.Join(dir, pkg))
		for _, imp := range external {
			if strings.HasPrefix(imp, modulePath+"/cmd") {
				t.Errorf("internal/%s imports %s", pkg, imp)
			}
		}
	}
}

// TestGitOnlyInVCS keeps external commands behind internal/vcs. kconfig runs
// the regen script.
func TestGitOnlyInVCS(t *testing.T) {
	t.Parallel()

	allowed := map[string]bool{"vcs": true, "kconfig": true}
	dir := internalDirPath(t)
	for _, pkg := range internalPackages(t) {
		if allowed[pkg] {
			continue
		}
		_, external := importsOf(t, filepath.Join(dir, pkg))
		for _, imp := range external {
			if imp == "os/exec" {
				t.Errorf("internal/%s imports os/exec; go through internal/vcs", pkg)
			}
		}
	}
}
