// Package testutil holds test helpers that keep package import boundaries
// honest: the domain stays free of infrastructure, the engine free of
// transports.
package testutil

import (
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

// ImportPredicate reports whether an import path is forbidden.
type ImportPredicate func(importPath string) bool

// InternalImport matches any path inside an internal/ tree.
func InternalImport(path string) bool {
	return strings.Contains(path, "/internal/") || strings.HasPrefix(path, "internal/")
}

var transportPrefixes = []string{
	"net/http",
	"github.com/gin-gonic/",
	"github.com/go-resty/",
	"github.com/prometheus/client_golang/prometheus/promhttp",
}

var driverPrefixes = []string{
	"database/sql",
	"github.com/jackc/pgx",
	"modernc.org/sqlite",
	"go.mongodb.org/mongo-driver",
	"github.com/aws/aws-sdk-go-v2",
}

// TransportImport matches HTTP server and client packages.
func TransportImport(path string) bool { return hasAnyPrefix(path, transportPrefixes) }

// DriverImport matches database, document store and object store SDKs.
func DriverImport(path string) bool { return hasAnyPrefix(path, driverPrefixes) }

// Any combines predicates.
func Any(preds ...ImportPredicate) ImportPredicate {
	return func(path string) bool {
		for _, p := range preds {
			if p(path) {
				return true
			}
		}
		return false
	}
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if path == p || strings.HasPrefix(path, strings.TrimSuffix(p, "/")+"/") {
			return true
		}
	}
	return false
}

// AssertNoDirectImports fails t when a non-test Go file in dir imports a path
// matched by forbidden. Build tags are not evaluated.
func AssertNoDirectImports(t testing.TB, dir string, forbidden ImportPredicate, reason string) {
	t.Helper()
	viols, err := DirectImportViolations(dir, forbidden)
	if err != nil {
		t.Fatalf("scan %s: %v", dir, err)
	}
	if len(viols) > 0 {
		t.Fatalf("forbidden imports (%s):\n%s", reason, strings.Join(viols, "\n"))
	}
}

// DirectImportViolations lists "path (in file)" for every forbidden import in dir.
func DirectImportViolations(dir string, forbidden ImportPredicate) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	fset := token.NewFileSet()
	var viols []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		file, err := parser.ParseFile(fset, filepath.Join(dir, name), nil, parser.ImportsOnly)
		if err != nil {
			return nil, err
		}
		for _, imp := range file.Imports {
			ip := strings.Trim(imp.Path.Value, "\"")
			if forbidden(ip) {
				viols = append(viols, ip+" (in "+name+")")
			}
		}
	}
	sort.Strings(viols)
	return viols, nil
}
