package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPredicates(t *testing.T) {
	cases := []struct {
		path      string
		internal  bool
		transport bool
		driver    bool
	}{
		{"bakerycore/internal/core", true, false, false},
		{"bakerycore/pkg/domain", false, false, false},
		{"net/http", false, true, false},
		{"net/http/httptest", false, true, false},
		{"net/httpx", false, false, false},
		{"github.com/gin-gonic/gin", false, true, false},
		{"github.com/jackc/pgx/v5/pgxpool", false, false, true},
		{"database/sql", false, false, true},
		{"go.mongodb.org/mongo-driver/mongo", false, false, true},
		{"github.com/shopspring/decimal", false, false, false},
	}
	for _, c := range cases {
		t.Run(c.path, func(t *testing.T) {
			assert.Equal(t, c.internal, InternalImport(c.path))
			assert.Equal(t, c.transport, TransportImport(c.path))
			assert.Equal(t, c.driver, DriverImport(c.path))
			assert.Equal(t, c.internal || c.transport || c.driver,
				Any(InternalImport, TransportImport, DriverImport)(c.path))
		})
	}
}

func writeFile(t *testing.T, dir, name, src string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0o600))
}

func TestDirectImportViolations(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.go", "package tmp\nimport (\n\t\"fmt\"\n\t\"net/http\"\n)\nvar _ = fmt.Sprint\nvar _ = http.MethodGet\n")
	writeFile(t, dir, "a_test.go", "package tmp\nimport \"database/sql\"\nvar _ sql.NullString\n")
	writeFile(t, dir, "notes.txt", "import \"net/http\"")

	viols, err := DirectImportViolations(dir, Any(TransportImport, DriverImport))
	require.NoError(t, err)
	assert.Equal(t, []string{"net/http (in a.go)"}, viols)
}

func TestDirectImportViolationsParseError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bad.go", "package tmp\nimport (\n")
	_, err := DirectImportViolations(dir, TransportImport)
	assert.Error(t, err)

	_, err = DirectImportViolations(filepath.Join(dir, "missing"), TransportImport)
	assert.Error(t, err)
}

func TestAssertNoDirectImportsPasses(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "x.go", "package tmp\nimport \"fmt\"\nfunc X() { fmt.Println(1) }\n")
	AssertNoDirectImports(t, dir, TransportImport, "none")
}
