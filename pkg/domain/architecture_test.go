package domain

import (
	"testing"

	"bakerycore/testutil"
)

func TestDomainStaysFreeOfInfrastructure(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".",
		testutil.Any(testutil.InternalImport, testutil.TransportImport, testutil.DriverImport),
		"pkg/domain holds entities and rules only")
}
