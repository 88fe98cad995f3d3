package archive

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bakerycore/internal/reporting"
	"bakerycore/pkg/domain"
)

var decimalEqual = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

func summary(day int, efficiency string) reporting.DailySummary {
	return reporting.DailySummary{
		Date:           time.Date(2024, 5, day, 0, 0, 0, 0, time.UTC),
		Runs:           3,
		Planned:        decimal.RequireFromString("130"),
		Produced:       decimal.RequireFromString("121.5"),
		Waste:          decimal.RequireFromString("9"),
		Efficiency:     decimal.RequireFromString(efficiency),
		SalesTotal:     decimal.RequireFromString("10.25"),
		UnitsSold:      14,
		LowStockCount:  1,
		InventoryValue: decimal.RequireFromString("0.1154"),
	}
}

func TestDocumentRoundTripKeepsPrecision(t *testing.T) {
	in := summary(2, "93.4615384615384615")
	doc, err := NewDocument(in, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "2024-05-02", doc.Day)

	out, err := doc.Summary()
	require.NoError(t, err)
	if diff := cmp.Diff(in, out, decimalEqual); diff != "" {
		t.Fatalf("summary mismatch (-want +got):\n%s", diff)
	}
}

func TestDayKeyUsesUTC(t *testing.T) {
	zone := time.FixedZone("UTC+10", 10*60*60)
	assert.Equal(t, "2024-05-01", DayKey(time.Date(2024, 5, 2, 8, 0, 0, 0, zone)))
}

func TestMemoryArchive(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	for _, s := range []reporting.DailySummary{summary(3, "80"), summary(1, "70"), summary(2, "75")} {
		require.NoError(t, m.Save(ctx, s))
	}
	require.NoError(t, m.Save(ctx, summary(2, "90")))

	got, err := m.Get(ctx, time.Date(2024, 5, 2, 17, 45, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, got.Efficiency.Equal(decimal.NewFromInt(90)))

	_, err = m.Get(ctx, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	assert.True(t, domain.IsNotFound(err), "got %v", err)

	list, err := m.List(ctx, time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC), time.Date(2024, 5, 3, 23, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 2, list[0].Date.Day())
	assert.Equal(t, 3, list[1].Date.Day())

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, m.Save(cancelled, summary(4, "1")), context.Canceled)
	require.NoError(t, m.Close(ctx))
}
