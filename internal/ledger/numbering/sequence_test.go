package numbering

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	require.Equal(t, "JV-2025-0001", Format(KindJournal, 2025, 1))
	require.Equal(t, "INV-2025-0042", Format(KindInvoice, 2025, 42))
	require.Equal(t, "BILL-2026-9999", Format(KindBill, 2026, 9999))
	// The pad widens instead of truncating.
	require.Equal(t, "PAY-2026-10000", Format(KindPayment, 2026, 10000))
}

func TestMemorySequenceScopesByKindAndYear(t *testing.T) {
	seq := NewMemorySequence()
	ctx := context.Background()

	first, err := seq.Next(ctx, KindJournal, 2025)
	require.NoError(t, err)
	require.Equal(t, "JV-2025-0001", first)

	second, err := seq.Next(ctx, KindJournal, 2025)
	require.NoError(t, err)
	require.Equal(t, "JV-2025-0002", second)

	otherKind, err := seq.Next(ctx, KindBill, 2025)
	require.NoError(t, err)
	require.Equal(t, "BILL-2025-0001", otherKind)

	otherYear, err := seq.Next(ctx, KindJournal, 2026)
	require.NoError(t, err)
	require.Equal(t, "JV-2026-0001", otherYear)
}

// Regression for the count-then-format race: N concurrent callers must mint N
// distinct numbers for the same kind and year.
func TestSequenceConcurrentCallersDistinct(t *testing.T) {
	const callers = 100
	seq := NewMemorySequence()
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make(chan string, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			num, err := seq.Next(ctx, KindInvoice, 2025)
			require.NoError(t, err)
			results <- num
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[string]bool, callers)
	for num := range results {
		require.False(t, seen[num], "duplicate number %s", num)
		seen[num] = true
	}
	require.Len(t, seen, callers)
}
