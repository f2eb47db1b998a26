package numbering_test

import (
	"sync"
	"testing"

	"github.com/aethra/oficina/internal/models"
	"github.com/aethra/oficina/internal/numbering"
	"github.com/aethra/oficina/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestFormat(t *testing.T) {
	assert.Equal(t, "000001", numbering.Format(1))
	assert.Equal(t, "000042", numbering.Format(42))
	assert.Equal(t, "999999", numbering.Format(999999))
	assert.Equal(t, "1000000", numbering.Format(1000000))
}

func TestParse(t *testing.T) {
	n, ok := numbering.Parse("000042")
	assert.True(t, ok)
	assert.Equal(t, int64(42), n)

	_, ok = numbering.Parse("ABC")
	assert.False(t, ok)
}

func TestNext_Sequential(t *testing.T) {
	db := testutil.NewDB(t)

	for want := 1; want <= 5; want++ {
		got, err := numbering.NextFormatted(db, numbering.QuoteSequence)
		require.NoError(t, err)
		assert.Equal(t, numbering.Format(int64(want)), got)
	}
}

func TestNext_CreatesMissingCounter(t *testing.T) {
	db := testutil.NewDB(t)

	n, err := numbering.Next(db, "outra")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSeed_ContinuesFromExisting(t *testing.T) {
	db := testutil.NewDB(t)

	require.NoError(t, numbering.Seed(db, numbering.QuoteSequence, 41))
	got, err := numbering.NextFormatted(db, numbering.QuoteSequence)
	require.NoError(t, err)
	assert.Equal(t, "000042", got)

	// seeding lower never moves the counter back
	require.NoError(t, numbering.Seed(db, numbering.QuoteSequence, 3))
	got, err = numbering.NextFormatted(db, numbering.QuoteSequence)
	require.NoError(t, err)
	assert.Equal(t, "000043", got)
}

func TestNext_ConcurrentTransactionsAreUnique(t *testing.T) {
	db := testutil.NewDB(t)
	const workers = 20

	var wg sync.WaitGroup
	results := make(chan string, workers)
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := db.Transaction(func(tx *gorm.DB) error {
				numero, err := numbering.NextFormatted(tx, numbering.QuoteSequence)
				if err != nil {
					return err
				}
				results <- numero
				return nil
			})
			if err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	seen := map[string]bool{}
	for n := range results {
		assert.False(t, seen[n], "duplicate number %s", n)
		seen[n] = true
	}
	assert.Len(t, seen, workers)
	for i := int64(1); i <= workers; i++ {
		assert.True(t, seen[numbering.Format(i)], "missing %s", numbering.Format(i))
	}

	var seq models.Sequencia
	require.NoError(t, db.Where("nome = ?", numbering.QuoteSequence).Take(&seq).Error)
	assert.Equal(t, int64(workers), seq.Valor)
}
