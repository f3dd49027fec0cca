package service

import (
	"context"
	"sync"
	"testing"
	"time"

	apperrors "lodgic/pkg/errors"
	"lodgic/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run with -race. The advisory lock serializes check-then-insert per unit, so
// out of N concurrent requests for the same range exactly one may win; the
// rest see either the lock (retryable) or the conflict.
func TestCreate_ConcurrentSameRange(t *testing.T) {
	f := newFixture(t, date(2026, time.June, 1))

	const workers = 16

	var wg sync.WaitGroup
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r := f.newReservation(date(2026, time.June, 10), date(2026, time.June, 14))
			errs[i] = f.service.Create(context.Background(), r)
		}(i)
	}
	wg.Wait()

	successes := 0
	for i, err := range errs {
		if err == nil {
			successes++
			continue
		}
		retryable := apperrors.IsCode(err, apperrors.CodeUnavailable)
		conflict := apperrors.IsCode(err, apperrors.CodeDateConflict)
		assert.True(t, retryable || conflict,
			"worker %d: unexpected error kind: %v", i, err)
	}

	require.Equal(t, 1, successes, "exactly one concurrent create may win")

	overlapping, err := f.repo.FindOverlapping(context.Background(), f.unitID,
		model.NewDateRange(date(2026, time.June, 10), date(2026, time.June, 14)), "")
	require.NoError(t, err)
	assert.Len(t, overlapping, 1, "exactly one holding reservation stored")

	assert.Empty(t, f.locks.held, "all unit locks released")
}

func TestConfirm_ConcurrentOnlyOneWins(t *testing.T) {
	f := newFixture(t, date(2026, time.June, 1))

	r := f.mustCreate(t, date(2026, time.June, 10), date(2026, time.June, 14))

	const workers = 8

	var wg sync.WaitGroup
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.service.Confirm(context.Background(), r.ID, f.lessorID)
		}(i)
	}
	wg.Wait()

	successes := 0
	for i, err := range errs {
		if err == nil {
			successes++
			continue
		}
		retryable := apperrors.IsCode(err, apperrors.CodeUnavailable)
		stateConflict := apperrors.IsCode(err, apperrors.CodeStateConflict)
		assert.True(t, retryable || stateConflict,
			"worker %d: unexpected error kind: %v", i, err)
	}

	require.Equal(t, 1, successes, "exactly one concurrent confirm may win")

	stored, err := f.repo.FindByID(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, stored.Status)
	assert.True(t, f.calendar.occupied(f.unitID, date(2026, time.June, 10)))
}
