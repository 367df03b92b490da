package services_test

import (
	"fmt"
	"testing"

	"grimoire/internal/models"
	"grimoire/internal/repositories"
	"grimoire/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestRatingService_AddRating(t *testing.T) {
	repo := repositories.NewMockBookRepository()
	svc := services.NewRatingService(repo)
	book := seedBook(t, repo, "owner-1", 4)

	// Grade range is checked before anything else
	_, err := svc.AddRating(book.ID, "user-2", 6)
	assert.ErrorIs(t, err, services.ErrInvalidGrade)
	_, err = svc.AddRating(book.ID, "user-2", -1)
	assert.ErrorIs(t, err, services.ErrInvalidGrade)

	// Unknown book
	_, err = svc.AddRating("missing", "user-2", 3)
	assert.ErrorIs(t, err, services.ErrNotFound)

	// A second user's rating lands and the average is the floored mean
	updated, err := svc.AddRating(book.ID, "user-2", 2)
	assert.NoError(t, err)
	assert.Equal(t, []models.Rating{
		{UserID: "owner-1", Grade: 4},
		{UserID: "user-2", Grade: 2},
	}, updated.Ratings)
	assert.Equal(t, 3.0, updated.AverageRating) // (4+2)/2

	// The same user cannot rate twice, and the book is left as it was
	_, err = svc.AddRating(book.ID, "user-2", 5)
	assert.ErrorIs(t, err, services.ErrDuplicateRating)
	current, err := repo.GetByID(book.ID)
	require.NoError(t, err)
	assert.Len(t, current.Ratings, 2)
	assert.Equal(t, 3.0, current.AverageRating)

	// The average is floored, never rounded up: (4+2+5)/3 = 3.67 -> 3
	updated, err = svc.AddRating(book.ID, "user-3", 5)
	assert.NoError(t, err)
	assert.Equal(t, 3.0, updated.AverageRating)
}

func TestRatingService_AverageMatchesMeanAfterEachRating(t *testing.T) {
	repo := repositories.NewMockBookRepository()
	svc := services.NewRatingService(repo)
	book := seedBook(t, repo, "owner-1", 5)

	grades := []int{0, 1, 2, 3, 4, 5}
	sum := 5
	for i, grade := range grades {
		updated, err := svc.AddRating(book.ID, fmt.Sprintf("user-%d", i), grade)
		require.NoError(t, err)
		sum += grade
		want := float64((sum) / (i + 2)) // integer division == floored mean
		assert.Equal(t, want, updated.AverageRating, "after grade %d", grade)
	}
}

// Concurrent raters on one book must all land: the conditional write plus
// retry closes the classic lost-update race of a read-modify-write cycle.
func TestRatingService_ConcurrentRatersNoLostUpdate(t *testing.T) {
	repo := repositories.NewMockBookRepository()
	svc := services.NewRatingService(repo)
	book := seedBook(t, repo, "owner-1", 5)

	const raters = 32
	var g errgroup.Group
	for i := 0; i < raters; i++ {
		i := i
		g.Go(func() error {
			_, err := svc.AddRating(book.ID, fmt.Sprintf("user-%d", i), i%6)
			return err
		})
	}
	require.NoError(t, g.Wait())

	final, err := repo.GetByID(book.ID)
	require.NoError(t, err)
	assert.Len(t, final.Ratings, raters+1) // owner's seed rating + every rater

	sum := 0
	for _, r := range final.Ratings {
		sum += r.Grade
	}
	assert.Equal(t, float64(sum/len(final.Ratings)), final.AverageRating)

	// And each of them is still locked out of rating again
	_, err = svc.AddRating(book.ID, "user-0", 5)
	assert.ErrorIs(t, err, services.ErrDuplicateRating)
}
