package services_test

import (
	"context"
	"testing"
	"time"

	"grimoire/internal/models"
	"grimoire/internal/repositories"
	"grimoire/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockCleanupPublisher is a mock implementation of services.CleanupPublisher
type MockCleanupPublisher struct {
	mock.Mock
}

func (m *MockCleanupPublisher) PublishImageCleanup(body []byte) error {
	args := m.Called(body)
	return args.Error(0)
}

// MockImageRemover is a mock implementation of services.ImageRemover
type MockImageRemover struct {
	mock.Mock
}

func (m *MockImageRemover) Remove(ctx context.Context, url string) error {
	args := m.Called(ctx, url)
	return args.Error(0)
}

func seedBook(t *testing.T, repo repositories.BookRepository, ownerID string, grade int) *models.Book {
	t.Helper()
	svc := services.NewBookService(repo, nil, nil)
	book, err := svc.CreateBook(ownerID, &models.Book{
		Title:   "Les Misérables",
		Author:  "Victor Hugo",
		Year:    1862,
		Genre:   "Novel",
		Ratings: []models.Rating{{Grade: grade}},
	}, "http://localhost/images/cover.jpg")
	assert.NoError(t, err)
	return book
}

func TestBookService_CreateBook(t *testing.T) {
	repo := repositories.NewMockBookRepository()
	svc := services.NewBookService(repo, nil, nil)

	// Client-supplied id and owner must be discarded; the first submitted
	// rating seeds the list and the average under the owner's identity.
	book, err := svc.CreateBook("owner-1", &models.Book{
		ID:      "client-id",
		UserID:  "someone-else",
		Title:   "Candide",
		Author:  "Voltaire",
		Ratings: []models.Rating{{UserID: "someone-else", Grade: 4}},
	}, "http://localhost/images/candide.jpg")
	assert.NoError(t, err)
	assert.NotEmpty(t, book.ID)
	assert.NotEqual(t, "client-id", book.ID)
	assert.Equal(t, "owner-1", book.UserID)
	assert.Equal(t, []models.Rating{{UserID: "owner-1", Grade: 4}}, book.Ratings)
	assert.Equal(t, 4.0, book.AverageRating)
	assert.Equal(t, "http://localhost/images/candide.jpg", book.ImageURL)

	// Book without a submitted rating starts at grade 0
	book, err = svc.CreateBook("owner-1", &models.Book{Title: "Zadig", Author: "Voltaire"}, "")
	assert.NoError(t, err)
	assert.Equal(t, []models.Rating{{UserID: "owner-1", Grade: 0}}, book.Ratings)
	assert.Equal(t, 0.0, book.AverageRating)

	// Out-of-range initial grade is rejected
	_, err = svc.CreateBook("owner-1", &models.Book{
		Title:   "Bad",
		Author:  "Nobody",
		Ratings: []models.Rating{{Grade: 9}},
	}, "")
	assert.ErrorIs(t, err, services.ErrInvalidGrade)
}

func TestBookService_UpdateBook_OwnershipGate(t *testing.T) {
	repo := repositories.NewMockBookRepository()
	svc := services.NewBookService(repo, nil, nil)
	book := seedBook(t, repo, "owner-1", 4)

	// A non-owner is rejected and the record stays untouched
	_, err := svc.UpdateBook(book.ID, "intruder", &models.Book{Title: "Hacked"}, "")
	assert.ErrorIs(t, err, services.ErrForbidden)

	unchanged, err := svc.GetBookByID(book.ID)
	assert.NoError(t, err)
	assert.Equal(t, "Les Misérables", unchanged.Title)

	// The owner can patch metadata; ratings and owner survive the patch
	updated, err := svc.UpdateBook(book.ID, "owner-1", &models.Book{
		Title:  "Les Misérables (revised)",
		Author: "Victor Hugo",
		Year:   1863,
		Genre:  "Novel",
	}, "")
	assert.NoError(t, err)
	assert.Equal(t, "Les Misérables (revised)", updated.Title)
	assert.Equal(t, 1863, updated.Year)
	assert.Equal(t, "owner-1", updated.UserID)
	assert.Len(t, updated.Ratings, 1)
	assert.Equal(t, 4.0, updated.AverageRating)

	// Unknown book
	_, err = svc.UpdateBook("missing", "owner-1", &models.Book{Title: "x"}, "")
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestBookService_UpdateBook_ReplacedImageCleanup(t *testing.T) {
	repo := repositories.NewMockBookRepository()
	events := new(MockCleanupPublisher)
	svc := services.NewBookService(repo, nil, events)
	book := seedBook(t, repo, "owner-1", 4)

	events.On("PublishImageCleanup", mock.MatchedBy(func(body []byte) bool {
		return string(body) == `{"imageUrl":"http://localhost/images/cover.jpg"}`
	})).Return(nil).Once()

	updated, err := svc.UpdateBook(book.ID, "owner-1", &models.Book{
		Title:  "Les Misérables",
		Author: "Victor Hugo",
	}, "http://localhost/images/new-cover.jpg")
	assert.NoError(t, err)
	assert.Equal(t, "http://localhost/images/new-cover.jpg", updated.ImageURL)
	events.AssertExpectations(t)
}

func TestBookService_DeleteBook(t *testing.T) {
	repo := repositories.NewMockBookRepository()
	images := new(MockImageRemover)
	svc := services.NewBookService(repo, images, nil)
	book := seedBook(t, repo, "owner-1", 4)

	// Non-owner cannot delete
	err := svc.DeleteBook(book.ID, "intruder")
	assert.ErrorIs(t, err, services.ErrForbidden)
	_, err = svc.GetBookByID(book.ID)
	assert.NoError(t, err)

	// Owner deletes; the cover image removal is scheduled best-effort
	done := make(chan struct{})
	images.On("Remove", mock.Anything, "http://localhost/images/cover.jpg").Run(func(mock.Arguments) {
		close(done)
	}).Return(nil).Once()

	err = svc.DeleteBook(book.ID, "owner-1")
	assert.NoError(t, err)

	_, err = svc.GetBookByID(book.ID)
	assert.ErrorIs(t, err, services.ErrNotFound)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("image removal was never scheduled")
	}
	images.AssertExpectations(t)

	// Deleting again reports NotFound
	err = svc.DeleteBook(book.ID, "owner-1")
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestBookService_GetTopRated(t *testing.T) {
	repo := repositories.NewMockBookRepository()
	svc := services.NewBookService(repo, nil, nil)

	for _, grade := range []int{5, 3, 4, 1, 2} {
		seedBook(t, repo, "owner-1", grade)
	}

	books, err := svc.GetTopRated(0) // 0 falls back to the default of 3
	assert.NoError(t, err)
	assert.Len(t, books, 3)
	assert.Equal(t, 5.0, books[0].AverageRating)
	assert.Equal(t, 4.0, books[1].AverageRating)
	assert.Equal(t, 3.0, books[2].AverageRating)

	// Asking for more than exist returns the whole collection
	books, err = svc.GetTopRated(10)
	assert.NoError(t, err)
	assert.Len(t, books, 5)
}
