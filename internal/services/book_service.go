package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"grimoire/internal/models"
	"grimoire/internal/repositories"
)

// ImageRemover deletes a stored cover image by its public URL.
type ImageRemover interface {
	Remove(ctx context.Context, url string) error
}

// CleanupPublisher hands image-cleanup events to a message broker so a
// background worker can delete the object.
type CleanupPublisher interface {
	PublishImageCleanup(body []byte) error
}

// defaultTopRated is how many books the bestrating listing returns.
const defaultTopRated = 3

// BookService handles business logic related to books, including the
// ownership gate on mutations.
type BookService struct {
	repo   repositories.BookRepository
	images ImageRemover
	events CleanupPublisher // may be nil; cleanup then runs inline
}

// NewBookService creates a new BookService.
func NewBookService(repo repositories.BookRepository, images ImageRemover, events CleanupPublisher) *BookService {
	return &BookService{
		repo:   repo,
		images: images,
		events: events,
	}
}

// GetAllBooks retrieves all books.
func (s *BookService) GetAllBooks() ([]models.Book, error) {
	return s.repo.GetAll()
}

// GetBookByID retrieves a single book by its ID.
func (s *BookService) GetBookByID(id string) (*models.Book, error) {
	book, err := s.repo.GetByID(id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return book, nil
}

// GetTopRated retrieves the n best-rated books, highest average first.
// n <= 0 falls back to the default of 3.
func (s *BookService) GetTopRated(n int) ([]models.Book, error) {
	if n <= 0 {
		n = defaultTopRated
	}
	return s.repo.GetTopRated(n)
}

// CreateBook creates a book owned by ownerID. The id and owner are always
// server-assigned regardless of what the client sent, and the owner's
// initial grade (first submitted rating, 0 if none) seeds the ratings list
// and the average.
func (s *BookService) CreateBook(ownerID string, book *models.Book, imageURL string) (*models.Book, error) {
	grade := 0
	if len(book.Ratings) > 0 {
		grade = book.Ratings[0].Grade
	}
	if grade < 0 || grade > 5 {
		return nil, ErrInvalidGrade
	}

	book.ID = "" // repository assigns
	book.UserID = ownerID
	book.ImageURL = imageURL
	book.Ratings = []models.Rating{{UserID: ownerID, Grade: grade}}
	book.AverageRating = float64(grade)
	book.Version = 0

	if err := s.repo.Create(book); err != nil {
		return nil, fmt.Errorf("failed to create book: %w", err)
	}
	return book, nil
}

// UpdateBook patches the metadata (and optionally the image) of a book.
// Only the owner may update; the check runs before any write. A replaced
// image is scheduled for best-effort cleanup.
func (s *BookService) UpdateBook(id, callerID string, patch *models.Book, newImageURL string) (*models.Book, error) {
	book, err := s.GetBookByID(id)
	if err != nil {
		return nil, err
	}
	if err := ensureOwner(book, callerID); err != nil {
		return nil, err
	}

	oldImageURL := book.ImageURL
	book.Title = patch.Title
	book.Author = patch.Author
	book.Year = patch.Year
	book.Genre = patch.Genre
	if newImageURL != "" {
		book.ImageURL = newImageURL
	}

	if err := s.repo.Update(book); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update book: %w", err)
	}

	if newImageURL != "" && oldImageURL != "" && oldImageURL != newImageURL {
		s.scheduleImageCleanup(oldImageURL)
	}
	return book, nil
}

// DeleteBook removes a book and schedules its cover image for cleanup.
// Only the owner may delete.
func (s *BookService) DeleteBook(id, callerID string) error {
	book, err := s.GetBookByID(id)
	if err != nil {
		return err
	}
	if err := ensureOwner(book, callerID); err != nil {
		return err
	}

	if err := s.repo.Delete(id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete book: %w", err)
	}

	s.scheduleImageCleanup(book.ImageURL)
	return nil
}

// ensureOwner is the single ownership predicate shared by update and delete.
func ensureOwner(book *models.Book, callerID string) error {
	if book.UserID != callerID {
		return ErrForbidden
	}
	return nil
}

// scheduleImageCleanup gets rid of an orphaned image without ever failing
// the operation that orphaned it. With a broker the event is published for
// the background consumer; without one the removal runs in its own
// goroutine. Failures are logged and dropped.
func (s *BookService) scheduleImageCleanup(imageURL string) {
	if imageURL == "" {
		return
	}

	if s.events != nil {
		body, err := json.Marshal(map[string]string{"imageUrl": imageURL})
		if err != nil {
			log.Printf("Failed to marshal image cleanup event: %v", err)
			return
		}
		if err := s.events.PublishImageCleanup(body); err != nil {
			log.Printf("Warning: failed to publish image cleanup event for %s: %v", imageURL, err)
		}
		return
	}

	if s.images == nil {
		return
	}
	go func() {
		if err := s.images.Remove(context.Background(), imageURL); err != nil {
			log.Printf("Warning: failed to remove image %s: %v", imageURL, err)
		}
	}()
}
