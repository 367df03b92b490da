package services

import (
	"errors"
	"fmt"
	"math"

	"grimoire/internal/models"
	"grimoire/internal/repositories"
)

// RatingService handles rating submissions and keeps the average consistent
// under concurrent writers.
type RatingService struct {
	repo repositories.BookRepository
}

// NewRatingService creates a new RatingService.
func NewRatingService(repo repositories.BookRepository) *RatingService {
	return &RatingService{
		repo: repo,
	}
}

// AddRating appends callerID's grade to a book and recomputes the average.
//
// The load, duplicate check, append and write run as one optimistic cycle:
// the conditional write carries the version seen at load time, and a
// conflict restarts the whole cycle so the duplicate check always runs
// against the state that the write will build on. Every conflict means some
// other rater's write landed, so the loop cannot stall.
func (s *RatingService) AddRating(bookID, callerID string, grade int) (*models.Book, error) {
	if grade < 0 || grade > 5 {
		return nil, ErrInvalidGrade
	}

	for {
		book, err := s.repo.GetByID(bookID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return nil, ErrNotFound
			}
			return nil, err
		}

		for _, r := range book.Ratings {
			if r.UserID == callerID {
				return nil, ErrDuplicateRating
			}
		}

		ratings := append(book.Ratings, models.Rating{UserID: callerID, Grade: grade})
		average := averageGrade(ratings)

		err = s.repo.UpdateRatings(bookID, ratings, average, book.Version)
		if err == nil {
			book.Ratings = ratings
			book.AverageRating = average
			book.Version++
			return book, nil
		}
		if errors.Is(err, repositories.ErrVersionConflict) {
			continue
		}
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to save rating for book %s: %w", bookID, err)
	}
}

// averageGrade is the mean of all grades, floored to an integer value, which
// is the precision the API has always exposed.
func averageGrade(ratings []models.Rating) float64 {
	if len(ratings) == 0 {
		return 0
	}
	sum := 0
	for _, r := range ratings {
		sum += r.Grade
	}
	return math.Floor(float64(sum) / float64(len(ratings)))
}
