package reviews

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	pkgerrors "github.com/velourastyle/storefront-gateway/pkg/errors"
	"github.com/velourastyle/storefront-gateway/pkg/logger"
	"github.com/velourastyle/storefront-gateway/pkg/sharedstore"
)

// Review is one customer's rating of a product. Each customer holds at most
// one record per product; resubmitting overwrites it.
type Review struct {
	CustomerID string    `json:"customer_id"`
	Author     string    `json:"author,omitempty"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Summary aggregates a product's reviews for the listing page.
type Summary struct {
	Count   int     `json:"count"`
	Average float64 `json:"average"`
}

// SubmitInput is the payload for posting a review.
type SubmitInput struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=2000"`
	Author  string `json:"author"`
}

type store interface {
	Write(ctx context.Context, namespace, key, value string) error
	Delete(ctx context.Context, namespace, key string) error
	List(ctx context.Context, namespace string) (map[string]string, error)
}

// Service stores product reviews in the shared store, namespaced per product
// and keyed by customer so a resubmission replaces the earlier review.
type Service struct {
	store  store
	logger *logger.Logger
	now    func() time.Time
}

func NewService(st store, logg *logger.Logger) (*Service, error) {
	if st == nil {
		return nil, fmt.Errorf("shared store is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Service{store: st, logger: logg, now: time.Now}, nil
}

// Submit posts or replaces the customer's review of the product.
func (s *Service) Submit(ctx context.Context, customerID, productHandle string, input SubmitInput) (*Review, error) {
	if customerID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthenticated, "reviews require a signed-in customer")
	}
	if productHandle == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product handle is required")
	}
	if input.Rating < 1 || input.Rating > 5 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rating must be between 1 and 5")
	}

	review := Review{
		CustomerID: customerID,
		Author:     strings.TrimSpace(input.Author),
		Rating:     input.Rating,
		Comment:    strings.TrimSpace(input.Comment),
		CreatedAt:  s.now().UTC(),
	}
	payload, err := json.Marshal(review)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode review")
	}
	if err := s.store.Write(ctx, sharedstore.ReviewNamespace(productHandle), customerID, string(payload)); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write review")
	}
	return &review, nil
}

// Delete removes the customer's review of the product.
func (s *Service) Delete(ctx context.Context, customerID, productHandle string) error {
	if customerID == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthenticated, "reviews require a signed-in customer")
	}
	if productHandle == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product handle is required")
	}
	if err := s.store.Delete(ctx, sharedstore.ReviewNamespace(productHandle), customerID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete review")
	}
	return nil
}

// List returns the product's reviews, newest first.
func (s *Service) List(ctx context.Context, productHandle string) ([]Review, error) {
	if productHandle == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product handle is required")
	}
	records, err := s.store.List(ctx, sharedstore.ReviewNamespace(productHandle))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reviews")
	}

	reviews := make([]Review, 0, len(records))
	for key, value := range records {
		var review Review
		if err := json.Unmarshal([]byte(value), &review); err != nil {
			s.logger.Warn(s.logger.WithField(ctx, "review_key", key), "skipping corrupt review record")
			continue
		}
		if review.CustomerID == "" {
			review.CustomerID = key
		}
		reviews = append(reviews, review)
	}
	sort.Slice(reviews, func(i, j int) bool { return reviews[i].CreatedAt.After(reviews[j].CreatedAt) })
	return reviews, nil
}

// Summarize computes the review count and mean rating.
func (s *Service) Summarize(ctx context.Context, productHandle string) (*Summary, error) {
	reviews, err := s.List(ctx, productHandle)
	if err != nil {
		return nil, err
	}
	summary := &Summary{Count: len(reviews)}
	if summary.Count == 0 {
		return summary, nil
	}
	total := 0
	for _, review := range reviews {
		total += review.Rating
	}
	summary.Average = float64(total) / float64(summary.Count)
	return summary, nil
}
