package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/nutriscan/backend/internal/domain"
)

const (
	usersCollection = "users"
	scanDateField   = "scanDate"
)

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9.]`)

// SanitizeFilename replaces every character other than ASCII letters,
// digits and dots with an underscore
func SanitizeFilename(name string) string {
	return unsafeFilenameChars.ReplaceAllString(name, "_")
}

func foodsCollection(userID string) string {
	return fmt.Sprintf("%s/%s/foods", usersCollection, userID)
}

func imagePath(userID string, at time.Time, filename string) string {
	return fmt.Sprintf("%s/%s/%d_%s", usersCollection, userID, at.UnixMilli(), SanitizeFilename(filename))
}

// FoodStore persists food items and profiles in a document store and
// their images in a blob store
type FoodStore struct {
	docs   domain.DocumentStore
	blobs  domain.BlobStore
	now    func() time.Time
	logger *zap.Logger
}

// NewFoodStore creates a FoodStore
func NewFoodStore(docs domain.DocumentStore, blobs domain.BlobStore, logger *zap.Logger) *FoodStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FoodStore{
		docs:   docs,
		blobs:  blobs,
		now:    time.Now,
		logger: logger.Named("store"),
	}
}

// UploadImage stores the image under users/{uid}/{unixMillis}_{filename}
// and returns its download URL
func (s *FoodStore) UploadImage(ctx context.Context, userID, filename string, data []byte, contentType string) (string, error) {
	const op = "storage.UploadImage"

	path := imagePath(userID, s.now(), filename)
	ref, err := s.blobs.Upload(ctx, path, data, contentType)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	url, err := s.blobs.DownloadURL(ctx, ref)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	s.logger.Debug("image uploaded", zap.String("user", userID), zap.String("path", path))
	return url, nil
}

// SaveFood writes item to users/{uid}/foods/{item.ID}
func (s *FoodStore) SaveFood(ctx context.Context, userID string, item domain.FoodItem) error {
	if err := s.docs.Put(ctx, foodsCollection(userID), item.ID, item); err != nil {
		return fmt.Errorf("storage.SaveFood: %w", err)
	}
	return nil
}

// ListFoods returns the user's items, newest first
func (s *FoodStore) ListFoods(ctx context.Context, userID string) ([]domain.FoodItem, error) {
	const op = "storage.ListFoods"

	docs, err := s.docs.List(ctx, foodsCollection(userID), scanDateField, domain.Descending)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	items := make([]domain.FoodItem, 0, len(docs))
	for _, doc := range docs {
		var item domain.FoodItem
		if err := doc.DataTo(&item); err != nil {
			s.logger.Warn("skipping unreadable food document",
				zap.String("user", userID), zap.String("id", doc.ID()), zap.Error(err))
			continue
		}
		if item.ID == "" {
			item.ID = doc.ID()
		}
		if item.Analysis.Ingredients == nil {
			item.Analysis.Ingredients = []domain.Ingredient{}
		}
		items = append(items, item)
	}
	return items, nil
}

// DeleteFood removes users/{uid}/foods/{foodID}
func (s *FoodStore) DeleteFood(ctx context.Context, userID, foodID string) error {
	if err := s.docs.Delete(ctx, foodsCollection(userID), foodID); err != nil {
		return fmt.Errorf("storage.DeleteFood: %w", err)
	}
	return nil
}

// SaveProfile upserts users/{uid}. An existing createdAt is kept.
func (s *FoodStore) SaveProfile(ctx context.Context, profile domain.Profile) error {
	const op = "storage.SaveProfile"

	now := s.now().UTC()
	if profile.LastLogin.IsZero() {
		profile.LastLogin = now
	}

	existing, err := s.docs.Get(ctx, usersCollection, profile.UID)
	switch {
	case err == nil:
		var stored domain.Profile
		if err := existing.DataTo(&stored); err == nil && !stored.CreatedAt.IsZero() {
			profile.CreatedAt = stored.CreatedAt
		}
	case errors.Is(err, domain.ErrDocumentNotFound):
	default:
		return fmt.Errorf("%s: %w", op, err)
	}

	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}

	if err := s.docs.Put(ctx, usersCollection, profile.UID, profile); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
