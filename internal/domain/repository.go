package domain

import (
	"context"
	"time"
)

// CacheRepository defines the interface for caching operations
type CacheRepository interface {
	Get(ctx context.Context, key string) (interface{}, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// AnalysisClient talks to the generative model.
// AnalyzeImage and AnalyzeText return *AnalysisError on failure.
// Translate reports failures; callers decide whether to fail open.
type AnalysisClient interface {
	AnalyzeImage(ctx context.Context, image Image, language Language) (*FoodAnalysis, error)
	AnalyzeText(ctx context.Context, description string, language Language) (*FoodAnalysis, error)
	Translate(ctx context.Context, analysis *FoodAnalysis, language Language) (*FoodAnalysis, error)
}

// Direction is a sort order for document listings
type Direction int

const (
	Ascending Direction = iota
	Descending
)

// Document is a stored record returned by a DocumentStore
type Document interface {
	ID() string
	DataTo(v any) error
}

// DocumentStore is a hierarchical document database.
// Collection paths use slash-separated segments, e.g. "users/{uid}/foods".
type DocumentStore interface {
	Put(ctx context.Context, collection, id string, record any) error
	Get(ctx context.Context, collection, id string) (Document, error)
	List(ctx context.Context, collection, orderBy string, dir Direction) ([]Document, error)
	Delete(ctx context.Context, collection, id string) error
}

// BlobStore stores binary objects and hands out URLs for them
type BlobStore interface {
	Upload(ctx context.Context, path string, data []byte, contentType string) (string, error)
	DownloadURL(ctx context.Context, ref string) (string, error)
}

// FoodRepository persists a user's scanned items and their images
type FoodRepository interface {
	UploadImage(ctx context.Context, userID, filename string, data []byte, contentType string) (string, error)
	SaveFood(ctx context.Context, userID string, item FoodItem) error
	ListFoods(ctx context.Context, userID string) ([]FoodItem, error)
	DeleteFood(ctx context.Context, userID, foodID string) error
	SaveProfile(ctx context.Context, profile Profile) error
}

// IdentityProvider is one client's view of the identity service.
// OnAuthChange delivers the current principal immediately and then on every
// change; the returned function cancels the subscription.
type IdentityProvider interface {
	SignInInteractive(ctx context.Context, idToken string) (*Principal, error)
	SignInWithCredentials(ctx context.Context, email, password string) (*Principal, error)
	CreateAccount(ctx context.Context, email, password string) (*Principal, error)
	SignOut(ctx context.Context) error
	OnAuthChange(fn func(*Principal)) (unsubscribe func())
}

// ImageFetcher downloads a remote image
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) (*Image, error)
}
