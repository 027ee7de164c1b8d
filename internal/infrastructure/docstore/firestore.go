package docstore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/nutriscan/backend/internal/domain"
)

// FirestoreStore is a DocumentStore backed by Cloud Firestore.
// Collection paths map directly onto Firestore paths, so
// "users/{uid}/foods" is the foods subcollection of users/{uid}.
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore connects to projectID using application default
// credentials, or the emulator when FIRESTORE_EMULATOR_HOST is set
func NewFirestoreStore(ctx context.Context, projectID string) (*FirestoreStore, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	return &FirestoreStore{client: client}, nil
}

type firestoreDocument struct {
	snap *firestore.DocumentSnapshot
}

func (d *firestoreDocument) ID() string { return d.snap.Ref.ID }

func (d *firestoreDocument) DataTo(v any) error {
	return d.snap.DataTo(v)
}

func (s *FirestoreStore) Put(ctx context.Context, collection, id string, record any) error {
	if _, err := s.client.Collection(collection).Doc(id).Set(ctx, record); err != nil {
		return fmt.Errorf("docstore.Put %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *FirestoreStore) Get(ctx context.Context, collection, id string) (domain.Document, error) {
	snap, err := s.client.Collection(collection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, fmt.Errorf("docstore.Get %s/%s: %w", collection, id, domain.ErrDocumentNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("docstore.Get %s/%s: %w", collection, id, err)
	}
	return &firestoreDocument{snap: snap}, nil
}

func (s *FirestoreStore) List(ctx context.Context, collection, orderBy string, dir domain.Direction) ([]domain.Document, error) {
	query := s.client.Collection(collection).Query
	if orderBy != "" {
		direction := firestore.Asc
		if dir == domain.Descending {
			direction = firestore.Desc
		}
		query = query.OrderBy(orderBy, direction)
	}

	snaps, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("docstore.List %s: %w", collection, err)
	}

	docs := make([]domain.Document, len(snaps))
	for i, snap := range snaps {
		docs[i] = &firestoreDocument{snap: snap}
	}
	return docs, nil
}

func (s *FirestoreStore) Delete(ctx context.Context, collection, id string) error {
	if _, err := s.client.Collection(collection).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("docstore.Delete %s/%s: %w", collection, id, err)
	}
	return nil
}

// Close releases the client's connections
func (s *FirestoreStore) Close() error {
	return s.client.Close()
}
