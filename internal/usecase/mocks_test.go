package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nutriscan/backend/internal/domain"
)

// MockCacheRepository is a mock implementation of domain.CacheRepository
type MockCacheRepository struct {
	mu       sync.Mutex
	data     map[string]interface{}
	getError error
	setError error
	gets     int
	sets     int
	deleted  []string
}

func NewMockCacheRepository() *MockCacheRepository {
	return &MockCacheRepository{data: make(map[string]interface{})}
}

func (m *MockCacheRepository) Get(ctx context.Context, key string) (interface{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.getError != nil {
		return nil, m.getError
	}
	if value, ok := m.data[key]; ok {
		return value, nil
	}
	return nil, domain.ErrCacheMiss
}

func (m *MockCacheRepository) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	if m.setError != nil {
		return m.setError
	}
	m.data[key] = value
	return nil
}

func (m *MockCacheRepository) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, key)
	delete(m.data, key)
	return nil
}

// MockAnalysisClient is a mock implementation of domain.AnalysisClient.
// Unset funcs return a three-ingredient analysis.
type MockAnalysisClient struct {
	mu             sync.Mutex
	imageFunc      func(ctx context.Context, image domain.Image, language domain.Language) (*domain.FoodAnalysis, error)
	textFunc       func(ctx context.Context, description string, language domain.Language) (*domain.FoodAnalysis, error)
	translateFunc  func(ctx context.Context, analysis *domain.FoodAnalysis, language domain.Language) (*domain.FoodAnalysis, error)
	imageCalls     int
	textCalls      int
	translateCalls int
}

func sampleAnalysis(name string) *domain.FoodAnalysis {
	return &domain.FoodAnalysis{
		ProductName: name,
		Price:       domain.PriceUnknown,
		Summary:     "High in sugar.",
		Ingredients: []domain.Ingredient{
			{Name: "Water", Rating: domain.RatingNeutral, Reason: "Hydrating."},
			{Name: "Sugar", Rating: domain.RatingPoor, Reason: "Added sugar."},
			{Name: "Citric Acid", Rating: domain.RatingModerate, Reason: "Preservative."},
		},
	}
}

func (m *MockAnalysisClient) AnalyzeImage(ctx context.Context, image domain.Image, language domain.Language) (*domain.FoodAnalysis, error) {
	m.mu.Lock()
	m.imageCalls++
	fn := m.imageFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, image, language)
	}
	return sampleAnalysis("Scanned Product"), nil
}

func (m *MockAnalysisClient) AnalyzeText(ctx context.Context, description string, language domain.Language) (*domain.FoodAnalysis, error) {
	m.mu.Lock()
	m.textCalls++
	fn := m.textFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, description, language)
	}
	return sampleAnalysis(domain.UnknownProduct), nil
}

func (m *MockAnalysisClient) Translate(ctx context.Context, analysis *domain.FoodAnalysis, language domain.Language) (*domain.FoodAnalysis, error) {
	m.mu.Lock()
	m.translateCalls++
	fn := m.translateFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, analysis, language)
	}
	out := analysis.Clone()
	out.Summary = fmt.Sprintf("[%s] %s", language, analysis.Summary)
	return &out, nil
}

func (m *MockAnalysisClient) counts() (image, text, translate int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.imageCalls, m.textCalls, m.translateCalls
}

// MockFoodRepository records every call made to it
type MockFoodRepository struct {
	mu          sync.Mutex
	stored      map[string][]domain.FoodItem
	listBlock   chan struct{}
	uploadBlock chan struct{}
	listErr     error
	uploadErr   error
	saveErr     error
	deleteErr   error
	profileErr  error

	uploads     []string
	uploadTypes []string
	saves       []domain.FoodItem
	deletes     []string
	lists       []string
	profiles    []domain.Profile
}

func NewMockFoodRepository() *MockFoodRepository {
	return &MockFoodRepository{stored: make(map[string][]domain.FoodItem)}
}

func (m *MockFoodRepository) UploadImage(ctx context.Context, userID, filename string, data []byte, contentType string) (string, error) {
	m.mu.Lock()
	block := m.uploadBlock
	m.mu.Unlock()

	if block != nil {
		<-block
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads = append(m.uploads, filename)
	m.uploadTypes = append(m.uploadTypes, contentType)
	if m.uploadErr != nil {
		return "", m.uploadErr
	}
	return fmt.Sprintf("https://storage.example.com/users/%s/1700000000000_%s", userID, filename), nil
}

func (m *MockFoodRepository) SaveFood(ctx context.Context, userID string, item domain.FoodItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves = append(m.saves, item.Clone())
	return m.saveErr
}

func (m *MockFoodRepository) ListFoods(ctx context.Context, userID string) ([]domain.FoodItem, error) {
	m.mu.Lock()
	m.lists = append(m.lists, userID)
	block := m.listBlock
	m.mu.Unlock()

	if block != nil {
		<-block
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	items := make([]domain.FoodItem, len(m.stored[userID]))
	copy(items, m.stored[userID])
	return items, nil
}

func (m *MockFoodRepository) DeleteFood(ctx context.Context, userID, foodID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes = append(m.deletes, foodID)
	return m.deleteErr
}

func (m *MockFoodRepository) SaveProfile(ctx context.Context, profile domain.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles = append(m.profiles, profile)
	return m.profileErr
}

func (m *MockFoodRepository) totalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.uploads) + len(m.saves) + len(m.deletes) + len(m.lists) + len(m.profiles)
}

func (m *MockFoodRepository) savedItems() []domain.FoodItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.FoodItem, len(m.saves))
	copy(out, m.saves)
	return out
}

func (m *MockFoodRepository) deletedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.deletes))
	copy(out, m.deletes)
	return out
}

func (m *MockFoodRepository) savedProfiles() []domain.Profile {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Profile, len(m.profiles))
	copy(out, m.profiles)
	return out
}

// MockIdentityProvider signs in whoever it is told to and notifies
// subscribers synchronously
type MockIdentityProvider struct {
	mu         sync.Mutex
	principal  *domain.Principal
	signInErr  error
	signOutErr error
	listeners  map[int]func(*domain.Principal)
	nextID     int
	signIns    int
}

func NewMockIdentityProvider(principal *domain.Principal) *MockIdentityProvider {
	return &MockIdentityProvider{principal: principal, listeners: make(map[int]func(*domain.Principal))}
}

func (m *MockIdentityProvider) signIn(p *domain.Principal) (*domain.Principal, error) {
	m.mu.Lock()
	m.signIns++
	if m.signInErr != nil {
		err := m.signInErr
		m.mu.Unlock()
		return nil, err
	}
	m.principal = p
	fns := m.snapshotListeners()
	m.mu.Unlock()

	for _, fn := range fns {
		fn(p)
	}
	return p, nil
}

func (m *MockIdentityProvider) SignInInteractive(ctx context.Context, idToken string) (*domain.Principal, error) {
	return m.signIn(&domain.Principal{UID: "google-" + idToken, Email: idToken + "@gmail.com", DisplayName: "Token User"})
}

func (m *MockIdentityProvider) SignInWithCredentials(ctx context.Context, email, password string) (*domain.Principal, error) {
	return m.signIn(&domain.Principal{UID: "uid-" + email, Email: email})
}

func (m *MockIdentityProvider) CreateAccount(ctx context.Context, email, password string) (*domain.Principal, error) {
	return m.signIn(&domain.Principal{UID: "new-" + email, Email: email})
}

func (m *MockIdentityProvider) SignOut(ctx context.Context) error {
	m.mu.Lock()
	if m.signOutErr != nil {
		err := m.signOutErr
		m.mu.Unlock()
		return err
	}
	m.principal = nil
	fns := m.snapshotListeners()
	m.mu.Unlock()

	for _, fn := range fns {
		fn(nil)
	}
	return nil
}

func (m *MockIdentityProvider) OnAuthChange(fn func(*domain.Principal)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	current := m.principal
	m.mu.Unlock()

	fn(current)
	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// snapshotListeners must be called with m.mu held
func (m *MockIdentityProvider) snapshotListeners() []func(*domain.Principal) {
	fns := make([]func(*domain.Principal), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	return fns
}

// MockImageFetcher serves images from a map; unknown URLs fail like a 404
type MockImageFetcher struct {
	mu     sync.Mutex
	images map[string]*domain.Image
	calls  []string
}

func (m *MockImageFetcher) Fetch(ctx context.Context, url string) (*domain.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, url)
	if img, ok := m.images[url]; ok {
		return img, nil
	}
	return nil, fmt.Errorf("%w: status 404", domain.ErrImageFetch)
}

var errBackendDown = errors.New("backend down")
