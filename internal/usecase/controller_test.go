package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nutriscan/backend/internal/domain"
)

type stepClock struct {
	base  time.Time
	ticks atomic.Int64
}

func (c *stepClock) Now() time.Time {
	return c.base.Add(time.Duration(c.ticks.Add(1)) * time.Second)
}

type controllerFixture struct {
	controller *Controller
	analysis   *MockAnalysisClient
	identity   *MockIdentityProvider
	store      *MockFoodRepository
	images     *MockImageFetcher
}

func newFixture(t *testing.T, principal *domain.Principal, cfg ControllerConfig) *controllerFixture {
	t.Helper()
	f := &controllerFixture{
		analysis: &MockAnalysisClient{},
		identity: NewMockIdentityProvider(principal),
		store:    NewMockFoodRepository(),
		images:   &MockImageFetcher{images: map[string]*domain.Image{}},
	}
	clock := &stepClock{base: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	f.controller = NewController(ControllerDeps{
		Analysis: f.analysis,
		Identity: f.identity,
		Store:    f.store,
		Images:   f.images,
		Clock:    clock.Now,
	}, cfg)
	t.Cleanup(f.controller.Close)
	return f
}

func (f *controllerFixture) start() *Controller {
	f.controller.Start(context.Background())
	return f.controller
}

func historyIDs(items []domain.FoodItem) []string {
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	return ids
}

var alice = &domain.Principal{UID: "alice", Email: "alice@example.com", DisplayName: "Alice"}

func TestController_SignedOutScreens(t *testing.T) {
	c := newFixture(t, nil, ControllerConfig{}).start()

	state := c.State()
	assert.Equal(t, domain.ScreenHome, state.Screen)
	assert.Nil(t, state.User)
	assert.False(t, state.AuthLoading)
	assert.Equal(t, domain.LanguageEnglish, state.Language)

	c.ShowLogin()
	assert.Equal(t, domain.ScreenLogin, c.State().Screen)
	c.ShowHome()
	assert.Equal(t, domain.ScreenHome, c.State().Screen)

	_, err := c.CaptureText(context.Background(), "chips")
	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)
	assert.ErrorIs(t, c.Navigate(domain.ViewHistory), domain.ErrNotAuthenticated)
	assert.ErrorIs(t, c.Upgrade(domain.TierPro), domain.ErrNotAuthenticated)
}

func TestController_GuestLogin(t *testing.T) {
	c := newFixture(t, nil, ControllerConfig{}).start()

	c.GuestLogin()
	state := c.State()
	require.NotNil(t, state.User)
	assert.True(t, state.User.IsGuest())
	assert.Equal(t, domain.TierGuest, state.User.Tier)
	assert.Equal(t, domain.ScreenApp, state.Screen)
	assert.Equal(t, domain.ViewScan, state.View)
	assert.Equal(t, []string{"guest-sample-2", "guest-sample-1"}, historyIDs(state.History))

	// a second guest login keeps the existing session
	_, err := c.CaptureText(context.Background(), "cola")
	require.NoError(t, err)
	c.GuestLogin()
	assert.Len(t, c.State().History, 3)
}

func TestController_GuestNeverTouchesStore(t *testing.T) {
	f := newFixture(t, nil, ControllerConfig{RetranslateOnLanguageChange: true})
	c := f.start()
	ctx := context.Background()

	c.GuestLogin()

	textItem, err := c.CaptureText(ctx, "Water, Sugar, Citric Acid")
	require.NoError(t, err)
	imageItem, err := c.CaptureImage(ctx, domain.ImageUpload{Filename: "scan.jpg", ContentType: "image/jpeg", Data: []byte{0xff, 0xd8, 0xff}})
	require.NoError(t, err)

	require.NoError(t, c.Rescan(ctx, imageItem.ID))
	require.NoError(t, c.SetLanguage(ctx, domain.LanguageGerman))
	require.NoError(t, c.RequestDelete(textItem.ID))
	require.NoError(t, c.ConfirmDelete(ctx))
	require.NoError(t, c.Upgrade(domain.TierStarter))
	require.NoError(t, c.SignOut(ctx))
	c.Wait()

	assert.Zero(t, f.store.totalCalls())
	assert.Zero(t, f.identity.signIns)
	assert.Nil(t, c.State().User)
	assert.Empty(t, c.State().History)
}

func TestController_CaptureText(t *testing.T) {
	f := newFixture(t, alice, ControllerConfig{})
	c := f.start()

	item, err := c.CaptureText(context.Background(), "Water, Sugar, Citric Acid")
	require.NoError(t, err)
	c.Wait()

	assert.Len(t, item.Analysis.Ingredients, 3)
	assert.Equal(t, domain.UnknownProduct, item.Analysis.ProductName)
	assert.Equal(t, domain.LocationManualInput, item.Location)
	assert.Equal(t, domain.TextScanPlaceholder, item.Image)

	state := c.State()
	assert.Equal(t, domain.ViewDetail, state.View)
	require.NotNil(t, state.Selected)
	assert.Equal(t, item.ID, state.Selected.ID)
	assert.Equal(t, 1, state.User.ScanCount)

	saved := f.store.savedItems()
	require.Len(t, saved, 1)
	assert.Equal(t, item.ID, saved[0].ID)
	assert.Equal(t, domain.TextScanPlaceholder, saved[0].Image)
	assert.Empty(t, f.store.uploads)
}

func TestController_CaptureTextBusy(t *testing.T) {
	f := newFixture(t, nil, ControllerConfig{})
	f.analysis.textFunc = func(ctx context.Context, description string, language domain.Language) (*domain.FoodAnalysis, error) {
		return nil, &domain.AnalysisError{Kind: domain.AnalysisBusy, Source: domain.SourceText, Err: errBackendDown}
	}
	c := f.start()
	c.GuestLogin()

	_, err := c.CaptureText(context.Background(), "chips")
	assert.True(t, domain.IsBusy(err))
	assert.Len(t, c.State().History, 2)
	assert.Equal(t, domain.ViewScan, c.State().View)
}

func TestController_CaptureImageSwapsInUploadedURL(t *testing.T) {
	f := newFixture(t, alice, ControllerConfig{})
	c := f.start()

	item, err := c.CaptureImage(context.Background(), domain.ImageUpload{
		Filename:    "snack.png",
		ContentType: "image/png",
		Data:        []byte{0x89, 0x50, 0x4e, 0x47},
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(item.Image, "data:image/png;base64,"))
	assert.Equal(t, domain.LocationImageScan, item.Location)

	c.Wait()

	wantURL := "https://storage.example.com/users/alice/1700000000000_snack.png"
	saved := f.store.savedItems()
	require.Len(t, saved, 1)
	assert.Equal(t, wantURL, saved[0].Image)

	got, err := c.Item(item.ID)
	require.NoError(t, err)
	assert.Equal(t, wantURL, got.Image)
}

func TestController_UploadFailureKeepsLocalItem(t *testing.T) {
	f := newFixture(t, alice, ControllerConfig{})
	f.store.uploadErr = errBackendDown
	c := f.start()

	item, err := c.CaptureImage(context.Background(), domain.ImageUpload{ContentType: "image/jpeg", Data: []byte{1, 2, 3}})
	require.NoError(t, err)
	c.Wait()

	assert.Empty(t, f.store.savedItems())
	got, err := c.Item(item.ID)
	require.NoError(t, err)
	assert.True(t, got.HasInlineImage())
}

func TestController_CaptureImageDefaultsContentType(t *testing.T) {
	f := newFixture(t, alice, ControllerConfig{})
	c := f.start()

	item, err := c.CaptureImage(context.Background(), domain.ImageUpload{Filename: "label", Data: []byte{0xff, 0xd8}})
	require.NoError(t, err)
	c.Wait()

	assert.True(t, strings.HasPrefix(item.Image, "data:image/jpeg;base64,"))
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	assert.Equal(t, []string{"image/jpeg"}, f.store.uploadTypes)
}

func TestController_RescanDuringUploadKeepsDurableURL(t *testing.T) {
	f := newFixture(t, alice, ControllerConfig{})
	c := f.start()
	block := make(chan struct{})
	f.store.mu.Lock()
	f.store.uploadBlock = block
	f.store.mu.Unlock()

	item, err := c.CaptureImage(context.Background(), domain.ImageUpload{
		Filename:    "snack.png",
		ContentType: "image/png",
		Data:        []byte{0x89, 0x50, 0x4e, 0x47},
	})
	require.NoError(t, err)

	f.analysis.mu.Lock()
	f.analysis.imageFunc = func(ctx context.Context, image domain.Image, language domain.Language) (*domain.FoodAnalysis, error) {
		return sampleAnalysis("Rescanned Snack"), nil
	}
	f.analysis.mu.Unlock()

	require.NoError(t, c.Rescan(context.Background(), item.ID))
	assert.Empty(t, f.store.savedItems(), "nothing is written while the upload is pending")

	close(block)
	c.Wait()

	wantURL := "https://storage.example.com/users/alice/1700000000000_snack.png"
	saved := f.store.savedItems()
	require.NotEmpty(t, saved)
	for _, s := range saved {
		assert.Equal(t, wantURL, s.Image)
	}
	assert.Equal(t, "Rescanned Snack", saved[len(saved)-1].Analysis.ProductName)

	got, err := c.Item(item.ID)
	require.NoError(t, err)
	assert.Equal(t, wantURL, got.Image)
	assert.Equal(t, "Rescanned Snack", got.Analysis.ProductName)
}

func TestController_HistoryLoadedNewestFirst(t *testing.T) {
	f := newFixture(t, alice, ControllerConfig{})
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	f.store.stored["alice"] = []domain.FoodItem{
		itemAt("old", base),
		itemAt("newest", base.Add(2*time.Hour)),
		itemAt("middle", base.Add(time.Hour)),
	}
	c := f.start()

	state := c.State()
	assert.Equal(t, domain.ScreenApp, state.Screen)
	assert.False(t, state.AuthLoading)
	assert.Equal(t, "Alice", state.User.Name)
	assert.Equal(t, domain.TierFree, state.User.Tier)
	assert.Equal(t, []string{"newest", "middle", "old"}, historyIDs(state.History))

	_, err := c.CaptureText(context.Background(), "cola")
	require.NoError(t, err)
	c.Wait()
	assert.Len(t, c.State().History, 4)
	assert.Equal(t, c.State().Selected.ID, c.State().History[0].ID)
}

func TestController_HistoryLoadFailure(t *testing.T) {
	f := newFixture(t, alice, ControllerConfig{})
	f.store.listErr = errBackendDown
	c := f.start()

	state := c.State()
	assert.Equal(t, domain.ScreenApp, state.Screen)
	assert.Empty(t, state.History)
	assert.False(t, state.AuthLoading)
}

func TestController_StaleHistoryLoadIsDiscarded(t *testing.T) {
	f := newFixture(t, nil, ControllerConfig{})
	f.store.stored["uid-bob@example.com"] = []domain.FoodItem{itemAt("bob-item", time.Now())}
	f.store.listBlock = make(chan struct{})
	c := f.start()
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, c.SignInWithCredentials(ctx, "bob@example.com", "hunter22"))
	}()

	require.Eventually(t, func() bool {
		f.store.mu.Lock()
		defer f.store.mu.Unlock()
		return len(f.store.lists) == 1
	}, time.Second, 5*time.Millisecond)
	assert.True(t, c.State().AuthLoading)

	require.NoError(t, c.SignOut(ctx))
	close(f.store.listBlock)
	wg.Wait()

	state := c.State()
	assert.Nil(t, state.User)
	assert.Empty(t, state.History)
	assert.Equal(t, domain.ScreenHome, state.Screen)
}

func TestController_LoginErrors(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		code    domain.AuthErrorCode
		login   func(c *Controller) error
		message string
	}{
		{
			name:    "wrong password",
			code:    domain.AuthWrongPassword,
			login:   func(c *Controller) error { return c.SignInWithCredentials(ctx, "a@b.com", "nope") },
			message: "Invalid email or password.",
		},
		{
			name:    "credential login other failure",
			code:    domain.AuthInternal,
			login:   func(c *Controller) error { return c.SignInWithCredentials(ctx, "a@b.com", "nope") },
			message: "Login failed. Please check your credentials.",
		},
		{
			name:    "unauthorized domain",
			code:    domain.AuthUnauthorizedDomain,
			login:   func(c *Controller) error { return c.SignInInteractive(ctx, "token") },
			message: "Domain not authorized for Google Login. Please use Guest Mode.",
		},
		{
			name:    "interactive other failure",
			code:    domain.AuthInvalidCredential,
			login:   func(c *Controller) error { return c.SignInInteractive(ctx, "token") },
			message: "Login failed. Please try again or continue as guest.",
		},
		{
			name:    "email in use",
			code:    domain.AuthEmailInUse,
			login:   func(c *Controller) error { return c.CreateAccount(ctx, "a@b.com", "secret1") },
			message: "Email is already in use.",
		},
		{
			name:    "weak password",
			code:    domain.AuthWeakPassword,
			login:   func(c *Controller) error { return c.CreateAccount(ctx, "a@b.com", "123") },
			message: "Password should be at least 6 characters.",
		},
		{
			name:    "signup other failure",
			code:    domain.AuthInvalidEmail,
			login:   func(c *Controller) error { return c.CreateAccount(ctx, "nope", "secret1") },
			message: "Signup failed.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil, ControllerConfig{})
			f.identity.signInErr = &domain.AuthError{Code: tt.code}
			c := f.start()
			c.ShowLogin()

			err := tt.login(c)
			var loginErr *LoginError
			require.True(t, errors.As(err, &loginErr))
			assert.Equal(t, tt.code, loginErr.Code)
			assert.Equal(t, tt.message, loginErr.Message)
			assert.False(t, loginErr.Silent())

			state := c.State()
			assert.Equal(t, tt.message, state.LoginError)
			assert.False(t, state.LoggingIn)
			assert.Equal(t, domain.ScreenLogin, state.Screen)
		})
	}
}

func TestController_ClosedSignInWindowIsSilent(t *testing.T) {
	f := newFixture(t, nil, ControllerConfig{})
	f.identity.signInErr = &domain.AuthError{Code: domain.AuthPopupClosed}
	c := f.start()

	err := c.SignInInteractive(context.Background(), "")
	var loginErr *LoginError
	require.True(t, errors.As(err, &loginErr))
	assert.True(t, loginErr.Silent())
	assert.Empty(t, c.State().LoginError)
}

func TestController_ProfileSavedOnInteractiveAndSignup(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t, nil, ControllerConfig{})
	c := f.start()
	require.NoError(t, c.SignInInteractive(ctx, "tok"))
	profiles := f.store.savedProfiles()
	require.Len(t, profiles, 1)
	assert.Equal(t, "google-tok", profiles[0].UID)
	assert.Equal(t, "Token User", profiles[0].DisplayName)
	assert.False(t, profiles[0].LastLogin.IsZero())
	assert.Equal(t, domain.ScreenApp, c.State().Screen)

	f = newFixture(t, nil, ControllerConfig{})
	c = f.start()
	require.NoError(t, c.CreateAccount(ctx, "new@example.com", "secret1"))
	profiles = f.store.savedProfiles()
	require.Len(t, profiles, 1)
	assert.Equal(t, "new", profiles[0].DisplayName)

	f = newFixture(t, nil, ControllerConfig{})
	c = f.start()
	require.NoError(t, c.SignInWithCredentials(ctx, "old@example.com", "secret1"))
	assert.Empty(t, f.store.savedProfiles())
	assert.Equal(t, "old", c.State().User.Name)
}

func TestController_SignOutClearsSession(t *testing.T) {
	f := newFixture(t, alice, ControllerConfig{})
	f.store.stored["alice"] = []domain.FoodItem{itemAt("a", time.Now())}
	c := f.start()
	require.NoError(t, c.Select("a"))

	require.NoError(t, c.SignOut(context.Background()))
	state := c.State()
	assert.Nil(t, state.User)
	assert.Empty(t, state.History)
	assert.Nil(t, state.Selected)
	assert.Equal(t, domain.ViewScan, state.View)
	assert.Equal(t, domain.ScreenHome, state.Screen)

	f.identity.signOutErr = errBackendDown
	require.NoError(t, c.SignInWithCredentials(context.Background(), "a@b.com", "secret1"))
	assert.Error(t, c.SignOut(context.Background()))
	assert.NotNil(t, c.State().User)
}

func TestController_OptimisticDeleteSurvivesRemoteFailure(t *testing.T) {
	f := newFixture(t, alice, ControllerConfig{})
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	f.store.stored["alice"] = []domain.FoodItem{itemAt("a", base.Add(time.Hour)), itemAt("b", base)}
	f.store.deleteErr = errBackendDown
	c := f.start()
	ctx := context.Background()

	require.NoError(t, c.Select("a"))
	require.NoError(t, c.RequestDelete("a"))
	assert.Equal(t, "a", c.State().PendingDelete)

	require.NoError(t, c.ConfirmDelete(ctx))
	state := c.State()
	assert.Equal(t, []string{"b"}, historyIDs(state.History))
	assert.Nil(t, state.Selected)
	assert.Equal(t, domain.ViewHistory, state.View)
	assert.Empty(t, state.PendingDelete)

	c.Wait()
	assert.Equal(t, []string{"a"}, f.store.deletedIDs())
	assert.Equal(t, []string{"b"}, historyIDs(c.State().History))

	assert.ErrorIs(t, c.ConfirmDelete(ctx), domain.ErrNoPendingDelete)
	assert.ErrorIs(t, c.RequestDelete("a"), domain.ErrItemNotFound)
}

func TestController_CancelDelete(t *testing.T) {
	c := newFixture(t, nil, ControllerConfig{}).start()
	c.GuestLogin()

	require.NoError(t, c.RequestDelete("guest-sample-1"))
	c.CancelDelete()
	assert.ErrorIs(t, c.ConfirmDelete(context.Background()), domain.ErrNoPendingDelete)
	assert.Len(t, c.State().History, 2)
}

func TestController_RescanRemoteImageNotFound(t *testing.T) {
	f := newFixture(t, alice, ControllerConfig{})
	stored := itemAt("a", time.Now())
	stored.Image = "https://storage.example.com/users/alice/missing.jpg"
	stored.Analysis = *sampleAnalysis("Cola")
	f.store.stored["alice"] = []domain.FoodItem{stored}
	c := f.start()

	err := c.Rescan(context.Background(), "a")
	require.NoError(t, err)
	c.Wait()

	got, err := c.Item("a")
	require.NoError(t, err)
	assert.Equal(t, stored.Analysis, got.Analysis)
	assert.False(t, c.State().Rescanning)

	imageCalls, _, _ := f.analysis.counts()
	assert.Zero(t, imageCalls)
	assert.Empty(t, f.store.savedItems())
}

func TestController_RescanRemoteImage(t *testing.T) {
	f := newFixture(t, alice, ControllerConfig{})
	stored := itemAt("a", time.Now())
	stored.Image = "https://storage.example.com/users/alice/cola.jpg"
	f.store.stored["alice"] = []domain.FoodItem{stored}
	f.images.images[stored.Image] = &domain.Image{Data: []byte{0xff, 0xd8}, MIMEType: "image/jpeg"}
	c := f.start()
	require.NoError(t, c.SetLanguage(context.Background(), domain.LanguageFrench))

	var gotLanguage domain.Language
	f.analysis.imageFunc = func(ctx context.Context, image domain.Image, language domain.Language) (*domain.FoodAnalysis, error) {
		gotLanguage = language
		return sampleAnalysis("Coca-Cola"), nil
	}

	require.NoError(t, c.Rescan(context.Background(), "a"))
	c.Wait()

	assert.Equal(t, domain.LanguageFrench, gotLanguage)
	got, err := c.Item("a")
	require.NoError(t, err)
	assert.Equal(t, "Coca-Cola", got.Analysis.ProductName)
	assert.Equal(t, stored.Image, got.Image)
	assert.Equal(t, "a", c.State().Selected.ID)

	saved := f.store.savedItems()
	require.Len(t, saved, 1)
	assert.Equal(t, "Coca-Cola", saved[0].Analysis.ProductName)
}

func TestController_RescanFailureLeavesItem(t *testing.T) {
	f := newFixture(t, nil, ControllerConfig{})
	c := f.start()
	c.GuestLogin()

	item, err := c.CaptureImage(context.Background(), domain.ImageUpload{ContentType: "image/jpeg", Data: []byte{1, 2, 3}})
	require.NoError(t, err)

	f.analysis.imageFunc = func(ctx context.Context, image domain.Image, language domain.Language) (*domain.FoodAnalysis, error) {
		assert.Equal(t, []byte{1, 2, 3}, image.Data)
		return nil, &domain.AnalysisError{Kind: domain.AnalysisUnprocessable, Source: domain.SourceImage, Err: domain.ErrInvalidAnalysis}
	}
	require.NoError(t, c.Rescan(context.Background(), item.ID))

	got, err := c.Item(item.ID)
	require.NoError(t, err)
	assert.Equal(t, item.Analysis, got.Analysis)
	assert.False(t, c.State().Rescanning)
}

func TestController_RescanRejectsTextItems(t *testing.T) {
	c := newFixture(t, nil, ControllerConfig{}).start()
	c.GuestLogin()

	assert.ErrorIs(t, c.Rescan(context.Background(), "guest-sample-1"), domain.ErrNoImage)
	assert.ErrorIs(t, c.Rescan(context.Background(), "missing"), domain.ErrItemNotFound)
}

func TestController_RescanDiscardedAfterDelete(t *testing.T) {
	f := newFixture(t, alice, ControllerConfig{})
	stored := itemAt("a", time.Now())
	stored.Image = domain.EncodeDataURL([]byte{1}, "image/jpeg")
	f.store.stored["alice"] = []domain.FoodItem{stored}
	c := f.start()

	started := make(chan struct{})
	release := make(chan struct{})
	f.analysis.imageFunc = func(ctx context.Context, image domain.Image, language domain.Language) (*domain.FoodAnalysis, error) {
		close(started)
		<-release
		return sampleAnalysis("Too Late"), nil
	}

	done := make(chan error, 1)
	go func() { done <- c.Rescan(context.Background(), "a") }()

	<-started
	assert.True(t, c.State().Rescanning)
	require.NoError(t, c.RequestDelete("a"))
	require.NoError(t, c.ConfirmDelete(context.Background()))
	close(release)
	require.NoError(t, <-done)
	c.Wait()

	assert.Empty(t, c.State().History)
	assert.False(t, c.State().Rescanning)
	assert.Empty(t, f.store.savedItems())
	assert.Equal(t, []string{"a"}, f.store.deletedIDs())
}

func TestController_SetLanguage(t *testing.T) {
	ctx := context.Background()

	t.Run("translates the history", func(t *testing.T) {
		f := newFixture(t, nil, ControllerConfig{RetranslateOnLanguageChange: true})
		c := f.start()
		c.GuestLogin()

		require.NoError(t, c.SetLanguage(ctx, domain.LanguageSpanish))
		state := c.State()
		assert.Equal(t, domain.LanguageSpanish, state.Language)
		assert.False(t, state.Translating)
		for _, item := range state.History {
			assert.True(t, strings.HasPrefix(item.Analysis.Summary, "[es] "), item.ID)
		}
	})

	t.Run("keeps originals that fail to translate", func(t *testing.T) {
		client := &MockAnalysisClient{
			translateFunc: func(ctx context.Context, analysis *domain.FoodAnalysis, language domain.Language) (*domain.FoodAnalysis, error) {
				if analysis.ProductName == "Classic Potato Chips" {
					return nil, errBackendDown
				}
				out := analysis.Clone()
				out.Summary = "translated"
				return &out, nil
			},
		}
		f := newFixture(t, nil, ControllerConfig{RetranslateOnLanguageChange: true})
		f.controller.deps.Analysis = NewAnalysisService(client, nil, AnalysisServiceConfig{}, nil)
		c := f.start()
		c.GuestLogin()

		require.NoError(t, c.SetLanguage(ctx, domain.LanguageItalian))

		yogurt, err := c.Item("guest-sample-2")
		require.NoError(t, err)
		assert.Equal(t, "translated", yogurt.Analysis.Summary)

		chips, err := c.Item("guest-sample-1")
		require.NoError(t, err)
		assert.Equal(t, domain.GuestHistory()[1].Analysis, chips.Analysis)
	})

	t.Run("aborted translation leaves history unchanged", func(t *testing.T) {
		f := newFixture(t, nil, ControllerConfig{RetranslateOnLanguageChange: true})
		f.analysis.translateFunc = func(ctx context.Context, analysis *domain.FoodAnalysis, language domain.Language) (*domain.FoodAnalysis, error) {
			return nil, context.DeadlineExceeded
		}
		c := f.start()
		c.GuestLogin()

		require.NoError(t, c.SetLanguage(ctx, domain.LanguageJapanese))
		assert.Equal(t, domain.LanguageJapanese, c.State().Language)
		assert.Equal(t, domain.GuestHistory(), c.State().History)
	})

	t.Run("language only when retranslation is off", func(t *testing.T) {
		f := newFixture(t, nil, ControllerConfig{})
		c := f.start()
		c.GuestLogin()

		require.NoError(t, c.SetLanguage(ctx, domain.LanguageTraditionalChinese))
		_, _, translateCalls := f.analysis.counts()
		assert.Zero(t, translateCalls)
		assert.Equal(t, domain.LanguageTraditionalChinese, c.State().Language)
	})

	t.Run("rejects unknown languages", func(t *testing.T) {
		c := newFixture(t, nil, ControllerConfig{}).start()
		assert.ErrorIs(t, c.SetLanguage(ctx, "xx"), domain.ErrInvalidLanguage)
	})
}

func TestController_NavigateAndSelect(t *testing.T) {
	c := newFixture(t, nil, ControllerConfig{}).start()
	c.GuestLogin()

	require.NoError(t, c.Select("guest-sample-1"))
	assert.Equal(t, domain.ViewDetail, c.State().View)
	assert.Equal(t, "guest-sample-1", c.State().Selected.ID)

	require.NoError(t, c.Navigate(domain.ViewDetail))
	state := c.State()
	assert.Equal(t, domain.ViewHistory, state.View)
	assert.Nil(t, state.Selected)

	require.NoError(t, c.Navigate(domain.ViewPricing))
	assert.Equal(t, domain.ViewPricing, c.State().View)

	assert.ErrorIs(t, c.Navigate("settings"), domain.ErrInvalidView)
	assert.ErrorIs(t, c.Select("missing"), domain.ErrItemNotFound)
}

func TestController_Upgrade(t *testing.T) {
	c := newFixture(t, nil, ControllerConfig{}).start()
	c.GuestLogin()
	require.NoError(t, c.Navigate(domain.ViewPricing))

	require.NoError(t, c.Upgrade(domain.TierPro))
	state := c.State()
	assert.Equal(t, domain.TierPro, state.User.Tier)
	assert.Equal(t, domain.ViewScan, state.View)

	assert.ErrorIs(t, c.Upgrade(domain.TierGuest), domain.ErrInvalidTier)
	assert.ErrorIs(t, c.Upgrade("platinum"), domain.ErrInvalidTier)
}

func TestController_ItemIDsAreUnique(t *testing.T) {
	f := newFixture(t, nil, ControllerConfig{})
	c := f.start()
	c.GuestLogin()
	at := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	first, err := c.AddFoodItem(context.Background(), domain.FoodItem{ScanDate: at, Analysis: *sampleAnalysis("A")}, nil)
	require.NoError(t, err)
	second, err := c.AddFoodItem(context.Background(), domain.FoodItem{ID: first.ID, ScanDate: at, Analysis: *sampleAnalysis("B")}, nil)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, []string{second.ID, first.ID}, historyIDs(c.State().History)[:2])
}
