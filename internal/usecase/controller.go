package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nutriscan/backend/internal/domain"
)

const defaultTranslateConcurrency = 4

// ControllerDeps are the capabilities a Controller talks to
type ControllerDeps struct {
	Analysis domain.AnalysisClient
	Identity domain.IdentityProvider
	Store    domain.FoodRepository
	Images   domain.ImageFetcher
	Logger   *zap.Logger
	Clock    func() time.Time
}

// ControllerConfig holds per-session behavior switches
type ControllerConfig struct {
	// RetranslateOnLanguageChange translates every history item when the
	// language changes
	RetranslateOnLanguageChange bool
	TranslateConcurrency        int
	DefaultLanguage             domain.Language
}

// State is a snapshot of everything a client renders
type State struct {
	Screen        domain.Screen     `json:"screen"`
	View          domain.View       `json:"view"`
	User          *domain.User      `json:"user"`
	Language      domain.Language   `json:"language"`
	History       []domain.FoodItem `json:"history"`
	Selected      *domain.FoodItem  `json:"selected"`
	PendingDelete string            `json:"pendingDelete,omitempty"`
	AuthLoading   bool              `json:"authLoading"`
	LoggingIn     bool              `json:"loggingIn"`
	LoginError    string            `json:"loginError,omitempty"`
	Rescanning    bool              `json:"rescanning"`
	Translating   bool              `json:"translating"`
}

// Controller is one client's session: who is signed in, their history and
// what they are looking at. Mutations happen under mu; model, identity and
// storage calls run without it. Remote persistence runs in the background
// after the local state has already changed and never rolls it back.
type Controller struct {
	deps   ControllerDeps
	cfg    ControllerConfig
	logger *zap.Logger
	now    func() time.Time

	mu            sync.Mutex
	baseCtx       context.Context
	started       bool
	closed        bool
	unsubscribe   func()
	user          *domain.User
	showLogin     bool
	view          domain.View
	language      domain.Language
	history       *History
	selectedID    string
	pendingDelete string
	authLoading   bool
	loggingIn     bool
	loginError    string
	rescanning    int
	translating   int

	// itemGen is bumped whenever an operation on an item starts or lands;
	// results are applied only if the generation they started with is current
	itemGen map[string]uint64
	// authGen is bumped on every change of user; history loads and
	// persistence for a previous user are discarded
	authGen uint64
	// uploads holds items whose first image upload is in flight. A true
	// value means a rescan landed meanwhile and the item must be saved
	// again once the durable URL is in place.
	uploads map[string]bool

	wg sync.WaitGroup
}

// NewController creates a signed-out controller. Call Start to subscribe
// to the identity provider.
func NewController(deps ControllerDeps, cfg ControllerConfig) *Controller {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if cfg.TranslateConcurrency <= 0 {
		cfg.TranslateConcurrency = defaultTranslateConcurrency
	}
	if !cfg.DefaultLanguage.Valid() {
		cfg.DefaultLanguage = domain.LanguageEnglish
	}

	return &Controller{
		deps:     deps,
		cfg:      cfg,
		logger:   deps.Logger.Named("controller"),
		now:      deps.Clock,
		baseCtx:  context.Background(),
		view:     domain.ViewScan,
		language: cfg.DefaultLanguage,
		history:  NewHistory(nil),
		itemGen:  make(map[string]uint64),
		uploads:  make(map[string]bool),
	}
}

// Start subscribes to auth changes. The provider reports the current
// principal immediately, so a restored sign-in loads its history before
// Start returns.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	if c.started || c.closed {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.authLoading = true
	c.baseCtx = context.WithoutCancel(ctx)
	c.mu.Unlock()

	unsubscribe := c.deps.Identity.OnAuthChange(c.handleAuthChange)

	c.mu.Lock()
	c.unsubscribe = unsubscribe
	c.mu.Unlock()
}

// Close unsubscribes from the identity provider and waits for background
// persistence to finish
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	c.wg.Wait()
}

// Wait blocks until background persistence started so far has finished
func (c *Controller) Wait() {
	c.wg.Wait()
}

func (c *Controller) handleAuthChange(p *domain.Principal) {
	c.mu.Lock()
	c.authGen++
	gen := c.authGen

	if p == nil {
		c.authLoading = false
		if c.user.IsGuest() {
			c.mu.Unlock()
			return
		}
		c.resetLocked()
		c.mu.Unlock()
		return
	}

	user := domain.UserFromPrincipal(*p)
	if c.user != nil && c.user.ID == user.ID {
		user.Tier = c.user.Tier
		user.ScanCount = c.user.ScanCount
	} else {
		c.history = NewHistory(nil)
		c.itemGen = make(map[string]uint64)
		c.selectedID = ""
		c.pendingDelete = ""
		c.view = domain.ViewScan
	}
	c.user = user
	c.showLogin = false
	c.loginError = ""
	c.authLoading = true
	ctx := c.baseCtx
	c.mu.Unlock()

	items, err := c.deps.Store.ListFoods(ctx, user.ID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.authGen {
		return
	}
	c.authLoading = false
	if err != nil {
		c.logger.Error("failed to load history", zap.String("user", user.ID), zap.Error(err))
		return
	}
	for _, item := range items {
		c.history.Insert(item)
	}
	c.logger.Info("history loaded", zap.String("user", user.ID), zap.Int("items", len(items)))
}

// resetLocked clears the signed-in state. c.mu must be held.
func (c *Controller) resetLocked() {
	c.user = nil
	c.history = NewHistory(nil)
	c.itemGen = make(map[string]uint64)
	c.selectedID = ""
	c.pendingDelete = ""
	c.view = domain.ViewScan
	c.showLogin = false
}

// GuestLogin signs in the local guest user with the sample history.
// Nothing is ever persisted for the guest.
func (c *Controller) GuestLogin() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.user != nil {
		return
	}
	c.authGen++
	c.user = domain.NewGuestUser()
	c.history = NewHistory(domain.GuestHistory())
	c.itemGen = make(map[string]uint64)
	c.view = domain.ViewScan
	c.showLogin = false
	c.loginError = ""
}

// ShowLogin switches the signed-out screen to the login form
func (c *Controller) ShowLogin() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.user == nil {
		c.showLogin = true
	}
}

// ShowHome switches the signed-out screen back to the landing page
func (c *Controller) ShowHome() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.user == nil {
		c.showLogin = false
		c.loginError = ""
	}
}

// SignInInteractive signs in with an ID token from the external sign-in page
func (c *Controller) SignInInteractive(ctx context.Context, idToken string) error {
	c.beginLogin()
	p, err := c.deps.Identity.SignInInteractive(ctx, idToken)
	if err != nil {
		return c.failLogin(LoginInteractive, err)
	}
	c.saveProfile(ctx, p)
	c.endLogin()
	return nil
}

// SignInWithCredentials signs in with email and password
func (c *Controller) SignInWithCredentials(ctx context.Context, email, password string) error {
	c.beginLogin()
	if _, err := c.deps.Identity.SignInWithCredentials(ctx, email, password); err != nil {
		return c.failLogin(LoginCredentials, err)
	}
	c.endLogin()
	return nil
}

// CreateAccount registers and signs in a new email/password user
func (c *Controller) CreateAccount(ctx context.Context, email, password string) error {
	c.beginLogin()
	p, err := c.deps.Identity.CreateAccount(ctx, email, password)
	if err != nil {
		return c.failLogin(LoginSignup, err)
	}
	c.saveProfile(ctx, p)
	c.endLogin()
	return nil
}

func (c *Controller) beginLogin() {
	c.mu.Lock()
	c.loggingIn = true
	c.loginError = ""
	c.mu.Unlock()
}

func (c *Controller) endLogin() {
	c.mu.Lock()
	c.loggingIn = false
	c.mu.Unlock()
}

func (c *Controller) failLogin(op LoginOperation, err error) error {
	le := loginError(op, err)
	c.logger.Warn("sign-in failed", zap.String("code", string(le.Code)), zap.Error(err))

	c.mu.Lock()
	c.loggingIn = false
	c.loginError = le.Message
	c.mu.Unlock()
	return le
}

// saveProfile upserts users/{uid}; failures are only logged
func (c *Controller) saveProfile(ctx context.Context, p *domain.Principal) {
	if p == nil {
		return
	}
	user := domain.UserFromPrincipal(*p)
	profile := domain.Profile{
		UID:         p.UID,
		Email:       p.Email,
		DisplayName: user.Name,
		PhotoURL:    p.PhotoURL,
		LastLogin:   c.now().UTC(),
	}
	if err := c.deps.Store.SaveProfile(ctx, profile); err != nil {
		c.logger.Error("failed to save profile", zap.String("user", p.UID), zap.Error(err))
	}
}

// SignOut ends the session. The guest is cleared locally; real users are
// signed out at the provider and cleared when the change is reported.
func (c *Controller) SignOut(ctx context.Context) error {
	c.mu.Lock()
	if c.user == nil {
		c.mu.Unlock()
		return nil
	}
	if c.user.IsGuest() {
		c.authGen++
		c.resetLocked()
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	if err := c.deps.Identity.SignOut(ctx); err != nil {
		c.logger.Error("sign-out failed", zap.Error(err))
		return fmt.Errorf("sign out: %w", err)
	}

	c.mu.Lock()
	c.view = domain.ViewScan
	c.showLogin = false
	c.mu.Unlock()
	return nil
}

// Navigate switches views and clears the selection
func (c *Controller) Navigate(view domain.View) error {
	if !view.Valid() {
		return domain.ErrInvalidView
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.user == nil {
		return domain.ErrNotAuthenticated
	}

	c.selectedID = ""
	if view == domain.ViewDetail {
		view = domain.ViewHistory
	}
	c.view = view
	return nil
}

// Select opens the detail view for an item
func (c *Controller) Select(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.user == nil {
		return domain.ErrNotAuthenticated
	}
	if !c.history.Contains(id) {
		return domain.ErrItemNotFound
	}

	c.selectedID = id
	c.view = domain.ViewDetail
	return nil
}

func (c *Controller) currentLanguage() (domain.Language, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.user == nil {
		return "", domain.ErrNotAuthenticated
	}
	return c.language, nil
}

// CaptureImage analyzes a photographed product and adds it to the history
func (c *Controller) CaptureImage(ctx context.Context, upload domain.ImageUpload) (domain.FoodItem, error) {
	language, err := c.currentLanguage()
	if err != nil {
		return domain.FoodItem{}, err
	}

	mimeType := upload.ContentType
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	analysis, err := c.deps.Analysis.AnalyzeImage(ctx, domain.Image{Data: upload.Data, MIMEType: mimeType}, language)
	if err != nil {
		return domain.FoodItem{}, err
	}

	upload.ContentType = mimeType
	item := domain.FoodItem{
		Image:    domain.EncodeDataURL(upload.Data, mimeType),
		Analysis: *analysis,
		Location: domain.LocationImageScan,
		ScanDate: c.now(),
	}
	return c.AddFoodItem(ctx, item, &upload)
}

// CaptureText analyzes a typed description and adds it to the history
func (c *Controller) CaptureText(ctx context.Context, description string) (domain.FoodItem, error) {
	language, err := c.currentLanguage()
	if err != nil {
		return domain.FoodItem{}, err
	}

	analysis, err := c.deps.Analysis.AnalyzeText(ctx, description, language)
	if err != nil {
		return domain.FoodItem{}, err
	}

	item := domain.FoodItem{
		Image:    domain.TextScanPlaceholder,
		Analysis: *analysis,
		Location: domain.LocationManualInput,
		ScanDate: c.now(),
	}
	return c.AddFoodItem(ctx, item, nil)
}

// AddFoodItem inserts a completed capture, selects it and shows its details.
// For signed-in users the image upload and document write follow in the
// background; the item's image is swapped for the durable URL afterwards.
func (c *Controller) AddFoodItem(ctx context.Context, item domain.FoodItem, upload *domain.ImageUpload) (domain.FoodItem, error) {
	c.mu.Lock()
	if c.user == nil {
		c.mu.Unlock()
		return domain.FoodItem{}, domain.ErrNotAuthenticated
	}

	if item.ScanDate.IsZero() {
		item.ScanDate = c.now()
	}
	if item.ID == "" || c.history.Contains(item.ID) {
		item.ID = c.history.NewID(item.ScanDate)
	}
	if item.Analysis.Ingredients == nil {
		item.Analysis.Ingredients = []domain.Ingredient{}
	}

	c.history.Insert(item)
	c.selectedID = item.ID
	c.view = domain.ViewDetail
	c.user.ScanCount++

	if !c.user.IsGuest() && !c.closed {
		if upload != nil && len(upload.Data) > 0 {
			c.uploads[item.ID] = false
		}
		c.wg.Add(1)
		go c.persistNewItem(context.WithoutCancel(ctx), c.user.ID, c.authGen, item.ID, upload)
	}
	c.mu.Unlock()

	return item.Clone(), nil
}

func (c *Controller) persistNewItem(ctx context.Context, userID string, authGen uint64, id string, upload *domain.ImageUpload) {
	defer c.wg.Done()
	defer c.finishUpload(id)
	log := c.logger.With(zap.String("user", userID), zap.String("item", id))

	var imageURL string
	if upload != nil && len(upload.Data) > 0 {
		filename := upload.Filename
		if filename == "" {
			filename = "scan.jpg"
		}
		contentType := upload.ContentType
		if contentType == "" {
			contentType = "image/jpeg"
		}
		url, err := c.deps.Store.UploadImage(ctx, userID, filename, upload.Data, contentType)
		if err != nil {
			log.Error("failed to upload image", zap.Error(err))
			return
		}
		imageURL = url
	}

	c.mu.Lock()
	current, ok := c.history.Get(id)
	if !ok || authGen != c.authGen {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	if imageURL != "" {
		current.Image = imageURL
	}
	if err := c.deps.Store.SaveFood(ctx, userID, current); err != nil {
		log.Error("failed to save food item", zap.Error(err))
		return
	}

	c.mu.Lock()
	stillPresent := authGen == c.authGen && c.history.Contains(id)
	if stillPresent && imageURL != "" {
		c.history.Update(id, func(item *domain.FoodItem) {
			item.Image = imageURL
		})
	}
	resave := stillPresent && c.uploads[id]
	delete(c.uploads, id)
	latest, _ := c.history.Get(id)
	c.mu.Unlock()

	if resave {
		if err := c.deps.Store.SaveFood(ctx, userID, latest); err != nil {
			log.Error("failed to save rescanned item", zap.Error(err))
		}
	}

	// deleted while the write was in flight
	if !stillPresent && authGen == c.currentAuthGen() {
		if err := c.deps.Store.DeleteFood(ctx, userID, id); err != nil {
			log.Error("failed to delete food item", zap.Error(err))
		}
	}
}

func (c *Controller) finishUpload(id string) {
	c.mu.Lock()
	delete(c.uploads, id)
	c.mu.Unlock()
}

func (c *Controller) currentAuthGen() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authGen
}

// RequestDelete asks for confirmation before deleting id
func (c *Controller) RequestDelete(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.user == nil {
		return domain.ErrNotAuthenticated
	}
	if !c.history.Contains(id) {
		return domain.ErrItemNotFound
	}
	c.pendingDelete = id
	return nil
}

// CancelDelete dismisses a pending delete
func (c *Controller) CancelDelete() {
	c.mu.Lock()
	c.pendingDelete = ""
	c.mu.Unlock()
}

// ConfirmDelete removes the pending item locally and, for signed-in users,
// remotely in the background. A remote failure is logged and the local
// removal stands.
func (c *Controller) ConfirmDelete(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.pendingDelete
	if id == "" {
		return domain.ErrNoPendingDelete
	}
	c.pendingDelete = ""
	if c.user == nil {
		return domain.ErrNotAuthenticated
	}

	c.history.Remove(id)
	c.itemGen[id]++
	if c.selectedID == id {
		c.selectedID = ""
		c.view = domain.ViewHistory
	}

	if !c.user.IsGuest() && !c.closed {
		userID := c.user.ID
		c.wg.Add(1)
		go func(ctx context.Context) {
			defer c.wg.Done()
			if err := c.deps.Store.DeleteFood(ctx, userID, id); err != nil {
				c.logger.Error("failed to delete food item",
					zap.String("user", userID), zap.String("item", id), zap.Error(err))
			}
		}(context.WithoutCancel(ctx))
	}
	return nil
}

// Rescan analyzes the item's image again in the current language. Fetch or
// analysis failures are logged and leave the item untouched.
func (c *Controller) Rescan(ctx context.Context, id string) error {
	c.mu.Lock()
	if c.user == nil {
		c.mu.Unlock()
		return domain.ErrNotAuthenticated
	}
	item, ok := c.history.Get(id)
	if !ok {
		c.mu.Unlock()
		return domain.ErrItemNotFound
	}
	if item.Image == "" || item.Image == domain.TextScanPlaceholder {
		c.mu.Unlock()
		return domain.ErrNoImage
	}
	c.itemGen[id]++
	gen := c.itemGen[id]
	language := c.language
	c.rescanning++
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.rescanning--
		c.mu.Unlock()
	}()

	log := c.logger.With(zap.String("item", id))

	image, err := c.loadImage(ctx, item.Image)
	if err != nil {
		log.Error("rescan failed: could not retrieve image", zap.Error(err))
		return nil
	}

	analysis, err := c.deps.Analysis.AnalyzeImage(ctx, *image, language)
	if err != nil {
		log.Error("rescan failed", zap.Error(err))
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.itemGen[id] != gen || !c.history.Contains(id) {
		log.Debug("discarding stale rescan result")
		return nil
	}
	c.itemGen[id]++
	c.history.Update(id, func(item *domain.FoodItem) {
		item.Analysis = *analysis
	})
	c.selectedID = id

	if _, uploading := c.uploads[id]; uploading {
		// saved with the durable image URL once the upload lands
		c.uploads[id] = true
		return nil
	}
	if !c.user.IsGuest() && !c.closed {
		updated, _ := c.history.Get(id)
		userID := c.user.ID
		c.wg.Add(1)
		go func(ctx context.Context) {
			defer c.wg.Done()
			if err := c.deps.Store.SaveFood(ctx, userID, updated); err != nil {
				log.Error("failed to save rescanned item", zap.Error(err))
			}
		}(context.WithoutCancel(ctx))
	}
	return nil
}

func (c *Controller) loadImage(ctx context.Context, ref string) (*domain.Image, error) {
	if strings.HasPrefix(ref, "data:") {
		return domain.DecodeDataURL(ref)
	}
	if c.deps.Images == nil {
		return nil, domain.ErrImageFetch
	}
	return c.deps.Images.Fetch(ctx, ref)
}

// SetLanguage changes the analysis language and, when enabled, translates
// the whole history. Individual translation failures keep the original
// analysis; if ctx ends first the history is left as it was.
func (c *Controller) SetLanguage(ctx context.Context, language domain.Language) error {
	if !language.Valid() {
		return domain.ErrInvalidLanguage
	}

	c.mu.Lock()
	c.language = language
	if !c.cfg.RetranslateOnLanguageChange || c.user == nil || c.history.Len() == 0 {
		c.mu.Unlock()
		return nil
	}
	items := c.history.Items()
	started := make(map[string]uint64, len(items))
	for _, item := range items {
		c.itemGen[item.ID]++
		started[item.ID] = c.itemGen[item.ID]
	}
	c.translating++
	c.mu.Unlock()

	results := make([]*domain.FoodAnalysis, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.TranslateConcurrency)
	for i := range items {
		g.Go(func() error {
			translated, err := c.deps.Analysis.Translate(gctx, &items[i].Analysis, language)
			if err != nil {
				return err
			}
			results[i] = translated
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.translating--

	if err != nil {
		c.logger.Error("translation aborted, history unchanged",
			zap.String("language", string(language)), zap.Error(err))
		return nil
	}

	applied := 0
	for i, item := range items {
		if results[i] == nil || c.itemGen[item.ID] != started[item.ID] {
			continue
		}
		translated := results[i].Clone()
		if c.history.Update(item.ID, func(it *domain.FoodItem) {
			it.Analysis = translated
		}) {
			c.itemGen[item.ID]++
			applied++
		}
	}
	c.logger.Debug("history translated", zap.String("language", string(language)), zap.Int("items", applied))
	return nil
}

// Upgrade switches the user to tier (mock checkout) and returns to the scan view
func (c *Controller) Upgrade(tier domain.Tier) error {
	if !tier.Valid() || tier == domain.TierGuest {
		return domain.ErrInvalidTier
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.user == nil {
		return domain.ErrNotAuthenticated
	}
	c.user.Tier = tier
	c.view = domain.ViewScan
	return nil
}

// Item returns a copy of the history item with id
func (c *Controller) Item(id string) (domain.FoodItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.user == nil {
		return domain.FoodItem{}, domain.ErrNotAuthenticated
	}
	item, ok := c.history.Get(id)
	if !ok {
		return domain.FoodItem{}, domain.ErrItemNotFound
	}
	return item, nil
}

// State returns a snapshot of the session
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := State{
		View:          c.view,
		Language:      c.language,
		History:       c.history.Items(),
		PendingDelete: c.pendingDelete,
		AuthLoading:   c.authLoading,
		LoggingIn:     c.loggingIn,
		LoginError:    c.loginError,
		Rescanning:    c.rescanning > 0,
		Translating:   c.translating > 0,
	}

	switch {
	case c.user != nil:
		s.Screen = domain.ScreenApp
		u := *c.user
		s.User = &u
	case c.showLogin:
		s.Screen = domain.ScreenLogin
	default:
		s.Screen = domain.ScreenHome
	}

	if c.selectedID != "" {
		if item, ok := c.history.Get(c.selectedID); ok {
			s.Selected = &item
		}
	}
	if s.View == domain.ViewDetail && s.Selected == nil {
		s.View = domain.ViewHistory
	}
	return s
}
