package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nutriscan/backend/internal/domain"
	"github.com/nutriscan/backend/internal/usecase"
)

const defaultMaxUploadBytes = 10 << 20

// BlobOpener serves blobs written to the in-process blob store
type BlobOpener interface {
	Open(path string) ([]byte, string, error)
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	sessions       *usecase.SessionManager
	blobs          BlobOpener
	maxUploadBytes int64
	logger         *zap.Logger
}

// NewHandler creates a new HTTP handler. blobs may be nil when images are
// stored outside the process.
func NewHandler(sessions *usecase.SessionManager, blobs BlobOpener, maxUploadBytes int64, logger *zap.Logger) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		sessions:       sessions,
		blobs:          blobs,
		maxUploadBytes: maxUploadBytes,
		logger:         logger.Named("http"),
	}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"service":  "nutriscan-backend",
		"version":  "1.0.0",
		"sessions": h.sessions.Len(),
	})
}

// CreateSession starts a new client session
func (h *Handler) CreateSession(c *gin.Context) {
	id, controller := h.sessions.Create(c.Request.Context())
	c.Header(SessionHeader, id)
	c.JSON(http.StatusCreated, gin.H{
		"sessionId": id,
		"state":     controller.State(),
	})
}

// GetSession returns the session state
func (h *Handler) GetSession(c *gin.Context) {
	c.JSON(http.StatusOK, controllerFrom(c).State())
}

// DeleteSession ends the session
func (h *Handler) DeleteSession(c *gin.Context) {
	if err := h.sessions.Close(c.GetHeader(SessionHeader)); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ShowLogin switches a signed-out session to the login form
func (h *Handler) ShowLogin(c *gin.Context) {
	controller := controllerFrom(c)
	controller.ShowLogin()
	c.JSON(http.StatusOK, controller.State())
}

// ShowHome switches a signed-out session back to the landing page
func (h *Handler) ShowHome(c *gin.Context) {
	controller := controllerFrom(c)
	controller.ShowHome()
	c.JSON(http.StatusOK, controller.State())
}

type interactiveRequest struct {
	IDToken string `json:"idToken"`
}

type credentialsRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// SignInInteractive completes a sign-in from the external sign-in page
func (h *Handler) SignInInteractive(c *gin.Context) {
	var req interactiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	h.respondLogin(c, func(ctx context.Context, controller *usecase.Controller) error {
		return controller.SignInInteractive(ctx, req.IDToken)
	})
}

// SignIn handles email/password sign-in
func (h *Handler) SignIn(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email and password are required"})
		return
	}
	h.respondLogin(c, func(ctx context.Context, controller *usecase.Controller) error {
		return controller.SignInWithCredentials(ctx, strings.TrimSpace(req.Email), req.Password)
	})
}

// SignUp registers a new email/password account
func (h *Handler) SignUp(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email and password are required"})
		return
	}
	h.respondLogin(c, func(ctx context.Context, controller *usecase.Controller) error {
		return controller.CreateAccount(ctx, strings.TrimSpace(req.Email), req.Password)
	})
}

func (h *Handler) respondLogin(c *gin.Context, login func(context.Context, *usecase.Controller) error) {
	controller := controllerFrom(c)
	if err := login(c.Request.Context(), controller); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, controller.State())
}

// GuestLogin signs the session in as the local guest
func (h *Handler) GuestLogin(c *gin.Context) {
	controller := controllerFrom(c)
	controller.GuestLogin()
	c.JSON(http.StatusOK, controller.State())
}

// SignOut ends the signed-in user's session
func (h *Handler) SignOut(c *gin.Context) {
	controller := controllerFrom(c)
	if err := controller.SignOut(c.Request.Context()); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, controller.State())
}

// SetView navigates to a view
func (h *Handler) SetView(c *gin.Context) {
	var req struct {
		View domain.View `json:"view" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "view is required"})
		return
	}

	controller := controllerFrom(c)
	if err := controller.Navigate(req.View); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, controller.State())
}

// SetLanguage changes the analysis language
func (h *Handler) SetLanguage(c *gin.Context) {
	var req struct {
		Language domain.Language `json:"language" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "language is required"})
		return
	}

	controller := controllerFrom(c)
	if err := controller.SetLanguage(c.Request.Context(), req.Language); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, controller.State())
}

// SetPlan switches the user's plan
func (h *Handler) SetPlan(c *gin.Context) {
	var req struct {
		Tier domain.Tier `json:"tier" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tier is required"})
		return
	}

	controller := controllerFrom(c)
	if err := controller.Upgrade(req.Tier); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, controller.State())
}

// ListPlans returns the pricing table
func (h *Handler) ListPlans(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"plans": domain.Plans()})
}

// ScanImage analyzes an uploaded photo (multipart field "image")
func (h *Handler) ScanImage(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+(1<<20))

	file, header, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file is required"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read image"})
		return
	}
	if int64(len(data)) > h.maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image is too large"})
		return
	}
	if len(data) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image is empty"})
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}

	item, err := controllerFrom(c).CaptureImage(c.Request.Context(), domain.ImageUpload{
		Filename:    header.Filename,
		ContentType: contentType,
		Data:        data,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

// ScanText analyzes a typed product description
func (h *Handler) ScanText(c *gin.Context) {
	var req struct {
		Description string `json:"description" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Description) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "description is required"})
		return
	}

	item, err := controllerFrom(c).CaptureText(c.Request.Context(), req.Description)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

// ListHistory returns the session's history, newest first
func (h *Handler) ListHistory(c *gin.Context) {
	state := controllerFrom(c).State()
	if state.User == nil {
		h.respondError(c, domain.ErrNotAuthenticated)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": state.History})
}

// GetHistoryItem returns one history item and selects it
func (h *Handler) GetHistoryItem(c *gin.Context) {
	controller := controllerFrom(c)
	id := c.Param("id")
	if err := controller.Select(id); err != nil {
		h.respondError(c, err)
		return
	}
	item, err := controller.Item(id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// ShareHistoryItem returns share text and links for an item. The client
// passes the page being shared in ?url=; the item's API URL is used otherwise.
func (h *Handler) ShareHistoryItem(c *gin.Context) {
	item, err := controllerFrom(c).Item(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	pageURL := c.Query("url")
	if pageURL == "" {
		scheme := "http"
		if c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https" {
			scheme = "https"
		}
		pageURL = scheme + "://" + c.Request.Host + "/api/v1/history/" + url.PathEscape(item.ID)
	}
	c.JSON(http.StatusOK, domain.NewShareLinks(item, pageURL))
}

// RescanItem analyzes an item's image again
func (h *Handler) RescanItem(c *gin.Context) {
	controller := controllerFrom(c)
	id := c.Param("id")
	if err := controller.Rescan(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	item, err := controller.Item(id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// RequestDelete asks for confirmation before deleting an item
func (h *Handler) RequestDelete(c *gin.Context) {
	controller := controllerFrom(c)
	if err := controller.RequestDelete(c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, controller.State())
}

// ConfirmDelete deletes the pending item
func (h *Handler) ConfirmDelete(c *gin.Context) {
	controller := controllerFrom(c)
	if err := controller.ConfirmDelete(c.Request.Context()); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, controller.State())
}

// CancelDelete dismisses the pending delete
func (h *Handler) CancelDelete(c *gin.Context) {
	controller := controllerFrom(c)
	controller.CancelDelete()
	c.JSON(http.StatusOK, controller.State())
}

// ServeBlob serves images kept by the in-process blob store
func (h *Handler) ServeBlob(c *gin.Context) {
	if h.blobs == nil {
		c.Status(http.StatusNotFound)
		return
	}
	data, contentType, err := h.blobs.Open(strings.TrimPrefix(c.Param("path"), "/"))
	if err != nil {
		if errors.Is(err, domain.ErrBlobNotFound) {
			c.Status(http.StatusNotFound)
			return
		}
		h.respondError(c, err)
		return
	}
	c.Header("Cache-Control", "public, max-age=31536000, immutable")
	c.Data(http.StatusOK, contentType, data)
}

// respondError maps domain errors to status codes
func (h *Handler) respondError(c *gin.Context, err error) {
	var analysisErr *domain.AnalysisError
	if errors.As(err, &analysisErr) {
		status := http.StatusUnprocessableEntity
		if analysisErr.Kind == domain.AnalysisBusy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"error": analysisErr.Message(), "kind": analysisErr.Kind})
		return
	}

	var loginErr *usecase.LoginError
	if errors.As(err, &loginErr) {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":  loginErr.Message,
			"code":   loginErr.Code,
			"silent": loginErr.Silent(),
		})
		return
	}

	switch {
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrNotAuthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrItemNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrNoPendingDelete):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrInvalidLanguage),
		errors.Is(err, domain.ErrInvalidView),
		errors.Is(err, domain.ErrInvalidTier),
		errors.Is(err, domain.ErrNoImage),
		errors.Is(err, domain.ErrEmptyInput),
		errors.Is(err, domain.ErrInvalidDataURL):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.Error("request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
