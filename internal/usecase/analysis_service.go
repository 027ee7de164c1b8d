package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nutriscan/backend/internal/domain"
)

// AnalysisServiceConfig holds configuration for the analysis service
type AnalysisServiceConfig struct {
	CacheTTL time.Duration
}

// AnalysisService wraps the model client with a cache for text analyses and
// translations. Translate never fails: on any error the input comes back
// unchanged.
type AnalysisService struct {
	client   domain.AnalysisClient
	cache    domain.CacheRepository
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewAnalysisService creates a new analysis service. cache may be nil.
func NewAnalysisService(client domain.AnalysisClient, cache domain.CacheRepository, config AnalysisServiceConfig, logger *zap.Logger) *AnalysisService {
	cacheTTL := config.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 720 * time.Hour // Default 30 days
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &AnalysisService{
		client:   client,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger.Named("analysis"),
	}
}

// AnalyzeImage always calls the model so a rescan reflects the current model output
func (s *AnalysisService) AnalyzeImage(ctx context.Context, image domain.Image, language domain.Language) (*domain.FoodAnalysis, error) {
	return s.client.AnalyzeImage(ctx, image, language)
}

// AnalyzeText looks up the cache first.
// Key format: "analysis:text:{sha256(normalized description)}:{language}"
func (s *AnalysisService) AnalyzeText(ctx context.Context, description string, language domain.Language) (*domain.FoodAnalysis, error) {
	key := fmt.Sprintf("analysis:text:%s:%s", hashKey(strings.ToLower(strings.TrimSpace(description))), language)

	if cached, ok := s.getFromCache(ctx, key); ok {
		return cached, nil
	}

	analysis, err := s.client.AnalyzeText(ctx, description, language)
	if err != nil {
		return nil, err
	}

	s.setInCache(ctx, key, analysis)
	return analysis, nil
}

// Translate returns the analysis rendered in language, or the input
// unchanged when translation fails
func (s *AnalysisService) Translate(ctx context.Context, analysis *domain.FoodAnalysis, language domain.Language) (*domain.FoodAnalysis, error) {
	if analysis == nil {
		return nil, nil
	}

	payload, err := json.Marshal(analysis)
	if err != nil {
		return analysis, nil
	}
	key := fmt.Sprintf("analysis:translate:%s:%s", hashKey(string(payload)), language)

	if cached, ok := s.getFromCache(ctx, key); ok {
		return cached, nil
	}

	translated, err := s.client.Translate(ctx, analysis, language)
	if err != nil || translated == nil {
		s.logger.Warn("translation failed, keeping original analysis",
			zap.String("language", string(language)),
			zap.String("product", analysis.ProductName),
			zap.Error(err))
		return analysis, nil
	}

	s.setInCache(ctx, key, translated)
	return translated, nil
}

func hashKey(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// getFromCache decodes a cached analysis. Cache errors count as misses.
func (s *AnalysisService) getFromCache(ctx context.Context, key string) (*domain.FoodAnalysis, bool) {
	if s.cache == nil {
		return nil, false
	}

	value, err := s.cache.Get(ctx, key)
	if err != nil {
		return nil, false
	}

	analysis, err := decodeCached(value)
	if err != nil {
		s.logger.Warn("discarding unreadable cache entry", zap.String("key", key), zap.Error(err))
		if err := s.cache.Delete(ctx, key); err != nil {
			s.logger.Warn("failed to delete cache entry", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	return analysis, true
}

func (s *AnalysisService) setInCache(ctx context.Context, key string, analysis *domain.FoodAnalysis) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, analysis, s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache analysis", zap.String("key", key), zap.Error(err))
	}
}

// decodeCached accepts the shapes the caches hand back: the struct itself,
// a JSON-decoded map, or raw JSON
func decodeCached(value interface{}) (*domain.FoodAnalysis, error) {
	var raw []byte
	switch v := value.(type) {
	case *domain.FoodAnalysis:
		out := v.Clone()
		return &out, nil
	case domain.FoodAnalysis:
		out := v.Clone()
		return &out, nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		raw = encoded
	}

	var analysis domain.FoodAnalysis
	if err := json.Unmarshal(raw, &analysis); err != nil {
		return nil, err
	}
	if err := analysis.Validate(); err != nil {
		return nil, err
	}
	return &analysis, nil
}
