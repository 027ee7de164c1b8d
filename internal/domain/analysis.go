package domain

import (
	"fmt"
	"strings"
)

// HealthRating is the per-ingredient verdict returned by the analysis model
type HealthRating string

const (
	RatingGood     HealthRating = "GOOD"
	RatingModerate HealthRating = "MODERATE"
	RatingPoor     HealthRating = "POOR"
	RatingNeutral  HealthRating = "NEUTRAL"
)

// HealthRatings lists every accepted rating in schema order
var HealthRatings = []HealthRating{RatingGood, RatingModerate, RatingPoor, RatingNeutral}

// Valid reports whether r is one of the four known ratings
func (r HealthRating) Valid() bool {
	switch r {
	case RatingGood, RatingModerate, RatingPoor, RatingNeutral:
		return true
	}
	return false
}

const (
	// PriceUnknown is reported when no price is visible or mentioned
	PriceUnknown = "N/A"

	// UnknownProduct is the name used when a text description names no product
	UnknownProduct = "Unknown Product"
)

// Ingredient is a single rated ingredient from the package label
type Ingredient struct {
	Name   string       `json:"name" firestore:"name"`
	Rating HealthRating `json:"rating" firestore:"rating"`
	Reason string       `json:"reason" firestore:"reason"`
}

// FoodAnalysis is the structured report produced by the analysis model
type FoodAnalysis struct {
	ProductName string       `json:"productName" firestore:"productName"`
	Price       string       `json:"price" firestore:"price"`
	Summary     string       `json:"summary" firestore:"summary"`
	Ingredients []Ingredient `json:"ingredients" firestore:"ingredients"`
}

// Normalize trims free-text fields and fills the price placeholder.
// Ratings are left as received so Validate sees the raw enum value.
func (a *FoodAnalysis) Normalize() {
	a.ProductName = strings.TrimSpace(a.ProductName)
	a.Price = strings.TrimSpace(a.Price)
	if a.Price == "" {
		a.Price = PriceUnknown
	}
	a.Summary = strings.TrimSpace(a.Summary)
	for i := range a.Ingredients {
		ing := &a.Ingredients[i]
		ing.Name = strings.TrimSpace(ing.Name)
		ing.Reason = strings.TrimSpace(ing.Reason)
		ing.Rating = HealthRating(strings.TrimSpace(string(ing.Rating)))
	}
}

// Validate checks the shape the rest of the application relies on:
// a product name, an ingredient list (possibly empty) and known ratings.
func (a *FoodAnalysis) Validate() error {
	if a == nil {
		return fmt.Errorf("%w: analysis is nil", ErrInvalidAnalysis)
	}
	if strings.TrimSpace(a.ProductName) == "" {
		return fmt.Errorf("%w: productName is missing", ErrInvalidAnalysis)
	}
	if a.Ingredients == nil {
		return fmt.Errorf("%w: ingredients is not a list", ErrInvalidAnalysis)
	}
	for i, ing := range a.Ingredients {
		if !ing.Rating.Valid() {
			return fmt.Errorf("%w: ingredient %d has unknown rating %q", ErrInvalidAnalysis, i, ing.Rating)
		}
	}
	return nil
}

// Clone returns a deep copy so callers can hand out analyses without
// sharing the ingredient backing array.
func (a FoodAnalysis) Clone() FoodAnalysis {
	out := a
	if a.Ingredients != nil {
		out.Ingredients = make([]Ingredient, len(a.Ingredients))
		copy(out.Ingredients, a.Ingredients)
	}
	return out
}
