package gemini

import (
	"google.golang.org/genai"

	"github.com/nutriscan/backend/internal/domain"
)

// analysisSchema describes the FoodAnalysis JSON the model must return
func analysisSchema() *genai.Schema {
	ratings := make([]string, len(domain.HealthRatings))
	for i, r := range domain.HealthRatings {
		ratings[i] = string(r)
	}

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"productName": {
				Type:        genai.TypeString,
				Description: "The name of the food product. Keep the original language from the package and add a translation in parentheses when it differs from the requested language.",
			},
			"price": {
				Type:        genai.TypeString,
				Description: "The price of the product if visible or mentioned, otherwise 'N/A'.",
			},
			"summary": {
				Type:        genai.TypeString,
				Description: "A brief, one or two sentence summary of the product's overall healthiness.",
			},
			"ingredients": {
				Type:        genai.TypeArray,
				Description: "A list of all ingredients found.",
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"name": {
							Type:        genai.TypeString,
							Description: "The ingredient name in its original language, with a translation in parentheses when it differs from the requested language.",
						},
						"rating": {
							Type:        genai.TypeString,
							Enum:        ratings,
							Description: "The health rating of the ingredient.",
						},
						"reason": {
							Type:        genai.TypeString,
							Description: "A brief explanation for the health rating.",
						},
					},
					Required: []string{"name", "rating", "reason"},
				},
			},
		},
		Required: []string{"productName", "price", "summary", "ingredients"},
	}
}
