package gemini

import (
	"encoding/json"
	"fmt"

	"github.com/nutriscan/backend/internal/domain"
)

// languageRules tells the model which fields keep the on-package language
func languageRules(lang domain.Language) string {
	name := lang.Name()
	return fmt.Sprintf(`Language rules:
- "productName" and every ingredient "name" must stay in the language printed on the package. If that language is not %[1]s, append the %[1]s translation in parentheses, e.g. "Zucker (Sugar)". Do not add a translation when the original is already %[1]s.
- "summary" and every ingredient "reason" must be written entirely in %[1]s.
- "price" must be copied as shown, or "%[2]s" when no price is visible.
- "rating" must be one of GOOD, MODERATE, POOR or NEUTRAL and is never translated.`, name, domain.PriceUnknown)
}

func imagePrompt(lang domain.Language) string {
	return fmt.Sprintf(`Analyze the food product in this image. Identify the product name, find its price if visible, and list every ingredient from the label.
Rate each ingredient as GOOD, MODERATE, POOR or NEUTRAL for health and give a short reason.
Finish with a brief overall health summary.

%s

Respond only with JSON matching the provided schema.`, languageRules(lang))
}

func textPrompt(description string, lang domain.Language) string {
	return fmt.Sprintf(`Analyze the following food product description or ingredient list:

"""
%s
"""

Identify the product name if mentioned, otherwise use "%s". Extract the price if mentioned.
Rate each ingredient as GOOD, MODERATE, POOR or NEUTRAL for health and give a short reason.
Finish with a brief overall health summary.

%s

Respond only with JSON matching the provided schema.`, description, domain.UnknownProduct, languageRules(lang))
}

func translatePrompt(analysis *domain.FoodAnalysis, lang domain.Language) (string, error) {
	payload, err := json.MarshalIndent(analysis, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode analysis: %w", err)
	}

	return fmt.Sprintf(`Translate this food analysis into %[1]s.

%[2]s

Keep "price" and every "rating" exactly as they are. Keep the ingredients in the same order and do not add or remove any.

%[3]s`, lang.Name(), languageRules(lang), payload), nil
}
