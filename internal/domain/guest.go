package domain

import "time"

// GuestHistory returns the fixed sample items shown to guest users.
// A fresh copy is returned on every call.
func GuestHistory() []FoodItem {
	return []FoodItem{
		{
			ID:       "guest-sample-2",
			Image:    TextScanPlaceholder,
			Location: LocationManualInput,
			ScanDate: time.Date(2024, time.May, 21, 9, 30, 0, 0, time.UTC),
			Analysis: FoodAnalysis{
				ProductName: "Greek Yogurt, Plain",
				Price:       "$1.29",
				Summary:     "A protein-rich yogurt with a short ingredient list. Choose plain varieties to avoid added sugar.",
				Ingredients: []Ingredient{
					{Name: "Cultured Pasteurized Milk", Rating: RatingGood, Reason: "A good source of protein and calcium."},
					{Name: "Live Active Cultures", Rating: RatingGood, Reason: "Probiotics that support gut health."},
				},
			},
		},
		{
			ID:       "guest-sample-1",
			Image:    TextScanPlaceholder,
			Location: LocationManualInput,
			ScanDate: time.Date(2024, time.May, 20, 18, 5, 0, 0, time.UTC),
			Analysis: FoodAnalysis{
				ProductName: "Classic Potato Chips",
				Price:       PriceUnknown,
				Summary:     "A calorie-dense snack high in fat and sodium. Best enjoyed occasionally in small portions.",
				Ingredients: []Ingredient{
					{Name: "Potatoes", Rating: RatingNeutral, Reason: "A starchy vegetable that is fine in moderation."},
					{Name: "Sunflower Oil", Rating: RatingModerate, Reason: "Adds a lot of fat and calories when used for frying."},
					{Name: "Salt", Rating: RatingPoor, Reason: "High sodium intake is linked to raised blood pressure."},
				},
			},
		},
	}
}
