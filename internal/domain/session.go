package domain

// Language is a supported analysis language code
type Language string

const (
	LanguageEnglish            Language = "en"
	LanguageSpanish            Language = "es"
	LanguageFrench             Language = "fr"
	LanguageGerman             Language = "de"
	LanguageItalian            Language = "it"
	LanguageTraditionalChinese Language = "zh-TW"
	LanguageSimplifiedChinese  Language = "zh-CN"
	LanguageJapanese           Language = "ja"
)

var languageNames = map[Language]string{
	LanguageEnglish:            "English",
	LanguageSpanish:            "Spanish",
	LanguageFrench:             "French",
	LanguageGerman:             "German",
	LanguageItalian:            "Italian",
	LanguageTraditionalChinese: "Traditional Chinese",
	LanguageSimplifiedChinese:  "Simplified Chinese",
	LanguageJapanese:           "Japanese",
}

// Valid reports whether l is a supported language
func (l Language) Valid() bool {
	_, ok := languageNames[l]
	return ok
}

// Name returns the English name of the language used in prompts.
// Unknown codes fall back to English.
func (l Language) Name() string {
	if name, ok := languageNames[l]; ok {
		return name
	}
	return languageNames[LanguageEnglish]
}

// View is the page shown to an authenticated user
type View string

const (
	ViewScan    View = "scan"
	ViewHistory View = "history"
	ViewDetail  View = "detail"
	ViewPricing View = "pricing"
)

// Valid reports whether v is a known view
func (v View) Valid() bool {
	switch v {
	case ViewScan, ViewHistory, ViewDetail, ViewPricing:
		return true
	}
	return false
}

// Screen is the top-level authentication state of a session
type Screen string

const (
	ScreenHome  Screen = "home"
	ScreenLogin Screen = "login"
	ScreenApp   Screen = "app"
)
