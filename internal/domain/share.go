package domain

import (
	"fmt"
	"net/url"
)

// ShareLinks is what the client needs to share an analysis
type ShareLinks struct {
	URL      string `json:"url"`
	Text     string `json:"text"`
	Facebook string `json:"facebook"`
	Twitter  string `json:"twitter"`
	WhatsApp string `json:"whatsapp"`
}

// NewShareLinks builds the share text and per-network links for item,
// pointing at pageURL
func NewShareLinks(item FoodItem, pageURL string) ShareLinks {
	text := fmt.Sprintf("Check out this nutritional analysis for %s on NutriScan AI!", item.Analysis.ProductName)
	return ShareLinks{
		URL:      pageURL,
		Text:     text,
		Facebook: "https://www.facebook.com/sharer/sharer.php?" + url.Values{"u": {pageURL}}.Encode(),
		Twitter:  "https://twitter.com/intent/tweet?" + url.Values{"text": {text}, "url": {pageURL}}.Encode(),
		WhatsApp: "https://wa.me/?" + url.Values{"text": {text + " " + pageURL}}.Encode(),
	}
}
