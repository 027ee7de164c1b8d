package domain

import (
	"net/url"
	"strings"
	"time"
)

// GuestUserID marks the local guest user; nothing is ever persisted for it
const GuestUserID = "guest"

// Tier is a pricing plan
type Tier string

const (
	TierGuest      Tier = "guest"
	TierFree       Tier = "free"
	TierStarter    Tier = "starter"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// Valid reports whether t is a known tier
func (t Tier) Valid() bool {
	switch t {
	case TierGuest, TierFree, TierStarter, TierPro, TierEnterprise:
		return true
	}
	return false
}

// Unlimited is the scan limit of plans without a cap
const Unlimited = -1

// TierLimits is the monthly scan allowance shown on the pricing page.
// Nothing enforces it.
var TierLimits = map[Tier]int{
	TierGuest:      3,
	TierFree:       10,
	TierStarter:    100,
	TierPro:        500,
	TierEnterprise: Unlimited,
}

// Plan is one row of the pricing table
type Plan struct {
	Tier          Tier   `json:"tier"`
	Price         string `json:"price"`
	ScansPerMonth int    `json:"scansPerMonth"`
}

// Plans returns the purchasable plans in display order
func Plans() []Plan {
	return []Plan{
		{Tier: TierFree, Price: "$0", ScansPerMonth: TierLimits[TierFree]},
		{Tier: TierStarter, Price: "$4.99", ScansPerMonth: TierLimits[TierStarter]},
		{Tier: TierPro, Price: "$9.99", ScansPerMonth: TierLimits[TierPro]},
		{Tier: TierEnterprise, Price: "Custom", ScansPerMonth: TierLimits[TierEnterprise]},
	}
}

// User is the signed-in application user
type User struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Picture   string `json:"picture"`
	Tier      Tier   `json:"tier"`
	ScanCount int    `json:"scanCount"`
}

// IsGuest reports whether u is the local guest sentinel
func (u *User) IsGuest() bool {
	return u != nil && u.ID == GuestUserID
}

// NewGuestUser builds the local guest user
func NewGuestUser() *User {
	return &User{
		ID:      GuestUserID,
		Name:    "Guest User",
		Email:   "guest@example.com",
		Picture: "https://ui-avatars.com/api/?name=Guest+User&background=random&color=fff",
		Tier:    TierGuest,
	}
}

// Principal is an authenticated identity reported by the identity provider
type Principal struct {
	UID         string `json:"uid"`
	DisplayName string `json:"displayName,omitempty"`
	Email       string `json:"email,omitempty"`
	PhotoURL    string `json:"photoURL,omitempty"`
}

// UserFromPrincipal maps a provider identity to an application user on the free tier
func UserFromPrincipal(p Principal) *User {
	name := p.DisplayName
	if name == "" && p.Email != "" {
		name, _, _ = strings.Cut(p.Email, "@")
	}
	if name == "" {
		name = "User"
	}

	picture := p.PhotoURL
	if picture == "" {
		seed := p.Email
		if seed == "" {
			seed = "User"
		}
		picture = "https://ui-avatars.com/api/?name=" + url.QueryEscape(seed)
	}

	return &User{
		ID:      p.UID,
		Name:    name,
		Email:   p.Email,
		Picture: picture,
		Tier:    TierFree,
	}
}

// Profile is the per-user document kept at users/{uid}
type Profile struct {
	UID         string    `json:"uid" firestore:"uid"`
	Email       string    `json:"email" firestore:"email"`
	DisplayName string    `json:"displayName" firestore:"displayName"`
	PhotoURL    string    `json:"photoURL" firestore:"photoURL"`
	CreatedAt   time.Time `json:"createdAt" firestore:"createdAt"`
	LastLogin   time.Time `json:"lastLogin" firestore:"lastLogin"`
}
