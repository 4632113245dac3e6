package subscription

import (
	"fmt"
	"math"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Unlimited marks a plan without a monthly message cap.
const Unlimited = -1

// DefaultLocale formats prices shown to customers.
var DefaultLocale = language.BritishEnglish

// Money represents a monetary amount in the smallest currency unit.
// For example, £4.99 would be Amount: 499, Currency: "GBP".
type Money struct {
	Amount   int64  `yaml:"amount" json:"amount"`     // Amount in smallest currency unit (pence for GBP)
	Currency string `yaml:"currency" json:"currency"` // ISO 4217 currency code
}

// Format renders m for display in the given locale, e.g. "£ 4.99".
// Unknown currency codes fall back to "4.99 XYZ".
func (m Money) Format(tag language.Tag) string {
	unit, err := currency.ParseISO(m.Currency)
	if err != nil {
		return fmt.Sprintf("%.2f %s", float64(m.Amount)/100, m.Currency)
	}
	scale, _ := currency.Standard.Rounding(unit)
	amount := float64(m.Amount) / math.Pow10(scale)
	return message.NewPrinter(tag).Sprint(currency.Symbol(unit.Amount(amount)))
}

// Plan describes one subscription tier.
// PriceID is never read from the catalog file; it comes from the environment.
type Plan struct {
	ID           string   `yaml:"id" json:"id"`
	Name         string   `yaml:"name" json:"name"`
	Description  string   `yaml:"description" json:"description"`
	PriceID      string   `yaml:"-" json:"-"`
	Price        Money    `yaml:"price" json:"price"`
	MonthlyLimit int      `yaml:"monthly_limit" json:"monthlyLimit"` // Unlimited (-1) for no cap
	SavedChats   int      `yaml:"saved_chats" json:"savedChats"`
	TrialCap     int      `yaml:"trial_cap" json:"-"` // lifetime rows allowed per user; 0 means no cap
	Public       bool     `yaml:"public" json:"-"`
	Aliases      []string `yaml:"aliases" json:"-"`
}

// IsUnlimited reports whether the plan has no monthly message cap.
func (p Plan) IsUnlimited() bool {
	return p.MonthlyLimit == Unlimited
}

// DisplayPrice formats the monthly price in DefaultLocale.
func (p Plan) DisplayPrice() string {
	return p.Price.Format(DefaultLocale)
}

// DefaultPlans returns the built-in catalog. Price ids are left empty.
func DefaultPlans() []Plan {
	return []Plan{
		{
			ID:           "trial",
			Name:         "Trial",
			Description:  "Try the mechanic before you buy",
			Price:        Money{Amount: 0, Currency: "GBP"},
			MonthlyLimit: 5,
			TrialCap:     2,
		},
		{
			ID:           "basic",
			Name:         "Basic",
			Description:  "Essential for basic car queries",
			Price:        Money{Amount: 199, Currency: "GBP"},
			MonthlyLimit: 10,
			SavedChats:   0,
			Public:       true,
		},
		{
			ID:           "starter",
			Name:         "Starter",
			Description:  "Perfect for car owners",
			Price:        Money{Amount: 499, Currency: "GBP"},
			MonthlyLimit: 50,
			SavedChats:   2,
			Public:       true,
		},
		{
			ID:           "professional",
			Name:         "Professional",
			Description:  "For enthusiasts and mechanics",
			Price:        Money{Amount: 1499, Currency: "GBP"},
			MonthlyLimit: 200,
			SavedChats:   5,
			Public:       true,
		},
		{
			ID:           "unlimited",
			Name:         "Unlimited",
			Description:  "For professional workshops",
			Price:        Money{Amount: 3999, Currency: "GBP"},
			MonthlyLimit: Unlimited,
			SavedChats:   10,
			Public:       true,
			Aliases:      []string{"workshop"},
		},
	}
}
