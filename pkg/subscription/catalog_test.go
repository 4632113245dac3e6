package subscription_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mymechanic/pkg/subscription"
)

func TestLoadCatalog_Defaults(t *testing.T) {
	t.Parallel()

	c := testCatalog(t)

	basic, ok := c.Plan("basic")
	require.True(t, ok)
	assert.Equal(t, 10, basic.MonthlyLimit)
	assert.Equal(t, "price_basic", basic.PriceID)
	assert.Equal(t, int64(199), basic.Price.Amount)
	assert.Contains(t, basic.DisplayPrice(), "1.99")

	unlimited, ok := c.Plan("UNLIMITED")
	require.True(t, ok)
	assert.True(t, unlimited.IsUnlimited())

	workshop, ok := c.Plan("workshop")
	require.True(t, ok, "legacy alias resolves")
	assert.Equal(t, "unlimited", workshop.ID)

	trial, ok := c.Plan("trial")
	require.True(t, ok)
	assert.Equal(t, 2, trial.TrialCap)
	assert.False(t, trial.Public)

	ids := make([]string, 0)
	for _, p := range c.Public() {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"basic", "starter", "professional", "unlimited"}, ids)
	assert.Empty(t, c.Warnings())
}

func TestLoadCatalog_WarnsOnMissingAndSharedPrices(t *testing.T) {
	t.Parallel()

	c, err := subscription.LoadCatalog(subscription.CatalogConfig{
		PriceBasic:    "price_x",
		PriceStarter:  "price_x",
		DefaultPlanID: "starter",
	})
	require.NoError(t, err)

	warnings := c.Warnings()
	assert.Len(t, warnings, 4) // trial, professional, unlimited missing; starter shares basic's price
	p, ok := c.ByPriceID("price_x")
	require.True(t, ok)
	assert.Equal(t, "basic", p.ID)
}

func TestLoadCatalog_UnknownDefault(t *testing.T) {
	t.Parallel()

	_, err := subscription.LoadCatalog(subscription.CatalogConfig{DefaultPlanID: "gold"})
	assert.ErrorIs(t, err, subscription.ErrInvalidCatalog)
}

func TestLoadCatalog_FromYAML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "plans.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
plans:
  - id: starter
    name: Starter
    description: Ten a day
    monthly_limit: 300
    public: true
    price:
      amount: 599
      currency: GBP
  - id: fleet
    name: Fleet
    monthly_limit: -1
    aliases: [garage]
    price:
      amount: 9900
      currency: GBP
`), 0o600))

	c, err := subscription.LoadCatalog(subscription.CatalogConfig{
		Path:          path,
		PriceStarter:  "price_starter",
		DefaultPlanID: "starter",
	})
	require.NoError(t, err)

	starter, ok := c.Plan("starter")
	require.True(t, ok)
	assert.Equal(t, 300, starter.MonthlyLimit)
	assert.Equal(t, "price_starter", starter.PriceID)

	fleet, ok := c.Plan("garage")
	require.True(t, ok)
	assert.Equal(t, "fleet", fleet.ID)
	assert.Empty(t, fleet.PriceID)

	_, ok = c.Plan("basic")
	assert.False(t, ok)
}

func TestLoadCatalog_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := subscription.LoadCatalog(subscription.CatalogConfig{Path: "/nonexistent/plans.yaml", DefaultPlanID: "starter"})
	assert.ErrorIs(t, err, subscription.ErrFailedToLoadPlans)
}

func TestCatalog_ResolvePlanID(t *testing.T) {
	t.Parallel()

	c := testCatalog(t)
	assert.Equal(t, "basic", c.ResolvePlanID("basic", "price_pro"))
	assert.Equal(t, "unlimited", c.ResolvePlanID("workshop", ""))
	assert.Equal(t, "professional", c.ResolvePlanID("retired_plan", "price_pro"))
	assert.Equal(t, "starter", c.ResolvePlanID("", "price_unknown"))

	assert.Equal(t, 200, c.MonthlyLimit("professional"))
	assert.Equal(t, 50, c.MonthlyLimit("retired_plan"))

	assert.Equal(t, 0, c.SavedChatLimit("basic"))
	assert.Equal(t, 5, c.SavedChatLimit("professional"))
	assert.Equal(t, 10, c.SavedChatLimit("workshop"))
	assert.Equal(t, 0, c.SavedChatLimit("retired_plan"))
}

func TestMoney_FormatUnknownCurrency(t *testing.T) {
	t.Parallel()

	m := subscription.Money{Amount: 1234, Currency: "???"}
	assert.Equal(t, "12.34 ???", m.Format(subscription.DefaultLocale))
}
