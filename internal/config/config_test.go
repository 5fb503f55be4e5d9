package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "coffee-api", cfg.App.Name)
		assert.Equal(t, ":8081", cfg.App.HTTPAddr)
		assert.Equal(t, "postgres", cfg.Storage.Driver)
		assert.Equal(t, []string{"kafka:9092"}, cfg.Kafka.Brokers)
		assert.True(t, cfg.Loyalty.PointsPerUnit.Equal(decimal.NewFromInt(1)))
		assert.True(t, cfg.Loyalty.PointValue.Equal(decimal.RequireFromString("0.1")))
		assert.Equal(t, 10*time.Minute, cfg.Orders.DefaultPrepTime)
	})

	t.Run("env overrides", func(t *testing.T) {
		t.Setenv("COFFEE_STORAGE_DRIVER", "MEMORY")
		t.Setenv("COFFEE_KAFKA_BROKERS", "k1:9092, k2:9092,")
		t.Setenv("COFFEE_LOYALTY_POINTS_PER_UNIT", "2")
		t.Setenv("COFFEE_ORDERS_DEFAULT_PREP_TIME", "7m")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "memory", cfg.Storage.Driver)
		assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
		assert.True(t, cfg.Loyalty.PointsPerUnit.Equal(decimal.NewFromInt(2)))
		assert.Equal(t, 7*time.Minute, cfg.Orders.DefaultPrepTime)
	})

	t.Run("unknown driver", func(t *testing.T) {
		t.Setenv("COFFEE_STORAGE_DRIVER", "mongo")
		_, err := Load()
		assert.ErrorContains(t, err, "unknown storage driver")
	})

	t.Run("bad points policy", func(t *testing.T) {
		t.Setenv("COFFEE_LOYALTY_POINT_VALUE", "abc")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("negative points policy", func(t *testing.T) {
		t.Setenv("COFFEE_LOYALTY_POINTS_PER_UNIT", "-1")
		_, err := Load()
		assert.ErrorContains(t, err, "points_per_unit")
	})
}

func TestSplitCSV(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitCSV(" a ,, b "))
	assert.Empty(t, splitCSV(""))
}
