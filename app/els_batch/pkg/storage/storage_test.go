package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iWorld-y/els_batch/app/els_batch/pkg/config"
	"github.com/iWorld-y/els_batch/app/els_batch/pkg/model"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := NewStorage(config.DBConfig{Driver: "sqlite"})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestRebind(t *testing.T) {
	pg := &Storage{dialect: "postgres"}
	assert.Equal(t, "SELECT a FROM b WHERE c = $1 AND d = $2", pg.rebind("SELECT a FROM b WHERE c = ? AND d = ?"))

	lite := &Storage{dialect: "sqlite"}
	assert.Equal(t, "c = ?", lite.rebind("c = ?"))
}

func TestFindTickerPrefersRealSymbol(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	got, err := s.FindTicker(ctx, "삼성전자")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = s.SaveTicker(ctx, model.PlaceholderTicker, "삼성전자")
	require.NoError(t, err)
	got, err = s.FindTicker(ctx, "삼성전자")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.IsPlaceholder())

	listed, err := s.SaveTicker(ctx, "005930", "삼성전자")
	require.NoError(t, err)
	got, err = s.FindTicker(ctx, "삼성전자")
	require.NoError(t, err)
	assert.Equal(t, listed, got)

	again, err := s.SaveTicker(ctx, "005930", "삼성전자")
	require.NoError(t, err)
	assert.Equal(t, listed.ID, again.ID)
}

func TestSaveProduct(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	samsung, err := s.SaveTicker(ctx, "005930", "삼성전자")
	require.NoError(t, err)

	vol := 25.3
	maturity := day(2024, 1, 2)
	ki := 45
	draft := &model.ProductDraft{
		Issuer:                 "OO증권",
		Name:                   "OO증권 제123회",
		Underlyings:            []string{"삼성전자", "SK하이닉스"},
		IssuedDate:             day(2023, 1, 2),
		MaturityDate:           day(2026, 1, 2),
		MaturityEvaluationDate: &maturity,
		MaturityEvaluationKind: model.MaturitySingle,
		Yield:                  8.5,
		MaximumLossRate:        100,
		KnockIn:                &ki,
		ProductType:            model.ProductTypeStepDown,
		State:                  model.ProductStateInactive,
		EarlyRedemptionDates: []model.EarlyRedemptionDate{
			{Round: "1차", Date: day(2023, 7, 3)},
			{Round: "2차", Date: day(2024, 1, 2)},
		},
		Links: []model.UnderlyingLink{
			{Underlying: "삼성전자", Ticker: samsung, Volatility: &vol},
			{Underlying: "SK하이닉스"},
		},
	}
	require.NoError(t, s.SaveProduct(ctx, draft))
	assert.NotZero(t, draft.ID)

	exists, err := s.ProductExists(ctx, "OO증권 제123회")
	require.NoError(t, err)
	assert.True(t, exists)

	stored, err := s.FindProduct(ctx, "OO증권 제123회")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, draft.ID, stored.ID)
	assert.Equal(t, model.ProductStateInactive, stored.State)
	assert.Equal(t, "2024-01-02", stored.MaturityEvaluationDate)
	assert.Equal(t, model.MaturitySingle, stored.MaturityEvaluationKind)
	assert.Equal(t, []string{"005930", model.PlaceholderTicker}, stored.Tickers)
	assert.Equal(t, []float64{25.3}, stored.Volatilities)
	assert.Equal(t, []string{"1차", "2차"}, stored.EarlyRedemptionRounds)

	placeholder, err := s.FindTicker(ctx, "SK하이닉스")
	require.NoError(t, err)
	require.NotNil(t, placeholder)
	assert.True(t, placeholder.IsPlaceholder())

	// 同一标的的占位记录只有一条
	second := &model.ProductDraft{
		Issuer:                 "OO증권",
		Name:                   "OO증권 제124회",
		Underlyings:            []string{"SK하이닉스"},
		MaturityEvaluationKind: model.MaturityUnknown,
		ProductType:            model.ProductTypeETC,
		State:                  model.ProductStateInactive,
		Links:                  []model.UnderlyingLink{{Underlying: "SK하이닉스"}},
	}
	require.NoError(t, s.SaveProduct(ctx, second))
	var n int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(1) FROM ticker_symbols WHERE equity_name = 'SK하이닉스'`).Scan(&n))
	assert.Equal(t, 1, n)

	count, err := s.CountProducts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestSaveProductRejectsDuplicateName(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	draft := func() *model.ProductDraft {
		return &model.ProductDraft{
			Issuer:                 "KB증권",
			Name:                   "KB증권 제1회",
			MaturityEvaluationKind: model.MaturityUnknown,
			ProductType:            model.ProductTypeETC,
			State:                  model.ProductStateActive,
		}
	}
	require.NoError(t, s.SaveProduct(ctx, draft()))
	assert.Error(t, s.SaveProduct(ctx, draft()))

	missing, err := s.FindProduct(ctx, "없음")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestNewStorageUnknownDriver(t *testing.T) {
	_, err := NewStorage(config.DBConfig{Driver: "mysql"})
	assert.Error(t, err)
}
