package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/adscope/models"
)

func TestFieldCoverage(t *testing.T) {
	ads := []models.AdRecord{
		{AdID: "1", AdvertiserName: "Acme", LandingPageURL: "https://acme.example", CTAText: "Shop Now"},
		{AdID: "2", AdvertiserName: models.UnknownAdvertiser, AdCopy: "Free shipping on every order today"},
	}
	c := fieldCoverage(ads)
	assert.Equal(t, 50.0, c.Advertiser)
	assert.Equal(t, 50.0, c.Landing)
	assert.Equal(t, 0.0, c.Image)
	assert.Equal(t, 50.0, c.Copy)
	assert.Equal(t, 50.0, c.CTA)

	assert.Equal(t, coverage{}, fieldCoverage(nil))
}

func TestComputeAverages(t *testing.T) {
	runs := []runResult{
		{Success: true, TotalMs: 100, AdsFound: 10, Coverage: coverage{Landing: 80}},
		{Success: true, TotalMs: 300, AdsFound: 20, RateLimited: true, Coverage: coverage{Landing: 40}},
		{Success: false, TotalMs: 999},
	}
	avg := computeAverages(runs)
	require.NotNil(t, avg)
	assert.Equal(t, 200.0, avg.TotalMs)
	assert.Equal(t, 15.0, avg.AdsFound)
	assert.Equal(t, 60.0, avg.Coverage.Landing)
	assert.Equal(t, 1, avg.Blocked)

	assert.Nil(t, computeAverages([]runResult{{Success: false}}))
}

func TestSplitKeywords(t *testing.T) {
	assert.Equal(t, []string{"a b", "c"}, splitKeywords(" a b ,, c ,"))
	assert.Nil(t, splitKeywords(""))
}
