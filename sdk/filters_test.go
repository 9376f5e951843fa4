package sdk

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soumitsalman/insightsack/store"
)

func fptr(v float64) *float64 { return &v }
func iptr(v int) *int         { return &v }

func TestBuild_EmptyParamsMatchEverything(t *testing.T) {
	f, err := FilterParams{Topic: "  ", Swot: ""}.Build()
	require.NoError(t, err)

	assert.True(t, f.isEmpty())
	assert.Empty(t, f.Query())
	assert.True(t, f.Match(&Record{}))
	assert.Equal(t, "", f.Key())
}

func TestBuild_TextFilterIsCaseInsensitiveSubstring(t *testing.T) {
	f, err := FilterParams{Topic: "clim"}.Build()
	require.NoError(t, err)

	assert.True(t, f.Match(&Record{Topic: "Climate Change"}))
	assert.False(t, f.Match(&Record{Topic: "oil"}))
	assert.False(t, f.Match(&Record{}))
	assert.Equal(t, store.JSON{"topic": store.JSON{"$regex": "clim", "$options": "i"}}, f.Query())
}

func TestBuild_TextFilterEscapesRegexMetacharacters(t *testing.T) {
	f, err := FilterParams{Sector: "a.b (c)"}.Build()
	require.NoError(t, err)

	assert.Equal(t, `a\.b \(c\)`, f.Query()["sector"].(store.JSON)["$regex"])
	assert.True(t, f.Match(&Record{Sector: "A.B (C) group"}))
	assert.False(t, f.Match(&Record{Sector: "axb (c)"}))
}

func TestBuild_DateFiltersMapToStoredFields(t *testing.T) {
	f, err := FilterParams{AddedDate: "January, 20 2017", PublishedDate: "2016"}.Build()
	require.NoError(t, err)

	q := f.Query()
	assert.Contains(t, q, "added")
	assert.Contains(t, q, "published")
	assert.True(t, f.Match(&Record{Added: "January, 20 2017 03:51:25", Published: "January, 09 2016 00:00:00"}))
}

func TestBuild_YearsAreExactIntegers(t *testing.T) {
	f, err := FilterParams{EndYear: "2030", StartYear: " 2017 "}.Build()
	require.NoError(t, err)

	assert.Equal(t, store.JSON{"end_year": 2030, "start_year": 2017}, f.Query())
	assert.True(t, f.Match(&Record{EndYear: iptr(2030), StartYear: iptr(2017)}))
	assert.False(t, f.Match(&Record{EndYear: iptr(2031), StartYear: iptr(2017)}))
	assert.False(t, f.Match(&Record{StartYear: iptr(2017)}))
}

func TestBuild_RangeBoundsAreInclusive(t *testing.T) {
	f, err := FilterParams{IntensityRange: "21-40"}.Build()
	require.NoError(t, err)

	assert.Equal(t, store.JSON{"intensity": store.JSON{"$gte": 21.0, "$lte": 40.0}}, f.Query())
	for value, want := range map[float64]bool{20: false, 21: true, 30: true, 40: true, 41: false} {
		assert.Equal(t, want, f.Match(&Record{Intensity: fptr(value)}), "intensity %v", value)
	}
	assert.False(t, f.Match(&Record{}), "records without intensity never match a range")
}

func TestBuild_RangeStripsPercentSigns(t *testing.T) {
	f, err := FilterParams{LikelihoodRange: "10%-50%", RelevanceRange: "1-5"}.Build()
	require.NoError(t, err)

	assert.Equal(t, &Range{Min: 10, Max: 50}, f.Likelihood)
	assert.Equal(t, &Range{Min: 1, Max: 5}, f.Relevance)
}

func TestBuild_RangeAcceptsNegativeBounds(t *testing.T) {
	for value, want := range map[string]Range{
		"-5-10":    {Min: -5, Max: 10},
		"-10--5":   {Min: -10, Max: -5},
		"-2.5 - 0": {Min: -2.5, Max: 0},
		"0.5-1.5":  {Min: 0.5, Max: 1.5},
		"-20%-20%": {Min: -20, Max: 20},
	} {
		f, err := FilterParams{IntensityRange: value}.Build()
		require.NoError(t, err, value)
		assert.Equal(t, &want, f.Intensity, value)
	}
}

func TestBuild_RejectsMalformedValues(t *testing.T) {
	cases := map[string]FilterParams{
		"year not a number":   {EndYear: "soon"},
		"start year float":    {StartYear: "2017.5"},
		"range without dash":  {IntensityRange: "40"},
		"range too many ends": {IntensityRange: "1-2-3"},
		"range bad min":       {LikelihoodRange: "x-3"},
		"range bad max":       {RelevanceRange: "1-y"},
		"range inverted":      {IntensityRange: "40-21"},
		"range negative max":  {IntensityRange: "-5--10"},
		"range lone dash":     {IntensityRange: "-"},
		"range open max":      {IntensityRange: "5-"},
		"unknown swot":        {Swot: "Luck"},
	}
	for name, params := range cases {
		t.Run(name, func(t *testing.T) {
			f, err := params.Build()
			assert.Nil(t, f)
			var invalid *ValidationError
			require.ErrorAs(t, err, &invalid)
			assert.NotEmpty(t, invalid.Param)
		})
	}
}

func TestBuild_SwotFilterQueriesTitleAndInsight(t *testing.T) {
	f, err := FilterParams{Swot: "threat"}.Build()
	require.NoError(t, err)
	assert.Equal(t, THREAT, f.Swot)

	or, ok := f.Query()["$or"].([]store.JSON)
	require.True(t, ok)
	require.Len(t, or, 2)
	assert.Contains(t, or[0], "title")
	assert.Contains(t, or[1], "insight")
	assert.Contains(t, or[0]["title"].(store.JSON)["$regex"], "risk")

	assert.True(t, f.Match(&Record{Insight: "Rising RISK of drought"}))
	assert.False(t, f.Match(&Record{Title: "Steady output"}))
}

func TestKey_IgnoresParameterOrderAndPadding(t *testing.T) {
	a, err := ParseFilterSet(url.Values{"topic": {"Oil"}, "intensity_range": {"21-40"}, "end_year": {"2030"}})
	require.NoError(t, err)
	b, err := ParseFilterSet(url.Values{"end_year": {" 2030"}, "intensity_range": {"21%-40%"}, "topic": {"oil "}})
	require.NoError(t, err)
	c, err := ParseFilterSet(url.Values{"topic": {"gas"}})
	require.NoError(t, err)

	assert.Equal(t, a.Key(), b.Key())
	assert.NotEqual(t, a.Key(), c.Key())
}

func TestParseFilterSet_IgnoresUnknownParameters(t *testing.T) {
	f, err := ParseFilterSet(url.Values{"limit": {"5"}, "foo": {"bar"}})
	require.NoError(t, err)
	assert.True(t, f.isEmpty())
}

func TestNilFilterSet(t *testing.T) {
	var f *FilterSet
	assert.True(t, f.isEmpty())
	assert.Equal(t, store.JSON{}, f.Query())
	assert.True(t, f.Match(&Record{}))
	assert.Equal(t, "", f.Key())
}
