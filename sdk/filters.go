package sdk

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	datautils "github.com/soumitsalman/data-utils"
	"github.com/soumitsalman/insightsack/store"
)

// FilterParams is the raw query string as the client sends it. Every value is
// optional and string typed on the wire. ParseFilterSet fills it from a URL.
type FilterParams struct {
	EndYear         string
	StartYear       string
	Topic           string
	Sector          string
	Region          string
	Pestle          string
	Source          string
	Country         string
	City            string
	Impact          string
	AddedDate       string
	PublishedDate   string
	IntensityRange  string
	LikelihoodRange string
	RelevanceRange  string
	Swot            string
}

// Range is an inclusive numeric interval.
type Range struct {
	Min float64
	Max float64
}

func (r Range) Contains(v *float64) bool {
	return v != nil && r.Min <= *v && *v <= r.Max
}

func (r Range) String() string {
	return strconv.FormatFloat(r.Min, 'f', -1, 64) + "-" + strconv.FormatFloat(r.Max, 'f', -1, 64)
}

// FilterSet is the validated form of FilterParams. Zero values mean the filter
// is not set.
type FilterSet struct {
	EndYear   *int
	StartYear *int

	Topic     string
	Sector    string
	Region    string
	Pestle    string
	Source    string
	Country   string
	City      string
	Impact    string
	Added     string
	Published string

	Intensity  *Range
	Likelihood *Range
	Relevance  *Range

	// canonical category name, see SwotCategory
	Swot string
}

type textFilter struct {
	param string
	field string
	value string
}

type rangeFilter struct {
	param string
	field string
	value *Range
}

// ParseFilterSet reads the recognized filters out of a query string.
func ParseFilterSet(values url.Values) (*FilterSet, error) {
	return FilterParams{
		EndYear:         values.Get("end_year"),
		StartYear:       values.Get("start_year"),
		Topic:           values.Get("topic"),
		Sector:          values.Get("sector"),
		Region:          values.Get("region"),
		Pestle:          values.Get("pestle"),
		Source:          values.Get("source"),
		Country:         values.Get("country"),
		City:            values.Get("city"),
		Impact:          values.Get("impact"),
		AddedDate:       values.Get("added_date"),
		PublishedDate:   values.Get("published_date"),
		IntensityRange:  values.Get("intensity_range"),
		LikelihoodRange: values.Get("likelihood_range"),
		RelevanceRange:  values.Get("relevance_range"),
		Swot:            values.Get("swot"),
	}.Build()
}

// Build validates the raw parameters. Empty values are dropped; malformed
// years, ranges and swot categories come back as *ValidationError.
func (p FilterParams) Build() (*FilterSet, error) {
	var err error
	f := &FilterSet{
		Topic:     strings.TrimSpace(p.Topic),
		Sector:    strings.TrimSpace(p.Sector),
		Region:    strings.TrimSpace(p.Region),
		Pestle:    strings.TrimSpace(p.Pestle),
		Source:    strings.TrimSpace(p.Source),
		Country:   strings.TrimSpace(p.Country),
		City:      strings.TrimSpace(p.City),
		Impact:    strings.TrimSpace(p.Impact),
		Added:     strings.TrimSpace(p.AddedDate),
		Published: strings.TrimSpace(p.PublishedDate),
	}

	if f.EndYear, err = parseYear("end_year", p.EndYear); err != nil {
		return nil, err
	}
	if f.StartYear, err = parseYear("start_year", p.StartYear); err != nil {
		return nil, err
	}
	if f.Intensity, err = parseRange("intensity_range", p.IntensityRange); err != nil {
		return nil, err
	}
	if f.Likelihood, err = parseRange("likelihood_range", p.LikelihoodRange); err != nil {
		return nil, err
	}
	if f.Relevance, err = parseRange("relevance_range", p.RelevanceRange); err != nil {
		return nil, err
	}
	if swot := strings.TrimSpace(p.Swot); swot != "" {
		category, ok := SwotCategory(swot)
		if !ok {
			return nil, &ValidationError{Param: "swot", Value: p.Swot, Reason: "expected one of " + strings.Join(SwotCategories, ", ")}
		}
		f.Swot = category
	}
	return f, nil
}

func parseYear(param, value string) (*int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	year, err := strconv.Atoi(value)
	if err != nil {
		return nil, &ValidationError{Param: param, Value: value, Reason: "expected a whole year"}
	}
	return &year, nil
}

// parseRange reads "<min>-<max>" with an optional % after either bound.
// Bounds may be negative; the separator is the first dash after a digit.
func parseRange(param, value string) (*Range, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	bounds := strings.NewReplacer("%", "", " ", "").Replace(value)
	sep := -1
	for i := 1; i < len(bounds); i++ {
		if bounds[i] == '-' && (isDigit(bounds[i-1]) || bounds[i-1] == '.') {
			sep = i
			break
		}
	}
	if sep < 0 {
		return nil, &ValidationError{Param: param, Value: value, Reason: "expected <min>-<max>"}
	}
	min, err := strconv.ParseFloat(bounds[:sep], 64)
	if err != nil {
		return nil, &ValidationError{Param: param, Value: value, Reason: "min is not a number"}
	}
	max, err := strconv.ParseFloat(bounds[sep+1:], 64)
	if err != nil {
		return nil, &ValidationError{Param: param, Value: value, Reason: "max is not a number"}
	}
	if min > max {
		return nil, &ValidationError{Param: param, Value: value, Reason: "min is greater than max"}
	}
	return &Range{Min: min, Max: max}, nil
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}

func (f *FilterSet) texts() []textFilter {
	all := []textFilter{
		{"topic", "topic", f.Topic},
		{"sector", "sector", f.Sector},
		{"region", "region", f.Region},
		{"pestle", "pestle", f.Pestle},
		{"source", "source", f.Source},
		{"country", "country", f.Country},
		{"city", "city", f.City},
		{"impact", "impact", f.Impact},
		{"added_date", "added", f.Added},
		{"published_date", "published", f.Published},
	}
	return datautils.Filter(all, func(item *textFilter) bool { return item.value != "" })
}

func (f *FilterSet) ranges() []rangeFilter {
	all := []rangeFilter{
		{"intensity_range", "intensity", f.Intensity},
		{"likelihood_range", "likelihood", f.Likelihood},
		{"relevance_range", "relevance", f.Relevance},
	}
	return datautils.Filter(all, func(item *rangeFilter) bool { return item.value != nil })
}

func (f *FilterSet) isEmpty() bool {
	return f == nil || (f.EndYear == nil && f.StartYear == nil && f.Swot == "" &&
		len(f.texts()) == 0 && len(f.ranges()) == 0)
}

// Query converts the set into a mongo filter document. All conditions are
// ANDed; the swot condition is a single $or over title and insight.
func (f *FilterSet) Query() store.JSON {
	filter := store.JSON{}
	if f == nil {
		return filter
	}
	if f.EndYear != nil {
		filter["end_year"] = *f.EndYear
	}
	if f.StartYear != nil {
		filter["start_year"] = *f.StartYear
	}
	for _, t := range f.texts() {
		filter[t.field] = containsRegex(regexp.QuoteMeta(t.value))
	}
	for _, r := range f.ranges() {
		filter[r.field] = store.JSON{"$gte": r.value.Min, "$lte": r.value.Max}
	}
	if f.Swot != "" {
		pattern := strings.Join(datautils.Transform(Keywords(f.Swot), func(item *string) string {
			return regexp.QuoteMeta(*item)
		}), "|")
		filter["$or"] = []store.JSON{
			{"title": containsRegex(pattern)},
			{"insight": containsRegex(pattern)},
		}
	}
	return filter
}

// Match evaluates the same predicate as Query against one record.
func (f *FilterSet) Match(r *Record) bool {
	if f == nil {
		return true
	}
	if f.EndYear != nil && (r.EndYear == nil || *r.EndYear != *f.EndYear) {
		return false
	}
	if f.StartYear != nil && (r.StartYear == nil || *r.StartYear != *f.StartYear) {
		return false
	}
	for _, t := range f.texts() {
		value, _ := r.StringField(t.field)
		if !strings.Contains(strings.ToLower(value), strings.ToLower(t.value)) {
			return false
		}
	}
	for _, rf := range f.ranges() {
		if !rf.value.Contains(metricOf(r, rf.field)) {
			return false
		}
	}
	if f.Swot != "" && !MatchesSwot(r, f.Swot) {
		return false
	}
	return true
}

// Key is a canonical encoding of the set, equal for equal filters no matter
// how the query string was ordered or padded.
func (f *FilterSet) Key() string {
	values := url.Values{}
	if f == nil {
		return ""
	}
	if f.EndYear != nil {
		values.Set("end_year", strconv.Itoa(*f.EndYear))
	}
	if f.StartYear != nil {
		values.Set("start_year", strconv.Itoa(*f.StartYear))
	}
	for _, t := range f.texts() {
		values.Set(t.param, strings.ToLower(t.value))
	}
	for _, r := range f.ranges() {
		values.Set(r.param, r.value.String())
	}
	if f.Swot != "" {
		values.Set("swot", f.Swot)
	}
	return values.Encode()
}

func containsRegex(pattern string) store.JSON {
	return store.JSON{"$regex": pattern, "$options": "i"}
}

func metricOf(r *Record, field string) *float64 {
	switch field {
	case "intensity":
		return r.Intensity
	case "likelihood":
		return r.Likelihood
	case "relevance":
		return r.Relevance
	}
	return nil
}
