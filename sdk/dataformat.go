package sdk

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Record is one analytic observation. Every field is optional; absent numbers
// stay nil and are left out of the stored document so that store-side
// averages skip them.
type Record struct {
	EndYear    *int     `json:"end_year" bson:"end_year,omitempty"`
	StartYear  *int     `json:"start_year" bson:"start_year,omitempty"`
	Intensity  *float64 `json:"intensity" bson:"intensity,omitempty"`
	Likelihood *float64 `json:"likelihood" bson:"likelihood,omitempty"`
	Relevance  *float64 `json:"relevance" bson:"relevance,omitempty"`

	Sector  string `json:"sector" bson:"sector,omitempty"`
	Topic   string `json:"topic" bson:"topic,omitempty"`
	Insight string `json:"insight" bson:"insight,omitempty"`
	Url     string `json:"url" bson:"url,omitempty"`
	Region  string `json:"region" bson:"region,omitempty"`
	Country string `json:"country" bson:"country,omitempty"`
	City    string `json:"city" bson:"city,omitempty"`
	Impact  string `json:"impact" bson:"impact,omitempty"`
	Pestle  string `json:"pestle" bson:"pestle,omitempty"`
	Source  string `json:"source" bson:"source,omitempty"`
	Swot    string `json:"swot" bson:"swot,omitempty"`
	Title   string `json:"title" bson:"title,omitempty"`

	Added     string `json:"added" bson:"added,omitempty"`
	Published string `json:"published" bson:"published,omitempty"`
}

// the dataset mixes numbers, numeric strings and "" for the same field
type flexNumber struct {
	value *float64
}

func (n *flexNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	text := string(data)
	if data[0] == '"' {
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return nil
		}
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return fmt.Errorf("not a number: %s", string(data))
	}
	n.value = &v
	return nil
}

func (n flexNumber) asInt() *int {
	if n.value == nil {
		return nil
	}
	v := int(*n.value)
	return &v
}

// text fields that sometimes arrive as bare numbers keep their literal text
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		*s = flexString(text)
		return nil
	}
	*s = flexString(string(data))
	return nil
}

type rawRecord struct {
	EndYear    flexNumber `json:"end_year"`
	StartYear  flexNumber `json:"start_year"`
	Intensity  flexNumber `json:"intensity"`
	Likelihood flexNumber `json:"likelihood"`
	Relevance  flexNumber `json:"relevance"`

	Sector    flexString `json:"sector"`
	Topic     flexString `json:"topic"`
	Insight   flexString `json:"insight"`
	Url       flexString `json:"url"`
	Region    flexString `json:"region"`
	Country   flexString `json:"country"`
	City      flexString `json:"city"`
	Impact    flexString `json:"impact"`
	Pestle    flexString `json:"pestle"`
	Source    flexString `json:"source"`
	Swot      flexString `json:"swot"`
	Title     flexString `json:"title"`
	Added     flexString `json:"added"`
	Published flexString `json:"published"`
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var raw rawRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = Record{
		EndYear:    raw.EndYear.asInt(),
		StartYear:  raw.StartYear.asInt(),
		Intensity:  raw.Intensity.value,
		Likelihood: raw.Likelihood.value,
		Relevance:  raw.Relevance.value,
		Sector:     string(raw.Sector),
		Topic:      string(raw.Topic),
		Insight:    string(raw.Insight),
		Url:        string(raw.Url),
		Region:     string(raw.Region),
		Country:    string(raw.Country),
		City:       string(raw.City),
		Impact:     string(raw.Impact),
		Pestle:     string(raw.Pestle),
		Source:     string(raw.Source),
		Swot:       string(raw.Swot),
		Title:      string(raw.Title),
		Added:      string(raw.Added),
		Published:  string(raw.Published),
	}
	return nil
}

// StringField returns the value of a categorical field by its stored name.
func (r *Record) StringField(name string) (string, bool) {
	switch name {
	case "sector":
		return r.Sector, true
	case "topic":
		return r.Topic, true
	case "insight":
		return r.Insight, true
	case "url":
		return r.Url, true
	case "region":
		return r.Region, true
	case "country":
		return r.Country, true
	case "city":
		return r.City, true
	case "impact":
		return r.Impact, true
	case "pestle":
		return r.Pestle, true
	case "source":
		return r.Source, true
	case "swot":
		return r.Swot, true
	case "title":
		return r.Title, true
	case "added":
		return r.Added, true
	case "published":
		return r.Published, true
	}
	return "", false
}

type Stats struct {
	AvgIntensity  float64 `json:"avgIntensity" bson:"avgIntensity"`
	AvgLikelihood float64 `json:"avgLikelihood" bson:"avgLikelihood"`
	AvgRelevance  float64 `json:"avgRelevance" bson:"avgRelevance"`
	TotalRecords  int64   `json:"totalRecords" bson:"totalRecords"`
}

// SectorSummary.Sector is nil for the group of records without a sector.
type SectorSummary struct {
	Sector        *string `json:"_id" bson:"_id"`
	AvgIntensity  float64 `json:"avgIntensity" bson:"avgIntensity"`
	AvgLikelihood float64 `json:"avgLikelihood" bson:"avgLikelihood"`
	Count         int64   `json:"count" bson:"count"`
}

type TopicYear struct {
	Topic *string `json:"topic" bson:"topic"`
	Year  *int    `json:"year" bson:"year"`
}

type TopicTrend struct {
	ID           TopicYear `json:"_id" bson:"_id"`
	Count        int64     `json:"count" bson:"count"`
	AvgIntensity float64   `json:"avgIntensity" bson:"avgIntensity"`
}

type PestleSummary struct {
	Pestle        *string `json:"_id" bson:"_id"`
	Count         int64   `json:"count" bson:"count"`
	AvgIntensity  float64 `json:"avgIntensity" bson:"avgIntensity"`
	AvgLikelihood float64 `json:"avgLikelihood" bson:"avgLikelihood"`
}

// CategoryCount is one slice of a distribution (SWOT category, intensity
// bucket or region).
type CategoryCount struct {
	Label *string `json:"_id" bson:"_id"`
	Count int64   `json:"count" bson:"count"`
}

type YearSummary struct {
	Year          *int    `json:"_id" bson:"_id"`
	Count         int64   `json:"count" bson:"count"`
	AvgIntensity  float64 `json:"avgIntensity" bson:"avgIntensity"`
	AvgLikelihood float64 `json:"avgLikelihood" bson:"avgLikelihood"`
	AvgRelevance  float64 `json:"avgRelevance" bson:"avgRelevance"`
}

func stringPtr(s string) *string {
	return &s
}
