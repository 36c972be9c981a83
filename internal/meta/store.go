// Package meta serves read-only symbol metadata (sector, industry, financial
// ratios) from a single enrichment JSON document. The document is parsed once
// and queried in place; nothing here ever writes.
package meta

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
)

// Info is the enrichment record of one symbol.
type Info struct {
	Symbol    string             `json:"symbol"`
	Name      string             `json:"name,omitempty"`
	Sector    string             `json:"sector,omitempty"`
	Industry  string             `json:"industry,omitempty"`
	MarketCap float64            `json:"market_cap,omitempty"`
	Ratios    map[string]float64 `json:"ratios,omitempty"`
}

// Store is a read-only key-value view over the enrichment document. The
// document maps symbol → {name, sector, industry, market_cap, ratios{...}}.
type Store struct {
	doc gjson.Result
}

// Open loads and validates the enrichment document at path.
func Open(path string) (*Store, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

// Parse builds a store from an in-memory document.
func Parse(raw []byte) (*Store, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("metadata document is not valid JSON")
	}
	doc := gjson.ParseBytes(raw)
	if !doc.IsObject() {
		return nil, fmt.Errorf("metadata document must be a JSON object keyed by symbol")
	}
	return &Store{doc: doc}, nil
}

// Get returns the enrichment record for symbol.
func (s *Store) Get(symbol string) (Info, bool) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	rec := s.doc.Get(symbol)
	if !rec.Exists() {
		return Info{}, false
	}
	info := Info{
		Symbol:    symbol,
		Name:      rec.Get("name").String(),
		Sector:    rec.Get("sector").String(),
		Industry:  rec.Get("industry").String(),
		MarketCap: rec.Get("market_cap").Float(),
	}
	if ratios := rec.Get("ratios"); ratios.IsObject() {
		info.Ratios = make(map[string]float64)
		ratios.ForEach(func(key, value gjson.Result) bool {
			info.Ratios[key.String()] = value.Float()
			return true
		})
	}
	return info, true
}

// Symbols lists every symbol in the document, sorted.
func (s *Store) Symbols() []string {
	var out []string
	s.doc.ForEach(func(key, _ gjson.Result) bool {
		out = append(out, key.String())
		return true
	})
	sort.Strings(out)
	return out
}

// FilterBySector returns the sorted symbols whose sector matches
// (case-insensitive).
func (s *Store) FilterBySector(sector string) []string {
	want := strings.ToLower(strings.TrimSpace(sector))
	var out []string
	s.doc.ForEach(func(key, value gjson.Result) bool {
		if strings.ToLower(value.Get("sector").String()) == want {
			out = append(out, key.String())
		}
		return true
	})
	sort.Strings(out)
	return out
}

// FilterByRatio returns the sorted symbols whose named ratio lies in
// [min, max]. Symbols missing the ratio are excluded, not treated as zero.
func (s *Store) FilterByRatio(name string, min, max float64) []string {
	var out []string
	s.doc.ForEach(func(key, value gjson.Result) bool {
		r := value.Get("ratios." + name)
		if r.Exists() {
			if v := r.Float(); v >= min && v <= max {
				out = append(out, key.String())
			}
		}
		return true
	})
	sort.Strings(out)
	return out
}
