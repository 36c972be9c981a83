package market

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// csv.go reads bhavcopy-style daily exports: a header row naming at least
// DATE, OPEN, HIGH, LOW, CLOSE, VOLUME (any order, case-insensitive),
// one row per trade date. This is the only file format the repo ingests;
// network fetching lives outside this module.

// ReadCSV parses one symbol's daily bars from r.
func ReadCSV(symbol string, r io.Reader) (*Series, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%s: reading csv header: %w", symbol, err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToUpper(strings.TrimSpace(name))] = i
	}
	for _, want := range []string{"DATE", "OPEN", "HIGH", "LOW", "CLOSE", "VOLUME"} {
		if _, ok := col[want]; !ok {
			return nil, fmt.Errorf("%s: csv missing column %s", symbol, want)
		}
	}
	var candles []Candle
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: csv line %d: %w", symbol, line, err)
		}
		line++
		c, err := parseRow(rec, col)
		if err != nil {
			return nil, fmt.Errorf("%s: csv line %d: %w", symbol, line, err)
		}
		candles = append(candles, c)
	}
	return NewSeries(symbol, candles)
}

// LoadCSVFile reads a symbol's bars from a file on disk.
func LoadCSVFile(symbol, path string) (*Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadCSV(symbol, f)
}

func parseRow(rec []string, col map[string]int) (Candle, error) {
	field := func(name string) string {
		return strings.TrimSpace(rec[col[name]])
	}
	date, err := parseDate(field("DATE"))
	if err != nil {
		return Candle{}, err
	}
	var c Candle
	c.Date = date
	for _, f := range []struct {
		name string
		dst  *float64
	}{
		{"OPEN", &c.Open},
		{"HIGH", &c.High},
		{"LOW", &c.Low},
		{"CLOSE", &c.Close},
	} {
		v, err := strconv.ParseFloat(field(f.name), 64)
		if err != nil {
			return Candle{}, fmt.Errorf("bad %s value %q", f.name, field(f.name))
		}
		*f.dst = v
	}
	vol, err := strconv.ParseInt(field("VOLUME"), 10, 64)
	if err != nil {
		return Candle{}, fmt.Errorf("bad VOLUME value %q", field("VOLUME"))
	}
	c.Volume = vol
	return c, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{DateLayout, "02-Jan-2006", "02-01-2006"} {
		if d, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return d, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}
