package parser

import (
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"strings"

	"github.com/aluiziolira/go-scrape-movies/models"
)

// ErrNotNumeric is wrapped by ParseError when the input matches no known encoding.
var ErrNotNumeric = errors.New("not numeric")

// ParseError reports a field whose text could not be converted.
type ParseError struct {
	Field string
	Input string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s %q: %v", e.Field, e.Input, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

var (
	durationPattern = regexp.MustCompile(`^\s*(?:(\d+)\s*h)?\s*(?:(\d+)\s*m)?\s*$`)
	decimalPattern  = regexp.MustCompile(`^\d+(\.\d+)?$`)
)

var suffixMultipliers = map[byte]int64{
	'k': 1_000,
	'm': 1_000_000,
}

// ParseConvertedVotes converts a vote count such as "12,345", "1.2K" or "3.4M"
// to an integer. Suffixed values are truncated, not rounded. Empty and "N/A"
// inputs yield nil without error.
func ParseConvertedVotes(raw string) (*int64, error) {
	cleaned := strings.ToLower(strings.TrimSpace(raw))
	cleaned = strings.Trim(cleaned, "() ")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.Join(strings.Fields(cleaned), "")
	if cleaned == "" || cleaned == "n/a" {
		return nil, nil
	}

	if mult, ok := suffixMultipliers[cleaned[len(cleaned)-1]]; ok {
		prefix := cleaned[:len(cleaned)-1]
		if !decimalPattern.MatchString(prefix) {
			return nil, &ParseError{Field: "votes", Input: raw, Err: ErrNotNumeric}
		}
		value, ok := new(big.Rat).SetString(prefix)
		if !ok {
			return nil, &ParseError{Field: "votes", Input: raw, Err: ErrNotNumeric}
		}
		value.Mul(value, new(big.Rat).SetInt64(mult))
		truncated := new(big.Int).Quo(value.Num(), value.Denom())
		if !truncated.IsInt64() {
			return nil, &ParseError{Field: "votes", Input: raw, Err: strconv.ErrRange}
		}
		n := truncated.Int64()
		return &n, nil
	}

	n, err := strconv.ParseInt(cleaned, 10, 64)
	if err != nil || n < 0 {
		return nil, &ParseError{Field: "votes", Input: raw, Err: ErrNotNumeric}
	}
	return &n, nil
}

// ParseDurationMinutes converts "2h 15m", "3h" or "45m" to minutes. A plain
// integer passes through unchanged. Anything else yields nil; it never fails.
func ParseDurationMinutes(raw string) *int {
	match := durationPattern.FindStringSubmatch(raw)
	if match == nil || (match[1] == "" && match[2] == "") {
		if n, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil && n >= 0 {
			return &n
		}
		return nil
	}

	total := 0
	if match[1] != "" {
		hours, err := strconv.Atoi(match[1])
		if err != nil {
			return nil
		}
		total += hours * 60
	}
	if match[2] != "" {
		minutes, err := strconv.Atoi(match[2])
		if err != nil {
			return nil
		}
		total += minutes
	}
	return &total
}

// IsDurationText reports whether s has the "<H>h <M>m" shape with at least one part.
func IsDurationText(s string) bool {
	match := durationPattern.FindStringSubmatch(s)
	return match != nil && (match[1] != "" || match[2] != "")
}

// ParseRating converts a rating such as "7.5". Empty and "N/A" yield nil.
func ParseRating(raw string) (*float64, error) {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" || strings.EqualFold(cleaned, models.NotAvailable) {
		return nil, nil
	}
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil, &ParseError{Field: "rating", Input: raw, Err: ErrNotNumeric}
	}
	return &value, nil
}

// ValidateRecord ensures the extractor produced a coherent record.
func ValidateRecord(r *models.MovieRecord) error {
	if r == nil {
		return fmt.Errorf("record is nil")
	}
	if strings.TrimSpace(r.Title) == "" {
		return fmt.Errorf("record missing title")
	}
	if r.RatingRaw == "" || r.VotesRaw == "" || r.DurationRaw == "" {
		return fmt.Errorf("record %q has an empty raw field", r.Title)
	}
	if r.Rating != nil && r.RatingRaw == models.NotAvailable {
		return fmt.Errorf("record %q has a rating without source text", r.Title)
	}
	if r.ConvertedVotes != nil && r.VotesRaw == models.NotAvailable {
		return fmt.Errorf("record %q has votes without source text", r.Title)
	}
	if r.DurationMinutes != nil && r.DurationRaw == models.NotAvailable {
		return fmt.Errorf("record %q has a duration without source text", r.Title)
	}
	return nil
}
