package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CodeType is the logical entity a scanned code identifies
type CodeType string

const (
	CodeTypeCrate CodeType = "crate"
	CodeTypeBatch CodeType = "batch"
)

// CodeFormat identifies which grammar a code matched
type CodeFormat string

const (
	// CodeFormatShort is the scan-entry form, e.g. CR-061524-007
	CodeFormatShort CodeFormat = "short"
	// CodeFormatLabel is the printed label form, e.g. ASIKH-CRATE-<uuid>
	CodeFormatLabel CodeFormat = "label"
)

const (
	crateShortPrefix = "CR"
	batchShortPrefix = "BT"
	shortDateLayout  = "010206"
	maxDailySequence = 999
)

var (
	// CR|BT - MMDDYY - NNN
	shortCodePattern = regexp.MustCompile(`^(CR|BT)-(\d{6})-(\d{3})$`)

	// ASIKH - CRATE|BATCH - uuid
	labelCodePattern = regexp.MustCompile(`^ASIKH-(CRATE|BATCH)-([0-9A-F]{8}-[0-9A-F]{4}-[0-9A-F]{4}-[0-9A-F]{4}-[0-9A-F]{12})$`)
)

// Code is an immutable, validated crate or batch identifier
type Code struct {
	value    string
	codeType CodeType
	format   CodeFormat
	issuedOn time.Time
	sequence int
}

// ParseCode normalizes a scanned code and matches it against the recognized grammars
func ParseCode(raw string) (Code, error) {
	value := strings.ToUpper(strings.TrimSpace(raw))
	if value == "" {
		return Code{}, NewValidationError("qrCode", "code cannot be empty")
	}

	if m := shortCodePattern.FindStringSubmatch(value); m != nil {
		issuedOn, err := time.Parse(shortDateLayout, m[2])
		if err != nil {
			return Code{}, NewValidationError("qrCode", fmt.Sprintf("%q has an invalid date segment", value))
		}
		seq, _ := strconv.Atoi(m[3])
		if seq == 0 {
			return Code{}, NewValidationError("qrCode", fmt.Sprintf("%q has a zero sequence", value))
		}
		codeType := CodeTypeCrate
		if m[1] == batchShortPrefix {
			codeType = CodeTypeBatch
		}
		return Code{value: value, codeType: codeType, format: CodeFormatShort, issuedOn: issuedOn, sequence: seq}, nil
	}

	if m := labelCodePattern.FindStringSubmatch(value); m != nil {
		if _, err := uuid.Parse(m[2]); err != nil {
			return Code{}, NewValidationError("qrCode", fmt.Sprintf("%q has an invalid uuid", value))
		}
		codeType := CodeTypeCrate
		if m[1] == "BATCH" {
			codeType = CodeTypeBatch
		}
		return Code{value: value, codeType: codeType, format: CodeFormatLabel}, nil
	}

	return Code{}, NewValidationError("qrCode", fmt.Sprintf("%q does not match a recognized code format", value))
}

// ParseCrateCode parses a code and requires it to identify a crate
func ParseCrateCode(raw string) (Code, error) {
	return parseTyped(raw, CodeTypeCrate)
}

// ParseBatchCode parses a code and requires it to identify a batch
func ParseBatchCode(raw string) (Code, error) {
	return parseTyped(raw, CodeTypeBatch)
}

func parseTyped(raw string, want CodeType) (Code, error) {
	code, err := ParseCode(raw)
	if err != nil {
		return Code{}, err
	}
	if code.codeType != want {
		return Code{}, NewValidationError("qrCode", fmt.Sprintf("%s is a %s code, expected a %s code", code.value, code.codeType, want))
	}
	return code, nil
}

// NewBatchCode builds the canonical BT-MMDDYY-NNN code for the given UTC day and sequence
func NewBatchCode(day time.Time, sequence int) (Code, error) {
	return newShortCode(batchShortPrefix, CodeTypeBatch, day, sequence)
}

// NewCrateCode builds the canonical CR-MMDDYY-NNN code
func NewCrateCode(day time.Time, sequence int) (Code, error) {
	return newShortCode(crateShortPrefix, CodeTypeCrate, day, sequence)
}

func newShortCode(prefix string, codeType CodeType, day time.Time, sequence int) (Code, error) {
	day = day.UTC()
	if sequence < 1 {
		return Code{}, NewValidationError("sequence", fmt.Sprintf("daily sequence %d must be at least 1", sequence))
	}
	if sequence > maxDailySequence {
		return Code{}, &SequenceExhaustedError{Prefix: prefix, Day: day.Format(time.DateOnly), Max: maxDailySequence}
	}
	issuedOn := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	value := fmt.Sprintf("%s-%s-%03d", prefix, day.Format(shortDateLayout), sequence)
	return Code{value: value, codeType: codeType, format: CodeFormatShort, issuedOn: issuedOn, sequence: sequence}, nil
}

// Value returns the normalized code
func (c Code) Value() string { return c.value }

// Type returns the logical entity type
func (c Code) Type() CodeType { return c.codeType }

// Format returns the grammar the code matched
func (c Code) Format() CodeFormat { return c.format }

// IssuedOn returns the date segment of a short code, zero for label codes
func (c Code) IssuedOn() time.Time { return c.issuedOn }

// Sequence returns the daily sequence of a short code, zero for label codes
func (c Code) Sequence() int { return c.sequence }

func (c Code) IsCrate() bool { return c.codeType == CodeTypeCrate }

func (c Code) IsBatch() bool { return c.codeType == CodeTypeBatch }

func (c Code) String() string { return c.value }

// MarshalText implements encoding.TextMarshaler
func (c Code) MarshalText() ([]byte, error) {
	return []byte(c.value), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (c *Code) UnmarshalText(text []byte) error {
	code, err := ParseCode(string(text))
	if err != nil {
		return err
	}
	*c = code
	return nil
}
