package filter

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/corpusq/internal/domain/corpus/field"
)

// DateLayout is the URL encoding of a calendar day.
const DateLayout = "2006-01-02"

const (
	listSeparator  = ","
	rangeSeparator = ":"
)

// listEscaper protects the list separator inside multiple-choice values.
var listEscaper = strings.NewReplacer("%", "%25", ",", "%2C")

// Encode renders a filter value as its canonical URL parameter string.
func Encode(d Data) string {
	switch v := d.(type) {
	case BooleanData:
		return strconv.FormatBool(v.Checked)
	case RangeData:
		return formatFloat(v.Min) + rangeSeparator + formatFloat(v.Max)
	case DateData:
		return Day(v.Min).Format(DateLayout) + rangeSeparator + Day(v.Max).Format(DateLayout)
	case MultipleChoiceData:
		parts := make([]string, len(v.Selected))
		for i, s := range v.Selected {
			parts[i] = listEscaper.Replace(s)
		}
		return strings.Join(parts, listSeparator)
	case TagData:
		parts := make([]string, len(v.Tags))
		for i, id := range v.Tags {
			parts[i] = strconv.Itoa(id)
		}
		return strings.Join(parts, listSeparator)
	}
	return ""
}

// Decode parses a URL parameter string into the variant declared by ft.
func Decode(ft field.FilterType, raw string) (Data, error) {
	switch ft {
	case field.Boolean:
		return decodeBoolean(raw)
	case field.Range:
		return decodeRange(raw)
	case field.Date:
		return decodeDate(raw)
	case field.MultipleChoice:
		return decodeMultipleChoice(raw)
	case field.Tag:
		return decodeTag(raw)
	}
	return nil, fmt.Errorf("no parameter encoding for filter type %q", ft)
}

func decodeBoolean(raw string) (Data, error) {
	switch raw {
	case "true":
		return BooleanData{Checked: true}, nil
	case "false":
		return BooleanData{Checked: false}, nil
	}
	return nil, fmt.Errorf("expected true or false")
}

func decodeRange(raw string) (Data, error) {
	lo, hi, err := splitRange(raw)
	if err != nil {
		return nil, err
	}
	minVal, err := strconv.ParseFloat(lo, 64)
	if err != nil {
		return nil, fmt.Errorf("parse min: %w", err)
	}
	maxVal, err := strconv.ParseFloat(hi, 64)
	if err != nil {
		return nil, fmt.Errorf("parse max: %w", err)
	}
	d := RangeData{Min: minVal, Max: maxVal}
	if reason := validate(d); reason != "" {
		return nil, fmt.Errorf("%s", reason)
	}
	return d, nil
}

func decodeDate(raw string) (Data, error) {
	lo, hi, err := splitRange(raw)
	if err != nil {
		return nil, err
	}
	minVal, err := time.Parse(DateLayout, lo)
	if err != nil {
		return nil, fmt.Errorf("parse min date: %w", err)
	}
	maxVal, err := time.Parse(DateLayout, hi)
	if err != nil {
		return nil, fmt.Errorf("parse max date: %w", err)
	}
	d := DateData{Min: minVal, Max: maxVal}
	if reason := validate(d); reason != "" {
		return nil, fmt.Errorf("%s", reason)
	}
	return d, nil
}

// decodeMultipleChoice tolerates empty segments, including the trailing one of legacy links.
func decodeMultipleChoice(raw string) (Data, error) {
	var selected []string
	for _, part := range strings.Split(raw, listSeparator) {
		if part == "" {
			continue
		}
		v, err := url.PathUnescape(part)
		if err != nil {
			return nil, fmt.Errorf("unescape %q: %w", part, err)
		}
		selected = append(selected, v)
	}
	return MultipleChoiceData{Selected: selected}, nil
}

func decodeTag(raw string) (Data, error) {
	var tags []int
	for _, part := range strings.Split(raw, listSeparator) {
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("parse tag id %q: %w", part, err)
		}
		tags = append(tags, id)
	}
	return TagData{Tags: tags}, nil
}

// splitRange splits "<min>:<max>". Negative numbers carry no colon, so exactly one separator is expected.
func splitRange(raw string) (string, string, error) {
	lo, hi, ok := strings.Cut(raw, rangeSeparator)
	if !ok {
		return "", "", fmt.Errorf("expected <min>%s<max>", rangeSeparator)
	}
	if strings.Contains(hi, rangeSeparator) {
		return "", "", fmt.Errorf("too many %q separators", rangeSeparator)
	}
	if lo == "" || hi == "" {
		return "", "", fmt.Errorf("empty range bound")
	}
	return lo, hi, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
