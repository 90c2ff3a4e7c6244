package util

import (
	"strconv"
	"strings"
)

func NotBlank(value string) bool {
	return strings.TrimSpace(value) != ""
}

// OptionalFloat parses an optional numeric query parameter. Blank yields nil.
func OptionalFloat(value string) (*float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// OptionalInt parses an optional integer query parameter. Blank yields zero.
func OptionalInt(value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	return strconv.Atoi(value)
}
