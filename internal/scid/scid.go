// Package scid normalizes short channel identifiers into the compact numeric
// form used for lookups against the node.
package scid

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidFormat is returned for identifiers that are neither a decimal
// compact id nor a blockxtxxoutput triplet.
var ErrInvalidFormat = errors.New("invalid short channel id format")

// Separator between the block/tx/output components of the human-readable form.
const separator = "x"

// Normalize converts a short channel id into its decimal compact form.
// Accepts either the compact form itself ("992233471131910145") or the
// human-readable triplet ("902245x1158x1"), which composes as
// (block << 40) | (tx_index << 16) | output_index. Pure: no network or
// state access.
func Normalize(raw string) (string, error) {
	if strings.Contains(raw, separator) {
		parts := strings.Split(raw, separator)
		if len(parts) != 3 {
			return "", fmt.Errorf("%w: want block%stx%soutput, got %q", ErrInvalidFormat, separator, separator, raw)
		}

		block, err := strconv.ParseUint(parts[0], 10, 64)
		if err != nil {
			return "", fmt.Errorf("%w: block %q is not an integer", ErrInvalidFormat, parts[0])
		}
		tx, err := strconv.ParseUint(parts[1], 10, 64)
		if err != nil {
			return "", fmt.Errorf("%w: tx index %q is not an integer", ErrInvalidFormat, parts[1])
		}
		out, err := strconv.ParseUint(parts[2], 10, 64)
		if err != nil {
			return "", fmt.Errorf("%w: output index %q is not an integer", ErrInvalidFormat, parts[2])
		}

		return strconv.FormatUint(block<<40|tx<<16|out, 10), nil
	}

	if _, err := strconv.ParseUint(raw, 10, 64); err != nil {
		return "", fmt.Errorf("%w: %q is not a numeric id", ErrInvalidFormat, raw)
	}
	return raw, nil
}
