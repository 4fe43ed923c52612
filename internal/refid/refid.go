// Package refid parses composite finding reference identifiers.
//
// Splunk ES identifies a finding by a composite reference ID of the form
//
//	<uuid>@@notable@@time<epoch_seconds>
//
// The embedded epoch lets callers derive a time filter for lookups without
// supplying one explicitly.
package refid

import (
	"strconv"
	"strings"

	"esctl/internal/errors"
)

// Separator is the literal marker between the UUID and the embedded time.
const Separator = "@@notable@@time"

// Ref is a decomposed reference identifier.
type Ref struct {
	// UUID is the leading segment. It is passed through as an opaque
	// string and not validated against RFC 4122.
	UUID string

	// Epoch is the embedded notable time in seconds.
	Epoch int64
}

// NotableTime returns the embedded epoch formatted for API query parameters.
func (r Ref) NotableTime() string {
	return strconv.FormatInt(r.Epoch, 10)
}

// String reassembles the composite reference ID.
func (r Ref) String() string {
	return r.UUID + Separator + r.NotableTime()
}

// Decompose parses a composite reference ID into its UUID and embedded
// timestamp. Malformed input (missing marker, empty or non-numeric time
// suffix) returns a MalformedReferenceID error; no partial result is
// produced.
func Decompose(refID string) (Ref, error) {
	uuid, suffix, found := strings.Cut(refID, Separator)
	if !found || suffix == "" {
		return Ref{}, errors.NewMalformedReferenceIDError(refID)
	}

	epoch, err := strconv.ParseInt(suffix, 10, 64)
	if err != nil || epoch < 0 {
		return Ref{}, errors.NewMalformedReferenceIDError(refID)
	}

	return Ref{UUID: uuid, Epoch: epoch}, nil
}

// NotableTime extracts only the embedded epoch from a reference ID.
func NotableTime(refID string) (string, error) {
	ref, err := Decompose(refID)
	if err != nil {
		return "", err
	}
	return ref.NotableTime(), nil
}
