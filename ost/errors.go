// Package ost holds the soundtrack catalog: mood categories, the tracks filed
// under them and the flat text format the catalog is saved in.
package ost

import "github.com/cockroachdb/errors"

// Error kinds surfaced to the command layer. Match with errors.Is.
var (
	ErrInvalidCategory = errors.New("invalid category")
	ErrInvalidTrack    = errors.New("invalid track")
	ErrResolution      = errors.New("could not resolve track")
)
