package manifest

import "errors"

// Sentinel errors for manifest parsing.
var (
	// ErrManifestNotFound reports that the path given to ParseFile does not
	// exist.
	ErrManifestNotFound = errors.New("manifest not found")

	// ErrInvalidManifest reports a manifest whose package model cannot be
	// resolved, most importantly one without a resolvable package name.
	ErrInvalidManifest = errors.New("invalid manifest")

	// ErrUnknownBackend reports a Backend value other than auto, syntax or
	// lexical.
	ErrUnknownBackend = errors.New("unknown parser backend")

	errParserPool = errors.New("manifest: parser pool returned unexpected type")
)
