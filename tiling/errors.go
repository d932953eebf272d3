package tiling

import (
	"errors"
	"fmt"
)

var (
	ErrConfig          = errors.New("invalid config")
	ErrSourceOpen      = errors.New("source missing or unreadable")
	ErrSidecarParse    = errors.New("malformed sidecar record")
	ErrSidecarMismatch = errors.New("sidecar does not match tiles")
	ErrOverlapTile     = fmt.Errorf("%w: overlap tiles can not be merged", ErrConfig)
)
