package gpu

import "errors"

// Package-level sentinel errors. The sift package wraps these with %w and
// its own call context; it does not translate them into its own exported
// sentinels.
var (
	ErrReadbackTimeout = errors.New("gpu: readback timed out waiting for map completion")
	ErrDeviceLost      = errors.New("gpu: device lost during readback")
)
