package sift

import "errors"

// Sentinel errors of the sift package. Detector and Matcher wrap failures
// with fmt.Errorf("sift: <action>: %w", err) at the point of failure.
//
// ErrPipelineCreate, ErrResourceAlloc, ErrReadbackFailed and
// ErrReadbackTimeout are declared for those failure kinds, but no Detector
// or Matcher method returns them: pipeline, allocation and readback
// failures are returned wrapping the underlying internal error (for
// readback, the internal device-lost or readback-timeout error), so
// errors.Is against these four values does not match them.
var (
	// ErrDeviceUnavailable is returned when no GPU adapter/device could be
	// acquired at construction time.
	ErrDeviceUnavailable = errors.New("sift: device unavailable")

	// ErrPipelineCreate names a shader module or compute pipeline that
	// fails to compile or create. Not returned; see above.
	ErrPipelineCreate = errors.New("sift: pipeline creation failed")

	// ErrResourceAlloc names a buffer or texture allocation that fails
	// during a Detect or Match call. Not returned; see above.
	ErrResourceAlloc = errors.New("sift: resource allocation failed")

	// ErrReadbackFailed names a host readback that fails or a device lost
	// while a call is in flight. Not returned; see above.
	ErrReadbackFailed = errors.New("sift: readback failed")

	// ErrReadbackTimeout names a caller's context that expires before a
	// pending readback completes. Not returned; see above.
	ErrReadbackTimeout = errors.New("sift: readback timed out")

	// ErrInvalidDescriptorLength is returned by the matcher when an input
	// descriptor slice length is not a multiple of 128 floats.
	ErrInvalidDescriptorLength = errors.New("sift: descriptor slice length is not a multiple of 128")

	// ErrDebugHistogramsDisabled is returned by ReadbackDebugHistograms
	// when the detector was constructed with Options.DebugHistograms set
	// to false.
	ErrDebugHistogramsDisabled = errors.New("sift: debug histograms were not enabled for this detector")

	// ErrDetectInProgress is returned when Detect is called while a
	// previous call on the same Detector has not yet returned.
	ErrDetectInProgress = errors.New("sift: a detect call is already in progress on this detector")

	// ErrMatchInProgress is the Matcher analogue of ErrDetectInProgress.
	ErrMatchInProgress = errors.New("sift: a match call is already in progress on this matcher")
)
