package core

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrAmbiguous         = errors.New("ambiguous display name")
	ErrDuplicateName     = errors.New("display name already in use")
	ErrNoIdentity        = errors.New("no logged-in identity found")
	ErrUnknownPlatform   = errors.New("unknown platform")
	ErrDirectoryNotFound = errors.New("archive directory not found")
	ErrInvalidName       = errors.New("invalid display name")

	// ErrStopTimeout means a platform process survived the stop deadline.
	// The swap is aborted before any live file is touched.
	ErrStopTimeout = errors.New("process did not exit in time")

	// ErrStopPermission means the target process runs elevated and this
	// process does not; the caller must restart elevated.
	ErrStopPermission = errors.New("insufficient rights to stop process, restart elevated")

	ErrFileLocked      = errors.New("file is locked by another process")
	ErrCorruptSettings = errors.New("settings file is corrupt")
	ErrLaunchCancelled = errors.New("launch cancelled by user")
)
