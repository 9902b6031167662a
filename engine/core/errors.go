package core

import (
	"errors"
)

var (
	ErrNilDevice          = errors.New("device is nil")
	ErrNilDependency      = errors.New("required dependency is nil")
	ErrMalformedRecord    = errors.New("malformed resource record")
	ErrDependencyIndex    = errors.New("resource record references an unknown dependency index")
	ErrViewCountMismatch  = errors.New("old and new image view lists differ in length")
	ErrInvalidCacheFile   = errors.New("invalid warmup cache file")
	ErrCacheFileMismatch  = errors.New("warmup cache file was produced by a different application")
	ErrChecksumMismatch   = errors.New("warmup cache file checksum mismatch")
	ErrShaderNotFound     = errors.New("shader config not found")
	ErrUnknownShaderStage = errors.New("unknown shader stage")
	ErrUnknown            = errors.New("unknown")
)
