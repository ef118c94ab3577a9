package svc

import "errors"

// ErrUnknownStreamProvider is returned when stream.provider has no registered factory.
var ErrUnknownStreamProvider = errors.New("stream provider not registered")

// ErrStorageInitFailed is returned when a configured store cannot be opened.
var ErrStorageInitFailed = errors.New("storage initialization failed")
