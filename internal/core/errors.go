package core

import "errors"

var (
	errAlreadyInitialized = errors.New("core: kernel already initialized")
	errNilEntry           = errors.New("core: task entry function is nil")
)
