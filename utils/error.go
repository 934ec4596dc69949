package utils

import "errors"

var (
	ErrorRecordNotFound   = errors.New("record not found")
	ErrorBusinessRequired = errors.New("business id is required")
	ErrorLockBusy         = errors.New("resource is being modified, retry shortly")
	ErrorInvalidInput     = errors.New("invalid input")
)
