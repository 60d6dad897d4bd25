package memory

import "errors"

var (
	errDuplicateSampleID  = errors.New("sample id already exists")
	errDuplicateSessionID = errors.New("session id already exists")
)
