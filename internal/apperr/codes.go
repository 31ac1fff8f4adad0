package apperr

type Code string

const (
	CodeInternal            Code = "INTERNAL"
	CodeValidation          Code = "VALIDATION_ERROR"
	CodeInvalidParticipants Code = "INVALID_PARTICIPANTS"
	CodeNotFound            Code = "NOT_FOUND"
	CodeForbidden           Code = "FORBIDDEN"
	CodeUnauthenticated     Code = "UNAUTHENTICATED"
	CodeConflictRetried     Code = "CONFLICT_RETRIED"
	CodeTransientStore      Code = "TRANSIENT_STORE_ERROR"
	CodeUnavailable         Code = "UNAVAILABLE"
	CodeRateLimited         Code = "RATE_LIMITED"
	CodeDeadlineExceeded    Code = "DEADLINE_EXCEEDED"
)
