package common

const (
	ErrCodeBadRequestInvalidBody       = "bad_request.body.invalid"
	ErrCodeBadRequestKindMissing       = "bad_request.body.kind.missing"
	ErrCodeBadRequestPayloadTooLarge   = "bad_request.body.payload.exceeds_limit"
	ErrCodeBadRequestMaxRetriesInvalid = "bad_request.body.maxRetries.invalid"
	ErrCodeUnauthorized                = "unauthorized"
	ErrCodeNotFoundMessage             = "not_found.message"
	ErrCodeInternal                    = "internal"
)

var (
	ErrBadRequestKindMissing       = RetryqError{Code: ErrCodeBadRequestKindMissing}
	ErrBadRequestPayloadTooLarge   = RetryqError{Code: ErrCodeBadRequestPayloadTooLarge}
	ErrBadRequestMaxRetriesInvalid = RetryqError{Code: ErrCodeBadRequestMaxRetriesInvalid}
	ErrNotFoundMessage             = RetryqError{Code: ErrCodeNotFoundMessage}
	ErrInternal                    = RetryqError{Code: ErrCodeInternal}
)

type RetryqError struct {
	Code string
}

func (re RetryqError) Error() string {
	return re.Code
}
