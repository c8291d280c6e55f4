package domain

import "errors"

// Domain errors - these are business logic errors that should be translated
// to appropriate HTTP status codes by the handler layer

var (
	// User errors
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user with this email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrInvalidSettings    = errors.New("invalid user settings")

	// Catalog errors
	ErrProblemNotFound   = errors.New("problem not found")
	ErrProblemURLMissing = errors.New("problem url is required")
	ErrInvalidDifficulty = errors.New("difficulty must be easy|medium|hard|unknown")

	// Review errors
	ErrInvalidGrade     = errors.New("grade must be an integer in 0..4")
	ErrInvalidTimeSpent = errors.New("time_spent_sec must be > 0")
	ErrInvalidReviewAt  = errors.New("reviewed_at must be RFC3339 or YYYY-MM-DDTHH:MM")
	ErrClockSkew        = errors.New("reviewed_at cannot be in the future")
	ErrInvalidSource    = errors.New("source must be web|library_add|manual")

	// Contest errors
	ErrInvalidDuration    = errors.New("duration_minutes must be between 10 and 300")
	ErrEmptyMix           = errors.New("difficulty_mix must request at least one problem")
	ErrInvalidMix         = errors.New("difficulty_mix counts must be >= 0 and total at most 20")
	ErrUnknownStrategy    = errors.New("strategy must be balanced|weakness|due-heavy")
	ErrNoEligibleProblems = errors.New("no eligible problems found (add problems first)")
	ErrContestNotFound    = errors.New("contest not found")
	ErrAlreadyStarted     = errors.New("contest already started")
	ErrNotStarted         = errors.New("contest has not been started")
	ErrAlreadyCompleted   = errors.New("contest already completed")
	ErrItemNotFound       = errors.New("problem not found in this contest")
	ErrAlreadyRecorded    = errors.New("result already recorded for this problem")

	// Storage errors. ErrStateNotFound is always handled by services;
	// ErrStaleState surfaces only once internal retries are exhausted.
	ErrStaleState    = errors.New("scheduling state changed concurrently")
	ErrStateNotFound = errors.New("problem is not tracked")

	// General errors
	ErrInternalServer = errors.New("internal server error")
	ErrBadRequest     = errors.New("bad request")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
)

// ErrorKind groups domain errors by how a caller should react to them.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindNotFound   ErrorKind = "not_found"
	KindConflict   ErrorKind = "conflict"
	KindExhausted  ErrorKind = "exhausted"
	KindAuth       ErrorKind = "auth"
	KindInternal   ErrorKind = "internal"
)

var kinds = map[error]ErrorKind{
	ErrInvalidGrade:       KindValidation,
	ErrInvalidTimeSpent:   KindValidation,
	ErrInvalidReviewAt:    KindValidation,
	ErrClockSkew:          KindValidation,
	ErrInvalidSource:      KindValidation,
	ErrInvalidDuration:    KindValidation,
	ErrEmptyMix:           KindValidation,
	ErrInvalidMix:         KindValidation,
	ErrUnknownStrategy:    KindValidation,
	ErrInvalidDifficulty:  KindValidation,
	ErrProblemURLMissing:  KindValidation,
	ErrInvalidSettings:    KindValidation,
	ErrBadRequest:         KindValidation,
	ErrProblemNotFound:    KindNotFound,
	ErrContestNotFound:    KindNotFound,
	ErrUserNotFound:       KindNotFound,
	ErrItemNotFound:       KindConflict,
	ErrAlreadyStarted:     KindConflict,
	ErrNotStarted:         KindConflict,
	ErrAlreadyCompleted:   KindConflict,
	ErrAlreadyRecorded:    KindConflict,
	ErrUserAlreadyExists:  KindConflict,
	ErrStaleState:         KindConflict,
	ErrNoEligibleProblems: KindExhausted,
	ErrInvalidCredentials: KindAuth,
	ErrInvalidToken:       KindAuth,
	ErrUnauthorized:       KindAuth,
	ErrForbidden:          KindAuth,
}

// KindOf reports the kind of the first domain sentinel found in err's chain.
func KindOf(err error) ErrorKind {
	for sentinel, kind := range kinds {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return KindInternal
}

// DomainError wraps an error with additional context
type DomainError struct {
	Err     error
	Message string
	Code    string
}

func (e *DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError with the given error and message
func NewDomainError(err error, message string) *DomainError {
	return &DomainError{
		Err:     err,
		Message: message,
	}
}

// WrapError wraps an error with additional context
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return &DomainError{
		Err:     err,
		Message: message,
	}
}
