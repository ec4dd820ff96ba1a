package utils

type AppError struct {
	Code    string
	Message string
	Origin  error // Original error that caused this error, if any
}

func (appErr *AppError) Error() string {
	if appErr.Origin != nil {
		return appErr.Message + ": " + appErr.Origin.Error()
	}
	return appErr.Message
}

// Standard error codes for the application
const (
	// Resource errors
	ErrNotFound     = "NOT_FOUND"
	ErrDuplicate    = "DUPLICATE"
	ErrInvalidInput = "INVALID_INPUT"

	// Authentication/Authorization errors
	ErrUnauthorized       = "UNAUTHORIZED"
	ErrForbidden          = "FORBIDDEN" // Authenticated but not allowed to touch this resource
	ErrInvalidToken       = "INVALID_TOKEN"
	ErrInvalidCredentials = "INVALID_CREDENTIALS"

	// Graph consistency errors
	ErrSelfReference    = "SELF_REFERENCE"
	ErrAlreadyFollowing = "ALREADY_FOLLOWING"
	ErrNotFollowing     = "NOT_FOLLOWING"
	ErrAlreadyLiked     = "ALREADY_LIKED"
	ErrNotLiked         = "NOT_LIKED"
	ErrAlreadySaved     = "ALREADY_SAVED"
	ErrNotSaved         = "NOT_SAVED"

	// Actor communication errors
	ErrActorTimeout = "ACTOR_TIMEOUT"

	// External collaborators
	ErrUpstream = "UPSTREAM_ERROR"
	ErrDatabase = "DATABASE_ERROR"
)

func NewAppError(code string, message string, originalErr error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Origin:  originalErr,
	}
}

// Helper method to check if an error is of a specific type
func IsErrorCode(err error, code string) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code == code
	}
	return false
}

// AppErrorToHTTPStatus converts an AppError code to an HTTP status code.
func AppErrorToHTTPStatus(errorCode string) int {
	switch errorCode {
	case ErrNotFound:
		return 404 // http.StatusNotFound
	case ErrInvalidInput, ErrSelfReference:
		return 400 // http.StatusBadRequest
	case ErrUnauthorized, ErrInvalidToken, ErrInvalidCredentials:
		return 401 // http.StatusUnauthorized
	case ErrForbidden:
		return 403 // http.StatusForbidden
	case ErrDuplicate, ErrAlreadyFollowing, ErrNotFollowing,
		ErrAlreadyLiked, ErrNotLiked, ErrAlreadySaved, ErrNotSaved:
		return 409 // http.StatusConflict
	case ErrDatabase, ErrUpstream, ErrActorTimeout:
		return 500 // http.StatusInternalServerError
	default:
		return 500 // http.StatusInternalServerError for unknown errors
	}
}
