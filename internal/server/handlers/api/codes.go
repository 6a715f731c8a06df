package api

const (
	// Generic request/server errors
	CodeInvalidRequest = "E_INVALID_REQUEST" // bad or invalid request
	CodeRateLimited    = "E_RATE_LIMITED"    // rate limit exceeded
	CodeInternalError  = "E_INTERNAL_ERROR"  // internal server error
	CodeNotFound       = "E_NOT_FOUND"       // route or resource does not exist
	CodeNotAllowed     = "E_METHOD_NOT_ALLOWED"

	// Sync errors
	CodeSyncUnsupportedMedia = "E_SYNC_UNSUPPORTED_MEDIA" // request body is neither json nor msgpack
	CodeSyncUnknownUpload    = "E_SYNC_UNKNOWN_UPLOAD"    // completion for an upload that was never planned or has expired
	CodeSyncFailed           = "E_SYNC_FAILED"            // the sync service failed outside of a plan
)
