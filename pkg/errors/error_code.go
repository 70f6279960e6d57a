package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199). The caller's fault: a run or order that
	// fails validation never starts executing.
	ErrCodeInvalidConfiguration ErrorCode = 100
	ErrCodeInvalidOrder         ErrorCode = 101
	ErrCodeInvalidQuantity      ErrorCode = 102
	ErrCodeInvalidPrice         ErrorCode = 103
	ErrCodeInvalidRiskParams    ErrorCode = 104
	ErrCodeInvalidStrategy      ErrorCode = 105
	ErrCodeInvalidInterval      ErrorCode = 106
	ErrCodeInvalidTimeWindow    ErrorCode = 107

	// Data errors (200-299)
	ErrCodeDataNotFound          ErrorCode = 200
	ErrCodeDataSourceUnavailable ErrorCode = 201
	ErrCodeQueryFailed           ErrorCode = 202
	ErrCodeDataGap               ErrorCode = 203
	ErrCodeDataOutOfOrder        ErrorCode = 204

	// Risk errors (300-399)
	ErrCodeRiskBlocked ErrorCode = 300

	// Execution errors (400-499). Execution faults indicate an internal
	// inconsistency and are fatal for the run.
	ErrCodeExecutionFault     ErrorCode = 400
	ErrCodeDuplicateTrade     ErrorCode = 401
	ErrCodeOrderAlreadyFilled ErrorCode = 402
	ErrCodeLedgerInconsistent ErrorCode = 403

	// Session errors (500-599)
	ErrCodeSessionNotFound       ErrorCode = 500
	ErrCodeSessionNotRunning     ErrorCode = 501
	ErrCodeSessionAlreadyStopped ErrorCode = 502
	ErrCodeUpstreamDisconnected  ErrorCode = 503

	// Persistence errors (600-699)
	ErrCodeResultNotFound   ErrorCode = 600
	ErrCodeStoreUnavailable ErrorCode = 601
	ErrCodeStoreWriteFailed ErrorCode = 602
)
