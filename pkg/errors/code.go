package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 20000-20999: Configuration & Filesystem errors
// 21000-21999: Sandbox & Container errors
// 22000-22999: Watchdog protocol errors
// 23000-23999: Judge pipeline & Scheduler errors

const (
	// ========== System & Common Errors (10000-10999) ==========

	// Success
	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalError  ErrorCode = 10001
	InvalidParams  ErrorCode = 10002
	NotFound       ErrorCode = 10003
	Timeout        ErrorCode = 10004
	Canceled       ErrorCode = 10005
	QueueFull      ErrorCode = 10006
	ShuttingDown   ErrorCode = 10007
	NotImplemented ErrorCode = 10008

	// Database errors (10100-10199)
	DatabaseError     ErrorCode = 10100
	RecordNotFound    ErrorCode = 10101
	TransactionFailed ErrorCode = 10102
	ClaimFailed       ErrorCode = 10103
	RecoveryFailed    ErrorCode = 10104

	// Cache errors (10200-10299)
	CacheError     ErrorCode = 10200
	CacheMiss      ErrorCode = 10201
	CacheSetFailed ErrorCode = 10202

	// Validation errors (10300-10399)
	ValidationFailed   ErrorCode = 10300
	InvalidFormat      ErrorCode = 10301
	InvalidValue       ErrorCode = 10302
	RequiredFieldEmpty ErrorCode = 10303

	// ========== Configuration & Filesystem Errors (20000-20999) ==========

	ConfigInvalid       ErrorCode = 20000
	ResourceFileMissing ErrorCode = 20100
	UploadDirMissing    ErrorCode = 20101
	FileReadFailed      ErrorCode = 20102

	// ========== Sandbox & Container Errors (21000-21999) ==========

	SandboxUnavailable    ErrorCode = 21000
	VolumeCreateFailed    ErrorCode = 21001
	VolumeRemoveFailed    ErrorCode = 21002
	ContainerCreateFailed ErrorCode = 21100
	ContainerStartFailed  ErrorCode = 21101
	ContainerRemoveFailed ErrorCode = 21102
	UploadFailed          ErrorCode = 21200
	DownloadFailed        ErrorCode = 21201
	ExecFailed            ErrorCode = 21300
	ExecTimedOut          ErrorCode = 21301

	// ========== Watchdog Protocol Errors (22000-22999) ==========

	WatchdogFailed        ErrorCode = 22000
	WatchdogReportInvalid ErrorCode = 22001
	TaskStagingFailed     ErrorCode = 22100

	// ========== Judge Pipeline & Scheduler Errors (23000-23999) ==========

	ProblemNotFound      ErrorCode = 23000
	TestCaseLoadFailed   ErrorCode = 23001
	SubmissionNotFound   ErrorCode = 23100
	FinalizeFailed       ErrorCode = 23101
	ProgressUpdateFailed ErrorCode = 23102
	RollupFailed         ErrorCode = 23103
	WorkerPoolStopped    ErrorCode = 23200
)

// errorMessages maps error codes to their default English messages
var errorMessages = map[ErrorCode]string{
	// System & Common
	Success:        "Success",
	InternalError:  "Internal error",
	InvalidParams:  "Invalid parameters",
	NotFound:       "Resource not found",
	Timeout:        "Operation timed out",
	Canceled:       "Operation canceled",
	QueueFull:      "Job queue is full",
	ShuttingDown:   "Service is shutting down",
	NotImplemented: "Not implemented",

	// Database
	DatabaseError:     "Database operation failed",
	RecordNotFound:    "Record not found in database",
	TransactionFailed: "Database transaction failed",
	ClaimFailed:       "Failed to claim queued submissions",
	RecoveryFailed:    "Failed to recover running submissions",

	// Cache
	CacheError:     "Cache operation failed",
	CacheMiss:      "Cache miss",
	CacheSetFailed: "Failed to set cache",

	// Validation
	ValidationFailed:   "Validation failed",
	InvalidFormat:      "Invalid format",
	InvalidValue:       "Invalid value",
	RequiredFieldEmpty: "Required field is empty",

	// Configuration & Filesystem
	ConfigInvalid:       "Invalid configuration",
	ResourceFileMissing: "Problem resource file is missing",
	UploadDirMissing:    "Submission upload directory is missing",
	FileReadFailed:      "Failed to read file",

	// Sandbox & Container
	SandboxUnavailable:    "Container runtime is unavailable",
	VolumeCreateFailed:    "Failed to create scratch volume",
	VolumeRemoveFailed:    "Failed to remove scratch volume",
	ContainerCreateFailed: "Failed to create sandbox container",
	ContainerStartFailed:  "Failed to start sandbox container",
	ContainerRemoveFailed: "Failed to remove sandbox container",
	UploadFailed:          "Failed to upload files into sandbox",
	DownloadFailed:        "Failed to download files from sandbox",
	ExecFailed:            "Failed to execute command in sandbox",
	ExecTimedOut:          "Command execution timed out",

	// Watchdog
	WatchdogFailed:        "Watchdog terminated abnormally",
	WatchdogReportInvalid: "Watchdog report failed schema validation",
	TaskStagingFailed:     "Failed to stage task file in sandbox",

	// Judge Pipeline & Scheduler
	ProblemNotFound:      "Problem not found",
	TestCaseLoadFailed:   "Failed to load test cases",
	SubmissionNotFound:   "Submission not found",
	FinalizeFailed:       "Failed to finalize submission",
	ProgressUpdateFailed: "Failed to update submission progress",
	RollupFailed:         "Failed to roll up batch evaluation status",
	WorkerPoolStopped:    "Worker pool has been stopped",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// HTTPStatus returns the recommended HTTP status code for the error code
func (c ErrorCode) HTTPStatus() int {
	switch {
	case c == Success:
		return 200
	case c == NotFound, c == RecordNotFound, c == ProblemNotFound, c == SubmissionNotFound:
		return 404
	case c == InvalidParams, c >= 10300 && c < 10400:
		return 400
	case c == QueueFull:
		return 429
	case c == ShuttingDown, c == SandboxUnavailable:
		return 503
	default:
		return 500
	}
}
