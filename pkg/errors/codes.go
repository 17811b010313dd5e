package errors

import "strings"

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common Error Codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeDatabaseError      ErrorCode = "COMMON_012"
	ErrCodeCacheError         ErrorCode = "COMMON_013"
	ErrCodeExternalService    ErrorCode = "COMMON_014"
	ErrCodeNotImplemented     ErrorCode = "COMMON_016"
)

// Short aliases.
const (
	CodeUnknown        = ErrorCode("UNKNOWN")
	CodeOK             = ErrorCode("OK")
	CodeInternal       = ErrCodeInternal
	CodeInvalidParam   = ErrCodeBadRequest
	CodeNotFound       = ErrCodeNotFound
	CodeConflict       = ErrCodeConflict
	CodeNotImplemented = ErrCodeNotImplemented
)

// Pattern Library Error Codes
const (
	CodePatternLibraryInvalid ErrorCode = "PAT_001"
	CodePatternFileUnreadable ErrorCode = "PAT_002"
	CodeUnknownContext        ErrorCode = "PAT_003"
)

// Profile Error Codes
const (
	CodeProfileNotFound     ErrorCode = "PRF_001"
	CodeInvalidAction       ErrorCode = "PRF_002"
	CodeProfilePersistFail  ErrorCode = "PRF_003"
	CodeProfileDecodeFailed ErrorCode = "PRF_004"
)

// Corpus Error Codes
const (
	CodeDocumentNotFound    ErrorCode = "CRP_001"
	CodeDocumentUnparseable ErrorCode = "CRP_002"
	CodeCorpusUnavailable   ErrorCode = "CRP_003"
	CodeAnalysisInProgress  ErrorCode = "CRP_004"
)

// Capability Error Codes
const (
	CodeEmbeddingUnavailable ErrorCode = "CAP_001"
	CodeEmbeddingFailed      ErrorCode = "CAP_002"
)

// Store Error Codes
const (
	CodeStoreError       ErrorCode = "STO_001"
	CodeMigrationFailed  ErrorCode = "STO_002"
	CodeMessagingFailure ErrorCode = "STO_003"
)

// ModuleForCode returns the module prefix of a code ("COMMON", "PRF", ...),
// used as a metrics label.
func ModuleForCode(code ErrorCode) string {
	s := string(code)
	if i := strings.Index(s, "_"); i > 0 {
		return s[:i]
	}
	return s
}

// IsClientError reports whether code describes a caller mistake rather than a
// system failure.
func IsClientError(code ErrorCode) bool {
	switch code {
	case ErrCodeBadRequest, ErrCodeNotFound, ErrCodeValidation, ErrCodeConflict,
		CodeInvalidAction, CodeUnknownContext, CodeProfileNotFound, CodeDocumentNotFound:
		return true
	}
	return false
}
