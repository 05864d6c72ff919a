package errors

import "strings"

// ErrorCode is a string representation of a specific error condition.
// Codes are "<MODULE>_<NNN>".
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common Error Codes
const (
	ErrCodeInternal        ErrorCode = "COMMON_001"
	ErrCodeNotFound        ErrorCode = "COMMON_005"
	ErrCodeValidation      ErrorCode = "COMMON_010"
	ErrCodeSerialization   ErrorCode = "COMMON_011"
	ErrCodeDatabaseError   ErrorCode = "COMMON_012"
	ErrCodeCacheError      ErrorCode = "COMMON_013"
	ErrCodeExternalService ErrorCode = "COMMON_014"
	ErrCodeIO              ErrorCode = "COMMON_017"
	ErrCodeConfig          ErrorCode = "COMMON_018"
	ErrCodeStorage         ErrorCode = "COMMON_019"

	CodeOK      ErrorCode = "OK"
	CodeUnknown ErrorCode = "UNKNOWN"
)

// Chemistry Error Codes
const (
	ErrCodeInvalidInChIKey  ErrorCode = "CHEM_001"
	ErrCodeCompoundNotFound ErrorCode = "CHEM_002"
	ErrCodeGroupNotFound    ErrorCode = "CHEM_003"
	ErrCodeInvalidNetwork   ErrorCode = "CHEM_004"
	ErrCodeStructureFailure ErrorCode = "CHEM_005"
)

// Homology Search Error Codes
const (
	ErrCodeExternalTool      ErrorCode = "HOM_001"
	ErrCodeSequenceNotFound  ErrorCode = "HOM_002"
	ErrCodeDuplicateSequence ErrorCode = "HOM_003"
	ErrCodeEmptyGenome       ErrorCode = "HOM_004"
	ErrCodeMalformedHit      ErrorCode = "HOM_005"
)

// Scoring Error Codes
const (
	ErrCodeNumericPrecondition ErrorCode = "SCORE_001"
	ErrCodeShapeMismatch       ErrorCode = "SCORE_002"
)

// Table Error Codes
const (
	ErrCodeMissingColumn   ErrorCode = "TABLE_001"
	ErrCodeAmbiguousColumn ErrorCode = "TABLE_002"
	ErrCodeMalformedRow    ErrorCode = "TABLE_003"
)

// ModuleForCode returns the module prefix of a code ("CHEM", "HOM", ...).
func ModuleForCode(code ErrorCode) string {
	s := string(code)
	if i := strings.IndexByte(s, '_'); i > 0 {
		return s[:i]
	}
	return s
}

// IsFatal reports whether a failure with the given code aborts a run.
// Lookup misses degrade to an empty result instead.
func IsFatal(code ErrorCode) bool {
	switch code {
	case CodeOK, ErrCodeNotFound, ErrCodeCompoundNotFound, ErrCodeGroupNotFound, ErrCodeSequenceNotFound:
		return false
	}
	return true
}
