package gateway

import (
	"fmt"
	"strings"
)

const (
	// HardRowCeiling bounds the rows any statement may return, whatever the caller asks for.
	HardRowCeiling = 5000
	// DefaultAdHocMaxRows applies when an ad-hoc request does not ask for a positive row count.
	DefaultAdHocMaxRows = 500
	// DefaultQueryLimit applies when a fixed query does not ask for a positive row count.
	DefaultQueryLimit = 1000

	statementTerminator = ";"
	limitKeyword        = "limit"
	limitWrapTemplate   = "SELECT * FROM (%s) _q LIMIT %d"

	emptyStatementMessage = "Query cannot be empty."
)

var forbiddenStatementTypes = map[string]struct{}{
	"insert":   {},
	"update":   {},
	"delete":   {},
	"drop":     {},
	"create":   {},
	"alter":    {},
	"truncate": {},
	"merge":    {},
}

// Statement is SQL text plus the most rows the caller wants back.
type Statement struct {
	Text    string
	MaxRows int
}

// SafeStatement is a Statement that passed Sanitize.
type SafeStatement struct {
	Statement
	// Wrapped is set when a row-limiting clause was added around the original text.
	Wrapped bool
}

// EffectiveRowCap returns min(requested, HardRowCeiling), using fallback for non-positive requests.
func EffectiveRowCap(requested int, fallback int) int {
	if requested <= 0 {
		requested = fallback
	}
	if requested > HardRowCeiling {
		return HardRowCeiling
	}
	return requested
}

// Sanitize validates an ad-hoc statement and bounds its result size.
//
// The checks are syntactic: only the first token is inspected, so writes hidden behind
// comments, CTEs or multi-statement batches get through, and any "limit" substring
// anywhere in the text disables wrapping, even when the caller's own limit exceeds
// HardRowCeiling. Execution still stops reading at the effective cap.
func Sanitize(rawText string, requestedCap int) (SafeStatement, error) {
	text := strings.TrimSpace(rawText)
	text = strings.TrimSpace(strings.TrimSuffix(text, statementTerminator))
	if text == "" {
		return SafeStatement{}, newError(KindRejectedStatement, ErrEmptyStatement, emptyStatementMessage)
	}

	statementType := strings.ToLower(strings.Fields(text)[0])
	if _, forbidden := forbiddenStatementTypes[statementType]; forbidden {
		return SafeStatement{}, newError(KindRejectedStatement, ErrForbiddenStatementType,
			"Statement type '%s' is not allowed.", statementType)
	}

	rowCap := EffectiveRowCap(requestedCap, DefaultAdHocMaxRows)
	if strings.Contains(strings.ToLower(text), limitKeyword) {
		return SafeStatement{Statement: Statement{Text: text, MaxRows: rowCap}}, nil
	}
	return SafeStatement{
		Statement: Statement{Text: fmt.Sprintf(limitWrapTemplate, text, rowCap), MaxRows: rowCap},
		Wrapped:   true,
	}, nil
}
