package types

import (
	"errors"
	"fmt"

	goerrors "github.com/go-errors/errors"
)

// Kind classifies an engine-level error into the taxonomy the lifecycle
// engine and orchestrator use to decide whether a failure is retryable.
type Kind int

const (
	// KindUnspecified is the zero value; never constructed deliberately.
	KindUnspecified Kind = iota

	// KindInvalidInput covers malformed caller-supplied data: non-positive
	// amounts, missing destination addresses, bad invoice encodings,
	// wrong-length x-only keys.
	KindInvalidInput

	// KindAdversary covers a counterparty or server behaving dishonestly:
	// a VHTLC address mismatch, an invalid partial signature, an invalid
	// server signature on a finalized transaction.
	KindAdversary

	// KindProtocol covers unexpected shapes in a response: wrong checkpoint
	// count, missing required fields, an unrecognized status transition.
	KindProtocol

	// KindNoVtxo covers a VTXO that should exist but does not, or is
	// already spent.
	KindNoVtxo

	// KindNetwork covers provider/server HTTP or WebSocket transport
	// failures.
	KindNetwork

	// KindStorage covers repository backend failures.
	KindStorage

	// KindTerminal covers a counterparty-declared terminal failure status
	// (invoice expired, swap expired, transaction failed/refunded, invoice
	// failed to pay).
	KindTerminal

	// KindState covers operations invoked against a swap that is missing
	// or not in an actionable status.
	KindState
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindAdversary:
		return "adversary"
	case KindProtocol:
		return "protocol"
	case KindNoVtxo:
		return "no_vtxo"
	case KindNetwork:
		return "network"
	case KindStorage:
		return "storage"
	case KindTerminal:
		return "terminal"
	case KindState:
		return "state"
	default:
		return "unspecified"
	}
}

// Error is the wrapper type every core package returns for classified
// failures. Callers use errors.As to recover the Kind without caring which
// package raised it.
type Error struct {
	kind Kind
	err  error
}

// NewError wraps err with the given Kind. For KindAdversary and KindProtocol
// errors, err is upgraded to a github.com/go-errors/errors value so a stack
// trace travels with the failure into logs, matching the severity the spec
// assigns to these (§7: "hard error, never recoverable").
func NewError(kind Kind, err error) *Error {
	if err == nil {
		return nil
	}
	switch kind {
	case KindAdversary, KindProtocol:
		if _, ok := err.(*goerrors.Error); !ok {
			err = goerrors.Wrap(err, 1)
		}
	}
	return &Error{kind: kind, err: err}
}

// Errorf builds a classified error with a formatted message.
func Errorf(kind Kind, format string, args ...interface{}) *Error {
	return NewError(kind, fmt.Errorf(format, args...))
}

func (e *Error) Error() string {
	if e == nil || e.err == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.kind, e.err.Error())
}

// Unwrap allows errors.Is/errors.As to see through to the underlying cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// Kind returns the error's classification.
func (e *Error) Kind() Kind {
	if e == nil {
		return KindUnspecified
	}
	return e.kind
}

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind() == kind
	}
	return false
}

// TerminalKind enumerates the counterparty-declared terminal failure
// reasons named in spec §3.1's Status enumeration and §7's KindTerminal.
type TerminalKind string

const (
	TerminalInvoiceExpired    TerminalKind = "InvoiceExpired"
	TerminalSwapExpired       TerminalKind = "SwapExpired"
	TerminalTransactionFailed TerminalKind = "TransactionFailed"
	TerminalTransactionRefund TerminalKind = "TransactionRefunded"
	TerminalInvoiceFailedPay  TerminalKind = "InvoiceFailedToPay"
)
