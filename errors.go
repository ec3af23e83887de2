package fileserver

import "github.com/jonmmease/jons-mcp-file-server/internal/errs"

// Error predicates, re-exported so callers can classify failures without
// importing internal packages.

// IsNotFound reports an absent result: a missing source file at registration
// time, or a token that is unknown, expired, not yet uploaded, or already
// consumed.
func IsNotFound(err error) bool { return errs.IsNotFound(err) }

// IsPayloadTooLarge reports an upload that exceeded its registered limit.
func IsPayloadTooLarge(err error) bool { return errs.IsPayloadTooLarge(err) }

// IsConfiguration reports a backend selected without its required settings.
func IsConfiguration(err error) bool { return errs.IsConfiguration(err) }

// IsUnavailable reports a bind or connectivity failure.
func IsUnavailable(err error) bool { return errs.IsUnavailable(err) }

// IsTimeout reports a deadline or cancellation failure.
func IsTimeout(err error) bool { return errs.IsTimeout(err) }
