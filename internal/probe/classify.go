package probe

import "strings"

// Status is the coarse outcome of a single SMTP session.
type Status string

const (
	StatusValid            Status = "Valid"
	StatusUserNotFound     Status = "UserNotFound"
	StatusTemporaryFailure Status = "TemporaryFailure"
	StatusUnknownFailure   Status = "UnknownFailure"
	StatusBlacklisted      Status = "Blacklisted"
)

// Diagnostic tags derived from the RCPT reply. These are finer-grained
// than Status and drive the category reported to callers.
const (
	TagAccepted            = "Accepted"
	TagForwarded           = "Forwarded"
	TagCannotVerify        = "CannotVerify"
	TagServiceUnavailable  = "ServiceUnavailable"
	TagMailboxBusy         = "MailboxBusy"
	TagLocalError          = "LocalError"
	TagInsufficientStorage = "InsufficientStorage"
	TagUserNotFound        = "UserNotFound"
	TagBlocked             = "Blocked"
	TagBlockedBySpamhaus   = "BlockedBySpamhaus"
	TagBlockedByBlacklist  = "BlockedByBlacklist"
	TagUserNotLocal        = "UserNotLocal"
	TagStorageExceeded     = "StorageExceeded"
	TagMailboxNameInvalid  = "MailboxNameInvalid"
	TagRejected            = "Rejected"
	TagRelayDenied         = "RelayDenied"
	TagAccessDenied        = "AccessDenied"
	TagGreylisted          = "Greylisted"
	TagUnclassified        = "Unclassified"

	// Tags for failures that never produced an RCPT reply.
	TagTimeout             = "Timeout"
	TagConnectFailed       = "ConnectFailed"
	TagDNSResolutionFailed = "DNSResolutionFailed"
	TagTLSHandshakeFailed  = "TLSHandshakeFailed"
	TagCanceled            = "Canceled"
	TagAllPortsFailed      = "AllPortsFailed"
)

// Classify maps an RCPT reply to a status and diagnostic tag. The
// enhanced status code takes precedence over the numeric code, which in
// turn takes precedence over reply-text heuristics.
func Classify(code int, enhanced, text string) (Status, string) {
	return classifyStatus(code, enhanced, text), diagnosticTag(code, text)
}

func classifyStatus(code int, enhanced, text string) Status {
	switch enhanced {
	case "5.1.1", "5.1.0":
		return StatusUserNotFound
	case "4.2.1", "4.3.0", "4.4.7":
		return StatusTemporaryFailure
	case "5.7.1":
		return StatusBlacklisted
	}

	lower := strings.ToLower(text)
	switch {
	case code >= 250 && code <= 259:
		// 252 lands here too: the server accepted the recipient even
		// though it declined to verify the mailbox.
		return StatusValid
	case code >= 400 && code < 500:
		return StatusTemporaryFailure
	case code == 550,
		strings.Contains(lower, "user unknown"),
		strings.Contains(lower, "user not found"),
		strings.Contains(lower, "no such user"),
		strings.Contains(lower, "recipient address rejected"):
		return StatusUserNotFound
	case strings.Contains(lower, "blacklist"),
		strings.Contains(lower, "spamhaus"),
		strings.Contains(lower, "blocked"):
		return StatusBlacklisted
	case code >= 500 && code < 600:
		return StatusUnknownFailure
	default:
		return StatusUnknownFailure
	}
}

func diagnosticTag(code int, text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "relay access denied"):
		return TagRelayDenied
	case strings.Contains(lower, "not permitted"):
		return TagAccessDenied
	case strings.Contains(lower, "greylist"):
		return TagGreylisted
	}

	switch code {
	case 250:
		return TagAccepted
	case 251:
		return TagForwarded
	case 252:
		return TagCannotVerify
	case 421:
		return TagServiceUnavailable
	case 450:
		return TagMailboxBusy
	case 451:
		return TagLocalError
	case 452:
		return TagInsufficientStorage
	case 550:
		switch {
		case strings.Contains(lower, "spamhaus"):
			return TagBlockedBySpamhaus
		case strings.Contains(lower, "blacklist"):
			return TagBlockedByBlacklist
		case strings.Contains(lower, "blocked"):
			return TagBlocked
		default:
			return TagUserNotFound
		}
	case 551:
		return TagUserNotLocal
	case 552:
		return TagStorageExceeded
	case 553:
		return TagMailboxNameInvalid
	case 554:
		return TagRejected
	default:
		return TagUnclassified
	}
}
