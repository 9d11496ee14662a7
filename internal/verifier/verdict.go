package verifier

import "time"

// Outward categories reported to callers.
const (
	CategoryValid               = "Valid"
	CategoryInvalid             = "Invalid"
	CategoryUnknown             = "Unknown"
	CategoryCatchAll            = "Catch-All"
	CategoryWhitelisted         = "Whitelisted"
	CategoryDisposable          = "Disposable"
	CategoryBlacklisted         = "Blacklisted"
	CategoryUserNotFound        = "UserNotFound"
	CategoryForwarded           = "Forwarded"
	CategoryCannotVerify        = "CannotVerify"
	CategoryMailboxBusy         = "MailboxBusy"
	CategoryLocalError          = "LocalError"
	CategoryInsufficientStorage = "InsufficientStorage"
	CategoryRelayDenied         = "RelayDenied"
	CategoryAccessDenied        = "AccessDenied"
	CategoryGreylisted          = "Greylisted"
	CategoryError               = "Error"
)

// TimestampLayout is the wire format of Verdict.Timestamp.
const TimestampLayout = "2006-01-02T15:04:05.000"

// Verdict is the result of verifying one address. The JSON field names
// are a stable contract; do not rename them.
type Verdict struct {
	Email                string   `json:"email"`
	Category             string   `json:"category"`
	DiagnosticTag        string   `json:"diagnosticTag"`
	SMTPCode             int      `json:"smtpCode"`
	Status               string   `json:"status"`
	Transcript           string   `json:"transcript"`
	MailHost             string   `json:"mailHost"`
	PortOpened           bool     `json:"portOpened"`
	ConnectionSuccessful bool     `json:"connectionSuccessful"`
	Errors               []string `json:"errors"`
	CatchAll             bool     `json:"catchAll"`
	Timestamp            string   `json:"timestamp"`
}

func newVerdict(email string) Verdict {
	return Verdict{
		Email:     email,
		Timestamp: time.Now().Format(TimestampLayout),
	}
}

// ErrorVerdict builds a Verdict for an address whose verification failed
// outright, such as a panic-level error inside a batch.
func ErrorVerdict(email string, err error) Verdict {
	v := newVerdict(email)
	v.Category = CategoryError
	if err != nil {
		v.Errors = []string{err.Error()}
	}
	return v
}
