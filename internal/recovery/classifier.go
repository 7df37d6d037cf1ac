package recovery

import (
	"strings"

	"github.com/harborline/payguard/internal/core/domain"
)

// Classify maps a raw provider error descriptor to exactly one failure
// category. It is pure and total: any input, including a nil descriptor,
// resolves to a category and never to an error.
//
// Order matters. The message-substring checks only apply under the generic
// card_declined code, because providers reuse that code for several distinct
// decline reasons and disambiguate in the message text.
func Classify(chargeErr *domain.ChargeError) domain.FailureCategory {
	if chargeErr == nil {
		return domain.CategoryUnknown
	}

	msg := strings.ToLower(chargeErr.Message)

	switch {
	case chargeErr.Code == "card_declined":
		switch {
		case strings.Contains(msg, "insufficient"):
			return domain.CategoryInsufficientFunds
		case strings.Contains(msg, "expired"):
			return domain.CategoryExpiredCard
		case strings.Contains(msg, "cvc"), strings.Contains(msg, "security"):
			return domain.CategoryIncorrectCVC
		default:
			return domain.CategoryCardDeclined
		}

	case chargeErr.Code == "authentication_required" || chargeErr.Type == "authentication_error":
		return domain.CategoryAuthenticationRequired

	case chargeErr.Code == "fraudulent" || strings.Contains(msg, "fraud"):
		return domain.CategoryFraudSuspected

	case isConnectionErrorType(chargeErr.Type):
		return domain.CategoryNetworkError

	case chargeErr.Type == "card_error":
		return domain.CategoryProcessingError

	default:
		return domain.CategoryUnknown
	}
}

// isConnectionErrorType reports whether the provider error type denotes an
// API-level or connection failure rather than a card outcome.
func isConnectionErrorType(t string) bool {
	switch t {
	case "api_error", "api_connection_error", "connection_error", "timeout_error":
		return true
	}
	return false
}
