package recovery

import (
	"math"
	"time"

	"github.com/harborline/payguard/internal/core/domain"
)

// RetryStrategy is the static policy record for one failure category.
// One instance per category, read-only at runtime.
type RetryStrategy struct {
	MaxRetries            int
	BaseDelay             time.Duration
	ExponentialBackoff    bool
	NotifyCustomer        bool
	RequireManualApproval bool
}

// StrategyFor returns the retry policy for a category. The switch is
// exhaustive over the closed category set; an unlisted category is a
// programming error and falls through to the unknown policy.
func StrategyFor(category domain.FailureCategory) RetryStrategy {
	switch category {
	case domain.CategoryNetworkError:
		return RetryStrategy{MaxRetries: 5, BaseDelay: 5 * time.Minute, ExponentialBackoff: true}
	case domain.CategoryProcessingError:
		return RetryStrategy{MaxRetries: 3, BaseDelay: 15 * time.Minute, ExponentialBackoff: true, NotifyCustomer: true}
	case domain.CategoryAuthenticationRequired:
		return RetryStrategy{MaxRetries: 1, BaseDelay: 0, NotifyCustomer: true}
	case domain.CategoryInsufficientFunds:
		return RetryStrategy{MaxRetries: 2, BaseDelay: 24 * time.Hour, NotifyCustomer: true}
	case domain.CategoryCardDeclined:
		return RetryStrategy{MaxRetries: 1, BaseDelay: time.Hour, NotifyCustomer: true, RequireManualApproval: true}
	case domain.CategoryExpiredCard:
		return RetryStrategy{NotifyCustomer: true, RequireManualApproval: true}
	case domain.CategoryIncorrectCVC:
		return RetryStrategy{NotifyCustomer: true, RequireManualApproval: true}
	case domain.CategoryFraudSuspected:
		return RetryStrategy{RequireManualApproval: true}
	case domain.CategoryUnknown:
		return RetryStrategy{MaxRetries: 1, BaseDelay: 30 * time.Minute, NotifyCustomer: true, RequireManualApproval: true}
	default:
		return RetryStrategy{MaxRetries: 1, BaseDelay: 30 * time.Minute, NotifyCustomer: true, RequireManualApproval: true}
	}
}

// CanRetry decides whether a category is retryable given the charge's risk
// signal. The hard deny list wins over everything, then the highest risk
// tier, then the allow list.
//
// Note: INSUFFICIENT_FUNDS and CARD_DECLINED return false here even though
// their strategies carry nonzero MaxRetries. Effective auto-retry is the AND
// of this predicate and MaxRetries > 0; the nonzero caps bound
// operator-approved manual re-arms instead. See DESIGN.md.
func CanRetry(category domain.FailureCategory, risk domain.RiskLevel) bool {
	switch category {
	case domain.CategoryFraudSuspected, domain.CategoryIncorrectCVC, domain.CategoryExpiredCard:
		return false
	}

	if risk == domain.RiskLevelHighest {
		return false
	}

	switch category {
	case domain.CategoryNetworkError, domain.CategoryProcessingError, domain.CategoryAuthenticationRequired:
		return true
	}
	return false
}

// maxBackoffDelay caps exponential growth so a stuck record is still
// revisited within a business day.
const maxBackoffDelay = 24 * time.Hour

// NextDelay returns the wait before the given attempt (0-indexed).
// With backoff enabled: BaseDelay * 2^attempt, capped at maxBackoffDelay.
func NextDelay(strategy RetryStrategy, attempt int) time.Duration {
	if !strategy.ExponentialBackoff || attempt <= 0 {
		return strategy.BaseDelay
	}
	delay := float64(strategy.BaseDelay) * math.Pow(2, float64(attempt))
	if delay > float64(maxBackoffDelay) {
		return maxBackoffDelay
	}
	return time.Duration(delay)
}
