package recovery

import "github.com/harborline/payguard/internal/core/domain"

// CustomerMessage returns the non-technical explanation sent to the customer
// for a failure category. Unlisted values fall back to the unknown wording;
// that path is unreachable while the category set stays closed.
func CustomerMessage(category domain.FailureCategory) string {
	switch category {
	case domain.CategoryInsufficientFunds:
		return "Your payment could not be completed due to insufficient funds. We will retry automatically, or you can update your payment method."
	case domain.CategoryCardDeclined:
		return "Your card was declined. Please contact your bank or try a different payment method."
	case domain.CategoryExpiredCard:
		return "Your card has expired. Please update your payment method with a current card."
	case domain.CategoryIncorrectCVC:
		return "The security code entered was incorrect. Please re-enter your card details."
	case domain.CategoryProcessingError:
		return "A temporary processing error occurred. We will retry your payment shortly."
	case domain.CategoryAuthenticationRequired:
		return "Your bank requires additional verification. Please complete authentication to finish your purchase."
	case domain.CategoryFraudSuspected:
		return "This payment could not be processed. Please contact support if you believe this is an error."
	case domain.CategoryNetworkError:
		return "We had trouble reaching the payment network. Your payment will be retried automatically."
	default:
		return "Your payment could not be processed. Our team is looking into it and will follow up shortly."
	}
}
