package payment

import (
	"fmt"

	"github.com/courseloom/courseloom/internal/domain"
)

// ResolveUnitAmount maps a payment plan to the amount of a single charge in
// the site's currency: the full amount for one-time plans, the
// per-installment amount for EMI (not the total), the monthly amount for
// subscriptions (yearly when no monthly amount is set), zero for free plans.
//
// Every adapter prices through this function so amount semantics cannot drift
// between providers; adapters that bill in minor units do their own ×100 on
// the result. An unrecognized plan type is an error, never a zero.
func ResolveUnitAmount(plan domain.PaymentPlan) (float64, error) {
	switch plan.Type {
	case domain.PlanTypeOneTime:
		return plan.OneTimeAmount, nil
	case domain.PlanTypeEMI:
		return plan.EMIAmount, nil
	case domain.PlanTypeSubscription:
		if plan.SubscriptionMonthlyAmount > 0 {
			return plan.SubscriptionMonthlyAmount, nil
		}
		return plan.SubscriptionYearlyAmount, nil
	case domain.PlanTypeFree:
		return 0, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidPlanType, plan.Type)
	}
}
