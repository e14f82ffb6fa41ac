package domain

import (
	"github.com/google/uuid"
)

// PaymentPlanType discriminates how a buyer is charged for a product.
type PaymentPlanType string

const (
	// PlanTypeFree grants access without any charge.
	PlanTypeFree PaymentPlanType = "free"

	// PlanTypeOneTime is a single charge for lifetime access.
	PlanTypeOneTime PaymentPlanType = "onetime"

	// PlanTypeEMI is a capped-count recurring charge: a fixed per-installment
	// amount collected a fixed number of times. Distinct from an open-ended
	// subscription; the recurring mechanism must be terminated once the agreed
	// installment count is reached.
	PlanTypeEMI PaymentPlanType = "emi"

	// PlanTypeSubscription is an open-ended monthly or yearly recurring charge.
	PlanTypeSubscription PaymentPlanType = "subscription"
)

// PaymentPlan describes how a buyer is charged. Exactly one amount group is
// meaningful per type; the others are zero.
type PaymentPlan struct {
	ID   uuid.UUID
	Name string
	Type PaymentPlanType

	// OneTimeAmount is the charge for PlanTypeOneTime, in the site's currency.
	OneTimeAmount float64

	// EMIAmount is the per-installment amount for PlanTypeEMI.
	EMIAmount float64

	// EMITotalInstallments is the agreed installment count for PlanTypeEMI.
	EMITotalInstallments int

	// SubscriptionMonthlyAmount / SubscriptionYearlyAmount: one of the two is
	// set for PlanTypeSubscription. Monthly wins if both are present.
	SubscriptionMonthlyAmount float64
	SubscriptionYearlyAmount  float64
}

// IsRecurring reports whether the plan is collected through a provider-side
// recurring mechanism (true for EMI as well: EMI rides on a subscription that
// gets cancelled at the installment boundary).
func (p *PaymentPlan) IsRecurring() bool {
	return p.Type == PlanTypeEMI || p.Type == PlanTypeSubscription
}

// ProductType categorizes the sellable entity a plan is attached to.
type ProductType string

const (
	ProductTypeCourse    ProductType = "course"
	ProductTypeCommunity ProductType = "community"
	ProductTypeDownload  ProductType = "download"
)

// Product is the minimal descriptor the payment layer needs about the thing
// being sold: a display title for the provider-hosted checkout page and a
// type for reporting. The full course/community records stay outside the
// payment core.
type Product struct {
	Title string
	Type  ProductType
}
