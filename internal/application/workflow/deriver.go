package workflow

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/garyjia/cpq-approval/internal/domain/entity"
)

const (
	// DefaultMaxProcessingDays is the processing window of a regular step
	DefaultMaxProcessingDays = 3

	// DefaultEscalationProcessingDays is the shorter window of an escalation step
	DefaultEscalationProcessingDays = 2
)

var (
	croThreshold     = decimal.NewFromInt(15)
	financeThreshold = decimal.NewFromInt(40)
)

var stepNames = map[entity.Persona]string{
	entity.PersonaAE:       "Account Executive Review",
	entity.PersonaDealDesk: "Deal Desk Review",
	entity.PersonaCRO:      "CRO Approval",
	entity.PersonaFinance:  "Finance Approval",
	entity.PersonaLegal:    "Legal Review",
	entity.PersonaCustomer: "Customer Delivery",
}

var stepDescriptions = map[entity.Persona]string{
	entity.PersonaAE:       "Quote prepared and submitted by the account executive",
	entity.PersonaDealDesk: "Commercial terms and pricing review",
	entity.PersonaCRO:      "Revenue leadership sign-off for discounts above 15%",
	entity.PersonaFinance:  "Margin review for discounts above 40%",
	entity.PersonaLegal:    "Contract terms review",
	entity.PersonaCustomer: "Quote delivered to the customer",
}

// StepName returns the default display name for a persona's step
func StepName(p entity.Persona) string {
	if n, ok := stepNames[p]; ok {
		return n
	}
	return fmt.Sprintf("%s Review", p.Title())
}

// DeriveSteps returns the approval chain for a discount percentage.
//
//	discount <= 15       ae, deal_desk, legal, customer
//	15 < discount <= 40  ae, deal_desk, cro, legal, customer
//	discount > 40        ae, deal_desk, cro, finance, legal, customer
//
// The ae step comes back approved; every other step is pending.
// Orders run 1..N without gaps. MaxProcessingDays is left zero so the
// engine applies its configured window.
func DeriveSteps(discount decimal.Decimal) []entity.StepSpec {
	personas := []entity.Persona{entity.PersonaAE, entity.PersonaDealDesk}

	switch {
	case discount.GreaterThan(financeThreshold):
		personas = append(personas, entity.PersonaCRO, entity.PersonaFinance)
	case discount.GreaterThan(croThreshold):
		personas = append(personas, entity.PersonaCRO)
	}

	personas = append(personas, entity.PersonaLegal, entity.PersonaCustomer)

	specs := make([]entity.StepSpec, 0, len(personas))
	for i, p := range personas {
		status := entity.StepStatusPending
		if p == entity.PersonaAE {
			status = entity.StepStatusApproved
		}
		specs = append(specs, entity.StepSpec{
			Persona:     p,
			StepOrder:   i + 1,
			Name:        StepName(p),
			Description: stepDescriptions[p],
			IsRequired:  true,
			Status:      status,
		})
	}

	return specs
}
