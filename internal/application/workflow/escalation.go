package workflow

import (
	"github.com/garyjia/cpq-approval/internal/domain/apperr"
	"github.com/garyjia/cpq-approval/internal/domain/entity"
)

// EscalationPolicy maps a persona to the persona its decisions escalate to
type EscalationPolicy map[entity.Persona]entity.Persona

// DefaultEscalationPolicy returns the standard escalation paths
func DefaultEscalationPolicy() EscalationPolicy {
	return EscalationPolicy{
		entity.PersonaAE:       entity.PersonaDealDesk,
		entity.PersonaDealDesk: entity.PersonaCRO,
		entity.PersonaCRO:      entity.PersonaFinance,
		entity.PersonaLegal:    entity.PersonaCRO,
		entity.PersonaFinance:  entity.PersonaCRO,
	}
}

// ParseEscalationPolicy builds a policy from configuration strings
func ParseEscalationPolicy(raw map[string]string) (EscalationPolicy, error) {
	policy := make(EscalationPolicy, len(raw))
	for from, to := range raw {
		fp, ok := entity.ParsePersona(from)
		if !ok {
			return nil, apperr.Validation("escalation", "unknown persona %q", from)
		}
		tp, ok := entity.ParsePersona(to)
		if !ok {
			return nil, apperr.Validation("escalation", "unknown persona %q", to)
		}
		if fp == tp {
			return nil, apperr.Validation("escalation", "persona %s cannot escalate to itself", fp)
		}
		policy[fp] = tp
	}
	return policy, nil
}

// Target resolves the escalation target. An explicit target always wins.
func (p EscalationPolicy) Target(from entity.Persona, explicit entity.Persona) (entity.Persona, error) {
	target := explicit
	if target == "" {
		var ok bool
		if target, ok = p[from]; !ok {
			return "", apperr.Validation("Escalate", "no escalation path defined for %s", from)
		}
	}
	if !target.IsValid() {
		return "", apperr.Validation("Escalate", "unknown escalation target %q", target)
	}
	if target == from {
		return "", apperr.Validation("Escalate", "cannot escalate %s to itself", from)
	}
	return target, nil
}
