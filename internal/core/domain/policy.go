package domain

import "github.com/gagliardetto/solana-go"

// PolicyKind names an invalidator variant.
type PolicyKind string

const (
	PolicyTime          PolicyKind = "time"
	PolicyUse           PolicyKind = "use"
	PolicyCustom        PolicyKind = "custom"
	PolicyClaimApprover PolicyKind = "claim_approver"
)

// Policy is the closed set of invalidator variants attached to a token manager.
type Policy interface {
	PolicyKind() PolicyKind
	// Evaluate reports whether the policy's condition ends custody at now.
	Evaluate(tm *TokenManager, now int64) (Trigger, bool)

	sealed()
}

// TriggerReason says why a manager is being invalidated.
type TriggerReason string

const (
	ReasonUsageExhausted TriggerReason = "usage_exhausted"
	ReasonExpired        TriggerReason = "expired"
	ReasonMaxExpiration  TriggerReason = "max_expiration"
	ReasonManual         TriggerReason = "manual"
	ReasonSelfReturn     TriggerReason = "self_return"
	ReasonUnissue        TriggerReason = "unissue"
)

// Trigger describes a single invalidation cause.
type Trigger struct {
	Reason TriggerReason     `json:"reason"`
	Policy PolicyKind        `json:"policy,omitempty"`
	Actor  *solana.PublicKey `json:"actor,omitempty"`

	// Final forces a terminal outcome even under Reissue.
	Final bool `json:"final,omitempty"`
}

// ManualTrigger is an invalidation requested directly by an identity.
func ManualTrigger(actor solana.PublicKey) Trigger {
	return Trigger{Reason: ReasonManual, Policy: PolicyCustom, Actor: &actor}
}

// CustomInvalidator grants an identity the right to invalidate directly.
// It never fires on its own.
type CustomInvalidator struct {
	Identity solana.PublicKey `json:"identity"`
}

func (c CustomInvalidator) PolicyKind() PolicyKind { return PolicyCustom }

func (c CustomInvalidator) Evaluate(*TokenManager, int64) (Trigger, bool) {
	return Trigger{}, false
}

func (CustomInvalidator) sealed() {}

// Policies returns the manager's invalidator policies in evaluation
// priority: use exhaustion, then time, then custom.
func (tm *TokenManager) Policies() []Policy {
	out := make([]Policy, 0, 2+len(tm.CustomInvalidators))
	if tm.UseInvalidator != nil {
		out = append(out, tm.UseInvalidator)
	}
	if tm.TimeInvalidator != nil {
		out = append(out, tm.TimeInvalidator)
	}
	for _, c := range tm.CustomInvalidators {
		out = append(out, c)
	}
	return out
}

// Evaluate returns the first satisfied policy condition, if any.
// At most one trigger is produced per evaluation.
func (tm *TokenManager) Evaluate(now int64) (Trigger, bool) {
	if tm.State != StateIssued && tm.State != StateClaimed {
		return Trigger{}, false
	}
	for _, p := range tm.Policies() {
		if t, ok := p.Evaluate(tm, now); ok {
			return t, true
		}
	}
	return Trigger{}, false
}
