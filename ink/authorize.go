/*
authorize.go - Spend authorization

PURPOSE:
  Decides, for a user requesting a one-unit spend, whether the spend is
  allowed and which pool funds it. The rule is two-tier:

    1. Any purchased balance  -> allowed, uncapped, funded from balance
    2. Otherwise              -> funded from the free allotment, subject
                                 to the daily cap then the monthly cap

  Denials carry a machine-readable reason and the time until the relevant
  counter resets, so the UI can render "3 more free claps at midnight"
  rather than a generic failure.

SEE ALSO:
  - reset.go: Callers must apply WithResets before authorizing
  - service.go: SpendOne re-authorizes inside the same critical section
*/
package ink

import "time"

// =============================================================================
// DECISION - The outcome of a spend authorization
// =============================================================================

// DenyReason identifies why a spend or transfer was refused. These are
// expected business outcomes, not errors.
type DenyReason string

const (
	ReasonDailyCap            DenyReason = "daily_cap"
	ReasonMonthlyCap          DenyReason = "monthly_cap"
	ReasonInsufficientBalance DenyReason = "insufficient_balance"
)

// SpendSource identifies which pool funds an allowed spend.
type SpendSource string

const (
	SourceBalance   SpendSource = "balance"
	SourceAllotment SpendSource = "free_allotment"
)

// Decision is the result of a spend authorization.
type Decision struct {
	Allowed bool
	Source  SpendSource // set when Allowed

	Reason   DenyReason    // set when denied
	ResetsIn time.Duration // time until the blocking counter resets, when denied
}

// =============================================================================
// AUTHORIZER
// =============================================================================

// Authorize applies the two-tier spending rule. The allotment must already
// have had WithResets applied for the same now, otherwise a stale counter
// could deny a spend the user is entitled to.
func (p Policy) Authorize(balance int64, a Allotment, now time.Time) Decision {
	if balance > 0 {
		return Decision{Allowed: true, Source: SourceBalance}
	}
	if a.DailyUsed >= p.DailyFreeCap {
		return Decision{
			Reason:   ReasonDailyCap,
			ResetsIn: NextDailyReset(now).Sub(now.UTC()),
		}
	}
	if a.MonthlyUsed >= p.MonthlyFreeCap {
		return Decision{
			Reason:   ReasonMonthlyCap,
			ResetsIn: NextMonthlyReset(now).Sub(now.UTC()),
		}
	}
	return Decision{Allowed: true, Source: SourceAllotment}
}
