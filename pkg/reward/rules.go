// Package reward implements the reward state machine: farming claims, daily
// check-ins, task and welcome rewards and purchase credits.
//
// Rules never touch storage. Each Apply* method validates eligibility against
// the account passed in and mutates it in place, so that it can run inside an
// account store mutator and be re-evaluated on every retry.
package reward

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chainsafe/qtx-rewards/pkg/account"
	"github.com/chainsafe/qtx-rewards/pkg/catalog"
)

// Rules evaluates reward eligibility against a catalog.
type Rules struct {
	catalog *catalog.Catalog
	loc     *time.Location
}

// NewRules creates Rules. Calendar dates for check-ins are evaluated in loc.
func NewRules(c *catalog.Catalog, loc *time.Location) *Rules {
	if loc == nil {
		loc = time.Local
	}
	return &Rules{catalog: c, loc: loc}
}

// Catalog returns the catalog the rules evaluate against.
func (r *Rules) Catalog() *catalog.Catalog { return r.catalog }

// Location returns the location used for calendar dates.
func (r *Rules) Location() *time.Location { return r.loc }

// FarmOutcome is the result of a farm claim applied to the claimant.
type FarmOutcome struct {
	BaseReward    decimal.Decimal
	Commission    decimal.Decimal
	Total         decimal.Decimal
	Multiplier    decimal.Decimal
	ClaimCount    int64
	NextClaimTime time.Time
	ReferredBy    string
}

// ApplyFarmClaim credits one farming claim.
func (r *Rules) ApplyFarmClaim(acc *account.Account, now time.Time) (FarmOutcome, error) {
	if now.Before(acc.FarmReadyTime) {
		return FarmOutcome{}, &NotReadyError{ReadyAt: acc.FarmReadyTime, Remaining: acc.FarmReadyTime.Sub(now)}
	}

	base := r.catalog.BaseFarmingReward()
	multiplier := acc.ActiveBoost.MultiplierAt(now)
	boosted := base.Mul(multiplier)

	commission := decimal.Zero
	if acc.ReferredBy != "" {
		// computed from the un-boosted base
		commission = r.catalog.ReferralCommission()
	}
	total := boosted.Add(commission)

	acc.Balance = acc.Balance.Add(total)
	acc.FarmClaimCount++
	acc.FarmReadyTime = now.Add(r.catalog.FarmingCooldown())
	acc.UpdatedAt = now

	return FarmOutcome{
		BaseReward:    boosted,
		Commission:    commission,
		Total:         total,
		Multiplier:    multiplier,
		ClaimCount:    acc.FarmClaimCount,
		NextClaimTime: acc.FarmReadyTime,
		ReferredBy:    acc.ReferredBy,
	}, nil
}

// CreditCommission credits a referral commission to the referrer.
func (r *Rules) CreditCommission(referrer *account.Account, commission decimal.Decimal, now time.Time) error {
	if commission.IsNegative() {
		return fmt.Errorf("%w: negative commission %s", ErrInvalidInput, commission)
	}
	referrer.Balance = referrer.Balance.Add(commission)
	referrer.UpdatedAt = now
	return nil
}

// FarmStatus is a read-only projection of the next farm claim.
type FarmStatus struct {
	Ready           bool            `json:"ready"`
	ReadyAt         time.Time       `json:"ready_at,omitzero"`
	Remaining       time.Duration   `json:"remaining"`
	TimeDisplay     string          `json:"time_display"`
	ProjectedReward decimal.Decimal `json:"projected_reward"`
	Commission      decimal.Decimal `json:"commission"`
	Multiplier      decimal.Decimal `json:"multiplier"`
	BoostName       string          `json:"boost_name"`
	BoostEndsAt     time.Time       `json:"boost_ends_at,omitzero"`
}

// FarmStatus projects the next farm claim without mutating the account.
func (r *Rules) FarmStatus(acc *account.Account, now time.Time) FarmStatus {
	multiplier := acc.ActiveBoost.MultiplierAt(now)
	commission := decimal.Zero
	if acc.ReferredBy != "" {
		commission = r.catalog.ReferralCommission()
	}

	st := FarmStatus{
		Ready:           !now.Before(acc.FarmReadyTime),
		ReadyAt:         acc.FarmReadyTime,
		ProjectedReward: r.catalog.BaseFarmingReward().Mul(multiplier).Add(commission),
		Commission:      commission,
		Multiplier:      multiplier,
		BoostName:       account.NeutralBoostName,
	}
	if acc.ActiveBoost.ActiveAt(now) {
		st.BoostName = acc.ActiveBoost.Name
		st.BoostEndsAt = acc.ActiveBoost.EndTime
	}
	if st.Ready {
		st.TimeDisplay = "READY!"
		return st
	}
	st.Remaining = acc.FarmReadyTime.Sub(now)
	st.TimeDisplay = FormatRemaining(st.Remaining)
	return st
}

// FormatRemaining renders a duration as HH:MM:SS.
func FormatRemaining(d time.Duration) string {
	if d <= 0 {
		return "00:00:00"
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}

// DailyOutcome is the result of a daily check-in.
type DailyOutcome struct {
	Reward        decimal.Decimal
	Streak        int
	Day           int
	Date          time.Time
	NextClaimTime time.Time
}

// ApplyDailyCheckin credits the daily check-in reward for the streak.
func (r *Rules) ApplyDailyCheckin(acc *account.Account, now time.Time) (DailyOutcome, error) {
	last := acc.DailyCheckin.LastClaim
	today := r.dateOf(now)
	next := today.AddDate(0, 0, 1)

	streak := 1
	if !last.IsZero() {
		if last.After(now) {
			return DailyOutcome{}, fmt.Errorf("%w: last check-in %s is after %s", ErrNotEligible,
				last.Format(time.RFC3339), now.Format(time.RFC3339))
		}
		lastDay := r.dateOf(last)
		switch {
		case lastDay.Equal(today):
			return DailyOutcome{}, &AlreadyClaimedTodayError{NextClaimTime: next, Remaining: next.Sub(now)}
		case lastDay.Equal(today.AddDate(0, 0, -1)):
			streak = acc.DailyCheckin.Streak + 1
		}
	}

	idx, reward := r.catalog.DailyReward(streak)

	acc.Balance = acc.Balance.Add(reward)
	acc.DailyCheckin = account.DailyCheckin{Streak: streak, LastClaim: now}
	acc.UpdatedAt = now

	return DailyOutcome{
		Reward:        reward,
		Streak:        streak,
		Day:           idx + 1,
		Date:          today,
		NextClaimTime: next,
	}, nil
}

// NextMidnight returns the start of the calendar day after now.
func (r *Rules) NextMidnight(now time.Time) time.Time {
	return r.dateOf(now).AddDate(0, 0, 1)
}

func (r *Rules) dateOf(t time.Time) time.Time {
	y, m, d := t.In(r.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, r.loc)
}

// ApplyTaskReward credits a task reward. Completion tracking is the store's job.
func (r *Rules) ApplyTaskReward(acc *account.Account, task catalog.Task, now time.Time) decimal.Decimal {
	acc.Balance = acc.Balance.Add(task.Reward)
	acc.UpdatedAt = now
	return task.Reward
}

// ApplyWelcome credits the one-time welcome reward.
func (r *Rules) ApplyWelcome(acc *account.Account, now time.Time) (decimal.Decimal, error) {
	if acc.WelcomeClaimed {
		return decimal.Zero, fmt.Errorf("%w: welcome reward", ErrAlreadyClaimed)
	}
	reward := r.catalog.WelcomeReward()
	acc.Balance = acc.Balance.Add(reward)
	acc.WelcomeClaimed = true
	acc.UpdatedAt = now
	return reward, nil
}

// PresaleTokens returns the reward tokens bought with tonAmount.
func (r *Rules) PresaleTokens(tonAmount decimal.Decimal) decimal.Decimal {
	return tonAmount.Mul(r.catalog.PresaleRate())
}

// ApplyPresale credits the tokens bought with a verified presale payment.
func (r *Rules) ApplyPresale(acc *account.Account, tonAmount decimal.Decimal, now time.Time) (decimal.Decimal, error) {
	if !tonAmount.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: presale amount must be positive", ErrInvalidInput)
	}
	tokens := r.PresaleTokens(tonAmount)
	acc.Balance = acc.Balance.Add(tokens)
	acc.UpdatedAt = now
	return tokens, nil
}

// ApplyBoost activates a boost, replacing any boost already active.
func (r *Rules) ApplyBoost(acc *account.Account, boost catalog.Boost, now time.Time) account.ActiveBoost {
	acc.ActiveBoost = account.ActiveBoost{
		Multiplier: boost.Multiplier,
		EndTime:    now.Add(boost.Duration),
		Name:       boost.Name,
	}
	acc.UpdatedAt = now
	return acc.ActiveBoost
}
