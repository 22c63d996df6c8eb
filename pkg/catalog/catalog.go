// Package catalog holds the static reward tables: task rewards, boost
// packages, the daily check-in schedule and the farming constants.
//
// A Catalog is built once at process start and shared read-only.
package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chainsafe/qtx-rewards/pkg/config"
)

var (
	ErrUnknownTask  = errors.New("unknown task")
	ErrUnknownBoost = errors.New("unknown boost package")
)

// Task is a one-time reward.
type Task struct {
	ID     string          `json:"id"`
	Title  string          `json:"title"`
	Reward decimal.Decimal `json:"reward"`
}

// Boost is a purchasable farming multiplier.
type Boost struct {
	Index      int             `json:"index"`
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Multiplier decimal.Decimal `json:"multiplier"`
	Duration   time.Duration   `json:"duration"`
	PriceTON   decimal.Decimal `json:"price_ton"`
}

// DurationHours returns the boost duration in hours.
func (b Boost) DurationHours() float64 {
	return b.Duration.Hours()
}

// Catalog is the immutable reward configuration.
type Catalog struct {
	token                  string
	baseFarmingReward      decimal.Decimal
	farmingCooldown        time.Duration
	referralCommissionRate decimal.Decimal
	welcomeReward          decimal.Decimal
	presaleRate            decimal.Decimal
	presaleBonusMinTON     decimal.Decimal
	taskSubmissionDelay    time.Duration
	dailySchedule          []decimal.Decimal
	boosts                 []Boost
	tasks                  map[string]Task
}

// New builds a Catalog from the rewards configuration section.
func New(cfg config.RewardsConfig) (*Catalog, error) {
	c := &Catalog{
		token:               cfg.Token,
		farmingCooldown:     cfg.FarmingCooldown,
		taskSubmissionDelay: cfg.TaskSubmissionDelay,
		tasks:               make(map[string]Task, len(cfg.Tasks)),
	}
	if c.token == "" {
		c.token = "QTX"
	}

	var err error
	if c.baseFarmingReward, err = parsePositive("base_farming_reward", cfg.BaseFarmingReward); err != nil {
		return nil, err
	}
	if c.referralCommissionRate, err = parseNonNegative("referral_commission_rate", cfg.ReferralCommissionRate); err != nil {
		return nil, err
	}
	if c.welcomeReward, err = parseNonNegative("welcome_reward", cfg.WelcomeReward); err != nil {
		return nil, err
	}
	if c.presaleRate, err = parsePositive("presale_rate", cfg.PresaleRate); err != nil {
		return nil, err
	}
	if c.presaleBonusMinTON, err = parseNonNegative("presale_bonus_min_ton", cfg.PresaleBonusMinTON); err != nil {
		return nil, err
	}
	if c.farmingCooldown <= 0 {
		return nil, fmt.Errorf("farming_cooldown must be positive")
	}
	if c.taskSubmissionDelay < 0 {
		return nil, fmt.Errorf("task_submission_delay must not be negative")
	}

	if len(cfg.DailySchedule) == 0 {
		return nil, fmt.Errorf("daily_schedule must not be empty")
	}
	c.dailySchedule = make([]decimal.Decimal, len(cfg.DailySchedule))
	for i, raw := range cfg.DailySchedule {
		if c.dailySchedule[i], err = parseNonNegative(fmt.Sprintf("daily_schedule[%d]", i), raw); err != nil {
			return nil, err
		}
	}

	seen := make(map[string]struct{}, len(cfg.Boosts))
	for i, b := range cfg.Boosts {
		if _, dup := seen[b.ID]; dup {
			return nil, fmt.Errorf("duplicate boost id %q", b.ID)
		}
		seen[b.ID] = struct{}{}

		mult, err := parsePositive(fmt.Sprintf("boosts[%d].multiplier", i), b.Multiplier)
		if err != nil {
			return nil, err
		}
		if mult.LessThan(decimal.NewFromInt(1)) {
			return nil, fmt.Errorf("boosts[%d].multiplier must be at least 1.0", i)
		}
		price, err := parsePositive(fmt.Sprintf("boosts[%d].price_ton", i), b.PriceTON)
		if err != nil {
			return nil, err
		}
		c.boosts = append(c.boosts, Boost{
			Index:      i,
			ID:         b.ID,
			Name:       b.Name,
			Multiplier: mult,
			Duration:   time.Duration(b.DurationHours * float64(time.Hour)),
			PriceTON:   price,
		})
	}

	for id, t := range cfg.Tasks {
		reward, err := parsePositive(fmt.Sprintf("tasks[%s].reward", id), t.Reward)
		if err != nil {
			return nil, err
		}
		c.tasks[id] = Task{ID: id, Title: t.Title, Reward: reward}
	}

	return c, nil
}

// Token returns the reward token symbol.
func (c *Catalog) Token() string { return c.token }

// BaseFarmingReward returns the un-boosted reward of one farm claim.
func (c *Catalog) BaseFarmingReward() decimal.Decimal { return c.baseFarmingReward }

// FarmingCooldown returns the wait between farm claims.
func (c *Catalog) FarmingCooldown() time.Duration { return c.farmingCooldown }

// ReferralCommissionRate returns the share of the base farming reward paid to a referrer.
func (c *Catalog) ReferralCommissionRate() decimal.Decimal { return c.referralCommissionRate }

// ReferralCommission returns the commission paid per farm claim of a referred user.
func (c *Catalog) ReferralCommission() decimal.Decimal {
	return c.baseFarmingReward.Mul(c.referralCommissionRate)
}

// WelcomeReward returns the one-time welcome grant.
func (c *Catalog) WelcomeReward() decimal.Decimal { return c.welcomeReward }

// PresaleRate returns the reward tokens granted per TON paid.
func (c *Catalog) PresaleRate() decimal.Decimal { return c.presaleRate }

// PresaleBonusMinTON returns the smallest presale payment that unlocks the presale bonus task.
func (c *Catalog) PresaleBonusMinTON() decimal.Decimal { return c.presaleBonusMinTON }

// TaskSubmissionDelay returns how long a task submission waits before it can be rewarded.
func (c *Catalog) TaskSubmissionDelay() time.Duration { return c.taskSubmissionDelay }

// ScheduleLength returns the length of the daily reward cycle.
func (c *Catalog) ScheduleLength() int { return len(c.dailySchedule) }

// DailySchedule returns a copy of the daily reward schedule.
func (c *Catalog) DailySchedule() []decimal.Decimal {
	out := make([]decimal.Decimal, len(c.dailySchedule))
	copy(out, c.dailySchedule)
	return out
}

// DailyReward returns the schedule index and reward for a streak.
// The schedule is cyclic: streak k and k+len(schedule) pay the same.
func (c *Catalog) DailyReward(streak int) (int, decimal.Decimal) {
	if streak < 1 {
		streak = 1
	}
	idx := (streak - 1) % len(c.dailySchedule)
	return idx, c.dailySchedule[idx]
}

// Task resolves a task by id.
func (c *Catalog) Task(id string) (Task, error) {
	t, ok := c.tasks[id]
	if !ok {
		return Task{}, fmt.Errorf("%w: %s", ErrUnknownTask, id)
	}
	return t, nil
}

// Tasks returns all tasks sorted by id.
func (c *Catalog) Tasks() []Task {
	out := make([]Task, 0, len(c.tasks))
	for _, t := range c.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Boost resolves a boost package by its position in the catalog or by id.
func (c *Catalog) Boost(ref string) (Boost, error) {
	if idx, err := strconv.Atoi(ref); err == nil {
		if idx >= 0 && idx < len(c.boosts) {
			return c.boosts[idx], nil
		}
		return Boost{}, fmt.Errorf("%w: %s", ErrUnknownBoost, ref)
	}
	for _, b := range c.boosts {
		if b.ID == ref {
			return b, nil
		}
	}
	return Boost{}, fmt.Errorf("%w: %s", ErrUnknownBoost, ref)
}

// Boosts returns the ordered boost packages.
func (c *Catalog) Boosts() []Boost {
	out := make([]Boost, len(c.boosts))
	copy(out, c.boosts)
	return out
}

func parseNonNegative(field, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q: %w", field, raw, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%s must not be negative", field)
	}
	return d, nil
}

func parsePositive(field, raw string) (decimal.Decimal, error) {
	d, err := parseNonNegative(field, raw)
	if err != nil {
		return d, err
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("%s must be positive", field)
	}
	return d, nil
}
