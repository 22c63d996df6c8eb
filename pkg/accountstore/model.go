package accountstore

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"github.com/chainsafe/qtx-rewards/pkg/account"
)

// AccountDao is a data access object that maps directly to the 'accounts' table in PostgreSQL.
type AccountDao struct {
	bun.BaseModel    `bun:"table:accounts,alias:a"`
	UserID           string     `bun:"user_id,pk,type:varchar(128)"`
	WalletAddress    *string    `bun:"wallet_address,type:varchar(80)"`
	Balance          string     `bun:"balance,notnull,type:numeric(38,18),default:0"`
	FarmReadyTime    *time.Time `bun:"farm_ready_time"`
	FarmClaimCount   int64      `bun:"farm_claim_count,notnull,default:0"`
	BoostMultiplier  string     `bun:"boost_multiplier,notnull,type:numeric(10,4),default:1"`
	BoostEndTime     *time.Time `bun:"boost_end_time"`
	BoostName        string     `bun:"boost_name,notnull,type:varchar(64),default:'None'"`
	CheckinStreak    int        `bun:"checkin_streak,notnull,default:0"`
	CheckinLastClaim *time.Time `bun:"checkin_last_claim"`
	ReferralCode     string     `bun:"referral_code,notnull,unique,type:varchar(8)"`
	ReferredBy       *string    `bun:"referred_by,type:varchar(128)"`
	ReferralCount    int64      `bun:"referral_count,notnull,default:0"`
	WelcomeClaimed   bool       `bun:"welcome_claimed,notnull,default:false"`
	Version          int64      `bun:"version,notnull,default:1"`
	CreatedAt        time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt        time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// TaskCompletionDao maps to the 'task_completions' table. The (user_id, task_id)
// pair is unique.
type TaskCompletionDao struct {
	bun.BaseModel `bun:"table:task_completions,alias:tc"`
	ID            int64     `bun:"id,pk,autoincrement"`
	UserID        string    `bun:"user_id,notnull,type:varchar(128),unique:uq_task_completions_user_task"`
	TaskID        string    `bun:"task_id,notnull,type:varchar(64),unique:uq_task_completions_user_task"`
	CompletedAt   time.Time `bun:"completed_at,nullzero,notnull,default:current_timestamp"`
}

// TaskSubmissionDao maps to the 'task_submissions' table. One submission is
// kept per (user_id, task_id).
type TaskSubmissionDao struct {
	bun.BaseModel `bun:"table:task_submissions,alias:ts"`
	ID            int64     `bun:"id,pk,autoincrement"`
	UserID        string    `bun:"user_id,notnull,type:varchar(128),unique:uq_task_submissions_user_task"`
	TaskID        string    `bun:"task_id,notnull,type:varchar(64),unique:uq_task_submissions_user_task"`
	ExternalID    string    `bun:"external_id,notnull,type:varchar(128)"`
	SubmittedAt   time.Time `bun:"submitted_at,notnull"`
}

func toTaskSubmission(dao *TaskSubmissionDao) *account.TaskSubmission {
	return &account.TaskSubmission{
		UserID:      dao.UserID,
		TaskID:      dao.TaskID,
		ExternalID:  dao.ExternalID,
		SubmittedAt: dao.SubmittedAt,
	}
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func optTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

// toAccountDao converts an account.Account to AccountDao.
func toAccountDao(acc *account.Account) *AccountDao {
	multiplier := acc.ActiveBoost.Multiplier
	if multiplier.IsZero() {
		multiplier = decimal.NewFromInt(1)
	}
	boostName := acc.ActiveBoost.Name
	if boostName == "" {
		boostName = account.NeutralBoostName
	}

	return &AccountDao{
		UserID:           acc.UserID,
		WalletAddress:    optString(acc.WalletAddress),
		Balance:          acc.Balance.String(),
		FarmReadyTime:    optTime(acc.FarmReadyTime),
		FarmClaimCount:   acc.FarmClaimCount,
		BoostMultiplier:  multiplier.String(),
		BoostEndTime:     optTime(acc.ActiveBoost.EndTime),
		BoostName:        boostName,
		CheckinStreak:    acc.DailyCheckin.Streak,
		CheckinLastClaim: optTime(acc.DailyCheckin.LastClaim),
		ReferralCode:     acc.ReferralCode,
		ReferredBy:       optString(acc.ReferredBy),
		ReferralCount:    acc.ReferralCount,
		WelcomeClaimed:   acc.WelcomeClaimed,
		Version:          acc.Version,
		CreatedAt:        acc.CreatedAt,
		UpdatedAt:        acc.UpdatedAt,
	}
}

// toAccount converts an AccountDao to account.Account.
func toAccount(dao *AccountDao) (*account.Account, error) {
	balance, err := decimal.NewFromString(dao.Balance)
	if err != nil {
		return nil, err
	}
	multiplier, err := decimal.NewFromString(dao.BoostMultiplier)
	if err != nil {
		return nil, err
	}

	return &account.Account{
		UserID:         dao.UserID,
		WalletAddress:  derefString(dao.WalletAddress),
		Balance:        balance,
		FarmReadyTime:  derefTime(dao.FarmReadyTime),
		FarmClaimCount: dao.FarmClaimCount,
		ActiveBoost: account.ActiveBoost{
			Multiplier: multiplier,
			EndTime:    derefTime(dao.BoostEndTime),
			Name:       dao.BoostName,
		},
		DailyCheckin: account.DailyCheckin{
			Streak:    dao.CheckinStreak,
			LastClaim: derefTime(dao.CheckinLastClaim),
		},
		ReferralCode:   dao.ReferralCode,
		ReferredBy:     derefString(dao.ReferredBy),
		ReferralCount:  dao.ReferralCount,
		WelcomeClaimed: dao.WelcomeClaimed,
		Version:        dao.Version,
		CreatedAt:      dao.CreatedAt,
		UpdatedAt:      dao.UpdatedAt,
	}, nil
}
