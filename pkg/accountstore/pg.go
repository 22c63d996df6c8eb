package accountstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/chainsafe/qtx-rewards/pkg/account"
)

const defaultMaxRetries = 5

// errStaleVersion signals that a conditional update matched no row.
var errStaleVersion = errors.New("stale account version")

type pgStore struct {
	db         *bun.DB
	maxRetries int
}

// NewStore creates a new postgres implementation of the account store.
// maxRetries bounds the re-read and re-apply loop of conditional updates.
func NewStore(db *bun.DB, maxRetries int) *pgStore {
	if maxRetries < 1 {
		maxRetries = defaultMaxRetries
	}
	return &pgStore{db: db, maxRetries: maxRetries}
}

func (s *pgStore) CreateAccount(ctx context.Context, acc *account.Account) error {
	dao := toAccountDao(acc)
	dao.Version = 1

	_, err := s.db.NewInsert().
		Model(dao).
		Exec(ctx)
	if err != nil {
		var pgErr pgdriver.Error
		if errors.As(err, &pgErr) && pgErr.IntegrityViolation() {
			if strings.Contains(pgErr.Field('n'), "referral_code") {
				return ErrReferralCodeTaken
			}
			return ErrAccountExists
		}
		return fmt.Errorf("failed to create account: %w", err)
	}

	acc.Version = dao.Version
	return nil
}

func (s *pgStore) GetAccount(ctx context.Context, userID string) (*account.Account, error) {
	return s.getAccount(ctx, s.db, "user_id = ?", userID)
}

func (s *pgStore) GetAccountByReferralCode(ctx context.Context, code string) (*account.Account, error) {
	return s.getAccount(ctx, s.db, "referral_code = ?", code)
}

func (s *pgStore) getAccount(ctx context.Context, db bun.IDB, where string, arg any) (*account.Account, error) {
	dao := new(AccountDao)
	err := db.NewSelect().
		Model(dao).
		Where(where, arg).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	acc, err := toAccount(dao)
	if err != nil {
		return nil, fmt.Errorf("failed to decode account %s: %w", dao.UserID, err)
	}
	return acc, nil
}

func (s *pgStore) ListAccounts(ctx context.Context) ([]*account.Account, error) {
	var daos []AccountDao
	err := s.db.NewSelect().
		Model(&daos).
		Order("user_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	accounts := make([]*account.Account, 0, len(daos))
	for i := range daos {
		acc, err := toAccount(&daos[i])
		if err != nil {
			return nil, fmt.Errorf("failed to decode account %s: %w", daos[i].UserID, err)
		}
		accounts = append(accounts, acc)
	}
	return accounts, nil
}

func (s *pgStore) UpdateAccount(ctx context.Context, userID string, mutate MutateFunc) (*account.Account, error) {
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		acc, err := s.applyMutation(ctx, s.db, userID, mutate)
		if errors.Is(err, errStaleVersion) {
			continue
		}
		return acc, err
	}
	return nil, fmt.Errorf("%w: user %s after %d attempts", ErrConflict, userID, s.maxRetries)
}

func (s *pgStore) CompleteTask(ctx context.Context, userID, taskID string, mutate MutateFunc) (*account.Account, error) {
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		var updated *account.Account
		err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			res, err := tx.NewInsert().
				Model(&TaskCompletionDao{UserID: userID, TaskID: taskID}).
				On("CONFLICT (user_id, task_id) DO NOTHING").
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to record task completion: %w", err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return ErrTaskCompleted
			}

			updated, err = s.applyMutation(ctx, tx, userID, mutate)
			return err
		})
		if errors.Is(err, errStaleVersion) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
	return nil, fmt.Errorf("%w: user %s after %d attempts", ErrConflict, userID, s.maxRetries)
}

// applyMutation reads the account, applies mutate and writes it back only if
// the version is unchanged. It returns errStaleVersion when another writer won.
func (s *pgStore) applyMutation(ctx context.Context, db bun.IDB, userID string, mutate MutateFunc) (*account.Account, error) {
	current, err := s.getAccount(ctx, db, "user_id = ?", userID)
	if err != nil {
		return nil, err
	}

	next := current.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	next.UserID = current.UserID
	next.Version = current.Version + 1
	if next.UpdatedAt.IsZero() || !next.UpdatedAt.After(current.UpdatedAt) {
		next.UpdatedAt = time.Now()
	}

	dao := toAccountDao(next)
	res, err := db.NewUpdate().
		Model(dao).
		ExcludeColumn("user_id", "created_at").
		Where("user_id = ?", userID).
		Where("version = ?", current.Version).
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to update account: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, errStaleVersion
	}
	return next, nil
}

func (s *pgStore) HasCompletedTask(ctx context.Context, userID, taskID string) (bool, error) {
	exists, err := s.db.NewSelect().
		Model((*TaskCompletionDao)(nil)).
		Where("user_id = ?", userID).
		Where("task_id = ?", taskID).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check task completion: %w", err)
	}
	return exists, nil
}

func (s *pgStore) CompletedTasks(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := s.db.NewSelect().
		Model((*TaskCompletionDao)(nil)).
		Column("task_id").
		Where("user_id = ?", userID).
		Order("task_id ASC").
		Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("failed to list completed tasks: %w", err)
	}
	return ids, nil
}

func (s *pgStore) SubmitTask(ctx context.Context, sub *account.TaskSubmission) (*account.TaskSubmission, error) {
	if _, err := s.GetAccount(ctx, sub.UserID); err != nil {
		return nil, err
	}

	dao := &TaskSubmissionDao{
		UserID:      sub.UserID,
		TaskID:      sub.TaskID,
		ExternalID:  sub.ExternalID,
		SubmittedAt: sub.SubmittedAt,
	}
	if dao.SubmittedAt.IsZero() {
		dao.SubmittedAt = time.Now()
	}
	_, err := s.db.NewInsert().
		Model(dao).
		On("CONFLICT (user_id, task_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to record task submission: %w", err)
	}

	stored, err := s.GetTaskSubmission(ctx, sub.UserID, sub.TaskID)
	if err != nil {
		return nil, err
	}
	if stored.ExternalID != sub.ExternalID {
		return nil, ErrSubmissionExists
	}
	return stored, nil
}

func (s *pgStore) GetTaskSubmission(ctx context.Context, userID, taskID string) (*account.TaskSubmission, error) {
	dao := new(TaskSubmissionDao)
	err := s.db.NewSelect().
		Model(dao).
		Where("user_id = ?", userID).
		Where("task_id = ?", taskID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("failed to get task submission: %w", err)
	}
	return toTaskSubmission(dao), nil
}
