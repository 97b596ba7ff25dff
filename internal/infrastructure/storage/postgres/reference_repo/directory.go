package reference_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"procurement/internal/domain/directory"
	"procurement/internal/infrastructure/storage/postgres"
)

const usersTable = "users"

var userColumns = postgres.ExtractDBColumns[directory.UserProfile]()

// DirectoryRepo implements directory.Directory over the users table.
type DirectoryRepo struct {
	txm *postgres.TxManager
}

var _ directory.Directory = (*DirectoryRepo)(nil)

// NewDirectoryRepo creates the repository.
func NewDirectoryRepo(txm *postgres.TxManager) *DirectoryRepo {
	return &DirectoryRepo{txm: txm}
}

// Resolve implements directory.Directory. Profiles come back in the order of
// userIDs, unknown and repeated ids omitted.
func (r *DirectoryRepo) Resolve(ctx context.Context, userIDs []string) ([]directory.UserProfile, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	sql, args, err := selectUsers(userIDs).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []directory.UserProfile
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("resolve users: %w", err)
	}

	byID := make(map[string]directory.UserProfile, len(rows))
	for _, u := range rows {
		byID[u.ID] = u
	}
	out := make([]directory.UserProfile, 0, len(rows))
	for _, uid := range userIDs {
		if u, ok := byID[uid]; ok {
			out = append(out, u)
			delete(byID, uid)
		}
	}
	return out, nil
}

func selectUsers(userIDs []string) squirrel.SelectBuilder {
	return builder().
		Select(userColumns...).
		From(usersTable).
		Where(squirrel.Eq{"id": userIDs}).
		Where("deleted_at IS NULL")
}
