package reference_repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"procurement/internal/core/apperror"
	"procurement/internal/domain/workflow"
	"procurement/internal/infrastructure/storage/postgres"
)

const workflowsTable = "sys_workflows"

// WorkflowRepo implements workflow.DefinitionSource. Stages are stored as
// a jsonb array in definition order.
type WorkflowRepo struct {
	txm *postgres.TxManager
}

var _ workflow.DefinitionSource = (*WorkflowRepo)(nil)

// NewWorkflowRepo creates the repository.
func NewWorkflowRepo(txm *postgres.TxManager) *WorkflowRepo {
	return &WorkflowRepo{txm: txm}
}

// Definition implements workflow.DefinitionSource.
func (r *WorkflowRepo) Definition(ctx context.Context, workflowID string) (*workflow.Definition, error) {
	sql, args, err := selectWorkflow(workflowID).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	def := workflow.Definition{}
	var stages []byte
	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&def.ID, &def.Name, &stages); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NewNotFound("workflow", workflowID)
		}
		return nil, fmt.Errorf("load workflow: %w", err)
	}
	if err := json.Unmarshal(stages, &def.Stages); err != nil {
		return nil, fmt.Errorf("decode workflow %s stages: %w", workflowID, err)
	}
	return &def, nil
}

func selectWorkflow(workflowID string) squirrel.SelectBuilder {
	return builder().
		Select("id", "name", "stages").
		From(workflowsTable).
		Where(squirrel.Eq{"id": workflowID}).
		Where("is_active")
}
