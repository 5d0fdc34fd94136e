package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"llm-engine-service/internal/core/domain"
	output "llm-engine-service/internal/core/ports/output"
)

const fineTuneColumns = `
	id, created_at, updated_at, completed_at, owner, base_model,
	training_file, validation_file, hyperparameters, suffix, status,
	fine_tuned_model, external_id, last_error, attempts, model_registered`

var fineTuneSortColumns = map[string]bool{
	"created_at": true, "updated_at": true, "status": true, "base_model": true,
}

type fineTuneRepo struct {
	pool *pgxpool.Pool
}

func NewFineTuneRepository(pool *pgxpool.Pool) output.FineTuneRepository {
	return &fineTuneRepo{pool: pool}
}

func (r *fineTuneRepo) Create(ctx context.Context, ft *domain.FineTune) error {
	hpJSON, err := json.Marshal(ft.Hyperparameters)
	if err != nil {
		return fmt.Errorf("marshal hyperparameters: %w", err)
	}

	query := `
		INSERT INTO fine_tune
			(id, created_at, updated_at, completed_at, owner, base_model,
			 training_file, validation_file, hyperparameters, suffix, status,
			 fine_tuned_model, external_id, last_error, attempts, model_registered)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
	`
	_, err = r.pool.Exec(ctx, query,
		ft.ID, ft.CreatedAt, ft.UpdatedAt, ft.CompletedAt, ft.Owner, ft.BaseModel,
		ft.TrainingFile, ft.ValidationFile, hpJSON, ft.Suffix, string(ft.Status),
		ft.FineTunedModel, ft.ExternalID, ft.LastError, ft.Attempts, ft.ModelRegistered,
	)
	if err != nil {
		return fmt.Errorf("create fine-tune: %w", err)
	}
	return nil
}

func (r *fineTuneRepo) GetByID(ctx context.Context, owner, id string) (*domain.FineTune, error) {
	query := `SELECT ` + fineTuneColumns + ` FROM fine_tune WHERE id = $1 AND owner = $2`
	ft, err := scanFineTune(r.pool.QueryRow(ctx, query, id, owner))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrFineTuneNotFound
		}
		return nil, fmt.Errorf("get fine-tune by id: %w", err)
	}
	return ft, nil
}

func (r *fineTuneRepo) GetByIDAny(ctx context.Context, id string) (*domain.FineTune, error) {
	query := `SELECT ` + fineTuneColumns + ` FROM fine_tune WHERE id = $1`
	ft, err := scanFineTune(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrFineTuneNotFound
		}
		return nil, fmt.Errorf("get fine-tune: %w", err)
	}
	return ft, nil
}

func (r *fineTuneRepo) Update(ctx context.Context, ft *domain.FineTune, expected domain.FineTuneStatus) error {
	query := `
		UPDATE fine_tune
		SET status=$1, completed_at=$2, fine_tuned_model=$3, external_id=$4,
			last_error=$5, attempts=$6, model_registered=$7, updated_at=NOW()
		WHERE id=$8 AND ($9::text = '' OR status = $9::text)
	`
	result, err := r.pool.Exec(ctx, query,
		string(ft.Status), ft.CompletedAt, ft.FineTunedModel, ft.ExternalID,
		ft.LastError, ft.Attempts, ft.ModelRegistered, ft.ID, string(expected),
	)
	if err != nil {
		return fmt.Errorf("update fine-tune: %w", err)
	}
	if result.RowsAffected() > 0 {
		return nil
	}
	if expected == "" {
		return domain.ErrFineTuneNotFound
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM fine_tune WHERE id = $1)`, ft.ID).Scan(&exists); err != nil {
		return fmt.Errorf("check fine-tune: %w", err)
	}
	if !exists {
		return domain.ErrFineTuneNotFound
	}
	return domain.ErrFineTuneStatusConflict
}

func (r *fineTuneRepo) List(ctx context.Context, filter output.FineTuneFilter) ([]*domain.FineTune, int, error) {
	conditions := []string{}
	args := []interface{}{}
	argPos := 1

	if filter.Owner != "" {
		conditions = append(conditions, fmt.Sprintf("owner = $%d", argPos))
		args = append(args, filter.Owner)
		argPos++
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, strings.ToUpper(filter.Status))
		argPos++
	}
	if filter.BaseModel != "" {
		conditions = append(conditions, fmt.Sprintf("base_model = $%d", argPos))
		args = append(args, filter.BaseModel)
		argPos++
	}

	whereClause := "1=1"
	if len(conditions) > 0 {
		whereClause = strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM fine_tune WHERE %s", whereClause)
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count fine-tunes: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM fine_tune WHERE %s ORDER BY %s LIMIT $%d OFFSET $%d`,
		fineTuneColumns, whereClause, orderClause(filter.SortBy, filter.Order, fineTuneSortColumns), argPos, argPos+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list fine-tunes: %w", err)
	}
	defer rows.Close()

	fineTunes, err := collectFineTunes(rows)
	if err != nil {
		return nil, 0, err
	}
	return fineTunes, total, nil
}

func (r *fineTuneRepo) ListByStatus(ctx context.Context, statuses []domain.FineTuneStatus, limit int) ([]*domain.FineTune, error) {
	values := make([]string, len(statuses))
	for i, s := range statuses {
		values[i] = string(s)
	}

	query := `SELECT ` + fineTuneColumns + `
		FROM fine_tune
		WHERE status = ANY($1)
		ORDER BY created_at ASC
		LIMIT $2`
	rows, err := r.pool.Query(ctx, query, values, limit)
	if err != nil {
		return nil, fmt.Errorf("list fine-tunes by status: %w", err)
	}
	defer rows.Close()

	return collectFineTunes(rows)
}

func (r *fineTuneRepo) ListUnregistered(ctx context.Context, limit int) ([]*domain.FineTune, error) {
	query := `SELECT ` + fineTuneColumns + `
		FROM fine_tune
		WHERE status = $1 AND NOT model_registered
		ORDER BY completed_at ASC
		LIMIT $2`
	rows, err := r.pool.Query(ctx, query, string(domain.FineTuneStatusSuccess), limit)
	if err != nil {
		return nil, fmt.Errorf("list unregistered fine-tunes: %w", err)
	}
	defer rows.Close()

	return collectFineTunes(rows)
}

func collectFineTunes(rows pgx.Rows) ([]*domain.FineTune, error) {
	fineTunes := []*domain.FineTune{}
	for rows.Next() {
		ft, err := scanFineTune(rows)
		if err != nil {
			return nil, fmt.Errorf("scan fine-tune row: %w", err)
		}
		fineTunes = append(fineTunes, ft)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fine-tune rows: %w", err)
	}
	return fineTunes, nil
}

func scanFineTune(row pgx.Row) (*domain.FineTune, error) {
	var ft domain.FineTune
	var status string
	var hpJSON []byte

	err := row.Scan(
		&ft.ID, &ft.CreatedAt, &ft.UpdatedAt, &ft.CompletedAt, &ft.Owner, &ft.BaseModel,
		&ft.TrainingFile, &ft.ValidationFile, &hpJSON, &ft.Suffix, &status,
		&ft.FineTunedModel, &ft.ExternalID, &ft.LastError, &ft.Attempts, &ft.ModelRegistered,
	)
	if err != nil {
		return nil, err
	}

	ft.Status = domain.FineTuneStatus(status)
	ft.Hyperparameters = make(map[string]any)
	if len(hpJSON) > 0 {
		if err := json.Unmarshal(hpJSON, &ft.Hyperparameters); err != nil {
			return nil, fmt.Errorf("unmarshal hyperparameters: %w", err)
		}
	}
	return &ft, nil
}

// orderClause builds a safe ORDER BY from user input, defaulting to newest first
func orderClause(sortBy, order string, allowed map[string]bool) string {
	column := "created_at"
	if allowed[sortBy] {
		column = sortBy
	}
	dir := "DESC"
	if strings.EqualFold(order, "asc") {
		dir = "ASC"
	}
	return column + " " + dir
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
