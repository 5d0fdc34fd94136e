package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"llm-engine-service/internal/core/domain"
	output "llm-engine-service/internal/core/ports/output"
)

const modelEndpointColumns = `
	id, created_at, updated_at, name, owner, model_name, source,
	inference_framework, framework_image_tag, checkpoint_path, num_shards,
	gpus, gpu_type, min_workers, max_workers, public_inference, status,
	url, external_id, last_error, labels, fine_tune_id`

var modelEndpointSortColumns = map[string]bool{
	"created_at": true, "updated_at": true, "name": true, "status": true,
}

type modelEndpointRepo struct {
	pool *pgxpool.Pool
}

func NewModelEndpointRepository(pool *pgxpool.Pool) output.ModelEndpointRepository {
	return &modelEndpointRepo{pool: pool}
}

func (r *modelEndpointRepo) Create(ctx context.Context, e *domain.ModelEndpoint) error {
	labelsJSON, err := json.Marshal(e.Labels)
	if err != nil {
		return fmt.Errorf("marshal labels: %w", err)
	}

	query := `
		INSERT INTO model_endpoint
			(id, created_at, updated_at, name, owner, model_name, source,
			 inference_framework, framework_image_tag, checkpoint_path, num_shards,
			 gpus, gpu_type, min_workers, max_workers, public_inference, status,
			 url, external_id, last_error, labels, fine_tune_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)
	`
	_, err = r.pool.Exec(ctx, query,
		e.ID, e.CreatedAt, e.UpdatedAt, e.Name, e.Owner, e.ModelName, e.Source,
		e.InferenceFramework, e.FrameworkImageTag, e.CheckpointPath, e.NumShards,
		e.GPUs, e.GPUType, e.MinWorkers, e.MaxWorkers, e.Public, string(e.Status),
		e.URL, e.ExternalID, e.LastError, labelsJSON, e.FineTuneID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrModelEndpointNameConflict
		}
		return fmt.Errorf("create model endpoint: %w", err)
	}
	return nil
}

func (r *modelEndpointRepo) GetByID(ctx context.Context, id string) (*domain.ModelEndpoint, error) {
	query := `SELECT ` + modelEndpointColumns + ` FROM model_endpoint WHERE id = $1`
	e, err := scanModelEndpoint(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrModelEndpointNotFound
		}
		return nil, fmt.Errorf("get model endpoint by id: %w", err)
	}
	return e, nil
}

func (r *modelEndpointRepo) GetByName(ctx context.Context, owner, name string) (*domain.ModelEndpoint, error) {
	// Own endpoint wins over a public one with the same name
	query := `SELECT ` + modelEndpointColumns + `
		FROM model_endpoint
		WHERE name = $1 AND (owner = $2 OR public_inference)
		ORDER BY (owner = $2) DESC, created_at ASC
		LIMIT 1`
	e, err := scanModelEndpoint(r.pool.QueryRow(ctx, query, name, owner))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrModelEndpointNotFound
		}
		return nil, fmt.Errorf("get model endpoint by name: %w", err)
	}
	return e, nil
}

func (r *modelEndpointRepo) Update(ctx context.Context, e *domain.ModelEndpoint) error {
	labelsJSON, err := json.Marshal(e.Labels)
	if err != nil {
		return fmt.Errorf("marshal labels: %w", err)
	}

	query := `
		UPDATE model_endpoint
		SET status=$1, url=$2, external_id=$3, last_error=$4, min_workers=$5,
			max_workers=$6, public_inference=$7, labels=$8, updated_at=NOW()
		WHERE id=$9
	`
	result, err := r.pool.Exec(ctx, query,
		string(e.Status), e.URL, e.ExternalID, e.LastError, e.MinWorkers,
		e.MaxWorkers, e.Public, labelsJSON, e.ID,
	)
	if err != nil {
		return fmt.Errorf("update model endpoint: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrModelEndpointNotFound
	}
	return nil
}

func (r *modelEndpointRepo) Delete(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM model_endpoint WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete model endpoint: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrModelEndpointNotFound
	}
	return nil
}

func (r *modelEndpointRepo) List(ctx context.Context, filter output.ModelEndpointFilter) ([]*domain.ModelEndpoint, int, error) {
	conditions := []string{}
	args := []interface{}{}
	argPos := 1

	if filter.Owner != "" {
		if filter.IncludePublic {
			conditions = append(conditions, fmt.Sprintf("(owner = $%d OR public_inference)", argPos))
		} else {
			conditions = append(conditions, fmt.Sprintf("owner = $%d", argPos))
		}
		args = append(args, filter.Owner)
		argPos++
	}
	if filter.ModelName != "" {
		conditions = append(conditions, fmt.Sprintf("model_name = $%d", argPos))
		args = append(args, filter.ModelName)
		argPos++
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, strings.ToUpper(filter.Status))
		argPos++
	}

	whereClause := "1=1"
	if len(conditions) > 0 {
		whereClause = strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM model_endpoint WHERE %s", whereClause)
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count model endpoints: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM model_endpoint WHERE %s ORDER BY %s LIMIT $%d OFFSET $%d`,
		modelEndpointColumns, whereClause, orderClause(filter.SortBy, filter.Order, modelEndpointSortColumns), argPos, argPos+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list model endpoints: %w", err)
	}
	defer rows.Close()

	endpoints := []*domain.ModelEndpoint{}
	for rows.Next() {
		e, err := scanModelEndpoint(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan model endpoint row: %w", err)
		}
		endpoints = append(endpoints, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate model endpoint rows: %w", err)
	}

	return endpoints, total, nil
}

func scanModelEndpoint(row pgx.Row) (*domain.ModelEndpoint, error) {
	var e domain.ModelEndpoint
	var status string
	var labelsJSON []byte

	err := row.Scan(
		&e.ID, &e.CreatedAt, &e.UpdatedAt, &e.Name, &e.Owner, &e.ModelName, &e.Source,
		&e.InferenceFramework, &e.FrameworkImageTag, &e.CheckpointPath, &e.NumShards,
		&e.GPUs, &e.GPUType, &e.MinWorkers, &e.MaxWorkers, &e.Public, &status,
		&e.URL, &e.ExternalID, &e.LastError, &labelsJSON, &e.FineTuneID,
	)
	if err != nil {
		return nil, err
	}

	e.Status = domain.ModelEndpointStatus(status)
	e.Labels = make(map[string]string)
	if len(labelsJSON) > 0 {
		if err := json.Unmarshal(labelsJSON, &e.Labels); err != nil {
			return nil, fmt.Errorf("unmarshal labels: %w", err)
		}
	}
	return &e, nil
}
