package repository

import (
	"context"

	"designlens/internal/domain/template"

	"github.com/jackc/pgx/v5"
)

type PostgresTemplateRepository struct {
	db DBTX
}

func NewTemplateRepository(db DBTX) TemplateRepository {
	return &PostgresTemplateRepository{db: db}
}

func (r *PostgresTemplateRepository) GetByID(ctx context.Context, id string) (template.Template, error) {
	var t template.Template
	err := r.db.QueryRow(ctx,
		`SELECT id, name, system_prompt, instructions, model FROM analysis_templates WHERE id = $1`, id).
		Scan(&t.ID, &t.Name, &t.SystemPrompt, &t.Instructions, &t.Model)
	if err != nil {
		return template.Template{}, mapErr(err)
	}
	return t, nil
}

func (r *PostgresTemplateRepository) List(ctx context.Context) ([]template.Template, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, name, system_prompt, instructions, model FROM analysis_templates ORDER BY name`)
	if err != nil {
		return nil, mapErr(err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (template.Template, error) {
		var t template.Template
		err := row.Scan(&t.ID, &t.Name, &t.SystemPrompt, &t.Instructions, &t.Model)
		return t, err
	})
}
