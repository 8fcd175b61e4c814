package postgres

import (
	"context"
	"errors"
	"fmt"

	"sticker-ledger-go/internal/models"
	"sticker-ledger-go/internal/store"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const ruleColumns = `id, code, direction, amount, is_enabled, description, metadata_schema, created_at, updated_at`

func scanRule(row pgx.Row) (*models.RewardRule, error) {
	var rule models.RewardRule
	var direction string
	var schema *string
	err := row.Scan(&rule.Id, &rule.Code, &direction, &rule.Amount, &rule.Enabled,
		&rule.Description, &schema, &rule.CreatedAt, &rule.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rule.Direction = models.Direction(direction)
	rule.MetadataSchema = derefString(schema)
	return &rule, nil
}

func (s *Service) ListRules(ctx context.Context) ([]models.RewardRule, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+ruleColumns+` FROM reward_rules ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("unable to query reward rules: %w", err)
	}
	defer rows.Close()

	var rules []models.RewardRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("unable to scan reward rule: %w", err)
		}
		rules = append(rules, *rule)
	}
	return rules, rows.Err()
}

func (s *Service) GetRuleByCode(ctx context.Context, code string) (*models.RewardRule, error) {
	rule, err := scanRule(s.pool.QueryRow(ctx, `SELECT `+ruleColumns+` FROM reward_rules WHERE code = $1`, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", store.ErrRuleNotFound, code)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to get rule %s: %w", code, err)
	}
	return rule, nil
}

func (s *Service) CreateRule(ctx context.Context, rule models.RewardRule) (*models.RewardRule, error) {
	created, err := scanRule(s.pool.QueryRow(ctx, `
		INSERT INTO reward_rules (code, direction, amount, is_enabled, description, metadata_schema)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+ruleColumns,
		rule.Code, string(rule.Direction), rule.Amount, rule.Enabled, rule.Description, optionalString(rule.MetadataSchema)))
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%w: %s", store.ErrDuplicateRule, rule.Code)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to insert reward rule: %w", err)
	}

	zap.L().Info("Reward rule created",
		zap.Int64("id", created.Id),
		zap.String("code", created.Code),
		zap.Int64("amount", created.Amount))
	return created, nil
}

func (s *Service) UpdateRule(ctx context.Context, rule models.RewardRule) (*models.RewardRule, error) {
	updated, err := scanRule(s.pool.QueryRow(ctx, `
		UPDATE reward_rules
		SET code = $1, direction = $2, amount = $3, is_enabled = $4, description = $5, metadata_schema = $6, updated_at = NOW()
		WHERE id = $7
		RETURNING `+ruleColumns,
		rule.Code, string(rule.Direction), rule.Amount, rule.Enabled, rule.Description, optionalString(rule.MetadataSchema), rule.Id))
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%w: %s", store.ErrDuplicateRule, rule.Code)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", store.ErrRuleNotFound, rule.Id)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to update reward rule: %w", err)
	}

	zap.L().Info("Reward rule updated", zap.String("code", updated.Code), zap.Int64("amount", updated.Amount))
	return updated, nil
}

func (s *Service) SetRuleEnabled(ctx context.Context, code string, enabled bool) error {
	tag, err := s.pool.Exec(ctx, `UPDATE reward_rules SET is_enabled = $1, updated_at = NOW() WHERE code = $2`, enabled, code)
	if err != nil {
		return fmt.Errorf("unable to toggle reward rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", store.ErrRuleNotFound, code)
	}
	zap.L().Info("Reward rule toggled", zap.String("code", code), zap.Bool("enabled", enabled))
	return nil
}
