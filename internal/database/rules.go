package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"sticker-ledger-go/internal/models"
	"sticker-ledger-go/internal/store"

	"go.uber.org/zap"
)

func scanRule(row rowScanner) (*models.RewardRule, error) {
	var rule models.RewardRule
	var direction string
	var schema sql.NullString
	err := row.Scan(&rule.Id, &rule.Code, &direction, &rule.Amount, &rule.Enabled,
		&rule.Description, &schema, &rule.CreatedAt, &rule.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rule.Direction = models.Direction(direction)
	rule.MetadataSchema = schema.String
	return &rule, nil
}

func (s *Service) ListRules(ctx context.Context) ([]models.RewardRule, error) {
	zap.L().Debug("Querying reward rules")

	rows, err := s.db.QueryContext(ctx, queryListRules)
	if err != nil {
		zap.L().Error("Failed to query reward rules", zap.Error(err))
		return nil, fmt.Errorf("unable to query reward rules: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var rules []models.RewardRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("unable to scan reward rule: %w", err)
		}
		rules = append(rules, *rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reward rules: %w", err)
	}

	return rules, nil
}

func (s *Service) GetRuleByCode(ctx context.Context, code string) (*models.RewardRule, error) {
	rule, err := scanRule(s.db.QueryRowContext(ctx, queryGetRuleByCode, code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", store.ErrRuleNotFound, code)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to get rule %s: %w", code, err)
	}
	return rule, nil
}

func (s *Service) CreateRule(ctx context.Context, rule models.RewardRule) (*models.RewardRule, error) {
	now := time.Now().UTC()

	err := s.db.QueryRowContext(ctx, queryInsertRule,
		rule.Code, string(rule.Direction), rule.Amount, rule.Enabled,
		rule.Description, nullString(rule.MetadataSchema), now, now).Scan(&rule.Id)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%w: %s", store.ErrDuplicateRule, rule.Code)
	}
	if err != nil {
		zap.L().Error("Failed to insert reward rule", zap.String("code", rule.Code), zap.Error(err))
		return nil, fmt.Errorf("unable to insert reward rule: %w", err)
	}
	rule.CreatedAt = now
	rule.UpdatedAt = now

	zap.L().Info("Reward rule created",
		zap.Int64("id", rule.Id),
		zap.String("code", rule.Code),
		zap.String("direction", string(rule.Direction)),
		zap.Int64("amount", rule.Amount))
	return &rule, nil
}

func (s *Service) UpdateRule(ctx context.Context, rule models.RewardRule) (*models.RewardRule, error) {
	now := time.Now().UTC()

	result, err := s.db.ExecContext(ctx, queryUpdateRule,
		rule.Code, string(rule.Direction), rule.Amount, rule.Enabled,
		rule.Description, nullString(rule.MetadataSchema), now, rule.Id)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%w: %s", store.ErrDuplicateRule, rule.Code)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to update reward rule: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, fmt.Errorf("%w: id %d", store.ErrRuleNotFound, rule.Id)
	}

	updated, err := scanRule(s.db.QueryRowContext(ctx, queryGetRuleById, rule.Id))
	if err != nil {
		return nil, fmt.Errorf("unable to reload reward rule: %w", err)
	}

	zap.L().Info("Reward rule updated",
		zap.Int64("id", updated.Id),
		zap.String("code", updated.Code),
		zap.Int64("amount", updated.Amount),
		zap.Bool("enabled", updated.Enabled))
	return updated, nil
}

func (s *Service) SetRuleEnabled(ctx context.Context, code string, enabled bool) error {
	result, err := s.db.ExecContext(ctx, querySetRuleEnabled, enabled, time.Now().UTC(), code)
	if err != nil {
		return fmt.Errorf("unable to toggle reward rule: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", store.ErrRuleNotFound, code)
	}

	zap.L().Info("Reward rule toggled", zap.String("code", code), zap.Bool("enabled", enabled))
	return nil
}
