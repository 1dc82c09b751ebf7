package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/kingpin-stream/economy-core/internal/app/domain/business"
	"github.com/kingpin-stream/economy-core/internal/app/domain/mission"
)

// --- MissionStore ------------------------------------------------------

func (s *Store) ListTemplates(ctx context.Context, t mission.Type) ([]mission.Template, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT id, mission_type, category, objective_type, objective_base_value,
			reward_wealth_base, reward_xp_base, is_luck_based
		FROM mission_templates WHERE mission_type = $1 ORDER BY id
	`, string(t))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []mission.Template
	for rows.Next() {
		var tpl mission.Template
		if err := rows.Scan(&tpl.ID, &tpl.MissionType, &tpl.Category, &tpl.ObjectiveType,
			&tpl.ObjectiveBaseValue, &tpl.RewardWealthBase, &tpl.RewardXPBase, &tpl.IsLuckBased); err != nil {
			return nil, err
		}
		out = append(out, tpl)
	}
	return out, rows.Err()
}

func scanAssignment(sc rowScanner) (mission.Assignment, error) {
	var a mission.Assignment
	err := sc.Scan(&a.ID, &a.UserID, &a.TemplateID, &a.MissionType, &a.Category, &a.ObjectiveType,
		&a.ObjectiveValue, &a.CurrentProgress, &a.RewardWealth, &a.RewardXP, &a.Status, &a.ExpiresAt)
	return a, err
}

func (s *Store) ListUserAssignments(ctx context.Context, userID string, t mission.Type) ([]mission.Assignment, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT id, user_id, template_id, mission_type, category, objective_type,
			objective_value, current_progress, reward_wealth, reward_xp, status, expires_at
		FROM mission_assignments WHERE user_id = $1 AND mission_type = $2 ORDER BY id
	`, userID, string(t))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []mission.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) CreateAssignment(ctx context.Context, a mission.Assignment) (mission.Assignment, error) {
	if a.ID == "" {
		a.ID = newID()
	}
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO mission_assignments (id, user_id, template_id, mission_type, category, objective_type,
			objective_value, current_progress, reward_wealth, reward_xp, status, expires_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, a.ID, a.UserID, a.TemplateID, string(a.MissionType), a.Category, a.ObjectiveType,
		a.ObjectiveValue, a.CurrentProgress, a.RewardWealth, a.RewardXP, string(a.Status), a.ExpiresAt)
	if err != nil {
		return mission.Assignment{}, err
	}
	return a, nil
}

func (s *Store) UpdateAssignment(ctx context.Context, a mission.Assignment) (mission.Assignment, error) {
	result, err := s.q(ctx).ExecContext(ctx, `
		UPDATE mission_assignments SET current_progress = $2, status = $3 WHERE id = $1
	`, a.ID, a.CurrentProgress, string(a.Status))
	if err != nil {
		return mission.Assignment{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return mission.Assignment{}, sql.ErrNoRows
	}
	return a, nil
}

func (s *Store) GetCompletion(ctx context.Context, userID string, t mission.Type, periodKey string) (*mission.Completion, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT id, user_id, mission_type, period_key, total_wealth, total_xp, claimed_at
		FROM mission_completions WHERE user_id = $1 AND mission_type = $2 AND period_key = $3
	`, userID, string(t), periodKey)
	var c mission.Completion
	err := row.Scan(&c.ID, &c.UserID, &c.MissionType, &c.PeriodKey, &c.TotalWealth, &c.TotalXP, &c.ClaimedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) CreateCompletion(ctx context.Context, c mission.Completion) (mission.Completion, error) {
	if c.ID == "" {
		c.ID = newID()
	}
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO mission_completions (id, user_id, mission_type, period_key, total_wealth, total_xp, claimed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, c.ID, c.UserID, string(c.MissionType), c.PeriodKey, c.TotalWealth, c.TotalXP, c.ClaimedAt)
	if err != nil {
		return mission.Completion{}, err
	}
	return c, nil
}

func (s *Store) ListExpiredAssignments(ctx context.Context, before time.Time, limit int) ([]mission.Assignment, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT id, user_id, template_id, mission_type, category, objective_type,
			objective_value, current_progress, reward_wealth, reward_xp, status, expires_at
		FROM mission_assignments WHERE status = $1 AND expires_at < $2
		ORDER BY expires_at LIMIT $3
	`, string(mission.StatusActive), before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []mission.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// --- BusinessStore ------------------------------------------------------

func (s *Store) AppendRevenueEntry(ctx context.Context, e business.RevenueEntry) (business.RevenueEntry, error) {
	if e.ID == "" {
		e.ID = newID()
	}
	if e.TickedAt.IsZero() {
		e.TickedAt = time.Now().UTC()
	}
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO business_revenue_history (id, user_id, item_id, gross_revenue, operating_cost, net_revenue, ticked_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, e.ID, e.UserID, e.ItemID, e.GrossRevenue, e.OperatingCost, e.NetRevenue, e.TickedAt)
	if err != nil {
		return business.RevenueEntry{}, err
	}
	return e, nil
}

func (s *Store) ListRevenueHistory(ctx context.Context, userID string, limit int) ([]business.RevenueEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT id, user_id, item_id, gross_revenue, operating_cost, net_revenue, ticked_at
		FROM business_revenue_history WHERE user_id = $1 ORDER BY ticked_at DESC LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []business.RevenueEntry
	for rows.Next() {
		var e business.RevenueEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.ItemID, &e.GrossRevenue, &e.OperatingCost, &e.NetRevenue, &e.TickedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) ListBusinessOwners(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 10000
	}
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT DISTINCT i.user_id FROM items i
		JOIN item_defs d ON d.id = i.item_def_id
		WHERE d.business_daily_revenue > 0 LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
