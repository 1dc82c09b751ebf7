package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/kingpin-stream/economy-core/internal/app/domain/buff"
	"github.com/kingpin-stream/economy-core/internal/app/domain/consumable"
	"github.com/kingpin-stream/economy-core/internal/app/domain/cooldown"
	"github.com/kingpin-stream/economy-core/internal/app/domain/currency"
	"github.com/kingpin-stream/economy-core/internal/app/domain/inventory"
)

// --- CooldownStore ----------------------------------------------------------

func (s *Store) GetCooldown(ctx context.Context, userID string, cmd cooldown.CommandType) (cooldown.Cooldown, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT user_id, command_type, target_identifier, expires_at, jailed_until
		FROM cooldowns WHERE user_id = $1 AND command_type = $2
	`, userID, string(cmd))
	var (
		c           cooldown.Cooldown
		target      sql.NullString
		jailedUntil sql.NullTime
	)
	err := row.Scan(&c.UserID, &c.CommandType, &target, &c.ExpiresAt, &jailedUntil)
	if err == sql.ErrNoRows {
		return cooldown.Cooldown{UserID: userID, CommandType: cmd}, nil
	}
	if err != nil {
		return cooldown.Cooldown{}, err
	}
	c.TargetIdentifier = fromNullString(target)
	if jailedUntil.Valid {
		t := jailedUntil.Time.UTC()
		c.JailedUntil = &t
	}
	return c, nil
}

func (s *Store) UpsertCooldown(ctx context.Context, c cooldown.Cooldown) (cooldown.Cooldown, error) {
	var jailedUntil sql.NullTime
	if c.JailedUntil != nil {
		jailedUntil = toNullTime(*c.JailedUntil)
	}
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO cooldowns (user_id, command_type, target_identifier, expires_at, jailed_until)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (user_id, command_type) DO UPDATE
		SET target_identifier = $3, expires_at = $4, jailed_until = $5
	`, c.UserID, string(c.CommandType), toNullString(c.TargetIdentifier), c.ExpiresAt, jailedUntil)
	if err != nil {
		return cooldown.Cooldown{}, err
	}
	return c, nil
}

func (s *Store) ListExpiredJail(ctx context.Context, before time.Time, limit int) ([]cooldown.Cooldown, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT user_id, command_type, target_identifier, expires_at, jailed_until
		FROM cooldowns WHERE command_type = $1 AND jailed_until < $2
		ORDER BY jailed_until LIMIT $3
	`, string(cooldown.Jail), before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []cooldown.Cooldown
	for rows.Next() {
		var (
			c           cooldown.Cooldown
			target      sql.NullString
			jailedUntil sql.NullTime
		)
		if err := rows.Scan(&c.UserID, &c.CommandType, &target, &c.ExpiresAt, &jailedUntil); err != nil {
			return nil, err
		}
		c.TargetIdentifier = fromNullString(target)
		if jailedUntil.Valid {
			t := jailedUntil.Time.UTC()
			c.JailedUntil = &t
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) ClearCooldown(ctx context.Context, userID string, cmd cooldown.CommandType) error {
	_, err := s.q(ctx).ExecContext(ctx, `DELETE FROM cooldowns WHERE user_id = $1 AND command_type = $2`, userID, string(cmd))
	return err
}

// --- InventoryStore ----------------------------------------------------------

func (s *Store) GetItemDef(ctx context.Context, id string) (inventory.ItemDef, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT id, name, type, tier, base_durability, purchase_price, sell_price,
			combat_bonus, business_daily_revenue, business_operating_cost
		FROM item_defs WHERE id = $1
	`, id)
	var d inventory.ItemDef
	err := row.Scan(&d.ID, &d.Name, &d.Type, &d.Tier, &d.BaseDurability, &d.PurchasePrice,
		&d.SellPrice, &d.CombatBonus, &d.BusinessDailyRevenue, &d.BusinessOperatingCost)
	return d, err
}

func (s *Store) ListItemDefs(ctx context.Context) ([]inventory.ItemDef, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT id, name, type, tier, base_durability, purchase_price, sell_price,
			combat_bonus, business_daily_revenue, business_operating_cost
		FROM item_defs ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []inventory.ItemDef
	for rows.Next() {
		var d inventory.ItemDef
		if err := rows.Scan(&d.ID, &d.Name, &d.Type, &d.Tier, &d.BaseDurability, &d.PurchasePrice,
			&d.SellPrice, &d.CombatBonus, &d.BusinessDailyRevenue, &d.BusinessOperatingCost); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func scanItem(sc rowScanner) (inventory.Item, error) {
	var (
		it    inventory.Item
		slot  sql.NullString
		esc   sql.NullTime
	)
	if err := sc.Scan(&it.ID, &it.UserID, &it.ItemDefID, &it.Durability, &it.IsEquipped,
		&slot, &it.IsEscrowed, &esc, &it.CreatedAt); err != nil {
		return inventory.Item{}, err
	}
	it.Slot = inventory.Slot(fromNullString(slot))
	it.EscrowExpiresAt = fromNullTime(esc)
	return it, nil
}

func (s *Store) CreateItem(ctx context.Context, it inventory.Item) (inventory.Item, error) {
	if it.ID == "" {
		it.ID = newID()
	}
	it.CreatedAt = time.Now().UTC()
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO items (id, user_id, item_def_id, durability, is_equipped, slot, is_escrowed, escrow_expires_at, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, it.ID, it.UserID, it.ItemDefID, it.Durability, it.IsEquipped, toNullString(string(it.Slot)),
		it.IsEscrowed, toNullTime(it.EscrowExpiresAt), it.CreatedAt)
	if err != nil {
		return inventory.Item{}, err
	}
	return it, nil
}

func (s *Store) UpdateItem(ctx context.Context, it inventory.Item) (inventory.Item, error) {
	result, err := s.q(ctx).ExecContext(ctx, `
		UPDATE items SET durability = $2, is_equipped = $3, slot = $4, is_escrowed = $5, escrow_expires_at = $6
		WHERE id = $1
	`, it.ID, it.Durability, it.IsEquipped, toNullString(string(it.Slot)), it.IsEscrowed, toNullTime(it.EscrowExpiresAt))
	if err != nil {
		return inventory.Item{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return inventory.Item{}, sql.ErrNoRows
	}
	return it, nil
}

func (s *Store) GetItem(ctx context.Context, id string) (inventory.Item, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT id, user_id, item_def_id, durability, is_equipped, slot, is_escrowed, escrow_expires_at, created_at
		FROM items WHERE id = $1
	`, id)
	return scanItem(row)
}

func (s *Store) DeleteItem(ctx context.Context, id string) error {
	_, err := s.q(ctx).ExecContext(ctx, `DELETE FROM items WHERE id = $1`, id)
	return err
}

func (s *Store) ListUserItems(ctx context.Context, userID string) ([]inventory.Item, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT id, user_id, item_def_id, durability, is_equipped, slot, is_escrowed, escrow_expires_at, created_at
		FROM items WHERE user_id = $1 ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []inventory.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (s *Store) CountUserItems(ctx context.Context, userID string, escrowed bool) (int, error) {
	var n int
	err := s.q(ctx).QueryRowContext(ctx, `
		SELECT COUNT(*) FROM items WHERE user_id = $1 AND is_escrowed = $2
	`, userID, escrowed).Scan(&n)
	return n, err
}

func (s *Store) ListExpiredEscrow(ctx context.Context, before time.Time, limit int) ([]inventory.Item, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT id, user_id, item_def_id, durability, is_equipped, slot, is_escrowed, escrow_expires_at, created_at
		FROM items WHERE is_escrowed = true AND escrow_expires_at < $1
		ORDER BY escrow_expires_at LIMIT $2
	`, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []inventory.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// --- BuffStore ----------------------------------------------------------

func scanBuff(sc rowScanner) (buff.Buff, error) {
	var (
		b   buff.Buff
		exp sql.NullTime
	)
	if err := sc.Scan(&b.ID, &b.UserID, &b.BuffType, &b.Category, &b.Multiplier, &b.Source, &exp, &b.IsActive); err != nil {
		return buff.Buff{}, err
	}
	b.ExpiresAt = fromNullTime(exp)
	return b, nil
}

func (s *Store) UpsertBuff(ctx context.Context, b buff.Buff) (buff.Buff, error) {
	if b.ID == "" {
		b.ID = newID()
	}
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO buffs (id, user_id, buff_type, category, multiplier, source, expires_at, is_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (id) DO UPDATE SET multiplier = $5, source = $6, expires_at = $7, is_active = $8
	`, b.ID, b.UserID, b.BuffType, b.Category, b.Multiplier, string(b.Source), toNullTime(b.ExpiresAt), b.IsActive)
	if err != nil {
		return buff.Buff{}, err
	}
	return b, nil
}

func (s *Store) GetActiveBuff(ctx context.Context, userID, buffType string) (*buff.Buff, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT id, user_id, buff_type, category, multiplier, source, expires_at, is_active
		FROM buffs WHERE user_id = $1 AND buff_type = $2 AND is_active = true
	`, userID, buffType)
	b, err := scanBuff(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *Store) ListActiveBuffs(ctx context.Context, userID string) ([]buff.Buff, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT id, user_id, buff_type, category, multiplier, source, expires_at, is_active
		FROM buffs WHERE user_id = $1 AND is_active = true
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []buff.Buff
	for rows.Next() {
		b, err := scanBuff(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) ListExpiredBuffs(ctx context.Context, before time.Time, limit int) ([]buff.Buff, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT id, user_id, buff_type, category, multiplier, source, expires_at, is_active
		FROM buffs WHERE is_active = true AND expires_at IS NOT NULL AND expires_at < $1
		ORDER BY expires_at LIMIT $2
	`, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []buff.Buff
	for rows.Next() {
		b, err := scanBuff(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) DeactivateBuff(ctx context.Context, id string) error {
	_, err := s.q(ctx).ExecContext(ctx, `UPDATE buffs SET is_active = false WHERE id = $1`, id)
	return err
}

// --- CurrencyStore --------------------------------------------------------

func (s *Store) AppendTransaction(ctx context.Context, tx currency.Transaction) (currency.Transaction, error) {
	if tx.ID == "" {
		tx.ID = newID()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO token_transactions (id, user_id, amount, type, description, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, tx.ID, tx.UserID, tx.Amount, string(tx.Type), tx.Description, tx.CreatedAt)
	if err != nil {
		return currency.Transaction{}, err
	}
	return tx, nil
}

func (s *Store) ListTransactions(ctx context.Context, userID string, limit int) ([]currency.Transaction, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT id, user_id, amount, type, description, created_at
		FROM token_transactions WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []currency.Transaction
	for rows.Next() {
		var tx currency.Transaction
		if err := rows.Scan(&tx.ID, &tx.UserID, &tx.Amount, &tx.Type, &tx.Description, &tx.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (s *Store) ListUsersForDailyReset(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 10000
	}
	rows, err := s.q(ctx).QueryContext(ctx, `SELECT id FROM users WHERE tokens_earned_today > 0 LIMIT $1`, limit)
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

func (s *Store) ListUsersForDecay(ctx context.Context, softCap int64, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 10000
	}
	rows, err := s.q(ctx).QueryContext(ctx, `SELECT id FROM users WHERE tokens > $1 LIMIT $2`, softCap, limit)
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

// --- ConsumableStore --------------------------------------------------------

func (s *Store) ListCatalog(ctx context.Context) ([]consumable.Catalog, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT id, category, cost, is_duration_buff, buff_key, buff_value, duration_hours, is_single_use, max_owned
		FROM consumable_catalog ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []consumable.Catalog
	for rows.Next() {
		var c consumable.Catalog
		if err := rows.Scan(&c.ID, &c.Category, &c.Cost, &c.IsDurationBuff, &c.BuffKey,
			&c.BuffValue, &c.DurationHours, &c.IsSingleUse, &c.MaxOwned); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) GetCatalogEntry(ctx context.Context, id string) (consumable.Catalog, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT id, category, cost, is_duration_buff, buff_key, buff_value, duration_hours, is_single_use, max_owned
		FROM consumable_catalog WHERE id = $1
	`, id)
	var c consumable.Catalog
	err := row.Scan(&c.ID, &c.Category, &c.Cost, &c.IsDurationBuff, &c.BuffKey,
		&c.BuffValue, &c.DurationHours, &c.IsSingleUse, &c.MaxOwned)
	return c, err
}

func (s *Store) GetUserStock(ctx context.Context, userID, consumableID string) (consumable.UserStock, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT user_id, consumable_id, quantity FROM user_consumables WHERE user_id = $1 AND consumable_id = $2
	`, userID, consumableID)
	var st consumable.UserStock
	err := row.Scan(&st.UserID, &st.ConsumableID, &st.Quantity)
	if err == sql.ErrNoRows {
		return consumable.UserStock{UserID: userID, ConsumableID: consumableID}, nil
	}
	return st, err
}

func (s *Store) UpsertUserStock(ctx context.Context, st consumable.UserStock) (consumable.UserStock, error) {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO user_consumables (user_id, consumable_id, quantity)
		VALUES ($1,$2,$3)
		ON CONFLICT (user_id, consumable_id) DO UPDATE SET quantity = $3
	`, st.UserID, st.ConsumableID, st.Quantity)
	if err != nil {
		return consumable.UserStock{}, err
	}
	return st, nil
}

func (s *Store) ListUserStock(ctx context.Context, userID string) ([]consumable.UserStock, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT user_id, consumable_id, quantity FROM user_consumables WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []consumable.UserStock
	for rows.Next() {
		var st consumable.UserStock
		if err := rows.Scan(&st.UserID, &st.ConsumableID, &st.Quantity); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}
