// Package memory is a thread-safe in-memory implementation of
// storage.Store, intended for tests and local prototyping (grounded on the
// teacher's internal/app/storage.Memory convention).
package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/kingpin-stream/economy-core/internal/app/domain/buff"
	"github.com/kingpin-stream/economy-core/internal/app/domain/business"
	"github.com/kingpin-stream/economy-core/internal/app/domain/consumable"
	"github.com/kingpin-stream/economy-core/internal/app/domain/cooldown"
	"github.com/kingpin-stream/economy-core/internal/app/domain/currency"
	"github.com/kingpin-stream/economy-core/internal/app/domain/gambling"
	"github.com/kingpin-stream/economy-core/internal/app/domain/gameevent"
	"github.com/kingpin-stream/economy-core/internal/app/domain/inventory"
	"github.com/kingpin-stream/economy-core/internal/app/domain/merge"
	"github.com/kingpin-stream/economy-core/internal/app/domain/mission"
	"github.com/kingpin-stream/economy-core/internal/app/domain/notification"
	"github.com/kingpin-stream/economy-core/internal/app/domain/player"
	"github.com/kingpin-stream/economy-core/internal/app/domain/shop"
	"github.com/kingpin-stream/economy-core/internal/app/domain/streaming"
	"github.com/kingpin-stream/economy-core/internal/app/storage"
)

// Memory implements storage.Store entirely in process memory.
type Memory struct {
	mu     sync.RWMutex
	nextID int64

	users      map[string]player.User
	usersByPID map[string]string // "platform|platformID" -> user id

	cooldowns map[string]cooldown.Cooldown // "userID|cmd"

	itemDefs map[string]inventory.ItemDef
	items    map[string]inventory.Item

	buffs map[string]buff.Buff

	txLog map[string]currency.Transaction

	catalog   map[string]consumable.Catalog
	userStock map[string]consumable.UserStock // "userID|consumableID"

	templates     map[string]mission.Template
	assignments   map[string]mission.Assignment
	completions   map[string]mission.Completion

	revenue map[string]business.RevenueEntry

	gSessions   map[string]gambling.Session
	gStats      map[string]gambling.Stats // "userID|game"
	jackpot     gambling.JackpotPool
	bjSessions  map[string]gambling.BlackjackSession
	coinFlips   map[string]gambling.CoinFlipChallenge
	draws       map[string]gambling.Draw
	tickets     map[string]gambling.Ticket

	events map[string][]gameevent.Event

	streamingSessions map[string]streaming.Session

	notifications map[string]notification.Notification

	rotations map[string]shop.Rotation

	processedEvents map[string]struct{}
}

// New creates an empty in-memory store seeded with the given catalogs.
func New() *Memory {
	return &Memory{
		nextID:            1,
		users:             make(map[string]player.User),
		usersByPID:        make(map[string]string),
		cooldowns:         make(map[string]cooldown.Cooldown),
		itemDefs:          make(map[string]inventory.ItemDef),
		items:             make(map[string]inventory.Item),
		buffs:             make(map[string]buff.Buff),
		txLog:             make(map[string]currency.Transaction),
		catalog:           make(map[string]consumable.Catalog),
		userStock:         make(map[string]consumable.UserStock),
		templates:         make(map[string]mission.Template),
		assignments:       make(map[string]mission.Assignment),
		completions:       make(map[string]mission.Completion),
		revenue:           make(map[string]business.RevenueEntry),
		gSessions:         make(map[string]gambling.Session),
		gStats:            make(map[string]gambling.Stats),
		bjSessions:        make(map[string]gambling.BlackjackSession),
		coinFlips:         make(map[string]gambling.CoinFlipChallenge),
		draws:             make(map[string]gambling.Draw),
		tickets:           make(map[string]gambling.Ticket),
		events:            make(map[string][]gameevent.Event),
		streamingSessions: make(map[string]streaming.Session),
		notifications:     make(map[string]notification.Notification),
		rotations:         make(map[string]shop.Rotation),
		processedEvents:   make(map[string]struct{}),
	}
}

var _ storage.Store = (*Memory)(nil)

func (m *Memory) nextIDLocked() string {
	id := m.nextID
	m.nextID++
	return strconv.FormatInt(id, 10)
}

func cooldownKey(userID string, cmd cooldown.CommandType) string {
	return userID + "|" + string(cmd)
}

func stockKey(userID, consumableID string) string {
	return userID + "|" + consumableID
}

func statsKey(userID string, game gambling.Game) string {
	return userID + "|" + string(game)
}

func platformKey(platform, platformID string) string {
	return platform + "|" + platformID
}

// WithTx runs fn against m directly: the in-memory store serializes all
// access behind mu, so a "transaction" here is just a guarantee that fn
// observes a consistent snapshot and that its effects are atomic from the
// caller's perspective. Real isolation/rollback is provided by the
// postgres implementation.
func (m *Memory) WithTx(ctx context.Context, fn storage.TxFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx, &lockedView{m})
}

// lockedView is handed to transaction bodies so that nested WithTx calls
// (which would deadlock on m.mu) degenerate to direct execution.
type lockedView struct {
	*Memory
}

func (l *lockedView) WithTx(ctx context.Context, fn storage.TxFunc) error {
	return fn(ctx, l)
}

// --- UserStore ---------------------------------------------------------

func (m *Memory) CreateUser(_ context.Context, u player.User) (player.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == "" {
		u.ID = m.nextIDLocked()
	}
	m.users[u.ID] = u
	for _, pid := range u.PlatformIDs() {
		m.usersByPID[pid] = u.ID
	}
	return u, nil
}

func (m *Memory) UpdateUser(_ context.Context, u player.User) (player.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; !ok {
		return player.User{}, fmt.Errorf("user %s not found", u.ID)
	}
	m.users[u.ID] = u
	for _, pid := range u.PlatformIDs() {
		m.usersByPID[pid] = u.ID
	}
	return u, nil
}

func (m *Memory) GetUser(_ context.Context, id string) (player.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return player.User{}, fmt.Errorf("user %s not found", id)
	}
	return u, nil
}

func (m *Memory) GetUserByPlatformID(_ context.Context, platform, platformID string) (player.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.usersByPID[platformKey(platform, platformID)]
	if !ok {
		return player.User{}, fmt.Errorf("user for %s:%s not found", platform, platformID)
	}
	return m.users[id], nil
}

func (m *Memory) ListUsers(_ context.Context, limit int) ([]player.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]player.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) LockUser(ctx context.Context, id string) (player.User, error) {
	return m.GetUser(ctx, id)
}

func (m *Memory) LockUsersOrdered(ctx context.Context, idA, idB string) (player.User, player.User, error) {
	first, second := idA, idB
	if second < first {
		first, second = second, first
	}
	a, err := m.GetUser(ctx, first)
	if err != nil {
		return player.User{}, player.User{}, err
	}
	b, err := m.GetUser(ctx, second)
	if err != nil {
		return player.User{}, player.User{}, err
	}
	if first == idA {
		return a, b, nil
	}
	return b, a, nil
}

// --- CooldownStore ------------------------------------------------------

func (m *Memory) GetCooldown(_ context.Context, userID string, cmd cooldown.CommandType) (cooldown.Cooldown, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.cooldowns[cooldownKey(userID, cmd)]
	if !ok {
		return cooldown.Cooldown{UserID: userID, CommandType: cmd}, nil
	}
	return c, nil
}

func (m *Memory) UpsertCooldown(_ context.Context, c cooldown.Cooldown) (cooldown.Cooldown, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cooldowns[cooldownKey(c.UserID, c.CommandType)] = c
	return c, nil
}

func (m *Memory) ListExpiredJail(_ context.Context, before time.Time, limit int) ([]cooldown.Cooldown, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []cooldown.Cooldown
	for _, c := range m.cooldowns {
		if c.JailedUntil != nil && c.JailedUntil.Before(before) {
			out = append(out, c)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) ClearCooldown(_ context.Context, userID string, cmd cooldown.CommandType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cooldowns, cooldownKey(userID, cmd))
	return nil
}

// --- InventoryStore -------------------------------------------------------

func (m *Memory) GetItemDef(_ context.Context, id string) (inventory.ItemDef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.itemDefs[id]
	if !ok {
		return inventory.ItemDef{}, fmt.Errorf("item def %s not found", id)
	}
	return d, nil
}

func (m *Memory) ListItemDefs(_ context.Context) ([]inventory.ItemDef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]inventory.ItemDef, 0, len(m.itemDefs))
	for _, d := range m.itemDefs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) CreateItem(_ context.Context, it inventory.Item) (inventory.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if it.ID == "" {
		it.ID = m.nextIDLocked()
	}
	m.items[it.ID] = it
	return it, nil
}

func (m *Memory) UpdateItem(_ context.Context, it inventory.Item) (inventory.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[it.ID]; !ok {
		return inventory.Item{}, fmt.Errorf("item %s not found", it.ID)
	}
	m.items[it.ID] = it
	return it, nil
}

func (m *Memory) GetItem(_ context.Context, id string) (inventory.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	it, ok := m.items[id]
	if !ok {
		return inventory.Item{}, fmt.Errorf("item %s not found", id)
	}
	return it, nil
}

func (m *Memory) DeleteItem(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
	return nil
}

func (m *Memory) ListUserItems(_ context.Context, userID string) ([]inventory.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []inventory.Item
	for _, it := range m.items {
		if it.UserID == userID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) CountUserItems(_ context.Context, userID string, escrowed bool) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, it := range m.items {
		if it.UserID == userID && it.IsEscrowed == escrowed {
			n++
		}
	}
	return n, nil
}

func (m *Memory) ListExpiredEscrow(_ context.Context, before time.Time, limit int) ([]inventory.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []inventory.Item
	for _, it := range m.items {
		if it.IsEscrowed && !it.EscrowExpiresAt.IsZero() && it.EscrowExpiresAt.Before(before) {
			out = append(out, it)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// --- BuffStore -----------------------------------------------------------

func (m *Memory) UpsertBuff(_ context.Context, b buff.Buff) (buff.Buff, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b.ID == "" {
		b.ID = m.nextIDLocked()
	}
	m.buffs[b.ID] = b
	return b, nil
}

func (m *Memory) GetActiveBuff(_ context.Context, userID, buffType string) (*buff.Buff, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, b := range m.buffs {
		if b.UserID == userID && b.BuffType == buffType && b.IsActive {
			cp := b
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *Memory) ListActiveBuffs(_ context.Context, userID string) ([]buff.Buff, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []buff.Buff
	for _, b := range m.buffs {
		if b.UserID == userID && b.IsActive {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *Memory) ListExpiredBuffs(_ context.Context, before time.Time, limit int) ([]buff.Buff, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []buff.Buff
	for _, b := range m.buffs {
		if b.IsActive && !b.ExpiresAt.IsZero() && b.ExpiresAt.Before(before) {
			out = append(out, b)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) DeactivateBuff(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.buffs[id]
	if !ok {
		return fmt.Errorf("buff %s not found", id)
	}
	b.IsActive = false
	m.buffs[id] = b
	return nil
}

// --- CurrencyStore ---------------------------------------------------------

func (m *Memory) AppendTransaction(_ context.Context, tx currency.Transaction) (currency.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tx.ID == "" {
		tx.ID = m.nextIDLocked()
	}
	m.txLog[tx.ID] = tx
	return tx, nil
}

func (m *Memory) ListTransactions(_ context.Context, userID string, limit int) ([]currency.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []currency.Transaction
	for _, tx := range m.txLog {
		if tx.UserID == userID {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) ListUsersForDailyReset(_ context.Context, limit int) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for id := range m.users {
		out = append(out, id)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *Memory) ListUsersForDecay(_ context.Context, softCap int64, limit int) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for id, u := range m.users {
		if u.Tokens > softCap {
			out = append(out, id)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	sort.Strings(out)
	return out, nil
}

// --- ConsumableStore --------------------------------------------------------

func (m *Memory) ListCatalog(_ context.Context) ([]consumable.Catalog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]consumable.Catalog, 0, len(m.catalog))
	for _, c := range m.catalog {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) GetCatalogEntry(_ context.Context, id string) (consumable.Catalog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.catalog[id]
	if !ok {
		return consumable.Catalog{}, fmt.Errorf("consumable %s not found", id)
	}
	return c, nil
}

func (m *Memory) GetUserStock(_ context.Context, userID, consumableID string) (consumable.UserStock, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.userStock[stockKey(userID, consumableID)]
	if !ok {
		return consumable.UserStock{UserID: userID, ConsumableID: consumableID}, nil
	}
	return s, nil
}

func (m *Memory) UpsertUserStock(_ context.Context, s consumable.UserStock) (consumable.UserStock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.userStock[stockKey(s.UserID, s.ConsumableID)] = s
	return s, nil
}

func (m *Memory) ListUserStock(_ context.Context, userID string) ([]consumable.UserStock, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []consumable.UserStock
	for _, s := range m.userStock {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

// --- MissionStore -----------------------------------------------------------

func (m *Memory) ListTemplates(_ context.Context, t mission.Type) ([]mission.Template, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []mission.Template
	for _, tmpl := range m.templates {
		if tmpl.MissionType == t {
			out = append(out, tmpl)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) ListUserAssignments(_ context.Context, userID string, t mission.Type) ([]mission.Assignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []mission.Assignment
	for _, a := range m.assignments {
		if a.UserID == userID && a.MissionType == t {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) CreateAssignment(_ context.Context, a mission.Assignment) (mission.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == "" {
		a.ID = m.nextIDLocked()
	}
	m.assignments[a.ID] = a
	return a, nil
}

func (m *Memory) UpdateAssignment(_ context.Context, a mission.Assignment) (mission.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.assignments[a.ID]; !ok {
		return mission.Assignment{}, fmt.Errorf("assignment %s not found", a.ID)
	}
	m.assignments[a.ID] = a
	return a, nil
}

func (m *Memory) GetCompletion(_ context.Context, userID string, t mission.Type, periodKey string) (*mission.Completion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.completions {
		if c.UserID == userID && c.MissionType == t && c.PeriodKey == periodKey {
			cp := c
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *Memory) CreateCompletion(_ context.Context, c mission.Completion) (mission.Completion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == "" {
		c.ID = m.nextIDLocked()
	}
	m.completions[c.ID] = c
	return c, nil
}

func (m *Memory) ListExpiredAssignments(_ context.Context, before time.Time, limit int) ([]mission.Assignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []mission.Assignment
	for _, a := range m.assignments {
		if a.Status == mission.StatusActive && a.ExpiresAt.Before(before) {
			out = append(out, a)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// --- BusinessStore ----------------------------------------------------------

func (m *Memory) AppendRevenueEntry(_ context.Context, e business.RevenueEntry) (business.RevenueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == "" {
		e.ID = m.nextIDLocked()
	}
	m.revenue[e.ID] = e
	return e, nil
}

func (m *Memory) ListRevenueHistory(_ context.Context, userID string, limit int) ([]business.RevenueEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []business.RevenueEntry
	for _, e := range m.revenue {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TickedAt.After(out[j].TickedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) ListBusinessOwners(_ context.Context, limit int) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, it := range m.items {
		seen[it.UserID] = struct{}{}
	}
	var out []string
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- GamblingStore ------------------------------------------------------

func (m *Memory) AppendSession(_ context.Context, s gambling.Session) (gambling.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == "" {
		s.ID = m.nextIDLocked()
	}
	m.gSessions[s.ID] = s
	return s, nil
}

func (m *Memory) GetStats(_ context.Context, userID string, game gambling.Game) (gambling.Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.gStats[statsKey(userID, game)]
	if !ok {
		return gambling.Stats{UserID: userID, Game: game}, nil
	}
	return s, nil
}

func (m *Memory) UpsertStats(_ context.Context, s gambling.Stats) (gambling.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gStats[statsKey(s.UserID, s.Game)] = s
	return s, nil
}

func (m *Memory) GetJackpotPool(_ context.Context) (gambling.JackpotPool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jackpot, nil
}

func (m *Memory) CompareAndSwapJackpotPool(_ context.Context, observed, next gambling.JackpotPool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.jackpot.CurrentPool != observed.CurrentPool {
		return false, nil
	}
	m.jackpot = next
	return true, nil
}

func (m *Memory) CreateBlackjackSession(_ context.Context, s gambling.BlackjackSession) (gambling.BlackjackSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == "" {
		s.ID = m.nextIDLocked()
	}
	m.bjSessions[s.ID] = s
	return s, nil
}

func (m *Memory) UpdateBlackjackSession(_ context.Context, s gambling.BlackjackSession) (gambling.BlackjackSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bjSessions[s.ID]; !ok {
		return gambling.BlackjackSession{}, fmt.Errorf("blackjack session %s not found", s.ID)
	}
	m.bjSessions[s.ID] = s
	return s, nil
}

func (m *Memory) GetOpenBlackjackSession(_ context.Context, userID string) (*gambling.BlackjackSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.bjSessions {
		if s.UserID == userID && !s.IsTerminal() {
			cp := s
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *Memory) GetBlackjackSession(_ context.Context, id string) (gambling.BlackjackSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.bjSessions[id]
	if !ok {
		return gambling.BlackjackSession{}, fmt.Errorf("blackjack session %s not found", id)
	}
	return s, nil
}

func (m *Memory) CreateCoinFlip(_ context.Context, c gambling.CoinFlipChallenge) (gambling.CoinFlipChallenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == "" {
		c.ID = m.nextIDLocked()
	}
	m.coinFlips[c.ID] = c
	return c, nil
}

func (m *Memory) UpdateCoinFlip(_ context.Context, c gambling.CoinFlipChallenge) (gambling.CoinFlipChallenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.coinFlips[c.ID]; !ok {
		return gambling.CoinFlipChallenge{}, fmt.Errorf("coin flip %s not found", c.ID)
	}
	m.coinFlips[c.ID] = c
	return c, nil
}

func (m *Memory) GetCoinFlip(_ context.Context, id string) (gambling.CoinFlipChallenge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.coinFlips[id]
	if !ok {
		return gambling.CoinFlipChallenge{}, fmt.Errorf("coin flip %s not found", id)
	}
	return c, nil
}

func (m *Memory) GetOpenCoinFlipByChallenger(_ context.Context, challengerID string) (*gambling.CoinFlipChallenge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.coinFlips {
		if c.ChallengerID == challengerID && c.Status == gambling.FlipOpen {
			cp := c
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *Memory) ListExpiredCoinFlips(_ context.Context, before time.Time, limit int) ([]gambling.CoinFlipChallenge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []gambling.CoinFlipChallenge
	for _, c := range m.coinFlips {
		if c.Status == gambling.FlipOpen && c.ExpiresAt.Before(before) {
			out = append(out, c)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) CreateLotteryDraw(_ context.Context, d gambling.Draw) (gambling.Draw, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d.ID == "" {
		d.ID = m.nextIDLocked()
	}
	m.draws[d.ID] = d
	return d, nil
}

func (m *Memory) UpdateLotteryDraw(_ context.Context, d gambling.Draw) (gambling.Draw, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.draws[d.ID]; !ok {
		return gambling.Draw{}, fmt.Errorf("draw %s not found", d.ID)
	}
	m.draws[d.ID] = d
	return d, nil
}

func (m *Memory) GetOpenLotteryDraw(_ context.Context, drawType string) (*gambling.Draw, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, d := range m.draws {
		if d.DrawType == drawType && d.Status == gambling.DrawOpen {
			cp := d
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *Memory) GetLotteryDraw(_ context.Context, id string) (gambling.Draw, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.draws[id]
	if !ok {
		return gambling.Draw{}, fmt.Errorf("draw %s not found", id)
	}
	return d, nil
}

func (m *Memory) ListDueLotteryDraws(_ context.Context, before time.Time, limit int) ([]gambling.Draw, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []gambling.Draw
	for _, d := range m.draws {
		if d.Status == gambling.DrawOpen && !d.DrawAt.After(before) {
			out = append(out, d)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) CreateLotteryTicket(_ context.Context, t gambling.Ticket) (gambling.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == "" {
		t.ID = m.nextIDLocked()
	}
	m.tickets[t.ID] = t
	return t, nil
}

func (m *Memory) ListLotteryTickets(_ context.Context, drawID string) ([]gambling.Ticket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []gambling.Ticket
	for _, t := range m.tickets {
		if t.DrawID == drawID {
			out = append(out, t)
		}
	}
	// Earliest ticketId wins 3-match ties: sort ascending numeric ID.
	sort.Slice(out, func(i, j int) bool {
		ni, _ := strconv.ParseInt(out[i].ID, 10, 64)
		nj, _ := strconv.ParseInt(out[j].ID, 10, 64)
		return ni < nj
	})
	return out, nil
}

func (m *Memory) CountUserLotteryTickets(_ context.Context, userID, drawID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, t := range m.tickets {
		if t.UserID == userID && t.DrawID == drawID {
			n++
		}
	}
	return n, nil
}

func (m *Memory) TicketNumbersExist(_ context.Context, userID, drawID string, numbers []int) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.tickets {
		if t.UserID != userID || t.DrawID != drawID || len(t.Numbers) != len(numbers) {
			continue
		}
		match := true
		for i := range numbers {
			if t.Numbers[i] != numbers[i] {
				match = false
				break
			}
		}
		if match {
			return true, nil
		}
	}
	return false, nil
}

// --- MergeStore -----------------------------------------------------------

func (m *Memory) RecordMerge(_ context.Context, secondaryUserID string, snapshot merge.AuditSnapshot, primaryUserID string, mergedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[secondaryUserID]
	if !ok {
		return fmt.Errorf("user %s not found", secondaryUserID)
	}
	u.MergedIntoUserID = primaryUserID
	u.MergedAt = mergedAt
	u.Wealth, u.XP, u.Tokens, u.Bonds = 0, 0, 0, 0
	m.users[secondaryUserID] = u
	return nil
}

func (m *Memory) ReassignUserRows(_ context.Context, secondaryUserID, primaryUserID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, it := range m.items {
		if it.UserID == secondaryUserID {
			it.UserID = primaryUserID
			m.items[id] = it
		}
	}
	for id, s := range m.userStock {
		if s.UserID == secondaryUserID {
			existing, ok := m.userStock[stockKey(primaryUserID, s.ConsumableID)]
			if ok {
				existing.Quantity += s.Quantity
				m.userStock[stockKey(primaryUserID, s.ConsumableID)] = existing
				delete(m.userStock, id)
			} else {
				s.UserID = primaryUserID
				m.userStock[stockKey(primaryUserID, s.ConsumableID)] = s
				delete(m.userStock, id)
			}
		}
	}
	return nil
}

// --- StreamingStore -----------------------------------------------------

func (m *Memory) GetSession(_ context.Context, channelID string) (streaming.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.streamingSessions[channelID], nil
}

func (m *Memory) UpsertSession(_ context.Context, s streaming.Session) (streaming.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streamingSessions[s.PlatformChannelID] = s
	return s, nil
}

// --- GameEventStore -------------------------------------------------------

func (m *Memory) AppendEvent(_ context.Context, e gameevent.Event) (gameevent.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == "" {
		e.ID = m.nextIDLocked()
	}
	m.events[e.UserID] = append(m.events[e.UserID], e)
	return e, nil
}

func (m *Memory) ListEventsForUser(_ context.Context, userID string, limit int) ([]gameevent.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := append([]gameevent.Event(nil), m.events[userID]...)
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// --- NotificationStore -----------------------------------------------------

func (m *Memory) CreateNotification(_ context.Context, n notification.Notification) (notification.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n.ID == "" {
		n.ID = m.nextIDLocked()
	}
	m.notifications[n.ID] = n
	return n, nil
}

func (m *Memory) ListUnreadNotifications(_ context.Context, userID string, limit int) ([]notification.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []notification.Notification
	for _, n := range m.notifications {
		if n.UserID == userID && !n.Read {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) MarkNotificationRead(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notifications[id]
	if !ok {
		return fmt.Errorf("notification %s not found", id)
	}
	n.Read = true
	m.notifications[id] = n
	return nil
}

func (m *Memory) PurgeNotificationsBefore(_ context.Context, before time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	purged := 0
	for id, n := range m.notifications {
		if n.CreatedAt.Before(before) {
			delete(m.notifications, id)
			purged++
		}
	}
	return purged, nil
}

// --- ShopStore --------------------------------------------------------------

func (m *Memory) GetRotation(_ context.Context, userID string) (shop.Rotation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rotations[userID], nil
}

func (m *Memory) UpsertRotation(_ context.Context, r shop.Rotation) (shop.Rotation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rotations[r.UserID] = r
	return r, nil
}

// --- IdempotenceStore -----------------------------------------------------

func (m *Memory) MarkProcessed(_ context.Context, source, sourceEventID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := source + "|" + sourceEventID
	if _, seen := m.processedEvents[key]; seen {
		return false, nil
	}
	m.processedEvents[key] = struct{}{}
	return true, nil
}
