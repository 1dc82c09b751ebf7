// Package storage defines the persistence contracts for every economy
// domain (§6 Persistent state layout), mirroring the teacher's per-domain
// CRUD interface convention.
package storage

import (
	"context"
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
)

// UserStore persists player accounts (§3 User).
type UserStore interface {
	CreateUser(ctx context.Context, u player.User) (player.User, error)
	UpdateUser(ctx context.Context, u player.User) (player.User, error)
	GetUser(ctx context.Context, id string) (player.User, error)
	GetUserByPlatformID(ctx context.Context, platform, platformID string) (player.User, error)
	ListUsers(ctx context.Context, limit int) ([]player.User, error)

	// LockUser acquires a row lock on the user for the duration of the
	// enclosing transaction (§5 "commands are serialized by DB row-locks
	// on the user row").
	LockUser(ctx context.Context, id string) (player.User, error)
	// LockUsersOrdered locks two user rows in ascending-id order to
	// prevent deadlock on cross-user paths such as robbery (§5).
	LockUsersOrdered(ctx context.Context, idA, idB string) (a, b player.User, err error)
}

// CooldownStore persists per-user, per-command cooldown and jail rows.
type CooldownStore interface {
	GetCooldown(ctx context.Context, userID string, cmd cooldown.CommandType) (cooldown.Cooldown, error)
	UpsertCooldown(ctx context.Context, c cooldown.Cooldown) (cooldown.Cooldown, error)
	ListExpiredJail(ctx context.Context, before time.Time, limit int) ([]cooldown.Cooldown, error)
	ClearCooldown(ctx context.Context, userID string, cmd cooldown.CommandType) error
}

// InventoryStore persists item definitions and owned item instances.
type InventoryStore interface {
	GetItemDef(ctx context.Context, id string) (inventory.ItemDef, error)
	ListItemDefs(ctx context.Context) ([]inventory.ItemDef, error)

	CreateItem(ctx context.Context, it inventory.Item) (inventory.Item, error)
	UpdateItem(ctx context.Context, it inventory.Item) (inventory.Item, error)
	GetItem(ctx context.Context, id string) (inventory.Item, error)
	DeleteItem(ctx context.Context, id string) error
	ListUserItems(ctx context.Context, userID string) ([]inventory.Item, error)
	CountUserItems(ctx context.Context, userID string, escrowed bool) (int, error)
	ListExpiredEscrow(ctx context.Context, before time.Time, limit int) ([]inventory.Item, error)
}

// BuffStore persists active buffs.
type BuffStore interface {
	UpsertBuff(ctx context.Context, b buff.Buff) (buff.Buff, error)
	GetActiveBuff(ctx context.Context, userID, buffType string) (*buff.Buff, error)
	ListActiveBuffs(ctx context.Context, userID string) ([]buff.Buff, error)
	ListExpiredBuffs(ctx context.Context, before time.Time, limit int) ([]buff.Buff, error)
	DeactivateBuff(ctx context.Context, id string) error
}

// CurrencyStore persists the token/bond ledger.
type CurrencyStore interface {
	AppendTransaction(ctx context.Context, tx currency.Transaction) (currency.Transaction, error)
	ListTransactions(ctx context.Context, userID string, limit int) ([]currency.Transaction, error)
	ListUsersForDailyReset(ctx context.Context, limit int) ([]string, error)
	ListUsersForDecay(ctx context.Context, softCap int64, limit int) ([]string, error)
}

// ConsumableStore persists the consumable catalog and per-user stock.
type ConsumableStore interface {
	ListCatalog(ctx context.Context) ([]consumable.Catalog, error)
	GetCatalogEntry(ctx context.Context, id string) (consumable.Catalog, error)
	GetUserStock(ctx context.Context, userID, consumableID string) (consumable.UserStock, error)
	UpsertUserStock(ctx context.Context, s consumable.UserStock) (consumable.UserStock, error)
	ListUserStock(ctx context.Context, userID string) ([]consumable.UserStock, error)
}

// MissionStore persists mission templates, assignments, and completions.
type MissionStore interface {
	ListTemplates(ctx context.Context, t mission.Type) ([]mission.Template, error)
	ListUserAssignments(ctx context.Context, userID string, t mission.Type) ([]mission.Assignment, error)
	CreateAssignment(ctx context.Context, a mission.Assignment) (mission.Assignment, error)
	UpdateAssignment(ctx context.Context, a mission.Assignment) (mission.Assignment, error)
	GetCompletion(ctx context.Context, userID string, t mission.Type, periodKey string) (*mission.Completion, error)
	CreateCompletion(ctx context.Context, c mission.Completion) (mission.Completion, error)
	ListExpiredAssignments(ctx context.Context, before time.Time, limit int) ([]mission.Assignment, error)
}

// BusinessStore persists business revenue history.
type BusinessStore interface {
	AppendRevenueEntry(ctx context.Context, e business.RevenueEntry) (business.RevenueEntry, error)
	ListRevenueHistory(ctx context.Context, userID string, limit int) ([]business.RevenueEntry, error)
	ListBusinessOwners(ctx context.Context, limit int) ([]string, error)
}

// GamblingStore persists gambling sessions, stats, blackjack/coinflip
// sessions, and lottery state.
type GamblingStore interface {
	AppendSession(ctx context.Context, s gambling.Session) (gambling.Session, error)
	GetStats(ctx context.Context, userID string, game gambling.Game) (gambling.Stats, error)
	UpsertStats(ctx context.Context, s gambling.Stats) (gambling.Stats, error)

	GetJackpotPool(ctx context.Context) (gambling.JackpotPool, error)
	// CompareAndSwapJackpotPool performs a conditional update against the
	// observed pool value (§5 "WHERE current_pool = :observed"); returns
	// false without error when the observed value is stale.
	CompareAndSwapJackpotPool(ctx context.Context, observed, next gambling.JackpotPool) (bool, error)

	CreateBlackjackSession(ctx context.Context, s gambling.BlackjackSession) (gambling.BlackjackSession, error)
	UpdateBlackjackSession(ctx context.Context, s gambling.BlackjackSession) (gambling.BlackjackSession, error)
	GetOpenBlackjackSession(ctx context.Context, userID string) (*gambling.BlackjackSession, error)
	GetBlackjackSession(ctx context.Context, id string) (gambling.BlackjackSession, error)

	CreateCoinFlip(ctx context.Context, c gambling.CoinFlipChallenge) (gambling.CoinFlipChallenge, error)
	UpdateCoinFlip(ctx context.Context, c gambling.CoinFlipChallenge) (gambling.CoinFlipChallenge, error)
	GetCoinFlip(ctx context.Context, id string) (gambling.CoinFlipChallenge, error)
	GetOpenCoinFlipByChallenger(ctx context.Context, challengerID string) (*gambling.CoinFlipChallenge, error)
	ListExpiredCoinFlips(ctx context.Context, before time.Time, limit int) ([]gambling.CoinFlipChallenge, error)

	CreateLotteryDraw(ctx context.Context, d gambling.Draw) (gambling.Draw, error)
	UpdateLotteryDraw(ctx context.Context, d gambling.Draw) (gambling.Draw, error)
	GetOpenLotteryDraw(ctx context.Context, drawType string) (*gambling.Draw, error)
	GetLotteryDraw(ctx context.Context, id string) (gambling.Draw, error)
	ListDueLotteryDraws(ctx context.Context, before time.Time, limit int) ([]gambling.Draw, error)

	CreateLotteryTicket(ctx context.Context, t gambling.Ticket) (gambling.Ticket, error)
	ListLotteryTickets(ctx context.Context, drawID string) ([]gambling.Ticket, error)
	CountUserLotteryTickets(ctx context.Context, userID, drawID string) (int, error)
	TicketNumbersExist(ctx context.Context, userID, drawID string, numbers []int) (bool, error)
}

// MergeStore persists merge audit snapshots and the merge-reassignment
// operations (§4.12).
type MergeStore interface {
	RecordMerge(ctx context.Context, secondaryUserID string, snapshot merge.AuditSnapshot, primaryUserID string, mergedAt time.Time) error
	ReassignUserRows(ctx context.Context, secondaryUserID, primaryUserID string) error
}

// StreamingStore persists the single tracked streaming session.
type StreamingStore interface {
	GetSession(ctx context.Context, channelID string) (streaming.Session, error)
	UpsertSession(ctx context.Context, s streaming.Session) (streaming.Session, error)
}

// GameEventStore persists the audit trail.
type GameEventStore interface {
	AppendEvent(ctx context.Context, e gameevent.Event) (gameevent.Event, error)
	ListEventsForUser(ctx context.Context, userID string, limit int) ([]gameevent.Event, error)
}

// ShopStore persists each user's rotating shop offer list (§6 "GET /shop").
type ShopStore interface {
	GetRotation(ctx context.Context, userID string) (shop.Rotation, error)
	UpsertRotation(ctx context.Context, r shop.Rotation) (shop.Rotation, error)
}

// NotificationStore persists post-commit delivery intents (§5, §6
// "user_notifications").
type NotificationStore interface {
	CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error)
	ListUnreadNotifications(ctx context.Context, userID string, limit int) ([]notification.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
	PurgeNotificationsBefore(ctx context.Context, before time.Time) (int, error)
}

// IdempotenceStore records processed webhook events for ingress
// idempotence (§4.14).
type IdempotenceStore interface {
	// MarkProcessed records (source, sourceEventID) and reports whether
	// this is the first time it has been seen (true) or a retry (false).
	MarkProcessed(ctx context.Context, source, sourceEventID string) (firstSeen bool, err error)
}

// TxFunc is the unit of work run inside Store.WithTx; any error rolls the
// transaction back.
type TxFunc func(ctx context.Context, tx Store) error

// Store aggregates every domain store plus the transactional primitive
// each command runs its mutation through (§5 "All state mutation is
// serialized through the Store's transactional primitives").
type Store interface {
	UserStore
	CooldownStore
	InventoryStore
	BuffStore
	CurrencyStore
	ConsumableStore
	MissionStore
	BusinessStore
	GamblingStore
	MergeStore
	StreamingStore
	GameEventStore
	ShopStore
	NotificationStore
	IdempotenceStore

	WithTx(ctx context.Context, fn TxFunc) error
}
