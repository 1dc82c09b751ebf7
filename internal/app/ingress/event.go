// Package ingress maps authenticated webhook payloads from each streaming
// platform onto core commands, enforcing idempotence on (source,
// source_event_id) and the economy-mode gate on free-path commands (§4.14).
package ingress

import (
	"github.com/kingpin-stream/economy-core/internal/app/domain/gambling"
	"github.com/kingpin-stream/economy-core/internal/app/domain/streaming"
)

// Platform identifies which streaming platform produced an event.
type Platform string

const (
	PlatformKick    Platform = "kick"
	PlatformTwitch  Platform = "twitch"
	PlatformDiscord Platform = "discord"
)

// CommandType is the tagged variant of core operations ingress can invoke,
// replacing platform-shaped duck-typed payloads with a single dispatch
// point (§9 Design notes "duck-typed payloads").
type CommandType string

const (
	CommandPlay           CommandType = "play"
	CommandRob            CommandType = "rob"
	CommandBail           CommandType = "bail"
	CommandSlots          CommandType = "slots"
	CommandBlackjackStart CommandType = "blackjack_start"
	CommandBlackjackHit   CommandType = "blackjack_hit"
	CommandBlackjackStand CommandType = "blackjack_stand"
	CommandBlackjackDouble CommandType = "blackjack_double"
	CommandCoinFlipCreate CommandType = "coinflip_create"
	CommandCoinFlipAccept CommandType = "coinflip_accept"
	CommandLotteryTicket  CommandType = "lottery_ticket"
	CommandConsumableBuy  CommandType = "consumable_buy"
	CommandConsumableUse  CommandType = "consumable_use"
)

// Event is the parsed, platform-tagged payload handed to Dispatch. Ingress
// parses the wire payload into this shape exactly once; nothing downstream
// of Dispatch ever sees a platform-shaped map again.
type Event struct {
	Platform      Platform
	SourceEventID string
	Origin        streaming.Origin // free vs channel_points, for the §4.13 gate
	UserPlatformID string
	Command       CommandType

	// Command-specific fields; only the ones relevant to Command are read.
	TargetUsername string
	Wager          int64
	TierMultiplier float64
	SessionID      string
	CoinFlipCall   gambling.CoinFlipCall
	ChallengeID    string
	DrawID         string
	LotteryNumbers []int
	ConsumableID   string
}

// Result is the success envelope returned by Dispatch, generic across
// command types; the HTTP/webhook transport layer renders the
// command-specific fields it cares about from Data.
type Result struct {
	Success        bool
	AlreadyProcessed bool
	Data           map[string]interface{}
}
