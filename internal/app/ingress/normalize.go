package ingress

import "github.com/tidwall/gjson"

// NormalizeWebhookBody extracts the command payload from each platform's own
// envelope shape before it is unmarshalled into the common wire struct (§9
// "duck-typed payloads"): Kick posts the payload at the body's top level,
// Twitch's EventSub wraps it under "event", and Discord's interaction
// webhooks wrap it under "data". gjson lets ingress pull the nested object
// out without declaring a dedicated envelope struct per platform.
func NormalizeWebhookBody(platform Platform, raw []byte) []byte {
	var path string
	switch platform {
	case PlatformTwitch:
		path = "event"
	case PlatformDiscord:
		path = "data"
	default:
		return raw
	}
	result := gjson.GetBytes(raw, path)
	if !result.Exists() {
		return raw
	}
	return []byte(result.Raw)
}
