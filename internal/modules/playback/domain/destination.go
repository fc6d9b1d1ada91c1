package domain

import "github.com/disgoorg/snowflake/v2"

// Destination is a voice channel the bot can stream into.
// Requests are serialized per guild: one guild can only hold one voice connection.
type Destination struct {
	GuildID   snowflake.ID
	ChannelID snowflake.ID
}

// Key returns the registry key the destination is serialized under.
func (d Destination) Key() snowflake.ID {
	return d.GuildID
}
