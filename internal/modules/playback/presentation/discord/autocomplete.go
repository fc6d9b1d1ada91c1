package discord

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sglre6355/vcbot/internal/bot"
	"github.com/sglre6355/vcbot/internal/modules/playback/application/ports"
	"github.com/sglre6355/vcbot/internal/modules/playback/application/usecases"
)

const (
	// autocompleteTimeout keeps suggestions inside Discord's response window.
	autocompleteTimeout = 2500 * time.Millisecond
	autocompleteLimit   = 10
	minAutocompleteLen  = 2

	// maxChoiceLen is Discord's limit for choice names and values.
	maxChoiceLen = 100
)

// AutocompleteHandler handles autocomplete requests.
type AutocompleteHandler struct {
	finder MediaFinder
}

// NewAutocompleteHandler creates a new AutocompleteHandler.
func NewAutocompleteHandler(finder MediaFinder) *AutocompleteHandler {
	return &AutocompleteHandler{finder: finder}
}

// HandlePlay suggests search results for the url option of /play.
func (h *AutocompleteHandler) HandlePlay(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	var query string
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == "url" && opt.Focused {
			query = strings.TrimSpace(opt.StringValue())
			break
		}
	}

	// Short queries and URLs get no suggestions.
	if len([]rune(query)) < minAutocompleteLen || strings.Contains(query, "://") {
		return respondChoices(r, nil)
	}

	ctx, cancel := context.WithTimeout(context.Background(), autocompleteTimeout)
	defer cancel()

	output, err := h.finder.Search(ctx, usecases.SearchInput{
		Query: query,
		Limit: autocompleteLimit,
	})
	if err != nil {
		slog.Debug("failed to search for autocomplete", "query", query, "error", err)
		return respondChoices(r, nil)
	}

	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(output.Results))
	for _, result := range output.Results {
		if len(result.URL) > maxChoiceLen {
			continue
		}
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{
			Name:  truncate(choiceName(result), maxChoiceLen),
			Value: result.URL,
		})
	}
	return respondChoices(r, choices)
}

func choiceName(result ports.SearchResult) string {
	name := result.Title
	if result.Uploader != "" {
		name = fmt.Sprintf("%s - %s", name, result.Uploader)
	}
	switch {
	case result.IsLive:
		name += " (live)"
	case result.Duration > 0:
		name += fmt.Sprintf(" (%s)", formatDuration(result.Duration))
	}
	return name
}

func respondChoices(r bot.Responder, choices []*discordgo.ApplicationCommandOptionChoice) error {
	if choices == nil {
		choices = []*discordgo.ApplicationCommandOptionChoice{}
	}
	return r.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{
			Choices: choices,
		},
	})
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
