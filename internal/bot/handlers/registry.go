package handlers

import (
	tgbot "github.com/go-telegram/bot"

	"github.com/Purpleaki2024/location-genius-bot/internal/admin"
)

// RegisteredHandler represents a command handler with its description.
// It encapsulates all information needed to register and document a command.
type RegisteredHandler struct {
	HandlerType tgbot.HandlerType
	Pattern     string
	Handler     tgbot.HandlerFunc
	MatchType   tgbot.MatchType
	Description string
	AdminOnly   bool
}

type commandSpec struct {
	name        string
	limitKey    string
	description string
	admin       bool
	handler     HandlerFunc
}

// chain wraps the command in Admit and, for admin commands, AdminOnly.
func (c commandSpec) chain(deps HandlerDeps) HandlerFunc {
	mw := []Middleware{Admit(deps, c.limitKey)}
	if c.admin {
		mw = append(mw, AdminOnly(deps))
	}
	return Chain(c.handler, mw...)
}

func commandSpecs(deps HandlerDeps) []commandSpec {
	category := NewCategoryHandler(deps)

	return []commandSpec{
		{"start", "start", "Restart and show remaining requests", false, NewStartHandler(deps)},
		{"help", "help", "List available commands", false, NewHelpHandler(deps)},
		{"number", "number", "Find the closest contact to an address", false, NewNumberHandler(deps)},
		{"numbers", "numbers", "List the closest contacts to an address", false, NewNumbersHandler(deps)},
		{"locate", "locate", "Get coordinates for an address", false, NewLocateHandler(deps)},
		{"city", "category", "Search for a city", false, category},
		{"town", "category", "Search for a town", false, category},
		{"village", "category", "Search for a village", false, category},
		{"postcode", "category", "Search by postcode", false, category},

		{"stats", "stats", "Show usage statistics", true, NewStatsHandler(deps)},
		{"users", "accounts", "List registered users", true, NewUsersHandler(deps)},
		{"promote", "accounts", "Promote a user to admin", true, NewAccountHandler(deps, admin.ActionPromote)},
		{"demote", "accounts", "Revoke admin status", true, NewAccountHandler(deps, admin.ActionDemote)},
		{"activate", "accounts", "Reactivate a user", true, NewAccountHandler(deps, admin.ActionActivate)},
		{"deactivate", "accounts", "Deactivate a user", true, NewAccountHandler(deps, admin.ActionDeactivate)},
		{"backup", "backup", "Create a database backup", true, NewBackupHandler(deps)},
	}
}

// RegisterAllCommands initializes and returns a map of all available bot commands.
// Every command passes through Admit; admin commands additionally through AdminOnly.
func RegisterAllCommands(deps HandlerDeps) map[string]RegisteredHandler {
	specs := commandSpecs(deps)
	handlers := make(map[string]RegisteredHandler, len(specs))
	for _, spec := range specs {
		handlers["/"+spec.name] = RegisteredHandler{
			HandlerType: tgbot.HandlerTypeMessageText,
			Pattern:     spec.name,
			Handler:     Adapt(spec.chain(deps)),
			MatchType:   tgbot.MatchTypeCommandStartOnly,
			Description: spec.description,
			AdminOnly:   spec.admin,
		}
	}

	return handlers
}
