package telegram

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/m3rciful/tarotbot/core/logger"

	tele "gopkg.in/telebot.v4"
)

// Command is a slash command and how it appears in the menu.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	// AdminOnly commands are hidden and reject everyone but the admin.
	AdminOnly bool
}

// Registry collects commands and button handlers before the bot starts.
// It is not safe for use once routes are mounted.
type Registry struct {
	commands  map[string]Command
	callbacks map[string]tele.HandlerFunc
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		commands:  make(map[string]Command),
		callbacks: make(map[string]tele.HandlerFunc),
	}
}

// Command registers name, which must start with '/'.
func (r *Registry) Command(name string, cmd Command) error {
	switch {
	case !strings.HasPrefix(name, "/") || len(name) < 2:
		return fmt.Errorf("command %q: name must start with /", name)
	case cmd.Handler == nil || cmd.Description == "":
		return fmt.Errorf("command %s: handler and description are required", name)
	}
	if _, dup := r.commands[name]; dup {
		return fmt.Errorf("command %s registered twice", name)
	}
	r.commands[name] = cmd
	return nil
}

// Callback registers the handler for buttons whose unique key is key.
func (r *Registry) Callback(key string, h tele.HandlerFunc) error {
	if key == "" || h == nil {
		return fmt.Errorf("callback %q: key and handler are required", key)
	}
	if _, dup := r.callbacks[key]; dup {
		return fmt.Errorf("callback %s registered twice", key)
	}
	r.callbacks[key] = h
	return nil
}

// Commands returns the registered commands sorted by name.
func (r *Registry) Commands() []string {
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the command registered under name.
func (r *Registry) Lookup(name string) (Command, bool) {
	cmd, ok := r.commands[name]
	return cmd, ok
}

// Button returns the handler for a callback key.
func (r *Registry) Button(key string) (tele.HandlerFunc, bool) {
	h, ok := r.callbacks[key]
	return h, ok
}

// Menu lists the commands shown in the Telegram command menu.
func (r *Registry) Menu() []tele.Command {
	var menu []tele.Command
	for _, name := range r.Commands() {
		if cmd := r.commands[name]; !cmd.AdminOnly {
			menu = append(menu, tele.Command{Text: strings.TrimPrefix(name, "/"), Description: cmd.Description})
		}
	}
	return menu
}

func (r *Registry) logSummary() {
	logger.TWire.Info("", slog.String("event", "registry"),
		slog.Int("commands", len(r.commands)),
		slog.Int("callbacks", len(r.callbacks)),
	)
}
