package bot

import (
	"sync"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"stakesim/internal/config"
)

// privateUsers remembers senders seen in a whitelisted group so they can
// keep playing in a private chat with the bot.
type privateUsers struct {
	mu  sync.RWMutex
	ids map[int64]struct{}
}

func newPrivateUsers() *privateUsers {
	return &privateUsers{ids: make(map[int64]struct{})}
}

func (p *privateUsers) allow(id int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ids[id] = struct{}{}
}

func (p *privateUsers) allowed(id int64) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.ids[id]
	return ok
}

// chatAllowed applies the whitelist: groups must be listed, private chats
// are open when the whitelist is empty or the sender was seen in a listed
// group.
func chatAllowed(cfg *config.Config, users *privateUsers, chat *tele.Chat, sender *tele.User) bool {
	if chat.Type == tele.ChatPrivate {
		return len(cfg.Whitelist.Chats) == 0 || users.allowed(sender.ID)
	}
	if !cfg.IsChatAllowed(chat.ID) {
		return false
	}
	users.allow(sender.ID)
	return true
}

// WhitelistMiddleware drops updates from chats that are not allowed.
func WhitelistMiddleware(cfg *config.Config) tele.MiddlewareFunc {
	users := newPrivateUsers()
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			chat, sender := c.Chat(), c.Sender()
			if chat == nil || sender == nil {
				return nil
			}
			if !chatAllowed(cfg, users, chat, sender) {
				log.Debug().
					Int64("chat_id", chat.ID).
					Int64("user_id", sender.ID).
					Msg("Ignoring update from chat outside the whitelist")
				return nil
			}
			return next(c)
		}
	}
}

// AdminMiddleware rejects senders that are not configured admins.
func AdminMiddleware(cfg *config.Config) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			sender := c.Sender()
			if sender == nil {
				return nil
			}
			if !cfg.IsAdmin(sender.ID) {
				log.Warn().
					Int64("user_id", sender.ID).
					Str("command", c.Text()).
					Msg("Non-admin attempted admin command")
				return c.Reply("❌ Admins only.")
			}
			return next(c)
		}
	}
}

// LoggingMiddleware logs every incoming message at debug level.
func LoggingMiddleware() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			event := log.Debug()
			if sender := c.Sender(); sender != nil {
				event = event.Int64("user_id", sender.ID).Str("username", sender.Username)
			}
			if chat := c.Chat(); chat != nil {
				event = event.Int64("chat_id", chat.ID).Str("chat_type", string(chat.Type))
			}
			event.Str("text", c.Text()).Msg("Received message")
			return next(c)
		}
	}
}

// RecoveryMiddleware turns handler panics into an error reply.
func RecoveryMiddleware() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error().Interface("panic", r).Msg("Recovered from panic in handler")
					err = c.Reply("❌ Internal error, please try again.")
				}
			}()
			return next(c)
		}
	}
}
