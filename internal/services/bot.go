package services

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/samber/do"
	initdata "github.com/telegram-mini-apps/init-data-golang"
	tele "gopkg.in/telebot.v3"

	"gaslessrelay/internal/models"
	"gaslessrelay/internal/pkg/tg_utils"
)

const INIT_DATA_MAX_AGE = 24 * time.Hour

var errInitDataExpired = errors.New("init data expired")

type Bot struct {
	botID int64
	auth  *tg_utils.Authenticator
	now   func() time.Time
}

func NewBot(container *do.Injector) (*Bot, error) {
	cfg, err := do.Invoke[*RelayConfig](container)
	if err != nil {
		return nil, err
	}

	auth, err := do.Invoke[*tg_utils.Authenticator](container)
	if err != nil {
		return nil, err
	}

	return &Bot{cfg.BotID, auth, time.Now}, nil
}

// NewTeleBot returns a bot handle for API calls only; it does not poll for updates.
func NewTeleBot(token string) (*tele.Bot, error) {
	return tele.NewBot(tele.Settings{
		Token:   token,
		Offline: true,
	})
}

// ValidateInitData authenticates raw Mini App init data with its third-party signature and
// returns the user it carries.
func (bot *Bot) ValidateInitData(dataStr string) (*models.UserFromAuth, error) {
	validationBytes, signature, err := tg_utils.ValidationBytesFromRawInitData(bot.botID, dataStr)
	if err != nil {
		return nil, unauthorized(err)
	}
	if !bot.auth.Verify(validationBytes, signature) {
		return nil, unauthorized(errEnvelope)
	}

	authDate, err := tg_utils.AuthDate(dataStr)
	if err != nil {
		return nil, unauthorized(err)
	}
	if bot.now().Sub(authDate) > INIT_DATA_MAX_AGE {
		return nil, unauthorized(errInitDataExpired)
	}

	data, err := initdata.Parse(dataStr)
	if err != nil {
		return nil, invalid(err)
	}

	return &models.UserFromAuth{
		ID:           data.User.ID,
		Username:     data.User.Username,
		FirstName:    data.User.FirstName,
		LastName:     data.User.LastName,
		IsBot:        data.User.IsBot,
		IsPremium:    data.User.IsPremium,
		LanguageCode: data.User.LanguageCode,
		PhotoURL:     data.User.PhotoURL,
	}, nil
}
