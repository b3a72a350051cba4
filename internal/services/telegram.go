package services

import (
	"errors"
	"time"

	"spinwheel/internal/models"

	initdata "github.com/telegram-mini-apps/init-data-golang"
)

var ErrTelegramLoginDisabled = errors.New("telegram login is not configured")

// TelegramLogin exchanges signed mini app init data for an access token. The Telegram user id becomes the account id.
type TelegramLogin struct {
	botToken       string
	expIn          time.Duration
	authentication *Authentication
}

func NewTelegramLogin(botToken string, authentication *Authentication) *TelegramLogin {
	return &TelegramLogin{botToken, 24 * time.Hour, authentication}
}

func (login *TelegramLogin) Exchange(dataStr string) (string, *models.AccountFromAuth, error) {
	if login.botToken == "" {
		return "", nil, ErrTelegramLoginDisabled
	}

	if err := initdata.Validate(dataStr, login.botToken, login.expIn); err != nil {
		return "", nil, err
	}

	data, err := initdata.Parse(dataStr)
	if err != nil {
		return "", nil, err
	}
	if data.User.ID <= 0 || data.User.IsBot {
		return "", nil, ErrInvalidToken
	}

	account := &models.AccountFromAuth{
		ID:       data.User.ID,
		Username: data.User.Username,
		Role:     models.ROLE_USER,
	}

	token, err := login.authentication.CreateToken(account)
	if err != nil {
		return "", nil, err
	}

	return token, account, nil
}
