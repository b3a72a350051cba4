package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"spinwheel/internal/models"

	"github.com/stretchr/testify/require"
)

const testBotToken = "123456:test-bot-token"

// signInitData builds a query string the way Telegram signs mini app launch parameters.
func signInitData(t *testing.T, botToken string, params map[string]string) string {
	t.Helper()

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(botToken))
	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(strings.Join(pairs, "\n")))

	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}
	values.Set("hash", hex.EncodeToString(mac.Sum(nil)))
	return values.Encode()
}

func TestTelegramLoginExchange(t *testing.T) {
	auth, err := NewAuthentication("secret")
	require.NoError(t, err)
	login := NewTelegramLogin(testBotToken, auth)

	dataStr := signInitData(t, testBotToken, map[string]string{
		"auth_date": strconv.FormatInt(time.Now().Unix(), 10),
		"query_id":  "AAH",
		"user":      `{"id":279058397,"first_name":"Vlad","username":"vdkfrost"}`,
	})

	token, account, err := login.Exchange(dataStr)
	require.NoError(t, err)
	require.Equal(t, int64(279058397), account.ID)
	require.Equal(t, "vdkfrost", account.Username)
	require.Equal(t, models.ROLE_USER, account.Role)

	validated, err := auth.Validate(token)
	require.NoError(t, err)
	require.Equal(t, *account, *validated)
}

func TestTelegramLoginRejects(t *testing.T) {
	auth, err := NewAuthentication("secret")
	require.NoError(t, err)

	_, _, err = NewTelegramLogin("", auth).Exchange("anything")
	require.ErrorIs(t, err, ErrTelegramLoginDisabled)

	login := NewTelegramLogin(testBotToken, auth)
	forged := signInitData(t, "654321:other-bot", map[string]string{
		"auth_date": strconv.FormatInt(time.Now().Unix(), 10),
		"user":      `{"id":1,"first_name":"Eve"}`,
	})
	_, _, err = login.Exchange(forged)
	require.Error(t, err)

	stale := signInitData(t, testBotToken, map[string]string{
		"auth_date": strconv.FormatInt(time.Now().Add(-48*time.Hour).Unix(), 10),
		"user":      `{"id":1,"first_name":"Eve"}`,
	})
	_, _, err = login.Exchange(stale)
	require.Error(t, err)
}
