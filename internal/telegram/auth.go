package telegram

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// InitDataHeader carries Telegram.WebApp.initData on Mini App requests.
const InitDataHeader = "X-Telegram-Init-Data"

var (
	ErrNoInitData = errors.New("init data is empty")
	ErrBadHash    = errors.New("init data hash mismatch")
	ErrExpired    = errors.New("init data expired")
	ErrNoInitUser = errors.New("init data has no user")
	ErrMalformed  = errors.New("init data is malformed")
)

type AuthUser struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
}

// VerifyWebAppInitData verifies Telegram WebApp initData using bot token.
// Returns (user, ok).
func VerifyWebAppInitData(initData string, botToken string) (AuthUser, bool) {
	u, err := VerifyInitData(initData, botToken, 0, time.Now())
	return u, err == nil
}

// VerifyInitData checks the initData signature and, when maxAge > 0, that
// auth_date is not older than maxAge.
func VerifyInitData(initData, botToken string, maxAge time.Duration, now time.Time) (AuthUser, error) {
	initData = strings.TrimSpace(initData)
	if initData == "" {
		return AuthUser{}, ErrNoInitData
	}

	vals, err := url.ParseQuery(initData)
	if err != nil {
		return AuthUser{}, ErrMalformed
	}

	providedHash := vals.Get("hash")
	if providedHash == "" {
		return AuthUser{}, ErrMalformed
	}
	vals.Del("hash")

	expected := signValues(vals, botToken)
	if !hmac.Equal([]byte(expected), []byte(providedHash)) {
		return AuthUser{}, ErrBadHash
	}

	if maxAge > 0 {
		ts, err := strconv.ParseInt(vals.Get("auth_date"), 10, 64)
		if err != nil {
			return AuthUser{}, ErrMalformed
		}
		if now.Sub(time.Unix(ts, 0)) > maxAge {
			return AuthUser{}, ErrExpired
		}
	}

	userRaw := vals.Get("user")
	if userRaw == "" {
		return AuthUser{}, ErrNoInitUser
	}

	var user AuthUser
	if err := json.Unmarshal([]byte(userRaw), &user); err != nil {
		return AuthUser{}, ErrMalformed
	}
	if user.ID == 0 {
		return AuthUser{}, ErrNoInitUser
	}
	if strings.TrimSpace(user.FirstName) == "" {
		user.FirstName = "User"
	}
	return user, nil
}

// SignInitData produces initData the way the Telegram client does. Used by
// the terminal client and tests.
func SignInitData(user AuthUser, authDate time.Time, botToken string) string {
	rawUser, _ := json.Marshal(user)
	vals := url.Values{}
	vals.Set("auth_date", strconv.FormatInt(authDate.Unix(), 10))
	vals.Set("user", string(rawUser))
	vals.Set("hash", signValues(vals, botToken))
	return vals.Encode()
}

func signValues(vals url.Values, botToken string) string {
	// data_check_string: key=value joined with \n, sorted by key
	keys := make([]string, 0, len(vals))
	for k := range vals {
		if k == "hash" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+vals.Get(k))
	}
	dataCheck := strings.Join(parts, "\n")

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(botToken))
	secretKey := secret.Sum(nil)

	mac := hmac.New(sha256.New, secretKey)
	mac.Write([]byte(dataCheck))
	return hex.EncodeToString(mac.Sum(nil))
}
