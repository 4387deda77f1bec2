package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

const loginPath = "/api/users/login"

// Signup creates an account. The request is validated locally first so
// obviously bad input never reaches the server.
func (c *Client) Signup(ctx context.Context, req SignupRequest) (User, error) {
	if err := ValidateSignup(req); err != nil {
		return User{}, err
	}
	data, err := json.Marshal(req)
	if err != nil {
		return User{}, fmt.Errorf("api: encode signup: %w", err)
	}
	var user User
	if err := c.do(ctx, http.MethodPost, "/api/users/signup", bytes.NewReader(data), "application/json", &user, false); err != nil {
		return User{}, err
	}
	return user, nil
}

// Login exchanges a username and password for a bearer token using the
// OAuth2 password grant the service exposes, and installs the token on the
// client.
func (c *Client) Login(ctx context.Context, username, password string) (Token, error) {
	conf := &oauth2.Config{
		Endpoint: oauth2.Endpoint{
			TokenURL:  c.url(loginPath),
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.base)

	tok, err := conf.PasswordCredentialsToken(ctx, username, password)
	if err != nil {
		var rErr *oauth2.RetrieveError
		if errors.As(err, &rErr) && rErr.Response != nil {
			return Token{}, newAPIError(http.MethodPost, loginPath, rErr.Response.StatusCode, rErr.Body)
		}
		if errors.Is(err, context.Canceled) {
			return Token{}, fmt.Errorf("api: login: %w", err)
		}
		return Token{}, &NetworkError{Method: http.MethodPost, Path: loginPath, Err: err}
	}

	out := Token{AccessToken: tok.AccessToken, TokenType: tok.TokenType, Expiry: tok.Expiry}
	if raw := tok.Extra("user"); raw != nil {
		if data, err := json.Marshal(raw); err == nil {
			_ = json.Unmarshal(data, &out.User)
		}
	}
	if info, err := ParseTokenInfo(tok.AccessToken); err == nil && !info.ExpiresAt.IsZero() {
		out.Expiry = info.ExpiresAt
	}
	c.SetToken(tok.AccessToken)
	return out, nil
}

// Me returns the signed-in user.
func (c *Client) Me(ctx context.Context) (User, error) {
	var user User
	if err := c.getJSON(ctx, "/api/users/me", &user); err != nil {
		return User{}, err
	}
	return user, nil
}

// Stats returns activity counters for the signed-in user.
func (c *Client) Stats(ctx context.Context) (UserStats, error) {
	var stats UserStats
	if err := c.getJSON(ctx, "/api/users/me/stats", &stats); err != nil {
		return UserStats{}, err
	}
	return stats, nil
}

// DeleteMe deactivates the signed-in account. The token is dropped on success.
func (c *Client) DeleteMe(ctx context.Context, password string) (Message, error) {
	var msg Message
	form := url.Values{"password": {password}}
	if err := c.sendForm(ctx, http.MethodDelete, "/api/users/me", form, &msg, true); err != nil {
		return Message{}, err
	}
	c.SetToken("")
	return msg, nil
}

// TokenInfo holds the claims huebot reads from an access token.
type TokenInfo struct {
	Subject   string
	UserID    int
	ExpiresAt time.Time
}

// Expired reports whether the token is past its expiry. Tokens without an
// expiry never expire.
func (t TokenInfo) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && !now.Before(t.ExpiresAt)
}

// ParseTokenInfo reads claims from a JWT without verifying its signature.
// The server is the authority; this is only used to scope local caches and
// to warn before an expired token is sent.
func ParseTokenInfo(raw string) (TokenInfo, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return TokenInfo{}, fmt.Errorf("api: parse token: %w", err)
	}
	var info TokenInfo
	if sub, err := claims.GetSubject(); err == nil {
		info.Subject = sub
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		info.ExpiresAt = exp.Time
	}
	for _, key := range []string{"user_id", "id"} {
		if v, ok := claims[key].(float64); ok {
			info.UserID = int(v)
			break
		}
	}
	return info, nil
}
