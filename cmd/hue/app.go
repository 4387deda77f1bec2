package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/huebot/internal/api"
	"github.com/zulandar/huebot/internal/cache"
	"github.com/zulandar/huebot/internal/config"
	"github.com/zulandar/huebot/internal/db"
	"github.com/zulandar/huebot/internal/history"
	"github.com/zulandar/huebot/internal/logging"
	"github.com/zulandar/huebot/internal/models"
	"gorm.io/gorm"
)

const defaultConfigPath = "huebot.yaml"

// app bundles what a command needs: config, logger, local store and an API
// client carrying the profile's token.
type app struct {
	cfg     *config.Config
	log     *logging.Logger
	db      *gorm.DB
	client  *api.Client
	cache   *cache.Client
	profile string
	userID  int
}

// commonFlags are registered on every command that talks to the service.
type commonFlags struct {
	configPath string
	profile    string
}

func (f *commonFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.configPath, "config", "c", defaultConfigPath, "path to huebot config file")
	cmd.Flags().StringVar(&f.profile, "profile", db.DefaultProfile, "credential profile")
}

// openApp loads config, opens the store and restores the profile's login.
func openApp(f commonFlags) (*app, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logging.New(cfg.Log.Mode)
	if err != nil {
		return nil, err
	}
	gormDB, err := db.Open(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	client, err := api.New(api.Options{
		BaseURL:         cfg.API.BaseURL,
		Timeout:         cfg.API.Timeout,
		FeedbackTimeout: cfg.API.FeedbackTimeout,
	})
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		log:     log,
		db:      gormDB,
		client:  client,
		cache:   cache.NewClient(cache.ClientOptions{GCTime: cfg.Cache.GC, Logger: log}),
		profile: f.profile,
	}
	if err := a.restoreToken(); err != nil {
		return nil, err
	}
	return a, nil
}

// restoreToken installs HUE_TOKEN or the stored credential. Expired tokens
// are dropped with a warning so commands fail with a clear auth error.
func (a *app) restoreToken() error {
	token := a.cfg.Token
	if token == "" {
		cred, err := db.LoadCredential(a.db, a.profile)
		if errors.Is(err, db.ErrNoCredential) {
			return nil
		}
		if err != nil {
			return err
		}
		if cred.BaseURL != "" && cred.BaseURL != a.cfg.API.BaseURL {
			a.log.Warn("stored credential belongs to another server", "profile", a.profile, "server", cred.BaseURL)
			return nil
		}
		if cred.ExpiresAt != nil && !time.Now().Before(*cred.ExpiresAt) {
			a.log.Warn("stored token has expired; run `hue auth login`", "profile", a.profile)
			return nil
		}
		token = cred.Token
		a.userID = cred.UserID
	}

	if info, err := api.ParseTokenInfo(token); err == nil {
		if info.Expired(time.Now()) {
			a.log.Warn("token has expired; run `hue auth login`", "profile", a.profile)
			return nil
		}
		if a.userID == 0 {
			a.userID = info.UserID
		}
	}
	a.client.SetToken(token)
	return nil
}

// saveLogin stores a fresh login for the profile.
func (a *app) saveLogin(tok api.Token) error {
	cred := &models.Credential{
		Profile:  a.profile,
		BaseURL:  a.cfg.API.BaseURL,
		Token:    tok.AccessToken,
		UserID:   tok.User.ID,
		Username: tok.User.Username,
		Nickname: tok.User.Nickname,
	}
	if !tok.Expiry.IsZero() {
		exp := tok.Expiry
		cred.ExpiresAt = &exp
	}
	if err := db.SaveCredential(a.db, cred); err != nil {
		return err
	}
	a.userID = tok.User.ID
	return nil
}

// signOut forgets the profile's token and every cached entry.
func (a *app) signOut() error {
	a.client.SetToken("")
	a.cache.Clear()
	a.userID = 0
	return db.DeleteCredential(a.db, a.profile)
}

func (a *app) requireLogin() error {
	if a.client.Token() == "" {
		return fmt.Errorf("not signed in; run `hue auth login`")
	}
	return nil
}

// ensureUser resolves the signed-in user id, asking the server when the
// token does not carry one.
func (a *app) ensureUser(ctx context.Context) error {
	if err := a.requireLogin(); err != nil {
		return err
	}
	if a.userID != 0 {
		return nil
	}
	user, err := a.client.Me(ctx)
	if err != nil {
		return fmt.Errorf("look up signed-in user: %w", err)
	}
	a.userID = user.ID
	return nil
}

func (a *app) history() *history.Service {
	return history.NewService(a.client, a.cache, a.userID, history.Options{
		StaleNormal: a.cfg.Cache.StaleNormal,
		StaleLive:   a.cfg.Cache.StaleLive,
		Retry:       a.cfg.Cache.Retry,
	}, a.log)
}

func (a *app) close() {
	a.cache.Stop()
	a.log.Sync()
	if sqlDB, err := a.db.DB(); err == nil {
		sqlDB.Close()
	}
}
