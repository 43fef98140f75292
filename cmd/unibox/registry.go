package main

import (
	"context"

	"github.com/daviddao/unibox/internal/auth"
	"github.com/daviddao/unibox/internal/provider"
	"github.com/daviddao/unibox/internal/provider/gmail"
	"github.com/daviddao/unibox/internal/provider/imapmail"
	"github.com/daviddao/unibox/internal/provider/outlook"
)

// buildRegistry acquires a session for every configured account and
// returns the adapter registry. An account whose session cannot be
// acquired gets an Unavailable adapter: its passes and remote actions
// fail cleanly for that account alone instead of aborting the command.
func buildRegistry(ctx context.Context) *provider.Registry {
	var adapters []provider.Adapter

	for _, g := range cfg.Gmail {
		account := g.AccountID()
		svc, err := auth.GmailService(ctx, g.CredentialsDir)
		if err != nil {
			logger.Warn("gmail session unavailable", "account", account, "err", err)
			adapters = append(adapters, provider.NewUnavailable(account, err))
			continue
		}
		adapters = append(adapters, gmail.New(account, svc, logger))
	}

	if o := cfg.Outlook; o != nil {
		client, err := auth.GraphClient(ctx, o.ClientID, o.Tenant, o.TokenPath)
		if err != nil {
			logger.Warn("outlook session unavailable", "err", err)
			adapters = append(adapters, provider.NewUnavailable("outlook", err))
		} else {
			adapters = append(adapters, outlook.New("outlook", client, logger))
		}
	}

	for _, i := range cfg.IMAP {
		adapters = append(adapters, imapmail.New(imapmail.Config{
			Host:     i.Host,
			Port:     i.Port,
			Username: i.Username,
			Password: i.Password,
			TLS:      i.TLS,
		}, logger))
	}

	return provider.NewRegistry(adapters...)
}

// buildEmptyRegistry returns a registry with no adapters; every account
// resolves to the Noop adapter. Used by local-only actions.
func buildEmptyRegistry() *provider.Registry {
	return provider.NewRegistry()
}
