// Package singlebase is the Go client SDK for the Singlebase backend.
//
// A Client bundles the authenticated dispatcher with the service surfaces
// built on top of it: session management (Auth), datastore collections
// (Collection) and file storage (File). Construct one per project:
//
//	cfg, err := config.Load("")
//	...
//	sb, err := singlebase.New(singlebase.Options{Config: cfg})
//	...
//	defer sb.Close()
//
//	res := sb.Auth.SignInWithPassword(ctx, email, password)
package singlebase

import (
	"fmt"
	"net/http"

	"github.com/singlebase/singlebase-go/auth"
	"github.com/singlebase/singlebase-go/collection"
	"github.com/singlebase/singlebase-go/config"
	"github.com/singlebase/singlebase-go/dispatch"
	"github.com/singlebase/singlebase-go/filestore"
	"github.com/singlebase/singlebase-go/internal/common"
	"github.com/singlebase/singlebase-go/internal/logging"
	"github.com/singlebase/singlebase-go/storage"
)

// Options configures a Client. Config is required; everything else has a
// working default.
type Options struct {
	Config *config.Config

	// Medium overrides where sessions are persisted. When nil, Config.CacheDir
	// selects a file-backed medium, or process memory if the dir is empty.
	Medium storage.Medium

	// HTTPClient is used for dispatch calls and presigned uploads.
	HTTPClient *http.Client

	Logger logging.Logger
}

// Client is the root SDK handle.
type Client struct {
	Auth *auth.Client
	File *filestore.Client

	cfg        *config.Config
	dispatcher *dispatch.HTTPDispatcher
	medium     storage.Medium
	ownsMedium bool
}

// New wires up a Client from opts. It restores any persisted session
// synchronously, so the returned client is immediately usable.
func New(opts Options) (*Client, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, fmt.Errorf("singlebase: %w: config is required", common.ErrorValidation)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.RequestTimeout}
	}

	medium := opts.Medium
	ownsMedium := false
	if medium == nil {
		if cfg.CacheDir != "" {
			fm, err := storage.NewFileMedium(cfg.CacheDir)
			if err != nil {
				return nil, err
			}
			medium = fm
			ownsMedium = true
		} else {
			medium = storage.NewMemoryMedium()
		}
	}

	dispatcher := dispatch.NewHTTPDispatcher(cfg.Endpoint, cfg.APIKey, httpClient)

	authClient, err := auth.NewClient(auth.Options{
		Dispatcher:      dispatcher,
		Medium:          medium,
		Namespace:       cfg.Namespace,
		ValidityMargin:  cfg.ValidityMargin,
		RefreshInterval: cfg.RefreshInterval,
		Logger:          logger,
	})
	if err != nil {
		return nil, err
	}

	// The dispatcher reads the live token synchronously. Refreshing is the
	// scheduler's job; doing it here would recurse into dispatch.
	dispatcher.TokenProvider = authClient.IDToken

	fileClient, err := filestore.New(dispatcher, httpClient)
	if err != nil {
		authClient.Close()
		return nil, err
	}

	return &Client{
		Auth:       authClient,
		File:       fileClient,
		cfg:        cfg,
		dispatcher: dispatcher,
		medium:     medium,
		ownsMedium: ownsMedium,
	}, nil
}

// Collection returns a client bound to the named datastore collection.
func (c *Client) Collection(name string) (*collection.Client, error) {
	return collection.New(c.dispatcher, name)
}

// Dispatcher exposes the underlying action dispatcher for custom calls.
func (c *Client) Dispatcher() dispatch.Dispatcher {
	return c.dispatcher
}

// Close stops the background refresher and releases the session medium if
// the client created it. The persisted session itself is kept.
func (c *Client) Close() {
	c.Auth.Close()
	if c.ownsMedium {
		if closer, ok := c.medium.(interface{ Close() error }); ok {
			_ = closer.Close()
		}
	}
}
