package app

import (
	"github.com/rs/zerolog"

	"cgraph/internal/directory"
	"cgraph/internal/domain"
	devicesvc "cgraph/internal/services/device"
	messagesvc "cgraph/internal/services/message"
	"cgraph/internal/store"
)

// App bundles the stores, clients and services for one logged-in user.
type App struct {
	Keys      *store.KeyStore
	Directory *directory.Client
	Bundles   *directory.BundleCache
	Messages  *messagesvc.Service
	Devices   *devicesvc.Service
}

// New constructs the dependency graph from cfg. The passphrase seals the
// on-disk secure storage.
func New(cfg Config, passphrase string, log zerolog.Logger) *App {
	storage := store.NewFileStorage(cfg.Home, passphrase)
	keys := store.NewKeyStore(storage)

	dir := directory.NewClient(cfg.DirectoryURL, cfg.HTTP, log)
	cache := directory.NewBundleCache(dir, cfg.BundleTTL)

	userID := domain.UserID(cfg.UserID)
	messages := messagesvc.New(userID, keys, cache)
	devices := devicesvc.New(keys, dir, log,
		devicesvc.WithWatermarks(cfg.PreKeyLowWater, cfg.PreKeyHighWater),
		devicesvc.WithCheckInterval(cfg.ReplenishEvery),
	)

	return &App{
		Keys:      keys,
		Directory: dir,
		Bundles:   cache,
		Messages:  messages,
		Devices:   devices,
	}
}
