package app

import (
	"context"
	"log/slog"
	"sync"

	"lightsats/internal/infra"
	"lightsats/internal/infra/storage"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config     *infra.Config
	Storage    *storage.Storage
	Downloader *infra.AvatarDownloader
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize performs core system initialization (DB, Dir, etc.)
func (b *Bootstrap) Initialize(configPath string) error {
	slog.Info("Bootstrapping Lightsats...")

	// 1. Load Config
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	// 3. Initialize Storage (DB)
	store, err := storage.NewStorage(cfg.Storage.Path)
	if err != nil {
		return err
	}
	b.Storage = store
	slog.Info("Database initialized")

	// 4. Initialize Avatar Downloader
	downloader, err := infra.NewAvatarDownloader()
	if err != nil {
		return err
	}
	b.Downloader = downloader
	slog.Info("Avatar downloader ready")

	return nil
}

// SyncAvatars refreshes the local avatar cache for all known users in the
// background, so claim pages can serve tipper avatars without a remote hit.
func (b *Bootstrap) SyncAvatars(ctx context.Context) {
	users, err := b.Storage.UsersWithAvatars()
	if err != nil {
		slog.Error("Failed to list users for avatar sync", slog.Any("error", err))
		return
	}
	if len(users) == 0 {
		return
	}

	slog.Info("Starting avatar synchronization", slog.Int("users", len(users)))

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, 5) // Limit concurrent downloads

	for _, user := range users {
		wg.Add(1)
		go func(id, url string) {
			defer wg.Done()
			select {
			case <-ctx.Done():
				return
			case semaphore <- struct{}{}: // Acquire
			}
			defer func() { <-semaphore }() // Release

			path, err := b.Downloader.DownloadAvatar(id, url)
			if err != nil {
				slog.Warn("Failed to download avatar", slog.String("user_id", id), slog.Any("error", err))
				return
			}

			u, err := b.Storage.GetUser(id)
			if err != nil || u == nil {
				return
			}
			if u.AvatarPath != path {
				u.AvatarPath = path
				if err := b.Storage.SaveUser(u); err != nil {
					slog.Warn("Failed to record avatar path", slog.String("user_id", id), slog.Any("error", err))
				}
			}
		}(user.ID, user.AvatarURL)
	}

	wg.Wait()
	slog.Info("Avatar synchronization completed")
}
