package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/purplix/backend/internal/purplix/store"
	"github.com/purplix/backend/pkg/cryptox"
	"github.com/purplix/backend/pkg/jwtx"
)

// InitSessionKeys builds the KeyManager that signs session tokens.
//
// Storage modes:
//   - "ephemeral": keys live in memory only. Every session ends when the
//     process restarts.
//   - "persistent": keys are sealed with the master key and stored in the
//     database, so sessions survive restarts and replicas share keys.
func InitSessionKeys(ctx context.Context, cfg Config, db store.Store, logger *slog.Logger) (*jwtx.KeyManager, error) {
	switch cfg.KeyStorageMode {
	case "persistent":
		if cfg.MasterKeyFile == "" {
			return nil, fmt.Errorf("PURPLIX_MASTER_KEY_FILE is required for persistent keys")
		}
		cipher, err := cryptox.LoadKeyCipher(cfg.MasterKeyFile)
		if err != nil {
			return nil, err
		}

		// A key stops signing once it would expire before a fresh session.
		margin := time.Duration(cfg.SessionDays) * 24 * time.Hour
		km, err := jwtx.NewPersistentKeyManager(ctx, jwtx.PersistentKeyManagerOptions{
			Store:   store.NewKeyStoreAdapter(db, margin),
			Cipher:  cipher,
			Issuer:  cfg.Issuer,
			NumKeys: cfg.NumKeys,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize persistent key manager: %w", err)
		}
		logger.Info("persistent signing keys loaded",
			"num_keys", km.NumSigners(),
			"issuer", cfg.Issuer,
		)
		return km, nil

	case "ephemeral", "":
		km, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
			Issuer:  cfg.Issuer,
			NumKeys: cfg.NumKeys,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize ephemeral key manager: %w", err)
		}
		logger.Info("generated ephemeral signing keys",
			"num_keys", km.NumSigners(),
			"issuer", cfg.Issuer,
		)
		logger.Warn("sessions will not survive a restart in ephemeral key mode")
		return km, nil
	}

	return nil, fmt.Errorf("unknown key storage mode %q", cfg.KeyStorageMode)
}
