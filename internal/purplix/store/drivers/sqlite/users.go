package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/purplix/backend/internal/purplix/domain"
	"github.com/purplix/backend/internal/purplix/store"
)

type usersRepo struct {
	db dbtx
}

const userColumns = `id, email, email_verified, kdf_salt, kdf_time_cost, kdf_memory_cost,
	sign_public_key, box_public_key, box_private_iv, box_private_cipher,
	keychain_iv, keychain_cipher, signature, algorithms,
	otp_secret, otp_completed, ip_lookup_consent, notifications, created_at, updated_at`

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	notifications, err := json.Marshal(u.Notifications)
	if err != nil {
		return fmt.Errorf("encode notifications: %w", err)
	}
	c := u.Credentials
	_, err = r.db.ExecContext(ctx, `INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.EmailVerified, c.KDF.Salt, c.KDF.TimeCost, c.KDF.MemoryCost,
		c.SignPublicKey, c.BoxPublicKey, c.BoxPrivateKey.IV, c.BoxPrivateKey.CipherText,
		c.Keychain.IV, c.Keychain.CipherText, c.Signature, c.Algorithms,
		u.OTPSecret, u.OTPCompleted, u.IPLookupConsent, string(notifications),
		toMillis(u.CreatedAt), toMillis(u.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	return r.get(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.get(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

func (r *usersRepo) get(ctx context.Context, query string, arg any) (domain.User, error) {
	var (
		u                    domain.User
		c                    = &u.Credentials
		notifications        string
		createdAt, updatedAt int64
	)
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.Email, &u.EmailVerified, &c.KDF.Salt, &c.KDF.TimeCost, &c.KDF.MemoryCost,
		&c.SignPublicKey, &c.BoxPublicKey, &c.BoxPrivateKey.IV, &c.BoxPrivateKey.CipherText,
		&c.Keychain.IV, &c.Keychain.CipherText, &c.Signature, &c.Algorithms,
		&u.OTPSecret, &u.OTPCompleted, &u.IPLookupConsent, &notifications,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	if err := json.Unmarshal([]byte(notifications), &u.Notifications); err != nil {
		return domain.User{}, fmt.Errorf("decode notifications for %s: %w", u.ID, err)
	}
	u.CreatedAt = fromMillis(createdAt)
	u.UpdatedAt = fromMillis(updatedAt)
	return u, nil
}

func (r *usersRepo) SetEmailVerified(ctx context.Context, userID string) error {
	return expectOne(r.db.ExecContext(ctx,
		`UPDATE users SET email_verified = 1, updated_at = ? WHERE id = ?`,
		toMillis(time.Now()), userID))
}

func (r *usersRepo) SetOTP(ctx context.Context, userID, secret string, completed bool) error {
	return expectOne(r.db.ExecContext(ctx,
		`UPDATE users SET otp_secret = ?, otp_completed = ?, updated_at = ? WHERE id = ?`,
		secret, completed, toMillis(time.Now()), userID))
}

func (r *usersRepo) CompleteOTP(ctx context.Context, userID string) error {
	err := expectOne(r.db.ExecContext(ctx,
		`UPDATE users SET otp_completed = 1, updated_at = ? WHERE id = ? AND otp_completed = 0`,
		toMillis(time.Now()), userID))
	if errors.Is(err, store.ErrNotFound) {
		// Either the user is gone or setup already completed.
		if _, getErr := r.GetUserByID(ctx, userID); getErr != nil {
			return getErr
		}
		return store.ErrAlreadyExists
	}
	return err
}

func (r *usersRepo) UpdateCredentials(ctx context.Context, userID string, c domain.Credentials) error {
	return expectOne(r.db.ExecContext(ctx, `UPDATE users SET
		kdf_salt = ?, kdf_time_cost = ?, kdf_memory_cost = ?,
		sign_public_key = ?, box_public_key = ?, box_private_iv = ?, box_private_cipher = ?,
		keychain_iv = ?, keychain_cipher = ?, signature = ?, algorithms = ?, updated_at = ?
		WHERE id = ?`,
		c.KDF.Salt, c.KDF.TimeCost, c.KDF.MemoryCost,
		c.SignPublicKey, c.BoxPublicKey, c.BoxPrivateKey.IV, c.BoxPrivateKey.CipherText,
		c.Keychain.IV, c.Keychain.CipherText, c.Signature, c.Algorithms, toMillis(time.Now()),
		userID))
}

func (r *usersRepo) SetIPLookupConsent(ctx context.Context, userID string, consent bool) error {
	return expectOne(r.db.ExecContext(ctx,
		`UPDATE users SET ip_lookup_consent = ?, updated_at = ? WHERE id = ?`,
		consent, toMillis(time.Now()), userID))
}

func (r *usersRepo) UpdateNotifications(ctx context.Context, userID string, n domain.Notifications) error {
	encoded, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notifications: %w", err)
	}
	return expectOne(r.db.ExecContext(ctx,
		`UPDATE users SET notifications = ?, updated_at = ? WHERE id = ?`,
		string(encoded), toMillis(time.Now()), userID))
}
