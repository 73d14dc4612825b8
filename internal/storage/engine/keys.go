package engine

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"localcloud/internal/apperr"
	"localcloud/pkg/arn"
)

// CreateKey creates a KMS key in the Enabled state.
func (e *Engine) CreateKey(description, keyUsage string, tags map[string]string) (*Key, error) {
	if keyUsage == "" {
		keyUsage = "ENCRYPT_DECRYPT"
	}
	id := arn.NewID()
	k := &Key{
		ID:          id,
		ARN:         arn.Key(e.region, id),
		Description: description,
		KeyState:    KeyStateEnabled,
		KeyUsage:    keyUsage,
		Tags:        marshalTags(tags),
		CreatedAt:   e.nowNS(),
	}
	_, err := e.meta.Exec(
		`INSERT INTO kms_keys (id, arn, description, key_state, key_usage, tags, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		k.ID, k.ARN, k.Description, k.KeyState, k.KeyUsage, k.Tags, k.CreatedAt)
	if err != nil {
		return nil, dbErr(err, "create key")
	}
	return k, nil
}

// GetKey resolves a key by id or ARN.
func (e *Engine) GetKey(keyID string) (*Key, error) {
	var k Key
	var err error
	if strings.HasPrefix(keyID, "arn:") {
		err = e.meta.Get(&k, `SELECT * FROM kms_keys WHERE arn = ?`, keyID)
	} else {
		err = e.meta.Get(&k, `SELECT * FROM kms_keys WHERE id = ?`, keyID)
	}
	if err != nil {
		return nil, notFoundOr(err, apperr.NotFound("key", keyID))
	}
	return &k, nil
}

// ListKeys returns all keys.
func (e *Engine) ListKeys() ([]Key, error) {
	var out []Key
	if err := e.meta.Select(&out, `SELECT * FROM kms_keys ORDER BY created_at`); err != nil {
		return nil, dbErr(err, "list keys")
	}
	return out, nil
}

// EnableKey transitions Disabled -> Enabled.
func (e *Engine) EnableKey(keyID string) error {
	return e.setKeyState(keyID, KeyStateEnabled, nil, KeyStateDisabled)
}

// DisableKey transitions Enabled -> Disabled.
func (e *Engine) DisableKey(keyID string) error {
	return e.setKeyState(keyID, KeyStateDisabled, nil, KeyStateEnabled)
}

// ScheduleKeyDeletion moves a key to PendingDeletion with a scheduled date.
func (e *Engine) ScheduleKeyDeletion(keyID string, pendingDays int) (*Key, time.Time, error) {
	if pendingDays == 0 {
		pendingDays = 30
	}
	if pendingDays < 7 || pendingDays > 30 {
		return nil, time.Time{}, apperr.InvalidArgument("pending window %d out of range", pendingDays)
	}
	k, err := e.GetKey(keyID)
	if err != nil {
		return nil, time.Time{}, err
	}
	when := e.now().Add(time.Duration(pendingDays) * 24 * time.Hour)
	whenNS := when.UnixNano()
	if err := e.setKeyState(keyID, KeyStatePendingDeletion, &whenNS, KeyStateEnabled, KeyStateDisabled); err != nil {
		return nil, time.Time{}, err
	}
	k.KeyState = KeyStatePendingDeletion
	k.DeletionDate = &whenNS
	return k, when, nil
}

// CancelKeyDeletion transitions PendingDeletion back to Disabled; the key
// must be explicitly re-enabled afterwards.
func (e *Engine) CancelKeyDeletion(keyID string) error {
	return e.setKeyState(keyID, KeyStateDisabled, nil, KeyStatePendingDeletion)
}

func (e *Engine) setKeyState(keyID, next string, deletionDate *int64, allowedFrom ...string) error {
	k, err := e.GetKey(keyID)
	if err != nil {
		return err
	}
	allowed := false
	for _, s := range allowedFrom {
		if k.KeyState == s {
			allowed = true
		}
	}
	if !allowed {
		return apperr.InvalidRequest("key %s is in state %s", k.ID, k.KeyState)
	}
	if _, err := e.meta.Exec(`UPDATE kms_keys SET key_state = ?, deletion_date = ? WHERE id = ?`, next, deletionDate, k.ID); err != nil {
		return dbErr(err, "set key state")
	}
	return nil
}

// The emulated ciphertext format: base64("localcloud:<key-id>:" + plaintext).
// Functionally reversible; cryptographic fidelity is out of scope.
const cipherPrefix = "localcloud:"

// Encrypt produces the mock ciphertext for plaintext under keyID.
func (e *Engine) Encrypt(keyID string, plaintext []byte) (*Key, string, error) {
	k, err := e.GetKey(keyID)
	if err != nil {
		return nil, "", err
	}
	if k.KeyState != KeyStateEnabled {
		return nil, "", apperr.InvalidRequest("key %s is not enabled", k.ID)
	}
	raw := append([]byte(cipherPrefix+k.ID+":"), plaintext...)
	return k, base64.StdEncoding.EncodeToString(raw), nil
}

// Decrypt reverses Encrypt, recovering the key id from the envelope.
func (e *Engine) Decrypt(ciphertext string) (*Key, []byte, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, nil, apperr.InvalidArgument("ciphertext is not valid base64")
	}
	s := string(raw)
	if !strings.HasPrefix(s, cipherPrefix) {
		return nil, nil, apperr.InvalidArgument("unrecognized ciphertext envelope")
	}
	rest := s[len(cipherPrefix):]
	idx := strings.Index(rest, ":")
	if idx < 0 {
		return nil, nil, apperr.InvalidArgument("unrecognized ciphertext envelope")
	}
	k, err := e.GetKey(rest[:idx])
	if err != nil {
		return nil, nil, err
	}
	if k.KeyState != KeyStateEnabled {
		return nil, nil, apperr.InvalidRequest("key %s is not enabled", k.ID)
	}
	return k, []byte(rest[idx+1:]), nil
}

func marshalTags(tags map[string]string) string {
	if len(tags) == 0 {
		return "{}"
	}
	raw, err := json.Marshal(tags)
	if err != nil {
		return "{}"
	}
	return string(raw)
}
