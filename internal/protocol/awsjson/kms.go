package awsjson

import (
	"crypto/rand"

	"localcloud/internal/apperr"
	"localcloud/internal/storage/engine"
)

type keyMetadata struct {
	KeyID        string   `json:"KeyId"`
	Arn          string   `json:"Arn"`
	Description  string   `json:"Description"`
	KeyState     string   `json:"KeyState"`
	KeyUsage     string   `json:"KeyUsage"`
	Enabled      bool     `json:"Enabled"`
	KeyManager   string   `json:"KeyManager"`
	CreationDate float64  `json:"CreationDate"`
	DeletionDate *float64 `json:"DeletionDate,omitempty"`
}

func keyMeta(k *engine.Key) keyMetadata {
	return keyMetadata{
		KeyID:        k.ID,
		Arn:          k.ARN,
		Description:  k.Description,
		KeyState:     k.KeyState,
		KeyUsage:     k.KeyUsage,
		Enabled:      k.KeyState == engine.KeyStateEnabled,
		KeyManager:   "CUSTOMER",
		CreationDate: epoch(k.CreatedAt),
		DeletionDate: epochPtr(k.DeletionDate),
	}
}

func (a *API) kms(op string, body []byte) (any, error) {
	switch op {
	case "CreateKey":
		var req struct {
			Description string `json:"Description"`
			KeyUsage    string `json:"KeyUsage"`
			Tags        []struct {
				TagKey   string `json:"TagKey"`
				TagValue string `json:"TagValue"`
			} `json:"Tags"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		var tags map[string]string
		for _, t := range req.Tags {
			if tags == nil {
				tags = map[string]string{}
			}
			tags[t.TagKey] = t.TagValue
		}
		k, err := a.eng.CreateKey(req.Description, req.KeyUsage, tags)
		if err != nil {
			return nil, err
		}
		return map[string]any{"KeyMetadata": keyMeta(k)}, nil

	case "DescribeKey":
		var req struct {
			KeyID string `json:"KeyId"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		k, err := a.eng.GetKey(req.KeyID)
		if err != nil {
			return nil, err
		}
		return map[string]any{"KeyMetadata": keyMeta(k)}, nil

	case "ListKeys":
		keys, err := a.eng.ListKeys()
		if err != nil {
			return nil, err
		}
		type entry struct {
			KeyID  string `json:"KeyId"`
			KeyArn string `json:"KeyArn"`
		}
		out := make([]entry, 0, len(keys))
		for _, k := range keys {
			out = append(out, entry{KeyID: k.ID, KeyArn: k.ARN})
		}
		return map[string]any{"Keys": out}, nil

	case "EnableKey", "DisableKey":
		var req struct {
			KeyID string `json:"KeyId"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		var err error
		if op == "EnableKey" {
			err = a.eng.EnableKey(req.KeyID)
		} else {
			err = a.eng.DisableKey(req.KeyID)
		}
		if err != nil {
			return nil, err
		}
		return struct{}{}, nil

	case "ScheduleKeyDeletion":
		var req struct {
			KeyID               string `json:"KeyId"`
			PendingWindowInDays int    `json:"PendingWindowInDays"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		k, deletionDate, err := a.eng.ScheduleKeyDeletion(req.KeyID, req.PendingWindowInDays)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"KeyId":        k.ARN,
			"DeletionDate": epoch(deletionDate.UnixNano()),
		}, nil

	case "CancelKeyDeletion":
		var req struct {
			KeyID string `json:"KeyId"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		k, err := a.eng.GetKey(req.KeyID)
		if err != nil {
			return nil, err
		}
		if err := a.eng.CancelKeyDeletion(req.KeyID); err != nil {
			return nil, err
		}
		return map[string]any{"KeyId": k.ARN}, nil

	case "Encrypt":
		var req struct {
			KeyID     string `json:"KeyId"`
			Plaintext []byte `json:"Plaintext"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		k, ciphertext, err := a.eng.Encrypt(req.KeyID, req.Plaintext)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"KeyId":          k.ARN,
			"CiphertextBlob": ciphertext,
		}, nil

	case "GenerateDataKey":
		var req struct {
			KeyID         string `json:"KeyId"`
			KeySpec       string `json:"KeySpec"`
			NumberOfBytes int    `json:"NumberOfBytes"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		size := req.NumberOfBytes
		if size == 0 {
			switch req.KeySpec {
			case "AES_128":
				size = 16
			default:
				size = 32
			}
		}
		if size < 1 || size > 1024 {
			return nil, apperr.InvalidArgument("NumberOfBytes must be between 1 and 1024")
		}
		plaintext := make([]byte, size)
		if _, err := rand.Read(plaintext); err != nil {
			return nil, apperr.Internal(err, "generate data key")
		}
		k, ciphertext, err := a.eng.Encrypt(req.KeyID, plaintext)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"KeyId":          k.ARN,
			"Plaintext":      plaintext,
			"CiphertextBlob": ciphertext,
		}, nil

	case "Decrypt":
		var req struct {
			CiphertextBlob string `json:"CiphertextBlob"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		k, plaintext, err := a.eng.Decrypt(req.CiphertextBlob)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"KeyId":     k.ARN,
			"Plaintext": plaintext,
		}, nil
	}
	return nil, notImplemented("TrentService", op)
}
