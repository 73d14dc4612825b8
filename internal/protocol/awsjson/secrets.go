package awsjson

import (
	"encoding/json"

	"localcloud/internal/storage/engine"
)

func (a *API) secrets(op string, body []byte) (any, error) {
	switch op {
	case "CreateSecret":
		var req struct {
			Name         string  `json:"Name"`
			Description  string  `json:"Description"`
			SecretString *string `json:"SecretString"`
			SecretBinary []byte  `json:"SecretBinary"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		s, versionID, err := a.eng.CreateSecret(req.Name, req.Description, req.SecretString, req.SecretBinary)
		if err != nil {
			return nil, err
		}
		out := map[string]any{"ARN": s.ARN, "Name": s.Name}
		if versionID != "" {
			out["VersionId"] = versionID
		}
		return out, nil

	case "GetSecretValue":
		var req struct {
			SecretID  string `json:"SecretId"`
			VersionID string `json:"VersionId"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		s, v, err := a.eng.GetSecretValue(req.SecretID, req.VersionID)
		if err != nil {
			return nil, err
		}
		out := map[string]any{
			"ARN":           s.ARN,
			"Name":          s.Name,
			"VersionId":     v.VersionID,
			"VersionStages": stages(v.VersionStages),
			"CreatedDate":   epoch(v.CreatedAt),
		}
		if v.StringValue != nil {
			out["SecretString"] = *v.StringValue
		}
		if v.BinaryValue != nil {
			out["SecretBinary"] = v.BinaryValue
		}
		return out, nil

	case "PutSecretValue":
		var req struct {
			SecretID     string  `json:"SecretId"`
			SecretString *string `json:"SecretString"`
			SecretBinary []byte  `json:"SecretBinary"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		secretARN, versionID, err := a.eng.PutSecretValue(req.SecretID, req.SecretString, req.SecretBinary)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"ARN":           secretARN,
			"VersionId":     versionID,
			"VersionStages": []string{"AWSCURRENT"},
		}, nil

	case "DescribeSecret":
		var req struct {
			SecretID string `json:"SecretId"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		s, err := a.eng.GetSecret(req.SecretID)
		if err != nil {
			return nil, err
		}
		return secretEntry(s), nil

	case "ListSecrets":
		list, err := a.eng.ListSecrets()
		if err != nil {
			return nil, err
		}
		out := make([]map[string]any, 0, len(list))
		for i := range list {
			out = append(out, secretEntry(&list[i]))
		}
		return map[string]any{"SecretList": out}, nil

	case "UpdateSecret":
		var req struct {
			SecretID    string `json:"SecretId"`
			Description string `json:"Description"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		s, err := a.eng.UpdateSecret(req.SecretID, req.Description)
		if err != nil {
			return nil, err
		}
		return map[string]any{"ARN": s.ARN, "Name": s.Name}, nil

	case "DeleteSecret":
		var req struct {
			SecretID string `json:"SecretId"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		s, err := a.eng.DeleteSecret(req.SecretID)
		if err != nil {
			return nil, err
		}
		return map[string]any{"ARN": s.ARN, "Name": s.Name}, nil
	}
	return nil, notImplemented("secretsmanager", op)
}

func secretEntry(s *engine.Secret) map[string]any {
	return map[string]any{
		"ARN":         s.ARN,
		"Name":        s.Name,
		"Description": s.Description,
		"CreatedDate": epoch(s.CreatedAt),
	}
}

// stages decodes the stored JSON stage list, empty list on bad data.
func stages(raw string) []string {
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil || out == nil {
		return []string{}
	}
	return out
}
