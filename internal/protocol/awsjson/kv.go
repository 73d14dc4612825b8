package awsjson

import (
	"encoding/json"

	"localcloud/internal/apperr"
	"localcloud/internal/storage/engine"
)

// tableDescription is the DynamoDB-shaped view of a table row. KeySchema and
// AttributeDefinitions are stored verbatim and echoed back untouched.
type tableDescription struct {
	TableName            string          `json:"TableName"`
	KeySchema            json.RawMessage `json:"KeySchema"`
	AttributeDefinitions json.RawMessage `json:"AttributeDefinitions"`
	TableStatus          string          `json:"TableStatus"`
	CreationDateTime     float64         `json:"CreationDateTime"`
	ItemCount            int             `json:"ItemCount"`
}

func describeTable(t *engine.KVTable, itemCount int) tableDescription {
	return tableDescription{
		TableName:            t.Name,
		KeySchema:            json.RawMessage(t.KeySchema),
		AttributeDefinitions: json.RawMessage(t.AttributeDefinitions),
		TableStatus:          "ACTIVE",
		CreationDateTime:     epoch(t.CreatedAt),
		ItemCount:            itemCount,
	}
}

func (a *API) kv(op string, body []byte) (any, error) {
	switch op {
	case "CreateTable":
		var req struct {
			TableName            string          `json:"TableName"`
			KeySchema            json.RawMessage `json:"KeySchema"`
			AttributeDefinitions json.RawMessage `json:"AttributeDefinitions"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		t, err := a.eng.CreateKVTable(req.TableName, string(req.AttributeDefinitions), string(req.KeySchema))
		if err != nil {
			return nil, err
		}
		return map[string]any{"TableDescription": describeTable(t, 0)}, nil

	case "DescribeTable":
		var req struct {
			TableName string `json:"TableName"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		t, err := a.eng.GetKVTable(req.TableName)
		if err != nil {
			return nil, err
		}
		items, err := a.eng.ScanKVItems(req.TableName, 0)
		if err != nil {
			return nil, err
		}
		return map[string]any{"Table": describeTable(t, len(items))}, nil

	case "ListTables":
		names, err := a.eng.ListKVTables()
		if err != nil {
			return nil, err
		}
		if names == nil {
			names = []string{}
		}
		return map[string]any{"TableNames": names}, nil

	case "DeleteTable":
		var req struct {
			TableName string `json:"TableName"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		t, err := a.eng.GetKVTable(req.TableName)
		if err != nil {
			return nil, err
		}
		if err := a.eng.DeleteKVTable(req.TableName); err != nil {
			return nil, err
		}
		desc := describeTable(t, 0)
		desc.TableStatus = "DELETING"
		return map[string]any{"TableDescription": desc}, nil

	case "PutItem":
		var req struct {
			TableName string          `json:"TableName"`
			Item      json.RawMessage `json:"Item"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		if _, err := a.eng.PutKVItem(req.TableName, string(req.Item)); err != nil {
			return nil, err
		}
		return struct{}{}, nil

	case "GetItem":
		req, err := decodeItemKey(body)
		if err != nil {
			return nil, err
		}
		pk, sk, err := a.resolveKey(req.TableName, req.Key)
		if err != nil {
			return nil, err
		}
		item, err := a.eng.GetKVItem(req.TableName, pk, sk)
		if err != nil {
			// A missing item is an empty response, not an error.
			if apperr.Is(err, apperr.KindNotFound) {
				return struct{}{}, nil
			}
			return nil, err
		}
		return map[string]any{"Item": json.RawMessage(item.Payload)}, nil

	case "DeleteItem":
		req, err := decodeItemKey(body)
		if err != nil {
			return nil, err
		}
		pk, sk, err := a.resolveKey(req.TableName, req.Key)
		if err != nil {
			return nil, err
		}
		if err := a.eng.DeleteKVItem(req.TableName, pk, sk); err != nil {
			return nil, err
		}
		return struct{}{}, nil

	case "Query":
		var req struct {
			TableName                 string                     `json:"TableName"`
			KeyConditionExpression    string                     `json:"KeyConditionExpression"`
			ExpressionAttributeValues map[string]json.RawMessage `json:"ExpressionAttributeValues"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		pk, err := partitionKeyFromCondition(req.KeyConditionExpression, req.ExpressionAttributeValues)
		if err != nil {
			return nil, err
		}
		items, err := a.eng.QueryKVItems(req.TableName, pk)
		if err != nil {
			return nil, err
		}
		return itemsResponse(items, false), nil

	case "Scan":
		var req struct {
			TableName string `json:"TableName"`
			Limit     int    `json:"Limit"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		items, err := a.eng.ScanKVItems(req.TableName, req.Limit)
		if err != nil {
			return nil, err
		}
		return itemsResponse(items, true), nil
	}
	return nil, notImplemented("DynamoDB_20120810", op)
}

type itemKeyRequest struct {
	TableName string                     `json:"TableName"`
	Key       map[string]map[string]any  `json:"Key"`
}

func decodeItemKey(body []byte) (*itemKeyRequest, error) {
	var req itemKeyRequest
	if err := unmarshal(body, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// resolveKey maps the wire Key attribute-value map onto the engine's flat
// partition/sort key pair using the table's stored key schema.
func (a *API) resolveKey(table string, key map[string]map[string]any) (string, string, error) {
	t, err := a.eng.GetKVTable(table)
	if err != nil {
		return "", "", err
	}
	var schema []engine.KeySchemaElement
	if err := json.Unmarshal([]byte(t.KeySchema), &schema); err != nil {
		return "", "", apperr.Internal(err, "stored key schema is invalid")
	}
	pk, sk := "", ""
	for _, el := range schema {
		v, err := scalarOf(key, el.AttributeName)
		if el.KeyType == "HASH" {
			if err != nil {
				return "", "", err
			}
			pk = v
		} else if err == nil {
			sk = v
		}
	}
	return pk, sk, nil
}

func scalarOf(key map[string]map[string]any, name string) (string, error) {
	av, ok := key[name]
	if !ok {
		return "", apperr.InvalidArgument("Key is missing attribute %q", name)
	}
	for _, tag := range []string{"S", "N", "BOOL"} {
		if v, ok := av[tag]; ok {
			return toScalar(v), nil
		}
	}
	return "", apperr.InvalidArgument("Key attribute %q must be a scalar", name)
}

func toScalar(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, _ := json.Marshal(v)
	return string(b)
}

// partitionKeyFromCondition supports the single shape the emulated clients
// use: "<attr> = :placeholder" with the value in ExpressionAttributeValues.
func partitionKeyFromCondition(expr string, values map[string]json.RawMessage) (string, error) {
	parts := splitCondition(expr)
	if len(parts) != 2 {
		return "", apperr.InvalidArgument("unsupported KeyConditionExpression %q", expr)
	}
	raw, ok := values[parts[1]]
	if !ok {
		return "", apperr.InvalidArgument("KeyConditionExpression references undefined value %q", parts[1])
	}
	var av map[string]any
	if err := json.Unmarshal(raw, &av); err != nil {
		return "", apperr.InvalidArgument("invalid attribute value for %q", parts[1])
	}
	for _, tag := range []string{"S", "N"} {
		if v, ok := av[tag]; ok {
			return toScalar(v), nil
		}
	}
	return "", apperr.InvalidArgument("partition key value must be a scalar")
}

// splitCondition splits "pk = :v" into ["pk", ":v"].
func splitCondition(expr string) []string {
	var out []string
	field := ""
	for _, r := range expr {
		if r == ' ' || r == '=' {
			if field != "" {
				out = append(out, field)
				field = ""
			}
			continue
		}
		field += string(r)
	}
	if field != "" {
		out = append(out, field)
	}
	return out
}

func itemsResponse(items []engine.KVItem, scanned bool) map[string]any {
	payloads := make([]json.RawMessage, 0, len(items))
	for _, it := range items {
		payloads = append(payloads, json.RawMessage(it.Payload))
	}
	out := map[string]any{"Items": payloads, "Count": len(payloads)}
	if scanned {
		out["ScannedCount"] = len(payloads)
	}
	return out
}
