package engine

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"localcloud/internal/apperr"
	"localcloud/internal/storage/blob"
)

// KeySchemaElement is one element of a table's key schema, DynamoDB-shaped.
type KeySchemaElement struct {
	AttributeName string `json:"AttributeName"`
	KeyType       string `json:"KeyType"` // HASH or RANGE
}

// CreateKVTable creates a table. attributeDefinitions and keySchema are the
// raw JSON the provider sent; the key schema must name a HASH key.
func (e *Engine) CreateKVTable(name, attributeDefinitions, keySchema string) (*KVTable, error) {
	if name == "" {
		return nil, apperr.InvalidArgument("table name must not be empty")
	}
	var schema []KeySchemaElement
	if err := json.Unmarshal([]byte(keySchema), &schema); err != nil {
		return nil, apperr.InvalidArgument("invalid key schema: %v", err)
	}
	if hashKeyName(schema) == "" {
		return nil, apperr.InvalidArgument("key schema must contain a HASH key")
	}
	var existing KVTable
	if err := e.meta.Get(&existing, `SELECT * FROM kv_tables WHERE name = ?`, name); err == nil {
		return nil, apperr.AlreadyExists("table", name)
	}
	t := &KVTable{
		Name:                 name,
		AttributeDefinitions: attributeDefinitions,
		KeySchema:            keySchema,
		CreatedAt:            e.nowNS(),
	}
	_, err := e.meta.Exec(
		`INSERT INTO kv_tables (name, attribute_definitions, key_schema, created_at) VALUES (?, ?, ?, ?)`,
		t.Name, t.AttributeDefinitions, t.KeySchema, t.CreatedAt)
	if err != nil {
		return nil, dbErr(err, "create table")
	}
	return t, nil
}

// GetKVTable returns a table row.
func (e *Engine) GetKVTable(name string) (*KVTable, error) {
	var t KVTable
	if err := e.meta.Get(&t, `SELECT * FROM kv_tables WHERE name = ?`, name); err != nil {
		return nil, notFoundOr(err, apperr.NotFound("table", name))
	}
	return &t, nil
}

// ListKVTables returns all table names.
func (e *Engine) ListKVTables() ([]string, error) {
	var out []string
	if err := e.meta.Select(&out, `SELECT name FROM kv_tables ORDER BY name`); err != nil {
		return nil, dbErr(err, "list tables")
	}
	return out, nil
}

// DeleteKVTable removes a table and its items.
func (e *Engine) DeleteKVTable(name string) error {
	return e.meta.Tx(func(tx *sqlx.Tx) error {
		res, err := tx.Exec(`DELETE FROM kv_tables WHERE name = ?`, name)
		if err != nil {
			return dbErr(err, "delete table")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperr.NotFound("table", name)
		}
		if _, err := tx.Exec(`DELETE FROM kv_items WHERE table_name = ?`, name); err != nil {
			return dbErr(err, "delete table items")
		}
		return nil
	})
}

// PutKVItem upserts an item. The partition and sort key are extracted from
// the payload per the table's key schema; payload is the opaque
// attribute-value JSON.
func (e *Engine) PutKVItem(table, payload string) (*KVItem, error) {
	t, err := e.GetKVTable(table)
	if err != nil {
		return nil, err
	}
	pk, sk, err := extractItemKey(t.KeySchema, payload)
	if err != nil {
		return nil, err
	}
	item := &KVItem{
		TableName:    table,
		PartitionKey: pk,
		SortKey:      sk,
		Payload:      payload,
		ETag:         blob.ETag(blob.Hash([]byte(payload))),
		UpdatedAt:    e.nowNS(),
	}
	_, err = e.meta.Exec(
		`INSERT INTO kv_items (table_name, partition_key, sort_key, payload, etag, updated_at) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (table_name, partition_key, sort_key) DO UPDATE SET payload = excluded.payload, etag = excluded.etag, updated_at = excluded.updated_at`,
		item.TableName, item.PartitionKey, item.SortKey, item.Payload, item.ETag, item.UpdatedAt)
	if err != nil {
		return nil, dbErr(err, "put item")
	}
	return item, nil
}

// GetKVItem returns an item by key.
func (e *Engine) GetKVItem(table, partitionKey, sortKey string) (*KVItem, error) {
	if _, err := e.GetKVTable(table); err != nil {
		return nil, err
	}
	var item KVItem
	if err := e.meta.Get(&item,
		`SELECT * FROM kv_items WHERE table_name = ? AND partition_key = ? AND sort_key = ?`,
		table, partitionKey, sortKey); err != nil {
		return nil, notFoundOr(err, apperr.NotFound("item", partitionKey))
	}
	return &item, nil
}

// DeleteKVItem removes an item by key. Deleting a missing item succeeds,
// as DynamoDB does.
func (e *Engine) DeleteKVItem(table, partitionKey, sortKey string) error {
	if _, err := e.GetKVTable(table); err != nil {
		return err
	}
	if _, err := e.meta.Exec(
		`DELETE FROM kv_items WHERE table_name = ? AND partition_key = ? AND sort_key = ?`,
		table, partitionKey, sortKey); err != nil {
		return dbErr(err, "delete item")
	}
	return nil
}

// QueryKVItems returns all items sharing a partition key, sort-key order.
func (e *Engine) QueryKVItems(table, partitionKey string) ([]KVItem, error) {
	if _, err := e.GetKVTable(table); err != nil {
		return nil, err
	}
	var out []KVItem
	if err := e.meta.Select(&out,
		`SELECT * FROM kv_items WHERE table_name = ? AND partition_key = ? ORDER BY sort_key`,
		table, partitionKey); err != nil {
		return nil, dbErr(err, "query items")
	}
	return out, nil
}

// ScanKVItems returns every item of a table.
func (e *Engine) ScanKVItems(table string, limit int) ([]KVItem, error) {
	if _, err := e.GetKVTable(table); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 1000
	}
	var out []KVItem
	if err := e.meta.Select(&out,
		`SELECT * FROM kv_items WHERE table_name = ? ORDER BY partition_key, sort_key LIMIT ?`,
		table, limit); err != nil {
		return nil, dbErr(err, "scan items")
	}
	return out, nil
}

// UpsertDocument is the Cosmos-flavored write: id-keyed documents with ETag
// optimistic concurrency. ifMatch, when non-empty, must equal the stored
// ETag. Both sides are compared with surrounding quotes stripped, so clients
// may send the ETag exactly as the header returned it.
func (e *Engine) UpsertDocument(table, id, payload, ifMatch string) (*KVItem, error) {
	if _, err := e.GetKVTable(table); err != nil {
		return nil, err
	}
	if ifMatch != "" {
		var current KVItem
		err := e.meta.Get(&current,
			`SELECT * FROM kv_items WHERE table_name = ? AND partition_key = ? AND sort_key = ''`, table, id)
		if err != nil {
			return nil, notFoundOr(err, apperr.NotFound("document", id))
		}
		if strings.Trim(current.ETag, `"`) != strings.Trim(ifMatch, `"`) {
			return nil, apperr.InvalidRequest("etag mismatch for document %q", id)
		}
	}
	item := &KVItem{
		TableName:    table,
		PartitionKey: id,
		Payload:      payload,
		ETag:         blob.ETag(blob.Hash([]byte(payload))),
		UpdatedAt:    e.nowNS(),
	}
	_, err := e.meta.Exec(
		`INSERT INTO kv_items (table_name, partition_key, sort_key, payload, etag, updated_at) VALUES (?, ?, '', ?, ?, ?)
		 ON CONFLICT (table_name, partition_key, sort_key) DO UPDATE SET payload = excluded.payload, etag = excluded.etag, updated_at = excluded.updated_at`,
		item.TableName, item.PartitionKey, item.Payload, item.ETag, item.UpdatedAt)
	if err != nil {
		return nil, dbErr(err, "upsert document")
	}
	return item, nil
}

// hashKeyName returns the HASH attribute name, "" when absent.
func hashKeyName(schema []KeySchemaElement) string {
	for _, el := range schema {
		if el.KeyType == "HASH" {
			return el.AttributeName
		}
	}
	return ""
}

func rangeKeyName(schema []KeySchemaElement) string {
	for _, el := range schema {
		if el.KeyType == "RANGE" {
			return el.AttributeName
		}
	}
	return ""
}

// extractItemKey pulls the partition (and optional sort) key values out of
// a DynamoDB attribute-value payload like {"id":{"S":"a"},"n":{"N":"1"}}.
func extractItemKey(keySchema, payload string) (string, string, error) {
	var schema []KeySchemaElement
	if err := json.Unmarshal([]byte(keySchema), &schema); err != nil {
		return "", "", apperr.Internal(err, "stored key schema is invalid")
	}
	var item map[string]map[string]any
	if err := json.Unmarshal([]byte(payload), &item); err != nil {
		return "", "", apperr.InvalidArgument("item payload is not attribute-value JSON: %v", err)
	}

	pk, err := attributeScalar(item, hashKeyName(schema))
	if err != nil {
		return "", "", err
	}
	sk := ""
	if rk := rangeKeyName(schema); rk != "" {
		sk, err = attributeScalar(item, rk)
		if err != nil {
			return "", "", err
		}
	}
	return pk, sk, nil
}

// attributeScalar renders the scalar value of one attribute as a string.
func attributeScalar(item map[string]map[string]any, name string) (string, error) {
	av, ok := item[name]
	if !ok {
		return "", apperr.InvalidArgument("item is missing key attribute %q", name)
	}
	for _, tag := range []string{"S", "N", "BOOL"} {
		if v, ok := av[tag]; ok {
			return fmt.Sprintf("%v", v), nil
		}
	}
	return "", apperr.InvalidArgument("key attribute %q must be a scalar", name)
}
