// Package tables browses and edits DynamoDB tables. Items cross the package
// boundary as plain JSON compatible maps so the console never deals with
// attribute value types.
package tables

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/goccy/go-json"
	"github.com/wolfeidau/awsui/internal/awsclient"
	"github.com/wolfeidau/awsui/internal/cursor"
	"github.com/wolfeidau/awsui/internal/telemetry"
	"github.com/wolfeidau/awsui/internal/util"
)

const (
	defaultScanLimit = 50
	maxScanLimit     = 1000
)

// KeyAttr is a key attribute and its scalar type: S, N or B.
type KeyAttr struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Table summarises a table description.
type Table struct {
	Name        string    `json:"name"`
	Status      string    `json:"status"`
	ItemCount   int64     `json:"item_count"`
	SizeBytes   int64     `json:"size_bytes"`
	HashKey     KeyAttr   `json:"hash_key"`
	RangeKey    *KeyAttr  `json:"range_key,omitempty"`
	Indexes     []string  `json:"indexes,omitempty"`
	BillingMode string    `json:"billing_mode"`
	CreatedAt   time.Time `json:"created_at"`
}

// Keys returns the key attributes, hash key first.
func (t *Table) Keys() []KeyAttr {
	keys := []KeyAttr{t.HashKey}
	if t.RangeKey != nil {
		keys = append(keys, *t.RangeKey)
	}
	return keys
}

// Item is a JSON compatible item. Numbers are json.Number, binary values
// []byte and sets slices.
type Item = map[string]any

// ItemPage is one page of a scan.
type ItemPage struct {
	Table      *Table   `json:"table"`
	Columns    []string `json:"columns"`
	Items      []Item   `json:"items"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

// KeyOf returns the key attributes of item with numbers as strings, so
// clients that read JSON numbers as doubles keep them exact.
func (p *ItemPage) KeyOf(item Item) Item {
	key := Item{}
	for _, attr := range p.Table.Keys() {
		v := item[attr.Name]
		if n, ok := v.(json.Number); ok {
			v = n.String()
		}
		key[attr.Name] = v
	}
	return key
}

// Service wraps the DynamoDB client.
type Service struct {
	client awsclient.DynamoDBAPI
}

func NewService(client awsclient.DynamoDBAPI) *Service {
	return &Service{client: client}
}

func (s *Service) observe(ctx context.Context, op string, err error) error {
	telemetry.RecordBackendCall(ctx, "dynamodb", op, err)
	return awsclient.Classify(err, "dynamodb."+op)
}

// List describes every table, ordered by name.
func (s *Service) List(ctx context.Context) ([]Table, error) {
	var tables []Table

	paginator := dynamodb.NewListTablesPaginator(s.client, &dynamodb.ListTablesInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err = s.observe(ctx, "ListTables", err); err != nil {
			return nil, err
		}
		for _, name := range page.TableNames {
			t, err := s.Describe(ctx, name)
			if err != nil {
				return nil, err
			}
			tables = append(tables, *t)
		}
	}

	slices.SortFunc(tables, func(a, b Table) int { return strings.Compare(a.Name, b.Name) })
	return tables, nil
}

// Describe returns a table summary.
func (s *Service) Describe(ctx context.Context, name string) (*Table, error) {
	out, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(name)})
	if err = s.observe(ctx, "DescribeTable", err); err != nil {
		return nil, err
	}
	return tableFromDescription(out.Table), nil
}

func tableFromDescription(desc *types.TableDescription) *Table {
	attrTypes := map[string]string{}
	for _, def := range desc.AttributeDefinitions {
		attrTypes[aws.ToString(def.AttributeName)] = string(def.AttributeType)
	}

	t := &Table{
		Name:        aws.ToString(desc.TableName),
		Status:      string(desc.TableStatus),
		ItemCount:   aws.ToInt64(desc.ItemCount),
		SizeBytes:   aws.ToInt64(desc.TableSizeBytes),
		CreatedAt:   aws.ToTime(desc.CreationDateTime).UTC(),
		BillingMode: string(types.BillingModeProvisioned),
	}
	if desc.BillingModeSummary != nil && desc.BillingModeSummary.BillingMode != "" {
		t.BillingMode = string(desc.BillingModeSummary.BillingMode)
	}

	for _, k := range desc.KeySchema {
		attr := KeyAttr{Name: aws.ToString(k.AttributeName), Type: attrTypes[aws.ToString(k.AttributeName)]}
		switch k.KeyType {
		case types.KeyTypeHash:
			t.HashKey = attr
		case types.KeyTypeRange:
			t.RangeKey = &attr
		}
	}

	for _, idx := range desc.GlobalSecondaryIndexes {
		t.Indexes = append(t.Indexes, aws.ToString(idx.IndexName))
	}
	for _, idx := range desc.LocalSecondaryIndexes {
		t.Indexes = append(t.Indexes, aws.ToString(idx.IndexName))
	}
	slices.Sort(t.Indexes)

	return t
}

// ValidateName applies the DynamoDB table naming rules.
func ValidateName(name string) error {
	if len(name) < 3 || len(name) > 255 {
		return fmt.Errorf("%w: table name must be between 3 and 255 characters", awsclient.ErrInvalidInput)
	}
	for _, r := range name {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') && r != '_' && r != '-' && r != '.' {
			return fmt.Errorf("%w: table name may only contain letters, numbers, '_', '-' and '.'", awsclient.ErrInvalidInput)
		}
	}
	return nil
}

func validateKeyAttr(attr KeyAttr) error {
	if strings.TrimSpace(attr.Name) == "" {
		return fmt.Errorf("%w: key attribute name is required", awsclient.ErrInvalidInput)
	}
	switch types.ScalarAttributeType(attr.Type) {
	case types.ScalarAttributeTypeS, types.ScalarAttributeTypeN, types.ScalarAttributeTypeB:
		return nil
	}
	return fmt.Errorf("%w: key attribute %q has type %q, expected S, N or B", awsclient.ErrInvalidInput, attr.Name, attr.Type)
}

// Create creates an on demand table.
func (s *Service) Create(ctx context.Context, name string, hash KeyAttr, rangeKey *KeyAttr) (*Table, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if err := validateKeyAttr(hash); err != nil {
		return nil, err
	}

	input := &dynamodb.CreateTableInput{
		TableName:   aws.String(name),
		BillingMode: types.BillingModePayPerRequest,
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(hash.Name), KeyType: types.KeyTypeHash},
		},
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(hash.Name), AttributeType: types.ScalarAttributeType(hash.Type)},
		},
	}

	if rangeKey != nil {
		if err := validateKeyAttr(*rangeKey); err != nil {
			return nil, err
		}
		if rangeKey.Name == hash.Name {
			return nil, fmt.Errorf("%w: range key must differ from the hash key", awsclient.ErrInvalidInput)
		}
		input.KeySchema = append(input.KeySchema, types.KeySchemaElement{
			AttributeName: aws.String(rangeKey.Name), KeyType: types.KeyTypeRange,
		})
		input.AttributeDefinitions = append(input.AttributeDefinitions, types.AttributeDefinition{
			AttributeName: aws.String(rangeKey.Name), AttributeType: types.ScalarAttributeType(rangeKey.Type),
		})
	}

	out, err := s.client.CreateTable(ctx, input)
	if err = s.observe(ctx, "CreateTable", err); err != nil {
		return nil, err
	}
	return tableFromDescription(out.TableDescription), nil
}

// Delete deletes a table.
func (s *Service) Delete(ctx context.Context, name string) error {
	_, err := s.client.DeleteTable(ctx, &dynamodb.DeleteTableInput{TableName: aws.String(name)})
	return s.observe(ctx, "DeleteTable", err)
}

// Scan returns one page of items. The cursor is the base58 form of the JSON
// encoded LastEvaluatedKey of the previous page.
func (s *Service) Scan(ctx context.Context, name, pageCursor string, limit int) (*ItemPage, error) {
	table, err := s.Describe(ctx, name)
	if err != nil {
		return nil, err
	}

	input := &dynamodb.ScanInput{
		TableName: aws.String(name),
		Limit:     aws.Int32(util.AsInt32(util.Clamp(limit, 1, maxScanLimit))),
	}
	if limit <= 0 {
		input.Limit = aws.Int32(defaultScanLimit)
	}

	if pageCursor != "" {
		startKey, err := decodeCursor(table, pageCursor)
		if err != nil {
			return nil, err
		}
		input.ExclusiveStartKey = startKey
	}

	out, err := s.client.Scan(ctx, input)
	if err = s.observe(ctx, "Scan", err); err != nil {
		return nil, err
	}

	page := &ItemPage{Table: table, Items: make([]Item, 0, len(out.Items))}
	for _, raw := range out.Items {
		item, err := fromAttributeValues(raw)
		if err != nil {
			return nil, err
		}
		page.Items = append(page.Items, item)
	}
	page.Columns = Columns(table, page.Items)

	if len(out.LastEvaluatedKey) > 0 {
		page.NextCursor, err = encodeCursor(out.LastEvaluatedKey)
		if err != nil {
			return nil, err
		}
	}
	return page, nil
}

// Columns lists the key attributes first, then the sorted union of the
// remaining attribute names.
func Columns(table *Table, items []Item) []string {
	var columns []string
	seen := map[string]bool{}
	for _, k := range table.Keys() {
		columns = append(columns, k.Name)
		seen[k.Name] = true
	}

	var rest []string
	for _, item := range items {
		for name := range item {
			if !seen[name] {
				seen[name] = true
				rest = append(rest, name)
			}
		}
	}
	slices.Sort(rest)
	return append(columns, rest...)
}

func encodeCursor(key map[string]types.AttributeValue) (string, error) {
	plain, err := fromAttributeValues(key)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(plain)
	if err != nil {
		return "", fmt.Errorf("failed to encode cursor: %w", err)
	}
	return cursor.Encode(data), nil
}

func decodeCursor(table *Table, c string) (map[string]types.AttributeValue, error) {
	data, err := cursor.Decode(c)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", awsclient.ErrInvalidInput, err)
	}
	plain, err := decodeDocument(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", awsclient.ErrInvalidInput, cursor.ErrInvalidCursor)
	}
	return KeyValues(table, plain)
}

// Get returns the item with the given key.
func (s *Service) Get(ctx context.Context, name string, key Item) (Item, error) {
	raw, err := s.get(ctx, name, key)
	if err != nil {
		return nil, err
	}
	return fromAttributeValues(raw)
}

// GetTyped returns the item with the given key in DynamoDB JSON, the form
// the console edits so attribute types survive the round trip.
func (s *Service) GetTyped(ctx context.Context, name string, key Item) (TypedItem, error) {
	raw, err := s.get(ctx, name, key)
	if err != nil {
		return nil, err
	}
	return ToTyped(raw), nil
}

func (s *Service) get(ctx context.Context, name string, key Item) (map[string]types.AttributeValue, error) {
	table, err := s.Describe(ctx, name)
	if err != nil {
		return nil, err
	}
	av, err := KeyValues(table, key)
	if err != nil {
		return nil, err
	}

	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{TableName: aws.String(name), Key: av})
	if err = s.observe(ctx, "GetItem", err); err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("dynamodb.GetItem: %w", awsclient.ErrNotFound)
	}
	return out.Item, nil
}

// Put writes a JSON document as an item, replacing any item with the same
// key. The document must be an object carrying every key attribute. Arrays
// are stored as lists and strings as strings, use PutTyped to write sets or
// binary attributes.
func (s *Service) Put(ctx context.Context, name string, document []byte) (Item, error) {
	return s.put(ctx, name, document, false)
}

// Insert writes a JSON document as a new item and fails with
// ErrAlreadyExists when an item with the same key is present.
func (s *Service) Insert(ctx context.Context, name string, document []byte) (Item, error) {
	return s.put(ctx, name, document, true)
}

func (s *Service) put(ctx context.Context, name string, document []byte, mustNotExist bool) (Item, error) {
	table, err := s.Describe(ctx, name)
	if err != nil {
		return nil, err
	}

	doc, err := DecodeItem(document)
	if err != nil {
		return nil, err
	}

	keys, err := KeyValues(table, doc)
	if err != nil {
		return nil, err
	}

	av, err := attributevalue.MarshalMap(toAttributeNumbers(doc))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", awsclient.ErrInvalidInput, err)
	}
	// binary keys arrive base64 encoded
	for k, v := range keys {
		av[k] = v
	}
	return s.write(ctx, table, av, mustNotExist)
}

// PutTyped writes a DynamoDB JSON document as an item. With mustNotExist an
// existing item with the same key fails with ErrAlreadyExists.
func (s *Service) PutTyped(ctx context.Context, name string, document []byte, mustNotExist bool) (Item, error) {
	table, err := s.Describe(ctx, name)
	if err != nil {
		return nil, err
	}

	doc, err := DecodeItem(document)
	if err != nil {
		return nil, err
	}
	av, err := FromTyped(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", awsclient.ErrInvalidInput, err)
	}
	if err := checkKeyTypes(table, av); err != nil {
		return nil, fmt.Errorf("%w: %v", awsclient.ErrInvalidInput, err)
	}
	return s.write(ctx, table, av, mustNotExist)
}

func (s *Service) write(ctx context.Context, table *Table, av map[string]types.AttributeValue, mustNotExist bool) (Item, error) {
	input := &dynamodb.PutItemInput{TableName: aws.String(table.Name), Item: av}
	if mustNotExist {
		expr, err := expression.NewBuilder().
			WithCondition(expression.AttributeNotExists(expression.Name(table.HashKey.Name))).
			Build()
		if err != nil {
			return nil, fmt.Errorf("failed to build condition: %w", err)
		}
		input.ConditionExpression = expr.Condition()
		input.ExpressionAttributeNames = expr.Names()
	}

	_, err := s.client.PutItem(ctx, input)
	if err = s.observe(ctx, "PutItem", err); err != nil {
		return nil, err
	}
	return fromAttributeValues(av)
}

// DeleteItem deletes the item with the given key.
func (s *Service) DeleteItem(ctx context.Context, name string, key Item) error {
	table, err := s.Describe(ctx, name)
	if err != nil {
		return err
	}
	av, err := KeyValues(table, key)
	if err != nil {
		return err
	}
	_, err = s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{TableName: aws.String(name), Key: av})
	return s.observe(ctx, "DeleteItem", err)
}

// KeyValues extracts the key attributes of table from a JSON compatible map.
// N keys accept numbers or numeric strings, B keys base64 strings.
func KeyValues(table *Table, item Item) (map[string]types.AttributeValue, error) {
	key := map[string]types.AttributeValue{}
	for _, attr := range table.Keys() {
		v, ok := item[attr.Name]
		if !ok {
			return nil, fmt.Errorf("%w: missing key attribute %q", awsclient.ErrInvalidInput, attr.Name)
		}
		av, err := keyValue(attr, v)
		if err != nil {
			return nil, err
		}
		key[attr.Name] = av
	}
	return key, nil
}

func keyValue(attr KeyAttr, v any) (types.AttributeValue, error) {
	invalid := func() error {
		return fmt.Errorf("%w: key attribute %q must be of type %s", awsclient.ErrInvalidInput, attr.Name, attr.Type)
	}

	switch types.ScalarAttributeType(attr.Type) {
	case types.ScalarAttributeTypeS:
		s, ok := v.(string)
		if !ok || s == "" {
			return nil, invalid()
		}
		return &types.AttributeValueMemberS{Value: s}, nil
	case types.ScalarAttributeTypeN:
		var n json.Number
		switch tv := v.(type) {
		case json.Number:
			n = tv
		case string:
			n = json.Number(strings.TrimSpace(tv))
		default:
			return nil, invalid()
		}
		if _, err := n.Float64(); err != nil {
			return nil, invalid()
		}
		return &types.AttributeValueMemberN{Value: n.String()}, nil
	case types.ScalarAttributeTypeB:
		switch tv := v.(type) {
		case []byte:
			return &types.AttributeValueMemberB{Value: tv}, nil
		case string:
			b, err := base64.StdEncoding.DecodeString(tv)
			if err != nil || len(b) == 0 {
				return nil, invalid()
			}
			return &types.AttributeValueMemberB{Value: b}, nil
		}
	}
	return nil, invalid()
}

// DecodeItem parses a JSON object keeping numbers as json.Number, so key
// values above 2^53 are not rounded.
func DecodeItem(data []byte) (Item, error) {
	doc, err := decodeDocument(data)
	if err != nil {
		return nil, fmt.Errorf("%w: item must be a JSON object: %v", awsclient.ErrInvalidInput, err)
	}
	return doc, nil
}

func decodeDocument(data []byte) (Item, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc Item
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("document is null")
	}
	if dec.More() {
		return nil, fmt.Errorf("unexpected data after the document")
	}
	return doc, nil
}

// fromAttributeValues decodes an item keeping numbers exact.
func fromAttributeValues(av map[string]types.AttributeValue) (Item, error) {
	var item Item
	err := attributevalue.UnmarshalMapWithOptions(av, &item, func(o *attributevalue.DecoderOptions) {
		o.UseNumber = true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decode item: %w", err)
	}
	return fromAttributeNumbers(item).(Item), nil
}

func fromAttributeNumbers(v any) any {
	switch tv := v.(type) {
	case attributevalue.Number:
		return json.Number(tv)
	case map[string]any:
		for k, e := range tv {
			tv[k] = fromAttributeNumbers(e)
		}
		return tv
	case []any:
		for i, e := range tv {
			tv[i] = fromAttributeNumbers(e)
		}
		return tv
	case []attributevalue.Number:
		out := make([]json.Number, len(tv))
		for i, n := range tv {
			out[i] = json.Number(n)
		}
		return out
	}
	return v
}

func toAttributeNumbers(v any) any {
	switch tv := v.(type) {
	case json.Number:
		return attributevalue.Number(tv)
	case map[string]any:
		out := make(map[string]any, len(tv))
		for k, e := range tv {
			out[k] = toAttributeNumbers(e)
		}
		return out
	case []any:
		out := make([]any, len(tv))
		for i, e := range tv {
			out[i] = toAttributeNumbers(e)
		}
		return out
	}
	return v
}
