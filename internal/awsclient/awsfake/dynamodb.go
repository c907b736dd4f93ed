package awsfake

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/wolfeidau/awsui/internal/awsclient"
)

type ddbTable struct {
	desc  types.TableDescription
	items []map[string]types.AttributeValue
}

// DynamoDB is an in-memory DynamoDBAPI. Scan returns items in insertion order.
type DynamoDB struct {
	mu     sync.Mutex
	tables map[string]*ddbTable
}

var _ awsclient.DynamoDBAPI = (*DynamoDB)(nil)

func NewDynamoDB() *DynamoDB {
	return &DynamoDB{tables: map[string]*ddbTable{}}
}

// Items returns the number of items held by a table.
func (f *DynamoDB) Items(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tables[name]
	if !ok {
		return 0
	}
	return len(t.items)
}

// HasTable reports whether a table exists.
func (f *DynamoDB) HasTable(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.tables[name]
	return ok
}

func (f *DynamoDB) table(name *string) (*ddbTable, error) {
	t, ok := f.tables[aws.ToString(name)]
	if !ok {
		return nil, &types.ResourceNotFoundException{Message: aws.String("Cannot do operations on a non-existent table")}
	}
	return t, nil
}

func (t *ddbTable) keyNames() []string {
	names := make([]string, 0, len(t.desc.KeySchema))
	for _, k := range t.desc.KeySchema {
		names = append(names, aws.ToString(k.AttributeName))
	}
	return names
}

func (t *ddbTable) keyOf(item map[string]types.AttributeValue) (string, error) {
	var sb strings.Builder
	for _, name := range t.keyNames() {
		v, ok := item[name]
		if !ok {
			return "", &smithy.GenericAPIError{Code: "ValidationException", Message: "One of the required keys was not given a value"}
		}
		sb.WriteString(scalarString(v))
		sb.WriteByte(0)
	}
	return sb.String(), nil
}

func (t *ddbTable) index(key map[string]types.AttributeValue) (int, error) {
	want, err := t.keyOf(key)
	if err != nil {
		return -1, err
	}
	for i, item := range t.items {
		if got, _ := t.keyOf(item); got == want {
			return i, nil
		}
	}
	return -1, nil
}

func scalarString(v types.AttributeValue) string {
	switch tv := v.(type) {
	case *types.AttributeValueMemberS:
		return "S:" + tv.Value
	case *types.AttributeValueMemberN:
		return "N:" + tv.Value
	case *types.AttributeValueMemberB:
		return fmt.Sprintf("B:%x", tv.Value)
	default:
		return fmt.Sprintf("%T", v)
	}
}

func (f *DynamoDB) ListTables(ctx context.Context, params *dynamodb.ListTablesInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ListTablesOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	names := make([]string, 0, len(f.tables))
	for name := range f.tables {
		names = append(names, name)
	}
	slices.Sort(names)

	start := aws.ToString(params.ExclusiveStartTableName)
	limit := int(aws.ToInt32(params.Limit))
	out := &dynamodb.ListTablesOutput{}
	for _, name := range names {
		if start != "" && name <= start {
			continue
		}
		if limit > 0 && len(out.TableNames) == limit {
			out.LastEvaluatedTableName = aws.String(out.TableNames[len(out.TableNames)-1])
			break
		}
		out.TableNames = append(out.TableNames, name)
	}
	return out, nil
}

func (f *DynamoDB) DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	t, err := f.table(params.TableName)
	if err != nil {
		return nil, err
	}
	desc := t.desc
	desc.ItemCount = aws.Int64(int64(len(t.items)))
	return &dynamodb.DescribeTableOutput{Table: &desc}, nil
}

func (f *DynamoDB) CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name := aws.ToString(params.TableName)
	if _, ok := f.tables[name]; ok {
		return nil, &types.ResourceInUseException{Message: aws.String("Table already exists: " + name)}
	}
	if len(params.KeySchema) == 0 {
		return nil, &smithy.GenericAPIError{Code: "ValidationException", Message: "KeySchema is required"}
	}

	desc := types.TableDescription{
		TableName:            params.TableName,
		TableArn:             aws.String("arn:aws:dynamodb:us-east-1:000000000000:table/" + name),
		TableStatus:          types.TableStatusActive,
		KeySchema:            params.KeySchema,
		AttributeDefinitions: params.AttributeDefinitions,
		CreationDateTime:     aws.Time(time.Now()),
		TableSizeBytes:       aws.Int64(0),
		BillingModeSummary:   &types.BillingModeSummary{BillingMode: params.BillingMode},
	}
	for _, gsi := range params.GlobalSecondaryIndexes {
		desc.GlobalSecondaryIndexes = append(desc.GlobalSecondaryIndexes, types.GlobalSecondaryIndexDescription{
			IndexName: gsi.IndexName,
			KeySchema: gsi.KeySchema,
		})
	}
	f.tables[name] = &ddbTable{desc: desc}
	return &dynamodb.CreateTableOutput{TableDescription: &desc}, nil
}

func (f *DynamoDB) DeleteTable(ctx context.Context, params *dynamodb.DeleteTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	t, err := f.table(params.TableName)
	if err != nil {
		return nil, err
	}
	delete(f.tables, aws.ToString(params.TableName))
	desc := t.desc
	desc.TableStatus = types.TableStatusDeleting
	return &dynamodb.DeleteTableOutput{TableDescription: &desc}, nil
}

func (f *DynamoDB) Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	t, err := f.table(params.TableName)
	if err != nil {
		return nil, err
	}

	start := 0
	if len(params.ExclusiveStartKey) > 0 {
		idx, err := t.index(params.ExclusiveStartKey)
		if err != nil {
			return nil, err
		}
		start = idx + 1
	}

	limit := int(aws.ToInt32(params.Limit))
	out := &dynamodb.ScanOutput{}
	for i := start; i < len(t.items); i++ {
		if limit > 0 && len(out.Items) == limit {
			last := out.Items[len(out.Items)-1]
			out.LastEvaluatedKey = map[string]types.AttributeValue{}
			for _, name := range t.keyNames() {
				out.LastEvaluatedKey[name] = last[name]
			}
			break
		}
		out.Items = append(out.Items, t.items[i])
	}
	out.Count = int32(len(out.Items)) // #nosec G115 - bounded by table size
	out.ScannedCount = out.Count
	return out, nil
}

func (f *DynamoDB) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	t, err := f.table(params.TableName)
	if err != nil {
		return nil, err
	}
	idx, err := t.index(params.Key)
	if err != nil {
		return nil, err
	}
	if idx == -1 {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: t.items[idx]}, nil
}

func (f *DynamoDB) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	t, err := f.table(params.TableName)
	if err != nil {
		return nil, err
	}
	idx, err := t.index(params.Item)
	if err != nil {
		return nil, err
	}
	// only the attribute_not_exists guard on a key attribute is understood
	if idx != -1 && strings.Contains(aws.ToString(params.ConditionExpression), "attribute_not_exists") {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
	}
	if idx == -1 {
		t.items = append(t.items, params.Item)
	} else {
		t.items[idx] = params.Item
	}
	return &dynamodb.PutItemOutput{}, nil
}

func (f *DynamoDB) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	t, err := f.table(params.TableName)
	if err != nil {
		return nil, err
	}
	idx, err := t.index(params.Key)
	if err != nil {
		return nil, err
	}
	if idx >= 0 {
		t.items = slices.Delete(t.items, idx, idx+1)
	}
	return &dynamodb.DeleteItemOutput{}, nil
}
