// Package dynamo implements durable.Conn on Amazon DynamoDB.
//
// Table schema:
//   - Partition key: name (string) - the semantic view name
//   - Attribute: definition (string) - the raw JSON definition
//
// Create table with:
//
//	aws dynamodb create-table \
//	  --table-name semview-catalog \
//	  --attribute-definitions AttributeName=name,AttributeType=S \
//	  --key-schema AttributeName=name,KeyType=HASH \
//	  --billing-mode PAY_PER_REQUEST
//
// EnsureSchema creates the table when it is missing.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/hupe1980/semview/durable"
)

const (
	attrName       = "name"
	attrDefinition = "definition"
)

// DefaultCreateTimeout bounds how long EnsureSchema waits for a new table.
const DefaultCreateTimeout = 2 * time.Minute

// Client is the subset of the DynamoDB API the store uses.
type Client interface {
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// Store is a durable.Conn backed by one DynamoDB table.
//
// Writes are immediately durable, so Checkpoint is a no-op. ReplaceAll is
// not atomic: it deletes stale items and then puts every pair.
type Store struct {
	client        Client
	table         string
	createTimeout time.Duration
}

var _ durable.Conn = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithCreateTimeout bounds the wait for a table created by EnsureSchema.
func WithCreateTimeout(d time.Duration) Option {
	return func(s *Store) { s.createTimeout = d }
}

// NewStore creates a store over the named table.
func NewStore(client Client, table string, optFns ...Option) *Store {
	s := &Store{client: client, table: table, createTimeout: DefaultCreateTimeout}
	for _, fn := range optFns {
		fn(s)
	}
	return s
}

// Opener returns a durable.Opener that hands out stores sharing client.
// The SDK client is safe for concurrent use.
func Opener(client Client, table string, optFns ...Option) durable.Opener {
	return func(context.Context) (durable.Conn, error) {
		return NewStore(client, table, optFns...), nil
	}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(s.table)})
	if err == nil {
		return nil
	}
	var nf *types.ResourceNotFoundException
	if !errors.As(err, &nf) {
		return fmt.Errorf("dynamo: describe table %s: %w", s.table, err)
	}

	_, err = s.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(s.table),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(attrName), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(attrName), KeyType: types.KeyTypeHash},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		var inUse *types.ResourceInUseException
		if !errors.As(err, &inUse) {
			return fmt.Errorf("dynamo: create table %s: %w", s.table, err)
		}
	}

	waiter := dynamodb.NewTableExistsWaiter(s.client)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(s.table)}, s.createTimeout); err != nil {
		return fmt.Errorf("dynamo: wait for table %s: %w", s.table, err)
	}
	return nil
}

func (s *Store) LoadAll(ctx context.Context) (map[string]string, error) {
	out := make(map[string]string)
	paginator := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
		TableName:      aws.String(s.table),
		ConsistentRead: aws.Bool(true),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("dynamo: scan %s: %w", s.table, err)
		}
		for _, item := range page.Items {
			name, ok1 := stringAttr(item, attrName)
			def, ok2 := stringAttr(item, attrDefinition)
			if !ok1 || !ok2 {
				continue
			}
			out[name] = def
		}
	}
	return out, nil
}

func (s *Store) Insert(ctx context.Context, name, definition string) error {
	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(s.table),
		Item:                     item(name, definition),
		ConditionExpression:      aws.String("attribute_not_exists(#n)"),
		ExpressionAttributeNames: map[string]string{"#n": attrName},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("dynamo: insert %q: %w", name, durable.ErrConflict)
		}
		return fmt.Errorf("dynamo: insert %q: %w", name, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, name string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			attrName: &types.AttributeValueMemberS{Value: name},
		},
	})
	if err != nil {
		return fmt.Errorf("dynamo: delete %q: %w", name, err)
	}
	return nil
}

func (s *Store) ReplaceAll(ctx context.Context, defs map[string]string) error {
	current, err := s.LoadAll(ctx)
	if err != nil {
		return err
	}
	for name := range current {
		if _, keep := defs[name]; keep {
			continue
		}
		if err := s.Delete(ctx, name); err != nil {
			return err
		}
	}
	for name, def := range defs {
		if old, ok := current[name]; ok && old == def {
			continue
		}
		_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: aws.String(s.table),
			Item:      item(name, def),
		})
		if err != nil {
			return fmt.Errorf("dynamo: put %q: %w", name, err)
		}
	}
	return nil
}

func (s *Store) Checkpoint(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func item(name, definition string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrName:       &types.AttributeValueMemberS{Value: name},
		attrDefinition: &types.AttributeValueMemberS{Value: definition},
	}
}

func stringAttr(item map[string]types.AttributeValue, key string) (string, bool) {
	v, ok := item[key].(*types.AttributeValueMemberS)
	if !ok {
		return "", false
	}
	return v.Value, true
}
