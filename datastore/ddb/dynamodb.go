/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	sdk "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"golang.org/x/sync/errgroup"

	"github.com/suparena/entitysession/datastore"
	"github.com/suparena/entitysession/errors"
	"github.com/suparena/entitysession/query"
)

// Item attribute names of the single-table layout.
const (
	attrPK         = "PK"
	attrSK         = "SK"
	attrEntityType = "EntityType"
	attrFields     = "Fields"
	attrBody       = "Body"
)

// batchWriteLimit is the maximum number of requests in one BatchWriteItem call.
const batchWriteLimit = 25

// maxInOperands is the maximum number of operands of an IN comparison.
const maxInOperands = 100

// Driver stores every collection in one DynamoDB table. The partition key is
// the store name and the sort key the entity id.
type Driver struct {
	api  API
	opts Options
}

// New creates a Driver on api.
func New(api API, opts Options) (*Driver, error) {
	if api == nil {
		return nil, fmt.Errorf("dynamodb client is required")
	}
	if strings.TrimSpace(opts.TableName) == "" {
		return nil, errors.NewValidationError("table", "table name is required")
	}
	return &Driver{api: api, opts: opts.withDefaults()}, nil
}

// Open returns the engine of the named store.
func (d *Driver) Open(ctx context.Context, store string) (datastore.Engine, error) {
	if strings.TrimSpace(store) == "" {
		return nil, errors.NewValidationError("store", "store name is required")
	}
	return &Engine{driver: d, store: store}, nil
}

// Close is a no-op; the SDK client holds no connections that need closing.
func (d *Driver) Close(ctx context.Context) error { return nil }

// Engine is the datastore.Engine of one partition.
type Engine struct {
	driver *Driver
	store  string
}

func (e *Engine) key(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrPK: &types.AttributeValueMemberS{Value: e.store},
		attrSK: &types.AttributeValueMemberS{Value: id},
	}
}

func (e *Engine) item(rec datastore.Record) (map[string]types.AttributeValue, error) {
	fields, err := attributevalue.MarshalMap(rec.Fields)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal fields of %s/%s: %w", e.store, rec.ID, err)
	}
	av := e.key(rec.ID)
	av[attrEntityType] = &types.AttributeValueMemberS{Value: rec.Type}
	av[attrFields] = &types.AttributeValueMemberM{Value: fields}
	if len(rec.Body) > 0 {
		av[attrBody] = &types.AttributeValueMemberB{Value: rec.Body}
	}
	return av, nil
}

// Insert writes rec on condition that no item with its id exists.
func (e *Engine) Insert(ctx context.Context, rec datastore.Record) error {
	if rec.ID == "" {
		return errors.NewValidationError("id", "record has no id")
	}
	err := e.put(ctx, rec, "attribute_not_exists(PK)")
	if isConditionFailed(err) {
		return errors.NewAlreadyExistsError(e.store, rec.ID)
	}
	return err
}

// Update replaces rec on condition that an item with its id exists.
func (e *Engine) Update(ctx context.Context, rec datastore.Record) error {
	err := e.put(ctx, rec, "attribute_exists(PK)")
	if isConditionFailed(err) {
		return errors.NewNotFoundError(e.store, rec.ID)
	}
	return err
}

func (e *Engine) put(ctx context.Context, rec datastore.Record, condition string) error {
	av, err := e.item(rec)
	if err != nil {
		return err
	}
	_, err = withRetry(ctx, e.driver.opts, func() (*sdk.PutItemOutput, error) {
		return e.driver.api.PutItem(ctx, &sdk.PutItemInput{
			TableName:           aws.String(e.driver.opts.TableName),
			Item:                av,
			ConditionExpression: aws.String(condition),
		})
	})
	if err != nil {
		if isConditionFailed(err) {
			return err
		}
		return fmt.Errorf("PutItem failed: %w", err)
	}
	return nil
}

// Remove deletes the item with the given id. Deleting a missing item succeeds.
func (e *Engine) Remove(ctx context.Context, id string) error {
	_, err := withRetry(ctx, e.driver.opts, func() (*sdk.DeleteItemOutput, error) {
		return e.driver.api.DeleteItem(ctx, &sdk.DeleteItemInput{
			TableName: aws.String(e.driver.opts.TableName),
			Key:       e.key(id),
		})
	})
	if err != nil {
		return fmt.Errorf("failed to delete item in DynamoDB: %w", err)
	}
	return nil
}

// Execute queries the partition and returns the matching records.
func (e *Engine) Execute(ctx context.Context, q *query.Query) (datastore.Cursor[datastore.Record], error) {
	return execute(e, q, false, decodeItem)
}

// ExecuteIDs queries the partition and returns the ids of the matching items.
func (e *Engine) ExecuteIDs(ctx context.Context, q *query.Query) (datastore.Cursor[string], error) {
	return execute(e, q, true, decodeID)
}

// execute runs q as one Query per chunk of at most maxInOperands looked up
// ids and chains the results.
func execute[V any](e *Engine, q *query.Query, keysOnly bool, decode func(map[string]types.AttributeValue) (V, error)) (datastore.Cursor[V], error) {
	parts := q.SplitLookup(maxInOperands)
	cursors := make([]datastore.Cursor[V], 0, len(parts))
	for _, part := range parts {
		input, err := e.queryInput(part, keysOnly)
		if err != nil {
			return nil, err
		}
		cursors = append(cursors, newPageCursor(e.driver, input, q.MaxResults(), decode))
	}
	if len(cursors) == 1 {
		return cursors[0], nil
	}
	return &chainCursor[V]{parts: cursors, limit: q.MaxResults()}, nil
}

func (e *Engine) queryInput(q *query.Query, keysOnly bool) (*sdk.QueryInput, error) {
	b := newExprBuilder()
	keyCond := "#pk = " + b.value(&types.AttributeValueMemberS{Value: e.store})
	b.names["#pk"] = attrPK
	if ids, ok := q.LookupIDs(); ok && len(ids) == 1 {
		keyCond += " AND #sk = " + b.value(&types.AttributeValueMemberS{Value: ids[0]})
		b.names["#sk"] = attrSK
	}

	input := &sdk.QueryInput{
		TableName:              aws.String(e.driver.opts.TableName),
		KeyConditionExpression: aws.String(keyCond),
		Limit:                  aws.Int32(e.driver.opts.PageSize),
	}
	if f := q.Filter(); f != nil {
		filterExpr, err := b.filter(f)
		if err != nil {
			return nil, fmt.Errorf("failed to build filter expression: %w", err)
		}
		input.FilterExpression = aws.String(filterExpr)
	}
	if keysOnly {
		input.ProjectionExpression = aws.String("#sk")
		b.names["#sk"] = attrSK
	}
	input.ExpressionAttributeNames = b.names
	input.ExpressionAttributeValues = b.values
	return input, nil
}

// Drop deletes every item of the partition with concurrent batch writes.
func (e *Engine) Drop(ctx context.Context) error {
	cur, err := e.ExecuteIDs(ctx, query.New(e.store, attrSK))
	if err != nil {
		return err
	}
	ids, err := datastore.Collect(ctx, cur)
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", e.store, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.driver.opts.DropConcurrency)
	for start := 0; start < len(ids); start += batchWriteLimit {
		end := min(start+batchWriteLimit, len(ids))
		chunk := ids[start:end]
		g.Go(func() error {
			return e.deleteBatch(gctx, chunk)
		})
	}
	return g.Wait()
}

func (e *Engine) deleteBatch(ctx context.Context, ids []string) error {
	requests := make([]types.WriteRequest, len(ids))
	for i, id := range ids {
		requests[i] = types.WriteRequest{DeleteRequest: &types.DeleteRequest{Key: e.key(id)}}
	}
	table := e.driver.opts.TableName
	pending := map[string][]types.WriteRequest{table: requests}

	for attempt := 0; ; attempt++ {
		out, err := withRetry(ctx, e.driver.opts, func() (*sdk.BatchWriteItemOutput, error) {
			return e.driver.api.BatchWriteItem(ctx, &sdk.BatchWriteItemInput{RequestItems: pending})
		})
		if err != nil {
			return fmt.Errorf("BatchWriteItem failed: %w", err)
		}
		if len(out.UnprocessedItems[table]) == 0 {
			return nil
		}
		if attempt >= e.driver.opts.MaxRetries {
			return fmt.Errorf("BatchWriteItem left %d unprocessed deletes in %s", len(out.UnprocessedItems[table]), e.store)
		}
		pending = out.UnprocessedItems
		if err := backoff(ctx, e.driver.opts, attempt); err != nil {
			return err
		}
	}
}

func decodeID(item map[string]types.AttributeValue) (string, error) {
	var id string
	if err := attributevalue.Unmarshal(item[attrSK], &id); err != nil {
		return "", fmt.Errorf("failed to unmarshal SK: %w", err)
	}
	return id, nil
}

func decodeItem(item map[string]types.AttributeValue) (datastore.Record, error) {
	id, err := decodeID(item)
	if err != nil {
		return datastore.Record{}, err
	}
	rec := datastore.Record{ID: id}
	if attr, ok := item[attrEntityType]; ok {
		if err := attributevalue.Unmarshal(attr, &rec.Type); err != nil {
			return datastore.Record{}, fmt.Errorf("failed to unmarshal EntityType: %w", err)
		}
	}
	if attr, ok := item[attrFields]; ok {
		if err := attributevalue.Unmarshal(attr, &rec.Fields); err != nil {
			return datastore.Record{}, fmt.Errorf("failed to unmarshal fields of %s: %w", id, err)
		}
	}
	if attr, ok := item[attrBody].(*types.AttributeValueMemberB); ok {
		rec.Body = attr.Value
	}
	return rec, nil
}

func isConditionFailed(err error) bool {
	var cfe *types.ConditionalCheckFailedException
	return stderrors.As(err, &cfe)
}

var _ datastore.Driver = (*Driver)(nil)
var _ datastore.Engine = (*Engine)(nil)
