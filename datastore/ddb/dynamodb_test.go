/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	sdk "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/suparena/entitysession/datastore"
	"github.com/suparena/entitysession/errors"
	"github.com/suparena/entitysession/filter"
	"github.com/suparena/entitysession/query"
)

// fakeAPI is an in-memory table that understands the key conditions and
// write conditions the driver emits. Filter expressions are recorded. Of
// them only IN lists are checked: more than maxInOperands operands is a
// validation error, and IN lists on the ID field restrict the result.
type fakeAPI struct {
	mu      sync.Mutex
	items   map[string]map[string]map[string]types.AttributeValue
	queries []sdk.QueryInput

	queryFailures   int
	batchCalls      int
	unprocessedOnce bool
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{items: make(map[string]map[string]map[string]types.AttributeValue)}
}

func keyOf(key map[string]types.AttributeValue) (string, string) {
	return key[attrPK].(*types.AttributeValueMemberS).Value, key[attrSK].(*types.AttributeValueMemberS).Value
}

func (f *fakeAPI) PutItem(ctx context.Context, in *sdk.PutItemInput, _ ...func(*sdk.Options)) (*sdk.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	pk, sk := keyOf(in.Item)
	_, exists := f.items[pk][sk]
	switch aws.ToString(in.ConditionExpression) {
	case "attribute_not_exists(PK)":
		if exists {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("item exists")}
		}
	case "attribute_exists(PK)":
		if !exists {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("item missing")}
		}
	}
	if f.items[pk] == nil {
		f.items[pk] = make(map[string]map[string]types.AttributeValue)
	}
	f.items[pk][sk] = in.Item
	return &sdk.PutItemOutput{}, nil
}

func (f *fakeAPI) DeleteItem(ctx context.Context, in *sdk.DeleteItemInput, _ ...func(*sdk.Options)) (*sdk.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pk, sk := keyOf(in.Key)
	delete(f.items[pk], sk)
	return &sdk.DeleteItemOutput{}, nil
}

func (f *fakeAPI) Query(ctx context.Context, in *sdk.QueryInput, _ ...func(*sdk.Options)) (*sdk.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, *in)

	if f.queryFailures > 0 {
		f.queryFailures--
		return nil, &types.ProvisionedThroughputExceededException{Message: aws.String("slow down")}
	}

	pk := in.ExpressionAttributeValues[":v0"].(*types.AttributeValueMemberS).Value
	var onlySK string
	if strings.Contains(aws.ToString(in.KeyConditionExpression), "#sk =") {
		onlySK = in.ExpressionAttributeValues[":v1"].(*types.AttributeValueMemberS).Value
	}

	lists := inLists(aws.ToString(in.FilterExpression))
	for _, list := range lists {
		if len(list) > maxInOperands {
			return nil, fmt.Errorf("ValidationException: IN takes at most %d operands, got %d", maxInOperands, len(list))
		}
	}
	var allowed map[string]bool
	for _, name := range in.ExpressionAttributeNames {
		if name == "ID" && len(lists) > 0 {
			allowed = make(map[string]bool)
			for _, list := range lists {
				for _, placeholder := range list {
					allowed[in.ExpressionAttributeValues[placeholder].(*types.AttributeValueMemberS).Value] = true
				}
			}
		}
	}

	sks := make([]string, 0, len(f.items[pk]))
	for sk := range f.items[pk] {
		if (onlySK == "" || sk == onlySK) && (allowed == nil || allowed[sk]) {
			sks = append(sks, sk)
		}
	}
	sort.Strings(sks)

	if in.ExclusiveStartKey != nil {
		_, after := keyOf(in.ExclusiveStartKey)
		i := sort.SearchStrings(sks, after)
		if i < len(sks) && sks[i] == after {
			i++
		}
		sks = sks[i:]
	}

	out := &sdk.QueryOutput{}
	limit := int(aws.ToInt32(in.Limit))
	for i, sk := range sks {
		if limit > 0 && i == limit {
			out.LastEvaluatedKey = map[string]types.AttributeValue{
				attrPK: &types.AttributeValueMemberS{Value: pk},
				attrSK: &types.AttributeValueMemberS{Value: sks[i-1]},
			}
			break
		}
		item := f.items[pk][sk]
		if in.ProjectionExpression != nil {
			item = map[string]types.AttributeValue{attrSK: item[attrSK]}
		}
		out.Items = append(out.Items, item)
	}
	return out, nil
}

func (f *fakeAPI) BatchWriteItem(ctx context.Context, in *sdk.BatchWriteItemInput, _ ...func(*sdk.Options)) (*sdk.BatchWriteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batchCalls++

	out := &sdk.BatchWriteItemOutput{UnprocessedItems: map[string][]types.WriteRequest{}}
	for table, requests := range in.RequestItems {
		if len(requests) > batchWriteLimit {
			return nil, fmt.Errorf("too many requests: %d", len(requests))
		}
		for i, req := range requests {
			if f.unprocessedOnce && i == len(requests)-1 {
				f.unprocessedOnce = false
				out.UnprocessedItems[table] = append(out.UnprocessedItems[table], req)
				continue
			}
			pk, sk := keyOf(req.DeleteRequest.Key)
			delete(f.items[pk], sk)
		}
	}
	return out, nil
}

// inLists returns the operand placeholders of every IN list in expr.
func inLists(expr string) [][]string {
	var out [][]string
	for {
		i := strings.Index(expr, " IN (")
		if i < 0 {
			return out
		}
		expr = expr[i+len(" IN ("):]
		j := strings.Index(expr, ")")
		out = append(out, strings.Split(expr[:j], ", "))
		expr = expr[j+1:]
	}
}

func (f *fakeAPI) count(pk string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items[pk])
}

func newTestEngine(t *testing.T, api *fakeAPI, opts Options) datastore.Engine {
	t.Helper()
	if opts.TableName == "" {
		opts.TableName = "entities"
	}
	if opts.RetryBackoff == 0 {
		opts.RetryBackoff = 1
	}
	d, err := New(api, opts)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	e, err := d.Open(context.Background(), "people")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return e
}

func person(id, name string) datastore.Record {
	return datastore.Record{
		ID:     id,
		Type:   "Person",
		Fields: map[string]any{"ID": id, "Name": name},
		Body:   []byte(`{"ID":"` + id + `"}`),
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(nil, Options{TableName: "entities"}); err == nil {
		t.Error("expected error for nil client")
	}
	if _, err := New(newFakeAPI(), Options{}); !errors.IsValidationError(err) {
		t.Errorf("expected validation error for missing table, got %v", err)
	}
}

func TestEngineWrites(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	e := newTestEngine(t, api, Options{})

	if err := e.Insert(ctx, person("1", "Alice")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := e.Insert(ctx, person("1", "Alice")); !errors.IsAlreadyExists(err) {
		t.Fatalf("expected already exists error, got %v", err)
	}
	if err := e.Update(ctx, person("2", "Bob")); !errors.IsNotFound(err) {
		t.Fatalf("expected not found error, got %v", err)
	}
	if err := e.Update(ctx, person("1", "Alicia")); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	item := api.items["people"]["1"]
	if item[attrEntityType].(*types.AttributeValueMemberS).Value != "Person" {
		t.Errorf("EntityType not injected: %#v", item[attrEntityType])
	}

	cur, err := e.Execute(ctx, query.New("people", "ID").ByID("1"))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	recs, err := datastore.Collect(ctx, cur)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	rec := recs[0]
	if rec.ID != "1" || rec.Type != "Person" || rec.Fields["Name"] != "Alicia" || string(rec.Body) != `{"ID":"1"}` {
		t.Errorf("unexpected record: %+v", rec)
	}

	last := api.queries[len(api.queries)-1]
	if got := aws.ToString(last.KeyConditionExpression); got != "#pk = :v0 AND #sk = :v1" {
		t.Errorf("ByID should use the sort key, got %q", got)
	}

	if err := e.Remove(ctx, "1"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := e.Remove(ctx, "1"); err != nil {
		t.Fatalf("Remove of missing item failed: %v", err)
	}
	if api.count("people") != 0 {
		t.Errorf("expected empty partition")
	}
}

func TestEnginePaging(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	e := newTestEngine(t, api, Options{PageSize: 2})

	for i := 0; i < 5; i++ {
		if err := e.Insert(ctx, person(fmt.Sprintf("p%d", i), "x")); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	t.Run("AllPages", func(t *testing.T) {
		api.queries = nil
		cur, err := e.ExecuteIDs(ctx, query.New("people", "ID"))
		if err != nil {
			t.Fatalf("ExecuteIDs failed: %v", err)
		}
		ids, err := datastore.Collect(ctx, cur)
		if err != nil {
			t.Fatalf("Collect failed: %v", err)
		}
		if strings.Join(ids, ",") != "p0,p1,p2,p3,p4" {
			t.Errorf("unexpected ids: %v", ids)
		}
		if len(api.queries) != 3 {
			t.Errorf("expected 3 pages, got %d", len(api.queries))
		}
		if aws.ToString(api.queries[0].ProjectionExpression) != "#sk" {
			t.Errorf("id queries should project the sort key only")
		}
	})

	t.Run("Limit", func(t *testing.T) {
		api.queries = nil
		cur, err := e.ExecuteIDs(ctx, query.New("people", "ID").Limit(3))
		if err != nil {
			t.Fatalf("ExecuteIDs failed: %v", err)
		}
		ids, err := datastore.Collect(ctx, cur)
		if err != nil {
			t.Fatalf("Collect failed: %v", err)
		}
		if len(ids) != 3 {
			t.Errorf("expected 3 ids, got %v", ids)
		}
		if len(api.queries) != 2 {
			t.Errorf("expected 2 pages, got %d", len(api.queries))
		}
	})

	t.Run("FilterExpression", func(t *testing.T) {
		api.queries = nil
		cur, err := e.ExecuteIDs(ctx, query.New("people", "ID").Where(filter.Eq("Name", "x")))
		if err != nil {
			t.Fatalf("ExecuteIDs failed: %v", err)
		}
		if _, err := datastore.Collect(ctx, cur); err != nil {
			t.Fatalf("Collect failed: %v", err)
		}
		in := api.queries[0]
		if got := aws.ToString(in.FilterExpression); got != "#f.#n0 = :v1" {
			t.Errorf("unexpected filter expression %q", got)
		}
		if in.ExpressionAttributeNames["#n0"] != "Name" || in.ExpressionAttributeNames["#f"] != attrFields {
			t.Errorf("unexpected names: %v", in.ExpressionAttributeNames)
		}
	})
}

func TestEngineRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("RecoversFromThrottling", func(t *testing.T) {
		api := newFakeAPI()
		e := newTestEngine(t, api, Options{MaxRetries: 3})
		if err := e.Insert(ctx, person("1", "Alice")); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
		api.queryFailures = 2
		cur, err := e.ExecuteIDs(ctx, query.New("people", "ID"))
		if err != nil {
			t.Fatalf("ExecuteIDs failed: %v", err)
		}
		ids, err := datastore.Collect(ctx, cur)
		if err != nil {
			t.Fatalf("expected retries to succeed, got %v", err)
		}
		if len(ids) != 1 {
			t.Errorf("unexpected ids: %v", ids)
		}
	})

	t.Run("RetriesDisabled", func(t *testing.T) {
		api := newFakeAPI()
		e := newTestEngine(t, api, Options{MaxRetries: -1})
		api.queryFailures = 1
		cur, err := e.ExecuteIDs(ctx, query.New("people", "ID"))
		if err != nil {
			t.Fatalf("ExecuteIDs failed: %v", err)
		}
		if _, err := datastore.Collect(ctx, cur); err == nil {
			t.Fatal("expected throttling error")
		}
	})

	t.Run("RetryableError", func(t *testing.T) {
		if !isRetryableError(&types.ProvisionedThroughputExceededException{}) {
			t.Error("ProvisionedThroughputExceededException should be retryable")
		}
		if !isRetryableError(fmt.Errorf("wrapped: %w", &types.RequestLimitExceeded{})) {
			t.Error("wrapped RequestLimitExceeded should be retryable")
		}
		if isRetryableError(fmt.Errorf("some other error")) {
			t.Error("generic error should not be retryable")
		}
		if isRetryableError(&types.ConditionalCheckFailedException{}) {
			t.Error("ConditionalCheckFailedException should not be retryable")
		}
	})
}

func TestEngineDrop(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	e := newTestEngine(t, api, Options{PageSize: 100})

	for i := 0; i < 60; i++ {
		if err := e.Insert(ctx, person(fmt.Sprintf("p%02d", i), "x")); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}
	api.unprocessedOnce = true

	if err := e.Drop(ctx); err != nil {
		t.Fatalf("Drop failed: %v", err)
	}
	if n := api.count("people"); n != 0 {
		t.Fatalf("expected empty partition, %d items left", n)
	}
	// 60 ids make three batches, one of which is resubmitted.
	if api.batchCalls != 4 {
		t.Errorf("expected 4 batch calls, got %d", api.batchCalls)
	}
}

func TestEngineLookupChunks(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	e := newTestEngine(t, api, Options{PageSize: 500})

	ids := make([]string, 0, 260)
	for i := 0; i < 250; i++ {
		id := fmt.Sprintf("p%03d", i)
		if err := e.Insert(ctx, person(id, "x")); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
		ids = append(ids, id)
	}
	// ids not stored and repeated ids are part of a normal lookup
	ids = append(ids, "missing1", "missing2", "p001")

	t.Run("AllChunks", func(t *testing.T) {
		api.queries = nil
		cur, err := e.ExecuteIDs(ctx, query.New("people", "ID").ByIDs(ids...))
		if err != nil {
			t.Fatalf("ExecuteIDs failed: %v", err)
		}
		found, err := datastore.Collect(ctx, cur)
		if err != nil {
			t.Fatalf("Collect failed: %v", err)
		}
		if len(found) != 250 {
			t.Fatalf("expected 250 ids, got %d", len(found))
		}
		if len(api.queries) != 3 {
			t.Fatalf("expected 3 chunk queries, got %d", len(api.queries))
		}
		for i, in := range api.queries {
			for _, list := range inLists(aws.ToString(in.FilterExpression)) {
				if len(list) > maxInOperands {
					t.Errorf("query %d has %d IN operands", i, len(list))
				}
			}
		}
	})

	t.Run("LimitAcrossChunks", func(t *testing.T) {
		api.queries = nil
		cur, err := e.Execute(ctx, query.New("people", "ID").ByIDs(ids...).Limit(120))
		if err != nil {
			t.Fatalf("Execute failed: %v", err)
		}
		recs, err := datastore.Collect(ctx, cur)
		if err != nil {
			t.Fatalf("Collect failed: %v", err)
		}
		if len(recs) != 120 {
			t.Fatalf("expected 120 records, got %d", len(recs))
		}
		if len(api.queries) != 2 {
			t.Errorf("expected the third chunk not to be queried, got %d queries", len(api.queries))
		}
	})
}
