/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

/*
Package ddb implements datastore.Driver on a single DynamoDB table.

Item layout:

	PK          store name (collection alias, or family for polymorphic types)
	SK          entity id
	EntityType  canonical type name of the entity
	Fields      map of the queryable field projection
	Body        encoded entity

Insert and Update are conditional puts on attribute_not_exists(PK) and
attribute_exists(PK), so an id collision or a missing item surfaces as the
corresponding entitysession error. Filters are rendered as DynamoDB filter
expressions over the Fields document path:

	filter.All(filter.Eq("Name", "Alice"), filter.Field("Age").Gt(30))
	// (#f.#n0 = :v1) AND (#f.#n1 > :v2)

Queries page lazily with a configurable page size. Throttling and transient
server errors are retried with linear backoff:

	client, _ := ddb.NewClient(ctx, ddb.ClientConfig{Region: "us-east-1"})
	driver, _ := ddb.New(client, ddb.Options{TableName: "entities", MaxRetries: 3})
*/
package ddb
