/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Package sqlite implements datastore.Driver on a SQLite database using the
// pure-Go modernc.org/sqlite driver.
//
// Every store lives in one entities table keyed by (store, id). The queryable
// field projection is stored as JSON and filters are rendered as json_extract
// conditions, so no per-type schema or migration is needed.
package sqlite
