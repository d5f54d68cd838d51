/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Package memory provides an in-process datastore.Driver.
//
// Records live in per-store maps guarded by a mutex and are returned in
// insertion order. Filters are compiled to expr programs and evaluated
// against each record's field projection. Error injection hooks
// (WithInsertError, WithUpdateError, WithRemoveError) let tests simulate
// backend failures.
package memory
