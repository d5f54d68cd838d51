/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Package events defines the persist and delete notifications a session
// emits and the sinks that receive them.
package events
