/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Package logger builds slog loggers from configuration.
package logger
