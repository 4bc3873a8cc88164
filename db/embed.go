// Package db embeds the SQL schema applied at service startup.
package db

import _ "embed"

// Schema holds the DDL for the coupon, redemption, customer, order, and
// API-key tables.
//
//go:embed migrations/001_schema.sql
var Schema string
