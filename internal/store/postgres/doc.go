// Package postgres implements every service package's Repository
// interface against a single PostgreSQL schema (migrations/0001_init.sql),
// grounded on internal/repository/postgres's one-struct-per-aggregate
// layout.
package postgres
