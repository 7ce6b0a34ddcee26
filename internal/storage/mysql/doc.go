// Package mysql persists the ledger of submitted sale transactions. It ships a
// file-backed repository for local runs and a MySQL repository with embedded
// schema migrations.
package mysql
