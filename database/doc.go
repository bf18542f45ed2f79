// Package database provides connection management, configuration loading,
// query hooks, SQL error classification, table creation for registered models,
// and the logger used by the rest of the module, built on top of Bun.
package database
