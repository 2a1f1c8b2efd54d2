//go:build !sqlite3_cgo

package db

import (
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// pure go (wasm) sqlite, no cgo toolchain needed for release builds
const (
	driverID   = "ncruces/go-sqlite3"
	driverName = "sqlite3"
)
