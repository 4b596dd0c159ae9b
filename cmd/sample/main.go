// Command sample serves a small books API built on dtoapi and exposes the
// DTO machinery behind it.
//
//	sample serve                 run the API (APP_* environment config)
//	sample spec -f yaml          print the OpenAPI document
//	sample inspect               list the transfer fields of every book DTO
//	sample gen -o dto_gen.go     generate Go source for the transfer models
//
// Books are kept in memory unless APP_DATABASE_URL points at PostgreSQL.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
