// Package main is the entry point for the docbase command.
package main

import (
	_ "go.uber.org/automaxprocs/maxprocs"

	"github.com/kart-io/docbase/internal/docbase"
)

func main() {
	docbase.NewApp().Run()
}
