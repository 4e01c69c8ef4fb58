package main

import (
	"os"

	"github.com/adopsbot/adopsbot/app"
)

func main() {
	err := app.Execute()
	if err != nil {
		os.Exit(1)
	}
}
