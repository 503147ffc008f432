package main

import (
	"github.com/BioHazard786/roomview/cmd"
	"github.com/BioHazard786/roomview/internal/logging"
)

func main() {
	logging.Init()
	cmd.Execute()
}
