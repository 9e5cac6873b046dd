package main

import (
	// Asia/Tokyo must resolve inside minimal containers without zoneinfo.
	_ "time/tzdata"

	"github.com/Nlkomaru/vrc-playtime/internal/cli"
)

func main() {
	cli.Execute()
}
