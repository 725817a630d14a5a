package main

import (
	"log"
	"os"

	"github.com/tildaslashalef/critiq/internal/commands"
)

// Version information - populated at build time
var (
	Version    = "dev"
	BuildTime  = "unknown"
	CommitHash = "unknown"
)

func main() {
	cliApp := commands.NewApp(commands.BuildInfo{
		Version:   Version,
		BuildTime: BuildTime,
		Commit:    CommitHash,
	})

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
