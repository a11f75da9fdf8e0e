package main

import (
	"github.com/go-zoox/cli"
	"github.com/go-zoox/potato/command"
)

func main() {
	app := cli.NewMultipleProgram(&cli.MultipleProgramConfig{
		Name:    "potato",
		Usage:   "potato is an encrypted socks5 tunnel with a client and a relay server.",
		Version: Version,
	})

	command.RegisterClient(app)
	command.RegisterServer(app)

	app.Run()
}
