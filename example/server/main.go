package main

import (
	"github.com/go-zoox/logger"
	"github.com/go-zoox/potato/core"
)

func main() {
	s, err := core.NewServer(&core.ServerConfig{
		Password:   "29f4e3d3a4302b4d9e01",
		Port:       8888,
		Method:     "ws",
		Path:       "/potato",
		Obfs:       "xor",
		StatusPort: 8889,
	})
	if err != nil {
		logger.Fatal("failed to create server: %s", err)
		return
	}

	if err := s.Run(); err != nil {
		logger.Fatal("failed to start relay server: %s", err)
		return
	}
}
