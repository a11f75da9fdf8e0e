package command

import (
	"github.com/go-zoox/cli"
	"github.com/go-zoox/logger"
	"github.com/go-zoox/potato/core"
	"github.com/go-zoox/potato/crypto"
	"github.com/pkg/errors"
)

func RegisterServer(app *cli.MultipleProgram) {
	app.Register("server", &cli.Command{
		Name:  "server",
		Usage: "relay server for potato clients",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "the filepath for server configuration (json/yaml/toml)",
				Aliases: []string{"c"},
			},
			&cli.StringFlag{
				Name:  "host",
				Usage: "listen host",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "listen port",
			},
			&cli.StringFlag{
				Name:    "algorithm",
				Usage:   "cipher algorithm",
				Aliases: []string{"a"},
			},
			&cli.StringFlag{
				Name:    "password",
				Usage:   "shared secret",
				Aliases: []string{"p"},
			},
			&cli.StringFlag{
				Name:    "method",
				Usage:   "transport: tcp, tls, https, ws, wss",
				Aliases: []string{"m"},
			},
			&cli.StringFlag{
				Name:  "path",
				Usage: "websocket path for ws and wss",
			},
			&cli.StringFlag{
				Name:  "cert",
				Usage: "PEM certificate for tls and wss",
			},
			&cli.StringFlag{
				Name:  "key",
				Usage: "PEM private key for tls and wss",
			},
			&cli.StringFlag{
				Name:  "obfs",
				Usage: "traffic disguise: none, xor, http",
			},
			&cli.StringFlag{
				Name:  "mode",
				Usage: "handshake or inline, must match the clients",
			},
			&cli.IntFlag{
				Name:  "dial-timeout",
				Usage: "max milliseconds to connect to a target",
			},
			&cli.IntFlag{
				Name:  "status-port",
				Usage: "serve GET /status on this port, 0 disables it",
			},
		},
		Action: func(ctx *cli.Context) error {
			var cfg core.ServerConfig
			if err := loadConfig(ctx.String("config"), &cfg); err != nil {
				return err
			}

			applyServerFlags(ctx, &cfg)

			server, err := core.NewServer(&cfg)
			if err != nil {
				if errors.Is(err, crypto.ErrConfig) {
					logger.Fatal("invalid server configuration: %s", err)
				}
				return err
			}

			return server.Run()
		},
	})
}

// applyServerFlags overrides cfg with every flag set on the command line.
func applyServerFlags(flags flagSource, cfg *core.ServerConfig) {
	setString(flags, "host", &cfg.Host)
	setInt(flags, "port", &cfg.Port)
	setString(flags, "algorithm", &cfg.Algorithm)
	setString(flags, "password", &cfg.Password)
	setString(flags, "method", &cfg.Method)
	setString(flags, "path", &cfg.Path)
	setString(flags, "cert", &cfg.Cert)
	setString(flags, "key", &cfg.Key)
	setString(flags, "obfs", &cfg.Obfs)
	setString(flags, "mode", &cfg.Mode)
	setInt64(flags, "dial-timeout", &cfg.DialTimeout)
	setInt(flags, "status-port", &cfg.StatusPort)
}
