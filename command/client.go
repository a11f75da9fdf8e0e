package command

import (
	"github.com/go-zoox/cli"
	"github.com/go-zoox/logger"
	"github.com/go-zoox/potato/core"
	"github.com/go-zoox/potato/crypto"
	"github.com/pkg/errors"
)

func RegisterClient(app *cli.MultipleProgram) {
	app.Register("client", &cli.Command{
		Name:  "client",
		Usage: "local socks5 proxy tunnelling to a potato server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "the filepath for client configuration (json/yaml/toml)",
				Aliases: []string{"c"},
			},
			&cli.StringFlag{
				Name:    "server",
				Usage:   "relay server, format: method://host:port[/path], method: tcp, tls, https, ws, wss",
				Aliases: []string{"s"},
			},
			&cli.StringFlag{
				Name:  "server-addr",
				Usage: "relay host",
			},
			&cli.IntFlag{
				Name:  "server-port",
				Usage: "relay port",
			},
			&cli.StringFlag{
				Name:  "local-host",
				Usage: "socks5 listen host",
			},
			&cli.IntFlag{
				Name:    "local-port",
				Usage:   "socks5 listen port",
				Aliases: []string{"l"},
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
				Usage:   "relay transport: tcp, tls, https, ws, wss",
				Aliases: []string{"m"},
			},
			&cli.StringFlag{
				Name:  "path",
				Usage: "websocket path for ws and wss",
			},
			&cli.BoolFlag{
				Name:  "insecure",
				Usage: "skip relay certificate verification",
			},
			&cli.StringFlag{
				Name:  "obfs",
				Usage: "traffic disguise: none, xor, http",
			},
			&cli.StringFlag{
				Name:  "mode",
				Usage: "handshake (wait for relay reply) or inline (header with first payload)",
			},
			&cli.IntFlag{
				Name:  "reply-timeout",
				Usage: "max milliseconds to wait for the relay reply, 0 waits forever",
			},
			&cli.IntFlag{
				Name:  "dial-retries",
				Usage: "extra relay dial attempts, 0 disables retries",
			},
		},
		Action: func(ctx *cli.Context) error {
			cfg := core.NewClientConfig()
			if err := loadConfig(ctx.String("config"), cfg); err != nil {
				return err
			}

			if err := applyClientFlags(ctx, cfg); err != nil {
				return err
			}

			client, err := core.NewClient(cfg)
			if err != nil {
				if errors.Is(err, crypto.ErrConfig) {
					logger.Fatal("invalid client configuration: %s", err)
				}
				return err
			}

			return client.Run()
		},
	})
}

// applyClientFlags overrides cfg with every flag set on the command line.
func applyClientFlags(flags flagSource, cfg *core.ClientConfig) error {
	if flags.IsSet("server") {
		method, host, port, path, err := parseRelay(flags.String("server"))
		if err != nil {
			return err
		}

		cfg.Method = method
		cfg.ServerAddr = host
		cfg.ServerPort = port
		if path != "" {
			cfg.Path = path
		}
	}

	setString(flags, "server-addr", &cfg.ServerAddr)
	setInt(flags, "server-port", &cfg.ServerPort)
	setString(flags, "local-host", &cfg.LocalHost)
	setInt(flags, "local-port", &cfg.LocalPort)
	setString(flags, "algorithm", &cfg.Algorithm)
	setString(flags, "password", &cfg.Password)
	setString(flags, "method", &cfg.Method)
	setString(flags, "path", &cfg.Path)
	setBool(flags, "insecure", &cfg.Insecure)
	setString(flags, "obfs", &cfg.Obfs)
	setString(flags, "mode", &cfg.Mode)
	setInt64(flags, "reply-timeout", &cfg.ReplyTimeout)
	setInt(flags, "dial-retries", &cfg.DialRetries)

	return nil
}
