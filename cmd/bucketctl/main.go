package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"github.com/goliatone/go-bucket-cache/bucket"
	"github.com/goliatone/go-bucket-cache/codec"
)

func main() {
	os.Exit(realMain())
}

func realMain() int {
	cmd := &cli.Command{
		Name:  "bucketctl",
		Usage: "inspect and maintain a bucket cache directory",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "path",
				Usage:    "bucket root directory",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "codec",
				Usage: "entry codec: gob, json, or msgpack",
				Value: "json",
			},
			&cli.DurationFlag{
				Name:  "lifetime",
				Usage: "entry lifetime applied to writes and prune decisions",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "enable debug logging",
			},
		},
		Commands: []*cli.Command{
			setCommand(),
			getCommand(),
			delCommand(),
			pruneCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func openBucket(cmd *cli.Command) (*bucket.Bucket, error) {
	var c codec.Codec
	var err error
	switch name := cmd.String("codec"); name {
	case "gob":
		c, err = codec.NewGob(codec.DefaultGobConfig())
	case "json":
		c, err = codec.NewJSON(codec.JSONConfig{})
	case "msgpack":
		c, err = codec.NewMsgpack(codec.MsgpackConfig{SortMapKeys: true})
	default:
		return nil, fmt.Errorf("unknown codec %q (want gob, json, or msgpack)", name)
	}
	if err != nil {
		return nil, err
	}

	logger := zerolog.Nop()
	if cmd.Bool("verbose") {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			Level(zerolog.DebugLevel).With().Timestamp().Logger()
	}

	opts := []bucket.Option{
		bucket.WithCodec(c),
		bucket.WithLogger(logger),
	}
	if d := cmd.Duration("lifetime"); d > 0 {
		opts = append(opts, bucket.WithLifetime(d))
	}
	return bucket.New(cmd.String("path"), opts...)
}

func setCommand() *cli.Command {
	return &cli.Command{
		Name:      "set",
		Usage:     "store a string value under a string key",
		ArgsUsage: "KEY VALUE",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			args := cmd.Args()
			if args.Len() != 2 {
				return fmt.Errorf("set needs exactly KEY and VALUE")
			}
			b, err := openBucket(cmd)
			if err != nil {
				return err
			}
			return b.Set(args.Get(0), args.Get(1))
		},
	}
}

func getCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "print the value stored under a string key",
		ArgsUsage: "KEY",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			args := cmd.Args()
			if args.Len() != 1 {
				return fmt.Errorf("get needs exactly KEY")
			}
			b, err := openBucket(cmd)
			if err != nil {
				return err
			}
			v, err := b.Get(args.Get(0))
			if err != nil {
				return err
			}
			fmt.Println(v)
			return nil
		},
	}
}

func delCommand() *cli.Command {
	return &cli.Command{
		Name:      "del",
		Usage:     "delete the entry stored under a string key",
		ArgsUsage: "KEY",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			args := cmd.Args()
			if args.Len() != 1 {
				return fmt.Errorf("del needs exactly KEY")
			}
			b, err := openBucket(cmd)
			if err != nil {
				return err
			}
			return b.Delete(args.Get(0))
		},
	}
}

func pruneCommand() *cli.Command {
	return &cli.Command{
		Name:  "prune",
		Usage: "remove expired entries and report reclaimed space",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			b, err := openBucket(cmd)
			if err != nil {
				return err
			}
			stats, err := b.Prune()
			if err != nil {
				return err
			}
			fmt.Printf("removed %d entries, reclaimed %s\n",
				stats.Removed, humanize.Bytes(uint64(stats.Bytes)))
			return nil
		},
	}
}
