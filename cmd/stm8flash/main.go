// Command stm8flash programs an STM8 over UART using the factory-resident
// ROM bootloader: sync, upload the RAM erase/write routine, optionally mass
// erase, program the given hex image, optionally verify, patch the option
// byte, and jump into the application.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	cli "gopkg.in/urfave/cli.v2"

	"stm8flash/internal/config"
	"stm8flash/internal/session"
	"stm8flash/ramroutine"
)

func main() {
	app := &cli.App{
		Name:  "stm8flash",
		Usage: "program an STM8 over its UART ROM bootloader",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "port", Aliases: []string{"p"}, Usage: "serial device, e.g. /dev/ttyUSB0", Required: true},
			&cli.IntFlag{Name: "baud", Value: 230400, Usage: "session baud rate after wake-up"},
			&cli.IntFlag{Name: "bootstrap-baud", Value: 9600, Usage: "baud rate used for the reset trigger"},
			&cli.StringFlag{Name: "hex-file", Aliases: []string{"f"}, Usage: "S19 or Intel HEX firmware image"},
			&cli.BoolFlag{Name: "erase", Usage: "mass-erase P-flash and D-flash before programming"},
			&cli.BoolFlag{Name: "verify", Usage: "read back and compare after programming"},
			&cli.BoolFlag{Name: "skip-zero-slices", Value: true, Usage: "elide all-zero 128-byte write slices"},
			&cli.StringFlag{Name: "log-level", Value: "info", Usage: "debug, info, warn, or error"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg := config.Default()
	cfg.Port = c.String("port")
	cfg.Baud = c.Int("baud")
	cfg.BootstrapBaud = c.Int("bootstrap-baud")
	cfg.HexFile = c.String("hex-file")
	cfg.Erase = c.Bool("erase")
	cfg.Verify = c.Bool("verify")
	cfg.SkipZeroSlices = c.Bool("skip-zero-slices")
	cfg.LogLevel = c.String("log-level")
	cfg.Profile = config.STM8SDefault(ramroutine.STM8S32K)

	if err := config.Validate(cfg); err != nil {
		return err
	}

	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	log := logrus.NewEntry(logger).WithField("port", cfg.Port)

	drv := session.New(cfg, log)
	if err := drv.Run(); err != nil {
		return err
	}
	log.Info("done")
	return nil
}
