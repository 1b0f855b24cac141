// Package main runs object detection on a camera, image directory or
// synthetic feed and optionally shows or streams the results.
package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

const (
	flagConfig     = "config"
	flagEnv        = "env"
	flagModel      = "model"
	flagDevice     = "device"
	flagFrames     = "frames"
	flagLoop       = "loop"
	flagSynthetic  = "synthetic"
	flagRate       = "rate"
	flagMinScore   = "min-score"
	flagShowWindow = "show-window"
	flagListen     = "listen"
	flagDebug      = "debug"
)

func main() {
	app := &cli.App{
		Name:  "camdetect",
		Usage: "real-time SSD object detection on a camera feed",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE`",
			},
			&cli.StringFlag{
				Name:  flagEnv,
				Value: ".env",
				Usage: "load CAMDETECT_* variables from `FILE` when present",
			},
			&cli.StringFlag{
				Name:  flagModel,
				Usage: "path to the SSD MobileNet v1 `ONNX` model",
			},
			&cli.IntFlag{
				Name:  flagDevice,
				Usage: "OpenCV capture device `ID`",
			},
			&cli.StringFlag{
				Name:  flagFrames,
				Usage: "replay frame-<n> images from `DIR` instead of a camera",
			},
			&cli.BoolFlag{
				Name:  flagLoop,
				Usage: "loop --frames playback",
			},
			&cli.BoolFlag{
				Name:  flagSynthetic,
				Usage: "use generated frames instead of a camera",
			},
			&cli.Float64Flag{
				Name:  flagRate,
				Usage: "maximum detection cycles per second",
			},
			&cli.Float64Flag{
				Name:  flagMinScore,
				Usage: "drop detections scoring below this",
			},
			&cli.BoolFlag{
				Name:  flagShowWindow,
				Usage: "show frames and boxes in a window",
			},
			&cli.StringFlag{
				Name:  flagListen,
				Usage: "serve the snapshot WebSocket feed on `ADDR`",
			},
			&cli.BoolFlag{
				Name:  flagDebug,
				Usage: "enable debug logging",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
