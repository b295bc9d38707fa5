package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/IceFireDB/IceFireDB-Snapshot/config"
	"github.com/IceFireDB/IceFireDB-Snapshot/db"
	"github.com/IceFireDB/IceFireDB-Snapshot/server"
)

func main() {
	app := cli.NewApp()

	app.Name = "github.com/IceFireDB/IceFireDB-Snapshot"
	app.Usage = "key-value store with point-in-time snapshot reads"

	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:     "config, c",
			Usage:    "config file path",
			Value:    "config/config.yaml",
			Required: false,
		},
		cli.StringFlag{
			Name:  "log,l",
			Usage: "log level: debug,info,warning,error",
			Value: "info",
		},
	}

	app.Before = func(c *cli.Context) error {
		// init log
		lv, err := logrus.ParseLevel(c.String("log"))
		if err != nil {
			return err
		}
		logrus.SetLevel(lv)
		// init config
		return config.InitConfig(c.String("config"))
	}

	app.Action = func(c *cli.Context) error {
		cfg := config.Get()

		d, err := db.Open(cfg)
		if err != nil {
			return err
		}

		if cfg.Debug.Enable {
			go serveDebug(cfg.Debug.Addr, d)
		}

		ctx, cancel := context.WithCancel(context.TODO())
		stop := make(chan struct{})

		srv := server.New(d)
		go func() {
			<-ctx.Done()
			srv.Close()
		}()
		go func() {
			if err := srv.ListenAndServe(cfg.Server.Addr); err != nil {
				logrus.WithError(err).Error("redis service stopped")
			}
			if err := d.Close(); err != nil {
				logrus.WithError(err).Error("close db")
			}
			stop <- struct{}{}
		}()

		return exitSignal(cancel, stop)
	}
	err := app.Run(os.Args)
	if err != nil {
		panic(err)
	}
}

func exitSignal(cancel context.CancelFunc, stop chan struct{}) error {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGHUP, syscall.SIGQUIT, syscall.SIGTERM, syscall.SIGINT)
	for {
		select {
		case <-stop:
			// the server exited on its own
			return nil
		case sig := <-sigs:
			switch sig {
			case syscall.SIGQUIT, syscall.SIGTERM, syscall.SIGINT:
				cancel()

				select {
				case <-stop:
					fmt.Println("shutdown")
				case <-time.After(time.Second * 5):
					fmt.Println("timeout forced shutdown")
				}
				os.Exit(0)
			case syscall.SIGHUP:
				fmt.Println("catch syscall.SIGHUP")
			}
		}
	}
}
