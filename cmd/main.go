package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"tradesim/src/database"
	"tradesim/src/engine"
	"tradesim/src/monitor"
	"tradesim/src/onboarding"
	"tradesim/src/oracle"
	"tradesim/src/server"
)

var Version string

func main() {
	app := cli.NewApp()
	app.Name = "Tradesim CMD"
	app.Usage = "The tradesim command line interface"

	app.Commands = []cli.Command{
		serverCMD,
		monitorCMD,
		seedCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	serverCMD = cli.Command{
		Name:        "server",
		Usage:       "run the trading API server",
		Action:      serverAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Serve the account, order and strategy HTTP API`,
	}
	monitorCMD = cli.Command{
		Name:        "monitor",
		Usage:       "run the strategy monitor",
		Action:      monitorAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Evaluate automation strategies and sweep stop-loss/take-profit exits`,
	}
	seedCMD = cli.Command{
		Name:        "seed",
		Usage:       "seed demo accounts",
		Action:      seedAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Create the demo admin, manager and trader accounts`,
	}
)

func initDeps() (*engine.Engine, oracle.PriceOracle, error) {
	if err := database.InitMainDB(); err != nil {
		return nil, nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := database.InitReadOnlyDB(); err != nil {
		return nil, nil, fmt.Errorf("connecting to read-only database: %w", err)
	}

	priceOracle, err := oracle.NewFromConfig(oracle.GetConfig())
	if err != nil {
		return nil, nil, err
	}

	eng := engine.New(database.MainDB, database.ReadOnlyDB, priceOracle, engine.NewLockRegistry())
	return eng, priceOracle, nil
}

func serverAction(_ *cli.Context) error {
	logrus.Info("Starting server CMD")

	eng, _, err := initDeps()
	if err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}

	server.StartServer(server.GetConfig().Port, server.Deps{
		DB:         database.MainDB,
		Engine:     eng,
		Onboarding: onboarding.NewService(database.MainDB),
	})
	return nil
}

func monitorAction(_ *cli.Context) error {
	logrus.Info("Starting monitor CMD")

	eng, priceOracle, err := initDeps()
	if err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// stop the loop on SIGINT/SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		cancel()
	}()

	mon := monitor.New(database.MainDB, eng, priceOracle, monitor.GetConfig())
	return mon.StartLoop(ctx)
}

func seedAction(_ *cli.Context) error {
	logrus.Info("Starting seed CMD")

	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}

	if err := onboarding.NewService(database.MainDB).Seed(context.Background()); err != nil {
		logrus.WithError(err).Error("Seeding demo accounts")
		return err
	}

	logrus.Info("Demo accounts ready")
	return nil
}
