package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	logger "github.com/sirupsen/logrus"

	"tradesim/src/database"
	"tradesim/src/engine"
	"tradesim/src/onboarding"
	"tradesim/src/oracle"
	"tradesim/src/server"
)

var APP_NAME = os.Getenv("APP_NAME")

func SetupLogger() {
	levelStr := strings.ToLower(os.Getenv("LOG_LEVEL"))

	level, err := logger.ParseLevel(levelStr)
	if err != nil {
		level = logger.DebugLevel
	}

	logger.SetLevel(level)
	if strings.ToLower(os.Getenv("LOG_FORMAT")) == "json" {
		logger.SetFormatter(&logger.JSONFormatter{})
	} else {
		logger.SetFormatter(&logger.TextFormatter{
			FullTimestamp: true,
		})
	}
}

func main() {
	SetupLogger()
	defer handlePanic()

	// Initialize main (read/write) database
	if err := database.InitMainDB(); err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}

	// Initialize read-only database
	if err := database.InitReadOnlyDB(); err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}

	priceOracle, err := oracle.NewFromConfig(oracle.GetConfig())
	if err != nil {
		logger.WithError(err).Fatal("Failed to build price oracle")
	}

	eng := engine.New(database.MainDB, database.ReadOnlyDB, priceOracle, engine.NewLockRegistry())

	server.StartServer(server.GetConfig().Port, server.Deps{
		DB:         database.MainDB,
		Engine:     eng,
		Onboarding: onboarding.NewService(database.MainDB),
	})
}

func handlePanic() {
	if r := recover(); r != nil {
		logger.WithError(fmt.Errorf("%+v", r)).Error(fmt.Sprintf("Application %s panic", APP_NAME))
	}
	//nolint
	time.Sleep(time.Second * 5)
}
