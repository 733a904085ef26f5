package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"lbx/cmd"
	"lbx/config"
	"lbx/database"

	log "github.com/sirupsen/logrus"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "migrate":
			if err := handleMigrationCommand(os.Args[2:]); err != nil {
				log.Fatal("Migration error: ", err)
			}
			return
		case "adjust-balance":
			if err := handleAdjustCommand(os.Args[2:]); err != nil {
				log.Fatal("Adjust error: ", err)
			}
			return
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Received shutdown signal, shutting down gracefully...")
		cancel()
	}()

	if err := cmd.Run(ctx); err != nil {
		log.Fatal("Application error: ", err)
	}
}

func handleMigrationCommand(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: lbx migrate [up|down|status] [args...]")
	}

	cfg := config.Get()
	cmd.ConfigureLogging(cfg)
	databaseURL := cfg.GetDatabaseURL()
	if databaseURL == "" {
		return fmt.Errorf("DATABASE_URL is not set")
	}

	switch args[0] {
	case "up":
		return database.MigrateUp(databaseURL)
	case "down":
		steps := 1
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n < 1 {
				return fmt.Errorf("invalid step count: %s", args[1])
			}
			steps = n
		}
		return database.MigrateDown(databaseURL, steps)
	case "status":
		status, err := database.MigrateStatus(databaseURL)
		if err != nil {
			return err
		}
		if !status.Applied {
			fmt.Println("No migrations applied")
			return nil
		}
		fmt.Printf("Version: %d, dirty: %t\n", status.Version, status.Dirty)
		return nil
	default:
		return fmt.Errorf("unknown migration command: %s", args[0])
	}
}

func handleAdjustCommand(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: lbx adjust-balance <username> <delta> [reason]")
	}
	reason := ""
	if len(args) > 2 {
		reason = args[2]
	}

	balance, err := cmd.AdjustBalance(context.Background(), args[0], args[1], reason)
	if err != nil {
		return err
	}
	fmt.Printf("Balance: %d\n", balance)
	return nil
}
