package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/wadjakorntonsri/portfolio-views/pkg/adapters/repository"
	"github.com/wadjakorntonsri/portfolio-views/pkg/adapters/snapshot"
	"github.com/wadjakorntonsri/portfolio-views/pkg/config"
	"github.com/wadjakorntonsri/portfolio-views/pkg/core/services"
	applog "github.com/wadjakorntonsri/portfolio-views/pkg/logger"
)

const usage = "expected 'export', 'import' or 'token' subcommands"

func main() {
	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)
	exportFile := exportCmd.String("file", "", "write to file instead of stdout")
	importCmd := flag.NewFlagSet("import", flag.ExitOnError)
	importFile := importCmd.String("file", "", "JSON file to import")
	tokenCmd := flag.NewFlagSet("token", flag.ExitOnError)
	tokenSubject := tokenCmd.String("sub", "admin", "token subject")
	tokenTTL := tokenCmd.Duration("ttl", time.Hour, "token lifetime")

	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger, err := applog.New(cfg.AppEnv)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	switch os.Args[1] {
	case "export":
		exportCmd.Parse(os.Args[2:])
		withSnapshots(cfg, logger, func(s *services.SnapshotService) error {
			return doExport(s, *exportFile)
		})
	case "import":
		importCmd.Parse(os.Args[2:])
		if *importFile == "" {
			importCmd.PrintDefaults()
			os.Exit(1)
		}
		withSnapshots(cfg, logger, func(s *services.SnapshotService) error {
			return doImport(s, *importFile, logger)
		})
	case "token":
		tokenCmd.Parse(os.Args[2:])
		token, err := mintToken(cfg.JWTSecret, *tokenSubject, *tokenTTL)
		if err != nil {
			logger.Fatal("token failed", zap.Error(err))
		}
		fmt.Println(token)
	default:
		fmt.Println(usage)
		os.Exit(1)
	}
}

func withSnapshots(cfg *config.Config, logger *zap.Logger, fn func(*services.SnapshotService) error) {
	store, err := repository.Open(cfg, logger)
	if err != nil {
		logger.Fatal("failed to open visitor store", zap.Error(err))
	}

	err = fn(services.NewSnapshotService(store, logger))
	if cerr := store.Close(); cerr != nil {
		logger.Error("failed to close visitor store", zap.Error(cerr))
	}
	if err != nil {
		logger.Fatal("command failed", zap.Error(err))
	}
}

func doExport(s *services.SnapshotService, filename string) error {
	snap, err := s.Export(context.Background())
	if err != nil {
		return err
	}
	if filename != "" {
		return snapshot.WriteFile(filename, snap)
	}
	return snapshot.Encode(os.Stdout, snap)
}

func doImport(s *services.SnapshotService, filename string, logger *zap.Logger) error {
	snap, err := snapshot.ReadFile(filename)
	if err != nil {
		return err
	}
	if err := s.Import(context.Background(), snap); err != nil {
		return err
	}
	logger.Info("imported snapshot", zap.String("file", filename), zap.Int("visitors", len(snap.Visitors)))
	return nil
}

func mintToken(secret, subject string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("JWT_SECRET is not set")
	}
	now := time.Now()
	claims := &jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
