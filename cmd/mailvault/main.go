package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/gologme/log"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"github.com/JB-SelfCompany/mailvault/internal/actions"
	"github.com/JB-SelfCompany/mailvault/internal/archive"
	"github.com/JB-SelfCompany/mailvault/internal/config"
	"github.com/JB-SelfCompany/mailvault/internal/httpserver"
	"github.com/JB-SelfCompany/mailvault/internal/search"
	"github.com/JB-SelfCompany/mailvault/internal/storage/blobstore"
	"github.com/JB-SelfCompany/mailvault/internal/storage/sqlite3"
)

const usage = `usage: mailvault <command>

commands:
  serve                                start the archive server (default)
  compress                             recompress legacy uncompressed blobs
  rebuild-messages <default_username>  restore metadata rows for orphaned blobs
  rebuild-search-index                 regenerate the search index from storage
  user-add <username>                  create a user (prompts for password)

The repair commands require a maintenance window: do not run them while the
server is ingesting mail.
`

func main() {
	green := color.New(color.FgGreen).SprintfFunc()
	logger := log.New(os.Stdout, fmt.Sprintf("[ %s ] ", green("Mailvault")), log.LstdFlags|log.Lmsgprefix)
	logger.EnableLevel("error")
	logger.EnableLevel("warn")
	logger.EnableLevel("info")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("configuration: %v", err)
	}
	if cfg.Verbose {
		logger.EnableLevel("debug")
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		logger.Fatalf("create data directory: %v", err)
	}

	command := "serve"
	args := os.Args[1:]
	if len(args) > 0 {
		command = args[0]
		args = args[1:]
	}

	switch command {
	case "serve":
		serve(logger, cfg)
	case "compress":
		compress(logger, cfg)
	case "rebuild-messages":
		if len(args) != 1 {
			logger.Fatalln("rebuild-messages requires a default username")
		}
		rebuildMessages(logger, cfg, args[0])
	case "rebuild-search-index":
		rebuildSearchIndex(logger, cfg)
	case "user-add":
		if len(args) != 1 {
			logger.Fatalln("user-add requires a username")
		}
		userAdd(logger, cfg, args[0])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}

func openStorage(logger *log.Logger, cfg *config.Config) *sqlite3.SQLite3Storage {
	storage, err := sqlite3.NewSQLite3Storage(cfg.DatabasePath())
	if err != nil {
		logger.Fatalf("open relational database: %v", err)
	}
	return storage
}

func openBlobs(logger *log.Logger, cfg *config.Config) *blobstore.BlobStore {
	blobs, err := blobstore.New(cfg.BlobDatabasePath())
	if err != nil {
		logger.Fatalf("open blob database: %v", err)
	}
	return blobs
}

func openSearch(logger *log.Logger, cfg *config.Config) *search.Engine {
	engine, err := search.Open(cfg.SearchIndexPath())
	if err != nil {
		logger.Fatalf("open search index: %v", err)
	}
	return engine
}

func serve(logger *log.Logger, cfg *config.Config) {
	storage := openStorage(logger, cfg)
	defer storage.Close()
	blobs := openBlobs(logger, cfg)
	defer blobs.Close()
	engine := openSearch(logger, cfg)
	defer engine.Close()

	a := archive.New(logger, storage, blobs, engine)
	server := httpserver.NewServer(logger, cfg, a, storage)
	if err := server.ListenAndServe(); err != nil {
		logger.Fatalf("server: %v", err)
	}
}

func compress(logger *log.Logger, cfg *config.Config) {
	blobs := openBlobs(logger, cfg)
	defer blobs.Close()

	if _, err := actions.Compress(logger, blobs); err != nil {
		logger.Fatalf("compress: %v", err)
	}
}

func rebuildMessages(logger *log.Logger, cfg *config.Config, defaultUsername string) {
	storage := openStorage(logger, cfg)
	defer storage.Close()
	blobs := openBlobs(logger, cfg)
	defer blobs.Close()

	if _, err := actions.RebuildMessages(logger, storage, blobs, defaultUsername); err != nil {
		logger.Fatalf("rebuild-messages: %v", err)
	}
}

func rebuildSearchIndex(logger *log.Logger, cfg *config.Config) {
	storage := openStorage(logger, cfg)
	defer storage.Close()
	blobs := openBlobs(logger, cfg)
	defer blobs.Close()
	engine := openSearch(logger, cfg)
	defer engine.Close()

	if _, err := actions.RebuildSearchIndex(logger, storage, blobs, engine); err != nil {
		logger.Fatalf("rebuild-search-index: %v", err)
	}
}

func userAdd(logger *log.Logger, cfg *config.Config, username string) {
	storage := openStorage(logger, cfg)
	defer storage.Close()

	fmt.Print("Password: ")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		logger.Fatalf("read password: %v", err)
	}
	fmt.Print("Confirm password: ")
	confirm, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		logger.Fatalf("read password: %v", err)
	}
	if string(password) != string(confirm) {
		logger.Fatalln("passwords do not match")
	}

	hash, err := bcrypt.GenerateFromPassword(password, bcrypt.DefaultCost)
	if err != nil {
		logger.Fatalf("hash password: %v", err)
	}
	user, err := storage.Users.UserCreate(username, string(hash))
	if err != nil {
		logger.Fatalf("create user: %v", err)
	}
	logger.Infof("created user %q (id %d)", user.Username, user.ID)
}
