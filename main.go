package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/neuropath/rtcore/internal/app"
	"github.com/neuropath/rtcore/internal/config"

	"github.com/pterm/pterm"
	"golang.org/x/crypto/bcrypt"
)

var (
	showHelp = flag.Bool("h", false, "Show help")
	version  = flag.Bool("version", false, "Show version")
)

// appVersion is set at build time via -ldflags "-X main.appVersion=x.y.z"
var appVersion = "dev"

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("rtcore v%s\n", appVersion)
		return
	}
	if *showHelp {
		showUsage()
		return
	}

	args := flag.Args()
	if len(args) == 0 {
		showUsage()
		os.Exit(1)
	}

	switch args[0] {
	case "serve":
		runServe(dirArg(args, "serve"))
	case "init":
		runInit(dirArg(args, "init"))
	case "hash-password":
		runHashPassword()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command '%s'\n\n", args[0])
		showUsage()
		os.Exit(1)
	}
}

func dirArg(args []string, cmd string) string {
	if len(args) < 2 {
		fmt.Fprintf(os.Stderr, "Error: %s requires a data directory\n", cmd)
		fmt.Fprintf(os.Stderr, "Usage: rtcore %s <data-directory>\n", cmd)
		os.Exit(1)
	}
	abs, err := filepath.Abs(args[1])
	if err != nil {
		fatalf("Invalid directory: %v", err)
	}
	return abs
}

func runServe(dir string) {
	if stat, err := os.Stat(dir); err != nil || !stat.IsDir() {
		fatalf("Data directory does not exist: %s", dir)
	}

	config.LoadDotEnv(filepath.Join(dir, ".env"), ".env")

	cfgPath := filepath.Join(dir, config.FileName)
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}

	printBanner(dir, cfgPath, cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := app.Run(ctx, app.Options{Dir: dir, CfgPath: cfgPath, Cfg: cfg}); err != nil {
		fatalf("rtcore failed: %v", err)
	}
	pterm.Success.Println("Stopped")
}

func runInit(dir string) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		fatalf("Create %s: %v", dir, err)
	}
	cfgPath := filepath.Join(dir, config.FileName)
	if _, err := os.Stat(cfgPath); err == nil {
		pterm.Warning.Printfln("%s already exists, leaving it alone", cfgPath)
		return
	}
	if err := config.Save(cfgPath, config.Default()); err != nil {
		fatalf("Write config: %v", err)
	}
	pterm.Success.Printfln("Wrote %s", cfgPath)
	pterm.Info.Printfln("Set %s (at least 16 characters) before running 'rtcore serve %s'", config.EnvJWTSecret, dir)
}

func runHashPassword() {
	pass, err := pterm.DefaultInteractiveTextInput.WithMask("*").Show("Admin password")
	if err != nil {
		fatalf("Read password: %v", err)
	}
	if len(pass) < 8 {
		fatalf("Password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pass), bcrypt.DefaultCost)
	if err != nil {
		fatalf("Hash: %v", err)
	}
	pterm.Println()
	pterm.Info.Println("Put this in admin.password_hash or " + config.EnvAdminPasswordHash + ":")
	fmt.Println(string(hash))
}

func fatalf(format string, a ...any) {
	pterm.Error.Printfln(format, a...)
	os.Exit(1)
}

func showUsage() {
	fmt.Println("rtcore - NeuroPath real-time coordination core")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  rtcore serve <directory>   Run the service from a data directory")
	fmt.Println("  rtcore init <directory>    Write a default rtcore.json")
	fmt.Println("  rtcore hash-password       Print a bcrypt hash for the admin endpoints")
	fmt.Println()
	fmt.Println("The data directory holds rtcore.json, an optional .env file and the")
	fmt.Println("SQLite database when the sqlite driver is used.")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -h        Show this help message")
	fmt.Println("  -version  Show version information")
}

func printBanner(dir, cfgPath string, cfg config.Config) {
	pterm.DefaultHeader.WithFullWidth().Println("rtcore v" + appVersion)
	pterm.Println()
	pterm.Info.Printfln("Data directory: %s", dir)
	pterm.Info.Printfln("Config file:    %s", cfgPath)
	pterm.Info.Printfln("Listening on:   http://%s (WebSocket at /ws, docs at /docs)", cfg.Server.HTTPAddr)
	if cfg.Admin.PasswordHash == "" {
		pterm.Warning.Println("Admin endpoints disabled (no admin.password_hash)")
	}
	pterm.Println()
	pterm.Println("Press Ctrl+C to stop")
	pterm.Println()
}
