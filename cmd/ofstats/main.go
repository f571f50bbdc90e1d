package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	ofstats "github.com/ofstats/ofstats-go"
)

func main() {
	user := flag.String("user", "", "Model username to look up")
	watch := flag.String("watch", "", "Watch a profile page in a headless browser and stream intercepted records")
	login := flag.Bool("login", false, "Login against the backend with --email and --pass")
	logout := flag.Bool("logout", false, "Logout and clear the stored session token")
	email := flag.String("email", "", "Backend account email (used with --login)")
	pass := flag.String("pass", "", "Backend account password (used with --login)")
	cookies := flag.String("cookies", "", "Path to site cookies JSON file")
	proxyURL := flag.String("proxy", "", "Proxy URL (http/https/socks5)")
	flag.Parse()

	if *user == "" && *watch == "" && !*login && !*logout {
		fmt.Fprintln(os.Stderr, "usage: ofstats --user <username> | --watch <username> | --login --email <email> --pass <pass> | --logout")
		os.Exit(1)
	}

	cfg := ofstats.LoadConfig()
	logger := ofstats.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	coord := ofstats.NewCoordinator(cfg.BackendURL, ofstats.NewTokenStore(cfg.TokenFile)).
		WithLogger(logger)

	ctx := context.Background()

	if *login {
		if *email == "" || *pass == "" {
			log.Fatal("--login requires --email and --pass")
		}
		if err := coord.Login(ctx, *email, *pass); err != nil {
			log.Fatalf("login: %v", err)
		}
		fmt.Println("Logged in. Session token saved.")
		return
	}

	if *logout {
		if err := coord.Logout(ctx); err != nil {
			log.Fatalf("logout: %v", err)
		}
		fmt.Println("Logged out.")
		return
	}

	e := ofstats.New().
		WithBaseURL(cfg.SiteURL).
		WithProbeDelay(cfg.ProbeDelay).
		WithLogger(logger)
	defer e.Close()

	proxyAddr := cfg.Proxy
	if *proxyURL != "" {
		proxyAddr = *proxyURL
	}
	if proxyAddr != "" {
		if err := e.SetProxy(proxyAddr); err != nil {
			log.Fatalf("set proxy: %v", err)
		}
	}

	cookiePath := cfg.CookiesFile
	if *cookies != "" {
		cookiePath = *cookies
	}

	// Direct lookup: pure HTTP, no browser needed.
	if *user != "" && *watch == "" {
		if _, err := os.Stat(cookiePath); err == nil {
			if err := e.LoadCookies(cookiePath); err != nil {
				log.Fatalf("load cookies: %v", err)
			}
		}
		coord.RegisterTab(e.Flags())
		coord.VerifySession(ctx)
		e.Install()

		rec, err := e.Profile(ctx, *user)
		if err != nil {
			log.Fatalf("profile: %v", err)
		}
		printRecord(rec)
		return
	}

	// Watch mode: attach the browser, install the hooks, stream records.
	if err := e.InitBrowser(); err != nil {
		log.Fatalf("init browser: %v", err)
	}
	if _, err := os.Stat(cookiePath); err == nil {
		if err := e.AttachCookies(cookiePath); err != nil {
			log.Fatalf("attach cookies: %v", err)
		}
	}

	coord.RegisterTab(e.Flags())
	if !coord.VerifySession(ctx) {
		log.Fatal("watch: backend session invalid, run --login first")
	}
	e.Install()
	if !e.Installed() {
		log.Fatal("watch: interception did not install")
	}

	events := e.Subscribe()
	if err := e.Watch(ctx, *watch); err != nil {
		log.Fatalf("watch: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	fmt.Printf("Watching /%s (Ctrl-C to stop)\n", *watch)

	for {
		select {
		case ev := <-events:
			printRecord(ev.Record)
		case <-stop:
			return
		}
	}
}

func printRecord(r *ofstats.ProfileRecord) {
	fmt.Printf("User:     %s\n", r.Username)
	if r.Name != "" {
		fmt.Printf("Name:     %s\n", r.Name)
	}
	if len(r.ID) > 0 {
		fmt.Printf("ID:       %s\n", string(r.ID))
	}
	printCount("Subscribers", r.SubscribersCount)
	printCount("Posts", r.PostsCount)
	printCount("Photos", r.PhotosCount)
	printCount("Videos", r.VideosCount)
	if r.IsVerified != nil {
		fmt.Printf("Verified: %v\n", *r.IsVerified)
	}
	if r.About != nil {
		fmt.Printf("About:    %s\n", *r.About)
	}
	raw, _ := json.Marshal(r)
	fmt.Printf("JSON:     %s\n", raw)
}

func printCount(label string, n *int) {
	if n != nil {
		fmt.Printf("%-9s %d\n", label+":", *n)
	}
}
