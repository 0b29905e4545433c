package main

import (
	"bufio"
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/gautamk/summer-hiking-series/internal/browser"
	crawlerrors "github.com/gautamk/summer-hiking-series/internal/errors"
	"github.com/gautamk/summer-hiking-series/internal/session"
)

const (
	defaultLoginURL = "https://www.wta.org/login?came_from=/backpack"

	// loggedInMarker matches elements WTA only renders for a signed-in member.
	loggedInMarker = "a[href*='logout'], .user-name, #user-menu"
)

func runLogin(cmd *cobra.Command, args []string) error {
	config, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	log := newLogger(config)

	bc := config.Browser
	bc.Headless = false
	b, err := browser.Launch(bc)
	if err != nil {
		return err
	}
	defer b.Close()

	ctx := context.Background()
	tab, err := b.NewTab(ctx)
	if err != nil {
		return err
	}
	defer tab.Close()

	if err := tab.Navigate(ctx, loginURL); err != nil {
		return err
	}

	in := bufio.NewReader(os.Stdin)
	fmt.Println("Log in to WTA in the browser window, then press Enter here.")
	if _, err := in.ReadString('\n'); err != nil {
		return fmt.Errorf("failed to read confirmation: %w", err)
	}

	if err := tab.WaitElement(ctx, loggedInMarker, 3*time.Second); err != nil {
		log.WithError(err).Debug("logged-in marker not found")
		if !confirm(in, "Could not confirm you are logged in. Save the session anyway? [y/N] ") {
			return fmt.Errorf("login not confirmed, session not saved")
		}
	}

	cookies, err := b.Cookies()
	if err != nil {
		return fmt.Errorf("failed to read cookies: %w", err)
	}

	storage := map[string]map[string]string{}
	if current, err := tab.URL(ctx); err == nil {
		if origin := originOf(current); origin != "" {
			entries, err := tab.LocalStorage(ctx)
			if err != nil {
				log.WithError(err).Warn("failed to read localStorage, saving cookies only")
			} else if len(entries) > 0 {
				storage[origin] = entries
			}
		}
	}

	manager := session.NewManager(config.Session.File, log)
	state := session.Capture(cookies, storage)
	if err := manager.Save(state); err != nil {
		return err
	}

	fmt.Printf("Saved session with %d cookies to %s\n", len(state.Cookies), manager.Path())
	return nil
}

func runSessionCheck(cmd *cobra.Command, args []string) error {
	config, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	log := newLogger(config)

	manager := session.NewManager(config.Session.File, log)
	state, err := manager.Load()
	if err != nil {
		return &exitError{code: exitSessionExpired, err: err}
	}

	now := time.Now()
	earliest, expired := state.Expiry(now)

	fmt.Printf("Session:    %s\n", manager.Path())
	fmt.Printf("Cookies:    %d (%d expired)\n", len(state.Cookies), expired)
	if earliest.IsZero() {
		fmt.Println("Expires:    end of browser session")
	} else {
		fmt.Printf("Expires:    %s (in %v)\n", earliest.Local().Format(time.RFC1123), earliest.Sub(now).Round(time.Hour))
	}

	probe, _ := cmd.Flags().GetBool("probe")
	if !probe {
		return nil
	}

	b, err := browser.Launch(config.Browser)
	if err != nil {
		return err
	}
	defer b.Close()

	ctx := context.Background()
	if _, err := manager.Attach(ctx, b); err != nil {
		return err
	}

	tab, err := b.NewTab(ctx)
	if err != nil {
		return err
	}
	defer tab.Close()

	valid, landed, err := session.Probe(ctx, tab, config.Session.ProbeURL, config.Session.LoginMarker)
	if err != nil {
		return err
	}
	if !valid {
		return &exitError{
			code: exitSessionExpired,
			err:  fmt.Errorf("re-authenticate required: run trailcrawler login (%w)", crawlerrors.NewSessionExpiredError(config.Session.ProbeURL, landed)),
		}
	}

	fmt.Println("Probe:      session accepted")
	return nil
}

func confirm(in *bufio.Reader, prompt string) bool {
	fmt.Print(prompt)
	answer, err := in.ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

// originOf returns scheme://host of raw, or "" when raw is not absolute.
func originOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
