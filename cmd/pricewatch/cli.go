package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kong"
	"github.com/layer-3/pricewatch/adapters/credstore"
	"github.com/layer-3/pricewatch/core"
	"github.com/layer-3/pricewatch/session"
	"github.com/layer-3/pricewatch/storefront"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// CLI represents command structure
type CLI struct {
	// Config file path
	Config kong.ConfigFlag `help:"Path to TOML configuration file" optional:"true" short:"c" type:"existingfile" env:"PRICEWATCH_CONFIG"`

	// Debug output
	Debug bool `help:"Debug logging" short:"d"`

	// BaseURL is the storefront API root
	BaseURL string `help:"Storefront API root" required:"true" env:"PRICEWATCH_BASE_URL"`

	// StorageDir keeps the credential between runs
	StorageDir string `help:"Credential storage directory" default:"./storage" env:"PRICEWATCH_STORAGE"`

	// Timeout bounds each HTTP request
	Timeout time.Duration `help:"HTTP request timeout" default:"30s"`

	// Login is the login command
	Login LoginCmd `cmd:"true" help:"Log in and keep the session"`

	// Logout is the logout command
	Logout LogoutCmd `cmd:"true" help:"End the session"`

	// Register is the account creation command
	Register RegisterCmd `cmd:"true" help:"Create an account"`

	// Whoami is the profile command
	Whoami WhoamiCmd `cmd:"true" help:"Show the logged in user"`

	// Products is the catalogue listing command
	Products ProductsCmd `cmd:"true" help:"List products"`

	// Scrape adds a product by URL
	Scrape ScrapeCmd `cmd:"true" help:"Add a product from its marketplace URL"`

	// Track is the watch list command
	Track TrackCmd `cmd:"true" help:"Track a product"`

	// Tracked lists the watch list
	Tracked TrackedCmd `cmd:"true" help:"List tracked products"`

	// Alerts groups the alert commands
	Alerts AlertsCmd `cmd:"true" help:"Manage price alerts"`

	out io.Writer `kong:"-"`
}

// app is what every command runs against
type app struct {
	session    *session.Client
	storefront *storefront.Client
	out        io.Writer
}

func (c *CLI) open() (*app, error) {
	logger := log.New()
	logger.SetOutput(os.Stderr)
	if c.Debug {
		logger.SetLevel(log.DebugLevel)
	}

	store, err := credstore.NewDiskStore(c.StorageDir, logger)
	if err != nil {
		return nil, err
	}

	sc, err := session.New(session.Config{
		BaseURL:    c.BaseURL,
		Store:      store,
		Logger:     logger,
		HTTPClient: &http.Client{Timeout: c.Timeout},
	})
	if err != nil {
		return nil, err
	}

	out := c.out
	if out == nil {
		out = os.Stdout
	}
	return &app{session: sc, storefront: storefront.New(sc, logger), out: out}, nil
}

// LoginCmd logs in
type LoginCmd struct {
	Email    string `help:"Account email" required:"true"`
	Password string `help:"Account password" required:"true" env:"PRICEWATCH_PASSWORD"`
}

// Run executes the command
func (l *LoginCmd) Run(cli *CLI) error {
	a, err := cli.open()
	if err != nil {
		return err
	}
	profile, err := a.session.Login(context.Background(), l.Email, l.Password)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Logged in as %s\n", profile.Email)
	return nil
}

// LogoutCmd logs out
type LogoutCmd struct{}

// Run executes the command
func (l *LogoutCmd) Run(cli *CLI) error {
	a, err := cli.open()
	if err != nil {
		return err
	}
	if a.session.State() != core.StateAuthenticated {
		fmt.Fprintln(a.out, "Not logged in")
		return nil
	}
	if err := a.session.Logout(context.Background()); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

// RegisterCmd creates an account
type RegisterCmd struct {
	Email    string `help:"Account email" required:"true"`
	FullName string `help:"Full name" required:"true"`
	Phone    string `help:"Phone number" required:"true"`
	Password string `help:"Account password" required:"true" env:"PRICEWATCH_PASSWORD"`
}

// Run executes the command
func (r *RegisterCmd) Run(cli *CLI) error {
	a, err := cli.open()
	if err != nil {
		return err
	}
	profile, err := a.session.Register(context.Background(), core.Registration{
		Email:    r.Email,
		FullName: r.FullName,
		Phone:    r.Phone,
		Password: r.Password,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Registered %s, log in to continue\n", profile.Email)
	return nil
}

// WhoamiCmd prints the profile
type WhoamiCmd struct{}

// Run executes the command
func (w *WhoamiCmd) Run(cli *CLI) error {
	a, err := cli.open()
	if err != nil {
		return err
	}
	profile, err := a.session.Restore(context.Background())
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Email:\t%s\n", profile.Email)
	fmt.Fprintf(tw, "Name:\t%s\n", profile.FullName)
	fmt.Fprintf(tw, "Premium:\t%t\n", profile.IsPremium)
	fmt.Fprintf(tw, "Notifications:\t%s\n", profile.PreferredNotificationChannel)
	return tw.Flush()
}

// ProductsCmd lists the catalogue
type ProductsCmd struct {
	Category    string `help:"Filter by category"`
	Marketplace string `help:"Filter by marketplace (jumia, amazon, local_market)"`
	Search      string `help:"Search in product names"`
	Page        int    `help:"Page number" default:"1"`
	Limit       int    `help:"Page size" default:"20"`
}

// Run executes the command
func (p *ProductsCmd) Run(cli *CLI) error {
	a, err := cli.open()
	if err != nil {
		return err
	}
	products, err := a.storefront.ListProducts(context.Background(), core.ProductQuery{
		Page:        p.Page,
		Limit:       p.Limit,
		Category:    p.Category,
		Marketplace: core.Marketplace(p.Marketplace),
		Search:      p.Search,
	})
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tMARKETPLACE\tPRICE\tAVAILABLE")
	for _, pr := range products {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s %s\t%t\n", pr.ID, pr.Name, pr.Marketplace, pr.CurrentPrice.String(), pr.Currency, pr.IsAvailable)
	}
	return tw.Flush()
}

// ScrapeCmd adds a product from its URL
type ScrapeCmd struct {
	URL         string `arg:"true" help:"Product page URL"`
	Marketplace string `help:"Marketplace (jumia, amazon), guessed from the URL when empty"`
}

// Run executes the command
func (s *ScrapeCmd) Run(cli *CLI) error {
	a, err := cli.open()
	if err != nil {
		return err
	}
	product, err := a.storefront.ScrapeProduct(context.Background(), core.ScrapeRequest{
		URL:         s.URL,
		Marketplace: core.Marketplace(s.Marketplace),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Added %s (%s) at %s %s\n", product.Name, product.ID, product.CurrentPrice.String(), product.Currency)
	return nil
}

// TrackCmd adds a product to the watch list
type TrackCmd struct {
	ProductID   string `arg:"true" help:"Product to track"`
	TargetPrice string `help:"Notify below this price"`
}

// Run executes the command
func (t *TrackCmd) Run(cli *CLI) error {
	req := core.TrackRequest{ProductID: t.ProductID}
	if t.TargetPrice != "" {
		price, err := decimal.NewFromString(t.TargetPrice)
		if err != nil {
			return fmt.Errorf("invalid target price %q: %w", t.TargetPrice, err)
		}
		req.TargetPrice = &price
	}

	a, err := cli.open()
	if err != nil {
		return err
	}
	tracked, err := a.storefront.TrackProduct(context.Background(), req)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Tracking %s (%s)\n", tracked.Product.Name, tracked.ID)
	return nil
}

// TrackedCmd lists the watch list
type TrackedCmd struct{}

// Run executes the command
func (t *TrackedCmd) Run(cli *CLI) error {
	a, err := cli.open()
	if err != nil {
		return err
	}
	list, err := a.storefront.ListTracked(context.Background())
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPRODUCT\tPRICE\tTARGET")
	for _, tp := range list {
		target := "-"
		if tp.TargetPrice != nil {
			target = tp.TargetPrice.String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", tp.ID, tp.Product.Name, tp.Product.CurrentPrice.String(), target)
	}
	return tw.Flush()
}

// AlertsCmd groups the alert subcommands
type AlertsCmd struct {
	Ls   AlertsListCmd   `cmd:"true" help:"List alerts"`
	Add  AlertsAddCmd    `cmd:"true" help:"Create an alert"`
	Rm   AlertsRemoveCmd `cmd:"true" help:"Delete an alert"`
	Test AlertsTestCmd   `cmd:"true" help:"Send a test notification"`
}

// AlertsListCmd lists alerts
type AlertsListCmd struct{}

// Run executes the command
func (l *AlertsListCmd) Run(cli *CLI) error {
	a, err := cli.open()
	if err != nil {
		return err
	}
	alerts, err := a.storefront.ListAlerts(context.Background())
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPRODUCT\tTYPE\tTHRESHOLD\tACTIVE")
	for _, al := range alerts {
		threshold := "-"
		if al.ThresholdValue != nil {
			threshold = al.ThresholdValue.String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\n", al.ID, al.ProductID, al.AlertType, threshold, al.IsActive)
	}
	return tw.Flush()
}

// AlertsAddCmd creates an alert
type AlertsAddCmd struct {
	ProductID string `arg:"true" help:"Product to watch"`
	Type      string `help:"Alert type" enum:"target_price,percentage_drop,availability" default:"target_price"`
	Threshold string `help:"Price or percentage threshold"`
	Channel   string `help:"Notification channel" enum:"email,telegram,whatsapp,sms" default:"email"`
}

// Run executes the command
func (c *AlertsAddCmd) Run(cli *CLI) error {
	req := core.NewAlert{
		ProductID:           c.ProductID,
		AlertType:           core.AlertType(c.Type),
		NotificationChannel: core.NotificationChannel(c.Channel),
	}
	if c.Threshold != "" {
		threshold, err := decimal.NewFromString(c.Threshold)
		if err != nil {
			return fmt.Errorf("invalid threshold %q: %w", c.Threshold, err)
		}
		req.ThresholdValue = &threshold
	}

	a, err := cli.open()
	if err != nil {
		return err
	}
	alert, err := a.storefront.CreateAlert(context.Background(), req)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Created alert %s\n", alert.ID)
	return nil
}

// AlertsRemoveCmd deletes an alert
type AlertsRemoveCmd struct {
	ID string `arg:"true" help:"Alert to delete"`
}

// Run executes the command
func (r *AlertsRemoveCmd) Run(cli *CLI) error {
	a, err := cli.open()
	if err != nil {
		return err
	}
	if err := a.storefront.DeleteAlert(context.Background(), r.ID); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Deleted alert %s\n", r.ID)
	return nil
}

// AlertsTestCmd sends a test notification
type AlertsTestCmd struct {
	ID string `arg:"true" help:"Alert to test"`
}

// Run executes the command
func (t *AlertsTestCmd) Run(cli *CLI) error {
	a, err := cli.open()
	if err != nil {
		return err
	}
	result, err := a.storefront.TestAlert(context.Background(), t.ID)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, result.Message)
	return nil
}
