// Command billingctl talks to the billing API from a terminal using the typed API client.
//
// Usage:
//
//	billingctl login -email you@example.com -password secret
//	billingctl whoami
//	billingctl plans [-active] [-page 1 -limit 20]
//	billingctl subscriptions -org <organization id>
//	billingctl invoices [-org <organization id>]
//	billingctl invoice -id <invoice id> [-o file.pdf]
//	billingctl health
//	billingctl logout
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"portal/internal/apiclient"
	"portal/internal/config"
	"portal/internal/logger"
	"portal/internal/upstream"

	_ "github.com/joho/godotenv/autoload"
)

const usage = `usage: billingctl <command> [flags]

commands:
  login          sign in and store the token pair
  whoami         show the signed-in user
  plans          list plans
  subscriptions  list an organization's subscriptions
  invoices       list invoices
  invoice        download one invoice document
  health         check the backend
  logout         sign out and forget the stored tokens

environment:
  API_BASE_URL           backend origin (default http://localhost:8080)
  BILLINGCTL_TOKEN_FILE  token file (default in the user config dir)
  PORTAL_URL, PORTAL_SESSION  borrow tokens from a portal session cookie
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := newClient()
	if err != nil {
		fmt.Fprintln(os.Stderr, "billingctl:", err)
		os.Exit(1)
	}

	if err := run(ctx, client, os.Args[1], os.Args[2:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "billingctl:", err)
		if apiclient.IsUnauthorized(err) {
			fmt.Fprintln(os.Stderr, "run `billingctl login` first")
		}
		os.Exit(1)
	}
}

func newClient() (*apiclient.Client, error) {
	opts := logger.OptionsFromEnv("billingctl")
	if os.Getenv("LOG_FORMAT") == "" {
		opts.Format = logger.FormatText
	}
	if opts.Level == "" {
		opts.Level = "warn"
	}
	log := logger.Build(os.Stderr, opts)

	tokenFile := config.GetEnvOrDefault("BILLINGCTL_TOKEN_FILE", "")
	if tokenFile == "" {
		path, err := apiclient.DefaultTokenFile()
		if err != nil {
			return nil, fmt.Errorf("locate token file: %w", err)
		}
		tokenFile = path
	}

	hc := &http.Client{Timeout: 30 * time.Second}
	origin := strings.TrimRight(config.GetEnvOrDefault("API_BASE_URL", "http://localhost:8080"), "/")

	clientOpts := []apiclient.Option{
		apiclient.WithHTTPClient(hc),
		apiclient.WithTokenStore(apiclient.NewFileTokenStore(tokenFile)),
		apiclient.WithLogger(log),
	}
	if portal, cookie := os.Getenv("PORTAL_URL"), os.Getenv("PORTAL_SESSION"); portal != "" && cookie != "" {
		clientOpts = append(clientOpts, apiclient.WithTokenSource(apiclient.PortalSession(hc, portal, cookie)))
	}

	return apiclient.New(upstream.NewStatic(origin), clientOpts...), nil
}

func run(ctx context.Context, client *apiclient.Client, command string, args []string, out io.Writer) error {
	switch command {
	case "login":
		return login(ctx, client, args, out)
	case "whoami":
		return whoami(ctx, client, out)
	case "plans":
		return plans(ctx, client, args, out)
	case "subscriptions":
		return subscriptions(ctx, client, args, out)
	case "invoices":
		return invoices(ctx, client, args, out)
	case "invoice":
		return invoice(ctx, client, args, out)
	case "health":
		return health(ctx, client, out)
	case "logout":
		client.Logout(ctx)
		fmt.Fprintln(out, "Signed out")
		return nil
	case "help", "-h", "--help":
		fmt.Fprint(out, usage)
		return nil
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func login(ctx context.Context, client *apiclient.Client, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", os.Getenv("BILLINGCTL_EMAIL"), "account email")
	password := fs.String("password", os.Getenv("BILLINGCTL_PASSWORD"), "account password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" || *password == "" {
		return errors.New("login: -email and -password are required")
	}

	auth, err := client.Login(ctx, apiclient.LoginRequest{Email: *email, Password: *password})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Signed in as %s %s <%s>\n", auth.User.FirstName, auth.User.LastName, auth.User.Email)
	if auth.Organization != nil {
		fmt.Fprintf(out, "Organization: %s (%s)\n", auth.Organization.Name, auth.Organization.ID)
	}
	return nil
}

func whoami(ctx context.Context, client *apiclient.Client, out io.Writer) error {
	user, err := client.Me(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s %s <%s>\nrole: %s\nid:   %s\n", user.FirstName, user.LastName, user.Email, user.Role, user.ID)
	return nil
}

func plans(ctx context.Context, client *apiclient.Client, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("plans", flag.ContinueOnError)
	active := fs.Bool("active", false, "only active plans")
	page := fs.Int("page", 1, "page number")
	limit := fs.Int("limit", 20, "page size")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var list []apiclient.Plan
	var footer string
	if *active {
		items, err := client.ActivePlans(ctx)
		if err != nil {
			return err
		}
		list = items
	} else {
		p, err := client.Plans(ctx, *page, *limit)
		if err != nil {
			return err
		}
		list = p.Items
		footer = fmt.Sprintf("page %d of %d, %d plans\n", p.Pagination.Page, p.Pagination.TotalPages, p.Pagination.Total)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPRICE\tINTERVAL\tFEATURES")
	for _, plan := range list {
		fmt.Fprintf(tw, "%s\t%s\t%.2f %s\t%s\t%s\n",
			plan.ID, plan.Name, plan.Price, plan.Currency, plan.Interval, strings.Join(plan.FeatureList(), ", "))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprint(out, footer)
	return nil
}

func subscriptions(ctx context.Context, client *apiclient.Client, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("subscriptions", flag.ContinueOnError)
	org := fs.String("org", "", "organization id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *org == "" {
		return errors.New("subscriptions: -org is required")
	}

	list, err := client.SubscriptionsByOrganization(ctx, *org)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPLAN\tSTATUS\tSTARTED\tAUTO RENEW")
	for _, s := range list {
		plan := s.PlanID
		if s.Plan != nil {
			plan = s.Plan.Name
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\n", s.ID, plan, s.Status, s.StartDate.Format(time.DateOnly), s.AutoRenew)
	}
	return tw.Flush()
}

func invoices(ctx context.Context, client *apiclient.Client, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("invoices", flag.ContinueOnError)
	org := fs.String("org", "", "organization id; all visible invoices when empty")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var list []apiclient.Invoice
	if *org != "" {
		items, err := client.InvoicesByOrganization(ctx, *org)
		if err != nil {
			return err
		}
		list = items
	} else {
		p, err := client.Invoices(ctx, 1, 50)
		if err != nil {
			return err
		}
		list = p.Items
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNUMBER\tSTATUS\tTOTAL\tDUE")
	for _, inv := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f %s\t%s\n",
			inv.ID, inv.InvoiceNumber, inv.Status, inv.Total, inv.Currency, inv.DueDate.Format(time.DateOnly))
	}
	return tw.Flush()
}

func invoice(ctx context.Context, client *apiclient.Client, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("invoice", flag.ContinueOnError)
	id := fs.String("id", "", "invoice id")
	output := fs.String("o", "", "output file; defaults to the name the backend suggests")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return errors.New("invoice: -id is required")
	}

	file, err := client.DownloadInvoice(ctx, *id)
	if err != nil {
		return err
	}

	path := *output
	if path == "" {
		path = file.Filename
	}
	if err := os.WriteFile(path, file.Content, 0o644); err != nil {
		return fmt.Errorf("write invoice: %w", err)
	}
	fmt.Fprintf(out, "Saved %s (%d bytes)\n", path, len(file.Content))
	return nil
}

func health(ctx context.Context, client *apiclient.Client, out io.Writer) error {
	status, err := client.Health(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s %s\n", status.Status, status.Version)
	return nil
}
