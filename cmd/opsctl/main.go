package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/joho/godotenv"

	"github.com/ovenlight/pizzeria-backend/internal/catalog"
	"github.com/ovenlight/pizzeria-backend/internal/ops"
	"github.com/ovenlight/pizzeria-backend/pkg/config"
	"github.com/ovenlight/pizzeria-backend/pkg/db"
	"github.com/ovenlight/pizzeria-backend/pkg/logger"
	"github.com/ovenlight/pizzeria-backend/pkg/recordstore"
)

const usage = `usage: opsctl <command> [flags]

commands:
  list-orders [--recent]   list orders, newest first
  order --id <id>          show one order
  list-users [--recent]    list accounts with order counts
  user --email <email>     show one account and its orders
  menu                     print the catalog
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	logg := logger.New(logger.Options{ServiceName: "opsctl", Level: logger.ParseLevel("warn")})

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fatal("load config", err)
	}

	ctx := context.Background()
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		fatal("open database", err)
	}
	defer dbClient.Close()

	svc, err := ops.NewService(recordstore.New(dbClient), catalog.Default())
	if err != nil {
		fatal("create ops service", err)
	}

	switch os.Args[1] {
	case "list-orders":
		fs := flag.NewFlagSet("list-orders", flag.ExitOnError)
		recent := fs.Bool("recent", false, "only orders placed in the trailing 24h")
		fs.Parse(os.Args[2:])
		runListOrders(ctx, svc, *recent)
	case "order":
		fs := flag.NewFlagSet("order", flag.ExitOnError)
		id := fs.String("id", "", "order id ({email}_{ms})")
		fs.Parse(os.Args[2:])
		if *id == "" {
			fmt.Fprintln(os.Stderr, "missing --id")
			os.Exit(2)
		}
		runOrder(ctx, svc, *id)
	case "list-users":
		fs := flag.NewFlagSet("list-users", flag.ExitOnError)
		recent := fs.Bool("recent", false, "only accounts created in the trailing 24h")
		fs.Parse(os.Args[2:])
		runListUsers(ctx, svc, *recent)
	case "user":
		fs := flag.NewFlagSet("user", flag.ExitOnError)
		email := fs.String("email", "", "account email")
		fs.Parse(os.Args[2:])
		if *email == "" {
			fmt.Fprintln(os.Stderr, "missing --email")
			os.Exit(2)
		}
		runUser(ctx, svc, *email)
	case "menu":
		runMenu(svc)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}

func runListOrders(ctx context.Context, svc ops.Service, recent bool) {
	summaries, err := svc.ListOrders(ctx, recent)
	if err != nil {
		fatal("list orders", err)
	}
	w := newTable()
	fmt.Fprintln(w, "ID\tPLACED\tSTATUS\tPAY\tAMOUNT")
	for _, s := range summaries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			s.ID, s.PlacedAt.Format("2006-01-02 15:04:05"), s.Status, s.PayStatus, dollars(s.AmountCents))
	}
	w.Flush()
}

func runOrder(ctx context.Context, svc ops.Service, id string) {
	detail, err := svc.GetOrder(ctx, id)
	if err != nil {
		fatal("get order", err)
	}
	fmt.Printf("id:        %s\n", detail.ID)
	fmt.Printf("email:     %s\n", detail.Email)
	fmt.Printf("placed:    %s\n", detail.PlacedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("status:    %s\n", detail.Status)
	fmt.Printf("payStatus: %s\n", detail.PayStatus)
	fmt.Printf("amount:    %s\n", dollars(detail.AmountCents))
	fmt.Println("items:")
	for name, qty := range detail.Items {
		fmt.Printf("  %s x%d\n", name, qty)
	}
}

func runListUsers(ctx context.Context, svc ops.Service, recent bool) {
	summaries, err := svc.ListUsers(ctx, recent)
	if err != nil {
		fatal("list users", err)
	}
	w := newTable()
	fmt.Fprintln(w, "EMAIL\tNAME\tSIGNED UP\tORDERS")
	for _, s := range summaries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n",
			s.Email, s.Name, s.SignedUpAt.Format("2006-01-02 15:04:05"), s.OrderCount)
	}
	w.Flush()
}

func runUser(ctx context.Context, svc ops.Service, email string) {
	detail, err := svc.GetUser(ctx, email)
	if err != nil {
		fatal("get user", err)
	}
	fmt.Printf("name:    %s\n", detail.Name)
	fmt.Printf("email:   %s\n", detail.Email)
	fmt.Printf("address: %s\n", detail.Address)
	fmt.Printf("signed:  %s\n", detail.SignedUpAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("orders:  %d\n", len(detail.Orders))
	for _, o := range detail.Orders {
		fmt.Printf("  %s  %s  %s/%s  %s\n",
			o.ID, o.PlacedAt.Format("2006-01-02 15:04:05"), o.Status, o.PayStatus, dollars(o.AmountCents))
	}
}

func runMenu(svc ops.Service) {
	w := newTable()
	fmt.Fprintln(w, "NAME\tPRICE\tDESCRIPTION")
	for _, item := range svc.Menu() {
		fmt.Fprintf(w, "%s\t%s\t%s\n", item.Name, dollars(item.PriceCents), item.Description)
	}
	w.Flush()
}

func newTable() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
}

func dollars(cents int) string {
	return fmt.Sprintf("%.2f", float64(cents)/100)
}

func fatal(what string, err error) {
	fmt.Fprintf(os.Stderr, "opsctl: %s: %v\n", what, err)
	os.Exit(1)
}
