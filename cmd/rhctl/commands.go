package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/magabrotheeeer/rhmaster-billing/internal/dashboard"
	"github.com/magabrotheeeer/rhmaster-billing/internal/models"
)

func newFlagSet(e *env, name, usage string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(e.out)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: rhctl %s\n\nOptions:\n", usage)
		fs.PrintDefaults()
	}
	return fs
}

func runLogin(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "login", "login -email <email> -password <password>")
	email := fs.String("email", "", "Mentor email")
	password := fs.String("password", "", "Mentor password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" || *password == "" {
		fs.Usage()
		return errors.New("-email and -password are required")
	}

	resp, err := e.api.Login(ctx, *email, *password)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "export RHCTL_TOKEN=%s\n", resp.Token)
	return nil
}

func runStatus(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "status", "status [-return-url <url>]")
	returnURL := fs.String("return-url", "", "Settings URL the payment provider redirected back to")
	if err := fs.Parse(args); err != nil {
		return err
	}

	reader := dashboard.NewReader(e.api, e.notify, e.log)
	defer reader.Close()

	if *returnURL != "" {
		cleaned, err := reader.HandleReturnURL(ctx, *returnURL)
		if err != nil {
			return err
		}
		if cleaned != *returnURL {
			fmt.Fprintf(e.out, "location: %s\n", cleaned)
		}
	}
	if reader.View().Loading {
		if err := reader.Load(ctx); err != nil {
			return err
		}
	}

	printView(e, reader.View())
	return nil
}

func printView(e *env, v dashboard.View) {
	if v.Loading {
		return
	}
	if v.Subscription == nil {
		fmt.Fprintln(e.out, "No active subscription.")
		fmt.Fprintln(e.out, "Choose a plan: rhctl plans && rhctl subscribe -plan <basic|pro|enterprise>")
		return
	}

	sub := v.Subscription
	tw := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Plan:\t%s\n", sub.Plan)
	fmt.Fprintf(tw, "Status:\t%s\n", v.Badge)
	if sub.BillingCycle != "" {
		fmt.Fprintf(tw, "Billing:\t%s\n", sub.BillingCycle)
	}
	if sub.CurrentPeriodEnd != nil {
		label := "Renews on:"
		if sub.CancelAtPeriodEnd {
			label = "Ends on:"
		}
		fmt.Fprintf(tw, "%s\t%s\n", label, sub.CurrentPeriodEnd.Format("2006-01-02"))
	}
	if v.ShowTrial {
		days := 0
		if sub.DaysRemaining != nil {
			days = *sub.DaysRemaining
		}
		fmt.Fprintf(tw, "Trial:\t%d days left (%.0f%%)\n", days, v.TrialProgress)
	}
	if v.ShowUsage {
		fmt.Fprintf(tw, "Clients:\t%d / %d (%.0f%%)\n", sub.ClientCount, sub.MaxClients, v.Usage)
	}
	actions := make([]string, 0, len(v.Actions))
	for _, a := range v.Actions {
		actions = append(actions, string(a))
	}
	fmt.Fprintf(tw, "Actions:\t%s\n", strings.Join(actions, ", "))
	_ = tw.Flush()
}

func runInvoices(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "invoices", "invoices")
	if err := fs.Parse(args); err != nil {
		return err
	}

	invoices, err := e.api.Invoices(ctx)
	if err != nil {
		return err
	}
	if len(invoices) == 0 {
		fmt.Fprintln(e.out, "No invoices yet.")
		return nil
	}

	tw := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tNUMBER\tSTATUS\tAMOUNT\tRECEIPT")
	for _, inv := range invoices {
		receipt := ""
		if inv.ReceiptURL != nil {
			receipt = *inv.ReceiptURL
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			inv.Created.Format("2006-01-02"), inv.Number, inv.Status, money(inv.AmountPaid, inv.Currency), receipt)
	}
	return tw.Flush()
}

func runPlans(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "plans", "plans")
	if err := fs.Parse(args); err != nil {
		return err
	}

	catalog, err := e.api.Plans(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "PLAN\tCLIENTS\tMONTHLY\tANNUAL (%d%% OFF)\n", catalog.AnnualDiscountPercent)
	for _, p := range catalog.Plans {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", p.ID, p.MaxClients, money(p.PriceMonthly, p.Currency), money(p.PriceAnnual, p.Currency))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, d := range catalog.Discrepancies {
		fmt.Fprintf(e.out, "note: %s annual price %s differs from advertised %s (effective discount %.1f%%)\n",
			d.Plan, money(d.TableAnnual, "usd"), money(d.AdvertisedAnnual, "usd"), d.EffectivePercent)
	}
	return nil
}

func runSubscribe(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "subscribe", "subscribe -plan <basic|pro|enterprise> [-cycle monthly|annual] [-upgrade]")
	plan := fs.String("plan", "", "Plan tier")
	cycle := fs.String("cycle", string(models.CycleMonthly), "Billing cycle")
	upgrade := fs.Bool("upgrade", false, "Change the plan of an existing subscription")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *plan == "" {
		fs.Usage()
		return errors.New("-plan is required")
	}

	done := make(chan struct{})
	selector := dashboard.NewPlanSelector(e.api, e.notify, e.log, *upgrade, func() { close(done) })
	selector.SetCycle(models.BillingCycle(*cycle))

	sel, err := selector.Select(ctx, models.PlanID(*plan))
	if err != nil {
		return err
	}
	if sel.NeedsPayment() {
		fmt.Fprintf(e.out, "Payment required. Confirm with:\n  rhctl confirm -secret %s -plan %s -pm <payment method id>\n",
			sel.ClientSecret, sel.Plan)
		return nil
	}

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return runStatus(ctx, e, nil)
}

func runConfirm(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "confirm", "confirm -secret <client secret> [-plan <plan>] (-pm <payment method id> | -check)")
	secret := fs.String("secret", "", "Client secret returned by subscribe")
	plan := fs.String("plan", "", "Selected plan, added to the return URL")
	pm := fs.String("pm", "", "Payment method id")
	check := fs.Bool("check", false, "Only check the payment status once")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *secret == "" || (*pm == "" && !*check) {
		fs.Usage()
		return errors.New("-secret and either -pm or -check are required")
	}

	confirmation := dashboard.NewConfirmation(e.confirmer, e.notify, e.log, *secret, models.PlanID(*plan), e.returnURL, nil, nil)

	if *check {
		res, err := confirmation.CheckOnce(ctx)
		if err != nil {
			return err
		}
		if res == dashboard.CheckSucceeded {
			return runStatus(ctx, e, nil)
		}
		return nil
	}

	if err := confirmation.Submit(ctx, *pm); err != nil {
		return err
	}
	if confirmation.Complete() {
		return runStatus(ctx, e, nil)
	}
	return nil
}

func runCancel(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "cancel", "cancel [-immediate] [-reason <text>]")
	immediate := fs.Bool("immediate", false, "Cancel now instead of at the end of the billing period")
	reason := fs.String("reason", "", "Cancellation reason")
	if err := fs.Parse(args); err != nil {
		return err
	}

	reader := dashboard.NewReader(e.api, e.notify, e.log)
	defer reader.Close()
	controller := dashboard.NewController(e.api, reader, e.notify, e.log)
	controller.OpenCancelDialog()

	if err := controller.Cancel(ctx, *reason, *immediate); err != nil {
		return err
	}
	printView(e, reader.View())
	return nil
}

func runReactivate(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "reactivate", "reactivate")
	if err := fs.Parse(args); err != nil {
		return err
	}

	reader := dashboard.NewReader(e.api, e.notify, e.log)
	defer reader.Close()
	controller := dashboard.NewController(e.api, reader, e.notify, e.log)

	if err := controller.Reactivate(ctx); err != nil {
		return err
	}
	printView(e, reader.View())
	return nil
}

func runClients(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "clients", "clients [-add <name> [-email <email>]]")
	add := fs.String("add", "", "Name of the client to add")
	email := fs.String("email", "", "Client email")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *add != "" {
		created, err := e.api.CreateClient(ctx, models.CreateClientRequest{Name: *add, Email: *email})
		if err != nil {
			return err
		}
		fmt.Fprintf(e.out, "Client #%d %s added\n", created.ID, created.Name)
		return nil
	}

	clients, err := e.api.ListClients(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tEMAIL")
	for _, c := range clients {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", c.ID, c.Name, c.Email)
	}
	return tw.Flush()
}

func money(cents int64, currency string) string {
	return fmt.Sprintf("%d.%02d %s", cents/100, cents%100, strings.ToUpper(currency))
}
