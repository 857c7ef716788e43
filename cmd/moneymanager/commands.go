package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strings"

	"moneymanager/internal/core"
	"moneymanager/internal/tracker"
)

type command struct {
	tracker *tracker.Tracker
	out     io.Writer
}

func (c *command) dispatch(ctx context.Context, name string, args []string) error {
	switch name {
	case "session":
		return c.print(c.tracker.Session())
	case "login":
		return c.login(ctx, args)
	case "register":
		return c.register(ctx, args)
	case "logout":
		c.tracker.Logout(ctx)
		return c.print(c.tracker.Session())
	case "dashboard":
		d, err := c.tracker.Dashboard(ctx)
		if err != nil {
			return err
		}
		return c.print(d)
	case "incomes":
		return c.transactions(ctx, core.Income, args)
	case "expenses":
		return c.transactions(ctx, core.Expense, args)
	case "categories":
		return c.categories(ctx, args)
	case "filter":
		return c.filter(ctx, args)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, name)
	}
}

func (c *command) print(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %s: %v", errUsage, fs.Name(), err)
	}
	return nil
}

// setFlags returns the names of the flags given on the command line, so a
// partial update can tell "empty" from "absent".
func setFlags(fs *flag.FlagSet) map[string]bool {
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

func (c *command) login(ctx context.Context, args []string) error {
	fs := newFlagSet("login")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	if err := parse(fs, args); err != nil {
		return err
	}
	sess, err := c.tracker.Login(ctx, *email, *password)
	if err != nil {
		return err
	}
	return c.print(sess)
}

func (c *command) register(ctx context.Context, args []string) error {
	fs := newFlagSet("register")
	username := fs.String("username", "", "display name")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	if err := parse(fs, args); err != nil {
		return err
	}
	sess, err := c.tracker.Register(ctx, *username, *email, *password)
	if err != nil {
		return err
	}
	return c.print(sess)
}

func subcommand(args []string) (string, []string, error) {
	if len(args) == 0 {
		return "", nil, fmt.Errorf("%w: missing subcommand", errUsage)
	}
	return args[0], args[1:], nil
}

func (c *command) transactions(ctx context.Context, kind core.Kind, args []string) error {
	sub, rest, err := subcommand(args)
	if err != nil {
		return err
	}
	name := kind.Plural() + " " + sub

	switch sub {
	case "list":
		var items []core.Transaction
		if kind == core.Income {
			items, err = c.tracker.ListIncomes(ctx)
		} else {
			items, err = c.tracker.ListExpenses(ctx)
		}
		if err != nil {
			return err
		}
		return c.print(items)

	case "add":
		fs := newFlagSet(name)
		amount := fs.String("amount", "", "amount, e.g. 12.50")
		date := fs.String("date", "", "date as YYYY-MM-DD")
		category := fs.String("category", "", "category name")
		categoryID := fs.String("category-id", "", "remote category id")
		title := fs.String("name", "", "optional name")
		description := fs.String("description", "", "optional description")
		if err := parse(fs, rest); err != nil {
			return err
		}
		in := core.NewTransaction{
			Name:        *title,
			CategoryID:  *categoryID,
			Category:    *category,
			Description: *description,
		}
		if in.Amount, err = parseMoney("amount", *amount); err != nil {
			return err
		}
		if in.Date, err = parseDate("date", *date); err != nil {
			return err
		}
		var created core.Transaction
		if kind == core.Income {
			created, err = c.tracker.CreateIncome(ctx, in)
		} else {
			created, err = c.tracker.CreateExpense(ctx, in)
		}
		if err != nil {
			return err
		}
		return c.print(created)

	case "update":
		fs := newFlagSet(name)
		id := fs.String("id", "", "transaction id")
		amount := fs.String("amount", "", "new amount")
		date := fs.String("date", "", "new date")
		category := fs.String("category", "", "new category name")
		categoryID := fs.String("category-id", "", "new remote category id")
		title := fs.String("name", "", "new name")
		description := fs.String("description", "", "new description")
		if err := parse(fs, rest); err != nil {
			return err
		}
		set := setFlags(fs)
		var patch core.TransactionPatch
		if set["amount"] {
			m, err := parseMoney("amount", *amount)
			if err != nil {
				return err
			}
			patch.Amount = &m
		}
		if set["date"] {
			d, err := parseDate("date", *date)
			if err != nil {
				return err
			}
			patch.Date = &d
		}
		if set["category"] {
			patch.Category = category
		}
		if set["category-id"] {
			patch.CategoryID = categoryID
		}
		if set["name"] {
			patch.Name = title
		}
		if set["description"] {
			patch.Description = description
		}
		var updated core.Transaction
		if kind == core.Income {
			updated, err = c.tracker.UpdateIncome(ctx, *id, patch)
		} else {
			updated, err = c.tracker.UpdateExpense(ctx, *id, patch)
		}
		if err != nil {
			return err
		}
		return c.print(updated)

	case "delete":
		fs := newFlagSet(name)
		id := fs.String("id", "", "transaction id")
		if err := parse(fs, rest); err != nil {
			return err
		}
		if kind == core.Income {
			err = c.tracker.DeleteIncome(ctx, *id)
		} else {
			err = c.tracker.DeleteExpense(ctx, *id)
		}
		if err != nil {
			return err
		}
		return c.print(map[string]string{"deleted": *id})

	default:
		return fmt.Errorf("%w: unknown subcommand %q", errUsage, name)
	}
}

func (c *command) categories(ctx context.Context, args []string) error {
	sub, rest, err := subcommand(args)
	if err != nil {
		return err
	}
	name := "categories " + sub

	switch sub {
	case "list":
		fs := newFlagSet(name)
		kind := fs.String("type", "", "income or expense")
		if err := parse(fs, rest); err != nil {
			return err
		}
		var cats []core.Category
		if *kind == "" {
			cats, err = c.tracker.ListCategories(ctx)
		} else {
			cats, err = c.tracker.ListCategoriesByType(ctx, core.Kind(strings.ToLower(*kind)))
		}
		if err != nil {
			return err
		}
		return c.print(cats)

	case "add":
		fs := newFlagSet(name)
		title := fs.String("name", "", "category name")
		kind := fs.String("type", "", "income or expense")
		color := fs.String("color", "", "optional #RRGGBB color")
		if err := parse(fs, rest); err != nil {
			return err
		}
		created, err := c.tracker.CreateCategory(ctx, core.Category{
			Name:  *title,
			Type:  core.Kind(strings.ToLower(*kind)),
			Color: *color,
		})
		if err != nil {
			return err
		}
		return c.print(created)

	case "update":
		fs := newFlagSet(name)
		id := fs.String("id", "", "category id")
		title := fs.String("name", "", "new name")
		kind := fs.String("type", "", "new type")
		color := fs.String("color", "", "new color")
		if err := parse(fs, rest); err != nil {
			return err
		}
		set := setFlags(fs)
		var patch core.CategoryPatch
		if set["name"] {
			patch.Name = title
		}
		if set["type"] {
			k := core.Kind(strings.ToLower(*kind))
			patch.Type = &k
		}
		if set["color"] {
			patch.Color = color
		}
		updated, err := c.tracker.UpdateCategory(ctx, *id, patch)
		if err != nil {
			return err
		}
		return c.print(updated)

	case "delete":
		fs := newFlagSet(name)
		id := fs.String("id", "", "category id")
		if err := parse(fs, rest); err != nil {
			return err
		}
		if err := c.tracker.DeleteCategory(ctx, *id); err != nil {
			return err
		}
		return c.print(map[string]string{"deleted": *id})

	default:
		return fmt.Errorf("%w: unknown subcommand %q", errUsage, name)
	}
}

func (c *command) filter(ctx context.Context, args []string) error {
	fs := newFlagSet("filter")
	kind := fs.String("type", "", "income or expense")
	category := fs.String("category", "", "category name")
	from := fs.String("from", "", "start date, inclusive")
	to := fs.String("to", "", "end date, inclusive")
	minAmount := fs.String("min", "", "minimum amount")
	maxAmount := fs.String("max", "", "maximum amount")
	keyword := fs.String("keyword", "", "text to look for")
	sortField := fs.String("sort", "", "date, amount or name")
	sortOrder := fs.String("order", "", "asc or desc")
	if err := parse(fs, args); err != nil {
		return err
	}

	f := core.Filter{
		Type:      core.Kind(strings.ToLower(*kind)),
		Category:  *category,
		Keyword:   *keyword,
		SortField: *sortField,
		SortOrder: *sortOrder,
	}
	if *from != "" {
		d, err := parseDate("from", *from)
		if err != nil {
			return err
		}
		f.StartDate = &d
	}
	if *to != "" {
		d, err := parseDate("to", *to)
		if err != nil {
			return err
		}
		f.EndDate = &d
	}
	if *minAmount != "" {
		m, err := parseMoney("min", *minAmount)
		if err != nil {
			return err
		}
		f.MinAmount = &m
	}
	if *maxAmount != "" {
		m, err := parseMoney("max", *maxAmount)
		if err != nil {
			return err
		}
		f.MaxAmount = &m
	}

	items, err := c.tracker.Filter(ctx, f)
	if err != nil {
		return err
	}
	return c.print(items)
}

func parseMoney(field, s string) (core.Money, error) {
	cents, err := core.ParseDecimalToCents(s)
	if err != nil {
		return core.Money{}, core.Invalid(field, err)
	}
	return core.Money{Cents: cents}, nil
}

func parseDate(field, s string) (core.Date, error) {
	d, err := core.ParseDate(s)
	if err != nil {
		return core.Date{}, core.Invalid(field, err)
	}
	return d, nil
}
