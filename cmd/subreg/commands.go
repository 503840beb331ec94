package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/jessevdk/go-flags"
	"go.uber.org/zap"

	"github.com/subtensor-tools/subreg/extrinsics"
	"github.com/subtensor-tools/subreg/journal"
	"github.com/subtensor-tools/subreg/logging"
	"github.com/subtensor-tools/subreg/pow"
	"github.com/subtensor-tools/subreg/registration"
)

func newParser(a *app) *flags.Parser {
	parser := flags.NewParser(a.cfg, flags.Default)
	commands := []struct {
		name, short, long string
		data              any
	}{
		{"register", "Register a hotkey with proof of work", "Solves the registration puzzle and submits it until the hotkey holds a slot.", &registerCommand{app: a}},
		{"burned-register", "Register a hotkey by burning TAO", "Pays the registration cost of the subnet from the coldkey.", &burnedRegisterCommand{app: a}},
		{"register-subnet", "Create a new subnet", "Registers a new subnet owned by the wallet's coldkey.", &registerSubnetCommand{app: a}},
		{"set-identity", "Set the identity of a subnet", "Publishes the identity of a subnet owned by the wallet's coldkey.", &setIdentityCommand{app: a}},
		{"set-weights", "Set validator weights", "Normalizes and submits the weights of the wallet's hotkey.", &setWeightsCommand{app: a}},
		{"history", "Show journaled submissions", "Lists the extrinsic submissions recorded in the journal, newest first.", &historyCommand{app: a}},
	}
	for _, c := range commands {
		if _, err := parser.AddCommand(c.name, c.short, c.long, c.data); err != nil {
			panic(fmt.Sprintf("adding command %s: %v", c.name, err))
		}
	}
	return parser
}

// waitFlags selects what a submission waits for on top of the command's defaults.
//
//nolint:lll
type waitFlags struct {
	Inclusion    bool   `long:"wait-inclusion"    description:"Wait until the extrinsic is included in a block"`
	Finalization bool   `long:"wait-finalization" description:"Wait until the extrinsic is finalized"`
	NoWait       bool   `long:"no-wait"           description:"Return as soon as the extrinsic is submitted"`
	Period       uint64 `long:"period"            description:"Number of blocks the extrinsic stays valid (0 for the default)"`
}

func (w waitFlags) resolve(inclusion, finalization bool) (bool, bool) {
	if w.NoWait {
		return false, false
	}
	return inclusion || w.Inclusion, finalization || w.Finalization
}

func (w waitFlags) registerOptions() []registration.RegisterOptionFunc {
	inclusion, finalization := w.resolve(false, true)
	opts := []registration.RegisterOptionFunc{
		registration.WithWaitForInclusion(inclusion),
		registration.WithWaitForFinalization(finalization),
	}
	if w.Period > 0 {
		opts = append(opts, registration.WithPeriod(w.Period))
	}
	return opts
}

func (w waitFlags) extrinsicOptions(inclusion, finalization bool) []extrinsics.OptionFunc {
	inclusion, finalization = w.resolve(inclusion, finalization)
	opts := []extrinsics.OptionFunc{
		extrinsics.WithWaitForInclusion(inclusion),
		extrinsics.WithWaitForFinalization(finalization),
	}
	if w.Period > 0 {
		opts = append(opts, extrinsics.WithPeriod(w.Period))
	}
	return opts
}

type registerCommand struct {
	app *app

	Netuid uint16 `long:"netuid" description:"Subnet to register on" required:"true"`
	waitFlags
}

func (c *registerCommand) Execute([]string) error {
	return c.app.withChain(func(ctx context.Context, e *env) error {
		solver := pow.NewSolver(e.node, pow.WithConfig(e.cfg.Solver.Config))
		r := registration.New(e.node, solver, registration.WithConfig(e.cfg.Registration))
		opts := append(c.registerOptions(), registration.WithDevice(e.cfg.Solver.Device()))
		if _, err := r.Register(ctx, e.wallet, c.Netuid, opts...); err != nil {
			return fmt.Errorf("registering on subnet %d: %w", c.Netuid, err)
		}
		fmt.Fprintf(e.out, "Registered %s on subnet %d\n", e.wallet.HotkeyID(), c.Netuid)
		return nil
	})
}

type burnedRegisterCommand struct {
	app *app

	Netuid uint16 `long:"netuid" description:"Subnet to register on" required:"true"`
	waitFlags
}

func (c *burnedRegisterCommand) Execute([]string) error {
	return c.app.withChain(func(ctx context.Context, e *env) error {
		r := registration.New(e.node, pow.NewSolver(e.node), registration.WithConfig(e.cfg.Registration))
		if _, err := r.BurnedRegister(ctx, e.wallet, c.Netuid, c.registerOptions()...); err != nil {
			return fmt.Errorf("registering on subnet %d: %w", c.Netuid, err)
		}
		fmt.Fprintf(e.out, "Registered %s on subnet %d\n", e.wallet.HotkeyID(), c.Netuid)
		return nil
	})
}

type registerSubnetCommand struct {
	app *app

	waitFlags
}

func (c *registerSubnetCommand) Execute([]string) error {
	return c.app.withChain(func(ctx context.Context, e *env) error {
		if _, err := extrinsics.RegisterSubnet(ctx, e.node, e.wallet, c.extrinsicOptions(false, true)...); err != nil {
			return err
		}
		fmt.Fprintln(e.out, "Subnet registered")
		return nil
	})
}

type setIdentityCommand struct {
	app *app

	Netuid   uint16                    `long:"netuid" description:"Subnet to describe" required:"true"`
	Identity extrinsics.SubnetIdentity `group:"Identity"`
	waitFlags
}

func (c *setIdentityCommand) Execute([]string) error {
	return c.app.withChain(func(ctx context.Context, e *env) error {
		ok, msg := extrinsics.SetSubnetIdentity(ctx, e.node, e.wallet, c.Netuid, c.Identity, c.extrinsicOptions(false, true)...)
		if !ok {
			return fmt.Errorf("%w: %s", extrinsics.ErrRejected, msg)
		}
		fmt.Fprintln(e.out, msg)
		return nil
	})
}

//nolint:lll
type setWeightsCommand struct {
	app *app

	Netuid     uint16    `long:"netuid"      description:"Subnet to set weights on"                     required:"true"`
	UIDs       []uint16  `long:"uid"         description:"Destination uid (repeatable, matches --weight)" required:"true"`
	Weights    []float64 `long:"weight"      description:"Weight of the matching uid (repeatable)"      required:"true"`
	VersionKey uint64    `long:"version-key" description:"Weights version key"`
	MaxRetries uint      `long:"max-retries" description:"Maximum number of submissions"`
	waitFlags
}

func (c *setWeightsCommand) Execute([]string) error {
	return c.app.withChain(func(ctx context.Context, e *env) error {
		opts := append(c.extrinsicOptions(false, false), extrinsics.WithVersionKey(c.VersionKey))
		if c.MaxRetries > 0 {
			opts = append(opts, extrinsics.WithMaxRetries(c.MaxRetries))
		}
		ok, msg := extrinsics.SetWeights(ctx, e.node, e.wallet, c.Netuid, c.UIDs, c.Weights, opts...)
		if !ok {
			return fmt.Errorf("%w: %s", extrinsics.ErrRejected, msg)
		}
		fmt.Fprintln(e.out, msg)
		return nil
	})
}

type historyCommand struct {
	app *app

	Limit int    `long:"limit" description:"Number of records to show (0 for all)" default:"20"`
	ID    string `long:"id"    description:"Show a single record"`
}

func (c *historyCommand) Execute([]string) error {
	return c.app.withJournal(func(ctx context.Context, e *env) error {
		var records []journal.Record
		if c.ID != "" {
			r, err := e.journal.Get(ctx, c.ID)
			if err != nil {
				return err
			}
			records = append(records, *r)
		} else {
			var err error
			records, err = e.journal.List(ctx, c.Limit)
			if err != nil {
				return err
			}
		}
		logging.FromContext(ctx).Debug("listing journal", zap.Int("records", len(records)))
		return printRecords(e, records)
	})
}

func printRecords(e *env, records []journal.Record) error {
	w := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tCALL\tSIGNER\tSTATUS\tERROR\tID")
	for _, r := range records {
		status := r.Status
		if !r.Accepted {
			status = "rejected"
		}
		fmt.Fprintf(w, "%s\t%s.%s\t%s\t%s\t%s\t%s\n",
			r.Time().Format(time.RFC3339), r.Module, r.Function, r.Signer, status, r.Error, r.ID)
	}
	return w.Flush()
}
