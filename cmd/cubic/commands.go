package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	launcher "github.com/n1ntencube/CubicLauncher"
	"github.com/n1ntencube/CubicLauncher/auth"
	"github.com/n1ntencube/CubicLauncher/install"
	"github.com/n1ntencube/CubicLauncher/status"
	"github.com/n1ntencube/CubicLauncher/uibridge"
)

func newLoginCmd(cli *cliContext) *cobra.Command {
	var device bool
	c := &cobra.Command{
		Use:   "login",
		Short: "Sign in with a Microsoft account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := cli.open(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			var id auth.Identity
			if device {
				id, err = app.LoginWithDeviceCode(cmd.Context(), func(da auth.DeviceAuthorization) {
					fmt.Fprintf(out, "Open %s and enter the code %s\n", da.VerificationURI, da.UserCode)
				})
			} else {
				fmt.Fprintln(out, "Opening your browser to sign in...")
				id, err = app.LoginWithBrowser(cmd.Context())
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "Logged in as %s\n", id.Profile.Name)
			return nil
		},
	}
	c.Flags().BoolVar(&device, "device", false, "use the device code flow instead of a browser redirect")
	return c
}

func newLogoutCmd(cli *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := cli.open(cmd.Context())
			if err != nil {
				return err
			}
			return app.Logout()
		},
	}
}

func newAccountsCmd(cli *cliContext) *cobra.Command {
	c := &cobra.Command{
		Use:   "accounts",
		Short: "Manage stored accounts",
	}

	c.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List stored accounts",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				app, err := cli.open(cmd.Context())
				if err != nil {
					return err
				}

				listing, err := app.Accounts()
				if err != nil {
					return err
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "\tID\tNAME")
				for _, acc := range listing.Accounts {
					marker := ""
					if acc.Profile.ID == listing.Current {
						marker = "*"
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\n", marker, acc.Profile.ID, acc.Profile.Name)
				}
				return tw.Flush()
			},
		},
		&cobra.Command{
			Use:   "use <id>",
			Short: "Select the account to play with",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				app, err := cli.open(cmd.Context())
				if err != nil {
					return err
				}
				return app.UseAccount(args[0])
			},
		},
		&cobra.Command{
			Use:   "remove <id>",
			Short: "Remove a stored account",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				app, err := cli.open(cmd.Context())
				if err != nil {
					return err
				}
				return app.RemoveAccount(args[0])
			},
		},
	)

	return c
}

type installFlags struct {
	pack  string
	mods  []string
	plain bool
}

func (f *installFlags) register(c *cobra.Command) {
	c.Flags().StringVarP(&f.pack, "pack", "p", "", "mod pack id from the catalog")
	c.Flags().StringSliceVarP(&f.mods, "mod", "m", nil, "mod jar URL (repeatable, overrides --pack)")
	c.Flags().BoolVar(&f.plain, "plain", false, "print progress lines instead of a progress bar")
}

func (f *installFlags) request() launcher.InstallRequest {
	return launcher.InstallRequest{PackID: f.pack, ModURLs: f.mods}
}

func newInstallCmd(cli *cliContext) *cobra.Command {
	var flags installFlags
	c := &cobra.Command{
		Use:   "install",
		Short: "Install the game, mod loader and mods without launching",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := cli.open(cmd.Context())
			if err != nil {
				return err
			}

			lc, err := runWithProgress(cmd, flags.plain, func(sink install.Sink) (install.LaunchConfig, error) {
				req := flags.request()
				req.Progress = sink
				return app.Install(cmd.Context(), req)
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Installed into %s\n", lc.GameDir)
			return nil
		},
	}
	flags.register(c)
	return c
}

func newPlayCmd(cli *cliContext) *cobra.Command {
	var (
		flags  installFlags
		detach bool
	)
	c := &cobra.Command{
		Use:   "play",
		Short: "Install if needed and start the game",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := cli.open(cmd.Context())
			if err != nil {
				return err
			}

			lc, err := runWithProgress(cmd, flags.plain, func(sink install.Sink) (install.LaunchConfig, error) {
				req := flags.request()
				req.Progress = sink
				return app.Install(cmd.Context(), req)
			})
			if err != nil {
				return err
			}

			proc, err := app.Start(lc)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Game started (pid %d)\n", proc.PID)
			if detach {
				return nil
			}

			for line := range proc.Lines() {
				fmt.Fprintln(out, line.Text)
			}

			code, err := proc.Wait(cmd.Context())
			if err != nil {
				return err
			}

			if code != 0 {
				return fmt.Errorf("game exited with code %d", code)
			}
			return nil
		},
	}
	flags.register(c)
	c.Flags().BoolVar(&detach, "detach", false, "return once the game has started")
	return c
}

func newModsCmd(cli *cliContext) *cobra.Command {
	c := &cobra.Command{
		Use:   "mods",
		Short: "Inspect installed mods and the pack catalog",
	}

	c.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List installed mod jars",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				app, err := cli.open(cmd.Context())
				if err != nil {
					return err
				}

				installed, err := app.InstalledMods()
				if err != nil {
					return err
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "NAME\tSIZE\tMODIFIED")
				for _, m := range installed {
					fmt.Fprintf(tw, "%s\t%d\t%s\n", m.Name, m.Size, m.ModTime.Format(time.DateTime))
				}
				return tw.Flush()
			},
		},
		&cobra.Command{
			Use:   "remove <name>",
			Short: "Delete an installed mod jar",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				app, err := cli.open(cmd.Context())
				if err != nil {
					return err
				}
				return app.RemoveMod(args[0])
			},
		},
		&cobra.Command{
			Use:   "packs",
			Short: "List the mod packs in the catalog",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				app, err := cli.open(cmd.Context())
				if err != nil {
					return err
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tMODS")
				for _, p := range app.Packs() {
					fmt.Fprintf(tw, "%s\t%s\t%d\n", p.ID, p.Name, p.ModCount)
				}
				return tw.Flush()
			},
		},
	)

	return c
}

func newStatusCmd(cli *cliContext) *cobra.Command {
	var asJSON, watch bool
	c := &cobra.Command{
		Use:   "status",
		Short: "Check whether the game services are reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := cli.open(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			show := func(results []status.Result) {
				if asJSON {
					_ = jsonIndent(out, results)
					return
				}
				printStatus(out, results)
			}

			if watch {
				app.WatchStatus(cmd.Context(), show)
				return nil
			}

			show(app.Status(cmd.Context()))
			return nil
		},
	}
	c.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	c.Flags().BoolVarP(&watch, "watch", "w", false, "keep checking until interrupted")
	return c
}

func printStatus(w io.Writer, results []status.Result) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SERVICE\tSTATE\tLATENCY")
	for _, r := range results {
		state := "online"
		if !r.Online {
			state = "offline"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Name, state, r.Latency.Round(time.Millisecond))
	}
	_ = tw.Flush()
}

func newRuntimeCmd(cli *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "runtime",
		Short: "Make sure a Java runtime is available and print its path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := cli.open(cmd.Context())
			if err != nil {
				return err
			}

			path, err := app.EnsureRuntime(cmd.Context(), nil)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

func newServeCmd(cli *cliContext) *cobra.Command {
	var addr string
	c := &cobra.Command{
		Use:   "serve",
		Short: "Stream launcher events to a local UI over websockets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := cli.open(cmd.Context())
			if err != nil {
				return err
			}

			if addr == "" {
				addr = cli.cfg.UI.Listen
			}

			srv, err := uibridge.NewServer(uibridge.Config{
				Addr:   addr,
				Bus:    app.Bus(),
				Status: uibridge.StatusFunc(app.Status),
				Logger: loggerFor(cli),
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "listening on %s\n", addr)
			return srv.ListenAndServe(cmd.Context())
		},
	}
	c.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return c
}

func newConfigCmd(cli *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(cli.cfg); err != nil {
				return errors.Wrap(err, "failed to encode config")
			}
			return enc.Close()
		},
	}
}

func jsonIndent(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", strings.Repeat(" ", 2))
	return enc.Encode(v)
}
