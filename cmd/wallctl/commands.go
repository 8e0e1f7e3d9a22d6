package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/genricoloni/wallcycle/internal/config"
	"github.com/genricoloni/wallcycle/internal/control"
	"github.com/genricoloni/wallcycle/internal/domain"
	"github.com/spf13/cobra"
)

const requestTimeout = 30 * time.Second

type options struct {
	socket  string
	monitor string
	outputs []string
	span    bool
}

func rootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:          "wallctl",
		Short:        "Control the wallcycle daemon",
		Long:         `wallctl sends playlist commands to a running wallcycle daemon over its control socket.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.socket, "socket", config.DefaultSocketPath(), "control socket of the daemon")
	root.PersistentFlags().StringVarP(&opts.monitor, "monitor", "m", "", "logical monitor the command targets")

	root.AddCommand(startCmd(opts))
	for _, c := range []struct {
		use, short string
		action     control.Action
	}{
		{"pause", "Pause the timer playlist on a monitor", control.ActionPausePlaylist},
		{"resume", "Resume a paused timer playlist", control.ActionResumePlaylist},
		{"stop", "Stop the playlist on a monitor", control.ActionStopPlaylist},
		{"next", "Show the next image of the playlist", control.ActionNextImage},
		{"previous", "Show the previous image of the playlist", control.ActionPreviousImage},
	} {
		root.AddCommand(targetedCmd(opts, c.use, c.short, c.action))
	}
	root.AddCommand(randomCmd(opts))
	root.AddCommand(updateConfigCmd(opts))
	root.AddCommand(infoCmd(opts))
	root.AddCommand(historyCmd(opts))
	root.AddCommand(killCmd(opts))
	root.AddCommand(watchCmd(opts))
	return root
}

func startCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start <playlist>",
		Short: "Start a playlist on a monitor",
		Long: `wallctl start <playlist> --monitor <name> [--output NAME:WxH+X+Y]... [--span]

Without --output the monitor is a single output of the same name.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			monitor, err := opts.activeMonitor()
			if err != nil {
				return err
			}
			return send(cmd, opts, control.Message{
				Action:   control.ActionStartPlaylist,
				Playlist: &control.PlaylistTarget{Name: args[0], Monitor: monitor},
			})
		},
	}
	cmd.Flags().StringArrayVar(&opts.outputs, "output", nil, "physical output as NAME or NAME:WxH+X+Y, repeatable")
	cmd.Flags().BoolVar(&opts.span, "span", false, "stretch each image across all outputs")
	return cmd
}

func targetedCmd(opts *options, use, short string, action control.Action) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Long:  fmt.Sprintf(`wallctl %s --monitor <name>`, use),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := opts.target()
			if err != nil {
				return err
			}
			return send(cmd, opts, control.Message{Action: action, Playlist: target})
		},
	}
}

func randomCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "random",
		Short: "Show a random image",
		Long:  `wallctl random [--monitor <name>]  (every running playlist when no monitor is given)`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return send(cmd, opts, control.Message{Action: control.ActionRandomImage, Playlist: opts.optionalTarget()})
		},
	}
}

func updateConfigCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "update-config",
		Short: "Reload a playlist definition, or the daemon configuration",
		Long:  `wallctl update-config [--monitor <name>]`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return send(cmd, opts, control.Message{Action: control.ActionUpdateConfig, Playlist: opts.optionalTarget()})
		},
	}
}

func killCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "kill",
		Short: "Stop the daemon, keeping playlists for its next start",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return send(cmd, opts, control.Message{Action: control.ActionStopDaemon})
		},
	}
}

func infoCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Print diagnostics of running playlists as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reply, err := request(cmd.Context(), opts, control.Message{Action: control.ActionGetInfo, Playlist: opts.optionalTarget()})
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(reply.Info)
		},
	}
}

func historyCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Print when each image was last shown, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reply, err := request(cmd.Context(), opts, control.Message{Action: control.ActionGetHistory, Playlist: opts.optionalTarget()})
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(reply.History)
		},
	}
}

func watchCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print playlist events as JSON lines until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			enc := json.NewEncoder(cmd.OutOrStdout())
			err := control.NewClient(opts.socket).Watch(cmd.Context(), func(ev domain.Event) error {
				return enc.Encode(ev)
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}

func request(ctx context.Context, opts *options, msg control.Message) (control.Reply, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	reply, err := control.NewClient(opts.socket).Send(ctx, msg)
	if err != nil {
		return control.Reply{}, err
	}
	if !reply.OK {
		return reply, errors.New(reply.Error)
	}
	return reply, nil
}

func send(cmd *cobra.Command, opts *options, msg control.Message) error {
	reply, err := request(cmd.Context(), opts, msg)
	if err != nil {
		return err
	}
	if reply.Message != "" {
		fmt.Fprintln(cmd.OutOrStdout(), reply.Message)
	}
	return nil
}

func (o *options) target() (*control.PlaylistTarget, error) {
	if o.monitor == "" {
		return nil, errors.New("--monitor is required")
	}
	return &control.PlaylistTarget{Monitor: domain.ActiveMonitor{Name: o.monitor}}, nil
}

func (o *options) optionalTarget() *control.PlaylistTarget {
	if o.monitor == "" {
		return nil
	}
	return &control.PlaylistTarget{Monitor: o.singleOutput()}
}

func (o *options) singleOutput() domain.ActiveMonitor {
	return domain.ActiveMonitor{
		Name:     o.monitor,
		Monitors: []domain.Monitor{{Name: o.monitor}},
	}
}

func (o *options) activeMonitor() (domain.ActiveMonitor, error) {
	if o.monitor == "" {
		return domain.ActiveMonitor{}, errors.New("--monitor is required")
	}
	if len(o.outputs) == 0 {
		m := o.singleOutput()
		m.ExtendAcrossMonitors = o.span
		return m, nil
	}

	m := domain.ActiveMonitor{Name: o.monitor, ExtendAcrossMonitors: o.span}
	for _, spec := range o.outputs {
		out, err := parseOutput(spec)
		if err != nil {
			return domain.ActiveMonitor{}, err
		}
		m.Monitors = append(m.Monitors, out)
	}
	return m, nil
}

// parseOutput reads NAME or NAME:WxH+X+Y. Missing geometry is filled in by
// the daemon from the connected displays.
func parseOutput(spec string) (domain.Monitor, error) {
	name, geometry, found := strings.Cut(spec, ":")
	if name == "" {
		return domain.Monitor{}, fmt.Errorf("output %q has no name", spec)
	}
	out := domain.Monitor{Name: name}
	if !found {
		return out, nil
	}

	size, pos, _ := strings.Cut(geometry, "+")
	w, h, ok := strings.Cut(size, "x")
	if !ok {
		return domain.Monitor{}, fmt.Errorf("output %q: size must be WxH", spec)
	}
	x, y := "0", "0"
	if pos != "" {
		if x, y, ok = strings.Cut(pos, "+"); !ok {
			return domain.Monitor{}, fmt.Errorf("output %q: position must be +X+Y", spec)
		}
	}

	var err error
	values := []*int{&out.Width, &out.Height, &out.Position.X, &out.Position.Y}
	for i, raw := range []string{w, h, x, y} {
		if *values[i], err = strconv.Atoi(raw); err != nil {
			return domain.Monitor{}, fmt.Errorf("output %q: %w", spec, err)
		}
	}
	if out.Width <= 0 || out.Height <= 0 {
		return domain.Monitor{}, fmt.Errorf("output %q: size must be positive", spec)
	}
	return out, nil
}
