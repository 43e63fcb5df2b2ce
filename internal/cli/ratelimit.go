package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"visitor-tracker/internal/config"
	"visitor-tracker/middleware/ratelimit/domain"
)

var errMemoryBackend = errors.New("rate_limit.backend=memory keeps no state outside the serving process")

type windowReport struct {
	Key        string  `json:"key"`
	Count      int     `json:"count"`
	Limit      int     `json:"limit"`
	Window     string  `json:"window"`
	Timestamps []int64 `json:"timestamps"`
}

func newRateLimitCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ratelimit",
		Short: "Inspect or reset sliding-window state",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show <key>",
		Short: "Print the timestamps currently counted for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAdmin(cmd.Context(), flags, func(cfg *config.Config, admin domain.Admin) error {
				return showWindow(cmd.Context(), cmd.OutOrStdout(), cfg, admin, args[0], time.Now())
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reset <key>",
		Short: "Forget every timestamp recorded for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAdmin(cmd.Context(), flags, func(_ *config.Config, admin domain.Admin) error {
				if err := admin.Reset(cmd.Context(), domain.Key(args[0])); err != nil {
					return fmt.Errorf("reset %s: %w", args[0], err)
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "reset %s\n", args[0])
				return err
			})
		},
	})

	return cmd
}

func withAdmin(ctx context.Context, flags *rootFlags, fn func(*config.Config, domain.Admin) error) error {
	cfg, _, err := flags.load()
	if err != nil {
		return err
	}
	if cfg.RateLimit.Backend == "memory" {
		return errMemoryBackend
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d := &deps{}
	defer d.Close()
	store, err := d.rateStore(ctx, cfg)
	if err != nil {
		return err
	}
	return fn(cfg, store)
}

func showWindow(ctx context.Context, w io.Writer, cfg *config.Config, admin domain.Admin, key string, now time.Time) error {
	p := domain.Policy{Limit: cfg.RateLimit.Limit, Window: cfg.RateLimit.Window}
	ts, err := admin.Peek(ctx, domain.Key(key), now, p)
	if err != nil {
		return fmt.Errorf("peek %s: %w", key, err)
	}
	if ts == nil {
		ts = []int64{}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(windowReport{
		Key:        key,
		Count:      len(ts),
		Limit:      p.Limit,
		Window:     p.Window.String(),
		Timestamps: ts,
	})
}
