package cmd

import (
	"context"
	"fmt"
	"time"

	"udptime/internal/client"
	"udptime/pkg/xcommon"
	"udptime/pkg/xdisplay"

	"github.com/spf13/cobra"
)

var (
	pingCount int
	alarmWait bool
	watchAddr string
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Query server time and print the corrected local clock",
	Args:  cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		return withClient(func(ctx context.Context, cli *client.Client) error {
			_, err := cli.Sync(ctx)
			return err
		})
	},
}

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Measure round-trip time to the server",
	Args:  cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		return withClient(func(ctx context.Context, cli *client.Client) error {
			for i := 0; i < pingCount; i++ {
				rtt, err := cli.Ping(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("PONG rtt=%v\n", rtt)
			}
			return nil
		})
	},
}

var alarmCmd = &cobra.Command{
	Use:   "alarm",
	Short: "Manage server-side alarms",
}

var alarmSetCmd = &cobra.Command{
	Use:   "set HH:MM",
	Short: "Set an alarm; the server pushes ALARM_RING to this client when it fires",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		at, err := parseTimeOfDay(args[0])
		if err != nil {
			return err
		}
		return withClient(func(ctx context.Context, cli *client.Client) error {
			id, res, err := cli.SetAlarm(ctx, at)
			if err != nil {
				return err
			}
			printResult(res)
			if !res.OK {
				return nil
			}
			fmt.Println("id:", id)
			if !alarmWait {
				return nil
			}
			// 推送发往本socket, 等待闹钟触发或退出信号
			for len(cli.Alarms()) > 0 {
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(200 * time.Millisecond):
				}
			}
			return nil
		})
	},
}

var alarmCancelCmd = &cobra.Command{
	Use:   "cancel ID",
	Short: "Cancel one alarm by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return withClient(func(ctx context.Context, cli *client.Client) error {
			res, err := cli.CancelAlarm(ctx, args[0])
			if err != nil {
				return err
			}
			printResult(res)
			return nil
		})
	},
}

var alarmCancelAllCmd = &cobra.Command{
	Use:   "cancel-all",
	Short: "Cancel every alarm on the server",
	Args:  cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		return withClient(func(ctx context.Context, cli *client.Client) error {
			res, err := cli.CancelAllAlarms(ctx)
			if err != nil {
				return err
			}
			printResult(res)
			return nil
		})
	},
}

var calcCmd = &cobra.Command{
	Use:   "calc NUM1 OP NUM2",
	Short: "Evaluate NUM1 OP NUM2 on the server (OP is one of + - * /)",
	Args:  cobra.ExactArgs(3),
	RunE: func(_ *cobra.Command, args []string) error {
		lhs, op, rhs, err := parseCalc(args)
		if err != nil {
			return err
		}
		return withClient(func(ctx context.Context, cli *client.Client) error {
			res, err := cli.Calc(ctx, lhs, op, rhs)
			if err != nil {
				return err
			}
			printResult(res)
			return nil
		})
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print events from a running client's display feed",
	Args:  cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		addr := watchAddr
		if addr == "" {
			addr = conf.DisplayAddr
		}
		if addr == "" {
			return fmt.Errorf("no display addr, set --addr or TIMECLI_DISPLAY_ADDR")
		}
		ctx, stop := xcommon.SignalContext(context.Background())
		defer stop()
		return xdisplay.Watch(ctx, addr, "/", func(ev xdisplay.Event) {
			fmt.Printf("%s %-8s %s\n", ev.At.Format("15:04:05"), ev.Kind, describe(ev))
		})
	},
}

func describe(ev xdisplay.Event) string {
	if ev.Kind == xdisplay.KindSync {
		return fmt.Sprintf("offset=%dms zone=%s", ev.OffsetMs, ev.Zone)
	}
	return ev.Text
}

func init() {
	pingCmd.Flags().IntVarP(&pingCount, "count", "c", 1, "number of pings")
	alarmSetCmd.Flags().BoolVarP(&alarmWait, "wait", "w", false, "stay running until the alarm rings")
	watchCmd.Flags().StringVar(&watchAddr, "addr", "", "display feed addr (default TIMECLI_DISPLAY_ADDR)")

	alarmCmd.AddCommand(alarmSetCmd, alarmCancelCmd, alarmCancelAllCmd)
	RootCmd.AddCommand(syncCmd, pingCmd, alarmCmd, calcCmd, watchCmd)
}
