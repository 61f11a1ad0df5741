package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"udptime/internal/client"
	"udptime/internal/config"
	"udptime/pkg/xcommon"
	"udptime/pkg/xdisplay"
	"udptime/pkg/xlog"
	"udptime/pkg/xmsg"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// RootCmd timecli入口
var RootCmd = &cobra.Command{
	Use:               "timecli",
	Short:             "Time sync and alarm client for timesvr",
	PersistentPreRunE: setup,
	PersistentPostRun: func(*cobra.Command, []string) {
		if closeLog != nil {
			_ = closeLog()
		}
	},
	SilenceUsage: true,
}

var (
	conf     *config.Client
	closeLog func() error

	rootServer   string
	rootTimeout  time.Duration
	rootTagged   bool
	rootLogLevel string
	rootLogFile  string
)

func init() {
	flags := RootCmd.PersistentFlags()
	flags.StringVarP(&rootServer, "server", "s", "", "server addr (env TIMECLI_SERVER)")
	flags.DurationVarP(&rootTimeout, "timeout", "t", 0, "response timeout (env TIMECLI_TIMEOUT)")
	flags.BoolVar(&rootTagged, "tagged", false, "tag requests with correlation ids (env TIMECLI_TAGGED)")
	flags.StringVar(&rootLogLevel, "log-level", "", "debug|info|warn|error (env TIMECLI_LOG_LEVEL)")
	flags.StringVar(&rootLogFile, "log-file", "", "activity log file (env TIMECLI_LOG_FILE)")
}

func setup(cmd *cobra.Command, _ []string) error {
	var err error
	if conf, err = config.LoadClient(); err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("server") {
		conf.Server = rootServer
	}
	if flags.Changed("timeout") {
		conf.Timeout = rootTimeout
	}
	if flags.Changed("tagged") {
		conf.Tagged = rootTagged
	}
	if flags.Changed("log-level") {
		conf.Level = rootLogLevel
	}
	if flags.Changed("log-file") {
		conf.LogFile = rootLogFile
	}
	if err := conf.Validate(); err != nil {
		return err
	}
	// 终端留给命令输出, 日志只写文件
	closeLog, err = xlog.Init(xlog.Options{Level: conf.Level, Prod: conf.Prod, File: conf.LogFile, NoStdout: true})
	return err
}

// Execute is the main entry point for CLI interface
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withClient 启动客户端执行fn, 收到退出信号时取消
func withClient(fn func(ctx context.Context, cli *client.Client) error) error {
	ctx := xlog.NewContext(context.Background(), zap.String("svc", "timecli"))
	ctx, stop := xcommon.SignalContext(ctx)
	defer stop()

	presenters := client.Presenters{client.NewConsolePresenter(os.Stdout)}
	if conf.DisplayAddr != "" {
		hub, err := xdisplay.NewHub(ctx, xdisplay.HubArgs{Addr: conf.DisplayAddr})
		if err != nil {
			return err
		}
		defer hub.Close(ctx)
		presenters = append(presenters, client.NewHubPresenter(hub))
	}

	cli := client.New(client.Args{
		Server:      conf.Server,
		Timeout:     conf.Timeout,
		ReadTimeout: conf.ReadTimeout,
		AutoSync:    conf.AutoSync,
		Workers:     conf.Workers,
		Tagged:      conf.Tagged,
		Presenter:   presenters,
	})
	defer cli.Close(ctx)
	if err := cli.Start(ctx); err != nil {
		fmt.Println("socket not ready:", err)
	}
	return fn(ctx, cli)
}

func parseTimeOfDay(s string) (xmsg.TimeOfDay, error) {
	h, m, ok := strings.Cut(s, ":")
	if !ok {
		return xmsg.TimeOfDay{}, errors.Errorf("want HH:MM, got %q", s)
	}
	hour, herr := strconv.Atoi(h)
	minute, merr := strconv.Atoi(m)
	at := xmsg.TimeOfDay{Hour: hour, Minute: minute}
	if herr != nil || merr != nil || !at.Valid() {
		return xmsg.TimeOfDay{}, errors.Errorf("invalid time %q", s)
	}
	return at, nil
}

func parseCalc(args []string) (float64, string, float64, error) {
	if len(args) != 3 {
		return 0, "", 0, errors.New("want: <num1> <op> <num2>")
	}
	lhs, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return 0, "", 0, errors.Wrapf(err, "num1 %q", args[0])
	}
	rhs, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return 0, "", 0, errors.Wrapf(err, "num2 %q", args[2])
	}
	return lhs, args[1], rhs, nil
}

func printResult(res xmsg.Result) {
	if res.OK {
		fmt.Println(res.Text)
		return
	}
	fmt.Println("failed:", res.Text)
}

func printAlarms(ctx context.Context, entries []client.BookEntry) {
	if len(entries) == 0 {
		fmt.Println("no alarms")
		return
	}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{e.At.String(), e.ID})
	}
	xcommon.PrintTable(ctx, os.Stdout, []string{"time", "id"}, rows)
}
