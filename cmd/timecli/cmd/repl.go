package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"udptime/internal/client"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const replHelp = `commands:
  sync                 query server time
  now                  print the corrected local clock
  ping                 measure round-trip time
  alarm HH:MM          set an alarm
  cancel ID            cancel an alarm
  cancel-all           cancel every alarm
  list                 list alarms set from this session
  calc NUM1 OP NUM2    evaluate on the server
  quit`

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Interactive session: one socket, alarm pushes, optional auto sync",
	Args:  cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		return withClient(func(ctx context.Context, cli *client.Client) error {
			return runRepl(ctx, cli, os.Stdin)
		})
	},
}

func init() {
	RootCmd.AddCommand(replCmd)
}

// scanLines 逐行读取输入, ctx取消或输入结束时关闭channel
func scanLines(ctx context.Context, in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

func runRepl(ctx context.Context, cli *client.Client, in io.Reader) error {
	lines := scanLines(ctx, in)

	fmt.Println(replHelp)
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			fields := strings.Fields(line)
			if len(fields) == 0 {
				continue
			}
			if fields[0] == "quit" || fields[0] == "exit" {
				return nil
			}
			if err := replExec(ctx, cli, fields); err != nil {
				fmt.Println("error:", err)
			}
		}
	}
}

// replExec 本地命令直接执行, 网络请求交给worker池
func replExec(ctx context.Context, cli *client.Client, fields []string) error {
	switch fields[0] {
	case "help":
		fmt.Println(replHelp)
		return nil
	case "now":
		clock := cli.Clock()
		fmt.Printf("%s (%s) offset %v\n", clock.Now().Format("15:04:05 02/01/2006"), clock.Zone(), clock.Offset())
		return nil
	case "list":
		printAlarms(ctx, cli.Alarms())
		return nil
	}

	task, err := replTask(cli, fields)
	if err != nil {
		return err
	}
	return cli.Submit(fields[0], task)
}

func replTask(cli *client.Client, fields []string) (func(ctx context.Context) error, error) {
	switch fields[0] {
	case "sync":
		return func(ctx context.Context) error {
			_, err := cli.Sync(ctx)
			return err
		}, nil
	case "ping":
		return func(ctx context.Context) error {
			rtt, err := cli.Ping(ctx)
			if err == nil {
				fmt.Printf("PONG rtt=%v\n", rtt)
			}
			return err
		}, nil
	case "alarm":
		if len(fields) != 2 {
			return nil, errors.New("usage: alarm HH:MM")
		}
		at, err := parseTimeOfDay(fields[1])
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context) error {
			id, res, err := cli.SetAlarm(ctx, at)
			if err == nil && res.OK {
				fmt.Println("id:", id)
			}
			return err
		}, nil
	case "cancel":
		if len(fields) != 2 {
			return nil, errors.New("usage: cancel ID")
		}
		return func(ctx context.Context) error {
			_, err := cli.CancelAlarm(ctx, fields[1])
			return err
		}, nil
	case "cancel-all":
		return func(ctx context.Context) error {
			_, err := cli.CancelAllAlarms(ctx)
			return err
		}, nil
	case "calc":
		lhs, op, rhs, err := parseCalc(fields[1:])
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context) error {
			res, err := cli.Calc(ctx, lhs, op, rhs)
			if err == nil {
				printResult(res)
			}
			return err
		}, nil
	default:
		return nil, errors.Errorf("unknown command %q, try help", fields[0])
	}
}
