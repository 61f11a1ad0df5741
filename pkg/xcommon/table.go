package xcommon

import (
	"context"
	"fmt"
	"io"

	"udptime/pkg/xlog"

	"github.com/liushuochen/gotable"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// RenderTable 渲染表格文本
func RenderTable(keys []string, rows [][]string) (string, error) {
	table, err := gotable.CreateSafeTable(keys...)
	if err != nil {
		return "", errors.Wrap(err, "create table")
	}
	for _, row := range rows {
		if err := table.AddRow(row); err != nil {
			return "", errors.Wrap(err, "add row")
		}
	}
	return fmt.Sprint(table), nil
}

func PrintTable(ctx context.Context, w io.Writer, keys []string, rows [][]string) {
	out, err := RenderTable(keys, rows)
	if err != nil {
		xlog.Get(ctx).Warn("Print table failed.", zap.Any("err", err))
		return
	}
	fmt.Fprintln(w, out)
}
