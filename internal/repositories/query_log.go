package repositories

import (
	"strings"

	"github.com/sbilibin2017/gw-deposit-reconciler/internal/logger"
)

// logQuery logs the query in a single line along with its args, result and error.
func logQuery(query string, args []any, result any, err error) {
	logger.Log.Debugw("query executed",
		"query", strings.Join(strings.Fields(query), " "),
		"args", args,
		"result", result,
		"error", err,
	)
}
